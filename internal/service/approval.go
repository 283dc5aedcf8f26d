package service

import (
	"context"
	"errors"
	"fmt"

	"timeoff-bot/internal/model"
	"timeoff-bot/internal/slackbot"
	"timeoff-bot/internal/store"
	"timeoff-bot/internal/timeoff"
)

// HandleBlockActions applies the line manager's button presses. values are the
// button values of one interaction; unknown actions are ignored.
func (s *LeaveService) HandleBlockActions(ctx context.Context, responseURL string, values []string) error {
	var errs []error
	for _, value := range values {
		action, userID, id, err := slackbot.ParseActionValue(value)
		if err != nil {
			s.log.WarnContext(ctx, "ignoring block action", "value", value, "error", err)
			continue
		}

		var to model.LeaveStatus
		switch action {
		case slackbot.ActionApprove:
			to = model.LeaveStatusApproved
		case slackbot.ActionDecline:
			to = model.LeaveStatusDeclined
		default:
			s.log.DebugContext(ctx, "ignoring unknown block action", "action", action)
			continue
		}

		if err := s.decide(ctx, responseURL, userID, id, to); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *LeaveService) decide(ctx context.Context, responseURL, userID string, id int, to model.LeaveStatus) error {
	var user *model.User
	err := s.withRetry(ctx, "store", func(ctx context.Context) error {
		var uerr error
		user, uerr = s.store.UpdateLeaveRequestStatus(ctx, userID, id, model.LeaveStatusRequested, to)
		return uerr
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %s #%d", ErrRequestNotFound, userID, id)
	case errors.Is(err, store.ErrStatusMismatch):
		return s.alreadyDecided(ctx, responseURL, userID, id)
	case err != nil:
		return fmt.Errorf("%w: update leave request: %w", ErrExternalService, err)
	}

	req := user.Request(id)
	if req == nil {
		return fmt.Errorf("%w: %s #%d", ErrRequestNotFound, userID, id)
	}
	s.opts.Metrics.ObserveDecision(string(to))
	s.log.InfoContext(ctx, "leave request decided", "user", userID, "request_id", id, "status", to)

	key := msgRequestDeclined
	if to == model.LeaveStatusApproved {
		key = msgRequestApproved
	}
	var errs []error
	err = s.withRetry(ctx, "slack", func(ctx context.Context) error {
		return s.messenger.PostText(ctx, userID, s.catalog.Pick(ctx, key))
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("%w: notify employee: %w", ErrExternalService, err))
	}
	if err := s.replaceCard(ctx, responseURL, userID, req); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// alreadyDecided refreshes a stale card so its buttons disappear.
func (s *LeaveService) alreadyDecided(ctx context.Context, responseURL, userID string, id int) error {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: %s #%d", ErrAlreadyDecided, userID, id)
	}
	req := user.Request(id)
	if req == nil {
		return fmt.Errorf("%w: %s #%d", ErrRequestNotFound, userID, id)
	}
	if err := s.replaceCard(ctx, responseURL, userID, req); err != nil {
		s.log.WarnContext(ctx, "refresh decided card", "user", userID, "request_id", id, "error", err)
	}
	return fmt.Errorf("%w: request is already %s", ErrAlreadyDecided, req.Status)
}

func (s *LeaveService) replaceCard(ctx context.Context, responseURL, userID string, req *model.LeaveRequest) error {
	if responseURL == "" || req.Status == model.LeaveStatusRequested {
		return nil
	}
	blocks, err := slackbot.DecisionBlocks(ctx, s.catalog, req.Status == model.LeaveStatusApproved, slackbot.Card{
		UserID:     userID,
		RequestID:  req.ID,
		StartDate:  timeoff.ReadableISO(req.StartDate),
		ReturnDate: timeoff.ReadableISO(req.ReturnDate),
		LeaveCount: req.LeaveCount,
	})
	if err != nil {
		return fmt.Errorf("build decision card: %w", err)
	}
	err = s.withRetry(ctx, "slack", func(ctx context.Context) error {
		return s.messenger.RespondInteraction(ctx, responseURL, blocks)
	})
	if err != nil {
		return fmt.Errorf("%w: replace approval card: %w", ErrExternalService, err)
	}
	return nil
}
