package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/slack-go/slack"

	"timeoff-bot/internal/conversation"
	"timeoff-bot/internal/logger"
	"timeoff-bot/internal/metrics"
	"timeoff-bot/internal/model"
	"timeoff-bot/internal/nlp"
	"timeoff-bot/internal/slackbot"
	"timeoff-bot/internal/store"
	"timeoff-bot/internal/timeoff"
)

var (
	// ErrExternalService wraps failures of Slack, the classifier or the store.
	ErrExternalService = errors.New("service: external service failure")
	ErrRequestNotFound = errors.New("service: leave request not found")
	ErrAlreadyDecided  = errors.New("service: leave request already decided")
)

const (
	msgNotSure              = "NotSure"
	msgRequestApproved      = "RequestApproved"
	msgRequestDeclined      = "RequestDeclined"
	msgApprovalNotification = "ApprovalNotification"
)

// Messenger sends messages as the bot user.
type Messenger interface {
	PostText(ctx context.Context, channel, text string) error
	PostBlocks(ctx context.Context, channel, text string, blocks []slack.Block) error
	RespondInteraction(ctx context.Context, responseURL string, blocks []slack.Block) error
}

// Catalog words replies and approval cards.
type Catalog interface {
	Pick(ctx context.Context, key string) string
	Render(ctx context.Context, key string, params map[string]any) (string, error)
}

type Options struct {
	// DefaultApproverID receives approval cards for users without a line manager.
	DefaultApproverID string
	// ReplyPacing is the pause between consecutive replies of one turn.
	ReplyPacing time.Duration
	Retry       RetryPolicy
	Metrics     *metrics.BotMetrics
	Logger      *slog.Logger
}

// Message is one direct message from a user.
type Message struct {
	UserID  string
	Channel string
	Text    string
	TeamID  string
}

type LeaveService struct {
	store      store.UserStore
	classifier nlp.Classifier
	messenger  Messenger
	catalog    Catalog
	adapter    *conversation.Adapter
	opts       Options
	log        *slog.Logger
}

func NewLeaveService(st store.UserStore, classifier nlp.Classifier, messenger Messenger, catalog Catalog, opts Options) *LeaveService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	opts.Retry = opts.Retry.normalized()
	s := &LeaveService{
		store:      st,
		classifier: classifier,
		messenger:  messenger,
		catalog:    catalog,
		opts:       opts,
		log:        opts.Logger,
	}
	s.adapter = conversation.NewAdapter(conversation.NewActions(catalog, s), opts.Logger)
	return s
}

// HandleMessage runs one conversation turn: load the user, classify the text,
// dispatch to the matching action, send the replies in order and persist the
// new conversation state.
func (s *LeaveService) HandleMessage(ctx context.Context, msg Message) error {
	_, err := s.turn(ctx, msg)
	return err
}

// turn reports whether the action ran. Once it has, the turn may have recorded a
// request or posted an approval card and must not be redelivered.
func (s *LeaveService) turn(ctx context.Context, msg Message) (executed bool, err error) {
	ctx = logger.EnsureTraceID(ctx)
	start := time.Now()
	action, result := "", "ok"
	defer func() {
		if err != nil && result == "ok" {
			result = "error"
		}
		s.opts.Metrics.ObserveTurn(action, result, time.Since(start).Seconds())
	}()

	var user *model.User
	err = s.withRetry(ctx, "store", func(ctx context.Context) error {
		var gerr error
		user, gerr = s.store.GetOrCreate(ctx, msg.UserID)
		return gerr
	})
	if err != nil {
		return false, fmt.Errorf("%w: get user: %w", ErrExternalService, err)
	}

	res, err := s.classifier.Classify(ctx, msg.Text)
	if err != nil {
		s.opts.Metrics.ObserveExternalError("nlp")
		return false, fmt.Errorf("%w: classify: %w", ErrExternalService, err)
	}

	in := conversation.Incoming{
		State:  conversation.ParseState(user.Conversation.State),
		Intent: conversation.ParseIntent(res.Intent),
	}
	out, action, execErr := s.adapter.Exec(ctx, in, conversation.Options{Slots: res.Slots, User: user})

	persist := true
	texts := out.Texts
	switch {
	case errors.Is(execErr, conversation.ErrNoMatchingAction):
		persist, result = false, "no_match"
	case errors.Is(execErr, timeoff.ErrParse), errors.Is(execErr, timeoff.ErrMissingDuration):
		s.log.WarnContext(ctx, "could not read time off details",
			"user", msg.UserID, "intent", res.Intent, "slots", res.Slots, "error", execErr)
		texts = []string{s.catalog.Pick(ctx, conversation.MsgDetailsFallback)}
		persist, result = false, "parse_error"
	case execErr != nil:
		s.log.ErrorContext(ctx, "conversation action failed", "user", msg.UserID, "action", action, "error", execErr)
		texts = []string{s.catalog.Pick(ctx, msgNotSure)}
		persist = false
		err = fmt.Errorf("%s: %w", action, execErr)
	case out.Error:
		persist = false
	}

	_, sendErr := s.sendTexts(ctx, msg.Channel, texts)
	if !persist {
		return true, errors.Join(err, sendErr)
	}

	// The state is stored even when a reply failed, so the next message does not
	// repeat an action that already took effect.
	conv := model.Conversation{State: string(out.State), Memory: out.Memory}
	werr := s.withRetry(ctx, "store", func(ctx context.Context) error {
		return s.store.UpdateConversation(ctx, msg.UserID, conv)
	})
	if werr != nil {
		werr = fmt.Errorf("%w: update conversation: %w", ErrExternalService, werr)
	}
	if err = errors.Join(sendErr, werr); err != nil {
		return true, err
	}

	s.log.InfoContext(ctx, "turn completed", "user", msg.UserID, "action", action, "state", conv.State)
	return true, nil
}

// sendTexts posts texts in order, pausing between them. It returns how many were sent.
func (s *LeaveService) sendTexts(ctx context.Context, channel string, texts []string) (int, error) {
	for i, text := range texts {
		if i > 0 {
			if err := sleep(ctx, s.opts.ReplyPacing); err != nil {
				return i, err
			}
		}
		err := s.withRetry(ctx, "slack", func(ctx context.Context) error {
			return s.messenger.PostText(ctx, channel, text)
		})
		if err != nil {
			return i, fmt.Errorf("%w: send reply: %w", ErrExternalService, err)
		}
	}
	return len(texts), nil
}

// SubmitLeaveRequest records req for user and sends the approval card to the
// line manager, or to the default approver when the user has none.
// A card that cannot be delivered is logged; the request stays recorded.
func (s *LeaveService) SubmitLeaveRequest(ctx context.Context, user *model.User, req model.LeaveRequest, left string) (int, error) {
	var id int
	err := s.withRetry(ctx, "store", func(ctx context.Context) error {
		var aerr error
		id, aerr = s.store.AddLeaveRequest(ctx, user.SlackID, req)
		return aerr
	})
	if err != nil {
		return 0, fmt.Errorf("%w: add leave request: %w", ErrExternalService, err)
	}
	s.opts.Metrics.ObserveDecision(string(model.LeaveStatusRequested))

	approver := user.LineManagerID
	if approver == "" {
		approver = s.opts.DefaultApproverID
	}
	if approver == "" {
		s.log.WarnContext(ctx, "no approver for leave request, card not sent", "user", user.SlackID, "request_id", id)
		return id, nil
	}

	card := slackbot.Card{
		UserID:         user.SlackID,
		RequestID:      id,
		StartDate:      timeoff.ReadableISO(req.StartDate),
		ReturnDate:     timeoff.ReadableISO(req.ReturnDate),
		LeaveCount:     req.LeaveCount,
		LeftIfApproved: left,
	}
	blocks, err := slackbot.ApprovalRequestBlocks(ctx, s.catalog, card)
	if err != nil {
		s.log.ErrorContext(ctx, "build approval card", "user", user.SlackID, "request_id", id, "error", err)
		return id, nil
	}

	err = s.withRetry(ctx, "slack", func(ctx context.Context) error {
		return s.messenger.PostBlocks(ctx, approver, s.catalog.Pick(ctx, msgApprovalNotification), blocks)
	})
	if err != nil {
		s.log.ErrorContext(ctx, "send approval card", "user", user.SlackID, "approver", approver, "request_id", id, "error", err)
		return id, nil
	}

	s.log.InfoContext(ctx, "leave request submitted", "user", user.SlackID, "approver", approver, "request_id", id)
	return id, nil
}

// withRetry runs fn under the retry policy and counts a final failure against service.
func (s *LeaveService) withRetry(ctx context.Context, service string, fn func(ctx context.Context) error) error {
	err := retry(ctx, s.opts.Retry, fn)
	if err != nil && !permanentDomainError(err) {
		s.opts.Metrics.ObserveExternalError(service)
	}
	return err
}

func permanentDomainError(err error) bool {
	return errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrStatusMismatch)
}
