package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"timeoff-bot/internal/queue"
	"timeoff-bot/internal/slackbot"
)

// HandleEnvelope processes one queued Slack payload. It returns an error only
// when redelivering the envelope is safe and may succeed.
func (s *LeaveService) HandleEnvelope(ctx context.Context, env queue.Envelope) error {
	switch env.Kind {
	case queue.KindEvent:
		return s.handleEvent(ctx, env.Body)
	case queue.KindInteraction:
		return s.handleInteraction(ctx, env.Body)
	default:
		return fmt.Errorf("%w: %q", queue.ErrUnknownKind, env.Kind)
	}
}

func (s *LeaveService) handleEvent(ctx context.Context, body json.RawMessage) error {
	outer, err := slackevents.ParseEvent(body, slackevents.OptionNoVerifyToken())
	if err != nil {
		s.log.WarnContext(ctx, "dropping undecodable event", "error", err)
		return nil
	}
	if outer.Type != slackevents.CallbackEvent {
		return nil
	}
	ev, ok := outer.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok || !slackbot.IsHumanMessage(ev) {
		return nil
	}

	executed, err := s.turn(ctx, Message{
		UserID:  ev.User,
		Channel: ev.Channel,
		Text:    ev.Text,
		TeamID:  outer.TeamID,
	})
	if err == nil {
		return nil
	}
	if !executed {
		return err
	}
	// The action already ran; a redelivery could record the request twice.
	s.log.ErrorContext(ctx, "turn failed after its action ran", "user", ev.User, "error", err)
	return nil
}

func (s *LeaveService) handleInteraction(ctx context.Context, body json.RawMessage) error {
	var cb slack.InteractionCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		s.log.WarnContext(ctx, "dropping undecodable interaction", "error", err)
		return nil
	}
	if cb.Type != slack.InteractionTypeBlockActions {
		return nil
	}

	err := s.HandleBlockActions(ctx, cb.ResponseURL, slackbot.BlockActionValues(&cb))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrExternalService):
		return err
	default:
		s.log.WarnContext(ctx, "block action rejected", "manager", cb.User.ID, "error", err)
		return nil
	}
}
