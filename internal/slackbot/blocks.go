package slackbot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/slack-go/slack"
)

// Button actions carried in a block action value "<action>_<userID>_<requestID>".
const (
	ActionApprove = "approvetimeoff"
	ActionDecline = "declinetimeoff"
)

var ErrInvalidActionValue = errors.New("slackbot: invalid action value")

// Catalog renders card labels.
type Catalog interface {
	Pick(ctx context.Context, key string) string
	Render(ctx context.Context, key string, params map[string]any) (string, error)
}

// Card describes a leave request as shown to the line manager. Dates are already
// in readable form.
type Card struct {
	UserID     string
	RequestID  int
	StartDate  string
	ReturnDate string
	LeaveCount int
	// LeftIfApproved is only shown on the approval request.
	LeftIfApproved string
}

// ActionValue encodes a button value.
func ActionValue(action, userID string, requestID int) string {
	return action + "_" + userID + "_" + strconv.Itoa(requestID)
}

// ParseActionValue splits a button value into its action, user and request id.
func ParseActionValue(value string) (action, userID string, requestID int, err error) {
	parts := strings.SplitN(value, "_", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return "", "", 0, fmt.Errorf("%w: %q", ErrInvalidActionValue, value)
	}
	id, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", "", 0, fmt.Errorf("%w: %q", ErrInvalidActionValue, value)
	}
	return parts[0], parts[1], id, nil
}

// ApprovalRequestBlocks is the card sent to the line manager, with approve and deny buttons.
func ApprovalRequestBlocks(ctx context.Context, cat Catalog, card Card) ([]slack.Block, error) {
	title, err := cat.Render(ctx, "ApprovalCardTitle", map[string]any{"user": card.UserID})
	if err != nil {
		return nil, err
	}
	fields, err := cardFields(ctx, cat, card, true)
	if err != nil {
		return nil, err
	}

	approve := slack.NewButtonBlockElement("", ActionValue(ActionApprove, card.UserID, card.RequestID),
		slack.NewTextBlockObject(slack.PlainTextType, cat.Pick(ctx, "ApproveButton"), true, false)).
		WithStyle(slack.StylePrimary)
	decline := slack.NewButtonBlockElement("", ActionValue(ActionDecline, card.UserID, card.RequestID),
		slack.NewTextBlockObject(slack.PlainTextType, cat.Pick(ctx, "DeclineButton"), true, false)).
		WithStyle(slack.StyleDanger)

	return []slack.Block{
		slack.NewSectionBlock(markdown(title), nil, nil),
		slack.NewSectionBlock(nil, fields, nil),
		slack.NewActionBlock("", approve, decline),
	}, nil
}

// DecisionBlocks replaces the approval card once the manager has decided.
func DecisionBlocks(ctx context.Context, cat Catalog, approved bool, card Card) ([]slack.Block, error) {
	key := "DeclinedCardTitle"
	if approved {
		key = "ApprovedCardTitle"
	}
	title, err := cat.Render(ctx, key, map[string]any{"user": card.UserID})
	if err != nil {
		return nil, err
	}
	fields, err := cardFields(ctx, cat, card, false)
	if err != nil {
		return nil, err
	}
	return []slack.Block{
		slack.NewSectionBlock(markdown(title), nil, nil),
		slack.NewSectionBlock(nil, fields, nil),
	}, nil
}

func cardFields(ctx context.Context, cat Catalog, card Card, withLeft bool) ([]*slack.TextBlockObject, error) {
	type field struct {
		key    string
		params map[string]any
	}
	rows := []field{
		{"CardStartField", map[string]any{"date": card.StartDate}},
		{"CardReturnField", map[string]any{"date": card.ReturnDate}},
		{"CardLeaveUsedField", map[string]any{"count": card.LeaveCount}},
	}
	if withLeft {
		rows = append(rows, field{"CardLeaveLeftField", map[string]any{"left": card.LeftIfApproved}})
	}

	fields := make([]*slack.TextBlockObject, 0, len(rows))
	for _, f := range rows {
		text, err := cat.Render(ctx, f.key, f.params)
		if err != nil {
			return nil, err
		}
		fields = append(fields, markdown(text))
	}
	return fields, nil
}

func markdown(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}
