package conversation

import (
	"context"
	"errors"
	"log/slog"

	"timeoff-bot/internal/model"
)

// ErrNoMatchingAction is returned with the apology outcome when no action accepts the input.
var ErrNoMatchingAction = errors.New("conversation: no matching action")

// NoMatchReply is the fixed reply for an input no action accepts.
const NoMatchReply = "Sorry, I'm not sure about that."

// Slot names produced by the NLP service and kept in memory.
const (
	SlotDate     = "date"
	SlotDate1    = "date1"
	SlotDuration = "duration"
	SlotLeft     = "left"
)

// Slots are the named values extracted from a single message.
type Slots map[string]string

// Incoming is the dispatch key for one turn.
type Incoming struct {
	State  State
	Intent Intent
}

type Options struct {
	Slots Slots
	User  *model.User
}

// Outcome is what a turn produces. When Error is set the caller must not persist State or Memory.
type Outcome struct {
	Texts  []string
	State  State
	Memory model.Memory
	Error  bool
}

// Action handles the inputs its Match predicate accepts.
type Action struct {
	Name   string
	Match  func(in Incoming) bool
	Handle func(ctx context.Context, in Incoming, opts Options) (Outcome, error)
}

// Adapter dispatches to the first matching action, in order.
type Adapter struct {
	actions []Action
	logger  *slog.Logger
}

func NewAdapter(actions []Action, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{actions: actions, logger: logger}
}

// Exec runs the first action whose predicate accepts in.
func (a *Adapter) Exec(ctx context.Context, in Incoming, opts Options) (Outcome, string, error) {
	for _, action := range a.actions {
		if !action.Match(in) {
			continue
		}
		a.logger.DebugContext(ctx, "conversation: action matched",
			"action", action.Name, "state", in.State, "intent", in.Intent.String())
		out, err := action.Handle(ctx, in, opts)
		return out, action.Name, err
	}

	a.logger.InfoContext(ctx, "conversation: no action matched", "state", in.State, "intent", in.Intent.String())
	return Outcome{Texts: []string{NoMatchReply}, Error: true}, "", ErrNoMatchingAction
}
