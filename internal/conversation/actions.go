package conversation

import (
	"context"
	"fmt"

	"timeoff-bot/internal/model"
	"timeoff-bot/internal/timeoff"
)

// Messages is the message catalog used to word replies.
type Messages interface {
	Pick(ctx context.Context, key string) string
	Render(ctx context.Context, key string, params map[string]any) (string, error)
}

// RequestSubmitter records a confirmed request and asks the line manager to decide on it.
// left is the projected balance shown on the approval card.
type RequestSubmitter interface {
	SubmitLeaveRequest(ctx context.Context, user *model.User, req model.LeaveRequest, left string) (int, error)
}

// Catalog keys used by the actions.
const (
	MsgGreetings             = "Greetings"
	MsgGreetingsFollowup     = "GreetingsFollowup"
	MsgAskStartDate          = "AskStartDate"
	MsgAskReturnDate         = "AskReturnDate"
	MsgDetailsFallback       = "DetailsFallback"
	MsgRecapBeforeConfirm    = "RecapBeforeConfirm"
	MsgAskConfirm            = "AskConfirm"
	MsgAutoDecline           = "AutoDecline"
	MsgRequestSubmitted      = "RequestSubmitted"
	MsgAnnualLeaveCountReply = "AnnualLeaveCountReply"
	MsgGenericGoodbye        = "GenericGoodbye"
)

type actionSet struct {
	msgs      Messages
	submitter RequestSubmitter
}

// NewActions returns the leave-request actions in the order they must be tried.
// Several predicates overlap, so the order is part of the behaviour.
func NewActions(msgs Messages, submitter RequestSubmitter) []Action {
	s := &actionSet{msgs: msgs, submitter: submitter}
	return []Action{
		{
			Name:   "Greeting",
			Match:  func(in Incoming) bool { return in.State == StateDefault && in.Intent == IntentGreeting },
			Handle: s.greeting,
		},
		{
			Name:   "AnnualLeaveCount",
			Match:  func(in Incoming) bool { return in.Intent == IntentAnnualLeaveCount },
			Handle: s.annualLeaveCount,
		},
		{
			Name:   "FallbackDetails",
			Match:  func(in Incoming) bool { return in.Intent == IntentFallback && in.State.In(waitingForDetails...) },
			Handle: s.fallbackDetails,
		},
		{
			Name:   "StartTimeOff",
			Match:  func(in Incoming) bool { return in.State == StateDefault && in.Intent == IntentRequestTimeOff },
			Handle: s.startTimeOff,
		},
		{
			Name:   "ContinueTimeOffDetails",
			Match:  func(in Incoming) bool { return in.Intent == IntentRequestTimeOff && in.State.In(waitingForDetails...) },
			Handle: s.continueTimeOffDetails,
		},
		{
			Name:   "ConfirmTimeOff",
			Match:  func(in Incoming) bool { return in.State == StateConfirmationAsked && in.Intent == IntentYes },
			Handle: s.confirmTimeOff,
		},
		{
			Name: "CancelTimeOff",
			Match: func(in Incoming) bool {
				return in.Intent == IntentNo && in.State.In(StateDetailsAsked, StateReturnDateAsked, StateConfirmationAsked, StateStartDateAsked)
			},
			Handle: s.cancelTimeOff,
		},
	}
}

func (s *actionSet) greeting(ctx context.Context, in Incoming, opts Options) (Outcome, error) {
	return Outcome{
		Texts:  []string{s.msgs.Pick(ctx, MsgGreetings), s.msgs.Pick(ctx, MsgGreetingsFollowup)},
		State:  StateDefault,
		Memory: currentMemory(opts.User),
	}, nil
}

func (s *actionSet) annualLeaveCount(ctx context.Context, in Incoming, opts Options) (Outcome, error) {
	text, err := s.msgs.Render(ctx, MsgAnnualLeaveCountReply, map[string]any{"left": opts.User.RemainingLeave()})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Texts:  []string{text},
		State:  in.State,
		Memory: currentMemory(opts.User),
	}, nil
}

func (s *actionSet) fallbackDetails(ctx context.Context, in Incoming, opts Options) (Outcome, error) {
	return Outcome{
		Texts:  []string{s.msgs.Pick(ctx, MsgDetailsFallback)},
		State:  in.State,
		Memory: currentMemory(opts.User),
	}, nil
}

// startTimeOff only looks at this message's slots; anything left in memory is dropped.
func (s *actionSet) startTimeOff(ctx context.Context, in Incoming, opts Options) (Outcome, error) {
	return s.decide(ctx, memoryFromSlots(opts.Slots), opts.User)
}

func (s *actionSet) continueTimeOffDetails(ctx context.Context, in Incoming, opts Options) (Outcome, error) {
	return s.decide(ctx, mergeSlots(currentMemory(opts.User), opts.Slots), opts.User)
}

func (s *actionSet) confirmTimeOff(ctx context.Context, in Incoming, opts Options) (Outcome, error) {
	memory := opts.User.Conversation.Memory

	count, err := timeoff.ParseDuration(memory[SlotDuration])
	if err != nil {
		return Outcome{}, fmt.Errorf("confirm time off: %w", err)
	}
	req := model.LeaveRequest{
		StartDate:  memory[SlotDate],
		ReturnDate: memory[SlotDate1],
		LeaveCount: count,
		Status:     model.LeaveStatusRequested,
	}
	if _, err := s.submitter.SubmitLeaveRequest(ctx, opts.User, req, memory[SlotLeft]); err != nil {
		return Outcome{}, fmt.Errorf("confirm time off: %w", err)
	}

	return Outcome{
		Texts:  []string{s.msgs.Pick(ctx, MsgRequestSubmitted)},
		State:  StateDefault,
		Memory: model.Memory{},
	}, nil
}

func (s *actionSet) cancelTimeOff(ctx context.Context, in Incoming, opts Options) (Outcome, error) {
	return Outcome{
		Texts:  []string{s.msgs.Pick(ctx, MsgGenericGoodbye)},
		State:  StateDefault,
		Memory: model.Memory{},
	}, nil
}

// decide asks for whatever is still missing, or runs the calculation once two of
// date, date1 and duration are known.
func (s *actionSet) decide(ctx context.Context, memory model.Memory, user *model.User) (Outcome, error) {
	if sufficient(memory) {
		return s.calculate(ctx, memory, user)
	}

	switch {
	case memory[SlotDate] != "" || memory[SlotDate1] != "":
		return Outcome{
			Texts:  []string{s.msgs.Pick(ctx, MsgAskReturnDate)},
			State:  StateReturnDateAsked,
			Memory: memory,
		}, nil
	case memory[SlotDuration] != "":
		return Outcome{
			Texts:  []string{s.msgs.Pick(ctx, MsgAskStartDate)},
			State:  StateStartDateAsked,
			Memory: memory,
		}, nil
	default:
		return Outcome{
			Texts:  []string{s.msgs.Pick(ctx, MsgAskStartDate)},
			State:  StateDetailsAsked,
			Memory: memory,
		}, nil
	}
}

func currentMemory(user *model.User) model.Memory {
	memory := make(model.Memory, len(user.Conversation.Memory))
	for k, v := range user.Conversation.Memory {
		memory[k] = v
	}
	return memory
}
