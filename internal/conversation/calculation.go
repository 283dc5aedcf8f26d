package conversation

import (
	"context"
	"strconv"

	"timeoff-bot/internal/model"
	"timeoff-bot/internal/timeoff"
)

// calculate turns sufficient memory into either an automatic decline or a recap
// awaiting confirmation. The projected balance stored as "left" is not checked
// again when the user confirms.
func (s *actionSet) calculate(ctx context.Context, memory model.Memory, user *model.User) (Outcome, error) {
	var (
		span timeoff.Span
		err  error
	)
	if memory[SlotDate] != "" && memory[SlotDate1] != "" {
		span, err = timeoff.SpanFromTwoDates(memory[SlotDate], memory[SlotDate1])
	} else {
		start := memory[SlotDate]
		if start == "" {
			start = memory[SlotDate1]
		}
		span, err = timeoff.SpanFromDateAndDuration(start, memory[SlotDuration])
	}
	if err != nil {
		return Outcome{}, err
	}

	left := user.RemainingLeave()
	if span.Duration > left {
		text, err := s.msgs.Render(ctx, MsgAutoDecline, map[string]any{
			"left":     left,
			"duration": span.Duration,
		})
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{
			Texts:  []string{text},
			State:  StateDefault,
			Memory: model.Memory{},
		}, nil
	}

	projected := left - span.Duration
	recap, err := s.msgs.Render(ctx, MsgRecapBeforeConfirm, map[string]any{
		"date":     span.StartReadable(),
		"date1":    span.EndReadable(),
		"duration": span.Duration,
		"left":     projected,
	})
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		Texts: []string{recap, s.msgs.Pick(ctx, MsgAskConfirm)},
		State: StateConfirmationAsked,
		Memory: model.Memory{
			SlotDate:     span.StartISO(),
			SlotDate1:    span.EndISO(),
			SlotDuration: strconv.Itoa(span.Duration),
			SlotLeft:     strconv.Itoa(projected),
		},
	}, nil
}
