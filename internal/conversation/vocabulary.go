package conversation

import "timeoff-bot/internal/model"

// State is what the bot is waiting for from a user. Values are persisted as-is.
type State string

const (
	StateDefault           State = model.DefaultConversationState
	StateDetailsAsked      State = "AL_DETAILS_ASKED"
	StateStartDateAsked    State = "AL_START_DATE_ASKED"
	StateReturnDateAsked   State = "AL_RETURN_DATE_ASKED"
	StateConfirmationAsked State = "AL_CONFIRMATION_ASKED"
)

// waitingForDetails are the states in which the bot still needs dates or a duration.
var waitingForDetails = []State{StateDetailsAsked, StateReturnDateAsked, StateStartDateAsked}

// ParseState maps a stored state to the vocabulary. Empty or unrecognised values
// are treated as the idle state.
func ParseState(s string) State {
	switch st := State(s); st {
	case StateDetailsAsked, StateStartDateAsked, StateReturnDateAsked, StateConfirmationAsked:
		return st
	default:
		return StateDefault
	}
}

func (s State) In(states ...State) bool {
	for _, st := range states {
		if s == st {
			return true
		}
	}
	return false
}

type Intent int

const (
	// IntentUnknown is any intent name the NLP service returns that is not in the vocabulary.
	IntentUnknown Intent = iota
	IntentGreeting
	IntentNo
	IntentYes
	IntentRequestTimeOff
	IntentEdit // reserved
	IntentFallback
	IntentAnnualLeaveCount
)

// intentNames maps the NLP agent's intent display names to the vocabulary.
var intentNames = map[string]Intent{
	"INTENT.Hi":               IntentGreeting,
	"INTENT.No":               IntentNo,
	"INTENT.Yes":              IntentYes,
	"INTENT.RequestTimeOff":   IntentRequestTimeOff,
	"INTENT.Edit":             IntentEdit,
	"INTENT.Fallback":         IntentFallback,
	"INTENT.AnnualLeaveCount": IntentAnnualLeaveCount,
}

// ParseIntent matches name case-sensitively.
func ParseIntent(name string) Intent {
	if i, ok := intentNames[name]; ok {
		return i
	}
	return IntentUnknown
}

// IntentNames lists the external names in vocabulary order, for prompting the classifier.
func IntentNames() []string {
	names := make([]string, IntentAnnualLeaveCount)
	for name, i := range intentNames {
		names[i-1] = name
	}
	return names
}

func (i Intent) String() string {
	switch i {
	case IntentGreeting:
		return "greeting"
	case IntentNo:
		return "no"
	case IntentYes:
		return "yes"
	case IntentRequestTimeOff:
		return "request_time_off"
	case IntentEdit:
		return "edit"
	case IntentFallback:
		return "fallback"
	case IntentAnnualLeaveCount:
		return "annual_leave_count"
	default:
		return "unknown"
	}
}
