package model

import "time"

const (
	// DefaultInitialLeaveCount is the annual allowance given to new users.
	DefaultInitialLeaveCount = 25
	// DefaultConversationState is the idle state a new user starts in.
	DefaultConversationState = "DEFAULT"
)

// Memory holds the slot values collected for the pending request.
type Memory map[string]string

// Conversation is what the bot is waiting for from a user.
type Conversation struct {
	State  string `bson:"state" dynamodbav:"state" json:"state"`
	Memory Memory `bson:"memory" dynamodbav:"memory" json:"memory"`
}

type User struct {
	SlackID           string         `bson:"slack_id" dynamodbav:"slackID" json:"slack_id"`
	LineManagerID     string         `bson:"line_manager_id" dynamodbav:"lineManagerID" json:"line_manager_id"` // Slack user ID
	AutoApproval      bool           `bson:"auto_approval" dynamodbav:"autoApproval" json:"auto_approval"`
	InitialLeaveCount int            `bson:"initial_leave_count" dynamodbav:"initialLeaveCount" json:"initial_leave_count"`
	Requests          []LeaveRequest `bson:"requests" dynamodbav:"requests" json:"requests"`
	Conversation      Conversation   `bson:"conversation" dynamodbav:"conversation" json:"conversation"`
	CreatedAt         time.Time      `bson:"created_at" dynamodbav:"createdAt" json:"created_at"`
	UpdatedAt         time.Time      `bson:"updated_at" dynamodbav:"updatedAt" json:"updated_at"`
}

// NewUser returns the record created on first contact.
func NewUser(slackID string, initialLeaveCount int) *User {
	if initialLeaveCount <= 0 {
		initialLeaveCount = DefaultInitialLeaveCount
	}
	now := time.Now()
	return &User{
		SlackID:           slackID,
		InitialLeaveCount: initialLeaveCount,
		Requests:          []LeaveRequest{},
		Conversation: Conversation{
			State:  DefaultConversationState,
			Memory: Memory{},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ConsumedLeave sums the approved requests. Requested and declined requests do not count.
func (u *User) ConsumedLeave() int {
	consumed := 0
	for _, r := range u.Requests {
		if r.Status == LeaveStatusApproved {
			consumed += r.LeaveCount
		}
	}
	return consumed
}

func (u *User) RemainingLeave() int {
	return u.InitialLeaveCount - u.ConsumedLeave()
}

// Request returns the request with the given id, or nil.
func (u *User) Request(id int) *LeaveRequest {
	for i := range u.Requests {
		if u.Requests[i].ID == id {
			return &u.Requests[i]
		}
	}
	return nil
}

// NextRequestID is the id the next appended request receives.
func (u *User) NextRequestID() int {
	return len(u.Requests) + 1
}
