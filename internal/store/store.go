package store

import (
	"context"
	"errors"

	"timeoff-bot/internal/model"
)

var (
	// ErrNotFound is returned when the user or the referenced request does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a concurrent write changed the request list first.
	// The write can be retried against a fresh read.
	ErrConflict = errors.New("store: concurrent modification")
	// ErrStatusMismatch is returned when a request is not in the expected status.
	ErrStatusMismatch = errors.New("store: unexpected request status")
)

// UserStore keeps one record per Slack user.
type UserStore interface {
	// GetOrCreate returns the user, inserting the default record on first contact.
	GetOrCreate(ctx context.Context, slackID string) (*model.User, error)
	GetUser(ctx context.Context, slackID string) (*model.User, error)
	// UpdateConversation overwrites state and memory.
	UpdateConversation(ctx context.Context, slackID string, conv model.Conversation) error
	// AddLeaveRequest appends req and returns its sequential id.
	AddLeaveRequest(ctx context.Context, slackID string, req model.LeaveRequest) (int, error)
	// UpdateLeaveRequestStatus moves request id from one status to another and
	// returns the updated user.
	UpdateLeaveRequestStatus(ctx context.Context, slackID string, id int, from, to model.LeaveStatus) (*model.User, error)
}

func normalize(u *model.User) *model.User {
	if u.Requests == nil {
		u.Requests = []model.LeaveRequest{}
	}
	if u.Conversation.Memory == nil {
		u.Conversation.Memory = model.Memory{}
	}
	if u.Conversation.State == "" {
		u.Conversation.State = model.DefaultConversationState
	}
	return u
}
