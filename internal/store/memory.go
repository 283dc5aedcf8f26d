package store

import (
	"context"
	"sync"
	"time"

	"timeoff-bot/internal/model"
)

// MemoryUserStore is a process-local UserStore for development and tests.
type MemoryUserStore struct {
	mu                sync.Mutex
	users             map[string]*model.User
	initialLeaveCount int
}

var _ UserStore = (*MemoryUserStore)(nil)

func NewMemoryUserStore(initialLeaveCount int) *MemoryUserStore {
	return &MemoryUserStore{
		users:             make(map[string]*model.User),
		initialLeaveCount: initialLeaveCount,
	}
}

// Put replaces a user record, e.g. to seed a line manager.
func (s *MemoryUserStore) Put(user *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.SlackID] = clone(normalize(user))
}

func (s *MemoryUserStore) GetOrCreate(_ context.Context, slackID string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[slackID]
	if !ok {
		u = model.NewUser(slackID, s.initialLeaveCount)
		s.users[slackID] = u
	}
	return clone(u), nil
}

func (s *MemoryUserStore) GetUser(_ context.Context, slackID string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[slackID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(u), nil
}

func (s *MemoryUserStore) UpdateConversation(_ context.Context, slackID string, conv model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[slackID]
	if !ok {
		return ErrNotFound
	}
	u.Conversation = model.Conversation{State: conv.State, Memory: copyMemory(conv.Memory)}
	u.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryUserStore) AddLeaveRequest(_ context.Context, slackID string, req model.LeaveRequest) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[slackID]
	if !ok {
		return 0, ErrNotFound
	}
	now := time.Now()
	req.ID = u.NextRequestID()
	req.CreatedAt = now
	req.UpdatedAt = now
	u.Requests = append(u.Requests, req)
	u.UpdatedAt = now
	return req.ID, nil
}

func (s *MemoryUserStore) UpdateLeaveRequestStatus(_ context.Context, slackID string, id int, from, to model.LeaveStatus) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[slackID]
	if !ok {
		return nil, ErrNotFound
	}
	r := u.Request(id)
	if r == nil {
		return nil, ErrNotFound
	}
	if r.Status != from {
		return nil, ErrStatusMismatch
	}
	now := time.Now()
	r.Status = to
	r.UpdatedAt = now
	u.UpdatedAt = now
	return clone(u), nil
}

func clone(u *model.User) *model.User {
	c := *u
	c.Requests = append([]model.LeaveRequest{}, u.Requests...)
	c.Conversation.Memory = copyMemory(u.Conversation.Memory)
	return &c
}

func copyMemory(m model.Memory) model.Memory {
	c := make(model.Memory, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
