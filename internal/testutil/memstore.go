// Package testutil provides in-memory fakes of the chat collaborators
// for engine and harness tests: a scriptable membership store, a
// static reaction source, and a recording sleeper.
package testutil

import (
	"context"
	"sync"

	"github.com/mtessier/reactsync/internal/chat"
)

// ReplaceCall records one ReplaceRoles invocation.
type ReplaceCall struct {
	Key   chat.MemberKey
	Roles chat.RoleSet
}

// MemStore is an in-memory chat.MembershipStore with failure
// injection and call recording.
//
// Thread-safety: all methods are safe for concurrent use.
type MemStore struct {
	mu       sync.Mutex
	roles    map[chat.MemberKey]chat.RoleSet
	failures map[chat.MemberKey][]error
	getFails map[chat.MemberKey][]error
	replaces []ReplaceCall
	gets     int
}

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		roles:    make(map[chat.MemberKey]chat.RoleSet),
		failures: make(map[chat.MemberKey][]error),
		getFails: make(map[chat.MemberKey][]error),
	}
}

// SetRoles seeds a member's live role set.
func (s *MemStore) SetRoles(key chat.MemberKey, roles ...chat.RoleID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[key] = chat.NewRoleSet(roles...)
}

// Roles returns a copy of the member's current role set.
func (s *MemStore) Roles(key chat.MemberKey) chat.RoleSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.roles[key]; ok {
		return set.Clone()
	}
	return chat.NewRoleSet()
}

// FailReplaceWith queues errors returned by the member's next
// ReplaceRoles calls, in order. Once drained, calls succeed again.
func (s *MemStore) FailReplaceWith(key chat.MemberKey, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[key] = append(s.failures[key], errs...)
}

// FailGetWith queues errors returned by the member's next GetRoles
// calls, in order.
func (s *MemStore) FailGetWith(key chat.MemberKey, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getFails[key] = append(s.getFails[key], errs...)
}

// GetRoles implements chat.MembershipStore.
func (s *MemStore) GetRoles(_ context.Context, key chat.MemberKey) (chat.RoleSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gets++
	if errs := s.getFails[key]; len(errs) > 0 {
		s.getFails[key] = errs[1:]
		return nil, errs[0]
	}
	if set, ok := s.roles[key]; ok {
		return set.Clone(), nil
	}
	return chat.NewRoleSet(), nil
}

// ReplaceRoles implements chat.MembershipStore. Every call is
// recorded, including failed ones.
func (s *MemStore) ReplaceRoles(_ context.Context, key chat.MemberKey, roles chat.RoleSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.replaces = append(s.replaces, ReplaceCall{Key: key, Roles: roles.Clone()})
	if errs := s.failures[key]; len(errs) > 0 {
		s.failures[key] = errs[1:]
		return errs[0]
	}
	s.roles[key] = roles.Clone()
	return nil
}

// ReplaceCalls returns every recorded ReplaceRoles call in order.
func (s *MemStore) ReplaceCalls() []ReplaceCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ReplaceCall{}, s.replaces...)
}

// ReplaceCallsFor returns the recorded ReplaceRoles calls for one
// member, in order.
func (s *MemStore) ReplaceCallsFor(key chat.MemberKey) []ReplaceCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ReplaceCall
	for _, c := range s.replaces {
		if c.Key == key {
			out = append(out, c)
		}
	}
	return out
}

// GetCalls returns the total number of GetRoles calls.
func (s *MemStore) GetCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}
