// Package harness runs yaml conformance scenarios against the engine:
// a configuration plus an event stream turns into a deterministic
// trace of role writes, compared against golden files. Scenarios run
// with throttling disabled and all events enqueued before the first
// drain, so coalescing behavior is pinned exactly.
package harness

import (
	"context"
	"fmt"
	"sort"

	"github.com/mtessier/reactsync/internal/chat"
	"github.com/mtessier/reactsync/internal/engine"
	"github.com/mtessier/reactsync/internal/testutil"
)

// TraceEvent is one external role write, in the order the worker
// performed it.
type TraceEvent struct {
	Member string   `json:"member"`
	Roles  []string `json:"roles"`
}

// Result captures a scenario execution: the write trace, the final
// role sets, and any expectation failures.
type Result struct {
	Trace      []TraceEvent `json:"trace"`
	FinalRoles []TraceEvent `json:"final_roles"`

	// Failures lists expectation mismatches. Empty means passed.
	Failures []string `json:"failures,omitempty"`
}

// Passed reports whether every expectation held.
func (r *Result) Passed() bool {
	return len(r.Failures) == 0
}

// Run executes a scenario against a fresh in-memory engine.
//
// Execution:
//  1. Bind every configured symbol and store the link groups
//  2. Seed the member role sets
//  3. Apply every event through the engine handlers, in order
//  4. Drain the mutation queue once
//  5. Collect the write trace and verify expectations
func Run(scenario *Scenario) (*Result, error) {
	store := testutil.NewMemStore()
	reactions := testutil.NewReactions()
	eng := engine.New(engine.Deps{
		Members:   store,
		Reactions: reactions,
		Resolver:  reactions,
		Marker:    reactions,
		Persister: engine.NopPersister{},
		Self:      "harness-self",
	}, engine.WithRate(0))

	ctx := context.Background()

	for i, b := range scenario.Bindings {
		if err := eng.Bind(ctx, b.Ref(), chat.ParseSymbol(b.Symbol), chat.RoleID(b.Role)); err != nil {
			return nil, fmt.Errorf("bindings[%d]: %w", i, err)
		}
	}

	for i, l := range scenario.Links {
		refs := make([]chat.MessageRef, 0, len(l.Messages))
		for _, m := range l.Messages {
			refs = append(refs, chat.MessageRef{
				Server:  chat.ServerID(l.Server),
				Channel: chat.ChannelID(m.Channel),
				Message: chat.MessageID(m.Message),
			})
		}
		if err := eng.Link(ctx, chat.ServerID(l.Server), l.Group, refs); err != nil {
			return nil, fmt.Errorf("links[%d]: %w", i, err)
		}
	}

	seeded := make([]chat.MemberKey, 0, len(scenario.Members))
	for _, m := range scenario.Members {
		key := chat.MemberKey{Server: chat.ServerID(m.Server), Member: chat.MemberID(m.Member)}
		roles := make([]chat.RoleID, 0, len(m.Roles))
		for _, r := range m.Roles {
			roles = append(roles, chat.RoleID(r))
		}
		store.SetRoles(key, roles...)
		seeded = append(seeded, key)
	}

	for i, ev := range scenario.Events {
		event := engine.ReactionEvent{
			Ref:    ev.Ref(),
			Symbol: chat.ParseSymbol(ev.Symbol),
			Member: chat.MemberID(ev.Member),
			Token:  fmt.Sprintf("scenario-%03d", i),
		}
		switch ev.Type {
		case EventReactionAdd:
			eng.OnReactionAdded(ctx, event)
		case EventReactionRemove:
			eng.OnReactionRemoved(ctx, event)
		case EventMessageDelete:
			eng.OnMessageDeleted(ctx, engine.MessageDeleteEvent{Ref: ev.Ref(), Token: event.Token})
		}
	}

	if err := eng.DrainPending(ctx); err != nil {
		return nil, fmt.Errorf("drain queue: %w", err)
	}

	result := &Result{Trace: []TraceEvent{}, FinalRoles: []TraceEvent{}}
	for _, call := range store.ReplaceCalls() {
		result.Trace = append(result.Trace, TraceEvent{
			Member: call.Key.String(),
			Roles:  roleStrings(call.Roles),
		})
	}

	// Final roles for every member the scenario touched, in stable
	// order.
	keys := touchedMembers(seeded, store)
	for _, key := range keys {
		result.FinalRoles = append(result.FinalRoles, TraceEvent{
			Member: key.String(),
			Roles:  roleStrings(store.Roles(key)),
		})
	}

	checkExpectations(scenario, store, result)
	return result, nil
}

// checkExpectations compares the expected role sets with the store.
func checkExpectations(scenario *Scenario, store *testutil.MemStore, result *Result) {
	for _, exp := range scenario.Expect {
		key := chat.MemberKey{Server: chat.ServerID(exp.Server), Member: chat.MemberID(exp.Member)}
		want := chat.NewRoleSet()
		for _, r := range exp.Roles {
			want.Add(chat.RoleID(r))
		}
		got := store.Roles(key)
		if !got.Equal(want) {
			result.Failures = append(result.Failures, fmt.Sprintf(
				"member %s: expected roles %v, got %v",
				key, want.Sorted(), got.Sorted(),
			))
		}
	}
}

// touchedMembers returns every member seeded or written, deduplicated
// and sorted.
func touchedMembers(seeded []chat.MemberKey, store *testutil.MemStore) []chat.MemberKey {
	seen := make(map[chat.MemberKey]bool)
	var keys []chat.MemberKey
	for _, key := range seeded {
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	for _, call := range store.ReplaceCalls() {
		if !seen[call.Key] {
			seen[call.Key] = true
			keys = append(keys, call.Key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

func roleStrings(roles chat.RoleSet) []string {
	sorted := roles.Sorted()
	out := make([]string, 0, len(sorted))
	for _, r := range sorted {
		out = append(out, string(r))
	}
	return out
}
