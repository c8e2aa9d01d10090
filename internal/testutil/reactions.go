package testutil

import (
	"context"
	"sync"

	"github.com/mtessier/reactsync/internal/chat"
)

// Reactions is an in-memory chat.ReactionSource, chat.Marker, and
// chat.MessageResolver backed by static reactor lists.
//
// Thread-safety: all methods are safe for concurrent use.
type Reactions struct {
	mu sync.Mutex

	// reactors: message -> symbol -> reactor IDs in listing order.
	reactors map[chat.MessageRef]map[chat.Symbol][]chat.MemberID

	// missing messages fail ResolveMessage.
	missing map[chat.MessageRef]bool

	// markErr, when set, fails AddReaction (bind-time probe).
	markErr error

	marks   []Mark
	removed []Mark
}

// Mark records one AddReaction or RemoveReaction call.
type Mark struct {
	Ref    chat.MessageRef
	Symbol chat.Symbol
	Member chat.MemberID // empty for AddReaction
}

// NewReactions creates an empty source.
func NewReactions() *Reactions {
	return &Reactions{
		reactors: make(map[chat.MessageRef]map[chat.Symbol][]chat.MemberID),
		missing:  make(map[chat.MessageRef]bool),
	}
}

// SetReactors seeds the reactor list of a (message, symbol) pair.
func (r *Reactions) SetReactors(ref chat.MessageRef, symbol chat.Symbol, members ...chat.MemberID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bySymbol, ok := r.reactors[ref]
	if !ok {
		bySymbol = make(map[chat.Symbol][]chat.MemberID)
		r.reactors[ref] = bySymbol
	}
	bySymbol[symbol] = append([]chat.MemberID{}, members...)
}

// SetMissing marks a message as unresolvable.
func (r *Reactions) SetMissing(ref chat.MessageRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.missing[ref] = true
}

// FailMarksWith makes AddReaction fail with err (nil to reset).
func (r *Reactions) FailMarksWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markErr = err
}

// Marks returns every recorded AddReaction call.
func (r *Reactions) Marks() []Mark {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Mark{}, r.marks...)
}

// Removed returns every recorded RemoveReaction call.
func (r *Reactions) Removed() []Mark {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Mark{}, r.removed...)
}

// ListReactions implements chat.ReactionSource.
func (r *Reactions) ListReactions(_ context.Context, ref chat.MessageRef) ([]chat.Reaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []chat.Reaction
	for symbol, members := range r.reactors[ref] {
		out = append(out, chat.Reaction{Symbol: symbol, Count: len(members)})
	}
	return out, nil
}

// ListReactors implements chat.ReactionSource, paging through the
// seeded reactor list.
func (r *Reactions) ListReactors(_ context.Context, ref chat.MessageRef, symbol chat.Symbol, after chat.MemberID, limit int) ([]chat.MemberID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.reactors[ref][symbol]
	start := 0
	if after != "" {
		for i, m := range members {
			if m == after {
				start = i + 1
				break
			}
		}
	}
	end := start + limit
	if end > len(members) {
		end = len(members)
	}
	if start >= len(members) {
		return nil, nil
	}
	return append([]chat.MemberID{}, members[start:end]...), nil
}

// RemoveReaction implements chat.ReactionSource.
func (r *Reactions) RemoveReaction(_ context.Context, ref chat.MessageRef, symbol chat.Symbol, member chat.MemberID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, Mark{Ref: ref, Symbol: symbol, Member: member})
	return nil
}

// AddReaction implements chat.Marker.
func (r *Reactions) AddReaction(_ context.Context, ref chat.MessageRef, symbol chat.Symbol) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markErr != nil {
		return r.markErr
	}
	r.marks = append(r.marks, Mark{Ref: ref, Symbol: symbol})
	return nil
}

// ResolveMessage implements chat.MessageResolver.
func (r *Reactions) ResolveMessage(_ context.Context, ref chat.MessageRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.missing[ref] {
		return chat.NewTransient("message not found")
	}
	return nil
}
