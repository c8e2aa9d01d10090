package chat

import "context"

// MembershipStore is the external system of record for member role
// sets. It exposes only full-set read and full-set replace; there is no
// atomic add/remove. This constraint is what forces the engine's
// single serialized writer.
type MembershipStore interface {
	// GetRoles returns the member's current live role set.
	GetRoles(ctx context.Context, key MemberKey) (RoleSet, error)

	// ReplaceRoles overwrites the member's role set with exactly the
	// given set. Failures are *StoreError values with kind Forbidden
	// or Transient.
	ReplaceRoles(ctx context.Context, key MemberKey, roles RoleSet) error
}

// Reaction summarizes one symbol's aggregate presence on a message.
type Reaction struct {
	Symbol Symbol
	Count  int
}

// ReactionSource lists and removes existing reactions on a message.
// Used by the reconciliation scanner and the unbind cleanup pass, which
// page through potentially thousands of reactors.
type ReactionSource interface {
	// ListReactions returns the per-symbol reaction summaries of a
	// message.
	ListReactions(ctx context.Context, ref MessageRef) ([]Reaction, error)

	// ListReactors returns up to limit members who reacted with the
	// symbol, starting after the given member ID (empty for the first
	// page).
	ListReactors(ctx context.Context, ref MessageRef, symbol Symbol, after MemberID, limit int) ([]MemberID, error)

	// RemoveReaction removes one member's reaction with the symbol.
	RemoveReaction(ctx context.Context, ref MessageRef, symbol Symbol, member MemberID) error
}

// Marker places the engine's own reaction on a message. It doubles as
// the bind-time validity probe: a symbol the platform rejects cannot be
// bound.
type Marker interface {
	AddReaction(ctx context.Context, ref MessageRef, symbol Symbol) error
}

// MessageResolver checks that a message still exists. Startup replay
// drops bindings whose message no longer resolves; linking validates
// every referenced message up front.
type MessageResolver interface {
	// ResolveMessage returns nil if the message exists and an error
	// otherwise.
	ResolveMessage(ctx context.Context, ref MessageRef) error
}
