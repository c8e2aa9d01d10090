package engine

import (
	"context"
	"log/slog"

	"github.com/mtessier/reactsync/internal/chat"
)

// ReactionEvent is an inbound reaction added/removed notification.
type ReactionEvent struct {
	Ref    chat.MessageRef
	Symbol chat.Symbol
	Member chat.MemberID

	// Token correlates the log lines of one event from decode to
	// store write.
	Token string
}

// MessageDeleteEvent is an inbound message deletion notification.
type MessageDeleteEvent struct {
	Ref chat.MessageRef

	// Token correlates the log lines of one event.
	Token string
}

// OnReactionAdded translates a reaction into a pending role grant.
//
// The engine's own marker reactions are ignored. If the symbol is
// bound, the member's intent gains the bound role and loses every
// other role in the message's exclusion set. The bound role itself is
// carved out of the exclusion set first so a single event never asks
// to both add and remove the same role.
//
// Never blocks on the worker: the only shared state touched is the
// queue. Panics are caught and logged so one bad event cannot kill the
// event subscription.
func (e *Engine) OnReactionAdded(ctx context.Context, ev ReactionEvent) {
	defer e.recoverHandler("reaction_added", ev.Token)

	if ev.Member == e.self {
		return
	}

	role, ok := e.bindings.Lookup(ev.Ref, ev.Symbol)
	if !ok {
		return
	}

	remove := e.links.Exclusivity(ev.Ref)
	remove.Discard(role)

	key := chat.MemberKey{Server: ev.Ref.Server, Member: ev.Member}
	e.enqueue(key, chat.NewRoleSet(role), remove)

	slog.Debug("reaction added, grant queued",
		"token", ev.Token,
		"member", key,
		"message", ev.Ref,
		"symbol", ev.Symbol,
		"role", role,
		"exclusive", remove.Sorted(),
	)
}

// OnReactionRemoved translates a removed reaction into a pending role
// revocation.
//
// If the removed reaction was the engine's own marker and the binding
// still exists, the marker is re-added (self-healing against a
// moderator's accidental removal). Otherwise the bound role is queued
// for removal. Removing a reaction never re-applies exclusivity:
// dropping one role must not auto-restore a previously excluded one.
func (e *Engine) OnReactionRemoved(ctx context.Context, ev ReactionEvent) {
	defer e.recoverHandler("reaction_removed", ev.Token)

	if ev.Member == e.self {
		if _, bound := e.bindings.Lookup(ev.Ref, ev.Symbol); !bound {
			return
		}
		if err := e.marker.AddReaction(ctx, ev.Ref, ev.Symbol); err != nil {
			slog.Error("failed to restore marker reaction",
				"token", ev.Token,
				"message", ev.Ref,
				"symbol", ev.Symbol,
				"error", err,
			)
			return
		}
		slog.Info("restored accidentally removed marker reaction",
			"token", ev.Token,
			"message", ev.Ref,
			"symbol", ev.Symbol,
		)
		return
	}

	role, ok := e.bindings.Lookup(ev.Ref, ev.Symbol)
	if !ok {
		return
	}

	key := chat.MemberKey{Server: ev.Ref.Server, Member: ev.Member}
	e.enqueue(key, chat.NewRoleSet(), chat.NewRoleSet(role))

	slog.Debug("reaction removed, revocation queued",
		"token", ev.Token,
		"member", key,
		"message", ev.Ref,
		"symbol", ev.Symbol,
		"role", role,
	)
}

// OnMessageDeleted cascades a message deletion: every binding on the
// message is removed and the message is pruned from every link group
// (through the recompute path, so co-linked messages keep a correct
// exclusion set). The shrunken configuration is persisted.
func (e *Engine) OnMessageDeleted(ctx context.Context, ev MessageDeleteEvent) {
	defer e.recoverHandler("message_deleted", ev.Token)

	wasLinked := e.links.Linked(ev.Ref)
	removed := e.bindings.RemoveMessage(ev.Ref)
	e.links.PruneMessage(ev.Ref)
	if removed == 0 && !wasLinked {
		return
	}

	if err := e.persist(ctx); err != nil {
		slog.Error("failed to persist after message deletion",
			"token", ev.Token,
			"message", ev.Ref,
			"error", err,
		)
	}

	slog.Info("message deleted, bindings removed",
		"token", ev.Token,
		"message", ev.Ref,
		"bindings", removed,
	)
}

// recoverHandler absorbs a handler panic. An unexpected fault in one
// event must not terminate the subscription or affect other events.
func (e *Engine) recoverHandler(event, token string) {
	if r := recover(); r != nil {
		slog.Error("event handler panicked",
			"event", event,
			"token", token,
			"panic", r,
		)
	}
}
