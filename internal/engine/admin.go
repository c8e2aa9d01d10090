package engine

import (
	"context"
	"log/slog"

	"github.com/mtessier/reactsync/internal/chat"
)

// cleanupPageSize is how many reactors are removed per page during the
// post-unbind reaction cleanup.
const cleanupPageSize = 100

// Bind maps a reaction symbol on a message to a role.
//
// The symbol is validated by placing the engine's marker reaction on
// the message: a symbol the platform rejects fails with UnknownSymbol
// before anything is mutated. Fails with AlreadyBound if the pair is
// already mapped. The new configuration is persisted, and if the
// message is part of a link group the group's exclusion set picks up
// the new role.
func (e *Engine) Bind(ctx context.Context, ref chat.MessageRef, symbol chat.Symbol, role chat.RoleID) error {
	if _, bound := e.bindings.Lookup(ref, symbol); bound {
		return newAlreadyBound(ref, symbol)
	}

	if err := e.marker.AddReaction(ctx, ref, symbol); err != nil {
		return newUnknownSymbol(ref, symbol, err)
	}

	if err := e.bindings.Bind(ref, symbol, role); err != nil {
		return err
	}
	e.links.RecomputeMessage(ref)

	if err := e.persist(ctx); err != nil {
		return err
	}

	slog.Info("symbol bound", "message", ref, "symbol", symbol, "role", role)
	return nil
}

// Unbind removes the binding for a (message, symbol) pair and returns
// the role it granted. Fails with NotBound if absent. Persists the
// shrunken configuration and refreshes any link group exclusion set
// the message contributes to.
func (e *Engine) Unbind(ctx context.Context, ref chat.MessageRef, symbol chat.Symbol) (chat.RoleID, error) {
	role, err := e.bindings.Unbind(ref, symbol)
	if err != nil {
		return "", err
	}
	e.links.RecomputeMessage(ref)

	if err := e.persist(ctx); err != nil {
		return role, err
	}

	slog.Info("symbol unbound", "message", ref, "symbol", symbol, "role", role)
	return role, nil
}

// SymbolFor returns the symbol a role is bound under on the message.
// Admin layers use it to unbind by role.
func (e *Engine) SymbolFor(ref chat.MessageRef, role chat.RoleID) (chat.Symbol, bool) {
	return e.bindings.SymbolFor(ref, role)
}

// Lookup returns the role bound to the (message, symbol) pair.
func (e *Engine) Lookup(ref chat.MessageRef, symbol chat.Symbol) (chat.RoleID, bool) {
	return e.bindings.Lookup(ref, symbol)
}

// RolesOf returns every role bound anywhere on the message.
func (e *Engine) RolesOf(ref chat.MessageRef) chat.RoleSet {
	return e.bindings.RolesOf(ref)
}

// Exclusivity returns the message's link-group exclusion set.
func (e *Engine) Exclusivity(ref chat.MessageRef) chat.RoleSet {
	return e.links.Exclusivity(ref)
}

// CleanupReactions removes every reactor's reaction with the given
// symbol from a message, paging through the reactor list. Run after an
// unbind so stale reactions do not linger on a message that no longer
// grants anything. progress (optional) is invoked after each page with
// the running and total counts.
//
// Returns the number of reactions removed. Per-reactor failures are
// logged and skipped; a page-level listing failure aborts.
func (e *Engine) CleanupReactions(ctx context.Context, ref chat.MessageRef, symbol chat.Symbol, progress func(removed, total int)) (int, error) {
	summaries, err := e.reactions.ListReactions(ctx, ref)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, r := range summaries {
		if r.Symbol == symbol {
			total = r.Count
			break
		}
	}

	removed := 0
	after := chat.MemberID("")
	for {
		page, err := e.reactions.ListReactors(ctx, ref, symbol, after, cleanupPageSize)
		if err != nil {
			return removed, err
		}
		if len(page) == 0 {
			break
		}
		for _, member := range page {
			if err := e.reactions.RemoveReaction(ctx, ref, symbol, member); err != nil {
				slog.Warn("failed to remove reaction during cleanup",
					"message", ref,
					"symbol", symbol,
					"member", member,
					"error", err,
				)
				continue
			}
			removed++
		}
		after = page[len(page)-1]
		if progress != nil {
			progress(removed, total)
		}
		if len(page) < cleanupPageSize {
			break
		}
	}

	slog.Info("reaction cleanup finished",
		"message", ref,
		"symbol", symbol,
		"removed", removed,
	)
	return removed, nil
}

// Link stores a named group of messages whose bound roles become
// mutually exclusive. Every referenced message must resolve; the first
// unresolvable one fails the whole operation with PairInvalid and
// nothing is mutated.
func (e *Engine) Link(ctx context.Context, server chat.ServerID, name string, refs []chat.MessageRef) error {
	for _, ref := range refs {
		if err := e.resolver.ResolveMessage(ctx, ref); err != nil {
			return newPairInvalid(ref, err)
		}
	}

	e.links.Link(server, name, refs)

	if err := e.persist(ctx); err != nil {
		return err
	}

	slog.Info("link group stored", "server", server, "group", name, "messages", len(refs))
	return nil
}

// Unlink removes a named link group. Former members keep whatever
// exclusivity other groups still give them. Fails with NotLinked if
// the group does not exist.
func (e *Engine) Unlink(ctx context.Context, server chat.ServerID, name string) error {
	if err := e.links.Unlink(server, name); err != nil {
		return err
	}

	if err := e.persist(ctx); err != nil {
		return err
	}

	slog.Info("link group removed", "server", server, "group", name)
	return nil
}
