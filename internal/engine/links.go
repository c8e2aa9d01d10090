package engine

import (
	"sync"

	"github.com/mtessier/reactsync/internal/chat"
)

// LinkRegistry maintains named groups of messages whose bound roles are
// mutually exclusive, and a precomputed per-message exclusion set.
//
// Exclusivity lookups sit on the event hot path (every reaction needs
// the exclusion set of its message), so the union is computed eagerly
// whenever group membership or the underlying bindings change, never on
// lookup. A message may participate in several groups; its exclusion
// set is the union across all of them.
//
// Read-mostly after startup; a plain RWMutex suffices.
type LinkRegistry struct {
	mu sync.RWMutex

	// groups: server -> group name -> member messages, in insertion
	// order (preserved for snapshots).
	groups map[chat.ServerID]map[string][]chat.MessageRef

	// exclusive: message -> union of roles bound across every group
	// the message participates in.
	exclusive map[chat.MessageRef]chat.RoleSet

	// rolesOf reports the roles bound on a message; wired to
	// BindingCache.RolesOf.
	rolesOf func(chat.MessageRef) chat.RoleSet
}

// NewLinkRegistry creates an empty registry. rolesOf is consulted on
// every recompute to read the current bindings of a member message.
func NewLinkRegistry(rolesOf func(chat.MessageRef) chat.RoleSet) *LinkRegistry {
	return &LinkRegistry{
		groups:    make(map[chat.ServerID]map[string][]chat.MessageRef),
		exclusive: make(map[chat.MessageRef]chat.RoleSet),
		rolesOf:   rolesOf,
	}
}

// Link stores (or replaces) the named group and recomputes the
// exclusion sets of every affected message. Message resolution is the
// caller's concern; the registry only manages set arithmetic.
func (l *LinkRegistry) Link(server chat.ServerID, name string, refs []chat.MessageRef) {
	l.mu.Lock()
	defer l.mu.Unlock()

	byName, ok := l.groups[server]
	if !ok {
		byName = make(map[string][]chat.MessageRef)
		l.groups[server] = byName
	}

	// Replacing a group can shrink it; previous members need their
	// exclusion sets recomputed too.
	affected := append([]chat.MessageRef{}, byName[name]...)
	affected = append(affected, refs...)

	byName[name] = append([]chat.MessageRef{}, refs...)
	l.recomputeLocked(affected)
}

// Unlink removes the named group. Each former member's exclusion set is
// recomputed across the remaining groups that still reference it - not
// blindly deleted - so a message in two groups keeps the exclusivity
// contributed by the surviving one. Fails with NotLinked if the group
// does not exist.
func (l *LinkRegistry) Unlink(server chat.ServerID, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	byName := l.groups[server]
	members, ok := byName[name]
	if !ok {
		return newNotLinked(name)
	}
	delete(byName, name)
	l.recomputeLocked(members)
	return nil
}

// Exclusivity returns the union of roles that are mutually exclusive
// with any role bound on the message. Empty set if the message is
// unlinked. O(1) plus the copy.
func (l *LinkRegistry) Exclusivity(ref chat.MessageRef) chat.RoleSet {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if set, ok := l.exclusive[ref]; ok {
		return set.Clone()
	}
	return chat.NewRoleSet()
}

// Linked reports whether the message participates in any link group.
func (l *LinkRegistry) Linked(ref chat.MessageRef) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.exclusive[ref]
	return ok
}

// RecomputeMessage refreshes the exclusion sets of every group the
// message participates in. Called after a binding on the message is
// added or removed, so the mutual-exclusion invariant tracks the live
// bindings rather than the bindings at link time.
func (l *LinkRegistry) RecomputeMessage(ref chat.MessageRef) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.recomputeLocked([]chat.MessageRef{ref})
}

// PruneMessage removes a deleted message from every group referencing
// it and recomputes the survivors' exclusion sets.
func (l *LinkRegistry) PruneMessage(ref chat.MessageRef) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var affected []chat.MessageRef
	for _, byName := range l.groups {
		for name, members := range byName {
			kept := members[:0]
			pruned := false
			for _, m := range members {
				if m == ref {
					pruned = true
					continue
				}
				kept = append(kept, m)
			}
			if pruned {
				byName[name] = kept
				affected = append(affected, kept...)
			}
		}
	}
	delete(l.exclusive, ref)
	l.recomputeLocked(affected)
}

// Links returns every group as flat records in deterministic order.
// Used to build persistence snapshots.
func (l *LinkRegistry) Links() []LinkRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []LinkRecord
	for server, byName := range l.groups {
		for name, members := range byName {
			out = append(out, LinkRecord{
				Server:   server,
				Name:     name,
				Messages: append([]chat.MessageRef{}, members...),
			})
		}
	}
	sortLinkRecords(out)
	return out
}

// recomputeLocked rebuilds the exclusion set of every message that
// shares a group with any of the seed messages. Caller must hold the
// write lock.
//
// For each seed we walk the groups referencing it; every member of
// those groups gets exclusive[m] = union of rolesOf over all groups m
// participates in. Messages left with no group lose their entry so
// Exclusivity returns the empty set.
func (l *LinkRegistry) recomputeLocked(seeds []chat.MessageRef) {
	pending := make(map[chat.MessageRef]struct{}, len(seeds))
	for _, s := range seeds {
		pending[s] = struct{}{}
	}
	// Any group containing a seed dirties all its members.
	for _, byName := range l.groups {
		for _, members := range byName {
			touched := false
			for _, m := range members {
				if _, ok := pending[m]; ok {
					touched = true
					break
				}
			}
			if touched {
				for _, m := range members {
					pending[m] = struct{}{}
				}
			}
		}
	}

	for ref := range pending {
		union := chat.NewRoleSet()
		member := false
		for _, byName := range l.groups {
			for _, members := range byName {
				inGroup := false
				for _, m := range members {
					if m == ref {
						inGroup = true
						break
					}
				}
				if !inGroup {
					continue
				}
				member = true
				for _, m := range members {
					union.AddAll(l.rolesOf(m))
				}
			}
		}
		if member {
			l.exclusive[ref] = union
		} else {
			delete(l.exclusive, ref)
		}
	}
}
