package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/mtessier/reactsync/internal/chat"
)

// BindingRecord is one persisted binding: a (message, symbol) pair and
// the role it grants.
type BindingRecord struct {
	Ref    chat.MessageRef
	Symbol chat.Symbol
	Role   chat.RoleID
}

// LinkRecord is one persisted link group: a server-scoped name and its
// member messages in declaration order.
type LinkRecord struct {
	Server   chat.ServerID
	Name     string
	Messages []chat.MessageRef
}

// Snapshot is the full persisted configuration: every binding and every
// link group. Saved after each mutation, loaded once at startup.
type Snapshot struct {
	Bindings []BindingRecord
	Links    []LinkRecord
}

// Persister stores and reloads configuration snapshots. Implemented by
// the sqlite store (production) and in-memory fakes (tests).
type Persister interface {
	SaveSnapshot(ctx context.Context, snap Snapshot) error
	LoadSnapshot(ctx context.Context) (Snapshot, error)
}

// NopPersister discards saves and loads an empty snapshot. Used by
// tests and the scenario harness, where durability is irrelevant.
type NopPersister struct{}

// SaveSnapshot discards the snapshot.
func (NopPersister) SaveSnapshot(context.Context, Snapshot) error { return nil }

// LoadSnapshot returns an empty snapshot.
func (NopPersister) LoadSnapshot(context.Context) (Snapshot, error) { return Snapshot{}, nil }

// snapshot assembles the current configuration from the caches.
func (e *Engine) snapshot() Snapshot {
	return Snapshot{
		Bindings: e.bindings.Bindings(),
		Links:    e.links.Links(),
	}
}

// persist saves the current configuration. Called after every binding
// or link mutation.
func (e *Engine) persist(ctx context.Context) error {
	if err := e.persister.SaveSnapshot(ctx, e.snapshot()); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func sortBindingRecords(recs []BindingRecord) {
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Ref != b.Ref {
			return a.Ref.String() < b.Ref.String()
		}
		return a.Symbol < b.Symbol
	})
}

func sortLinkRecords(recs []LinkRecord) {
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Server != b.Server {
			return a.Server < b.Server
		}
		return a.Name < b.Name
	})
}
