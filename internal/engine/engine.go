package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/mtessier/reactsync/internal/chat"
)

// DefaultMaxProcessedPerSecond is the default worker throughput cap.
// One member key is processed, then the worker sleeps 1/n seconds.
const DefaultMaxProcessedPerSecond = 5

// Engine owns the reaction-to-role synchronization state: binding
// cache, link registry, and the mutation queue drained by Run.
//
// Thread-safety model:
//   - OnReactionAdded / OnReactionRemoved / OnMessageDeleted: safe from
//     any goroutine; they only read the caches and touch the queue
//   - Bind / Unbind / Link / Unlink / Reconcile: safe from any
//     goroutine (infrequent admin operations)
//   - Run: must be called from exactly one goroutine; it is the single
//     serializing writer against the membership store
type Engine struct {
	bindings *BindingCache
	links    *LinkRegistry
	queue    *memberQueue
	clock    *Clock

	members   chat.MembershipStore
	reactions chat.ReactionSource
	resolver  chat.MessageResolver
	marker    chat.Marker
	persister Persister

	// self is the engine's own account; its reactions are never
	// translated into role mutations.
	self chat.MemberID

	// wait is the post-write rate-limit sleep; zero disables
	// throttling.
	wait time.Duration

	// sleep is swappable so tests can observe rate limiting without
	// wall-clock waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// Deps bundles the external collaborators an Engine is built from.
type Deps struct {
	Members   chat.MembershipStore
	Reactions chat.ReactionSource
	Resolver  chat.MessageResolver
	Marker    chat.Marker
	Persister Persister
	Self      chat.MemberID
}

// Option configures optional engine parameters.
type Option func(*Engine)

// WithRate caps the worker at maxPerSecond processed member keys per
// second. 0 disables throttling entirely.
func WithRate(maxPerSecond int) Option {
	return func(e *Engine) {
		if maxPerSecond <= 0 {
			e.wait = 0
			return
		}
		e.wait = time.Second / time.Duration(maxPerSecond)
	}
}

// WithSleeper replaces the rate-limit sleep. Tests use this to record
// sleep durations instead of waiting.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) {
		e.sleep = sleep
	}
}

// New creates an Engine wired to the given collaborators. The engine
// starts empty; call Restore to replay the persisted snapshot before
// starting Run.
func New(deps Deps, opts ...Option) *Engine {
	e := &Engine{
		bindings:  NewBindingCache(),
		links:     nil, // set below, needs the cache
		queue:     newMemberQueue(),
		clock:     NewClock(),
		members:   deps.Members,
		reactions: deps.Reactions,
		resolver:  deps.Resolver,
		marker:    deps.Marker,
		persister: deps.Persister,
		self:      deps.Self,
		sleep:     ctxSleep,
	}
	e.links = NewLinkRegistry(e.bindings.RolesOf)
	WithRate(DefaultMaxProcessedPerSecond)(e)

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Restore replays the persisted snapshot into the caches. Bindings and
// link members whose message no longer resolves are dropped with a
// warning; the replay itself never fails on missing messages.
func (e *Engine) Restore(ctx context.Context) error {
	snap, err := e.persister.LoadSnapshot(ctx)
	if err != nil {
		return err
	}

	resolved := make(map[chat.MessageRef]bool)
	exists := func(ref chat.MessageRef) bool {
		ok, seen := resolved[ref]
		if !seen {
			ok = e.resolver.ResolveMessage(ctx, ref) == nil
			resolved[ref] = ok
		}
		return ok
	}

	for _, rec := range snap.Bindings {
		if !exists(rec.Ref) {
			slog.Warn("dropping binding for missing message",
				"message", rec.Ref,
				"symbol", rec.Symbol,
				"role", rec.Role,
			)
			continue
		}
		if err := e.bindings.Bind(rec.Ref, rec.Symbol, rec.Role); err != nil {
			slog.Warn("skipping duplicate binding in snapshot",
				"message", rec.Ref,
				"symbol", rec.Symbol,
				"error", err,
			)
		}
	}

	for _, rec := range snap.Links {
		var members []chat.MessageRef
		for _, ref := range rec.Messages {
			if !exists(ref) {
				slog.Warn("dropping missing message from link group",
					"server", rec.Server,
					"group", rec.Name,
					"message", ref,
				)
				continue
			}
			members = append(members, ref)
		}
		if len(members) == 0 {
			slog.Warn("dropping empty link group", "server", rec.Server, "group", rec.Name)
			continue
		}
		e.links.Link(rec.Server, rec.Name, members)
	}

	slog.Info("snapshot restored",
		"bindings", len(snap.Bindings),
		"links", len(snap.Links),
	)
	return nil
}

// Run starts the single serializing worker loop. Blocks until the
// context is cancelled or Stop() is called.
//
// One iteration: pop a member key, read the member's live role set,
// compute (current ∪ add) \ remove, replace in one external write, then
// sleep the rate interval. Store failures re-merge the change and
// re-enqueue the key; an in-flight change is always either applied or
// back in the queue, never lost.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("worker starting", "wait", e.wait)

	for {
		// With throttling disabled there is no rate sleep, so this is
		// the only cancellation point on the busy path. A failing
		// store re-enqueues keys and would otherwise keep the loop
		// spinning past cancellation.
		if err := ctx.Err(); err != nil {
			slog.Info("worker stopping: context cancelled")
			e.queue.Close()
			return err
		}

		key, change, ok := e.queue.TryDequeue()
		if ok {
			e.processMember(ctx, key, change)

			// Fixed sleep after every processed key, success or
			// failure. This is the only throughput governor.
			if e.wait > 0 {
				if err := e.sleep(ctx, e.wait); err != nil {
					slog.Info("worker stopping: context cancelled during rate sleep")
					e.queue.Close()
					return err
				}
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("worker stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes when the queue closes, so
			// this fires immediately after Stop().
			if e.queue.Len() == 0 {
				slog.Info("worker stopping: queue closed")
				return nil
			}
		}
	}
}

// DrainPending synchronously processes member keys until the queue is
// empty, applying the same per-key logic and rate sleep as Run. Used
// by the scenario harness and tests, where a deterministic "everything
// queued so far has been applied" point is needed. Re-enqueued
// failures are processed again before returning.
func (e *Engine) DrainPending(ctx context.Context) error {
	for {
		key, change, ok := e.queue.TryDequeue()
		if !ok {
			return nil
		}
		if err := ctx.Err(); err != nil {
			e.queue.Requeue(key, change)
			return err
		}
		e.processMember(ctx, key, change)
		if e.wait > 0 {
			if err := e.sleep(ctx, e.wait); err != nil {
				return err
			}
		}
	}
}

// Stop gracefully shuts the worker down by closing the queue.
func (e *Engine) Stop() {
	e.queue.Close()
}

// QueueLen returns the number of member keys awaiting processing.
// Useful for monitoring and tests.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// processMember applies one popped change: read live roles, fold the
// change on top, write back. On any store failure the change is
// re-merged and the key re-enqueued; other members keep making
// progress.
func (e *Engine) processMember(ctx context.Context, key chat.MemberKey, change pendingChange) {
	current, err := e.members.GetRoles(ctx, key)
	if err != nil {
		slog.Warn("role read failed, re-enqueueing",
			"member", key,
			"seq", change.seq,
			"error", err,
		)
		e.queue.Requeue(key, change)
		return
	}

	final := current.Union(change.add).Diff(change.remove)
	if final.Equal(current) {
		// Coalescing netted out to nothing; skip the external write.
		slog.Debug("change is a no-op, skipping write",
			"member", key,
			"seq", change.seq,
		)
		return
	}

	if err := e.members.ReplaceRoles(ctx, key, final); err != nil {
		if chat.IsForbidden(err) {
			slog.Warn("role write forbidden, re-enqueueing",
				"member", key,
				"seq", change.seq,
				"error", err,
			)
		} else {
			slog.Warn("role write failed, re-enqueueing",
				"member", key,
				"seq", change.seq,
				"error", err,
			)
		}
		e.queue.Requeue(key, change)
		return
	}

	slog.Info("roles updated",
		"member", key,
		"seq", change.seq,
		"added", change.add.Sorted(),
		"removed", change.remove.Sorted(),
	)
}

// enqueue stamps a fresh slot sequence and merges the change into the
// member's pending intent.
func (e *Engine) enqueue(key chat.MemberKey, add, remove chat.RoleSet) {
	e.queue.Enqueue(key, add, remove, e.clock.Next())
}

// ctxSleep sleeps for d or until the context is cancelled.
func ctxSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
