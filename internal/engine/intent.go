package engine

import (
	"sync"

	"github.com/mtessier/reactsync/internal/chat"
)

// pendingChange is the popped form of a member intent: the net roles to
// add and remove, plus the sequence number stamped when the slot was
// created (FIFO position across members).
type pendingChange struct {
	add    chat.RoleSet
	remove chat.RoleSet
	seq    int64
}

// intent aggregates the pending role mutations of one member while the
// member's key waits in the FIFO. An intent exists if and only if the
// key is currently queued or being retried.
type intent struct {
	add    chat.RoleSet
	remove chat.RoleSet
	seq    int64
}

// memberQueue is the thread-safe aggregation point between concurrent
// event handlers and the single worker: a map of per-member intents
// plus a FIFO of member keys.
//
// INVARIANT: at most one live intent, and at most one FIFO entry, per
// member key. A second enqueue for a queued member merges into the
// existing intent instead of adding a second entry.
//
// The queue is unbounded so a burst of reactions never blocks the
// event listener. A buffered signal channel (size 1) lets the worker
// wait context-aware; multiple signals coalesce.
type memberQueue struct {
	mu      sync.Mutex
	intents map[chat.MemberKey]*intent
	fifo    []chat.MemberKey
	closed  bool
	signal  chan struct{}
}

// newMemberQueue creates an empty queue.
func newMemberQueue() *memberQueue {
	return &memberQueue{
		intents: make(map[chat.MemberKey]*intent),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue merges a requested change into the member's pending intent,
// creating the intent and queueing the key if none exists. seq stamps
// newly created slots (from the engine clock).
//
// A fresh intent seeds its remove set with the server's everyone
// pseudo-role so a write can never accidentally grant the base role.
//
// The merge is last-writer-wins per role, applied in call order:
//
//	intent.remove -= add
//	intent.add    -= remove
//	intent.add    |= add
//	intent.remove |= remove
//
// so whichever of add/remove mentioned a role most recently decides
// its fate, and any number of enqueues before the worker drains the
// key collapse into one net change.
//
// Thread-safe: called from any handler goroutine. Returns false if the
// queue is closed.
func (q *memberQueue) Enqueue(key chat.MemberKey, add, remove chat.RoleSet, seq int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	it, ok := q.intents[key]
	if !ok {
		it = &intent{
			add:    chat.NewRoleSet(),
			remove: chat.NewRoleSet(chat.EveryoneRole(key.Server)),
			seq:    seq,
		}
		q.intents[key] = it
		q.fifo = append(q.fifo, key)
	}

	it.remove.RemoveAll(add)
	it.add.RemoveAll(remove)
	it.add.AddAll(add)
	it.remove.AddAll(remove)

	q.notifyLocked()
	return true
}

// Requeue puts a failed change back after the worker could not apply
// it. The change re-merges into the member's intent with the OPPOSITE
// precedence of Enqueue: intents that arrived while the write was in
// flight are newer than the failed change, so for any role the live
// intent already mentions, the live intent wins and the failed change
// contributes only the roles nobody has touched since.
//
// If no intent exists (the common case), a fresh slot is created and
// the key rejoins the FIFO at the back. The everyone seed is not
// re-added: the failed change's remove set already carries it from its
// original enqueue.
func (q *memberQueue) Requeue(key chat.MemberKey, change pendingChange) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	it, ok := q.intents[key]
	if !ok {
		it = &intent{
			add:    chat.NewRoleSet(),
			remove: chat.NewRoleSet(),
			seq:    change.seq,
		}
		q.intents[key] = it
		q.fifo = append(q.fifo, key)
	}

	for role := range change.add {
		if it.add.Contains(role) || it.remove.Contains(role) {
			continue
		}
		it.add.Add(role)
	}
	for role := range change.remove {
		if it.add.Contains(role) || it.remove.Contains(role) {
			continue
		}
		it.remove.Add(role)
	}

	q.notifyLocked()
	return true
}

// TryDequeue pops the front member key and its intent without
// blocking. Returns ok=false if the queue is empty. The intent is
// removed from the map: from this moment the worker owns the change,
// and a concurrent Enqueue for the same member starts a fresh slot.
func (q *memberQueue) TryDequeue() (chat.MemberKey, pendingChange, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.fifo) == 0 {
		return chat.MemberKey{}, pendingChange{}, false
	}

	key := q.fifo[0]
	// Nil out the slot so the backing array does not retain the key
	// past its dequeue.
	q.fifo[0] = chat.MemberKey{}
	if len(q.fifo) == 1 {
		q.fifo = q.fifo[:0]
	} else {
		q.fifo = q.fifo[1:]
	}

	it := q.intents[key]
	delete(q.intents, key)
	if it == nil {
		// Should not happen (invariant: queued key has an intent),
		// but an empty change is safe to hand out.
		return key, pendingChange{add: chat.NewRoleSet(), remove: chat.NewRoleSet()}, true
	}
	return key, pendingChange{add: it.add, remove: it.remove, seq: it.seq}, true
}

// Wait returns a channel that signals when entries may be available.
// The channel closes when the queue closes, waking all waiters.
func (q *memberQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued member keys.
func (q *memberQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.fifo)
}

// Close marks the queue closed and wakes any blocked waiter. Further
// enqueues are rejected.
func (q *memberQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// notifyLocked signals availability without blocking; the size-1
// buffer coalesces bursts. Caller must hold the mutex.
func (q *memberQueue) notifyLocked() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
