package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtessier/reactsync/internal/chat"
)

func memberKey(server, member string) chat.MemberKey {
	return chat.MemberKey{Server: chat.ServerID(server), Member: chat.MemberID(member)}
}

func TestMemberQueue_FreshIntentSeedsEveryoneRemoval(t *testing.T) {
	q := newMemberQueue()
	key := memberKey("s1", "alice")

	require.True(t, q.Enqueue(key, chat.NewRoleSet("r1"), chat.NewRoleSet(), 1))

	got, change, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, key, got)
	assert.ElementsMatch(t, []chat.RoleID{"r1"}, change.add.Sorted())
	assert.ElementsMatch(t, []chat.RoleID{"s1"}, change.remove.Sorted(), "everyone pseudo-role must be seeded")
	assert.Equal(t, int64(1), change.seq)
}

func TestMemberQueue_LastWriterWinsPerRole(t *testing.T) {
	t.Run("add then remove nets to remove", func(t *testing.T) {
		q := newMemberQueue()
		key := memberKey("s1", "alice")

		q.Enqueue(key, chat.NewRoleSet("r1"), chat.NewRoleSet(), 1)
		q.Enqueue(key, chat.NewRoleSet(), chat.NewRoleSet("r1"), 2)

		_, change, ok := q.TryDequeue()
		require.True(t, ok)
		assert.True(t, change.add.Empty())
		assert.True(t, change.remove.Contains("r1"))
	})

	t.Run("remove then add nets to add", func(t *testing.T) {
		q := newMemberQueue()
		key := memberKey("s1", "alice")

		q.Enqueue(key, chat.NewRoleSet(), chat.NewRoleSet("r1"), 1)
		q.Enqueue(key, chat.NewRoleSet("r1"), chat.NewRoleSet(), 2)

		_, change, ok := q.TryDequeue()
		require.True(t, ok)
		assert.True(t, change.add.Contains("r1"))
		assert.False(t, change.remove.Contains("r1"))
	})

	t.Run("independent roles accumulate", func(t *testing.T) {
		q := newMemberQueue()
		key := memberKey("s1", "alice")

		q.Enqueue(key, chat.NewRoleSet("r1"), chat.NewRoleSet("r2"), 1)
		q.Enqueue(key, chat.NewRoleSet("r3"), chat.NewRoleSet(), 2)

		_, change, ok := q.TryDequeue()
		require.True(t, ok)
		assert.ElementsMatch(t, []chat.RoleID{"r1", "r3"}, change.add.Sorted())
		assert.True(t, change.remove.Contains("r2"))
	})
}

func TestMemberQueue_OneSlotPerMember(t *testing.T) {
	q := newMemberQueue()
	key := memberKey("s1", "alice")

	q.Enqueue(key, chat.NewRoleSet("r1"), chat.NewRoleSet(), 1)
	q.Enqueue(key, chat.NewRoleSet("r2"), chat.NewRoleSet(), 2)
	q.Enqueue(key, chat.NewRoleSet("r3"), chat.NewRoleSet(), 3)

	assert.Equal(t, 1, q.Len(), "re-enqueues must merge, not append")

	_, change, ok := q.TryDequeue()
	require.True(t, ok)
	assert.ElementsMatch(t, []chat.RoleID{"r1", "r2", "r3"}, change.add.Sorted())
	assert.Equal(t, int64(1), change.seq, "slot keeps its first-enqueue stamp")

	_, _, ok = q.TryDequeue()
	assert.False(t, ok)
}

func TestMemberQueue_FIFOAcrossMembers(t *testing.T) {
	q := newMemberQueue()
	alice := memberKey("s1", "alice")
	bob := memberKey("s1", "bob")
	eve := memberKey("s1", "eve")

	q.Enqueue(alice, chat.NewRoleSet("r1"), chat.NewRoleSet(), 1)
	q.Enqueue(bob, chat.NewRoleSet("r1"), chat.NewRoleSet(), 2)
	// A later merge into alice must not move her slot.
	q.Enqueue(alice, chat.NewRoleSet("r2"), chat.NewRoleSet(), 3)
	q.Enqueue(eve, chat.NewRoleSet("r1"), chat.NewRoleSet(), 4)

	var order []chat.MemberKey
	for {
		key, _, ok := q.TryDequeue()
		if !ok {
			break
		}
		order = append(order, key)
	}
	assert.Equal(t, []chat.MemberKey{alice, bob, eve}, order)
}

func TestMemberQueue_DequeueDetachesIntent(t *testing.T) {
	q := newMemberQueue()
	key := memberKey("s1", "alice")

	q.Enqueue(key, chat.NewRoleSet("r1"), chat.NewRoleSet(), 1)
	_, _, ok := q.TryDequeue()
	require.True(t, ok)

	// A new enqueue after dequeue starts a fresh slot with a fresh
	// everyone seed.
	q.Enqueue(key, chat.NewRoleSet("r2"), chat.NewRoleSet(), 5)
	_, change, ok := q.TryDequeue()
	require.True(t, ok)
	assert.ElementsMatch(t, []chat.RoleID{"r2"}, change.add.Sorted())
	assert.Equal(t, int64(5), change.seq)
}

func TestMemberQueue_RequeueRestoresFailedChange(t *testing.T) {
	q := newMemberQueue()
	key := memberKey("s1", "alice")

	q.Enqueue(key, chat.NewRoleSet("r1"), chat.NewRoleSet("r2"), 1)
	_, change, ok := q.TryDequeue()
	require.True(t, ok)

	require.True(t, q.Requeue(key, change))
	assert.Equal(t, 1, q.Len())

	_, restored, ok := q.TryDequeue()
	require.True(t, ok)
	assert.ElementsMatch(t, []chat.RoleID{"r1"}, restored.add.Sorted())
	assert.ElementsMatch(t, []chat.RoleID{"r2", "s1"}, restored.remove.Sorted())
	assert.Equal(t, int64(1), restored.seq)
}

func TestMemberQueue_RequeueYieldsToNewerIntents(t *testing.T) {
	q := newMemberQueue()
	key := memberKey("s1", "alice")

	q.Enqueue(key, chat.NewRoleSet("r1"), chat.NewRoleSet(), 1)
	_, failed, ok := q.TryDequeue()
	require.True(t, ok)

	// While the write was in flight the member toggled r1 off and
	// asked for r3.
	q.Enqueue(key, chat.NewRoleSet("r3"), chat.NewRoleSet("r1"), 2)

	require.True(t, q.Requeue(key, failed))
	assert.Equal(t, 1, q.Len(), "requeue into a live slot must not double-queue")

	_, merged, ok := q.TryDequeue()
	require.True(t, ok)
	// The newer removal of r1 wins over the failed change's add.
	assert.ElementsMatch(t, []chat.RoleID{"r3"}, merged.add.Sorted())
	assert.True(t, merged.remove.Contains("r1"))
	// The failed change still contributes roles nobody touched since:
	// the everyone seed from its original slot.
	assert.True(t, merged.remove.Contains("s1"))
}

func TestMemberQueue_CloseRejectsEnqueues(t *testing.T) {
	q := newMemberQueue()
	q.Close()

	assert.False(t, q.Enqueue(memberKey("s1", "alice"), chat.NewRoleSet("r1"), chat.NewRoleSet(), 1))
	assert.False(t, q.Requeue(memberKey("s1", "alice"), pendingChange{add: chat.NewRoleSet(), remove: chat.NewRoleSet()}))

	// Close is idempotent.
	q.Close()
}

func TestMemberQueue_WaitSignalsOnEnqueue(t *testing.T) {
	q := newMemberQueue()

	select {
	case <-q.Wait():
		t.Fatal("signal before any enqueue")
	default:
	}

	q.Enqueue(memberKey("s1", "alice"), chat.NewRoleSet("r1"), chat.NewRoleSet(), 1)

	select {
	case <-q.Wait():
	default:
		t.Fatal("no signal after enqueue")
	}
}
