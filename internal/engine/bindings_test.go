package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtessier/reactsync/internal/chat"
)

func msgRef(server, channel, message string) chat.MessageRef {
	return chat.MessageRef{
		Server:  chat.ServerID(server),
		Channel: chat.ChannelID(channel),
		Message: chat.MessageID(message),
	}
}

func TestBindingCache_RoundTrip(t *testing.T) {
	c := NewBindingCache()
	ref := msgRef("s1", "c1", "m1")

	require.NoError(t, c.Bind(ref, "👍", "r1"))

	role, ok := c.Lookup(ref, "👍")
	require.True(t, ok)
	assert.Equal(t, chat.RoleID("r1"), role)

	unbound, err := c.Unbind(ref, "👍")
	require.NoError(t, err)
	assert.Equal(t, chat.RoleID("r1"), unbound)

	_, ok = c.Lookup(ref, "👍")
	assert.False(t, ok)
}

func TestBindingCache_AlreadyBound(t *testing.T) {
	c := NewBindingCache()
	ref := msgRef("s1", "c1", "m1")

	require.NoError(t, c.Bind(ref, "👍", "r1"))

	err := c.Bind(ref, "👍", "r2")
	require.Error(t, err)
	assert.True(t, IsAlreadyBound(err))

	// The original binding is untouched.
	role, ok := c.Lookup(ref, "👍")
	require.True(t, ok)
	assert.Equal(t, chat.RoleID("r1"), role)
}

func TestBindingCache_NotBound(t *testing.T) {
	c := NewBindingCache()

	_, err := c.Unbind(msgRef("s1", "c1", "m1"), "👍")
	require.Error(t, err)
	assert.True(t, IsNotBound(err))
}

func TestBindingCache_LookupMissesAreCheap(t *testing.T) {
	c := NewBindingCache()

	_, ok := c.Lookup(msgRef("s1", "c1", "nope"), "👍")
	assert.False(t, ok)
	assert.True(t, c.RolesOf(msgRef("s1", "c1", "nope")).Empty())
}

func TestBindingCache_RolesOf(t *testing.T) {
	c := NewBindingCache()
	ref := msgRef("s1", "c1", "m1")

	require.NoError(t, c.Bind(ref, "👍", "r1"))
	require.NoError(t, c.Bind(ref, "🔥", "r2"))
	require.NoError(t, c.Bind(msgRef("s1", "c1", "other"), "👍", "r9"))

	assert.ElementsMatch(t, []chat.RoleID{"r1", "r2"}, c.RolesOf(ref).Sorted())
}

func TestBindingCache_RemoveMessageCascades(t *testing.T) {
	c := NewBindingCache()
	ref := msgRef("s1", "c1", "m1")

	require.NoError(t, c.Bind(ref, "👍", "r1"))
	require.NoError(t, c.Bind(ref, "🔥", "r2"))

	assert.Equal(t, 2, c.RemoveMessage(ref))
	assert.True(t, c.RolesOf(ref).Empty())
	assert.Equal(t, 0, c.RemoveMessage(ref))
}

func TestBindingCache_SymbolFor(t *testing.T) {
	c := NewBindingCache()
	ref := msgRef("s1", "c1", "m1")

	require.NoError(t, c.Bind(ref, "👍", "r1"))

	symbol, ok := c.SymbolFor(ref, "r1")
	require.True(t, ok)
	assert.Equal(t, chat.Symbol("👍"), symbol)

	_, ok = c.SymbolFor(ref, "r2")
	assert.False(t, ok)
}

func TestBindingCache_BindingsAreSortedRecords(t *testing.T) {
	c := NewBindingCache()
	require.NoError(t, c.Bind(msgRef("s1", "c1", "m2"), "🔥", "r2"))
	require.NoError(t, c.Bind(msgRef("s1", "c1", "m1"), "👍", "r1"))
	require.NoError(t, c.Bind(msgRef("s1", "c1", "m1"), "🔥", "r3"))

	recs := c.Bindings()
	require.Len(t, recs, 3)
	assert.Equal(t, chat.MessageID("m1"), recs[0].Ref.Message)
	assert.Equal(t, chat.MessageID("m1"), recs[1].Ref.Message)
	assert.Equal(t, chat.MessageID("m2"), recs[2].Ref.Message)
}
