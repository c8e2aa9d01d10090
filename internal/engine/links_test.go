package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtessier/reactsync/internal/chat"
)

// linkFixture wires a registry to a live binding cache the way Engine
// does.
func linkFixture(t *testing.T) (*BindingCache, *LinkRegistry) {
	t.Helper()
	cache := NewBindingCache()
	return cache, NewLinkRegistry(cache.RolesOf)
}

func TestLinkRegistry_SameExclusionSetForAllMembers(t *testing.T) {
	cache, reg := linkFixture(t)
	m1 := msgRef("s1", "c1", "m1")
	m2 := msgRef("s1", "c1", "m2")

	require.NoError(t, cache.Bind(m1, "👍", "r1"))
	require.NoError(t, cache.Bind(m2, "🔥", "r2"))
	require.NoError(t, cache.Bind(m2, "💧", "r3"))

	reg.Link("s1", "factions", []chat.MessageRef{m1, m2})

	want := []chat.RoleID{"r1", "r2", "r3"}
	assert.ElementsMatch(t, want, reg.Exclusivity(m1).Sorted())
	assert.ElementsMatch(t, want, reg.Exclusivity(m2).Sorted())
}

func TestLinkRegistry_UnlinkedMessageHasEmptyExclusivity(t *testing.T) {
	_, reg := linkFixture(t)

	assert.True(t, reg.Exclusivity(msgRef("s1", "c1", "m1")).Empty())
	assert.False(t, reg.Linked(msgRef("s1", "c1", "m1")))
}

func TestLinkRegistry_UnlinkRecomputesAcrossRemainingGroups(t *testing.T) {
	cache, reg := linkFixture(t)
	m1 := msgRef("s1", "c1", "m1")
	m2 := msgRef("s1", "c1", "m2")
	m3 := msgRef("s1", "c1", "m3")

	require.NoError(t, cache.Bind(m1, "👍", "r1"))
	require.NoError(t, cache.Bind(m2, "🔥", "r2"))
	require.NoError(t, cache.Bind(m3, "💧", "r3"))

	// m2 participates in both groups.
	reg.Link("s1", "alpha", []chat.MessageRef{m1, m2})
	reg.Link("s1", "beta", []chat.MessageRef{m2, m3})

	assert.ElementsMatch(t, []chat.RoleID{"r1", "r2", "r3"}, reg.Exclusivity(m2).Sorted())

	// Dropping alpha must not blind-delete m2's exclusivity: beta
	// still covers it.
	require.NoError(t, reg.Unlink("s1", "alpha"))

	assert.True(t, reg.Exclusivity(m1).Empty())
	assert.False(t, reg.Linked(m1))
	assert.ElementsMatch(t, []chat.RoleID{"r2", "r3"}, reg.Exclusivity(m2).Sorted())
	assert.ElementsMatch(t, []chat.RoleID{"r2", "r3"}, reg.Exclusivity(m3).Sorted())
}

func TestLinkRegistry_UnlinkUnknownGroup(t *testing.T) {
	_, reg := linkFixture(t)

	err := reg.Unlink("s1", "ghost")
	require.Error(t, err)

	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeNotLinked, ce.Code)
}

func TestLinkRegistry_RelinkReplacesGroup(t *testing.T) {
	cache, reg := linkFixture(t)
	m1 := msgRef("s1", "c1", "m1")
	m2 := msgRef("s1", "c1", "m2")

	require.NoError(t, cache.Bind(m1, "👍", "r1"))
	require.NoError(t, cache.Bind(m2, "🔥", "r2"))

	reg.Link("s1", "alpha", []chat.MessageRef{m1, m2})
	// Shrink the group to just m2; m1 must lose its exclusivity.
	reg.Link("s1", "alpha", []chat.MessageRef{m2})

	assert.True(t, reg.Exclusivity(m1).Empty())
	assert.ElementsMatch(t, []chat.RoleID{"r2"}, reg.Exclusivity(m2).Sorted())
}

func TestLinkRegistry_RecomputeMessagePicksUpNewBinding(t *testing.T) {
	cache, reg := linkFixture(t)
	m1 := msgRef("s1", "c1", "m1")
	m2 := msgRef("s1", "c1", "m2")

	require.NoError(t, cache.Bind(m1, "👍", "r1"))
	reg.Link("s1", "alpha", []chat.MessageRef{m1, m2})

	assert.ElementsMatch(t, []chat.RoleID{"r1"}, reg.Exclusivity(m2).Sorted())

	// A role bound after linking joins the exclusion set once the
	// message is recomputed.
	require.NoError(t, cache.Bind(m2, "🔥", "r2"))
	reg.RecomputeMessage(m2)

	assert.ElementsMatch(t, []chat.RoleID{"r1", "r2"}, reg.Exclusivity(m1).Sorted())
	assert.ElementsMatch(t, []chat.RoleID{"r1", "r2"}, reg.Exclusivity(m2).Sorted())
}

func TestLinkRegistry_PruneMessage(t *testing.T) {
	cache, reg := linkFixture(t)
	m1 := msgRef("s1", "c1", "m1")
	m2 := msgRef("s1", "c1", "m2")

	require.NoError(t, cache.Bind(m1, "👍", "r1"))
	require.NoError(t, cache.Bind(m2, "🔥", "r2"))
	reg.Link("s1", "alpha", []chat.MessageRef{m1, m2})

	reg.PruneMessage(m1)

	assert.False(t, reg.Linked(m1))
	assert.ElementsMatch(t, []chat.RoleID{"r2"}, reg.Exclusivity(m2).Sorted())

	recs := reg.Links()
	require.Len(t, recs, 1)
	assert.Equal(t, []chat.MessageRef{m2}, recs[0].Messages)
}

func TestLinkRegistry_LinksAreSortedRecords(t *testing.T) {
	cache, reg := linkFixture(t)
	m1 := msgRef("s1", "c1", "m1")
	require.NoError(t, cache.Bind(m1, "👍", "r1"))

	reg.Link("s1", "zeta", []chat.MessageRef{m1})
	reg.Link("s1", "alpha", []chat.MessageRef{m1})

	recs := reg.Links()
	require.Len(t, recs, 2)
	assert.Equal(t, "alpha", recs[0].Name)
	assert.Equal(t, "zeta", recs[1].Name)
}
