package cache_test

import (
	"sync"
	"testing"

	"github.com/leapstack-labs/leapolap/internal/cache"
	"github.com/leapstack-labs/leapolap/internal/constraint"
	"github.com/leapstack-labs/leapolap/internal/testutil"
	"github.com/leapstack-labs/leapolap/pkg/core"
	"github.com/leapstack-labs/leapolap/pkg/sqlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeTree struct {
	s        *testutil.Sales
	usa      *core.RolapMember
	ca, or   *core.RolapMember
	sf, la   *core.RolapMember
	portland *core.RolapMember
}

func newStoreTree() *storeTree {
	s := testutil.NewSales()
	t := &storeTree{s: s}
	t.usa = core.NewMember(s.Store.AllMember(), s.Country, "USA", "")
	t.ca = core.NewMember(t.usa, s.State, "CA", "")
	t.or = core.NewMember(t.usa, s.State, "OR", "")
	t.sf = core.NewMember(t.ca, s.City, "San Francisco", "")
	t.la = core.NewMember(t.ca, s.City, "Los Angeles", "")
	t.portland = core.NewMember(t.or, s.City, "Portland", "")
	return t
}

func newHelper(t *testing.T, tree *storeTree, opts cache.Options) *cache.Helper {
	t.Helper()
	opts.Logger = testutil.NewTestLogger(t)
	h, err := cache.NewHelper(tree.s.Store, opts)
	require.NoError(t, err)
	return h
}

// load registers members and their default child lists.
func load(h *cache.Helper, tree *storeTree) {
	all := tree.s.Store.AllMember()
	for _, m := range []core.Member{tree.usa, tree.ca, tree.or, tree.sf, tree.la, tree.portland} {
		h.PutMember(h.MakeKey(m.Parent(), m.Key()), m)
	}
	h.PutChildren(all, constraint.Default, []core.Member{tree.usa})
	h.PutChildren(tree.usa, constraint.Default, []core.Member{tree.ca, tree.or})
	h.PutChildren(tree.ca, constraint.Default, []core.Member{tree.la, tree.sf})
	h.PutChildren(tree.or, constraint.Default, []core.Member{tree.portland})
}

// keyed is an unrestricted constraint with a chosen cache key.
type keyed string

func (k keyed) AddConstraint(*sqlquery.Query, *core.Cube, *core.AggStar) error { return nil }

func (k keyed) AddMemberConstraint(*sqlquery.Query, *core.Cube, *core.AggStar, []core.Member) error {
	return nil
}

func (k keyed) AddLevelConstraint(*sqlquery.Query, *core.Cube, *core.AggStar, *core.Level) error {
	return nil
}

func (k keyed) MemberChildrenConstraint(core.Member) constraint.MemberChildrenConstraint { return k }

func (k keyed) CacheKey() string          { return string(k) }
func (k keyed) Evaluator() core.Evaluator { return nil }
func (k keyed) SupportsAggTables() bool   { return true }

func TestMemberKey(t *testing.T) {
	tree := newStoreTree()
	s := tree.s

	a := cache.NewMemberKey(tree.usa, "CA")
	b := cache.NewMemberKey(core.NewMember(s.Store.AllMember(), s.Country, "USA", ""), "CA")
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.ID(), b.ID())
	assert.False(t, a.Equal(cache.NewMemberKey(tree.usa, "OR")))
	assert.True(t, cache.NewMemberKey(nil, 1).Equal(cache.NewMemberKey(nil, int32(1))))
	assert.True(t, cache.NewMemberKey(tree.usa, int64(1997)).Equal(cache.NewMemberKey(tree.usa, 1997.0)),
		"a driver returning a float for an integer key names the same member")

	assert.Equal(t, s.State, a.Level())
	assert.Equal(t, s.Country, cache.NewMemberKey(s.Store.AllMember(), "USA").Level())
	assert.Nil(t, cache.NewMemberKey(nil, 1997).Level())

	boss := core.NewMember(s.Employee.AllMember(), s.EmployeeLevel, 1, "Sheri")
	assert.Equal(t, s.EmployeeLevel, cache.NewMemberKey(boss, 2).Level())
}

func TestHelper_MemberCoherence(t *testing.T) {
	tree := newStoreTree()
	h := newHelper(t, tree, cache.Options{})

	key := h.MakeKey(tree.usa, "CA")
	assert.Nil(t, h.GetMember(key, false))
	assert.Nil(t, h.PutMember(key, tree.ca))
	assert.Same(t, tree.ca, h.GetMember(h.MakeKey(tree.usa, "CA"), false))

	replacement := core.NewMember(tree.usa, tree.s.State, "CA", "California")
	assert.Same(t, tree.ca, h.PutMember(key, replacement))
	assert.Same(t, replacement, h.GetMember(key, true))
}

func TestHelper_PutMemberIfAbsent(t *testing.T) {
	tree := newStoreTree()
	h := newHelper(t, tree, cache.Options{})
	key := h.MakeKey(tree.usa, "CA")

	const workers = 16
	got := make([]core.Member, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i] = h.PutMemberIfAbsent(key, core.NewMember(tree.usa, tree.s.State, "CA", ""))
		}()
	}
	wg.Wait()

	winner := h.GetMember(key, false)
	require.NotNil(t, winner)
	for _, m := range got {
		assert.Same(t, winner, m, "every caller gets the one cached member")
	}
	assert.Same(t, winner, h.PutMemberIfAbsent(key, tree.ca))
	assert.Same(t, tree.ca, cache.NoCache{}.PutMemberIfAbsent(key, tree.ca))
}

func TestHelper_ChildrenAreCopied(t *testing.T) {
	tree := newStoreTree()
	h := newHelper(t, tree, cache.Options{})
	load(h, tree)

	got, ok := h.GetChildrenFromCache(tree.usa, constraint.Default)
	require.True(t, ok)
	require.Len(t, got, 2)
	got[0] = tree.portland

	again, ok := h.GetChildrenFromCache(tree.usa, nil)
	require.True(t, ok)
	assert.Same(t, tree.ca, again[0])

	_, ok = h.GetChildrenFromCache(tree.usa, keyed("other"))
	assert.False(t, ok)

	h.PutChildren(tree.usa, keyed(""), []core.Member{tree.ca})
	_, ok = h.GetChildrenFromCache(tree.usa, keyed(""))
	assert.False(t, ok, "an empty cache key is never cached")
}

func TestHelper_ChildByName(t *testing.T) {
	tree := newStoreTree()
	h := newHelper(t, tree, cache.Options{})

	// no default list: answers come from the named accumulator
	h.PutChildren(tree.ca, constraint.NewChildByName("San Francisco"), []core.Member{tree.sf})
	h.PutChildren(tree.ca, constraint.NewChildByName("Los Angeles"), []core.Member{tree.la})

	got, ok := h.GetChildrenFromCache(tree.ca, constraint.NewChildByName("Los Angeles", "San Francisco"))
	require.True(t, ok)
	assert.Len(t, got, 2)

	_, ok = h.GetChildrenFromCache(tree.ca, constraint.NewChildByName("Los Angeles", "San Francisco", "San Diego"))
	assert.False(t, ok, "one missing name makes the whole lookup a miss")

	_, ok = h.GetChildrenFromCache(tree.ca, constraint.Default)
	assert.False(t, ok, "named children never satisfy an unrestricted lookup")

	// with a default list, names are looked up there
	h.PutChildren(tree.or, constraint.Default, []core.Member{tree.portland})
	got, ok = h.GetChildrenFromCache(tree.or, constraint.NewChildByName("Portland"))
	require.True(t, ok)
	assert.Same(t, tree.portland, got[0])
	_, ok = h.GetChildrenFromCache(tree.or, constraint.NewChildByName("Salem"))
	assert.False(t, ok)
}

func TestHelper_RemoveMemberPurgesLevelsAtAndBelow(t *testing.T) {
	tree := newStoreTree()
	s := tree.s
	h := newHelper(t, tree, cache.Options{})
	load(h, tree)

	h.PutLevelMembers(s.Country, constraint.Default, []core.Member{tree.usa})
	h.PutLevelMembers(s.State, constraint.Default, []core.Member{tree.ca, tree.or})
	h.PutLevelMembers(s.City, constraint.Default, []core.Member{tree.la, tree.sf, tree.portland})
	h.PutLevelMembers(s.StoreName, keyed("k"), nil)
	s.State.SetApproxRowCount(2)
	s.Country.SetApproxRowCount(1)

	removed := h.RemoveMember(h.MakeKey(tree.usa, "CA"))
	assert.Same(t, tree.ca, removed)

	_, ok := h.GetLevelMembersFromCache(s.Country, constraint.Default)
	assert.True(t, ok, "levels above the member stay cached")
	_, ok = h.GetLevelMembersFromCache(s.State, constraint.Default)
	assert.False(t, ok)
	_, ok = h.GetLevelMembersFromCache(s.City, constraint.Default)
	assert.False(t, ok)
	_, ok = h.GetLevelMembersFromCache(s.StoreName, keyed("k"))
	assert.False(t, ok)

	assert.Equal(t, core.UnknownRowCount, s.State.ApproxRowCount())
	assert.Equal(t, int64(1), s.Country.ApproxRowCount())
}

func TestHelper_RemoveMemberPurgesEveryPartition(t *testing.T) {
	tree := newStoreTree()
	h := newHelper(t, tree, cache.Options{})
	load(h, tree)
	h.PutChildren(tree.usa, keyed("west"), []core.Member{tree.ca, tree.or})
	h.PutChildren(tree.usa, keyed("north"), []core.Member{tree.or})
	h.PutChildren(tree.usa, constraint.NewChildByName("CA"), []core.Member{tree.ca})

	key := h.MakeKey(tree.usa, "CA")
	require.Same(t, tree.ca, h.RemoveMember(key))

	assert.Nil(t, h.GetMember(key, false))

	siblings, ok := h.GetChildrenFromCache(tree.usa, constraint.Default)
	require.True(t, ok, "the unrestricted list is patched, not dropped")
	assert.Equal(t, []core.Member{tree.or}, siblings)

	_, ok = h.GetChildrenFromCache(tree.usa, keyed("west"))
	assert.False(t, ok, "constrained lists holding the member are dropped")
	_, ok = h.GetChildrenFromCache(tree.usa, keyed("north"))
	assert.True(t, ok, "constrained lists without the member survive")

	_, ok = h.GetChildrenFromCache(tree.ca, constraint.Default)
	assert.False(t, ok, "lists keyed by the member as parent are dropped")

	_, ok = h.GetChildrenFromCache(tree.usa, constraint.NewChildByName("CA"))
	assert.False(t, ok)

	assert.Nil(t, h.RemoveMember(key), "second removal finds nothing")
}

func TestHelper_RemoveMemberAndDescendants(t *testing.T) {
	tree := newStoreTree()
	h := newHelper(t, tree, cache.Options{})
	load(h, tree)

	removed := h.RemoveMemberAndDescendants(h.MakeKey(tree.s.Store.AllMember(), "USA"))
	assert.Same(t, tree.usa, removed)

	for _, m := range []core.Member{tree.usa, tree.ca, tree.or, tree.sf, tree.la, tree.portland} {
		assert.Nil(t, h.GetMember(h.MakeKey(m.Parent(), m.Key()), false), m.UniqueName())
	}
	roots, ok := h.GetChildrenFromCache(tree.s.Store.AllMember(), constraint.Default)
	require.True(t, ok)
	assert.Empty(t, roots)

	members, children, _ := h.Stats()
	assert.Zero(t, members)
	assert.Equal(t, 1, children)
}

func TestHelper_RemoveMemberAndDescendants_UnindexedDescendant(t *testing.T) {
	tree := newStoreTree()
	h := newHelper(t, tree, cache.Options{})
	all := tree.s.Store.AllMember()
	// CA and OR are only known through USA's child list
	h.PutMember(h.MakeKey(all, "USA"), tree.usa)
	h.PutChildren(all, constraint.Default, []core.Member{tree.usa})
	h.PutChildren(tree.usa, constraint.Default, []core.Member{tree.ca, tree.or})
	h.PutChildren(tree.ca, constraint.Default, []core.Member{tree.la, tree.sf})
	h.PutMember(h.MakeKey(tree.ca, "San Francisco"), tree.sf)

	require.Same(t, tree.usa, h.RemoveMemberAndDescendants(h.MakeKey(all, "USA")))

	_, ok := h.GetChildrenFromCache(tree.ca, constraint.Default)
	assert.False(t, ok, "child list of an unindexed descendant is dropped")
	assert.Nil(t, h.GetMember(h.MakeKey(tree.ca, "San Francisco"), false))
	members, children, _ := h.Stats()
	assert.Zero(t, members)
	assert.Equal(t, 1, children)
}

type flagListener struct {
	mu      sync.Mutex
	changed bool
	calls   int
}

func (l *flagListener) IsHierarchyChanged(*core.Hierarchy) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	c := l.changed
	l.changed = false
	return c
}

func TestHelper_CheckCacheStatus(t *testing.T) {
	tree := newStoreTree()
	listener := &flagListener{}
	h := newHelper(t, tree, cache.Options{Listener: listener})
	load(h, tree)
	tree.s.City.SetApproxRowCount(3)

	key := h.MakeKey(tree.usa, "CA")
	assert.Same(t, tree.ca, h.GetMember(key, true))
	assert.Same(t, tree.ca, h.GetMember(key, false))
	assert.Equal(t, 1, listener.calls, "unchecked reads skip the listener")

	listener.changed = true
	assert.Nil(t, h.GetMember(key, true))
	_, ok := h.GetChildrenFromCache(tree.usa, constraint.Default)
	assert.False(t, ok)
	assert.Equal(t, core.UnknownRowCount, tree.s.City.ApproxRowCount())
}

func TestHelper_FlushCache(t *testing.T) {
	tree := newStoreTree()
	h := newHelper(t, tree, cache.Options{})
	load(h, tree)
	h.PutLevelMembers(tree.s.State, constraint.Default, []core.Member{tree.ca, tree.or})
	tree.s.State.SetApproxRowCount(2)

	h.FlushCache()

	members, children, levels := h.Stats()
	assert.Zero(t, members+children+levels)
	assert.Equal(t, core.UnknownRowCount, tree.s.State.ApproxRowCount())
}

func TestHelper_SharedLock(t *testing.T) {
	tree := newStoreTree()
	shared := newHelper(t, tree, cache.Options{})
	cube := newHelper(t, tree, cache.Options{Lock: shared.Lock()})
	assert.Same(t, shared.Lock(), cube.Lock())
	assert.Equal(t, tree.s.Store.UniqueName(), shared.Lock().Name)
}

func TestHelper_ConcurrentAccess(t *testing.T) {
	tree := newStoreTree()
	h := newHelper(t, tree, cache.Options{Policy: cache.PolicyConfig{Policy: cache.PolicyLRU, Size: 4}})

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 200 {
				key := h.MakeKey(tree.usa, j%5)
				switch (i + j) % 4 {
				case 0:
					h.PutMember(key, tree.ca)
				case 1:
					h.GetMember(key, true)
				case 2:
					h.PutChildren(tree.usa, constraint.Default, []core.Member{tree.ca, tree.or})
				default:
					h.RemoveMember(key)
				}
			}
		}()
	}
	wg.Wait()

	members, _, _ := h.Stats()
	assert.LessOrEqual(t, members, 4)
}

func TestNoCache(t *testing.T) {
	tree := newStoreTree()
	var c cache.MemberCache = cache.NoCache{}

	key := c.MakeKey(tree.usa, "CA")
	c.PutMember(key, tree.ca)
	assert.Nil(t, c.GetMember(key, true))
	c.PutChildren(tree.usa, constraint.Default, []core.Member{tree.ca})
	_, ok := c.GetChildrenFromCache(tree.usa, constraint.Default)
	assert.False(t, ok)
	assert.False(t, c.IsMutable())
	assert.Nil(t, c.RemoveMember(key))
}
