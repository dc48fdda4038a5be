package reader_test

import (
	"context"
	"testing"

	"github.com/leapstack-labs/leapolap/internal/cache"
	"github.com/leapstack-labs/leapolap/internal/constraint"
	"github.com/leapstack-labs/leapolap/internal/reader"
	"github.com/leapstack-labs/leapolap/internal/testutil"
	"github.com/leapstack-labs/leapolap/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCubeMemberReader(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	cubeCache, err := reader.NewCubeCache(e.cache, cache.Options{Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)
	assert.Same(t, e.cache.Lock(), cubeCache.Lock())

	r := reader.NewCubeMemberReader(e.reader, e.s.Cube, cubeCache)
	assert.Same(t, e.reader, r.Delegate())

	roots, err := r.RootMembers(ctx)
	require.NoError(t, err)
	all, ok := roots[0].(*core.CubeMember)
	require.True(t, ok)
	assert.True(t, all.IsAll())
	assert.Same(t, e.s.Cube, all.Cube())

	e.expectCountries("Canada", "USA")
	countries, err := r.MemberChildren(ctx, all, constraint.Default)
	require.NoError(t, err)
	require.Len(t, countries, 2)
	usa := countries[1].(*core.CubeMember)
	assert.Same(t, all, usa.Parent())

	shared, ok := e.cache.GetChildrenFromCache(e.s.Store.AllMember(), constraint.Default)
	require.True(t, ok)
	assert.Same(t, shared[1], usa.Shared())

	again, err := r.MemberChildren(ctx, all, constraint.Default)
	require.NoError(t, err)
	assert.Same(t, countries[1], again[1])

	e.expectStates("USA", "CA", "OR")
	states, err := r.MemberChildren(ctx, usa, constraint.Default)
	require.NoError(t, err)
	assert.Equal(t, []string{"CA", "OR"}, names(states))
	assert.Same(t, usa, states[0].Parent())

	c, err := r.Compare(ctx, states[1], countries[0], false)
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	next, err := r.LeadMember(ctx, states[0], 1)
	require.NoError(t, err)
	assert.Same(t, states[1], next)

	ca, err := r.ChildByName(ctx, usa, "CA", true)
	require.NoError(t, err)
	assert.Same(t, states[0], ca)
}

func TestRestrictedMemberReader(t *testing.T) {
	e := newEnv(t)
	sm := loadStores(t, e)
	ctx := context.Background()
	role := core.NewRole("west").Grant(e.s.State, sm.ca, sm.wa)
	r := reader.NewRestrictedMemberReader(e.reader, role)

	countries, err := r.LevelMembers(ctx, e.s.Country, constraint.Default)
	require.NoError(t, err)
	assert.Equal(t, []string{"USA"}, names(countries))

	states, err := r.MemberChildren(ctx, sm.usa, constraint.Default)
	require.NoError(t, err)
	assert.Equal(t, []string{"CA", "WA"}, names(states))

	m, err := r.ChildByName(ctx, sm.usa, "OR", false)
	require.NoError(t, err)
	assert.Nil(t, m)

	next, err := r.LeadMember(ctx, sm.ca, 1)
	require.NoError(t, err)
	assert.Same(t, sm.wa, next, "OR is skipped")

	end, err := r.LeadMember(ctx, sm.wa, 1)
	require.NoError(t, err)
	assert.True(t, end.IsNull())

	rng, err := r.MemberRange(ctx, sm.bc, sm.wa)
	require.NoError(t, err)
	assert.Equal(t, []string{"CA", "WA"}, names(rng))

	e.expectStatesLevel("USA", "CA", "OR", "WA")
	n, err := r.LevelMemberCount(ctx, e.s.State)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
