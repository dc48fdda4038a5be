package reader

import (
	"context"

	"github.com/leapstack-labs/leapolap/internal/cache"
	"github.com/leapstack-labs/leapolap/internal/constraint"
	"github.com/leapstack-labs/leapolap/pkg/core"
)

// NewCubeCache creates the cache for the cube view of a shared hierarchy
// cache. It is guarded by the shared cache's lock.
func NewCubeCache(shared *cache.Helper, opts cache.Options) (*cache.Helper, error) {
	opts.Lock = shared.Lock()
	return cache.NewHelper(shared.Hierarchy(), opts)
}

// CubeMemberReader presents the members of a shared reader as members of
// one cube. Requests are answered by the shared reader with the cube
// members unwrapped, and the results are wrapped again.
type CubeMemberReader struct {
	*DelegatingMemberReader
	cube  *core.Cube
	cache cache.MemberCache
}

var _ MemberReader = (*CubeMemberReader)(nil)

// NewCubeMemberReader wraps shared for cube. mc holds the wrappers; build
// it with NewCubeCache.
func NewCubeMemberReader(shared MemberReader, cube *core.Cube, mc cache.MemberCache) *CubeMemberReader {
	if mc == nil {
		mc = cache.NoCache{}
	}
	return &CubeMemberReader{
		DelegatingMemberReader: NewDelegatingMemberReader(shared),
		cube:                   cube,
		cache:                  mc,
	}
}

func (r *CubeMemberReader) Cube() *core.Cube               { return r.cube }
func (r *CubeMemberReader) MemberCache() cache.MemberCache { return r.cache }

// Wrap returns the cube view of m.
func (r *CubeMemberReader) Wrap(m core.Member) core.Member {
	if m == nil || m.IsNull() {
		return m
	}
	if cm, ok := m.(*core.CubeMember); ok && cm.Cube() == r.cube {
		return cm
	}
	m = unwrap(m)
	parent := r.Wrap(m.Parent())
	key := r.cache.MakeKey(parent, m.Key())
	if got := r.cache.GetMember(key, false); got != nil {
		return got
	}
	cm := core.NewCubeMember(parent, m, r.cube)
	r.cache.PutMember(key, cm)
	return cm
}

func (r *CubeMemberReader) wrapAll(ms []core.Member) []core.Member {
	out := make([]core.Member, len(ms))
	for i, m := range ms {
		out[i] = r.Wrap(m)
	}
	return out
}

func unwrap(m core.Member) core.Member {
	if cm, ok := m.(*core.CubeMember); ok {
		return cm.Shared()
	}
	return m
}

func (r *CubeMemberReader) RootMembers(ctx context.Context) ([]core.Member, error) {
	ms, err := r.Delegate().RootMembers(ctx)
	if err != nil {
		return nil, err
	}
	return r.wrapAll(ms), nil
}

func (r *CubeMemberReader) LevelMembers(ctx context.Context, level *core.Level, c constraint.TupleConstraint) ([]core.Member, error) {
	if c == nil {
		c = constraint.Default
	}
	r.cache.CheckCacheStatus()
	if list, ok := r.cache.GetLevelMembersFromCache(level, c); ok {
		return list, nil
	}
	ms, err := r.Delegate().LevelMembers(ctx, level, c)
	if err != nil {
		return nil, err
	}
	list := r.wrapAll(ms)
	r.cache.PutLevelMembers(level, c, list)
	return list, nil
}

func (r *CubeMemberReader) MemberChildren(ctx context.Context, parent core.Member, c constraint.MemberChildrenConstraint) ([]core.Member, error) {
	if c == nil {
		c = constraint.Default
	}
	r.cache.CheckCacheStatus()
	parent = r.Wrap(parent)
	if list, ok := r.cache.GetChildrenFromCache(parent, c); ok {
		return list, nil
	}
	ms, err := r.Delegate().MemberChildren(ctx, unwrap(parent), c)
	if err != nil {
		return nil, err
	}
	list := r.wrapAll(ms)
	r.cache.PutChildren(parent, c, list)
	return list, nil
}

func (r *CubeMemberReader) MembersChildren(ctx context.Context, parents []core.Member, c constraint.MemberChildrenConstraint) ([]core.Member, error) {
	shared := make([]core.Member, len(parents))
	for i, p := range parents {
		shared[i] = unwrap(p)
	}
	ms, err := r.Delegate().MembersChildren(ctx, shared, c)
	if err != nil {
		return nil, err
	}
	return r.wrapAll(ms), nil
}

func (r *CubeMemberReader) ChildByName(ctx context.Context, parent core.Member, name string, failIfNotFound bool) (core.Member, error) {
	m, err := r.Delegate().ChildByName(ctx, unwrap(parent), name, failIfNotFound)
	if err != nil || m == nil {
		return nil, err
	}
	return r.Wrap(m), nil
}

func (r *CubeMemberReader) LeadMember(ctx context.Context, m core.Member, n int) (core.Member, error) {
	lead, err := r.Delegate().LeadMember(ctx, unwrap(m), n)
	if err != nil {
		return nil, err
	}
	return r.Wrap(lead), nil
}

func (r *CubeMemberReader) MemberRange(ctx context.Context, start, end core.Member) ([]core.Member, error) {
	ms, err := r.Delegate().MemberRange(ctx, unwrap(start), unwrap(end))
	if err != nil {
		return nil, err
	}
	return r.wrapAll(ms), nil
}

func (r *CubeMemberReader) Compare(ctx context.Context, m1, m2 core.Member, siblingsAreEqual bool) (int, error) {
	return r.Delegate().Compare(ctx, unwrap(m1), unwrap(m2), siblingsAreEqual)
}
