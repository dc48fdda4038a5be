package reader

import (
	"context"
	"log/slog"
	"slices"

	"github.com/leapstack-labs/leapolap/internal/cache"
	"github.com/leapstack-labs/leapolap/internal/constraint"
	"github.com/leapstack-labs/leapolap/pkg/core"
	"golang.org/x/sync/singleflight"
)

// SmartMemberReader serves requests from its member cache and loads
// misses from a MemberSource. Concurrent misses for the same list are
// loaded once.
type SmartMemberReader struct {
	source MemberSource
	cache  cache.MemberCache
	group  singleflight.Group
	logger *slog.Logger
}

var _ MemberReader = (*SmartMemberReader)(nil)

// NewSmartMemberReader creates a caching reader. mc should be the cache
// the source registers members in.
func NewSmartMemberReader(source MemberSource, mc cache.MemberCache, logger *slog.Logger) *SmartMemberReader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SmartMemberReader{
		source: source,
		cache:  mc,
		logger: logger.With("hierarchy", source.Hierarchy().UniqueName()),
	}
}

func (r *SmartMemberReader) Hierarchy() *core.Hierarchy     { return r.source.Hierarchy() }
func (r *SmartMemberReader) MemberCache() cache.MemberCache { return r.cache }

func (r *SmartMemberReader) RootMembers(ctx context.Context) ([]core.Member, error) {
	h := r.Hierarchy()
	if all := h.AllMember(); all != nil {
		return []core.Member{all}, nil
	}
	return r.LevelMembers(ctx, h.RootLevel(), constraint.Default)
}

func (r *SmartMemberReader) LevelMembers(ctx context.Context, level *core.Level, c constraint.TupleConstraint) ([]core.Member, error) {
	if c == nil {
		c = constraint.Default
	}
	r.cache.CheckCacheStatus()
	if list, ok := r.cache.GetLevelMembersFromCache(level, c); ok {
		return list, nil
	}
	ckey := c.CacheKey()
	if ckey == "" {
		return r.source.LevelMembers(ctx, level, c)
	}

	v, err, shared := r.group.Do("level\x00"+level.UniqueName()+"\x00"+ckey, func() (any, error) {
		if list, ok := r.cache.GetLevelMembersFromCache(level, c); ok {
			return list, nil
		}
		r.logger.Debug("level cache miss", "level", level.UniqueName(), "constraint", ckey)
		list, err := r.source.LevelMembers(ctx, level, c)
		if err != nil {
			return nil, err
		}
		r.cache.PutLevelMembers(level, c, list)
		if ckey == constraint.DefaultKey {
			level.SetApproxRowCount(int64(len(list)))
			r.fillChildren(level, list)
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	list := v.([]core.Member)
	if shared {
		list = slices.Clone(list)
	}
	return list, nil
}

// fillChildren records a complete level as the unrestricted children of
// each parent that appears in it.
func (r *SmartMemberReader) fillChildren(level *core.Level, members []core.Member) {
	if level.IsParentChild() {
		return
	}
	var (
		parent core.Member
		group  []core.Member
	)
	flush := func() {
		if parent != nil {
			r.cache.PutChildren(parent, constraint.Default, group)
		}
	}
	for _, m := range members {
		if !core.SameMember(m.Parent(), parent) {
			flush()
			parent, group = m.Parent(), nil
		}
		group = append(group, m)
	}
	flush()
}

func (r *SmartMemberReader) MemberChildren(ctx context.Context, parent core.Member, c constraint.MemberChildrenConstraint) ([]core.Member, error) {
	if c == nil {
		c = constraint.Default
	}
	r.cache.CheckCacheStatus()
	if list, ok := r.cache.GetChildrenFromCache(parent, c); ok {
		return list, nil
	}
	ckey := c.CacheKey()
	if ckey == "" {
		lists, err := r.source.MemberChildren(ctx, []core.Member{parent}, c)
		if err != nil {
			return nil, err
		}
		return lists[0], nil
	}

	v, err, shared := r.group.Do("children\x00"+parent.UniqueName()+"\x00"+ckey, func() (any, error) {
		if list, ok := r.cache.GetChildrenFromCache(parent, c); ok {
			return list, nil
		}
		r.logger.Debug("children cache miss", "parent", parent.UniqueName(), "constraint", ckey)
		lists, err := r.source.MemberChildren(ctx, []core.Member{parent}, c)
		if err != nil {
			return nil, err
		}
		r.cache.PutChildren(parent, c, lists[0])
		return lists[0], nil
	})
	if err != nil {
		return nil, err
	}
	list := v.([]core.Member)
	if shared {
		list = slices.Clone(list)
	}
	return list, nil
}

func (r *SmartMemberReader) MembersChildren(ctx context.Context, parents []core.Member, c constraint.MemberChildrenConstraint) ([]core.Member, error) {
	if c == nil {
		c = constraint.Default
	}
	r.cache.CheckCacheStatus()
	found := make([][]core.Member, len(parents))
	// parents still to load, grouped by the level of their children
	missing := make(map[*core.Level][]int)
	var order []*core.Level
	for i, p := range parents {
		if list, ok := r.cache.GetChildrenFromCache(p, c); ok {
			found[i] = list
			continue
		}
		cl := constraint.ChildLevel(p)
		if cl == nil {
			continue
		}
		if _, ok := missing[cl]; !ok {
			order = append(order, cl)
		}
		missing[cl] = append(missing[cl], i)
	}

	for _, cl := range order {
		idx := missing[cl]
		batch := make([]core.Member, len(idx))
		for j, i := range idx {
			batch[j] = parents[i]
		}
		lists, err := r.source.MemberChildren(ctx, batch, c)
		if err != nil {
			return nil, err
		}
		for j, i := range idx {
			found[i] = lists[j]
			r.cache.PutChildren(parents[i], c, lists[j])
		}
	}

	var out []core.Member
	for _, list := range found {
		out = append(out, list...)
	}
	return out, nil
}

func (r *SmartMemberReader) ChildByName(ctx context.Context, parent core.Member, name string, failIfNotFound bool) (core.Member, error) {
	r.cache.CheckCacheStatus()
	if all, ok := r.cache.GetChildrenFromCache(parent, constraint.Default); ok {
		if m := findByName(all, name); m != nil {
			return m, nil
		}
		return notFound(name, parent.UniqueName(), failIfNotFound)
	}
	children, err := r.MemberChildren(ctx, parent, constraint.NewChildByName(name))
	if err != nil {
		return nil, err
	}
	if m := findByName(children, name); m != nil {
		return m, nil
	}
	return notFound(name, parent.UniqueName(), failIfNotFound)
}

func (r *SmartMemberReader) LeadMember(ctx context.Context, m core.Member, n int) (core.Member, error) {
	return leadMember(ctx, r, m, n)
}

func (r *SmartMemberReader) MemberRange(ctx context.Context, start, end core.Member) ([]core.Member, error) {
	return memberRange(ctx, r, start, end)
}

func (r *SmartMemberReader) Compare(ctx context.Context, m1, m2 core.Member, siblingsAreEqual bool) (int, error) {
	return compareMembers(ctx, r, m1, m2, siblingsAreEqual)
}

// LevelMemberCount returns the level's row count hint, counting with SQL
// when it is unknown.
func (r *SmartMemberReader) LevelMemberCount(ctx context.Context, level *core.Level) (int64, error) {
	if n := level.ApproxRowCount(); n != core.UnknownRowCount {
		return n, nil
	}
	n, err := r.source.LevelMemberCount(ctx, level)
	if err != nil {
		return 0, err
	}
	level.SetApproxRowCount(n)
	return n, nil
}
