package reader

import (
	"context"

	"github.com/leapstack-labs/leapolap/internal/cache"
	"github.com/leapstack-labs/leapolap/internal/constraint"
	"github.com/leapstack-labs/leapolap/pkg/core"
)

// NoCacheMemberReader sends every request to its source. Navigation
// reloads the sibling lists it walks.
type NoCacheMemberReader struct {
	source MemberSource
}

var _ MemberReader = (*NoCacheMemberReader)(nil)

func NewNoCacheMemberReader(source MemberSource) *NoCacheMemberReader {
	return &NoCacheMemberReader{source: source}
}

func (r *NoCacheMemberReader) Hierarchy() *core.Hierarchy     { return r.source.Hierarchy() }
func (r *NoCacheMemberReader) MemberCache() cache.MemberCache { return cache.NoCache{} }

func (r *NoCacheMemberReader) RootMembers(ctx context.Context) ([]core.Member, error) {
	h := r.Hierarchy()
	if all := h.AllMember(); all != nil {
		return []core.Member{all}, nil
	}
	return r.source.LevelMembers(ctx, h.RootLevel(), constraint.Default)
}

func (r *NoCacheMemberReader) LevelMembers(ctx context.Context, level *core.Level, c constraint.TupleConstraint) ([]core.Member, error) {
	return r.source.LevelMembers(ctx, level, c)
}

func (r *NoCacheMemberReader) MemberChildren(ctx context.Context, parent core.Member, c constraint.MemberChildrenConstraint) ([]core.Member, error) {
	lists, err := r.source.MemberChildren(ctx, []core.Member{parent}, c)
	if err != nil {
		return nil, err
	}
	return lists[0], nil
}

func (r *NoCacheMemberReader) MembersChildren(ctx context.Context, parents []core.Member, c constraint.MemberChildrenConstraint) ([]core.Member, error) {
	var out []core.Member
	for _, p := range parents {
		list, err := r.MemberChildren(ctx, p, c)
		if err != nil {
			return nil, err
		}
		out = append(out, list...)
	}
	return out, nil
}

func (r *NoCacheMemberReader) ChildByName(ctx context.Context, parent core.Member, name string, failIfNotFound bool) (core.Member, error) {
	children, err := r.MemberChildren(ctx, parent, constraint.NewChildByName(name))
	if err != nil {
		return nil, err
	}
	if m := findByName(children, name); m != nil {
		return m, nil
	}
	return notFound(name, parent.UniqueName(), failIfNotFound)
}

func (r *NoCacheMemberReader) LeadMember(ctx context.Context, m core.Member, n int) (core.Member, error) {
	return leadMember(ctx, r, m, n)
}

func (r *NoCacheMemberReader) MemberRange(ctx context.Context, start, end core.Member) ([]core.Member, error) {
	return memberRange(ctx, r, start, end)
}

func (r *NoCacheMemberReader) Compare(ctx context.Context, m1, m2 core.Member, siblingsAreEqual bool) (int, error) {
	return compareMembers(ctx, r, m1, m2, siblingsAreEqual)
}

func (r *NoCacheMemberReader) LevelMemberCount(ctx context.Context, level *core.Level) (int64, error) {
	return r.source.LevelMemberCount(ctx, level)
}
