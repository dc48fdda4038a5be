package reader

import (
	"context"

	"github.com/leapstack-labs/leapolap/internal/constraint"
	"github.com/leapstack-labs/leapolap/pkg/core"
)

// RestrictedMemberReader hides the members a role cannot access.
type RestrictedMemberReader struct {
	*DelegatingMemberReader
	role core.Role
}

var _ MemberReader = (*RestrictedMemberReader)(nil)

func NewRestrictedMemberReader(r MemberReader, role core.Role) *RestrictedMemberReader {
	return &RestrictedMemberReader{DelegatingMemberReader: NewDelegatingMemberReader(r), role: role}
}

func (r *RestrictedMemberReader) Role() core.Role { return r.role }

func (r *RestrictedMemberReader) filter(ms []core.Member, err error) ([]core.Member, error) {
	if err != nil {
		return nil, err
	}
	out := ms[:0:0]
	for _, m := range ms {
		if r.role.CanAccess(m) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *RestrictedMemberReader) RootMembers(ctx context.Context) ([]core.Member, error) {
	return r.filter(r.Delegate().RootMembers(ctx))
}

func (r *RestrictedMemberReader) LevelMembers(ctx context.Context, level *core.Level, c constraint.TupleConstraint) ([]core.Member, error) {
	return r.filter(r.Delegate().LevelMembers(ctx, level, c))
}

func (r *RestrictedMemberReader) MemberChildren(ctx context.Context, parent core.Member, c constraint.MemberChildrenConstraint) ([]core.Member, error) {
	return r.filter(r.Delegate().MemberChildren(ctx, parent, c))
}

func (r *RestrictedMemberReader) MembersChildren(ctx context.Context, parents []core.Member, c constraint.MemberChildrenConstraint) ([]core.Member, error) {
	return r.filter(r.Delegate().MembersChildren(ctx, parents, c))
}

func (r *RestrictedMemberReader) ChildByName(ctx context.Context, parent core.Member, name string, failIfNotFound bool) (core.Member, error) {
	m, err := r.Delegate().ChildByName(ctx, parent, name, failIfNotFound)
	if err != nil || m == nil {
		return nil, err
	}
	if !r.role.CanAccess(m) {
		return notFound(name, parent.UniqueName(), failIfNotFound)
	}
	return m, nil
}

// LeadMember counts only accessible members.
func (r *RestrictedMemberReader) LeadMember(ctx context.Context, m core.Member, n int) (core.Member, error) {
	if n == 0 || m.IsNull() {
		return m, nil
	}
	dir := 1
	if n < 0 {
		dir, n = -1, -n
	}
	cur := m
	for n > 0 {
		next, err := r.Delegate().LeadMember(ctx, cur, dir)
		if err != nil {
			return nil, err
		}
		if next.IsNull() {
			return next, nil
		}
		cur = next
		if r.role.CanAccess(cur) {
			n--
		}
	}
	return cur, nil
}

func (r *RestrictedMemberReader) MemberRange(ctx context.Context, start, end core.Member) ([]core.Member, error) {
	return r.filter(r.Delegate().MemberRange(ctx, start, end))
}

// LevelMemberCount counts the accessible members when the role restricts
// the level or a level above it.
func (r *RestrictedMemberReader) LevelMemberCount(ctx context.Context, level *core.Level) (int64, error) {
	if !r.restricts(level) {
		return r.Delegate().LevelMemberCount(ctx, level)
	}
	ms, err := r.LevelMembers(ctx, level, constraint.Default)
	if err != nil {
		return 0, err
	}
	return int64(len(ms)), nil
}

func (r *RestrictedMemberReader) restricts(level *core.Level) bool {
	for _, l := range level.Hierarchy().Levels() {
		if l.Depth() > level.Depth() {
			break
		}
		if _, ok := r.role.RestrictedMembers(l); ok {
			return true
		}
	}
	all := level.Hierarchy().AllMember()
	return all != nil && !r.role.CanAccess(all)
}
