// Package reader answers member requests for a hierarchy: levels,
// children, lookups by name and navigation between siblings. Readers
// consult the member cache first and load from SQL on a miss.
package reader

import (
	"context"

	"github.com/leapstack-labs/leapolap/internal/cache"
	"github.com/leapstack-labs/leapolap/internal/constraint"
	"github.com/leapstack-labs/leapolap/pkg/core"
)

// MemberReader reads the members of one hierarchy.
type MemberReader interface {
	Hierarchy() *core.Hierarchy
	// MemberCache is the cache the reader fills, for administration.
	MemberCache() cache.MemberCache

	// RootMembers returns the all member, or the root level when the
	// hierarchy has none.
	RootMembers(ctx context.Context) ([]core.Member, error)
	LevelMembers(ctx context.Context, level *core.Level, c constraint.TupleConstraint) ([]core.Member, error)
	MemberChildren(ctx context.Context, parent core.Member, c constraint.MemberChildrenConstraint) ([]core.Member, error)
	// MembersChildren returns the children of every parent, parent by parent.
	MembersChildren(ctx context.Context, parents []core.Member, c constraint.MemberChildrenConstraint) ([]core.Member, error)
	// ChildByName finds a child of parent by name. A missing child is a
	// MemberNotFoundError when failIfNotFound is set and nil otherwise.
	ChildByName(ctx context.Context, parent core.Member, name string, failIfNotFound bool) (core.Member, error)
	// LeadMember steps n siblings forward, or backward for negative n,
	// crossing into cousins. Past either end it returns the null member.
	LeadMember(ctx context.Context, m core.Member, n int) (core.Member, error)
	// MemberRange returns the members of one level from start to end.
	MemberRange(ctx context.Context, start, end core.Member) ([]core.Member, error)
	// Compare orders two members of the hierarchy: -1, 0 or 1.
	Compare(ctx context.Context, m1, m2 core.Member, siblingsAreEqual bool) (int, error)
	LevelMemberCount(ctx context.Context, level *core.Level) (int64, error)
}

// Lookup resolves a path of names below the root of r. The first name
// may be the all member itself.
func Lookup(ctx context.Context, r MemberReader, names []string, failIfNotFound bool) (core.Member, error) {
	if len(names) == 0 {
		return nil, nil
	}
	h := r.Hierarchy()
	var parent core.Member
	if all := h.AllMember(); all != nil {
		parent = all
		if names[0] == all.Name() {
			names = names[1:]
		}
	}
	if parent == nil {
		roots, err := r.RootMembers(ctx)
		if err != nil {
			return nil, err
		}
		parent = findByName(roots, names[0])
		if parent == nil {
			return notFound(names[0], "", failIfNotFound)
		}
		names = names[1:]
	}
	for _, name := range names {
		child, err := r.ChildByName(ctx, parent, name, failIfNotFound)
		if err != nil || child == nil {
			return nil, err
		}
		parent = child
	}
	return parent, nil
}

func findByName(ms []core.Member, name string) core.Member {
	for _, m := range ms {
		if m.Name() == name {
			return m
		}
	}
	return nil
}

func notFound(name, parent string, fail bool) (core.Member, error) {
	if fail {
		return nil, &core.MemberNotFoundError{Name: name, Parent: parent}
	}
	return nil, nil
}

// indexOf is the position of m in list by unique name, or -1.
func indexOf(list []core.Member, m core.Member) int {
	for i, x := range list {
		if core.SameMember(x, m) {
			return i
		}
	}
	return -1
}
