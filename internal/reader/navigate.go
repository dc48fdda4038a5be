package reader

import (
	"context"

	"github.com/leapstack-labs/leapolap/internal/constraint"
	"github.com/leapstack-labs/leapolap/pkg/core"
)

// lister is what sibling navigation needs from a reader.
type lister interface {
	RootMembers(ctx context.Context) ([]core.Member, error)
	MemberChildren(ctx context.Context, parent core.Member, c constraint.MemberChildrenConstraint) ([]core.Member, error)
}

// siblings returns the unrestricted sibling list of m, m included, and
// the position of m in it.
func siblings(ctx context.Context, l lister, m core.Member) ([]core.Member, int, error) {
	var (
		list []core.Member
		err  error
	)
	if p := m.Parent(); p != nil {
		list, err = l.MemberChildren(ctx, p, constraint.Default)
	} else {
		list, err = l.RootMembers(ctx)
	}
	if err != nil {
		return nil, -1, err
	}
	i := indexOf(list, m)
	if i < 0 {
		return nil, -1, core.Internalf("member %s is missing from the children of its parent", m.UniqueName())
	}
	return list, i, nil
}

func compareMembers(ctx context.Context, l lister, m1, m2 core.Member, siblingsAreEqual bool) (int, error) {
	tie := 0
	orig1, orig2 := m1, m2
	for first := true; ; first = false {
		if core.SameMember(m1, m2) {
			return tie, nil
		}
		p1, p2 := m1.Parent(), m2.Parent()
		if core.SameMember(p1, p2) {
			if first && siblingsAreEqual {
				return 0, nil
			}
			return compareSiblings(ctx, l, m1, m2)
		}
		// climb the deeper member; a member sorts after its ancestors
		switch d1, d2 := m1.Depth(), m2.Depth(); {
		case d1 < d2:
			m2, tie = p2, -1
		case d1 > d2:
			m1, tie = p1, 1
		default:
			m1, m2 = p1, p2
		}
		if m1 == nil || m2 == nil {
			return 0, core.Internalf("members %s and %s have no common ancestor", orig1.UniqueName(), orig2.UniqueName())
		}
	}
}

func compareSiblings(ctx context.Context, l lister, m1, m2 core.Member) (int, error) {
	list, i1, err := siblings(ctx, l, m1)
	if err != nil {
		return 0, err
	}
	i2 := indexOf(list, m2)
	if i2 < 0 {
		return 0, core.Internalf("member %s is missing from the children of its parent", m2.UniqueName())
	}
	switch {
	case i1 < i2:
		return -1, nil
	case i1 > i2:
		return 1, nil
	}
	return 0, nil
}

// siblingFrame is one level of a sibling walk: a sibling list, the
// position in it, and the parent the list belongs to.
type siblingFrame struct {
	list   []core.Member
	pos    int
	parent core.Member
}

// siblingIterator walks the members of one depth in hierarchy order.
// frames[0] holds the current member; higher frames are the parent's,
// grandparent's and so on, loaded only when a walk runs off the end of
// the frame below.
type siblingIterator struct {
	l      lister
	frames []siblingFrame
}

func newSiblingIterator(ctx context.Context, l lister, m core.Member) (*siblingIterator, error) {
	list, pos, err := siblings(ctx, l, m)
	if err != nil {
		return nil, err
	}
	return &siblingIterator{l: l, frames: []siblingFrame{{list: list, pos: pos, parent: m.Parent()}}}, nil
}

// step moves dir (+1 or -1) members and returns the member reached, or
// nil past either end of the level.
func (it *siblingIterator) step(ctx context.Context, dir int) (core.Member, error) {
	level := 0
	for {
		f := &it.frames[level]
		f.pos += dir
		if f.pos >= 0 && f.pos < len(f.list) {
			if level == 0 {
				return f.list[f.pos], nil
			}
			// descend into the first (or last) child of the new parent
			parent := f.list[f.pos]
			children, err := it.l.MemberChildren(ctx, parent, constraint.Default)
			if err != nil {
				return nil, err
			}
			start := -1
			if dir < 0 {
				start = len(children)
			}
			level--
			it.frames[level] = siblingFrame{list: children, pos: start, parent: parent}
			continue
		}

		// climb to the parent's siblings
		f.pos -= dir
		if f.parent == nil || f.parent.IsAll() {
			return nil, nil
		}
		level++
		if level == len(it.frames) {
			list, pos, err := siblings(ctx, it.l, f.parent)
			if err != nil {
				return nil, err
			}
			it.frames = append(it.frames, siblingFrame{list: list, pos: pos, parent: f.parent.Parent()})
		}
	}
}

func leadMember(ctx context.Context, l lister, m core.Member, n int) (core.Member, error) {
	if n == 0 || m.IsNull() {
		return m, nil
	}
	if m.IsAll() {
		return m.Hierarchy().NullMember(), nil
	}
	it, err := newSiblingIterator(ctx, l, m)
	if err != nil {
		return nil, err
	}
	dir := 1
	if n < 0 {
		dir, n = -1, -n
	}
	cur := m
	for range n {
		cur, err = it.step(ctx, dir)
		if err != nil {
			return nil, err
		}
		if cur == nil {
			return m.Hierarchy().NullMember(), nil
		}
	}
	return cur, nil
}

func memberRange(ctx context.Context, l lister, start, end core.Member) ([]core.Member, error) {
	if start.Level() != end.Level() {
		return nil, core.Internalf("range from %s to %s spans levels", start.UniqueName(), end.UniqueName())
	}
	c, err := compareMembers(ctx, l, start, end, false)
	if err != nil {
		return nil, err
	}
	if c > 0 {
		start, end = end, start
	}
	if core.SameMember(start.Parent(), end.Parent()) {
		list, i, err := siblings(ctx, l, start)
		if err != nil {
			return nil, err
		}
		j := indexOf(list, end)
		if j < 0 {
			return nil, core.Internalf("member %s is missing from the children of its parent", end.UniqueName())
		}
		return append([]core.Member(nil), list[i:j+1]...), nil
	}

	it, err := newSiblingIterator(ctx, l, start)
	if err != nil {
		return nil, err
	}
	out := []core.Member{start}
	for cur := start; !core.SameMember(cur, end); {
		cur, err = it.step(ctx, 1)
		if err != nil {
			return nil, err
		}
		if cur == nil {
			return nil, core.Internalf("walk from %s never reached %s", start.UniqueName(), end.UniqueName())
		}
		out = append(out, cur)
	}
	return out, nil
}
