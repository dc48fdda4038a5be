// Package cache holds loaded members: one entry per (parent, key), the
// children of a parent under a constraint, and the members of a level
// under a constraint. The three partitions of a Helper change together
// under one lock.
package cache

import (
	"github.com/leapstack-labs/leapolap/pkg/core"
)

// MemberKey identifies a member by its parent and its key.
type MemberKey struct {
	parent core.Member
	key    any
	id     string
}

// NewMemberKey builds the key of the child of parent with key. parent is
// nil for roots of a hierarchy without an all member.
func NewMemberKey(parent core.Member, key any) MemberKey {
	key = core.NormalizeKey(key)
	pid := ""
	if parent != nil {
		pid = parent.UniqueName()
	}
	return MemberKey{parent: parent, key: key, id: pid + "\x00" + core.KeyString(key)}
}

func (k MemberKey) Parent() core.Member { return k.parent }
func (k MemberKey) Key() any            { return k.key }

// ID is the comparable form of the key.
func (k MemberKey) ID() string { return k.id }

// Equal compares parent unique names and keys.
func (k MemberKey) Equal(o MemberKey) bool { return k.id == o.id }

// Level is the level of the member the key names: the level below the
// parent's, or the parent's own level in a parent-child hierarchy. It is
// nil when the parent is nil.
func (k MemberKey) Level() *core.Level {
	if k.parent == nil {
		return nil
	}
	if k.parent.IsAll() {
		return k.parent.Hierarchy().RootLevel()
	}
	if k.parent.Level().IsParentChild() {
		return k.parent.Level()
	}
	return k.parent.Level().ChildLevel()
}

func (k MemberKey) String() string {
	if k.parent == nil {
		return core.KeyName(k.key)
	}
	return k.parent.UniqueName() + "/" + core.KeyName(k.key)
}
