package cache

import (
	"sync"

	"github.com/leapstack-labs/leapolap/internal/constraint"
	"github.com/leapstack-labs/leapolap/pkg/core"
)

// MemberCache stores members and member lists.
type MemberCache interface {
	MakeKey(parent core.Member, key any) MemberKey
	// GetMember looks up a member. With mustCheckCacheStatus the change
	// listener is consulted first and a changed hierarchy is flushed.
	GetMember(key MemberKey, mustCheckCacheStatus bool) core.Member
	// PutMember stores m and returns the member it replaced, or nil.
	PutMember(key MemberKey, m core.Member) core.Member
	// PutMemberIfAbsent stores m unless key already has a member and
	// returns the member cached for key.
	PutMemberIfAbsent(key MemberKey, m core.Member) core.Member
	// GetChildrenFromCache returns false on a miss.
	GetChildrenFromCache(parent core.Member, c constraint.MemberChildrenConstraint) ([]core.Member, bool)
	PutChildren(parent core.Member, c constraint.MemberChildrenConstraint, children []core.Member)
	GetLevelMembersFromCache(level *core.Level, c constraint.TupleConstraint) ([]core.Member, bool)
	PutLevelMembers(level *core.Level, c constraint.TupleConstraint, members []core.Member)
	// IsMutable reports whether RemoveMember and
	// RemoveMemberAndDescendants have any effect.
	IsMutable() bool
	RemoveMember(key MemberKey) core.Member
	RemoveMemberAndDescendants(key MemberKey) core.Member
	FlushCache()
	CheckCacheStatus()
}

// ChangeListener reports whether the data behind a hierarchy changed
// since the last call. It is called on every checked read and must be cheap.
type ChangeListener interface {
	IsHierarchyChanged(h *core.Hierarchy) bool
}

// Lock is the mutex that guards a hierarchy cache. Cube caches over the
// same hierarchy are given the same Lock.
type Lock struct {
	sync.Mutex
	Name string
}

// NewLock returns a named lock.
func NewLock(name string) *Lock {
	return &Lock{Name: name}
}
