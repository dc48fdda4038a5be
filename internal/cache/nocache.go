package cache

import (
	"github.com/leapstack-labs/leapolap/internal/constraint"
	"github.com/leapstack-labs/leapolap/pkg/core"
)

// NoCache keeps nothing. Every lookup misses and every store is dropped.
type NoCache struct{}

var _ MemberCache = NoCache{}

func (NoCache) MakeKey(parent core.Member, key any) MemberKey { return NewMemberKey(parent, key) }
func (NoCache) GetMember(MemberKey, bool) core.Member         { return nil }
func (NoCache) PutMember(MemberKey, core.Member) core.Member  { return nil }

func (NoCache) PutMemberIfAbsent(_ MemberKey, m core.Member) core.Member { return m }

func (NoCache) GetChildrenFromCache(core.Member, constraint.MemberChildrenConstraint) ([]core.Member, bool) {
	return nil, false
}

func (NoCache) PutChildren(core.Member, constraint.MemberChildrenConstraint, []core.Member) {}

func (NoCache) GetLevelMembersFromCache(*core.Level, constraint.TupleConstraint) ([]core.Member, bool) {
	return nil, false
}

func (NoCache) PutLevelMembers(*core.Level, constraint.TupleConstraint, []core.Member) {}

func (NoCache) IsMutable() bool                                  { return false }
func (NoCache) RemoveMember(MemberKey) core.Member               { return nil }
func (NoCache) RemoveMemberAndDescendants(MemberKey) core.Member { return nil }
func (NoCache) FlushCache()                                      {}
func (NoCache) CheckCacheStatus()                                {}
