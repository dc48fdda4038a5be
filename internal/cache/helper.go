package cache

import (
	"cmp"
	"log/slog"
	"slices"

	"github.com/leapstack-labs/leapolap/internal/constraint"
	"github.com/leapstack-labs/leapolap/internal/metrics"
	"github.com/leapstack-labs/leapolap/pkg/core"
)

// Options configures a Helper.
type Options struct {
	// Lock is shared with dependent caches. A new lock is made when nil.
	Lock     *Lock
	Listener ChangeListener
	Policy   PolicyConfig
	Logger   *slog.Logger
}

type memberEntry struct {
	key MemberKey
	m   core.Member
}

type childrenKey struct {
	parent string
	ckey   string
}

type levelKey struct {
	level *core.Level
	ckey  string
}

// Helper is the mutable member cache of one hierarchy.
type Helper struct {
	lock      *Lock
	hierarchy *core.Hierarchy
	listener  ChangeListener
	logger    *slog.Logger

	members  SmartCache[string, memberEntry]
	children SmartCache[childrenKey, []core.Member]
	levels   SmartCache[levelKey, []core.Member]
	// named accumulates children found by name, per parent unique name.
	named map[string][]core.Member
}

var _ MemberCache = (*Helper)(nil)

// NewHelper creates the cache for h.
func NewHelper(h *core.Hierarchy, opts Options) (*Helper, error) {
	members, err := NewSmartCache[string, memberEntry](opts.Policy)
	if err != nil {
		return nil, err
	}
	children, err := NewSmartCache[childrenKey, []core.Member](opts.Policy)
	if err != nil {
		return nil, err
	}
	levels, err := NewSmartCache[levelKey, []core.Member](opts.Policy)
	if err != nil {
		return nil, err
	}
	lock := opts.Lock
	if lock == nil {
		lock = NewLock(h.UniqueName())
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Helper{
		lock:      lock,
		hierarchy: h,
		listener:  opts.Listener,
		logger:    logger.With(slog.String("hierarchy", h.UniqueName())),
		members:   members,
		children:  children,
		levels:    levels,
		named:     make(map[string][]core.Member),
	}, nil
}

// Lock returns the lock guarding the cache.
func (h *Helper) Lock() *Lock { return h.lock }

func (h *Helper) Hierarchy() *core.Hierarchy { return h.hierarchy }

func (h *Helper) MakeKey(parent core.Member, key any) MemberKey {
	return NewMemberKey(parent, key)
}

func (h *Helper) GetMember(key MemberKey, mustCheckCacheStatus bool) core.Member {
	if mustCheckCacheStatus {
		h.CheckCacheStatus()
	}
	h.lock.Lock()
	defer h.lock.Unlock()
	e, ok := h.members.Get(key.id)
	lookup("member", ok)
	if !ok {
		return nil
	}
	return e.m
}

func (h *Helper) PutMember(key MemberKey, m core.Member) core.Member {
	h.lock.Lock()
	defer h.lock.Unlock()
	old, ok := h.members.Put(key.id, memberEntry{key: key, m: m})
	if !ok {
		return nil
	}
	return old.m
}

func (h *Helper) PutMemberIfAbsent(key MemberKey, m core.Member) core.Member {
	h.lock.Lock()
	defer h.lock.Unlock()
	if e, ok := h.members.Get(key.id); ok {
		return e.m
	}
	h.members.Put(key.id, memberEntry{key: key, m: m})
	return m
}

func (h *Helper) GetChildrenFromCache(parent core.Member, c constraint.MemberChildrenConstraint) ([]core.Member, bool) {
	if c == nil {
		c = constraint.Default
	}
	h.lock.Lock()
	defer h.lock.Unlock()

	if byName, ok := c.(*constraint.ChildByName); ok {
		found, ok := h.findNamedChildren(parent, byName.ChildNames())
		lookup("children", ok)
		return found, ok
	}
	ckey := c.CacheKey()
	if ckey == "" {
		lookup("children", false)
		return nil, false
	}
	list, ok := h.children.Get(childrenKey{parent: parent.UniqueName(), ckey: ckey})
	lookup("children", ok)
	if !ok {
		return nil, false
	}
	return slices.Clone(list), true
}

// findNamedChildren answers a by-name lookup from the unrestricted
// children of parent or from children found by name before. Unless every
// name is found it is a miss.
func (h *Helper) findNamedChildren(parent core.Member, names []string) ([]core.Member, bool) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	pid := parent.UniqueName()
	sources := [][]core.Member{h.named[pid]}
	if list, ok := h.children.Get(childrenKey{parent: pid, ckey: constraint.DefaultKey}); ok {
		sources = [][]core.Member{list, h.named[pid]}
	}
	for _, src := range sources {
		var found []core.Member
		seen := make(map[string]bool, len(want))
		for _, m := range src {
			if want[m.Name()] && !seen[m.Name()] {
				seen[m.Name()] = true
				found = append(found, m)
			}
		}
		if len(seen) == len(want) {
			return found, true
		}
	}
	return nil, false
}

func (h *Helper) PutChildren(parent core.Member, c constraint.MemberChildrenConstraint, children []core.Member) {
	if c == nil {
		c = constraint.Default
	}
	h.lock.Lock()
	defer h.lock.Unlock()

	pid := parent.UniqueName()
	if _, ok := c.(*constraint.ChildByName); ok {
		h.named[pid] = mergeNamed(h.named[pid], children)
		return
	}
	ckey := c.CacheKey()
	if ckey == "" {
		return
	}
	h.children.Put(childrenKey{parent: pid, ckey: ckey}, slices.Clone(children))
}

// mergeNamed adds found to the sorted, duplicate-free set acc.
func mergeNamed(acc, found []core.Member) []core.Member {
	out := slices.Clone(acc)
	for _, m := range found {
		if !slices.ContainsFunc(out, func(x core.Member) bool { return core.SameMember(x, m) }) {
			out = append(out, m)
		}
	}
	slices.SortStableFunc(out, func(a, b core.Member) int {
		return cmp.Or(cmp.Compare(a.Ordinal(), b.Ordinal()), core.CompareKeys(a.Key(), b.Key()))
	})
	return out
}

func (h *Helper) GetLevelMembersFromCache(level *core.Level, c constraint.TupleConstraint) ([]core.Member, bool) {
	if c == nil {
		c = constraint.Default
	}
	ckey := c.CacheKey()
	h.lock.Lock()
	defer h.lock.Unlock()
	if ckey == "" {
		lookup("level", false)
		return nil, false
	}
	list, ok := h.levels.Get(levelKey{level: level, ckey: ckey})
	lookup("level", ok)
	if !ok {
		return nil, false
	}
	return slices.Clone(list), true
}

func (h *Helper) PutLevelMembers(level *core.Level, c constraint.TupleConstraint, members []core.Member) {
	if c == nil {
		c = constraint.Default
	}
	ckey := c.CacheKey()
	if ckey == "" {
		return
	}
	h.lock.Lock()
	defer h.lock.Unlock()
	h.levels.Put(levelKey{level: level, ckey: ckey}, slices.Clone(members))
}

func (h *Helper) IsMutable() bool { return true }

// RemoveMember removes the member named by key and every cached list
// that can no longer be trusted without it.
func (h *Helper) RemoveMember(key MemberKey) core.Member {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.removeMemberLocked(key)
}

func (h *Helper) removeMemberLocked(key MemberKey) core.Member {
	m := h.resolveLocked(key)
	if m == nil {
		return nil
	}
	h.removeLocked(key, m)
	return m
}

// removeLocked drops the resolved member m of key from every partition.
func (h *Helper) removeLocked(key MemberKey, m core.Member) {
	uname := m.UniqueName()
	pid := ""
	if p := key.Parent(); p != nil {
		pid = p.UniqueName()
	} else if p := m.Parent(); p != nil {
		pid = p.UniqueName()
	}

	// level lists at and below the member's depth
	level := m.Level()
	for _, lk := range h.levels.Keys() {
		if lk.level.Hierarchy() == level.Hierarchy() && lk.level.Depth() >= level.Depth() {
			h.levels.Remove(lk)
			lk.level.ResetApproxRowCount()
		}
	}

	for _, ck := range h.children.Keys() {
		switch {
		case ck.parent == uname:
			h.children.Remove(ck)
		case ck.parent != pid:
		case ck.ckey == constraint.DefaultKey:
			list, _ := h.children.Get(ck)
			if i := indexOf(list, uname); i >= 0 {
				h.children.Put(ck, slices.Delete(slices.Clone(list), i, i+1))
			}
		default:
			if list, ok := h.children.Get(ck); ok && indexOf(list, uname) >= 0 {
				h.children.Remove(ck)
			}
		}
	}

	if named, ok := h.named[pid]; ok {
		if i := indexOf(named, uname); i >= 0 {
			h.named[pid] = slices.Delete(slices.Clone(named), i, i+1)
		}
	}
	delete(h.named, uname)

	h.members.Remove(key.id)
	metrics.CacheRemovals.WithLabelValues(h.hierarchy.UniqueName()).Inc()
	h.logger.Debug("removed member", slog.String("member", uname))
}

// resolveLocked finds the member for key in the key index, falling back
// to the unrestricted children of its parent.
func (h *Helper) resolveLocked(key MemberKey) core.Member {
	if e, ok := h.members.Get(key.id); ok {
		return e.m
	}
	if key.Parent() == nil {
		return nil
	}
	list, ok := h.children.Get(childrenKey{parent: key.Parent().UniqueName(), ckey: constraint.DefaultKey})
	if !ok {
		return nil
	}
	for _, m := range list {
		if core.CompareKeys(m.Key(), key.Key()) == 0 {
			return m
		}
	}
	return nil
}

// RemoveMemberAndDescendants removes the member and every cached member
// below it, reached through cached child lists and the key index.
func (h *Helper) RemoveMemberAndDescendants(key MemberKey) core.Member {
	h.lock.Lock()
	defer h.lock.Unlock()

	root := h.resolveLocked(key)
	if root == nil {
		return nil
	}
	byParent := make(map[string][]memberEntry)
	for _, id := range h.members.Keys() {
		e, ok := h.members.Get(id)
		if ok && e.key.Parent() != nil {
			p := e.key.Parent().UniqueName()
			byParent[p] = append(byParent[p], e)
		}
	}

	// a descendant need not be in the key index
	stack := []memberEntry{{key: key, m: root}}
	seen := map[string]bool{key.id: true}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		uname := e.m.UniqueName()
		var below []memberEntry
		for _, ck := range h.children.Keys() {
			if ck.parent != uname {
				continue
			}
			list, _ := h.children.Get(ck)
			for _, c := range list {
				below = append(below, memberEntry{key: NewMemberKey(e.m, c.Key()), m: c})
			}
		}
		for _, c := range h.named[uname] {
			below = append(below, memberEntry{key: NewMemberKey(e.m, c.Key()), m: c})
		}
		below = append(below, byParent[uname]...)
		for _, b := range below {
			if !seen[b.key.id] {
				seen[b.key.id] = true
				stack = append(stack, b)
			}
		}
		h.removeLocked(e.key, e.m)
	}
	return root
}

// FlushCache empties every partition and forgets level row counts.
func (h *Helper) FlushCache() {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.flushLocked("explicit")
}

func (h *Helper) flushLocked(reason string) {
	h.members.Clear()
	h.children.Clear()
	h.levels.Clear()
	clear(h.named)
	for _, l := range h.hierarchy.Levels() {
		l.ResetApproxRowCount()
	}
	metrics.CacheFlushes.WithLabelValues(h.hierarchy.UniqueName(), reason).Inc()
	h.logger.Debug("flushed member cache", slog.String("reason", reason))
}

// CheckCacheStatus flushes the cache if the listener reports a change.
func (h *Helper) CheckCacheStatus() {
	if h.listener == nil {
		return
	}
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.listener.IsHierarchyChanged(h.hierarchy) {
		h.flushLocked("changed")
	}
}

// Stats reports the size of each partition.
func (h *Helper) Stats() (members, children, levels int) {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.members.Len(), h.children.Len(), h.levels.Len()
}

func indexOf(list []core.Member, uname string) int {
	return slices.IndexFunc(list, func(m core.Member) bool { return m.UniqueName() == uname })
}

func lookup(partition string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	metrics.CacheLookups.WithLabelValues(partition, result).Inc()
}
