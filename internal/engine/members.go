package engine

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/leapolap/internal/constraint"
	"github.com/leapstack-labs/leapolap/internal/predicate"
	"github.com/leapstack-labs/leapolap/internal/reader"
	"github.com/leapstack-labs/leapolap/pkg/core"
)

// Request is the evaluation context of a member request.
type Request struct {
	Cube string
	// Role hides the members the role cannot access. Empty is unrestricted.
	Role string
	// Context lists members, by unique name, that restrict native loads.
	Context []string
	// Measure is the current measure. Empty means the first of the cube.
	Measure string
	// NonEmpty drops members without fact rows in the context.
	NonEmpty bool
}

// scope is a resolved Request.
type scope struct {
	m    *model
	cube *cubeReaders
	role *core.GrantRole
	eval *core.Context
}

func (e *Engine) prepare(ctx context.Context, req Request) (*scope, error) {
	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}
	m := e.current()
	cr, ok := m.cubes[req.Cube]
	if !ok {
		return nil, fmt.Errorf("unknown cube %q", req.Cube)
	}
	s := &scope{m: m, cube: cr}
	if req.Role != "" {
		if s.role = m.schema.Role(req.Role); s.role == nil {
			return nil, fmt.Errorf("unknown role %q", req.Role)
		}
	}

	var members []core.Member
	for _, uname := range req.Context {
		h, names, err := m.schema.SplitMember(uname)
		if err != nil {
			return nil, err
		}
		hr, ok := m.hierarchies[h]
		if !ok || !cr.cube.UsesHierarchy(h) {
			return nil, fmt.Errorf("context member %s is not in cube %s", uname, req.Cube)
		}
		member, err := reader.Lookup(ctx, hr.reader, names, true)
		if err != nil {
			return nil, fmt.Errorf("context member %s: %w", uname, err)
		}
		members = append(members, member)
	}
	measure, err := s.measure(req.Measure)
	if err != nil {
		return nil, err
	}
	if measure != nil {
		members = append(members, measure)
	}

	s.eval = core.NewContext(cr.cube).WithMembers(members...).WithNonEmpty(req.NonEmpty)
	if s.role != nil {
		s.eval = s.eval.WithRole(s.role)
	}
	return s, nil
}

func (s *scope) measure(name string) (core.Member, error) {
	c := s.cube.cube
	if name == "" {
		if ms := c.Measures(); len(ms) > 0 {
			return ms[0], nil
		}
		return nil, nil
	}
	m := c.Measure(name)
	if m == nil {
		return nil, fmt.Errorf("unknown measure %q in cube %s", name, c.Name())
	}
	return m, nil
}

func (s *scope) reader(h *core.Hierarchy) (reader.MemberReader, error) {
	r, ok := s.cube.readers[h]
	if !ok {
		return nil, fmt.Errorf("hierarchy %s is not used by cube %s", h.UniqueName(), s.cube.cube.Name())
	}
	if s.role != nil {
		return reader.NewRestrictedMemberReader(r, s.role), nil
	}
	return r, nil
}

func (s *scope) level(uname string) (*core.Level, reader.MemberReader, error) {
	l := s.m.schema.Level(uname)
	if l == nil {
		return nil, nil, fmt.Errorf("unknown level %q", uname)
	}
	r, err := s.reader(l.Hierarchy())
	if err != nil {
		return nil, nil, err
	}
	return l, r, nil
}

func (s *scope) lookup(ctx context.Context, uname string, failIfNotFound bool) (core.Member, reader.MemberReader, error) {
	h, names, err := s.m.schema.SplitMember(uname)
	if err != nil {
		return nil, nil, err
	}
	if len(names) == 0 {
		return nil, nil, fmt.Errorf("%s names a hierarchy, not a member", uname)
	}
	r, err := s.reader(h)
	if err != nil {
		return nil, nil, err
	}
	m, err := reader.Lookup(ctx, r, names, failIfNotFound)
	if err != nil {
		return nil, nil, err
	}
	return m, r, nil
}

func (s *scope) mustLookup(ctx context.Context, uname string) (core.Member, reader.MemberReader, error) {
	return s.lookup(ctx, uname, true)
}

// LevelMembers returns the members of a level, by level unique name.
func (e *Engine) LevelMembers(ctx context.Context, req Request, level string) ([]core.Member, error) {
	s, err := e.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	l, r, err := s.level(level)
	if err != nil {
		return nil, err
	}
	return r.LevelMembers(ctx, l, e.factory.LevelMembersConstraint(s.eval, l))
}

// LevelMemberCount counts the members of a level.
func (e *Engine) LevelMemberCount(ctx context.Context, req Request, level string) (int64, error) {
	s, err := e.prepare(ctx, req)
	if err != nil {
		return 0, err
	}
	l, r, err := s.level(level)
	if err != nil {
		return 0, err
	}
	return r.LevelMemberCount(ctx, l)
}

// Children returns the children of a member.
func (e *Engine) Children(ctx context.Context, req Request, member string) ([]core.Member, error) {
	s, err := e.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	m, r, err := s.mustLookup(ctx, member)
	if err != nil {
		return nil, err
	}
	return r.MemberChildren(ctx, m, e.factory.MemberChildrenConstraint(s.eval))
}

// Lookup resolves a member unique name one name at a time. A missing
// member is nil unless failIfNotFound is set.
func (e *Engine) Lookup(ctx context.Context, req Request, member string, failIfNotFound bool) (core.Member, error) {
	s, err := e.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	m, _, err := s.lookup(ctx, member, failIfNotFound)
	return m, err
}

// Lead steps n members forward, or backward for negative n, along the
// member's level.
func (e *Engine) Lead(ctx context.Context, req Request, member string, n int) (core.Member, error) {
	s, err := e.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	m, r, err := s.mustLookup(ctx, member)
	if err != nil {
		return nil, err
	}
	return r.LeadMember(ctx, m, n)
}

// Range returns the members of one level between start and end.
func (e *Engine) Range(ctx context.Context, req Request, start, end string) ([]core.Member, error) {
	s, err := e.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	m1, r, err := s.mustLookup(ctx, start)
	if err != nil {
		return nil, err
	}
	m2, _, err := s.mustLookup(ctx, end)
	if err != nil {
		return nil, err
	}
	if m1.Level() != m2.Level() {
		return nil, fmt.Errorf("range bounds %s and %s are on different levels", start, end)
	}
	return r.MemberRange(ctx, m1, m2)
}

// Compare orders two members of one hierarchy.
func (e *Engine) Compare(ctx context.Context, req Request, a, b string, siblingsAreEqual bool) (int, error) {
	s, err := e.prepare(ctx, req)
	if err != nil {
		return 0, err
	}
	m1, r, err := s.mustLookup(ctx, a)
	if err != nil {
		return 0, err
	}
	m2, _, err := s.mustLookup(ctx, b)
	if err != nil {
		return 0, err
	}
	if m1.Hierarchy() != m2.Hierarchy() {
		return 0, fmt.Errorf("%s and %s are in different hierarchies", a, b)
	}
	return r.Compare(ctx, m1, m2, siblingsAreEqual)
}

// Tuples cross joins the members of levels, one member per level in
// argument order. maxRows limits the load when positive.
func (e *Engine) Tuples(ctx context.Context, req Request, levels []string, maxRows int) ([][]core.Member, error) {
	s, err := e.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	args := make([]constraint.CrossJoinArg, 0, len(levels))
	for _, uname := range levels {
		l, _, err := s.level(uname)
		if err != nil {
			return nil, err
		}
		args = append(args, constraint.NewDescendantsArg(l, nil))
	}
	tr := reader.TupleRequest{Args: args, MaxRows: maxRows}
	if e.factory.NativeNonEmpty {
		tr.Eval = s.eval
	}
	tuples, err := s.m.tuples.ReadTuples(ctx, tr)
	if err != nil || s.role == nil {
		return tuples, err
	}
	out := tuples[:0:0]
	for _, tuple := range tuples {
		if accessible(s.role, tuple) {
			out = append(out, tuple)
		}
	}
	return out, nil
}

func accessible(role core.Role, tuple []core.Member) bool {
	for _, m := range tuple {
		if !role.CanAccess(m) {
			return false
		}
	}
	return true
}

// CompoundPredicate builds the predicate that restricts a cell request
// of the current measure to tuples, each given as member unique names.
func (e *Engine) CompoundPredicate(ctx context.Context, req Request, tuples [][]string) (*predicate.CompoundPredicateInfo, error) {
	s, err := e.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	resolved := make([][]core.Member, 0, len(tuples))
	for _, tuple := range tuples {
		members := make([]core.Member, 0, len(tuple))
		for _, uname := range tuple {
			m, _, err := s.mustLookup(ctx, uname)
			if err != nil {
				return nil, err
			}
			members = append(members, shared(m))
		}
		resolved = append(resolved, members)
	}
	measure := core.CurrentMeasure(s.eval)
	if measure == nil {
		return nil, fmt.Errorf("cube %s has no measure", req.Cube)
	}
	return predicate.NewCompoundPredicateInfo(e.exec.Dialect(), resolved, measure, s.eval)
}

// shared strips the cube view from m.
func shared(m core.Member) core.Member {
	if cm, ok := m.(*core.CubeMember); ok {
		return cm.Shared()
	}
	return m
}
