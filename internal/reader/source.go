package reader

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapolap/internal/cache"
	"github.com/leapstack-labs/leapolap/internal/constraint"
	"github.com/leapstack-labs/leapolap/internal/exec"
	"github.com/leapstack-labs/leapolap/internal/loader"
	"github.com/leapstack-labs/leapolap/pkg/core"
	"github.com/leapstack-labs/leapolap/pkg/sqlquery"
)

// MemberSource loads members of one hierarchy from the database. It does
// not cache lists; readers above it do.
type MemberSource interface {
	Hierarchy() *core.Hierarchy
	// LevelMembers loads every member of level allowed by c.
	LevelMembers(ctx context.Context, level *core.Level, c constraint.TupleConstraint) ([]core.Member, error)
	// MemberChildren loads the children of parents, which must share a
	// level. The result has one list per parent.
	MemberChildren(ctx context.Context, parents []core.Member, c constraint.MemberChildrenConstraint) ([][]core.Member, error)
	// LevelMemberCount counts the distinct members of level.
	LevelMemberCount(ctx context.Context, level *core.Level) (int64, error)
}

// SqlMemberSource is the MemberSource over a dimension table. Members it
// reads are registered in a member cache so every load of the same row
// yields the same member.
type SqlMemberSource struct {
	hierarchy *core.Hierarchy
	exec      *exec.Executor
	cache     cache.MemberCache
	logger    *slog.Logger
}

var _ MemberSource = (*SqlMemberSource)(nil)

// NewSqlMemberSource creates a source. A nil cache disables member
// registration.
func NewSqlMemberSource(h *core.Hierarchy, ex *exec.Executor, mc cache.MemberCache, logger *slog.Logger) *SqlMemberSource {
	if mc == nil {
		mc = cache.NoCache{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SqlMemberSource{
		hierarchy: h,
		exec:      ex,
		cache:     mc,
		logger:    logger.With("hierarchy", h.UniqueName()),
	}
}

func (s *SqlMemberSource) Hierarchy() *core.Hierarchy { return s.hierarchy }

// levelLayout records where the columns of one level sit in a row,
// relative to the first column of the level.
type levelLayout struct {
	level   *core.Level
	keys    []int
	name    int
	ordinal int
	parent  int
	width   int
}

// addLevelColumns selects the columns of level and orders by it.
func addLevelColumns(q *sqlquery.Query, baseCube *core.Cube, level *core.Level) levelLayout {
	d := q.Dialect()
	base := q.SelectCount()
	l := levelLayout{level: level, name: -1, ordinal: -1, parent: -1}
	for _, col := range level.KeyColumns() {
		l.keys = append(l.keys, q.SelectCount()-base)
		q.AddSelect(constraint.LevelColumn(d, baseCube, nil, level, col), "")
	}
	if nc := level.NameColumn(); nc != "" && !level.IsComposite() && nc != level.KeyColumn() {
		l.name = q.SelectCount() - base
		q.AddSelect(constraint.LevelColumn(d, baseCube, nil, level, nc), "")
	}
	orderCol := level.KeyColumn()
	if oc := level.OrdinalColumn(); oc != "" {
		orderCol = oc
		if oc != level.KeyColumn() {
			l.ordinal = q.SelectCount() - base
			q.AddSelect(constraint.LevelColumn(d, baseCube, nil, level, oc), "")
		}
	}
	if pc := level.ParentColumn(); pc != "" {
		l.parent = q.SelectCount() - base
		q.AddSelect(constraint.LevelColumn(d, baseCube, nil, level, pc), "")
	}
	if !level.IsComposite() {
		q.AddOrderBy(constraint.LevelColumn(d, baseCube, nil, level, orderCol), true, false, true)
	} else {
		for _, col := range level.KeyColumns() {
			q.AddOrderBy(constraint.LevelColumn(d, baseCube, nil, level, col), true, false, true)
		}
	}
	l.width = q.SelectCount() - base
	return l
}

func (l levelLayout) key(c loader.Cursor, col int) any {
	if len(l.keys) == 1 {
		return core.NormalizeKey(c.Value(col + l.keys[0]))
	}
	ck := make(core.CompositeKey, len(l.keys))
	for i, k := range l.keys {
		ck[i] = c.Value(col + k)
	}
	return core.NormalizeKey(ck)
}

func (l levelLayout) memberName(c loader.Cursor, col int) string {
	if l.name < 0 {
		return ""
	}
	v := c.Value(col + l.name)
	if v == nil {
		return ""
	}
	return core.KeyName(v)
}

func (l levelLayout) memberOrdinal(c loader.Cursor, col int, fallback int) int {
	if l.ordinal < 0 {
		return fallback
	}
	switch v := core.NormalizeKey(c.Value(col + l.ordinal)).(type) {
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}

// intern returns the cached member for (parent, key) or registers a new one.
func (s *SqlMemberSource) intern(parent core.Member, level *core.Level, key any, name string, ordinal int) core.Member {
	mk := s.cache.MakeKey(parent, key)
	if m := s.cache.GetMember(mk, false); m != nil {
		return m
	}
	m := core.NewMember(parent, level, key, name)
	m.SetOrdinal(ordinal)
	return s.cache.PutMemberIfAbsent(mk, m)
}

// baseCubeFor picks the cube whose fact table a constrained load joins
// to: the evaluator's cube, or for a virtual cube the first base cube
// that uses h.
func baseCubeFor(c any, h *core.Hierarchy) *core.Cube {
	withEval, ok := c.(interface{ Evaluator() core.Evaluator })
	if !ok || withEval.Evaluator() == nil {
		return nil
	}
	eval := withEval.Evaluator()
	cube := eval.Cube()
	if cube == nil || !cube.IsVirtual() {
		return cube
	}
	cubes := eval.BaseCubes()
	if len(cubes) == 0 {
		cubes = cube.BaseCubes()
	}
	for _, bc := range cubes {
		if bc.UsesHierarchy(h) {
			return bc
		}
	}
	return nil
}

// newQuery starts a query over the table of the hierarchy.
func (s *SqlMemberSource) newQuery(baseCube *core.Cube) (*sqlquery.Query, error) {
	table, alias := constraint.HierarchyTable(baseCube, s.hierarchy)
	if table == "" {
		return nil, core.Internalf("hierarchy %s has no table to read members from", s.hierarchy)
	}
	q := s.exec.NewQuery()
	q.SetDistinct(true)
	q.AddFrom(table, alias)
	return q, nil
}

// pathLevels lists the levels from the root level down to level.
func pathLevels(level *core.Level) []*core.Level {
	h := level.Hierarchy()
	var out []*core.Level
	for d := h.RootLevel().Depth(); d <= level.Depth(); d++ {
		out = append(out, h.Level(d))
	}
	return out
}

// LevelReader reads a member of a non parent-child level together with
// its ancestors from one row.
type LevelReader struct {
	src     *SqlMemberSource
	layouts []levelLayout
	row     int
}

// AddLevel selects the columns of level and of its ancestors into q and
// returns a reader for them.
func (s *SqlMemberSource) AddLevel(q *sqlquery.Query, baseCube *core.Cube, level *core.Level) (*LevelReader, error) {
	if level.IsParentChild() {
		return nil, core.Internalf("level %s is parent-child and cannot be read row by row", level)
	}
	r := &LevelReader{src: s}
	for _, l := range pathLevels(level) {
		r.layouts = append(r.layouts, addLevelColumns(q, baseCube, l))
	}
	return r, nil
}

func (r *LevelReader) ReadMember(c loader.Cursor, col int) (core.Member, int, error) {
	parent := r.src.hierarchy.AllMember()
	var m core.Member
	for _, l := range r.layouts {
		key := l.key(c, col)
		m = r.src.intern(parent, l.level, key, l.memberName(c, col), l.memberOrdinal(c, col, r.row))
		parent = m
		col += l.width
	}
	r.row++
	return m, col, nil
}

func (s *SqlMemberSource) LevelMembers(ctx context.Context, level *core.Level, c constraint.TupleConstraint) ([]core.Member, error) {
	if c == nil {
		c = constraint.Default
	}
	if level.IsAll() {
		return []core.Member{s.hierarchy.AllMember()}, nil
	}
	if level.IsParentChild() {
		return s.parentChildLevelMembers(ctx, c.MemberChildrenConstraint(nil))
	}

	baseCube := baseCubeFor(c, s.hierarchy)
	q, err := s.newQuery(baseCube)
	if err != nil {
		return nil, err
	}
	lr, err := s.AddLevel(q, baseCube, level)
	if err != nil {
		return nil, err
	}
	if err := c.AddConstraint(q, baseCube, nil); err != nil {
		return nil, err
	}
	if err := c.AddLevelConstraint(q, baseCube, nil, level); err != nil {
		return nil, err
	}

	res, err := s.load(ctx, q, "level members", level.UniqueName(), lr)
	if err != nil {
		return nil, err
	}
	return res.Column(0), nil
}

// parentChildLevelMembers loads a parent-child level one generation at a
// time and returns it in hierarchical order.
func (s *SqlMemberSource) parentChildLevelMembers(ctx context.Context, c constraint.MemberChildrenConstraint) ([]core.Member, error) {
	all := s.hierarchy.AllMember()
	if all == nil {
		return nil, core.Internalf("parent-child hierarchy %s needs an all member", s.hierarchy)
	}
	children := make(map[string][]core.Member)
	generation := []core.Member{all}
	for len(generation) > 0 {
		lists, err := s.MemberChildren(ctx, generation, c)
		if err != nil {
			return nil, err
		}
		var next []core.Member
		for i, p := range generation {
			var fresh []core.Member
			for _, m := range lists[i] {
				// a cycle in the parent column would never end
				if _, seen := children[m.UniqueName()]; !seen {
					fresh = append(fresh, m)
				}
			}
			children[p.UniqueName()] = fresh
			next = append(next, fresh...)
		}
		for _, m := range next {
			if _, ok := children[m.UniqueName()]; !ok {
				children[m.UniqueName()] = nil
			}
		}
		generation = next
	}

	var out []core.Member
	stack := append([]core.Member(nil), reversed(children[all.UniqueName()])...)
	for len(stack) > 0 {
		m := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, m)
		stack = append(stack, reversed(children[m.UniqueName()])...)
	}
	return out, nil
}

func reversed(ms []core.Member) []core.Member {
	out := make([]core.Member, len(ms))
	for i, m := range ms {
		out[len(ms)-1-i] = m
	}
	return out
}

// chainID identifies m by the keys of its ancestors and itself.
func chainID(m core.Member) string {
	var parts []string
	for c := m; c != nil && !c.IsAll(); c = c.Parent() {
		parts = append(parts, core.KeyString(c.Key()))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "\x00")
}

func (s *SqlMemberSource) MemberChildren(ctx context.Context, parents []core.Member, c constraint.MemberChildrenConstraint) ([][]core.Member, error) {
	out := make([][]core.Member, len(parents))
	if len(parents) == 0 {
		return out, nil
	}
	if c == nil {
		c = constraint.Default
	}
	childLevel := constraint.ChildLevel(parents[0])
	if childLevel == nil {
		return out, nil
	}
	for _, p := range parents[1:] {
		if constraint.ChildLevel(p) != childLevel {
			return nil, fmt.Errorf("children of %s and %s are on different levels", parents[0], p)
		}
	}

	baseCube := baseCubeFor(c, s.hierarchy)
	q, err := s.newQuery(baseCube)
	if err != nil {
		return nil, err
	}
	var reader childReader
	if childLevel.IsParentChild() {
		reader = s.newParentChildReader(q, baseCube, childLevel, parents)
	} else {
		reader = s.newRegularChildReader(q, baseCube, childLevel, parents)
	}
	if err := c.AddMemberConstraint(q, baseCube, nil, parents); err != nil {
		return nil, err
	}
	if err := c.AddLevelConstraint(q, baseCube, nil, childLevel); err != nil {
		return nil, err
	}

	if _, err := s.load(ctx, q, "member children", childLevel.UniqueName(), reader); err != nil {
		return nil, err
	}
	index := reader.byParent()
	for i, p := range parents {
		out[i] = index[p.UniqueName()]
	}
	return out, nil
}

type childReader interface {
	loader.RowReader
	byParent() map[string][]core.Member
}

// regularChildReader maps each row to its requested parent through the
// ancestor key columns.
type regularChildReader struct {
	src      *SqlMemberSource
	layouts  []levelLayout
	parents  map[string]core.Member
	children map[string][]core.Member
	row      int
}

func (s *SqlMemberSource) newRegularChildReader(q *sqlquery.Query, baseCube *core.Cube, level *core.Level, parents []core.Member) *regularChildReader {
	r := &regularChildReader{
		src:      s,
		parents:  make(map[string]core.Member, len(parents)),
		children: make(map[string][]core.Member, len(parents)),
	}
	for _, l := range pathLevels(level) {
		r.layouts = append(r.layouts, addLevelColumns(q, baseCube, l))
	}
	for _, p := range parents {
		r.parents[chainID(p)] = p
	}
	return r
}

func (r *regularChildReader) ReadMember(c loader.Cursor, col int) (core.Member, int, error) {
	parts := make([]string, 0, len(r.layouts)-1)
	for _, l := range r.layouts[:len(r.layouts)-1] {
		parts = append(parts, core.KeyString(l.key(c, col)))
		col += l.width
	}
	parent, ok := r.parents[strings.Join(parts, "\x00")]
	if !ok {
		return nil, 0, core.Internalf("row for %s matches none of the requested parents", r.layouts[len(r.layouts)-1].level)
	}
	l := r.layouts[len(r.layouts)-1]
	m := r.src.intern(parent, l.level, l.key(c, col), l.memberName(c, col), l.memberOrdinal(c, col, r.row))
	r.row++
	r.children[parent.UniqueName()] = append(r.children[parent.UniqueName()], m)
	return m, col + l.width, nil
}

func (r *regularChildReader) byParent() map[string][]core.Member { return r.children }

// parentChildReader maps rows to parents through the parent column.
type parentChildReader struct {
	src      *SqlMemberSource
	layout   levelLayout
	parents  map[string]core.Member
	root     core.Member
	children map[string][]core.Member
	row      int
}

func (s *SqlMemberSource) newParentChildReader(q *sqlquery.Query, baseCube *core.Cube, level *core.Level, parents []core.Member) *parentChildReader {
	r := &parentChildReader{
		src:      s,
		layout:   addLevelColumns(q, baseCube, level),
		parents:  make(map[string]core.Member, len(parents)),
		children: make(map[string][]core.Member, len(parents)),
	}
	for _, p := range parents {
		if p.IsAll() {
			r.root = p
			continue
		}
		r.parents[core.KeyString(p.Key())] = p
	}
	return r
}

func (r *parentChildReader) ReadMember(c loader.Cursor, col int) (core.Member, int, error) {
	l := r.layout
	pk := core.NormalizeKey(c.Value(col + l.parent))
	parent, ok := r.parents[core.KeyString(pk)]
	if !ok {
		if r.root == nil || !isRootParent(pk, l.level) {
			return nil, 0, core.Internalf("row of %s has unexpected parent %s", l.level, core.KeyName(pk))
		}
		parent = r.root
	}
	m := r.src.intern(parent, l.level, l.key(c, col), l.memberName(c, col), l.memberOrdinal(c, col, r.row))
	r.row++
	r.children[parent.UniqueName()] = append(r.children[parent.UniqueName()], m)
	return m, col + l.width, nil
}

func (r *parentChildReader) byParent() map[string][]core.Member { return r.children }

func isRootParent(key any, level *core.Level) bool {
	return core.IsNullKey(key) || (level.NullParentValue() != "" && core.KeyName(key) == level.NullParentValue())
}

// load runs q and reads every row with r.
func (s *SqlMemberSource) load(ctx context.Context, q *sqlquery.Query, purpose, target string, r loader.RowReader) (*loader.Result, error) {
	l := loader.New(
		[]loader.Target{loader.SQLTarget(target, r)},
		func(ctx context.Context) (loader.Cursor, error) { return s.exec.Execute(ctx, q, purpose) },
		loader.WithLogger(s.logger),
	)
	res, err := l.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("loaded members", "purpose", purpose, "target", target, "rows", len(res.Tuples))
	return res, nil
}

func (s *SqlMemberSource) LevelMemberCount(ctx context.Context, level *core.Level) (int64, error) {
	if level.IsAll() {
		return 1, nil
	}
	q, err := s.newQuery(nil)
	if err != nil {
		return 0, err
	}
	d := q.Dialect()
	for _, l := range pathLevels(level) {
		for _, col := range l.KeyColumns() {
			q.AddSelect(constraint.LevelColumn(d, nil, nil, l, col), "")
		}
	}
	sqlText := "SELECT COUNT(*) AS " + d.QuoteIdentifier("c0") + " FROM (" + q.SQL() + ") AS " + d.QuoteIdentifier("init")
	rows, err := s.exec.ExecuteSQL(ctx, sqlText, "level member count")
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, err
		}
		return 0, core.Internalf("count of %s returned no rows", level)
	}
	return rows.Int64(0)
}
