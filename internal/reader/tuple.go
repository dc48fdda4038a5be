package reader

import (
	"context"
	"log/slog"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/leapstack-labs/leapolap/internal/constraint"
	"github.com/leapstack-labs/leapolap/internal/exec"
	"github.com/leapstack-labs/leapolap/internal/loader"
	"github.com/leapstack-labs/leapolap/pkg/core"
	"github.com/leapstack-labs/leapolap/pkg/sqlquery"
)

// partialCacheSize bounds the replayable SQL results a TupleReader keeps.
const partialCacheSize = 128

// TupleRequest is a cross join of levels to load.
type TupleRequest struct {
	Args []constraint.CrossJoinArg
	// Eval restricts the load to members with data in its context. Nil
	// loads every member.
	Eval   core.Evaluator
	Strict bool
	// MaxRows limits the rows read, 0 reads all. A limited load under a
	// context that comes back short is completed with members outside
	// the context.
	MaxRows int
}

// TupleReader loads tuples of members of several hierarchies with one
// query. Arguments over parent-child or all levels cannot be read from
// columns; their members are enumerated and crossed with each row.
type TupleReader struct {
	// Completion enables the top-up of short limited loads. On by default.
	Completion bool

	exec     *exec.Executor
	sources  map[*core.Hierarchy]*SqlMemberSource
	readers  map[*core.Hierarchy]MemberReader
	partials *lru.Cache[string, [][]core.Member]
	logger   *slog.Logger
}

func NewTupleReader(ex *exec.Executor, logger *slog.Logger) *TupleReader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	partials, _ := lru.New[string, [][]core.Member](partialCacheSize)
	return &TupleReader{
		Completion: true,
		exec:       ex,
		sources:    make(map[*core.Hierarchy]*SqlMemberSource),
		readers:    make(map[*core.Hierarchy]MemberReader),
		partials:   partials,
		logger:     logger,
	}
}

// Register makes a hierarchy loadable. r serves enumerated arguments and
// its cache receives single-level results.
func (t *TupleReader) Register(src *SqlMemberSource, r MemberReader) {
	t.sources[src.Hierarchy()] = src
	t.readers[src.Hierarchy()] = r
}

// FlushPartials drops the replayable results.
func (t *TupleReader) FlushPartials() { t.partials.Purge() }

func enumerated(arg constraint.CrossJoinArg) bool {
	return arg.Level().IsParentChild() || arg.Level().IsAll()
}

// ReadTuples loads the tuples of req, one member per argument in
// argument order.
func (t *TupleReader) ReadTuples(ctx context.Context, req TupleRequest) ([][]core.Member, error) {
	if len(req.Args) == 0 {
		return nil, nil
	}
	var sqlArgs []constraint.CrossJoinArg
	for _, arg := range req.Args {
		if _, ok := t.sources[arg.Level().Hierarchy()]; !ok {
			return nil, core.Internalf("hierarchy %s is not registered for tuple reads", arg.Level().Hierarchy())
		}
		if !enumerated(arg) {
			sqlArgs = append(sqlArgs, arg)
		}
	}
	sc, err := constraint.NewSetConstraint(sqlArgs, req.Eval, req.Strict)
	if err != nil {
		return nil, err
	}

	// one level: the level-members cache of its reader
	single := len(req.Args) == 1 && len(sqlArgs) == 1 && req.MaxRows == 0
	if single {
		level := sqlArgs[0].Level()
		mc := t.readers[level.Hierarchy()].MemberCache()
		mc.CheckCacheStatus()
		if list, ok := mc.GetLevelMembersFromCache(level, sc); ok {
			return column(list), nil
		}
	}

	baseCube, err := tupleBaseCube(req.Eval, sqlArgs)
	if err != nil {
		return nil, err
	}
	q := t.exec.NewQuery()
	q.SetDistinct(true)
	targets := make([]loader.Target, len(req.Args))
	for i, arg := range req.Args {
		level := arg.Level()
		if enumerated(arg) {
			ms, err := t.enumerate(ctx, arg)
			if err != nil {
				return nil, err
			}
			targets[i] = loader.EnumTarget(level.UniqueName(), ms)
			continue
		}
		src := t.sources[level.Hierarchy()]
		table, alias := constraint.HierarchyTable(baseCube, level.Hierarchy())
		q.AddFrom(table, alias)
		lr, err := src.AddLevel(q, baseCube, level)
		if err != nil {
			return nil, err
		}
		targets[i] = loader.SQLTarget(level.UniqueName(), lr)
	}
	if err := sc.AddConstraint(q, baseCube, nil); err != nil {
		return nil, err
	}
	for _, arg := range sqlArgs {
		if err := sc.AddLevelConstraint(q, baseCube, nil, arg.Level()); err != nil {
			return nil, err
		}
	}
	if req.MaxRows > 0 {
		q.SetLimit(req.MaxRows)
	}

	opts := []loader.Option{loader.WithLogger(t.logger)}
	partialKey := ""
	if req.MaxRows == 0 && len(sqlArgs) < len(req.Args) && sc.CacheKey() != "" {
		partialKey = sc.CacheKey()
		if partial, ok := t.partials.Get(partialKey); ok {
			opts = append(opts, loader.WithPartial(partial))
		}
	}
	res, err := loader.New(targets, t.opener(q, "tuples"), opts...).Load(ctx)
	if err != nil {
		return nil, err
	}
	if partialKey != "" && len(sqlArgs) > 0 {
		t.partials.Add(partialKey, res.Partial)
	}
	tuples := res.Tuples

	if t.Completion && req.MaxRows > 0 && len(tuples) < req.MaxRows && req.Eval != nil && len(req.Args) == 1 && len(sqlArgs) == 1 {
		more, err := t.topUp(ctx, baseCube, sc, sqlArgs[0].Level(), res.Column(0), req.MaxRows-len(tuples))
		if err != nil {
			return nil, err
		}
		tuples = append(tuples, column(more)...)
	}
	if single {
		level := sqlArgs[0].Level()
		t.readers[level.Hierarchy()].MemberCache().PutLevelMembers(level, sc, res.Column(0))
	}
	t.logger.Debug("read tuples", "arity", len(req.Args), "tuples", len(tuples), "constraint", sc.CacheKey())
	return tuples, nil
}

// topUp loads up to n members of level that the primary load did not
// return, ignoring the context but keeping the argument restrictions.
func (t *TupleReader) topUp(ctx context.Context, baseCube *core.Cube, sc *constraint.SetConstraint, level *core.Level, found []core.Member, n int) ([]core.Member, error) {
	excl := constraint.NewMemberExclude(found, level, sc)
	src := t.sources[level.Hierarchy()]
	q := t.exec.NewQuery()
	q.SetDistinct(true)
	table, alias := constraint.HierarchyTable(baseCube, level.Hierarchy())
	q.AddFrom(table, alias)
	lr, err := src.AddLevel(q, baseCube, level)
	if err != nil {
		return nil, err
	}
	if err := excl.AddConstraint(q, baseCube, nil); err != nil {
		return nil, err
	}
	if err := excl.AddLevelConstraint(q, baseCube, nil, level); err != nil {
		return nil, err
	}
	q.SetLimit(n)
	res, err := loader.New(
		[]loader.Target{loader.SQLTarget(level.UniqueName(), lr)},
		t.opener(q, "tuple top-up"),
		loader.WithLogger(t.logger),
	).Load(ctx)
	if err != nil {
		return nil, err
	}
	t.logger.Debug("completed short load", "level", level.UniqueName(), "found", len(found), "added", len(res.Tuples))
	return res.Column(0), nil
}

func (t *TupleReader) opener(q *sqlquery.Query, purpose string) loader.Opener {
	return func(ctx context.Context) (loader.Cursor, error) {
		return t.exec.Execute(ctx, q, purpose)
	}
}

// enumerate lists the members of an argument that is crossed in memory.
func (t *TupleReader) enumerate(ctx context.Context, arg constraint.CrossJoinArg) ([]core.Member, error) {
	level := arg.Level()
	if ml, ok := arg.(*constraint.MemberListArg); ok && !ml.IsExclude() {
		return ml.Members(), nil
	}
	r := t.readers[level.Hierarchy()]
	all, err := r.LevelMembers(ctx, level, constraint.Default)
	if err != nil {
		return nil, err
	}
	switch a := arg.(type) {
	case *constraint.DescendantsArg:
		if p := a.Parent(); p != nil && !p.IsAll() {
			return slices.DeleteFunc(slices.Clone(all), func(m core.Member) bool {
				return !core.IsAncestorOf(p, m)
			}), nil
		}
	case *constraint.MemberListArg:
		return slices.DeleteFunc(slices.Clone(all), func(m core.Member) bool {
			return indexOf(a.Members(), m) >= 0
		}), nil
	}
	return all, nil
}

// tupleBaseCube picks the cube whose fact table joins every hierarchy of
// args. Virtual cubes resolve to their first base cube that does.
func tupleBaseCube(eval core.Evaluator, args []constraint.CrossJoinArg) (*core.Cube, error) {
	if eval == nil || eval.Cube() == nil {
		return nil, nil
	}
	cube := eval.Cube()
	if !cube.IsVirtual() {
		return cube, nil
	}
	cubes := eval.BaseCubes()
	if len(cubes) == 0 {
		cubes = cube.BaseCubes()
	}
	for _, bc := range cubes {
		if slices.IndexFunc(args, func(a constraint.CrossJoinArg) bool {
			return !bc.UsesHierarchy(a.Level().Hierarchy())
		}) < 0 {
			return bc, nil
		}
	}
	return nil, core.Internalf("no base cube of %s joins every hierarchy of the request", cube)
}

func column(ms []core.Member) [][]core.Member {
	out := make([][]core.Member, len(ms))
	for i, m := range ms {
		out[i] = []core.Member{m}
	}
	return out
}
