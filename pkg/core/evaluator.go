package core

import "fmt"

// Evaluator supplies the query context a constraint is built in.
type Evaluator interface {
	Cube() *Cube
	// BaseCubes lists the cubes a virtual cube query reaches.
	BaseCubes() []*Cube
	// Members returns the current member of each hierarchy in context.
	Members() []Member
	// SlicerTuples returns the tuples of a compound slicer, or nil.
	SlicerTuples() [][]Member
	Role() Role
	NonEmpty() bool
	// EvaluateSet evaluates a set expression to its members.
	EvaluateSet(expr Expression) ([]Member, error)
}

// Context is a plain Evaluator holding its state in fields.
type Context struct {
	cube      *Cube
	baseCubes []*Cube
	members   []Member
	slicer    [][]Member
	role      Role
	nonEmpty  bool
}

// NewContext returns an evaluator over cube with no coordinates.
func NewContext(cube *Cube) *Context {
	return &Context{cube: cube, baseCubes: cube.BaseCubes()}
}

// WithMembers replaces the current coordinate of each member's hierarchy.
func (c *Context) WithMembers(members ...Member) *Context {
	out := c.clone()
	for _, m := range members {
		replaced := false
		for i, cur := range out.members {
			if cur.Hierarchy() == m.Hierarchy() {
				out.members[i] = m
				replaced = true
				break
			}
		}
		if !replaced {
			out.members = append(out.members, m)
		}
	}
	return out
}

func (c *Context) WithSlicer(tuples [][]Member) *Context {
	out := c.clone()
	out.slicer = tuples
	return out
}

func (c *Context) WithRole(r Role) *Context {
	out := c.clone()
	out.role = r
	return out
}

func (c *Context) WithNonEmpty(nonEmpty bool) *Context {
	out := c.clone()
	out.nonEmpty = nonEmpty
	return out
}

func (c *Context) WithBaseCubes(cubes ...*Cube) *Context {
	out := c.clone()
	out.baseCubes = cubes
	return out
}

func (c *Context) clone() *Context {
	out := *c
	out.members = append([]Member(nil), c.members...)
	return &out
}

func (c *Context) Cube() *Cube              { return c.cube }
func (c *Context) BaseCubes() []*Cube       { return c.baseCubes }
func (c *Context) Members() []Member        { return c.members }
func (c *Context) SlicerTuples() [][]Member { return c.slicer }
func (c *Context) Role() Role               { return c.role }
func (c *Context) NonEmpty() bool           { return c.nonEmpty }

// EvaluateSet handles explicit sets, members and nested Aggregate calls.
func (c *Context) EvaluateSet(expr Expression) ([]Member, error) {
	switch e := expr.(type) {
	case *SetExpr:
		return e.Members, nil
	case *MemberExpr:
		return []Member{e.Member}, nil
	case *FunCall:
		if len(e.Args) == 1 && (e.ResultType == TypeSet || e.ResultType == TypeMember) {
			return c.EvaluateSet(e.Args[0])
		}
	}
	return nil, fmt.Errorf("cannot evaluate %s as a set", expr)
}

// CurrentMeasure returns the measure in context, or nil.
func CurrentMeasure(e Evaluator) Member {
	for _, m := range e.Members() {
		if IsMeasure(m) {
			return m
		}
	}
	return nil
}
