package core

import "strings"

// ExprType is the result type of an expression.
type ExprType int

const (
	TypeScalar ExprType = iota
	TypeMember
	TypeTuple
	TypeSet
)

// Expression is the compiled form of a calculated member's formula.
type Expression interface {
	Type() ExprType
	// Arity is the number of hierarchies in the result: 1 for a member,
	// the tuple width for tuples and for sets of tuples.
	Arity() int
	String() string
}

// MemberExpr evaluates to a single member.
type MemberExpr struct {
	Member Member
}

func (e *MemberExpr) Type() ExprType { return TypeMember }
func (e *MemberExpr) Arity() int     { return 1 }
func (e *MemberExpr) String() string { return e.Member.UniqueName() }

// SetExpr is an explicit set of members.
type SetExpr struct {
	Members []Member
}

func (e *SetExpr) Type() ExprType { return TypeSet }
func (e *SetExpr) Arity() int     { return 1 }

func (e *SetExpr) String() string {
	names := make([]string, len(e.Members))
	for i, m := range e.Members {
		names[i] = m.UniqueName()
	}
	return "{" + strings.Join(names, ", ") + "}"
}

// TupleExpr combines one member from each of several hierarchies.
type TupleExpr struct {
	Members []Member
}

func (e *TupleExpr) Type() ExprType { return TypeTuple }
func (e *TupleExpr) Arity() int     { return len(e.Members) }

func (e *TupleExpr) String() string {
	names := make([]string, len(e.Members))
	for i, m := range e.Members {
		names[i] = m.UniqueName()
	}
	return "(" + strings.Join(names, ", ") + ")"
}

// Literal is a scalar constant.
type Literal struct {
	Value any
}

func (e *Literal) Type() ExprType { return TypeScalar }
func (e *Literal) Arity() int     { return 0 }
func (e *Literal) String() string { return KeyName(e.Value) }

// FunCall applies a named function to arguments.
type FunCall struct {
	Name       string
	Args       []Expression
	ResultType ExprType
	// ResultArity overrides the arity for set and tuple results.
	ResultArity int
}

func (e *FunCall) Type() ExprType { return e.ResultType }

func (e *FunCall) Arity() int {
	switch {
	case e.ResultArity > 0:
		return e.ResultArity
	case e.ResultType == TypeScalar:
		return 0
	default:
		return 1
	}
}

func (e *FunCall) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	return e.Name + "(" + strings.Join(args, ", ") + ")"
}

// IsFunction reports whether e is a call to the named function.
func IsFunction(e Expression, name string) (*FunCall, bool) {
	f, ok := e.(*FunCall)
	if !ok || !strings.EqualFold(f.Name, name) {
		return nil, false
	}
	return f, true
}

// Aggregate builds the Aggregate(set) formula used by compound slicers.
func Aggregate(members ...Member) *FunCall {
	return &FunCall{
		Name:       "Aggregate",
		Args:       []Expression{&SetExpr{Members: members}},
		ResultType: TypeMember,
	}
}
