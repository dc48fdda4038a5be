package predicate

import (
	"github.com/leapstack-labs/leapolap/pkg/core"
)

const maxExpansionDepth = 32

// ExpandSupportedCalculatedMembers replaces every calculated member that is
// an alias for a member, or an Aggregate over a member set, with the
// members it stands for. Visual totals are unwrapped. Calculated measures
// pass through untouched. Any other calculated member is an
// UnsupportedCalculatedMemberError.
func ExpandSupportedCalculatedMembers(members []core.Member, eval core.Evaluator) ([]core.Member, error) {
	type entry struct {
		m     core.Member
		depth int
	}
	out := make([]core.Member, 0, len(members))
	stack := make([]entry, 0, len(members))
	for i := len(members) - 1; i >= 0; i-- {
		stack = append(stack, entry{m: members[i]})
	}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		m := Unwrap(e.m)
		if !m.IsCalculated() || core.IsMeasure(m) {
			out = append(out, m)
			continue
		}
		if e.depth >= maxExpansionDepth {
			return nil, &core.UnsupportedCalculatedMemberError{
				Member: m.UniqueName(), Reason: "calculated members nest too deeply",
			}
		}
		set, err := supportedMembers(m, eval)
		if err != nil {
			return nil, err
		}
		for i := len(set) - 1; i >= 0; i-- {
			stack = append(stack, entry{m: set[i], depth: e.depth + 1})
		}
	}
	return out, nil
}

// Unwrap strips visual-total wrappers.
func Unwrap(m core.Member) core.Member {
	for {
		vt, ok := m.(*core.VisualTotalMember)
		if !ok {
			return m
		}
		m = vt.VisualTotalOf()
	}
}

func supportedMembers(m core.Member, eval core.Evaluator) ([]core.Member, error) {
	expr, ok := core.CalculatedExpression(m)
	if !ok {
		return nil, &core.UnsupportedCalculatedMemberError{Member: m.UniqueName(), Reason: "no expression"}
	}
	switch e := expr.(type) {
	case *core.MemberExpr:
		return []core.Member{e.Member}, nil
	case *core.FunCall:
		if _, ok := core.IsFunction(e, "Aggregate"); ok && len(e.Args) == 1 {
			if eval == nil {
				return nil, &core.UnsupportedCalculatedMemberError{
					Member: m.UniqueName(), Reason: "Aggregate needs an evaluator",
				}
			}
			set, err := eval.EvaluateSet(e.Args[0])
			if err != nil {
				return nil, &core.UnsupportedCalculatedMemberError{Member: m.UniqueName(), Reason: err.Error()}
			}
			return set, nil
		}
	}
	return nil, &core.UnsupportedCalculatedMemberError{
		Member: m.UniqueName(), Reason: "expression " + expr.String() + " is not a member or an Aggregate of members",
	}
}
