package constraint

import (
	"log/slog"

	"github.com/leapstack-labs/leapolap/pkg/core"
)

// Factory chooses constraints for member loads. With NativeNonEmpty off
// every load is unrestricted and non-empty filtering is left to the caller.
type Factory struct {
	NativeNonEmpty bool
	Logger         *slog.Logger
}

// NewFactory returns a factory. A nil logger discards.
func NewFactory(nativeNonEmpty bool, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Factory{NativeNonEmpty: nativeNonEmpty, Logger: logger}
}

// LevelMembersConstraint is the constraint for loading levels under eval.
func (f *Factory) LevelMembersConstraint(eval core.Evaluator, levels ...*core.Level) TupleConstraint {
	if !f.NativeNonEmpty || !IsValidContext(eval, false, levels...) {
		return Default
	}
	c, err := NewSqlContext(eval, false)
	if err != nil {
		f.Logger.Debug("context constraint unavailable", slog.String("error", err.Error()))
		return Default
	}
	return c
}

// MemberChildrenConstraint is the constraint for loading children under eval.
func (f *Factory) MemberChildrenConstraint(eval core.Evaluator) MemberChildrenConstraint {
	if !f.NativeNonEmpty || !IsValidContext(eval, false) {
		return Default
	}
	c, err := NewSqlContext(eval, false)
	if err != nil {
		f.Logger.Debug("context constraint unavailable", slog.String("error", err.Error()))
		return Default
	}
	return c
}

// DescendantsConstraint restricts a level load to the children of parents.
func (f *Factory) DescendantsConstraint(parents []core.Member, mcc MemberChildrenConstraint) TupleConstraint {
	return NewDescendants(parents, mcc)
}

// ChildByNameConstraint looks children up by name.
func (f *Factory) ChildByNameConstraint(names ...string) *ChildByName {
	return NewChildByName(names...)
}
