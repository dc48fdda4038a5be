package core

import "fmt"

// InternalError reports a broken invariant.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string {
	return "internal error: " + e.Msg
}

// Internalf formats an InternalError.
func Internalf(format string, args ...any) *InternalError {
	return &InternalError{Msg: fmt.Sprintf(format, args...)}
}

// MemberNotFoundError is returned when a name path does not resolve.
type MemberNotFoundError struct {
	Name   string
	Parent string
}

func (e *MemberNotFoundError) Error() string {
	if e.Parent == "" {
		return fmt.Sprintf("member %q not found", e.Name)
	}
	return fmt.Sprintf("member %q not found under %s", e.Name, e.Parent)
}

// UnsupportedCalculatedMemberError is returned when a calculated member
// cannot be turned into a predicate.
type UnsupportedCalculatedMemberError struct {
	Member string
	Reason string
}

func (e *UnsupportedCalculatedMemberError) Error() string {
	return fmt.Sprintf("calculated member %s is not supported here: %s", e.Member, e.Reason)
}
