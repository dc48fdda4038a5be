package reader

// DelegatingMemberReader forwards every operation to another reader.
// Layers embed it and override what they change.
type DelegatingMemberReader struct {
	MemberReader
}

func NewDelegatingMemberReader(r MemberReader) *DelegatingMemberReader {
	return &DelegatingMemberReader{MemberReader: r}
}

// Delegate returns the wrapped reader.
func (r *DelegatingMemberReader) Delegate() MemberReader { return r.MemberReader }
