package checkin

import (
	"fmt"
	"strings"
)

// DecodeError is returned when no candidate encoding could decode the input.
type DecodeError struct {
	Source    string   // file name, or "" for in-memory input
	Encodings []string // attempted encodings, in order
	Errs      []error  // cause per attempted encoding
}

func (e *DecodeError) Error() string {
	var sb strings.Builder
	sb.WriteString("could not decode")
	if e.Source != "" {
		fmt.Fprintf(&sb, " file %s", e.Source)
	}
	fmt.Fprintf(&sb, " with encodings: [%s]", strings.Join(e.Encodings, ", "))
	return sb.String()
}

// Unwrap exposes the per-encoding causes to errors.Is and errors.As.
func (e *DecodeError) Unwrap() []error {
	return e.Errs
}
