package types

import "errors"

// Range represents a contiguous span in a file. Lines and characters are zero-based,
// end is inclusive of the end line.
type Range struct {
	StartLine int `json:"startLine"`
	StartChar int `json:"startChar"`
	EndLine   int `json:"endLine"`
	EndChar   int `json:"endChar"`
}

// Validate checks that the range is well-formed
func (r Range) Validate() error {
	if r.StartLine < 0 || r.EndLine < 0 {
		return errors.New("line numbers must not be negative")
	}
	if r.StartLine > r.EndLine {
		return errors.New("start line must be before or equal to end line")
	}
	if r.StartLine == r.EndLine && r.StartChar > r.EndChar {
		return errors.New("start char must be before end char on a single line")
	}
	return nil
}

// Overlaps reports whether two ranges share at least one line
func (r Range) Overlaps(other Range) bool {
	return r.StartLine <= other.EndLine && other.StartLine <= r.EndLine
}

// Before orders ranges by start position
func (r Range) Before(other Range) bool {
	if r.StartLine != other.StartLine {
		return r.StartLine < other.StartLine
	}
	return r.StartChar < other.StartChar
}
