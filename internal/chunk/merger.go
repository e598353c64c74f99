package chunk

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAssembly is matched by every AssemblyError.
var ErrAssembly = errors.New("chunk assembly failed")

// Summary is the summarized Markdown for one chunk.
type Summary struct {
	Ordinal int
	Text    string
}

// AssemblyError reports a chunk summary set that is not exactly 1..N.
type AssemblyError struct {
	Reason string
}

func (e *AssemblyError) Error() string {
	return "assemble chunk summaries: " + e.Reason
}

func (e *AssemblyError) Is(target error) bool {
	return target == ErrAssembly
}

// Merge combines chunk summaries into one Markdown document ordered by ordinal.
// One summary is returned unchanged; several get a "## Part k" heading each.
func Merge(summaries []Summary) (string, error) {
	n := len(summaries)
	if n == 0 {
		return "", &AssemblyError{Reason: "no chunk summaries"}
	}

	ordered := make([]*Summary, n)
	for i := range summaries {
		s := &summaries[i]
		if s.Ordinal < 1 || s.Ordinal > n {
			return "", &AssemblyError{Reason: fmt.Sprintf("ordinal %d outside 1..%d", s.Ordinal, n)}
		}
		if ordered[s.Ordinal-1] != nil {
			return "", &AssemblyError{Reason: fmt.Sprintf("duplicate ordinal %d", s.Ordinal)}
		}
		ordered[s.Ordinal-1] = s
	}

	if n == 1 {
		return ordered[0].Text, nil
	}

	var b strings.Builder
	for i, s := range ordered {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "## Part %d\n\n%s", s.Ordinal, strings.TrimSpace(s.Text))
	}
	return b.String(), nil
}
