package inspector

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ginkida/queue-probe/internal/config"
)

// Parser extracts a queue depth from status command output.
type Parser interface {
	Parse(output string) (int, error)
}

// DelimitedParser reads lines shaped like "Requests in top-level queue : 3".
// The second field after splitting on Delimiter is the depth.
type DelimitedParser struct {
	Delimiter string
}

// Parse reads the first non-blank line. A missing delimiter, a non-integer
// or a negative value is ErrParseFailed.
func (p DelimitedParser) Parse(output string) (int, error) {
	line, ok := firstLine(output)
	if !ok {
		return 0, fmt.Errorf("%w: empty output", ErrParseFailed)
	}
	fields := strings.Split(line, p.Delimiter)
	if len(fields) < 2 {
		return 0, fmt.Errorf("%w: no %q in %q", ErrParseFailed, p.Delimiter, line)
	}
	return parseDepth(fields[1])
}

// ColumnParser reads the whitespace-separated column at Index (zero-based).
type ColumnParser struct {
	Index int
}

// Parse reads column Index of the first non-blank line.
func (p ColumnParser) Parse(output string) (int, error) {
	line, ok := firstLine(output)
	if !ok {
		return 0, fmt.Errorf("%w: empty output", ErrParseFailed)
	}
	fields := strings.Fields(line)
	if p.Index < 0 || p.Index >= len(fields) {
		return 0, fmt.Errorf("%w: no column %d in %q", ErrParseFailed, p.Index, line)
	}
	return parseDepth(fields[p.Index])
}

// NewParser builds the parser selected by the status config.
func NewParser(cfg config.StatusConfig) (Parser, error) {
	switch cfg.Format {
	case config.FormatDelimited, "":
		return DelimitedParser{Delimiter: cfg.Delimiter}, nil
	case config.FormatColumn:
		return ColumnParser{Index: cfg.Column}, nil
	default:
		return nil, fmt.Errorf("unknown status format %q", cfg.Format)
	}
}

// firstLine returns the first non-blank line of output.
func firstLine(output string) (string, bool) {
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) != "" {
			return line, true
		}
	}
	return "", false
}

func parseDepth(token string) (int, error) {
	token = strings.TrimSpace(token)
	n, err := strconv.Atoi(token)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrParseFailed, token)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative depth %d", ErrParseFailed, n)
	}
	return n, nil
}
