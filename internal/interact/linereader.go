package interact

import (
	"bufio"
	"io"
	"strings"
)

// LineReader yields one physical line of user input per call, without
// the trailing newline. It may block indefinitely; io.EOF ends the
// conversation.
type LineReader interface {
	ReadLine() (string, error)
}

type readState int

const (
	stateAccumulating readState = iota
	stateComplete
)

// ReadLogical reads one logical line: physical lines ending in a
// backslash continue onto the next line, concatenated without the
// backslash. Implemented as an explicit two-state machine rather than
// recursive reads so cancellation between physical lines stays clean.
func ReadLogical(r LineReader) (string, error) {
	var b strings.Builder
	state := stateAccumulating
	for state == stateAccumulating {
		line, err := r.ReadLine()
		if err != nil {
			if err == io.EOF && b.Len() > 0 {
				// A continuation cut short by EOF still yields what
				// was typed.
				return b.String(), nil
			}
			return "", err
		}
		if strings.HasSuffix(line, "\\") {
			b.WriteString(strings.TrimSuffix(line, "\\"))
			continue
		}
		b.WriteString(line)
		state = stateComplete
	}
	return b.String(), nil
}

// BufferedReader adapts a plain io.Reader (a pipe, a file, a test
// buffer) into a LineReader. Lines have no length cap; a line is
// buffered whole, however long.
type BufferedReader struct {
	r *bufio.Reader
}

func NewBufferedReader(r io.Reader) *BufferedReader {
	return &BufferedReader{r: bufio.NewReader(r)}
}

func (r *BufferedReader) ReadLine() (string, error) {
	line, err := r.r.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			// Input ending without a final newline still yields its
			// last line; the next call reports EOF.
			return strings.TrimSuffix(line, "\r"), nil
		}
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}
