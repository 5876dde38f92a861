//go:build linux

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/samcharles93/parley/internal/interact"
)

func newInputReader() interact.LineReader {
	if stdinIsTTY() {
		return &ttyReader{prompt: "> "}
	}
	return interact.NewBufferedReader(os.Stdin)
}

func stdinIsTTY() bool {
	_, err := unix.IoctlGetTermios(int(os.Stdin.Fd()), unix.TCGETS)
	return err == nil
}

// ttyReader is a raw-mode line editor with history, used when stdin is
// a terminal. Ctrl+C and Ctrl+D on an empty line end the conversation
// as io.EOF.
type ttyReader struct {
	prompt  string
	history []string
}

func (t *ttyReader) ReadLine() (string, error) {
	fd := int(os.Stdin.Fd())
	oldState, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return "", err
	}
	newState := *oldState
	newState.Lflag &^= unix.ICANON | unix.ECHO
	newState.Cc[unix.VMIN] = 1
	newState.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &newState); err != nil {
		return "", err
	}
	defer func() {
		_ = unix.IoctlSetTermios(fd, unix.TCSETS, oldState)
	}()

	fmt.Print(t.prompt)
	line := make([]byte, 0, 256)
	cursor := 0
	escState := 0
	var escBuf strings.Builder
	var buf [16]byte
	histPos := len(t.history)
	histBrowsing := false
	histDraft := ""

	redraw := func() {
		fmt.Printf("\r%s%s", t.prompt, string(line))
		fmt.Print("\x1b[K")
		if cursor < len(line) {
			fmt.Printf("\r%s%s", t.prompt, string(line[:cursor]))
		}
	}
	isSpace := func(b byte) bool {
		return b == ' ' || b == '\t'
	}
	deleteWordBack := func() {
		if cursor == 0 {
			return
		}
		start := cursor
		for start > 0 && isSpace(line[start-1]) {
			start--
		}
		for start > 0 && !isSpace(line[start-1]) {
			start--
		}
		line = append(line[:start], line[cursor:]...)
		cursor = start
		redraw()
	}
	handleCSI := func(seq string) {
		switch seq {
		case "A": // up
			if len(t.history) == 0 {
				return
			}
			if !histBrowsing {
				histDraft = string(line)
				histBrowsing = true
				histPos = len(t.history)
			}
			if histPos > 0 {
				histPos--
				line = append(line[:0], t.history[histPos]...)
				cursor = len(line)
				redraw()
			}
		case "B": // down
			if !histBrowsing {
				return
			}
			if histPos < len(t.history)-1 {
				histPos++
				line = append(line[:0], t.history[histPos]...)
			} else {
				histPos = len(t.history)
				line = append(line[:0], histDraft...)
				histBrowsing = false
			}
			cursor = len(line)
			redraw()
		case "D":
			if cursor > 0 {
				cursor--
				redraw()
			}
		case "C":
			if cursor < len(line) {
				cursor++
				redraw()
			}
		case "H":
			cursor = 0
			redraw()
		case "F":
			cursor = len(line)
			redraw()
		case "3~":
			if cursor < len(line) {
				line = append(line[:cursor], line[cursor+1:]...)
				redraw()
			}
		}
	}

	for {
		n, err := os.Stdin.Read(buf[:])
		if err != nil {
			return "", err
		}
		for i := 0; i < n; i++ {
			b := buf[i]
			if escState != 0 {
				switch escState {
				case 1:
					if b == '[' {
						escState = 2
						escBuf.Reset()
					} else if b == 127 {
						deleteWordBack() // Alt+Backspace
						escState = 0
					} else {
						escState = 0
					}
				case 2:
					escBuf.WriteByte(b)
					if (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || b == '~' {
						handleCSI(escBuf.String())
						escState = 0
					}
				}
				continue
			}

			switch b {
			case 27: // ESC
				escState = 1
			case '\r', '\n':
				fmt.Print("\r\n")
				out := string(line)
				if strings.TrimSpace(out) != "" {
					t.history = append(t.history, out)
				}
				return out, nil
			case 3: // Ctrl+C
				fmt.Print("^C\r\n")
				return "", io.EOF
			case 4: // Ctrl+D
				if len(line) == 0 {
					fmt.Print("\r\n")
					return "", io.EOF
				}
			case 127, 8: // backspace
				if cursor > 0 {
					line = append(line[:cursor-1], line[cursor:]...)
					cursor--
					redraw()
				}
			case 1: // Ctrl+A
				cursor = 0
				redraw()
			case 5: // Ctrl+E
				cursor = len(line)
				redraw()
			case 23: // Ctrl+W
				deleteWordBack()
			default:
				if b >= 32 {
					if cursor == len(line) {
						line = append(line, b)
						cursor++
					} else {
						line = append(line, 0)
						copy(line[cursor+1:], line[cursor:])
						line[cursor] = b
						cursor++
					}
					redraw()
				}
			}
		}
	}
}
