//go:build !linux

package main

import (
	"fmt"
	"os"

	"github.com/samcharles93/parley/internal/interact"
)

func newInputReader() interact.LineReader {
	return &promptedReader{inner: interact.NewBufferedReader(os.Stdin)}
}

// promptedReader prints the input marker before each line on platforms
// without the raw-mode editor.
type promptedReader struct {
	inner interact.LineReader
}

func (r *promptedReader) ReadLine() (string, error) {
	fmt.Fprint(os.Stdout, "> ")
	return r.inner.ReadLine()
}
