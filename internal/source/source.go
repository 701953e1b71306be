// Package source reads indexed files as lines. The scanner and the query
// engine share it so line numbers always agree.
package source

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrBinary is returned for files that look like binary data.
var ErrBinary = errors.New("binary file")

// sniffLen is how much of a file is inspected for NUL bytes.
const sniffLen = 8000

// maxLineLen bounds a single line; longer lines fail the read.
const maxLineLen = 4 * 1024 * 1024

// IsBinary reports whether head contains a NUL byte.
func IsBinary(head []byte) bool {
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	return bytes.IndexByte(head, 0) >= 0
}

// ReadLines returns the lines of the file at path without line terminators.
// Line i of the file is element i-1.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lines, err := Lines(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lines, nil
}

// Lines splits r into lines, failing with ErrBinary when the data is binary.
func Lines(r io.Reader) ([]string, error) {
	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	if IsBinary(head) {
		return nil, ErrBinary
	}

	var lines []string
	scanner := bufio.NewScanner(br)
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, maxLineLen)

	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return lines, nil
}

// Line returns line n (1-based) of lines, or false when out of range.
func Line(lines []string, n int) (string, bool) {
	if n < 1 || n > len(lines) {
		return "", false
	}
	return lines[n-1], true
}
