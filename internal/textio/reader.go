package textio

import (
	"bufio"
	"io"

	"golang.org/x/text/unicode/norm"
)

const maxScanLine = 16 * 1024 * 1024

// LineReader yields input line segments one at a time.
type LineReader struct {
	scanner   *bufio.Scanner
	pending   []string
	normalize bool
	lineNo    int
}

// NewLineReader wraps r. With normalize set every line is converted to NFC
// before it is segmented.
func NewLineReader(r io.Reader, normalize bool) *LineReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxScanLine)
	return &LineReader{scanner: scanner, normalize: normalize}
}

// Next returns the next segment. ok is false at end of input or on error;
// check Err afterwards.
func (lr *LineReader) Next() (segment string, ok bool) {
	for len(lr.pending) == 0 {
		if !lr.scanner.Scan() {
			return "", false
		}
		lr.lineNo++
		line := lr.scanner.Text()
		if lr.normalize {
			line = norm.NFC.String(line)
		}
		lr.pending = LineSegments(line)
	}
	segment = lr.pending[0]
	lr.pending = lr.pending[1:]
	return segment, true
}

// Line returns the number of input lines read so far.
func (lr *LineReader) Line() int { return lr.lineNo }

// Err returns the first non-EOF error.
func (lr *LineReader) Err() error { return lr.scanner.Err() }
