// Package textio opens the line-oriented input and output streams the CLI
// reads tagged sentences from and writes results to.
package textio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// Console is the path that selects stdin or stdout.
const Console = "-"

// lookupCharset resolves an IANA charset name. UTF-8 and the empty name need
// no transcoding and return nil.
func lookupCharset(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", name)
	}
	return enc, nil
}

type readCloser struct {
	io.Reader
	closer io.Closer
}

func (r readCloser) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// OpenInput opens path for reading, decoding from charset to UTF-8. An empty
// path or Console reads stdin, which is never closed.
func OpenInput(path, charset string) (io.ReadCloser, error) {
	enc, err := lookupCharset(charset)
	if err != nil {
		return nil, err
	}

	var (
		r      io.Reader
		closer io.Closer
	)
	if path == "" || path == Console {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		r, closer = f, f
	}
	if enc != nil {
		r = transform.NewReader(r, enc.NewDecoder())
	}
	return readCloser{Reader: r, closer: closer}, nil
}

type writeCloser struct {
	buf    *bufio.Writer
	enc    io.WriteCloser
	closer io.Closer
}

func (w *writeCloser) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

// Close flushes buffered output, then the transcoder, then the file.
func (w *writeCloser) Close() error {
	err := w.buf.Flush()
	if w.enc != nil {
		if cerr := w.enc.Close(); err == nil {
			err = cerr
		}
	}
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// OpenOutput creates path for writing, encoding UTF-8 text to charset. An
// empty path or Console writes to stdout, which is flushed but never closed.
func OpenOutput(path, charset string) (io.WriteCloser, error) {
	enc, err := lookupCharset(charset)
	if err != nil {
		return nil, err
	}

	var (
		w      io.Writer
		closer io.Closer
	)
	if path == "" || path == Console {
		w = os.Stdout
	} else {
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		w, closer = f, f
	}

	out := &writeCloser{closer: closer}
	if enc != nil {
		out.enc = transform.NewWriter(w, enc.NewEncoder())
		w = out.enc
	}
	out.buf = bufio.NewWriter(w)
	return out, nil
}
