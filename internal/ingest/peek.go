package ingest

import (
	"bufio"
	"io"
)

// peekReader is a buffered reader that still closes its underlying
// stream.
type peekReader struct {
	*bufio.Reader
	under io.ReadCloser
}

func newPeekReader(rc io.ReadCloser) *peekReader {
	return &peekReader{Reader: bufio.NewReader(rc), under: rc}
}

func (p *peekReader) Close() error { return p.under.Close() }
