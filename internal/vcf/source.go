package vcf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Source is a line-oriented text input that may be gzip-compressed.
type Source struct {
	*bufio.Reader
	file *os.File
	gz   *gzip.Reader
}

// OpenSource opens path for reading; "-" reads stdin. Compression is
// detected from the gzip magic bytes, not the file name.
func OpenSource(path string) (*Source, error) {
	if path == "-" {
		return NewSource(os.Stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	s, err := NewSource(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.file = f
	return s, nil
}

// NewSource wraps r, decompressing it when it starts with the gzip magic
// bytes. Closing the source does not close r.
func NewSource(r io.Reader) (*Source, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil || magic[0] != 0x1f || magic[1] != 0x8b {
		return &Source{Reader: br}, nil
	}

	gz, err := gzip.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("create gzip reader: %w", err)
	}
	return &Source{Reader: bufio.NewReader(gz), gz: gz}, nil
}

// ReadLine returns the next line without its terminator. A final line
// without a newline is returned with a nil error; io.EOF means no input is
// left.
func (s *Source) ReadLine() (string, error) {
	line, err := s.ReadString('\n')
	if err == io.EOF && line != "" {
		err = nil
	}
	return strings.TrimRight(line, "\r\n"), err
}

// Close releases the decompressor and the file opened by OpenSource.
func (s *Source) Close() error {
	if s.gz != nil {
		s.gz.Close()
	}
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
