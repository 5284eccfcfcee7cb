package record

import (
	"bufio"
	"errors"
	"io"
)

// Scanner reads records one line at a time and keeps track of where each one
// starts. It stops at the first malformed or truncated record.
type Scanner struct {
	r      *bufio.Reader
	path   string
	offset int64
	next   int64
	line   int
	key    string
	value  []byte
	err    error
}

func NewScanner(r io.Reader, path string) *Scanner {
	return &Scanner{r: bufio.NewReader(r), path: path}
}

// Scan advances to the next record. It returns false at end of input or on
// error; Err distinguishes the two.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}

	data, err := s.r.ReadBytes(Terminator)
	if err != nil && !errors.Is(err, io.EOF) {
		s.err = err
		return false
	}
	if len(data) == 0 {
		return false
	}

	s.line++
	s.offset = s.next
	s.next += int64(len(data))

	if data[len(data)-1] != Terminator {
		s.err = &FormatError{Path: s.path, Line: s.line, Text: string(data), Reason: "truncated record"}
		return false
	}

	key, value, decodeErr := Decode(data)
	if decodeErr != nil {
		fe := decodeErr.(*FormatError)
		fe.Path = s.path
		fe.Line = s.line
		s.err = fe
		return false
	}
	s.key = key
	s.value = value
	return true
}

func (s *Scanner) Key() string {
	return s.key
}

func (s *Scanner) Value() []byte {
	return s.value
}

// Offset is the byte offset at which the current record starts.
func (s *Scanner) Offset() int64 {
	return s.offset
}

func (s *Scanner) Err() error {
	return s.err
}
