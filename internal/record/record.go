// Package record implements the line-oriented record encoding shared by every
// file format in dabble: one `<key>:<value>\n` line per record, no escaping.
package record

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

const (
	// Separator splits a key from its value.
	Separator = ':'
	// Terminator ends every record.
	Terminator = '\n'
)

var (
	// ErrFormat is matched by every *FormatError.
	ErrFormat = errors.New("malformed record")

	// ErrInvalidRecord is returned when a key or value contains a delimiter.
	ErrInvalidRecord = errors.New("key and value must not contain ':' or '\\n'")
)

// FormatError describes a line that does not decode as exactly one key/value
// pair, or any other on-disk structure that could not be parsed.
type FormatError struct {
	Path   string
	Line   int
	Text   string
	Reason string
}

func (e *FormatError) Error() string {
	var b strings.Builder
	b.WriteString(ErrFormat.Error())
	if e.Path != "" {
		fmt.Fprintf(&b, " in %s", e.Path)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	if e.Text != "" {
		fmt.Fprintf(&b, " (%q)", e.Text)
	}
	return b.String()
}

func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

// Validate rejects keys and values that would break the line encoding.
func Validate(key string, value []byte) error {
	if strings.ContainsAny(key, ":\n") || bytes.ContainsAny(value, ":\n") {
		return fmt.Errorf("%w: %q", ErrInvalidRecord, key)
	}
	return nil
}

// Encode returns the encoded record including its terminator.
func Encode(key string, value []byte) []byte {
	return Append(make([]byte, 0, len(key)+len(value)+2), key, value)
}

// Append appends the encoded record to dst.
func Append(dst []byte, key string, value []byte) []byte {
	dst = append(dst, key...)
	dst = append(dst, Separator)
	dst = append(dst, value...)
	return append(dst, Terminator)
}

// Decode parses a single record. The trailing terminator is optional.
func Decode(line []byte) (string, []byte, error) {
	line = bytes.TrimSuffix(line, []byte{Terminator})
	parts := bytes.Split(line, []byte{Separator})
	if len(parts) != 2 {
		return "", nil, &FormatError{Text: string(line), Reason: "expected exactly one separator"}
	}
	value := make([]byte, len(parts[1]))
	copy(value, parts[1])
	return string(parts[0]), value, nil
}
