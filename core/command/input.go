package command

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// CursorOutOfBoundsError is returned by fixed-length reads that run past the end of input.
type CursorOutOfBoundsError struct {
	Want   int
	Length int
}

func (e *CursorOutOfBoundsError) Error() string {
	return fmt.Sprintf("cursor exceeds the input length (%d > %d)", e.Want, e.Length)
}

// Input is a cursor over an immutable command line. Positions count runes.
// Token reads never fail: an empty or all-whitespace remainder yields "".
type Input struct {
	text   []rune
	cursor int
}

// NewInput returns an Input positioned at the start of raw.
func NewInput(raw string) *Input {
	return &Input{text: []rune(raw)}
}

// Raw returns the whole command line.
func (in *Input) Raw() string { return string(in.text) }

// Len returns the input length in runes.
func (in *Input) Len() int { return len(in.text) }

// Cursor returns the current position.
func (in *Input) Cursor() int { return in.cursor }

// SetCursor moves the cursor to an absolute position in [0, Len()].
func (in *Input) SetCursor(pos int) error {
	if pos < 0 || pos > len(in.text) {
		return &CursorOutOfBoundsError{Want: pos, Length: len(in.text)}
	}
	in.cursor = pos
	return nil
}

// MoveCursor shifts the cursor by delta, which may be negative.
func (in *Input) MoveCursor(delta int) error {
	return in.SetCursor(in.cursor + delta)
}

// HasRemaining reports whether unread runes are left.
func (in *Input) HasRemaining() bool { return in.cursor < len(in.text) }

// RemainingLen returns the number of unread runes.
func (in *Input) RemainingLen() int { return len(in.text) - in.cursor }

// Remaining returns the unread part of the input.
func (in *Input) Remaining() string { return string(in.text[in.cursor:]) }

// Consumed returns the part of the input already read.
func (in *Input) Consumed() string { return string(in.text[:in.cursor]) }

// PeekString returns the next n runes without moving the cursor.
func (in *Input) PeekString(n int) (string, error) {
	end := in.cursor + n
	if n < 0 || end > len(in.text) {
		return "", &CursorOutOfBoundsError{Want: end, Length: len(in.text)}
	}
	return string(in.text[in.cursor:end]), nil
}

// ReadString returns the next n runes and advances past them.
func (in *Input) ReadString(n int) (string, error) {
	s, err := in.PeekString(n)
	if err != nil {
		return "", err
	}
	in.cursor += n
	return s, nil
}

// PeekChar returns the rune under the cursor.
func (in *Input) PeekChar() (rune, error) {
	if !in.HasRemaining() {
		return 0, &CursorOutOfBoundsError{Want: in.cursor + 1, Length: len(in.text)}
	}
	return in.text[in.cursor], nil
}

// ReadChar returns the rune under the cursor and advances by one.
func (in *Input) ReadChar() (rune, error) {
	r, err := in.PeekChar()
	if err != nil {
		return 0, err
	}
	in.cursor++
	return r, nil
}

// SkipWhitespace advances over at most max whitespace runes; max < 0 means no limit.
// It returns the number of runes skipped.
func (in *Input) SkipWhitespace(max int) int {
	n := 0
	for in.HasRemaining() && (max < 0 || n < max) && unicode.IsSpace(in.text[in.cursor]) {
		in.cursor++
		n++
	}
	return n
}

// tokenBounds returns where the next token starts and ends.
func (in *Input) tokenBounds() (start, end int) {
	start = in.cursor
	for start < len(in.text) && unicode.IsSpace(in.text[start]) {
		start++
	}
	end = start
	for end < len(in.text) && !unicode.IsSpace(in.text[end]) {
		end++
	}
	return start, end
}

// PeekToken returns the next whitespace-delimited token without moving the cursor.
func (in *Input) PeekToken() string {
	start, end := in.tokenBounds()
	return string(in.text[start:end])
}

// ReadToken consumes leading whitespace and the next token. Trailing whitespace stays unread.
func (in *Input) ReadToken() string {
	start, end := in.tokenBounds()
	in.cursor = end
	return string(in.text[start:end])
}

// ReadTokenUntil reads up to, not including, delim, or the whole remainder when delim is absent.
// The cursor stops on the delimiter.
func (in *Input) ReadTokenUntil(delim rune) string {
	start := in.cursor
	for in.HasRemaining() && in.text[in.cursor] != delim {
		in.cursor++
	}
	return string(in.text[start:in.cursor])
}

// CountRemainingTokens counts the tokens left without moving the cursor.
func (in *Input) CountRemainingTokens() int {
	return len(strings.Fields(in.Remaining()))
}

// parseToken parses the next token with parse and advances only on success.
// Parse errors come back exactly as parse returned them.
func parseToken[T any](in *Input, parse func(string) (T, error), advance bool) (T, error) {
	start, end := in.tokenBounds()
	v, err := parse(string(in.text[start:end]))
	if err != nil {
		var zero T
		return zero, err
	}
	if advance {
		in.cursor = end
	}
	return v, nil
}

func parseInt(bits int) func(string) (int64, error) {
	return func(s string) (int64, error) { return strconv.ParseInt(s, 10, bits) }
}

func parseFloat(bits int) func(string) (float64, error) {
	return func(s string) (float64, error) { return strconv.ParseFloat(s, bits) }
}

// PeekInt parses the next token as int without consuming it.
func (in *Input) PeekInt() (int, error) {
	v, err := parseToken(in, parseInt(strconv.IntSize), false)
	return int(v), err
}

// ReadInt parses and consumes the next token as int.
func (in *Input) ReadInt() (int, error) {
	v, err := parseToken(in, parseInt(strconv.IntSize), true)
	return int(v), err
}

// ReadInt8 parses and consumes the next token as int8.
func (in *Input) ReadInt8() (int8, error) {
	v, err := parseToken(in, parseInt(8), true)
	return int8(v), err
}

// ReadInt16 parses and consumes the next token as int16.
func (in *Input) ReadInt16() (int16, error) {
	v, err := parseToken(in, parseInt(16), true)
	return int16(v), err
}

// PeekInt64 parses the next token as int64 without consuming it.
func (in *Input) PeekInt64() (int64, error) {
	return parseToken(in, parseInt(64), false)
}

// ReadInt64 parses and consumes the next token as int64.
func (in *Input) ReadInt64() (int64, error) {
	return parseToken(in, parseInt(64), true)
}

// ReadFloat32 parses and consumes the next token as float32.
func (in *Input) ReadFloat32() (float32, error) {
	v, err := parseToken(in, parseFloat(32), true)
	return float32(v), err
}

// ReadFloat64 parses and consumes the next token as float64.
func (in *Input) ReadFloat64() (float64, error) {
	return parseToken(in, parseFloat(64), true)
}

// Copy returns an independent Input over the same text with the same cursor.
func (in *Input) Copy() *Input {
	return &Input{text: in.text, cursor: in.cursor}
}

// AppendString returns a new Input with s appended verbatim; the cursor is kept.
func (in *Input) AppendString(s string) *Input {
	text := make([]rune, 0, len(in.text)+len(s))
	text = append(append(text, in.text...), []rune(s)...)
	return &Input{text: text, cursor: in.cursor}
}

// AppendToken returns a new Input with token appended as a separate word.
// A space is inserted unless the input is empty or already ends in whitespace.
func (in *Input) AppendToken(token string) *Input {
	if n := len(in.text); n > 0 && !unicode.IsSpace(in.text[n-1]) {
		token = " " + token
	}
	return in.AppendString(token)
}
