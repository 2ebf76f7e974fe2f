package command

import (
	"errors"
	"strconv"
	"strings"
	"testing"
)

func TestReadTokenReconstructsFields(t *testing.T) {
	inputs := []string{
		"/tasks show 12",
		"  leading and   inner\tspaces ",
		"one",
		"\n multi\nline\n",
		"",
	}
	for _, raw := range inputs {
		in := NewInput(raw)
		var got []string
		for {
			tok := in.ReadToken()
			if tok == "" {
				break
			}
			if strings.ContainsAny(tok, " \t\n") {
				t.Fatalf("%q: token %q contains whitespace", raw, tok)
			}
			got = append(got, tok)
		}
		want := strings.Fields(raw)
		if strings.Join(got, "|") != strings.Join(want, "|") {
			t.Fatalf("%q: tokens %q, want %q", raw, got, want)
		}
	}
}

func TestReadTokenOnBlankInput(t *testing.T) {
	for _, raw := range []string{"", " ", "  "} {
		in := NewInput(raw)
		if tok := in.ReadToken(); tok != "" {
			t.Fatalf("%q: ReadToken = %q", raw, tok)
		}
		if tok := in.PeekToken(); tok != "" {
			t.Fatalf("%q: PeekToken = %q", raw, tok)
		}
	}
}

func TestReadTokenLeavesTrailingWhitespace(t *testing.T) {
	in := NewInput("tasks  list")
	if tok := in.ReadToken(); tok != "tasks" {
		t.Fatalf("first token %q", tok)
	}
	if in.Remaining() != "  list" {
		t.Fatalf("remaining %q", in.Remaining())
	}
	if tok := in.PeekToken(); tok != "list" {
		t.Fatalf("peek %q", tok)
	}
	if in.Cursor() != 5 {
		t.Fatalf("peek moved cursor to %d", in.Cursor())
	}
}

func TestFixedReadsFailPastEnd(t *testing.T) {
	in := NewInput("abc")
	if _, err := in.ReadString(3); err != nil {
		t.Fatalf("ReadString(3): %v", err)
	}
	if _, err := in.ReadString(0); err != nil {
		t.Fatalf("ReadString(0) at end: %v", err)
	}
	var oob *CursorOutOfBoundsError
	if _, err := in.ReadString(1); !errors.As(err, &oob) {
		t.Fatalf("ReadString(1) at end: %v", err)
	}
	if _, err := in.ReadChar(); !errors.As(err, &oob) {
		t.Fatalf("ReadChar at end: %v", err)
	}
	if oob.Length != 3 || oob.Want != 4 {
		t.Fatalf("unexpected bounds: %+v", oob)
	}

	in = NewInput("ab")
	if _, err := in.PeekString(3); !errors.As(err, &oob) {
		t.Fatalf("PeekString(3): %v", err)
	}
	if r, err := in.ReadChar(); err != nil || r != 'a' {
		t.Fatalf("ReadChar = %q, %v", r, err)
	}
}

func TestTypedReadsPropagateParseErrors(t *testing.T) {
	in := NewInput("show abc 42")
	in.ReadToken()
	_, err := in.ReadInt64()
	var numErr *strconv.NumError
	if !errors.As(err, &numErr) || !errors.Is(err, strconv.ErrSyntax) {
		t.Fatalf("expected strconv syntax error, got %v", err)
	}
	if in.PeekToken() != "abc" {
		t.Fatalf("failed parse consumed input: %q", in.Remaining())
	}
	in.ReadToken()
	if v, err := in.ReadInt(); err != nil || v != 42 {
		t.Fatalf("ReadInt = %d, %v", v, err)
	}

	if _, err := NewInput("300").ReadInt8(); !errors.Is(err, strconv.ErrRange) {
		t.Fatalf("expected range error, got %v", err)
	}
	if _, err := NewInput("").ReadInt(); !errors.Is(err, strconv.ErrSyntax) {
		t.Fatalf("empty token must fail to parse, got %v", err)
	}
	if f, err := NewInput(" 2.5").ReadFloat64(); err != nil || f != 2.5 {
		t.Fatalf("ReadFloat64 = %v, %v", f, err)
	}
}

func TestAppendToken(t *testing.T) {
	cases := []struct{ base, tok, want string }{
		{"/tasks", "show", "/tasks show"},
		{"/tasks ", "show", "/tasks show"},
		{"", "show", "show"},
		{"/tasks show", "12", "/tasks show 12"},
	}
	for _, tc := range cases {
		in := NewInput(tc.base)
		in.ReadToken()
		out := in.AppendToken(tc.tok)
		if out.Raw() != tc.want {
			t.Fatalf("AppendToken(%q, %q) = %q, want %q", tc.base, tc.tok, out.Raw(), tc.want)
		}
		if strings.Contains(out.Raw(), "  ") {
			t.Fatalf("double space in %q", out.Raw())
		}
		if out.Cursor() != in.Cursor() {
			t.Fatalf("cursor not kept: %d vs %d", out.Cursor(), in.Cursor())
		}
		if in.Raw() != tc.base {
			t.Fatalf("original mutated: %q", in.Raw())
		}
	}
}

func TestCopyIsIndependent(t *testing.T) {
	in := NewInput("a b c")
	in.ReadToken()
	cp := in.Copy()
	cp.ReadToken()
	if in.PeekToken() != "b" || cp.PeekToken() != "c" {
		t.Fatalf("cursors shared: %q / %q", in.Remaining(), cp.Remaining())
	}
}

func TestSkipWhitespaceAndUntil(t *testing.T) {
	in := NewInput("   key=value rest")
	if n := in.SkipWhitespace(2); n != 2 {
		t.Fatalf("SkipWhitespace(2) = %d", n)
	}
	if n := in.SkipWhitespace(-1); n != 1 {
		t.Fatalf("SkipWhitespace(-1) = %d", n)
	}
	if key := in.ReadTokenUntil('='); key != "key" {
		t.Fatalf("ReadTokenUntil = %q", key)
	}
	if r, _ := in.ReadChar(); r != '=' {
		t.Fatalf("delimiter not left in place: %q", r)
	}
	if rest := in.ReadTokenUntil('#'); rest != "value rest" {
		t.Fatalf("missing delimiter must read remainder, got %q", rest)
	}
	if in.CountRemainingTokens() != 0 {
		t.Fatalf("tokens left: %d", in.CountRemainingTokens())
	}
}

func TestCursorBounds(t *testing.T) {
	in := NewInput("héllo")
	if in.Len() != 5 {
		t.Fatalf("Len counts runes, got %d", in.Len())
	}
	if err := in.SetCursor(5); err != nil {
		t.Fatalf("SetCursor(len): %v", err)
	}
	if err := in.MoveCursor(1); err == nil {
		t.Fatal("MoveCursor past end must fail")
	}
	if err := in.SetCursor(-1); err == nil {
		t.Fatal("negative cursor must fail")
	}
	_ = in.SetCursor(1)
	if s, _ := in.ReadString(2); s != "él" {
		t.Fatalf("ReadString = %q", s)
	}
	if in.Consumed() != "hél" {
		t.Fatalf("Consumed = %q", in.Consumed())
	}
}
