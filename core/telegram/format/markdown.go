package format

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// MarkdownV1 denotes Telegram markdown version 1.
	MarkdownV1 = 1
	// MarkdownV2 denotes Telegram markdown version 2.
	MarkdownV2 = 2
)

const mdV2Specials = "_*[]()~`>#+-=|{}.!\\"

var (
	mdV1Re = regexp.MustCompile(`([_*\\\[` + "`" + `])`)
	mdV2Re = regexp.MustCompile("([" + escapeClass(mdV2Specials) + "])")
)

// escapeClass backslash-escapes every character so chars is safe inside a [] class.
func escapeClass(chars string) string {
	var b strings.Builder
	for _, r := range chars {
		b.WriteByte('\\')
		b.WriteRune(r)
	}
	return b.String()
}

// EscapeMarkdown escapes special characters for MarkdownV1 or V2.
func EscapeMarkdown(text string, version int) (string, error) {
	switch version {
	case MarkdownV1:
		return mdV1Re.ReplaceAllString(text, `\$1`), nil
	case MarkdownV2:
		return mdV2Re.ReplaceAllString(text, `\$1`), nil
	}
	return "", fmt.Errorf("unsupported markdown version: %d", version)
}

// Escape escapes text for MarkdownV2.
func Escape(text string) string {
	return mdV2Re.ReplaceAllString(text, `\$1`)
}

// Bold escapes text and wraps it in MarkdownV2 bold markers.
func Bold(text string) string { return "*" + Escape(text) + "*" }

// Italic escapes text and wraps it in MarkdownV2 italic markers.
func Italic(text string) string { return "_" + Escape(text) + "_" }

// Quote renders text as a MarkdownV2 block quote, one '>' per line.
func Quote(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = ">" + Escape(l)
	}
	return strings.Join(lines, "\n")
}
