package transport

import "strings"

// PayloadTag names what an inline button does when pressed.
type PayloadTag string

const (
	// TagCommand replays the rest of the payload as a command line.
	TagCommand PayloadTag = "command"
	// TagDeleteMessage deletes the message the button is attached to.
	TagDeleteMessage PayloadTag = "delete-message"
)

const payloadSep = ":"

// EncodePayload builds "tag:arg". An empty arg yields just the tag.
func EncodePayload(tag PayloadTag, arg string) string {
	if arg == "" {
		return string(tag)
	}
	return string(tag) + payloadSep + arg
}

// ParsePayload splits data on the first ':' only, so arguments may contain ':'.
func ParsePayload(data string) (PayloadTag, string) {
	tag, arg, _ := strings.Cut(data, payloadSep)
	return PayloadTag(strings.TrimSpace(tag)), arg
}

// CommandButton returns a button that runs line (without the leading slash) when pressed.
func CommandButton(text, line string) Button {
	return Button{Text: text, Data: EncodePayload(TagCommand, strings.TrimPrefix(line, "/"))}
}

// DeleteButton returns a button that deletes the message it is attached to.
func DeleteButton(text string) Button {
	return Button{Text: text, Data: EncodePayload(TagDeleteMessage, "")}
}
