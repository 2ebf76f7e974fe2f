// Package callbacks reads inline button payloads out of telebot callbacks.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/taskbot/core/transport"
)

// Data returns the payload of cb. Buttons built with a telebot unique key
// arrive as "\f<unique>|<data>" and are folded into "<unique>:<data>".
func Data(cb *tele.Callback) string {
	if cb == nil {
		return ""
	}
	if cb.Unique != "" {
		return joinUnique(cb.Unique, cb.Data)
	}
	raw, ok := strings.CutPrefix(cb.Data, "\f")
	if !ok {
		return cb.Data
	}
	unique, data, _ := strings.Cut(raw, "|")
	return joinUnique(unique, data)
}

func joinUnique(unique, data string) string {
	unique = strings.TrimSpace(unique)
	if data == "" {
		return unique
	}
	return unique + ":" + data
}

// Tag returns the payload tag of cb for logging.
func Tag(cb *tele.Callback) string {
	tag, _ := transport.ParsePayload(Data(cb))
	return string(tag)
}
