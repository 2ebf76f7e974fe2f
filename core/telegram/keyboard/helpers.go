package keyboard

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/taskbot/core/transport"
)

// Rows builds a markup from rows of buttons, skipping empty rows.
func Rows(rows ...[]transport.Button) *transport.Markup {
	m := &transport.Markup{}
	for _, r := range rows {
		if len(r) > 0 {
			m.Rows = append(m.Rows, r)
		}
	}
	return m
}

// Column places each button on its own row.
func Column(buttons ...transport.Button) *transport.Markup {
	return Chunk(buttons, 1)
}

// Chunk splits a flat list of buttons into rows with up to n buttons per row.
// If n <= 1, every button gets its own row.
func Chunk(buttons []transport.Button, n int) *transport.Markup {
	if n < 1 {
		n = 1
	}
	m := &transport.Markup{}
	for i := 0; i < len(buttons); i += n {
		end := min(i+n, len(buttons))
		m.Rows = append(m.Rows, buttons[i:end])
	}
	return m
}

// Append adds rows to m and returns it; a nil m starts a new markup.
func Append(m *transport.Markup, rows ...[]transport.Button) *transport.Markup {
	if m == nil {
		m = &transport.Markup{}
	}
	for _, r := range rows {
		if len(r) > 0 {
			m.Rows = append(m.Rows, r)
		}
	}
	return m
}

// Inline converts a transport markup into a telebot inline keyboard.
// Button data is sent as is, without telebot's unique prefix.
func Inline(m *transport.Markup) *tele.ReplyMarkup {
	if m.Empty() {
		return nil
	}
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, 0, len(m.Rows))
	for _, row := range m.Rows {
		r := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			r = append(r, tele.InlineButton{Text: b.Text, Data: b.Data})
		}
		if len(r) > 0 {
			inline = append(inline, r)
		}
	}
	markup.InlineKeyboard = inline
	return markup
}
