package keyboard

import (
	"testing"

	"github.com/m3rciful/taskbot/core/transport"
)

func buttons(n int) []transport.Button {
	out := make([]transport.Button, n)
	for i := range out {
		out[i] = transport.Button{Text: string(rune('a' + i)), Data: "command:x"}
	}
	return out
}

func TestChunk(t *testing.T) {
	m := Chunk(buttons(5), 2)
	if len(m.Rows) != 3 || len(m.Rows[2]) != 1 {
		t.Fatalf("rows = %+v", m.Rows)
	}
	if m := Chunk(buttons(3), 0); len(m.Rows) != 3 {
		t.Fatalf("n<1 must put one button per row, got %d rows", len(m.Rows))
	}
}

func TestInline(t *testing.T) {
	if Inline(nil) != nil || Inline(Rows(nil, nil)) != nil {
		t.Fatal("empty markup must convert to nil")
	}
	rm := Inline(Append(Column(buttons(2)...), []transport.Button{{Text: "z", Data: "delete-message"}}))
	if len(rm.InlineKeyboard) != 3 {
		t.Fatalf("rows = %d", len(rm.InlineKeyboard))
	}
	if b := rm.InlineKeyboard[2][0]; b.Text != "z" || b.Data != "delete-message" {
		t.Fatalf("button = %+v", b)
	}
}
