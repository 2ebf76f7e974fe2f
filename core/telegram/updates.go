package telegram

import (
	"context"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/taskbot/core/telegram/callbacks"
	"github.com/m3rciful/taskbot/core/telegram/helpers"
	"github.com/m3rciful/taskbot/core/update"
)

// UpdateHandler consumes transport-neutral updates.
type UpdateHandler interface {
	Handle(ctx context.Context, u update.Update)
}

// unsupportedEndpoints are routed to the handler as update.Unsupported so that they are logged.
var unsupportedEndpoints = map[string]string{
	tele.OnPhoto:        "photo",
	tele.OnVideo:        "video",
	tele.OnDocument:     "document",
	tele.OnAudio:        "audio",
	tele.OnVoice:        "voice",
	tele.OnSticker:      "sticker",
	tele.OnLocation:     "location",
	tele.OnContact:      "contact",
	tele.OnEdited:       "edited_message",
	tele.OnUserJoined:   "user_joined",
	tele.OnUserLeft:     "user_left",
	tele.OnMyChatMember: "my_chat_member",
}

// Convert maps a telebot update to the router's update model.
func Convert(c tele.Context) update.Update {
	u := c.Update()
	switch {
	case u.Callback != nil:
		if press, ok := buttonPress(u.ID, u.Callback); ok {
			return press
		}
		return update.Unsupported{ID: u.ID, Kind: "inline_callback"}
	case u.Message != nil && u.Message.Text != "" && u.Message.Sender != nil:
		return message(u.ID, u.Message)
	case u.Message != nil:
		return update.Unsupported{ID: u.ID, Kind: "non_text_message"}
	}
	return update.Unsupported{ID: u.ID, Kind: "other"}
}

func message(id int, m *tele.Message) update.Message {
	return update.Message{
		ID:        id,
		MsgID:     m.ID,
		Chat:      chatOf(m.Chat),
		From:      userOf(m.Sender),
		Text:      m.Text,
		Forwarded: m.IsForwarded(),
	}
}

// buttonPress converts cb; presses on inline-mode messages have no chat and are rejected.
func buttonPress(id int, cb *tele.Callback) (update.ButtonPress, bool) {
	if cb.Message == nil || cb.Message.Chat == nil || cb.Sender == nil {
		return update.ButtonPress{}, false
	}
	return update.ButtonPress{
		ID:     id,
		Press:  cb.ID,
		From:   userOf(cb.Sender),
		Chat:   chatOf(cb.Message.Chat),
		MsgID:  cb.Message.ID,
		Data:   callbacks.Data(cb),
		HasMsg: cb.Message.ID != 0 && cb.Message.Unixtime != 0,
	}, true
}

func chatOf(c *tele.Chat) update.Chat {
	if c == nil {
		return update.Chat{}
	}
	return update.Chat{ID: c.ID, Private: c.Type == tele.ChatPrivate}
}

func userOf(u *tele.User) update.User {
	return update.User{ID: u.ID, Username: u.Username}
}

// Bridge returns the telebot handler that converts each update and passes it to h.
func Bridge(h UpdateHandler) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := helpers.WithHandler(c, "router")
		h.Handle(ctx, Convert(c))
		return nil
	}
}

// Routes binds the bridge to text, callbacks and the logged-only endpoints.
func Routes(h UpdateHandler) []Route {
	bridge := Bridge(h)
	routes := []Route{
		{Endpoint: tele.OnText, Handler: bridge},
		{Endpoint: tele.OnCallback, Handler: bridge},
	}
	for endpoint, kind := range unsupportedEndpoints {
		routes = append(routes, Route{Endpoint: endpoint, Handler: func(c tele.Context) error {
			ctx := helpers.WithHandler(c, "router")
			h.Handle(ctx, update.Unsupported{ID: c.Update().ID, Kind: kind})
			return nil
		}})
	}
	return routes
}
