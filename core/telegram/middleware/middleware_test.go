package middleware

import (
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func offlineBot(t *testing.T) *tele.Bot {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Offline: true, Synchronous: true})
	if err != nil {
		t.Fatalf("offline bot: %v", err)
	}
	return bot
}

func textFrom(bot *tele.Bot, userID int64) tele.Context {
	return bot.NewContext(tele.Update{Message: &tele.Message{
		Text:   "hi",
		Sender: &tele.User{ID: userID},
		Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
	}})
}

func TestRateLimitPerUser(t *testing.T) {
	bot := offlineBot(t)
	limited := 0
	mw := RateLimitMiddleware(RateLimitOptions{
		PerSecond: 0.01,
		Burst:     1,
		Exclude:   map[string]struct{}{"callback": {}},
		OnLimited: func(tele.Context) error { limited++; return nil },
	})
	passed := 0
	h := mw(func(tele.Context) error { passed++; return nil })

	_ = h(textFrom(bot, 1))
	_ = h(textFrom(bot, 1))
	_ = h(textFrom(bot, 2))
	if passed != 2 || limited != 1 {
		t.Fatalf("passed=%d limited=%d", passed, limited)
	}

	cb := bot.NewContext(tele.Update{Callback: &tele.Callback{Sender: &tele.User{ID: 1}}})
	_ = h(cb)
	if passed != 3 {
		t.Fatalf("excluded callback was limited")
	}
}

func TestUserLimiterPrunesIdleBuckets(t *testing.T) {
	l := &userLimiter{
		opts:    RateLimitOptions{PerSecond: 1, Burst: 1, IdleTTL: time.Minute},
		buckets: make(map[int64]*bucket),
	}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.lastPrune = now
	l.allow(1, now)
	l.allow(2, now.Add(2*time.Minute))
	if _, ok := l.buckets[1]; ok {
		t.Fatal("idle bucket kept")
	}
	if !l.allow(1, now.Add(2*time.Minute)) {
		t.Fatal("fresh bucket must allow")
	}
}

func TestRecoverSwallowsPanics(t *testing.T) {
	bot := offlineBot(t)
	h := RecoverMiddleware(LoggerMiddleware(func(tele.Context) error { panic("boom") }))
	if err := h(textFrom(bot, 1)); err != nil {
		t.Fatalf("recover returned %v", err)
	}
}

func TestKind(t *testing.T) {
	cases := map[string]tele.Update{
		"callback":       {Callback: &tele.Callback{}},
		"message":        {Message: &tele.Message{}},
		"edited_message": {EditedMessage: &tele.Message{}},
		"other":          {},
	}
	for want, u := range cases {
		if got := Kind(u); got != want {
			t.Errorf("Kind = %q, want %q", got, want)
		}
	}
}
