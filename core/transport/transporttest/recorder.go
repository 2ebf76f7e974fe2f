// Package transporttest provides a recording transport.Sender for tests.
package transporttest

import (
	"context"
	"sync"

	"github.com/m3rciful/taskbot/core/future"
	"github.com/m3rciful/taskbot/core/transport"
)

// Deletion is one recorded DeleteMessage call.
type Deletion struct {
	ChatID    int64
	MessageID int
}

// Recorder records every outbound call. The zero value is ready to use.
type Recorder struct {
	mu       sync.Mutex
	sent     []transport.Message
	answered []string
	deleted  []Deletion

	// SendErr, when set, is returned by Send and SendAsync.
	SendErr error
}

func (r *Recorder) Send(_ context.Context, msg transport.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SendErr != nil {
		return r.SendErr
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *Recorder) SendAsync(ctx context.Context, msg transport.Message) *future.Future[struct{}] {
	if err := r.Send(ctx, msg); err != nil {
		return future.Failed[struct{}](err)
	}
	return future.Resolved(struct{}{})
}

func (r *Recorder) AnswerButtonPress(_ context.Context, pressID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answered = append(r.answered, pressID)
	return nil
}

func (r *Recorder) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, Deletion{ChatID: chatID, MessageID: messageID})
	return nil
}

// Sent returns a copy of the messages sent so far.
func (r *Recorder) Sent() []transport.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]transport.Message(nil), r.sent...)
}

// Texts returns the text of every message sent so far.
func (r *Recorder) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.sent))
	for i, m := range r.sent {
		out[i] = m.Text
	}
	return out
}

// Answered returns the acknowledged button press ids.
func (r *Recorder) Answered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.answered...)
}

// Deleted returns the recorded deletions.
func (r *Recorder) Deleted() []Deletion {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Deletion(nil), r.deleted...)
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent, r.answered, r.deleted = nil, nil, nil
}

var _ transport.Sender = (*Recorder)(nil)
