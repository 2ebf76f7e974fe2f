package dialog

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/m3rciful/taskbot/core/storage"
	"github.com/m3rciful/taskbot/core/storage/memstore"
	"github.com/m3rciful/taskbot/core/transport/transporttest"
	"github.com/m3rciful/taskbot/core/update"
)

func TestCodecRoundTrip(t *testing.T) {
	codec := NewCodec()
	states := []State{
		&NewTaskName{},
		&NewTaskDescription{TaskName: "Buy milk"},
		&UpdatedTaskName{TaskID: 3},
		&UpdatedTaskDescription{TaskID: 4},
		&NewTaskComment{TaskID: 5},
	}
	for _, st := range states {
		typ, data, err := codec.Encode(st)
		if err != nil {
			t.Fatalf("encode %T: %v", st, err)
		}
		if typ != st.Type() {
			t.Fatalf("encode %T: tag %q", st, typ)
		}
		back, err := codec.Decode(typ, data)
		if err != nil {
			t.Fatalf("decode %s: %v", typ, err)
		}
		if !sameState(st, back) {
			t.Fatalf("round trip %s: %#v != %#v", typ, st, back)
		}
	}
}

func sameState(a, b State) bool {
	switch x := a.(type) {
	case *NewTaskName:
		_, ok := b.(*NewTaskName)
		return ok
	case *NewTaskDescription:
		y, ok := b.(*NewTaskDescription)
		return ok && *x == *y
	case *UpdatedTaskName:
		y, ok := b.(*UpdatedTaskName)
		return ok && *x == *y
	case *UpdatedTaskDescription:
		y, ok := b.(*UpdatedTaskDescription)
		return ok && *x == *y
	case *NewTaskComment:
		y, ok := b.(*NewTaskComment)
		return ok && *x == *y
	}
	return false
}

func TestCodecRejectsBadPayloads(t *testing.T) {
	codec := NewCodec()
	if _, err := codec.Decode("reading_something_else", []byte("{}")); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("unknown tag: %v", err)
	}
	if _, err := codec.Decode(TypeNewTaskDescription, []byte(`{"task_name":"  "}`)); err == nil {
		t.Fatal("blank pending name must not decode")
	}
	if _, err := codec.Decode(TypeNewTaskComment, []byte(`{"task_id":0}`)); err == nil {
		t.Fatal("missing task id must not decode")
	}
	if _, err := codec.Decode(TypeUpdatedTaskName, []byte(`{`)); err == nil {
		t.Fatal("malformed json must not decode")
	}
	if _, _, err := codec.Encode(&UpdatedTaskDescription{}); err == nil {
		t.Fatal("invalid state must not encode")
	}
}

type fixture struct {
	store   *memstore.Store
	states  *Store
	sender  *transporttest.Recorder
	user    storage.User
	chat    storage.Chat
	reenter []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	user, err := store.Users().Create(ctx, 7, nil)
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	chat, err := store.Chats().Create(ctx, 500, user.ID)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	return &fixture{
		store:  store,
		states: NewStore(store.DialogStates()),
		sender: &transporttest.Recorder{},
		user:   user,
		chat:   chat,
	}
}

// send delivers text to whatever state is pending.
func (f *fixture) send(t *testing.T, text string) {
	t.Helper()
	ctx := context.Background()
	st, ok, err := f.states.Get(ctx, f.user.ID, f.chat.ID)
	if err != nil || !ok {
		t.Fatalf("no pending state for %q: %v", text, err)
	}
	if err := st.HandleMessage(ctx, f.interaction(text)); err != nil {
		t.Fatalf("handle %q: %v", text, err)
	}
}

func (f *fixture) interaction(text string) *Interaction {
	msg := update.Message{ID: 1, MsgID: 2, Chat: update.Chat{ID: 500, Private: true}, From: update.User{ID: 7}, Text: text}
	return &Interaction{
		Message: msg,
		User:    f.user,
		Chat:    f.chat,
		Tasks:   f.store.Tasks(),
		States:  f.states,
		Sender:  f.sender,
		Reenter: func(_ context.Context, m update.Message) {
			f.reenter = append(f.reenter, m.Text)
		},
	}
}

func (f *fixture) pending(t *testing.T) State {
	t.Helper()
	st, ok, err := f.states.Get(context.Background(), f.user.ID, f.chat.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		return nil
	}
	return st
}

func TestNewTaskFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.states.Set(ctx, f.user.ID, f.chat.ID, &NewTaskName{}); err != nil {
		t.Fatalf("set: %v", err)
	}

	f.send(t, "  ")
	if _, ok := f.pending(t).(*NewTaskName); !ok {
		t.Fatalf("blank name must keep the state, got %#v", f.pending(t))
	}

	f.send(t, "Buy milk")
	desc, ok := f.pending(t).(*NewTaskDescription)
	if !ok || desc.TaskName != "Buy milk" {
		t.Fatalf("expected description state, got %#v", f.pending(t))
	}

	f.send(t, "-")
	if st := f.pending(t); st != nil {
		t.Fatalf("state not cleared: %#v", st)
	}
	chatID := f.chat.ID
	tasks, _ := f.store.Tasks().Search(ctx, storage.TaskQuery{TaskFilter: storage.TaskFilter{ChatID: &chatID}})
	if len(tasks) != 1 || tasks[0].Name != "Buy milk" || tasks[0].Description != nil {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
	want := "/tasks show " + itoa(tasks[0].ID)
	if len(f.reenter) != 1 || f.reenter[0] != want {
		t.Fatalf("continuation = %q, want %q", f.reenter, want)
	}
	texts := f.sender.Texts()
	if texts[len(texts)-1] != TextTaskCreated {
		t.Fatalf("confirmation missing: %q", texts)
	}
}

func TestDescriptionSkipSentinels(t *testing.T) {
	for _, s := range []string{"-", "–", "—", " - "} {
		if !IsSkip(s) {
			t.Fatalf("%q must skip", s)
		}
	}
	for _, s := range []string{"--", "", "x", "-x"} {
		if IsSkip(s) {
			t.Fatalf("%q must not skip", s)
		}
	}
}

func TestDescriptionTooLongStays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_ = f.states.Set(ctx, f.user.ID, f.chat.ID, &NewTaskDescription{TaskName: "n"})
	f.send(t, strings.Repeat("x", storage.TaskDescriptionMaxLength+1))
	if _, ok := f.pending(t).(*NewTaskDescription); !ok {
		t.Fatal("state must survive an over-long description")
	}
	if len(f.reenter) != 0 {
		t.Fatalf("no continuation expected, got %q", f.reenter)
	}
	if n, _ := f.store.Tasks().Count(ctx, storage.TaskFilter{}); n != 0 {
		t.Fatalf("task created: %d", n)
	}
}

func TestUpdateAndCommentStates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task, err := f.store.Tasks().Create(ctx, storage.NewTask{ChatID: f.chat.ID, Name: "old", CreatedByID: f.user.ID})
	if err != nil {
		t.Fatalf("task: %v", err)
	}

	_ = f.states.Set(ctx, f.user.ID, f.chat.ID, &UpdatedTaskName{TaskID: task.ID})
	f.send(t, "new name")
	_ = f.states.Set(ctx, f.user.ID, f.chat.ID, &UpdatedTaskDescription{TaskID: task.ID})
	f.send(t, "details")
	_ = f.states.Set(ctx, f.user.ID, f.chat.ID, &NewTaskComment{TaskID: task.ID})
	f.send(t, "looks good")

	got, _ := f.store.Tasks().GetByID(ctx, task.ID)
	if got.Name != "new name" || got.Description == nil || *got.Description != "details" {
		t.Fatalf("task not updated: %+v", got)
	}
	if got.UpdatedByID == nil || *got.UpdatedByID != f.user.ID {
		t.Fatalf("updater not recorded: %+v", got)
	}
	if n, _ := f.store.Tasks().Comments().CountByTask(ctx, task.ID); n != 1 {
		t.Fatalf("comments = %d", n)
	}
	id := itoa(task.ID)
	want := []string{"/tasks show " + id, "/tasks show " + id, "/tasks comments " + id}
	if strings.Join(f.reenter, "|") != strings.Join(want, "|") {
		t.Fatalf("continuations = %q, want %q", f.reenter, want)
	}
	if st := f.pending(t); st != nil {
		t.Fatalf("state left behind: %#v", st)
	}
}

func TestTaskFromOtherChatIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other, _ := f.store.Tasks().Create(ctx, storage.NewTask{ChatID: f.chat.ID + 100, Name: "theirs", CreatedByID: f.user.ID})

	_ = f.states.Set(ctx, f.user.ID, f.chat.ID, &UpdatedTaskName{TaskID: other.ID})
	f.send(t, "hijack")

	got, _ := f.store.Tasks().GetByID(ctx, other.ID)
	if got.Name != "theirs" {
		t.Fatalf("foreign task renamed: %+v", got)
	}
	texts := f.sender.Texts()
	if len(texts) != 1 || texts[0] != TextTaskNotFound {
		t.Fatalf("replies = %q", texts)
	}
	if len(f.reenter) != 0 {
		t.Fatalf("no continuation expected, got %q", f.reenter)
	}
}

func TestDoubleSubmissionCreatesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task, _ := f.store.Tasks().Create(ctx, storage.NewTask{ChatID: f.chat.ID, Name: "t", CreatedByID: f.user.ID})
	st := &NewTaskComment{TaskID: task.ID}
	_ = f.states.Set(ctx, f.user.ID, f.chat.ID, st)

	// Both messages read the state before either consumes it.
	if err := st.HandleMessage(ctx, f.interaction("first")); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := st.HandleMessage(ctx, f.interaction("second")); err != nil {
		t.Fatalf("second: %v", err)
	}
	if n, _ := f.store.Tasks().Comments().CountByTask(ctx, task.ID); n != 1 {
		t.Fatalf("comments = %d, want 1", n)
	}
}

func TestStoreDropsUndecodableRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_ = f.store.DialogStates().Set(ctx, storage.DialogRecord{UserID: f.user.ID, ChatID: f.chat.ID, Type: "legacy", Data: "{}"})
	if st := f.pending(t); st != nil {
		t.Fatalf("undecodable record returned: %#v", st)
	}
	if _, err := f.store.DialogStates().Get(ctx, f.user.ID, f.chat.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("record kept: %v", err)
	}
}

func TestPurgeExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	f.states.WithClock(func() time.Time { return now })
	_ = f.states.Set(ctx, 1, 1, &NewTaskName{})
	now = now.Add(25 * time.Hour)
	_ = f.states.Set(ctx, 2, 1, &NewTaskName{})

	if n, err := f.states.PurgeExpired(ctx, -time.Second); err != nil || n != 0 {
		t.Fatalf("negative ttl must be a no-op: %d, %v", n, err)
	}
	n, err := f.states.PurgeExpired(ctx, 24*time.Hour)
	if err != nil || n != 1 {
		t.Fatalf("purge = %d, %v", n, err)
	}
	if _, ok, _ := f.states.Get(ctx, 2, 1); !ok {
		t.Fatal("fresh state purged")
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
