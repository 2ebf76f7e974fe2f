// Package update defines the transport-neutral inbound events the router understands.
//
// Update is a closed set: Message, ButtonPress and Unsupported. Consumers switch
// on the concrete type once and log anything else.
package update

// User is the platform identity of whoever caused an update.
type User struct {
	ID       int64
	Username string
}

// Chat is the platform conversation an update belongs to.
type Chat struct {
	ID      int64
	Private bool
}

// Update is one inbound event.
type Update interface {
	// UpdateID is the transport sequence number; synthetic values reuse their origin's id.
	UpdateID() int
	isUpdate()
}

// ChatBound is implemented by updates that happen inside a chat.
type ChatBound interface {
	Update
	InChat() Chat
}

// UserBound is implemented by updates that have an author.
type UserBound interface {
	Update
	Author() User
}

// MessageBound is implemented by updates that refer to a concrete chat message.
type MessageBound interface {
	ChatBound
	MessageID() int
}

// Message is an inbound text message. Values are immutable once built;
// synthetic messages are new values created with Synthesize.
type Message struct {
	ID        int
	MsgID     int
	Chat      Chat
	From      User
	Text      string
	Forwarded bool
	// Synthetic marks messages fabricated from a button press or a dialog continuation.
	Synthetic bool
}

func (Message) isUpdate()        {}
func (m Message) UpdateID() int  { return m.ID }
func (m Message) InChat() Chat   { return m.Chat }
func (m Message) Author() User   { return m.From }
func (m Message) MessageID() int { return m.MsgID }

// Synthesize returns a new synthetic message from the same author and chat carrying text.
func (m Message) Synthesize(text string) Message {
	return Message{
		ID:        m.ID,
		MsgID:     m.MsgID,
		Chat:      m.Chat,
		From:      m.From,
		Text:      text,
		Synthetic: true,
	}
}

// ButtonPress is an inline keyboard press.
type ButtonPress struct {
	ID     int
	Press  string
	From   User
	Chat   Chat
	MsgID  int
	Data   string
	HasMsg bool
}

func (ButtonPress) isUpdate()        {}
func (b ButtonPress) UpdateID() int  { return b.ID }
func (b ButtonPress) InChat() Chat   { return b.Chat }
func (b ButtonPress) Author() User   { return b.From }
func (b ButtonPress) MessageID() int { return b.MsgID }

// AsMessage builds the synthetic message a "command" payload is replayed as.
func (b ButtonPress) AsMessage(text string) Message {
	return Message{
		ID:        b.ID,
		MsgID:     b.MsgID,
		Chat:      b.Chat,
		From:      b.From,
		Text:      text,
		Synthetic: true,
	}
}

// Unsupported wraps any transport event the router has no branch for.
type Unsupported struct {
	ID   int
	Kind string
}

func (Unsupported) isUpdate()       {}
func (u Unsupported) UpdateID() int { return u.ID }

var (
	_ MessageBound = Message{}
	_ UserBound    = Message{}
	_ MessageBound = ButtonPress{}
	_ UserBound    = ButtonPress{}
)
