package dialog

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownType is returned when decoding a tag no variant is registered for.
var ErrUnknownType = errors.New("dialog: unknown state type")

// validator is implemented by states whose payload has constraints.
type validator interface {
	validate() error
}

// Codec converts states to and from their persisted form.
type Codec struct {
	factories map[Type]func() State
}

// NewCodec returns a codec that knows every built-in state.
func NewCodec() *Codec {
	c := &Codec{factories: make(map[Type]func() State)}
	c.Register(TypeNewTaskName, func() State { return &NewTaskName{} })
	c.Register(TypeNewTaskDescription, func() State { return &NewTaskDescription{} })
	c.Register(TypeUpdatedTaskName, func() State { return &UpdatedTaskName{} })
	c.Register(TypeUpdatedTaskDescription, func() State { return &UpdatedTaskDescription{} })
	c.Register(TypeNewTaskComment, func() State { return &NewTaskComment{} })
	return c
}

// Register adds or replaces the factory for t. The factory must return a pointer.
func (c *Codec) Register(t Type, factory func() State) {
	c.factories[t] = factory
}

// Encode returns the tag and payload for st.
func (c *Codec) Encode(st State) (Type, []byte, error) {
	if st == nil {
		return "", nil, errors.New("dialog: nil state")
	}
	if v, ok := st.(validator); ok {
		if err := v.validate(); err != nil {
			return "", nil, fmt.Errorf("dialog: encode %s: %w", st.Type(), err)
		}
	}
	data, err := json.Marshal(st)
	if err != nil {
		return "", nil, fmt.Errorf("dialog: encode %s: %w", st.Type(), err)
	}
	return st.Type(), data, nil
}

// Decode rebuilds the state stored under t.
func (c *Codec) Decode(t Type, data []byte) (State, error) {
	factory, ok := c.factories[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	st := factory()
	if len(data) > 0 {
		if err := json.Unmarshal(data, st); err != nil {
			return nil, fmt.Errorf("dialog: decode %s: %w", t, err)
		}
	}
	if v, ok := st.(validator); ok {
		if err := v.validate(); err != nil {
			return nil, fmt.Errorf("dialog: decode %s: %w", t, err)
		}
	}
	return st, nil
}
