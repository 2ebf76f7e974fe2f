package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/m3rciful/taskbot/core/logger"
)

// Command describes one registered command.
type Command struct {
	Name        string
	Description string
	// Aliases resolve to this command but never show up in help or the command menu.
	Aliases []string
	Hidden  bool
	Handler Handler
}

// Registry maps command names and aliases to commands. It is built once at
// startup and read concurrently afterwards.
type Registry struct {
	byName map[string]*Command
	index  map[string]*Command
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Command),
		index:  make(map[string]*Command),
	}
}

// Register adds cmd. Names are stored without the leading slash; a name or
// alias that is already taken is rejected.
func (r *Registry) Register(cmd Command) error {
	cmd.Name = strings.TrimPrefix(strings.TrimSpace(cmd.Name), "/")
	if cmd.Name == "" || cmd.Handler == nil {
		logger.LogEvent(context.Background(), logger.TWire, slog.LevelWarn, "register.command.skip",
			slog.String("name", cmd.Name),
			slog.String("reason", "invalid"),
		)
		return errors.New("command: name and handler are required")
	}
	keys := append([]string{cmd.Name}, cmd.Aliases...)
	for i, k := range keys {
		k = strings.TrimPrefix(strings.TrimSpace(k), "/")
		if _, taken := r.index[k]; taken || k == "" {
			return fmt.Errorf("command: %q already registered", k)
		}
		keys[i] = k
	}
	stored := cmd
	stored.Aliases = append([]string(nil), keys[1:]...)
	r.byName[stored.Name] = &stored
	for _, k := range keys {
		r.index[k] = &stored
	}
	return nil
}

// MustRegister is Register for wiring code that cannot continue on error.
func (r *Registry) MustRegister(cmd Command) {
	if err := r.Register(cmd); err != nil {
		panic(err)
	}
}

// Lookup resolves a name or alias, case-sensitively.
func (r *Registry) Lookup(name string) (Command, bool) {
	cmd, ok := r.index[name]
	if !ok {
		return Command{}, false
	}
	return *cmd, true
}

// Commands returns canonical commands sorted by name; hidden ones are skipped when visibleOnly is set.
func (r *Registry) Commands(visibleOnly bool) []Command {
	out := make([]Command, 0, len(r.byName))
	for _, cmd := range r.byName {
		if visibleOnly && cmd.Hidden {
			continue
		}
		out = append(out, *cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
