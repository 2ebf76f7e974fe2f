package command

import (
	"context"
	"testing"
)

func okHandler() Handler {
	return HandlerFunc(func(context.Context, *Context) (Result, error) { return Success, nil })
}

func TestRegistryLookupIsExactAndCaseSensitive(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(Command{Name: "/start", Aliases: []string{"help"}, Handler: okHandler()}); err != nil {
		t.Fatalf("register: %v", err)
	}
	for _, name := range []string{"start", "help"} {
		cmd, ok := reg.Lookup(name)
		if !ok || cmd.Name != "start" {
			t.Fatalf("Lookup(%q) = %+v, %v", name, cmd, ok)
		}
	}
	for _, name := range []string{"Start", "HELP", "star", "/start", ""} {
		if _, ok := reg.Lookup(name); ok {
			t.Fatalf("Lookup(%q) must miss", name)
		}
	}
}

func TestRegistryRejectsTakenNames(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(Command{Name: "tasks", Aliases: []string{"t"}, Handler: okHandler()})
	cases := []Command{
		{Name: "tasks", Handler: okHandler()},
		{Name: "t", Handler: okHandler()},
		{Name: "other", Aliases: []string{"t"}, Handler: okHandler()},
		{Name: "", Handler: okHandler()},
		{Name: "nohandler"},
	}
	for _, c := range cases {
		if err := reg.Register(c); err == nil {
			t.Fatalf("Register(%+v) must fail", c)
		}
	}
	if _, ok := reg.Lookup("other"); ok {
		t.Fatal("rejected command leaked into the index")
	}
}

func TestRegistryCommandsOmitAliasesAndHidden(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(Command{Name: "tasks", Description: "Tasks", Handler: okHandler()})
	reg.MustRegister(Command{Name: "start", Aliases: []string{"help"}, Handler: okHandler()})
	reg.MustRegister(Command{Name: "debug", Hidden: true, Handler: okHandler()})

	visible := reg.Commands(true)
	if len(visible) != 2 || visible[0].Name != "start" || visible[1].Name != "tasks" {
		t.Fatalf("visible = %+v", visible)
	}
	if all := reg.Commands(false); len(all) != 3 {
		t.Fatalf("all = %d commands", len(all))
	}
}
