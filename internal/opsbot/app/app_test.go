package app

import (
	"context"
	"strings"
	"testing"

	"github.com/bdobrica/opsbot/internal/opsbot/commands"
)

// newTestApp builds an App with just the dispatch plumbing; no store, Matrix
// client, or compute provider.
func newTestApp(hello commands.Handler) *App {
	registry := commands.NewRegistry()
	registry.Register(hello, commands.NewMeta("hello", "Greet the bot"))

	help := commands.NewHelp(registry)
	help.General()

	return &App{
		config:     &Config{},
		registry:   registry,
		help:       help,
		dispatcher: commands.NewDispatcher(registry, help),
		chitchat: commands.PatternList{
			{
				Name:  "thanks",
				Match: commands.MatchSubstring("thank"),
				Handle: func(_ context.Context, out commands.OutputFunc, sender string, _ commands.Params) {
					out("You're welcome, <@" + sender + ">!")
				},
			},
		},
	}
}

func TestDispatch_RegistryBeforeChitchat(t *testing.T) {
	called := false
	a := newTestApp(func(context.Context, commands.OutputFunc, string, commands.Params) {
		called = true
	})

	a.dispatch(context.Background(), "hello", "U42", func(string) {})
	if !called {
		t.Error("registered command should reach its handler")
	}
}

func TestDispatch_ChitchatOnRegistryMiss(t *testing.T) {
	a := newTestApp(func(context.Context, commands.OutputFunc, string, commands.Params) {
		t.Error("hello handler must not run for chitchat")
	})

	var got string
	a.dispatch(context.Background(), "thank you so much", "U42", func(msg string) { got = msg })
	if got != "You're welcome, <@U42>!" {
		t.Errorf("reply = %q", got)
	}
}

func TestDispatch_HelpNeverChitchat(t *testing.T) {
	// "help" misses the registry (it is reserved, never registered) but must
	// still route to the help surface, not the pattern list.
	a := newTestApp(func(context.Context, commands.OutputFunc, string, commands.Params) {})

	var got string
	a.dispatch(context.Background(), "help", "U42", func(msg string) { got = msg })
	if !strings.Contains(got, "*Available Commands:*") {
		t.Errorf("reply = %q", got)
	}
}

func TestDispatch_UnmatchedFallsThrough(t *testing.T) {
	a := newTestApp(func(context.Context, commands.OutputFunc, string, commands.Params) {})

	var got string
	a.dispatch(context.Background(), "xyzzy", "U42", func(msg string) { got = msg })
	if !strings.Contains(got, "I couldn't understand your request") {
		t.Errorf("reply = %q", got)
	}
}

func TestSenderAllowed(t *testing.T) {
	open := &App{config: &Config{}}
	if !open.senderAllowed("@anyone:example.org") {
		t.Error("empty allowlist should admit everyone")
	}

	restricted := &App{config: &Config{
		AllowedSenders: []string{"@alice:example.org"},
	}}
	if !restricted.senderAllowed("@alice:example.org") {
		t.Error("listed sender should be admitted")
	}
	if restricted.senderAllowed("@mallory:example.org") {
		t.Error("unlisted sender should be refused")
	}
}
