package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Dispatcher resolves free-text chat messages to registered handlers.
//
// A leading mention token (the "<@botid>" form chat clients prepend when the
// bot is addressed directly) is stripped when more tokens follow it. Command
// keys are lower-cased before lookup, so registration should use lower-case
// names. Handler failures are the handler's own concern: the dispatcher does
// not wrap invocations in recovery, and any reporting happens through the
// output callback.
type Dispatcher struct {
	reg  *Registry
	help *Help
}

// NewDispatcher creates a Dispatcher over the given registry and help
// renderer.
func NewDispatcher(reg *Registry, help *Help) *Dispatcher {
	return &Dispatcher{reg: reg, help: help}
}

// isMentionToken reports whether tok is a structural addressing marker rather
// than a command word.
func isMentionToken(tok string) bool {
	return strings.HasPrefix(tok, "<@") || strings.HasPrefix(tok, "@")
}

// fallback sends the generic not-understood response.
func fallback(out OutputFunc, sender string) {
	greeting := "Hello!"
	if sender != "" {
		greeting = fmt.Sprintf("Hello <@%s>!", sender)
	}
	out(greeting + " I couldn't understand your request. Please try again or type 'help' for assistance.")
}

// Dispatch routes one inbound message. Exactly one of the following happens:
// the matched handler runs, a help response is written, a suggestion or
// not-found response is written, or the generic fallback is written. Empty
// input always falls through to the fallback.
func (d *Dispatcher) Dispatch(ctx context.Context, text, sender string, out OutputFunc) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		fallback(out, sender)
		return
	}

	// Mentioning the bot in a DM arrives as a plain message, so the marker
	// has to be detected textually rather than via the event type.
	if isMentionToken(tokens[0]) && len(tokens) > 1 {
		tokens = tokens[1:]
	}

	key := strings.ToLower(tokens[0])
	commandLine := strings.Join(tokens, " ")

	// The help surface is handled before registry dispatch: both the literal
	// "help [target]" form and trailing -h/--help flags.
	if key == "help" {
		d.help.Respond(out, sender, strings.Join(tokens[1:], " "))
		return
	}
	if IsHelpRequest(commandLine) {
		d.help.Respond(out, sender, commandLine)
		return
	}

	entry, ok := d.reg.Lookup(key)
	if !ok {
		if suggestions := d.help.Suggest(key); len(suggestions) > 0 {
			greeting := "Hello!"
			if sender != "" {
				greeting = fmt.Sprintf("Hello <@%s>!", sender)
			}
			out(fmt.Sprintf("%s I don't know `%s`. Did you mean: %s?",
				greeting, key, strings.Join(suggestions, ", ")))
			return
		}
		fallback(out, sender)
		return
	}

	params := ParseParams(strings.Join(tokens[1:], " "))
	slog.Debug("dispatching command", "command", key, "sender", sender, "params", len(params))
	entry.Handler(ctx, out, sender, params)
}

// Pattern pairs a match predicate with a handler for the pattern-based
// matching mode.
type Pattern struct {
	// Name labels the pattern for logging.
	Name   string
	Match  func(commandLine string) bool
	Handle Handler
}

// PatternList is an ordered set of patterns evaluated first-match-wins.
// Order is precedence: put specific patterns (exact tokens, prefixes) before
// general ones (substrings) or the general pattern will shadow them.
type PatternList []Pattern

// Dispatch runs the first matching pattern's handler and reports whether any
// pattern matched.
func (pl PatternList) Dispatch(ctx context.Context, text, sender string, out OutputFunc) bool {
	commandLine := strings.TrimSpace(text)
	for _, p := range pl {
		if p.Match(commandLine) {
			slog.Debug("pattern matched", "pattern", p.Name, "sender", sender)
			p.Handle(ctx, out, sender, ParseParams(commandLine))
			return true
		}
	}
	return false
}

// MatchExact matches when the whole line equals word, case-insensitively.
func MatchExact(word string) func(string) bool {
	return func(line string) bool {
		return strings.EqualFold(line, word)
	}
}

// MatchPrefix matches when the line's first token equals word,
// case-insensitively.
func MatchPrefix(word string) func(string) bool {
	return func(line string) bool {
		fields := strings.Fields(line)
		return len(fields) > 0 && strings.EqualFold(fields[0], word)
	}
}

// MatchSubstring matches when the line contains fragment, case-insensitively.
func MatchSubstring(fragment string) func(string) bool {
	return func(line string) bool {
		return strings.Contains(strings.ToLower(line), strings.ToLower(fragment))
	}
}
