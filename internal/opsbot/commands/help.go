package commands

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// maxRenderedChoices caps how many choice values detailed help lists before
// truncating with ", ...".
const maxRenderedChoices = 10

// maxSuggestions caps how many near-miss commands a not-found response offers.
const maxSuggestions = 5

// minSuggestLen is the shortest attempt prefix Suggest will fall back to when
// the full attempt matches nothing.
const minSuggestLen = 3

// helpFlagRe matches a command line that is itself a help request: either a
// leading "help" token followed by a target, or any non-empty line ending in
// h, -h, help, or --help.
var helpFlagRe = regexp.MustCompile(`^help\b\s.+|.*\S.*\s(-{0,2}h(elp)?)$`)

// Help renders command metadata into user-facing help text and caches the
// general command listing.
type Help struct {
	reg *Registry

	// The general listing is built once, strictly after startup registration,
	// and is never invalidated. Commands registered after the first call are
	// silently absent until the process restarts.
	once    sync.Once
	general string
}

// NewHelp creates a Help bound to the given registry.
func NewHelp(reg *Registry) *Help {
	return &Help{reg: reg}
}

// FormatCommand renders help for one command. When the name is not registered
// it returns a displayable not-found message, never an error.
//
// detailed=false yields the one-line summary used in listings; detailed=true
// yields the full multi-section block.
func (h *Help) FormatCommand(name string, detailed bool) string {
	entry, ok := h.reg.Lookup(name)
	if !ok {
		return fmt.Sprintf("Command '%s' not found.", name)
	}
	meta := entry.Meta

	if !detailed {
		return fmt.Sprintf("`%s` - %s", name, meta.Description)
	}

	lines := []string{
		fmt.Sprintf("*%s*", name),
		fmt.Sprintf("_%s_", meta.Description),
		"",
	}

	args := meta.Args()

	if len(args) > 0 {
		usage := []string{name}
		for _, arg := range args {
			if arg.Required {
				usage = append(usage, fmt.Sprintf("--%s=<%s>", arg.Name, arg.Name))
			} else {
				usage = append(usage, fmt.Sprintf("[--%s=<%s>]", arg.Name, arg.Name))
			}
		}
		lines = append(lines, fmt.Sprintf("*Usage:* `%s`", strings.Join(usage, " ")), "")

		lines = append(lines, "*Arguments:*")
		for _, arg := range args {
			lines = append(lines, formatArgLine(arg))
		}
		lines = append(lines, "")
	}

	if len(meta.Examples) > 0 {
		lines = append(lines, "*Examples:*")
		for _, ex := range meta.Examples {
			lines = append(lines, fmt.Sprintf("  `%s`", ex))
		}
		lines = append(lines, "")
	}

	if len(meta.Aliases) > 0 {
		lines = append(lines, fmt.Sprintf("*Aliases:* %s", strings.Join(meta.Aliases, ", ")), "")
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// formatArgLine renders one argument of the detailed Arguments section,
// resolving choices and default lazily.
func formatArgLine(arg *ArgSpec) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "  `--%s`", arg.Name)
	if arg.Required {
		sb.WriteString(" *(required)*")
	}
	desc := arg.Description
	if desc == "" {
		desc = "No description"
	}
	fmt.Fprintf(&sb, " - %s", desc)

	if !arg.Choices.IsZero() {
		choices := arg.Choices.Resolve()
		if len(choices) > 0 {
			if len(choices) > maxRenderedChoices {
				fmt.Fprintf(&sb, " (Options: %s, ...)", strings.Join(choices[:maxRenderedChoices], ", "))
			} else {
				fmt.Fprintf(&sb, " (Options: %s)", strings.Join(choices, ", "))
			}
		}
	}

	if !arg.Default.IsZero() {
		fmt.Fprintf(&sb, " (Default: %s)", arg.Default.Resolve())
	}

	return sb.String()
}

// General returns the cached listing of every registered command. The first
// call builds it; every later call returns the identical string even if the
// registry has changed since.
func (h *Help) General() string {
	h.once.Do(func() {
		h.general = h.buildGeneral()
	})
	return h.general
}

func (h *Help) buildGeneral() string {
	lines := []string{"*Available Commands:*"}

	unique := h.reg.Unique()
	keys := make([]string, 0, len(unique))
	for key := range unique {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		meta := unique[key].Meta
		// Compact placeholders here, no -- prefix: this list trades precision
		// for scannability; the per-command Usage line has the full flag form.
		usage := []string{key}
		for _, arg := range meta.Args() {
			if arg.Required {
				usage = append(usage, fmt.Sprintf("<%s>", arg.Name))
			} else {
				usage = append(usage, fmt.Sprintf("[%s]", arg.Name))
			}
		}
		lines = append(lines, fmt.Sprintf("`%s` - %s", strings.Join(usage, " "), meta.Description))
	}

	lines = append(lines,
		"",
		"For detailed help on any command, use: `help <command-name>` or `<command-name> --help`",
		"",
		"Example: `help create-vm` or `create-vm --help`",
	)

	return strings.Join(lines, "\n")
}

// Respond handles a help request and writes the response through out. target
// is the free text after the "help" token ("" for the general listing); it
// may itself carry trailing help tokens, which are stripped before lookup.
func (h *Help) Respond(out OutputFunc, user, target string) {
	greeting := "Hello! "
	if user != "" {
		greeting = fmt.Sprintf("Hello <@%s>! ", user)
	}

	target = StripHelpTokens(target)
	if target == "" {
		out(greeting + "Here's what I can help you with:\n\n" + h.General())
		return
	}

	if _, ok := h.reg.Lookup(target); ok {
		out(fmt.Sprintf("%sHere's help for `%s`:\n\n%s", greeting, target, h.FormatCommand(target, true)))
		return
	}

	if suggestions := h.Suggest(target); len(suggestions) > 0 {
		out(fmt.Sprintf("%sCommand `%s` not found. Did you mean: %s?",
			greeting, target, strings.Join(suggestions, ", ")))
		return
	}
	out(fmt.Sprintf("%sCommand `%s` not found. Use `help` to see all available commands.", greeting, target))
}

// Suggest returns up to maxSuggestions registry keys resembling attempt,
// sorted for stable output. Matching is case-insensitive substring on the
// whole attempt; when nothing contains it (a mid-word typo such as
// "list-asw-vms") the attempt is retried trimmed from the right, down to
// minSuggestLen characters, so the shared prefix still finds "list-aws-vms".
func (h *Help) Suggest(attempt string) []string {
	needle := strings.ToLower(strings.TrimSpace(attempt))
	if needle == "" {
		return nil
	}
	for {
		var matches []string
		for _, key := range h.reg.Keys() {
			if strings.Contains(strings.ToLower(key), needle) {
				matches = append(matches, key)
			}
		}
		if len(matches) > 0 {
			sort.Strings(matches)
			if len(matches) > maxSuggestions {
				matches = matches[:maxSuggestions]
			}
			return matches
		}
		runes := []rune(needle)
		if len(runes) <= minSuggestLen {
			return nil
		}
		needle = string(runes[:len(runes)-1])
	}
}

// IsHelpRequest reports whether the command line asks for help, either by
// leading "help" or by a trailing help flag.
func IsHelpRequest(commandLine string) bool {
	return helpFlagRe.MatchString(commandLine)
}

// StripHelpTokens removes help/-h/--help/h tokens from a command line so the
// remainder can be looked up as a command name.
func StripHelpTokens(commandLine string) string {
	fields := strings.Fields(commandLine)
	kept := fields[:0]
	for _, f := range fields {
		switch strings.ToLower(f) {
		case "help", "h", "-h", "--help", "-help":
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}
