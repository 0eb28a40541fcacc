package commands

import (
	"log/slog"
	"strings"

	"github.com/google/shlex"
)

// ParseParams extracts --key=value style parameters from a command line, e.g.
//
//	list-vms --type=small,medium --state=running --stop
//
// yields {"type": "small,medium", "state": "running", "stop": "true"}.
// Values may follow the key after '=' or as the next token. Bare flags map to
// "true". Positional tokens are ignored; malformed input yields an empty map
// rather than an error so a typo never aborts dispatch.
func ParseParams(commandLine string) Params {
	params := Params{}

	commandLine = strings.TrimSpace(commandLine)
	if commandLine == "" {
		return params
	}

	// Normalize comma-separated list values: strip whitespace around commas
	// and drop empty elements so "a, b," parses as "a,b".
	pieces := strings.Split(commandLine, ",")
	kept := pieces[:0]
	for _, p := range pieces {
		if t := strings.TrimSpace(p); t != "" {
			kept = append(kept, t)
		}
	}
	commandLine = strings.Join(kept, ",")

	tokens, err := shlex.Split(commandLine)
	if err != nil {
		slog.Error("parse command parameters", "err", err)
		return params
	}

	for i := 0; i < len(tokens); i++ {
		token := tokens[i]
		if !strings.HasPrefix(token, "--") {
			continue
		}
		key := strings.TrimPrefix(token, "--")
		value := ""
		if eq := strings.Index(key, "="); eq >= 0 {
			key, value = key[:eq], key[eq+1:]
		} else if i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "--") {
			value = tokens[i+1]
			i++
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if value = strings.TrimSpace(value); value != "" {
			params[key] = value
		} else {
			params[key] = "true"
		}
	}

	return params
}

// Values splits the named parameter's comma-separated value into its parts,
// returning nil when the parameter is absent.
func (p Params) Values(key string) []string {
	raw, ok := p[key]
	if !ok {
		return nil
	}
	var values []string
	for _, v := range strings.Split(raw, ",") {
		if t := strings.TrimSpace(v); t != "" {
			values = append(values, t)
		}
	}
	return values
}

// Has reports whether the named parameter or flag is present.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Get returns the named parameter's value, or fallback when absent.
func (p Params) Get(key, fallback string) string {
	if v, ok := p[key]; ok {
		return v
	}
	return fallback
}
