package commands

import (
	"fmt"
	"log/slog"
)

// ErrValueSentinel is rendered in place of a value whose producer failed.
// Help output must stay usable even when a backing data source is broken,
// so producer failures never propagate past Resolve.
const ErrValueSentinel = "<error getting value>"

// Dynamic is a string value that is either fixed at declaration time or
// computed on demand by a zero-argument producer.
type Dynamic struct {
	static string
	fn     func() (string, error)
}

// Static returns a Dynamic holding a fixed value.
func Static(v string) Dynamic {
	return Dynamic{static: v}
}

// Producer returns a Dynamic whose value is computed by fn at render time.
func Producer(fn func() (string, error)) Dynamic {
	return Dynamic{fn: fn}
}

// IsZero reports whether d was never set (neither static nor producer).
func (d Dynamic) IsZero() bool {
	return d.static == "" && d.fn == nil
}

// Resolve evaluates the value. Producer errors and panics are logged and
// collapsed into ErrValueSentinel.
func (d Dynamic) Resolve() (out string) {
	if d.fn == nil {
		return d.static
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("dynamic value producer panicked", "panic", fmt.Sprint(r))
			out = ErrValueSentinel
		}
	}()
	v, err := d.fn()
	if err != nil {
		slog.Error("dynamic value producer failed", "err", err)
		return ErrValueSentinel
	}
	return v
}

// DynamicList is the list-valued counterpart of Dynamic, used for argument
// choice sets.
type DynamicList struct {
	static []string
	fn     func() ([]string, error)
}

// StaticList returns a DynamicList holding a fixed sequence.
func StaticList(vs ...string) DynamicList {
	return DynamicList{static: vs}
}

// ProducerList returns a DynamicList whose sequence is computed by fn at
// render time.
func ProducerList(fn func() ([]string, error)) DynamicList {
	return DynamicList{fn: fn}
}

// IsZero reports whether l was never set.
func (l DynamicList) IsZero() bool {
	return l.static == nil && l.fn == nil
}

// Resolve evaluates the sequence. A failing producer degrades to a
// single-element sequence containing ErrValueSentinel so the surrounding
// help text still renders.
func (l DynamicList) Resolve() (out []string) {
	if l.fn == nil {
		return l.static
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("choice list producer panicked", "panic", fmt.Sprint(r))
			out = []string{ErrValueSentinel}
		}
	}()
	vs, err := l.fn()
	if err != nil {
		slog.Error("choice list producer failed", "err", err)
		return []string{ErrValueSentinel}
	}
	return vs
}
