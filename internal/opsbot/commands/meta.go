// Package commands provides the command registry, metadata model, help
// rendering, and message dispatch for opsbot.
package commands

import (
	"context"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// NoDescription is rendered when a command or argument declares none.
const NoDescription = "No description available"

// OutputFunc emits a textual response back to the requesting user. Handlers
// may call it zero or more times.
type OutputFunc func(message string)

// Params holds parameters parsed from --key=value style tokens. Bare flags
// (e.g. --stop) are stored with the value "true".
type Params map[string]string

// Handler processes one dispatched command. It communicates exclusively via
// out; errors are the handler's own responsibility to catch and report.
type Handler func(ctx context.Context, out OutputFunc, sender string, params Params)

// ArgSpec describes one named parameter of a command.
type ArgSpec struct {
	Name        string
	Required    bool
	Description string
	// Choices is the optional allowed-value set. It may be produced lazily;
	// render-time failures degrade per Dynamic semantics.
	Choices DynamicList
	// Default is the optional default value, static or produced lazily.
	Default Dynamic
}

// Meta is the help metadata attached to a command at registration time.
// It is constructed once during startup and never mutated afterwards.
type Meta struct {
	// Name is the canonical dispatch key.
	Name        string
	Description string
	// args preserves declaration order, which defines the usage string and
	// the detailed-help rendering order.
	args     *orderedmap.OrderedMap[string, *ArgSpec]
	Examples []string
	Aliases  []string
}

// NewMeta creates command metadata with the given canonical name and
// description.
func NewMeta(name, description string) *Meta {
	if description == "" {
		description = NoDescription
	}
	return &Meta{
		Name:        name,
		Description: description,
		args:        orderedmap.New[string, *ArgSpec](),
	}
}

// Arg appends an argument spec. Declaring the same name twice overwrites the
// earlier spec in place, keeping its original position.
func (m *Meta) Arg(spec *ArgSpec) *Meta {
	m.args.Set(spec.Name, spec)
	return m
}

// Example appends a literal usage example.
func (m *Meta) Example(ex string) *Meta {
	m.Examples = append(m.Examples, ex)
	return m
}

// Alias adds alternative dispatch keys.
func (m *Meta) Alias(names ...string) *Meta {
	m.Aliases = append(m.Aliases, names...)
	return m
}

// Args returns the argument specs in declaration order.
func (m *Meta) Args() []*ArgSpec {
	specs := make([]*ArgSpec, 0, m.args.Len())
	for pair := m.args.Oldest(); pair != nil; pair = pair.Next() {
		specs = append(specs, pair.Value)
	}
	return specs
}

// ArgNamed returns the spec for the named argument, or nil.
func (m *Meta) ArgNamed(name string) *ArgSpec {
	spec, ok := m.args.Get(name)
	if !ok {
		return nil
	}
	return spec
}

// NumArgs returns the number of declared arguments.
func (m *Meta) NumArgs() int {
	return m.args.Len()
}
