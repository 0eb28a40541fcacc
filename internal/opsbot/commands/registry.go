package commands

// Entry pairs a handler with the metadata it was registered with. All dispatch
// keys of one command (canonical name plus aliases) share the same *Meta.
type Entry struct {
	Handler Handler
	Meta    *Meta
}

// Registry maps dispatch keys (canonical names and aliases) to entries.
//
// Registration is expected to complete during single-threaded startup, before
// any lookups; the Registry itself carries no lock. There is no removal
// operation — re-registering under an existing key silently replaces the old
// entry, and that includes alias collisions between different commands
// (last registration wins).
type Registry struct {
	entries map[string]Entry
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register inserts handler and meta under meta.Name and under every alias.
//
// A command literally named "help" is never inserted under its canonical key:
// help requests are routed to the help subsystem before registry dispatch, and
// a registered "help" entry would shadow itself. Its aliases are still
// registered normally.
func (r *Registry) Register(handler Handler, meta *Meta) {
	entry := Entry{Handler: handler, Meta: meta}
	if meta.Name != "help" {
		r.entries[meta.Name] = entry
	}
	for _, alias := range meta.Aliases {
		r.entries[alias] = entry
	}
}

// Lookup returns the entry for an exact, case-sensitive dispatch key. Case
// folding is the dispatcher's concern, not the registry's.
func (r *Registry) Lookup(key string) (Entry, bool) {
	entry, ok := r.entries[key]
	return entry, ok
}

// Keys returns every registered dispatch key, aliases included, in
// unspecified order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	return keys
}

// Unique returns one entry per command, deduplicated by metadata identity and
// keyed by the canonical name, so an alias never stands in for its command in
// listings.
func (r *Registry) Unique() map[string]Entry {
	unique := make(map[string]Entry)
	for _, entry := range r.entries {
		unique[entry.Meta.Name] = entry
	}
	return unique
}

// Len returns the number of registered dispatch keys.
func (r *Registry) Len() int {
	return len(r.entries)
}
