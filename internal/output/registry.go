package output

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry maps format names to SerializeFunc implementations, enabling
// pluggable output formats for the show command.
type Registry struct {
	mu          sync.RWMutex
	serializers map[string]SerializeFunc
}

// NewRegistry creates an empty serializer registry.
func NewRegistry() *Registry {
	return &Registry{
		serializers: make(map[string]SerializeFunc),
	}
}

// Register adds a serializer under the given format name.
// Existing entries for the same name are overwritten.
func (r *Registry) Register(name string, fn SerializeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.serializers[name] = fn
}

// Serializer returns the serializer for the given format, or an error if not
// found.
func (r *Registry) Serializer(name string) (SerializeFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.serializers[name]
	if !ok {
		return nil, fmt.Errorf("unknown output format %q (available: %s)", name, r.availableLocked())
	}

	return fn, nil
}

// Formats returns the sorted list of registered format names.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.formatsLocked()
}

func (r *Registry) formatsLocked() []string {
	names := make([]string, 0, len(r.serializers))
	for name := range r.serializers {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// AvailableFormats returns a comma-separated string of registered format names.
func (r *Registry) AvailableFormats() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.availableLocked()
}

func (r *Registry) availableLocked() string {
	formats := r.formatsLocked()
	if len(formats) == 0 {
		return "none"
	}

	return strings.Join(formats, ", ")
}

// DefaultRegistry returns a registry pre-populated with the built-in
// formats: xml, yaml, json.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register("xml", SerializeXML)
	r.Register("yaml", SerializeYAML)
	r.Register("json", SerializeJSON)

	return r
}
