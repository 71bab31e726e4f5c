package tool

import (
	"cmp"
	"encoding/json"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// Source identifies how a tool entered the registry. Discovery refresh
// removes tools by source so built-ins and other sources survive.
type Source string

// Source values for registry entries.
const (
	SourceBuiltin    Source = "builtin"
	SourceSubprocess Source = "subprocess"
	SourceRemote     Source = "remote"
)

// Schema is a tool's name paired with its JSON Schema, returned by
// Registry.Schemas for the model-bound tool declarations.
type Schema struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

type entry struct {
	tool   Tool
	source Source
}

// Registry holds the name→Tool mapping and the process-wide trust list.
// It is instance-based (not global): construct one per process and thread
// it as a dependency.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	trust   *TrustList
	logger  *slog.Logger
}

// NewRegistry creates an empty registry. A nil logger discards warnings.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		entries: make(map[string]entry),
		trust:   NewTrustList(),
		logger:  logger,
	}
}

// Trust returns the registry-owned trust list. Remote tools hold a
// reference to it and their confirmation continuations insert into it.
func (r *Registry) Trust() *TrustList {
	return r.trust
}

// Register inserts a tool under its name. Re-registering a name replaces
// the previous tool: last write wins, with a warning, never an error.
func (r *Registry) Register(t Tool, source Source) error {
	name := strings.TrimSpace(t.Name())
	if name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, exists := r.entries[name]; exists {
		r.logger.Warn("tool registered twice, replacing previous registration",
			"tool", name,
			"previous_source", prev.source,
			"source", source,
		)
	}
	r.entries[name] = entry{tool: t, source: source}
	return nil
}

// Get returns the tool registered under name, or ErrNotFound.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return nil, ErrNotFound
	}
	return e.tool, nil
}

// RemoveSource deletes every tool registered from the given source and
// returns how many were removed. Discovery calls this before re-running so
// a refresh is idempotent.
func (r *Registry) RemoveSource(source Source) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for name, e := range r.entries {
		if e.source == source {
			delete(r.entries, name)
			removed++
		}
	}
	return removed
}

// Names returns all registered tool names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Schemas returns all registered tool declarations sorted by name.
func (r *Registry) Schemas() []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]Schema, 0, len(r.entries))
	for name, e := range r.entries {
		schemas = append(schemas, Schema{
			Name:        name,
			Description: e.tool.Description(),
			Schema:      e.tool.Schema(),
		})
	}
	slices.SortFunc(schemas, func(a, b Schema) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return schemas
}
