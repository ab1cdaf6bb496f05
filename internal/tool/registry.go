package tool

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Registry is an in-memory mapping from tool name to Builder (C4). There is
// no hidden default: callers construct a Registry per run and register the
// builders that run needs, so plan-mode or custom-agent tool subsets never
// leak a tool the caller didn't ask for.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
	schemas  map[string]*jsonschema.Schema
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]Builder),
		schemas:  make(map[string]*jsonschema.Schema),
	}
}

// Register adds a builder, compiling its schema immediately so a malformed
// schema fails at startup rather than on first use.
func (r *Registry) Register(b Builder) error {
	schema, err := CompileSchema(b.Name(), b.Schema())
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[strings.ToLower(b.Name())] = b
	r.schemas[strings.ToLower(b.Name())] = schema
	return nil
}

// MustRegister panics on a schema compile failure; used from init()-time
// registration where a bad schema is a programming error, not runtime data.
func (r *Registry) MustRegister(b Builder) {
	if err := r.Register(b); err != nil {
		panic(fmt.Sprintf("tool registry: %v", err))
	}
}

// Get looks up a builder by name (case-insensitive).
func (r *Registry) Get(name string) (Builder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.builders[strings.ToLower(name)]
	return b, ok
}

// Schema returns the compiled schema for a registered tool.
func (r *Registry) Schema(name string) (*jsonschema.Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[strings.ToLower(name)]
	return s, ok
}

// Names returns every registered tool name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.builders))
	for _, b := range r.builders {
		names = append(names, b.Name())
	}
	sort.Strings(names)
	return names
}

// Build resolves a tool by name, validates rawArgs against its schema, and
// returns a ready Invocation. This is the single entry point the scheduler
// (C6) calls at Stage A.
func (r *Registry) Build(name, rawArgs string, ictx *InvocationContext) (Invocation, error) {
	b, ok := r.Get(name)
	if !ok {
		return nil, &ToolError{Message: "unknown tool: " + name}
	}
	return b.Build(rawArgs, ictx)
}

// Filter returns the subset of names allowed under a plan-mode or
// allow/deny policy. disabled takes precedence; when planMode is true only
// names in planModeAllowed survive.
func (r *Registry) Filter(disabled map[string]bool, planMode bool, planModeAllowed map[string]bool) []string {
	var out []string
	for _, name := range r.Names() {
		if disabled[name] {
			continue
		}
		if planMode && !planModeAllowed[name] {
			continue
		}
		out = append(out, name)
	}
	return out
}
