package workflow

import (
	"fmt"
	"sort"
	"sync"

	domainwf "github.com/jmwangi/schoolflow/internal/domain/workflow"
)

// Registry holds the transition graph for every registered process type.
// Registration happens once at startup; lookups are read-only afterwards.
type Registry struct {
	mu     sync.RWMutex
	graphs map[domainwf.ProcessType]*domainwf.Graph
}

// NewRegistry creates an empty process registry.
func NewRegistry() *Registry {
	return &Registry{
		graphs: make(map[domainwf.ProcessType]*domainwf.Graph),
	}
}

// Register adds a process graph. Registering the same process type twice is
// a wiring error and fails rather than silently replacing the graph.
func (r *Registry) Register(graph *domainwf.Graph) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.graphs[graph.Type()]; exists {
		return fmt.Errorf("process type %s already registered", graph.Type())
	}
	r.graphs[graph.Type()] = graph
	return nil
}

// MustRegister is Register that panics, for static startup wiring.
func (r *Registry) MustRegister(graph *domainwf.Graph) {
	if err := r.Register(graph); err != nil {
		panic(err)
	}
}

// Get returns the graph for a process type.
func (r *Registry) Get(processType domainwf.ProcessType) (*domainwf.Graph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	graph, ok := r.graphs[processType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domainwf.ErrUnknownProcessType, processType)
	}
	return graph, nil
}

// Types returns the registered process types in stable order.
func (r *Registry) Types() []domainwf.ProcessType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]domainwf.ProcessType, 0, len(r.graphs))
	for t := range r.graphs {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
