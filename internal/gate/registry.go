package gate

import (
	"sync"

	"github.com/odyssey-erp/stockbook/internal/imports"
)

// Registry hands out at most one active gate per organization.
type Registry struct {
	mu    sync.Mutex
	gates map[string]*Gate
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{gates: make(map[string]*Gate)}
}

// Open returns a fresh gate for cfg.OrganizationID, or ErrImportInProgress when the
// organization already has a gate past Idle and not yet terminal.
func (r *Registry) Open(cfg Config) (*Gate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gates[cfg.OrganizationID]; ok && g.Active() {
		return nil, imports.ErrImportInProgress
	}
	g := New(cfg)
	r.gates[cfg.OrganizationID] = g
	return g, nil
}
