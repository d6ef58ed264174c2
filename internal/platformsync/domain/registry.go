package domain

import (
	"sync"

	salesdomain "github.com/authorstack/authorstack/internal/sales/domain"
)

// Registry maps platforms to their connectors.
type Registry struct {
	mu         sync.RWMutex
	connectors map[salesdomain.Platform]Connector
}

func NewRegistry(connectors ...Connector) *Registry {
	r := &Registry{connectors: map[salesdomain.Platform]Connector{}}
	for _, c := range connectors {
		r.Register(c)
	}
	return r
}

func (r *Registry) Register(c Connector) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[c.Platform()] = c
}

func (r *Registry) Get(p salesdomain.Platform) (Connector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connectors[p]
	return c, ok
}
