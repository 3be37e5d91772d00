package usecase

import (
	"sync"

	"github.com/brandpilot/brandpilot/application/port/outbound"
	"github.com/brandpilot/brandpilot/domain/entity"
	apperr "github.com/brandpilot/brandpilot/domain/error"
)

// ApplierRegistry maps an item kind to the applier that performs its side
// effect. The gate only ever reaches appliers through it.
type ApplierRegistry struct {
	mu       sync.RWMutex
	appliers map[entity.ItemKind]outbound.ActionApplier
}

func NewApplierRegistry() *ApplierRegistry {
	return &ApplierRegistry{appliers: make(map[entity.ItemKind]outbound.ActionApplier)}
}

// Register replaces any applier already registered for kind
func (r *ApplierRegistry) Register(kind entity.ItemKind, applier outbound.ActionApplier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appliers[kind] = applier
}

func (r *ApplierRegistry) Lookup(kind entity.ItemKind) (outbound.ActionApplier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	applier, ok := r.appliers[kind]
	if !ok {
		return nil, apperr.NoApplier(string(kind))
	}
	return applier, nil
}
