package auth

import (
	"fmt"
	"sync"

	"github.com/elys-network/tranche/internal/types"
)

// Role names used by the engine's authorization checks.
type Role string

const (
	RoleCreator    Role = "creator"
	RoleStrategist Role = "strategist"
	RoleStrategy   Role = "strategy"
	RoleVault      Role = "vault"
	RoleRollover   Role = "rollover"
	RoleDeployer   Role = "deployer"
)

// Authorizer is the injected policy object consulted before every
// state-mutating operation. Implementations must be safe for concurrent use.
type Authorizer interface {
	// HasRole reports whether addr carries the named role.
	HasRole(addr types.Address, role Role) bool
	// Require returns ErrUnauthorized when addr lacks the named role.
	Require(addr types.Address, role Role) error
}

// Registry is an in-memory role registry. Production deployments would back
// this with the platform's access-control module; the engine only ever sees
// the Authorizer interface.
type Registry struct {
	mu    sync.RWMutex
	roles map[Role]map[types.Address]bool
}

var _ Authorizer = (*Registry)(nil)

// NewRegistry creates an empty role registry.
func NewRegistry() *Registry {
	return &Registry{roles: make(map[Role]map[types.Address]bool)}
}

// Grant assigns a role to an address.
func (r *Registry) Grant(addr types.Address, role Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.roles[role] == nil {
		r.roles[role] = make(map[types.Address]bool)
	}
	r.roles[role][addr] = true
}

// Revoke removes a role from an address.
func (r *Registry) Revoke(addr types.Address, role Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.roles[role], addr)
}

func (r *Registry) HasRole(addr types.Address, role Role) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.roles[role][addr]
}

func (r *Registry) Require(addr types.Address, role Role) error {
	if addr == "" {
		return types.ErrZeroAddress
	}
	if !r.HasRole(addr, role) {
		return fmt.Errorf("%w: %s needs role %q", types.ErrUnauthorized, addr, role)
	}
	return nil
}
