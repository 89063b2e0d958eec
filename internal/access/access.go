// Package access decides which callers may drive privileged table operations.
package access

import (
	"fmt"

	"craps/internal/apperr"
)

type Role string

const (
	RoleOperator   Role = "operator"
	RoleSettlement Role = "settlement"
	RoleAdmin      Role = "admin"
)

// Control maps caller ids to roles. Admins implicitly hold every role.
type Control struct {
	grants map[string]map[Role]bool
}

func New() *Control {
	return &Control{grants: make(map[string]map[Role]bool)}
}

// FromLists builds a Control from configured id lists.
func FromLists(operators, admins []string, settlement string) *Control {
	c := New()
	for _, id := range operators {
		c.Grant(id, RoleOperator)
	}
	for _, id := range admins {
		c.Grant(id, RoleAdmin)
	}
	if settlement != "" {
		c.Grant(settlement, RoleSettlement)
	}
	return c
}

// Grant is not safe for use once the table is serving; configure before start.
func (c *Control) Grant(caller string, role Role) {
	if c.grants[caller] == nil {
		c.grants[caller] = make(map[Role]bool)
	}
	c.grants[caller][role] = true
}

func (c *Control) Has(caller string, role Role) bool {
	if c == nil || caller == "" {
		return false
	}
	roles := c.grants[caller]
	return roles[role] || roles[RoleAdmin]
}

// Require returns ErrUnauthorized unless caller holds role.
func (c *Control) Require(caller string, role Role) error {
	if !c.Has(caller, role) {
		return fmt.Errorf("%q needs role %s: %w", caller, role, apperr.ErrUnauthorized)
	}
	return nil
}
