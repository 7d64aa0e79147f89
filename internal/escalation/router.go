package escalation

import (
	"strings"

	"github.com/aozorakai/taxflow/internal/models"
)

// Router selects handlers for client conversations. Initial routing is by
// priority; escalation moves one level up the same ladder the approval
// chain uses.
type Router struct{}

// NewRouter creates a conversation router
func NewRouter() *Router {
	return &Router{}
}

// InitialRole returns the role a new conversation is assigned to
func (r *Router) InitialRole(priority models.Priority) models.Role {
	switch priority {
	case models.PriorityUrgent:
		return models.RoleDirector
	case models.PriorityHigh:
		return models.RoleManager
	default:
		return models.RoleAssociate
	}
}

// NextRole returns the role one level above, and false when the ceiling
// has been reached
func (r *Router) NextRole(current models.Role) (models.Role, bool) {
	switch current {
	case models.RoleAssociate:
		return models.RoleManager, true
	case models.RoleManager:
		return models.RoleDirector, true
	default:
		return current, false
	}
}

// Assignee returns the handler pool address for a role
func (r *Router) Assignee(role models.Role) string {
	return strings.ToLower(role.String()) + "-pool"
}
