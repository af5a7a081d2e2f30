package render

import "github.com/localnerve/vaxtrack/internal/models"

// Permissions drives which affordances the views expose
type Permissions struct {
	CanAdd    bool `json:"can_add"`
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
}

// DeriveViewPermissions maps a role onto view affordances.
// Only admins may write; everyone else gets a read-only view.
func DeriveViewPermissions(role models.Role) Permissions {
	admin := role.IsAdmin()
	return Permissions{
		CanAdd:    admin,
		CanEdit:   admin,
		CanDelete: admin,
	}
}
