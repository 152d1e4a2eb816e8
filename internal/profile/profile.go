// Package profile resolves a principal into its profile row and admin grant.
package profile

import (
	"time"

	"ionizer_portal/internal/rowstore"
)

const (
	TableProfiles    = "users"
	TableAdminGrants = "admin_users"
)

// Toast messages raised on lookup failures.
const (
	MsgProfileLoadFailed = "Failed to load user profile"
	MsgAdminCheckFailed  = "Failed to check admin permissions"
)

// Tables is the row schema the resolver reads.
var Tables = rowstore.Schema{
	TableProfiles:    {"id"},
	TableAdminGrants: {"id"},
}

// Role distinguishes admin grants for routing only; both roles pass the
// same admin gate.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Profile is the application user record keyed by principal id.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AdminGrant marks a principal as admin. Its presence is the only
// authorization signal.
type AdminGrant struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Resolution is the settled outcome of both lookups. A not-found profile
// or grant is not an error.
type Resolution struct {
	Profile    *Profile
	IsAdmin    bool
	Role       Role
	ProfileErr error
	AdminErr   error
}
