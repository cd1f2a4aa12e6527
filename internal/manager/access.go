package manager

import (
	"github.com/tokenmart/marketd/internal/domain"
)

// AccessControl holds the single administrator identity and gates privileged
// operations. It is handed to the managers that need it; there is no ambient
// global administrator.
type AccessControl struct {
	admin domain.Address
}

// NewAccessControl fixes the administrator identity for the process lifetime.
func NewAccessControl(admin domain.Address) *AccessControl {
	return &AccessControl{admin: admin}
}

// Admin returns the administrator identity.
func (a *AccessControl) Admin() domain.Address {
	return a.admin
}

// RequireAdmin fails with domain.ErrNotAdministrator unless caller is the
// administrator.
func (a *AccessControl) RequireAdmin(caller domain.Address) error {
	if caller != a.admin {
		return domain.ErrNotAdministrator
	}
	return nil
}
