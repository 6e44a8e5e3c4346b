package models

import (
	"github.com/casahogar/cashbox_backend/utils"
)

// Actor is the authenticated user performing a write. It is passed into
// every core operation and never read from ambient state.
type Actor struct {
	UserId int      `json:"user_id"`
	Name   string   `json:"name"`
	Role   UserRole `json:"role"`
	IP     string   `json:"ip"`
}

// FormattedName is the issuer snapshot stored next to user_id.
func (a Actor) FormattedName() string {
	return formatIssuerName(a.Name, a.Role)
}

func (a Actor) IsAdmin() bool {
	return a.Role.IsAdmin()
}

func (a Actor) validate() error {
	if a.UserId <= 0 {
		return utils.NewValidationError("user_id", "issuer is required")
	}
	return nil
}

func formatIssuerName(name string, role UserRole) string {
	if role == UserRoleAdmin {
		return "Admin - " + name
	}
	return name
}
