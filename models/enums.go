package models

import (
	"encoding/json"
	"errors"
)

type UserRole string

const (
	UserRoleAdmin     UserRole = "A"
	UserRoleTreasurer UserRole = "T"
)

// accept "A"/"T" and the long names the front-end sends
func (p *UserRole) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("user role must be string")
	}
	userRole := map[string]UserRole{
		"A":         UserRoleAdmin,
		"admin":     UserRoleAdmin,
		"T":         UserRoleTreasurer,
		"tesorero":  UserRoleTreasurer,
		"treasurer": UserRoleTreasurer,
	}
	role, ok := userRole[str]
	if !ok {
		return errors.New("invalid user role")
	}
	*p = role
	return nil
}

func (p UserRole) IsAdmin() bool {
	return p == UserRoleAdmin
}

type AuditAction string

const (
	AuditActionCreated AuditAction = "created"
	AuditActionUpdated AuditAction = "updated"
	AuditActionDeleted AuditAction = "deleted"
)

func (a AuditAction) IsValid() bool {
	switch a {
	case AuditActionCreated, AuditActionUpdated, AuditActionDeleted:
		return true
	}
	return false
}

// entity types written to activity_logs.entity_type
const (
	EntityProduct          = "Product"
	EntityNurse            = "Nurse"
	EntitySale             = "Sale"
	EntityExpense          = "Expense"
	EntityCapitalInjection = "CapitalInjection"
	EntityWasteRecord      = "WasteRecord"
	EntityDailyClosing     = "DailyClosing"
)
