package models

import (
	"time"

	"github.com/casahogar/cashbox_backend/utils"
	"gorm.io/gorm"
)

// SoftDelete is the explicit active flag + deletion timestamp pair carried by
// products, nurses and users. Nothing is filtered implicitly; queries opt in
// with scopeActive / scopeNotDeleted.
type SoftDelete struct {
	IsActive  *bool      `gorm:"not null;default:true" json:"is_active"`
	DeletedAt *time.Time `gorm:"index" json:"deleted_at"`
}

func (s SoftDelete) Active() bool {
	return s.IsActive != nil && *s.IsActive && s.DeletedAt == nil
}

func (s SoftDelete) Deleted() bool {
	return s.DeletedAt != nil
}

func newActive() SoftDelete {
	return SoftDelete{IsActive: utils.NewTrue()}
}

func scopeActive(db *gorm.DB) *gorm.DB {
	return db.Where("is_active = ? AND deleted_at IS NULL", true)
}

func scopeNotDeleted(db *gorm.DB) *gorm.DB {
	return db.Where("deleted_at IS NULL")
}

func softDeleteColumns(now time.Time) map[string]interface{} {
	return map[string]interface{}{"is_active": false, "deleted_at": now}
}

func restoreColumns() map[string]interface{} {
	return map[string]interface{}{"is_active": true, "deleted_at": nil}
}
