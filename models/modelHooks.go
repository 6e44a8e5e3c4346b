package models

import (
	"github.com/casahogar/cashbox_backend/utils"
	"gorm.io/gorm"
)

var (
	errAuditImmutable = utils.NewForbiddenError("activity logs cannot be modified")
	errSaleImmutable  = utils.NewForbiddenError("sales cannot be modified for audit reasons")
)

func (l *ActivityLog) BeforeUpdate(tx *gorm.DB) (err error) {
	return errAuditImmutable
}

func (l *ActivityLog) BeforeDelete(tx *gorm.DB) (err error) {
	return errAuditImmutable
}

func (s *Sale) BeforeUpdate(tx *gorm.DB) (err error) {
	return errSaleImmutable
}

func (s *Sale) BeforeDelete(tx *gorm.DB) (err error) {
	return errSaleImmutable
}

func (i *SaleItem) BeforeUpdate(tx *gorm.DB) (err error) {
	return errSaleImmutable
}
