package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/casahogar/cashbox_backend/config"
	"github.com/casahogar/cashbox_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WasteRecord is a manual inventory write-down (spoilage, breakage).
// Creating one takes units out of stock; deleting it puts exactly the same
// units back.
type WasteRecord struct {
	ID        int      `gorm:"primary_key" json:"id"`
	ProductId int      `gorm:"not null;index" json:"product_id"`
	Product   *Product `gorm:"foreignKey:ProductId;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"product,omitempty"`
	Quantity  int      `gorm:"not null" json:"quantity"`
	Reason    string   `gorm:"size:500;not null" json:"reason"`
	WasteDate Date     `gorm:"not null;index" json:"waste_date"`
	Issuer
	User      *User     `gorm:"foreignKey:UserId;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type NewWasteRecord struct {
	ProductId int    `json:"product_id" validate:"gt=0"`
	Quantity  int    `json:"quantity" validate:"min=1"`
	Reason    string `json:"reason" validate:"required,max=500"`
	WasteDate Date   `json:"waste_date"`
}

type WasteRecordFilter struct {
	Date      *Date
	ProductId *int
}

func (input *NewWasteRecord) validate() error {
	input.Reason = strings.TrimSpace(input.Reason)
	if input.WasteDate.IsZero() {
		return utils.NewValidationError("waste_date", "is required")
	}
	return utils.ValidateInput(input)
}

func CreateWasteRecord(ctx context.Context, actor Actor, input *NewWasteRecord) (*WasteRecord, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	products, err := lockProducts(tx, []int{input.ProductId})
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	product := products[input.ProductId]
	if !product.Active() {
		tx.Rollback()
		return nil, utils.NewProductNotFoundError(input.ProductId)
	}
	if err := decrementLocked(tx, product, input.Quantity); err != nil {
		tx.Rollback()
		return nil, err
	}

	record := WasteRecord{
		ProductId: input.ProductId,
		Quantity:  input.Quantity,
		Reason:    input.Reason,
		WasteDate: input.WasteDate,
		Issuer:    issuerOf(actor),
	}
	if err := tx.Omit(clause.Associations).Create(&record).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	record.Product = product

	RecordActivity(ctx, actor, AuditActionCreated, EntityWasteRecord, record.ID, nil, record)
	return &record, nil
}

func GetWasteRecord(ctx context.Context, id int) (*WasteRecord, error) {
	var record WasteRecord
	err := config.GetDB().WithContext(ctx).Preload("Product").First(&record, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("waste record")
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// DeleteWasteRecord removes the record and restores its quantity in the
// same transaction.
func DeleteWasteRecord(ctx context.Context, actor Actor, id int) (*WasteRecord, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	var record WasteRecord
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&record, id).Error
	if err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("waste record")
		}
		return nil, err
	}
	if _, err := lockProducts(tx, []int{record.ProductId}); err != nil {
		tx.Rollback()
		return nil, err
	}

	res := tx.Delete(&WasteRecord{}, record.ID)
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	// a concurrent delete already restored the stock
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, utils.NewNotFoundError("waste record")
	}
	if err := IncrementStock(tx, record.ProductId, record.Quantity); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	RecordActivity(ctx, actor, AuditActionDeleted, EntityWasteRecord, record.ID, record, nil)
	return &record, nil
}

func ListWasteRecords(ctx context.Context, filter WasteRecordFilter) ([]*WasteRecord, error) {
	dbCtx := config.GetDB().WithContext(ctx).Model(&WasteRecord{}).Preload("Product")
	if filter.Date != nil && !filter.Date.IsZero() {
		dbCtx = dbCtx.Where("waste_date = ?", *filter.Date)
	}
	if filter.ProductId != nil && *filter.ProductId > 0 {
		dbCtx = dbCtx.Where("product_id = ?", *filter.ProductId)
	}

	var results []*WasteRecord
	if err := dbCtx.Order("waste_date DESC, id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
