package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/casahogar/cashbox_backend/config"
	"github.com/casahogar/cashbox_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID          int             `gorm:"primary_key" json:"id"`
	Name        string          `gorm:"size:255;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Stock       int             `gorm:"not null;default:0;check:stock >= 0" json:"stock"`
	BasePrice   decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"base_price"`
	SoftDelete
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description"`
	Stock       int             `json:"stock" validate:"min=0"`
	BasePrice   decimal.Decimal `json:"base_price"`
}

// stock is absent on purpose: it only moves through the stock ledger
type UpdateProductInput struct {
	Name        *string          `json:"name" validate:"omitempty,max=255"`
	Description *string          `json:"description"`
	BasePrice   *decimal.Decimal `json:"base_price"`
}

func (input *NewProduct) validate() error {
	input.Name = strings.TrimSpace(input.Name)
	if err := utils.ValidateInput(input); err != nil {
		return err
	}
	if input.BasePrice.IsNegative() {
		return utils.NewValidationError("base_price", "must be greater than or equal to 0")
	}
	return validateMax("base_price", input.BasePrice, maxPrice)
}

func (input *UpdateProductInput) validate() error {
	if input.Name != nil {
		trimmed := strings.TrimSpace(*input.Name)
		if trimmed == "" {
			return utils.NewValidationError("name", "is required")
		}
		input.Name = &trimmed
	}
	if err := utils.ValidateInput(input); err != nil {
		return err
	}
	if input.BasePrice != nil {
		if input.BasePrice.IsNegative() {
			return utils.NewValidationError("base_price", "must be greater than or equal to 0")
		}
		return validateMax("base_price", *input.BasePrice, maxPrice)
	}
	return nil
}

func CreateProduct(ctx context.Context, actor Actor, input *NewProduct) (*Product, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	product := Product{
		Name:        input.Name,
		Description: input.Description,
		Stock:       input.Stock,
		BasePrice:   input.BasePrice.Round(2),
		SoftDelete:  newActive(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, err
	}

	RecordActivity(ctx, actor, AuditActionCreated, EntityProduct, product.ID, nil, product)
	return &product, nil
}

// GetProduct returns the product whether or not it is active.
func GetProduct(ctx context.Context, id int) (*Product, error) {
	var product Product
	err := config.GetDB().WithContext(ctx).First(&product, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewProductNotFoundError(id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func ListProducts(ctx context.Context, includeInactive bool) ([]*Product, error) {
	var results []*Product
	dbCtx := config.GetDB().WithContext(ctx).Model(&Product{})
	if !includeInactive {
		dbCtx = dbCtx.Scopes(scopeActive)
	}
	if err := dbCtx.Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func UpdateProduct(ctx context.Context, actor Actor, id int, input *UpdateProductInput) (*Product, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	oldProduct, err := GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if oldProduct.Deleted() {
		return nil, utils.NewProductNotFoundError(id)
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.BasePrice != nil {
		updates["base_price"] = input.BasePrice.Round(2)
	}
	if len(updates) == 0 {
		return oldProduct, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&Product{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, err
	}
	product, err := GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	RecordActivity(ctx, actor, AuditActionUpdated, EntityProduct, id, oldProduct, product)
	return product, nil
}

// DeleteProduct deactivates the product. Sale items keep pointing at it.
func DeleteProduct(ctx context.Context, actor Actor, id int) (*Product, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	product, err := GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.Deleted() {
		return nil, utils.NewProductNotFoundError(id)
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&Product{}).Where("id = ?", id).
		Updates(softDeleteColumns(time.Now())).Error; err != nil {
		return nil, err
	}

	RecordActivity(ctx, actor, AuditActionDeleted, EntityProduct, id, product, nil)
	return GetProduct(ctx, id)
}

func RestoreProduct(ctx context.Context, actor Actor, id int) (*Product, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	oldProduct, err := GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if oldProduct.Active() {
		return oldProduct, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&Product{}).Where("id = ?", id).
		Updates(restoreColumns()).Error; err != nil {
		return nil, err
	}
	product, err := GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	RecordActivity(ctx, actor, AuditActionUpdated, EntityProduct, id, oldProduct, product)
	return product, nil
}
