package models

import (
	"context"

	"github.com/casahogar/cashbox_backend/config"
	"github.com/casahogar/cashbox_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

/*
	Stock ledger.
	Every stock mutation runs on the caller's transaction and never commits.
	Invariant: stock_now = stock_initial + Σ restock - Σ sale quantities - Σ active waste.
*/

// lockProducts takes row locks (SELECT ... FOR UPDATE) in ascending id order,
// so two multi-item sales can never wait on each other in a cycle.
func lockProducts(tx *gorm.DB, ids []int) (map[int]*Product, error) {
	ids = utils.SortedUniqueInts(ids)
	if len(ids) == 0 {
		return map[int]*Product{}, nil
	}

	var products []*Product
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Find(&products).Error; err != nil {
		return nil, err
	}

	result := make(map[int]*Product, len(products))
	for _, p := range products {
		result[p.ID] = p
	}
	for _, id := range ids {
		if _, ok := result[id]; !ok {
			return nil, utils.NewProductNotFoundError(id)
		}
	}
	return result, nil
}

// DecrementStock locks the product and removes qty units from it.
func DecrementStock(tx *gorm.DB, productId int, qty int) error {
	products, err := lockProducts(tx, []int{productId})
	if err != nil {
		return err
	}
	return decrementLocked(tx, products[productId], qty)
}

// decrementLocked expects p to be locked by the current transaction.
func decrementLocked(tx *gorm.DB, p *Product, qty int) error {
	if qty < 1 {
		return utils.NewValidationError("quantity", "must be at least 1")
	}
	if qty > p.Stock {
		return utils.NewInsufficientStockError(p.Name, p.Stock, qty)
	}
	// conditional update still guards stores that ignore FOR UPDATE
	res := tx.Model(&Product{}).
		Where("id = ? AND stock >= ?", p.ID, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.NewInsufficientStockError(p.Name, p.Stock, qty)
	}
	p.Stock -= qty
	return nil
}

// IncrementStock adds qty units. It works on deactivated products too:
// restoring a deleted waste record must always succeed.
func IncrementStock(tx *gorm.DB, productId int, qty int) error {
	if qty < 1 {
		return utils.NewValidationError("quantity", "must be at least 1")
	}
	res := tx.Model(&Product{}).
		Where("id = ?", productId).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.NewProductNotFoundError(productId)
	}
	return nil
}

type RestockInput struct {
	Quantity int    `json:"quantity" validate:"min=1"`
	Note     string `json:"note" validate:"max=255"`
}

// RestockProduct records a delivery of new units. It is the only way stock
// goes up outside of waste deletion.
func RestockProduct(ctx context.Context, actor Actor, productId int, input *RestockInput) (*Product, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	products, err := lockProducts(tx, []int{productId})
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	product := products[productId]
	if !product.Active() {
		tx.Rollback()
		return nil, utils.NewProductNotFoundError(productId)
	}
	before := *product

	if err := IncrementStock(tx, productId, input.Quantity); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	product.Stock += input.Quantity

	RecordActivity(ctx, actor, AuditActionUpdated, EntityProduct, product.ID,
		map[string]interface{}{"stock": before.Stock},
		map[string]interface{}{"stock": product.Stock, "restocked": input.Quantity, "note": input.Note})
	return product, nil
}

// GetProductStock reads the current quantity on hand without locking.
func GetProductStock(ctx context.Context, productId int) (int, error) {
	var stocks []int
	if err := config.GetDB().WithContext(ctx).Model(&Product{}).
		Where("id = ?", productId).
		Pluck("stock", &stocks).Error; err != nil {
		return 0, err
	}
	if len(stocks) == 0 {
		return 0, utils.NewProductNotFoundError(productId)
	}
	return stocks[0], nil
}
