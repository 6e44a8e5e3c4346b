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
	"gorm.io/gorm/clause"
)

// Sale is immutable once created. Its items are snapshots: later price
// changes never reach them.
type Sale struct {
	ID          int             `gorm:"primary_key" json:"id"`
	SaleDate    Date            `gorm:"not null;index" json:"sale_date"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_amount"`
	NurseId     *int            `gorm:"index" json:"nurse_id"`
	Nurse       *Nurse          `gorm:"foreignKey:NurseId;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"nurse,omitempty"`
	Issuer
	User      *User       `gorm:"foreignKey:UserId;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	Items     []*SaleItem `gorm:"foreignKey:SaleId;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"items"`
	CreatedAt time.Time   `gorm:"autoCreateTime" json:"created_at"`
}

type SaleItem struct {
	ID        int             `gorm:"primary_key" json:"id"`
	SaleId    int             `gorm:"not null;index" json:"sale_id"`
	ProductId int             `gorm:"not null;index" json:"product_id"`
	Product   *Product        `gorm:"foreignKey:ProductId;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"product,omitempty"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewSale struct {
	SaleDate Date          `json:"sale_date"`
	NurseId  *int          `json:"nurse_id"`
	Items    []NewSaleItem `json:"items" validate:"required,min=1,dive"`
}

type NewSaleItem struct {
	ProductId int `json:"product_id" validate:"gt=0"`
	Quantity  int `json:"quantity" validate:"min=1"`
}

type SaleFilter struct {
	From    *Date
	To      *Date
	NurseId *int
}

func (obj Sale) GetId() int {
	return obj.ID
}

// implements CompositeCursor
func (obj Sale) GetCursor() string {
	return obj.SaleDate.String()
}

func (input *NewSale) validate() error {
	if input.SaleDate.IsZero() {
		return utils.NewValidationError("sale_date", "is required")
	}
	if err := utils.ValidateInput(input); err != nil {
		return err
	}
	if input.NurseId != nil && *input.NurseId <= 0 {
		return utils.NewValidationError("nurse_id", "is invalid")
	}
	return nil
}

// CreateSale records a sale. The stock check, the stock decrement and the
// inserts share one transaction: either every effect applies or none does.
func CreateSale(ctx context.Context, actor Actor, input *NewSale) (*Sale, error) {
	return createSale(ctx, actor, input, "")
}

// CreateSaleOnce is CreateSale keyed by a client-supplied idempotency key.
// A retried request with the same key returns the sale the first one created
// instead of selling the goods twice.
func CreateSaleOnce(ctx context.Context, actor Actor, key string, input *NewSale) (*Sale, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return CreateSale(ctx, actor, input)
	}
	if len(key) > idempotencyKeyMaxLen {
		return nil, utils.NewValidationError("idempotency_key", "is too long")
	}
	if saleId, ok, err := findIdempotentEntity(ctx, actor.UserId, IdempotencyScopeSale, key); err != nil {
		return nil, err
	} else if ok {
		return GetSale(ctx, saleId)
	}

	sale, err := createSale(ctx, actor, input, key)
	if err != nil && !errors.Is(err, errIdempotencyConflict) {
		return nil, err
	}
	if err != nil {
		// a concurrent request with the same key won the insert
		saleId, ok, lookupErr := findIdempotentEntity(ctx, actor.UserId, IdempotencyScopeSale, key)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if !ok {
			return nil, err
		}
		return GetSale(ctx, saleId)
	}
	return sale, nil
}

func createSale(ctx context.Context, actor Actor, input *NewSale, idempotencyKey string) (*Sale, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	if input.NurseId != nil {
		if err := validateActiveNurse(tx, *input.NurseId); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	productIds := make([]int, 0, len(input.Items))
	for _, item := range input.Items {
		productIds = append(productIds, item.ProductId)
	}
	// stock is re-read under lock here, never trusted from an earlier read
	products, err := lockProducts(tx, productIds)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	sale := Sale{
		SaleDate: input.SaleDate,
		NurseId:  input.NurseId,
		Issuer:   issuerOf(actor),
	}
	items := make([]*SaleItem, 0, len(input.Items))
	total := decimal.Zero
	for _, item := range input.Items {
		product := products[item.ProductId]
		if !product.Active() {
			tx.Rollback()
			return nil, utils.NewProductNotFoundError(item.ProductId)
		}
		if err := decrementLocked(tx, product, item.Quantity); err != nil {
			tx.Rollback()
			return nil, err
		}
		unitPrice := product.BasePrice.Round(2)
		subtotal := unitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(subtotal)
		items = append(items, &SaleItem{
			ProductId: item.ProductId,
			Quantity:  item.Quantity,
			UnitPrice: unitPrice,
			Subtotal:  subtotal,
		})
	}
	if err := validateMax("items", total, maxAmount); err != nil {
		tx.Rollback()
		return nil, err
	}
	sale.TotalAmount = total

	if err := tx.Omit(clause.Associations).Create(&sale).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	for _, item := range items {
		item.SaleId = sale.ID
	}
	if err := tx.Omit(clause.Associations).Create(&items).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if idempotencyKey != "" {
		if err := claimIdempotencyKey(tx, actor.UserId, IdempotencyScopeSale, idempotencyKey, sale.ID); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	sale.Items = items

	RecordActivity(ctx, actor, AuditActionCreated, EntitySale, sale.ID, nil, sale)
	return &sale, nil
}

// UpdateSale always fails: sales are immutable for audit reasons, whoever asks.
func UpdateSale(ctx context.Context, actor Actor, id int, input *NewSale) (*Sale, error) {
	return nil, errSaleImmutable
}

// DeleteSale always fails: sales are immutable for audit reasons, whoever asks.
func DeleteSale(ctx context.Context, actor Actor, id int) (*Sale, error) {
	return nil, errSaleImmutable
}

func GetSale(ctx context.Context, id int) (*Sale, error) {
	var sale Sale
	err := config.GetDB().WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Items.Product").
		Preload("Nurse").
		First(&sale, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("sale")
	}
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func PaginateSales(ctx context.Context, filter SaleFilter, limit *int, after *string) (*Connection[Sale], error) {
	dbCtx := config.GetDB().WithContext(ctx).Model(&Sale{}).
		Preload("Items").Preload("Nurse")
	if filter.From != nil && !filter.From.IsZero() {
		dbCtx = dbCtx.Where("sale_date >= ?", *filter.From)
	}
	if filter.To != nil && !filter.To.IsZero() {
		dbCtx = dbCtx.Where("sale_date <= ?", *filter.To)
	}
	if filter.NurseId != nil && *filter.NurseId > 0 {
		dbCtx = dbCtx.Where("nurse_id = ?", *filter.NurseId)
	}
	return FetchPageCompositeCursor[Sale](dbCtx, normalizeLimit(limit), after, "sale_date")
}
