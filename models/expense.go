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

type Expense struct {
	ID          int             `gorm:"primary_key" json:"id"`
	ExpenseDate Date            `gorm:"not null;index" json:"expense_date"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"amount"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Issuer
	User      *User     `gorm:"foreignKey:UserId;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewExpense struct {
	ExpenseDate Date            `json:"expense_date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" validate:"required,max=1000"`
}

// nil fields are left untouched
type UpdateExpenseInput struct {
	ExpenseDate *Date            `json:"expense_date"`
	Amount      *decimal.Decimal `json:"amount"`
	Description *string          `json:"description" validate:"omitempty,max=1000"`
}

type ExpenseFilter struct {
	From *Date
	To   *Date
}

func (obj Expense) GetId() int {
	return obj.ID
}

func (obj Expense) GetCursor() string {
	return obj.ExpenseDate.String()
}

func validateExpenseAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return utils.NewValidationError("amount", "must be greater than or equal to 0")
	}
	return validateMax("amount", amount, maxAmount)
}

func (input *NewExpense) validate() error {
	input.Description = strings.TrimSpace(input.Description)
	if input.ExpenseDate.IsZero() {
		return utils.NewValidationError("expense_date", "is required")
	}
	if err := validateExpenseAmount(input.Amount); err != nil {
		return err
	}
	return utils.ValidateInput(input)
}

func (input *UpdateExpenseInput) validate() error {
	if input.ExpenseDate != nil && input.ExpenseDate.IsZero() {
		return utils.NewValidationError("expense_date", "is required")
	}
	if input.Amount != nil {
		if err := validateExpenseAmount(*input.Amount); err != nil {
			return err
		}
	}
	if input.Description != nil {
		trimmed := strings.TrimSpace(*input.Description)
		if trimmed == "" {
			return utils.NewValidationError("description", "is required")
		}
		input.Description = &trimmed
	}
	return utils.ValidateInput(input)
}

func CreateExpense(ctx context.Context, actor Actor, input *NewExpense) (*Expense, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	expense := Expense{
		ExpenseDate: input.ExpenseDate,
		Amount:      input.Amount.Round(2),
		Description: input.Description,
		Issuer:      issuerOf(actor),
	}
	if err := config.GetDB().WithContext(ctx).Omit("User").Create(&expense).Error; err != nil {
		return nil, err
	}

	RecordActivity(ctx, actor, AuditActionCreated, EntityExpense, expense.ID, nil, expense)
	return &expense, nil
}

func GetExpense(ctx context.Context, id int) (*Expense, error) {
	var expense Expense
	err := config.GetDB().WithContext(ctx).First(&expense, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("expense")
	}
	if err != nil {
		return nil, err
	}
	return &expense, nil
}

func UpdateExpense(ctx context.Context, actor Actor, id int, input *UpdateExpenseInput) (*Expense, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	oldExpense, err := GetExpense(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.ExpenseDate != nil {
		updates["expense_date"] = *input.ExpenseDate
	}
	if input.Amount != nil {
		updates["amount"] = input.Amount.Round(2)
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if len(updates) == 0 {
		return oldExpense, nil
	}

	if err := config.GetDB().WithContext(ctx).Model(&Expense{}).Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return nil, err
	}
	expense, err := GetExpense(ctx, id)
	if err != nil {
		return nil, err
	}

	RecordActivity(ctx, actor, AuditActionUpdated, EntityExpense, id, oldExpense, expense)
	return expense, nil
}

func DeleteExpense(ctx context.Context, actor Actor, id int) (*Expense, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	expense, err := GetExpense(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := config.GetDB().WithContext(ctx).Delete(&Expense{}, id).Error; err != nil {
		return nil, err
	}

	RecordActivity(ctx, actor, AuditActionDeleted, EntityExpense, id, expense, nil)
	return expense, nil
}

func PaginateExpenses(ctx context.Context, filter ExpenseFilter, limit *int, after *string) (*Connection[Expense], error) {
	dbCtx := config.GetDB().WithContext(ctx).Model(&Expense{})
	if filter.From != nil && !filter.From.IsZero() {
		dbCtx = dbCtx.Where("expense_date >= ?", *filter.From)
	}
	if filter.To != nil && !filter.To.IsZero() {
		dbCtx = dbCtx.Where("expense_date <= ?", *filter.To)
	}
	return FetchPageCompositeCursor[Expense](dbCtx, normalizeLimit(limit), after, "expense_date")
}
