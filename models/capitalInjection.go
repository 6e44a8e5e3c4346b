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

// CapitalInjection is cash added to the register outside normal sales,
// e.g. a donation. It counts toward the day's closing balance.
type CapitalInjection struct {
	ID            int             `gorm:"primary_key" json:"id"`
	InjectionDate Date            `gorm:"not null;index" json:"injection_date"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Reason        string          `gorm:"size:255;not null" json:"reason"`
	Issuer
	User      *User     `gorm:"foreignKey:UserId;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCapitalInjection struct {
	InjectionDate Date            `json:"injection_date"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason" validate:"required,max=255"`
}

type UpdateCapitalInjectionInput struct {
	InjectionDate *Date            `json:"injection_date"`
	Amount        *decimal.Decimal `json:"amount"`
	Reason        *string          `json:"reason" validate:"omitempty,max=255"`
}

type CapitalInjectionsByDate struct {
	Date       Date                `json:"date"`
	Injections []*CapitalInjection `json:"injections"`
	Total      decimal.Decimal     `json:"total"`
}

func (obj CapitalInjection) GetId() int {
	return obj.ID
}

func (obj CapitalInjection) GetCursor() string {
	return obj.InjectionDate.String()
}

func validateInjectionAmount(amount decimal.Decimal) error {
	if !amount.Round(2).IsPositive() {
		return utils.NewValidationError("amount", "must be greater than 0")
	}
	return validateMax("amount", amount, maxAmount)
}

func (input *NewCapitalInjection) validate() error {
	input.Reason = strings.TrimSpace(input.Reason)
	if input.InjectionDate.IsZero() {
		return utils.NewValidationError("injection_date", "is required")
	}
	if err := validateInjectionAmount(input.Amount); err != nil {
		return err
	}
	return utils.ValidateInput(input)
}

func (input *UpdateCapitalInjectionInput) validate() error {
	if input.InjectionDate != nil && input.InjectionDate.IsZero() {
		return utils.NewValidationError("injection_date", "is required")
	}
	if input.Amount != nil {
		if err := validateInjectionAmount(*input.Amount); err != nil {
			return err
		}
	}
	if input.Reason != nil {
		trimmed := strings.TrimSpace(*input.Reason)
		if trimmed == "" {
			return utils.NewValidationError("reason", "is required")
		}
		input.Reason = &trimmed
	}
	return utils.ValidateInput(input)
}

func CreateCapitalInjection(ctx context.Context, actor Actor, input *NewCapitalInjection) (*CapitalInjection, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	injection := CapitalInjection{
		InjectionDate: input.InjectionDate,
		Amount:        input.Amount.Round(2),
		Reason:        input.Reason,
		Issuer:        issuerOf(actor),
	}
	if err := config.GetDB().WithContext(ctx).Omit("User").Create(&injection).Error; err != nil {
		return nil, err
	}

	RecordActivity(ctx, actor, AuditActionCreated, EntityCapitalInjection, injection.ID, nil, injection)
	return &injection, nil
}

func GetCapitalInjection(ctx context.Context, id int) (*CapitalInjection, error) {
	var injection CapitalInjection
	err := config.GetDB().WithContext(ctx).First(&injection, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("capital injection")
	}
	if err != nil {
		return nil, err
	}
	return &injection, nil
}

func UpdateCapitalInjection(ctx context.Context, actor Actor, id int, input *UpdateCapitalInjectionInput) (*CapitalInjection, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	oldInjection, err := GetCapitalInjection(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.InjectionDate != nil {
		updates["injection_date"] = *input.InjectionDate
	}
	if input.Amount != nil {
		updates["amount"] = input.Amount.Round(2)
	}
	if input.Reason != nil {
		updates["reason"] = *input.Reason
	}
	if len(updates) == 0 {
		return oldInjection, nil
	}

	if err := config.GetDB().WithContext(ctx).Model(&CapitalInjection{}).Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return nil, err
	}
	injection, err := GetCapitalInjection(ctx, id)
	if err != nil {
		return nil, err
	}

	RecordActivity(ctx, actor, AuditActionUpdated, EntityCapitalInjection, id, oldInjection, injection)
	return injection, nil
}

func DeleteCapitalInjection(ctx context.Context, actor Actor, id int) (*CapitalInjection, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	injection, err := GetCapitalInjection(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := config.GetDB().WithContext(ctx).Delete(&CapitalInjection{}, id).Error; err != nil {
		return nil, err
	}

	RecordActivity(ctx, actor, AuditActionDeleted, EntityCapitalInjection, id, injection, nil)
	return injection, nil
}

func GetCapitalInjectionsByDate(ctx context.Context, date Date) (*CapitalInjectionsByDate, error) {
	var injections []*CapitalInjection
	if err := config.GetDB().WithContext(ctx).
		Where("injection_date = ?", date).
		Order("created_at, id").
		Find(&injections).Error; err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, inj := range injections {
		total = total.Add(inj.Amount)
	}
	return &CapitalInjectionsByDate{Date: date, Injections: injections, Total: total}, nil
}

func PaginateCapitalInjections(ctx context.Context, limit *int, after *string) (*Connection[CapitalInjection], error) {
	dbCtx := config.GetDB().WithContext(ctx).Model(&CapitalInjection{})
	return FetchPageCompositeCursor[CapitalInjection](dbCtx, normalizeLimit(limit), after, "injection_date")
}
