package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/casahogar/cashbox_backend/config"
	"github.com/casahogar/cashbox_backend/utils"
	"gorm.io/gorm"
)

// Nurse is the optional responsible party of a sale.
type Nurse struct {
	ID   int    `gorm:"primary_key" json:"id"`
	Name string `gorm:"size:255;not null;uniqueIndex" json:"name"`
	SoftDelete
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewNurse struct {
	Name string `json:"name" validate:"required,max=255"`
}

func (input *NewNurse) validate(ctx context.Context, id int) error {
	input.Name = strings.TrimSpace(input.Name)
	if err := utils.ValidateInput(input); err != nil {
		return err
	}
	return utils.ValidateUnique[Nurse](ctx, "name", input.Name, id)
}

func CreateNurse(ctx context.Context, actor Actor, input *NewNurse) (*Nurse, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	nurse := Nurse{Name: input.Name, SoftDelete: newActive()}
	if err := config.GetDB().WithContext(ctx).Create(&nurse).Error; err != nil {
		return nil, err
	}

	RecordActivity(ctx, actor, AuditActionCreated, EntityNurse, nurse.ID, nil, nurse)
	return &nurse, nil
}

// GetNurse includes deleted nurses. Reads go through the Nurse:$id cache.
func GetNurse(ctx context.Context, id int) (*Nurse, error) {
	logger := config.GetLogger()
	cached, err := utils.RetrieveRedis[Nurse](id)
	if err != nil {
		config.LogError(logger, "models", "GetNurse", "read nurse cache", id, err)
	}
	if cached != nil {
		return cached, nil
	}

	var nurse Nurse
	err = config.GetDB().WithContext(ctx).First(&nurse, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("nurse")
	}
	if err != nil {
		return nil, err
	}
	if err := utils.StoreRedis[Nurse](&nurse, id); err != nil {
		config.LogError(logger, "models", "GetNurse", "write nurse cache", id, err)
	}
	return &nurse, nil
}

func forgetNurse(id int) {
	if err := utils.RemoveRedisItem[Nurse](id); err != nil {
		config.LogError(config.GetLogger(), "models", "forgetNurse", "remove nurse cache", id, err)
	}
}

// ListNurses returns every nurse, deleted ones included, for the admin screen.
func ListNurses(ctx context.Context) ([]*Nurse, error) {
	var results []*Nurse
	if err := config.GetDB().WithContext(ctx).Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ListActiveNurses feeds the sale form.
func ListActiveNurses(ctx context.Context) ([]*Nurse, error) {
	var results []*Nurse
	if err := config.GetDB().WithContext(ctx).Scopes(scopeActive).Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func UpdateNurse(ctx context.Context, actor Actor, id int, input *NewNurse) (*Nurse, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	oldNurse, err := GetNurse(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	return saveNurseChange(ctx, actor, oldNurse, map[string]interface{}{"name": input.Name})
}

func ToggleNurseActive(ctx context.Context, actor Actor, id int) (*Nurse, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	oldNurse, err := GetNurse(ctx, id)
	if err != nil {
		return nil, err
	}
	isActive := oldNurse.IsActive != nil && *oldNurse.IsActive
	return saveNurseChange(ctx, actor, oldNurse, map[string]interface{}{"is_active": !isActive})
}

// DeleteNurse hides the nurse; past sales keep their reference.
func DeleteNurse(ctx context.Context, actor Actor, id int) (*Nurse, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	nurse, err := GetNurse(ctx, id)
	if err != nil {
		return nil, err
	}
	if nurse.Deleted() {
		return nil, utils.NewNotFoundError("nurse")
	}
	if err := config.GetDB().WithContext(ctx).Model(&Nurse{}).Where("id = ?", id).
		Update("deleted_at", time.Now()).Error; err != nil {
		return nil, err
	}
	forgetNurse(id)

	RecordActivity(ctx, actor, AuditActionDeleted, EntityNurse, id, nurse, nil)
	return GetNurse(ctx, id)
}

func RestoreNurse(ctx context.Context, actor Actor, id int) (*Nurse, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	oldNurse, err := GetNurse(ctx, id)
	if err != nil {
		return nil, err
	}
	if !oldNurse.Deleted() {
		return oldNurse, nil
	}
	return saveNurseChange(ctx, actor, oldNurse, map[string]interface{}{"deleted_at": nil})
}

func saveNurseChange(ctx context.Context, actor Actor, oldNurse *Nurse, updates map[string]interface{}) (*Nurse, error) {
	if err := config.GetDB().WithContext(ctx).Model(&Nurse{}).Where("id = ?", oldNurse.ID).
		Updates(updates).Error; err != nil {
		return nil, err
	}
	forgetNurse(oldNurse.ID)
	nurse, err := GetNurse(ctx, oldNurse.ID)
	if err != nil {
		return nil, err
	}

	RecordActivity(ctx, actor, AuditActionUpdated, EntityNurse, nurse.ID, oldNurse, nurse)
	return nurse, nil
}

// validateActiveNurse is used by sales: only active nurses can be named.
func validateActiveNurse(tx *gorm.DB, id int) error {
	var count int64
	if err := tx.Model(&Nurse{}).Scopes(scopeActive).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return utils.NewValidationError("nurse_id", "nurse not found or inactive")
	}
	return nil
}
