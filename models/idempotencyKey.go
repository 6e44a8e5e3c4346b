package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/casahogar/cashbox_backend/config"
	"gorm.io/gorm"
)

type IdempotencyScope string

const (
	IdempotencyScopeSale IdempotencyScope = "sale"

	idempotencyKeyMaxLen = 255
)

var errIdempotencyConflict = errors.New("idempotency key already claimed")

// IdempotencyKey remembers which entity a client request key produced.
// Unique constraint: (user_id, scope, request_key).
type IdempotencyKey struct {
	ID         int              `gorm:"primary_key" json:"id"`
	UserId     int              `gorm:"not null;index:uniq_idem,unique" json:"user_id"`
	Scope      IdempotencyScope `gorm:"size:20;not null;index:uniq_idem,unique" json:"scope"`
	RequestKey string           `gorm:"size:255;not null;index:uniq_idem,unique" json:"request_key"`
	EntityId   int              `gorm:"not null" json:"entity_id"`
	CreatedAt  time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

// claimIdempotencyKey runs inside the transaction that creates the entity, so
// the key and the entity commit or roll back together.
func claimIdempotencyKey(tx *gorm.DB, userId int, scope IdempotencyScope, key string, entityId int) error {
	row := IdempotencyKey{
		UserId:     userId,
		Scope:      scope,
		RequestKey: key,
		EntityId:   entityId,
	}
	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("%w: %v", errIdempotencyConflict, err)
	}
	return nil
}

func findIdempotentEntity(ctx context.Context, userId int, scope IdempotencyScope, key string) (int, bool, error) {
	var row IdempotencyKey
	err := config.GetDB().WithContext(ctx).
		Where("user_id = ? AND scope = ? AND request_key = ?", userId, scope, key).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return row.EntityId, true, nil
}
