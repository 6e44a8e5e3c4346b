package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/casahogar/cashbox_backend/config"
	"github.com/casahogar/cashbox_backend/utils"
)

// ActivityLog is the append-only audit trail. Rows are never updated or
// deleted; see the hooks in modelHooks.go.
type ActivityLog struct {
	ID         int         `gorm:"primary_key" json:"id"`
	UserId     int         `gorm:"index:idx_activity_logs_user_created,priority:1;not null" json:"user_id"`
	UserName   string      `gorm:"size:100" json:"user_name"`
	Action     AuditAction `gorm:"size:10;not null" json:"action"`
	EntityType string      `gorm:"size:50;not null;index:idx_activity_logs_entity,priority:1" json:"entity_type"`
	EntityId   int         `gorm:"not null;index:idx_activity_logs_entity,priority:2" json:"entity_id"`
	Before     string      `gorm:"type:text" json:"before"`
	After      string      `gorm:"type:text" json:"after"`
	IpAddress  string      `gorm:"size:45" json:"ip_address"`
	CreatedAt  time.Time   `gorm:"autoCreateTime;index:idx_activity_logs_user_created,priority:2" json:"created_at"`
}

func (obj ActivityLog) GetId() int {
	return obj.ID
}

type ActivityLogFilter struct {
	EntityType *string `form:"entity_type"`
	EntityId   *int    `form:"entity_id"`
	UserId     *int    `form:"user_id"`
}

func marshalSnapshot(v interface{}) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// RecordActivity appends one audit row. It runs on its own handle after the
// business transaction has committed, so a failure here is logged and
// swallowed: the operation it describes has already happened.
func RecordActivity(ctx context.Context, actor Actor, action AuditAction, entityType string, entityId int, before interface{}, after interface{}) {
	logger := config.GetLogger()
	if !action.IsValid() {
		config.LogError(logger, "models", "RecordActivity", "invalid audit action", string(action), errors.New("invalid audit action"))
		return
	}

	entry := ActivityLog{
		UserId:     actor.UserId,
		UserName:   actor.FormattedName(),
		Action:     action,
		EntityType: entityType,
		EntityId:   entityId,
		Before:     marshalSnapshot(before),
		After:      marshalSnapshot(after),
		IpAddress:  actor.IP,
	}

	db := config.GetDB()
	if db == nil {
		config.LogError(logger, "models", "RecordActivity", "db not ready", entry, errors.New("db is nil"))
		return
	}
	// detach from request cancellation; the business write already committed
	if err := db.WithContext(context.WithoutCancel(ctx)).Create(&entry).Error; err != nil {
		config.LogError(logger, "models", "RecordActivity", "insert activity log", entry, err)
	}
}

func PaginateActivityLogs(ctx context.Context, filter ActivityLogFilter, limit *int, after *string) (*Connection[ActivityLog], error) {
	dbCtx := config.GetDB().WithContext(ctx).Model(&ActivityLog{})
	if filter.EntityType != nil && *filter.EntityType != "" {
		dbCtx = dbCtx.Where("entity_type = ?", *filter.EntityType)
	}
	if filter.EntityId != nil && *filter.EntityId > 0 {
		dbCtx = dbCtx.Where("entity_id = ?", *filter.EntityId)
	}
	if filter.UserId != nil && *filter.UserId > 0 {
		dbCtx = dbCtx.Where("user_id = ?", *filter.UserId)
	}

	conn, err := FetchPageById[ActivityLog](dbCtx, normalizeLimit(limit), after)
	if err != nil {
		return nil, utils.AsAppError(err)
	}
	return conn, nil
}
