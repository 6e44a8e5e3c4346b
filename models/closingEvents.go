package models

import (
	"context"
	"time"

	"github.com/casahogar/cashbox_backend/config"
	"github.com/casahogar/cashbox_backend/utils"
)

// publishClosingEvent fans the committed closing out to Pub/Sub in the
// background. Delivery is best-effort; the closing is already stored.
func publishClosingEvent(ctx context.Context, action AuditAction, closing *DailyClosing) {
	if !config.PubSubEnabled() || closing == nil {
		return
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	msg := config.ClosingEvent{
		ClosingId:       closing.ID,
		ClosingDate:     closing.ClosingDate.String(),
		Action:          string(action),
		TotalSales:      closing.TotalSales.StringFixed(2),
		TotalExpenses:   closing.TotalExpenses.StringFixed(2),
		TotalInjections: closing.TotalInjections.StringFixed(2),
		PreviousBalance: closing.PreviousBalance.StringFixed(2),
		FinalBalance:    closing.FinalBalance.StringFixed(2),
		UserId:          closing.UserId,
		UserName:        closing.UserName,
		OccurredAt:      time.Now().UTC(),
		CorrelationId:   correlationId,
	}

	go func() {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if _, err := config.PublishClosingEvent(pubCtx, msg); err != nil {
			config.LogError(config.GetLogger(), "models", "publishClosingEvent", "publish closing event", msg, err)
		}
	}()
}
