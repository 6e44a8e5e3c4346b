package main

import (
	"context"
	"net/http"

	"github.com/casahogar/cashbox_backend/middlewares"
	"github.com/casahogar/cashbox_backend/models"
	"github.com/casahogar/cashbox_backend/utils"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type calculateClosingRequest struct {
	ClosingDate models.Date `json:"closing_date"`
}

// withClosingLock runs fn under the closing chain lock; a busy chain answers 409.
func withClosingLock(ctx context.Context, fn func() (*models.DailyClosing, error)) (*models.DailyClosing, error) {
	release, err := models.LockClosingChain(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return fn()
}

func calculateClosingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req calculateClosingRequest
		if !bindJSON(c, &req) {
			return
		}
		if req.ClosingDate.IsZero() {
			respondError(c, utils.NewValidationError("closing_date", "is required"))
			return
		}
		ctx, span := tracer.Start(c.Request.Context(), "calculateClosingHandler",
			trace.WithAttributes(attribute.String("closing.date", req.ClosingDate.String())))
		defer span.End()

		actor := middlewares.ActorFromContext(c)
		closing, err := withClosingLock(ctx, func() (*models.DailyClosing, error) {
			return models.ComputeClosing(ctx, actor, req.ClosingDate)
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, closing)
	}
}

func recomputeClosingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		date, ok := paramDate(c, "date")
		if !ok {
			return
		}
		ctx, span := tracer.Start(c.Request.Context(), "recomputeClosingHandler",
			trace.WithAttributes(attribute.String("closing.date", date.String())))
		defer span.End()

		actor := middlewares.ActorFromContext(c)
		closing, err := withClosingLock(ctx, func() (*models.DailyClosing, error) {
			return models.RecomputeClosing(ctx, actor, date)
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, closing)
	}
}

// lastBalanceHandler always answers 200; a failed lookup reads as no closing.
func lastBalanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		balance, date := models.GetLastBalance(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"last_balance": balance.StringFixed(2),
			"last_date":    date,
		})
	}
}

func previewClosingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		date, ok := paramDate(c, "date")
		if !ok {
			return
		}
		preview, err := models.PreviewClosing(c.Request.Context(), date)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, preview)
	}
}

func listClosingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, after, ok := pageArgs(c)
		if !ok {
			return
		}
		from, ok := queryDate(c, "from")
		if !ok {
			return
		}
		to, ok := queryDate(c, "to")
		if !ok {
			return
		}
		page, err := models.PaginateClosings(c.Request.Context(), models.ClosingFilter{From: from, To: to}, limit, after)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func getClosingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		date, ok := paramDate(c, "date")
		if !ok {
			return
		}
		closing, err := models.GetClosingByDate(c.Request.Context(), date)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, closing)
	}
}
