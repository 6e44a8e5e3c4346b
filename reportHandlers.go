package main

import (
	"net/http"

	"github.com/casahogar/cashbox_backend/models"
	"github.com/casahogar/cashbox_backend/utils"
	"github.com/gin-gonic/gin"
)

func dashboardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		today := models.Today().Time()
		year, ok := queryInt(c, "year")
		if !ok {
			return
		}
		month, ok := queryInt(c, "month")
		if !ok {
			return
		}
		y, m := today.Year(), int(today.Month())
		if year != nil {
			y = *year
		}
		if month != nil {
			m = *month
		}
		stats, err := models.GetDashboardStats(c.Request.Context(), y, m)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func salesReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		from, ok := queryDate(c, "from")
		if !ok {
			return
		}
		to, ok := queryDate(c, "to")
		if !ok {
			return
		}
		if from == nil || to == nil {
			// default to the current month
			today := models.Today().Time()
			start, end := utils.GetMonthRange(today.Year(), today.Month())
			if from == nil {
				d := models.NewDate(start.Year(), start.Month(), start.Day())
				from = &d
			}
			if to == nil {
				d := models.NewDate(end.Year(), end.Month(), end.Day())
				to = &d
			}
		}
		report, err := models.GetSalesReport(c.Request.Context(), *from, *to)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func dailyDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		date, ok := paramDate(c, "date")
		if !ok {
			return
		}
		detail, err := models.GetDailyDetail(c.Request.Context(), date)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, detail)
	}
}

func activityLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, after, ok := pageArgs(c)
		if !ok {
			return
		}
		var filter models.ActivityLogFilter
		if err := c.ShouldBindQuery(&filter); err != nil {
			respondError(c, utils.NewValidationError("query", "invalid filter"))
			return
		}
		page, err := models.PaginateActivityLogs(c.Request.Context(), filter, limit, after)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}
