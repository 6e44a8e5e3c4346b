package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/casahogar/cashbox_backend/models"
	"github.com/casahogar/cashbox_backend/utils"
	"github.com/gin-gonic/gin"
)

var statusByCode = map[utils.ErrorCode]int{
	utils.CodeValidation:        http.StatusUnprocessableEntity,
	utils.CodeInsufficientStock: http.StatusConflict,
	utils.CodeDuplicateClosing:  http.StatusConflict,
	utils.CodeNotFound:          http.StatusNotFound,
	utils.CodeProductNotFound:   http.StatusNotFound,
	utils.CodeForbidden:         http.StatusForbidden,
	utils.CodeInternal:          http.StatusInternalServerError,
}

// respondError renders {"code","field","message"}. Internal failures are
// recorded on the gin context for customErrorLogger and hidden from clients.
func respondError(c *gin.Context, err error) {
	if errors.Is(err, utils.ErrLockNotObtained) {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"code":    "BUSY",
			"message": "another closing is in progress, retry shortly",
		})
		return
	}

	appErr := utils.AsAppError(err)
	status, ok := statusByCode[appErr.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}

	body := gin.H{"code": appErr.Code, "message": appErr.Message}
	if appErr.Field != "" {
		body["field"] = appErr.Field
	}
	c.AbortWithStatusJSON(status, body)
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		respondError(c, utils.NewValidationError("body", "malformed request body"))
		return false
	}
	return true
}

func paramId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		respondError(c, utils.NewValidationError("id", "must be a positive integer"))
		return 0, false
	}
	return id, true
}

func paramDate(c *gin.Context, name string) (models.Date, bool) {
	date, err := models.ParseDate(c.Param(name))
	if err != nil {
		respondError(c, utils.NewValidationError(name, "must be a date in YYYY-MM-DD format"))
		return models.Date{}, false
	}
	return date, true
}

// queryDate returns nil when the parameter is absent.
func queryDate(c *gin.Context, name string) (*models.Date, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	date, err := models.ParseDate(raw)
	if err != nil {
		respondError(c, utils.NewValidationError(name, "must be a date in YYYY-MM-DD format"))
		return nil, false
	}
	return &date, true
}

func queryInt(c *gin.Context, name string) (*int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		respondError(c, utils.NewValidationError(name, "must be an integer"))
		return nil, false
	}
	return &n, true
}

// pageArgs reads ?limit=&after= for the cursor-paginated listings.
func pageArgs(c *gin.Context) (*int, *string, bool) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return nil, nil, false
	}
	var after *string
	if raw := strings.TrimSpace(c.Query("after")); raw != "" {
		after = &raw
	}
	return limit, after, true
}
