package utils

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var ErrorRecordNotFound = errors.New("record not found")

type ErrorCode string

const (
	CodeValidation        ErrorCode = "VALIDATION_ERROR"
	CodeInsufficientStock ErrorCode = "INSUFFICIENT_STOCK"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeProductNotFound   ErrorCode = "PRODUCT_NOT_FOUND"
	CodeDuplicateClosing  ErrorCode = "DUPLICATE_CLOSING"
	CodeForbidden         ErrorCode = "FORBIDDEN"
	CodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// AppError is what every core operation returns for an expected failure.
// Field is set when the caller can fix the request by changing one input.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Field   string    `json:"field,omitempty"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on code, so errors.Is(err, ErrInsufficientStock) works for any
// AppError carrying that code. A missing product is also a NotFound.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	if e.Code == t.Code {
		return true
	}
	return e.Code == CodeProductNotFound && t.Code == CodeNotFound
}

var (
	ErrValidation        = &AppError{Code: CodeValidation, Message: "invalid input"}
	ErrInsufficientStock = &AppError{Code: CodeInsufficientStock, Message: "insufficient stock"}
	ErrNotFound          = &AppError{Code: CodeNotFound, Message: "record not found"}
	ErrProductNotFound   = &AppError{Code: CodeProductNotFound, Message: "product not found"}
	ErrDuplicateClosing  = &AppError{Code: CodeDuplicateClosing, Message: "closing already exists"}
	ErrForbidden         = &AppError{Code: CodeForbidden, Message: "operation not allowed"}
	ErrInternal          = &AppError{Code: CodeInternal, Message: "internal error"}
)

func NewValidationError(field string, message string) *AppError {
	return &AppError{Code: CodeValidation, Field: field, Message: message}
}

func NewInsufficientStockError(productName string, available int, requested int) *AppError {
	return &AppError{
		Code:    CodeInsufficientStock,
		Field:   "quantity",
		Message: fmt.Sprintf("insufficient stock for %s: available %d, requested %d", productName, available, requested),
	}
}

func NewNotFoundError(entity string) *AppError {
	return &AppError{Code: CodeNotFound, Message: entity + " not found", Err: ErrorRecordNotFound}
}

func NewProductNotFoundError(productId int) *AppError {
	return &AppError{
		Code:    CodeProductNotFound,
		Field:   "product_id",
		Message: fmt.Sprintf("product %d not found", productId),
		Err:     ErrorRecordNotFound,
	}
}

func NewDuplicateClosingError(date string) *AppError {
	return &AppError{
		Code:    CodeDuplicateClosing,
		Field:   "closing_date",
		Message: "a closing already exists for " + date,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{Code: CodeForbidden, Message: message}
}

func NewInternalError(err error) *AppError {
	return &AppError{Code: CodeInternal, Message: "internal error", Err: err}
}

// AsAppError classifies any error coming out of the models layer.
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrorRecordNotFound) {
		return NewNotFoundError("record")
	}
	return NewInternalError(err)
}
