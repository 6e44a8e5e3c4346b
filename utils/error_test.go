package utils_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/casahogar/cashbox_backend/utils"
	"gorm.io/gorm"
)

func TestAppErrorMatchesByCode(t *testing.T) {
	err := fmt.Errorf("create sale: %w", utils.NewInsufficientStockError("Pan", 2, 5))
	if !errors.Is(err, utils.ErrInsufficientStock) {
		t.Fatalf("expected wrapped error to match ErrInsufficientStock")
	}
	if errors.Is(err, utils.ErrValidation) {
		t.Fatalf("insufficient stock must not match validation")
	}
}

func TestProductNotFoundIsNotFound(t *testing.T) {
	err := utils.NewProductNotFoundError(9)
	if !errors.Is(err, utils.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound")
	}
	if !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("a missing product is also a NotFound")
	}
	if errors.Is(utils.NewNotFoundError("nurse"), utils.ErrProductNotFound) {
		t.Fatalf("a generic NotFound is not a missing product")
	}
}

func TestAsAppError(t *testing.T) {
	if utils.AsAppError(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
	if got := utils.AsAppError(gorm.ErrRecordNotFound); got.Code != utils.CodeNotFound {
		t.Fatalf("gorm not found mapped to %s", got.Code)
	}
	if got := utils.AsAppError(errors.New("connection refused")); got.Code != utils.CodeInternal {
		t.Fatalf("unknown error mapped to %s", got.Code)
	}
	forbidden := utils.NewForbiddenError("no")
	if got := utils.AsAppError(fmt.Errorf("wrap: %w", forbidden)); got != forbidden {
		t.Fatalf("expected the wrapped AppError back")
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := utils.NewValidationError("amount", "must be greater than 0")
	if err.Error() != "amount: must be greater than 0" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
