package utils_test

import (
	"errors"
	"testing"

	"github.com/casahogar/cashbox_backend/utils"
)

type sampleInput struct {
	Reason   string `json:"reason" validate:"required,max=10"`
	Quantity int    `json:"quantity" validate:"min=1"`
}

func TestValidateInputReportsJsonField(t *testing.T) {
	err := utils.ValidateInput(&sampleInput{Reason: "", Quantity: 1})
	var appErr *utils.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != utils.CodeValidation || appErr.Field != "reason" {
		t.Fatalf("unexpected error %+v", appErr)
	}

	err = utils.ValidateInput(&sampleInput{Reason: "broken", Quantity: 0})
	if !errors.As(err, &appErr) || appErr.Field != "quantity" {
		t.Fatalf("expected quantity violation, got %v", err)
	}
	if appErr.Message != "must be at least 1" {
		t.Fatalf("unexpected reason %q", appErr.Message)
	}
}

func TestValidateInputPasses(t *testing.T) {
	if err := utils.ValidateInput(&sampleInput{Reason: "expired", Quantity: 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
