package models_test

import (
	"context"
	"testing"

	"github.com/casahogar/cashbox_backend/models"
	"github.com/casahogar/cashbox_backend/utils"
)

func TestNurseNamesAreUnique(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	actor := adminActor(t)

	first, err := models.CreateNurse(ctx, actor, &models.NewNurse{Name: "Enf. Julia"})
	if err != nil {
		t.Fatalf("CreateNurse: %v", err)
	}
	_, err = models.CreateNurse(ctx, actor, &models.NewNurse{Name: " Enf. Julia "})
	if appErr := assertCode(t, err, utils.ErrValidation); appErr.Field != "name" {
		t.Fatalf("field: got %q want name", appErr.Field)
	}

	// renaming to its own name is not a conflict
	if _, err := models.UpdateNurse(ctx, actor, first.ID, &models.NewNurse{Name: "Enf. Julia"}); err != nil {
		t.Fatalf("UpdateNurse same name: %v", err)
	}
}

func TestNurseActivation(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	actor := adminActor(t)

	nurse, err := models.CreateNurse(ctx, actor, &models.NewNurse{Name: "Enf. Pilar"})
	if err != nil {
		t.Fatalf("CreateNurse: %v", err)
	}
	toggled, err := models.ToggleNurseActive(ctx, actor, nurse.ID)
	if err != nil {
		t.Fatalf("ToggleNurseActive: %v", err)
	}
	if toggled.Active() {
		t.Fatalf("nurse still active after toggle")
	}
	active, err := models.ListActiveNurses(ctx)
	if err != nil {
		t.Fatalf("ListActiveNurses: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("inactive nurse listed: %d", len(active))
	}
	if _, err := models.ToggleNurseActive(ctx, actor, nurse.ID); err != nil {
		t.Fatalf("ToggleNurseActive back: %v", err)
	}

	if _, err := models.DeleteNurse(ctx, actor, nurse.ID); err != nil {
		t.Fatalf("DeleteNurse: %v", err)
	}
	_, err = models.DeleteNurse(ctx, actor, nurse.ID)
	assertCode(t, err, utils.ErrNotFound)

	all, err := models.ListNurses(ctx)
	if err != nil {
		t.Fatalf("ListNurses: %v", err)
	}
	if len(all) != 1 || !all[0].Deleted() {
		t.Fatalf("deleted nurse missing from full list")
	}

	restored, err := models.RestoreNurse(ctx, actor, nurse.ID)
	if err != nil {
		t.Fatalf("RestoreNurse: %v", err)
	}
	if !restored.Active() {
		t.Fatalf("restored nurse is not active")
	}
}
