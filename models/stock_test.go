package models_test

import (
	"context"
	"testing"

	"github.com/casahogar/cashbox_backend/config"
	"github.com/casahogar/cashbox_backend/models"
	"github.com/casahogar/cashbox_backend/utils"
)

func TestStockFollowsSalesAndWaste(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	actor := treasurerActor(t)
	product := createTestProduct(t, actor, "Pan de yema", 20, "2.50")
	day := models.MustParseDate("2024-03-10")

	sale, err := models.CreateSale(ctx, actor, &models.NewSale{
		SaleDate: day,
		Items:    []models.NewSaleItem{{ProductId: product.ID, Quantity: 5}},
	})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	assertDecimal(t, "sale total", sale.TotalAmount, "12.50")
	if got := mustStock(t, product.ID); got != 15 {
		t.Fatalf("stock after sale: got %d want 15", got)
	}

	waste, err := models.CreateWasteRecord(ctx, actor, &models.NewWasteRecord{
		ProductId: product.ID,
		Quantity:  3,
		Reason:    "vencido",
		WasteDate: day,
	})
	if err != nil {
		t.Fatalf("CreateWasteRecord: %v", err)
	}
	if got := mustStock(t, product.ID); got != 12 {
		t.Fatalf("stock after waste: got %d want 12", got)
	}

	if _, err := models.DeleteWasteRecord(ctx, actor, waste.ID); err != nil {
		t.Fatalf("DeleteWasteRecord: %v", err)
	}
	if got := mustStock(t, product.ID); got != 15 {
		t.Fatalf("stock after waste delete: got %d want 15", got)
	}

	_, err = models.GetWasteRecord(ctx, waste.ID)
	assertCode(t, err, utils.ErrNotFound)
}

func TestWasteRejectsMoreThanStock(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	actor := treasurerActor(t)
	product := createTestProduct(t, actor, "Leche", 2, "4.00")

	_, err := models.CreateWasteRecord(ctx, actor, &models.NewWasteRecord{
		ProductId: product.ID,
		Quantity:  3,
		Reason:    "derramada",
		WasteDate: models.MustParseDate("2024-03-10"),
	})
	assertCode(t, err, utils.ErrInsufficientStock)
	if got := mustStock(t, product.ID); got != 2 {
		t.Fatalf("stock changed on failed waste: got %d want 2", got)
	}
}

func TestWasteValidation(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	actor := treasurerActor(t)
	product := createTestProduct(t, actor, "Arroz", 10, "3.20")
	day := models.MustParseDate("2024-03-10")

	cases := []struct {
		name  string
		input models.NewWasteRecord
		field string
	}{
		{"zero quantity", models.NewWasteRecord{ProductId: product.ID, Quantity: 0, Reason: "x", WasteDate: day}, "quantity"},
		{"blank reason", models.NewWasteRecord{ProductId: product.ID, Quantity: 1, Reason: "   ", WasteDate: day}, "reason"},
		{"missing date", models.NewWasteRecord{ProductId: product.ID, Quantity: 1, Reason: "x"}, "waste_date"},
	}
	for _, tc := range cases {
		input := tc.input
		_, err := models.CreateWasteRecord(ctx, actor, &input)
		appErr := assertCode(t, err, utils.ErrValidation)
		if appErr.Field != tc.field {
			t.Fatalf("%s: field got %q want %q", tc.name, appErr.Field, tc.field)
		}
	}

	_, err := models.CreateWasteRecord(ctx, actor, &models.NewWasteRecord{ProductId: 9999, Quantity: 1, Reason: "x", WasteDate: day})
	assertCode(t, err, utils.ErrProductNotFound)
}

func TestDeleteWasteRestoresInactiveProduct(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	actor := adminActor(t)
	product := createTestProduct(t, actor, "Yogurt", 8, "1.80")

	waste, err := models.CreateWasteRecord(ctx, actor, &models.NewWasteRecord{
		ProductId: product.ID,
		Quantity:  4,
		Reason:    "roto",
		WasteDate: models.MustParseDate("2024-03-11"),
	})
	if err != nil {
		t.Fatalf("CreateWasteRecord: %v", err)
	}
	if _, err := models.DeleteProduct(ctx, actor, product.ID); err != nil {
		t.Fatalf("DeleteProduct: %v", err)
	}
	if _, err := models.DeleteWasteRecord(ctx, actor, waste.ID); err != nil {
		t.Fatalf("DeleteWasteRecord on inactive product: %v", err)
	}
	if got := mustStock(t, product.ID); got != 8 {
		t.Fatalf("stock: got %d want 8", got)
	}
}

func TestRestockProduct(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	actor := treasurerActor(t)
	product := createTestProduct(t, actor, "Azucar", 1, "2.00")

	updated, err := models.RestockProduct(ctx, actor, product.ID, &models.RestockInput{Quantity: 9, Note: "donacion"})
	if err != nil {
		t.Fatalf("RestockProduct: %v", err)
	}
	if updated.Stock != 10 || mustStock(t, product.ID) != 10 {
		t.Fatalf("stock: got %d want 10", updated.Stock)
	}

	_, err = models.RestockProduct(ctx, actor, product.ID, &models.RestockInput{Quantity: 0})
	assertCode(t, err, utils.ErrValidation)
}

func TestDecrementStockOnTransaction(t *testing.T) {
	db := setupTestDB(t)
	actor := treasurerActor(t)
	product := createTestProduct(t, actor, "Fideos", 3, "1.10")

	tx := db.Begin()
	if err := models.DecrementStock(tx, product.ID, 2); err != nil {
		tx.Rollback()
		t.Fatalf("DecrementStock: %v", err)
	}
	err := models.DecrementStock(tx, product.ID, 2)
	tx.Rollback()
	assertCode(t, err, utils.ErrInsufficientStock)

	// rolled back: nothing moved
	if got := mustStock(t, product.ID); got != 3 {
		t.Fatalf("stock after rollback: got %d want 3", got)
	}

	tx = config.GetDB().Begin()
	err = models.IncrementStock(tx, 4242, 1)
	tx.Rollback()
	assertCode(t, err, utils.ErrProductNotFound)
}
