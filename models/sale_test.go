package models_test

import (
	"context"
	"testing"

	"github.com/casahogar/cashbox_backend/config"
	"github.com/casahogar/cashbox_backend/models"
	"github.com/casahogar/cashbox_backend/utils"
	"github.com/shopspring/decimal"
)

func countRows(t *testing.T, model interface{}) int64 {
	t.Helper()
	var count int64
	if err := config.GetDB().Model(model).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return count
}

func TestCreateSaleSnapshotsPrices(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	actor := adminActor(t)
	bread := createTestProduct(t, actor, "Pan", 50, "0.50")
	milk := createTestProduct(t, actor, "Leche", 10, "4.20")
	nurse, err := models.CreateNurse(ctx, actor, &models.NewNurse{Name: "Enf. Carmen"})
	if err != nil {
		t.Fatalf("CreateNurse: %v", err)
	}

	sale, err := models.CreateSale(ctx, actor, &models.NewSale{
		SaleDate: models.MustParseDate("2024-04-01"),
		NurseId:  &nurse.ID,
		Items: []models.NewSaleItem{
			{ProductId: bread.ID, Quantity: 6},
			{ProductId: milk.ID, Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	assertDecimal(t, "total", sale.TotalAmount, "11.40")
	if sale.UserName != "Admin - Rosa" {
		t.Fatalf("issuer snapshot: got %q", sale.UserName)
	}

	newPrice := decimal.RequireFromString("9.99")
	if _, err := models.UpdateProduct(ctx, actor, milk.ID, &models.UpdateProductInput{BasePrice: &newPrice}); err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}

	stored, err := models.GetSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("GetSale: %v", err)
	}
	if len(stored.Items) != 2 {
		t.Fatalf("items: got %d want 2", len(stored.Items))
	}
	assertDecimal(t, "milk unit price", stored.Items[1].UnitPrice, "4.20")
	assertDecimal(t, "milk subtotal", stored.Items[1].Subtotal, "8.40")
	assertDecimal(t, "stored total", stored.TotalAmount, "11.40")
	if stored.Nurse == nil || stored.Nurse.Name != "Enf. Carmen" {
		t.Fatalf("nurse not preloaded: %+v", stored.Nurse)
	}
	if mustStock(t, bread.ID) != 44 || mustStock(t, milk.ID) != 8 {
		t.Fatalf("stock not decremented")
	}
}

func TestCreateSaleIsAllOrNothing(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	actor := treasurerActor(t)
	plenty := createTestProduct(t, actor, "Galletas", 30, "1.00")
	scarce := createTestProduct(t, actor, "Queso", 1, "12.00")

	_, err := models.CreateSale(ctx, actor, &models.NewSale{
		SaleDate: models.MustParseDate("2024-04-01"),
		Items: []models.NewSaleItem{
			{ProductId: plenty.ID, Quantity: 10},
			{ProductId: scarce.ID, Quantity: 2},
		},
	})
	appErr := assertCode(t, err, utils.ErrInsufficientStock)
	if appErr.Message == "" {
		t.Fatalf("insufficient stock error should name the product")
	}
	if got := mustStock(t, plenty.ID); got != 30 {
		t.Fatalf("partial decrement leaked: got %d want 30", got)
	}
	if n := countRows(t, &models.Sale{}); n != 0 {
		t.Fatalf("sales rows: got %d want 0", n)
	}
	if n := countRows(t, &models.SaleItem{}); n != 0 {
		t.Fatalf("sale item rows: got %d want 0", n)
	}
}

func TestCreateSaleRepeatedProductSharesStock(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	actor := treasurerActor(t)
	product := createTestProduct(t, actor, "Te", 5, "0.80")

	_, err := models.CreateSale(ctx, actor, &models.NewSale{
		SaleDate: models.MustParseDate("2024-04-02"),
		Items: []models.NewSaleItem{
			{ProductId: product.ID, Quantity: 3},
			{ProductId: product.ID, Quantity: 3},
		},
	})
	assertCode(t, err, utils.ErrInsufficientStock)
	if got := mustStock(t, product.ID); got != 5 {
		t.Fatalf("stock: got %d want 5", got)
	}
}

func TestCreateSaleValidation(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	actor := treasurerActor(t)
	product := createTestProduct(t, actor, "Cafe", 5, "3.00")
	day := models.MustParseDate("2024-04-03")

	_, err := models.CreateSale(ctx, actor, &models.NewSale{SaleDate: day})
	if appErr := assertCode(t, err, utils.ErrValidation); appErr.Field != "items" {
		t.Fatalf("field: got %q want items", appErr.Field)
	}

	_, err = models.CreateSale(ctx, actor, &models.NewSale{
		SaleDate: day,
		Items:    []models.NewSaleItem{{ProductId: product.ID, Quantity: 0}},
	})
	if appErr := assertCode(t, err, utils.ErrValidation); appErr.Field != "items[0].quantity" {
		t.Fatalf("field: got %q want items[0].quantity", appErr.Field)
	}

	_, err = models.CreateSale(ctx, actor, &models.NewSale{
		Items: []models.NewSaleItem{{ProductId: product.ID, Quantity: 1}},
	})
	assertCode(t, err, utils.ErrValidation)

	_, err = models.CreateSale(ctx, actor, &models.NewSale{
		SaleDate: day,
		Items:    []models.NewSaleItem{{ProductId: 777, Quantity: 1}},
	})
	assertCode(t, err, utils.ErrProductNotFound)

	_, err = models.CreateSale(ctx, models.Actor{}, &models.NewSale{
		SaleDate: day,
		Items:    []models.NewSaleItem{{ProductId: product.ID, Quantity: 1}},
	})
	assertCode(t, err, utils.ErrValidation)

	if got := mustStock(t, product.ID); got != 5 {
		t.Fatalf("stock: got %d want 5", got)
	}
}

func TestCreateSaleRejectsInactiveProductAndNurse(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	actor := adminActor(t)
	product := createTestProduct(t, actor, "Mermelada", 5, "6.00")
	nurse, err := models.CreateNurse(ctx, actor, &models.NewNurse{Name: "Enf. Ana"})
	if err != nil {
		t.Fatalf("CreateNurse: %v", err)
	}
	day := models.MustParseDate("2024-04-04")

	if _, err := models.ToggleNurseActive(ctx, actor, nurse.ID); err != nil {
		t.Fatalf("ToggleNurseActive: %v", err)
	}
	_, err = models.CreateSale(ctx, actor, &models.NewSale{
		SaleDate: day,
		NurseId:  &nurse.ID,
		Items:    []models.NewSaleItem{{ProductId: product.ID, Quantity: 1}},
	})
	if appErr := assertCode(t, err, utils.ErrValidation); appErr.Field != "nurse_id" {
		t.Fatalf("field: got %q want nurse_id", appErr.Field)
	}

	if _, err := models.DeleteProduct(ctx, actor, product.ID); err != nil {
		t.Fatalf("DeleteProduct: %v", err)
	}
	_, err = models.CreateSale(ctx, actor, &models.NewSale{
		SaleDate: day,
		Items:    []models.NewSaleItem{{ProductId: product.ID, Quantity: 1}},
	})
	assertCode(t, err, utils.ErrProductNotFound)
}

func TestSalesAreImmutable(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	admin := adminActor(t)
	product := createTestProduct(t, admin, "Agua", 10, "1.50")

	sale, err := models.CreateSale(ctx, admin, &models.NewSale{
		SaleDate: models.MustParseDate("2024-04-05"),
		Items:    []models.NewSaleItem{{ProductId: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	_, err = models.UpdateSale(ctx, admin, sale.ID, &models.NewSale{})
	assertCode(t, err, utils.ErrForbidden)
	_, err = models.DeleteSale(ctx, admin, sale.ID)
	assertCode(t, err, utils.ErrForbidden)

	// the storage hooks refuse direct writes as well
	err = db.Model(sale).Update("total_amount", decimal.NewFromInt(1)).Error
	assertCode(t, err, utils.ErrForbidden)
	err = db.Delete(sale).Error
	assertCode(t, err, utils.ErrForbidden)

	stored, err := models.GetSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("GetSale: %v", err)
	}
	assertDecimal(t, "total", stored.TotalAmount, "1.50")
}

func TestPaginateSales(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	actor := treasurerActor(t)
	product := createTestProduct(t, actor, "Chocolate", 100, "2.00")

	for _, d := range []string{"2024-05-01", "2024-05-02", "2024-05-02", "2024-05-03"} {
		if _, err := models.CreateSale(ctx, actor, &models.NewSale{
			SaleDate: models.MustParseDate(d),
			Items:    []models.NewSaleItem{{ProductId: product.ID, Quantity: 1}},
		}); err != nil {
			t.Fatalf("CreateSale(%s): %v", d, err)
		}
	}

	limit := 3
	page, err := models.PaginateSales(ctx, models.SaleFilter{}, &limit, nil)
	if err != nil {
		t.Fatalf("PaginateSales: %v", err)
	}
	if len(page.Edges) != 3 {
		t.Fatalf("page size: got %d want 3", len(page.Edges))
	}
	if page.Edges[0].Node.SaleDate.String() != "2024-05-03" {
		t.Fatalf("first edge: got %s", page.Edges[0].Node.SaleDate)
	}
	if page.PageInfo.HasNextPage == nil || !*page.PageInfo.HasNextPage {
		t.Fatalf("expected next page")
	}

	next, err := models.PaginateSales(ctx, models.SaleFilter{}, &limit, &page.PageInfo.EndCursor)
	if err != nil {
		t.Fatalf("PaginateSales next: %v", err)
	}
	if len(next.Edges) != 1 || next.Edges[0].Node.SaleDate.String() != "2024-05-01" {
		t.Fatalf("second page: %+v", next.Edges)
	}

	from := models.MustParseDate("2024-05-02")
	to := models.MustParseDate("2024-05-02")
	filtered, err := models.PaginateSales(ctx, models.SaleFilter{From: &from, To: &to}, nil, nil)
	if err != nil {
		t.Fatalf("PaginateSales filtered: %v", err)
	}
	if len(filtered.Edges) != 2 {
		t.Fatalf("filtered: got %d want 2", len(filtered.Edges))
	}
}

func TestCreateSaleOnceReplaysByKey(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	admin := adminActor(t)
	treasurer := treasurerActor(t)
	bread := createTestProduct(t, admin, "Pan", 10, "1.00")

	input := func() *models.NewSale {
		return &models.NewSale{
			SaleDate: models.MustParseDate("2024-04-03"),
			Items:    []models.NewSaleItem{{ProductId: bread.ID, Quantity: 4}},
		}
	}

	first, err := models.CreateSaleOnce(ctx, treasurer, "req-1", input())
	if err != nil {
		t.Fatalf("first CreateSaleOnce: %v", err)
	}
	again, err := models.CreateSaleOnce(ctx, treasurer, "req-1", input())
	if err != nil {
		t.Fatalf("replayed CreateSaleOnce: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("replay: got sale %d want %d", again.ID, first.ID)
	}
	if got := mustStock(t, bread.ID); got != 6 {
		t.Fatalf("stock: got %d want 6", got)
	}

	// keys are scoped per user
	other, err := models.CreateSaleOnce(ctx, admin, "req-1", input())
	if err != nil {
		t.Fatalf("admin CreateSaleOnce: %v", err)
	}
	if other.ID == first.ID {
		t.Fatalf("expected a new sale for a different user")
	}
	if got := mustStock(t, bread.ID); got != 2 {
		t.Fatalf("stock: got %d want 2", got)
	}

	// a failed attempt does not burn the key
	if _, err := models.CreateSaleOnce(ctx, treasurer, "req-2", &models.NewSale{
		SaleDate: models.MustParseDate("2024-04-03"),
		Items:    []models.NewSaleItem{{ProductId: bread.ID, Quantity: 5}},
	}); err == nil {
		t.Fatalf("expected insufficient stock")
	} else {
		assertCode(t, err, utils.ErrInsufficientStock)
	}
	retry, err := models.CreateSaleOnce(ctx, treasurer, "req-2", &models.NewSale{
		SaleDate: models.MustParseDate("2024-04-03"),
		Items:    []models.NewSaleItem{{ProductId: bread.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("retry CreateSaleOnce: %v", err)
	}
	assertDecimal(t, "retry total", retry.TotalAmount, "2.00")
	if got := mustStock(t, bread.ID); got != 0 {
		t.Fatalf("stock: got %d want 0", got)
	}
	if got := countRows(t, &models.Sale{}); got != 3 {
		t.Fatalf("sales: got %d want 3", got)
	}
}
