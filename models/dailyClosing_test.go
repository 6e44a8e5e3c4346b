package models_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/casahogar/cashbox_backend/config"
	"github.com/casahogar/cashbox_backend/models"
	"github.com/casahogar/cashbox_backend/utils"
	"github.com/shopspring/decimal"
)

type ledgerFixture struct {
	actor   models.Actor
	product *models.Product
}

func newLedgerFixture(t *testing.T) ledgerFixture {
	setupTestDB(t)
	actor := treasurerActor(t)
	return ledgerFixture{
		actor:   actor,
		product: createTestProduct(t, actor, "Kit de aseo", 1000, "10.00"),
	}
}

func (f ledgerFixture) sell(t *testing.T, day string, qty int) {
	t.Helper()
	if _, err := models.CreateSale(context.Background(), f.actor, &models.NewSale{
		SaleDate: models.MustParseDate(day),
		Items:    []models.NewSaleItem{{ProductId: f.product.ID, Quantity: qty}},
	}); err != nil {
		t.Fatalf("CreateSale(%s): %v", day, err)
	}
}

func (f ledgerFixture) spend(t *testing.T, day string, amount string) {
	t.Helper()
	if _, err := models.CreateExpense(context.Background(), f.actor, &models.NewExpense{
		ExpenseDate: models.MustParseDate(day),
		Amount:      decimal.RequireFromString(amount),
		Description: "compras",
	}); err != nil {
		t.Fatalf("CreateExpense(%s): %v", day, err)
	}
}

func (f ledgerFixture) inject(t *testing.T, day string, amount string) {
	t.Helper()
	if _, err := models.CreateCapitalInjection(context.Background(), f.actor, &models.NewCapitalInjection{
		InjectionDate: models.MustParseDate(day),
		Amount:        decimal.RequireFromString(amount),
		Reason:        "aporte",
	}); err != nil {
		t.Fatalf("CreateCapitalInjection(%s): %v", day, err)
	}
}

func (f ledgerFixture) close(t *testing.T, day string) *models.DailyClosing {
	t.Helper()
	closing, err := models.ComputeClosing(context.Background(), f.actor, models.MustParseDate(day))
	if err != nil {
		t.Fatalf("ComputeClosing(%s): %v", day, err)
	}
	return closing
}

func TestComputeClosingIncludesInjections(t *testing.T) {
	f := newLedgerFixture(t)
	f.sell(t, "2024-06-01", 10)
	f.spend(t, "2024-06-01", "30.00")
	f.inject(t, "2024-06-01", "50.00")
	// other days do not leak in
	f.spend(t, "2024-06-02", "999.00")

	closing := f.close(t, "2024-06-01")
	assertDecimal(t, "total_sales", closing.TotalSales, "100.00")
	assertDecimal(t, "total_expenses", closing.TotalExpenses, "30.00")
	assertDecimal(t, "total_injections", closing.TotalInjections, "50.00")
	assertDecimal(t, "previous_balance", closing.PreviousBalance, "0")
	assertDecimal(t, "final_balance", closing.FinalBalance, "120.00")
	if closing.UserId != f.actor.UserId {
		t.Fatalf("issuer: got %d want %d", closing.UserId, f.actor.UserId)
	}
}

func TestComputeClosingChainsBalances(t *testing.T) {
	f := newLedgerFixture(t)
	f.sell(t, "2024-06-01", 10)
	f.spend(t, "2024-06-01", "30.00")
	f.sell(t, "2024-06-03", 2)
	f.spend(t, "2024-06-03", "5.00")

	first := f.close(t, "2024-06-01")
	assertDecimal(t, "day 1 final", first.FinalBalance, "70.00")

	// a day without movements still carries the balance
	empty := f.close(t, "2024-06-02")
	assertDecimal(t, "day 2 previous", empty.PreviousBalance, "70.00")
	assertDecimal(t, "day 2 final", empty.FinalBalance, "70.00")

	third := f.close(t, "2024-06-03")
	assertDecimal(t, "day 3 previous", third.PreviousBalance, "70.00")
	assertDecimal(t, "day 3 final", third.FinalBalance, "85.00")

	balance, date := models.GetLastBalance(context.Background())
	assertDecimal(t, "last balance", balance, "85.00")
	if date == nil || date.String() != "2024-06-03" {
		t.Fatalf("last closing date: got %v", date)
	}
}

func TestComputeClosingRejectsDuplicate(t *testing.T) {
	f := newLedgerFixture(t)
	f.sell(t, "2024-06-01", 1)
	f.close(t, "2024-06-01")

	_, err := models.ComputeClosing(context.Background(), f.actor, models.MustParseDate("2024-06-01"))
	assertCode(t, err, utils.ErrDuplicateClosing)
	if n := countRows(t, &models.DailyClosing{}); n != 1 {
		t.Fatalf("closings: got %d want 1", n)
	}
}

func TestComputeClosingValidation(t *testing.T) {
	f := newLedgerFixture(t)

	_, err := models.ComputeClosing(context.Background(), f.actor, models.Date{})
	assertCode(t, err, utils.ErrValidation)
	_, err = models.ComputeClosing(context.Background(), models.Actor{}, models.MustParseDate("2024-06-01"))
	assertCode(t, err, utils.ErrValidation)
}

func TestRecomputeClosingCascades(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	f.sell(t, "2024-06-01", 10)
	f.spend(t, "2024-06-01", "30.00")
	f.inject(t, "2024-06-01", "50.00")
	f.sell(t, "2024-06-02", 2)
	f.spend(t, "2024-06-02", "5.00")

	f.close(t, "2024-06-01")
	second := f.close(t, "2024-06-02")
	assertDecimal(t, "day 2 final", second.FinalBalance, "135.00")

	// a late expense for day 1 changes both days once day 1 is recomputed
	f.spend(t, "2024-06-01", "10.00")
	day1 := models.MustParseDate("2024-06-01")
	recomputed, err := models.RecomputeClosing(ctx, f.actor, day1)
	if err != nil {
		t.Fatalf("RecomputeClosing: %v", err)
	}
	assertDecimal(t, "day 1 expenses", recomputed.TotalExpenses, "40.00")
	assertDecimal(t, "day 1 final", recomputed.FinalBalance, "110.00")

	day2, err := models.GetClosingByDate(ctx, models.MustParseDate("2024-06-02"))
	if err != nil {
		t.Fatalf("GetClosingByDate: %v", err)
	}
	assertDecimal(t, "day 2 previous", day2.PreviousBalance, "110.00")
	assertDecimal(t, "day 2 final", day2.FinalBalance, "125.00")

	again, err := models.RecomputeClosing(ctx, f.actor, day1)
	if err != nil {
		t.Fatalf("RecomputeClosing again: %v", err)
	}
	if !again.FinalBalance.Equal(recomputed.FinalBalance) || !again.TotalSales.Equal(recomputed.TotalSales) {
		t.Fatalf("recompute is not idempotent: %s vs %s", again.FinalBalance, recomputed.FinalBalance)
	}

	balance, _ := models.GetLastBalance(ctx)
	assertDecimal(t, "last balance", balance, "125.00")
}

func TestComputeClosingBackfillRechainsLaterDays(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	f.sell(t, "2024-06-01", 5)
	f.sell(t, "2024-06-02", 1)

	later := f.close(t, "2024-06-02")
	assertDecimal(t, "day 2 previous before backfill", later.PreviousBalance, "0")

	f.close(t, "2024-06-01")
	rechained, err := models.GetClosingByDate(ctx, models.MustParseDate("2024-06-02"))
	if err != nil {
		t.Fatalf("GetClosingByDate: %v", err)
	}
	assertDecimal(t, "day 2 previous", rechained.PreviousBalance, "50.00")
	assertDecimal(t, "day 2 final", rechained.FinalBalance, "60.00")
}

func TestRecomputeMissingClosing(t *testing.T) {
	f := newLedgerFixture(t)
	_, err := models.RecomputeClosing(context.Background(), f.actor, models.MustParseDate("2024-01-01"))
	assertCode(t, err, utils.ErrNotFound)
}

func TestGetLastBalanceWithoutClosings(t *testing.T) {
	setupTestDB(t)
	balance, date := models.GetLastBalance(context.Background())
	if !balance.IsZero() || date != nil {
		t.Fatalf("got (%s, %v) want (0, nil)", balance, date)
	}
}

func TestGetLastBalanceDefaultsOnStoreFailure(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	f.sell(t, "2024-06-01", 2)
	if _, err := models.ComputeClosing(ctx, f.actor, models.MustParseDate("2024-06-01")); err != nil {
		t.Fatalf("ComputeClosing: %v", err)
	}
	db := config.GetDB()

	config.SetDB(nil)
	balance, date := models.GetLastBalance(ctx)
	config.SetDB(db)
	if !balance.IsZero() || date != nil {
		t.Fatalf("nil db: got (%s, %v) want (0, nil)", balance, date)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	balance, date = models.GetLastBalance(ctx)
	if !balance.IsZero() || date != nil {
		t.Fatalf("closed db: got (%s, %v) want (0, nil)", balance, date)
	}
}

type cachedBalance struct {
	Balance decimal.Decimal `json:"balance"`
	Date    *models.Date    `json:"date"`
}

func readBalanceCache(t *testing.T) cachedBalance {
	t.Helper()
	var cached cachedBalance
	exists, err := config.GetRedisObject("DailyClosing:LastBalance", &cached)
	if err != nil || !exists {
		t.Fatalf("last balance cache: exists=%t err=%v", exists, err)
	}
	return cached
}

func assertBalanceCache(t *testing.T, date string, balance string) {
	t.Helper()
	cached := readBalanceCache(t)
	if cached.Date == nil || cached.Date.String() != date {
		t.Fatalf("cached date: got %v want %s", cached.Date, date)
	}
	assertDecimal(t, "cached balance", cached.Balance, balance)
}

func TestLastBalanceCacheFollowsCommits(t *testing.T) {
	mr := setupTestRedis(t)
	f := newLedgerFixture(t)
	ctx := context.Background()

	f.sell(t, "2024-06-01", 5)
	f.close(t, "2024-06-01")
	assertBalanceCache(t, "2024-06-01", "50.00")

	f.sell(t, "2024-06-02", 2)
	f.close(t, "2024-06-02")
	assertBalanceCache(t, "2024-06-02", "70.00")

	// an earlier backfill moves the latest balance, not the latest date
	f.sell(t, "2024-05-31", 1)
	f.close(t, "2024-05-31")
	assertBalanceCache(t, "2024-06-02", "80.00")

	// a reader never replaces what a commit wrote
	stale := cachedBalance{Balance: decimal.RequireFromString("50.00"), Date: ptrDate("2024-06-01")}
	stored, err := config.SetRedisObjectIfAbsent("DailyClosing:LastBalance", stale, time.Minute)
	if err != nil || stored {
		t.Fatalf("reader overwrote the cache: stored=%t err=%v", stored, err)
	}

	// a stale entry left behind is replaced by the next commit
	if err := config.SetRedisObject("DailyClosing:LastBalance", stale, time.Hour); err != nil {
		t.Fatalf("seed stale cache: %v", err)
	}
	f.sell(t, "2024-06-02", 1)
	if _, err := models.RecomputeClosing(ctx, f.actor, models.MustParseDate("2024-06-02")); err != nil {
		t.Fatalf("RecomputeClosing: %v", err)
	}
	assertBalanceCache(t, "2024-06-02", "90.00")

	// a cache miss is filled from the store, with a short lifetime
	mr.Del("DailyClosing:LastBalance")
	balance, date := models.GetLastBalance(ctx)
	assertDecimal(t, "last balance", balance, "90.00")
	if date == nil || date.String() != "2024-06-02" {
		t.Fatalf("last date: got %v", date)
	}
	if ttl := mr.TTL("DailyClosing:LastBalance"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("reader ttl: got %s", ttl)
	}
}

func ptrDate(s string) *models.Date {
	d := models.MustParseDate(s)
	return &d
}

func TestLockClosingChainIsExclusive(t *testing.T) {
	setupTestRedis(t)
	ctx := context.Background()

	release, err := models.LockClosingChain(ctx)
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if _, err := models.LockClosingChain(ctx); !errors.Is(err, utils.ErrLockNotObtained) {
		t.Fatalf("second lock: got %v want ErrLockNotObtained", err)
	}
	release()

	release, err = models.LockClosingChain(ctx)
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	release()
}

func TestPreviewClosingStoresNothing(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	f.sell(t, "2024-06-01", 3)
	f.inject(t, "2024-06-01", "20.00")

	preview, err := models.PreviewClosing(ctx, models.MustParseDate("2024-06-01"))
	if err != nil {
		t.Fatalf("PreviewClosing: %v", err)
	}
	assertDecimal(t, "preview final", preview.FinalBalance, "50.00")
	if preview.AlreadyClosed {
		t.Fatalf("preview reports closed before any closing")
	}
	if n := countRows(t, &models.DailyClosing{}); n != 0 {
		t.Fatalf("preview stored a closing")
	}

	f.close(t, "2024-06-01")
	preview, err = models.PreviewClosing(ctx, models.MustParseDate("2024-06-01"))
	if err != nil {
		t.Fatalf("PreviewClosing after close: %v", err)
	}
	if !preview.AlreadyClosed {
		t.Fatalf("preview should report the date as closed")
	}
}

func TestClosingIsAudited(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	closing := f.close(t, "2024-06-01")
	if _, err := models.RecomputeClosing(ctx, f.actor, models.MustParseDate("2024-06-01")); err != nil {
		t.Fatalf("RecomputeClosing: %v", err)
	}

	entity := models.EntityDailyClosing
	logs, err := models.PaginateActivityLogs(ctx, models.ActivityLogFilter{EntityType: &entity, EntityId: &closing.ID}, nil, nil)
	if err != nil {
		t.Fatalf("PaginateActivityLogs: %v", err)
	}
	if len(logs.Edges) != 2 {
		t.Fatalf("audit entries: got %d want 2", len(logs.Edges))
	}
	if logs.Edges[0].Node.Action != models.AuditActionUpdated || logs.Edges[1].Node.Action != models.AuditActionCreated {
		t.Fatalf("audit actions: %s, %s", logs.Edges[0].Node.Action, logs.Edges[1].Node.Action)
	}
	if logs.Edges[0].Node.Before == "" || logs.Edges[0].Node.After == "" {
		t.Fatalf("update entry should carry both snapshots")
	}
}

func TestPaginateClosings(t *testing.T) {
	f := newLedgerFixture(t)
	for _, d := range []string{"2024-06-01", "2024-06-02", "2024-06-03"} {
		f.close(t, d)
	}
	from := models.MustParseDate("2024-06-02")
	page, err := models.PaginateClosings(context.Background(), models.ClosingFilter{From: &from}, nil, nil)
	if err != nil {
		t.Fatalf("PaginateClosings: %v", err)
	}
	if len(page.Edges) != 2 || page.Edges[0].Node.ClosingDate.String() != "2024-06-03" {
		t.Fatalf("unexpected page: %+v", page.Edges)
	}
}
