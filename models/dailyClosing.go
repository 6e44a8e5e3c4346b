package models

import (
	"context"
	"errors"
	"time"

	"github.com/casahogar/cashbox_backend/config"
	"github.com/casahogar/cashbox_backend/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var tracer = otel.Tracer("cashbox-backend/models")

const (
	lastBalanceCacheKey = "DailyClosing:LastBalance"
	// a reader-filled entry may predate a racing closing commit by this much at most
	lastBalanceReadTTL = time.Minute
)

/*
	Daily closing.
	final_balance = (total_sales - total_expenses + total_injections) + previous_balance
	previous_balance of date D = final_balance of the latest closing before D, or 0.
	A date is closed at most once (unique closing_date); RecomputeClosing is the
	only way to change a stored closing, and every later closing is re-chained
	in the same transaction.
*/

type DailyClosing struct {
	ID              int             `gorm:"primary_key" json:"id"`
	ClosingDate     Date            `gorm:"not null;uniqueIndex" json:"closing_date"`
	TotalSales      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_sales"`
	TotalExpenses   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_expenses"`
	TotalInjections decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_injections"`
	PreviousBalance decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"previous_balance"`
	FinalBalance    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"final_balance"`
	Issuer
	User      *User     `gorm:"foreignKey:UserId;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ClosingPreview is what a closing for the date would hold right now.
type ClosingPreview struct {
	ClosingDate     Date            `json:"closing_date"`
	TotalSales      decimal.Decimal `json:"total_sales"`
	TotalExpenses   decimal.Decimal `json:"total_expenses"`
	TotalInjections decimal.Decimal `json:"total_injections"`
	PreviousBalance decimal.Decimal `json:"previous_balance"`
	FinalBalance    decimal.Decimal `json:"final_balance"`
	AlreadyClosed   bool            `json:"already_closed"`
}

type ClosingFilter struct {
	From *Date
	To   *Date
}

type dayTotals struct {
	Sales      decimal.Decimal
	Expenses   decimal.Decimal
	Injections decimal.Decimal
}

func (obj DailyClosing) GetId() int {
	return obj.ID
}

func (obj DailyClosing) GetCursor() string {
	return obj.ClosingDate.String()
}

func computeFinalBalance(t dayTotals, previousBalance decimal.Decimal) decimal.Decimal {
	return t.Sales.Sub(t.Expenses).Add(t.Injections).Add(previousBalance)
}

// sumColumn adds the per-row decimals in Go so no floating point SUM is
// involved, whatever the store.
func sumColumn(tx *gorm.DB, model interface{}, column string, dateColumn string, date Date) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	if err := tx.Model(model).Where(dateColumn+" = ?", date).Pluck(column, &amounts).Error; err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total.Round(2), nil
}

func aggregateDay(tx *gorm.DB, date Date) (dayTotals, error) {
	var t dayTotals
	var err error
	if t.Sales, err = sumColumn(tx, &Sale{}, "total_amount", "sale_date", date); err != nil {
		return t, err
	}
	if t.Expenses, err = sumColumn(tx, &Expense{}, "amount", "expense_date", date); err != nil {
		return t, err
	}
	if t.Injections, err = sumColumn(tx, &CapitalInjection{}, "amount", "injection_date", date); err != nil {
		return t, err
	}
	return t, nil
}

// previousBalance is the final balance of the latest closing strictly before date.
func previousBalance(tx *gorm.DB, date Date) (decimal.Decimal, error) {
	var prev []*DailyClosing
	if err := tx.Where("closing_date < ?", date).
		Order("closing_date DESC").
		Limit(1).
		Find(&prev).Error; err != nil {
		return decimal.Zero, err
	}
	if len(prev) == 0 {
		return decimal.Zero, nil
	}
	return prev[0].FinalBalance, nil
}

func findClosingForUpdate(tx *gorm.DB, date Date) (*DailyClosing, error) {
	var closings []*DailyClosing
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("closing_date = ?", date).
		Limit(1).
		Find(&closings).Error; err != nil {
		return nil, err
	}
	if len(closings) == 0 {
		return nil, nil
	}
	return closings[0], nil
}

// rechainAfter walks every closing after date in order and makes its
// previous_balance equal the preceding final_balance, recomputing its own
// final_balance from its stored day totals. Returns how many rows changed.
func rechainAfter(tx *gorm.DB, date Date, balance decimal.Decimal) (int, error) {
	var later []*DailyClosing
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("closing_date > ?", date).
		Order("closing_date").
		Find(&later).Error; err != nil {
		return 0, err
	}

	changed := 0
	prev := balance
	for _, c := range later {
		totals := dayTotals{Sales: c.TotalSales, Expenses: c.TotalExpenses, Injections: c.TotalInjections}
		final := computeFinalBalance(totals, prev)
		if !c.PreviousBalance.Equal(prev) || !c.FinalBalance.Equal(final) {
			if err := tx.Model(&DailyClosing{}).Where("id = ?", c.ID).
				Updates(map[string]interface{}{
					"previous_balance": prev,
					"final_balance":    final,
				}).Error; err != nil {
				return changed, err
			}
			changed++
		}
		prev = final
	}
	return changed, nil
}

func validateClosingDate(date Date) error {
	if date.IsZero() {
		return utils.NewValidationError("closing_date", "is required")
	}
	return nil
}

// ComputeClosing closes date for the first time. A second call for the same
// date fails with DuplicateClosing; use RecomputeClosing to refresh it.
func ComputeClosing(ctx context.Context, actor Actor, date Date) (*DailyClosing, error) {
	ctx, span := tracer.Start(ctx, "ComputeClosing", trace.WithAttributes(attribute.String("closing.date", date.String())))
	defer span.End()

	if err := actor.validate(); err != nil {
		return nil, err
	}
	if err := validateClosingDate(date); err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	existing, err := findClosingForUpdate(tx, date)
	if err != nil {
		tx.Rollback()
		span.RecordError(err)
		return nil, err
	}
	if existing != nil {
		tx.Rollback()
		return nil, utils.NewDuplicateClosingError(date.String())
	}

	totals, err := aggregateDay(tx, date)
	if err != nil {
		tx.Rollback()
		span.RecordError(err)
		return nil, err
	}
	prev, err := previousBalance(tx, date)
	if err != nil {
		tx.Rollback()
		span.RecordError(err)
		return nil, err
	}

	closing := DailyClosing{
		ClosingDate:     date,
		TotalSales:      totals.Sales,
		TotalExpenses:   totals.Expenses,
		TotalInjections: totals.Injections,
		PreviousBalance: prev,
		FinalBalance:    computeFinalBalance(totals, prev),
		Issuer:          issuerOf(actor),
	}
	if err := tx.Omit(clause.Associations).Create(&closing).Error; err != nil {
		tx.Rollback()
		// lost the race against another request for the same date
		if closingExists(ctx, date) {
			return nil, utils.NewDuplicateClosingError(date.String())
		}
		span.RecordError(err)
		return nil, err
	}

	rechained, err := rechainAfter(tx, date, closing.FinalBalance)
	if err != nil {
		tx.Rollback()
		span.RecordError(err)
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("closing.rechained", rechained))

	afterClosingCommit(ctx, actor, AuditActionCreated, nil, &closing)
	return &closing, nil
}

// RecomputeClosing re-aggregates an existing closing. Running it twice with
// the same inputs stores the same values.
func RecomputeClosing(ctx context.Context, actor Actor, date Date) (*DailyClosing, error) {
	ctx, span := tracer.Start(ctx, "RecomputeClosing", trace.WithAttributes(attribute.String("closing.date", date.String())))
	defer span.End()

	if err := actor.validate(); err != nil {
		return nil, err
	}
	if err := validateClosingDate(date); err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	existing, err := findClosingForUpdate(tx, date)
	if err != nil {
		tx.Rollback()
		span.RecordError(err)
		return nil, err
	}
	if existing == nil {
		tx.Rollback()
		return nil, utils.NewNotFoundError("daily closing")
	}
	before := *existing

	totals, err := aggregateDay(tx, date)
	if err != nil {
		tx.Rollback()
		span.RecordError(err)
		return nil, err
	}
	prev, err := previousBalance(tx, date)
	if err != nil {
		tx.Rollback()
		span.RecordError(err)
		return nil, err
	}

	existing.TotalSales = totals.Sales
	existing.TotalExpenses = totals.Expenses
	existing.TotalInjections = totals.Injections
	existing.PreviousBalance = prev
	existing.FinalBalance = computeFinalBalance(totals, prev)
	existing.Issuer = issuerOf(actor)
	if err := tx.Model(&DailyClosing{}).Where("id = ?", existing.ID).
		Updates(map[string]interface{}{
			"total_sales":      existing.TotalSales,
			"total_expenses":   existing.TotalExpenses,
			"total_injections": existing.TotalInjections,
			"previous_balance": existing.PreviousBalance,
			"final_balance":    existing.FinalBalance,
			"user_id":          existing.UserId,
			"user_name":        existing.UserName,
		}).Error; err != nil {
		tx.Rollback()
		span.RecordError(err)
		return nil, err
	}

	rechained, err := rechainAfter(tx, date, existing.FinalBalance)
	if err != nil {
		tx.Rollback()
		span.RecordError(err)
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("closing.rechained", rechained))

	closing, err := GetClosing(ctx, existing.ID)
	if err != nil {
		return nil, err
	}
	afterClosingCommit(ctx, actor, AuditActionUpdated, &before, closing)
	return closing, nil
}

func afterClosingCommit(ctx context.Context, actor Actor, action AuditAction, before *DailyClosing, closing *DailyClosing) {
	refreshLastBalanceCache(ctx)
	var beforeSnapshot interface{}
	if before != nil {
		beforeSnapshot = before
	}
	RecordActivity(ctx, actor, action, EntityDailyClosing, closing.ID, beforeSnapshot, closing)
	publishClosingEvent(ctx, action, closing)
}

// LockClosingChain serializes closing writes across instances. Every write
// re-chains all later dates, so two dates closed at once must not overlap.
// Without Redis it is a no-op and writers rely on the store's own locking.
func LockClosingChain(ctx context.Context) (func(), error) {
	return utils.ObtainLock(ctx, "closing", "chain", "models", "LockClosingChain")
}

func closingExists(ctx context.Context, date Date) bool {
	count, err := utils.ResourceCountWhere[DailyClosing](ctx, "closing_date = ?", date)
	return err == nil && count > 0
}

// PreviewClosing computes the closing for date without storing anything.
func PreviewClosing(ctx context.Context, date Date) (*ClosingPreview, error) {
	if err := validateClosingDate(date); err != nil {
		return nil, err
	}
	db := config.GetDB().WithContext(ctx)

	totals, err := aggregateDay(db, date)
	if err != nil {
		return nil, err
	}
	prev, err := previousBalance(db, date)
	if err != nil {
		return nil, err
	}
	return &ClosingPreview{
		ClosingDate:     date,
		TotalSales:      totals.Sales,
		TotalExpenses:   totals.Expenses,
		TotalInjections: totals.Injections,
		PreviousBalance: prev,
		FinalBalance:    computeFinalBalance(totals, prev),
		AlreadyClosed:   closingExists(ctx, date),
	}, nil
}

type lastBalance struct {
	Balance decimal.Decimal `json:"balance"`
	Date    *Date           `json:"date"`
}

// latestClosing returns nil when nothing was closed yet.
func latestClosing(db *gorm.DB) (*DailyClosing, error) {
	var closings []*DailyClosing
	if err := db.Order("closing_date DESC").Limit(1).Find(&closings).Error; err != nil {
		return nil, err
	}
	if len(closings) == 0 {
		return nil, nil
	}
	return closings[0], nil
}

// refreshLastBalanceCache overwrites the cached last balance with the latest
// committed closing. Readers only fill an empty key, so a reader holding an
// older row cannot replace this value. If the refresh fails the key is dropped.
func refreshLastBalanceCache(ctx context.Context) {
	logger := config.GetLogger()
	if config.GetRedisDB() == nil {
		return
	}
	latest, err := latestClosing(config.GetDB().WithContext(context.WithoutCancel(ctx)))
	if err == nil && latest == nil {
		err = errors.New("no closing found after commit")
	}
	if err == nil {
		d := latest.ClosingDate
		err = config.SetRedisObject(lastBalanceCacheKey, lastBalance{Balance: latest.FinalBalance, Date: &d}, utils.GetCacheLifespan())
	}
	if err == nil {
		return
	}
	config.LogError(logger, "models", "refreshLastBalanceCache", "refresh last balance cache", nil, err)
	if err := config.RemoveRedisKey(lastBalanceCacheKey); err != nil {
		config.LogError(logger, "models", "refreshLastBalanceCache", "clear last balance cache", nil, err)
	}
}

// GetLastBalance returns the final balance and date of the latest closing,
// or (0.00, nil) when there is none. It never fails: on any internal error
// it logs and returns the zero default so the register UI keeps working.
func GetLastBalance(ctx context.Context) (balance decimal.Decimal, date *Date) {
	logger := config.GetLogger()
	defer func() {
		if r := recover(); r != nil {
			config.LogError(logger, "models", "GetLastBalance", "recovered", r, errors.New("panic reading last balance"))
			balance, date = decimal.Zero, nil
		}
	}()

	var cached lastBalance
	exists, err := config.GetRedisObject(lastBalanceCacheKey, &cached)
	if err != nil {
		config.LogError(logger, "models", "GetLastBalance", "read cache", nil, err)
	}
	if exists {
		return cached.Balance, cached.Date
	}

	db := config.GetDB()
	if db == nil {
		config.LogError(logger, "models", "GetLastBalance", "db not ready", nil, errors.New("db is nil"))
		return decimal.Zero, nil
	}
	latest, err := latestClosing(db.WithContext(ctx))
	if err != nil {
		config.LogError(logger, "models", "GetLastBalance", "query latest closing", nil, err)
		return decimal.Zero, nil
	}
	if latest == nil {
		return decimal.Zero, nil
	}

	d := latest.ClosingDate
	// only fill a missing key: a closing committed since the query above has
	// already written a newer value
	if _, err := config.SetRedisObjectIfAbsent(lastBalanceCacheKey, lastBalance{Balance: latest.FinalBalance, Date: &d}, lastBalanceReadTTL); err != nil {
		config.LogError(logger, "models", "GetLastBalance", "write cache", nil, err)
	}
	return latest.FinalBalance, &d
}

func GetClosing(ctx context.Context, id int) (*DailyClosing, error) {
	var closing DailyClosing
	err := config.GetDB().WithContext(ctx).First(&closing, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("daily closing")
	}
	if err != nil {
		return nil, err
	}
	return &closing, nil
}

func GetClosingByDate(ctx context.Context, date Date) (*DailyClosing, error) {
	var closing DailyClosing
	err := config.GetDB().WithContext(ctx).Where("closing_date = ?", date).Take(&closing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("daily closing")
	}
	if err != nil {
		return nil, err
	}
	return &closing, nil
}

func PaginateClosings(ctx context.Context, filter ClosingFilter, limit *int, after *string) (*Connection[DailyClosing], error) {
	dbCtx := config.GetDB().WithContext(ctx).Model(&DailyClosing{})
	if filter.From != nil && !filter.From.IsZero() {
		dbCtx = dbCtx.Where("closing_date >= ?", *filter.From)
	}
	if filter.To != nil && !filter.To.IsZero() {
		dbCtx = dbCtx.Where("closing_date <= ?", *filter.To)
	}
	return FetchPageCompositeCursor[DailyClosing](dbCtx, normalizeLimit(limit), after, "closing_date")
}
