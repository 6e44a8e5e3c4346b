package models

import (
	"context"
	"time"

	"github.com/casahogar/cashbox_backend/config"
	"github.com/casahogar/cashbox_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Report rows carry data only; rendering belongs to whoever consumes them.

type DailySummary struct {
	TotalSales      decimal.Decimal `json:"total_sales"`
	TotalExpenses   decimal.Decimal `json:"total_expenses"`
	TotalInjections decimal.Decimal `json:"total_injections"`
	NetBalance      decimal.Decimal `json:"net_balance"`
	SalesCount      int             `json:"sales_count"`
	WasteUnits      int             `json:"waste_units"`
}

type DailySaleLine struct {
	*Sale
	IssuedBy string `json:"issued_by"`
}

type DailyExpenseLine struct {
	*Expense
	IssuedBy string `json:"issued_by"`
}

type DailyInjectionLine struct {
	*CapitalInjection
	IssuedBy string `json:"issued_by"`
}

type DailyWasteLine struct {
	*WasteRecord
	IssuedBy string `json:"issued_by"`
}

type DailyDetail struct {
	Date       Date                  `json:"date"`
	Sales      []*DailySaleLine      `json:"sales"`
	Expenses   []*DailyExpenseLine   `json:"expenses"`
	Injections []*DailyInjectionLine `json:"injections"`
	Waste      []*DailyWasteLine     `json:"waste"`
	Summary    DailySummary          `json:"summary"`
	Closing    *DailyClosing         `json:"closing"`
}

type TopProduct struct {
	ProductId   int             `json:"product_id"`
	ProductName string          `json:"product_name"`
	Units       int             `json:"units"`
	Revenue     decimal.Decimal `json:"revenue"`
}

type DashboardStats struct {
	Year            int             `json:"year"`
	Month           int             `json:"month"`
	From            Date            `json:"from"`
	To              Date            `json:"to"`
	TotalSales      decimal.Decimal `json:"total_sales"`
	TotalExpenses   decimal.Decimal `json:"total_expenses"`
	TotalInjections decimal.Decimal `json:"total_injections"`
	NetBalance      decimal.Decimal `json:"net_balance"`
	SalesCount      int             `json:"sales_count"`
	TopProducts     []*TopProduct   `json:"top_products"`
	LastBalance     decimal.Decimal `json:"last_balance"`
	LastClosingDate *Date           `json:"last_closing_date"`
}

type SalesReport struct {
	From          Date            `json:"from"`
	To            Date            `json:"to"`
	TotalSales    decimal.Decimal `json:"total_sales"`
	SalesCount    int             `json:"sales_count"`
	AverageTicket decimal.Decimal `json:"average_ticket"`
	TopProducts   []*TopProduct   `json:"top_products"`
}

const topProductsLimit = 5

func sumDecimals(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total.Round(2)
}

func sumBetween(db *gorm.DB, model interface{}, column string, dateColumn string, from Date, to Date) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	if err := db.Model(model).
		Where(dateColumn+" >= ? AND "+dateColumn+" <= ?", from, to).
		Pluck(column, &amounts).Error; err != nil {
		return decimal.Zero, err
	}
	return sumDecimals(amounts), nil
}

// GetDailyDetail gathers every movement of one business date.
func GetDailyDetail(ctx context.Context, date Date) (*DailyDetail, error) {
	if date.IsZero() {
		return nil, utils.NewValidationError("date", "is required")
	}
	db := config.GetDB().WithContext(ctx)

	var sales []*Sale
	if err := db.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Items.Product").
		Preload("Nurse").
		Where("sale_date = ?", date).
		Order("id").
		Find(&sales).Error; err != nil {
		return nil, err
	}
	var expenses []*Expense
	if err := db.Where("expense_date = ?", date).Order("id").Find(&expenses).Error; err != nil {
		return nil, err
	}
	var injections []*CapitalInjection
	if err := db.Where("injection_date = ?", date).Order("id").Find(&injections).Error; err != nil {
		return nil, err
	}
	var waste []*WasteRecord
	if err := db.Preload("Product").Where("waste_date = ?", date).Order("id").Find(&waste).Error; err != nil {
		return nil, err
	}

	userIds := make([]int, 0, len(sales)+len(expenses)+len(injections)+len(waste))
	for _, s := range sales {
		userIds = append(userIds, s.UserId)
	}
	for _, e := range expenses {
		userIds = append(userIds, e.UserId)
	}
	for _, i := range injections {
		userIds = append(userIds, i.UserId)
	}
	for _, w := range waste {
		userIds = append(userIds, w.UserId)
	}
	names, err := issuerNames(db, userIds)
	if err != nil {
		return nil, err
	}

	detail := DailyDetail{
		Date:       date,
		Sales:      make([]*DailySaleLine, 0, len(sales)),
		Expenses:   make([]*DailyExpenseLine, 0, len(expenses)),
		Injections: make([]*DailyInjectionLine, 0, len(injections)),
		Waste:      make([]*DailyWasteLine, 0, len(waste)),
	}
	summary := DailySummary{
		TotalSales:      decimal.Zero,
		TotalExpenses:   decimal.Zero,
		TotalInjections: decimal.Zero,
	}
	for _, s := range sales {
		summary.TotalSales = summary.TotalSales.Add(s.TotalAmount)
		detail.Sales = append(detail.Sales, &DailySaleLine{Sale: s, IssuedBy: s.Issuer.DisplayName(names)})
	}
	for _, e := range expenses {
		summary.TotalExpenses = summary.TotalExpenses.Add(e.Amount)
		detail.Expenses = append(detail.Expenses, &DailyExpenseLine{Expense: e, IssuedBy: e.Issuer.DisplayName(names)})
	}
	for _, i := range injections {
		summary.TotalInjections = summary.TotalInjections.Add(i.Amount)
		detail.Injections = append(detail.Injections, &DailyInjectionLine{CapitalInjection: i, IssuedBy: i.Issuer.DisplayName(names)})
	}
	for _, w := range waste {
		summary.WasteUnits += w.Quantity
		detail.Waste = append(detail.Waste, &DailyWasteLine{WasteRecord: w, IssuedBy: w.Issuer.DisplayName(names)})
	}
	summary.SalesCount = len(sales)
	summary.NetBalance = summary.TotalSales.Sub(summary.TotalExpenses).Add(summary.TotalInjections)
	detail.Summary = summary

	var closings []*DailyClosing
	if err := db.Where("closing_date = ?", date).Limit(1).Find(&closings).Error; err != nil {
		return nil, err
	}
	if len(closings) > 0 {
		detail.Closing = closings[0]
	}
	return &detail, nil
}

func topProducts(db *gorm.DB, from Date, to Date, limit int) ([]*TopProduct, error) {
	var rows []struct {
		ProductId   int
		ProductName string
		Units       int
	}
	if err := db.Table("sale_items").
		Select("sale_items.product_id AS product_id, products.name AS product_name, SUM(sale_items.quantity) AS units").
		Joins("JOIN sales ON sales.id = sale_items.sale_id").
		Joins("JOIN products ON products.id = sale_items.product_id").
		Where("sales.sale_date >= ? AND sales.sale_date <= ?", from, to).
		Group("sale_items.product_id, products.name").
		Order("units DESC, sale_items.product_id").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	result := make([]*TopProduct, 0, len(rows))
	for _, r := range rows {
		var subtotals []decimal.Decimal
		if err := db.Table("sale_items").
			Joins("JOIN sales ON sales.id = sale_items.sale_id").
			Where("sale_items.product_id = ? AND sales.sale_date >= ? AND sales.sale_date <= ?", r.ProductId, from, to).
			Pluck("sale_items.subtotal", &subtotals).Error; err != nil {
			return nil, err
		}
		result = append(result, &TopProduct{
			ProductId:   r.ProductId,
			ProductName: r.ProductName,
			Units:       r.Units,
			Revenue:     sumDecimals(subtotals),
		})
	}
	return result, nil
}

// GetDashboardStats summarizes one calendar month.
func GetDashboardStats(ctx context.Context, year int, month int) (*DashboardStats, error) {
	if month < 1 || month > 12 {
		return nil, utils.NewValidationError("month", "must be between 1 and 12")
	}
	if year < 2000 || year > 9999 {
		return nil, utils.NewValidationError("year", "is invalid")
	}
	start, end := utils.GetMonthRange(year, time.Month(month))
	from := NewDate(start.Year(), start.Month(), start.Day())
	to := NewDate(end.Year(), end.Month(), end.Day())
	db := config.GetDB().WithContext(ctx)

	stats := DashboardStats{Year: year, Month: month, From: from, To: to}
	var err error
	if stats.TotalSales, err = sumBetween(db, &Sale{}, "total_amount", "sale_date", from, to); err != nil {
		return nil, err
	}
	if stats.TotalExpenses, err = sumBetween(db, &Expense{}, "amount", "expense_date", from, to); err != nil {
		return nil, err
	}
	if stats.TotalInjections, err = sumBetween(db, &CapitalInjection{}, "amount", "injection_date", from, to); err != nil {
		return nil, err
	}
	stats.NetBalance = stats.TotalSales.Sub(stats.TotalExpenses).Add(stats.TotalInjections)

	var count int64
	if err := db.Model(&Sale{}).Where("sale_date >= ? AND sale_date <= ?", from, to).Count(&count).Error; err != nil {
		return nil, err
	}
	stats.SalesCount = int(count)

	if stats.TopProducts, err = topProducts(db, from, to, topProductsLimit); err != nil {
		return nil, err
	}
	stats.LastBalance, stats.LastClosingDate = GetLastBalance(ctx)
	return &stats, nil
}

// GetSalesReport totals sales in [from, to] with the average ticket.
func GetSalesReport(ctx context.Context, from Date, to Date) (*SalesReport, error) {
	if from.IsZero() {
		return nil, utils.NewValidationError("from", "is required")
	}
	if to.IsZero() {
		return nil, utils.NewValidationError("to", "is required")
	}
	if to.Before(from) {
		return nil, utils.NewValidationError("to", "must not be before from")
	}
	db := config.GetDB().WithContext(ctx)

	var totals []decimal.Decimal
	if err := db.Model(&Sale{}).
		Where("sale_date >= ? AND sale_date <= ?", from, to).
		Pluck("total_amount", &totals).Error; err != nil {
		return nil, err
	}
	report := SalesReport{
		From:          from,
		To:            to,
		TotalSales:    sumDecimals(totals),
		SalesCount:    len(totals),
		AverageTicket: decimal.Zero,
	}
	if report.SalesCount > 0 {
		report.AverageTicket = report.TotalSales.Div(decimal.NewFromInt(int64(report.SalesCount))).Round(2)
	}
	var err error
	if report.TopProducts, err = topProducts(db, from, to, topProductsLimit); err != nil {
		return nil, err
	}
	return &report, nil
}
