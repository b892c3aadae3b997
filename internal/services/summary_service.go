// Package services – SummaryService
//
// This file implements the read-side aggregation engine: daily, weekly,
// per-customer and per-product summaries over bounded windows of orders.
// Every operation is a pure aggregation — idempotent and side-effect-free —
// except SaveDaily, which additionally persists an immutable snapshot row.
//
// All "sort by quantity descending" rankings are stable: ties keep the
// order in which the item was first seen during iteration, which is itself
// deterministic because the underlying queries are ordered by creation.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-order-backend/internal/domain"
	"github.com/tbourn/go-order-backend/internal/repo"
)

// SummaryService aggregates orders into reporting documents.
type SummaryService struct {
	DB  *gorm.DB
	Log zerolog.Logger
}

// NewSummaryService constructs a SummaryService.
func NewSummaryService(db *gorm.DB, log zerolog.Logger) *SummaryService {
	return &SummaryService{DB: db, Log: log.With().Str("component", "summaries").Logger()}
}

// ItemCount is a (product name, quantity) pair used across summaries.
type ItemCount struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// OrderDigest is a compact view of one order inside a customer breakdown.
type OrderDigest struct {
	OrderID   string      `json:"order_id"`
	OrderTime string      `json:"order_time"`
	Status    string      `json:"status"`
	Items     []OrderItem `json:"items"`
}

// OrderItem is a single line inside an OrderDigest.
type OrderItem struct {
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// CustomerBreakdown is one customer's slice of a daily summary.
type CustomerBreakdown struct {
	CustomerName  string        `json:"customer_name"`
	CustomerPhone string        `json:"customer_phone"`
	Items         []ItemCount   `json:"items"`
	TotalQuantity int           `json:"total_quantity"`
	TotalOrders   int           `json:"total_orders"`
	Orders        []OrderDigest `json:"orders"`
}

// DailySummary is the full daily report for one calendar day.
type DailySummary struct {
	Date           string              `json:"date"`
	TotalOrders    int                 `json:"total_orders"`
	TotalCustomers int                 `json:"total_customers"`
	TotalItems     int                 `json:"total_items"`
	Customers      []CustomerBreakdown `json:"customers"`
	GeneratedAt    time.Time           `json:"generated_at"`
}

// DayBucket is one calendar day inside a weekly summary.
type DayBucket struct {
	Date      string `json:"date"`
	Orders    int    `json:"orders"`
	Customers int    `json:"customers"`
	Items     int    `json:"items"`
}

// WeeklySummary covers seven days starting at WeekStart.
type WeeklySummary struct {
	WeekStart      string      `json:"week_start"`
	WeekEnd        string      `json:"week_end"`
	TotalOrders    int         `json:"total_orders"`
	TotalCustomers int         `json:"total_customers"`
	TotalItems     int         `json:"total_items"`
	DailyBreakdown []DayBucket `json:"daily_breakdown"`
	TopProducts    []ItemCount `json:"top_products"`
	GeneratedAt    time.Time   `json:"generated_at"`
}

// RecentOrder is a compact entry in a customer summary's history.
type RecentOrder struct {
	OrderID    string `json:"order_id"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	ItemsCount int    `json:"items_count"`
	Status     string `json:"status"`
}

// FavoriteProduct ranks a product by a customer's accumulated quantity.
type FavoriteProduct struct {
	Name          string `json:"name"`
	TotalQuantity int    `json:"total_quantity"`
}

// CustomerSummary analyzes one customer's trailing order window.
type CustomerSummary struct {
	CustomerID         string            `json:"customer_id"`
	CustomerName       string            `json:"customer_name"`
	CustomerPhone      string            `json:"customer_phone"`
	AnalysisPeriodDays int               `json:"analysis_period_days"`
	TotalOrders        int               `json:"total_orders"`
	TotalItems         int               `json:"total_items"`
	AverageOrderSize   float64           `json:"average_order_size"`
	FavoriteProducts   []FavoriteProduct `json:"favorite_products"`
	FrequencyByWeekday map[string]int    `json:"order_frequency_by_day"`
	RecentOrders       []RecentOrder     `json:"recent_orders"`
	GeneratedAt        time.Time         `json:"generated_at"`
}

// ProductStat is one product's popularity record over a trailing window.
type ProductStat struct {
	Name            string  `json:"name"`
	TotalQuantity   int     `json:"total_quantity"`
	TotalOrders     int     `json:"total_orders"`
	UniqueCustomers int     `json:"unique_customers"`
	AvgQtyPerOrder  float64 `json:"average_quantity_per_order"`
}

// ProductSummary ranks products by popularity over a trailing window.
type ProductSummary struct {
	AnalysisPeriodDays  int           `json:"analysis_period_days"`
	TotalProducts       int           `json:"total_products"`
	TotalOrdersAnalyzed int           `json:"total_orders_analyzed"`
	Products            []ProductStat `json:"products"`
	GeneratedAt         time.Time     `json:"generated_at"`
}

// Daily builds the report for one UTC calendar day, optionally restricted
// to a single group. A day with no orders yields a zero-valued summary,
// not an error.
func (s *SummaryService) Daily(ctx context.Context, day time.Time, groupID string) (*DailySummary, error) {
	tr := otel.Tracer("services/SummaryService")
	ctx, span := tr.Start(ctx, "Daily",
		trace.WithAttributes(attribute.String("summary.date", day.UTC().Format("2006-01-02"))),
	)
	defer span.End()

	orders, err := repo.ListOrdersForDate(ctx, s.DB, day, groupID)
	if err != nil {
		return nil, err
	}

	out := &DailySummary{
		Date:        day.UTC().Format("2006-01-02"),
		GeneratedAt: time.Now().UTC(),
	}

	byCustomer := map[string]*CustomerBreakdown{}
	var customerOrder []string // first-appearance order of customer ids
	for _, o := range orders {
		cb, ok := byCustomer[o.CustomerID]
		if !ok {
			cb = &CustomerBreakdown{
				CustomerName:  o.Customer.Name,
				CustomerPhone: o.Customer.Phone,
			}
			byCustomer[o.CustomerID] = cb
			customerOrder = append(customerOrder, o.CustomerID)
		}

		digest := OrderDigest{
			OrderID:   o.ID,
			OrderTime: o.OrderTime,
			Status:    o.Status,
		}
		for _, line := range o.Lines {
			digest.Items = append(digest.Items, OrderItem{
				ProductName: line.ProductName,
				Quantity:    line.Quantity,
				UnitPrice:   line.UnitPrice,
				Notes:       line.Notes,
			})
			addItemCount(&cb.Items, line.ProductName, line.Quantity)
			cb.TotalQuantity += line.Quantity
			out.TotalItems += line.Quantity
		}
		cb.Orders = append(cb.Orders, digest)
	}

	out.TotalOrders = len(orders)
	out.TotalCustomers = len(byCustomer)
	for _, id := range customerOrder {
		cb := byCustomer[id]
		cb.TotalOrders = len(cb.Orders)
		out.Customers = append(out.Customers, *cb)
	}
	return out, nil
}

// SaveDaily builds the daily report and persists it as an immutable Summary
// snapshot row, returning both.
func (s *SummaryService) SaveDaily(ctx context.Context, day time.Time, groupID string) (*domain.Summary, *DailySummary, error) {
	daily, err := s.Daily(ctx, day, groupID)
	if err != nil {
		return nil, nil, err
	}
	payload, err := json.Marshal(daily)
	if err != nil {
		return nil, nil, err
	}

	var gid *string
	if groupID != "" {
		gid = &groupID
	}
	snap := &domain.Summary{
		Kind:           domain.SummaryDaily,
		SummaryDate:    time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
		GroupID:        gid,
		TotalOrders:    daily.TotalOrders,
		TotalCustomers: daily.TotalCustomers,
		TotalItems:     daily.TotalItems,
		Payload:        payload,
	}
	if err := repo.CreateSummary(ctx, s.DB, snap); err != nil {
		return nil, nil, err
	}
	s.Log.Info().
		Str("summary_id", snap.ID).
		Str("date", daily.Date).
		Int("orders", daily.TotalOrders).
		Msg("persisted daily summary")
	return snap, daily, nil
}

// Weekly builds the report for the seven days starting at weekStart (UTC),
// optionally restricted to a single group.
func (s *SummaryService) Weekly(ctx context.Context, weekStart time.Time, groupID string) (*WeeklySummary, error) {
	tr := otel.Tracer("services/SummaryService")
	ctx, span := tr.Start(ctx, "Weekly")
	defer span.End()

	start := time.Date(weekStart.Year(), weekStart.Month(), weekStart.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)

	orders, err := repo.ListOrdersBetween(ctx, s.DB, start, end, groupID)
	if err != nil {
		return nil, err
	}

	out := &WeeklySummary{
		WeekStart:   start.Format("2006-01-02"),
		WeekEnd:     end.AddDate(0, 0, -1).Format("2006-01-02"),
		GeneratedAt: time.Now().UTC(),
	}

	buckets := map[string]*DayBucket{}
	dayCustomers := map[string]map[string]struct{}{}
	weekCustomers := map[string]struct{}{}
	productTotals := []ItemCount{}

	for _, o := range orders {
		date := o.OrderDate.UTC().Format("2006-01-02")
		b, ok := buckets[date]
		if !ok {
			b = &DayBucket{Date: date}
			buckets[date] = b
			dayCustomers[date] = map[string]struct{}{}
		}
		b.Orders++
		dayCustomers[date][o.CustomerID] = struct{}{}
		weekCustomers[o.CustomerID] = struct{}{}
		out.TotalOrders++

		for _, line := range o.Lines {
			b.Items += line.Quantity
			out.TotalItems += line.Quantity
			addItemCount(&productTotals, line.ProductName, line.Quantity)
		}
	}

	for date, b := range buckets {
		b.Customers = len(dayCustomers[date])
		out.DailyBreakdown = append(out.DailyBreakdown, *b)
	}
	sort.Slice(out.DailyBreakdown, func(i, j int) bool {
		return out.DailyBreakdown[i].Date < out.DailyBreakdown[j].Date
	})

	sort.SliceStable(productTotals, func(i, j int) bool {
		return productTotals[i].Quantity > productTotals[j].Quantity
	})
	out.TopProducts = productTotals
	out.TotalCustomers = len(weekCustomers)
	return out, nil
}

// Customer analyzes one customer's orders over the trailing daysBack
// window: favorite products (top 10 by quantity), order frequency by
// weekday, average order size (rounded to 2 decimals), and up to 20 most
// recent orders.
func (s *SummaryService) Customer(ctx context.Context, customerID string, daysBack int) (*CustomerSummary, error) {
	tr := otel.Tracer("services/SummaryService")
	ctx, span := tr.Start(ctx, "Customer",
		trace.WithAttributes(attribute.String("customer.id", customerID)),
	)
	defer span.End()

	c, err := repo.GetCustomer(ctx, s.DB, customerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -daysBack)
	orders, err := repo.ListOrdersForCustomerSince(ctx, s.DB, customerID, cutoff)
	if err != nil {
		return nil, err
	}

	out := &CustomerSummary{
		CustomerID:         customerID,
		CustomerName:       c.Name,
		CustomerPhone:      c.Phone,
		AnalysisPeriodDays: daysBack,
		TotalOrders:        len(orders),
		FrequencyByWeekday: map[string]int{},
		GeneratedAt:        time.Now().UTC(),
	}

	favorites := []ItemCount{}
	for _, o := range orders {
		itemsCount := 0
		for _, line := range o.Lines {
			itemsCount += line.Quantity
			addItemCount(&favorites, line.ProductName, line.Quantity)
		}
		out.TotalItems += itemsCount
		out.FrequencyByWeekday[o.OrderDate.UTC().Weekday().String()]++

		if len(out.RecentOrders) < 20 {
			out.RecentOrders = append(out.RecentOrders, RecentOrder{
				OrderID:    o.ID,
				Date:       o.OrderDate.UTC().Format("2006-01-02"),
				Time:       o.OrderTime,
				ItemsCount: itemsCount,
				Status:     o.Status,
			})
		}
	}

	if out.TotalOrders > 0 {
		out.AverageOrderSize = round2(float64(out.TotalItems) / float64(out.TotalOrders))
	}

	sort.SliceStable(favorites, func(i, j int) bool {
		return favorites[i].Quantity > favorites[j].Quantity
	})
	if len(favorites) > 10 {
		favorites = favorites[:10]
	}
	for _, f := range favorites {
		out.FavoriteProducts = append(out.FavoriteProducts, FavoriteProduct{
			Name:          f.Name,
			TotalQuantity: f.Quantity,
		})
	}
	return out, nil
}

// Product ranks every product seen over the trailing daysBack window by
// total quantity descending, with order counts, unique-customer counts,
// and per-order quantity averages.
func (s *SummaryService) Product(ctx context.Context, daysBack int) (*ProductSummary, error) {
	tr := otel.Tracer("services/SummaryService")
	ctx, span := tr.Start(ctx, "Product")
	defer span.End()

	cutoff := time.Now().UTC().AddDate(0, 0, -daysBack)
	lines, err := repo.ListLinesSince(ctx, s.DB, cutoff)
	if err != nil {
		return nil, err
	}

	type acc struct {
		stat      ProductStat
		customers map[string]struct{}
	}
	byName := map[string]*acc{}
	var nameOrder []string
	orderIDs := map[string]struct{}{}

	for _, line := range lines {
		a, ok := byName[line.ProductName]
		if !ok {
			a = &acc{
				stat:      ProductStat{Name: line.ProductName},
				customers: map[string]struct{}{},
			}
			byName[line.ProductName] = a
			nameOrder = append(nameOrder, line.ProductName)
		}
		a.stat.TotalQuantity += line.Quantity
		a.stat.TotalOrders++
		a.customers[line.Order.CustomerID] = struct{}{}
		orderIDs[line.OrderID] = struct{}{}
	}

	out := &ProductSummary{
		AnalysisPeriodDays:  daysBack,
		TotalProducts:       len(byName),
		TotalOrdersAnalyzed: len(orderIDs),
		GeneratedAt:         time.Now().UTC(),
	}
	for _, name := range nameOrder {
		a := byName[name]
		a.stat.UniqueCustomers = len(a.customers)
		a.stat.AvgQtyPerOrder = round2(float64(a.stat.TotalQuantity) / float64(a.stat.TotalOrders))
		out.Products = append(out.Products, a.stat)
	}
	sort.SliceStable(out.Products, func(i, j int) bool {
		return out.Products[i].TotalQuantity > out.Products[j].TotalQuantity
	})
	return out, nil
}

// addItemCount accumulates quantity into the named entry, appending on
// first appearance so ranking ties keep insertion order.
func addItemCount(items *[]ItemCount, name string, qty int) {
	for i := range *items {
		if (*items)[i].Name == name {
			(*items)[i].Quantity += qty
			return
		}
	}
	*items = append(*items, ItemCount{Name: name, Quantity: qty})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
