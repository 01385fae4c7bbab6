package report

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/pricing"
	"github.com/noah-isme/backend-pos/internal/sales"
	"github.com/noah-isme/backend-pos/internal/store"
)

// Overview aggregates sales and inventory into a dashboard snapshot.
// Cancelled sales contribute nothing.
type Overview struct {
	From           time.Time     `json:"from"`
	To             time.Time     `json:"to"`
	Transactions   int           `json:"transactions"`
	PendingCount   int           `json:"pendingCount"`
	Revenue        pricing.Money `json:"revenue"`
	Profit         pricing.Money `json:"profit"`
	ItemsSold      int           `json:"itemsSold"`
	StockValuation pricing.Money `json:"stockValuation"`
	RetailValue    pricing.Money `json:"retailValue"`
}

// DailyRow is one day of sales activity.
type DailyRow struct {
	Date         string        `json:"date"`
	Transactions int           `json:"transactions"`
	Revenue      pricing.Money `json:"revenue"`
	Profit       pricing.Money `json:"profit"`
}

// TopProduct ranks a product by quantity sold.
type TopProduct struct {
	ProductID string        `json:"productId"`
	Name      string        `json:"name"`
	QtySold   int           `json:"qtySold"`
	Revenue   pricing.Money `json:"revenue"`
}

// Service computes reports over the sales and product collections, with
// optional Redis caching in front of the aggregation.
type Service struct {
	Sales    store.Collection[sales.Record]
	Products store.Collection[catalog.Product]
	R        *redis.Client
	TTL      time.Duration
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func cacheKey(parts ...any) string {
	formatted := make([]string, 0, len(parts))
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return strings.Join(formatted, ":")
}

// GetOverview returns the dashboard snapshot between from and to,
// inclusive of from and exclusive of to. Zero bounds mean all time.
func (s *Service) GetOverview(ctx context.Context, from, to time.Time) (Overview, error) {
	if s == nil {
		return Overview{}, fmt.Errorf("report service not configured")
	}
	key := cacheKey("rp", "overview", from.Format("2006-01-02"), to.Format("2006-01-02"))
	var cached Overview
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}

	recs, err := s.inRange(ctx, from, to)
	if err != nil {
		return Overview{}, err
	}
	out := Overview{From: from, To: to}
	for _, rec := range recs {
		if rec.Status == sales.StatusCancelled {
			continue
		}
		if rec.Status == sales.StatusPending {
			out.PendingCount++
		}
		out.Transactions++
		out.Revenue += rec.Summary.Total
		out.Profit += rec.Summary.Profit
		for _, it := range rec.Items {
			out.ItemsSold += it.Qty
		}
	}

	products, err := s.Products.List(ctx)
	if err != nil {
		return Overview{}, err
	}
	for _, p := range products {
		out.StockValuation += p.Cost * pricing.Money(p.Stock)
		out.RetailValue += p.Price * pricing.Money(p.Stock)
	}

	s.toCache(ctx, key, out)
	return out, nil
}

// DailySales buckets non-cancelled sales per calendar day (UTC).
func (s *Service) DailySales(ctx context.Context, from, to time.Time) ([]DailyRow, error) {
	if s == nil {
		return nil, fmt.Errorf("report service not configured")
	}
	key := cacheKey("rp", "daily", from.Format("2006-01-02"), to.Format("2006-01-02"))
	var cached []DailyRow
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}

	recs, err := s.inRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	buckets := map[string]*DailyRow{}
	for _, rec := range recs {
		if rec.Status == sales.StatusCancelled {
			continue
		}
		day := rec.Timestamp.UTC().Format("2006-01-02")
		row, ok := buckets[day]
		if !ok {
			row = &DailyRow{Date: day}
			buckets[day] = row
		}
		row.Transactions++
		row.Revenue += rec.Summary.Total
		row.Profit += rec.Summary.Profit
	}
	rows := make([]DailyRow, 0, len(buckets))
	for _, row := range buckets {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })

	s.toCache(ctx, key, rows)
	return rows, nil
}

// TopProducts returns the best sellers by quantity across all
// non-cancelled sales.
func (s *Service) TopProducts(ctx context.Context, limit int) ([]TopProduct, error) {
	if s == nil {
		return nil, fmt.Errorf("report service not configured")
	}
	if limit <= 0 {
		limit = 10
	}
	key := cacheKey("rp", "top", limit)
	var cached []TopProduct
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}

	recs, err := s.Sales.List(ctx)
	if err != nil {
		return nil, err
	}
	agg := map[string]*TopProduct{}
	for _, rec := range recs {
		if rec.Status == sales.StatusCancelled {
			continue
		}
		for _, it := range rec.Items {
			tp, ok := agg[it.ProductID]
			if !ok {
				tp = &TopProduct{ProductID: it.ProductID, Name: it.Name}
				agg[it.ProductID] = tp
			}
			tp.QtySold += it.Qty
			tp.Revenue += it.LineTotal()
		}
	}
	out := make([]TopProduct, 0, len(agg))
	for _, tp := range agg {
		out = append(out, *tp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].QtySold != out[j].QtySold {
			return out[i].QtySold > out[j].QtySold
		}
		return out[i].ProductID < out[j].ProductID
	})
	if len(out) > limit {
		out = out[:limit]
	}

	s.toCache(ctx, key, out)
	return out, nil
}

// Invalidate drops every cached report. Wired to the sales collection's
// change notification so a fresh commit is visible before the TTL runs
// out.
func (s *Service) Invalidate(ctx context.Context) {
	if s == nil || s.R == nil {
		return
	}
	iter := s.R.Scan(ctx, 0, "rp:*", 100).Iterator()
	for iter.Next(ctx) {
		_ = s.R.Del(ctx, iter.Val()).Err()
	}
}

func (s *Service) inRange(ctx context.Context, from, to time.Time) ([]sales.Record, error) {
	recs, err := s.Sales.List(ctx)
	if err != nil {
		return nil, err
	}
	out := recs[:0]
	for _, rec := range recs {
		if !from.IsZero() && rec.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && !rec.Timestamp.Before(to) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Service) fromCache(ctx context.Context, key string, dest any) bool {
	if s.R == nil || s.TTL <= 0 {
		return false
	}
	data, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dest) == nil
}

func (s *Service) toCache(ctx context.Context, key string, value any) {
	if s.R == nil || s.TTL <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.R.Set(ctx, key, data, s.TTL).Err()
}
