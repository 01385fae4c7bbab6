package sales

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/events"
	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/pricing"
	"github.com/noah-isme/backend-pos/internal/store"
)

var (
	ErrNotFound          = errors.New("sale not found")
	ErrInvalidInput      = errors.New("invalid sale input")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// InsufficientStockError reports the first product whose requested
// quantity exceeds availability. No stock is mutated when it occurs.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

// Shortfall is the amount by which the request exceeds availability.
func (e *InsufficientStockError) Shortfall() int { return e.Requested - e.Available }

// CommitInput is a checkout request. ReplacesID points at a prior sale
// being edited; its stock effect is reversed and the prior record
// cancelled in the same unit of work that persists the new one.
type CommitInput struct {
	Items        []pricing.Item
	BillDiscount pricing.Discount
	Meta         Meta
	Status       Status
	ReplacesID   string
}

// Service reconciles sale records against product stock. Every commit,
// approval and cancellation applies its record and stock writes as a
// single store batch so readers never observe a half-applied sale.
type Service struct {
	Products store.Collection[catalog.Product]
	Sales    store.Collection[Record]
	Events   *events.Bus

	// AutoComplete picks the status for commits that do not request one.
	AutoComplete bool

	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ValidateStock checks that every line can be fulfilled from current
// stock. reserved credits back quantities already deducted by a prior
// version of the sale, keyed by product id.
func (s *Service) ValidateStock(ctx context.Context, items []pricing.Item, reserved map[string]int) error {
	if s == nil {
		return ErrInvalidInput
	}
	need := map[string]int{}
	for _, it := range items {
		need[it.ProductID] += it.Qty
	}
	ids := make([]string, 0, len(need))
	for id := range need {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p, err := s.Products.Get(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: unknown product %s", ErrInvalidInput, id)
			}
			return fmt.Errorf("load product %s: %w", id, err)
		}
		available := p.Stock + reserved[id]
		if need[id] > available {
			if obs.StockRejections != nil {
				obs.StockRejections.Inc()
			}
			return &InsufficientStockError{ProductID: id, Requested: need[id], Available: available}
		}
	}
	return nil
}

// Commit validates and persists a sale. A completed sale deducts stock;
// a pending one does not touch it. When ReplacesID is set the prior
// record's deduction is restored, the prior record marked cancelled and
// the new snapshot written, all in one batch.
func (s *Service) Commit(ctx context.Context, in CommitInput) (Record, error) {
	if s == nil {
		return Record{}, ErrInvalidInput
	}
	items := pricing.DropEmpty(in.Items)
	if len(items) == 0 {
		return Record{}, fmt.Errorf("%w: no items", ErrInvalidInput)
	}
	for i := range items {
		items[i].Qty = pricing.ClampQty(items[i].Qty)
		items[i].Discount = items[i].Discount.Normalize()
	}

	status := in.Status
	switch status {
	case "":
		status = StatusPending
		if s.AutoComplete {
			status = StatusCompleted
		}
	case StatusPending, StatusCompleted:
	default:
		return Record{}, fmt.Errorf("%w: status %q", ErrInvalidInput, in.Status)
	}

	var prior *Record
	if in.ReplacesID != "" {
		old, err := s.Sales.Get(ctx, in.ReplacesID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Record{}, fmt.Errorf("%w: prior sale %s", ErrNotFound, in.ReplacesID)
			}
			return Record{}, err
		}
		prior = &old
	}

	// Stock already held by the prior completed version counts as
	// available again for the replacement.
	reserved := map[string]int{}
	if prior != nil && prior.Status == StatusCompleted {
		for _, it := range prior.Items {
			reserved[it.ProductID] += it.Qty
		}
	}
	if status == StatusCompleted {
		if err := s.ValidateStock(ctx, items, reserved); err != nil {
			return Record{}, err
		}
	} else if err := s.checkProductsExist(ctx, items); err != nil {
		return Record{}, err
	}

	delta := map[string]int{}
	for id, qty := range reserved {
		delta[id] += qty
	}
	if status == StatusCompleted {
		for _, it := range items {
			delta[it.ProductID] -= it.Qty
		}
	}

	id, err := s.nextID(ctx)
	if err != nil {
		return Record{}, err
	}
	rec := Record{
		ID:           id,
		Items:        items,
		BillDiscount: in.BillDiscount.Normalize(),
		Summary:      pricing.ComputeSummary(items, in.BillDiscount),
		Meta:         in.Meta,
		Status:       status,
		Timestamp:    s.now(),
	}

	writes, err := s.stockWrites(ctx, delta)
	if err != nil {
		return Record{}, err
	}
	if prior != nil && prior.Status != StatusCancelled {
		w, err := s.Sales.MergeWrite(prior.ID, map[string]any{"status": StatusCancelled})
		if err != nil {
			return Record{}, err
		}
		writes = append(writes, w)
	}
	put, err := s.Sales.PutWrite(rec)
	if err != nil {
		return Record{}, err
	}
	writes = append(writes, put)
	if err := s.Sales.Store.Apply(ctx, writes...); err != nil {
		return Record{}, fmt.Errorf("commit sale %s: %w", rec.ID, err)
	}

	if obs.SalesCommitted != nil {
		obs.SalesCommitted.WithLabelValues(string(status)).Inc()
	}
	s.emit(ctx, events.TopicSaleCommitted, rec)
	return rec, nil
}

// Approve moves a pending sale to completed, deducting stock. Any other
// starting status is an invalid transition.
func (s *Service) Approve(ctx context.Context, id string) (Record, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if rec.Status != StatusPending {
		return Record{}, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, rec.Status)
	}
	if err := s.ValidateStock(ctx, rec.Items, nil); err != nil {
		return Record{}, err
	}

	delta := map[string]int{}
	for _, it := range rec.Items {
		delta[it.ProductID] -= it.Qty
	}
	writes, err := s.stockWrites(ctx, delta)
	if err != nil {
		return Record{}, err
	}
	mark, err := s.Sales.MergeWrite(id, map[string]any{"status": StatusCompleted})
	if err != nil {
		return Record{}, err
	}
	writes = append(writes, mark)
	if err := s.Sales.Store.Apply(ctx, writes...); err != nil {
		return Record{}, fmt.Errorf("approve sale %s: %w", id, err)
	}

	rec.Status = StatusCompleted
	if obs.SalesApproved != nil {
		obs.SalesApproved.Inc()
	}
	s.emit(ctx, events.TopicSaleApproved, rec)
	return rec, nil
}

// Cancel reverses a sale. Completed sales get their stock restored
// exactly once; pending sales are cancelled without touching stock.
// Cancelling a missing or already cancelled sale is a no-op.
func (s *Service) Cancel(ctx context.Context, id string) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if rec.Status == StatusCancelled {
		return nil
	}

	var writes []store.Write
	if rec.Status == StatusCompleted {
		delta := map[string]int{}
		for _, it := range rec.Items {
			delta[it.ProductID] += it.Qty
		}
		writes, err = s.stockWrites(ctx, delta)
		if err != nil {
			return err
		}
	}
	mark, err := s.Sales.MergeWrite(id, map[string]any{"status": StatusCancelled})
	if err != nil {
		return err
	}
	writes = append(writes, mark)
	if err := s.Sales.Store.Apply(ctx, writes...); err != nil {
		return fmt.Errorf("cancel sale %s: %w", id, err)
	}

	rec.Status = StatusCancelled
	if obs.SalesCancelled != nil {
		obs.SalesCancelled.Inc()
	}
	s.emit(ctx, events.TopicSaleCancelled, rec)
	return nil
}

// UpdateDetails rewrites customer, shipping and payment metadata. Items,
// summary and status are untouched; editing those goes through Commit
// with ReplacesID.
func (s *Service) UpdateDetails(ctx context.Context, id string, meta Meta) (Record, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	rec.Meta = meta
	if err := s.Sales.Put(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("update sale %s: %w", id, err)
	}
	return rec, nil
}

// Get returns a sale record by id.
func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	if s == nil || id == "" {
		return Record{}, ErrNotFound
	}
	rec, err := s.Sales.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// List returns all sales, newest first.
func (s *Service) List(ctx context.Context) ([]Record, error) {
	if s == nil {
		return nil, nil
	}
	recs, err := s.Sales.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Timestamp.After(recs[j].Timestamp) })
	return recs, nil
}

func (s *Service) checkProductsExist(ctx context.Context, items []pricing.Item) error {
	seen := map[string]bool{}
	for _, it := range items {
		if seen[it.ProductID] {
			continue
		}
		seen[it.ProductID] = true
		if _, err := s.Products.Get(ctx, it.ProductID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: unknown product %s", ErrInvalidInput, it.ProductID)
			}
			return fmt.Errorf("load product %s: %w", it.ProductID, err)
		}
	}
	return nil
}

// stockWrites turns a per-product quantity delta into merge writes
// carrying absolute stock values. Zero deltas produce no write.
func (s *Service) stockWrites(ctx context.Context, delta map[string]int) ([]store.Write, error) {
	ids := make([]string, 0, len(delta))
	for id, d := range delta {
		if d != 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	writes := make([]store.Write, 0, len(ids))
	for _, id := range ids {
		p, err := s.Products.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load product %s: %w", id, err)
		}
		w, err := s.Products.MergeWrite(id, map[string]any{"stock": p.Stock + delta[id]})
		if err != nil {
			return nil, err
		}
		writes = append(writes, w)
	}
	return writes, nil
}

// nextID allocates a time-derived invoice id, suffixing on collision.
// A store failure during probing aborts the commit rather than retrying.
func (s *Service) nextID(ctx context.Context) (string, error) {
	base := fmt.Sprintf("INV-%d", s.now().UnixMilli())
	id := base
	for n := 1; ; n++ {
		_, err := s.Sales.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", fmt.Errorf("allocate sale id: %w", err)
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
}

func (s *Service) emit(ctx context.Context, topic string, rec Record) {
	if s.Events == nil {
		return
	}
	_, _ = s.Events.Emit(ctx, topic, rec.ID, map[string]any{
		"status": rec.Status,
		"total":  rec.Summary.Total,
	})
}
