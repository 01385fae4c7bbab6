package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/backend-pos/internal/events"
	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/pricing"
	"github.com/noah-isme/backend-pos/internal/store"
)

// ErrNotFound indicates the requested product could not be located.
var ErrNotFound = errors.New("product not found")

// ErrDuplicateID is returned when creating a product whose id already
// exists; the existing record is kept untouched.
var ErrDuplicateID = errors.New("product id already exists")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// Collection is the store collection name for products.
const Collection = "products"

// Product is a catalog entry. Stock is mutated only by the sales
// reconciler once committed; catalog writes treat stock as an absolute
// manual correction.
type Product struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Cost     pricing.Money `json:"cost"`
	Price    pricing.Money `json:"price"`
	Category string        `json:"category"`
	Stock    int           `json:"stock"`
}

// DocumentID implements store.Record.
func (p Product) DocumentID() string { return p.ID }

// ImportRecord is one row of a bulk stock upload, already parsed by the
// caller. Stock values are absolute, not incremental.
type ImportRecord struct {
	ID       string        `json:"id" validate:"required"`
	Name     string        `json:"name" validate:"required"`
	Cost     pricing.Money `json:"cost" validate:"gte=0"`
	Price    pricing.Money `json:"price" validate:"gte=0"`
	Stock    int           `json:"stock" validate:"gte=0"`
	Category string        `json:"category"`
}

// Service encapsulates product catalog operations.
type Service struct {
	Products store.Collection[Product]
	Events   *events.Bus
}

// List returns all products sorted by name.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	products, err := s.Products.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

// Get loads a single product.
func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	p, err := s.Products.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return Product{}, ErrNotFound
	}
	return p, err
}

// Create stores a new product, rejecting duplicate identifiers.
func (s *Service) Create(ctx context.Context, p Product) (Product, error) {
	p, err := normalize(p)
	if err != nil {
		return Product{}, err
	}
	if _, err := s.Products.Get(ctx, p.ID); err == nil {
		return Product{}, fmt.Errorf("%s: %w", p.ID, ErrDuplicateID)
	} else if !errors.Is(err, store.ErrNotFound) {
		return Product{}, err
	}
	if err := s.Products.Put(ctx, p); err != nil {
		return Product{}, err
	}
	s.emit(ctx, p.ID)
	return p, nil
}

// Update merges the given fields onto an existing product.
func (s *Service) Update(ctx context.Context, id string, fields map[string]any) (Product, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return Product{}, err
	}
	delete(fields, "id")
	if err := s.Products.Merge(ctx, id, fields); err != nil {
		return Product{}, err
	}
	s.emit(ctx, id)
	return s.Get(ctx, id)
}

// Delete removes a product from the catalog.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.Products.Delete(ctx, id); err != nil {
		return err
	}
	s.emit(ctx, id)
	return nil
}

// Import merges bulk records into the catalog by id, overwriting on
// conflict. The reconciler is not involved: imported stock replaces the
// current count.
func (s *Service) Import(ctx context.Context, records []ImportRecord) (int, error) {
	if len(records) == 0 {
		return 0, fmt.Errorf("no records to import: %w", ErrInvalidInput)
	}
	writes := make([]store.Write, 0, len(records))
	for _, rec := range records {
		p, err := normalize(Product{
			ID:       rec.ID,
			Name:     rec.Name,
			Cost:     rec.Cost,
			Price:    rec.Price,
			Category: rec.Category,
			Stock:    rec.Stock,
		})
		if err != nil {
			return 0, fmt.Errorf("record %q: %w", rec.ID, err)
		}
		w, err := s.Products.PutWrite(p)
		if err != nil {
			return 0, err
		}
		writes = append(writes, w)
	}
	if err := s.Products.Store.Apply(ctx, writes...); err != nil {
		return 0, err
	}
	if obs.ProductsImported != nil {
		obs.ProductsImported.Add(float64(len(writes)))
	}
	s.emit(ctx, "bulk-import")
	return len(writes), nil
}

func (s *Service) emit(ctx context.Context, id string) {
	if s.Events == nil {
		return
	}
	_, _ = s.Events.Emit(ctx, events.TopicCatalogUpdated, id, nil)
}

func normalize(p Product) (Product, error) {
	p.ID = strings.TrimSpace(p.ID)
	p.Name = strings.TrimSpace(p.Name)
	if p.ID == "" || p.Name == "" {
		return Product{}, fmt.Errorf("id and name are required: %w", ErrInvalidInput)
	}
	if p.Cost < 0 || p.Price < 0 {
		return Product{}, fmt.Errorf("cost and price must be non-negative: %w", ErrInvalidInput)
	}
	if p.Stock < 0 {
		return Product{}, fmt.Errorf("stock must be non-negative: %w", ErrInvalidInput)
	}
	if strings.TrimSpace(p.Category) == "" {
		p.Category = "general"
	}
	return p, nil
}
