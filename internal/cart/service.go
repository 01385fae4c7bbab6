package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/pricing"
	"github.com/noah-isme/backend-pos/internal/promo"
)

// ErrNotFound indicates the requested cart could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// Cart is an in-progress order being built at a terminal. Carts are
// ephemeral: they live in memory and are discarded after checkout.
type Cart struct {
	ID           string           `json:"id"`
	Items        []pricing.Item   `json:"items"`
	BillDiscount pricing.Discount `json:"billDiscount"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// Summary computes the cart's order summary from its current prices.
func (c Cart) Summary() pricing.Summary {
	return pricing.ComputeSummary(c.Items, c.BillDiscount)
}

// Service keeps the open carts of a store instance and reprices them
// whenever their contents or the promotion catalog change.
type Service struct {
	Catalog *catalog.Service
	Promos  *promo.Service
	Now     func() time.Time

	mu    sync.Mutex
	carts map[string]*Cart
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create opens a new empty cart and returns it.
func (s *Service) Create(_ context.Context) (Cart, error) {
	if s == nil {
		return Cart{}, errors.New("cart service not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.carts == nil {
		s.carts = make(map[string]*Cart)
	}
	c := &Cart{
		ID:           uuid.NewString(),
		BillDiscount: pricing.Discount{Type: pricing.DiscountAmount},
		UpdatedAt:    s.now(),
	}
	s.carts[c.ID] = c
	return *c, nil
}

// Get returns a snapshot of the cart.
func (s *Service) Get(_ context.Context, id string) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[id]
	if !ok {
		return Cart{}, ErrNotFound
	}
	return snapshot(c), nil
}

// AddItem adds qty units of a product, snapshotting its catalog price
// and cost, then reprices the cart.
func (s *Service) AddItem(ctx context.Context, cartID, productID string, qty int) (Cart, error) {
	if qty <= 0 {
		return Cart{}, fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	product, err := s.Catalog.Get(ctx, productID)
	if err != nil {
		return Cart{}, err
	}
	rules, err := s.Promos.Rules(ctx)
	if err != nil {
		return Cart{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[cartID]
	if !ok {
		return Cart{}, ErrNotFound
	}
	found := false
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Qty += qty
			found = true
			break
		}
	}
	if !found {
		c.Items = append(c.Items, pricing.Item{
			ProductID:     product.ID,
			Name:          product.Name,
			Qty:           qty,
			UnitPrice:     product.Price,
			OriginalPrice: product.Price,
			UnitCost:      product.Cost,
			Discount:      pricing.Discount{Type: pricing.DiscountAmount},
		})
	}
	s.reprice(c, rules)
	return snapshot(c), nil
}

// SetQty replaces a line's quantity. Quantities clamp at zero and
// zero-quantity lines are removed.
func (s *Service) SetQty(ctx context.Context, cartID, productID string, qty int) (Cart, error) {
	rules, err := s.Promos.Rules(ctx)
	if err != nil {
		return Cart{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[cartID]
	if !ok {
		return Cart{}, ErrNotFound
	}
	qty = pricing.ClampQty(qty)
	found := false
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Qty = qty
			found = true
			break
		}
	}
	if !found {
		return Cart{}, fmt.Errorf("product %s not in cart: %w", productID, ErrNotFound)
	}
	c.Items = pricing.DropEmpty(c.Items)
	s.reprice(c, rules)
	return snapshot(c), nil
}

// RemoveItem deletes a line from the cart.
func (s *Service) RemoveItem(ctx context.Context, cartID, productID string) (Cart, error) {
	return s.SetQty(ctx, cartID, productID, 0)
}

// SetItemDiscount attaches a per-line discount, clamped to its valid
// range.
func (s *Service) SetItemDiscount(ctx context.Context, cartID, productID string, d pricing.Discount) (Cart, error) {
	rules, err := s.Promos.Rules(ctx)
	if err != nil {
		return Cart{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[cartID]
	if !ok {
		return Cart{}, ErrNotFound
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Discount = d.Normalize()
			s.reprice(c, rules)
			return snapshot(c), nil
		}
	}
	return Cart{}, fmt.Errorf("product %s not in cart: %w", productID, ErrNotFound)
}

// SetBillDiscount attaches the bill-level discount, clamped to its
// valid range.
func (s *Service) SetBillDiscount(_ context.Context, cartID string, d pricing.Discount) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[cartID]
	if !ok {
		return Cart{}, ErrNotFound
	}
	c.BillDiscount = d.Normalize()
	c.UpdatedAt = s.now()
	return snapshot(c), nil
}

// Clear discards the cart after checkout or cancel.
func (s *Service) Clear(_ context.Context, cartID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, cartID)
}

// RepriceAll re-applies promotions to every open cart. Wired to the
// promotion collection's change notification so stale prices are never
// served after a promotion edit.
func (s *Service) RepriceAll(ctx context.Context) error {
	rules, err := s.Promos.Rules(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.carts {
		s.reprice(c, rules)
	}
	return nil
}

// reprice must run with the service lock held.
func (s *Service) reprice(c *Cart, rules []pricing.Promotion) {
	c.Items = pricing.ApplyPromotions(c.Items, rules)
	c.UpdatedAt = s.now()
}

func snapshot(c *Cart) Cart {
	out := *c
	out.Items = make([]pricing.Item, len(c.Items))
	copy(out.Items, c.Items)
	return out
}
