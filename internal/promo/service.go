package promo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-pos/internal/events"
	"github.com/noah-isme/backend-pos/internal/pricing"
	"github.com/noah-isme/backend-pos/internal/store"
)

// ErrNotFound indicates the requested promotion could not be located.
var ErrNotFound = errors.New("promotion not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// Collection is the store collection name for promotions.
const Collection = "promotions"

// Bounds on promotion definitions.
const (
	MaxTargets = 50
	MaxTiers   = 10
)

// Promotion is a persisted tiered pricing rule.
type Promotion struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Active    bool           `json:"active"`
	TargetIDs []string       `json:"targetProductIds"`
	Tiers     []pricing.Tier `json:"tiers"`
}

// DocumentID implements store.Record.
func (p Promotion) DocumentID() string { return p.ID }

// Rule converts the record into the pricing engine's input shape.
func (p Promotion) Rule() pricing.Promotion {
	return pricing.Promotion{
		ID:        p.ID,
		Name:      p.Name,
		Active:    p.Active,
		TargetIDs: p.TargetIDs,
		Tiers:     p.Tiers,
	}
}

// Service encapsulates promotion management.
type Service struct {
	Promotions store.Collection[Promotion]
	Events     *events.Bus
}

// List returns all promotions sorted by name.
func (s *Service) List(ctx context.Context) ([]Promotion, error) {
	promos, err := s.Promotions.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(promos, func(i, j int) bool { return promos[i].Name < promos[j].Name })
	return promos, nil
}

// Get loads a single promotion.
func (s *Service) Get(ctx context.Context, id string) (Promotion, error) {
	p, err := s.Promotions.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return Promotion{}, ErrNotFound
	}
	return p, err
}

// Create validates and stores a new promotion.
func (s *Service) Create(ctx context.Context, p Promotion) (Promotion, error) {
	if strings.TrimSpace(p.ID) == "" {
		p.ID = "promo-" + uuid.NewString()[:8]
	}
	p, err := normalize(p)
	if err != nil {
		return Promotion{}, err
	}
	if err := s.Promotions.Put(ctx, p); err != nil {
		return Promotion{}, err
	}
	s.emit(ctx, p.ID)
	return p, nil
}

// Update replaces an existing promotion definition.
func (s *Service) Update(ctx context.Context, p Promotion) (Promotion, error) {
	if _, err := s.Get(ctx, p.ID); err != nil {
		return Promotion{}, err
	}
	p, err := normalize(p)
	if err != nil {
		return Promotion{}, err
	}
	if err := s.Promotions.Put(ctx, p); err != nil {
		return Promotion{}, err
	}
	s.emit(ctx, p.ID)
	return p, nil
}

// Delete removes a promotion.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.Promotions.Delete(ctx, id); err != nil {
		return err
	}
	s.emit(ctx, id)
	return nil
}

// Rules returns the active promotions as pricing engine input.
func (s *Service) Rules(ctx context.Context) ([]pricing.Promotion, error) {
	promos, err := s.Promotions.List(ctx)
	if err != nil {
		return nil, err
	}
	rules := make([]pricing.Promotion, 0, len(promos))
	for _, p := range promos {
		if !p.Active {
			continue
		}
		rules = append(rules, p.Rule())
	}
	return rules, nil
}

func (s *Service) emit(ctx context.Context, id string) {
	if s.Events == nil {
		return
	}
	_, _ = s.Events.Emit(ctx, events.TopicPromotionsUpdated, id, nil)
}

func normalize(p Promotion) (Promotion, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return Promotion{}, fmt.Errorf("name is required: %w", ErrInvalidInput)
	}
	targets := make([]string, 0, len(p.TargetIDs))
	for _, id := range p.TargetIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			targets = append(targets, trimmed)
		}
	}
	if len(targets) > MaxTargets {
		return Promotion{}, fmt.Errorf("at most %d target products: %w", MaxTargets, ErrInvalidInput)
	}
	p.TargetIDs = targets
	if len(p.Tiers) > MaxTiers {
		return Promotion{}, fmt.Errorf("at most %d tiers: %w", MaxTiers, ErrInvalidInput)
	}
	for _, tier := range p.Tiers {
		if tier.MinQty < 1 {
			return Promotion{}, fmt.Errorf("tier minQty must be >= 1: %w", ErrInvalidInput)
		}
		if tier.UnitPrice < 0 {
			return Promotion{}, fmt.Errorf("tier unitPrice must be >= 0: %w", ErrInvalidInput)
		}
	}
	return p, nil
}
