package pricing

import "sort"

// Money represents a monetary value stored in minor units.
type Money = int64

// DiscountType distinguishes percentage discounts from fixed amounts.
type DiscountType string

const (
	// DiscountPercent reduces a base amount by value percent.
	DiscountPercent DiscountType = "percent"
	// DiscountAmount reduces a base amount by a fixed value.
	DiscountAmount DiscountType = "amount"
)

// Discount is a single discount applied per line or once per bill.
type Discount struct {
	Type  DiscountType `json:"type"`
	Value int64        `json:"value"`
}

// Normalize clamps the discount value into its valid range: percentages
// to [0,100], fixed amounts to >= 0. Out-of-range values are a
// normalization concern, not a hard error.
func (d Discount) Normalize() Discount {
	if d.Type != DiscountPercent {
		d.Type = DiscountAmount
	}
	if d.Value < 0 {
		d.Value = 0
	}
	if d.Type == DiscountPercent && d.Value > 100 {
		d.Value = 100
	}
	return d
}

// amountOff returns the discount applied to base, never exceeding base.
func (d Discount) amountOff(base Money) Money {
	d = d.Normalize()
	var off Money
	switch d.Type {
	case DiscountPercent:
		off = base * d.Value / 100
	default:
		off = d.Value
	}
	if off > base {
		off = base
	}
	if off < 0 {
		off = 0
	}
	return off
}

// Tier is a quantity threshold with the unit price that applies once a
// line item's quantity reaches it.
type Tier struct {
	MinQty    int   `json:"minQty"`
	UnitPrice Money `json:"unitPrice"`
}

// Promotion is a tiered pricing rule targeting a set of product ids.
type Promotion struct {
	ID        string
	Name      string
	Active    bool
	TargetIDs []string
	Tiers     []Tier
}

// Targets reports whether the promotion applies to the given product.
func (p Promotion) Targets(productID string) bool {
	for _, id := range p.TargetIDs {
		if id == productID {
			return true
		}
	}
	return false
}

// Resolve returns the tier price for the given quantity. Tiers are
// evaluated by descending MinQty; the highest threshold the quantity
// qualifies for wins. The second return is false when no tier qualifies.
func (p Promotion) Resolve(qty int) (Money, bool) {
	if len(p.Tiers) == 0 {
		return 0, false
	}
	tiers := make([]Tier, len(p.Tiers))
	copy(tiers, p.Tiers)
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].MinQty > tiers[j].MinQty })
	for _, tier := range tiers {
		if qty >= tier.MinQty {
			return tier.UnitPrice, true
		}
	}
	return 0, false
}

// Item describes a cart line used for pricing calculation. OriginalPrice
// is the catalog price captured when the item was added; UnitPrice is
// the effective price after promotion application.
type Item struct {
	ProductID     string   `json:"productId"`
	Name          string   `json:"name"`
	Qty           int      `json:"qty"`
	UnitPrice     Money    `json:"unitPrice"`
	OriginalPrice Money    `json:"originalPrice"`
	UnitCost      Money    `json:"unitCost"`
	Discount      Discount `json:"discount"`
}

// LineTotal returns the line price after the item-level discount.
func (it Item) LineTotal() Money {
	if it.Qty <= 0 {
		return 0
	}
	line := Money(it.Qty) * it.UnitPrice
	return line - it.Discount.amountOff(line)
}

// Summary aggregates computed pricing components for a cart.
type Summary struct {
	Subtotal     Money `json:"subtotal"`
	ItemDiscount Money `json:"itemDiscount"`
	BillDiscount Money `json:"billDiscount"`
	Total        Money `json:"total"`
	Profit       Money `json:"profit"`
}

// ApplyPromotions recomputes each item's effective unit price from its
// original price and the active promotions. The operation is idempotent:
// prices always reset from OriginalPrice before reapplying, so running
// it on its own output yields the same result.
//
// When several active promotions target the same product with a
// qualifying tier, the lowest resulting unit price wins; ties break on
// promotion ID.
func ApplyPromotions(items []Item, promos []Promotion) []Item {
	out := make([]Item, len(items))
	for i, item := range items {
		item.UnitPrice = item.OriginalPrice
		best, bestPromo := item.OriginalPrice, ""
		matched := false
		for _, promo := range promos {
			if !promo.Active || !promo.Targets(item.ProductID) {
				continue
			}
			price, ok := promo.Resolve(item.Qty)
			if !ok {
				continue
			}
			if !matched || price < best || (price == best && promo.ID < bestPromo) {
				best, bestPromo = price, promo.ID
				matched = true
			}
		}
		if matched {
			item.UnitPrice = best
		}
		out[i] = item
	}
	return out
}

// ComputeSummary calculates cart totals given the effective item prices
// and an optional bill-level discount. Pure function; an empty cart
// yields all zeroes. Total is clamped to >= 0 and profit is revenue
// after discounts minus undiscounted cost.
func ComputeSummary(items []Item, bill Discount) Summary {
	var s Summary
	var cost Money
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		line := Money(it.Qty) * it.UnitPrice
		off := it.Discount.amountOff(line)
		s.Subtotal += line - off
		s.ItemDiscount += off
		cost += Money(it.Qty) * it.UnitCost
	}
	// The bill discount may exceed the subtotal; only the total is
	// floored at zero.
	bill = bill.Normalize()
	switch bill.Type {
	case DiscountPercent:
		if s.Subtotal > 0 {
			s.BillDiscount = s.Subtotal * bill.Value / 100
		}
	default:
		s.BillDiscount = bill.Value
	}
	s.Total = s.Subtotal - s.BillDiscount
	if s.Total < 0 {
		s.Total = 0
	}
	s.Profit = s.Total - cost
	return s
}

// ClampQty normalizes a requested quantity, disallowing negatives.
func ClampQty(qty int) int {
	if qty < 0 {
		return 0
	}
	return qty
}

// DropEmpty removes zero-quantity lines. Carts never keep a line whose
// quantity reached zero.
func DropEmpty(items []Item) []Item {
	out := items[:0]
	for _, it := range items {
		if it.Qty > 0 {
			out = append(out, it)
		}
	}
	return out
}
