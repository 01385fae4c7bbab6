package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func tieredPromo(id string, targets []string, tiers ...Tier) Promotion {
	return Promotion{ID: id, Name: id, Active: true, TargetIDs: targets, Tiers: tiers}
}

func TestApplyPromotionsTierSelection(t *testing.T) {
	promo := tieredPromo("bulk", []string{"sku-1"},
		Tier{MinQty: 1, UnitPrice: 100},
		Tier{MinQty: 5, UnitPrice: 90},
		Tier{MinQty: 10, UnitPrice: 80},
	)
	cases := []struct {
		qty  int
		want Money
	}{
		{qty: 3, want: 100},
		{qty: 7, want: 90},
		{qty: 12, want: 80},
	}
	for _, tc := range cases {
		items := []Item{{ProductID: "sku-1", Qty: tc.qty, OriginalPrice: 120, UnitPrice: 120}}
		priced := ApplyPromotions(items, []Promotion{promo})
		require.Equal(t, tc.want, priced[0].UnitPrice, "qty %d", tc.qty)
	}
}

func TestApplyPromotionsIdempotent(t *testing.T) {
	promos := []Promotion{tieredPromo("bulk", []string{"sku-1"}, Tier{MinQty: 5, UnitPrice: 90})}
	items := []Item{
		{ProductID: "sku-1", Qty: 6, OriginalPrice: 120, UnitPrice: 120},
		{ProductID: "sku-2", Qty: 1, OriginalPrice: 50, UnitPrice: 50},
	}
	once := ApplyPromotions(items, promos)
	twice := ApplyPromotions(once, promos)
	require.Equal(t, once, twice)
	require.Equal(t, Money(90), once[0].UnitPrice)
	require.Equal(t, Money(50), once[1].UnitPrice)
}

func TestApplyPromotionsRevertsWhenNoTierQualifies(t *testing.T) {
	promos := []Promotion{tieredPromo("bulk", []string{"sku-1"}, Tier{MinQty: 10, UnitPrice: 80})}
	items := []Item{{ProductID: "sku-1", Qty: 2, OriginalPrice: 120, UnitPrice: 80}}
	priced := ApplyPromotions(items, promos)
	require.Equal(t, Money(120), priced[0].UnitPrice)
}

func TestApplyPromotionsInactiveOrUntargeted(t *testing.T) {
	inactive := tieredPromo("off", []string{"sku-1"}, Tier{MinQty: 1, UnitPrice: 10})
	inactive.Active = false
	other := tieredPromo("other", []string{"sku-9"}, Tier{MinQty: 1, UnitPrice: 10})
	items := []Item{{ProductID: "sku-1", Qty: 3, OriginalPrice: 120, UnitPrice: 120}}
	priced := ApplyPromotions(items, []Promotion{inactive, other})
	require.Equal(t, Money(120), priced[0].UnitPrice)
}

func TestApplyPromotionsLowestPriceWins(t *testing.T) {
	a := tieredPromo("promo-b", []string{"sku-1"}, Tier{MinQty: 1, UnitPrice: 95})
	b := tieredPromo("promo-a", []string{"sku-1"}, Tier{MinQty: 1, UnitPrice: 90})
	items := []Item{{ProductID: "sku-1", Qty: 1, OriginalPrice: 120, UnitPrice: 120}}
	priced := ApplyPromotions(items, []Promotion{a, b})
	require.Equal(t, Money(90), priced[0].UnitPrice)

	// Order of the promotion list must not matter.
	priced = ApplyPromotions(items, []Promotion{b, a})
	require.Equal(t, Money(90), priced[0].UnitPrice)
}

func TestComputeSummaryProfit(t *testing.T) {
	items := []Item{{ProductID: "sku-1", Qty: 2, UnitPrice: 100, OriginalPrice: 100, UnitCost: 60}}
	s := ComputeSummary(items, Discount{})
	require.Equal(t, Money(200), s.Subtotal)
	require.Equal(t, Money(200), s.Total)
	require.Equal(t, Money(80), s.Profit)
}

func TestComputeSummaryEmptyCart(t *testing.T) {
	require.Equal(t, Summary{}, ComputeSummary(nil, Discount{Type: DiscountPercent, Value: 10}))
}

func TestComputeSummaryTotalNeverNegative(t *testing.T) {
	items := []Item{{ProductID: "sku-1", Qty: 1, UnitPrice: 50, OriginalPrice: 50, UnitCost: 10}}
	s := ComputeSummary(items, Discount{Type: DiscountAmount, Value: 500})
	require.Equal(t, Money(50), s.Subtotal)
	require.Equal(t, Money(500), s.BillDiscount)
	require.Equal(t, Money(0), s.Total)
}

func TestComputeSummaryItemDiscounts(t *testing.T) {
	items := []Item{
		{ProductID: "a", Qty: 2, UnitPrice: 100, UnitCost: 40, Discount: Discount{Type: DiscountPercent, Value: 10}},
		{ProductID: "b", Qty: 1, UnitPrice: 80, UnitCost: 30, Discount: Discount{Type: DiscountAmount, Value: 200}},
	}
	s := ComputeSummary(items, Discount{})
	// Line a: 200 - 20, line b: 80 - 80 (fixed discount clamps at line total).
	require.Equal(t, Money(180), s.Subtotal)
	require.Equal(t, Money(100), s.ItemDiscount)
	require.Equal(t, Money(180), s.Total)
	require.Equal(t, Money(180-110), s.Profit)
}

func TestComputeSummaryBillPercent(t *testing.T) {
	items := []Item{{ProductID: "a", Qty: 4, UnitPrice: 50}}
	s := ComputeSummary(items, Discount{Type: DiscountPercent, Value: 25})
	require.Equal(t, Money(200), s.Subtotal)
	require.Equal(t, Money(50), s.BillDiscount)
	require.Equal(t, Money(150), s.Total)
}

func TestDiscountNormalize(t *testing.T) {
	require.Equal(t, int64(100), Discount{Type: DiscountPercent, Value: 250}.Normalize().Value)
	require.Equal(t, int64(0), Discount{Type: DiscountAmount, Value: -5}.Normalize().Value)
}

func TestDropEmptyAndClamp(t *testing.T) {
	require.Equal(t, 0, ClampQty(-3))
	items := []Item{
		{ProductID: "a", Qty: 0},
		{ProductID: "b", Qty: 2},
	}
	kept := DropEmpty(items)
	require.Len(t, kept, 1)
	require.Equal(t, "b", kept[0].ProductID)
}
