package cart_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/cart"
	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/pricing"
	"github.com/noah-isme/backend-pos/internal/promo"
	"github.com/noah-isme/backend-pos/internal/store"
	"github.com/noah-isme/backend-pos/internal/store/memory"
)

type fixture struct {
	carts   *cart.Service
	catalog *catalog.Service
	promos  *promo.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	backend := memory.New()
	catalogSvc := &catalog.Service{
		Products: store.NewCollection[catalog.Product](backend, catalog.Collection),
	}
	promoSvc := &promo.Service{
		Promotions: store.NewCollection[promo.Promotion](backend, promo.Collection),
	}
	return fixture{
		carts:   &cart.Service{Catalog: catalogSvc, Promos: promoSvc},
		catalog: catalogSvc,
		promos:  promoSvc,
	}
}

func (f fixture) seedProduct(t *testing.T, id string, price, cost pricing.Money) {
	t.Helper()
	_, err := f.catalog.Create(context.Background(), catalog.Product{
		ID: id, Name: id, Price: price, Cost: cost, Stock: 100,
	})
	require.NoError(t, err)
}

func (f fixture) seedPromo(t *testing.T, target string, tiers ...pricing.Tier) {
	t.Helper()
	_, err := f.promos.Create(context.Background(), promo.Promotion{
		Name: "promo " + target, Active: true,
		TargetIDs: []string{target},
		Tiers:     tiers,
	})
	require.NoError(t, err)
}

func TestAddItemSnapshotsCatalogPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedProduct(t, "cola", 500, 300)

	c, err := f.carts.Create(ctx)
	require.NoError(t, err)

	c, err = f.carts.AddItem(ctx, c.ID, "cola", 2)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	require.EqualValues(t, 500, c.Items[0].UnitPrice)
	require.EqualValues(t, 500, c.Items[0].OriginalPrice)
	require.EqualValues(t, 300, c.Items[0].UnitCost)

	// A later catalog price change does not alter the captured line.
	_, err = f.catalog.Update(ctx, "cola", map[string]any{"price": 999})
	require.NoError(t, err)
	got, err := f.carts.Get(ctx, c.ID)
	require.NoError(t, err)
	require.EqualValues(t, 500, got.Items[0].OriginalPrice)
}

func TestAddItemAccumulatesQty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedProduct(t, "cola", 500, 300)

	c, err := f.carts.Create(ctx)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, c.ID, "cola", 2)
	require.NoError(t, err)
	c, err = f.carts.AddItem(ctx, c.ID, "cola", 3)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	require.Equal(t, 5, c.Items[0].Qty)
}

func TestAddItemAppliesPromotionTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedProduct(t, "cola", 500, 300)
	f.seedPromo(t, "cola", pricing.Tier{MinQty: 3, UnitPrice: 450})

	c, err := f.carts.Create(ctx)
	require.NoError(t, err)

	c, err = f.carts.AddItem(ctx, c.ID, "cola", 2)
	require.NoError(t, err)
	require.EqualValues(t, 500, c.Items[0].UnitPrice)

	// Crossing the tier threshold reprices the line.
	c, err = f.carts.AddItem(ctx, c.ID, "cola", 1)
	require.NoError(t, err)
	require.EqualValues(t, 450, c.Items[0].UnitPrice)

	// Dropping back below reverts to the original price.
	c, err = f.carts.SetQty(ctx, c.ID, "cola", 2)
	require.NoError(t, err)
	require.EqualValues(t, 500, c.Items[0].UnitPrice)
}

func TestSetQtyZeroRemovesLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedProduct(t, "cola", 500, 300)

	c, err := f.carts.Create(ctx)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, c.ID, "cola", 2)
	require.NoError(t, err)

	c, err = f.carts.SetQty(ctx, c.ID, "cola", 0)
	require.NoError(t, err)
	require.Empty(t, c.Items)
}

func TestSetQtyMissingLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.carts.Create(ctx)
	require.NoError(t, err)
	_, err = f.carts.SetQty(ctx, c.ID, "ghost", 2)
	require.ErrorIs(t, err, cart.ErrNotFound)
}

func TestUnknownCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.carts.Get(context.Background(), "nope")
	require.ErrorIs(t, err, cart.ErrNotFound)
}

func TestUnknownProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.carts.Create(ctx)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, c.ID, "ghost", 1)
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestDiscountsFlowIntoSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedProduct(t, "cola", 500, 300)

	c, err := f.carts.Create(ctx)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, c.ID, "cola", 2)
	require.NoError(t, err)

	_, err = f.carts.SetItemDiscount(ctx, c.ID, "cola", pricing.Discount{Type: pricing.DiscountPercent, Value: 10})
	require.NoError(t, err)
	c, err = f.carts.SetBillDiscount(ctx, c.ID, pricing.Discount{Type: pricing.DiscountAmount, Value: 100})
	require.NoError(t, err)

	sum := c.Summary()
	require.EqualValues(t, 900, sum.Subtotal)
	require.EqualValues(t, 100, sum.ItemDiscount)
	require.EqualValues(t, 100, sum.BillDiscount)
	require.EqualValues(t, 800, sum.Total)
	require.EqualValues(t, 800-600, sum.Profit)
}

func TestRepriceAllAfterPromotionChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedProduct(t, "cola", 500, 300)

	c, err := f.carts.Create(ctx)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, c.ID, "cola", 3)
	require.NoError(t, err)

	f.seedPromo(t, "cola", pricing.Tier{MinQty: 3, UnitPrice: 400})
	require.NoError(t, f.carts.RepriceAll(ctx))

	got, err := f.carts.Get(ctx, c.ID)
	require.NoError(t, err)
	require.EqualValues(t, 400, got.Items[0].UnitPrice)
}

func TestClearDiscardsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedProduct(t, "cola", 500, 300)

	c, err := f.carts.Create(ctx)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, c.ID, "cola", 2)
	require.NoError(t, err)

	f.carts.Clear(ctx, c.ID)
	_, err = f.carts.Get(ctx, c.ID)
	require.ErrorIs(t, err, cart.ErrNotFound)
}
