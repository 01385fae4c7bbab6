package sales_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/pricing"
	"github.com/noah-isme/backend-pos/internal/sales"
	"github.com/noah-isme/backend-pos/internal/store"
	"github.com/noah-isme/backend-pos/internal/store/memory"
)

func newReconciler(t *testing.T, auto bool) *sales.Service {
	t.Helper()
	backend := memory.New()
	svc := &sales.Service{
		Products:     store.NewCollection[catalog.Product](backend, "products"),
		Sales:        store.NewCollection[sales.Record](backend, sales.Collection),
		AutoComplete: auto,
		Now:          func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
	return svc
}

func seedProduct(t *testing.T, svc *sales.Service, id string, price, cost pricing.Money, stock int) {
	t.Helper()
	require.NoError(t, svc.Products.Put(context.Background(), catalog.Product{
		ID: id, Name: id, Price: price, Cost: cost, Category: "general", Stock: stock,
	}))
}

func stockOf(t *testing.T, svc *sales.Service, id string) int {
	t.Helper()
	p, err := svc.Products.Get(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func line(productID string, qty int, price pricing.Money) pricing.Item {
	return pricing.Item{ProductID: productID, Name: productID, Qty: qty, UnitPrice: price, OriginalPrice: price}
}

func TestCommitCompletedDeductsStock(t *testing.T) {
	svc := newReconciler(t, true)
	ctx := context.Background()
	seedProduct(t, svc, "cola", 500, 300, 10)

	rec, err := svc.Commit(ctx, sales.CommitInput{Items: []pricing.Item{line("cola", 3, 500)}})
	require.NoError(t, err)
	require.Equal(t, sales.StatusCompleted, rec.Status)
	require.Equal(t, pricing.Money(1500), rec.Summary.Total)
	require.Equal(t, 7, stockOf(t, svc, "cola"))
}

func TestCommitPendingLeavesStockUntouched(t *testing.T) {
	svc := newReconciler(t, false)
	ctx := context.Background()
	seedProduct(t, svc, "cola", 500, 300, 10)

	rec, err := svc.Commit(ctx, sales.CommitInput{Items: []pricing.Item{line("cola", 3, 500)}})
	require.NoError(t, err)
	require.Equal(t, sales.StatusPending, rec.Status)
	require.Equal(t, 10, stockOf(t, svc, "cola"))
}

func TestCommitRejectsInsufficientStock(t *testing.T) {
	svc := newReconciler(t, true)
	ctx := context.Background()
	seedProduct(t, svc, "cola", 500, 300, 10)

	_, err := svc.Commit(ctx, sales.CommitInput{Items: []pricing.Item{line("cola", 11, 500)}})
	var ise *sales.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	require.Equal(t, "cola", ise.ProductID)
	require.Equal(t, 1, ise.Shortfall())

	// Nothing moved and nothing was recorded.
	require.Equal(t, 10, stockOf(t, svc, "cola"))
	recs, err := svc.List(ctx)
	require.NoError(t, err)
	require.Empty(t, recs)
}

func TestCommitRejectsUnknownProduct(t *testing.T) {
	svc := newReconciler(t, true)
	_, err := svc.Commit(context.Background(), sales.CommitInput{Items: []pricing.Item{line("ghost", 1, 100)}})
	require.ErrorIs(t, err, sales.ErrInvalidInput)
}

func TestCancelRestoresStockExactlyOnce(t *testing.T) {
	svc := newReconciler(t, true)
	ctx := context.Background()
	seedProduct(t, svc, "cola", 500, 300, 10)

	rec, err := svc.Commit(ctx, sales.CommitInput{Items: []pricing.Item{line("cola", 4, 500)}})
	require.NoError(t, err)
	require.Equal(t, 6, stockOf(t, svc, "cola"))

	require.NoError(t, svc.Cancel(ctx, rec.ID))
	require.Equal(t, 10, stockOf(t, svc, "cola"))

	got, err := svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, sales.StatusCancelled, got.Status)

	// A second cancel must not restore again.
	require.NoError(t, svc.Cancel(ctx, rec.ID))
	require.Equal(t, 10, stockOf(t, svc, "cola"))
}

func TestCancelPendingDoesNotTouchStock(t *testing.T) {
	svc := newReconciler(t, false)
	ctx := context.Background()
	seedProduct(t, svc, "cola", 500, 300, 10)

	rec, err := svc.Commit(ctx, sales.CommitInput{Items: []pricing.Item{line("cola", 4, 500)}})
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(ctx, rec.ID))
	require.Equal(t, 10, stockOf(t, svc, "cola"))
}

func TestCancelMissingIsNoOp(t *testing.T) {
	svc := newReconciler(t, true)
	require.NoError(t, svc.Cancel(context.Background(), "INV-404"))
}

func TestApprovePendingDeductsStock(t *testing.T) {
	svc := newReconciler(t, false)
	ctx := context.Background()
	seedProduct(t, svc, "cola", 500, 300, 10)

	rec, err := svc.Commit(ctx, sales.CommitInput{Items: []pricing.Item{line("cola", 4, 500)}})
	require.NoError(t, err)
	require.Equal(t, 10, stockOf(t, svc, "cola"))

	approved, err := svc.Approve(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, sales.StatusCompleted, approved.Status)
	require.Equal(t, 6, stockOf(t, svc, "cola"))

	_, err = svc.Approve(ctx, rec.ID)
	require.ErrorIs(t, err, sales.ErrInvalidTransition)
	require.Equal(t, 6, stockOf(t, svc, "cola"))
}

func TestApproveValidatesStockAtApprovalTime(t *testing.T) {
	svc := newReconciler(t, false)
	ctx := context.Background()
	seedProduct(t, svc, "cola", 500, 300, 10)

	rec, err := svc.Commit(ctx, sales.CommitInput{Items: []pricing.Item{line("cola", 8, 500)}})
	require.NoError(t, err)

	// Stock drained while the sale sat pending.
	require.NoError(t, svc.Products.Merge(ctx, "cola", map[string]any{"stock": 3}))

	_, err = svc.Approve(ctx, rec.ID)
	var ise *sales.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	require.Equal(t, 3, stockOf(t, svc, "cola"))

	got, err := svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, sales.StatusPending, got.Status)
}

func TestResubmitRestoresThenDeducts(t *testing.T) {
	svc := newReconciler(t, true)
	ctx := context.Background()
	seedProduct(t, svc, "cola", 500, 300, 10)

	first, err := svc.Commit(ctx, sales.CommitInput{Items: []pricing.Item{line("cola", 2, 500)}})
	require.NoError(t, err)
	require.Equal(t, 8, stockOf(t, svc, "cola"))

	second, err := svc.Commit(ctx, sales.CommitInput{
		Items:      []pricing.Item{line("cola", 5, 500)},
		ReplacesID: first.ID,
	})
	require.NoError(t, err)
	require.Equal(t, 5, stockOf(t, svc, "cola"))

	old, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, sales.StatusCancelled, old.Status)

	fresh, err := svc.Get(ctx, second.ID)
	require.NoError(t, err)
	require.Equal(t, sales.StatusCompleted, fresh.Status)
}

func TestResubmitCreditsPriorReservation(t *testing.T) {
	svc := newReconciler(t, true)
	ctx := context.Background()
	seedProduct(t, svc, "cola", 500, 300, 10)

	first, err := svc.Commit(ctx, sales.CommitInput{Items: []pricing.Item{line("cola", 9, 500)}})
	require.NoError(t, err)
	require.Equal(t, 1, stockOf(t, svc, "cola"))

	// All ten units fit because the prior nine come back first.
	_, err = svc.Commit(ctx, sales.CommitInput{
		Items:      []pricing.Item{line("cola", 10, 500)},
		ReplacesID: first.ID,
	})
	require.NoError(t, err)
	require.Equal(t, 0, stockOf(t, svc, "cola"))
}

func TestResubmitTooLargeLeavesPriorIntact(t *testing.T) {
	svc := newReconciler(t, true)
	ctx := context.Background()
	seedProduct(t, svc, "cola", 500, 300, 10)

	first, err := svc.Commit(ctx, sales.CommitInput{Items: []pricing.Item{line("cola", 9, 500)}})
	require.NoError(t, err)

	_, err = svc.Commit(ctx, sales.CommitInput{
		Items:      []pricing.Item{line("cola", 11, 500)},
		ReplacesID: first.ID,
	})
	var ise *sales.InsufficientStockError
	require.ErrorAs(t, err, &ise)

	require.Equal(t, 1, stockOf(t, svc, "cola"))
	old, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, sales.StatusCompleted, old.Status)
}

func TestResubmitUnknownPrior(t *testing.T) {
	svc := newReconciler(t, true)
	ctx := context.Background()
	seedProduct(t, svc, "cola", 500, 300, 10)

	_, err := svc.Commit(ctx, sales.CommitInput{
		Items:      []pricing.Item{line("cola", 1, 500)},
		ReplacesID: "INV-404",
	})
	require.ErrorIs(t, err, sales.ErrNotFound)
	require.Equal(t, 10, stockOf(t, svc, "cola"))
}

func TestUpdateDetailsTouchesOnlyMetadata(t *testing.T) {
	svc := newReconciler(t, true)
	ctx := context.Background()
	seedProduct(t, svc, "cola", 500, 300, 10)

	rec, err := svc.Commit(ctx, sales.CommitInput{
		Items: []pricing.Item{line("cola", 2, 500)},
		Meta:  sales.Meta{CustomerName: "Budi", PaymentMethod: "cash"},
	})
	require.NoError(t, err)

	got, err := svc.UpdateDetails(ctx, rec.ID, sales.Meta{
		CustomerName:  "Budi Santoso",
		CustomerPhone: "0812",
		PaymentMethod: "transfer",
		PaymentStatus: "paid",
	})
	require.NoError(t, err)
	require.Equal(t, "Budi Santoso", got.Meta.CustomerName)
	require.Equal(t, sales.StatusCompleted, got.Status)
	require.Equal(t, rec.Summary, got.Summary)
	require.Equal(t, 8, stockOf(t, svc, "cola"))
}

func TestCommitRejectsEmptyItems(t *testing.T) {
	svc := newReconciler(t, true)
	_, err := svc.Commit(context.Background(), sales.CommitInput{
		Items: []pricing.Item{line("cola", 0, 500)},
	})
	require.ErrorIs(t, err, sales.ErrInvalidInput)
}

func TestCommitGeneratesUniqueIDs(t *testing.T) {
	svc := newReconciler(t, true)
	ctx := context.Background()
	seedProduct(t, svc, "cola", 500, 300, 10)

	first, err := svc.Commit(ctx, sales.CommitInput{Items: []pricing.Item{line("cola", 1, 500)}})
	require.NoError(t, err)
	second, err := svc.Commit(ctx, sales.CommitInput{Items: []pricing.Item{line("cola", 1, 500)}})
	require.NoError(t, err)

	// The clock is frozen, so the second id gets a suffix.
	require.NotEqual(t, first.ID, second.ID)
	require.Contains(t, first.ID, "INV-")
}

func TestListNewestFirst(t *testing.T) {
	svc := newReconciler(t, true)
	ctx := context.Background()
	seedProduct(t, svc, "cola", 500, 300, 10)

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { ts = ts.Add(time.Second); return ts }

	first, err := svc.Commit(ctx, sales.CommitInput{Items: []pricing.Item{line("cola", 1, 500)}})
	require.NoError(t, err)
	second, err := svc.Commit(ctx, sales.CommitInput{Items: []pricing.Item{line("cola", 1, 500)}})
	require.NoError(t, err)

	recs, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, second.ID, recs[0].ID)
	require.Equal(t, first.ID, recs[1].ID)
}

func TestGetMissing(t *testing.T) {
	svc := newReconciler(t, true)
	_, err := svc.Get(context.Background(), "INV-404")
	require.True(t, errors.Is(err, sales.ErrNotFound))
}

// faultyStore fails every read of one collection while delegating the
// rest to a healthy backend.
type faultyStore struct {
	store.Store
	collection string
	err        error
	gets       int
}

func (f *faultyStore) Get(ctx context.Context, collection, id string) ([]byte, error) {
	if collection == f.collection {
		f.gets++
		return nil, f.err
	}
	return f.Store.Get(ctx, collection, id)
}

func TestCommitSurfacesStoreFailure(t *testing.T) {
	backend := memory.New()
	broken := &faultyStore{
		Store:      backend,
		collection: sales.Collection,
		err:        errors.New("connection refused"),
	}
	svc := &sales.Service{
		Products:     store.NewCollection[catalog.Product](backend, "products"),
		Sales:        store.NewCollection[sales.Record](broken, sales.Collection),
		AutoComplete: true,
		Now:          func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
	seedProduct(t, svc, "cola", 500, 300, 10)

	_, err := svc.Commit(context.Background(), sales.CommitInput{
		Items: []pricing.Item{line("cola", 1, 500)},
	})
	require.Error(t, err)
	require.ErrorContains(t, err, "connection refused")
	// The failure aborts immediately instead of retrying the id lookup.
	require.Equal(t, 1, broken.gets)
	require.Equal(t, 10, stockOf(t, svc, "cola"))
}

func TestApproveCountsOncePerSale(t *testing.T) {
	obs.MustRegisterDomainMetrics("pos", prometheus.NewRegistry())
	svc := newReconciler(t, false)
	ctx := context.Background()
	seedProduct(t, svc, "cola", 500, 300, 10)

	pendingBefore := testutil.ToFloat64(obs.SalesCommitted.WithLabelValues(string(sales.StatusPending)))
	completedBefore := testutil.ToFloat64(obs.SalesCommitted.WithLabelValues(string(sales.StatusCompleted)))
	approvedBefore := testutil.ToFloat64(obs.SalesApproved)

	rec, err := svc.Commit(ctx, sales.CommitInput{Items: []pricing.Item{line("cola", 2, 500)}})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, rec.ID)
	require.NoError(t, err)

	require.Equal(t, pendingBefore+1, testutil.ToFloat64(obs.SalesCommitted.WithLabelValues(string(sales.StatusPending))))
	require.Equal(t, completedBefore, testutil.ToFloat64(obs.SalesCommitted.WithLabelValues(string(sales.StatusCompleted))))
	require.Equal(t, approvedBefore+1, testutil.ToFloat64(obs.SalesApproved))
}
