package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/store"
	"github.com/noah-isme/backend-pos/internal/store/memory"
)

func newCatalog(t *testing.T) *catalog.Service {
	t.Helper()
	backend := memory.New()
	return &catalog.Service{
		Products: store.NewCollection[catalog.Product](backend, catalog.Collection),
	}
}

func TestCreateAndGet(t *testing.T) {
	svc := newCatalog(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, catalog.Product{ID: "cola", Name: "Cola", Price: 500, Cost: 300, Stock: 10})
	require.NoError(t, err)
	require.Equal(t, "general", p.Category)

	got, err := svc.Get(ctx, "cola")
	require.NoError(t, err)
	require.Equal(t, p, got)
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	svc := newCatalog(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, catalog.Product{ID: "cola", Name: "Cola", Price: 500})
	require.NoError(t, err)

	_, err = svc.Create(ctx, catalog.Product{ID: "cola", Name: "Other"})
	require.ErrorIs(t, err, catalog.ErrDuplicateID)

	// The original record stays untouched.
	got, err := svc.Get(ctx, "cola")
	require.NoError(t, err)
	require.Equal(t, "Cola", got.Name)
}

func TestCreateValidation(t *testing.T) {
	svc := newCatalog(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, catalog.Product{ID: "", Name: "Cola"})
	require.ErrorIs(t, err, catalog.ErrInvalidInput)

	_, err = svc.Create(ctx, catalog.Product{ID: "cola", Name: "Cola", Price: -1})
	require.ErrorIs(t, err, catalog.ErrInvalidInput)

	_, err = svc.Create(ctx, catalog.Product{ID: "cola", Name: "Cola", Stock: -1})
	require.ErrorIs(t, err, catalog.ErrInvalidInput)
}

func TestUpdateMergesFields(t *testing.T) {
	svc := newCatalog(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, catalog.Product{ID: "cola", Name: "Cola", Price: 500, Cost: 300, Stock: 10})
	require.NoError(t, err)

	got, err := svc.Update(ctx, "cola", map[string]any{"price": 550, "id": "hacked"})
	require.NoError(t, err)
	require.Equal(t, "cola", got.ID)
	require.EqualValues(t, 550, got.Price)
	require.Equal(t, "Cola", got.Name)
	require.Equal(t, 10, got.Stock)
}

func TestUpdateMissing(t *testing.T) {
	svc := newCatalog(t)
	_, err := svc.Update(context.Background(), "ghost", map[string]any{"price": 1})
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestListSortedByName(t *testing.T) {
	svc := newCatalog(t)
	ctx := context.Background()

	for _, p := range []catalog.Product{
		{ID: "b", Name: "Banana"},
		{ID: "a", Name: "Apple"},
		{ID: "c", Name: "Cherry"},
	} {
		_, err := svc.Create(ctx, p)
		require.NoError(t, err)
	}

	rows, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "Apple", rows[0].Name)
	require.Equal(t, "Cherry", rows[2].Name)
}

func TestImportReplacesStockAbsolutely(t *testing.T) {
	svc := newCatalog(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, catalog.Product{ID: "cola", Name: "Cola", Price: 500, Cost: 300, Stock: 10})
	require.NoError(t, err)

	count, err := svc.Import(ctx, []catalog.ImportRecord{
		{ID: "cola", Name: "Cola", Price: 520, Cost: 310, Stock: 99},
		{ID: "chips", Name: "Chips", Price: 800, Cost: 500, Stock: 40},
	})
	require.NoError(t, err)
	require.Equal(t, 2, count)

	cola, err := svc.Get(ctx, "cola")
	require.NoError(t, err)
	require.Equal(t, 99, cola.Stock)
	require.EqualValues(t, 520, cola.Price)

	chips, err := svc.Get(ctx, "chips")
	require.NoError(t, err)
	require.Equal(t, 40, chips.Stock)
}

func TestImportRejectsInvalidRecord(t *testing.T) {
	svc := newCatalog(t)
	_, err := svc.Import(context.Background(), []catalog.ImportRecord{
		{ID: "ok", Name: "Ok", Stock: 1},
		{ID: "", Name: "Broken"},
	})
	require.ErrorIs(t, err, catalog.ErrInvalidInput)

	// The batch is one unit of work; nothing landed.
	_, err = svc.Get(context.Background(), "ok")
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestDeleteIsIdempotent(t *testing.T) {
	svc := newCatalog(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, catalog.Product{ID: "cola", Name: "Cola"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "cola"))
	require.NoError(t, svc.Delete(ctx, "cola"))

	_, err = svc.Get(ctx, "cola")
	require.ErrorIs(t, err, catalog.ErrNotFound)
}
