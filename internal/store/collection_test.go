package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/store"
	"github.com/noah-isme/backend-pos/internal/store/memory"
)

type widget struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Stock int    `json:"stock"`
}

func (w widget) DocumentID() string { return w.ID }

func TestCollectionRoundTrip(t *testing.T) {
	s := memory.New()
	col := store.NewCollection[widget](s, "widgets")
	ctx := context.Background()

	require.NoError(t, col.Put(ctx, widget{ID: "w1", Name: "Sprocket", Stock: 3}))

	got, err := col.Get(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, "Sprocket", got.Name)

	all, err := col.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	_, err = col.Get(ctx, "nope")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCollectionMergeByID(t *testing.T) {
	s := memory.New()
	col := store.NewCollection[widget](s, "widgets")
	ctx := context.Background()

	require.NoError(t, col.Put(ctx, widget{ID: "w1", Name: "Sprocket", Stock: 3}))
	require.NoError(t, col.Merge(ctx, "w1", map[string]any{"stock": 9}))

	got, err := col.Get(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, 9, got.Stock)
	require.Equal(t, "Sprocket", got.Name)
}

func TestCollectionBatchedWrites(t *testing.T) {
	s := memory.New()
	col := store.NewCollection[widget](s, "widgets")
	ctx := context.Background()

	w1, err := col.PutWrite(widget{ID: "a", Stock: 1})
	require.NoError(t, err)
	w2, err := col.MergeWrite("a", map[string]any{"stock": 2})
	require.NoError(t, err)
	require.NoError(t, s.Apply(ctx, w1, w2))

	got, err := col.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 2, got.Stock)
}
