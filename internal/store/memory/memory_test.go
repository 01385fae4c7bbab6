package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/store"
	"github.com/noah-isme/backend-pos/internal/store/memory"
)

func TestApplyAndGet(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, s, "products", "sku-1", []byte(`{"id":"sku-1","stock":5}`), false))

	doc, err := s.Get(ctx, "products", "sku-1")
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"sku-1","stock":5}`, string(doc))

	_, err = s.Get(ctx, "products", "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestMergePreservesUnknownFields(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, s, "products", "sku-1", []byte(`{"id":"sku-1","name":"Cola","stock":5}`), false))
	require.NoError(t, store.Set(ctx, s, "products", "sku-1", []byte(`{"stock":3}`), true))

	doc, err := s.Get(ctx, "products", "sku-1")
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"sku-1","name":"Cola","stock":3}`, string(doc))
}

func TestMultiWriteApplyIsOneUnit(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	err := s.Apply(ctx,
		store.Write{Collection: "products", ID: "a", Doc: []byte(`{"id":"a"}`)},
		store.Write{Collection: "sales", ID: "inv-1", Doc: []byte(`{"id":"inv-1"}`)},
	)
	require.NoError(t, err)

	products, err := s.List(ctx, "products")
	require.NoError(t, err)
	require.Len(t, products, 1)
	sales, err := s.List(ctx, "sales")
	require.NoError(t, err)
	require.Len(t, sales, 1)
}

func TestSubscribeNotifiedOnMutation(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	calls := 0
	cancel := s.Subscribe("promotions", func() { calls++ })
	defer cancel()

	require.NoError(t, store.Set(ctx, s, "promotions", "p1", []byte(`{"id":"p1"}`), false))
	require.Equal(t, 1, calls)

	require.NoError(t, store.Delete(ctx, s, "promotions", "p1"))
	require.Equal(t, 2, calls)

	cancel()
	require.NoError(t, store.Set(ctx, s, "promotions", "p2", []byte(`{"id":"p2"}`), false))
	require.Equal(t, 2, calls)
}

func TestDeleteMissingIsNoError(t *testing.T) {
	s := memory.New()
	require.NoError(t, store.Delete(context.Background(), s, "products", "ghost"))
}
