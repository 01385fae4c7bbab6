package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Record is a document with a stable identifier.
type Record interface {
	DocumentID() string
}

// Collection is a type-checked view over one store collection. It
// replaces ad-hoc any-typed merging with per-collection schemas while
// keeping the merge-by-id semantics of the underlying store.
type Collection[T Record] struct {
	Store Store
	Name  string
}

// NewCollection binds a typed collection to a store.
func NewCollection[T Record](s Store, name string) Collection[T] {
	return Collection[T]{Store: s, Name: name}
}

// List decodes every document in the collection.
func (c Collection[T]) List(ctx context.Context) ([]T, error) {
	raw, err := c.Store.List(ctx, c.Name)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.Name, err)
	}
	out := make([]T, 0, len(raw))
	for _, doc := range raw {
		var rec T
		if err := json.Unmarshal(doc, &rec); err != nil {
			return nil, fmt.Errorf("decode %s document: %w", c.Name, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Get decodes a single document or returns ErrNotFound.
func (c Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var rec T
	doc, err := c.Store.Get(ctx, c.Name, id)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(doc, &rec); err != nil {
		return rec, fmt.Errorf("decode %s/%s: %w", c.Name, id, err)
	}
	return rec, nil
}

// Put overwrites the record keyed by its own identifier.
func (c Collection[T]) Put(ctx context.Context, rec T) error {
	w, err := c.PutWrite(rec)
	if err != nil {
		return err
	}
	return c.Store.Apply(ctx, w)
}

// Merge overlays the given fields onto an existing document.
func (c Collection[T]) Merge(ctx context.Context, id string, fields map[string]any) error {
	w, err := c.MergeWrite(id, fields)
	if err != nil {
		return err
	}
	return c.Store.Apply(ctx, w)
}

// Delete removes the document. Deleting a missing id is not an error.
func (c Collection[T]) Delete(ctx context.Context, id string) error {
	return c.Store.Apply(ctx, Write{Collection: c.Name, ID: id, Delete: true})
}

// Watch subscribes to collection changes.
func (c Collection[T]) Watch(fn func()) (cancel func()) {
	return c.Store.Subscribe(c.Name, fn)
}

// PutWrite encodes a full-document write without committing it, so
// callers can batch writes across collections into one Apply.
func (c Collection[T]) PutWrite(rec T) (Write, error) {
	doc, err := json.Marshal(rec)
	if err != nil {
		return Write{}, fmt.Errorf("encode %s document: %w", c.Name, err)
	}
	return Write{Collection: c.Name, ID: rec.DocumentID(), Doc: doc}, nil
}

// MergeWrite encodes a partial-document write without committing it.
func (c Collection[T]) MergeWrite(id string, fields map[string]any) (Write, error) {
	doc, err := json.Marshal(fields)
	if err != nil {
		return Write{}, fmt.Errorf("encode %s patch: %w", c.Name, err)
	}
	return Write{Collection: c.Name, ID: id, Doc: doc, Merge: true}, nil
}
