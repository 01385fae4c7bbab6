package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested document does not exist.
var ErrNotFound = errors.New("document not found")

// Write describes a single document mutation. A batch of writes passed
// to Apply is committed as one unit of work: either every write lands
// or none does.
type Write struct {
	Collection string
	ID         string
	Doc        []byte
	Merge      bool
	Delete     bool
}

// Store is a path-addressed collection of JSON documents with
// push-based change notification. Implementations must confirm writes
// before returning so callers can trust in-memory state derived from a
// successful Apply.
type Store interface {
	// List returns the raw documents of a collection in unspecified order.
	List(ctx context.Context, collection string) ([][]byte, error)
	// Get returns a single document or ErrNotFound.
	Get(ctx context.Context, collection, id string) ([]byte, error)
	// Apply commits the writes atomically and notifies subscribers of
	// every touched collection afterwards.
	Apply(ctx context.Context, writes ...Write) error
	// Subscribe registers a callback invoked after any mutation of the
	// collection. The returned function cancels the subscription.
	Subscribe(collection string, fn func()) (cancel func())
}

// Set is a convenience wrapper committing a single document write.
func Set(ctx context.Context, s Store, collection, id string, doc []byte, merge bool) error {
	return s.Apply(ctx, Write{Collection: collection, ID: id, Doc: doc, Merge: merge})
}

// Delete is a convenience wrapper committing a single delete.
func Delete(ctx context.Context, s Store, collection, id string) error {
	return s.Apply(ctx, Write{Collection: collection, ID: id, Delete: true})
}

// MergeDoc overlays patch onto the existing JSON object. Top-level keys
// in patch overwrite keys in existing; unknown keys are preserved, which
// keeps partial writes from older clients intact.
func MergeDoc(existing, patch []byte) ([]byte, error) {
	if len(existing) == 0 {
		return patch, nil
	}
	var base map[string]json.RawMessage
	if err := json.Unmarshal(existing, &base); err != nil {
		return nil, fmt.Errorf("merge: decode existing: %w", err)
	}
	var overlay map[string]json.RawMessage
	if err := json.Unmarshal(patch, &overlay); err != nil {
		return nil, fmt.Errorf("merge: decode patch: %w", err)
	}
	for k, v := range overlay {
		base[k] = v
	}
	return json.Marshal(base)
}
