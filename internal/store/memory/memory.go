// Package memory provides an in-memory document store used by tests
// and single-terminal development setups.
package memory

import (
	"context"
	"sync"

	"github.com/noah-isme/backend-pos/internal/store"
)

// Store keeps documents in process memory. Mutations are applied under
// one lock, so a multi-write Apply is observed all-or-nothing.
type Store struct {
	mu        sync.RWMutex
	docs      map[string]map[string][]byte
	subs      map[string]map[int]func()
	nextSubID int
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		docs: make(map[string]map[string][]byte),
		subs: make(map[string]map[int]func()),
	}
}

// List implements store.Store.
func (s *Store) List(_ context.Context, collection string) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col := s.docs[collection]
	out := make([][]byte, 0, len(col))
	for _, doc := range col {
		cp := make([]byte, len(doc))
		copy(cp, doc)
		out = append(out, cp)
	}
	return out, nil
}

// Get implements store.Store.
func (s *Store) Get(_ context.Context, collection, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[collection][id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := make([]byte, len(doc))
	copy(cp, doc)
	return cp, nil
}

// Apply implements store.Store. Merge failures surface before any write
// is visible to readers.
func (s *Store) Apply(_ context.Context, writes ...store.Write) error {
	if len(writes) == 0 {
		return nil
	}
	s.mu.Lock()
	staged := make([]store.Write, 0, len(writes))
	// Later writes in a batch observe earlier ones, so merge-after-put
	// behaves as if the writes were applied in order.
	overlay := make(map[string][]byte, len(writes))
	for _, w := range writes {
		key := w.Collection + "/" + w.ID
		if w.Merge && !w.Delete {
			base, ok := overlay[key]
			if !ok {
				base = s.docs[w.Collection][w.ID]
			}
			merged, err := store.MergeDoc(base, w.Doc)
			if err != nil {
				s.mu.Unlock()
				return err
			}
			w.Doc = merged
		}
		if w.Delete {
			overlay[key] = nil
		} else {
			overlay[key] = w.Doc
		}
		staged = append(staged, w)
	}
	touched := make(map[string]struct{}, len(staged))
	for _, w := range staged {
		if w.Delete {
			delete(s.docs[w.Collection], w.ID)
		} else {
			if s.docs[w.Collection] == nil {
				s.docs[w.Collection] = make(map[string][]byte)
			}
			s.docs[w.Collection][w.ID] = w.Doc
		}
		touched[w.Collection] = struct{}{}
	}
	notify := make([]func(), 0)
	for collection := range touched {
		for _, fn := range s.subs[collection] {
			notify = append(notify, fn)
		}
	}
	s.mu.Unlock()
	for _, fn := range notify {
		fn()
	}
	return nil
}

// Subscribe implements store.Store.
func (s *Store) Subscribe(collection string, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[collection] == nil {
		s.subs[collection] = make(map[int]func())
	}
	id := s.nextSubID
	s.nextSubID++
	s.subs[collection][id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[collection], id)
	}
}
