// Package redisstore implements the document store on Redis. Documents
// are JSON strings keyed per collection, with a set tracking member ids
// and pub/sub fanning out change notifications to other processes.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-pos/internal/store"
)

// Store is the Redis-backed document store.
type Store struct {
	client    *redis.Client
	namespace string

	mu   sync.Mutex
	subs map[string]*collectionSub
}

type collectionSub struct {
	pubsub *redis.PubSub
	mu     sync.Mutex
	fns    map[int]func()
	nextID int
}

// New binds a store to a Redis client under the given key namespace.
func New(client *redis.Client, namespace string) *Store {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = "pos"
	}
	return &Store{client: client, namespace: namespace, subs: make(map[string]*collectionSub)}
}

func (s *Store) docKey(collection, id string) string {
	return fmt.Sprintf("%s:%s:%s", s.namespace, collection, id)
}

func (s *Store) idsKey(collection string) string {
	return fmt.Sprintf("%s:%s", s.namespace, collection)
}

func (s *Store) channel(collection string) string {
	return fmt.Sprintf("%s:changed:%s", s.namespace, collection)
}

// List implements store.Store.
func (s *Store) List(ctx context.Context, collection string) ([][]byte, error) {
	ids, err := s.client.SMembers(ctx, s.idsKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s ids: %w", collection, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.docKey(collection, id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s docs: %w", collection, err)
	}
	out := make([][]byte, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			// Id set can briefly reference a deleted doc; skip it.
			continue
		}
		out = append(out, []byte(str))
	}
	return out, nil
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, collection, id string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.docKey(collection, id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return []byte(val), nil
}

// Apply implements store.Store. All writes are queued into a single
// MULTI/EXEC transaction so a partial batch is never visible. Merge
// reads happen before the transaction; last write wins under concurrent
// terminals, which is the store's documented discipline.
func (s *Store) Apply(ctx context.Context, writes ...store.Write) error {
	if len(writes) == 0 {
		return nil
	}
	staged := make([]store.Write, 0, len(writes))
	// Later writes in a batch observe earlier ones, so merge-after-put
	// behaves as if the writes were applied in order.
	overlay := make(map[string][]byte, len(writes))
	for _, w := range writes {
		key := w.Collection + "/" + w.ID
		if w.Merge && !w.Delete {
			base, ok := overlay[key]
			if !ok {
				existing, err := s.Get(ctx, w.Collection, w.ID)
				if err != nil && !errors.Is(err, store.ErrNotFound) {
					return err
				}
				base = existing
			}
			merged, err := store.MergeDoc(base, w.Doc)
			if err != nil {
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
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, w := range staged {
			if w.Delete {
				pipe.Del(ctx, s.docKey(w.Collection, w.ID))
				pipe.SRem(ctx, s.idsKey(w.Collection), w.ID)
			} else {
				pipe.Set(ctx, s.docKey(w.Collection, w.ID), string(w.Doc), 0)
				pipe.SAdd(ctx, s.idsKey(w.Collection), w.ID)
			}
			touched[w.Collection] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply writes: %w", err)
	}
	for collection := range touched {
		_ = s.client.Publish(ctx, s.channel(collection), "changed").Err()
	}
	return nil
}

// Subscribe implements store.Store. One Redis subscription is shared per
// collection; callbacks run on the pub/sub reader goroutine.
func (s *Store) Subscribe(collection string, fn func()) func() {
	s.mu.Lock()
	sub, ok := s.subs[collection]
	if !ok {
		pubsub := s.client.Subscribe(context.Background(), s.channel(collection))
		sub = &collectionSub{pubsub: pubsub, fns: make(map[int]func())}
		s.subs[collection] = sub
		go func() {
			for range pubsub.Channel() {
				sub.mu.Lock()
				fns := make([]func(), 0, len(sub.fns))
				for _, f := range sub.fns {
					fns = append(fns, f)
				}
				sub.mu.Unlock()
				for _, f := range fns {
					f()
				}
			}
		}()
	}
	s.mu.Unlock()

	sub.mu.Lock()
	id := sub.nextID
	sub.nextID++
	sub.fns[id] = fn
	sub.mu.Unlock()
	return func() {
		sub.mu.Lock()
		delete(sub.fns, id)
		sub.mu.Unlock()
	}
}

// Close tears down pub/sub subscriptions.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	for _, sub := range s.subs {
		if closeErr := sub.pubsub.Close(); closeErr != nil {
			err = closeErr
		}
	}
	s.subs = make(map[string]*collectionSub)
	return err
}
