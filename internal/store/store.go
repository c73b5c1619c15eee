package store

import (
	"context"
	"log/slog"

	"github.com/your-org/annotate/internal/config"
	"github.com/your-org/annotate/internal/observability"
	"github.com/your-org/annotate/internal/storage"
)

// Collection names in the durable store. Sessions and verification codes are
// cache-only and never reach a collection.
const (
	collectionProjects = "projects"
	collectionImages   = "images"
	collectionUsers    = "users"
)

// AnnotationStore orchestrates the ephemeral cache and the durable document
// store behind entity-oriented operations. It owns the read-through /
// write-invalidate policy; whole-entity read-modify-write is deliberately not
// transactionally isolated (last writer wins per project document).
type AnnotationStore struct {
	cache    storage.CacheStore
	durable  storage.DurableStore
	defaults config.ProjectConfig
}

func New(cache storage.CacheStore, durable storage.DurableStore, defaults config.ProjectConfig) *AnnotationStore {
	if defaults.DefaultName == "" {
		defaults = config.Default().Project
	}
	return &AnnotationStore{
		cache:    cache,
		durable:  durable,
		defaults: defaults,
	}
}

// readThrough returns the cached value for key when present. On a miss it
// loads from the durable store by query, repopulates the cache and returns
// the result. With a nil query a cache miss is final: draft entities exist
// only in the cache, so the durable store is not consulted.
func (s *AnnotationStore) readThrough(ctx context.Context, collection, key string, query storage.Query) ([]byte, error) {
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if data != nil {
		observability.CacheHits.WithLabelValues(collection).Inc()
		return data, nil
	}
	observability.CacheMisses.WithLabelValues(collection).Inc()

	if query == nil {
		slog.Debug("key not in cache and no query provided", "key", key, "collection", collection)
		return nil, nil
	}

	data, err = s.readDurableOnly(ctx, collection, query)
	if err != nil {
		return nil, err
	}
	if data == nil {
		slog.Debug("key not in durable store", "key", key, "collection", collection)
		return nil, nil
	}

	if err := s.cache.Set(ctx, key, data); err != nil {
		return nil, err
	}
	return data, nil
}

// readDurableOnly bypasses the cache entirely, for callers that must see the
// authoritative copy.
func (s *AnnotationStore) readDurableOnly(ctx context.Context, collection string, query storage.Query) ([]byte, error) {
	observability.DurableOps.WithLabelValues(collection, "find").Inc()
	return s.durable.FindOne(ctx, collection, query)
}

// writeCacheOnly stores a draft entity; it never reaches the durable store.
func (s *AnnotationStore) writeCacheOnly(ctx context.Context, key string, data []byte) error {
	return s.cache.Set(ctx, key, data)
}

// writePromoted invalidates the cache entry and then upserts into the durable
// store. Invalidation comes first so a racing reader observes either the old
// cached value or refetches from an empty cache; it never sees a torn state.
func (s *AnnotationStore) writePromoted(ctx context.Context, collection, key string, data []byte, query storage.Query) error {
	exists, err := s.cache.Exists(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		if err := s.cache.Delete(ctx, key); err != nil {
			return err
		}
		slog.Debug("invalidated cache entry", "key", key, "collection", collection)
	}

	observability.DurableOps.WithLabelValues(collection, "upsert").Inc()
	return s.durable.Upsert(ctx, collection, query, data)
}

// deleteEntity removes from the cache unconditionally and, when a query is
// supplied, from the durable store as well. A nil query deletes only the
// ephemeral copy.
func (s *AnnotationStore) deleteEntity(ctx context.Context, collection, key string, query storage.Query) error {
	exists, err := s.cache.Exists(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		if err := s.cache.Delete(ctx, key); err != nil {
			return err
		}
		slog.Debug("deleted cache entry", "key", key, "collection", collection)
	}

	if query == nil {
		slog.Debug("no query provided, durable delete skipped", "key", key)
		return nil
	}

	observability.DurableOps.WithLabelValues(collection, "delete").Inc()
	return s.durable.DeleteOne(ctx, collection, query)
}
