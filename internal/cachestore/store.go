package cachestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	pebblestore "github.com/mkatragadda/Vitta-sub011/internal/storage/pebble"
)

// Roles a named cache can play. Full cache names are {generation}-{role}.
const (
	RoleStatic  = "static"
	RoleDynamic = "dynamic"
	RoleImages  = "images"
	RoleAPI     = "api"
)

// ErrNotCacheable rejects writes of non-2xx responses; error responses are
// never cached.
var ErrNotCacheable = errors.New("cachestore: only successful responses are cacheable")

// Entry is a cached response plus its storage metadata.
type Entry struct {
	URL      string      `json:"url"`
	Status   int         `json:"status"`
	Header   http.Header `json:"header"`
	Body     []byte      `json:"body"`
	Size     int64       `json:"size"`
	StoredAt time.Time   `json:"storedAt"`
}

// Store manages every named cache of one generation over the shared
// database. Caches created by older generations survive on disk until
// Activate purges them.
type Store struct {
	db         *pebblestore.DB
	generation string
	log        *zap.Logger
}

// New binds the store to the current deploy generation.
func New(db *pebblestore.DB, generation string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: db, generation: generation, log: log.Named("cachestore")}
}

// Generation returns the current generation tag.
func (s *Store) Generation() string { return s.generation }

// Name composes the full cache name for a role under the current generation.
func (s *Store) Name(role string) string { return s.generation + "-" + role }

func nameKey(name string) []byte        { return []byte("cache/names/" + name) }
func entryKey(name, url string) []byte  { return []byte("cache/data/" + name + "/" + url) }
func entryPrefix(name string) []byte    { return []byte("cache/data/" + name + "/") }
func namesPrefix() []byte               { return []byte("cache/names/") }

// Open registers the cache name and returns a handle to it.
func (s *Store) Open(name string) (*Cache, error) {
	if err := s.db.Set(nameKey(name), nil); err != nil {
		return nil, fmt.Errorf("cachestore: register %s: %w", name, err)
	}
	return &Cache{store: s, name: name}, nil
}

// ListNames enumerates every cache name present, any generation.
func (s *Store) ListNames() ([]string, error) {
	iter, err := s.db.NewPrefixIter(namesPrefix())
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var names []string
	for ok := iter.First(); ok; ok = iter.Next() {
		names = append(names, string(iter.Key()[len(namesPrefix()):]))
	}
	return names, nil
}

// DeleteName drops a cache and all its entries.
func (s *Store) DeleteName(ctx context.Context, name string) error {
	if _, err := s.db.DeletePrefix(ctx, entryPrefix(name)); err != nil {
		return err
	}
	return s.db.Delete(nameKey(name))
}

// Activate purges every cache whose generation prefix differs from the
// current one and returns the names it deleted. Runs at deploy rollover.
func (s *Store) Activate(ctx context.Context) ([]string, error) {
	names, err := s.ListNames()
	if err != nil {
		return nil, err
	}
	var deleted []string
	for _, name := range names {
		if strings.HasPrefix(name, s.generation+"-") {
			continue
		}
		if err := s.DeleteName(ctx, name); err != nil {
			return deleted, fmt.Errorf("cachestore: purge %s: %w", name, err)
		}
		s.log.Info("purged stale cache", zap.String("name", name))
		deleted = append(deleted, name)
	}
	return deleted, nil
}

// TotalSize sums stored body sizes across every cache.
func (s *Store) TotalSize(ctx context.Context) (int64, error) {
	names, err := s.ListNames()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, name := range names {
		c := &Cache{store: s, name: name}
		size, err := c.Size()
		if err != nil {
			return 0, err
		}
		total += size
	}
	return total, nil
}

// Cache is one named cache.
type Cache struct {
	store *Store
	name  string
}

// Name returns the full cache name.
func (c *Cache) Name() string { return c.name }

// Match returns the cached entry for a URL key, or false on miss. An entry
// that no longer decodes counts as a miss.
func (c *Cache) Match(url string) (*Entry, bool) {
	raw, err := c.store.db.Get(entryKey(c.name, url))
	if err != nil {
		return nil, false
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.store.log.Warn("undecodable cache entry treated as miss",
			zap.String("cache", c.name), zap.String("url", url))
		return nil, false
	}
	return &e, true
}

// Put stores an entry. Only successful (2xx) responses are accepted.
func (c *Cache) Put(ctx context.Context, e *Entry) error {
	if e.Status < 200 || e.Status > 299 {
		return fmt.Errorf("%w: status %d", ErrNotCacheable, e.Status)
	}
	if e.Size == 0 {
		e.Size = int64(len(e.Body))
	}
	if e.StoredAt.IsZero() {
		e.StoredAt = time.Now()
	}
	doc, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("cachestore: encode entry: %w", err)
	}
	return c.store.db.Set(entryKey(c.name, e.URL), doc)
}

// Delete removes one entry. Missing keys are a no-op.
func (c *Cache) Delete(url string) error {
	return c.store.db.Delete(entryKey(c.name, url))
}

// Size sums the stored body sizes in this cache.
func (c *Cache) Size() (int64, error) {
	iter, err := c.store.db.NewPrefixIter(entryPrefix(c.name))
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	var total int64
	for ok := iter.First(); ok; ok = iter.Next() {
		var e Entry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			continue
		}
		total += e.Size
	}
	return total, nil
}

// SweepOlderThan removes entries stored before the cutoff, returning how
// many were dropped. Used by the scheduled dynamic-cache retention sweep.
func (c *Cache) SweepOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	iter, err := c.store.db.NewPrefixIter(entryPrefix(c.name))
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	b := c.store.db.NewBatch()
	defer b.Close()
	dropped := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		var e Entry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			continue
		}
		if e.StoredAt.Before(cutoff) {
			if err := b.Delete(iter.Key(), nil); err != nil {
				return dropped, err
			}
			dropped++
		}
	}
	if dropped == 0 {
		return 0, nil
	}
	if err := c.store.db.CommitBatch(ctx, b); err != nil {
		return 0, err
	}
	return dropped, nil
}
