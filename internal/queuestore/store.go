package queuestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	pebblestore "github.com/mkatragadda/Vitta-sub011/internal/storage/pebble"
)

// Required stores and the secondary indexes each one declares.
const (
	StorePendingMessages = "pending_messages"
	StorePendingPayments = "pending_payments"
	StoreChatHistory     = "chat_history"
	StoreSyncLog         = "sync_log"
	StoreOfflineQueue    = "offline-queue"
)

// Schema maps each known store to its allowed index names.
var Schema = map[string][]string{
	StorePendingMessages: {"synced", "timestamp"},
	StorePendingPayments: {"synced", "cardId"},
	StoreChatHistory:     {"synced", "timestamp"},
	StoreSyncLog:         {"status", "timestamp"},
	StoreOfflineQueue:    {"kind", "enqueuedAt"},
}

var (
	// ErrNotFound is returned when a record key does not exist.
	ErrNotFound = errors.New("queuestore: record not found")
	// ErrUnknownStore is returned for store names outside the schema.
	ErrUnknownStore = errors.New("queuestore: unknown store")
	// ErrCorruptRecord is returned when a stored frame fails its checksum.
	ErrCorruptRecord = errors.New("queuestore: corrupt record")
)

// Record is a durable document plus the index values it is filed under.
type Record struct {
	Key   string            `json:"key"`
	Value json.RawMessage   `json:"value"`
	Index map[string]string `json:"index,omitempty"`
}

// TimeIndexValue renders a time as a fixed-width millisecond string so that
// lexicographic index order matches chronological order.
func TimeIndexValue(t time.Time) string {
	return fmt.Sprintf("%020d", t.UnixMilli())
}

// BoolIndexValue renders a bool for synced-style indexes.
func BoolIndexValue(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

// Store provides the durable named-store protocol over Pebble.
type Store struct {
	db  *pebblestore.DB
	log *zap.Logger
}

// New wraps the shared database. A nil logger falls back to zap.NewNop.
func New(db *pebblestore.DB, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: db, log: log.Named("queuestore")}
}

func checkIndexes(store string, index map[string]string) error {
	allowed, ok := Schema[store]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStore, store)
	}
	for name := range index {
		found := false
		for _, a := range allowed {
			if a == name {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("queuestore: store %s has no index %q", store, name)
		}
	}
	return nil
}

// Put writes a record and its index entries in one atomic batch. An existing
// record under the same key has its old index entries removed first.
func (s *Store) Put(ctx context.Context, store string, rec Record) error {
	if rec.Key == "" {
		return errors.New("queuestore: record key required")
	}
	if err := checkIndexes(store, rec.Index); err != nil {
		return err
	}

	b := s.db.NewBatch()
	defer b.Close()

	// Drop index entries of any previous version of this record.
	if old, err := s.getRecord(store, rec.Key); err == nil {
		for name, value := range old.Index {
			if err := b.Delete(idxKey(store, name, value, rec.Key), nil); err != nil {
				return err
			}
		}
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("queuestore: encode record: %w", err)
	}
	if err := b.Set(recKey(store, rec.Key), EncodeFrame(doc), nil); err != nil {
		return err
	}
	for name, value := range rec.Index {
		if err := b.Set(idxKey(store, name, value, rec.Key), nil, nil); err != nil {
			return err
		}
	}
	return s.db.CommitBatch(ctx, b)
}

func (s *Store) getRecord(store, key string) (Record, error) {
	raw, err := s.db.Get(recKey(store, key))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	doc, ok := DecodeFrame(raw)
	if !ok {
		return Record{}, ErrCorruptRecord
	}
	var rec Record
	if err := json.Unmarshal(doc, &rec); err != nil {
		return Record{}, fmt.Errorf("queuestore: decode record: %w", err)
	}
	return rec, nil
}

// Get returns the record stored under key.
func (s *Store) Get(ctx context.Context, store, key string) (Record, error) {
	if _, ok := Schema[store]; !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrUnknownStore, store)
	}
	return s.getRecord(store, key)
}

// GetAllByIndex returns every record whose index entry matches the given
// value, ordered by record key within the value.
func (s *Store) GetAllByIndex(ctx context.Context, store, index, value string) ([]Record, error) {
	if err := checkIndexes(store, map[string]string{index: value}); err != nil {
		return nil, err
	}
	prefix := idxValuePrefix(store, index, value)
	iter, err := s.db.NewPrefixIter(prefix)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []Record
	for ok := iter.First(); ok; ok = iter.Next() {
		key := parseKeyFromIdx(iter.Key(), prefix)
		if key == "" {
			continue
		}
		rec, err := s.getRecord(store, key)
		if err != nil {
			// A dangling index entry points at a record that no longer
			// decodes; skip it rather than failing the scan.
			s.log.Warn("dangling index entry",
				zap.String("store", store), zap.String("index", index), zap.String("key", key))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// GetAll returns every record in the store in key order.
func (s *Store) GetAll(ctx context.Context, store string) ([]Record, error) {
	if _, ok := Schema[store]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStore, store)
	}
	prefix := recPrefix(store)
	iter, err := s.db.NewPrefixIter(prefix)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []Record
	for ok := iter.First(); ok; ok = iter.Next() {
		doc, okDec := DecodeFrame(iter.Value())
		if !okDec {
			s.log.Warn("corrupt record skipped", zap.String("store", store), zap.ByteString("key", iter.Key()))
			continue
		}
		var rec Record
		if err := json.Unmarshal(doc, &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Delete removes a record and its index entries atomically. Deleting a
// missing key is not an error.
func (s *Store) Delete(ctx context.Context, store, key string) error {
	if _, ok := Schema[store]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStore, store)
	}
	rec, err := s.getRecord(store, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Delete(recKey(store, key), nil); err != nil {
		return err
	}
	for name, value := range rec.Index {
		if err := b.Delete(idxKey(store, name, value, key), nil); err != nil {
			return err
		}
	}
	return s.db.CommitBatch(ctx, b)
}

// Clear removes every record and index entry in the store.
func (s *Store) Clear(ctx context.Context, store string) error {
	if _, ok := Schema[store]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStore, store)
	}
	_, err := s.db.DeletePrefix(ctx, []byte(storePrefix(store)))
	return err
}

// Count returns the number of records in the store.
func (s *Store) Count(ctx context.Context, store string) (int, error) {
	if _, ok := Schema[store]; !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownStore, store)
	}
	iter, err := s.db.NewPrefixIter(recPrefix(store))
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	n := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		n++
	}
	return n, nil
}
