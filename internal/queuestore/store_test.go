package queuestore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pebblestore "github.com/mkatragadda/Vitta-sub011/internal/storage/pebble"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db, nil)
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	rec := Record{
		Key:   "m1",
		Value: json.RawMessage(`{"text":"hello"}`),
		Index: map[string]string{"synced": "false", "timestamp": TimeIndexValue(time.UnixMilli(1000))},
	}
	if err := s.Put(ctx, StorePendingMessages, rec); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.Get(ctx, StorePendingMessages, "m1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Value) != `{"text":"hello"}` {
		t.Fatalf("value = %s", got.Value)
	}
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), StorePendingMessages, "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestUnknownStoreRejected(t *testing.T) {
	s := openTestStore(t)
	err := s.Put(context.Background(), "bogus", Record{Key: "k"})
	if !errors.Is(err, ErrUnknownStore) {
		t.Fatalf("want ErrUnknownStore, got %v", err)
	}
}

func TestUnknownIndexRejected(t *testing.T) {
	s := openTestStore(t)
	err := s.Put(context.Background(), StorePendingMessages, Record{
		Key:   "m1",
		Index: map[string]string{"color": "red"},
	})
	if err == nil {
		t.Fatalf("expected index validation error")
	}
}

func TestGetAllByIndex(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for i, synced := range []string{"false", "true", "false"} {
		rec := Record{
			Key:   string(rune('a' + i)),
			Value: json.RawMessage(`{}`),
			Index: map[string]string{"synced": synced},
		}
		if err := s.Put(ctx, StorePendingMessages, rec); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	unsynced, err := s.GetAllByIndex(ctx, StorePendingMessages, "synced", "false")
	if err != nil {
		t.Fatalf("getAllByIndex: %v", err)
	}
	if len(unsynced) != 2 {
		t.Fatalf("got %d unsynced, want 2", len(unsynced))
	}
}

func TestPutReplacesIndexEntries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	rec := Record{Key: "m1", Value: json.RawMessage(`{}`), Index: map[string]string{"synced": "false"}}
	if err := s.Put(ctx, StorePendingMessages, rec); err != nil {
		t.Fatalf("put: %v", err)
	}
	rec.Index["synced"] = "true"
	if err := s.Put(ctx, StorePendingMessages, rec); err != nil {
		t.Fatalf("re-put: %v", err)
	}
	stale, _ := s.GetAllByIndex(ctx, StorePendingMessages, "synced", "false")
	if len(stale) != 0 {
		t.Fatalf("stale index entries remain: %d", len(stale))
	}
	fresh, _ := s.GetAllByIndex(ctx, StorePendingMessages, "synced", "true")
	if len(fresh) != 1 {
		t.Fatalf("fresh index missing: %d", len(fresh))
	}
}

func TestDeleteRemovesIndexEntries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	rec := Record{Key: "op1", Value: json.RawMessage(`{}`), Index: map[string]string{"kind": "send-message"}}
	if err := s.Put(ctx, StoreOfflineQueue, rec); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Delete(ctx, StoreOfflineQueue, "op1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	byKind, _ := s.GetAllByIndex(ctx, StoreOfflineQueue, "kind", "send-message")
	if len(byKind) != 0 {
		t.Fatalf("index entry survived delete")
	}
	// Deleting again is a no-op.
	if err := s.Delete(ctx, StoreOfflineQueue, "op1"); err != nil {
		t.Fatalf("double delete: %v", err)
	}
}

func TestClearAndCount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for _, k := range []string{"a", "b", "c"} {
		_ = s.Put(ctx, StoreSyncLog, Record{Key: k, Value: json.RawMessage(`{}`), Index: map[string]string{"status": "ok"}})
	}
	n, err := s.Count(ctx, StoreSyncLog)
	if err != nil || n != 3 {
		t.Fatalf("count = %d, %v", n, err)
	}
	if err := s.Clear(ctx, StoreSyncLog); err != nil {
		t.Fatalf("clear: %v", err)
	}
	n, _ = s.Count(ctx, StoreSyncLog)
	if n != 0 {
		t.Fatalf("count after clear = %d", n)
	}
}

func TestTimeIndexValueOrdering(t *testing.T) {
	early := TimeIndexValue(time.UnixMilli(999))
	late := TimeIndexValue(time.UnixMilli(1000))
	if early >= late {
		t.Fatalf("lexicographic order broken: %s >= %s", early, late)
	}
}

func TestFrameDetectsCorruption(t *testing.T) {
	framed := EncodeFrame([]byte(`{"a":1}`))
	if _, ok := DecodeFrame(framed); !ok {
		t.Fatalf("valid frame rejected")
	}
	framed[5] ^= 0xFF
	if _, ok := DecodeFrame(framed); ok {
		t.Fatalf("corrupt frame accepted")
	}
}
