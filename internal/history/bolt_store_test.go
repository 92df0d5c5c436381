package history

import (
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"
)

func openTestStore(t *testing.T, opts Options) *boltStore {
	t.Helper()
	storeRaw, err := openBolt(t.TempDir()+"/history.db", normalizeOptions(opts))
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	store := storeRaw.(*boltStore)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBoltStoreRecordsNewestFirst(t *testing.T) {
	store := openTestStore(t, Options{})

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, path := range []string{"/a", "/b", "/c"} {
		err := store.Record(Entry{
			Method:     "GET",
			URL:        "https://api.example.com" + path,
			StatusCode: 200,
			Success:    true,
			At:         base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	entries, err := store.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].URL != "https://api.example.com/c" || entries[1].URL != "https://api.example.com/b" {
		t.Fatalf("unexpected order: %#v", entries)
	}
	if entries[0].ID == "" {
		t.Fatalf("expected generated id")
	}

	all, err := store.Recent(0)
	if err != nil {
		t.Fatalf("Recent(0): %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
}

func TestBoltStoreExpiresEntries(t *testing.T) {
	store := openTestStore(t, Options{EntryTTL: time.Second, CleanupInterval: time.Second})

	now := time.Now()
	store.now = func() time.Time { return now }
	if err := store.Record(Entry{Method: "DELETE", URL: "https://api.example.com/x"}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, err := store.Recent(10)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected 1 live entry, got %d err=%v", len(entries), err)
	}

	// Jump past both the TTL and the cleanup cadence.
	now = now.Add(5 * time.Second)
	entries, err = store.Recent(10)
	if err != nil {
		t.Fatalf("Recent after expiry: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected expired entry to be hidden, got %#v", entries)
	}

	if err := store.Record(Entry{Method: "GET", URL: "https://api.example.com/y"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	var keys int
	if err := store.db.View(func(tx *bolt.Tx) error {
		keys = tx.Bucket([]byte(callBucket)).Stats().KeyN
		return nil
	}); err != nil {
		t.Fatalf("View: %v", err)
	}
	if keys != 1 {
		t.Fatalf("expected cleanup to leave 1 key, got %d", keys)
	}
}

func TestNewStoreSupportsNoop(t *testing.T) {
	store, err := NewStore("none", "", Options{})
	if err != nil {
		t.Fatalf("NewStore none: %v", err)
	}
	if err := store.Record(Entry{ID: "x"}); err != nil {
		t.Fatalf("noop store Record: %v", err)
	}
	entries, err := store.Recent(5)
	if err != nil || len(entries) != 0 {
		t.Fatalf("noop store Recent = %v, %v", entries, err)
	}
}

func TestNewStoreRejectsUnknownType(t *testing.T) {
	if _, err := NewStore("redis", "", Options{}); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
	if _, err := NewStore("bbolt", " ", Options{}); err == nil {
		t.Fatalf("expected error for missing path")
	}
}
