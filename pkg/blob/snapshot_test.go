package blob

import (
	"context"
	"testing"

	"github.com/clawdbot/sheep/pkg/kv"
)

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := kv.NewMemory(nil)
	prefix := kv.Key{"ag", "a1"}

	entries := []kv.Entry{
		{Key: kv.Key{"ag", "a1", "fact", "f1"}, Value: []byte("one")},
		{Key: kv.Key{"ag", "a1", "fact", "f2"}, Value: []byte("two")},
		{Key: kv.Key{"ag", "a1", "ep", "e1"}, Value: []byte("three")},
	}
	if err := src.BatchSet(ctx, entries); err != nil {
		t.Fatalf("BatchSet() error = %v", err)
	}
	// Outside the prefix; must not be exported.
	if err := src.Set(ctx, kv.Key{"ag", "other", "fact", "fx"}, []byte("nope")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	fs, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	wrote, err := Snapshot(ctx, src, prefix, fs, "a1.snapshot")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if wrote != len(entries) {
		t.Fatalf("wrote = %d, want %d", wrote, len(entries))
	}

	dst := kv.NewMemory(nil)
	// Stale entry under the prefix must be replaced, not merged.
	if err := dst.Set(ctx, kv.Key{"ag", "a1", "fact", "stale"}, []byte("old")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	read, err := Restore(ctx, fs, "a1.snapshot", dst)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if read != len(entries) {
		t.Fatalf("read = %d, want %d", read, len(entries))
	}

	for _, e := range entries {
		got, err := dst.Get(ctx, e.Key)
		if err != nil {
			t.Fatalf("Get(%v) error = %v", e.Key, err)
		}
		if string(got) != string(e.Value) {
			t.Errorf("Get(%v) = %q, want %q", e.Key, got, e.Value)
		}
	}
	if _, err := dst.Get(ctx, kv.Key{"ag", "a1", "fact", "stale"}); err == nil {
		t.Error("stale entry survived restore")
	}
	var leaked int
	for entry, err := range dst.List(ctx, kv.Key{"ag", "other"}) {
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		_ = entry
		leaked++
	}
	if leaked != 0 {
		t.Errorf("entries outside the prefix restored: %d", leaked)
	}
}

func TestRestoreMissingArchive(t *testing.T) {
	fs, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	if _, err := Restore(context.Background(), fs, "missing.snapshot", kv.NewMemory(nil)); err == nil {
		t.Fatal("restore of a missing archive should error")
	}
}
