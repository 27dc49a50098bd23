package blob

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/clawdbot/sheep/pkg/kv"
)

// snapshotVersion is the archive format version. Bump on incompatible
// layout changes; Restore rejects versions it does not know.
const snapshotVersion = 1

// restoreBatch is the number of entries written per BatchSet.
const restoreBatch = 256

// snapshotHeader opens every archive.
type snapshotHeader struct {
	Version   int       `msgpack:"version"`
	Prefix    []string  `msgpack:"prefix"`
	CreatedAt time.Time `msgpack:"createdAt"`
}

// snapshotEntry is one KV pair in the archive.
type snapshotEntry struct {
	Key   []string `msgpack:"key"`
	Value []byte   `msgpack:"value"`
}

// Snapshot streams every KV entry under prefix into a msgpack archive
// at path. Returns the number of entries written.
func Snapshot(ctx context.Context, db kv.Store, prefix kv.Key, fs FileStore, path string) (int, error) {
	w, err := fs.Write(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("blob: snapshot: %w", err)
	}
	enc := msgpack.NewEncoder(w)
	if err := enc.Encode(snapshotHeader{
		Version:   snapshotVersion,
		Prefix:    prefix,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		w.Close()
		return 0, fmt.Errorf("blob: snapshot: header: %w", err)
	}

	n := 0
	for entry, err := range db.List(ctx, prefix) {
		if err != nil {
			w.Close()
			return n, fmt.Errorf("blob: snapshot: list: %w", err)
		}
		if err := enc.Encode(snapshotEntry{Key: entry.Key, Value: entry.Value}); err != nil {
			w.Close()
			return n, fmt.Errorf("blob: snapshot: entry: %w", err)
		}
		n++
	}
	if err := w.Close(); err != nil {
		return n, fmt.Errorf("blob: snapshot: close: %w", err)
	}
	return n, nil
}

// Restore reads an archive written by [Snapshot] and writes its entries
// into db. Existing entries under the archive's prefix are deleted
// first, so a restore is a full replacement, not a merge. Returns the
// number of entries restored.
func Restore(ctx context.Context, fs FileStore, path string, db kv.Store) (int, error) {
	r, err := fs.Read(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("blob: restore: %w", err)
	}
	defer r.Close()

	dec := msgpack.NewDecoder(r)
	var hdr snapshotHeader
	if err := dec.Decode(&hdr); err != nil {
		return 0, fmt.Errorf("blob: restore: header: %w", err)
	}
	if hdr.Version != snapshotVersion {
		return 0, fmt.Errorf("blob: restore: unsupported snapshot version %d", hdr.Version)
	}

	if err := clearPrefix(ctx, db, kv.Key(hdr.Prefix)); err != nil {
		return 0, err
	}

	n := 0
	batch := make([]kv.Entry, 0, restoreBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := db.BatchSet(ctx, batch); err != nil {
			return fmt.Errorf("blob: restore: write: %w", err)
		}
		batch = batch[:0]
		return nil
	}
	for {
		var e snapshotEntry
		if err := dec.Decode(&e); err != nil {
			if err == io.EOF {
				break
			}
			return n, fmt.Errorf("blob: restore: entry: %w", err)
		}
		batch = append(batch, kv.Entry{Key: kv.Key(e.Key), Value: e.Value})
		n++
		if len(batch) == restoreBatch {
			if err := flush(); err != nil {
				return n, err
			}
		}
	}
	if err := flush(); err != nil {
		return n, err
	}
	return n, nil
}

func clearPrefix(ctx context.Context, db kv.Store, prefix kv.Key) error {
	// Collect first: deleting while iterating is backend-dependent.
	var keys []kv.Key
	for entry, err := range db.List(ctx, prefix) {
		if err != nil {
			return fmt.Errorf("blob: restore: clear: %w", err)
		}
		keys = append(keys, entry.Key)
	}
	for len(keys) > 0 {
		n := min(len(keys), restoreBatch)
		if err := db.BatchDelete(ctx, keys[:n]); err != nil {
			return fmt.Errorf("blob: restore: clear: %w", err)
		}
		keys = keys[n:]
	}
	return nil
}
