// Package store persists the auction house: an append-only log of
// request/effect pairs plus per-auction snapshots of the ledger, both
// CBOR-encoded in a pebble database. Snapshot reads go through a small
// LRU cache.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/fxamacker/cbor/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/StabilityNexus/hammerhouse/core"
	"github.com/StabilityNexus/hammerhouse/houseapi"
)

const snapshotCacheSize = 512

var (
	logPrefix  = []byte("l/")
	snapPrefix = []byte("a/")
)

// LogEntry is one applied operation: the request as submitted, the
// escrow effects it executed, and the events it emitted.
type LogEntry struct {
	Seq       uint64                   `json:"seq"`
	Timestamp uint64                   `json:"timestamp"`
	Principal string                   `json:"principal"`
	Request   houseapi.Request         `json:"request"`
	AuctionID uint64                   `json:"auction_id"`
	Effects   []core.Effect            `json:"effects,omitempty"`
	Events    []houseapi.EventEnvelope `json:"events,omitempty"`
}

// Store is the pebble-backed persistence layer.
type Store struct {
	db    *pebble.DB
	cache *lru.Cache[uint64, *core.AuctionSnapshot]
	seq   atomic.Uint64
}

// Open opens (or creates) the database at path and positions the log
// sequence after the last persisted entry.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", path, err)
	}
	cache, err := lru.New[uint64, *core.AuctionSnapshot](snapshotCacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}
	s := &Store{db: db, cache: cache}
	if err := s.recoverSeq(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) recoverSeq() error {
	iter, err := s.db.NewIter(prefixBounds(logPrefix))
	if err != nil {
		return err
	}
	defer iter.Close()
	if iter.Last() && iter.Valid() {
		key := iter.Key()
		if len(key) != len(logPrefix)+8 {
			return fmt.Errorf("malformed log key %x", key)
		}
		s.seq.Store(binary.BigEndian.Uint64(key[len(logPrefix):]))
	}
	return nil
}

func prefixBounds(prefix []byte) *pebble.IterOptions {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	upper[len(upper)-1]++
	return &pebble.IterOptions{LowerBound: prefix, UpperBound: upper}
}

func logKey(seq uint64) []byte {
	key := make([]byte, len(logPrefix)+8)
	copy(key, logPrefix)
	binary.BigEndian.PutUint64(key[len(logPrefix):], seq)
	return key
}

func snapKey(id uint64) []byte {
	key := make([]byte, len(snapPrefix)+8)
	copy(key, snapPrefix)
	binary.BigEndian.PutUint64(key[len(snapPrefix):], id)
	return key
}

// Append writes the next log entry and the updated snapshot of the
// touched auction in one batch. The entry's Seq is assigned here.
func (s *Store) Append(entry *LogEntry, snap *core.AuctionSnapshot) error {
	entry.Seq = s.seq.Add(1)

	entryRaw, err := cbor.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode log entry %d: %w", entry.Seq, err)
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(logKey(entry.Seq), entryRaw, nil); err != nil {
		return err
	}
	if snap != nil {
		snapRaw, err := cbor.Marshal(snap)
		if err != nil {
			return fmt.Errorf("encode snapshot %d: %w", snap.Record.ID, err)
		}
		if err := batch.Set(snapKey(snap.Record.ID), snapRaw, nil); err != nil {
			return err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit log entry %d: %w", entry.Seq, err)
	}
	if snap != nil {
		s.cache.Add(snap.Record.ID, snap)
	}
	return nil
}

// Snapshot loads one auction snapshot, preferring the cache.
func (s *Store) Snapshot(id uint64) (*core.AuctionSnapshot, error) {
	if snap, ok := s.cache.Get(id); ok {
		return snap, nil
	}
	raw, closer, err := s.db.Get(snapKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	var snap core.AuctionSnapshot
	if err := cbor.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %d: %w", id, err)
	}
	s.cache.Add(id, &snap)
	return &snap, nil
}

// Restore imports every persisted auction into the ledger and returns
// how many were loaded.
func (s *Store) Restore(ledger *core.LedgerState) (int, error) {
	iter, err := s.db.NewIter(prefixBounds(snapPrefix))
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		var snap core.AuctionSnapshot
		if err := cbor.Unmarshal(iter.Value(), &snap); err != nil {
			return n, fmt.Errorf("decode snapshot at %x: %w", iter.Key(), err)
		}
		if err := ledger.Import(&snap); err != nil {
			return n, err
		}
		n++
	}
	return n, iter.Error()
}

// LogRange reads entries with from <= Seq <= to, in order.
func (s *Store) LogRange(from, to uint64) ([]LogEntry, error) {
	iter, err := s.db.NewIter(prefixBounds(logPrefix))
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var entries []LogEntry
	for ok := iter.SeekGE(logKey(from)); ok && iter.Valid(); ok = iter.Next() {
		var entry LogEntry
		if err := cbor.Unmarshal(iter.Value(), &entry); err != nil {
			return nil, fmt.Errorf("decode log entry at %x: %w", iter.Key(), err)
		}
		if entry.Seq > to {
			break
		}
		entries = append(entries, entry)
	}
	return entries, iter.Error()
}

// LastSeq reports the sequence of the newest log entry.
func (s *Store) LastSeq() uint64 {
	return s.seq.Load()
}
