package learning

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/corvidchess/corvid/pkg/board"
	"github.com/corvidchess/corvid/pkg/eval"
	"github.com/dgraph-io/badger/v4"
	"github.com/seekerror/logw"
)

// Mode mirrors the "Persisted Learning" UCI combo: Off disables the store outright, Standard
// both reads and writes corrections, Self only reads (the "Read only learning" check).
type Mode uint8

const (
	Off Mode = iota
	Standard
	Self
)

// Store is the correction/learning store: a binary record stream on disk, backed by a BadgerDB
// hot cache for key-to-record lookup without rescanning the file on every probe.
// Records accumulate in memory over the course of one game and are folded back into persisted
// corrections by a backward Bellman pass at game end.
type Store struct {
	path string
	db   *badger.DB

	mu         sync.Mutex
	mode       Mode
	trajectory []step
}

type step struct {
	key   uint64
	depth uint8
	score eval.Score
	move  board.Move
	turn  board.Color
}

// Open opens (creating if absent) the learning store rooted at dir: dir/learning.dat holds the
// append-only record stream and dir/cache holds the BadgerDB hot-lookup index rebuilt from it.
func Open(ctx context.Context, dir string, mode Mode) (*Store, error) {
	if mode == Off {
		return &Store{mode: Off}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(filepath.Join(dir, "cache"))
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	s := &Store{path: filepath.Join(dir, "learning.dat"), db: db, mode: mode}
	if err := s.rebuildCache(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// SetMode switches between Standard (read/write) and Self (read-only) at runtime, mirroring the
// "Persisted Learning" / "Read only learning" UCI options. A no-op if the store was opened Off.
func (s *Store) SetMode(m Mode) {
	if s == nil || s.db == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
}

// Close releases the BadgerDB handle. Pending in-memory trajectory data, if any, is lost; call
// GameEnded first to flush it.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// rebuildCache replays the on-disk record stream into BadgerDB, tolerating truncation at any
// record boundary.
func (s *Store) rebuildCache(ctx context.Context) error {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	return s.db.Update(func(txn *badger.Txn) error {
		for {
			rec, err := readRecord(f)
			if err == nil {
				if setErr := txn.Set(keyBytes(rec.Key), rec.writeTo(nil)); setErr != nil {
					return setErr
				}
				continue
			}
			if err == io.EOF {
				return nil
			}
			// Truncated mid-record: stop reading, keep what was recovered.
			logw.Warningf(ctx, "Learning file %v truncated; stopping replay", s.path)
			return nil
		}
	})
}

func keyBytes(key uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], key)
	return b[:]
}

// Probe looks up a persisted correction for the given position hash, suitable for use as a
// non-PV transposition-table cutoff hint. Returns ok=false if the store is disabled or has no
// entry.
func (s *Store) Probe(key uint64) (Record, bool) {
	if s == nil || s.db == nil || s.mode == Off {
		return Record{}, false
	}

	var rec Record
	found := false
	_ = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyBytes(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			r, rerr := readRecord(bytes.NewReader(val))
			if rerr != nil {
				return nil
			}
			rec, found = r, true
			return nil
		})
	})
	return rec, found
}

// Observe records one search result along the game's move sequence, to be folded into a
// persisted correction once the game's outcome is known. A no-op in Self (read-only) mode.
func (s *Store) Observe(key uint64, depth int, score eval.Score, move board.Move, turn board.Color) {
	if s == nil || s.mode != Standard {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trajectory = append(s.trajectory, step{key: key, depth: uint8(clampDepth(depth)), score: score, move: move, turn: turn})
}

func clampDepth(d int) int {
	if d < 0 {
		return 0
	}
	if d > 255 {
		return 255
	}
	return d
}

// gameEndedDiscount controls how strongly the backward Bellman fold trusts the final game
// outcome for moves further from the end: a move made distance plies before the last recorded
// one is weighted by gameEndedDiscount^distance, decaying toward a neutral 0.5 performance for
// early-game moves whose connection to the final result is weakest.
const gameEndedDiscount = 0.85

// GameEnded folds the recorded trajectory into persisted corrections via a backward Bellman
// pass: the terminal outcome propagates backward through the game, weighted more heavily for
// moves close to the decisive result than for early-game moves. No-op in Off or Self mode, or
// with an empty trajectory.
func (s *Store) GameEnded(ctx context.Context, outcome board.Outcome) error {
	if s == nil || s.mode != Standard {
		return nil
	}

	s.mu.Lock()
	trajectory := s.trajectory
	s.trajectory = nil
	s.mu.Unlock()

	if len(trajectory) == 0 {
		return nil
	}

	n := len(trajectory)
	records := make([]Record, 0, n)
	for i, st := range trajectory {
		distanceFromEnd := n - 1 - i
		decay := math.Pow(gameEndedDiscount, float64(distanceFromEnd))
		result := outcomeValue(outcome, st.turn)
		value := 0.5 + decay*(result-0.5)

		records = append(records, Record{
			Key:         st.key,
			Depth:       st.depth,
			Score:       int16(clampScore(st.score)),
			Move:        encodeMove(st.move),
			Performance: uint8(clampDepth(int(value * 200))),
		})
	}

	return s.persist(ctx, records)
}

func clampScore(s eval.Score) int {
	cp := int(float64(s) * 100)
	if cp > 32000 {
		return 32000
	}
	if cp < -32000 {
		return -32000
	}
	return cp
}

func outcomeValue(outcome board.Outcome, turn board.Color) float64 {
	switch outcome {
	case board.Draw:
		return 0.5
	case board.WhiteWins:
		if turn == board.White {
			return 1
		}
		return 0
	case board.BlackWins:
		if turn == board.Black {
			return 1
		}
		return 0
	default:
		return 0.5
	}
}

// persist writes the new records to the BadgerDB hot cache and appends them to the on-disk
// stream, then atomically replaces the stream file via rename-temp-file so a crash mid-write
// never corrupts the previously committed records.
func (s *Store) persist(ctx context.Context, records []Record) error {
	if err := s.db.Update(func(txn *badger.Txn) error {
		for _, r := range records {
			if err := txn.Set(keyBytes(r.Key), r.writeTo(nil)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	existing, err := os.ReadFile(s.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	buf := append([]byte(nil), existing...)
	for _, r := range records {
		buf = r.writeTo(buf)
	}

	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}

	logw.Infof(ctx, "Learning store persisted %v correction(s) to %v", len(records), s.path)
	return nil
}
