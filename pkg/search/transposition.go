package search

import (
	"context"
	"fmt"
	"math"
	"math/bits"
	"sync/atomic"

	"github.com/corvidchess/corvid/pkg/board"
	"github.com/corvidchess/corvid/pkg/eval"
	"github.com/seekerror/logw"
)

// Bound represents the bound of a -- possibly inexact -- search score.
type Bound uint8

const (
	NoneBound Bound = iota
	UpperBound
	LowerBound
	ExactBound
)

func (b Bound) String() string {
	switch b {
	case ExactBound:
		return "Exact"
	case LowerBound:
		return "Lower"
	case UpperBound:
		return "Upper"
	default:
		return "None"
	}
}

// TranspositionTable represents a transposition table to speed up search performance.
// Caveat: evaluation heuristics that depend on the game history (notably, hasCastled or
// last move) may be unsuitable for position-keyed caching. If the recent history is short,
// then the table may only be used for depth greater than some limit. Must be thread-safe.
type TranspositionTable interface {
	// Read returns the bound, depth, score, best move and ttPv flag (whether any ancestor of
	// this entry was ever searched as a PV node) for the given position hash, if present. ply
	// is the ply of the probing node and is used to re-express a stored mate score in terms of
	// distance from the root rather than distance from this node.
	Read(hash board.ZobristHash, ply int) (Bound, int, eval.Score, board.Move, bool, bool)
	// Write stores the entry into the table, depending on table semantics and replacement policy.
	Write(hash board.ZobristHash, bound Bound, ply, depth int, score eval.Score, move board.Move) bool

	// ReadEval returns the cached static evaluation for the given hash, if present.
	ReadEval(hash board.ZobristHash) (eval.Score, bool)
	// WriteEval caches a static evaluation for the given hash without disturbing the rest
	// of any entry already stored for it.
	WriteEval(hash board.ZobristHash, e eval.Score)

	// NewSearch ages the table by one generation. Preferred over clearing it: stale entries
	// remain readable (and still useful as move-ordering hints) but lose replacement priority
	// to fresher ones.
	NewSearch()

	// Size returns the size of the table in bytes.
	Size() uint64
	// Used returns the utilization as a fraction [0;1], sampling a prefix of the table --
	// the UCI hashfull statistic.
	Used() float64
}

type TranspositionTableFactory func(ctx context.Context, size uint64) TranspositionTable

// generationDelta is added to the table's generation counter once per new search (1<<3), so
// it only ever touches the upper 5 generation bits of genBound8, never the low 3 flag bits
// (2 bits bound, 1 bit ttPv).
const generationDelta uint8 = 8

// generationCycle and generationMask isolate the generation bits of genBound8 to compute a
// cyclic relative age.
const (
	generationCycle = 256
	generationMask  = 0xF8
)

// clusterSize is the number of entries sharing one cluster; clusters are the unit of
// replacement, matching a 32-byte cache line of 10-byte packed entries plus padding.
const clusterSize = 3

// clusterBytes is the nominal on-the-wire size of one cluster (three 10-byte packed entries --
// key16/move16/value16/eval16/depth8/genBound8 -- plus 2 padding bytes). Go's atomics need
// wider backing words than the packed layout implies, so the in-memory struct is larger, but
// table sizing still follows this nominal byte budget.
const clusterBytes = 32

// depthOffset is added to stored depths so depth8 == 0 unambiguously marks an empty slot (a
// real search never runs shallow enough to underflow the offset).
const depthOffset = 8

// ttEntry is one packed transposition slot. Every field is written and read independently and
// without a lock: concurrent workers sharing the table may observe a torn entry, so callers
// must treat every read as a hint and validate it (move pseudo-legality, bound vs window)
// before trusting it.
type ttEntry struct {
	key16     atomic.Uint32 // low 16 bits of the Zobrist key; cross-cluster collisions accepted
	move16    atomic.Uint32 // packed bestmove, or zero (NONE)
	value32   atomic.Uint32 // bits of the score, relative to the node it was stored from
	eval32    atomic.Uint32 // bits of the cached static eval
	depth8    atomic.Uint32 // search depth plus depthOffset
	genBound8 atomic.Uint32 // generation (5 bits) | ttPv (1 bit) | bound (2 bits)
}

func (e *ttEntry) empty() bool {
	return e.depth8.Load() == 0
}

func (e *ttEntry) relativeAge(generation uint8) uint8 {
	return uint8((generationCycle + int(generation) - int(e.genBound8.Load())) & generationMask)
}

// replacementValue scores a slot for the keep-or-evict decision: depth − 8·age, preferring
// empty slots outright.
func (e *ttEntry) replacementValue(generation uint8) int {
	if e.empty() {
		return -1 << 30
	}
	return int(e.depth8.Load()) - 8*int(e.relativeAge(generation)/generationDelta)
}

// cluster is three entries sharing one cache line's worth of table.
type cluster struct {
	entries [clusterSize]ttEntry
}

// table is the Zobrist-keyed transposition table. Indexing uses the high half of a 64x64
// multiply (mul_hi64) against the cluster count instead of a power-of-two mask, so any table
// size -- not just a power of two -- spreads keys uniformly.
type table struct {
	clusters   []cluster
	generation atomic.Uint32 // low byte is the live generation; upper bytes unused
}

func NewTranspositionTable(ctx context.Context, size uint64) TranspositionTable {
	n := size / clusterBytes
	if n == 0 {
		n = 1
	}

	logw.Infof(ctx, "Allocating %vMB TT with %v clusters (%v entries)", size>>20, n, n*clusterSize)

	t := &table{clusters: make([]cluster, n)}
	t.generation.Store(uint32(generationDelta))
	return t
}

func (t *table) Size() uint64 {
	return uint64(len(t.clusters)) * clusterBytes
}

// index returns the cluster owning the given key via mul_hi64(key, len(clusters)).
func (t *table) index(hash board.ZobristHash) uint64 {
	hi, _ := bits.Mul64(uint64(hash), uint64(len(t.clusters)))
	return hi
}

func (t *table) NewSearch() {
	t.generation.Add(uint32(generationDelta))
}

func (t *table) generationByte() uint8 {
	return uint8(t.generation.Load())
}

func key16(hash board.ZobristHash) uint32 {
	return uint32(hash) & 0xFFFF
}

func packMove(m board.Move) uint32 {
	if m == (board.Move{}) {
		return 0
	}
	return uint32(m.From)<<10 | uint32(m.To)<<4 | uint32(m.Promotion)
}

func unpackMove(v uint32) board.Move {
	if v == 0 {
		return board.Move{}
	}
	return board.Move{
		From:      board.Square((v >> 10) & 0x3F),
		To:        board.Square((v >> 4) & 0x3F),
		Promotion: board.Piece(v & 0xF),
	}
}

func packGenBound(generation uint8, ttPv bool, bound Bound) uint32 {
	g := generation &^ 0x7
	var pv uint32
	if ttPv {
		pv = 1 << 2
	}
	return uint32(g) | pv | uint32(bound)
}

func unpackBound(genBound uint32) Bound {
	return Bound(genBound & 0x3)
}

func unpackTTPv(genBound uint32) bool {
	return genBound&(1<<2) != 0
}

// valueToTT translates a score from "distance to mate from the search root" into "distance to
// mate from this node": a mate found some plies below the root is that many plies closer when
// replayed from a shallower occurrence of the same position, so the stored value must not
// carry the current ply baked in.
func valueToTT(v eval.Score, ply int) eval.Score {
	switch {
	case v.IsInvalid():
		return v
	case v > eval.MateBound:
		return v + eval.Score(ply)
	case v < -eval.MateBound:
		return v - eval.Score(ply)
	default:
		return v
	}
}

// valueFromTT is the inverse of valueToTT, re-expressing a stored node-relative mate score in
// terms of the ply at which it is being read back.
func valueFromTT(v eval.Score, ply int) eval.Score {
	switch {
	case v.IsInvalid():
		return v
	case v > eval.MateBound:
		return v - eval.Score(ply)
	case v < -eval.MateBound:
		return v + eval.Score(ply)
	default:
		return v
	}
}

// probe scans a key's cluster for a matching, non-empty entry. On a miss it also returns the
// slot that should be overwritten next, per the replacement policy.
func (t *table) probe(hash board.ZobristHash) (e *ttEntry, hit bool) {
	c := &t.clusters[t.index(hash)]
	key := key16(hash)
	generation := t.generationByte()

	for i := range c.entries {
		slot := &c.entries[i]
		if !slot.empty() && slot.key16.Load() == key {
			// Refresh the generation in place so a hit is not immediately treated as stale and
			// evicted, even if this search never rewrites it.
			bound := unpackBound(slot.genBound8.Load())
			ttPv := unpackTTPv(slot.genBound8.Load())
			slot.genBound8.Store(packGenBound(generation, ttPv, bound))
			return slot, true
		}
	}

	replace := &c.entries[0]
	best := replace.replacementValue(generation)
	for i := 1; i < len(c.entries); i++ {
		if v := c.entries[i].replacementValue(generation); v < best {
			best = v
			replace = &c.entries[i]
		}
	}
	return replace, false
}

func (t *table) Read(hash board.ZobristHash, ply int) (Bound, int, eval.Score, board.Move, bool, bool) {
	e, ok := t.probe(hash)
	if !ok {
		return NoneBound, 0, eval.ZeroScore, board.Move{}, false, false
	}

	depth := int(e.depth8.Load()) - depthOffset
	genBound := e.genBound8.Load()
	bound := unpackBound(genBound)
	score := valueFromTT(eval.Score(math.Float32frombits(e.value32.Load())), ply)
	move := unpackMove(e.move16.Load())
	return bound, depth, score, move, unpackTTPv(genBound), true
}

func (t *table) ReadEval(hash board.ZobristHash) (eval.Score, bool) {
	e, ok := t.probe(hash)
	if !ok {
		return eval.ZeroScore, false
	}
	return eval.Score(math.Float32frombits(e.eval32.Load())), true
}

func (t *table) WriteEval(hash board.ZobristHash, ev eval.Score) {
	e, hit := t.probe(hash)
	if !hit {
		// Claim the slot as an eval-only entry: no bound, no score, and the shallowest non-empty
		// depth, so any searched result for the key replaces it.
		e.key16.Store(key16(hash))
		e.move16.Store(0)
		e.value32.Store(math.Float32bits(float32(eval.InvalidScore)))
		e.depth8.Store(1)
		e.genBound8.Store(packGenBound(t.generationByte(), false, NoneBound))
	}
	e.eval32.Store(math.Float32bits(float32(ev)))
}

func (t *table) Write(hash board.ZobristHash, bound Bound, ply, depth int, score eval.Score, move board.Move) bool {
	e, hit := t.probe(hash)

	key := key16(hash)
	generation := t.generationByte()
	newDepth := depth + depthOffset

	moveToStore := packMove(move)
	if moveToStore == 0 && hit {
		moveToStore = e.move16.Load() // preserve a known best move when the caller has none
	}

	if !hit || bound == ExactBound || e.key16.Load() != key || newDepth-4 > int(e.depth8.Load()) {
		ttPv := unpackTTPv(e.genBound8.Load()) || bound == ExactBound
		e.key16.Store(key)
		e.move16.Store(moveToStore)
		e.value32.Store(math.Float32bits(float32(valueToTT(score, ply))))
		e.depth8.Store(uint32(newDepth))
		e.genBound8.Store(packGenBound(generation, ttPv, bound))
		return true
	}
	return false
}

// Used implements the UCI hashfull statistic: the fraction of slots in the first 1000 clusters
// holding an entry written during the current generation.
func (t *table) Used() float64 {
	sample := len(t.clusters)
	if sample > 1000 {
		sample = 1000
	}
	if sample == 0 {
		return 0
	}

	generation := t.generationByte() &^ 0x7
	var filled int
	for i := 0; i < sample; i++ {
		for j := range t.clusters[i].entries {
			e := &t.clusters[i].entries[j]
			if !e.empty() && uint8(e.genBound8.Load())&^0x7 == generation {
				filled++
			}
		}
	}
	return float64(filled) / float64(sample*clusterSize)
}

func (t *table) String() string {
	return fmt.Sprintf("TT[%v @ %v%%]", t.Size(), int(100*t.Used()))
}

// WriteFilter is a predicate on the Write operation.
type WriteFilter func(hash board.ZobristHash, bound Bound, ply, depth int, score eval.Score, move board.Move) bool

// WriteLimited is a TranspositionTable wrapper that ignores certain writes, such as
// less than a given minimum depth. Useful if evaluation uses recent move history.
type WriteLimited struct {
	Filter WriteFilter
	TT     TranspositionTable
}

func (w WriteLimited) Read(hash board.ZobristHash, ply int) (Bound, int, eval.Score, board.Move, bool, bool) {
	return w.TT.Read(hash, ply)
}

func (w WriteLimited) Write(hash board.ZobristHash, bound Bound, ply, depth int, score eval.Score, move board.Move) bool {
	if w.Filter(hash, bound, ply, depth, score, move) {
		return false
	}
	return w.TT.Write(hash, bound, ply, depth, score, move)
}

func (w WriteLimited) ReadEval(hash board.ZobristHash) (eval.Score, bool) {
	return w.TT.ReadEval(hash)
}

func (w WriteLimited) WriteEval(hash board.ZobristHash, e eval.Score) {
	w.TT.WriteEval(hash, e)
}

func (w WriteLimited) NewSearch() {
	w.TT.NewSearch()
}

func (w WriteLimited) Size() uint64 {
	return w.TT.Size()
}

func (w WriteLimited) Used() float64 {
	return w.TT.Used()
}

// NewMinDepthTranspositionTable creates depth-limited TranspositionTables.
func NewMinDepthTranspositionTable(min int) TranspositionTableFactory {
	return func(ctx context.Context, size uint64) TranspositionTable {
		return WriteLimited{
			Filter: func(hash board.ZobristHash, bound Bound, ply, depth int, score eval.Score, move board.Move) bool {
				return depth < min
			},
			TT: NewTranspositionTable(ctx, size),
		}
	}
}

// NoTranspositionTable is a Nop implementation.
type NoTranspositionTable struct{}

func (n NoTranspositionTable) Read(hash board.ZobristHash, ply int) (Bound, int, eval.Score, board.Move, bool, bool) {
	return NoneBound, 0, eval.ZeroScore, board.Move{}, false, false
}

func (n NoTranspositionTable) Write(hash board.ZobristHash, bound Bound, ply, depth int, score eval.Score, move board.Move) bool {
	return false
}

func (n NoTranspositionTable) ReadEval(hash board.ZobristHash) (eval.Score, bool) {
	return eval.ZeroScore, false
}

func (n NoTranspositionTable) WriteEval(hash board.ZobristHash, e eval.Score) {}

func (n NoTranspositionTable) NewSearch() {}

func (n NoTranspositionTable) Size() uint64 {
	return 0
}

func (n NoTranspositionTable) Used() float64 {
	return 0
}
