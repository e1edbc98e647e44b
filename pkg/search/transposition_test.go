package search_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/corvidchess/corvid/pkg/board"
	"github.com/corvidchess/corvid/pkg/eval"
	"github.com/corvidchess/corvid/pkg/search"
	"github.com/stretchr/testify/assert"
)

func TestTranspositionTableSizeRoundsToClusterGranularity(t *testing.T) {
	ctx := context.Background()

	tt := search.NewTranspositionTable(ctx, 0x1000)
	assert.Equal(t, uint64(0x1000), tt.Size())

	// A size that isn't an exact multiple of one cluster rounds down, not up: a caller must
	// never be handed more memory than requested.
	tt2 := search.NewTranspositionTable(ctx, 0x1005)
	assert.Equal(t, uint64(0x1000), tt2.Size())
}

func TestTranspositionTableReadWriteRoundtrip(t *testing.T) {
	ctx := context.Background()
	tt := search.NewTranspositionTable(ctx, 1<<20)

	a := board.ZobristHash(rand.Uint64())

	_, _, _, _, _, ok := tt.Read(a, 0)
	assert.False(t, ok)

	m := board.Move{From: board.G4, To: board.G8, Promotion: board.Queen}
	s := eval.HeuristicScore(2)
	assert.True(t, tt.Write(a, search.ExactBound, 5, 2, s, m))

	bound, depth, score, move, _, ok := tt.Read(a, 5)
	assert.True(t, ok)
	assert.Equal(t, search.ExactBound, bound)
	assert.Equal(t, 2, depth)
	assert.Equal(t, s, score)
	assert.Equal(t, m, move)
}

func TestTranspositionTableMissOnDifferentKey(t *testing.T) {
	ctx := context.Background()
	tt := search.NewTranspositionTable(ctx, 1<<20)

	a := board.ZobristHash(rand.Uint64())
	tt.Write(a, search.ExactBound, 0, 4, eval.HeuristicScore(1), board.Move{From: board.E2, To: board.E4})

	_, _, _, _, _, ok := tt.Read(a^0xffffffffffff, 0)
	assert.False(t, ok)
}

func TestTranspositionTableMateScoreAdjustsForPly(t *testing.T) {
	ctx := context.Background()
	tt := search.NewTranspositionTable(ctx, 1<<20)

	a := board.ZobristHash(rand.Uint64())
	mate := eval.MateIn(3)

	assert.True(t, tt.Write(a, search.ExactBound, 7, 4, mate, board.Move{From: board.D1, To: board.D8}))

	// Read back from the same ply it was stored at: the node-relative adjustment round-trips
	// exactly.
	_, _, score, _, _, ok := tt.Read(a, 7)
	assert.True(t, ok)
	assert.Equal(t, mate, score)

	// Read from a shallower ply: the mate is further from the root than it is from this node,
	// so the magnitude read back must differ.
	_, _, other, _, _, ok := tt.Read(a, 2)
	assert.True(t, ok)
	assert.NotEqual(t, score, other)
}

func TestTranspositionTableExactBoundAlwaysOverwrites(t *testing.T) {
	ctx := context.Background()
	tt := search.NewTranspositionTable(ctx, 1<<20)

	a := board.ZobristHash(rand.Uint64())
	m := board.Move{From: board.A2, To: board.A4}

	assert.True(t, tt.Write(a, search.ExactBound, 0, 10, eval.HeuristicScore(3), m))
	// A later, shallower EXACT write for the same key still replaces: exact results are
	// always worth keeping fresh.
	assert.True(t, tt.Write(a, search.ExactBound, 0, 1, eval.HeuristicScore(-1), m))

	_, depth, score, _, _, ok := tt.Read(a, 0)
	assert.True(t, ok)
	assert.Equal(t, 1, depth)
	assert.Equal(t, eval.HeuristicScore(-1), score)
}

func TestTranspositionTableShallowNonExactWriteIsRejected(t *testing.T) {
	ctx := context.Background()
	tt := search.NewTranspositionTable(ctx, 1<<20)

	a := board.ZobristHash(rand.Uint64())
	m := board.Move{From: board.A2, To: board.A4}

	assert.True(t, tt.Write(a, search.LowerBound, 0, 10, eval.HeuristicScore(3), m))
	// A shallower, non-exact write for the same key within the depth-4 tolerance band must
	// not clobber a deeper, still-useful entry.
	assert.False(t, tt.Write(a, search.LowerBound, 0, 9, eval.HeuristicScore(-1), m))

	_, depth, score, _, _, ok := tt.Read(a, 0)
	assert.True(t, ok)
	assert.Equal(t, 10, depth)
	assert.Equal(t, eval.HeuristicScore(3), score)
}

func TestTranspositionTablePreservesMoveWhenOverwriterHasNone(t *testing.T) {
	ctx := context.Background()
	tt := search.NewTranspositionTable(ctx, 1<<20)

	a := board.ZobristHash(rand.Uint64())
	m := board.Move{From: board.B1, To: board.C3}

	tt.Write(a, search.LowerBound, 0, 4, eval.HeuristicScore(1), m)
	tt.Write(a, search.ExactBound, 0, 1, eval.HeuristicScore(2), board.Move{})

	_, _, _, move, _, ok := tt.Read(a, 0)
	assert.True(t, ok)
	assert.Equal(t, m, move)
}

func TestTranspositionTableEvalCacheIsIndependentOfScoreEntry(t *testing.T) {
	ctx := context.Background()
	tt := search.NewTranspositionTable(ctx, 1<<20)

	a := board.ZobristHash(rand.Uint64())

	_, ok := tt.ReadEval(a)
	assert.False(t, ok)

	tt.WriteEval(a, eval.HeuristicScore(42))
	e, ok := tt.ReadEval(a)
	assert.True(t, ok)
	assert.Equal(t, eval.HeuristicScore(42), e)
}

func TestTranspositionTableNewSearchAgesEntriesForReplacement(t *testing.T) {
	ctx := context.Background()
	tt := search.NewTranspositionTable(ctx, clusterBytesForTest(1))

	a := board.ZobristHash(rand.Uint64())
	tt.Write(a, search.ExactBound, 0, 3, eval.HeuristicScore(1), board.Move{From: board.E2, To: board.E4})

	tt.NewSearch()
	tt.NewSearch()
	tt.NewSearch()
	tt.NewSearch()

	// Still readable after aging: a stale entry is deprioritized for replacement, not erased.
	_, depth, _, _, _, ok := tt.Read(a, 0)
	assert.True(t, ok)
	assert.Equal(t, 3, depth)
}

func TestTranspositionTableUsedReportsHashfullFraction(t *testing.T) {
	ctx := context.Background()
	tt := search.NewTranspositionTable(ctx, 1<<16)

	assert.Equal(t, 0.0, tt.Used())

	for i := 0; i < 64; i++ {
		tt.Write(board.ZobristHash(rand.Uint64()), search.ExactBound, 0, 4, eval.HeuristicScore(1), board.Move{From: board.E2, To: board.E4})
	}

	assert.Greater(t, tt.Used(), 0.0)
	assert.LessOrEqual(t, tt.Used(), 1.0)
}

// clusterBytesForTest returns a table size, in bytes, holding exactly n clusters -- mirrors the
// 32-byte cluster budget the table divides Size() by.
func clusterBytesForTest(n int) uint64 {
	return uint64(n) * 32
}
