package learning_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/corvidchess/corvid/pkg/board"
	"github.com/corvidchess/corvid/pkg/eval"
	"github.com/corvidchess/corvid/pkg/learning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T, mode learning.Mode) *learning.Store {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "learn")
	s, err := learning.Open(context.Background(), dir, mode)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenOffModeNeverProbes(t *testing.T) {
	s, err := learning.Open(context.Background(), "", learning.Off)
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.Probe(0xdeadbeef)
	assert.False(t, ok)
}

func TestProbeMissOnEmptyStore(t *testing.T) {
	s := openStore(t, learning.Standard)
	_, ok := s.Probe(0x1234)
	assert.False(t, ok)
}

func TestGameEndedPersistsDecisiveWinAtMaxPerformance(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, learning.Standard)

	move := board.Move{From: board.E2, To: board.E4}
	s.Observe(0x42, 6, eval.HeuristicScore(1.0), move, board.White)

	require.NoError(t, s.GameEnded(ctx, board.WhiteWins))

	rec, ok := s.Probe(0x42)
	require.True(t, ok)
	assert.Equal(t, uint64(0x42), rec.Key)
	assert.Equal(t, uint8(6), rec.Depth)
	assert.Equal(t, int16(100), rec.Score)
	assert.EqualValues(t, 200, rec.Performance) // sole move, full decay weight, decisive win
}

func TestGameEndedPersistsDecisiveLossAtMinPerformance(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, learning.Standard)

	move := board.Move{From: board.E7, To: board.E5}
	s.Observe(0x99, 4, eval.ZeroScore, move, board.Black)

	require.NoError(t, s.GameEnded(ctx, board.WhiteWins)) // black lost

	rec, ok := s.Probe(0x99)
	require.True(t, ok)
	assert.EqualValues(t, 0, rec.Performance)
}

func TestGameEndedDrawIsNeutral(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, learning.Standard)

	move := board.Move{From: board.D2, To: board.D4}
	s.Observe(0x77, 8, eval.ZeroScore, move, board.White)

	require.NoError(t, s.GameEnded(ctx, board.Draw))

	rec, ok := s.Probe(0x77)
	require.True(t, ok)
	assert.EqualValues(t, 100, rec.Performance)
}

func TestGameEndedDecaysEarlierMovesTowardNeutral(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, learning.Standard)

	early := board.Move{From: board.G1, To: board.F3}
	late := board.Move{From: board.F1, To: board.C4}
	s.Observe(0x1, 4, eval.ZeroScore, early, board.White)
	s.Observe(0x2, 4, eval.ZeroScore, late, board.White)

	require.NoError(t, s.GameEnded(ctx, board.WhiteWins))

	earlyRec, ok := s.Probe(0x1)
	require.True(t, ok)
	lateRec, ok := s.Probe(0x2)
	require.True(t, ok)

	// The later move is closer to the decisive result, so it should be credited more strongly.
	assert.Greater(t, lateRec.Performance, earlyRec.Performance)
	assert.Less(t, earlyRec.Performance, uint8(200))
}

func TestGameEndedNoopWithEmptyTrajectory(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, learning.Standard)

	require.NoError(t, s.GameEnded(ctx, board.WhiteWins))
	_, ok := s.Probe(0x1)
	assert.False(t, ok)
}

func TestObserveNoopInSelfMode(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, learning.Self)

	move := board.Move{From: board.E2, To: board.E4}
	s.Observe(0x42, 6, eval.HeuristicScore(1.0), move, board.White)
	require.NoError(t, s.GameEnded(ctx, board.WhiteWins))

	_, ok := s.Probe(0x42)
	assert.False(t, ok) // nothing was ever observed, so nothing to persist
}

func TestSetModeSwitchesBetweenStandardAndSelf(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, learning.Standard)

	move := board.Move{From: board.E2, To: board.E4}
	s.Observe(0x42, 6, eval.HeuristicScore(1.0), move, board.White)
	require.NoError(t, s.GameEnded(ctx, board.WhiteWins))
	_, ok := s.Probe(0x42)
	require.True(t, ok)

	s.SetMode(learning.Self)
	_, ok = s.Probe(0x42) // still readable in Self mode
	assert.True(t, ok)

	s.Observe(0x55, 6, eval.ZeroScore, move, board.White)
	require.NoError(t, s.GameEnded(ctx, board.WhiteWins))
	_, ok = s.Probe(0x55)
	assert.False(t, ok) // writes are suppressed in Self mode
}

func TestReopenRebuildsCacheFromDisk(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "learn")

	s1, err := learning.Open(ctx, dir, learning.Standard)
	require.NoError(t, err)

	move := board.Move{From: board.E2, To: board.E4}
	s1.Observe(0x42, 6, eval.HeuristicScore(1.0), move, board.White)
	require.NoError(t, s1.GameEnded(ctx, board.WhiteWins))
	require.NoError(t, s1.Close())

	s2, err := learning.Open(ctx, dir, learning.Standard)
	require.NoError(t, err)
	defer s2.Close()

	rec, ok := s2.Probe(0x42)
	require.True(t, ok)
	assert.EqualValues(t, 200, rec.Performance)
}

func TestResolveMoveFindsMatchingCandidate(t *testing.T) {
	want := board.Move{From: board.E7, To: board.E8, Promotion: board.Queen}
	rec, ok := roundTripRecord(t, want)
	require.True(t, ok)

	resolved, ok := learning.ResolveMove(rec, []board.Move{
		{From: board.E7, To: board.E8, Promotion: board.Queen},
		{From: board.E7, To: board.E8, Promotion: board.Rook},
	})
	require.True(t, ok)
	assert.Equal(t, want, resolved)
}

func TestResolveMoveMissesWhenPositionChanged(t *testing.T) {
	want := board.Move{From: board.E2, To: board.E4}
	rec, ok := roundTripRecord(t, want)
	require.True(t, ok)

	_, ok = learning.ResolveMove(rec, []board.Move{{From: board.D2, To: board.D4}})
	assert.False(t, ok)
}

// roundTripRecord observes and persists a single move, then probes it back, to exercise the
// record's binary encode/decode path through the public Store API.
func roundTripRecord(t *testing.T, move board.Move) (learning.Record, bool) {
	t.Helper()
	ctx := context.Background()
	s := openStore(t, learning.Standard)
	s.Observe(0x9, 3, eval.ZeroScore, move, board.White)
	require.NoError(t, s.GameEnded(ctx, board.WhiteWins))
	return s.Probe(0x9)
}
