package search_test

import (
	"context"
	"testing"

	"github.com/corvidchess/corvid/pkg/board"
	"github.com/corvidchess/corvid/pkg/board/fen"
	"github.com/corvidchess/corvid/pkg/eval"
	"github.com/corvidchess/corvid/pkg/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBoard(t *testing.T) *board.Board {
	t.Helper()
	pos, turn, noprogress, fullmoves, err := fen.Decode(fen.Initial)
	require.NoError(t, err)
	zt := board.NewZobristTable(1)
	return board.NewBoard(zt, pos, turn, noprogress, fullmoves)
}

func TestNoTablebaseAlwaysMisses(t *testing.T) {
	b := newTestBoard(t)

	score, dtz, ok := search.NoTablebase{}.Probe(b)
	assert.False(t, ok)
	assert.Equal(t, eval.InvalidScore, score)
	assert.Equal(t, 0, dtz)
}

type stubTablebase struct {
	score eval.Score
	dtz   int
	ok    bool
}

func (s stubTablebase) Probe(*board.Board) (eval.Score, int, bool) {
	return s.score, s.dtz, s.ok
}

type zeroEvaluator struct{}

func (zeroEvaluator) Evaluate(context.Context, *board.Board) eval.Pawns { return 0 }

func TestAlphaBetaUsesConfiguredTablebase(t *testing.T) {
	b := newTestBoard(t)
	tb := stubTablebase{score: eval.HeuristicScore(3), dtz: 12, ok: true}

	ab := search.AlphaBeta{
		Eval:      search.Quiescence{Eval: search.EvaluatorFunc{Eval: zeroEvaluator{}}},
		Tablebase: tb,
	}
	sctx := &search.Context{Alpha: eval.NegInfScore, Beta: eval.InfScore, TT: search.NoTranspositionTable{}}

	_, score, moves, err := ab.Search(context.Background(), sctx, b, 4)
	require.NoError(t, err)
	assert.Equal(t, tb.score, score)
	assert.Nil(t, moves) // a tablebase hit at the root reports no PV of its own
}

func TestAlphaBetaIgnoresTablebaseMiss(t *testing.T) {
	b := newTestBoard(t)

	ab := search.AlphaBeta{
		Eval:      search.Quiescence{Eval: search.EvaluatorFunc{Eval: zeroEvaluator{}}},
		Tablebase: search.NoTablebase{},
	}
	sctx := &search.Context{Alpha: eval.NegInfScore, Beta: eval.InfScore, TT: search.NoTranspositionTable{}}

	_, _, moves, err := ab.Search(context.Background(), sctx, b, 2)
	require.NoError(t, err)
	assert.NotEmpty(t, moves) // a real search was run and found a principal variation
}
