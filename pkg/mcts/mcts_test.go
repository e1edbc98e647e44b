package mcts_test

import (
	"context"
	"testing"

	"github.com/corvidchess/corvid/pkg/board"
	"github.com/corvidchess/corvid/pkg/board/fen"
	"github.com/corvidchess/corvid/pkg/eval"
	"github.com/corvidchess/corvid/pkg/mcts"
	"github.com/corvidchess/corvid/pkg/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBoard(t *testing.T) *board.Board {
	t.Helper()
	pos, turn, noprogress, fullmoves, err := fen.Decode(fen.Initial)
	require.NoError(t, err)
	zt := board.NewZobristTable(7)
	return board.NewBoard(zt, pos, turn, noprogress, fullmoves)
}

func testParams() mcts.Params {
	p := mcts.DefaultParams()
	p.MaxDescents = 32
	return p
}

type zeroEvaluator struct{}

func (zeroEvaluator) Evaluate(context.Context, *board.Board) eval.Pawns { return 0 }

func newTestAB() search.Search {
	return search.AlphaBeta{
		Eval: search.Quiescence{Eval: search.EvaluatorFunc{Eval: zeroEvaluator{}}},
	}
}

func TestDefaultParamsAreSane(t *testing.T) {
	p := mcts.DefaultParams()
	assert.Positive(t, p.MaxDescents)
	assert.Positive(t, p.UCBExplorationConstant)
	assert.GreaterOrEqual(t, p.BackupMinimax, 0.0)
	assert.LessOrEqual(t, p.BackupMinimax, 1.0)
}

func TestSearchReturnsLegalPrincipalVariation(t *testing.T) {
	b := newTestBoard(t)
	e := mcts.NewEngine(1<<12, 1, newTestAB(), testParams())

	sctx := &search.Context{Alpha: eval.NegInfScore, Beta: eval.InfScore, TT: search.NoTranspositionTable{}}
	nodes, _, pv, err := e.Search(context.Background(), sctx, b, 0)
	require.NoError(t, err)
	assert.Positive(t, nodes)
	require.NotEmpty(t, pv)

	legal := b.Position().PseudoLegalMoves(b.Turn())
	found := false
	for _, m := range legal {
		if m.Equals(pv[0]) {
			found = true
			break
		}
	}
	assert.True(t, found, "first PV move %v must be a legal root move", pv[0])
}

func TestSearchIsDeterministicForSameSeedAndBudget(t *testing.T) {
	sctx := &search.Context{Alpha: eval.NegInfScore, Beta: eval.InfScore, TT: search.NoTranspositionTable{}}

	b1 := newTestBoard(t)
	e1 := mcts.NewEngine(1<<12, 1, newTestAB(), testParams())
	_, _, pv1, err := e1.Search(context.Background(), sctx, b1, 0)
	require.NoError(t, err)

	b2 := newTestBoard(t)
	e2 := mcts.NewEngine(1<<12, 1, newTestAB(), testParams())
	_, _, pv2, err := e2.Search(context.Background(), sctx, b2, 0)
	require.NoError(t, err)

	require.NotEmpty(t, pv1)
	require.NotEmpty(t, pv2)
	assert.True(t, pv1[0].Equals(pv2[0]))
}

func TestArenaClearResetsNodes(t *testing.T) {
	b := newTestBoard(t)
	e := mcts.NewEngine(1<<10, 1, newTestAB(), testParams())

	sctx := &search.Context{Alpha: eval.NegInfScore, Beta: eval.InfScore, TT: search.NoTranspositionTable{}}
	_, _, pv, err := e.Search(context.Background(), sctx, b, 0)
	require.NoError(t, err)
	require.NotEmpty(t, pv)

	e.Arena.Clear()

	// After clearing, the root must be expanded again from scratch rather than reusing stale
	// statistics; the search should still succeed and find a legal move.
	_, _, pv2, err := e.Search(context.Background(), sctx, b, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, pv2)
}

func TestSearchOnFullArenaHaltsGracefully(t *testing.T) {
	b := newTestBoard(t)
	// A single-slot arena can hold the root but no children, so the search must halt rather
	// than panic or spin.
	e := mcts.NewEngine(1, 1, newTestAB(), testParams())

	sctx := &search.Context{Alpha: eval.NegInfScore, Beta: eval.InfScore, TT: search.NoTranspositionTable{}}
	_, _, _, err := e.Search(context.Background(), sctx, b, 0)
	assert.NoError(t, err)
}

func TestMeanActionValueDefaultsToZeroBeforeVisits(t *testing.T) {
	e := mcts.Edge{}
	assert.Equal(t, 0.0, e.MeanActionValue())
}
