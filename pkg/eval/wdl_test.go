package eval_test

import (
	"github.com/corvidchess/corvid/pkg/eval"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestWinDrawLossMateScores(t *testing.T) {
	win, draw, loss := eval.WinDrawLoss(eval.MateIn(3), 20)
	assert.Equal(t, 1000, win)
	assert.Equal(t, 0, draw)
	assert.Equal(t, 0, loss)

	win, draw, loss = eval.WinDrawLoss(eval.MatedIn(3), 20)
	assert.Equal(t, 0, win)
	assert.Equal(t, 0, draw)
	assert.Equal(t, 1000, loss)
}

func TestWinDrawLossSumsToOneThousand(t *testing.T) {
	for _, cp := range []float32{-500, -50, 0, 3, 120, 900} {
		win, draw, loss := eval.WinDrawLoss(eval.HeuristicScore(cp), 30)
		assert.Equal(t, 1000, win+draw+loss, "cp=%v", cp)
	}
}

func TestWinDrawLossFavorsWinnerAsScoreGrows(t *testing.T) {
	winEq, _, _ := eval.WinDrawLoss(eval.ZeroScore, 30)
	winAhead, _, _ := eval.WinDrawLoss(eval.HeuristicScore(3), 30)
	winFar, _, _ := eval.WinDrawLoss(eval.HeuristicScore(9), 30)

	assert.Less(t, winEq, winAhead)
	assert.Less(t, winAhead, winFar)
}

func TestWinDrawLossIsSymmetric(t *testing.T) {
	win, draw, loss := eval.WinDrawLoss(eval.HeuristicScore(2), 30)
	lossBack, drawBack, winBack := eval.WinDrawLoss(eval.HeuristicScore(-2), 30)

	assert.Equal(t, win, winBack)
	assert.Equal(t, loss, lossBack)
	assert.Equal(t, draw, drawBack)
}

func TestWinDrawLossEqualScoreIsBalanced(t *testing.T) {
	win, draw, loss := eval.WinDrawLoss(eval.ZeroScore, 10)
	assert.Equal(t, win, loss)
	assert.Positive(t, draw)
}

func TestWinDrawLossLaterPlyWidensDrawBand(t *testing.T) {
	// wdlMaterialScaleFactor steepens the logistic curve deeper into the game, which pushes both
	// margin-shifted win and loss rates further down at a zero score, so a given near-zero score
	// reports a wider draw band the later it is reached.
	_, drawEarly, _ := eval.WinDrawLoss(eval.ZeroScore, 0)
	_, drawLate, _ := eval.WinDrawLoss(eval.ZeroScore, 300)

	assert.LessOrEqual(t, drawEarly, drawLate)
}
