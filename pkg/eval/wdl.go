package eval

import "math"

// wdlLogisticScale is the centipawn scale of the win/draw/loss logistic model, i.e. the score
// distance over which the logistic alone moves from 50% to roughly 73%. It is in the same family as
// Stockfish's fitted "a" coefficient.
const wdlLogisticScale = 203.77

// WinDrawLoss converts a score and the game ply it was reached at into a per-mille
// (parts-per-thousand, summing to 1000) win/draw/loss estimate for UCI_ShowWDL reporting.
// It is a pure function of the two inputs: no search or position state is consulted.
// Mate scores report a win or loss with no drawing chances.
func WinDrawLoss(score Score, gamePly int) (win, draw, loss int) {
	if score.IsMate() {
		if score > 0 {
			return 1000, 0, 0
		}
		return 0, 0, 1000
	}

	cp := float64(score) * 100
	scale := wdlLogisticScale * wdlMaterialScaleFactor(gamePly)

	// drawMargin widens the band around zero that neither side is favored to convert,
	// so that an equal score reports a high draw estimate rather than a 50/50 coin flip.
	const drawMargin = 50

	winRate := 1 / (1 + math.Exp(-(cp-drawMargin)/scale))
	lossRate := 1 / (1 + math.Exp((cp+drawMargin)/scale))

	w := int(math.Round(1000 * winRate))
	l := int(math.Round(1000 * lossRate))
	d := 1000 - w - l
	if d < 0 {
		d = 0
	}
	return w, d, l
}

// wdlMaterialScaleFactor shrinks the logistic scale, and so steepens the curve, as the game
// progresses past the opening, modeling that a given centipawn score is less decisive early and
// more decisive late, clamped to a modest range so very long games do not collapse the scale
// entirely.
func wdlMaterialScaleFactor(gamePly int) float64 {
	m := 1.0 - 0.0025*float64(gamePly)
	if m < 0.5 {
		m = 0.5
	}
	if m > 1.0 {
		m = 1.0
	}
	return m
}
