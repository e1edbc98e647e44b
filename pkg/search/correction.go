package search

import (
	"github.com/corvidchess/corvid/pkg/board"
	"github.com/corvidchess/corvid/pkg/eval"
)

// correctionHistorySize is the table size for each correction table, matching the order of
// magnitude used for the other per-worker history tables; keys are folded into this range
// rather than addressed directly, so collisions are tolerated the same way a hash-move
// collision in the transposition table is.
const correctionHistorySize = 16384

// correctionHistoryLimit bounds the saturating update, the same Exp3-style scheme as every
// other history table in this package.
const correctionHistoryLimit = 1024

// correctionHistoryScale converts an accumulated table value back into a small fraction of a
// pawn before it is added to a static evaluation.
const correctionHistoryScale = eval.Score(256)

// CorrectionHistory tracks, per worker, how far the static evaluator tends to be wrong for a
// class of position, and feeds a small corrective delta back into future static evaluations of
// similar positions. Four parallel tables specialize the correction by what is most likely to
// explain the error: pawn structure, minor piece placement, non-pawn material balance (kept
// separately per color, since a material imbalance reads differently for each side), and the
// move that led to this node (continuation).
type CorrectionHistory struct {
	pawn         [correctionHistorySize]int32
	minor        [correctionHistorySize]int32
	nonPawn      [board.NumColors][correctionHistorySize]int32
	continuation [board.NumSquares][board.NumSquares]int32
}

// NewCorrectionHistory returns an empty correction history.
func NewCorrectionHistory() *CorrectionHistory {
	return &CorrectionHistory{}
}

// Delta returns the corrective adjustment for a static evaluation at this position, summed
// across all four tables and scaled down to a fraction of a pawn.
func (c *CorrectionHistory) Delta(turn board.Color, pos *board.Position, last board.Move) eval.Score {
	sum := c.pawn[pawnCorrectionKey(pos)] +
		c.minor[minorCorrectionKey(pos)] +
		c.nonPawn[turn][nonPawnCorrectionKey(pos, turn)]
	if last != (board.Move{}) {
		sum += c.continuation[last.From][last.To]
	}
	return eval.Score(sum) / correctionHistoryScale
}

// Update folds the discrepancy between the search result and the cached static eval into every
// table this node touched: a systematic gap between what the evaluator guessed and what the
// search proved is exactly what the correction tables exist to learn.
func (c *CorrectionHistory) Update(turn board.Color, pos *board.Position, last board.Move, depth int, bestValue, staticEval eval.Score) {
	if staticEval.IsInvalid() || bestValue.IsInvalid() || bestValue.IsMate() {
		return
	}

	bonus := int32(bestValue-staticEval) * int32(depth)
	if bonus > correctionHistoryLimit {
		bonus = correctionHistoryLimit
	}
	if bonus < -correctionHistoryLimit {
		bonus = -correctionHistoryLimit
	}

	applyGravity32(&c.pawn[pawnCorrectionKey(pos)], bonus)
	applyGravity32(&c.minor[minorCorrectionKey(pos)], bonus)
	applyGravity32(&c.nonPawn[turn][nonPawnCorrectionKey(pos, turn)], bonus)
	if last != (board.Move{}) {
		applyGravity32(&c.continuation[last.From][last.To], bonus)
	}
}

func applyGravity32(entry *int32, bonus int32) {
	*entry += bonus - (*entry)*abs32(bonus)/correctionHistoryLimit
}

func pawnCorrectionKey(pos *board.Position) uint64 {
	h := uint64(pos.Piece(board.White, board.Pawn))*0x9E3779B97F4A7C15 ^ uint64(pos.Piece(board.Black, board.Pawn))
	return mix64(h) % correctionHistorySize
}

func minorCorrectionKey(pos *board.Position) uint64 {
	var h uint64
	for _, c := range []board.Color{board.White, board.Black} {
		h ^= uint64(pos.Piece(c, board.Knight))*0x9E3779B97F4A7C15 + uint64(pos.Piece(c, board.Bishop))
	}
	return mix64(h) % correctionHistorySize
}

func nonPawnCorrectionKey(pos *board.Position, turn board.Color) uint64 {
	var h uint64
	for _, p := range []board.Piece{board.Knight, board.Bishop, board.Rook, board.Queen} {
		h ^= uint64(pos.Piece(turn, p)) * (0x100000001B3 + uint64(p))
	}
	return mix64(h) % correctionHistorySize
}

// mix64 is a splitmix64-style finalizer, used to spread the bitboard-derived keys above evenly
// across a correction table.
func mix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xBF58476D1CE4E5B9
	x ^= x >> 27
	x *= 0x94D049BB133111EB
	x ^= x >> 31
	return x
}
