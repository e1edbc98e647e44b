package search

import (
	"github.com/corvidchess/corvid/pkg/board"
	"github.com/corvidchess/corvid/pkg/eval"
)

// staticExchangeEvaluation estimates the net material result of playing m followed by the
// capture sequence on m.To, replaying least-valuable-attacker recaptures until the square is
// quiet and backing the gains up with the usual minimax swap algorithm. For a quiet move the
// first gain is zero, so the result is the material the mover stands to lose on m.To. It
// mutates and restores the board via PushMove/PopMove -- the same legality-checked machinery
// the search already uses to try moves -- rather than maintaining a separate bitboard attacker
// table.
func staticExchangeEvaluation(b *board.Board, m board.Move) eval.Score {
	if !b.PushMove(m) {
		return eval.ZeroScore
	}
	pushed := 1
	gains := []eval.Score{eval.FromPawns(eval.NominalValue(m.Capture))}

	attacker := m.Piece
	for {
		next, ok := leastValuableAttacker(b, m.To)
		if !ok {
			break
		}
		if !b.PushMove(next) {
			break
		}
		pushed++
		gains = append(gains, eval.FromPawns(eval.NominalValue(attacker))-gains[len(gains)-1])
		attacker = next.Piece
	}

	for i := 0; i < pushed; i++ {
		b.PopMove()
	}

	for i := len(gains) - 2; i >= 0; i-- {
		if neg := -gains[i+1]; neg < gains[i] {
			gains[i] = neg
		}
	}
	return gains[0]
}

// leastValuableAttacker returns the cheapest legal capture by the side to move landing on sq,
// if any; ties are broken by move generation order, which is acceptable for SEE purposes since
// only the captured material sequence matters.
func leastValuableAttacker(b *board.Board, sq board.Square) (board.Move, bool) {
	var best board.Move
	found := false
	var bestValue eval.Pawns

	for _, mv := range b.Position().PseudoLegalMoves(b.Turn()) {
		if mv.To != sq || !mv.IsCapture() {
			continue
		}
		v := eval.NominalValue(mv.Piece)
		if !found || v < bestValue {
			best, bestValue, found = mv, v, true
		}
	}
	return best, found
}
