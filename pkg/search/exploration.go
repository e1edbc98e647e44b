package search

import (
	"context"
	"github.com/corvidchess/corvid/pkg/board"
	"github.com/corvidchess/corvid/pkg/eval"
)

// Exploration defines move priority and selection in a given position. Limited exploration is
// required by quiescence search and can be used for forward pruning in full search. The returned
// predicate decides whether a move just made should be recursed into; moves that fail it are
// still pushed to detect legality and check evasion, but contribute no further search.
type Exploration func(ctx context.Context, b *board.Board) (board.MovePriorityFn, board.MovePredicateFn)

// FullExploration visits every legal move in MVVLVA order. Default for full-width search.
func FullExploration(ctx context.Context, b *board.Board) (board.MovePriorityFn, board.MovePredicateFn) {
	return MVVLVA, IsAnyMove
}

// QuiescenceExploration visits only promotions and captures that either win at least as much
// material as the capturing piece is worth or land on a square the opponent does not attack,
// which bounds the horizon effect without exploding the quiescence tree.
func QuiescenceExploration(ctx context.Context, b *board.Board) (board.MovePriorityFn, board.MovePredicateFn) {
	turn := b.Turn()
	pos := b.Position()
	predicate := func(m board.Move) bool {
		if m.IsPromotion() {
			return true
		}
		if m.IsCapture() {
			if eval.NominalValue(m.Piece) <= eval.NominalValue(m.Capture) {
				return true
			}
			return !pos.IsAttacked(turn.Opponent(), m.To)
		}
		return false
	}
	return MVVLVA, predicate
}

// Selection returns a move priority and membership test restricted to the given ordered list,
// useful to force a particular move order, e.g. a PV line or a root move list filter.
func Selection(list []board.Move) (board.MovePriorityFn, board.MovePredicateFn) {
	rank := map[board.Move]board.MovePriority{}
	for i, m := range list {
		rank[m] = board.MovePriority(len(list) - i)
	}

	priority := func(move board.Move) board.MovePriority {
		return rank[move]
	}
	pick := func(move board.Move) bool {
		_, ok := rank[move]
		return ok
	}
	return priority, pick
}

// MVVLVA implements the MVV-LVA move priority: most valuable victim, least valuable attacker.
func MVVLVA(m board.Move) board.MovePriority {
	if p := board.MovePriority(100 * eval.NominalValueGain(m)); p > 0 {
		return p - board.MovePriority(eval.NominalValue(m.Piece))
	}
	return 0
}

// IsAnyMove selects all moves.
func IsAnyMove(m board.Move) bool {
	return true
}

// NoMove selects no moves. Used to disable quiescence entirely.
func NoMove(m board.Move) bool {
	return false
}

// IsNotUnderPromotion selects any move except an under-promotion.
func IsNotUnderPromotion(m board.Move) bool {
	return !m.IsPromotion() || m.Promotion == board.Queen
}
