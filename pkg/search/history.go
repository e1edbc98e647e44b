package search

import (
	"github.com/corvidchess/corvid/pkg/board"
)

// historyMax bounds the saturating history score, matching the classic butterfly-board scheme:
// scores are squared-gain updated and capped well below overflow so they remain comparable
// across a full iterative deepening run.
const historyMax = 1 << 14

// History tracks move-ordering statistics across a search: the "quiet" butterfly history used
// to rank non-capture moves once captures and killers are exhausted, a pair of killer moves per
// ply, and a countermove table indexed by the opponent's last move. Not safe for concurrent use
// by multiple goroutines searching the same ply; each worker in a pool owns its own History.
type History struct {
	quiet  [board.NumColors][64][64]int32 // [turn][from][to]
	killer [maxPly][2]board.Move
	counter [64][64]board.Move // [last.From][last.To] -> reply
}

const maxPly = 128

// NewHistory returns an empty history table.
func NewHistory() *History {
	return &History{}
}

// Bonus returns the butterfly history score for the move, used as a move-ordering priority
// once captures, promotions and killers have been tried.
func (h *History) Bonus(turn board.Color, m board.Move) int32 {
	return h.quiet[turn][m.From][m.To]
}

// Update applies a depth-squared bonus to the move that caused a beta cutoff and a matching
// malus to every quiet move tried before it, the standard gravity-based history update that
// keeps the table self-correcting as the position changes.
func (h *History) Update(turn board.Color, depth int, best board.Move, tried []board.Move) {
	bonus := int32(depth * depth)
	if bonus > historyMax {
		bonus = historyMax
	}

	for _, m := range tried {
		if m.IsCapture() || m.IsPromotion() {
			continue
		}
		delta := -bonus
		if m.Equals(best) {
			delta = bonus
		}
		h.applyGravity(turn, m, delta)
	}
}

func (h *History) applyGravity(turn board.Color, m board.Move, delta int32) {
	cur := &h.quiet[turn][m.From][m.To]
	*cur += delta - (*cur)*abs32(delta)/historyMax
}

// Killer returns the two killer moves recorded at the given ply, quiet moves that caused a
// cutoff and are tried early at the same ply in sibling nodes.
func (h *History) Killer(ply int) (board.Move, board.Move) {
	if ply < 0 || ply >= maxPly {
		return board.Move{}, board.Move{}
	}
	return h.killer[ply][0], h.killer[ply][1]
}

// RecordKiller records a cutoff-causing quiet move as a killer at the given ply, shifting the
// existing primary killer into the secondary slot.
func (h *History) RecordKiller(ply int, m board.Move) {
	if ply < 0 || ply >= maxPly || m.IsCapture() || m.IsPromotion() {
		return
	}
	if h.killer[ply][0].Equals(m) {
		return
	}
	h.killer[ply][1] = h.killer[ply][0]
	h.killer[ply][0] = m
}

// Countermove returns the recorded reply to the opponent's last move, if any.
func (h *History) Countermove(last board.Move) (board.Move, bool) {
	m := h.counter[last.From][last.To]
	return m, m != board.Move{}
}

// RecordCountermove records m as the reply that refuted the opponent's last move.
func (h *History) RecordCountermove(last board.Move, m board.Move) {
	if last == (board.Move{}) || m.IsCapture() || m.IsPromotion() {
		return
	}
	h.counter[last.From][last.To] = m
}

// Priority returns a move priority function that ranks captures and promotions first by
// MVVLVA, then killers, then the countermove to last, and the remaining quiets by butterfly
// history. A forced-first move (such as the TT move) is not ranked here; callers place it
// with board.First.
func (h *History) Priority(turn board.Color, ply int, last board.Move) board.MovePriorityFn {
	k1, k2 := h.Killer(ply)
	cm, hasCM := h.Countermove(last)

	const (
		captureBand     board.MovePriority = 20000
		killerPrimary   board.MovePriority = 19000
		killerSecondary board.MovePriority = 18999
		countermoveBand board.MovePriority = 18000
	)

	return func(m board.Move) board.MovePriority {
		if p := MVVLVA(m); p > 0 {
			return captureBand + p
		}
		switch {
		case k1.Equals(m):
			return killerPrimary
		case k2.Equals(m):
			return killerSecondary
		case hasCM && cm.Equals(m):
			return countermoveBand
		default:
			return board.MovePriority(h.Bonus(turn, m))
		}
	}
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
