package search

import (
	"github.com/corvidchess/corvid/pkg/board"
	"github.com/corvidchess/corvid/pkg/eval"
)

// Tablebase probes an endgame table base for an exact result, surfaced as an input to the
// search rather than implemented by it. NoTablebase is the default: every position misses.
type Tablebase interface {
	// Probe looks up the position and, if present, returns its exact score from the side to
	// move's perspective and the distance-to-zero move count used to prefer faster conversions.
	Probe(b *board.Board) (score eval.Score, dtz int, ok bool)
}

// NoTablebase never finds a position. It is the default Tablebase for AlphaBeta.
type NoTablebase struct{}

func (NoTablebase) Probe(b *board.Board) (eval.Score, int, bool) {
	return eval.InvalidScore, 0, false
}

func tablebaseOrDefault(t Tablebase) Tablebase {
	if t == nil {
		return NoTablebase{}
	}
	return t
}
