package search

import (
	"github.com/corvidchess/corvid/pkg/board"
	"github.com/corvidchess/corvid/pkg/eval"
	"github.com/corvidchess/corvid/pkg/learning"
	"github.com/corvidchess/corvid/pkg/search/style"
)

// Context carries the per-call search window and shared resources through a recursive
// search. Alpha and Beta default to the full window if left as eval.InvalidScore.
type Context struct {
	Alpha, Beta eval.Score

	TT      TranspositionTable
	Noise   eval.Random
	History *History

	// Correction tracks the gap between cached static evaluations and search results for this
	// worker, feeding a small corrective delta back into future static evaluations. Nil
	// defaults to a fresh, empty table.
	Correction *CorrectionHistory

	// Style biases null-move and late-move-reduction decisions, e.g. by Shashin style or
	// UCI_LimitStrength. Defaults to a no-op if left nil.
	Style style.BiasProvider

	// Learning is consulted as a non-PV move-ordering hint when the transposition table has no
	// entry for a node. Nil disables it.
	Learning *learning.Store

	// Ponder is the expected opponent continuation to search first at the root, if any.
	Ponder []board.Move

	// ExcludeRoot lists root moves to skip entirely, used to drive a MultiPV root loop: each
	// successive PV slot excludes the moves already reported by higher-ranked slots.
	ExcludeRoot []board.Move
}

// styleOrDefault returns s, or the no-op provider if s is nil.
func styleOrDefault(s style.BiasProvider) style.BiasProvider {
	if s == nil {
		return style.Default
	}
	return s
}
