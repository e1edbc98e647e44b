// Package style models Shashin-style position classification and skill-limiting as pluggable
// bias providers, rather than entangling them with the search itself: a BiasProvider
// contributes small additive deltas to a handful of named pruning decisions, and composes
// with other providers via Compose.
package style

import "github.com/corvidchess/corvid/pkg/board"

// BiasProvider nudges a handful of alpha-beta pruning decisions (null-move reduction, late
// move reduction, futility margin) without the search needing to know why. The default, no-op
// values (zero deltas) must leave the search byte-for-byte identical to having no provider at all.
type BiasProvider interface {
	// ReductionDelta adjusts the late-move-reduction amount computed at a node; positive
	// values reduce more aggressively, negative values less.
	ReductionDelta(turn board.Color, depth, moveNumber int) int
	// FutilityDelta adjusts the futility/razoring margin in centipawns; positive values make
	// pruning more aggressive (smaller effective margin required to prune).
	FutilityDelta(turn board.Color, depth int) int
	// NullMoveDelta adjusts the null-move reduction; positive values reduce more.
	NullMoveDelta(turn board.Color, depth int) int
}

// Default is the no-op BiasProvider: every delta is zero, so composing it with anything else
// is the identity operation.
var Default BiasProvider = noop{}

type noop struct{}

func (noop) ReductionDelta(board.Color, int, int) int { return 0 }
func (noop) FutilityDelta(board.Color, int) int       { return 0 }
func (noop) NullMoveDelta(board.Color, int) int       { return 0 }

// Style enumerates the Shashin-style position classifications: a coarse guess at whether the
// position favors sharp attacking play (Tal), solid maneuvering (Petrosian), or balanced,
// universal play (Capablanca), each biasing the search's willingness to prune.
type Style uint8

const (
	// Capablanca is the default, balanced style: every bias factor is a no-op.
	Capablanca Style = iota
	// Tal favors sharp, tactical lines: less reduction/pruning so tactics are not pruned away.
	Tal
	// Petrosian favors solid, prophylactic play: more aggressive pruning of quiet lines that
	// do not change the positional picture.
	Petrosian
)

func (s Style) String() string {
	switch s {
	case Tal:
		return "Tal"
	case Petrosian:
		return "Petrosian"
	default:
		return "Capablanca"
	}
}

// ShashinProvider biases pruning decisions by table-driven Style: a single enum on the search
// root, consulted only at the handful of pruning decisions already named by BiasProvider,
// defaulting to a no-op.
type ShashinProvider struct {
	Style Style
}

func (p ShashinProvider) ReductionDelta(turn board.Color, depth, moveNumber int) int {
	switch p.Style {
	case Tal:
		return -1 // reduce less: keep tactical subtrees alive longer
	case Petrosian:
		return 1 // reduce more: quiet positions are pruned harder
	default:
		return 0
	}
}

func (p ShashinProvider) FutilityDelta(turn board.Color, depth int) int {
	switch p.Style {
	case Tal:
		return -30 // larger effective margin: prune fewer tactical tries
	case Petrosian:
		return 30 // smaller effective margin: prune more aggressively in quiet positions
	default:
		return 0
	}
}

func (p ShashinProvider) NullMoveDelta(turn board.Color, depth int) int {
	switch p.Style {
	case Tal:
		return -1 // trust null-move less when playing sharply
	case Petrosian:
		return 1
	default:
		return 0
	}
}

// SkillProvider models UCI_LimitStrength/UCI_Elo as a second, independent bias provider: the
// lower the target Elo, the more it nudges the search toward pruning reductions that a weaker
// player's intuition would accept, simulating handicap play without touching the search
// algorithm itself.
type SkillProvider struct {
	// Enabled mirrors UCI_LimitStrength; if false every delta is zero regardless of Elo.
	Enabled bool
	// Elo mirrors UCI_Elo, the target playing strength.
	Elo int
}

func (p SkillProvider) ReductionDelta(board.Color, int, int) int {
	if !p.Enabled {
		return 0
	}
	return handicapSteps(p.Elo)
}

func (p SkillProvider) FutilityDelta(board.Color, int) int {
	if !p.Enabled {
		return 0
	}
	return handicapSteps(p.Elo) * 20
}

func (p SkillProvider) NullMoveDelta(board.Color, int) int {
	return 0 // skill-limiting does not touch null-move verification
}

// handicapSteps maps a target Elo onto a small non-negative integer of "extra pruning" steps:
// every 200 Elo below 2400 (roughly engine-strength play) adds one step, capped at 5 so a very
// low Elo target does not degenerate the search into effectively random move choice.
func handicapSteps(elo int) int {
	const ceiling = 2400
	if elo >= ceiling {
		return 0
	}
	steps := (ceiling - elo) / 200
	if steps > 5 {
		steps = 5
	}
	return steps
}

// Compose combines several BiasProviders by summing their deltas, so Shashin-style and
// skill-limiting biases can both apply to the same search without either needing to know
// about the other.
func Compose(providers ...BiasProvider) BiasProvider {
	return composite(providers)
}

type composite []BiasProvider

func (c composite) ReductionDelta(turn board.Color, depth, moveNumber int) int {
	var sum int
	for _, p := range c {
		sum += p.ReductionDelta(turn, depth, moveNumber)
	}
	return sum
}

func (c composite) FutilityDelta(turn board.Color, depth int) int {
	var sum int
	for _, p := range c {
		sum += p.FutilityDelta(turn, depth)
	}
	return sum
}

func (c composite) NullMoveDelta(turn board.Color, depth int) int {
	var sum int
	for _, p := range c {
		sum += p.NullMoveDelta(turn, depth)
	}
	return sum
}
