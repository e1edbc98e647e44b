package eval

import (
	"fmt"
	"github.com/corvidchess/corvid/pkg/board"
)

// Pawns is a position or material evaluation expressed in whole pawns. Positive favors the side
// the evaluation is made for; the evaluators in this module report it for the side to move.
type Pawns float32

func (p Pawns) String() string {
	return fmt.Sprintf("%.2f", p)
}

// Score is signed move or position score in pawns, extending Pawns with mate-distance encoding.
// Positive favors the side to move. If all pawns become queens and the opponent has only the
// king left, the standard material advantage score is: 9*8 (p) + 9 (q) + 2*5 (r) + 2*3 (k) +
// 2*3 (b) = 103. Score must be within +/- 1,000,000; mate scores occupy the top of that band
// (beyond +/- MateBound), closer to zero the longer the mate takes.
type Score float32

const (
	NegInf            = MinScore - 1
	MinScore    Score = -1000000
	MaxScore    Score = 1000000
	Inf               = MaxScore + 1
	NegInfScore       = NegInf
	InfScore          = Inf

	// ZeroScore is a neutral, drawn evaluation.
	ZeroScore Score = 0
	// InvalidScore marks the absence of a score, e.g. a cancelled search.
	InvalidScore Score = MinScore - 2

	// MateScore is the score of delivering mate on the current move (ply 0).
	MateScore Score = 900000
	// MateBound is the threshold above (below, negated) which a score is considered a mate score.
	MateBound Score = MateScore - 1000
)

// HeuristicScore converts a whole-pawn heuristic evaluation into a Score.
func HeuristicScore(pawns float32) Score {
	return Score(pawns)
}

// MateInXScore returns the score for delivering mate in x full moves (x >= 1).
func MateInXScore(x int) Score {
	return MateIn(2*x - 1)
}

// IsInvalid returns true iff the score is the sentinel InvalidScore.
func (s Score) IsInvalid() bool {
	return s == InvalidScore
}

// Negate flips the score to the opposing side's perspective.
func (s Score) Negate() Score {
	if s.IsInvalid() {
		return s
	}
	return -s
}

// IncrementMateDistance lengthens a mate score by one ply, accounting for the move just
// made to reach it. Non-mate scores are unaffected.
func IncrementMateDistance(s Score) Score {
	switch {
	case s > MateBound:
		return s - 1
	case s < -MateBound:
		return s + 1
	default:
		return s
	}
}

// FromPawns converts a material/positional evaluation into a search score.
func FromPawns(p Pawns) Score {
	return Score(p)
}

// MateIn returns the score for delivering mate in the given number of plies.
func MateIn(ply int) Score {
	return MateScore - Score(ply)
}

// MatedIn returns the score for being mated in the given number of plies.
func MatedIn(ply int) Score {
	return -MateScore + Score(ply)
}

// IsMate returns true iff the score represents a forced mate.
func (s Score) IsMate() bool {
	return s > MateBound || s < -MateBound
}

// MateDistance returns the number of plies to mate, if the score represents one.
func (s Score) MateDistance() (int, bool) {
	switch {
	case s > MateBound:
		return int(MateScore - s), true
	case s < -MateBound:
		return int(MateScore + s), true
	default:
		return 0, false
	}
}

// Less orders scores ascending.
func (s Score) Less(o Score) bool {
	return s < o
}

func (s Score) String() string {
	if d, ok := s.MateDistance(); ok {
		return fmt.Sprintf("mate(%v)", (d+1)/2)
	}
	return fmt.Sprintf("%.2f", float32(s))
}

// Unit returns the signed unit for the color: 1 for White and -1 for Black.
func Unit(c board.Color) Score {
	if c == board.White {
		return 1
	} else {
		return -1
	}
}

// Crop crops a Score into [MinScore;MaxScore], leaving mate scores untouched.
func Crop(s Score) Score {
	switch {
	case s.IsMate():
		return s
	case s > MaxScore:
		return MaxScore
	case s < MinScore:
		return MinScore
	default:
		return s
	}
}

// Max returns the largest of the given scores.
func Max(a, b Score) Score {
	if a < b {
		return b
	}
	return a
}

// Min returns the smallest of the given scores.
func Min(a, b Score) Score {
	if a < b {
		return a
	}
	return b
}
