package searchctl

import (
	"context"
	"fmt"
	"github.com/corvidchess/corvid/pkg/board"
	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/lang"
	"time"
)

// moveOverhead is subtracted from the remaining clock before any deadline is computed, a fixed
// safety margin against GUI/OS scheduling latency so a deadline is never cut so fine that the
// move arrives late.
const moveOverhead = 50 * time.Millisecond

// TimeControl represents time control information: remaining clock per side, plus each side's
// per-move increment (Fischer clock), and the number of moves left to the next time control
// (0 meaning sudden death, rest of the game).
type TimeControl struct {
	White, Black       time.Duration
	WhiteInc, BlackInc time.Duration
	Moves              int
}

// Limits returns the optimum and maximum deadlines for making a move with the given color,
// measured from the start of this move's search. optimumTime is the soft deadline: once an
// iteration finishes past it, iterative deepening may stop if the best move is stable.
// maximumTime is the hard deadline: the search must stop regardless.
func (t TimeControl) Limits(c board.Color) (optimum, maximum time.Duration) {
	remainder, inc := t.White, t.WhiteInc
	if c == board.Black {
		remainder, inc = t.Black, t.BlackInc
	}
	remainder -= moveOverhead
	if remainder < 0 {
		remainder = 0
	}

	// Assume 40 moves to the next time control if not told otherwise.
	moves := time.Duration(40)
	if t.Moves > 0 {
		moves = time.Duration(t.Moves) + 1
	}

	optimum = remainder/(2*moves) + inc*4/5
	maximum = 3 * optimum
	if remainder > 0 && maximum > remainder {
		maximum = remainder
	}
	return optimum, maximum
}

func (t TimeControl) String() string {
	if t.Moves == 0 {
		return fmt.Sprintf("%.1f<>%.1f", t.White.Seconds(), t.Black.Seconds())
	}
	return fmt.Sprintf("%.1f<>%.1f[moves=%v]", t.White.Seconds(), t.Black.Seconds(), t.Moves)
}

// EnforceTimeControl enforces the time control limits, if any, arming the hard deadline as an
// absolute halt. Returns the optimum (soft) deadline.
func EnforceTimeControl(ctx context.Context, h Handle, tc lang.Optional[TimeControl], turn board.Color) (time.Duration, bool) {
	c, ok := tc.V()
	if !ok {
		return 0, false
	}

	optimum, maximum := c.Limits(turn)
	time.AfterFunc(maximum, func() {
		h.Halt()
	})

	logw.Debugf(ctx, "Time control limits for %v: [%v; %v]", c, optimum, maximum)
	return optimum, true
}
