package search

import (
	"context"
	"github.com/corvidchess/corvid/pkg/board"
	"github.com/corvidchess/corvid/pkg/eval"
	"github.com/seekerror/stdlib/pkg/util/contextx"
)

// quiescenceFutilityMargin is added to the captured piece's nominal value as slack before
// a capture is judged hopeless (stand-pat score plus the gain still below alpha) and skipped.
const quiescenceFutilityMargin = eval.Score(2.0)

// Quiescence implements a configurable alpha-beta quiet search: it resolves captures,
// promotions and check evasions beyond the horizon of the full-width search so that the
// returned score reflects a materially quiet (non-volatile) position.
type Quiescence struct {
	Explore Exploration
	Eval    Evaluator
}

// StaticEvaluate returns the leaf evaluator's verdict directly, without resolving captures.
func (q Quiescence) StaticEvaluate(ctx context.Context, sctx *Context, b *board.Board) eval.Score {
	return eval.FromPawns(q.Eval.Evaluate(ctx, sctx, b))
}

func (q Quiescence) QuietSearch(ctx context.Context, sctx *Context, b *board.Board) (uint64, eval.Score) {
	run := &runQuiescence{explore: quiescenceIfNotSet(q.Explore), eval: q.Eval, b: b}

	low, high := eval.NegInfScore, eval.InfScore
	if !sctx.Alpha.IsInvalid() {
		low = sctx.Alpha
	}
	if !sctx.Beta.IsInvalid() {
		high = sctx.Beta
	}

	score := run.search(ctx, sctx, low, high)
	return run.nodes, score
}

type runQuiescence struct {
	explore Exploration
	eval    Evaluator
	b       *board.Board
	nodes   uint64
}

// search returns the positive score for the side to move.
func (r *runQuiescence) search(ctx context.Context, sctx *Context, alpha, beta eval.Score) eval.Score {
	if contextx.IsCancelled(ctx) {
		return eval.ZeroScore
	}
	if r.b.Result().Outcome == board.Draw {
		return eval.ZeroScore
	}

	r.nodes++

	hasLegalMoves := false
	turn := r.b.Turn()
	inCheck := r.b.Position().IsChecked(turn)

	standPat := eval.FromPawns(r.eval.Evaluate(ctx, sctx, r.b))
	if !inCheck {
		// Only stand pat if not in check: every move must be tried when in check, since the
		// position might be checkmate.
		alpha = eval.Max(alpha, standPat)
		if alpha == beta || beta.Less(alpha) {
			return alpha
		}
	}

	priority, explore := r.explore(ctx, r.b)
	if inCheck {
		// Must try every legal move to detect checkmate and evasions.
		priority, explore = MVVLVA, IsAnyMove
	}

	moves := board.NewMoveList(r.b.Position().PseudoLegalMoves(turn), priority)
	for {
		m, ok := moves.Next()
		if !ok {
			break
		}

		if !inCheck && explore(m) && m.IsCapture() && !m.IsPromotion() {
			// Delta pruning: if even the best case (stand pat + captured value + margin)
			// cannot reach alpha, this capture cannot possibly help. Skip without pushing.
			gain := eval.FromPawns(eval.NominalValue(m.Capture))
			margin := quiescenceFutilityMargin - eval.Score(styleOrDefault(sctx.Style).FutilityDelta(turn, 0))/100
			if standPat+gain+margin < alpha {
				continue
			}
		}

		if !r.b.PushMove(m) {
			continue // skip: not legal
		}

		if inCheck || explore(m) {
			score := r.search(ctx, sctx, beta.Negate(), alpha.Negate())
			score = eval.IncrementMateDistance(score).Negate()
			alpha = eval.Max(alpha, score)
		}

		r.b.PopMove()
		hasLegalMoves = true

		if alpha == beta || beta.Less(alpha) {
			break // cutoff
		}
	}

	if !hasLegalMoves {
		if inCheck {
			if result := r.b.AdjudicateNoLegalMoves(); result.Reason == board.Checkmate {
				return eval.NegInfScore
			}
			return eval.ZeroScore
		}
		return standPat
	}
	return alpha
}

func quiescenceIfNotSet(p Exploration) Exploration {
	if p == nil {
		return QuiescenceExploration
	}
	return p
}
