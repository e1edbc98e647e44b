package search

import (
	"context"
	"github.com/corvidchess/corvid/pkg/board"
	"github.com/corvidchess/corvid/pkg/eval"
)

// Evaluator returns a static position evaluation in pawns, seen from the side to move.
// Implementations may use sctx to tilt the evaluation, e.g. by adding noise or a style bias.
type Evaluator interface {
	Evaluate(ctx context.Context, sctx *Context, b *board.Board) eval.Pawns
}

// QuietSearch resolves tactical noise (captures, checks, promotions) beyond the horizon of
// a full-width search and returns a stable score. It is invoked at the leaves of Search.
type QuietSearch interface {
	QuietSearch(ctx context.Context, sctx *Context, b *board.Board) (uint64, eval.Score)
}

// StaticEvaluator returns a plain, un-resolved static evaluation, skipping the tactical
// resolution a QuietSearch performs. A full-width search uses it for razoring, futility
// margins and the correction-history baseline, where a stable but cheap estimate is enough.
type StaticEvaluator interface {
	StaticEvaluate(ctx context.Context, sctx *Context, b *board.Board) eval.Score
}

// Search explores the game tree to the given depth and returns the node count, score and
// principal variation for the side to move. A non-nil error means the search was abandoned;
// the caller must not trust the returned score in that case.
type Search interface {
	Search(ctx context.Context, sctx *Context, b *board.Board, depth int) (uint64, eval.Score, []board.Move, error)
}

// EvaluatorFunc adapts eval.Evaluator (context-free evaluators) to the sctx-aware Evaluator
// interface, ignoring the search window.
type EvaluatorFunc struct {
	Eval eval.Evaluator
}

func (e EvaluatorFunc) Evaluate(ctx context.Context, sctx *Context, b *board.Board) eval.Pawns {
	return e.Eval.Evaluate(ctx, b) + sctx.Noise.Evaluate(ctx, b)
}
