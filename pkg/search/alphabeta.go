package search

import (
	"context"
	"github.com/corvidchess/corvid/pkg/board"
	"github.com/corvidchess/corvid/pkg/eval"
	"github.com/corvidchess/corvid/pkg/learning"
	"github.com/corvidchess/corvid/pkg/search/style"
	"github.com/seekerror/stdlib/pkg/util/contextx"
)

// nullMoveMinDepth and nullMoveReduction configure null-move pruning: skip a move entirely and
// re-search with a narrow window at reduced depth. If that still fails high, the position is so
// good the opponent would not allow it, so the subtree is pruned. Disabled near the leaves and
// whenever the side to move is in check, since the null move is illegal there.
const (
	nullMoveMinDepth  = 3
	nullMoveReduction = 2
	// nullMoveVerifyMinDepth is the depth above which a null-move fail-high is re-confirmed by
	// a reduced-depth verification search instead of trusted outright.
	nullMoveVerifyMinDepth = 8
	lmrMinDepth            = 3
	lmrMinMoveNumber       = 4
)

// razorMaxDepth and razorMarginPerDepth bound razoring: at shallow depth, if the static eval is
// already hopelessly below alpha, drop straight into quiescence rather than searching the
// full-width tree, and trust the quiescence result if it agrees.
const (
	razorMaxDepth       = 4
	razorMarginPerDepth = eval.Score(1.25)
)

// futilityMaxDepth and futilityMarginPerDepth bound node-level (reverse) futility pruning: at
// shallow depth, if the static eval already clears beta by a comfortable margin, trust it
// without searching further.
const (
	futilityMaxDepth       = 8
	futilityMarginPerDepth = eval.Score(0.7)
	// futilityTTPvMargin widens the futility margin at a node any ancestor of which was ever
	// searched as a PV node, since such nodes deserve more scrutiny.
	futilityTTPvMargin = eval.Score(0.6)
)

// probCutMinDepth, probCutMargin and probCutReduction configure ProbCut: a handful of captures
// that already win material by more than beta plus a margin are verified with a cheap reduced
// search, and trusted as a cutoff if that search agrees.
const (
	probCutMinDepth  = 5
	probCutMargin    = eval.Score(1.0)
	probCutReduction = 4
)

// iirMinDepth is the depth above which a node without any transposition-table move gets its
// depth trimmed by one before the move loop: without a hash move to order first, the node's
// ordering is weak enough that searching it at full depth is not worth the cost.
const iirMinDepth = 4

// singularMinDepth, singularTTDepthMargin and singularMarginPerDepth configure singular
// extension: a transposition-table move that is far better than every alternative, as confirmed
// by a reduced, move-excluded re-search, is extended by a ply on the theory that it is forced.
const (
	singularMinDepth       = 6
	singularTTDepthMargin  = 3
	singularMarginPerDepth = eval.Score(0.2)
)

// Move-loop shallow pruning: at shallow depth and away from check, quiet moves beyond a
// per-depth count, and captures/quiets whose static exchange evaluation is too far in the red,
// are skipped outright rather than searched.
const (
	lateMovePruningMaxDepth  = 6
	seePruningMaxDepth       = 8
	seeCaptureMarginPerDepth = eval.Score(-1.0)
	seeQuietMarginPerDepth   = eval.Score(-0.4)
)

// lateMovePruningLimit returns the number of quiet moves tried before the rest are skipped at
// the given depth, growing quadratically so deeper nodes tolerate more moves before pruning.
func lateMovePruningLimit(depth int) int {
	return 3 + depth*depth
}

// AlphaBeta implements negamax alpha-beta pruning with null-move pruning, late move reduction,
// razoring, futility pruning, ProbCut, internal iterative reduction, singular extension, and
// history/killer/SEE-informed move ordering and pruning. Pseudo-code (negamax form):
//
// function negamax(node, depth, α, β, color) is
//
//	if depth = 0 or node is a terminal node then
//	    return color * the heuristic value of node
//	value := −∞
//	for each child of node do
//	    value := max(value, −negamax(child, depth − 1, −β, −α, −color))
//	    α := max(α, value)
//	    if α ≥ β then
//	        break (* cutoff *)
//	return value
//
// See: https://en.wikipedia.org/wiki/Negamax.
type AlphaBeta struct {
	Explore   Exploration
	Eval      QuietSearch
	Tablebase Tablebase
}

func (p AlphaBeta) Search(ctx context.Context, sctx *Context, b *board.Board, depth int) (uint64, eval.Score, []board.Move, error) {
	run := &runAlphaBeta{
		explore:     fullIfNotSet(p.Explore),
		eval:        p.Eval,
		static:      staticEvaluatorOf(p.Eval),
		tb:          tablebaseOrDefault(p.Tablebase),
		tt:          sctx.TT,
		noise:       sctx.Noise,
		history:     historyOrNew(sctx.History),
		correction:  correctionOrNew(sctx.Correction),
		bias:        styleOrDefault(sctx.Style),
		learning:    sctx.Learning,
		excluded:    sctx.ExcludeRoot,
		ponder:      sctx.Ponder,
		b:           b,
		singularPly: -1,
	}
	low, high := eval.NegInfScore, eval.InfScore
	if !sctx.Alpha.IsInvalid() {
		low = sctx.Alpha
	}
	if !sctx.Beta.IsInvalid() {
		high = sctx.Beta
	}

	score, moves := run.search(ctx, depth, 0, low, high, true)
	if contextx.IsCancelled(ctx) {
		return 0, eval.InvalidScore, nil, ErrHalted
	}
	return run.nodes, score, moves, nil
}

type runAlphaBeta struct {
	explore    Exploration
	eval       QuietSearch
	static     StaticEvaluator
	tb         Tablebase
	tt         TranspositionTable
	noise      eval.Random
	history    *History
	correction *CorrectionHistory
	bias       style.BiasProvider
	learning   *learning.Store
	excluded   []board.Move
	b          *board.Board
	nodes      uint64

	// nmpMinPly disallows a further null-move try until the search returns above this ply,
	// set while a null-move fail-high is being re-confirmed by a verification search so that
	// the verification itself cannot recurse into another null-move/verification pair.
	nmpMinPly int

	// singularMove and singularPly identify a move excluded from the move loop at one specific
	// ply, while that move's own singular-extension verification search is in flight.
	// singularPly is -1 whenever no such verification is active.
	singularMove board.Move
	singularPly  int

	ponder []board.Move
}

// search returns the positive score for the side to move at the root of this subtree, along
// with the remaining principal variation. allowNull permits a null-move try at this node;
// it is always false immediately after a null move, to avoid searching two in a row.
func (m *runAlphaBeta) search(ctx context.Context, depth, ply int, alpha, beta eval.Score, allowNull bool) (eval.Score, []board.Move) {
	if contextx.IsCancelled(ctx) {
		return eval.InvalidScore, nil
	}
	if m.b.Result().Outcome == board.Draw {
		return eval.ZeroScore, nil
	}

	// Mate-distance pruning: a mate found anywhere below this node cannot be worth more than
	// delivering it immediately, nor worth less than being mated immediately, so the window can
	// be clamped before any more expensive work happens.
	if alpha < eval.MatedIn(ply) {
		alpha = eval.MatedIn(ply)
	}
	if beta > eval.MateIn(ply+1) {
		beta = eval.MateIn(ply + 1)
	}
	if alpha >= beta {
		return alpha, nil
	}

	isPV := alpha+0.01 < beta

	var best board.Move
	ttBound, ttDepth, ttScore, ttMove, ttPv, ttHit := m.tt.Read(m.b.Hash(), ply)
	if ttHit {
		best = ttMove
		if ttDepth >= depth && !isPV {
			switch {
			case ttBound == ExactBound:
				return ttScore, nil
			case ttBound == LowerBound && ttScore >= beta:
				return ttScore, nil
			case ttBound == UpperBound && ttScore <= alpha:
				return ttScore, nil
			}
		}
	}
	relaxedPV := isPV || ttPv

	if score, _, ok := m.tb.Probe(m.b); ok {
		return score, nil
	}

	if best == (board.Move{}) && m.learning != nil {
		if rec, ok := m.learning.Probe(uint64(m.b.Hash())); ok {
			if hint, ok := learning.ResolveMove(rec, m.b.Position().PseudoLegalMoves(m.b.Turn())); ok {
				best = hint
			}
		}
	}

	inCheck := m.b.Position().IsChecked(m.b.Turn())

	if depth <= 0 {
		sctx := &Context{Alpha: alpha, Beta: beta, TT: m.tt, Noise: m.noise, History: m.history, Correction: m.correction}
		nodes, score := m.eval.QuietSearch(ctx, sctx, m.b)
		m.nodes += nodes

		m.tt.Write(m.b.Hash(), ExactBound, ply, 0, score, board.Move{})
		return score, nil
	}

	// rawEval is the evaluator's uncorrected verdict, cached across transpositions; correction
	// is layered on top at use time so it always reflects the latest-trained tables, even for
	// a cache hit recorded earlier in the search.
	rawEval := eval.InvalidScore
	correctedEval := eval.InvalidScore
	if !inCheck {
		if cached, ok := m.tt.ReadEval(m.b.Hash()); ok {
			rawEval = cached
		} else if m.static != nil {
			sctx := &Context{TT: m.tt, Noise: m.noise}
			rawEval = m.static.StaticEvaluate(ctx, sctx, m.b)
			m.tt.WriteEval(m.b.Hash(), rawEval)
		}
		if !rawEval.IsInvalid() {
			last, _ := m.b.LastMove()
			correctedEval = rawEval + m.correction.Delta(m.b.Turn(), m.b.Position(), last)
		}
	}

	// Razoring: the static eval is so far below alpha that only a tactical shot could save
	// this position. Confirm with a cheap quiescence search rather than the full-width tree.
	if !isPV && !inCheck && depth <= razorMaxDepth && !correctedEval.IsInvalid() && !correctedEval.IsMate() {
		if margin := razorMarginPerDepth * eval.Score(depth); correctedEval+margin < alpha {
			score, _ := m.search(ctx, 0, ply, alpha, beta, true)
			if !score.IsInvalid() && score <= alpha {
				return score, nil
			}
		}
	}

	// Node-level futility pruning: the static eval already clears beta by enough margin that
	// searching further is very unlikely to change the outcome.
	if !isPV && !inCheck && depth <= futilityMaxDepth && beta < eval.MateBound && !correctedEval.IsInvalid() {
		margin := futilityMarginPerDepth * eval.Score(depth)
		if relaxedPV {
			margin += futilityTTPvMargin
		}
		if correctedEval-margin > beta {
			return correctedEval, nil
		}
	}

	// Null-move pruning: pass the move and see if the opponent is still worse off than beta
	// even with a free tempo. If so, this position is not worth searching fully.
	if allowNull && !isPV && !inCheck && ply >= m.nmpMinPly && depth >= nullMoveMinDepth && beta < eval.MateBound && hasNonPawnMaterial(m.b) {
		reduction := nullMoveReduction + m.bias.NullMoveDelta(m.b.Turn(), depth)
		if reduction < 1 {
			reduction = 1
		}
		if ok := m.b.PushNull(); ok {
			score, _ := m.search(ctx, depth-1-reduction, ply+1, beta.Negate(), beta.Negate()+0.01, false)
			score = score.Negate()
			m.b.PopNull()

			if !score.IsInvalid() && beta.Less(score) {
				if depth < nullMoveVerifyMinDepth {
					return beta, nil // too shallow to bother verifying
				}

				// Verification search: re-search the same node at a reduced depth without the
				// null-move option, guarding against zugzwang positions the null move missed.
				// Disallow a further null move until this verification unwinds past its own
				// ply, so it cannot recurse into itself.
				prevMinPly := m.nmpMinPly
				m.nmpMinPly = ply + 1
				verify, _ := m.search(ctx, depth-reduction, ply, alpha, beta, false)
				m.nmpMinPly = prevMinPly

				if !verify.IsInvalid() && beta.Less(verify) {
					return beta, nil
				}
			}
		}
	}

	// ProbCut: a capture that already wins more than beta plus a margin, per a cheap SEE
	// estimate, is verified with a shallow reduced-depth search; if that confirms the gain,
	// the whole subtree is pruned the same as a normal beta cutoff.
	if !isPV && !inCheck && depth >= probCutMinDepth && beta < eval.MateBound {
		probBeta := beta + probCutMargin
		captures := board.NewMoveList(m.b.Position().PseudoLegalMoves(m.b.Turn()), MVVLVA)
		for {
			mv, ok := captures.Next()
			if !ok {
				break
			}
			if !mv.IsCapture() || mv.Equals(best) {
				continue
			}
			if eval.FromPawns(eval.NominalValue(mv.Capture)) < probBeta-beta {
				continue // material gain alone cannot possibly reach probBeta
			}
			if staticExchangeEvaluation(m.b, mv) < probBeta-correctedEval {
				continue
			}
			if !m.b.PushMove(mv) {
				continue
			}
			score, _ := m.search(ctx, depth-probCutReduction, ply+1, probBeta.Negate(), probBeta.Negate()+0.01, true)
			score = score.Negate()
			m.b.PopMove()

			if !score.IsInvalid() && probBeta.Less(score) {
				return score, nil
			}
		}
	}

	// Internal iterative reduction: without a hash move to try first, this node's ordering is
	// weak enough that a full-depth search is not worth its cost.
	if best == (board.Move{}) && depth >= iirMinDepth {
		depth--
	}

	m.nodes++

	hasLegalMove := false
	origAlpha := alpha
	bound := UpperBound
	var pv []board.Move

	last, _ := m.b.LastMove()
	priority := board.First(best, m.history.Priority(m.b.Turn(), ply, last))
	_, explore := m.explore(ctx, m.b)

	if len(m.ponder) > 0 {
		explore = m.ponder[0].Equals // overwrite: use ponder move even if not intended to be explored
		m.ponder = m.ponder[1:]
	}

	var tried []board.Move
	moveNumber := 0
	quietNumber := 0

	moves := board.NewMoveList(m.b.Position().PseudoLegalMoves(m.b.Turn()), priority)
	for {
		move, ok := moves.Next()
		if !ok {
			break
		}
		if m.singularPly == ply && move.Equals(m.singularMove) {
			continue // excluded while its own singular-extension verification search is active
		}

		isQuiet := !move.IsCapture() && !move.IsPromotion()
		notBest := !move.Equals(best)

		// Late move pruning: beyond a depth-scaled count of quiet moves already tried at a
		// shallow, non-PV node, the rest are assumed to be worse orderings of the same idea.
		if !isPV && !inCheck && notBest && isQuiet && depth <= lateMovePruningMaxDepth && quietNumber >= lateMovePruningLimit(depth) {
			continue
		}

		// SEE-based move pruning: a capture that loses material, or a quiet move the
		// continuation (butterfly) history rates as actively bad, is skipped at shallow depth
		// rather than searched to confirm what SEE and history already predict.
		if !inCheck && notBest && depth <= seePruningMaxDepth {
			if move.IsCapture() {
				if margin := seeCaptureMarginPerDepth * eval.Score(depth); staticExchangeEvaluation(m.b, move) < margin {
					continue
				}
			} else if isQuiet && m.history.Bonus(m.b.Turn(), move) < 0 {
				if margin := seeQuietMarginPerDepth * eval.Score(depth*depth); staticExchangeEvaluation(m.b, move) < margin {
					continue
				}
			}
		}

		if !m.b.PushMove(move) {
			continue // skip: not legal
		}
		if ply == 0 && isExcludedRoot(m.excluded, move) {
			// MultiPV: this root move was already reported as a prior, higher-ranked PV.
			m.b.PopMove()
			hasLegalMove = true
			continue
		}
		moveNumber++
		if isQuiet {
			quietNumber++
		}

		extension := 0
		if ply > 0 && depth >= singularMinDepth && move.Equals(best) && ttHit && ttBound != UpperBound &&
			ttDepth >= depth-singularTTDepthMargin && !ttScore.IsInvalid() && !ttScore.IsMate() {
			m.b.PopMove() // verification re-searches this node without the move pushed

			margin := singularMarginPerDepth * eval.Score(depth)
			singularBeta := ttScore - margin

			prevMove, prevPly := m.singularMove, m.singularPly
			m.singularMove, m.singularPly = move, ply
			sScore, _ := m.search(ctx, (depth-1)/2, ply, singularBeta-0.01, singularBeta, false)
			m.singularMove, m.singularPly = prevMove, prevPly

			if !sScore.IsInvalid() && sScore < singularBeta {
				extension = 1
			}

			if !m.b.PushMove(move) {
				continue // should not happen: move was legal moments ago
			}
		}

		if explore(move) {
			reduction := 0
			if depth >= lmrMinDepth && moveNumber > lmrMinMoveNumber && !inCheck && isQuiet {
				reduction = 1 + m.bias.ReductionDelta(m.b.Turn(), depth, moveNumber)
				if reduction < 0 {
					reduction = 0
				}
			}

			score, rem := m.search(ctx, depth-1-reduction+extension, ply+1, beta.Negate(), alpha.Negate(), true)
			if reduction > 0 && !score.IsInvalid() && alpha.Less(score.Negate()) {
				// Reduced move beat alpha: re-search at full depth to confirm.
				score, rem = m.search(ctx, depth-1+extension, ply+1, beta.Negate(), alpha.Negate(), true)
			}

			score = eval.IncrementMateDistance(score).Negate()
			if alpha.Less(score) {
				alpha = score
				pv = append([]board.Move{move}, rem...)
			}
			tried = append(tried, move)
		}

		m.b.PopMove()
		hasLegalMove = true

		if alpha == beta || beta.Less(alpha) {
			bound = LowerBound
			m.history.Update(m.b.Turn(), depth, move, tried)
			m.history.RecordKiller(ply, move)
			m.history.RecordCountermove(last, move)
			break // cutoff
		}
	}

	if !hasLegalMove {
		if result := m.b.AdjudicateNoLegalMoves(); result.Reason == board.Checkmate {
			return eval.MatedIn(ply), nil
		}
		return eval.ZeroScore, nil
	}

	if bound != LowerBound && origAlpha < alpha {
		bound = ExactBound
	}
	m.tt.Write(m.b.Hash(), bound, ply, depth, alpha, firstOrNone(pv))

	if !inCheck && !rawEval.IsInvalid() {
		m.correction.Update(m.b.Turn(), m.b.Position(), last, depth, alpha, rawEval)
	}
	return alpha, pv
}

// hasNonPawnMaterial guards against null-move pruning in pawn endgames, where zugzwang makes
// the null-move heuristic unsound.
func hasNonPawnMaterial(b *board.Board) bool {
	pos := b.Position()
	turn := b.Turn()
	for _, p := range []board.Piece{board.Queen, board.Rook, board.Bishop, board.Knight} {
		if pos.Piece(turn, p) != 0 {
			return true
		}
	}
	return false
}

func isExcludedRoot(excluded []board.Move, move board.Move) bool {
	for _, m := range excluded {
		if m.Equals(move) {
			return true
		}
	}
	return false
}

func historyOrNew(h *History) *History {
	if h == nil {
		return NewHistory()
	}
	return h
}

func correctionOrNew(c *CorrectionHistory) *CorrectionHistory {
	if c == nil {
		return NewCorrectionHistory()
	}
	return c
}

// staticEvaluatorOf type-asserts q as a StaticEvaluator, returning nil if it does not implement
// the optional interface; razoring, futility pruning and correction history are then skipped.
func staticEvaluatorOf(q QuietSearch) StaticEvaluator {
	if se, ok := q.(StaticEvaluator); ok {
		return se
	}
	return nil
}

func firstOrNone(pv []board.Move) board.Move {
	if len(pv) == 0 {
		return board.Move{}
	}
	return pv[0]
}

func fullIfNotSet(p Exploration) Exploration {
	if p == nil {
		return FullExploration
	}
	return p
}
