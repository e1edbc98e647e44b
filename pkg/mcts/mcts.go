// Package mcts implements the Monte-Carlo Tree Search alternative to the alpha-beta searcher:
// a UCB tree policy over an arena of process-wide nodes, with virtual-loss parallelism and
// occasional alpha-beta rollouts standing in for a neural playout policy.
package mcts

import (
	"context"
	"math"
	"runtime"
	"sync"

	"github.com/corvidchess/corvid/pkg/board"
	"github.com/corvidchess/corvid/pkg/eval"
	"github.com/corvidchess/corvid/pkg/search"
	"go.uber.org/atomic"
)

// MaxChildren bounds the branching factor kept per node; chess positions essentially never
// exceed it (the theoretical max legal move count is in the low 200s from contrived FENs, but
// real game positions stay well under this).
const MaxChildren = 128

// mctsLogisticK is the slope of the value<->reward logistic conversion, in the same family as
// the engine's centipawn-normalization constant (see eval.wdlLogisticScale): a score of
// +203.77cp maps to a ~73% win reward.
const mctsLogisticK = 1.0 / 203.77

// rewardOf converts a search score (pawns, from the perspective of the side to move) into a
// reward in [0, 1].
func rewardOf(s eval.Score) float64 {
	if s.IsMate() {
		if s > 0 {
			return 1
		}
		return 0
	}
	cp := float64(s) * 100
	return 1 / (1 + math.Exp(-mctsLogisticK*cp))
}

// scoreOf inverts rewardOf, recovering a pawn score from a backed-up mean action value.
func scoreOf(r float64) eval.Score {
	r = math.Min(math.Max(r, 1e-6), 1-1e-6)
	cp := math.Log(r/(1-r)) / mctsLogisticK
	return eval.Score(cp / 100)
}

// Edge is one outgoing move from a Node, with atomic statistics so concurrent selectors and
// backups never need to take the node lock just to read or bump a counter.
type Edge struct {
	Move   board.Move
	Prior  float64 // fixed at expansion time, never mutated afterwards
	Visits atomic.Float64
	Action atomic.Float64 // sum of backed-up rewards; MeanActionValue = Action/Visits
	Losses atomic.Float64 // outstanding virtual losses, compensated on backup
}

// MeanActionValue is Action/Visits, which at quiescent state (no outstanding virtual losses on
// this edge) lies in [0, 1].
func (e *Edge) MeanActionValue() float64 {
	v := e.Visits.Load()
	if v <= 0 {
		return 0
	}
	return e.Action.Load() / v
}

// spinlock is a CAS+yield lock for tiny critical sections; it degenerates to a no-op when the
// engine runs single-threaded.
type spinlock struct {
	held    atomic.Bool
	enabled bool
}

func (s *spinlock) Lock() {
	if !s.enabled {
		return
	}
	for !s.held.CAS(false, true) {
		runtime.Gosched()
	}
}

func (s *spinlock) Unlock() {
	if !s.enabled {
		return
	}
	s.held.Store(false)
}

// Node is one position in the process-wide search tree, keyed by both halves of the position
// hash so an open-addressed arena slot can verify identity on collision instead of trusting a
// single 64-bit key the way the transposition table does.
type Node struct {
	key1, key2 uint64
	inUse      atomic.Bool

	visits   atomic.Int64
	numKids  int32 // set once at expansion, read thereafter without synchronization
	expanded atomic.Bool

	terminal bool
	reward   float64 // value for the side that moved into this node; exact only if terminal

	children [MaxChildren]Edge
	lock     spinlock
}

// Arena is a fixed-size, open-addressed store of Nodes. Lookup is on the hot path and nodes
// live for the lifetime of the arena, so a language-default growable map is avoided in favor of
// pre-allocated, collision-verified slots.
type Arena struct {
	nodes   []Node
	mask    uint64
	insert  spinlock
}

// NewArena allocates an arena sized to the next power of two at or above capacity.
func NewArena(capacity int, workers int) *Arena {
	n := 1
	for n < capacity {
		n <<= 1
	}
	if n == 0 {
		n = 1024
	}
	return &Arena{
		nodes:  make([]Node, n),
		mask:   uint64(n - 1),
		insert: spinlock{enabled: workers > 1},
	}
}

// Clear resets every slot, used on ucinewgame.
func (a *Arena) Clear() {
	for i := range a.nodes {
		a.nodes[i] = Node{}
	}
}

// split64 derives a secondary verification key from the primary Zobrist key. The board package
// does not expose an independent pawn-structure hash, so a fixed-point mix of key1 stands in
// for it: it still gives two independent-looking keys to check on collision, at the cost of
// not literally being pawn-keyed.
func split64(key1 uint64) uint64 {
	z := key1 + 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// lookupOrCreate returns the arena slot for key1, creating it if absent. Returns nil if the
// arena is full (every probed slot is occupied by a different key) — callers must treat a nil
// node defensively by stopping the descent, never by crashing.
func (a *Arena) lookupOrCreate(key1 uint64) *Node {
	key2 := split64(key1)
	idx := key1 & a.mask

	for i := uint64(0); i < uint64(len(a.nodes)); i++ {
		pos := (idx + i) & a.mask
		n := &a.nodes[pos]

		if n.inUse.Load() {
			if n.key1 == key1 && n.key2 == key2 {
				return n
			}
			continue
		}

		a.insert.Lock()
		if !n.inUse.Load() {
			n.key1, n.key2 = key1, key2
			n.inUse.Store(true)
			a.insert.Unlock()
			return n
		}
		a.insert.Unlock()
		if n.key1 == key1 && n.key2 == key2 {
			return n
		}
	}
	return nil
}

// Params are the runtime-mutable MCTS tuning knobs, all with sane defaults.
type Params struct {
	MaxDescents            int
	BackupMinimax          float64 // in [0, 1]; 0 disables minimax backup entirely
	PriorFastEvalDepth     int
	PriorSlowEvalDepth     int
	UCBUnexpandedNode      float64
	UCBExplorationConstant float64
	UCBLossesAvoidance     float64
	UCBLogTermFactor       float64
	UCBUseFatherVisits     bool
	// RolloutEvery triggers an alpha-beta rollout (instead of the fast prior estimate) once
	// every RolloutEvery expansions, approximating "probability depending on thread count and
	// branching factor" with a simple deterministic counter. Zero disables rollouts.
	RolloutEvery int
}

// DefaultParams returns sane defaults for Params.
func DefaultParams() Params {
	return Params{
		MaxDescents:            800,
		BackupMinimax:          0.1,
		PriorFastEvalDepth:     1,
		PriorSlowEvalDepth:     3,
		UCBUnexpandedNode:      0.5,
		UCBExplorationConstant: 1.3,
		UCBLossesAvoidance:     0.5,
		UCBLogTermFactor:       0.15,
		UCBUseFatherVisits:     true,
		RolloutEvery:           8,
	}
}

// Engine runs MCTS iterations against an Arena, using AB as both the prior estimator (a
// shallow search translated through the value<->reward logistic) and the occasional deeper
// rollout.
type Engine struct {
	Arena   *Arena
	AB      search.Search
	Params  Params
	Workers int

	expansions atomic.Int64
}

// NewEngine constructs an Engine with the given node capacity and an alpha-beta searcher used
// for priors and rollouts.
func NewEngine(capacity, workers int, ab search.Search, p Params) *Engine {
	return &Engine{
		Arena:   NewArena(capacity, workers),
		AB:      ab,
		Params:  p,
		Workers: workers,
	}
}

// path records one step of a selection descent, so Search can walk it back during backup.
type path struct {
	node *Node
	edge int
}

// Search runs MCTS from b's current position until Params.MaxDescents iterations complete or
// ctx is cancelled, and returns the principal variation extracted by following the
// most-visited edge at each node, matching the Search interface so it is a drop-in alternative
// launcher for the Lazy-SMP worker pool.
func (e *Engine) Search(ctx context.Context, sctx *search.Context, b *board.Board, depth int) (uint64, eval.Score, []board.Move, error) {
	root := e.Arena.lookupOrCreate(uint64(b.Hash()))
	if root == nil {
		return 0, eval.ZeroScore, nil, search.ErrHalted
	}
	e.ensureExpanded(ctx, sctx, b, root)

	var nodes atomic.Uint64
	workers := e.Workers
	if workers < 1 {
		workers = 1
	}
	budget := e.Params.MaxDescents
	if depth > 0 {
		budget = depth * e.Params.MaxDescents // depth acts as a multiplier for iterative callers
	}
	per := budget / workers
	if per < 1 {
		per = 1
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fork := b.Fork()
			for i := 0; i < per; i++ {
				select {
				case <-ctx.Done():
					return
				default:
				}
				n := e.descend(ctx, sctx, fork, root)
				nodes.Add(n)
			}
		}()
	}
	wg.Wait()

	pv := e.extractPV(root, b.Fork())
	score := scoreOf(meanOfBestChild(root))
	return nodes.Load(), score, pv, nil
}

// descend performs one selection/expansion/backup iteration starting at node, and returns the
// number of nodes visited.
func (e *Engine) descend(ctx context.Context, sctx *search.Context, b *board.Board, root *Node) uint64 {
	var trail []path
	node := root
	var nodes uint64

	for {
		nodes++
		node.lock.Lock()
		term, rew := node.terminal, node.reward
		node.lock.Unlock()

		if term {
			e.backup(trail, rew)
			return nodes
		}

		if !node.expanded.Load() {
			e.expand(ctx, sctx, b, node)
			// The freshly expanded node's own static estimate doubles as this iteration's
			// reward for this first visit.
			node.lock.Lock()
			term, rew = node.terminal, node.reward
			node.lock.Unlock()
			e.backup(trail, rew)
			return nodes
		}

		idx := e.selectEdge(node)
		if idx < 0 {
			e.backup(trail, 0.5)
			return nodes
		}
		edge := &node.children[idx]
		edge.Losses.Add(1)
		node.visits.Add(1)

		if !b.PushMove(edge.Move) {
			edge.Losses.Add(-1)
			e.backup(trail, 0.5)
			return nodes
		}
		trail = append(trail, path{node: node, edge: idx})

		child := e.Arena.lookupOrCreate(uint64(b.Hash()))
		if child == nil {
			b.PopMove()
			e.backup(trail, 0.5)
			return nodes
		}
		node = child
	}
}

// selectEdge picks the child edge maximizing the UCB score.
func (e *Engine) selectEdge(n *Node) int {
	n.lock.Lock()
	defer n.lock.Unlock()

	p := e.Params
	parentVisits := float64(n.visits.Load())
	c := p.UCBExplorationConstant
	if p.UCBUseFatherVisits {
		c *= math.Sqrt(math.Max(parentVisits, 1))
	}

	best, bestScore := -1, math.Inf(-1)
	for i := 0; i < int(n.numKids); i++ {
		ed := &n.children[i]
		visits := ed.Visits.Load()
		losses := ed.Losses.Load()

		mean := p.UCBUnexpandedNode
		if visits > 0 {
			mean = ed.Action.Load() / visits
		}
		denom := 1 + losses*p.UCBLossesAvoidance + visits*(1-p.UCBLossesAvoidance)
		explore := c * ed.Prior / denom
		logTerm := p.UCBLogTermFactor * math.Sqrt(math.Log(math.Max(parentVisits, 1))/(1+visits))

		score := mean + explore + logTerm
		if score > bestScore {
			bestScore, best = score, i
		}
	}
	return best
}

// ensureExpanded expands the root exactly once before Search's first descent, so the UCB loop
// always has priors to compare even if every worker starts at a cold root simultaneously.
func (e *Engine) ensureExpanded(ctx context.Context, sctx *search.Context, b *board.Board, n *Node) {
	if n.expanded.Load() {
		return
	}
	e.expand(ctx, sctx, b, n)
}

// expand generates legal moves from b at node n, assigns each a prior derived from a shallow
// alpha-beta evaluation through the value<->reward logistic, and classifies terminal nodes
// (checkmate, stalemate, draw by repetition/50-move).
func (e *Engine) expand(ctx context.Context, sctx *search.Context, b *board.Board, n *Node) {
	n.lock.Lock()
	defer n.lock.Unlock()
	if n.expanded.Load() {
		return
	}

	turn := b.Turn()
	moves := b.Position().PseudoLegalMoves(turn)

	count := int32(0)
	for _, m := range moves {
		if count >= MaxChildren {
			break
		}
		if !b.PushMove(m) {
			continue
		}
		b.PopMove()

		depth := e.Params.PriorFastEvalDepth
		if e.Params.RolloutEvery > 0 && int(e.expansions.Add(1))%e.Params.RolloutEvery == 0 {
			depth = e.Params.PriorSlowEvalDepth
		}

		score := e.evaluateMove(ctx, sctx, b, m, depth)
		n.children[count] = Edge{Move: m, Prior: rewardOf(score)}
		count++
	}
	n.numKids = count

	if count == 0 {
		n.terminal = true
		if b.Position().IsChecked(turn) {
			n.reward = 1 // mated: a win for the side that moved into this node
		} else {
			n.reward = 0.5 // stalemate
		}
	} else if b.Result().Outcome == board.Draw {
		n.terminal = true
		n.reward = 0.5
	} else {
		// Seed the node's own value from the best child prior, standing in for the
		// "assign reward" half of the playout step when the node is not terminal.
		best := 0.0
		for i := int32(0); i < count; i++ {
			if p := n.children[i].Prior; p > best {
				best = p
			}
		}
		n.reward = 1 - best // opponent's perspective at this node
	}
	n.expanded.Store(true)
}

// evaluateMove scores playing m from b with a shallow alpha-beta search, from the mover's
// perspective, without mutating the caller's board permanently.
func (e *Engine) evaluateMove(ctx context.Context, sctx *search.Context, b *board.Board, m board.Move, depth int) eval.Score {
	if !b.PushMove(m) {
		return eval.ZeroScore
	}
	defer b.PopMove()

	child := &search.Context{Alpha: eval.NegInfScore, Beta: eval.InfScore, TT: sctx.TT, Noise: sctx.Noise, History: search.NewHistory(), Correction: sctx.Correction}
	_, score, _, err := e.AB.Search(ctx, child, b, depth)
	if err != nil {
		return eval.ZeroScore
	}
	return score.Negate() // AB returns the score for the side to move after m; invert back
}

// backup walks the recorded trail from leaf to root, compensating each edge's virtual loss and
// adding the (perspective-flipped) reward. When Params.BackupMinimax
// is nonzero, the backed-up value is blended with the max mean action value among the node's
// own children, approximating a minimax backup instead of a pure Monte-Carlo average.
func (e *Engine) backup(trail []path, reward float64) {
	r := reward
	for i := len(trail) - 1; i >= 0; i-- {
		step := trail[i]
		ed := &step.node.children[step.edge]

		ed.Losses.Add(-1)
		ed.Visits.Add(1)
		ed.Action.Add(r)

		if m := e.Params.BackupMinimax; m > 0 {
			best := maxChildMean(step.node)
			r = (1-m)*r + m*best
		}
		r = 1 - r // flip perspective for the parent's edge
	}
}

// maxChildMean returns the highest mean action value among a node's expanded children, used by
// the minimax-backup blend.
func maxChildMean(n *Node) float64 {
	best := 0.0
	for i := int32(0); i < n.numKids; i++ {
		if v := n.children[i].MeanActionValue(); v > best {
			best = v
		}
	}
	return best
}

// meanOfBestChild reports the mean action value of the most-visited child of n, used to report
// the root score; falls back to 0.5 (a neutral estimate) if n has no expanded children yet.
func meanOfBestChild(n *Node) float64 {
	best, bestVisits := 0.5, -1.0
	for i := int32(0); i < n.numKids; i++ {
		ed := &n.children[i]
		if v := ed.Visits.Load(); v > bestVisits {
			bestVisits = v
			best = ed.MeanActionValue()
		}
	}
	return best
}

// extractPV walks the most-visited edge at each expanded node, starting at root, producing the
// principal variation the engine would report to the host.
func (e *Engine) extractPV(root *Node, b *board.Board) []board.Move {
	var pv []board.Move
	n := root
	for len(pv) < 64 {
		bestIdx, bestVisits := -1, -1.0
		for i := int32(0); i < n.numKids; i++ {
			if v := n.children[i].Visits.Load(); v > bestVisits {
				bestVisits, bestIdx = v, int(i)
			}
		}
		if bestIdx < 0 {
			break
		}
		m := n.children[bestIdx].Move
		if !b.PushMove(m) {
			break
		}
		pv = append(pv, m)

		next := e.Arena.lookupOrCreate(uint64(b.Hash()))
		if next == nil || !next.expanded.Load() || next.terminal {
			break
		}
		n = next
	}
	return pv
}
