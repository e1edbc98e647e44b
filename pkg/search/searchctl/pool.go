package searchctl

import (
	"context"
	"github.com/corvidchess/corvid/pkg/board"
	"github.com/corvidchess/corvid/pkg/eval"
	"github.com/corvidchess/corvid/pkg/search"
	"github.com/corvidchess/corvid/pkg/search/style"
	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/util/contextx"
	"github.com/seekerror/stdlib/pkg/util/iox"
	"golang.org/x/sync/errgroup"
	"sync"
	"time"
)

// Pool is a Lazy-SMP style search harness: it launches several independent iterative deepening
// workers from the same root position, sharing one transposition table. Each helper keeps its
// own History and correction tables across iterations, so they diverge in move order and therefore
// in what the shared table warms up with, without requiring any split-point synchronization.
// The helper workers exist purely to seed the table faster; only the main thread's PV is
// reported, matching how Stockfish-style thread pools use auxiliary threads.
type Pool struct {
	Root search.Search
	// Workers is the number of helper goroutines in addition to the main search thread.
	// Zero means plain sequential iterative deepening on the main thread.
	Workers int
}

// bestMoveStabilityDepths is how many consecutive iterations the root best move must hold
// before the soft time deadline is allowed to stop the search.
const bestMoveStabilityDepths = 2

func (p *Pool) Launch(ctx context.Context, b *board.Board, tt search.TranspositionTable, noise eval.Random, opt Options) (Handle, <-chan search.PV) {
	out := make(chan search.PV, 1)
	h := &poolHandle{
		init: iox.NewAsyncCloser(),
		quit: iox.NewAsyncCloser(),
	}
	go h.process(ctx, p.Root, p.Workers, b, tt, noise, opt, out)

	return h, out
}

type poolHandle struct {
	init, quit iox.AsyncCloser

	pv search.PV
	mu sync.Mutex
}

func (h *poolHandle) process(ctx context.Context, root search.Search, workers int, b *board.Board, tt search.TranspositionTable, noise eval.Random, opt Options, out chan search.PV) {
	defer h.init.Close()
	defer close(out)

	wctx, cancel := contextx.WithQuitCancel(ctx, h.quit.Closed())
	defer cancel()

	soft, useSoft := EnforceTimeControl(ctx, h, opt.TimeControl, b.Turn())

	var grp errgroup.Group
	for i := 0; i < workers; i++ {
		fork := b.Fork()
		hist := search.NewHistory()
		corr := search.NewCorrectionHistory()
		grp.Go(func() error {
			runHelper(wctx, root, fork, tt, noise, hist, corr, opt.Style)
			return nil
		})
	}

	multiPV := opt.MultiPV
	if multiPV == 0 {
		multiPV = 1
	}

	depth := 1
	var lastBest board.Move
	stableDepths := 0
	searchStart := time.Now()
	for !h.quit.IsClosed() {
		start := time.Now()

		var excluded []board.Move
		var best search.PV
		halted := false
		for slot := uint(1); slot <= multiPV; slot++ {
			sctx := &search.Context{Alpha: eval.NegInfScore, Beta: eval.InfScore, TT: tt, Noise: noise, History: search.NewHistory(), Correction: search.NewCorrectionHistory(), Style: opt.Style, Learning: opt.Learning, ExcludeRoot: excluded}

			nodes, score, moves, err := root.Search(wctx, sctx, b, depth)
			if err != nil {
				if err != search.ErrHalted {
					logw.Errorf(ctx, "Search failed on %v at depth=%v: %v", b, depth, err)
				}
				halted = true
				break
			}
			if len(moves) == 0 {
				break
			}

			pv := search.PV{
				Depth: depth,
				Index: int(slot),
				Nodes: nodes,
				Score: score,
				Moves: moves,
				Time:  time.Since(start),
			}
			if tt != nil {
				pv.Hash = tt.Used()
			}

			logw.Debugf(ctx, "Searched %v: %v", b.Position(), pv)

			h.mu.Lock()
			h.pv = pv
			h.mu.Unlock()

			select {
			case <-out:
			default:
			}
			out <- pv

			if slot == 1 {
				best = pv
			}
			excluded = append(excluded, moves[0])
		}
		if halted {
			break
		}

		h.init.Close()
		if limit, ok := opt.DepthLimit.V(); ok && uint(depth) == limit {
			break // halt: reached max depth
		}
		if md, ok := best.Score.MateDistance(); ok && int(md) <= depth {
			break // halt: forced mate found within full width search. Exact result.
		}

		if len(best.Moves) > 0 && best.Moves[0].Equals(lastBest) {
			stableDepths++
		} else {
			stableDepths = 0
		}
		if len(best.Moves) > 0 {
			lastBest = best.Moves[0]
		}

		if useSoft && soft < time.Since(searchStart) {
			// Past the optimum deadline: stop only once the best move has held across a few
			// iterations. A move that just changed gets one more iteration's worth of room to
			// settle, bounded by the hard deadline armed in EnforceTimeControl.
			if stableDepths >= bestMoveStabilityDepths {
				break
			}
		}
		depth++
	}

	h.quit.Close()
	_ = grp.Wait()
}

// runHelper runs an auxiliary iterative deepening search purely to warm the shared
// transposition table. Its own PV is discarded.
func runHelper(ctx context.Context, root search.Search, b *board.Board, tt search.TranspositionTable, noise eval.Random, hist *search.History, corr *search.CorrectionHistory, bias style.BiasProvider) {
	sctx := &search.Context{Alpha: eval.NegInfScore, Beta: eval.InfScore, TT: tt, Noise: noise, History: hist, Correction: corr, Style: bias}
	for depth := 1; !contextx.IsCancelled(ctx); depth++ {
		if _, _, _, err := root.Search(ctx, sctx, b, depth); err != nil {
			return
		}
	}
}

func (h *poolHandle) Halt() search.PV {
	<-h.init.Closed()
	h.quit.Close()

	h.mu.Lock()
	defer h.mu.Unlock()

	return h.pv
}
