package searchctl

import (
	"context"
	"sync"
	"time"

	"github.com/corvidchess/corvid/pkg/board"
	"github.com/corvidchess/corvid/pkg/eval"
	"github.com/corvidchess/corvid/pkg/mcts"
	"github.com/corvidchess/corvid/pkg/search"
	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/util/contextx"
	"github.com/seekerror/stdlib/pkg/util/iox"
)

// MCTS is a search harness that runs the Monte-Carlo tree search engine instead of alpha-beta,
// as an alternative Launcher selectable by the "MCTS by Shashin" UCI option. Unlike the
// alpha-beta pool, the underlying engine runs its own fixed descent budget rather than an
// ever-deepening loop, so only a single PV is ever reported per Launch.
type MCTS struct {
	Engine *mcts.Engine
}

func (p *MCTS) Launch(ctx context.Context, b *board.Board, tt search.TranspositionTable, noise eval.Random, opt Options) (Handle, <-chan search.PV) {
	out := make(chan search.PV, 1)
	h := &mctsHandle{
		init: iox.NewAsyncCloser(),
		quit: iox.NewAsyncCloser(),
	}
	go h.process(ctx, p.Engine, b, tt, noise, opt, out)

	return h, out
}

type mctsHandle struct {
	init, quit iox.AsyncCloser

	pv search.PV
	mu sync.Mutex
}

func (h *mctsHandle) process(ctx context.Context, eng *mcts.Engine, b *board.Board, tt search.TranspositionTable, noise eval.Random, opt Options, out chan search.PV) {
	defer h.init.Close()
	defer close(out)

	sctx := &search.Context{Alpha: eval.NegInfScore, Beta: eval.InfScore, TT: tt, Noise: noise, History: search.NewHistory(), Correction: search.NewCorrectionHistory(), Style: opt.Style}
	_, _ = EnforceTimeControl(ctx, h, opt.TimeControl, b.Turn())

	wctx, cancel := contextx.WithQuitCancel(ctx, h.quit.Closed())
	defer cancel()

	start := time.Now()
	nodes, score, moves, err := eng.Search(wctx, sctx, b, 1)
	if err != nil && err != search.ErrHalted {
		logw.Errorf(ctx, "MCTS search failed on %v: %v", b, err)
		return
	}

	pv := search.PV{Depth: 1, Nodes: nodes, Score: score, Moves: moves, Time: time.Since(start)}
	if tt != nil {
		pv.Hash = tt.Used()
	}

	logw.Debugf(ctx, "MCTS searched %v: %v", b.Position(), pv)

	h.mu.Lock()
	h.pv = pv
	h.mu.Unlock()

	out <- pv
	h.init.Close()
}

func (h *mctsHandle) Halt() search.PV {
	<-h.init.Closed()
	h.quit.Close()

	h.mu.Lock()
	defer h.mu.Unlock()

	return h.pv
}
