package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/corvidchess/corvid/pkg/engine"
	"github.com/corvidchess/corvid/pkg/engine/console"
	"github.com/corvidchess/corvid/pkg/engine/uci"
	"github.com/corvidchess/corvid/pkg/eval"
	"github.com/corvidchess/corvid/pkg/learning"
	"github.com/corvidchess/corvid/pkg/mcts"
	"github.com/corvidchess/corvid/pkg/search"
	"github.com/corvidchess/corvid/pkg/search/searchctl"
	"github.com/seekerror/logw"
)

var (
	noise        = flag.Int("noise", 10, "Evaluation noise in millipawns (zero if deterministic)")
	hash         = flag.Int("hash", 64, "Transposition table size in MB (zero disables it)")
	threads      = flag.Int("threads", 1, "Number of search threads, including the main thread")
	learningDir  = flag.String("learning", "morlock.learn", "Directory for the persisted correction/learning store (empty disables it)")
	selfLearning = flag.Bool("self-learning", false, "Open the learning store read-only (\"Read only learning\")")
)

func init() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `usage: morlock [options]

MORLOCK is a simple UCI chess engine.
Options:
`)
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()
	ctx := context.Background()

	s := search.AlphaBeta{
		Eval: search.Quiescence{
			Eval: search.EvaluatorFunc{Eval: eval.Material{}},
		},
	}

	mode := learning.Standard
	if *learningDir == "" {
		mode = learning.Off
	} else if *selfLearning {
		mode = learning.Self
	}
	store, err := learning.Open(ctx, *learningDir, mode)
	if err != nil {
		logw.Exitf(ctx, "Failed to open learning store %v: %v", *learningDir, err)
	}
	defer store.Close()

	e := engine.New(ctx, "morlock", "herohde", s,
		engine.WithOptions(engine.Options{Hash: uint(*hash), Noise: uint(*noise), Threads: uint(*threads)}),
		engine.WithTable(search.NewTranspositionTable),
		engine.WithZobrist(time.Now().UnixNano()),
		engine.WithMCTS(&searchctl.MCTS{Engine: mcts.NewEngine(1<<16, 1, s, mcts.DefaultParams())}),
		engine.WithLearning(store),
	)

	in := engine.ReadStdinLines(ctx)
	switch <-in {
	case uci.ProtocolName:
		// Use UCI protocol.

		driver, out := uci.NewDriver(ctx, e, in)
		go engine.WriteStdoutLines(ctx, out)

		<-driver.Closed()

	case console.ProtocolName:
		driver, out := console.NewDriver(ctx, e, s, in)
		go engine.WriteStdoutLines(ctx, out)

		<-driver.Closed()

	default:
		flag.Usage()
		logw.Exitf(ctx, "Protocol not supported")
	}
}
