// corvid is a UCI chess engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/corvid-chess/engine/pkg/engine"
	"github.com/corvid-chess/engine/pkg/engine/uci"
	"github.com/seekerror/logw"
)

var (
	hash    = flag.Uint("hash", 64, "Transposition table size in MB")
	threads = flag.Uint("threads", 1, "Lazy-SMP worker count")
	noise   = flag.Uint("noise", 0, "Evaluation noise in centipawns (zero if deterministic)")
)

func init() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `usage: corvid [options]

corvid is a UCI chess engine.
Options:
`)
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()
	ctx := context.Background()

	e := engine.New(ctx, "corvid", "corvid-chess", engine.WithOptions(engine.Options{
		Hash:    *hash,
		Threads: *threads,
		Noise:   *noise,
	}))

	in := engine.ReadStdinLines(ctx)
	switch <-in {
	case uci.ProtocolName:
		// Use UCI protocol.

		driver, out := uci.NewDriver(ctx, e, in)
		go engine.WriteStdoutLines(ctx, out)

		<-driver.Closed()

	default:
		flag.Usage()
		logw.Exitf(ctx, "Protocol not supported")
	}
}
