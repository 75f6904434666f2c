package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	appscan "github.com/idena-watch/flipwatch/app/scan"
	"github.com/idena-watch/flipwatch/pkg/rpc"
	"github.com/idena-watch/flipwatch/pkg/scan"
)

func main() {
	var (
		baseURL = flag.String("api", rpc.DefaultBaseURL, "Idena indexer API base URL")
		epoch   = flag.Uint64("epoch", 0, "scan a single epoch")
		start   = flag.Uint64("start", 0, "window start epoch (requires -end)")
		end     = flag.Uint64("end", 0, "window end epoch (requires -start)")
		window  = flag.Int("window", scan.DefaultWindowSize, "rolling window size when no explicit epoch/window is given")
		outDir  = flag.String("out", "", "directory for CSV/JSONL exports (optional)")
		workers = flag.Int("workers", scan.DefaultWorkers, "concurrent flip-flag fetches")
		rps     = flag.Int("rps", 10, "request rate against the API")
	)
	flag.Parse()

	cfg := appscan.Config{
		BaseURL:    *baseURL,
		WindowSize: *window,
		OutDir:     *outDir,
		Workers:    *workers,
		RPS:        *rps,
	}
	epochSet, startSet, endSet := false, false, false
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "epoch":
			epochSet = true
		case "start":
			startSet = true
		case "end":
			endSet = true
		}
	})
	if epochSet {
		cfg.Epoch = *epoch
		cfg.EpochSet = true
	}
	if startSet != endSet {
		fmt.Fprintln(os.Stderr, "-start and -end must be given together")
		os.Exit(2)
	}
	if startSet {
		cfg.Start, cfg.End, cfg.WindowSet = *start, *end, true
	}
	if cfg.EpochSet && cfg.WindowSet {
		fmt.Fprintln(os.Stderr, "-epoch and -start/-end are mutually exclusive")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := appscan.Run(ctx, cfg, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
