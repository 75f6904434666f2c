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
)

func main() {
	var (
		baseURL = flag.String("api", rpc.DefaultBaseURL, "Idena indexer API base URL")
		epoch   = flag.Uint64("epoch", 0, "epoch to rank (default: latest completed)")
		outDir  = flag.String("out", ".", "directory for leaderboard CSVs")
		rps     = flag.Int("rps", 10, "request rate against the API")
	)
	flag.Parse()

	cfg := appscan.Config{
		BaseURL: *baseURL,
		OutDir:  *outDir,
		RPS:     *rps,
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "epoch" {
			cfg.Epoch = *epoch
			cfg.EpochSet = true
		}
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := appscan.RunLeaderboard(ctx, cfg, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
