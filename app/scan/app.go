package scan

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/idena-watch/flipwatch/pkg/export"
	"github.com/idena-watch/flipwatch/pkg/logging"
	"github.com/idena-watch/flipwatch/pkg/rpc"
	scanpkg "github.com/idena-watch/flipwatch/pkg/scan"
)

// Config is the one-shot scanner configuration, filled from CLI flags.
type Config struct {
	BaseURL string

	// Single-epoch mode: scan exactly Epoch.
	Epoch    uint64
	EpochSet bool

	// Window mode: scan [Start, End], or the last WindowSize completed
	// epochs when no explicit window is given.
	Start      uint64
	End        uint64
	WindowSet  bool
	WindowSize int

	// OutDir, when set, receives the CSV/JSONL exports.
	OutDir string

	Workers int
	RPS     int
}

// NewRunner builds the API client and scan runner for the given config.
func NewRunner(cfg Config, logger *zap.Logger) *scanpkg.Runner {
	base := cfg.BaseURL
	if base == "" {
		base = rpc.DefaultBaseURL
	}
	client := rpc.NewHTTPWithOpts(rpc.Opts{
		Endpoints: []string{base},
		RPS:       cfg.RPS,
	})
	runner := scanpkg.NewRunner(client, logger)
	if cfg.Workers > 0 {
		runner.Workers = cfg.Workers
	}
	return runner
}

// Run executes one scan (single epoch or rolling window), renders the result
// to out and optionally exports it to cfg.OutDir.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	logger, err := logging.New()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	runner := NewRunner(cfg, logger)

	if cfg.EpochSet {
		if err := runner.ValidateEpoch(ctx, cfg.Epoch); err != nil {
			return err
		}
		report, err := runner.ScanEpoch(ctx, cfg.Epoch)
		if err != nil {
			return err
		}
		export.RenderEpochText(out, report)
		if cfg.OutDir != "" {
			if err := exportEpoch(cfg.OutDir, report); err != nil {
				return err
			}
			logger.Info("epoch export written",
				zap.Uint64("epoch", report.Epoch),
				zap.String("dir", cfg.OutDir))
		}
		return nil
	}

	start, end := cfg.Start, cfg.End
	if !cfg.WindowSet {
		start, end, err = runner.DefaultWindow(ctx, cfg.WindowSize)
		if err != nil {
			return err
		}
	} else if err := runner.ValidateEpoch(ctx, end); err != nil {
		return err
	}

	report, err := runner.ScanWindow(ctx, start, end)
	if report != nil {
		export.RenderWindowText(out, report)
		if cfg.OutDir != "" {
			if exportErr := exportWindow(cfg.OutDir, report); exportErr != nil {
				return exportErr
			}
			logger.Info("window export written",
				zap.Uint64("start", start),
				zap.Uint64("end", end),
				zap.String("dir", cfg.OutDir))
		}
	}
	return err
}

// RunLeaderboard builds the grade-score leaderboard for one epoch and writes
// the two CSV rankings to cfg.OutDir (or prints a summary when unset).
func RunLeaderboard(ctx context.Context, cfg Config, out io.Writer) error {
	logger, err := logging.New()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	runner := NewRunner(cfg, logger)
	epoch := cfg.Epoch
	if !cfg.EpochSet {
		// Default to the latest completed epoch.
		last, lastErr := runner.Client.LastEpoch(ctx)
		if lastErr != nil {
			return lastErr
		}
		if last == 0 {
			return fmt.Errorf("no completed epochs yet")
		}
		epoch = last - 1
	} else if err := runner.ValidateEpoch(ctx, epoch); err != nil {
		return err
	}

	lb, err := scanpkg.BuildLeaderboard(ctx, runner.Client, logger, epoch)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Epoch %d: %d ranked flips, %d ranked authors, %d excluded authors\n",
		lb.Epoch, len(lb.Flips), len(lb.Authors), len(lb.ExcludedAuthors))

	if cfg.OutDir == "" {
		return nil
	}
	flipsPath := filepath.Join(cfg.OutDir, fmt.Sprintf("flips_leaderboard_epoch%d.csv", lb.Epoch))
	if err := export.WriteFile(flipsPath, func(w io.Writer) error {
		return export.WriteFlipLeaderboardCSV(w, lb)
	}); err != nil {
		return err
	}
	authorsPath := filepath.Join(cfg.OutDir, fmt.Sprintf("identities_leaderboard_epoch%d.csv", lb.Epoch))
	if err := export.WriteFile(authorsPath, func(w io.Writer) error {
		return export.WriteAuthorLeaderboardCSV(w, lb)
	}); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s and %s\n", flipsPath, authorsPath)
	return nil
}

func exportEpoch(dir string, report *scanpkg.EpochReport) error {
	if err := export.WriteFile(export.EpochCSVPath(dir, report.Epoch), func(w io.Writer) error {
		return export.WriteEpochCSV(w, report)
	}); err != nil {
		return err
	}
	return export.WriteFile(export.EpochJSONLPath(dir, report.Epoch), func(w io.Writer) error {
		return export.WriteEpochJSONL(w, report)
	})
}

func exportWindow(dir string, report *scanpkg.WindowReport) error {
	for i := range report.Reports {
		if err := exportEpoch(dir, &report.Reports[i]); err != nil {
			return err
		}
	}
	return export.WriteFile(export.WindowCSVPath(dir), func(w io.Writer) error {
		return export.WriteWindowCSV(w, report)
	})
}
