package scan

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/idena-watch/flipwatch/pkg/retry"
	"github.com/idena-watch/flipwatch/pkg/rpc"
)

// DefaultWindowSize is how many completed epochs a rolling scan covers when
// the caller does not pick a window.
const DefaultWindowSize = 60

// Runner drives the list -> scan -> aggregate pipeline for single epochs and
// rolling windows.
type Runner struct {
	Client  rpc.Client
	Logger  *zap.Logger
	Retry   retry.Config
	Workers int
}

// NewRunner returns a Runner with default retry and worker settings.
func NewRunner(client rpc.Client, logger *zap.Logger) *Runner {
	return &Runner{
		Client:  client,
		Logger:  logger,
		Retry:   retry.DefaultConfig(),
		Workers: DefaultWorkers,
	}
}

// ScanEpoch produces the offense report for one epoch. Flip-level failures
// degrade to unresolved entries inside the report; only a failed listing or
// cancellation returns an error.
func (r *Runner) ScanEpoch(ctx context.Context, epoch uint64) (*EpochReport, error) {
	lister := &Lister{Client: r.Client}
	refs, err := lister.ListFlips(ctx, epoch)
	if err != nil {
		return nil, err
	}
	r.Logger.Info("scanning epoch",
		zap.Uint64("epoch", epoch),
		zap.Int("flips", len(refs)))

	scanner := &FlagScanner{
		Client:  r.Client,
		Logger:  r.Logger,
		Retry:   r.Retry,
		Workers: r.Workers,
	}
	results := scanner.ScanFlags(ctx, refs)

	// A cancelled scan leaves unfinished fetches behind; do not pass them
	// off as unresolved flips in a finished report.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	agg := NewAggregator()
	unresolved := []string{}
	for _, res := range results {
		if !res.Resolved {
			unresolved = append(unresolved, res.Ref.Cid)
			continue
		}
		agg.Observe(res.Ref.Address, res.WrongWords)
	}
	sort.Strings(unresolved)

	return &EpochReport{
		Epoch:           epoch,
		Entries:         agg.Entries(),
		UnresolvedFlips: unresolved,
	}, nil
}

// ScanWindow runs the single-epoch scan for every epoch in [start, end].
// Epochs whose listing fails are skipped and recorded, never silently
// treated as zero offenses. On cancellation the reports gathered so far are
// returned together with the context error; they stay valid.
func (r *Runner) ScanWindow(ctx context.Context, start, end uint64) (*WindowReport, error) {
	if start > end {
		return nil, fmt.Errorf("invalid window: start %d is after end %d", start, end)
	}

	report := &WindowReport{
		StartEpoch:    start,
		EndEpoch:      end,
		Reports:       []EpochReport{},
		SkippedEpochs: []uint64{},
	}

	for epoch := start; epoch <= end; epoch++ {
		if err := ctx.Err(); err != nil {
			report.Totals = SumCounts(report.Reports)
			return report, err
		}
		er, err := r.ScanEpoch(ctx, epoch)
		if err != nil {
			if ctx.Err() != nil {
				report.Totals = SumCounts(report.Reports)
				return report, ctx.Err()
			}
			r.Logger.Warn("epoch skipped",
				zap.Uint64("epoch", epoch),
				zap.Error(err))
			report.SkippedEpochs = append(report.SkippedEpochs, epoch)
			continue
		}
		report.Reports = append(report.Reports, *er)
	}

	report.Totals = SumCounts(report.Reports)
	return report, nil
}

// DefaultWindow returns the window of the most recent `size` completed
// epochs. The latest epoch is still in progress and is excluded.
func (r *Runner) DefaultWindow(ctx context.Context, size int) (uint64, uint64, error) {
	if size <= 0 {
		size = DefaultWindowSize
	}
	last, err := r.Client.LastEpoch(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("resolve latest epoch: %w", err)
	}
	if last == 0 {
		return 0, 0, fmt.Errorf("no completed epochs yet")
	}
	end := last - 1
	var start uint64
	if uint64(size) <= end {
		start = end - uint64(size) + 1
	}
	return start, end, nil
}

// ValidateEpoch rejects epochs the network has not reached yet. An invalid
// target is the one failure that aborts a run before it starts.
func (r *Runner) ValidateEpoch(ctx context.Context, epoch uint64) error {
	last, err := r.Client.LastEpoch(ctx)
	if err != nil {
		return fmt.Errorf("resolve latest epoch: %w", err)
	}
	if epoch > last {
		return fmt.Errorf("epoch %d is newer than the network's current epoch %d", epoch, last)
	}
	return nil
}
