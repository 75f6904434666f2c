package scan

import (
	"context"
	"errors"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/idena-watch/flipwatch/pkg/retry"
	"github.com/idena-watch/flipwatch/pkg/rpc"
)

// DefaultWorkers bounds concurrent flip-flag fetches. The upstream API is
// rate limited, so the pool stays small; the token bucket in the client does
// the fine-grained pacing.
const DefaultWorkers = 4

// FlagResult is the outcome of one flip-flag fetch. Resolved is false when
// the flag could not be determined after retries; such flips are excluded
// from both the true and the false tallies.
type FlagResult struct {
	Ref        FlipRef
	WrongWords bool
	Resolved   bool
}

// FlagScanner fetches the wrongWords verdict for flips through a bounded
// worker pool. Fetch completion order is irrelevant to the caller: each
// result lands in its own slot and aggregation happens afterwards in one
// place.
type FlagScanner struct {
	Client  rpc.Client
	Logger  *zap.Logger
	Retry   retry.Config
	Workers int
}

// ScanFlags resolves the wrongWords flag for every ref. It never fails as a
// whole: per-flip failures degrade to unresolved results. Cancellation stops
// scheduling new fetches; the caller decides what to do with the partial
// slice.
func (s *FlagScanner) ScanFlags(ctx context.Context, refs []FlipRef) []FlagResult {
	results := make([]FlagResult, len(refs))
	for i := range refs {
		results[i].Ref = refs[i]
	}

	workers := s.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	pool := pond.NewPool(workers)
	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	for i := range refs {
		idx := i
		group.Submit(func() {
			if err := groupCtx.Err(); err != nil {
				return
			}
			results[idx] = s.scanOne(groupCtx, refs[idx])
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		s.Logger.Warn("flag scan group encountered error", zap.Error(err))
	}
	pool.StopAndWait()

	return results
}

func (s *FlagScanner) scanOne(ctx context.Context, ref FlipRef) FlagResult {
	res := FlagResult{Ref: ref}

	var detail *rpc.FlipDetail
	err := retry.WithBackoff(ctx, s.Retry, s.Logger, "fetch flip "+ref.Cid, func() error {
		d, ferr := s.Client.FlipByCid(ctx, ref.Cid)
		if ferr != nil {
			if errors.Is(ferr, rpc.ErrNotFound) {
				// Unknown cid cannot heal on retry; skip and log.
				return retry.Permanent(ferr)
			}
			return ferr
		}
		detail = d
		return nil
	})
	if err != nil {
		s.Logger.Warn("flip flag unresolved",
			zap.String("cid", ref.Cid),
			zap.String("address", ref.Address),
			zap.Error(err))
		return res
	}

	res.Resolved = true
	res.WrongWords = detail.WrongWords
	if res.Ref.Address == "" {
		res.Ref.Address = NormalizeAddress(detail.Author)
	}
	return res
}
