package scan

import (
	"context"
	"fmt"
	"strings"

	"github.com/idena-watch/flipwatch/pkg/rpc"
)

// Lister produces the flips of one epoch as (cid, address) references.
type Lister struct {
	Client rpc.Client
}

// ListFlips returns the flips submitted in the given epoch with addresses
// normalized to lowercase. An epoch without flips yields an empty slice; a
// transport failure yields an error, so callers can tell "no data" from
// "could not fetch".
func (l *Lister) ListFlips(ctx context.Context, epoch uint64) ([]FlipRef, error) {
	flips, err := l.Client.EpochFlips(ctx, epoch)
	if err != nil {
		return nil, fmt.Errorf("list flips for epoch %d: %w", epoch, err)
	}
	refs := make([]FlipRef, 0, len(flips))
	for _, f := range flips {
		if f.Cid == "" {
			continue
		}
		refs = append(refs, FlipRef{
			Cid:     f.Cid,
			Address: NormalizeAddress(f.Author),
		})
	}
	return refs, nil
}

// NormalizeAddress lowercases an identity address so tallies never split on
// upstream casing differences.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
