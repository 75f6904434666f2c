package rpc

import (
	"context"
	"errors"
)

// EpochFlips returns every flip submitted in the given epoch, walking all
// pages of the list endpoint. An epoch with no flips yields an empty slice.
func (c *HTTPClient) EpochFlips(ctx context.Context, epoch uint64) ([]FlipSummary, error) {
	return listPaged[FlipSummary](ctx, c, epochFlipsPath(epoch), DefaultPageLimit)
}

// FlipByCid returns the validation detail for a single flip.
// Returns ErrNotFound when the cid is unknown upstream.
func (c *HTTPClient) FlipByCid(ctx context.Context, cid string) (*FlipDetail, error) {
	var detail FlipDetail
	if _, err := c.getResult(ctx, flipPath(cid), &detail); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &detail, nil
}
