package rpc

import "context"

// LastEpoch returns the number of the latest epoch. The latest epoch is the
// one currently in progress; callers scanning completed epochs should stop
// at LastEpoch()-1.
func (c *HTTPClient) LastEpoch(ctx context.Context) (uint64, error) {
	var ref EpochRef
	if _, err := c.getResult(ctx, lastEpochPath, &ref); err != nil {
		return 0, err
	}
	return ref.Epoch, nil
}
