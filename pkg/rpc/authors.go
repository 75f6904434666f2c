package rpc

import "context"

// EpochBadAuthors returns the identities flagged as bad flip authors for the
// given epoch, walking all pages. An epoch with no bad authors yields an
// empty slice.
func (c *HTTPClient) EpochBadAuthors(ctx context.Context, epoch uint64) ([]BadAuthor, error) {
	return listPaged[BadAuthor](ctx, c, epochBadAuthorsPath(epoch), DefaultPageLimit)
}
