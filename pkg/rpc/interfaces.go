package rpc

import "context"

// Client captures the indexer API calls the scan pipeline depends on.
// The concrete HTTPClient implements it; tests inject fakes.
type Client interface {
	LastEpoch(ctx context.Context) (uint64, error)
	EpochFlips(ctx context.Context, epoch uint64) ([]FlipSummary, error)
	FlipByCid(ctx context.Context, cid string) (*FlipDetail, error)
	EpochBadAuthors(ctx context.Context, epoch uint64) ([]BadAuthor, error)
}

// Factory produces API clients for a given set of endpoints.
type Factory interface {
	NewClient(endpoints []string) Client
}

// HTTPFactory builds rate-limited HTTP clients sharing one Opts template.
type HTTPFactory struct {
	opts Opts
}

// NewHTTPFactory returns a Factory that stamps out HTTPClients with the given options.
func NewHTTPFactory(opts Opts) *HTTPFactory {
	return &HTTPFactory{opts: opts}
}

func (f *HTTPFactory) NewClient(endpoints []string) Client {
	o := f.opts
	o.Endpoints = endpoints
	return NewHTTPWithOpts(o)
}
