package watcher

import (
	"context"
	"fmt"
	"testing"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/idena-watch/flipwatch/app/watcher/types"
	"github.com/idena-watch/flipwatch/pkg/retry"
	"github.com/idena-watch/flipwatch/pkg/rpc"
	"github.com/idena-watch/flipwatch/pkg/scan"
	"github.com/idena-watch/flipwatch/pkg/store"
)

type rescanClient struct {
	lastEpoch  uint64
	flips      map[uint64][]rpc.FlipSummary
	details    map[string]*rpc.FlipDetail
	failEpochs map[uint64]bool
	listCalls  map[uint64]int
}

func (c *rescanClient) LastEpoch(ctx context.Context) (uint64, error) { return c.lastEpoch, nil }

func (c *rescanClient) EpochFlips(ctx context.Context, epoch uint64) ([]rpc.FlipSummary, error) {
	c.listCalls[epoch]++
	if c.failEpochs[epoch] {
		return nil, fmt.Errorf("listing epoch %d failed", epoch)
	}
	return c.flips[epoch], nil
}

func (c *rescanClient) FlipByCid(ctx context.Context, cid string) (*rpc.FlipDetail, error) {
	d, ok := c.details[cid]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return d, nil
}

func (c *rescanClient) EpochBadAuthors(ctx context.Context, epoch uint64) ([]rpc.BadAuthor, error) {
	return nil, nil
}

func newRescanApp(t *testing.T, client *rescanClient, windowSize int) *types.App {
	t.Helper()
	st, err := store.Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	runner := scan.NewRunner(client, zap.NewNop())
	runner.Retry = retry.NoDelayConfig(2)
	runner.Workers = 2

	return &types.App{
		Runner:     runner,
		Store:      st,
		Cache:      xsync.NewMap[uint64, *scan.EpochReport](),
		WindowSize: windowSize,
		Logger:     zap.NewNop(),
	}
}

func TestRescan_ScansWindowAndPersists(t *testing.T) {
	client := &rescanClient{
		lastEpoch:  4,
		flips:      map[uint64][]rpc.FlipSummary{},
		details:    map[string]*rpc.FlipDetail{},
		failEpochs: map[uint64]bool{},
		listCalls:  map[uint64]int{},
	}
	client.flips[3] = []rpc.FlipSummary{{Cid: "c3", Author: "0xaa", Epoch: 3}}
	client.details["c3"] = &rpc.FlipDetail{Cid: "c3", Author: "0xaa", WrongWords: true}

	app := newRescanApp(t, client, 3)
	require.NoError(t, Rescan(context.Background(), app))

	// Window is [1,3]: lastEpoch 4 minus the in-progress epoch.
	epochs, err := app.Store.ScannedEpochs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, epochs)

	report, ok, err := app.Store.EpochReport(context.Background(), 3)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, report.Entries, 1)
	assert.Equal(t, "0xaa", report.Entries[0].Address)

	cached, ok := app.Cache.Load(3)
	require.True(t, ok)
	assert.Equal(t, report, cached)
}

// TestRescan_SkipsScannedEpochs: verdicts are immutable after an epoch
// completes, so a second rescan refetches nothing.
func TestRescan_SkipsScannedEpochs(t *testing.T) {
	client := &rescanClient{
		lastEpoch:  4,
		flips:      map[uint64][]rpc.FlipSummary{},
		details:    map[string]*rpc.FlipDetail{},
		failEpochs: map[uint64]bool{},
		listCalls:  map[uint64]int{},
	}

	app := newRescanApp(t, client, 3)
	require.NoError(t, Rescan(context.Background(), app))
	firstCalls := client.listCalls[3]

	require.NoError(t, Rescan(context.Background(), app))
	assert.Equal(t, firstCalls, client.listCalls[3])
}

// TestRescan_LeavesFailedEpochForNextRun: a failed listing is retried on the
// following rescan instead of being recorded as scanned.
func TestRescan_LeavesFailedEpochForNextRun(t *testing.T) {
	client := &rescanClient{
		lastEpoch:  4,
		flips:      map[uint64][]rpc.FlipSummary{},
		details:    map[string]*rpc.FlipDetail{},
		failEpochs: map[uint64]bool{2: true},
		listCalls:  map[uint64]int{},
	}

	app := newRescanApp(t, client, 3)
	require.NoError(t, Rescan(context.Background(), app))

	epochs, err := app.Store.ScannedEpochs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 3}, epochs)

	client.failEpochs[2] = false
	require.NoError(t, Rescan(context.Background(), app))

	epochs, err = app.Store.ScannedEpochs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, epochs)
}
