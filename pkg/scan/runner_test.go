package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/idena-watch/flipwatch/pkg/retry"
	"github.com/idena-watch/flipwatch/pkg/rpc"
)

// fakeClient serves canned flips and verdicts, with injectable failures.
type fakeClient struct {
	mu sync.Mutex

	lastEpoch   uint64
	flips       map[uint64][]rpc.FlipSummary
	details     map[string]*rpc.FlipDetail
	badAuthors  map[uint64][]rpc.BadAuthor
	failEpochs  map[uint64]bool
	failCids    map[string]int // remaining failures per cid, -1 = always
	flipCalls   map[string]int
	lastEpochOK bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		lastEpochOK: true,
		flips:       map[uint64][]rpc.FlipSummary{},
		details:     map[string]*rpc.FlipDetail{},
		badAuthors:  map[uint64][]rpc.BadAuthor{},
		failEpochs:  map[uint64]bool{},
		failCids:    map[string]int{},
		flipCalls:   map[string]int{},
	}
}

func (f *fakeClient) addFlip(epoch uint64, cid, author string, wrongWords bool) {
	f.flips[epoch] = append(f.flips[epoch], rpc.FlipSummary{Cid: cid, Author: author, Epoch: epoch})
	f.details[cid] = &rpc.FlipDetail{Cid: cid, Author: author, Epoch: epoch, WrongWords: wrongWords}
}

func (f *fakeClient) LastEpoch(ctx context.Context) (uint64, error) {
	if !f.lastEpochOK {
		return 0, fmt.Errorf("api down")
	}
	return f.lastEpoch, nil
}

func (f *fakeClient) EpochFlips(ctx context.Context, epoch uint64) ([]rpc.FlipSummary, error) {
	if f.failEpochs[epoch] {
		return nil, fmt.Errorf("listing epoch %d failed", epoch)
	}
	return f.flips[epoch], nil
}

func (f *fakeClient) FlipByCid(ctx context.Context, cid string) (*rpc.FlipDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flipCalls[cid]++
	if n, ok := f.failCids[cid]; ok && n != 0 {
		if n > 0 {
			f.failCids[cid] = n - 1
		}
		return nil, fmt.Errorf("transient failure for %s", cid)
	}
	d, ok := f.details[cid]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return d, nil
}

func (f *fakeClient) EpochBadAuthors(ctx context.Context, epoch uint64) ([]rpc.BadAuthor, error) {
	return f.badAuthors[epoch], nil
}

func (f *fakeClient) calls(cid string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flipCalls[cid]
}

func newTestRunner(client rpc.Client) *Runner {
	r := NewRunner(client, zap.NewNop())
	r.Retry = retry.NoDelayConfig(3)
	r.Workers = 2
	return r
}

func TestScanEpoch_TalliesOffenses(t *testing.T) {
	fc := newFakeClient()
	fc.addFlip(10, "cid1", "0xAA", true)
	fc.addFlip(10, "cid2", "0xBB", false)
	fc.addFlip(10, "cid3", "0xAA", true)
	fc.addFlip(10, "cid4", "0xCC", true)

	report, err := newTestRunner(fc).ScanEpoch(context.Background(), 10)
	require.NoError(t, err)

	require.Len(t, report.Entries, 3)
	assert.Equal(t, OffenseRecord{Address: "0xaa", Count: 2, RepeatOffender: true}, report.Entries[0])
	assert.Equal(t, OffenseRecord{Address: "0xcc", Count: 1, RepeatOffender: false}, report.Entries[1])
	assert.Equal(t, OffenseRecord{Address: "0xbb", Count: 0, RepeatOffender: false}, report.Entries[2])
	assert.Empty(t, report.UnresolvedFlips)
}

func TestScanEpoch_EmptyEpoch(t *testing.T) {
	report, err := newTestRunner(newFakeClient()).ScanEpoch(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, report.Entries)
	assert.Empty(t, report.UnresolvedFlips)
}

// TestScanEpoch_UnresolvedFlip exercises permanent flip-fetch failure: the
// flip's address stays out of the tally when it has no other resolved flips,
// and the cid is surfaced.
func TestScanEpoch_UnresolvedFlip(t *testing.T) {
	fc := newFakeClient()
	fc.addFlip(10, "cid1", "0xaa", true)
	fc.addFlip(10, "cid2", "0xdd", true)
	fc.failCids["cid2"] = -1

	report, err := newTestRunner(fc).ScanEpoch(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"cid2"}, report.UnresolvedFlips)
	for _, e := range report.Entries {
		assert.NotEqual(t, "0xdd", e.Address)
	}
	require.Len(t, report.Entries, 1)
	assert.Equal(t, "0xaa", report.Entries[0].Address)
}

// TestScanEpoch_UnresolvedKeepsOtherFlips: an address with one unresolved
// and one resolved offending flip still appears, counted only for the
// resolved one.
func TestScanEpoch_UnresolvedKeepsOtherFlips(t *testing.T) {
	fc := newFakeClient()
	fc.addFlip(10, "cid1", "0xaa", true)
	fc.addFlip(10, "cid2", "0xaa", true)
	fc.failCids["cid2"] = -1

	report, err := newTestRunner(fc).ScanEpoch(context.Background(), 10)
	require.NoError(t, err)

	require.Len(t, report.Entries, 1)
	assert.Equal(t, OffenseRecord{Address: "0xaa", Count: 1, RepeatOffender: false}, report.Entries[0])
	assert.Equal(t, []string{"cid2"}, report.UnresolvedFlips)
}

// TestScanEpoch_TransientFailureRetried: a flip that fails once resolves on
// the retry and lands in the tally.
func TestScanEpoch_TransientFailureRetried(t *testing.T) {
	fc := newFakeClient()
	fc.addFlip(10, "cid1", "0xaa", true)
	fc.failCids["cid1"] = 1

	report, err := newTestRunner(fc).ScanEpoch(context.Background(), 10)
	require.NoError(t, err)

	require.Len(t, report.Entries, 1)
	assert.Equal(t, 1, report.Entries[0].Count)
	assert.Empty(t, report.UnresolvedFlips)
	assert.Equal(t, 2, fc.calls("cid1"))
}

// TestScanEpoch_NotFoundSkipsRetries: an unknown cid is skip-and-log, not
// retried.
func TestScanEpoch_NotFoundSkipsRetries(t *testing.T) {
	fc := newFakeClient()
	fc.flips[10] = []rpc.FlipSummary{{Cid: "ghost", Author: "0xaa", Epoch: 10}}

	report, err := newTestRunner(fc).ScanEpoch(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"ghost"}, report.UnresolvedFlips)
	assert.Empty(t, report.Entries)
	assert.Equal(t, 1, fc.calls("ghost"))
}

func TestScanEpoch_ListingFailure(t *testing.T) {
	fc := newFakeClient()
	fc.failEpochs[10] = true

	_, err := newTestRunner(fc).ScanEpoch(context.Background(), 10)
	require.Error(t, err)
}

// TestScanWindow_SkipsFailedEpoch: epoch 2's listing fails entirely; epochs
// 1 and 3 still report and 2 is recorded as skipped.
func TestScanWindow_SkipsFailedEpoch(t *testing.T) {
	fc := newFakeClient()
	fc.addFlip(1, "c1", "0xaa", true)
	fc.addFlip(3, "c3", "0xaa", true)
	fc.failEpochs[2] = true

	report, err := newTestRunner(fc).ScanWindow(context.Background(), 1, 3)
	require.NoError(t, err)

	require.Len(t, report.Reports, 2)
	assert.Equal(t, uint64(1), report.Reports[0].Epoch)
	assert.Equal(t, uint64(3), report.Reports[1].Epoch)
	assert.Equal(t, []uint64{2}, report.SkippedEpochs)

	_, ok := report.Report(2)
	assert.False(t, ok)

	require.Len(t, report.Totals, 1)
	assert.Equal(t, OffenseRecord{Address: "0xaa", Count: 2, RepeatOffender: true}, report.Totals[0])
}

func TestScanWindow_InvalidWindow(t *testing.T) {
	_, err := newTestRunner(newFakeClient()).ScanWindow(context.Background(), 5, 3)
	require.Error(t, err)
}

// TestScanWindow_CancelledKeepsCompleted: cancellation mid-window returns the
// context error along with the reports already produced.
func TestScanWindow_CancelledKeepsCompleted(t *testing.T) {
	fc := newFakeClient()
	fc.addFlip(1, "c1", "0xaa", true)
	fc.addFlip(2, "c2", "0xbb", true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := newTestRunner(fc).ScanWindow(ctx, 1, 2)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Empty(t, report.Reports)
}

func TestDefaultWindow(t *testing.T) {
	fc := newFakeClient()
	fc.lastEpoch = 100

	start, end, err := newTestRunner(fc).DefaultWindow(context.Background(), 60)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), end)
	assert.Equal(t, uint64(40), start)
}

func TestDefaultWindow_ShortHistory(t *testing.T) {
	fc := newFakeClient()
	fc.lastEpoch = 5

	start, end, err := newTestRunner(fc).DefaultWindow(context.Background(), 60)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), end)
	assert.Equal(t, uint64(0), start)
}

func TestValidateEpoch(t *testing.T) {
	fc := newFakeClient()
	fc.lastEpoch = 100
	runner := newTestRunner(fc)

	assert.NoError(t, runner.ValidateEpoch(context.Background(), 100))
	assert.NoError(t, runner.ValidateEpoch(context.Background(), 0))

	err := runner.ValidateEpoch(context.Background(), 101)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than")
}

func TestValidateEpoch_APIDown(t *testing.T) {
	fc := newFakeClient()
	fc.lastEpochOK = false

	err := newTestRunner(fc).ValidateEpoch(context.Background(), 1)
	require.Error(t, err)
	assert.False(t, errors.Is(err, rpc.ErrNotFound))
}
