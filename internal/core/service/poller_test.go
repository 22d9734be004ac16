package service

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/berfenger/solaxcloud2mqtt/internal/core/domain"
	"github.com/berfenger/solaxcloud2mqtt/pkg/solax_cloud"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testDevice() domain.SolaxDevice {
	return domain.NewSolaxDevice("Roof", "my-token", "SWABC123")
}

func newTestPoller(fetcher solax_cloud.Fetcher, clock *testClock) *SharedPoller {
	return NewSharedPoller(testDevice(), fetcher, DefaultSharedPollerConfig(), zap.NewNop(), WithClock(clock.Now))
}

func snapshotOf(values map[string]float64) solax_cloud.TestResponse {
	return solax_cloud.TestResponse{Snapshot: solax_cloud.NewSnapshot(values, nil)}
}

func transportFailure() solax_cloud.TestResponse {
	return solax_cloud.TestResponse{Err: &solax_cloud.TransportError{Message: "connection refused"}}
}

func TestReadBeforeAnySuccessIsNaN(t *testing.T) {

	fetcher := solax_cloud.NewTestFetcher(transportFailure())
	poller := newTestPoller(fetcher, newTestClock())

	for _, d := range domain.MetricDescriptors() {
		assert.True(t, math.IsNaN(poller.Read(context.Background(), d.Key)), d.Key)
	}
	assert.Equal(t, domain.PollStateEmpty, poller.State())
	assert.Nil(t, poller.LastSuccessAt())
	assert.Error(t, poller.LastError())
}

func TestReadReturnsSnapshotValues(t *testing.T) {

	require := require.New(t)

	fetcher := solax_cloud.NewTestFetcher(snapshotOf(map[string]float64{
		"acpower": 1234.5,
		"soc":     87,
	}))
	poller := newTestPoller(fetcher, newTestClock())

	require.Equal(1234.5, poller.Read(context.Background(), "acpower"))
	require.Equal(float64(87), poller.Read(context.Background(), "soc"))
	require.True(math.IsNaN(poller.Read(context.Background(), "unknown_key")))
	require.Equal(1, fetcher.Calls())
	require.Equal(domain.PollStateFresh, poller.State())
	require.NotNil(poller.LastSuccessAt())
	require.NoError(poller.LastError())
}

func TestRefreshGating(t *testing.T) {

	require := require.New(t)

	clock := newTestClock()
	fetcher := solax_cloud.NewTestFetcher(
		snapshotOf(map[string]float64{"acpower": 100}),
		snapshotOf(map[string]float64{"acpower": 200}),
	)
	poller := newTestPoller(fetcher, clock)

	require.Equal(float64(100), poller.Read(context.Background(), "acpower"))
	clock.Advance(4*time.Minute + 59*time.Second)
	require.Equal(float64(100), poller.Read(context.Background(), "acpower"))
	require.Equal(1, fetcher.Calls(), "no request before the interval elapsed")

	clock.Advance(time.Second)
	require.Equal(domain.PollStateStale, poller.State())
	require.Equal(float64(200), poller.Read(context.Background(), "acpower"))
	require.Equal(2, fetcher.Calls())
	require.Equal(domain.PollStateFresh, poller.State())
}

func TestFailureClearsCache(t *testing.T) {

	require := require.New(t)

	clock := newTestClock()
	fetcher := solax_cloud.NewTestFetcher(
		snapshotOf(map[string]float64{"acpower": 500}),
		transportFailure(),
	)
	poller := newTestPoller(fetcher, clock)

	require.Equal(float64(500), poller.Read(context.Background(), "acpower"))

	clock.Advance(DEFAULT_REFRESH_INTERVAL)
	require.True(math.IsNaN(poller.Read(context.Background(), "acpower")), "stale 500 must not be served")
	require.Equal(domain.PollStateEmpty, poller.State())
	require.Nil(poller.LastSuccessAt())
	require.True(poller.Snapshot().IsEmpty())
}

func TestEmptyStateRetriesOnNextRead(t *testing.T) {

	require := require.New(t)

	fetcher := solax_cloud.NewTestFetcher(
		transportFailure(),
		snapshotOf(map[string]float64{"acpower": 42}),
	)
	poller := newTestPoller(fetcher, newTestClock())

	require.True(math.IsNaN(poller.Read(context.Background(), "acpower")))
	require.Equal(float64(42), poller.Read(context.Background(), "acpower"))
	require.Equal(2, fetcher.Calls())
	require.NoError(poller.LastError(), "success clears the diagnostic")
}

func TestSingleFlight(t *testing.T) {

	require := require.New(t)

	fetcher := solax_cloud.NewTestFetcher(solax_cloud.TestResponse{
		Snapshot: solax_cloud.NewSnapshot(map[string]float64{"acpower": 1234.5}, nil),
		Delay:    200 * time.Millisecond,
	})
	poller := newTestPoller(fetcher, newTestClock())

	const readers = 64
	var wg sync.WaitGroup
	results := make([]float64, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = poller.Read(context.Background(), "acpower")
		}(i)
	}
	wg.Wait()

	require.Equal(1, fetcher.Calls(), "exactly one upstream call")
	for i := range results {
		require.Equal(1234.5, results[i])
	}
}

func TestCancelledReaderDoesNotCancelFetch(t *testing.T) {

	require := require.New(t)

	fetcher := solax_cloud.NewTestFetcher(solax_cloud.TestResponse{
		Snapshot: solax_cloud.NewSnapshot(map[string]float64{"acpower": 7}, nil),
		Delay:    200 * time.Millisecond,
	})
	poller := newTestPoller(fetcher, newTestClock())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.True(math.IsNaN(poller.Read(ctx, "acpower")), "reader gives up before the fetch ends")

	require.Eventually(func() bool {
		return poller.State() == domain.PollStateFresh
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(float64(7), poller.Read(context.Background(), "acpower"))
	require.Equal(1, fetcher.Calls())
}

func TestFetchTimeoutIsTransportError(t *testing.T) {

	fetcher := solax_cloud.NewTestFetcher(solax_cloud.TestResponse{
		Snapshot: solax_cloud.NewSnapshot(map[string]float64{"acpower": 7}, nil),
		Delay:    time.Second,
	})
	poller := NewSharedPoller(testDevice(), fetcher, SharedPollerConfig{
		Interval:     time.Minute,
		FetchTimeout: 20 * time.Millisecond,
	}, zap.NewNop())

	assert.True(t, math.IsNaN(poller.Read(context.Background(), "acpower")))
	assert.Equal(t, "transport", errorKind(poller.LastError()))
}

func TestScenarioSuccessOverHTTP(t *testing.T) {

	require := require.New(t)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"success": true, "result": {"acpower": 1234.5, "soc": 87}}`))
	}))
	defer srv.Close()

	client := solax_cloud.NewClient(solax_cloud.WithEndpoint(srv.URL))
	poller := NewSharedPoller(testDevice(), client, DefaultSharedPollerConfig(), zap.NewNop())

	accessors := map[string]MetricAccessor{}
	for _, a := range NewMetricAccessors(poller) {
		accessors[a.Descriptor().Key] = a
	}

	acPower := accessors["acpower"]
	require.Equal(1234.5, acPower.Value(context.Background()))
	require.Equal("W", acPower.Unit())
	require.Equal("Roof AC Power", acPower.Name())
	require.Equal("mdi:solar-power", acPower.DisplayHint())

	soc := accessors["soc"]
	require.Equal(float64(87), soc.Value(context.Background()))
	require.Equal("%", soc.Unit())

	require.True(math.IsNaN(poller.Read(context.Background(), "unknown_key")))
	require.Equal(int32(1), calls.Load())
}

func TestScenarioInvalidTokenOverHTTP(t *testing.T) {

	require := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "exception": "invalid token"}`))
	}))
	defer srv.Close()

	client := solax_cloud.NewClient(solax_cloud.WithEndpoint(srv.URL))
	poller := NewSharedPoller(testDevice(), client, DefaultSharedPollerConfig(), zap.NewNop())

	for _, a := range NewMetricAccessors(poller) {
		require.True(math.IsNaN(a.Value(context.Background())), a.Descriptor().Key)
	}
	require.Error(poller.LastError())
	require.Contains(poller.LastError().Error(), "invalid token")
	require.Equal("upstream", errorKind(poller.LastError()))
}

func TestReadAllCostsOneRequestWhenFailing(t *testing.T) {

	require := require.New(t)

	fetcher := solax_cloud.NewTestFetcher(transportFailure())
	poller := newTestPoller(fetcher, newTestClock())

	values := ReadAll(context.Background(), poller, NewMetricAccessors(poller))
	require.Len(values, len(domain.MetricDescriptors()))
	for _, v := range values {
		require.True(math.IsNaN(v.Value))
	}
	require.Equal(1, fetcher.Calls())
}

func TestReadAllUsesOneSnapshot(t *testing.T) {

	require := require.New(t)

	fetcher := solax_cloud.NewTestFetcher()
	poller := newTestPoller(fetcher, newTestClock())

	values := ReadAll(context.Background(), poller, NewMetricAccessors(poller))
	byKey := map[string]domain.MetricValue{}
	for _, v := range values {
		byKey[v.Descriptor.Key] = v
	}
	require.Equal(1234.5, byKey["acpower"].Value)
	require.Equal("Roof Battery power", byKey["batPower"].Name)
	require.Equal(float64(-420), byKey["batPower"].Value)
	require.Equal(1, fetcher.Calls())
}

// sequenceFetcher answers call n with acpower n and uploadTime "n".
type sequenceFetcher struct {
	calls atomic.Int32
}

func (f *sequenceFetcher) Fetch(ctx context.Context, creds solax_cloud.Credentials) (solax_cloud.Snapshot, error) {
	n := f.calls.Add(1)
	return solax_cloud.NewSnapshot(
		map[string]float64{domain.METRIC_AC_POWER: float64(n)},
		map[string]string{domain.ATTRIBUTE_UPLOAD_TIME: strconv.Itoa(int(n))},
	), nil
}

func TestReadDeviceMatchesDiagnosticsWithMetrics(t *testing.T) {

	clock := newTestClock()
	fetcher := &sequenceFetcher{}
	poller := newTestPoller(fetcher, clock)
	accessors := NewMetricAccessors(poller)

	stop := make(chan struct{})
	var refresher sync.WaitGroup
	refresher.Add(1)
	go func() {
		defer refresher.Done()
		for {
			select {
			case <-stop:
				return
			default:
				clock.Advance(DEFAULT_REFRESH_INTERVAL)
				poller.EnsureFresh(context.Background())
			}
		}
	}()

	var readers sync.WaitGroup
	for i := 0; i < 16; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for j := 0; j < 50; j++ {
				reading := ReadDevice(context.Background(), poller, accessors)
				acPower, ok := reading.Metric(domain.METRIC_AC_POWER)
				if !assert.True(t, ok) {
					return
				}
				assert.Equal(t, strconv.Itoa(int(acPower.Value)), reading.UploadTime)
				if reading.State != domain.PollStateEmpty {
					assert.NotNil(t, reading.LastSuccessAt)
				}
			}
		}()
	}
	readers.Wait()
	close(stop)
	refresher.Wait()
	assert.Positive(t, fetcher.calls.Load())
}

func TestViewAfterFailure(t *testing.T) {

	require := require.New(t)

	clock := newTestClock()
	fetcher := solax_cloud.NewTestFetcher(snapshotOf(map[string]float64{"acpower": 1}), transportFailure())
	poller := newTestPoller(fetcher, clock)

	poller.EnsureFresh(context.Background())
	view := poller.View()
	require.Equal(domain.PollStateFresh, view.State)
	require.NotNil(view.LastSuccessAt)
	require.NoError(view.LastError)

	clock.Advance(DEFAULT_REFRESH_INTERVAL)
	poller.EnsureFresh(context.Background())
	view = poller.View()
	require.Equal(domain.PollStateEmpty, view.State)
	require.True(view.Snapshot.IsEmpty())
	require.Nil(view.LastSuccessAt)
	require.Error(view.LastError)
}
