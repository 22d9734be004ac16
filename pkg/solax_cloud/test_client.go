package solax_cloud

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// TestResponse is one scripted answer of a TestFetcher.
type TestResponse struct {
	Snapshot Snapshot
	Err      error
	Delay    time.Duration
}

// TestFetcher replays scripted responses in order and repeats the last one
// when the script is exhausted. With no script it returns DefaultTestSnapshot.
type TestFetcher struct {
	mu        sync.Mutex
	responses []TestResponse
	calls     atomic.Int32
}

func NewTestFetcher(responses ...TestResponse) *TestFetcher {
	return &TestFetcher{
		responses: responses,
	}
}

func (f *TestFetcher) Fetch(ctx context.Context, creds Credentials) (Snapshot, error) {
	n := int(f.calls.Add(1))

	f.mu.Lock()
	var resp TestResponse
	switch {
	case len(f.responses) == 0:
		resp = TestResponse{Snapshot: DefaultTestSnapshot(creds.SerialNumber)}
	case n <= len(f.responses):
		resp = f.responses[n-1]
	default:
		resp = f.responses[len(f.responses)-1]
	}
	f.mu.Unlock()

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-ctx.Done():
			return Snapshot{}, &TransportError{Message: "request timed out", Err: ctx.Err()}
		}
	}
	return resp.Snapshot, resp.Err
}

func (f *TestFetcher) Calls() int {
	return int(f.calls.Load())
}

// Append queues more responses after the current script.
func (f *TestFetcher) Append(responses ...TestResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, responses...)
}

func DefaultTestSnapshot(serialNumber string) Snapshot {
	return NewSnapshot(map[string]float64{
		"acpower":        1234.5,
		"yieldtoday":     12.3,
		"yieldtotal":     4567.8,
		"feedinpower":    -350,
		"feedinenergy":   1620.4,
		"consumeenergy":  980.1,
		"feedinpowerM2":  0,
		"soc":            87,
		"peps1":          0,
		"peps2":          0,
		"peps3":          0,
		"batPower":       -420,
		"powerdc1":       850,
		"powerdc2":       610,
		"inverterType":   5,
		"inverterStatus": 102,
	}, map[string]string{
		"inverterSN": serialNumber,
		"sn":         serialNumber,
		"uploadTime": "2024-06-01 12:00:00",
	})
}

// ensure interface compliance
var _ Fetcher = (*TestFetcher)(nil)
