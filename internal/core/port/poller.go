package port

import (
	"context"
	"time"

	"github.com/berfenger/solaxcloud2mqtt/internal/core/domain"
	"github.com/berfenger/solaxcloud2mqtt/pkg/solax_cloud"
)

// TelemetryPoller is the single source of truth for the latest telemetry of
// one device. Implementations must be safe for concurrent use.
type TelemetryPoller interface {
	Device() domain.SolaxDevice
	// Read returns the latest value of key, or NaN when unknown. It may
	// trigger an upstream fetch.
	Read(ctx context.Context, key string) float64
	EnsureFresh(ctx context.Context)
	Snapshot() solax_cloud.Snapshot
	State() domain.PollState
	LastSuccessAt() *time.Time
	LastError() error
	// View returns the snapshot and its diagnostics taken together.
	View() PollerView
}

type PollerView struct {
	Snapshot      solax_cloud.Snapshot
	State         domain.PollState
	LastSuccessAt *time.Time
	LastError     error
}
