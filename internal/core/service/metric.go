package service

import (
	"context"
	"math"

	"github.com/berfenger/solaxcloud2mqtt/internal/core/domain"
	"github.com/berfenger/solaxcloud2mqtt/internal/core/port"
	"github.com/berfenger/solaxcloud2mqtt/pkg/solax_cloud"
)

// MetricAccessor exposes one descriptor of a device as an independently
// readable value.
type MetricAccessor struct {
	descriptor domain.MetricDescriptor
	poller     port.TelemetryPoller
}

func NewMetricAccessor(descriptor domain.MetricDescriptor, poller port.TelemetryPoller) MetricAccessor {
	return MetricAccessor{
		descriptor: descriptor,
		poller:     poller,
	}
}

// NewMetricAccessors builds one accessor per entry of the descriptor table.
func NewMetricAccessors(poller port.TelemetryPoller) []MetricAccessor {
	descriptors := domain.MetricDescriptors()
	accessors := make([]MetricAccessor, 0, len(descriptors))
	for _, d := range descriptors {
		accessors = append(accessors, NewMetricAccessor(d, poller))
	}
	return accessors
}

func (m MetricAccessor) Descriptor() domain.MetricDescriptor {
	return m.descriptor
}

func (m MetricAccessor) Name() string {
	return domain.MetricName(m.poller.Device().Name, m.descriptor)
}

func (m MetricAccessor) Unit() string {
	return m.descriptor.Unit
}

func (m MetricAccessor) DisplayHint() string {
	return m.descriptor.DisplayHint
}

// Value reads through the shared poller, NaN when there is no data.
func (m MetricAccessor) Value(ctx context.Context) float64 {
	return m.poller.Read(ctx, m.descriptor.Key)
}

func (m MetricAccessor) Reading(ctx context.Context) domain.MetricValue {
	return domain.MetricValue{
		Descriptor: m.descriptor,
		Name:       m.Name(),
		Value:      m.Value(ctx),
	}
}

// ReadAll refreshes at most once and reads every accessor from the same
// snapshot, so a failing upstream costs one request and not one per metric.
func ReadAll(ctx context.Context, poller port.TelemetryPoller, accessors []MetricAccessor) []domain.MetricValue {
	poller.EnsureFresh(ctx)
	return readValues(poller.Snapshot(), accessors)
}

// ReadDevice reads all accessors and the poller diagnostics from one view.
func ReadDevice(ctx context.Context, poller port.TelemetryPoller, accessors []MetricAccessor) domain.DeviceReading {
	poller.EnsureFresh(ctx)
	view := poller.View()

	reading := domain.DeviceReading{
		Device:        poller.Device(),
		Metrics:       readValues(view.Snapshot, accessors),
		State:         view.State,
		LastSuccessAt: view.LastSuccessAt,
	}
	if view.LastError != nil {
		reading.LastError = view.LastError.Error()
	}
	if uploadTime, ok := view.Snapshot.Attribute(domain.ATTRIBUTE_UPLOAD_TIME); ok {
		reading.UploadTime = uploadTime
	}
	return reading
}

func readValues(snapshot solax_cloud.Snapshot, accessors []MetricAccessor) []domain.MetricValue {
	values := make([]domain.MetricValue, 0, len(accessors))
	for _, a := range accessors {
		v, ok := snapshot.Value(a.descriptor.Key)
		if !ok {
			v = math.NaN()
		}
		values = append(values, domain.MetricValue{
			Descriptor: a.descriptor,
			Name:       a.Name(),
			Value:      v,
		})
	}
	return values
}
