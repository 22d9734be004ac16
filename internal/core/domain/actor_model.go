package domain

import (
	"errors"
	"fmt"
	"time"
)

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
	ACTOR_ID_DEVICE       = "device"
)

var ErrUnknownDevice = errors.New("unknown device")

func DeviceActorId(deviceId string) string {
	return fmt.Sprintf("%s_%s", ACTOR_ID_DEVICE, deviceId)
}

// MetricValue is the current reading of one descriptor. Value is NaN when
// there is no data for the metric.
type MetricValue struct {
	Descriptor MetricDescriptor
	Name       string
	Value      float64
}

// DeviceReading is every metric of a device read from one snapshot, with
// the poller diagnostics at the time of the read.
type DeviceReading struct {
	Device        SolaxDevice
	Metrics       []MetricValue
	State         PollState
	LastSuccessAt *time.Time
	LastError     string
	UploadTime    string
}

func (r DeviceReading) Metric(key string) (MetricValue, bool) {
	for _, m := range r.Metrics {
		if m.Descriptor.Key == key {
			return m, true
		}
	}
	return MetricValue{}, false
}

type ListDevicesRequest struct {
	ActorRequestMixIn
}

type ListDevicesResponse struct {
	ActorResponseMixIn
	Devices []SolaxDevice
}

type GetDeviceMetricsRequest struct {
	DeviceRequestMixIn
}

type GetDeviceMetricsResponse struct {
	ActorResponseMixIn
	Reading DeviceReading
}

// PublishMetricsTick asks a device actor to read and publish all its metrics.
type PublishMetricsTick struct {
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors []GenericSensor
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}

// ensure interface compliance
var _ DeviceRequest = (*GetDeviceMetricsRequest)(nil)
