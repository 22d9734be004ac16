package domain

import "math"

// SensorUpdateEventMixIn addresses the HA sensor an update belongs to.
// DeviceId is the id of the device that produced the value.
type SensorUpdateEventMixIn struct {
	Id       string
	DeviceId string
}

type SensorUpdateEvent interface {
	SensorId() string
	SourceDevice() string
}

func (e SensorUpdateEventMixIn) SensorId() string {
	return e.Id
}

func (e SensorUpdateEventMixIn) SourceDevice() string {
	return e.DeviceId
}

// FloatSensorUpdateEvent carries a numeric reading. A NaN Value means the
// metric has no current data.
type FloatSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value    float64
	Decimals uint
}

func (e FloatSensorUpdateEvent) Available() bool {
	return !math.IsNaN(e.Value)
}

type TextSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value string
}

type BridgeStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

func NewMetricUpdateEvent(deviceId string, descriptor MetricDescriptor, value float64) FloatSensorUpdateEvent {
	return FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id:       MetricSensorId(deviceId, descriptor.Key),
			DeviceId: deviceId,
		},
		Value:    value,
		Decimals: descriptor.Decimals,
	}
}

func NewDiagnosticUpdateEvent(deviceId, sensorId, value string) TextSensorUpdateEvent {
	return TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id:       DeviceSensorId(deviceId, sensorId),
			DeviceId: deviceId,
		},
		Value: value,
	}
}

var (
	_ SensorUpdateEvent = FloatSensorUpdateEvent{}
	_ SensorUpdateEvent = TextSensorUpdateEvent{}
	_ SensorUpdateEvent = BridgeStateUpdateEvent{}
)
