package events

import (
	"math"

	. "github.com/berfenger/solaxcloud2mqtt/internal/core/domain"
	"github.com/berfenger/solaxcloud2mqtt/pkg/solax_cloud"
)

const (
	LAST_ERROR_NONE = "none"
)

// DeviceReadingToUpdateEvents converts a reading into one event per metric
// followed by the diagnostic text events of the device.
func DeviceReadingToUpdateEvents(reading DeviceReading) []any {
	deviceId := reading.Device.Id
	events := make([]any, 0, len(reading.Metrics)+4)

	for _, m := range reading.Metrics {
		events = append(events, NewMetricUpdateEvent(deviceId, m.Descriptor, m.Value))
	}

	lastError := reading.LastError
	if lastError == "" {
		lastError = LAST_ERROR_NONE
	}

	return append(events,
		NewDiagnosticUpdateEvent(deviceId, SENSOR_ID_INVERTER_STATUS, InverterStatusText(reading)),
		NewDiagnosticUpdateEvent(deviceId, SENSOR_ID_UPLOAD_TIME, reading.UploadTime),
		NewDiagnosticUpdateEvent(deviceId, SENSOR_ID_POLL_STATE, reading.State.String()),
		NewDiagnosticUpdateEvent(deviceId, SENSOR_ID_LAST_ERROR, lastError),
	)
}

// InverterStatusText is the name of the reported inverter status, empty
// when the status is not available.
func InverterStatusText(reading DeviceReading) string {
	m, ok := reading.Metric(METRIC_INVERTER_STATUS)
	if !ok || math.IsNaN(m.Value) {
		return ""
	}
	return solax_cloud.InverterStatusToString(int(m.Value))
}
