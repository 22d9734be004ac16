package events

import (
	"math"
	"testing"

	"github.com/berfenger/solaxcloud2mqtt/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReading(status float64) domain.DeviceReading {
	device := domain.NewSolaxDevice("Roof", "token", "SW1")
	acPower, _ := domain.MetricDescriptorByKey(domain.METRIC_AC_POWER)
	inverterStatus, _ := domain.MetricDescriptorByKey(domain.METRIC_INVERTER_STATUS)
	return domain.DeviceReading{
		Device: device,
		Metrics: []domain.MetricValue{
			{Descriptor: acPower, Name: "Roof AC Power", Value: 1234.5},
			{Descriptor: inverterStatus, Name: "Roof Inverter status", Value: status},
		},
		State:      domain.PollStateFresh,
		UploadTime: "2024-06-01 12:00:00",
	}
}

func TestDeviceReadingToUpdateEvents(t *testing.T) {

	require := require.New(t)

	reading := testReading(102)
	evs := DeviceReadingToUpdateEvents(reading)
	require.Len(evs, 6)

	acPower, ok := evs[0].(domain.FloatSensorUpdateEvent)
	require.True(ok)
	require.Equal(reading.Device.Id+"_acpower", acPower.SensorId())
	require.Equal(reading.Device.Id, acPower.SourceDevice())
	require.True(acPower.Available())
	require.Equal(1234.5, acPower.Value)
	require.Equal(uint(1), acPower.Decimals)

	texts := map[string]string{}
	for _, ev := range evs[2:] {
		text, ok := ev.(domain.TextSensorUpdateEvent)
		require.True(ok)
		texts[text.SensorId()] = text.Value
	}
	require.Equal("Normal", texts[domain.DeviceSensorId(reading.Device.Id, domain.SENSOR_ID_INVERTER_STATUS)])
	require.Equal("2024-06-01 12:00:00", texts[domain.DeviceSensorId(reading.Device.Id, domain.SENSOR_ID_UPLOAD_TIME)])
	require.Equal("fresh", texts[domain.DeviceSensorId(reading.Device.Id, domain.SENSOR_ID_POLL_STATE)])
	require.Equal(LAST_ERROR_NONE, texts[domain.DeviceSensorId(reading.Device.Id, domain.SENSOR_ID_LAST_ERROR)])
}

func TestInverterStatusTextWithoutData(t *testing.T) {

	assert.Equal(t, "", InverterStatusText(testReading(math.NaN())))
	assert.Equal(t, "Unknown(42)", InverterStatusText(testReading(42)))
}

func TestNaNMetricKeepsNaN(t *testing.T) {

	reading := testReading(102)
	reading.Metrics[0].Value = math.NaN()
	reading.State = domain.PollStateEmpty
	reading.LastError = "solax cloud: invalid token"

	evs := DeviceReadingToUpdateEvents(reading)
	acPower := evs[0].(domain.FloatSensorUpdateEvent)
	assert.True(t, math.IsNaN(acPower.Value))
	lastError := evs[len(evs)-1].(domain.TextSensorUpdateEvent)
	assert.Equal(t, "solax cloud: invalid token", lastError.Value)
}
