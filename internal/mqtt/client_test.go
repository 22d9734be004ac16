package mqtt

import (
	"math"
	"testing"

	"github.com/berfenger/solaxcloud2mqtt/internal/core/domain"
	"github.com/berfenger/solaxcloud2mqtt/internal/util"

	"github.com/stretchr/testify/assert"
)

func testClient() *MQTTClient {
	cfg := util.LoadTestConfig()
	return CreateMQTTClient(&cfg, OptsFromConfig(&cfg), nil, nil)
}

func TestTopics(t *testing.T) {

	assert := assert.New(t)

	client := testClient()
	assert.Equal("solaxcloud/bridge/state", client.BridgeStateTopic())
	assert.Equal("solaxcloud/sensor/solax_1234_acpower/state", client.SensorStateTopic("solax_1234_acpower"))
}

func TestFloatPayload(t *testing.T) {

	assert := assert.New(t)

	assert.Equal("1234.5", FloatPayload(1234.5, 1))
	assert.Equal("87", FloatPayload(87, 0))
	assert.Equal("-420.00", FloatPayload(-420, 2))
	assert.Equal(MQTT_PAYLOAD_NONE, FloatPayload(math.NaN(), 1))
	assert.Equal(MQTT_PAYLOAD_NONE, TextPayload(""))
	assert.Equal("Normal", TextPayload("Normal"))
}

func TestSensorDiscoveryMessage(t *testing.T) {

	assert := assert.New(t)

	client := testClient()
	device := domain.NewSolaxDevice("Roof", "token", "SW1")
	sensors := domain.InverterSensors(domain.InverterDevice(device), device)
	acPower := sensors[0]

	msg := GenericSensorToHADiscoveryMessage(client, acPower)
	assert.Equal(client.SensorStateTopic(acPower.Id), msg.StateTopic)
	assert.Equal("solaxcloud/bridge/state", msg.AvTopic)
	assert.Equal("W", msg.UnitOfMeasurement)
	assert.Equal("power", msg.DeviceClass)
	assert.Equal("Roof AC Power", msg.Name)
	assert.Equal([]string{device.Id}, msg.Device.Id)
	if assert.NotNil(msg.DisplayPrecision) {
		assert.Equal(uint(1), *msg.DisplayPrecision)
	}
	assert.Equal("homeassistant/sensor/"+device.Id+"/"+acPower.Id+"/config", client.HADiscoverySensorTopic(acPower))
}

func TestBridgeDiscoveryMessage(t *testing.T) {

	assert := assert.New(t)

	client := testClient()
	bridge := domain.BridgeSensors(domain.BridgeDevice("solaxcloud"))[0]

	msg := GenericSensorToHADiscoveryMessage(client, bridge)
	assert.Equal(client.BridgeStateTopic(), msg.StateTopic)
	assert.Equal(MQTT_PAYLOAD_ONLINE, msg.PayloadOn)
	assert.Equal(MQTT_PAYLOAD_OFFLINE, msg.PayloadOff)
	assert.Nil(msg.DisplayPrecision)
}
