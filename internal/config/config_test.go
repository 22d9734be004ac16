package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Devices: []DeviceConfig{
			{Name: "Roof", APIKey: "token", SerialNumber: "SW1"},
		},
		SolaxCloud: SolaxCloudConfig{
			TimeoutMillis:             10000,
			MinRefreshIntervalSeconds: 300,
		},
		Monitor: MonitorConfig{
			PublishIntervalMillis: 5000,
		},
		MQTT: MQTTConfig{
			BaseTopic:        "SolaxCloud",
			HADiscoveryTopic: "homeassistant",
		},
	}
}

func TestValidateNormalizesTopics(t *testing.T) {

	cfg := validConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "solaxcloud", cfg.MQTT.BaseTopic)
	assert.Equal(t, 5*time.Minute, cfg.SolaxCloud.RefreshInterval())
	assert.Equal(t, 10*time.Second, cfg.SolaxCloud.Timeout())
	assert.Equal(t, 5*time.Second, cfg.Monitor.PublishInterval())
}

func TestValidateErrors(t *testing.T) {

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no devices", func(c *Config) { c.Devices = nil }},
		{"missing api key", func(c *Config) { c.Devices[0].APIKey = "" }},
		{"duplicated name", func(c *Config) {
			c.Devices = append(c.Devices, DeviceConfig{Name: "Roof", APIKey: "other", SerialNumber: "SW2"})
		}},
		{"duplicated serial number", func(c *Config) {
			c.Devices = append(c.Devices, DeviceConfig{Name: "Garage", APIKey: "other", SerialNumber: c.Devices[0].SerialNumber})
		}},
		{"duplicated serial number in shorthand", func(c *Config) {
			c.Name = "Garage"
			c.APIKey = "other"
			c.SerialNumber = c.Devices[0].SerialNumber
		}},
		{"refresh interval too low", func(c *Config) { c.SolaxCloud.MinRefreshIntervalSeconds = 10 }},
		{"publish interval too low", func(c *Config) { c.Monitor.PublishIntervalMillis = 100 }},
		{"invalid cron", func(c *Config) { c.Monitor.PublishCron = "every five minutes" }},
		{"invalid base topic", func(c *Config) { c.MQTT.BaseTopic = "solax/cloud" }},
		{"invalid discovery topic", func(c *Config) { c.MQTT.HADiscoveryTopic = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateCronSkipsInterval(t *testing.T) {

	cfg := validConfig()
	cfg.Monitor.PublishIntervalMillis = 0
	cfg.Monitor.PublishCron = "0 */5 * * * *"
	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.Monitor.UseCron())
}

func TestAllDevicesMergesShorthand(t *testing.T) {

	cfg := validConfig()
	cfg.Name = "Garage"
	cfg.APIKey = "token2"
	cfg.SerialNumber = "SW9"

	devices := cfg.AllDevices()
	require.Len(t, devices, 2)
	assert.Equal(t, "Garage", devices[0].Name)
	assert.Equal(t, "Roof", devices[1].Name)
}

func TestCheckMQTTTopic(t *testing.T) {

	topic, err := CheckMQTTTopic("My_Topic1")
	assert.NoError(t, err)
	assert.Equal(t, "my_topic1", topic)

	_, err = CheckMQTTTopic("my-topic")
	assert.Error(t, err)
}
