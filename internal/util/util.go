package util

import (
	"github.com/berfenger/solaxcloud2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Devices: []config.DeviceConfig{
			{
				Name:         "Roof",
				APIKey:       "test-token",
				SerialNumber: "SWTEST0001",
			},
		},
		SolaxCloud: config.SolaxCloudConfig{
			Endpoint:                  "http://127.0.0.1:1/api",
			TimeoutMillis:             2000,
			MinRefreshIntervalSeconds: 300,
		},
		Monitor: config.MonitorConfig{
			PublishIntervalMillis: 5000,
		},
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "solaxcloud",
			HADiscoveryTopic: "homeassistant",
		},
		Port: 8080,
	}
}
