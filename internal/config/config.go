package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap/zapcore"
)

const (
	MIN_REFRESH_INTERVAL_SECONDS = 60
	MIN_PUBLISH_INTERVAL_MILLIS  = 1000
)

type Config struct {
	LogLevel zapcore.Level

	// single device shorthand, merged into Devices
	Name         string `mapstructure:"name"`
	APIKey       string `mapstructure:"api_key"`
	SerialNumber string `mapstructure:"sn"`

	Devices    []DeviceConfig   `mapstructure:"devices"`
	SolaxCloud SolaxCloudConfig `mapstructure:"solaxcloud"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	MQTT       MQTTConfig       `mapstructure:"mqtt"`
	Port       uint             `mapstructure:"port"`
	HttpLog    bool             `mapstructure:"http_log"`
}

type DeviceConfig struct {
	Name         string `mapstructure:"name"`
	APIKey       string `mapstructure:"api_key"`
	SerialNumber string `mapstructure:"sn"`
}

type SolaxCloudConfig struct {
	Endpoint                  string `mapstructure:"endpoint"`
	TimeoutMillis             uint32 `mapstructure:"timeout_millis"`
	MinRefreshIntervalSeconds uint32 `mapstructure:"min_refresh_interval_seconds"`
}

type MonitorConfig struct {
	PublishIntervalMillis uint32 `mapstructure:"publish_interval_millis"`
	// quartz cron expression (with seconds), replaces the interval when set
	PublishCron string `mapstructure:"publish_cron"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func (c SolaxCloudConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMillis) * time.Millisecond
}

func (c SolaxCloudConfig) RefreshInterval() time.Duration {
	return time.Duration(c.MinRefreshIntervalSeconds) * time.Second
}

func (c MonitorConfig) PublishInterval() time.Duration {
	return time.Duration(c.PublishIntervalMillis) * time.Millisecond
}

func (c MonitorConfig) UseCron() bool {
	return c.PublishCron != ""
}

// AllDevices returns the configured devices, the top level shorthand first.
func (c Config) AllDevices() []DeviceConfig {
	var devices []DeviceConfig
	if c.Name != "" || c.APIKey != "" || c.SerialNumber != "" {
		devices = append(devices, DeviceConfig{
			Name:         c.Name,
			APIKey:       c.APIKey,
			SerialNumber: c.SerialNumber,
		})
	}
	return append(devices, c.Devices...)
}

// Validate checks bounds and normalizes the MQTT topics in place.
func (c *Config) Validate() error {

	devices := c.AllDevices()
	if len(devices) == 0 {
		return errors.New("no device configured. set name, api_key and sn or a devices list")
	}
	names := make(map[string]struct{}, len(devices))
	serials := make(map[string]struct{}, len(devices))
	for i, d := range devices {
		if d.Name == "" || d.APIKey == "" || d.SerialNumber == "" {
			return fmt.Errorf("device #%d: name, api_key and sn are required", i)
		}
		if _, ok := names[d.Name]; ok {
			return fmt.Errorf("device #%d: duplicated name %q", i, d.Name)
		}
		names[d.Name] = struct{}{}
		// device ids derive from the serial number
		if _, ok := serials[d.SerialNumber]; ok {
			return fmt.Errorf("device #%d: duplicated sn %q", i, d.SerialNumber)
		}
		serials[d.SerialNumber] = struct{}{}
	}

	if c.SolaxCloud.MinRefreshIntervalSeconds < MIN_REFRESH_INTERVAL_SECONDS {
		return fmt.Errorf("config param solaxcloud.min_refresh_interval_seconds should be >= %d", MIN_REFRESH_INTERVAL_SECONDS)
	}
	if c.Monitor.UseCron() {
		if _, err := quartz.NewCronTrigger(c.Monitor.PublishCron); err != nil {
			return fmt.Errorf("config param monitor.publish_cron is not a valid cron expression: %w", err)
		}
	} else if c.Monitor.PublishIntervalMillis < MIN_PUBLISH_INTERVAL_MILLIS {
		return fmt.Errorf("config param monitor.publish_interval_millis should be >= %d", MIN_PUBLISH_INTERVAL_MILLIS)
	}

	baseTopic, err := CheckMQTTTopic(c.MQTT.BaseTopic)
	if err != nil {
		return errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	c.MQTT.BaseTopic = baseTopic

	hadBaseTopic, err := CheckMQTTTopic(c.MQTT.HADiscoveryTopic)
	if err != nil {
		return errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	c.MQTT.HADiscoveryTopic = hadBaseTopic

	return nil
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
