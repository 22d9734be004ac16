package domain

import "strings"

// MetricDescriptor describes one value of the realtime snapshot and how it
// is presented to the host platform.
type MetricDescriptor struct {
	Key         string // field name in the SolaX Cloud result
	DisplayName string // suffix appended to the device name
	Unit        string
	DisplayHint string // icon
	DeviceClass string
	StateClass  string
	Decimals    uint
	Diagnostic  bool
}

const (
	METRIC_AC_POWER        = "acpower"
	METRIC_YIELD_TODAY     = "yieldtoday"
	METRIC_YIELD_TOTAL     = "yieldtotal"
	METRIC_FEEDIN_POWER    = "feedinpower"
	METRIC_FEEDIN_ENERGY   = "feedinenergy"
	METRIC_CONSUME_ENERGY  = "consumeenergy"
	METRIC_FEEDIN_POWER_M2 = "feedinpowerM2"
	METRIC_SOC             = "soc"
	METRIC_EPS_POWER_R     = "peps1"
	METRIC_EPS_POWER_S     = "peps2"
	METRIC_EPS_POWER_T     = "peps3"
	METRIC_BATTERY_POWER   = "batPower"
	METRIC_MPPT1_POWER     = "powerdc1"
	METRIC_MPPT2_POWER     = "powerdc2"
	METRIC_INVERTER_TYPE   = "inverterType"
	METRIC_INVERTER_STATUS = "inverterStatus"

	ATTRIBUTE_UPLOAD_TIME = "uploadTime"

	ICON_SOLAR_POWER        = "mdi:solar-power"
	ICON_TRANSMISSION_TOWER = "mdi:transmission-tower"
	ICON_BATTERY            = "mdi:battery"
	ICON_INFORMATION        = "mdi:information-outline"

	UNIT_WATT         = "W"
	UNIT_KILOWATTHOUR = "kWh"
	UNIT_PERCENT      = "%"
)

func power(key, name, icon string) MetricDescriptor {
	return MetricDescriptor{
		Key:         key,
		DisplayName: name,
		Unit:        UNIT_WATT,
		DisplayHint: icon,
		DeviceClass: DEVICE_CLASS_POWER,
		StateClass:  STATE_CLASS_MEASUREMENT,
		Decimals:    1,
	}
}

func energy(key, name, icon string) MetricDescriptor {
	return MetricDescriptor{
		Key:         key,
		DisplayName: name,
		Unit:        UNIT_KILOWATTHOUR,
		DisplayHint: icon,
		DeviceClass: DEVICE_CLASS_ENERGY,
		StateClass:  STATE_CLASS_TOTAL_INCREASING,
		Decimals:    2,
	}
}

var metricDescriptors = []MetricDescriptor{
	power(METRIC_AC_POWER, "AC Power", ICON_SOLAR_POWER),
	energy(METRIC_YIELD_TODAY, "Daily yield", ICON_SOLAR_POWER),
	energy(METRIC_YIELD_TOTAL, "Total yield", ICON_SOLAR_POWER),
	power(METRIC_FEEDIN_POWER, "Grid power total", ICON_TRANSMISSION_TOWER),
	energy(METRIC_FEEDIN_ENERGY, "To grid yield", ICON_TRANSMISSION_TOWER),
	energy(METRIC_CONSUME_ENERGY, "From grid yield", ICON_TRANSMISSION_TOWER),
	power(METRIC_FEEDIN_POWER_M2, "Meter 2 AC power", ICON_SOLAR_POWER),
	{
		Key:         METRIC_SOC,
		DisplayName: "State of charge",
		Unit:        UNIT_PERCENT,
		DisplayHint: ICON_BATTERY,
		DeviceClass: DEVICE_CLASS_BATTERY,
		StateClass:  STATE_CLASS_MEASUREMENT,
		Decimals:    0,
	},
	power(METRIC_EPS_POWER_R, "EPS R", ICON_SOLAR_POWER),
	power(METRIC_EPS_POWER_S, "EPS S", ICON_SOLAR_POWER),
	power(METRIC_EPS_POWER_T, "EPS T", ICON_SOLAR_POWER),
	power(METRIC_BATTERY_POWER, "Battery power", ICON_BATTERY),
	power(METRIC_MPPT1_POWER, "MPPT 1", ICON_SOLAR_POWER),
	power(METRIC_MPPT2_POWER, "MPPT 2", ICON_SOLAR_POWER),
	{
		Key:         METRIC_INVERTER_TYPE,
		DisplayName: "Inverter type",
		DisplayHint: ICON_INFORMATION,
		Diagnostic:  true,
	},
	{
		Key:         METRIC_INVERTER_STATUS,
		DisplayName: "Inverter status",
		DisplayHint: ICON_INFORMATION,
		Diagnostic:  true,
	},
}

// MetricDescriptors returns the static descriptor table. The returned slice
// is a copy.
func MetricDescriptors() []MetricDescriptor {
	out := make([]MetricDescriptor, len(metricDescriptors))
	copy(out, metricDescriptors)
	return out
}

func MetricDescriptorByKey(key string) (MetricDescriptor, bool) {
	for _, d := range metricDescriptors {
		if d.Key == key {
			return d, true
		}
	}
	return MetricDescriptor{}, false
}

// MetricName is the human readable entity name, "<device name> <suffix>".
func MetricName(deviceName string, descriptor MetricDescriptor) string {
	return deviceName + " " + descriptor.DisplayName
}

// MetricSensorId is the per device entity id used in MQTT topics.
func MetricSensorId(deviceId string, key string) string {
	return deviceId + "_" + strings.ToLower(key)
}

// PollState is the freshness of a device snapshot.
type PollState int

const (
	PollStateEmpty PollState = iota
	PollStateFresh
	PollStateStale
)

func (s PollState) String() string {
	switch s {
	case PollStateEmpty:
		return "empty"
	case PollStateFresh:
		return "fresh"
	case PollStateStale:
		return "stale"
	default:
		return "unknown"
	}
}
