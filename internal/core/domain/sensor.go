package domain

import (
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE       = "bridge"
	SENSOR_ID_POLL_STATE         = "poll_state"
	SENSOR_ID_LAST_ERROR         = "last_error"
	SENSOR_ID_UPLOAD_TIME        = "upload_time"
	SENSOR_ID_INVERTER_STATUS    = "inverter_status_text"
	STATE_CLASS_MEASUREMENT      = "measurement"
	STATE_CLASS_TOTAL_INCREASING = "total_increasing"
	DEVICE_CLASS_BATTERY         = "battery"
	DEVICE_CLASS_ENERGY          = "energy"
	DEVICE_CLASS_POWER           = "power"
	DEVICE_CLASS_CONNECTIVITY    = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC      = "diagnostic"
	SENSOR_TYPE_SENSOR           = "sensor"
	SENSOR_TYPE_BINARY           = "binary_sensor"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("solaxcloud_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "SolaxCloud2MQTT",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("SolaxCloud2MQTT %s", md5HashShort(baseTopic)),
	}
}

func InverterDevice(device SolaxDevice) Device {
	return Device{
		Id:           device.Id,
		Manufacturer: "SolaX Power",
		Model:        "SolaX Cloud inverter",
		Name:         device.Name,
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {
	return []GenericSensor{
		{
			Device:         bridgeDevice,
			Id:             SENSOR_ID_BRIDGE_STATE,
			SensorType:     SENSOR_TYPE_BINARY,
			Name:           "Connection state",
			DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
			EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
			UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
		},
	}
}

// InverterSensors lists one sensor per metric descriptor plus the poller
// diagnostics. Only the first sensor carries the full device description.
func InverterSensors(inverterDevice Device, device SolaxDevice) []GenericSensor {

	var sensors []GenericSensor

	for _, d := range metricDescriptors {
		id := MetricSensorId(device.Id, d.Key)
		sensor := GenericSensor{
			Device:            inverterDevice,
			Id:                id,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              MetricName(device.Name, d),
			StateClass:        d.StateClass,
			DeviceClass:       d.DeviceClass,
			UnitOfMeasurement: d.Unit,
			Icon:              d.DisplayHint,
			UniqueId:          uniqueId(device.Id, id),
		}
		if d.Unit != "" {
			precision := d.Decimals
			sensor.DisplayPrecision = &precision
		}
		if d.Diagnostic {
			sensor.EntityCategory = ENTITY_CLASS_DIAGNOSTIC
			sensor.EnabledByDefault = optionalBool(false)
		}
		sensors = append(sensors, sensor)
	}

	// Inverter status as text
	sensors = append(sensors, diagnosticTextSensor(device, SENSOR_ID_INVERTER_STATUS, "Inverter status text"))
	// Last upload time reported by the cloud
	sensors = append(sensors, diagnosticTextSensor(device, SENSOR_ID_UPLOAD_TIME, "Upload time"))
	// Poller state: empty, fresh, stale
	sensors = append(sensors, diagnosticTextSensor(device, SENSOR_ID_POLL_STATE, "Poll state"))
	// Last fetch diagnostic
	sensors = append(sensors, diagnosticTextSensor(device, SENSOR_ID_LAST_ERROR, "Last error"))

	for i := range sensors {
		if i > 0 {
			sensors[i].Device = IdDevice(inverterDevice)
		}
	}
	return sensors
}

func DeviceSensorId(deviceId, sensorId string) string {
	return deviceId + "_" + sensorId
}

func diagnosticTextSensor(device SolaxDevice, sensorId string, name string) GenericSensor {
	id := DeviceSensorId(device.Id, sensorId)
	return GenericSensor{
		Id:             id,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           fmt.Sprintf("%s %s", device.Name, name),
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		Icon:           ICON_INFORMATION,
		UniqueId:       uniqueId(device.Id, id),
	}
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}
