package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/berfenger/solaxcloud2mqtt/pkg/solax_cloud"
)

type Device struct {
	Id           string
	Name         string
	Version      string
	Model        string
	Manufacturer string
	ViaDevice    string
}

type GenericSensor struct {
	Device            Device
	Id                string
	SensorType        string
	Name              string
	UniqueId          string
	UnitOfMeasurement string
	StateClass        string // measurement, total_increasing (for acc energy)
	DeviceClass       string // power, energy, battery
	EntityCategory    string // diagnostic, config, nil
	EnabledByDefault  *bool
	Icon              string
	DisplayPrecision  *uint
}

// SolaxDevice is one configured inverter. Immutable after configuration.
type SolaxDevice struct {
	Id          string
	Name        string
	Credentials solax_cloud.Credentials
}

func NewSolaxDevice(name, apiKey, serialNumber string) SolaxDevice {
	return SolaxDevice{
		Id:   fmt.Sprintf("solax_%s", md5HashShort(serialNumber)),
		Name: name,
		Credentials: solax_cloud.Credentials{
			APIKey:       apiKey,
			SerialNumber: serialNumber,
		},
	}
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
