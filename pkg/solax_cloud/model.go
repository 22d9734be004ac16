package solax_cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

const (
	DEFAULT_ENDPOINT = "https://www.solaxcloud.com:9443/proxy/api/getRealtimeInfo.do"
	DEFAULT_TIMEOUT  = 10 * time.Second
)

// Credentials identify one monitored device on the SolaX Cloud.
type Credentials struct {
	APIKey       string
	SerialNumber string
}

// Snapshot is the result payload of one successful realtime request.
// Numeric fields are kept as values, string fields as attributes. A Snapshot
// is never modified after construction.
type Snapshot struct {
	values     map[string]float64
	attributes map[string]string
}

func NewSnapshot(values map[string]float64, attributes map[string]string) Snapshot {
	return Snapshot{
		values:     maps.Clone(values),
		attributes: maps.Clone(attributes),
	}
}

func (s Snapshot) Value(key string) (float64, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s Snapshot) Attribute(key string) (string, bool) {
	v, ok := s.attributes[key]
	return v, ok
}

// Values returns a copy of the numeric fields.
func (s Snapshot) Values() map[string]float64 {
	return maps.Clone(s.values)
}

// Attributes returns a copy of the string fields.
func (s Snapshot) Attributes() map[string]string {
	return maps.Clone(s.attributes)
}

func (s Snapshot) IsEmpty() bool {
	return len(s.values) == 0 && len(s.attributes) == 0
}

func (s Snapshot) Len() int {
	return len(s.values) + len(s.attributes)
}

// Fetcher performs exactly one round trip to the vendor API.
// Errors are either *UpstreamError or *TransportError.
type Fetcher interface {
	Fetch(ctx context.Context, creds Credentials) (Snapshot, error)
}

type FetcherInstrument struct {
	RecordTime func(serialNumber string, fetchTime time.Duration, err error)
}

// realtimeEnvelope is the documented response shape of getRealtimeInfo.do.
type realtimeEnvelope struct {
	Success   bool            `json:"success"`
	Exception json.RawMessage `json:"exception"`
	Result    map[string]any  `json:"result"`
}

// Inverter status codes (SolaX Cloud API, table 5)
const (
	InverterStatusWait           = 100
	InverterStatusCheck          = 101
	InverterStatusNormal         = 102
	InverterStatusFault          = 103
	InverterStatusPermanentFault = 104
	InverterStatusUpdate         = 105
	InverterStatusEPSCheck       = 106
	InverterStatusEPS            = 107
	InverterStatusSelfTest       = 108
	InverterStatusIdle           = 109
	InverterStatusStandby        = 110
)

const (
	InverterStatusWaitStr           = "Waiting"
	InverterStatusCheckStr          = "Checking"
	InverterStatusNormalStr         = "Normal"
	InverterStatusFaultStr          = "Fault"
	InverterStatusPermanentFaultStr = "Permanent fault"
	InverterStatusUpdateStr         = "Updating"
	InverterStatusEPSCheckStr       = "EPS check"
	InverterStatusEPSStr            = "EPS"
	InverterStatusSelfTestStr       = "Self test"
	InverterStatusIdleStr           = "Idle"
	InverterStatusStandbyStr        = "Standby"
	InverterStatusUnknown           = "Unknown"
)

func InverterStatusToString(status int) string {
	switch status {
	case InverterStatusWait:
		return InverterStatusWaitStr
	case InverterStatusCheck:
		return InverterStatusCheckStr
	case InverterStatusNormal:
		return InverterStatusNormalStr
	case InverterStatusFault:
		return InverterStatusFaultStr
	case InverterStatusPermanentFault:
		return InverterStatusPermanentFaultStr
	case InverterStatusUpdate:
		return InverterStatusUpdateStr
	case InverterStatusEPSCheck:
		return InverterStatusEPSCheckStr
	case InverterStatusEPS:
		return InverterStatusEPSStr
	case InverterStatusSelfTest:
		return InverterStatusSelfTestStr
	case InverterStatusIdle:
		return InverterStatusIdleStr
	case InverterStatusStandby:
		return InverterStatusStandbyStr
	default:
		return fmt.Sprintf("%s(%d)", InverterStatusUnknown, status)
	}
}
