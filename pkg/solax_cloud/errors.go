package solax_cloud

import "fmt"

// UpstreamError is returned when the API answered but reported success=false.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("solax cloud: upstream error: %s", e.Message)
}

// TransportError covers connection failures, timeouts, unexpected HTTP
// statuses and bodies that cannot be decoded.
type TransportError struct {
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("solax cloud: transport error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("solax cloud: transport error: %s", e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
