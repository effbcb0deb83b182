package pool

import "encoding/json"

// TransportStatus is the status reported by the CAN transport
// together with a received frame.
type TransportStatus uint8

const (
	TransportUnknown TransportStatus = iota
	// TransportChanged is a frame whose payload changed since the last one.
	TransportChanged
	// TransportUnchanged is a frame equal to the last one.
	TransportUnchanged
	// TransportTimeout reports that the frame was not received in time.
	TransportTimeout
	// TransportRead is a frame delivered on explicit request.
	TransportRead
	// TransportSetup acknowledges a transport configuration.
	TransportSetup
	TransportError
)

func (ts TransportStatus) String() string {
	switch ts {
	case TransportUnknown:
		return "unknown"
	case TransportChanged:
		return "changed"
	case TransportUnchanged:
		return "unchanged"
	case TransportTimeout:
		return "timeout"
	case TransportRead:
		return "read"
	case TransportSetup:
		return "setup"
	case TransportError:
		return "error"
	default:
		return "invalid"
	}
}

func (ts TransportStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(ts.String())
}

// decodes reports whether frames with this status carry a payload to decode.
func (ts TransportStatus) decodes() bool {
	return ts == TransportChanged || ts == TransportRead
}

// Status is the state of a signal after the last update.
type Status uint8

const (
	// StatusUnset means no frame was decoded since creation or reset.
	StatusUnset Status = iota
	StatusUpdated
	StatusUnchanged
	StatusTimeout
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusUnset:
		return "unset"
	case StatusUpdated:
		return "updated"
	case StatusUnchanged:
		return "unchanged"
	case StatusTimeout:
		return "timeout"
	case StatusError:
		return "error"
	default:
		return "invalid"
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
