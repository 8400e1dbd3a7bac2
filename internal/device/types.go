package device

// Role identifies which side of the matrix an endpoint sits on.
type Role string

// Role constants.
const (
	// RoleEncoder is a source endpoint (transmitter).
	RoleEncoder Role = "encoder"

	// RoleDecoder is a sink endpoint (receiver).
	RoleDecoder Role = "decoder"
)

// Valid reports whether the role is a recognised value.
func (r Role) Valid() bool {
	return r == RoleEncoder || r == RoleDecoder
}

// Device describes a single encoder or decoder endpoint as reported by the
// matrix controller's descriptor query.
//
// TrueName is the fixed hardware identifier assigned at manufacture; Alias is
// the user-facing name and may change. All lookups key on TrueName.
type Device struct {
	TrueName        string `json:"true_name"`
	Alias           string `json:"alias"`
	Role            Role   `json:"role"`
	Online          bool   `json:"online"`
	IP              string `json:"ip"`
	MAC             string `json:"mac"`
	FirmwareVersion string `json:"firmware_version,omitempty"`
}

// DisplayName returns the name entities should present for the device.
// Falls back through alias, IP, and hardware name.
func (d Device) DisplayName() string {
	switch {
	case d.Alias != "":
		return d.Alias
	case d.IP != "":
		return d.IP
	default:
		return d.TrueName
	}
}

// Status holds the transient signal attributes of one endpoint.
//
// Values mirror the raw controller fields as strings/booleans; the coordinator
// does not interpret them beyond passing them to entity collaborators.
type Status struct {
	// VideoInputActive reports whether the endpoint sees an active input
	// signal (HDMI-in for encoders).
	VideoInputActive bool `json:"video_input_active"`

	// VideoOutputActive reports whether the endpoint is driving an active
	// output signal (HDMI-out for decoders).
	VideoOutputActive bool `json:"video_output_active"`

	Resolution  string `json:"resolution,omitempty"`
	FrameRate   string `json:"frame_rate,omitempty"`
	AudioFormat string `json:"audio_format,omitempty"`

	// HDCPStatus is the link-protection mode as reported by the device.
	HDCPStatus string `json:"hdcp_status,omitempty"`
}

// StatusResult is one entry of a batched status fetch. The controller reports
// per-device failures individually, so a batch call can partially succeed.
type StatusResult struct {
	TrueName string
	Status   Status
	Err      error
}

// Assignment maps a decoder to its currently routed encoder.
// An empty Encoder means the decoder is disconnected from all sources.
type Assignment struct {
	Decoder string `json:"decoder"`
	Encoder string `json:"encoder,omitempty"`
}

// PowerState is the requested state for a display attached to a decoder.
type PowerState string

// PowerState constants.
const (
	PowerOn  PowerState = "on"
	PowerOff PowerState = "off"
)

// Valid reports whether the power state is a recognised value.
func (p PowerState) Valid() bool {
	return p == PowerOn || p == PowerOff
}
