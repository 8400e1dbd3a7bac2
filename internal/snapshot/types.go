package snapshot

import (
	"time"

	"github.com/nerrad567/avoip-core/internal/device"
)

// Section names one of the independently refreshable data categories.
type Section string

// Section constants. The string values double as persistence keys and as
// MQTT/WebSocket channel suffixes, so they must remain stable.
const (
	// SectionDevices holds endpoint descriptors.
	SectionDevices Section = "devices"

	// SectionDeviceStatus holds transient per-endpoint signal attributes.
	SectionDeviceStatus Section = "device_status"

	// SectionMatrix holds decoder → encoder routing assignments.
	SectionMatrix Section = "matrix_assignments"
)

// AllSections returns every section, in refresh order.
func AllSections() []Section {
	return []Section{SectionDevices, SectionDeviceStatus, SectionMatrix}
}

// Valid reports whether the section is a recognised value.
func (s Section) Valid() bool {
	switch s {
	case SectionDevices, SectionDeviceStatus, SectionMatrix:
		return true
	default:
		return false
	}
}

// Snapshot is the merged view of all sections at a point in time.
//
// Snapshots published by the Store are immutable: maps are never mutated
// after publication, so a Snapshot may be read without synchronisation for
// as long as the caller holds it. Keys are device true names throughout.
type Snapshot struct {
	Devices     map[string]device.Device `json:"devices"`
	Statuses    map[string]device.Status `json:"statuses"`
	Assignments map[string]string        `json:"assignments"`

	Versions  map[Section]uint64    `json:"versions"`
	UpdatedAt map[Section]time.Time `json:"updated_at"`
}

// Version returns the current version of a section (0 = never applied).
func (s *Snapshot) Version(sec Section) uint64 {
	return s.Versions[sec]
}

// Encoders returns the descriptor list of all encoder endpoints.
func (s *Snapshot) Encoders() []device.Device {
	return s.byRole(device.RoleEncoder)
}

// Decoders returns the descriptor list of all decoder endpoints.
func (s *Snapshot) Decoders() []device.Device {
	return s.byRole(device.RoleDecoder)
}

func (s *Snapshot) byRole(role device.Role) []device.Device {
	var out []device.Device
	for _, d := range s.Devices {
		if d.Role == role {
			out = append(out, d)
		}
	}
	return out
}

// AssignedEncoder returns the encoder routed to the named decoder, if any.
func (s *Snapshot) AssignedEncoder(decoder string) (string, bool) {
	enc, ok := s.Assignments[decoder]
	return enc, ok
}

// StatusData is the merged result of one device_status fetch cycle.
//
// Statuses holds the endpoints that answered. Unreachable lists endpoints
// whose individual queries failed; the store marks those offline in the
// devices section instead of failing the whole apply (partial-failure
// isolation).
type StatusData struct {
	Statuses    map[string]device.Status
	Unreachable []string
}
