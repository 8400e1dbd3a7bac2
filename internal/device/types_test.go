package device

import "testing"

func TestRoleValid(t *testing.T) {
	tests := []struct {
		name string
		role Role
		want bool
	}{
		{"encoder", RoleEncoder, true},
		{"decoder", RoleDecoder, true},
		{"empty", Role(""), false},
		{"unknown", Role("controller"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.role.Valid(); got != tt.want {
				t.Errorf("Role(%q).Valid() = %v, want %v", tt.role, got, tt.want)
			}
		})
	}
}

func TestPowerStateValid(t *testing.T) {
	tests := []struct {
		name  string
		state PowerState
		want  bool
	}{
		{"on", PowerOn, true},
		{"off", PowerOff, true},
		{"empty", PowerState(""), false},
		{"standby", PowerState("standby"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Valid(); got != tt.want {
				t.Errorf("PowerState(%q).Valid() = %v, want %v", tt.state, got, tt.want)
			}
		})
	}
}

func TestDeviceDisplayName(t *testing.T) {
	tests := []struct {
		name   string
		device Device
		want   string
	}{
		{
			name:   "alias preferred",
			device: Device{TrueName: "NHD-400-TX-a1b2", Alias: "Kitchen", IP: "10.0.0.5"},
			want:   "Kitchen",
		},
		{
			name:   "ip fallback",
			device: Device{TrueName: "NHD-400-TX-a1b2", IP: "10.0.0.5"},
			want:   "10.0.0.5",
		},
		{
			name:   "true name last resort",
			device: Device{TrueName: "NHD-400-TX-a1b2"},
			want:   "NHD-400-TX-a1b2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.device.DisplayName(); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEventKindValid(t *testing.T) {
	valid := []EventKind{
		EventDeviceOnline, EventDeviceOffline,
		EventVideoFound, EventVideoLost, EventSinkPowerChanged,
	}
	for _, k := range valid {
		if !k.Valid() {
			t.Errorf("EventKind(%q).Valid() = false, want true", k)
		}
	}

	if EventKind("reboot").Valid() {
		t.Error(`EventKind("reboot").Valid() = true, want false`)
	}
}
