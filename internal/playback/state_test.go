// internal/playback/state_test.go
package playback

import "testing"

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "Idle"},
		{StateLoading, "Loading"},
		{StatePlaying, "Playing"},
		{StatePaused, "Paused"},
		{StateStopped, "Stopped"},
		{StateError, "Error"},
		{State(99), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestState_IsActive(t *testing.T) {
	tests := []struct {
		state State
		want  bool
	}{
		{StateIdle, false},
		{StateLoading, false},
		{StatePlaying, true},
		{StatePaused, true},
		{StateStopped, false},
		{StateError, false},
	}
	for _, tt := range tests {
		if got := tt.state.IsActive(); got != tt.want {
			t.Errorf("%v.IsActive() = %v, want %v", tt.state, got, tt.want)
		}
	}
}
