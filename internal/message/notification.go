package message

import (
	"github.com/llehouerou/wavepost/internal/analyzer"
	"github.com/llehouerou/wavepost/internal/bus"
	"github.com/llehouerou/wavepost/internal/playlist"
)

// TrackInfo identifies a track in notifications.
type TrackInfo struct {
	ID       string `json:"id"`
	Location string `json:"location"`
	Title    string `json:"title,omitempty"`
	Artist   string `json:"artist,omitempty"`
	Album    string `json:"album,omitempty"`
}

type (
	// StateChanged is published on every transition.
	StateChanged struct {
		Previous string     `json:"previous"`
		Current  string     `json:"current"`
		Track    *TrackInfo `json:"track,omitempty"`
	}
	// TrackChanged is published when a track starts loading.
	TrackChanged struct {
		Track TrackInfo `json:"track"`
		Index int       `json:"index"`
	}
	// ModeChanged is published when the playlist mode changes.
	ModeChanged struct {
		Mode playlist.Mode `json:"mode"`
	}
	// VolumeChanged is published when the gain changes.
	VolumeChanged struct {
		Volume float64 `json:"volume"`
	}
	// PositionChanged is published after a seek lands.
	PositionChanged struct {
		PositionSecs float64 `json:"position_secs"`
	}
	// ErrorOccurred reports a recovered failure.
	ErrorOccurred struct {
		Op      string     `json:"op"`
		Kind    string     `json:"kind"`
		Track   *TrackInfo `json:"track,omitempty"`
		Message string     `json:"message"`
	}
	// WaveformUpdated carries the latest analysis frame. It travels on
	// the Frequent channel.
	WaveformUpdated struct {
		Frame analyzer.Frame `json:"frame"`
	}
)

func (StateChanged) event()    {}
func (TrackChanged) event()    {}
func (ModeChanged) event()     {}
func (VolumeChanged) event()   {}
func (PositionChanged) event() {}
func (ErrorOccurred) event()   {}
func (WaveformUpdated) event() {}

func (StateChanged) notification()    {}
func (TrackChanged) notification()    {}
func (ModeChanged) notification()     {}
func (VolumeChanged) notification()   {}
func (PositionChanged) notification() {}
func (ErrorOccurred) notification()   {}
func (WaveformUpdated) notification() {}

func (StateChanged) Channel() bus.Channel    { return bus.Notifications }
func (TrackChanged) Channel() bus.Channel    { return bus.Notifications }
func (ModeChanged) Channel() bus.Channel     { return bus.Notifications }
func (VolumeChanged) Channel() bus.Channel   { return bus.Notifications }
func (PositionChanged) Channel() bus.Channel { return bus.Notifications }
func (ErrorOccurred) Channel() bus.Channel   { return bus.Notifications }
func (WaveformUpdated) Channel() bus.Channel { return bus.Frequent }

// NameOf returns the type name of a notification, used as the SSE event
// name.
func NameOf(n Notification) string {
	switch n.(type) {
	case StateChanged:
		return "StateChanged"
	case TrackChanged:
		return "TrackChanged"
	case ModeChanged:
		return "ModeChanged"
	case VolumeChanged:
		return "VolumeChanged"
	case PositionChanged:
		return "PositionChanged"
	case ErrorOccurred:
		return "ErrorOccurred"
	case WaveformUpdated:
		return "WaveformUpdated"
	default:
		return ""
	}
}
