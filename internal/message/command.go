package message

import (
	"encoding/json"
	"math"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"

	"github.com/llehouerou/wavepost/internal/bus"
	"github.com/llehouerou/wavepost/internal/playlist"
)

// Command kinds as they appear on the wire.
const (
	KindPlayCurrent              = "PlayCurrent"
	KindPauseCurrent             = "PauseCurrent"
	KindStopCurrent              = "StopCurrent"
	KindSeekCurrent              = "SeekCurrent"
	KindLoadLocations            = "LoadLocations"
	KindMediaControlBack         = "MediaControlBack"
	KindMediaControlForward      = "MediaControlForward"
	KindMediaControlSkipBack     = "MediaControlSkipBack"
	KindMediaControlSkipForward  = "MediaControlSkipForward"
	KindMediaControlPlaylistMode = "MediaControlPlaylistMode"
	KindSetVolume                = "SetVolume"
	KindQuit                     = "Quit"
	KindDragWindowStart          = "DragWindowStart"
)

// aliases maps the webview's media-control names onto canonical kinds.
var aliases = map[string]string{
	"MediaControlPlay":   KindPlayCurrent,
	"MediaControlPause":  KindPauseCurrent,
	"MediaControlStop":   KindStopCurrent,
	"MediaControlSeek":   KindSeekCurrent,
	"MediaControlVolume": KindSetVolume,
}

// Errors returned by ParseCommand.
var (
	ErrUnknownKind    = errors.New("unknown command kind")
	ErrInvalidPayload = errors.New("invalid command payload")
)

type (
	// PlayCurrent starts or resumes the current track.
	PlayCurrent struct{}
	// PauseCurrent pauses playback.
	PauseCurrent struct{}
	// StopCurrent stops playback and releases the track.
	StopCurrent struct{}
	// SeekCurrent moves to an absolute position in seconds.
	SeekCurrent struct {
		Position float64 `mapstructure:"position" json:"position"`
	}
	// LoadLocations replaces the playlist and starts its first track.
	LoadLocations struct {
		Locations []string `mapstructure:"locations" json:"locations"`
	}
	// MediaControlBack seeks backwards by one step.
	MediaControlBack struct{}
	// MediaControlForward seeks forwards by one step.
	MediaControlForward struct{}
	// MediaControlSkipBack restarts the track or goes to the previous one.
	MediaControlSkipBack struct{}
	// MediaControlSkipForward goes to the next track.
	MediaControlSkipForward struct{}
	// MediaControlPlaylistMode changes the playlist mode.
	MediaControlPlaylistMode struct {
		Mode playlist.Mode `mapstructure:"mode" json:"mode"`
	}
	// SetVolume sets the linear output gain in [0,1].
	SetVolume struct {
		Volume float64 `mapstructure:"volume" json:"volume"`
	}
	// Quit ends the controller.
	Quit struct{}
	// DragWindowStart is a UI-only gesture; the controller ignores it.
	DragWindowStart struct{}
)

// maxSeekSeconds bounds positions that fit a time.Duration.
const maxSeekSeconds = float64(math.MaxInt64 / int64(time.Second))

// SeekDuration returns the target position. Positions beyond the
// time.Duration range saturate; negative ones become zero.
func (c SeekCurrent) SeekDuration() time.Duration {
	switch {
	case !(c.Position < maxSeekSeconds):
		return math.MaxInt64
	case c.Position <= 0:
		return 0
	}
	return time.Duration(c.Position * float64(time.Second))
}

func (PlayCurrent) event()              {}
func (PauseCurrent) event()             {}
func (StopCurrent) event()              {}
func (SeekCurrent) event()              {}
func (LoadLocations) event()            {}
func (MediaControlBack) event()         {}
func (MediaControlForward) event()      {}
func (MediaControlSkipBack) event()     {}
func (MediaControlSkipForward) event()  {}
func (MediaControlPlaylistMode) event() {}
func (SetVolume) event()                {}
func (Quit) event()                     {}
func (DragWindowStart) event()          {}

func (PlayCurrent) command()              {}
func (PauseCurrent) command()             {}
func (StopCurrent) command()              {}
func (SeekCurrent) command()              {}
func (LoadLocations) command()            {}
func (MediaControlBack) command()         {}
func (MediaControlForward) command()      {}
func (MediaControlSkipBack) command()     {}
func (MediaControlSkipForward) command()  {}
func (MediaControlPlaylistMode) command() {}
func (SetVolume) command()                {}
func (Quit) command()                     {}
func (DragWindowStart) command()          {}

func (PlayCurrent) Channel() bus.Channel              { return bus.Commands }
func (PauseCurrent) Channel() bus.Channel             { return bus.Commands }
func (StopCurrent) Channel() bus.Channel              { return bus.Commands }
func (SeekCurrent) Channel() bus.Channel              { return bus.Commands }
func (LoadLocations) Channel() bus.Channel            { return bus.Commands }
func (MediaControlBack) Channel() bus.Channel         { return bus.Commands }
func (MediaControlForward) Channel() bus.Channel      { return bus.Commands }
func (MediaControlSkipBack) Channel() bus.Channel     { return bus.Commands }
func (MediaControlSkipForward) Channel() bus.Channel  { return bus.Commands }
func (MediaControlPlaylistMode) Channel() bus.Channel { return bus.Commands }
func (SetVolume) Channel() bus.Channel                { return bus.Commands }
func (Quit) Channel() bus.Channel                     { return bus.Commands }
func (DragWindowStart) Channel() bus.Channel          { return bus.Commands }

// KindOf returns the wire kind of c.
func KindOf(c Command) string {
	switch c.(type) {
	case PlayCurrent:
		return KindPlayCurrent
	case PauseCurrent:
		return KindPauseCurrent
	case StopCurrent:
		return KindStopCurrent
	case SeekCurrent:
		return KindSeekCurrent
	case LoadLocations:
		return KindLoadLocations
	case MediaControlBack:
		return KindMediaControlBack
	case MediaControlForward:
		return KindMediaControlForward
	case MediaControlSkipBack:
		return KindMediaControlSkipBack
	case MediaControlSkipForward:
		return KindMediaControlSkipForward
	case MediaControlPlaylistMode:
		return KindMediaControlPlaylistMode
	case SetVolume:
		return KindSetVolume
	case Quit:
		return KindQuit
	case DragWindowStart:
		return KindDragWindowStart
	default:
		return ""
	}
}

// ParseCommand decodes a tagged command. Unknown kinds fail with
// ErrUnknownKind, malformed or out-of-range payloads with
// ErrInvalidPayload.
func ParseCommand(data []byte) (Command, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode command"), ErrInvalidPayload)
	}
	kind, _ := raw["kind"].(string)
	if canonical, ok := aliases[kind]; ok {
		kind = canonical
	}
	delete(raw, "kind")

	switch kind {
	case KindPlayCurrent:
		return PlayCurrent{}, nil
	case KindPauseCurrent:
		return PauseCurrent{}, nil
	case KindStopCurrent:
		return StopCurrent{}, nil
	case KindSeekCurrent:
		var c SeekCurrent
		if err := decodePayload(raw, &c); err != nil {
			return nil, err
		}
		if c.Position < 0 {
			return nil, errors.Wrapf(ErrInvalidPayload, "negative position %v", c.Position)
		}
		if math.IsNaN(c.Position) || math.IsInf(c.Position, 0) {
			return nil, errors.Wrapf(ErrInvalidPayload, "position %v", c.Position)
		}
		return c, nil
	case KindLoadLocations:
		var c LoadLocations
		if err := decodePayload(raw, &c); err != nil {
			return nil, err
		}
		return c, nil
	case KindMediaControlBack:
		return MediaControlBack{}, nil
	case KindMediaControlForward:
		return MediaControlForward{}, nil
	case KindMediaControlSkipBack:
		return MediaControlSkipBack{}, nil
	case KindMediaControlSkipForward:
		return MediaControlSkipForward{}, nil
	case KindMediaControlPlaylistMode:
		var c MediaControlPlaylistMode
		if err := decodePayload(raw, &c); err != nil {
			return nil, err
		}
		if !c.Mode.Valid() {
			return nil, errors.Wrapf(ErrInvalidPayload, "mode %d", int(c.Mode))
		}
		return c, nil
	case KindSetVolume:
		var c SetVolume
		if err := decodePayload(raw, &c); err != nil {
			return nil, err
		}
		if c.Volume < 0 || c.Volume > 1 {
			return nil, errors.Wrapf(ErrInvalidPayload, "volume %v outside [0,1]", c.Volume)
		}
		return c, nil
	case KindQuit:
		return Quit{}, nil
	case KindDragWindowStart:
		return DragWindowStart{}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownKind, "%q", kind)
	}
}

// decodePayload fills out from the generic JSON map. Mode names are
// decoded through playlist.Mode's text unmarshaling.
func decodePayload(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.TextUnmarshallerHookFunc(),
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return errors.Wrap(err, "payload decoder")
	}
	if err := dec.Decode(raw); err != nil {
		return errors.Mark(errors.Wrap(err, "decode payload"), ErrInvalidPayload)
	}
	return nil
}

// MarshalCommand encodes c in the tagged wire form accepted by
// ParseCommand.
func MarshalCommand(c Command) ([]byte, error) {
	kind := KindOf(c)
	if kind == "" {
		return nil, errors.Wrapf(ErrUnknownKind, "%T", c)
	}
	fields := map[string]any{}
	if err := mapstructure.Decode(c, &fields); err != nil {
		return nil, errors.Wrap(err, "encode payload")
	}
	fields["kind"] = kind
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, errors.Wrap(err, "encode command")
	}
	return b, nil
}
