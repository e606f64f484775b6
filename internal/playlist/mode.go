package playlist

import "github.com/cockroachdb/errors"

// ErrUnknownMode is returned when parsing an unknown mode name.
var ErrUnknownMode = errors.New("unknown playlist mode")

// Mode decides which track follows the current one.
type Mode int

const (
	// Normal plays through the list once and stops after the last track.
	Normal Mode = iota
	// RepeatOne replays the current track.
	RepeatOne
	// RepeatAll wraps to the first track after the last.
	RepeatAll
	// Shuffle picks a random track, avoiding recently played ones.
	Shuffle
)

// Modes lists every mode in cycle order.
var Modes = []Mode{Normal, Shuffle, RepeatOne, RepeatAll}

// String returns the mode name used on the wire.
func (m Mode) String() string {
	switch m {
	case Normal:
		return "Normal"
	case RepeatOne:
		return "RepeatOne"
	case RepeatAll:
		return "RepeatAll"
	case Shuffle:
		return "Shuffle"
	default:
		return "Unknown"
	}
}

// Next returns the mode after m in cycle order.
func (m Mode) Next() Mode {
	for i, mode := range Modes {
		if mode == m {
			return Modes[(i+1)%len(Modes)]
		}
	}
	return Normal
}

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if m.String() == s {
			return m, nil
		}
	}
	return Normal, errors.Wrapf(ErrUnknownMode, "%q", s)
}

// Valid reports whether m is one of the defined modes.
func (m Mode) Valid() bool {
	return m >= Normal && m <= Shuffle
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, errors.Wrapf(ErrUnknownMode, "%d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	mode, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}
