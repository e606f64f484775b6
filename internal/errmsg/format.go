// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/llehouerou/wavepost/internal/decoder"
	"github.com/llehouerou/wavepost/internal/device"
)

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Playback operations
	OpPlaybackLoad   Op = "load track"
	OpPlaybackDecode Op = "decode track"
	OpPlaybackSeek   Op = "seek"

	// Device operations
	OpDeviceOutput Op = "play audio"

	// Preferences
	OpPreferenceSave Op = "save preferences"

	// Commands
	OpCommandParse Op = "parse command"

	// Initialization
	OpInitialize Op = "initialize player"

	// Offline tools
	OpInspect Op = "inspect file"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}

// Kind names the error class of err for notifications: one of the decoder
// or device kinds, or "Internal" for anything else.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, decoder.ErrUnsupportedFormat),
		errors.Is(err, decoder.ErrCorruptStream),
		errors.Is(err, decoder.ErrIOFailure),
		errors.Is(err, decoder.ErrSeekOutOfRange):
		return string(decoder.Kind(err))
	case errors.Is(err, device.ErrDeviceUnavailable),
		errors.Is(err, device.ErrDeviceDisconnected),
		errors.Is(err, device.ErrConfigurationRejected):
		return string(device.Kind(err))
	default:
		return "Internal"
	}
}
