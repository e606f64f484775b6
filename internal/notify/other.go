//go:build !linux

package notify

import "github.com/rs/zerolog"

// New returns a Notifier that drops everything; desktop notifications are
// only wired to D-Bus on linux.
func New(_ Options, log zerolog.Logger) Notifier {
	log.Debug().Msg("desktop notifications unsupported on this platform")
	return discard{}
}
