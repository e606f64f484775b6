//go:build windows

// Package stderr provides a no-op implementation for Windows.
// Windows audio libraries don't produce the same stderr noise as ALSA.
package stderr

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Messages is never written on Windows.
var Messages = make(chan string)

// Start is a no-op on Windows.
func Start() error {
	return nil
}

// Original returns os.Stderr.
func Original() io.Writer {
	return os.Stderr
}

// Forward waits for ctx to end.
func Forward(ctx context.Context, _ zerolog.Logger) {
	<-ctx.Done()
}

// Stop is a no-op on Windows.
func Stop() {}
