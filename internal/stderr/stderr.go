//go:build !windows

// Package stderr captures output that C libraries (ALSA, the oto backend)
// write directly to file descriptor 2, bypassing Go's os.Stderr. Captured
// lines are forwarded to the logger instead of interleaving with it.
package stderr

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Messages receives stderr lines captured from C libraries.
var Messages = make(chan string, 100)

var (
	origStderr int
	original   *os.File
	pipeRead   *os.File
	pipeWrite  *os.File
	started    bool
)

// Start begins capturing stderr output.
// Must be called early in main(), before the audio device is opened.
// The program can continue without capture if it fails.
func Start() error {
	if started {
		return nil
	}

	r, w, err := os.Pipe()
	if err != nil {
		return errors.Wrap(err, "create stderr pipe")
	}

	origStderr, err = syscall.Dup(int(os.Stderr.Fd()))
	if err != nil {
		r.Close()
		w.Close()
		return errors.Wrap(err, "dup stderr")
	}

	// Redirect fd 2 to the pipe's write end
	err = syscall.Dup2(int(w.Fd()), int(os.Stderr.Fd()))
	if err != nil {
		syscall.Close(origStderr)
		r.Close()
		w.Close()
		return errors.Wrap(err, "redirect stderr")
	}

	pipeRead = r
	pipeWrite = w
	original = os.NewFile(uintptr(origStderr), "stderr")
	started = true

	go scan(pipeRead, Messages)

	return nil
}

func scan(r io.Reader, out chan<- string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case out <- line:
		default:
			// Channel full, drop message to avoid blocking
		}
	}
}

// Original returns the stderr that was in place before Start. The console
// logger writes here so that its own output is not captured.
func Original() io.Writer {
	if started {
		return original
	}
	return os.Stderr
}

// Forward logs captured lines at debug level until ctx ends or Stop is
// called.
func Forward(ctx context.Context, log zerolog.Logger) {
	log = log.With().Str("component", "stderr").Logger()
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-Messages:
			if !ok {
				return
			}
			log.Debug().Msg(line)
		}
	}
}

// Stop restores the original stderr. Should be called on program exit.
func Stop() {
	if !started {
		return
	}

	_ = syscall.Dup2(origStderr, int(os.Stderr.Fd()))
	_ = original.Close()

	pipeWrite.Close()
	pipeRead.Close()

	close(Messages)
	started = false
}
