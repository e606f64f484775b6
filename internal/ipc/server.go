// Package ipc exposes the player to UI shells over HTTP.
//
// Commands are posted as tagged JSON and published onto the bus. Queries
// read the controller's snapshots and never wait on the control loop.
package ipc

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/llehouerou/wavepost/internal/message"
	"github.com/llehouerou/wavepost/internal/playback"
)

const (
	maxCommandBytes = 64 << 10
	shutdownTimeout = 5 * time.Second
)

// Server routes IPC requests.
type Server struct {
	bus    *message.Bus
	player playback.Service
	log    zerolog.Logger
	mux    *http.ServeMux
}

// New creates a server publishing onto b and reading from player.
func New(b *message.Bus, player playback.Service, log zerolog.Logger) *Server {
	s := &Server{
		bus:    b,
		player: player,
		log:    log.With().Str("component", "ipc").Logger(),
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /ipc/command", s.handleCommand)
	s.mux.HandleFunc("GET /ipc/playing-data", s.handlePlayingData)
	s.mux.HandleFunc("GET /ipc/waveform-data", s.handleWaveformData)
	s.mux.HandleFunc("GET /ipc/events", s.handleEvents)
	return s
}

// Handler returns the routes wrapped with request logging. HTTP/2 without
// TLS is accepted for shells that multiplex polling and events.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	})(h)
	h = hlog.NewHandler(s.log)(h)
	return h2c.NewHandler(h, &http2.Server{})
}

// ListenAndServe serves on addr until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx ends, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("ipc listening")
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "serve ipc")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.log.Warn().Err(err).Msg("ipc shutdown")
	}
	return nil
}
