// Command wavepost is a headless music player. It plays local files and
// serves its state to UI shells over HTTP and MPRIS.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/llehouerou/wavepost/internal/bus"
	"github.com/llehouerou/wavepost/internal/config"
	"github.com/llehouerou/wavepost/internal/device"
	"github.com/llehouerou/wavepost/internal/engine"
	"github.com/llehouerou/wavepost/internal/errmsg"
	"github.com/llehouerou/wavepost/internal/ipc"
	"github.com/llehouerou/wavepost/internal/logger"
	"github.com/llehouerou/wavepost/internal/message"
	"github.com/llehouerou/wavepost/internal/mpris"
	"github.com/llehouerou/wavepost/internal/notify"
	"github.com/llehouerou/wavepost/internal/playback"
	"github.com/llehouerou/wavepost/internal/inspect"
	"github.com/llehouerou/wavepost/internal/render"
	"github.com/llehouerou/wavepost/internal/state"
	"github.com/llehouerou/wavepost/internal/stderr"
)

// tapSize is the number of played mono samples kept for the analyzer.
const tapSize = 1 << 15

var (
	app        = kingpin.New("wavepost", "Headless music player")
	configPath = app.Flag("config", "Path to config file").Short('c').String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stderr)").String()

	playCmd       = app.Command("play", "Play files, directories or URLs (default)").Default()
	playLocations = playCmd.Arg("locations", "Files or directories to queue").Strings()

	renderCmd      = app.Command("render", "Decode a file and write it as WAV")
	renderIn       = renderCmd.Arg("in", "Input audio file").Required().ExistingFile()
	renderOut      = renderCmd.Arg("out", "Output WAV file").Required().String()
	renderRate     = renderCmd.Flag("rate", "Output sample rate (default: source rate)").Int()
	renderChannels = renderCmd.Flag("channels", "Output channels, 1 or 2 (default: source channels)").Int()

	inspectCmd   = app.Command("inspect", "Print format, duration and tags of audio files")
	inspectFiles = inspectCmd.Arg("files", "Audio files").Required().Strings()

	configCmd = app.Command("config", "Print the effective configuration as YAML")
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, errmsg.Format(errmsg.OpInitialize, err))
		return 1
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logfile != "" {
		cfg.Log.Output = "file"
		cfg.Log.File = *logfile
	}

	if command == playCmd.FullCommand() {
		// Capture before the device opens so ALSA noise is routed to the log.
		if err := stderr.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "stderr capture disabled: %v\n", err)
		}
		defer stderr.Stop()
	}

	log, closer, err := logger.Init(logger.Config{
		Output: cfg.Log.Output,
		Level:  cfg.Log.Level,
		File:   cfg.Log.File,
		Stderr: stderr.Original(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer closer.Close()

	switch command {
	case configCmd.FullCommand():
		err = printConfig(cfg)
	case inspectCmd.FullCommand():
		err = inspect.Print(os.Stdout, *inspectFiles)
	case renderCmd.FullCommand():
		err = renderFile(log)
	default:
		err = play(log, cfg, *playLocations)
	}
	if err != nil {
		zlog.Error().Err(err).Str("command", command).Msg("command failed")
		return 1
	}
	return 0
}

func printConfig(cfg *config.Config) error {
	out, err := cfg.YAML()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}

func renderFile(log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := render.Options{SampleRate: *renderRate, Channels: *renderChannels}
	if opts.Channels > 2 {
		return errors.Newf("unsupported channel count %d", opts.Channels)
	}
	res, err := render.File(ctx, *renderIn, *renderOut, opts)
	if err != nil {
		return errors.Wrapf(err, "render %s", *renderIn)
	}
	log.Info().
		Str("out", *renderOut).
		Int("rate", res.SampleRate).
		Int("channels", res.Channels).
		Str("frames", humanize.Comma(res.Frames)).
		Str("size", humanize.IBytes(uint64(res.Bytes))).
		Dur("duration", res.Duration()).
		Msg("rendered")
	return nil
}

// play runs the daemon until a signal or a Quit command.
func play(log zerolog.Logger, cfg *config.Config, locations []string) error {
	store, err := state.Open(cfg.State.Path, log)
	if err != nil {
		return errors.Wrap(err, "open preferences")
	}
	defer store.Close()

	format := device.Format{SampleRate: cfg.Audio.SampleRate, Channels: cfg.Audio.Channels}
	out := device.NewOto(format, cfg.DeviceBuffer())
	eng := engine.New(
		out,
		engine.Config{Buffer: cfg.Buffer(), TapSize: tapSize},
		log,
	)
	if err := eng.Start(); err != nil {
		return errors.Wrap(err, "start audio output")
	}
	defer eng.Close()

	b := bus.New[message.Event](bus.WithQueueSize(cfg.Bus.QueueSize), bus.WithLogger(log))
	defer b.Close()

	ctrl := playback.New(eng, b, store, playback.Config{
		SeekStep:          cfg.SeekStep(),
		SkipBackThreshold: cfg.SkipBackThreshold(),
		Tick:              cfg.AnalyzerTick(),
		Volume:            cfg.Playback.Volume,
		Mode:              cfg.PlaylistMode(),
	}, log, playback.WithReopen(func() (device.Backend, error) {
		return out, nil
	}))

	if cfg.MPRIS.Enabled {
		adapter, err := mpris.New(b, ctrl, log)
		switch {
		case errors.Is(err, mpris.ErrUnsupported):
			log.Debug().Msg("mpris not available on this platform")
		case err != nil:
			log.Warn().Err(err).Msg("mpris disabled")
		default:
			defer adapter.Close()
		}
	}

	var watcher *notify.Watcher
	if cfg.Notify.Enabled {
		opts := cfg.NotifyOptions()
		watcher = notify.NewWatcher(b, notify.New(opts, log), opts, log)
	}

	if len(locations) > 0 {
		b.Publish(message.LoadLocations{Locations: locations})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Quit ends the controller, which ends everything else.
		defer cancel()
		return ctrl.Run(ctx)
	})

	if cfg.IPC.Addr != "" {
		srv := ipc.New(b, ctrl, log)
		g.Go(func() error {
			return srv.ListenAndServe(ctx, cfg.IPC.Addr)
		})
	}

	if watcher != nil {
		g.Go(func() error { return watcher.Run(ctx) })
	}

	g.Go(func() error {
		stderr.Forward(ctx, log)
		return nil
	})

	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			log.Info().Str("signal", sig.String()).Msg("shutting down")
			cancel()
		case <-ctx.Done():
		}
		return nil
	})

	log.Info().
		Int("rate", format.SampleRate).
		Int("channels", format.Channels).
		Str("ipc", cfg.IPC.Addr).
		Int("queued", len(locations)).
		Msg("wavepost started")

	return g.Wait()
}
