// Package playback runs the playback state machine.
//
// A Controller owns the live Session. Its Run loop serializes commands from
// the bus, replies from the decode worker, end-of-stream signals from the
// device and analyzer ticks. Other goroutines observe it through immutable
// Snapshots and bus notifications.
package playback

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/llehouerou/wavepost/internal/analyzer"
	"github.com/llehouerou/wavepost/internal/bus"
	"github.com/llehouerou/wavepost/internal/decoder"
	"github.com/llehouerou/wavepost/internal/device"
	"github.com/llehouerou/wavepost/internal/engine"
	"github.com/llehouerou/wavepost/internal/errmsg"
	"github.com/llehouerou/wavepost/internal/message"
	"github.com/llehouerou/wavepost/internal/playlist"
	"github.com/llehouerou/wavepost/internal/state"
)

// Config tunes the controller.
type Config struct {
	// SeekStep is the distance of MediaControlBack and MediaControlForward.
	SeekStep time.Duration
	// SkipBackThreshold is the position past which skip-back restarts the
	// current track instead of going to the previous one.
	SkipBackThreshold time.Duration
	// Tick is the analyzer and health-check interval.
	Tick time.Duration
	// Volume and Mode apply when no preference was saved.
	Volume float64
	Mode   playlist.Mode
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		SeekStep:          10 * time.Second,
		SkipBackThreshold: 7 * time.Second,
		Tick:              time.Second / 30,
		Volume:            1,
		Mode:              playlist.Normal,
	}
}

// Controller is the playback state machine.
type Controller struct {
	engine   *engine.Engine
	bus      *message.Bus
	store    state.Interface
	queue    *playlist.Queue
	analyzer *analyzer.Analyzer
	cfg      Config
	log      zerolog.Logger
	reopen   func() (device.Backend, error)

	handle bus.Handle
	sub    *bus.Subscription[message.Event]

	session     Session
	pendingSeek *time.Duration
	failures    int
	waving      bool

	snapshot atomic.Pointer[Snapshot]
	waveform atomic.Pointer[analyzer.Frame]
}

// Option configures a Controller.
type Option func(*Controller)

// WithQueue replaces the controller's playlist queue.
func WithQueue(q *playlist.Queue) Option {
	return func(c *Controller) { c.queue = q }
}

// WithReopen sets how a failed output device is replaced. The controller
// calls open before the next load while the engine reports a device error.
func WithReopen(open func() (device.Backend, error)) Option {
	return func(c *Controller) { c.reopen = open }
}

// New creates a controller driving eng. It subscribes to commands at once,
// so commands published before Run are not lost. Saved preferences in store
// override the volume and mode in cfg.
func New(
	eng *engine.Engine,
	b *message.Bus,
	store state.Interface,
	cfg Config,
	log zerolog.Logger,
	opts ...Option,
) *Controller {
	c := &Controller{
		engine:   eng,
		bus:      b,
		store:    store,
		queue:    playlist.NewQueue(),
		analyzer: analyzer.New(eng.Format().SampleRate),
		cfg:      cfg,
		log:      log.With().Str("component", "playback").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.Tick <= 0 {
		c.cfg.Tick = DefaultConfig().Tick
	}

	volume, mode := cfg.Volume, cfg.Mode
	if v, ok, err := store.GetVolume(); err != nil {
		c.log.Warn().Err(err).Msg("read saved volume")
	} else if ok {
		volume = v
	}
	if m, ok, err := store.GetPlaylistMode(); err != nil {
		c.log.Warn().Err(err).Msg("read saved playlist mode")
	} else if ok {
		mode = m
	}
	volume = clampVolume(volume)
	eng.SetVolume(volume)
	c.queue.SetMode(mode)

	c.session = Session{
		State:  StateIdle,
		Index:  -1,
		Volume: volume,
		Mode:   mode,
	}
	c.waveform.Store(&analyzer.Frame{})
	c.refresh()

	c.handle, c.sub = b.Subscribe(bus.WithChannels(bus.Commands))
	return c
}

// Snapshot returns the latest session snapshot.
func (c *Controller) Snapshot() *Snapshot {
	return c.snapshot.Load()
}

// Waveform returns the latest analysis frame.
func (c *Controller) Waveform() analyzer.Frame {
	return *c.waveform.Load()
}

// Run processes events until ctx ends, the bus closes or a Quit command
// arrives. The session is released on return.
func (c *Controller) Run(ctx context.Context) error {
	defer c.release()

	ticker := time.NewTicker(c.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.sub.Done:
			return nil
		case ev := <-c.sub.C:
			cmd, ok := ev.(message.Command)
			if !ok {
				continue
			}
			if quit := c.dispatch(ctx, cmd); quit {
				c.log.Debug().Msg("quit requested")
				return nil
			}
		case r := <-c.engine.Replies():
			if r.SessionID() != c.engine.Session() {
				continue
			}
			c.handleReply(ctx, r)
		case <-c.engine.Drained():
			c.checkEnded(ctx)
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Controller) release() {
	c.engine.Stop()
	c.bus.Unsubscribe(c.handle)
	c.session.Track = nil
	c.session.Base = 0
	c.transition(StateIdle)
}

// dispatch applies one command. It returns true for Quit.
func (c *Controller) dispatch(ctx context.Context, cmd message.Command) bool {
	c.log.Debug().Str("command", message.KindOf(cmd)).Msg("command")

	switch cmd := cmd.(type) {
	case message.LoadLocations:
		c.loadLocations(ctx, cmd.Locations)
	case message.PlayCurrent:
		c.play(ctx)
	case message.PauseCurrent:
		c.pause()
	case message.StopCurrent:
		c.stop()
	case message.SeekCurrent:
		c.seekTo(cmd.SeekDuration())
	case message.MediaControlBack:
		c.seekTo(c.position() - c.cfg.SeekStep)
	case message.MediaControlForward:
		c.seekTo(c.position() + c.cfg.SeekStep)
	case message.MediaControlSkipForward:
		c.skipForward(ctx)
	case message.MediaControlSkipBack:
		c.skipBack(ctx)
	case message.MediaControlPlaylistMode:
		c.setMode(cmd.Mode)
	case message.SetVolume:
		c.setVolume(cmd.Volume)
	case message.Quit:
		return true
	case message.DragWindowStart:
		// handled by the UI shell
	}
	return false
}

func (c *Controller) loadLocations(ctx context.Context, locations []string) {
	tracks := playlist.Collect(locations)
	if len(tracks) == 0 {
		return
	}
	first := c.queue.Replace(tracks...)
	c.failures = 0
	c.load(ctx, first)
}

func (c *Controller) play(ctx context.Context) {
	switch c.session.State {
	case StatePaused:
		c.engine.SetPaused(false)
		c.transition(StatePlaying)
	case StateIdle, StateStopped, StateError:
		t := c.queue.Current()
		if t == nil {
			return
		}
		c.failures = 0
		c.load(ctx, t)
	case StatePlaying, StateLoading:
	}
}

func (c *Controller) pause() {
	if c.session.State != StatePlaying {
		return
	}
	c.engine.SetPaused(true)
	c.transition(StatePaused)
}

func (c *Controller) stop() {
	switch c.session.State {
	case StatePlaying, StatePaused, StateLoading:
	default:
		return
	}
	c.engine.Stop()
	c.pendingSeek = nil
	c.session.Base = 0
	c.analyzer.Reset()
	c.transition(StateStopped)
}

// seekTo moves to pos, clamped to the track. Seeks during Loading are
// applied once playback starts; the latest wins.
func (c *Controller) seekTo(pos time.Duration) {
	pos = max(pos, 0)
	if c.session.HasDuration {
		pos = min(pos, c.session.Duration)
	}
	switch c.session.State {
	case StateLoading:
		c.pendingSeek = &pos
	case StatePlaying, StatePaused:
		c.engine.Seek(pos)
		c.session.Base = pos
		c.refresh()
	default:
		c.log.Debug().Stringer("state", c.session.State).Msg("seek ignored")
	}
}

func (c *Controller) skipForward(ctx context.Context) {
	next := c.queue.Skip()
	if next == nil {
		return
	}
	c.failures = 0
	c.load(ctx, next)
}

func (c *Controller) skipBack(ctx context.Context) {
	if c.session.State.IsActive() && c.position() > c.cfg.SkipBackThreshold {
		c.seekTo(0)
		return
	}
	prev := c.queue.Previous()
	if prev == nil {
		return
	}
	c.failures = 0
	c.load(ctx, prev)
}

func (c *Controller) setMode(m playlist.Mode) {
	c.queue.SetMode(m)
	c.session.Mode = m
	c.store.SavePlaylistMode(m)
	c.refresh()
	c.bus.Publish(message.ModeChanged{Mode: m})
}

func (c *Controller) setVolume(v float64) {
	v = clampVolume(v)
	c.engine.SetVolume(v)
	c.session.Volume = v
	c.store.SaveVolume(v)
	c.refresh()
	c.bus.Publish(message.VolumeChanged{Volume: v})
}

// load replaces the session with a fresh one for t and starts decoding.
func (c *Controller) load(ctx context.Context, t *playlist.Track) {
	if err := c.reopenDevice(); err != nil {
		c.deviceFailed(err)
		return
	}
	c.engine.Load(ctx, t.Location)
	c.analyzer.Reset()
	track := *t
	c.pendingSeek = nil
	c.session = Session{
		Track:  &track,
		Index:  c.queue.CurrentIndex(),
		State:  c.session.State,
		Volume: c.session.Volume,
		Mode:   c.session.Mode,
	}
	c.log.Info().Str("location", t.Location).Int("index", c.session.Index).Msg("loading track")
	c.transition(StateLoading)
	c.publishTrack()
}

func (c *Controller) handleReply(ctx context.Context, r engine.Reply) {
	switch r := r.(type) {
	case engine.Ready:
		if c.session.State != StateLoading {
			return
		}
		c.session.Duration = r.Duration
		c.session.HasDuration = r.HasDuration
		c.session.Metadata = r.Metadata
		c.engine.Attach()
		c.transition(StatePlaying)
		if pos := c.pendingSeek; pos != nil {
			c.pendingSeek = nil
			c.seekTo(*pos)
		}
	case engine.Seeked:
		if !c.engine.Install(r.Ring) {
			return
		}
		c.session.Base = r.Position
		c.refresh()
		c.bus.Publish(message.PositionChanged{PositionSecs: r.Position.Seconds()})
	case engine.Failed:
		c.fail(ctx, r)
	}
}

// fail moves to Error and, for mid-stream errors, on to the next playable
// track. Load errors wait for a new load.
func (c *Controller) fail(ctx context.Context, r engine.Failed) {
	op := errmsg.OpPlaybackDecode
	switch {
	case r.Load:
		op = errmsg.OpPlaybackLoad
	case errors.Is(r.Err, decoder.ErrSeekOutOfRange):
		op = errmsg.OpPlaybackSeek
	}
	c.engine.Stop()
	c.pendingSeek = nil
	c.failures++
	c.log.Error().Err(r.Err).Str("op", string(op)).Msg(errmsg.Format(op, r.Err))
	c.transition(StateError)
	c.publishError(op, r.Err)

	if r.Load || c.failures >= c.queue.Len() {
		return
	}
	if next := c.queue.Recover(); next != nil {
		c.load(ctx, next)
	}
}

// checkEnded advances the playlist once the attached ring has played out.
func (c *Controller) checkEnded(ctx context.Context) {
	if c.session.State != StatePlaying || !c.engine.Ended() {
		return
	}
	c.log.Debug().Msg("end of stream")
	c.failures = 0
	if next := c.queue.Advance(); next != nil {
		c.load(ctx, next)
		return
	}
	c.engine.Stop()
	c.queue.Rewind()
	c.session.Track = nil
	c.session.Base = 0
	c.session.Duration, c.session.HasDuration = 0, false
	c.transition(StateIdle)
}

func (c *Controller) tick(ctx context.Context) {
	if c.session.State.IsActive() {
		if err := c.engine.DeviceErr(); err != nil {
			c.deviceFailed(err)
			return
		}
	}
	c.checkEnded(ctx)
	c.analyze()
	c.refresh()
}

// reopenDevice swaps a fresh backend into the engine if the current one
// has failed and a reopen function is set.
func (c *Controller) reopenDevice() error {
	if c.reopen == nil || c.engine.DeviceErr() == nil {
		return nil
	}
	b, err := c.reopen()
	if err != nil {
		return errors.Wrap(err, "reopen output")
	}
	if err := c.engine.SetBackend(b); err != nil {
		return err
	}
	c.log.Info().Msg("output device reopened")
	return nil
}

// deviceFailed parks the session in Error with the engine paused. There is
// no advance; a new load, which first reopens the device, is the way out.
func (c *Controller) deviceFailed(err error) {
	c.engine.SetPaused(true)
	c.log.Error().Err(err).Msg(errmsg.Format(errmsg.OpDeviceOutput, err))
	c.transition(StateError)
	c.publishError(errmsg.OpDeviceOutput, err)
}

func (c *Controller) analyze() {
	var frame analyzer.Frame
	switch {
	case c.session.State == StatePlaying:
		frame = c.analyzer.Update(c.engine.Tap())
		c.waving = true
	case c.waving:
		frame = c.analyzer.Decay()
		c.waving = frame != analyzer.Frame{}
	default:
		return
	}
	c.waveform.Store(&frame)
	c.bus.Publish(message.WaveformUpdated{Frame: frame})
}

// position is the base position plus what the device has played since.
func (c *Controller) position() time.Duration {
	pos := c.session.Base
	if c.session.State.IsActive() {
		pos += c.engine.Played()
	}
	if c.session.HasDuration {
		pos = min(pos, c.session.Duration)
	}
	return pos
}

func (c *Controller) refresh() {
	c.snapshot.Store(c.session.snapshot(c.position(), c.engine.Underruns()))
}

func clampVolume(v float64) float64 {
	return min(max(v, 0), 1)
}
