package device

import (
	"encoding/binary"
	"io"
	"math"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ebitengine/oto/v3"
)

// Oto plays through ebitengine/oto. oto allows a single context per
// process, so Start after Close resumes the suspended context with a new
// player instead of opening another one.
type Oto struct {
	format Format
	buffer time.Duration

	mu     sync.Mutex
	ctx    *oto.Context
	player *oto.Player
}

// NewOto returns an unopened oto backend. buffer is the device-side queue
// length requested from the driver.
func NewOto(format Format, buffer time.Duration) *Oto {
	return &Oto{format: format, buffer: buffer}
}

// Format implements Backend.
func (o *Oto) Format() Format { return o.format }

// Start implements Backend.
func (o *Oto) Start(src Source) error {
	if err := o.format.Validate(); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player != nil {
		return errors.Mark(errors.New("oto: already started"), ErrConfigurationRejected)
	}
	maxFrames := max(o.format.SampleRate*int(o.buffer)/int(time.Second), 1024)
	if o.ctx != nil {
		if err := o.ctx.Resume(); err != nil {
			return errors.Mark(errors.Wrap(err, "oto: resume"), ErrDeviceUnavailable)
		}
		o.player = o.ctx.NewPlayer(NewReader(src, o.format.Channels, maxFrames))
		o.player.Play()
		return nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   o.format.SampleRate,
		ChannelCount: o.format.Channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   o.buffer,
	})
	if err != nil {
		return errors.Mark(errors.Wrap(err, "oto: new context"), ErrDeviceUnavailable)
	}
	<-ready

	o.ctx = ctx
	o.player = ctx.NewPlayer(NewReader(src, o.format.Channels, maxFrames))
	o.player.Play()
	return nil
}

// Err implements Backend.
func (o *Oto) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctx == nil {
		return nil
	}
	if err := o.ctx.Err(); err != nil {
		return errors.Mark(errors.Wrap(err, "oto"), ErrDeviceDisconnected)
	}
	return nil
}

// Close implements Backend.
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player == nil {
		return nil
	}
	err := o.player.Close()
	o.player = nil
	if err := o.ctx.Suspend(); err != nil {
		return errors.Wrap(err, "oto: suspend")
	}
	return err
}

// reader adapts a Source to the byte stream oto pulls, as little-endian
// float32. Its scratch buffer is allocated once; larger reads are served
// in several fills.
type reader struct {
	src      Source
	channels int
	scratch  []float32
}

// NewReader returns an io.Reader producing float32LE frames from src.
// Each Read fills at most maxFrames frames per call to src.Fill.
func NewReader(src Source, channels, maxFrames int) io.Reader {
	return &reader{
		src:      src,
		channels: channels,
		scratch:  make([]float32, max(maxFrames, 1)*channels),
	}
}

func (r *reader) Read(p []byte) (int, error) {
	frameBytes := 4 * r.channels
	total := len(p) / frameBytes * frameBytes
	for off := 0; off < total; {
		frames := min(len(r.scratch)/r.channels, (total-off)/frameBytes)
		buf := r.scratch[:frames*r.channels]
		r.src.Fill(buf)
		for i, v := range buf {
			binary.LittleEndian.PutUint32(p[off+i*4:], math.Float32bits(v))
		}
		off += frames * frameBytes
	}
	return total, nil
}
