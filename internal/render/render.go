// Package render decodes a track offline and writes it as a 16-bit PCM WAV
// file at a chosen output format, using the same decode and resample path
// as playback.
package render

import (
	"context"
	"math"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/llehouerou/wavepost/internal/decoder"
	"github.com/llehouerou/wavepost/internal/resample"
)

const bitDepth = 16

// Options selects the output format. Zero values keep the source's.
type Options struct {
	SampleRate int
	Channels   int
}

// Result describes a finished render.
type Result struct {
	SampleRate int
	Channels   int
	Frames     int64
	Bytes      int64
}

// Duration returns the rendered length.
func (r Result) Duration() time.Duration {
	if r.SampleRate == 0 {
		return 0
	}
	return time.Duration(r.Frames) * time.Second / time.Duration(r.SampleRate)
}

// File renders in to out. A partially written out is removed on failure.
func File(ctx context.Context, in, out string, opts Options) (Result, error) {
	dec, err := decoder.Open(in)
	if err != nil {
		return Result{}, err
	}
	defer dec.Close()

	src := dec.Format()
	res := Result{
		SampleRate: src.SampleRate,
		Channels:   src.Channels,
	}
	if opts.SampleRate > 0 {
		res.SampleRate = opts.SampleRate
	}
	if opts.Channels > 0 {
		res.Channels = min(opts.Channels, 2)
	}

	f, err := os.Create(out)
	if err != nil {
		return Result{}, errors.Wrap(err, "create output")
	}
	w := &writer{
		enc: wav.NewEncoder(f, res.SampleRate, bitDepth, res.Channels, 1),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: res.Channels, SampleRate: res.SampleRate},
			SourceBitDepth: bitDepth,
		},
		channels: res.Channels,
	}

	err = pump(ctx, dec, resample.New(src.SampleRate, src.Channels, res.SampleRate, res.Channels), w)
	if cerr := w.enc.Close(); err == nil && cerr != nil {
		err = errors.Wrap(cerr, "finish wav")
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = errors.Wrap(cerr, "close output")
	}
	if err != nil {
		_ = os.Remove(out)
		return Result{}, err
	}

	res.Frames = w.frames
	if info, err := os.Stat(out); err == nil {
		res.Bytes = info.Size()
	}
	return res, nil
}

func pump(ctx context.Context, dec *decoder.Decoder, rs *resample.Resampler, w *writer) error {
	for {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "render cancelled")
		}
		block, err := dec.Next()
		if err != nil {
			return err
		}
		if block == nil {
			return w.write(rs.Flush())
		}
		if err := w.write(rs.Process(block.Samples)); err != nil {
			return err
		}
	}
}

type writer struct {
	enc      *wav.Encoder
	buf      *audio.IntBuffer
	channels int
	frames   int64
}

func (w *writer) write(samples []float32) error {
	if len(samples) == 0 {
		return nil
	}
	data := w.buf.Data[:0]
	for _, s := range samples {
		data = append(data, toPCM16(s))
	}
	w.buf.Data = data
	if err := w.enc.Write(w.buf); err != nil {
		return errors.Wrap(err, "write wav")
	}
	w.frames += int64(len(samples) / w.channels)
	return nil
}

func toPCM16(s float32) int {
	v := math.Round(float64(s) * math.MaxInt16)
	return int(max(min(v, math.MaxInt16), math.MinInt16))
}
