// Package decoder wraps the codec libraries behind one block-oriented API.
//
// A Decoder owns its source file from Open until Close. Blocks are
// interleaved float32 samples at the source rate, mono or stereo, numbered
// with a monotonically increasing sequence.
package decoder

import (
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/vorbis"
)

// BlockFrames is the maximum number of frames in a decoded block.
const BlockFrames = 1024

// Format describes the decoded stream.
type Format struct {
	SampleRate int
	Channels   int
	Codec      string
}

// Block is a batch of decoded frames. It belongs to whoever received it
// from Next.
type Block struct {
	Samples    []float32 // interleaved
	SampleRate int
	Channels   int
	Seq        uint64
}

// Frames returns the number of frames in the block.
func (b *Block) Frames() int {
	if b.Channels == 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Decoder produces blocks from one track.
type Decoder struct {
	location string
	file     *os.File
	stream   beep.StreamSeekCloser
	format   beep.Format
	codec    codec
	meta     Metadata
	buf      [][2]float64
	seq      uint64
	closed   bool
}

// Open prepares location for decoding. Locations containing "://" are
// remote and rejected as unsupported.
func Open(location string) (*Decoder, error) {
	if strings.Contains(location, "://") {
		return nil, unsupported("remote location %q", location)
	}

	f, err := os.Open(location)
	if err != nil {
		return nil, ioFailure(err, "open track")
	}

	c := codecFromExt(location)
	if c == codecUnknown {
		c, err = sniff(f)
		if err != nil {
			f.Close()
			return nil, ioFailure(err, "read header")
		}
		if c == codecUnknown {
			f.Close()
			return nil, unsupported("unrecognised format: %s", location)
		}
	}

	meta := readMetadata(f, location)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, ioFailure(err, "rewind track")
	}

	stream, format, err := openStream(c, f)
	if err != nil {
		f.Close()
		if Kind(err) == KindCorruptStream && !errors.Is(err, ErrCorruptStream) {
			err = corrupt(err, c.String())
		}
		return nil, err
	}

	return &Decoder{
		location: location,
		file:     f,
		stream:   stream,
		format:   format,
		codec:    c,
		meta:     meta,
		buf:      make([][2]float64, BlockFrames),
	}, nil
}

func openStream(c codec, f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
	switch c {
	case codecMP3:
		return decodeMP3(f)
	case codecFLAC:
		if err := skipID3v2(f); err != nil {
			return nil, beep.Format{}, ioFailure(err, "skip id3v2")
		}
		return flac.Decode(f)
	case codecVorbis:
		return vorbis.Decode(f)
	case codecWAV:
		return decodeWAV(f)
	}
	return nil, beep.Format{}, unsupported("codec %s", c)
}

// Location returns the track location the decoder was opened with.
func (d *Decoder) Location() string { return d.location }

// Format returns the source sample rate and channel count.
func (d *Decoder) Format() Format {
	return Format{
		SampleRate: int(d.format.SampleRate),
		Channels:   d.channels(),
		Codec:      d.codec.String(),
	}
}

// Metadata returns the tags read at open.
func (d *Decoder) Metadata() Metadata { return d.meta }

func (d *Decoder) channels() int {
	return min(max(d.format.NumChannels, 1), 2)
}

// Next returns the next block, or nil at end of stream.
func (d *Decoder) Next() (*Block, error) {
	if d.closed {
		return nil, ioFailure(fs.ErrClosed, "next block")
	}

	var n int
	var ok bool
	for range 8 {
		n, ok = d.stream.Stream(d.buf)
		if n > 0 || !ok {
			break
		}
	}
	if n == 0 {
		if err := d.stream.Err(); err != nil {
			return nil, classify(err, "decode block")
		}
		return nil, nil
	}

	ch := d.channels()
	samples := make([]float32, n*ch)
	for i, frame := range d.buf[:n] {
		for c := range ch {
			samples[i*ch+c] = float32(frame[c])
		}
	}

	d.seq++
	return &Block{
		Samples:    samples,
		SampleRate: int(d.format.SampleRate),
		Channels:   ch,
		Seq:        d.seq,
	}, nil
}

// Duration returns the stream length when the codec reports one.
func (d *Decoder) Duration() (time.Duration, bool) {
	n := d.stream.Len()
	if n <= 0 {
		return 0, false
	}
	return d.format.SampleRate.D(n), true
}

// Position returns the position of the next frame Next will return.
func (d *Decoder) Position() time.Duration {
	return d.format.SampleRate.D(d.stream.Position())
}

// Seek moves to pos. Targets before zero or past the duration fail with
// ErrSeekOutOfRange.
func (d *Decoder) Seek(pos time.Duration) error {
	if d.closed {
		return ioFailure(fs.ErrClosed, "seek")
	}
	dur, known := d.Duration()
	if pos < 0 || (known && pos > dur) {
		return errors.Mark(errors.Newf("seek to %v (duration %v)", pos, dur), ErrSeekOutOfRange)
	}

	p := d.format.SampleRate.N(pos)
	if known {
		p = min(p, d.stream.Len())
	}
	if err := d.stream.Seek(p); err != nil {
		return classify(err, "seek")
	}
	return nil
}

// Close releases the stream and its file. It is safe to call more than once.
func (d *Decoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	err := d.stream.Close()
	if ferr := d.file.Close(); err == nil && !errors.Is(ferr, fs.ErrClosed) {
		err = ferr
	}
	if err != nil {
		return ioFailure(err, "close track")
	}
	return nil
}

func classify(err error, msg string) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) || errors.Is(err, fs.ErrClosed) {
		return ioFailure(err, msg)
	}
	return corrupt(err, msg)
}
