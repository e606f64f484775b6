// Package resample converts decoded blocks to the output device's fixed
// sample rate and channel count.
//
// Rate conversion runs through beep.Resample, fed by a push streamer that
// queues the remixed blocks. beep tracks the output position against the
// source as a ratio, so long runs keep their rate. The resampler only pulls
// whole source chunks until Flush marks the end of stream.
//
// Channel layout conversion is lossy:
//   - mono to N channels duplicates the single channel
//   - N channels to mono averages all channels
//   - otherwise destination channel c takes source channel min(c, N-1),
//     dropping extra source channels
package resample

import (
	"github.com/gopxl/beep/v2"
)

// quality is the interpolation half-window handed to beep.Resample.
const quality = 4

// chunk is the number of source frames beep.Resampler reads per pull. A
// short read marks the end of the source.
const chunk = 512

// Resampler converts interleaved float32 frames between formats.
// Slices returned by Process and Flush are reused by the next call.
type Resampler struct {
	srcRate, dstRate int
	srcCh, dstCh     int
	ratio            float64

	feed     *feed
	rs       *beep.Resampler
	produced int

	mixed  []float32
	frames [][2]float64
	out    []float32
}

// New returns a resampler configured for the given conversion.
func New(srcRate, srcChannels, dstRate, dstChannels int) *Resampler {
	r := &Resampler{}
	r.Configure(srcRate, srcChannels, dstRate, dstChannels)
	return r
}

// Configure re-arms the resampler for a new conversion and clears its
// history. Output is limited to two channels.
func (r *Resampler) Configure(srcRate, srcChannels, dstRate, dstChannels int) {
	r.srcRate = max(srcRate, 1)
	r.dstRate = max(dstRate, 1)
	r.srcCh = max(srcChannels, 1)
	r.dstCh = min(max(dstChannels, 1), 2)
	r.ratio = float64(r.srcRate) / float64(r.dstRate)
	r.Reset()
}

// Passthrough reports whether Process returns its input unchanged.
func (r *Resampler) Passthrough() bool {
	return r.srcRate == r.dstRate && r.srcCh == r.dstCh
}

// Reset drops the queued input and interpolation history, as needed after
// a seek.
func (r *Resampler) Reset() {
	r.produced = 0
	if r.srcRate == r.dstRate {
		r.feed, r.rs = nil, nil
		return
	}
	r.feed = &feed{}
	r.rs = beep.Resample(quality, beep.SampleRate(r.srcRate), beep.SampleRate(r.dstRate), r.feed)
}

// Process converts one block of interleaved source frames. Trailing partial
// frames are ignored. Output lags input by up to one chunk plus the
// interpolation window; Flush releases the remainder.
func (r *Resampler) Process(in []float32) []float32 {
	if r.Passthrough() {
		return in
	}
	mixed := r.remix(in)
	if r.rs == nil {
		return mixed
	}
	r.feed.push(mixed, r.dstCh)
	r.out = r.stream(r.out[:0], r.ready())
	return r.out
}

// Flush emits the frames still held back at end of stream and resets.
// After Flush, N input frames have produced ceil(N*dst/src) frames.
func (r *Resampler) Flush() []float32 {
	out := r.out[:0]
	if r.rs == nil || r.feed.fed == 0 {
		r.out = out
		r.Reset()
		return out
	}
	r.feed.done = true
	for {
		before := len(out)
		out = r.stream(out, chunk)
		if len(out) == before {
			break
		}
	}
	r.out = out
	r.Reset()
	return out
}

// ready returns how many output frames beep can produce without pulling a
// partial chunk. Output frame p needs source frames up to
// int(p*ratio)+quality, computed the way beep does.
func (r *Resampler) ready() int {
	avail := r.feed.fed / chunk * chunk
	needs := func(p int) int { return int(float64(p)*r.ratio) + quality + 1 }

	p := max(int(float64(avail-quality)/r.ratio), 0)
	for p > 0 && needs(p-1) > avail {
		p--
	}
	for needs(p) <= avail {
		p++
	}
	return max(p-r.produced, 0)
}

// stream pulls up to n output frames from beep and appends them to dst.
func (r *Resampler) stream(dst []float32, n int) []float32 {
	if n == 0 {
		return dst
	}
	if cap(r.frames) < n {
		r.frames = make([][2]float64, n)
	}
	frames := r.frames[:n]
	got, _ := r.rs.Stream(frames)
	r.produced += got
	for _, f := range frames[:got] {
		if r.dstCh == 1 {
			dst = append(dst, float32(f[0]))
			continue
		}
		dst = append(dst, float32(f[0]), float32(f[1]))
	}
	return dst
}

func (r *Resampler) remix(in []float32) []float32 {
	if r.srcCh == r.dstCh {
		return in[:len(in)/r.srcCh*r.srcCh]
	}
	frames := len(in) / r.srcCh
	if cap(r.mixed) < frames*r.dstCh {
		r.mixed = make([]float32, frames*r.dstCh)
	}
	mixed := r.mixed[:frames*r.dstCh]

	if r.dstCh == 1 {
		inv := 1 / float32(r.srcCh)
		for f := range frames {
			var sum float32
			for _, s := range in[f*r.srcCh : (f+1)*r.srcCh] {
				sum += s
			}
			mixed[f] = sum * inv
		}
		return mixed
	}

	for f := range frames {
		src := in[f*r.srcCh : (f+1)*r.srcCh]
		dst := mixed[f*r.dstCh : (f+1)*r.dstCh]
		for c := range dst {
			dst[c] = src[min(c, r.srcCh-1)]
		}
	}
	return mixed
}

// feed is the push side of the beep pipeline. It holds remixed frames until
// the resampler pulls them.
type feed struct {
	queue [][2]float64
	head  int
	fed   int
	done  bool
}

func (f *feed) push(mixed []float32, channels int) {
	if f.head > 0 {
		n := copy(f.queue, f.queue[f.head:])
		f.queue = f.queue[:n]
		f.head = 0
	}
	frames := len(mixed) / channels
	for i := range frames {
		if channels == 1 {
			v := float64(mixed[i])
			f.queue = append(f.queue, [2]float64{v, v})
			continue
		}
		f.queue = append(f.queue, [2]float64{float64(mixed[2*i]), float64(mixed[2*i+1])})
	}
	f.fed += frames
}

// Stream implements beep.Streamer.
func (f *feed) Stream(samples [][2]float64) (int, bool) {
	n := copy(samples, f.queue[f.head:])
	f.head += n
	return n, n > 0
}

// Err implements beep.Streamer.
func (f *feed) Err() error { return nil }
