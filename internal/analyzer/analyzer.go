// Package analyzer turns recently played samples into visualization data:
// a log-band magnitude spectrum and an amplitude envelope.
package analyzer

import (
	"math"
	"math/cmplx"

	"github.com/madelynnblue/go-dsp/fft"
	"github.com/madelynnblue/go-dsp/window"
)

const (
	// Bins is the length of both halves of a Frame.
	Bins = 24
	// FFTSize is the number of samples transformed per frame.
	FFTSize = 1024

	minHz   = 20.0
	maxHz   = 20000.0
	floorDB = -60.0
)

// Frame is one tick of visualization data. Values are in [0,1].
type Frame struct {
	Spectrum  [Bins]float32
	Amplitude [Bins]float32
}

// hann is shared by every Analyze call and never written after init.
var hann = window.Hann(FFTSize)

// WindowSize returns the number of recent samples Analyze reads at
// sampleRate.
func WindowSize(sampleRate int) int {
	return max(FFTSize, sampleRate/4)
}

// Analyze computes a frame from mono samples, oldest first. Empty input
// yields a zero frame.
func Analyze(samples []float32, sampleRate int) Frame {
	var f Frame
	if len(samples) == 0 || sampleRate <= 0 {
		return f
	}
	spectrum(samples, sampleRate, &f.Spectrum)
	amplitude(samples, sampleRate, &f.Amplitude)
	return f
}

// spectrum fills out with the peak magnitude of each log-spaced band between
// 20 Hz and the lower of 20 kHz and Nyquist, on a 60 dB scale where a
// full-scale sine reads 1.
func spectrum(samples []float32, sampleRate int, out *[Bins]float32) {
	buf := make([]float64, FFTSize)
	tail := samples[max(len(samples)-FFTSize, 0):]
	for i, v := range tail {
		buf[i] = float64(v) * hann[i]
	}
	bins := fft.FFTReal(buf)

	// A full-scale sine peaks at N/4 after the Hann window's 0.5 gain.
	ref := float64(FFTSize) / 4
	binHz := float64(sampleRate) / FFTSize
	half := FFTSize / 2
	hi := min(maxHz, float64(sampleRate)/2)
	ratio := math.Pow(hi/minHz, 1.0/Bins)

	edge := minHz
	for b := range Bins {
		next := edge * ratio
		lo := max(int(edge/binHz), 1)
		top := min(max(int(next/binHz), lo), half-1)
		var peak float64
		for i := lo; i <= top; i++ {
			peak = max(peak, cmplx.Abs(bins[i]))
		}
		edge = next

		if peak <= 0 {
			continue
		}
		db := 20 * math.Log10(peak/ref)
		out[b] = float32(min(max((db-floorDB)/-floorDB, 0), 1))
	}
}

// amplitude splits the last quarter second into equal bins, oldest first,
// each holding twice its mean absolute sample.
func amplitude(samples []float32, sampleRate int, out *[Bins]float32) {
	n := min(len(samples), max(sampleRate/4, Bins))
	tail := samples[len(samples)-n:]
	for b := range Bins {
		seg := tail[b*n/Bins : (b+1)*n/Bins]
		if len(seg) == 0 {
			continue
		}
		var sum float64
		for _, v := range seg {
			sum += math.Abs(float64(v))
		}
		out[b] = float32(min(1, 2*sum/float64(len(seg))))
	}
}

// Analyzer smooths successive frames with a fast attack and a slow decay.
// It is not safe for concurrent use.
type Analyzer struct {
	sampleRate int
	prev       Frame
	scratch    []float32
}

// New returns an analyzer for mono samples at sampleRate.
func New(sampleRate int) *Analyzer {
	return &Analyzer{sampleRate: sampleRate}
}

// Source supplies the recently played samples.
type Source interface {
	Snapshot(dst []float32, n int) []float32
}

// Update analyzes the latest samples from src and returns the smoothed
// frame.
func (a *Analyzer) Update(src Source) Frame {
	a.scratch = src.Snapshot(a.scratch, WindowSize(a.sampleRate))
	return a.smooth(Analyze(a.scratch, a.sampleRate))
}

// Decay fades the previous frame towards zero, for ticks without audio.
func (a *Analyzer) Decay() Frame {
	return a.smooth(Frame{})
}

// Reset forgets the smoothing history.
func (a *Analyzer) Reset() {
	a.prev = Frame{}
}

func (a *Analyzer) smooth(f Frame) Frame {
	for i := range Bins {
		f.Spectrum[i] = follow(a.prev.Spectrum[i], f.Spectrum[i])
		f.Amplitude[i] = follow(a.prev.Amplitude[i], f.Amplitude[i])
	}
	a.prev = f
	return f
}

func follow(prev, cur float32) float32 {
	if cur > prev {
		return cur*0.6 + prev*0.4
	}
	return cur*0.25 + prev*0.75
}
