// Package decodertest writes audio fixtures for tests.
package decodertest

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ToneHz is the frequency of generated fixtures.
const ToneHz = 440

// Tone returns frames of a half-scale sine as interleaved 16-bit values.
func Tone(frames, channels, rate int) []int {
	out := make([]int, frames*channels)
	for i := range frames {
		v := int(math.Round(16384 * math.Sin(2*math.Pi*ToneHz*float64(i)/float64(rate))))
		for c := range channels {
			out[i*channels+c] = v
		}
	}
	return out
}

// WAV writes a 16-bit PCM tone of the given length to dir/name and returns
// its path.
func WAV(t testing.TB, dir, name string, rate, channels int, seconds float64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer f.Close()

	frames := int(seconds * float64(rate))
	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           Tone(frames, channels, rate),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close fixture: %v", err)
	}
	return path
}

// IMABlockAlign is the block size used by IMAADPCM.
const IMABlockAlign = 256

// IMASamplesPerBlock is the number of frames in one mono IMA block.
const IMASamplesPerBlock = (IMABlockAlign-4)*2 + 1

// IMAADPCM writes a mono IMA ADPCM tone to dir/name and returns its path.
func IMAADPCM(t testing.TB, dir, name string, rate int, seconds float64) string {
	t.Helper()
	frames := int(seconds * float64(rate))
	pcm := Tone(frames, 1, rate)

	var data bytes.Buffer
	index := 0
	for start := 0; start < len(pcm); start += IMASamplesPerBlock {
		end := min(start+IMASamplesPerBlock, len(pcm))
		var block []byte
		block, index = encodeIMABlock(pcm[start:end], index)
		data.Write(block)
	}

	var fmtChunk bytes.Buffer
	le := func(v any) { _ = binary.Write(&fmtChunk, binary.LittleEndian, v) }
	le(uint16(0x0011))
	le(uint16(1))
	le(uint32(rate))
	le(uint32(rate * IMABlockAlign / IMASamplesPerBlock))
	le(uint16(IMABlockAlign))
	le(uint16(4))
	le(uint16(2))
	le(uint16(IMASamplesPerBlock))

	return writeADPCM(t, filepath.Join(dir, name), fmtChunk.Bytes(), frames, data.Bytes())
}

// MSBlockAlign is the block size used by MSADPCM.
const MSBlockAlign = 256

// MSSamplesPerBlock is the number of frames in one mono MS ADPCM block.
const MSSamplesPerBlock = (MSBlockAlign-7)*2 + 2

// msCoefs is the standard Microsoft ADPCM predictor table.
var msCoefs = [7][2]int{{256, 0}, {512, -256}, {0, 0}, {192, 64}, {240, 0}, {460, -208}, {392, -232}}

var msAdapt = [16]int{230, 230, 230, 230, 307, 409, 512, 614, 768, 614, 512, 409, 307, 230, 230, 230}

// MSADPCM writes a mono Microsoft ADPCM tone to dir/name and returns its
// path. Every block uses predictor 1.
func MSADPCM(t testing.TB, dir, name string, rate int, seconds float64) string {
	t.Helper()
	frames := int(seconds * float64(rate))
	pcm := Tone(frames, 1, rate)

	var data bytes.Buffer
	for start := 0; start < len(pcm); start += MSSamplesPerBlock {
		end := min(start+MSSamplesPerBlock, len(pcm))
		data.Write(encodeMSBlock(pcm[start:end]))
	}

	var fmtChunk bytes.Buffer
	le := func(v any) { _ = binary.Write(&fmtChunk, binary.LittleEndian, v) }
	le(uint16(0x0002))
	le(uint16(1))
	le(uint32(rate))
	le(uint32(rate * MSBlockAlign / MSSamplesPerBlock))
	le(uint16(MSBlockAlign))
	le(uint16(4))
	le(uint16(2 + 2 + 4*len(msCoefs)))
	le(uint16(MSSamplesPerBlock))
	le(uint16(len(msCoefs)))
	for _, c := range msCoefs {
		le(int16(c[0]))
		le(int16(c[1]))
	}

	return writeADPCM(t, filepath.Join(dir, name), fmtChunk.Bytes(), frames, data.Bytes())
}

// encodeMSBlock encodes up to MSSamplesPerBlock mono samples. Blocks
// shorter than two samples repeat the first one as the second seed.
func encodeMSBlock(samples []int) []byte {
	const predictor = 1
	c1, c2 := msCoefs[predictor][0], msCoefs[predictor][1]
	s2 := samples[0]
	s1 := s2
	if len(samples) > 1 {
		s1 = samples[1]
	}
	delta := 16
	out := []byte{
		predictor,
		byte(delta), byte(delta >> 8),
		byte(s1), byte(s1 >> 8),
		byte(s2), byte(s2 >> 8),
	}

	var nibbles []byte
	for _, target := range samples[min(2, len(samples)):] {
		pred := (s1*c1 + s2*c2) >> 8
		n := int(math.Round(float64(target-pred) / float64(delta)))
		n = min(max(n, -8), 7)
		rec := min(max(pred+n*delta, -32768), 32767)
		s2, s1 = s1, rec
		delta = max(msAdapt[n&0x0f]*delta>>8, 16)
		nibbles = append(nibbles, byte(n&0x0f))
	}

	for i := 0; i < len(nibbles); i += 2 {
		b := nibbles[i] << 4
		if i+1 < len(nibbles) {
			b |= nibbles[i+1]
		}
		out = append(out, b)
	}
	return out
}

// writeADPCM wraps an encoded data chunk in a RIFF WAVE file with a fact
// chunk holding the frame count.
func writeADPCM(t testing.TB, path string, fmtChunk []byte, frames int, data []byte) string {
	t.Helper()
	var buf bytes.Buffer
	le := func(v any) { _ = binary.Write(&buf, binary.LittleEndian, v) }
	buf.WriteString("RIFF")
	le(uint32(4 + 8 + len(fmtChunk) + 8 + 4 + 8 + len(data)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	le(uint32(len(fmtChunk)))
	buf.Write(fmtChunk)

	buf.WriteString("fact")
	le(uint32(4))
	le(uint32(frames))

	buf.WriteString("data")
	le(uint32(len(data)))
	buf.Write(data)

	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

var imaIndex = [16]int{-1, -1, -1, -1, 2, 4, 6, 8, -1, -1, -1, -1, 2, 4, 6, 8}

var imaStep = [89]int{
	7, 8, 9, 10, 11, 12, 13, 14, 16, 17, 19, 21, 23, 25, 28, 31, 34, 37, 41, 45,
	50, 55, 60, 66, 73, 80, 88, 97, 107, 118, 130, 143, 157, 173, 190, 209, 230,
	253, 279, 307, 337, 371, 408, 449, 494, 544, 598, 658, 724, 796, 876, 963,
	1060, 1166, 1282, 1411, 1552, 1707, 1878, 2066, 2272, 2499, 2749, 3024, 3327,
	3660, 4026, 4428, 4871, 5358, 5894, 6484, 7132, 7845, 8630, 9493, 10442,
	11487, 12635, 13899, 15289, 16818, 18500, 20350, 22385, 24623, 27086, 29794,
	32767,
}

// encodeIMABlock encodes up to IMASamplesPerBlock mono samples starting at
// the given step index and returns the block and the final index. Short
// input yields a short block.
func encodeIMABlock(samples []int, index int) ([]byte, int) {
	pred := samples[0]
	out := []byte{byte(pred), byte(pred >> 8), byte(index), 0}

	var nibbles []byte
	for _, s := range samples[1:] {
		step := imaStep[index]
		diff := s - pred
		var n byte
		if diff < 0 {
			n = 8
			diff = -diff
		}
		if diff >= step {
			n |= 4
			diff -= step
		}
		if diff >= step>>1 {
			n |= 2
			diff -= step >> 1
		}
		if diff >= step>>2 {
			n |= 1
		}

		d := step >> 3
		if n&1 != 0 {
			d += step >> 2
		}
		if n&2 != 0 {
			d += step >> 1
		}
		if n&4 != 0 {
			d += step
		}
		if n&8 != 0 {
			d = -d
		}
		pred = min(max(pred+d, -32768), 32767)
		index = min(max(index+imaIndex[n], 0), 88)
		nibbles = append(nibbles, n)
	}

	for i := 0; i < len(nibbles); i += 2 {
		b := nibbles[i]
		if i+1 < len(nibbles) {
			b |= nibbles[i+1] << 4
		}
		out = append(out, b)
	}
	return out, index
}
