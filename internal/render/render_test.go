package render

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/wavepost/internal/decoder"
	"github.com/llehouerou/wavepost/internal/decoder/decodertest"
)

func readWAV(t *testing.T, path string) (*wav.Decoder, int) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	d := wav.NewDecoder(f)
	require.True(t, d.IsValidFile())
	buf, err := d.FullPCMBuffer()
	require.NoError(t, err)
	return d, buf.NumFrames()
}

func TestFile_KeepsSourceFormat(t *testing.T) {
	dir := t.TempDir()
	in := decodertest.WAV(t, dir, "in.wav", 8000, 1, 0.5)
	out := filepath.Join(dir, "out.wav")

	res, err := File(t.Context(), in, out, Options{})
	require.NoError(t, err)

	assert.Equal(t, 8000, res.SampleRate)
	assert.Equal(t, 1, res.Channels)
	assert.Equal(t, int64(4000), res.Frames)
	assert.Equal(t, 500*time.Millisecond, res.Duration())
	assert.Positive(t, res.Bytes)

	d, frames := readWAV(t, out)
	assert.Equal(t, uint32(8000), d.SampleRate)
	assert.Equal(t, uint16(1), d.NumChans)
	assert.Equal(t, 4000, frames)
}

func TestFile_ResamplesAndUpmixes(t *testing.T) {
	dir := t.TempDir()
	in := decodertest.WAV(t, dir, "in.wav", 22050, 1, 1)
	out := filepath.Join(dir, "out.wav")

	res, err := File(t.Context(), in, out, Options{SampleRate: 44100, Channels: 2})
	require.NoError(t, err)

	assert.Equal(t, int64(44100), res.Frames)
	d, frames := readWAV(t, out)
	assert.Equal(t, uint32(44100), d.SampleRate)
	assert.Equal(t, uint16(2), d.NumChans)
	assert.Equal(t, 44100, frames)

	// The output decodes through the player's own path.
	dec, err := decoder.Open(out)
	require.NoError(t, err)
	defer dec.Close()
	dur, ok := dec.Duration()
	require.True(t, ok)
	assert.Equal(t, time.Second, dur)
}

func TestFile_UnsupportedInputLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(in, []byte("not audio at all"), 0o644))
	out := filepath.Join(dir, "out.wav")

	_, err := File(t.Context(), in, out, Options{})

	require.Error(t, err)
	assert.Equal(t, decoder.KindUnsupportedFormat, decoder.Kind(err))
	assert.NoFileExists(t, out)
}

func TestFile_Cancelled(t *testing.T) {
	dir := t.TempDir()
	in := decodertest.WAV(t, dir, "in.wav", 8000, 1, 0.5)
	out := filepath.Join(dir, "out.wav")
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := File(ctx, in, out, Options{})

	require.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, out)
}

func TestToPCM16(t *testing.T) {
	assert.Equal(t, 0, toPCM16(0))
	assert.Equal(t, 32767, toPCM16(1))
	assert.Equal(t, 32767, toPCM16(1.5))
	assert.Equal(t, -32768, toPCM16(-2))
}
