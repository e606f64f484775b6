package decoder

import (
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/llehouerou/go-mp3"
)

// mp3Stream adapts llehouerou/go-mp3 to beep.StreamSeekCloser. go-mp3
// always emits 16-bit little-endian stereo and seeks to exact samples.
type mp3Stream struct {
	dec    *mp3.Decoder
	closer io.Closer
	raw    []byte
	err    error
}

const mp3BytesPerFrame = 4

func decodeMP3(rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
	dec, err := mp3.NewDecoder(rc)
	if err != nil {
		return nil, beep.Format{}, err
	}
	if dec.SampleRate() <= 0 {
		return nil, beep.Format{}, errors.New("mp3: invalid sample rate")
	}
	format := beep.Format{
		SampleRate:  beep.SampleRate(dec.SampleRate()),
		NumChannels: 2,
		Precision:   2,
	}
	return &mp3Stream{dec: dec, closer: rc}, format, nil
}

func (s *mp3Stream) Stream(samples [][2]float64) (int, bool) {
	if s.err != nil {
		return 0, false
	}
	want := len(samples) * mp3BytesPerFrame
	if cap(s.raw) < want {
		s.raw = make([]byte, want)
	}
	raw := s.raw[:want]

	got, err := io.ReadFull(s.dec, raw)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		s.err = err
		return 0, false
	}

	n := got / mp3BytesPerFrame
	for i := range n {
		frame := raw[i*mp3BytesPerFrame:]
		samples[i][0] = float64(int16(binary.LittleEndian.Uint16(frame))) / 32768     //nolint:gosec // pcm
		samples[i][1] = float64(int16(binary.LittleEndian.Uint16(frame[2:]))) / 32768 //nolint:gosec // pcm
	}
	return n, n > 0
}

func (s *mp3Stream) Err() error { return s.err }

func (s *mp3Stream) Len() int {
	return int(max(s.dec.SampleCount(), 0))
}

func (s *mp3Stream) Position() int {
	return int(s.dec.SamplePosition())
}

func (s *mp3Stream) Seek(p int) error {
	p = min(max(p, 0), s.Len())
	if err := s.dec.SeekToSample(int64(p)); err != nil {
		return err
	}
	s.err = nil
	return nil
}

func (s *mp3Stream) Close() error { return s.closer.Close() }
