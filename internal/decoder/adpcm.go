package decoder

import (
	"io"

	"github.com/cockroachdb/errors"
)

var imaIndexTable = [16]int32{-1, -1, -1, -1, 2, 4, 6, 8, -1, -1, -1, -1, 2, 4, 6, 8}

var imaStepTable = [89]int32{
	7, 8, 9, 10, 11, 12, 13, 14, 16, 17, 19, 21, 23, 25, 28, 31, 34, 37, 41, 45,
	50, 55, 60, 66, 73, 80, 88, 97, 107, 118, 130, 143, 157, 173, 190, 209, 230,
	253, 279, 307, 337, 371, 408, 449, 494, 544, 598, 658, 724, 796, 876, 963,
	1060, 1166, 1282, 1411, 1552, 1707, 1878, 2066, 2272, 2499, 2749, 3024, 3327,
	3660, 4026, 4428, 4871, 5358, 5894, 6484, 7132, 7845, 8630, 9493, 10442,
	11487, 12635, 13899, 15289, 16818, 18500, 20350, 22385, 24623, 27086, 29794,
	32767,
}

var msAdaptTable = [16]int32{230, 230, 230, 230, 307, 409, 512, 614, 768, 614, 512, 409, 307, 230, 230, 230}

var msDefaultCoefs = [][2]int32{
	{256, 0}, {512, -256}, {0, 0}, {192, 64}, {240, 0}, {460, -208}, {392, -232},
}

// adpcmStream decodes IMA and Microsoft ADPCM WAVE data held in memory.
// It implements beep.StreamSeekCloser; seeking decodes the target block.
type adpcmStream struct {
	info    wavInfo
	closer  io.Closer
	blocks  int
	total   int // frames
	decoded []int16
	block   int // index of the block in decoded, -1 before the first
	frames  int // frames in decoded
	pos     int // next frame within decoded
	err     error
}

func newADPCMStream(info wavInfo, closer io.Closer) (*adpcmStream, error) {
	ch := info.channels
	if ch > 2 {
		return nil, unsupported("adpcm: %d channels", ch)
	}
	header := 4 * ch
	if info.formatTag == wavFormatMSADPCM {
		header = 7 * ch
		if len(info.coefs) == 0 {
			info.coefs = msDefaultCoefs
		}
	}
	if info.blockAlign <= header {
		return nil, corrupt(errors.Newf("block align %d", info.blockAlign), "adpcm")
	}
	if info.samplesPerBlock == 0 {
		info.samplesPerBlock = samplesInBlock(info, info.blockAlign)
	}

	s := &adpcmStream{
		info:    info,
		closer:  closer,
		blocks:  (len(info.data) + info.blockAlign - 1) / info.blockAlign,
		decoded: make([]int16, info.samplesPerBlock*ch),
		block:   -1,
	}

	full := len(info.data) / info.blockAlign
	s.total = full * info.samplesPerBlock
	if rest := len(info.data) % info.blockAlign; rest > header {
		s.total += samplesInBlock(info, rest)
	}
	if info.factFrames > 0 && info.factFrames < s.total {
		s.total = info.factFrames
	}
	return s, nil
}

// samplesInBlock returns the frames encoded by size bytes of one block.
func samplesInBlock(info wavInfo, size int) int {
	ch := info.channels
	if info.formatTag == wavFormatMSADPCM {
		return (size-7*ch)*2/ch + 2
	}
	return (size-4*ch)*2/ch + 1
}

func (s *adpcmStream) Stream(samples [][2]float64) (int, bool) {
	if s.err != nil {
		return 0, false
	}
	n := 0
	for n < len(samples) {
		if s.Position() >= s.total {
			break
		}
		if s.pos >= s.frames {
			if err := s.load(s.block + 1); err != nil {
				s.err = err
				break
			}
		}
		ch := s.info.channels
		l := float64(s.decoded[s.pos*ch]) / 32768
		r := l
		if ch == 2 {
			r = float64(s.decoded[s.pos*ch+1]) / 32768
		}
		samples[n] = [2]float64{l, r}
		s.pos++
		n++
	}
	return n, n > 0
}

func (s *adpcmStream) Err() error { return s.err }

func (s *adpcmStream) Len() int { return s.total }

func (s *adpcmStream) Position() int {
	if s.block < 0 {
		return 0
	}
	return s.block*s.info.samplesPerBlock + s.pos
}

func (s *adpcmStream) Seek(p int) error {
	if p < 0 || p > s.total {
		return errors.Newf("adpcm: seek %d out of [0, %d]", p, s.total)
	}
	s.err = nil
	if p == s.total {
		s.block, s.pos = p/s.info.samplesPerBlock, p%s.info.samplesPerBlock
		s.frames = s.pos
		return nil
	}
	if err := s.load(p / s.info.samplesPerBlock); err != nil {
		return err
	}
	s.pos = p % s.info.samplesPerBlock
	return nil
}

func (s *adpcmStream) Close() error { return s.closer.Close() }

// load decodes block i into s.decoded.
func (s *adpcmStream) load(i int) error {
	if i >= s.blocks {
		return io.ErrUnexpectedEOF
	}
	start := i * s.info.blockAlign
	end := min(start+s.info.blockAlign, len(s.info.data))
	block := s.info.data[start:end]

	var frames int
	var err error
	if s.info.formatTag == wavFormatMSADPCM {
		frames, err = decodeMSBlock(block, s.info.channels, s.info.coefs, s.decoded)
	} else {
		frames, err = decodeIMABlock(block, s.info.channels, s.decoded)
	}
	if err != nil {
		return err
	}
	s.block, s.frames, s.pos = i, frames, 0
	return nil
}

func clamp16(v int32) int32 {
	return min(max(v, -32768), 32767)
}

// decodeIMABlock decodes one IMA ADPCM block into interleaved out and
// returns the frame count. Each channel's header holds the first sample;
// the data then alternates 4-byte groups (8 nibbles, low nibble first)
// per channel.
func decodeIMABlock(block []byte, channels int, out []int16) (int, error) {
	header := 4 * channels
	if len(block) < header {
		return 0, errors.New("ima adpcm: short block")
	}

	pred := make([]int32, channels)
	index := make([]int32, channels)
	for c := range channels {
		h := block[c*4:]
		pred[c] = int32(int16(uint16(h[0]) | uint16(h[1])<<8)) //nolint:gosec // pcm
		index[c] = min(max(int32(h[2]), 0), 88)
		out[c] = int16(pred[c])
	}

	frames := min((len(block)-header)*2/channels+1, len(out)/channels)
	data := block[header:]
	for g := 0; g*4*channels < len(data); g++ {
		for c := range channels {
			off := (g*channels + c) * 4
			if off+4 > len(data) {
				break
			}
			for b := range 4 {
				v := data[off+b]
				for k, nibble := range [2]byte{v & 0x0f, v >> 4} {
					frame := 1 + g*8 + b*2 + k
					if frame >= frames {
						break
					}
					step := imaStepTable[index[c]]
					diff := step >> 3
					if nibble&1 != 0 {
						diff += step >> 2
					}
					if nibble&2 != 0 {
						diff += step >> 1
					}
					if nibble&4 != 0 {
						diff += step
					}
					if nibble&8 != 0 {
						diff = -diff
					}
					pred[c] = clamp16(pred[c] + diff)
					index[c] = min(max(index[c]+imaIndexTable[nibble], 0), 88)
					out[frame*channels+c] = int16(pred[c])
				}
			}
		}
	}
	return frames, nil
}

// decodeMSBlock decodes one Microsoft ADPCM block into interleaved out and
// returns the frame count. The header stores, per channel, the predictor
// index, the initial delta and two seed samples (second sample first in
// output order); nibbles follow high-first, interleaved by channel.
func decodeMSBlock(block []byte, channels int, coefs [][2]int32, out []int16) (int, error) {
	header := 7 * channels
	if len(block) < header {
		return 0, errors.New("ms adpcm: short block")
	}
	le16 := func(off int) int32 {
		return int32(int16(uint16(block[off]) | uint16(block[off+1])<<8)) //nolint:gosec // pcm
	}

	c1 := make([]int32, channels)
	c2 := make([]int32, channels)
	delta := make([]int32, channels)
	s1 := make([]int32, channels)
	s2 := make([]int32, channels)
	for c := range channels {
		idx := int(block[c])
		if idx >= len(coefs) {
			return 0, errors.Newf("ms adpcm: predictor %d", idx)
		}
		c1[c], c2[c] = coefs[idx][0], coefs[idx][1]
		delta[c] = le16(channels + 2*c)
		s1[c] = le16(3*channels + 2*c)
		s2[c] = le16(5*channels + 2*c)
		out[c] = int16(s2[c])
		out[channels+c] = int16(s1[c])
	}

	frames := min((len(block)-header)*2/channels+2, len(out)/channels)
	sample := 2 * channels
	for _, v := range block[header:] {
		for _, nibble := range [2]int32{int32(v >> 4), int32(v & 0x0f)} {
			if sample >= frames*channels {
				break
			}
			c := sample % channels
			signed := nibble
			if signed >= 8 {
				signed -= 16
			}
			pred := (s1[c]*c1[c]+s2[c]*c2[c])>>8 + signed*delta[c]
			pred = clamp16(pred)
			s2[c], s1[c] = s1[c], pred
			delta[c] = max((msAdaptTable[nibble]*delta[c])>>8, 16)
			out[sample] = int16(pred)
			sample++
		}
	}
	return frames, nil
}
