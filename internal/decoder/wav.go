package decoder

import (
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/go-audio/riff"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
)

// WAVE format tags.
const (
	wavFormatPCM        = 0x0001
	wavFormatMSADPCM    = 0x0002
	wavFormatFloat      = 0x0003
	wavFormatIMAADPCM   = 0x0011
	wavFormatExtensible = 0xfffe
)

var factID = [4]byte{'f', 'a', 'c', 't'}

// wavInfo is what the RIFF walk learns about a WAVE file.
type wavInfo struct {
	formatTag       uint16
	channels        int
	sampleRate      int
	blockAlign      int
	bitsPerSample   int
	samplesPerBlock int
	coefs           [][2]int32 // MS ADPCM predictor pairs
	factFrames      int        // 0 when no fact chunk
	data            []byte     // only read for ADPCM
}

func (w wavInfo) adpcm() bool {
	return w.formatTag == wavFormatIMAADPCM || w.formatTag == wavFormatMSADPCM
}

// decodeWAV opens PCM and float files with beep's WAV decoder and ADPCM
// files with the block decoder in adpcm.go.
func decodeWAV(rs io.ReadSeekCloser) (beep.StreamSeekCloser, beep.Format, error) {
	info, err := scanWAV(rs)
	if err != nil {
		return nil, beep.Format{}, err
	}

	switch info.formatTag {
	case wavFormatPCM, wavFormatFloat, wavFormatExtensible:
		if _, err := rs.Seek(0, io.SeekStart); err != nil {
			return nil, beep.Format{}, ioFailure(err, "rewind wav")
		}
		s, format, err := wav.Decode(rs)
		if err != nil {
			return nil, beep.Format{}, corrupt(err, "decode wav")
		}
		return s, format, nil
	case wavFormatIMAADPCM, wavFormatMSADPCM:
		s, err := newADPCMStream(info, rs)
		if err != nil {
			return nil, beep.Format{}, err
		}
		return s, beep.Format{
			SampleRate:  beep.SampleRate(info.sampleRate),
			NumChannels: info.channels,
			Precision:   2,
		}, nil
	default:
		return nil, beep.Format{}, unsupported("wav: format tag 0x%04x", info.formatTag)
	}
}

// scanWAV walks the RIFF chunks up to and including "data".
func scanWAV(r io.Reader) (wavInfo, error) {
	var info wavInfo
	p := riff.New(r)
	if err := p.ParseHeaders(); err != nil {
		return info, corrupt(err, "wav: riff header")
	}
	if p.Format != riff.WavFormatID {
		return info, unsupported("wav: riff form %q", p.Format[:])
	}

	haveFmt := false
	for {
		ch, err := p.NextChunk()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return info, corrupt(io.ErrUnexpectedEOF, "wav: missing data chunk")
			}
			return info, corrupt(err, "wav: chunk")
		}

		switch ch.ID {
		case riff.FmtID:
			if err := readFmt(ch, &info); err != nil {
				return info, err
			}
			haveFmt = true
		case factID:
			var frames uint32
			if err := binary.Read(ch, binary.LittleEndian, &frames); err != nil {
				return info, corrupt(err, "wav: fact chunk")
			}
			info.factFrames = int(frames)
			ch.Drain()
		case riff.DataFormatID:
			if !haveFmt {
				return info, corrupt(errors.New("data before fmt"), "wav")
			}
			if info.adpcm() {
				data, err := io.ReadAll(ch)
				if err != nil {
					return info, ioFailure(err, "wav: read data")
				}
				info.data = data
			}
			return info, nil
		default:
			ch.Drain()
		}
	}
}

func readFmt(ch *riff.Chunk, info *wavInfo) error {
	var hdr struct {
		FormatTag      uint16
		Channels       uint16
		SampleRate     uint32
		AvgBytesPerSec uint32
		BlockAlign     uint16
		BitsPerSample  uint16
	}
	if err := binary.Read(ch, binary.LittleEndian, &hdr); err != nil {
		return corrupt(err, "wav: fmt chunk")
	}
	info.formatTag = hdr.FormatTag
	info.channels = int(hdr.Channels)
	info.sampleRate = int(hdr.SampleRate)
	info.blockAlign = int(hdr.BlockAlign)
	info.bitsPerSample = int(hdr.BitsPerSample)

	if info.channels < 1 || info.sampleRate < 1 {
		return corrupt(errors.Newf("channels=%d rate=%d", info.channels, info.sampleRate), "wav: fmt chunk")
	}

	if info.adpcm() && ch.Size >= 20 {
		var ext struct {
			Size            uint16
			SamplesPerBlock uint16
		}
		if err := binary.Read(ch, binary.LittleEndian, &ext); err != nil {
			return corrupt(err, "wav: fmt extension")
		}
		info.samplesPerBlock = int(ext.SamplesPerBlock)

		if info.formatTag == wavFormatMSADPCM {
			var n uint16
			if err := binary.Read(ch, binary.LittleEndian, &n); err == nil {
				pairs := make([]int16, int(n)*2)
				if err := binary.Read(ch, binary.LittleEndian, pairs); err != nil {
					return corrupt(err, "wav: adpcm coefficients")
				}
				for i := 0; i+1 < len(pairs); i += 2 {
					info.coefs = append(info.coefs, [2]int32{int32(pairs[i]), int32(pairs[i+1])})
				}
			}
		}
	}
	ch.Drain()
	return nil
}
