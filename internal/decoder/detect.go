package decoder

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
)

type codec int

const (
	codecUnknown codec = iota
	codecMP3
	codecFLAC
	codecVorbis
	codecWAV
)

func (c codec) String() string {
	switch c {
	case codecMP3:
		return "MP3"
	case codecFLAC:
		return "FLAC"
	case codecVorbis:
		return "Vorbis"
	case codecWAV:
		return "WAV"
	default:
		return "unknown"
	}
}

const (
	extMP3  = ".mp3"
	extFLAC = ".flac"
	extOGG  = ".ogg"
	extOGA  = ".oga"
	extWAV  = ".wav"
	extWAVE = ".wave"
)

// Extensions lists the file extensions Open recognises without sniffing.
var Extensions = []string{extMP3, extFLAC, extOGG, extOGA, extWAV, extWAVE}

// IsAudioFile reports whether path has a recognised extension.
func IsAudioFile(path string) bool {
	return codecFromExt(path) != codecUnknown
}

func codecFromExt(path string) codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case extMP3:
		return codecMP3
	case extFLAC:
		return codecFLAC
	case extOGG, extOGA:
		return codecVorbis
	case extWAV, extWAVE:
		return codecWAV
	}
	return codecUnknown
}

// sniff identifies the container from its first bytes and rewinds r.
func sniff(r io.ReadSeeker) (codec, error) {
	header := make([]byte, 12)
	n, err := io.ReadFull(r, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return codecUnknown, err
	}
	header = header[:n]
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return codecUnknown, err
	}

	switch {
	case len(header) >= 12 && bytes.Equal(header[:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WAVE")):
		return codecWAV, nil
	case bytes.HasPrefix(header, []byte("fLaC")):
		return codecFLAC, nil
	case bytes.HasPrefix(header, []byte("OggS")):
		return codecVorbis, nil
	case bytes.HasPrefix(header, []byte("ID3")):
		// FLAC files occasionally carry an ID3v2 prefix too; MP3 is the
		// overwhelmingly common case.
		return codecMP3, nil
	case len(header) >= 2 && header[0] == 0xff && header[1]&0xe0 == 0xe0:
		return codecMP3, nil
	}
	return codecUnknown, nil
}

// skipID3v2 positions r past an ID3v2 tag if one is present, or rewinds it.
// Some taggers prepend ID3v2 to FLAC files, which the FLAC decoder rejects.
func skipID3v2(r io.ReadSeeker) error {
	header := make([]byte, 10)
	n, err := io.ReadFull(r, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return err
	}
	if n < 10 || string(header[:3]) != "ID3" {
		_, err = r.Seek(0, io.SeekStart)
		return err
	}

	// Syncsafe integer: 7 bits per byte.
	size := int64(header[6])<<21 | int64(header[7])<<14 | int64(header[8])<<7 | int64(header[9])
	_, err = r.Seek(10+size, io.SeekStart)
	return err
}
