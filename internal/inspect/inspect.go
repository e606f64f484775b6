// Package inspect reports what the decoder sees in audio files.
package inspect

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"

	"github.com/llehouerou/wavepost/internal/decoder"
	"github.com/llehouerou/wavepost/internal/errmsg"
	"github.com/llehouerou/wavepost/internal/playlist"
)

// Info describes one inspected file.
type Info struct {
	Location    string
	Size        int64
	Format      decoder.Format
	Duration    time.Duration
	HasDuration bool
	Metadata    decoder.Metadata
}

// File opens location and reads its format, duration and tags.
func File(location string) (Info, error) {
	st, err := os.Stat(location)
	if err != nil {
		return Info{}, errors.Wrap(err, "stat")
	}
	dec, err := decoder.Open(location)
	if err != nil {
		return Info{}, err
	}
	defer dec.Close()

	info := Info{
		Location: location,
		Size:     st.Size(),
		Format:   dec.Format(),
		Metadata: dec.Metadata(),
	}
	info.Duration, info.HasDuration = dec.Duration()
	return info, nil
}

// Print inspects every location and writes a block per file to w. Files that
// cannot be decoded are reported inline. The error counts the failures.
func Print(w io.Writer, locations []string) error {
	failed := 0
	for i, loc := range locations {
		if i > 0 {
			fmt.Fprintln(w)
		}
		info, err := File(loc)
		if err != nil {
			failed++
			fmt.Fprintf(w, "%s\n  error: %s\n", loc, errmsg.Format(errmsg.OpInspect, err))
			continue
		}
		write(w, info)
	}
	if failed > 0 {
		return errors.Newf("%d of %d files could not be read", failed, len(locations))
	}
	return nil
}

func write(w io.Writer, info Info) {
	duration := "unknown"
	if info.HasDuration {
		duration = playlist.FormatDuration(info.Duration)
	}
	fmt.Fprintf(w, "%s\n", info.Location)
	fmt.Fprintf(w, "  codec:    %s\n", info.Format.Codec)
	fmt.Fprintf(w, "  format:   %s Hz, %d ch\n", humanize.Comma(int64(info.Format.SampleRate)), info.Format.Channels)
	fmt.Fprintf(w, "  duration: %s\n", duration)
	fmt.Fprintf(w, "  size:     %s\n", humanize.IBytes(uint64(info.Size)))
	fmt.Fprintf(w, "  title:    %s\n", info.Metadata.Title)
	if info.Metadata.Artist != "" {
		fmt.Fprintf(w, "  artist:   %s\n", info.Metadata.Artist)
	}
	if info.Metadata.Album != "" {
		fmt.Fprintf(w, "  album:    %s\n", info.Metadata.Album)
	}
}
