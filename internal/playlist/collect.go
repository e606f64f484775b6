package playlist

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/llehouerou/wavepost/internal/decoder"
)

// Collect turns locations into tracks, in order. Directories expand to the
// audio files beneath them, sorted by path. URLs and explicit files are
// kept as given; they are validated when loaded.
func Collect(locations []string) []Track {
	var tracks []Track
	for _, loc := range locations {
		t := NewTrack(loc)
		if t.IsURL() {
			tracks = append(tracks, t)
			continue
		}
		info, err := os.Stat(loc)
		if err != nil || !info.IsDir() {
			tracks = append(tracks, t)
			continue
		}
		tracks = append(tracks, collectDir(loc)...)
	}
	return tracks
}

func collectDir(root string) []Track {
	var paths []string
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Skip directories/files with errors, continue walking
			return nil //nolint:nilerr // intentionally skipping errors
		}
		if d.IsDir() || !decoder.IsAudioFile(path) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})

	// Sort by path for consistent ordering
	sort.Strings(paths)

	tracks := make([]Track, len(paths))
	for i, p := range paths {
		tracks[i] = NewTrack(p)
	}
	return tracks
}

// FormatDuration formats a duration as MM:SS.
func FormatDuration(d time.Duration) string {
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", m, s)
}
