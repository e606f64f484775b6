package decoder

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

// Metadata holds the tags shown for a track. Empty strings mean absent.
type Metadata struct {
	Title  string
	Artist string
	Album  string
}

// readMetadata reads tags from r. Files without tags, or with unreadable
// ones, fall back to the file name as title.
func readMetadata(r io.ReadSeeker, location string) Metadata {
	var meta Metadata
	if m, err := tag.ReadFrom(r); err == nil {
		meta = Metadata{
			Title:  strings.TrimSpace(m.Title()),
			Artist: strings.TrimSpace(m.Artist()),
			Album:  strings.TrimSpace(m.Album()),
		}
	}
	if meta.Title == "" {
		base := filepath.Base(location)
		meta.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return meta
}
