package mpris

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// coverNames lists album art file names in priority order, compared
// case-insensitively.
var coverNames = []string{
	"cover.jpg", "cover.png", "cover.jpeg",
	"folder.jpg", "folder.png", "folder.jpeg",
	"album.jpg", "album.png", "album.jpeg",
	"front.jpg", "front.png", "front.jpeg",
}

// FindAlbumArt looks for album art next to a local track. Returns the path
// to the art file, or an empty string for remote tracks and bare folders.
func FindAlbumArt(location string) string {
	if strings.Contains(location, "://") {
		return ""
	}
	dir := filepath.Dir(location)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	present := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			present[strings.ToLower(e.Name())] = e.Name()
		}
	}
	for _, name := range coverNames {
		if actual, ok := present[name]; ok {
			return filepath.Join(dir, actual)
		}
	}
	return ""
}

// fileLocation turns a file:// URI into a local path. Other URIs are
// returned unchanged and rejected when loaded.
func fileLocation(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return uri
	}
	return u.Path
}
