package state

import (
	"database/sql"

	"github.com/cockroachdb/errors"

	"github.com/llehouerou/wavepost/internal/db"
	"github.com/llehouerou/wavepost/internal/playlist"
)

// GetVolume returns the saved volume. ok is false when none was saved.
func (m *Manager) GetVolume() (volume float64, ok bool, err error) {
	var v sql.NullFloat64
	row := m.db.QueryRow(`SELECT volume FROM preferences WHERE id = 1`)
	err = row.Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, "read volume")
	}
	volume, ok = db.NullFloat64Value(v)
	return volume, ok, nil
}

// SaveVolume persists the volume level after the debounce delay.
func (m *Manager) SaveVolume(volume float64) {
	m.schedule(func(p *pendingSave) { p.volume = &volume })
}

// GetPlaylistMode returns the saved playlist mode. ok is false when none
// was saved or the stored name is no longer known.
func (m *Manager) GetPlaylistMode() (mode playlist.Mode, ok bool, err error) {
	var name sql.NullString
	row := m.db.QueryRow(`SELECT playlist_mode FROM preferences WHERE id = 1`)
	err = row.Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return playlist.Normal, false, nil
	}
	if err != nil {
		return playlist.Normal, false, errors.Wrap(err, "read playlist mode")
	}
	mode, perr := playlist.ParseMode(db.NullStringValue(name))
	if perr != nil {
		return playlist.Normal, false, nil //nolint:nilerr // stale values fall back to defaults
	}
	return mode, true, nil
}

// SavePlaylistMode persists the playlist mode after the debounce delay.
func (m *Manager) SavePlaylistMode(mode playlist.Mode) {
	m.schedule(func(p *pendingSave) { p.mode = &mode })
}

func saveVolume(tx *sql.Tx, volume float64) error {
	_, err := tx.Exec(`
		INSERT INTO preferences (id, volume)
		VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET
			volume = excluded.volume
	`, volume)
	return err
}

func savePlaylistMode(tx *sql.Tx, mode playlist.Mode) error {
	_, err := tx.Exec(`
		INSERT INTO preferences (id, playlist_mode)
		VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET
			playlist_mode = excluded.playlist_mode
	`, mode.String())
	return err
}
