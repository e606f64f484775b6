// Package state persists player preferences in sqlite.
package state

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/llehouerou/wavepost/internal/db"
	"github.com/llehouerou/wavepost/internal/errmsg"
	"github.com/llehouerou/wavepost/internal/playlist"
)

const (
	appName      = "wavepost"
	dbFileName   = "wavepost.db"
	saveDebounce = 500 * time.Millisecond
)

// pendingSave holds preference writes not yet flushed.
type pendingSave struct {
	volume *float64
	mode   *playlist.Mode
}

type Manager struct {
	db        *sql.DB
	log       zerolog.Logger
	saveMu    sync.Mutex
	saveTimer *time.Timer
	pending   pendingSave
	debounce  time.Duration
}

// Open opens the preference database at path, or at the XDG data location
// when path is empty. ":memory:" opens a private in-memory database.
func Open(path string, log zerolog.Logger) (*Manager, error) {
	if path == "" {
		p, err := getDBPath()
		if err != nil {
			return nil, errors.Wrap(err, "resolve database path")
		}
		path = p
	}

	if path != ":memory:" {
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "create data directory")
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	// One connection keeps ":memory:" databases shared and serializes writes.
	conn.SetMaxOpenConns(1)

	if err := initSchema(conn); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "init schema")
	}

	return &Manager{
		db:       conn,
		log:      log.With().Str("component", "state").Logger(),
		debounce: saveDebounce,
	}, nil
}

// Close flushes pending writes and closes the database.
func (m *Manager) Close() error {
	m.saveMu.Lock()
	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}
	pending := m.pending
	m.pending = pendingSave{}
	m.saveMu.Unlock()

	// Flush pending state
	m.flush(pending)

	return m.db.Close()
}

// schedule merges a write into the pending set and restarts the debounce
// timer.
func (m *Manager) schedule(apply func(*pendingSave)) {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	apply(&m.pending)

	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}

	m.saveTimer = time.AfterFunc(m.debounce, func() {
		m.saveMu.Lock()
		pending := m.pending
		m.pending = pendingSave{}
		m.saveMu.Unlock()

		m.flush(pending)
	})
}

// flush writes every pending preference in one transaction.
func (m *Manager) flush(p pendingSave) {
	if p.volume == nil && p.mode == nil {
		return
	}
	err := db.WithTx(m.db, func(tx *sql.Tx) error {
		if p.volume != nil {
			if err := saveVolume(tx, *p.volume); err != nil {
				return errors.Wrap(err, "save volume")
			}
		}
		if p.mode != nil {
			if err := savePlaylistMode(tx, *p.mode); err != nil {
				return errors.Wrap(err, "save playlist mode")
			}
		}
		return nil
	})
	if err != nil {
		m.log.Warn().Err(err).Msg(errmsg.Format(errmsg.OpPreferenceSave, err))
	}
}

func getDBPath() (string, error) {
	return xdg.DataFile(filepath.Join(appName, dbFileName))
}
