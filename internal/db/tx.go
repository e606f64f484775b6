// Package db holds small database/sql helpers shared by the sqlite stores.
package db

import (
	"database/sql"

	"github.com/cockroachdb/errors"
)

// WithTx executes fn within a transaction.
// It handles Begin, Rollback on error, and Commit on success.
func WithTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if err := fn(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit transaction")
}

// NullFloat64Value returns the value and whether it was set.
func NullFloat64Value(n sql.NullFloat64) (float64, bool) {
	if !n.Valid {
		return 0, false
	}
	return n.Float64, true
}

// NullStringValue returns the string value or empty string if not valid.
func NullStringValue(n sql.NullString) string {
	if !n.Valid {
		return ""
	}
	return n.String
}
