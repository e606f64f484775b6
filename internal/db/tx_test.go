package db

import (
	"database/sql"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	_, err = conn.Exec(`CREATE TABLE test_table (id INTEGER PRIMARY KEY, value TEXT)`)
	require.NoError(t, err)
	return conn
}

func count(t *testing.T, conn *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM test_table`).Scan(&n))
	return n
}

func TestWithTx_Success(t *testing.T) {
	conn := setupTestDB(t)

	err := WithTx(conn, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO test_table (value) VALUES (?)`, "a")
		if err != nil {
			return err
		}
		_, err = tx.Exec(`INSERT INTO test_table (value) VALUES (?)`, "b")
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, 2, count(t, conn))
}

func TestWithTx_Rollback(t *testing.T) {
	conn := setupTestDB(t)
	testErr := errors.New("test error")

	err := WithTx(conn, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO test_table (value) VALUES (?)`, "a"); err != nil {
			return err
		}
		return testErr
	})

	require.ErrorIs(t, err, testErr)
	assert.Zero(t, count(t, conn))
}

func TestNullValues(t *testing.T) {
	v, ok := NullFloat64Value(sql.NullFloat64{Float64: 0.5, Valid: true})
	assert.True(t, ok)
	assert.InDelta(t, 0.5, v, 0)

	_, ok = NullFloat64Value(sql.NullFloat64{})
	assert.False(t, ok)

	assert.Equal(t, "x", NullStringValue(sql.NullString{String: "x", Valid: true}))
	assert.Empty(t, NullStringValue(sql.NullString{String: "x"}))
}
