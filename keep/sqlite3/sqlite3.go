// Package sqlite3 implements a keep in a Sqlite database.
package sqlite3

import (
	"context"
	"database/sql"
	stderrs "errors"

	"github.com/bobg/sqlutil"
	_ "github.com/mattn/go-sqlite3" // register the sqlite3 type for sql.Open
	"github.com/pkg/errors"

	"github.com/bobg/chash"
	"github.com/bobg/chash/keep"
)

var _ keep.Keep = &Keep{}

// Keep is a Sqlite-based keep.
type Keep struct {
	db *sql.DB
}

// Schema is the SQL that New executes.
// It creates the `hashes` table if it does not exist.
// (If it does exist, it must have the columns and constraints described here.)
// Hashes are stored in their 76-byte binary form,
// whose bytewise order is the hash order.
const Schema = `
CREATE TABLE IF NOT EXISTS hashes (
  hash BLOB PRIMARY KEY NOT NULL
);
`

// New produces a new Keep using `db` for storage.
func New(ctx context.Context, db *sql.DB) (*Keep, error) {
	_, err := db.ExecContext(ctx, Schema)
	return &Keep{db: db}, errors.Wrap(err, "creating schema")
}

// Add adds a hash to the keep if it wasn't already present.
func (k *Keep) Add(ctx context.Context, h chash.Hash) (bool, error) {
	const q = `INSERT INTO hashes (hash) VALUES ($1) ON CONFLICT DO NOTHING`

	res, err := k.db.ExecContext(ctx, q, h)
	if err != nil {
		return false, errors.Wrap(err, "inserting hash")
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "counting affected rows")
	}
	return aff > 0, nil
}

// Delete removes a hash from the keep.
func (k *Keep) Delete(ctx context.Context, h chash.Hash) error {
	const q = `DELETE FROM hashes WHERE hash = $1`
	_, err := k.db.ExecContext(ctx, q, h)
	return errors.Wrap(err, "deleting hash")
}

// Contains tells whether h is in the keep.
func (k *Keep) Contains(ctx context.Context, h chash.Hash) (bool, error) {
	const q = `SELECT 1 FROM hashes WHERE hash = $1`

	var one int
	err := k.db.QueryRowContext(ctx, q, h).Scan(&one)
	if stderrs.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, errors.Wrap(err, "querying hash")
}

// ListHashes produces all hashes in the keep, in ascending order.
func (k *Keep) ListHashes(ctx context.Context, start chash.Hash, f func(chash.Hash) error) error {
	const q = `SELECT hash FROM hashes WHERE hash > $1 ORDER BY hash`
	return sqlutil.ForQueryRows(ctx, k.db, q, start, func(h chash.Hash) error {
		return f(h)
	})
}

func init() {
	keep.Register("sqlite3", func(ctx context.Context, conf map[string]interface{}) (keep.Keep, error) {
		conn, ok := conf["conn"].(string)
		if !ok {
			return nil, errors.New(`missing "conn" parameter`)
		}
		db, err := sql.Open("sqlite3", conn)
		if err != nil {
			return nil, errors.Wrap(err, "opening db")
		}
		return New(ctx, db)
	})
}
