// Package pg implements a keep in a Postgresql database.
package pg

import (
	"context"
	"database/sql"
	stderrs "errors"

	_ "github.com/lib/pq" // register the postgres type for sql.Open
	"github.com/pkg/errors"

	"github.com/bobg/chash"
	"github.com/bobg/chash/keep"
)

var _ keep.Keep = &Keep{}

// Keep is a Postgresql-based keep.
type Keep struct {
	db *sql.DB
}

// Schema is the SQL that New executes.
// BYTEA compares bytewise, matching the hash order.
const Schema = `
CREATE TABLE IF NOT EXISTS hashes (
  hash BYTEA PRIMARY KEY NOT NULL CHECK (length(hash) = 76)
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
	const q = `SELECT EXISTS (SELECT 1 FROM hashes WHERE hash = $1)`

	var found bool
	err := k.db.QueryRowContext(ctx, q, h).Scan(&found)
	if stderrs.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return found, errors.Wrap(err, "querying hash")
}

// ListHashes produces all hashes in the keep, in ascending order.
func (k *Keep) ListHashes(ctx context.Context, start chash.Hash, f func(chash.Hash) error) error {
	const q = `SELECT hash FROM hashes WHERE hash > $1 ORDER BY hash`

	rows, err := k.db.QueryContext(ctx, q, start)
	if err != nil {
		return errors.Wrap(err, "querying hashes")
	}
	defer rows.Close()

	for rows.Next() {
		var h chash.Hash
		if err = rows.Scan(&h); err != nil {
			return errors.Wrap(err, "scanning hash")
		}
		if err = f(h); err != nil {
			return err
		}
	}
	return errors.Wrap(rows.Err(), "iterating over hashes")
}

func init() {
	keep.Register("pg", func(ctx context.Context, conf map[string]interface{}) (keep.Keep, error) {
		conn, ok := conf["conn"].(string)
		if !ok {
			return nil, errors.New(`missing "conn" parameter`)
		}
		db, err := sql.Open("postgres", conn)
		if err != nil {
			return nil, errors.Wrap(err, "opening db")
		}
		return New(ctx, db)
	})
}
