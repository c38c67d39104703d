package pg

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/bobg/chash/testutil"
)

func TestKeep(t *testing.T) {
	withKeep(t, func(ctx context.Context, k *Keep) {
		testutil.ReadWrite(ctx, t, k)
	})
}

const connVar = "CHASH_PG_TESTING_CONN"

func withKeep(t *testing.T, f func(context.Context, *Keep)) {
	connstr := os.Getenv(connVar)
	if connstr == "" {
		t.Skipf("to run %s, set %s to a valid Postgresql connection string", t.Name(), connVar)
	}

	db, err := sql.Open("postgres", connstr)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	ctx := context.Background()
	k, err := New(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = db.ExecContext(ctx, `DELETE FROM hashes`); err != nil {
		t.Fatal(err)
	}
	defer db.ExecContext(ctx, `DELETE FROM hashes`)

	f(ctx, k)
}
