package database_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/rentalshop/internal/database"
	"github.com/nikhilbhutani/rentalshop/internal/database/dbtest"
)

func TestIsUniqueViolation(t *testing.T) {
	err := &pgconn.PgError{Code: "23505", ConstraintName: "tenants_subdomain_key"}
	wrapped := errors.Join(errors.New("insert tenant"), err)

	assert.True(t, database.IsUniqueViolation(wrapped, ""))
	assert.True(t, database.IsUniqueViolation(wrapped, "tenants_subdomain_key"))
	assert.False(t, database.IsUniqueViolation(wrapped, "users_email_key"))
	assert.False(t, database.IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	assert.False(t, database.IsUniqueViolation(errors.New("boom"), ""))
}

func TestInTxCommitsAndRollsBack(t *testing.T) {
	fake := dbtest.New()

	err := database.InTx(context.Background(), fake, func(tx pgx.Tx) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, fake.Commits)

	boom := errors.New("boom")
	err = database.InTx(context.Background(), fake, func(tx pgx.Tx) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, fake.Commits)
	assert.Equal(t, 1, fake.Rollbacks)
}

func TestRunMigrationsAppliesPendingInOrder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "002_b.sql"), []byte("CREATE TABLE b();"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_a.sql"), []byte("CREATE TABLE a();"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	fake := dbtest.New().
		Return("CREATE TABLE IF NOT EXISTS schema_migrations", dbtest.Result{}).
		On("SELECT EXISTS", func(_ string, args []any) dbtest.Result {
			return dbtest.Single(args[0] == "001_a.sql")
		}).
		Return("CREATE TABLE", dbtest.Result{}).
		Return("INSERT INTO schema_migrations", dbtest.Result{})

	require.NoError(t, database.RunMigrations(context.Background(), fake, dir))

	var applied []string
	for _, c := range fake.Calls() {
		if c.InTx && c.SQL == "INSERT INTO schema_migrations (version) VALUES ($1)" {
			applied = append(applied, c.Args[0].(string))
		}
	}
	assert.Equal(t, []string{"002_b.sql"}, applied)
	assert.Equal(t, 1, fake.Commits)
}
