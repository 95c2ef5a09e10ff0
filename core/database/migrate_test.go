package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/moviebot/core/config"
)

func TestListMigrationFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000002_add_index.up.sql",
		"000001_create_users_table.up.sql",
		"000001_create_users_table.down.sql",
		"README.md",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}

	files := listMigrationFiles(dir)
	assert.Equal(t, []string{"000001_create_users_table.up.sql", "000002_add_index.up.sql"}, files)
	assert.Nil(t, listMigrationFiles(filepath.Join(dir, "missing")))
}

func TestSelectApplied(t *testing.T) {
	files := []string{"000001_a.up.sql", "000002_b.up.sql", "000003_c.up.sql"}
	assert.Equal(t, []string{"000002_b.up.sql", "000003_c.up.sql"}, selectApplied(files, 1, 3))
	assert.Empty(t, selectApplied(files, 3, 3))
	assert.Equal(t, uint64(0), parseVersion("bogus.up.sql"))
}

func TestConnectionStrings(t *testing.T) {
	cfg := coreconfig.DatabaseConfig{
		Host: "db", Port: "5432", User: "bot", Password: "secret", Name: "moviebot", SSLMode: "disable",
	}
	assert.Equal(t, "user=bot password=secret host=db port=5432 dbname=moviebot sslmode=disable", DSN(cfg))
	assert.Equal(t, "postgres://bot:secret@db:5432/moviebot?sslmode=disable", URL(cfg))
}
