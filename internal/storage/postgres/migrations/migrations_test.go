package migrations

import (
	"io"
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatest(t *testing.T) {
	v, err := Latest()
	require.NoError(t, err)
	assert.Equal(t, uint(3), v)
}

func TestEveryUpHasDown(t *testing.T) {
	src, err := iofs.New(migrationFiles, "files")
	require.NoError(t, err)
	defer src.Close()

	v, err := src.First()
	require.NoError(t, err)
	for {
		up, _, err := src.ReadUp(v)
		require.NoError(t, err, "up %d", v)
		body, err := io.ReadAll(up)
		require.NoError(t, err)
		up.Close()
		assert.Contains(t, strings.ToUpper(string(body)), "CREATE TABLE")

		down, _, err := src.ReadDown(v)
		require.NoError(t, err, "down %d", v)
		down.Close()

		next, err := src.Next(v)
		if err != nil {
			break
		}
		v = next
	}
}

func TestSchemaCoversRepositories(t *testing.T) {
	var all strings.Builder
	err := fs.WalkDir(migrationFiles, "files", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".up.sql") {
			return err
		}
		b, err := migrationFiles.ReadFile(path)
		all.Write(b)
		return err
	})
	require.NoError(t, err)

	for _, table := range []string{"users", "projects", "notifications", "feedback"} {
		assert.Contains(t, all.String(), "CREATE TABLE IF NOT EXISTS "+table+" ")
	}
	assert.Contains(t, all.String(), "scheduled_at")
}
