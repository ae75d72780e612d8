package lattice

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestLoadConfig(t *testing.T) {
	t.Run("MissingFileReturnsDefaults", func(t *testing.T) {
		config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.NoError(t, err)
		assert.Equal(t, string(DialectSQLite), config.Dialect)
		assert.Equal(t, 20, config.Engine.DefaultPageSize)
		assert.Equal(t, 500, config.Engine.MaxPageSize)
	})

	t.Run("ValidFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lattice.yaml")
		content := `
dialect: postgres
databases:
  development:
    connection: postgres://localhost/lattice_dev
collections:
  groups:
    core:
      - users
engine:
  default_page_size: 50
`
		assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		config, err := LoadConfig(path)
		assert.NoError(t, err)
		assert.Equal(t, "postgres", config.Dialect)
		assert.Equal(t, 50, config.Engine.DefaultPageSize)
		assert.Equal(t, 500, config.Engine.MaxPageSize)
		assert.True(t, config.Collections.Allowed("users"))
	})

	t.Run("UnknownDialectFails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lattice.yaml")
		content := `
dialect: oracle
databases:
  development:
    connection: oracle://localhost/x
`
		assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		_, err := LoadConfig(path)
		assert.IsError(t, err, ErrConfigValidation)
	})

	t.Run("MissingConnectionFails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lattice.yaml")
		content := `
dialect: sqlite
databases:
  development:
    driver: sqlite3
`
		assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		_, err := LoadConfig(path)
		assert.IsError(t, err, ErrConfigValidation)
	})

	t.Run("EnvironmentVariableExpansion", func(t *testing.T) {
		t.Setenv("LATTICE_TEST_DSN", "postgres://db.internal/app")

		path := filepath.Join(t.TempDir(), "lattice.yaml")
		content := `
dialect: postgres
databases:
  production:
    connection: ${LATTICE_TEST_DSN}
`
		assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		config, err := LoadConfig(path)
		assert.NoError(t, err)
		assert.Equal(t, "postgres://db.internal/app", config.Databases["production"].Connection)
	})
}
