package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"

	lattice "github.com/lattice-hq/lattice"
	"github.com/lattice-hq/lattice/testhelper"
)

func TestCachedReader(t *testing.T) {
	ctx := context.Background()

	t.Run("ServesStaleUntilInvalidated", func(t *testing.T) {
		db := testhelper.OpenSQLite(t, `CREATE TABLE posts (id INTEGER PRIMARY KEY, title TEXT)`)
		reader, err := NewReader(db, lattice.DialectSQLite, "")
		assert.NoError(t, err)
		cached := NewCachedReader(reader, time.Hour)

		schema, err := cached.Describe(ctx, "posts")
		assert.NoError(t, err)
		assert.Equal(t, 2, len(schema.Columns))

		_, err = db.Exec(`ALTER TABLE posts ADD COLUMN body TEXT`)
		assert.NoError(t, err)

		schema, err = cached.Describe(ctx, "posts")
		assert.NoError(t, err)
		assert.Equal(t, 2, len(schema.Columns))

		cached.Invalidate("posts")

		schema, err = cached.Describe(ctx, "posts")
		assert.NoError(t, err)
		assert.Equal(t, 3, len(schema.Columns))
	})

	t.Run("ZeroTTLDisablesCaching", func(t *testing.T) {
		db := testhelper.OpenSQLite(t, `CREATE TABLE posts (id INTEGER PRIMARY KEY)`)
		reader, err := NewReader(db, lattice.DialectSQLite, "")
		assert.NoError(t, err)
		cached := NewCachedReader(reader, 0)

		_, err = cached.Describe(ctx, "posts")
		assert.NoError(t, err)

		_, err = db.Exec(`ALTER TABLE posts ADD COLUMN title TEXT`)
		assert.NoError(t, err)

		schema, err := cached.Describe(ctx, "posts")
		assert.NoError(t, err)
		assert.Equal(t, 2, len(schema.Columns))
	})

	t.Run("MissingTableIsNotCached", func(t *testing.T) {
		db := testhelper.OpenSQLite(t)
		reader, err := NewReader(db, lattice.DialectSQLite, "")
		assert.NoError(t, err)
		cached := NewCachedReader(reader, time.Hour)

		_, err = cached.Describe(ctx, "posts")
		assert.IsError(t, err, lattice.ErrCollectionNotFound)

		_, err = db.Exec(`CREATE TABLE posts (id INTEGER PRIMARY KEY)`)
		assert.NoError(t, err)

		schema, err := cached.Describe(ctx, "posts")
		assert.NoError(t, err)
		assert.Equal(t, "posts", schema.Name)
	})

	t.Run("InvalidateAll", func(t *testing.T) {
		db := testhelper.OpenSQLite(t, `CREATE TABLE posts (id INTEGER PRIMARY KEY)`)
		reader, err := NewReader(db, lattice.DialectSQLite, "")
		assert.NoError(t, err)
		cached := NewCachedReader(reader, time.Hour)

		_, err = cached.Describe(ctx, "posts")
		assert.NoError(t, err)

		_, err = db.Exec(`ALTER TABLE posts ADD COLUMN title TEXT`)
		assert.NoError(t, err)

		cached.InvalidateAll()

		schema, err := cached.Describe(ctx, "posts")
		assert.NoError(t, err)
		assert.Equal(t, 2, len(schema.Columns))
	})
}
