package fieldconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"

	lattice "github.com/lattice-hq/lattice"
)

const usersFieldYAML = `
collections:
  users:
    fields:
      email:
        kind: email
        before_change: value.lowerAscii()
      password:
        kind: password
        salt_field: salt
        confirm_field: passwordConfirm
      name:
        kind: json
        i18n: true
      roleUuids:
        kind: virtual
        type: json
        nullable: true
        relation:
          join_table: users_roles
          owner_column: user_uuid
          member_column: role_uuid
`

func TestLoadYAML(t *testing.T) {
	registry := NewRegistry()
	assert.NoError(t, registry.LoadYAML([]byte(usersFieldYAML)))
	fields := registry.Get("users")

	t.Run("Kinds", func(t *testing.T) {
		assert.Equal(t, KindEmail, fields["email"].Kind)
		assert.Equal(t, KindPassword, fields["password"].Kind)
		assert.Equal(t, KindJSON, fields["name"].Kind)
		assert.Equal(t, KindVirtual, fields["roleUuids"].Kind)
	})

	t.Run("PasswordColumnPairing", func(t *testing.T) {
		assert.Equal(t, "salt", fields["password"].SaltField)
		assert.Equal(t, "passwordConfirm", fields["password"].ConfirmField)
	})

	t.Run("I18nFlag", func(t *testing.T) {
		assert.True(t, fields["name"].I18n)
	})

	t.Run("Relation", func(t *testing.T) {
		rule := fields["roleUuids"].Relation
		assert.NotZero(t, rule)
		assert.Equal(t, "users_roles", rule.JoinTable)
		assert.Equal(t, "user_uuid", rule.OwnerColumn)
		assert.Equal(t, "role_uuid", rule.MemberColumn)
	})

	t.Run("BeforeChangeExpressionCompiled", func(t *testing.T) {
		hook := fields["email"].BeforeChange
		assert.NotZero(t, hook)

		got, err := hook.BeforeChange(context.Background(), "Ada@Example.COM", nil)
		assert.NoError(t, err)
		assert.Equal(t, "ada@example.com", got)
	})
}

func TestLoadYAMLErrors(t *testing.T) {
	t.Run("UnknownKeyFails", func(t *testing.T) {
		registry := NewRegistry()
		err := registry.LoadYAML([]byte("collections:\n  users:\n    fields:\n      email:\n        knd: email\n"))
		assert.Error(t, err)
	})

	t.Run("BadExpressionFails", func(t *testing.T) {
		registry := NewRegistry()
		err := registry.LoadYAML([]byte("collections:\n  users:\n    fields:\n      email:\n        before_change: 'value +'\n"))
		assert.IsError(t, err, lattice.ErrBadHookExpression)
	})
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fields.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(usersFieldYAML), 0o644))

	registry := NewRegistry()
	assert.NoError(t, registry.LoadFile(path))
	assert.Equal(t, KindEmail, registry.Get("users")["email"].Kind)

	t.Run("MissingFile", func(t *testing.T) {
		assert.Error(t, NewRegistry().LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))
	})
}
