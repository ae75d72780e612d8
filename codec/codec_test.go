package codec

import (
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"

	lattice "github.com/lattice-hq/lattice"
	"github.com/lattice-hq/lattice/fieldconfig"
)

func usersSchema() lattice.CollectionSchema {
	return lattice.CollectionSchema{
		Name:       "users",
		PrimaryKey: "id",
		Columns: []lattice.ColumnInfo{
			{Name: "id", LatticeType: "int", OrdinalPosition: 1, IsPrimaryKey: true},
			{Name: "email", LatticeType: "string", OrdinalPosition: 2},
			{Name: "name", LatticeType: "json", OrdinalPosition: 3},
			{Name: "profile", LatticeType: "string", OrdinalPosition: 4},
			{Name: "password", LatticeType: "string", OrdinalPosition: 5},
			{Name: "salt", LatticeType: "string", OrdinalPosition: 6},
			{Name: "balance", LatticeType: "float", OrdinalPosition: 7},
			{Name: "verified_at", LatticeType: "datetime", Nullable: true, OrdinalPosition: 8},
		},
	}
}

func usersConfig() map[string]fieldconfig.FieldConfig {
	return map[string]fieldconfig.FieldConfig{
		"email":    {Kind: fieldconfig.KindEmail},
		"name":     {Kind: fieldconfig.KindJSON, I18n: true},
		"password": {Kind: fieldconfig.KindPassword, SaltField: "salt", ConfirmField: "passwordConfirm"},
	}
}

func TestValidate(t *testing.T) {
	codec := New(1000)
	cfgs := usersConfig()

	t.Run("ValidInput", func(t *testing.T) {
		err := codec.Validate(cfgs, map[string]any{
			"email":    "ada@example.com",
			"password": "s3cret",
		})
		assert.NoError(t, err)
	})

	t.Run("MalformedEmail", func(t *testing.T) {
		err := codec.Validate(cfgs, map[string]any{"email": "not-an-email"})
		assert.IsError(t, err, lattice.ErrValidation)

		err = codec.Validate(cfgs, map[string]any{"email": "a b@example.com"})
		assert.IsError(t, err, lattice.ErrValidation)

		err = codec.Validate(cfgs, map[string]any{"email": "ada@example"})
		assert.IsError(t, err, lattice.ErrValidation)
	})

	t.Run("EmptyEmailPasses", func(t *testing.T) {
		assert.NoError(t, codec.Validate(cfgs, map[string]any{"email": ""}))
	})

	t.Run("AbsentFieldsPass", func(t *testing.T) {
		assert.NoError(t, codec.Validate(cfgs, map[string]any{}))
		assert.NoError(t, codec.Validate(cfgs, map[string]any{"email": nil}))
	})

	t.Run("NonStringPassword", func(t *testing.T) {
		err := codec.Validate(cfgs, map[string]any{"password": 42})
		assert.IsError(t, err, lattice.ErrValidation)
	})
}

func TestEncodeRecordPassword(t *testing.T) {
	codec := New(1000)
	schema := usersSchema()
	cfgs := usersConfig()

	t.Run("HashesWithSiblingSalt", func(t *testing.T) {
		record := map[string]any{"password": "s3cret", "passwordConfirm": "s3cret"}
		assert.NoError(t, codec.EncodeRecord(schema, cfgs, record, false))

		_, hasConfirm := record["passwordConfirm"]
		assert.False(t, hasConfirm)

		hash := record["password"].(string)
		salt := record["salt"].(string)
		assert.Equal(t, 64, len(hash)) // 32 bytes hex encoded
		assert.Equal(t, 32, len(salt)) // 16 bytes hex encoded
		assert.NotEqual(t, "s3cret", hash)

		assert.True(t, codec.VerifyPassword("s3cret", hash, salt))
		assert.False(t, codec.VerifyPassword("wrong", hash, salt))
	})

	t.Run("FreshSaltPerEncode", func(t *testing.T) {
		first := map[string]any{"password": "s3cret"}
		second := map[string]any{"password": "s3cret"}
		assert.NoError(t, codec.EncodeRecord(schema, cfgs, first, false))
		assert.NoError(t, codec.EncodeRecord(schema, cfgs, second, false))
		assert.NotEqual(t, first["password"], second["password"])
		assert.NotEqual(t, first["salt"], second["salt"])
	})

	t.Run("EmptyPasswordOnCreateFails", func(t *testing.T) {
		record := map[string]any{"password": ""}
		err := codec.EncodeRecord(schema, cfgs, record, false)
		assert.IsError(t, err, lattice.ErrValidation)
	})

	t.Run("EmptyPasswordOnUpdateIsNoChange", func(t *testing.T) {
		record := map[string]any{"password": "", "email": "ada@example.com"}
		assert.NoError(t, codec.EncodeRecord(schema, cfgs, record, true))

		_, hasPassword := record["password"]
		_, hasSalt := record["salt"]
		assert.False(t, hasPassword)
		assert.False(t, hasSalt)
		assert.Equal(t, "ada@example.com", record["email"])
	})

	t.Run("ConfirmDroppedEvenWithoutPassword", func(t *testing.T) {
		record := map[string]any{"passwordConfirm": "stale"}
		assert.NoError(t, codec.EncodeRecord(schema, cfgs, record, true))
		assert.Equal(t, 0, len(record))
	})
}

func TestEncodeRecordValues(t *testing.T) {
	codec := New(1000)
	schema := usersSchema()
	cfgs := usersConfig()

	t.Run("JSONKindMarshalsObjects", func(t *testing.T) {
		record := map[string]any{"name": map[string]any{"en": "Ada", "ja": "エイダ"}}
		assert.NoError(t, codec.EncodeRecord(schema, cfgs, record, false))

		s := record["name"].(string)
		assert.Contains(t, s, `"en":"Ada"`)
	})

	t.Run("JSONKindKeepsStrings", func(t *testing.T) {
		record := map[string]any{"name": `{"en":"Ada"}`}
		assert.NoError(t, codec.EncodeRecord(schema, cfgs, record, false))
		assert.Equal(t, `{"en":"Ada"}`, record["name"])
	})

	t.Run("ObjectInTextColumnMarshals", func(t *testing.T) {
		record := map[string]any{"profile": []any{"reader", "writer"}}
		assert.NoError(t, codec.EncodeRecord(schema, cfgs, record, false))
		assert.Equal(t, `["reader","writer"]`, record["profile"])
	})

	t.Run("EmptyTemporalBecomesNull", func(t *testing.T) {
		record := map[string]any{"verified_at": ""}
		assert.NoError(t, codec.EncodeRecord(schema, cfgs, record, false))
		assert.True(t, record["verified_at"] == nil)

		record = map[string]any{"verified_at": "   "}
		assert.NoError(t, codec.EncodeRecord(schema, cfgs, record, false))
		assert.True(t, record["verified_at"] == nil)
	})

	t.Run("NonEmptyTemporalKept", func(t *testing.T) {
		record := map[string]any{"verified_at": "2025-03-14T00:26:53Z"}
		assert.NoError(t, codec.EncodeRecord(schema, cfgs, record, false))
		assert.Equal(t, "2025-03-14T00:26:53Z", record["verified_at"])
	})
}

func TestDecodeRow(t *testing.T) {
	codec := New(1000)
	schema := usersSchema()
	cfgs := usersConfig()

	t.Run("BytesBecomeStrings", func(t *testing.T) {
		row := map[string]any{"email": []byte("ada@example.com")}
		codec.DecodeRow(schema, cfgs, row)
		assert.Equal(t, "ada@example.com", row["email"])
	})

	t.Run("JSONColumnsParse", func(t *testing.T) {
		row := map[string]any{"name": `{"en":"Ada"}`}
		codec.DecodeRow(schema, cfgs, row)
		parsed := row["name"].(map[string]any)
		assert.Equal(t, "Ada", parsed["en"])
	})

	t.Run("JSONShapedTextParses", func(t *testing.T) {
		row := map[string]any{"profile": `["reader","writer"]`}
		codec.DecodeRow(schema, cfgs, row)
		assert.Equal(t, 2, len(row["profile"].([]any)))
	})

	t.Run("MalformedJSONKeptRaw", func(t *testing.T) {
		row := map[string]any{"name": `{"en":`}
		codec.DecodeRow(schema, cfgs, row)
		assert.Equal(t, `{"en":`, row["name"])
	})

	t.Run("FloatColumnsBecomeDecimals", func(t *testing.T) {
		row := map[string]any{"balance": "19.99"}
		codec.DecodeRow(schema, cfgs, row)
		d := row["balance"].(decimal.Decimal)
		assert.True(t, d.Equal(decimal.RequireFromString("19.99")))
	})

	t.Run("NullsPassThrough", func(t *testing.T) {
		row := map[string]any{"verified_at": nil}
		codec.DecodeRow(schema, cfgs, row)
		assert.True(t, row["verified_at"] == nil)
	})
}

func TestStripPasswords(t *testing.T) {
	cfgs := usersConfig()
	row := map[string]any{
		"email":    "ada@example.com",
		"password": "deadbeef",
		"salt":     "cafebabe",
	}

	StripPasswords(cfgs, row)

	_, hasPassword := row["password"]
	_, hasSalt := row["salt"]
	assert.False(t, hasPassword)
	assert.False(t, hasSalt)
	assert.Equal(t, "ada@example.com", row["email"])
}
