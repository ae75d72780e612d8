// Package codec converts values between caller input, SQL parameters and
// response rows: JSON field serialization, temporal empty-to-NULL
// coercion, password hashing with per-row salts, email shape validation,
// and driver value normalization on read.
package codec

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/pbkdf2"

	lattice "github.com/lattice-hq/lattice"
	"github.com/lattice-hq/lattice/fieldconfig"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	saltBytes   = 16
	hashKeyLen  = 32
	minHashIter = 1000
)

// Codec performs the write-path and read-path value conversions.
type Codec struct {
	hashIterations int
}

// New creates a codec. iterations below a sane floor are raised to it.
func New(iterations int) *Codec {
	if iterations < minHashIter {
		iterations = minHashIter
	}
	return &Codec{hashIterations: iterations}
}

// Validate checks email-kind and password-kind fields of the input before
// any hook or write runs. Non-empty emails must match the standard shape;
// password values must be strings.
func (c *Codec) Validate(cfgs map[string]fieldconfig.FieldConfig, input map[string]any) error {
	for name, cfg := range cfgs {
		value, ok := input[name]
		if !ok || value == nil {
			continue
		}

		switch cfg.Kind {
		case fieldconfig.KindEmail:
			s, isString := value.(string)
			if !isString {
				return fmt.Errorf("%w: field %s must be a string", lattice.ErrValidation, name)
			}
			if s != "" && !emailPattern.MatchString(s) {
				return fmt.Errorf("%w: field %s is not a valid email address", lattice.ErrValidation, name)
			}
		case fieldconfig.KindPassword:
			if _, isString := value.(string); !isString {
				return fmt.Errorf("%w: field %s must be a string", lattice.ErrValidation, name)
			}
		}
	}

	return nil
}

// EncodeRecord prepares a record for SQL parameter binding, mutating it
// in place. isUpdate selects the update semantics for password fields:
// an empty password is dropped (no change) instead of clearing the hash.
func (c *Codec) EncodeRecord(schema lattice.CollectionSchema, cfgs map[string]fieldconfig.FieldConfig, record map[string]any, isUpdate bool) error {
	// Confirmation fields never persist, whether or not the password
	// itself changed.
	for _, cfg := range cfgs {
		if cfg.Kind == fieldconfig.KindPassword && cfg.ConfirmField != "" {
			delete(record, cfg.ConfirmField)
		}
	}

	for name, value := range record {
		cfg := cfgs[name]

		if cfg.Kind == fieldconfig.KindPassword {
			if err := c.encodePassword(name, cfg, record, isUpdate); err != nil {
				return err
			}
			continue
		}

		col, exists := schema.Column(name)

		if cfg.Kind == fieldconfig.KindJSON {
			if isObjectLike(value) {
				encoded, err := json.Marshal(value)
				if err != nil {
					return fmt.Errorf("%w: field %s: %v", lattice.ErrValidation, name, err)
				}
				record[name] = string(encoded)
			}
			continue
		}

		// Objects landing in plain text columns are serialized as a
		// backward-compatible fallback.
		if exists && col.LatticeType == "string" && isObjectLike(value) {
			encoded, err := json.Marshal(value)
			if err != nil {
				return fmt.Errorf("%w: field %s: %v", lattice.ErrValidation, name, err)
			}
			record[name] = string(encoded)
			continue
		}

		if exists && col.IsTemporal() && isEmptyTemporal(value) {
			record[name] = nil
		}
	}

	return nil
}

// encodePassword hashes a password field with a fresh salt, persisting
// the salt to the configured sibling column. On update an empty password
// means "no change" and the field is removed entirely.
func (c *Codec) encodePassword(name string, cfg fieldconfig.FieldConfig, record map[string]any, isUpdate bool) error {
	value := record[name]
	password, _ := value.(string)

	if password == "" {
		if isUpdate {
			delete(record, name)
			return nil
		}
		return fmt.Errorf("%w: field %s must not be empty", lattice.ErrValidation, name)
	}

	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("%w: salt generation: %v", lattice.ErrStorage, err)
	}

	hash := pbkdf2.Key([]byte(password), salt, c.hashIterations, hashKeyLen, sha256.New)
	record[name] = hex.EncodeToString(hash)

	if cfg.SaltField != "" {
		record[cfg.SaltField] = hex.EncodeToString(salt)
	}

	return nil
}

// VerifyPassword reports whether a password matches a stored hash/salt
// pair produced by EncodeRecord.
func (c *Codec) VerifyPassword(password, hexHash, hexSalt string) bool {
	salt, err := hex.DecodeString(hexSalt)
	if err != nil {
		return false
	}
	hash := pbkdf2.Key([]byte(password), salt, c.hashIterations, hashKeyLen, sha256.New)
	return hex.EncodeToString(hash) == hexHash
}

// DecodeRow converts a row read from the database into response form,
// mutating it in place: driver byte slices become strings, JSON-kind and
// JSON-looking text values are parsed, numeric strings on float columns
// become decimals. Parse failures keep the raw value and continue.
func (c *Codec) DecodeRow(schema lattice.CollectionSchema, cfgs map[string]fieldconfig.FieldConfig, row map[string]any) {
	for name, value := range row {
		if value == nil {
			continue
		}

		col, exists := schema.Column(name)
		cfg := cfgs[name]

		value = normalizeDriverValue(value)
		row[name] = value

		s, isString := value.(string)
		if !isString {
			continue
		}

		if cfg.Kind == fieldconfig.KindJSON || (exists && col.LatticeType == "json") || looksLikeJSON(s) {
			var parsed any
			if err := json.Unmarshal([]byte(s), &parsed); err == nil {
				row[name] = parsed
			}
			continue
		}

		if exists && col.LatticeType == "float" {
			if d, err := decimal.NewFromString(s); err == nil {
				row[name] = d
			}
		}
	}
}

// StripPasswords removes password-kind fields from a response row.
func StripPasswords(cfgs map[string]fieldconfig.FieldConfig, row map[string]any) {
	for name, cfg := range cfgs {
		if cfg.Kind == fieldconfig.KindPassword {
			delete(row, name)
			if cfg.SaltField != "" {
				delete(row, cfg.SaltField)
			}
		}
	}
}

// normalizeDriverValue converts driver-specific scan results to plain Go
// values.
func normalizeDriverValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// looksLikeJSON reports whether a string is shaped like a JSON object or
// array.
func looksLikeJSON(s string) bool {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) < 2 {
		return false
	}
	return (trimmed[0] == '{' && trimmed[len(trimmed)-1] == '}') ||
		(trimmed[0] == '[' && trimmed[len(trimmed)-1] == ']')
}

func isObjectLike(v any) bool {
	switch v.(type) {
	case map[string]any, []any, []map[string]any:
		return true
	default:
		return false
	}
}

// isEmptyTemporal reports whether input for a timestamp/date/time column
// should be coerced to SQL NULL.
func isEmptyTemporal(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
