// Package identifier produces primary keys, UUIDs, prefixed business
// identifiers (AIDs) and lifecycle timestamps for new rows. Generation is
// deterministic given the column name: it consults nothing beyond a
// random source and a clock.
package identifier

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	lattice "github.com/lattice-hq/lattice"
)

// aidAlphabet is the base36 alphabet used for AID tokens.
const aidAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// aidLength is the random suffix length of a generated AID.
const aidLength = 14

// genericAIDPrefix is used when the column name gives no prefix letter.
const genericAIDPrefix = "a"

// Generator fills identifier-shaped columns of new rows.
type Generator struct {
	now func() time.Time
}

// New creates a generator backed by the system clock.
func New() *Generator {
	return &Generator{now: time.Now}
}

// NewWithClock creates a generator with a fixed clock, for tests.
func NewWithClock(now func() time.Time) *Generator {
	return &Generator{now: now}
}

// Apply generates values for every identifier-shaped column the record
// does not already supply, mutating record in place. It returns the names
// of the generated fields in column order. Auto-incrementing primary keys
// are left to the database.
func (g *Generator) Apply(schema lattice.CollectionSchema, record map[string]any) []string {
	var generated []string

	for _, col := range schema.Columns {
		if col.Virtual {
			continue
		}
		if existing, ok := record[col.Name]; ok && !isEmptyValue(existing) {
			continue
		}

		value, ok := g.valueFor(col)
		if !ok {
			continue
		}

		record[col.Name] = value
		generated = append(generated, col.Name)
	}

	return generated
}

// valueFor decides whether and how a column gets a generated value.
func (g *Generator) valueFor(col lattice.ColumnInfo) (any, bool) {
	if col.IsPrimaryKey && col.AutoIncrement {
		return nil, false
	}

	name := strings.ToLower(col.Name)
	switch {
	case name == "uuid":
		return uuid.NewString(), true
	case strings.HasSuffix(name, "aid"):
		return g.aid(name), true
	case name == "created_at" || name == "updated_at":
		return g.Timestamp(), true
	case name == "deleted_at":
		return nil, true
	}

	return nil, false
}

// Timestamp returns the current time in ISO-8601 form.
func (g *Generator) Timestamp() string {
	return g.now().UTC().Format(time.RFC3339)
}

// UUID returns a random UUID string.
func (g *Generator) UUID() string {
	return uuid.NewString()
}

// aid builds a prefixed business identifier. Four-letter column names use
// their first letter as the prefix (haid -> h...), everything else falls
// back to the generic prefix.
func (g *Generator) aid(columnName string) string {
	prefix := genericAIDPrefix
	if len(columnName) == 4 {
		prefix = columnName[:1]
	}
	return prefix + randomToken(aidLength)
}

// AID exposes AID generation for callers minting identifiers outside the
// create path.
func (g *Generator) AID(columnName string) string {
	return g.aid(strings.ToLower(columnName))
}

func randomToken(length int) string {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; fall back to a
		// UUID-derived token rather than returning an empty identifier.
		return strings.ReplaceAll(uuid.NewString(), "-", "")[:length]
	}
	for i, b := range buf {
		buf[i] = aidAlphabet[int(b)%len(aidAlphabet)]
	}
	return string(buf)
}

func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
