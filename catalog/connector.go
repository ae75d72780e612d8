package catalog

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver (database/sql name "pgx")
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	lattice "github.com/lattice-hq/lattice"
)

// ConnectionPoolSettings defines database connection pool configuration
type ConnectionPoolSettings struct {
	MaxOpenConns    int // Maximum number of open connections
	MaxIdleConns    int // Maximum number of idle connections
	ConnMaxLifetime int // Maximum lifetime of connections in seconds
}

// Connector opens pooled database handles from connection URLs. The
// returned *sql.DB is the engine's only shared resource and is safe for
// concurrent use.
type Connector struct {
	poolSettings ConnectionPoolSettings
}

// NewConnector creates a new database connector with default settings
func NewConnector() *Connector {
	return &Connector{
		poolSettings: ConnectionPoolSettings{
			MaxOpenConns:    25,
			MaxIdleConns:    25,
			ConnMaxLifetime: 300, // 5 minutes
		},
	}
}

// SetPoolSettings configures connection pool settings
func (c *Connector) SetPoolSettings(settings ConnectionPoolSettings) {
	c.poolSettings = settings
}

// ParseDatabaseURL extracts the dialect from a connection URL
func (c *Connector) ParseDatabaseURL(databaseURL string) (lattice.Dialect, error) {
	if databaseURL == "" {
		return "", lattice.ErrEmptyDatabaseURL
	}

	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", lattice.ErrInvalidDatabaseURL
	}

	dialect, ok := lattice.ParseDialect(u.Scheme)
	if !ok {
		return "", fmt.Errorf("%w: %q", lattice.ErrUnsupportedDialect, u.Scheme)
	}
	return dialect, nil
}

// Connect establishes a pooled database connection
func (c *Connector) Connect(databaseURL string) (*sql.DB, lattice.Dialect, error) {
	dialect, err := c.ParseDatabaseURL(databaseURL)
	if err != nil {
		return nil, "", err
	}

	connStr, err := c.convertToDriverString(databaseURL, dialect)
	if err != nil {
		return nil, "", err
	}

	db, err := sql.Open(dialect.DriverName(), connStr)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", lattice.ErrStorage, err)
	}

	db.SetMaxOpenConns(c.poolSettings.MaxOpenConns)
	db.SetMaxIdleConns(c.poolSettings.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(c.poolSettings.ConnMaxLifetime) * time.Second)

	return db, dialect, nil
}

// convertToDriverString rewrites a URL into the driver-specific format.
func (c *Connector) convertToDriverString(databaseURL string, dialect lattice.Dialect) (string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", lattice.ErrInvalidDatabaseURL
	}

	switch dialect {
	case lattice.DialectPostgres:
		// pgx accepts standard PostgreSQL URLs as-is
		return databaseURL, nil

	case lattice.DialectMySQL:
		// Convert to go-sql-driver/mysql DSN format
		connStr := ""
		if u.User != nil {
			connStr += u.User.Username()
			if password, ok := u.User.Password(); ok {
				connStr += ":" + password
			}
			connStr += "@"
		}
		if u.Host != "" {
			connStr += "tcp(" + u.Host + ")"
		}
		connStr += "/" + strings.TrimPrefix(u.Path, "/")
		if u.RawQuery != "" {
			connStr += "?" + u.RawQuery
		}
		return connStr, nil

	case lattice.DialectSQLite:
		// SQLite uses the file path directly
		if u.Host == "" {
			return u.Path, nil
		}
		return u.Host + u.Path, nil

	default:
		return "", fmt.Errorf("%w: %q", lattice.ErrUnsupportedDialect, dialect)
	}
}
