package lattice

import (
	"fmt"
	"os"
	"regexp"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Config represents the Lattice configuration
type Config struct {
	Dialect     string              `yaml:"dialect"`
	Databases   map[string]Database `yaml:"databases"`
	Collections CollectionsConfig   `yaml:"collections"`
	Engine      EngineConfig        `yaml:"engine"`
	FieldFiles  []string            `yaml:"field_files"` // YAML field configuration files
}

// Database represents database connection configuration
type Database struct {
	Driver     string `yaml:"driver"`
	Connection string `yaml:"connection"`
	Schema     string `yaml:"schema"`
	Database   string `yaml:"database"`
}

// CollectionsConfig is the allow-list of collections the engine may
// touch, grouped by domain category. Only listed names may be queried.
type CollectionsConfig struct {
	Groups map[string][]string `yaml:"groups"`
}

// Allowed reports whether the collection name appears in any group.
func (c CollectionsConfig) Allowed(name string) bool {
	for _, names := range c.Groups {
		for _, n := range names {
			if n == name {
				return true
			}
		}
	}
	return false
}

// All returns every allow-listed collection name, group order unspecified.
func (c CollectionsConfig) All() []string {
	var all []string
	for _, names := range c.Groups {
		all = append(all, names...)
	}
	return all
}

// EngineConfig represents engine tuning settings
type EngineConfig struct {
	DefaultPageSize  int    `yaml:"default_page_size"` // Page size when the caller passes none
	MaxPageSize      int    `yaml:"max_page_size"`     // Hard cap on caller page sizes
	VirtualWorkers   int    `yaml:"virtual_workers"`   // Bounded concurrency for virtual field computation
	CatalogCacheTTL  string `yaml:"catalog_cache_ttl"` // Empty disables the catalog cache
	DefaultLocale    string `yaml:"default_locale"`    // Locale for i18n-aware sorting
	SearchTermLimit  int    `yaml:"search_term_limit"` // Max terms accepted per search group
	PasswordHashIter int    `yaml:"password_hash_iterations"`
}

// LoadConfig loads a configuration file, applying defaults, validation
// and environment variable expansion. A missing file yields the default
// configuration.
func LoadConfig(configPath string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("failed to load environment files: %w", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := getDefaultConfig()
		expandConfigEnvVars(config)

		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML with strict mode to detect unknown fields
	var config Config

	err = yaml.UnmarshalWithOptions(data, &config, yaml.Strict())
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigValidation, err)
	}

	applyDefaults(&config)
	expandConfigEnvVars(&config)

	return &config, nil
}

func getDefaultConfig() *Config {
	config := &Config{
		Dialect: string(DialectSQLite),
		Databases: map[string]Database{
			"development": {
				Driver:     "sqlite3",
				Connection: "./lattice.db",
			},
		},
	}
	applyDefaults(config)

	return config
}

func validateConfig(config *Config) error {
	if config.Dialect != "" {
		if _, ok := ParseDialect(config.Dialect); !ok {
			return fmt.Errorf("%w: %q", ErrUnsupportedDialect, config.Dialect)
		}
	}

	for name, db := range config.Databases {
		if db.Connection == "" {
			return fmt.Errorf("database %q has no connection string", name)
		}
	}

	if config.Engine.DefaultPageSize < 0 || config.Engine.MaxPageSize < 0 {
		return fmt.Errorf("page sizes must not be negative")
	}

	return nil
}

func applyDefaults(config *Config) {
	if config.Dialect == "" {
		config.Dialect = string(DialectSQLite)
	}

	if config.Engine.DefaultPageSize == 0 {
		config.Engine.DefaultPageSize = 20
	}

	if config.Engine.MaxPageSize == 0 {
		config.Engine.MaxPageSize = 500
	}

	if config.Engine.VirtualWorkers == 0 {
		config.Engine.VirtualWorkers = 8
	}

	if config.Engine.DefaultLocale == "" {
		config.Engine.DefaultLocale = "en"
	}

	if config.Engine.PasswordHashIter == 0 {
		config.Engine.PasswordHashIter = 210000
	}
}

// loadEnvFiles loads .env files if they exist
func loadEnvFiles() error {
	if fileExists(".env") {
		err := godotenv.Load(".env")
		if err != nil {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or $VAR
func expandEnvVars(s string) string {
	re1 := regexp.MustCompile(`\$\{([^}]+)\}`)
	s = re1.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})

	re2 := regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	s = re2.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[1:]
		return os.Getenv(varName)
	})

	return s
}

// expandConfigEnvVars recursively expands environment variables in config
func expandConfigEnvVars(config *Config) {
	for name, db := range config.Databases {
		db.Connection = expandEnvVars(db.Connection)
		db.Driver = expandEnvVars(db.Driver)
		db.Schema = expandEnvVars(db.Schema)
		db.Database = expandEnvVars(db.Database)
		config.Databases[name] = db
	}

	for i, file := range config.FieldFiles {
		config.FieldFiles[i] = expandEnvVars(file)
	}
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
