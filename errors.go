package lattice

import "errors"

// Common errors used throughout the Lattice package
var (
	// ErrInvalidCollection is returned when a collection name is unknown or
	// not present in the configured allow-list.
	// Collection errors
	ErrInvalidCollection = errors.New("collection is not allowed")
	// ErrCollectionNotFound indicates the named table has no columns in the
	// database catalog, i.e. it does not exist.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrRowNotFound indicates a row lookup by primary key matched nothing.
	ErrRowNotFound = errors.New("row not found")

	// ErrValidation is returned when input fails a field-level check such as
	// email shape or password policy, before any write is attempted.
	// Input errors
	ErrValidation = errors.New("validation failed")
	// ErrUnknownOperator indicates a filter operator outside the allow-list.
	ErrUnknownOperator = errors.New("unknown filter operator")
	// ErrEmptyInput is returned when a create or update carries no
	// persistable fields after hooks and codec processing.
	ErrEmptyInput = errors.New("no persistable fields in input")

	// ErrStorage wraps any database driver failure during query execution.
	// The underlying driver message is preserved for diagnostics.
	// Storage errors
	ErrStorage = errors.New("storage operation failed")
	// ErrRelationSync indicates a relation synchronization failure. It is
	// logged by the engine and never fails the parent write.
	ErrRelationSync = errors.New("relation synchronization failed")

	// ErrConfigValidation is returned when configuration validation fails.
	// Configuration errors
	ErrConfigValidation = errors.New("configuration validation failed")
	// ErrUnsupportedDialect indicates a database dialect outside
	// postgres/mysql/sqlite.
	ErrUnsupportedDialect = errors.New("unsupported database dialect")
	// ErrEmptyDatabaseURL indicates the connection string was empty.
	ErrEmptyDatabaseURL = errors.New("database URL cannot be empty")
	// ErrInvalidDatabaseURL indicates the connection string could not be parsed.
	ErrInvalidDatabaseURL = errors.New("invalid database URL")

	// ErrHookFailed wraps an error raised by a beforeChange or beforeSave
	// hook; the whole operation is aborted with the hook's reason.
	// Hook errors
	ErrHookFailed = errors.New("field hook failed")
	// ErrBadHookExpression indicates a declarative hook expression did not
	// compile.
	ErrBadHookExpression = errors.New("invalid hook expression")
)
