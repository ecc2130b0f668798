package dfs

import "errors"

// Fatal conditions that abort a run before any output is produced. Callers
// wrap them with context and match with errors.Is.
var (
	// ErrInvalidData: an empty player set or a matchup file without the
	// required columns.
	ErrInvalidData = errors.New("invalid data")

	// ErrSchema: a salary file without the required columns.
	ErrSchema = errors.New("schema error")

	// ErrInvalidParameter: a lineup size or salary cap the optimizer cannot
	// honor.
	ErrInvalidParameter = errors.New("invalid parameter")
)
