package intent

import "errors"

// Sentinel errors for bundle validation and dependency checking.
var (
	// ErrNoManifest indicates no intents.toml was found in the bundle directory.
	ErrNoManifest = errors.New("intents.toml not found in bundle directory")
	// ErrDuplicateID indicates two or more intents share the same ID.
	ErrDuplicateID = errors.New("duplicate intent ID")
	// ErrDependencyCycle indicates a circular dependency among intents.
	ErrDependencyCycle = errors.New("dependency cycle detected")
	// ErrUnknownDep indicates an intent depends on an intent ID that does not exist.
	ErrUnknownDep = errors.New("intent depends on unknown intent ID")
	// ErrMissingField indicates a required field (e.g. id, title) is empty.
	ErrMissingField = errors.New("required field missing")
	// ErrUnknownComplexity indicates a complexity value outside the known tiers.
	ErrUnknownComplexity = errors.New("unknown complexity tier")
)

// ValidationCategory classifies a validation error for programmatic handling.
type ValidationCategory string

const (
	// ValCatMissingField indicates a required field is empty.
	ValCatMissingField ValidationCategory = "missing_field"
	// ValCatDuplicateID indicates two or more intents share the same ID.
	ValCatDuplicateID ValidationCategory = "duplicate_id"
	// ValCatUnknownDep indicates a dependency references a non-existent intent.
	ValCatUnknownDep ValidationCategory = "unknown_dep"
	// ValCatCycle indicates a circular dependency among intents.
	ValCatCycle ValidationCategory = "cycle"
	// ValCatUnknownComplexity indicates an unrecognized complexity tier.
	ValCatUnknownComplexity ValidationCategory = "unknown_complexity"
	// ValCatBoundsViolation indicates a numeric field is out of valid range.
	ValCatBoundsViolation ValidationCategory = "bounds_violation"
)

// ValidationError records a validation problem with source context.
type ValidationError struct {
	Category   ValidationCategory // Machine-readable category for programmatic handling
	IntentID   string
	SourceFile string
	Field      string
	Err        error
}

// Error returns a human-readable string including source file and intent context.
func (e *ValidationError) Error() string {
	if e.IntentID != "" {
		return e.SourceFile + ": intent " + e.IntentID + ": " + e.Err.Error()
	}
	return e.SourceFile + ": " + e.Err.Error()
}

// Unwrap returns the underlying error for use with errors.Is/As.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
