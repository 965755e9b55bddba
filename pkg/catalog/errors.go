package catalog

// StoreError represents a domain error from catalog store operations.
//
// These are business logic errors (record not found, invalid transition) as
// opposed to infrastructure errors (disk failure, corrupted database), which
// implementations wrap and surface as plain errors.
type StoreError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// RecordID is the record related to the error (if applicable)
	RecordID string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.RecordID != "" {
		return e.Message + ": " + e.RecordID
	}
	return e.Message
}

// ErrorCode represents the category of a catalog store error.
type ErrorCode int

const (
	// ErrNotFound indicates the requested record doesn't exist
	ErrNotFound ErrorCode = iota

	// ErrAlreadyExists indicates a record with the same ID already exists
	ErrAlreadyExists

	// ErrAlreadyCleaned indicates CleanupMeta was already written for this
	// record. Writing cleanup metadata twice would hide a double-deletion
	// bug, so stores reject it instead of overwriting.
	ErrAlreadyCleaned

	// ErrInvalidTransition indicates a status change that would move a
	// record backwards (for example out of StatusDeleted)
	ErrInvalidTransition

	// ErrInvalidArgument indicates invalid parameters were provided
	ErrInvalidArgument
)

// NewNotFound builds the canonical not-found error for a record ID.
func NewNotFound(id string) *StoreError {
	return &StoreError{Code: ErrNotFound, Message: "record not found", RecordID: id}
}
