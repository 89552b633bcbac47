package domain

import "github.com/cockroachdb/errors"

var (
	ErrValidation           = errors.New("validation error")
	ErrInvalidState         = errors.New("invalid state")
	ErrNotFound             = errors.New("not found")
	ErrStorage              = errors.New("storage error")
	ErrConflict             = errors.New("conflict")
	ErrSerializationFailure = errors.New("serialization failure")
)

// ValidationErrorf returns an error matching ErrValidation.
func ValidationErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrValidation)
}

// InvalidStateErrorf returns an error matching ErrInvalidState.
func InvalidStateErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidState)
}

// NotFoundErrorf returns an error matching ErrNotFound.
func NotFoundErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrNotFound)
}

// StorageError wraps a persistence failure so that it matches ErrStorage.
// Errors that already carry a domain meaning (not found, conflict) pass through.
func StorageError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrStorage) {
		return err
	}
	return errors.Mark(errors.Wrap(err, op), ErrStorage)
}
