package permanent

import "errors"

// Error tags a failure that retrying cannot fix.
// Params: wrapped root cause.
// Returns: typed non-retryable marker.
type Error struct {
	Err error
}

// Error returns the wrapped error message.
// Params: none.
// Returns: string representation.
func (e Error) Error() string {
	if e.Err == nil {
		return "permanent error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
// Params: none.
// Returns: wrapped error.
func (e Error) Unwrap() error {
	return e.Err
}

// Permanent marks the error as non-retryable.
// Params: none.
// Returns: true.
func (Error) Permanent() bool {
	return true
}

// Mark wraps an error with the permanent marker.
// Params: source error.
// Returns: wrapped error or nil.
func Mark(err error) error {
	if err == nil {
		return nil
	}
	return Error{Err: err}
}

// MarkIfClientStatus marks errors caused by 4xx responses as permanent,
// except 408 and 429 which remain retryable.
// Params: source error and HTTP status code.
// Returns: possibly marked error.
func MarkIfClientStatus(err error, status int) error {
	if err == nil {
		return nil
	}
	if status >= 400 && status < 500 && status != 408 && status != 429 {
		return Mark(err)
	}
	return err
}

// Is reports whether the error carries the permanent marker.
// Params: candidate error.
// Returns: true when a non-retryable marker is present.
func Is(err error) bool {
	if err == nil {
		return false
	}
	type marker interface {
		Permanent() bool
	}
	var tagged marker
	if !errors.As(err, &tagged) {
		return false
	}
	return tagged.Permanent()
}
