package types

import (
	"errors"
	"fmt"
)

// ErrEmptyImage is reported when a source image has no pixels.
var ErrEmptyImage = errors.New("image has zero width or height")

// ErrImageTooLarge is reported when a source image exceeds MaxSourcePixels.
var ErrImageTooLarge = errors.New("image dimensions exceed limit")

// DecodeError reports a source image that could not be read.
// It is the only failure of the layout engine and is never retried.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("decode %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// NewDecodeError wraps err as a DecodeError for the named source.
func NewDecodeError(source string, err error) error {
	if err == nil {
		return nil
	}
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}
	return &DecodeError{Source: source, Err: err}
}

// IsDecodeError reports whether err is or wraps a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
