package scandoc

import "github.com/pkg/errors"

var (
	// ErrBackendUnavailable means a backend's runtime dependency is missing.
	// The selector falls back; it never fails a job.
	ErrBackendUnavailable = errors.New("table backend unavailable")

	// ErrBackendExtraction means a backend failed while extracting a page.
	// The adapter turns it into an empty candidate list.
	ErrBackendExtraction = errors.New("table backend extraction failed")

	// ErrOCRFailure means the OCR engine could not produce a searchable PDF.
	// Fatal to the conversion job.
	ErrOCRFailure = errors.New("ocr failed")

	// ErrEmitFailure means the output document could not be written.
	// Fatal to the conversion job.
	ErrEmitFailure = errors.New("emit failed")

	// ErrUnsupportedInput is returned for input files of an unknown type.
	ErrUnsupportedInput = errors.New("unsupported input file type")
)

// markf wraps err with a sentinel and a formatted message so callers can
// classify it with errors.Is and still read the underlying cause.
func markf(sentinel, err error, format string, args ...interface{}) error {
	if err == nil {
		return errors.Wrapf(sentinel, format, args...)
	}
	return &markedError{sentinel: sentinel, cause: errors.Wrapf(err, format, args...)}
}

type markedError struct {
	sentinel error
	cause    error
}

func (e *markedError) Error() string {
	return e.sentinel.Error() + ": " + e.cause.Error()
}

func (e *markedError) Is(target error) bool {
	return target == e.sentinel
}

func (e *markedError) Unwrap() error {
	return e.cause
}

// Cause lets github.com/pkg/errors.Cause reach the wrapped error.
func (e *markedError) Cause() error {
	return e.cause
}
