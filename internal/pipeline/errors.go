package pipeline

import "errors"

// Input errors. Apart from ErrScanInterrupted they are the only errors Scan
// returns; every other failure is folded into the report.
var (
	// ErrEmptyHost is returned when the target host is empty after trimming.
	ErrEmptyHost = errors.New("host is required")

	// ErrInvalidHost is returned when the host validator rejects the target.
	ErrInvalidHost = errors.New("invalid host")
)

// ErrScanInterrupted is returned when the scan context ends before every
// service was classified. No partial report is returned.
var ErrScanInterrupted = errors.New("scan interrupted")

// IsInputError reports whether err was caused by the caller's input.
// HTTP callers map it to 400 Bad Request.
func IsInputError(err error) bool {
	return errors.Is(err, ErrEmptyHost) || errors.Is(err, ErrInvalidHost)
}
