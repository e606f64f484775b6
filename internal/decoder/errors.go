package decoder

import (
	"github.com/cockroachdb/errors"
)

// Decode error taxonomy. Errors returned by this package are marked with
// exactly one of these, so callers match them with errors.Is.
var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrCorruptStream     = errors.New("corrupt stream")
	ErrIOFailure         = errors.New("i/o failure")
	ErrSeekOutOfRange    = errors.New("seek out of range")
)

// ErrorKind names a decode error class for notifications.
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindUnsupportedFormat ErrorKind = "UnsupportedFormat"
	KindCorruptStream     ErrorKind = "CorruptStream"
	KindIOFailure         ErrorKind = "IoFailure"
	KindSeekOutOfRange    ErrorKind = "SeekOutOfRange"
)

// Kind classifies err. Unmarked errors are reported as corrupt streams.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrUnsupportedFormat):
		return KindUnsupportedFormat
	case errors.Is(err, ErrIOFailure):
		return KindIOFailure
	case errors.Is(err, ErrSeekOutOfRange):
		return KindSeekOutOfRange
	default:
		return KindCorruptStream
	}
}

func unsupported(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrUnsupportedFormat)
}

func corrupt(err error, msg string) error {
	return errors.Mark(errors.Wrap(err, msg), ErrCorruptStream)
}

func ioFailure(err error, msg string) error {
	return errors.Mark(errors.Wrap(err, msg), ErrIOFailure)
}
