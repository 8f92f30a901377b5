package jbig2

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by the decoder wraps exactly one of
// these, so callers can classify failures with errors.Is.
var (
	ErrMalformedHeader     = errors.New("jbig2: malformed header")
	ErrSegmentGraphInvalid = errors.New("jbig2: invalid segment graph")
	ErrUnsupported         = errors.New("jbig2: unknown or unsupported feature")
	ErrDataTruncated       = errors.New("jbig2: data truncated")
	ErrValueOutOfRange     = errors.New("jbig2: decoded value out of range")
	ErrDecodeFailure       = errors.New("jbig2: arithmetic or huffman decode failure")
)

// Specific failures, each wrapping its category.
var (
	ErrUnexpectedOOB           = fmt.Errorf("%w: unexpected OOB", ErrDecodeFailure)
	ErrInvalidHuffmanCode      = fmt.Errorf("%w: invalid huffman code", ErrDecodeFailure)
	ErrInvalidAdaptiveTemplate = fmt.Errorf("%w: invalid adaptive template pixel", ErrMalformedHeader)
	ErrExportCountMismatch     = fmt.Errorf("%w: export count mismatch", ErrMalformedHeader)
	ErrDataTooShort            = fmt.Errorf("%w: data too short", ErrDataTruncated)
)

func errorf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{kind}, args...)...)
}
