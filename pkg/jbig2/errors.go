package jbig2

import "github.com/pagebits/jbig2/internal/jbig2"

// Error categories. Every decode error wraps one of these; test with
// errors.Is.
var (
	ErrMalformedHeader     = jbig2.ErrMalformedHeader
	ErrSegmentGraphInvalid = jbig2.ErrSegmentGraphInvalid
	ErrUnsupported         = jbig2.ErrUnsupported
	ErrDataTruncated       = jbig2.ErrDataTruncated
	ErrValueOutOfRange     = jbig2.ErrValueOutOfRange
	ErrDecodeFailure       = jbig2.ErrDecodeFailure
)
