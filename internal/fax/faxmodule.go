// Package fax decodes the MMR (ITU-T T.6, CCITT Group 4) coded bitmaps
// embedded in JBIG2 regions and dictionaries.
package fax

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"golang.org/x/image/ccitt"
)

// ErrShortImage is returned when the coded data ends before the last row.
var ErrShortImage = errors.New("fax: coded data ends before the last row")

// RowBytes returns the packed size of one row of the given width.
func RowBytes(width int) int { return (width + 7) / 8 }

// DecodeG4 decodes a width x height MMR bitmap starting at data[0]. The
// result holds height rows of RowBytes(width) bytes, MSB first, 1 = black.
// Bytes after the last row are ignored.
func DecodeG4(data []byte, width, height int) ([]byte, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("fax: invalid size %dx%d", width, height)
	}
	out := make([]byte, RowBytes(width)*height)
	if len(out) == 0 {
		return out, nil
	}

	src := bytes.NewReader(data)
	r := ccitt.NewReader(src, ccitt.MSB, ccitt.Group4, width, height, &ccitt.Options{Invert: true})
	n, err := io.ReadFull(r, out)
	switch {
	case err == nil:
		return out, nil
	case src.Len() == 0:
		// The coder fails with an incomplete code, not EOF, once the input
		// runs out.
		return nil, fmt.Errorf("%w: got %d of %d bytes: %v", ErrShortImage, n, len(out), err)
	default:
		return nil, fmt.Errorf("fax: row %d: %w", n/RowBytes(width), err)
	}
}
