package jbig2

import (
	"encoding/binary"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Extension types (T.88 7.4.15).
const (
	extensionSingleByteComment = 0x20000000
	extensionMultiByteComment  = 0x20000002
	extensionNecessary         = 0x80000000
)

// Comment is one key/value pair of a comment extension segment.
type Comment struct {
	Key   string
	Value string
}

// errUnknownExtension is returned by parseExtension for an extension that is
// not necessary to decode the page and may be skipped.
var errUnknownExtension = errorf(ErrUnsupported, "unknown extension")

// parseExtension decodes the comments of an extension segment.
func parseExtension(data []byte) ([]Comment, error) {
	if len(data) < 4 {
		return nil, errorf(ErrDataTruncated, "extension segment of %d bytes", len(data))
	}
	typ := binary.BigEndian.Uint32(data)
	switch typ {
	case extensionSingleByteComment:
		return parseComments(data[4:], 1, charmap.ISO8859_1.NewDecoder())
	case extensionMultiByteComment:
		return parseComments(data[4:], 2, unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder())
	}
	if typ&extensionNecessary != 0 {
		return nil, errorf(ErrUnsupported, "necessary extension 0x%08x", typ)
	}
	return nil, errUnknownExtension
}

// parseComments reads pairs of zero-terminated strings of unit-byte
// characters up to an empty key.
func parseComments(data []byte, unit int, dec *encoding.Decoder) ([]Comment, error) {
	next := func() (string, error) {
		for i := 0; i+unit <= len(data); i += unit {
			if !isZero(data[i : i+unit]) {
				continue
			}
			s, err := dec.Bytes(data[:i])
			if err != nil {
				return "", errorf(ErrMalformedHeader, "comment text: %v", err)
			}
			data = data[i+unit:]
			return string(s), nil
		}
		return "", errorf(ErrDataTruncated, "unterminated comment")
	}

	var comments []Comment
	for {
		key, err := next()
		if err != nil {
			return nil, err
		}
		if key == "" {
			break
		}
		value, err := next()
		if err != nil {
			return nil, err
		}
		comments = append(comments, Comment{Key: key, Value: value})
	}
	if len(data) != 0 {
		return nil, errorf(ErrMalformedHeader, "%d bytes after comments", len(data))
	}
	return comments, nil
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// The encoder whose output gets the compatibility allowance of validateGraph
// writes its name as the value of a "Software" comment, optionally followed
// by a version.
const (
	powerJBIG2Key       = "Software"
	powerJBIG2Signature = "Power JBIG2"
)

func hasPowerJBIG2Signature(comments []Comment) bool {
	for _, c := range comments {
		if c.Key != powerJBIG2Key {
			continue
		}
		if c.Value == powerJBIG2Signature || strings.HasPrefix(c.Value, powerJBIG2Signature+" ") {
			return true
		}
	}
	return false
}
