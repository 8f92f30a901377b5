package jbig2

import "bytes"

var jbig2FileSignature = []byte{0x97, 0x4a, 0x42, 0x32, 0x0d, 0x0a, 0x1a, 0x0a}

// Organization is the order in which segment headers and data are stored.
type Organization uint8

const (
	// OrganizationRandomAccess stores every segment header before the data.
	OrganizationRandomAccess Organization = iota
	// OrganizationSequential stores each header followed by its data.
	OrganizationSequential
	// OrganizationEmbedded is a headerless sequential stream, as embedded in
	// PDF. Segment numbers need not increase.
	OrganizationEmbedded
)

func (o Organization) String() string {
	switch o {
	case OrganizationRandomAccess:
		return "random-access"
	case OrganizationSequential:
		return "sequential"
	case OrganizationEmbedded:
		return "embedded"
	}
	return "invalid"
}

// FileHeader is the JBIG2 file header (T.88 D.4).
type FileHeader struct {
	Organization Organization
	// NumPages is valid when PagesKnown is set.
	NumPages       uint32
	PagesKnown     bool
	ExtTemplates   bool
	ColourSegments bool
}

// HasFileSignature reports whether data starts with the JBIG2 file ID string.
func HasFileSignature(data []byte) bool {
	return bytes.HasPrefix(data, jbig2FileSignature)
}

// parseFileHeader parses the file header and returns it with the rest of the
// file.
func parseFileHeader(data []byte) (*FileHeader, []byte, error) {
	if !HasFileSignature(data) {
		return nil, nil, errorf(ErrMalformedHeader, "missing file signature")
	}
	stream := NewBitStream(data[len(jbig2FileSignature):])
	flags, err := stream.ReadByte()
	if err != nil {
		return nil, nil, err
	}
	if flags&0xf0 != 0 {
		return nil, nil, errorf(ErrMalformedHeader, "file header flags 0x%02x", flags)
	}
	header := &FileHeader{
		Organization:   OrganizationRandomAccess,
		PagesKnown:     flags&0x02 == 0,
		ExtTemplates:   flags&0x04 != 0,
		ColourSegments: flags&0x08 != 0,
	}
	if flags&0x01 != 0 {
		header.Organization = OrganizationSequential
	}
	if header.PagesKnown {
		if header.NumPages, err = stream.ReadUint32(); err != nil {
			return nil, nil, err
		}
	}
	return header, stream.Pointer(), nil
}
