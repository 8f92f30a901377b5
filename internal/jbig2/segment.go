package jbig2

import (
	"bytes"
	"fmt"
)

// SegmentType is the 6-bit segment type of T.88 7.3.
type SegmentType uint8

const (
	SegmentSymbolDict                        SegmentType = 0
	SegmentIntermediateTextRegion            SegmentType = 4
	SegmentImmediateTextRegion               SegmentType = 6
	SegmentImmediateLosslessTextRegion       SegmentType = 7
	SegmentPatternDict                       SegmentType = 16
	SegmentIntermediateHalftoneRegion        SegmentType = 20
	SegmentImmediateHalftoneRegion           SegmentType = 22
	SegmentImmediateLosslessHalftoneRegion   SegmentType = 23
	SegmentIntermediateGenericRegion         SegmentType = 36
	SegmentImmediateGenericRegion            SegmentType = 38
	SegmentImmediateLosslessGenericRegion    SegmentType = 39
	SegmentIntermediateRefinementRegion      SegmentType = 40
	SegmentImmediateRefinementRegion         SegmentType = 42
	SegmentImmediateLosslessRefinementRegion SegmentType = 43
	SegmentPageInfo                          SegmentType = 48
	SegmentEndOfPage                         SegmentType = 49
	SegmentEndOfStripe                       SegmentType = 50
	SegmentEndOfFile                         SegmentType = 51
	SegmentProfiles                          SegmentType = 52
	SegmentTables                            SegmentType = 53
	SegmentColorPalette                      SegmentType = 54
	SegmentExtension                         SegmentType = 62
)

var segmentTypeNames = map[SegmentType]string{
	SegmentSymbolDict:                        "symbol dictionary",
	SegmentIntermediateTextRegion:            "intermediate text region",
	SegmentImmediateTextRegion:               "immediate text region",
	SegmentImmediateLosslessTextRegion:       "immediate lossless text region",
	SegmentPatternDict:                       "pattern dictionary",
	SegmentIntermediateHalftoneRegion:        "intermediate halftone region",
	SegmentImmediateHalftoneRegion:           "immediate halftone region",
	SegmentImmediateLosslessHalftoneRegion:   "immediate lossless halftone region",
	SegmentIntermediateGenericRegion:         "intermediate generic region",
	SegmentImmediateGenericRegion:            "immediate generic region",
	SegmentImmediateLosslessGenericRegion:    "immediate lossless generic region",
	SegmentIntermediateRefinementRegion:      "intermediate refinement region",
	SegmentImmediateRefinementRegion:         "immediate refinement region",
	SegmentImmediateLosslessRefinementRegion: "immediate lossless refinement region",
	SegmentPageInfo:                          "page information",
	SegmentEndOfPage:                         "end of page",
	SegmentEndOfStripe:                       "end of stripe",
	SegmentEndOfFile:                         "end of file",
	SegmentProfiles:                          "profiles",
	SegmentTables:                            "tables",
	SegmentColorPalette:                      "color palette",
	SegmentExtension:                         "extension",
}

func (t SegmentType) String() string {
	if name, ok := segmentTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("reserved(%d)", uint8(t))
}

func (t SegmentType) known() bool {
	_, ok := segmentTypeNames[t]
	return ok
}

func (t SegmentType) isTextRegion() bool {
	return t == SegmentIntermediateTextRegion || t == SegmentImmediateTextRegion || t == SegmentImmediateLosslessTextRegion
}

func (t SegmentType) isHalftoneRegion() bool {
	return t == SegmentIntermediateHalftoneRegion || t == SegmentImmediateHalftoneRegion || t == SegmentImmediateLosslessHalftoneRegion
}

func (t SegmentType) isGenericRegion() bool {
	return t == SegmentIntermediateGenericRegion || t == SegmentImmediateGenericRegion || t == SegmentImmediateLosslessGenericRegion
}

func (t SegmentType) isRefinementRegion() bool {
	return t == SegmentIntermediateRefinementRegion || t == SegmentImmediateRefinementRegion || t == SegmentImmediateLosslessRefinementRegion
}

func (t SegmentType) isRegion() bool {
	return t.isTextRegion() || t.isHalftoneRegion() || t.isGenericRegion() || t.isRefinementRegion()
}

// isIntermediate reports whether a region's result is kept for a later
// refinement instead of being drawn on the page.
func (t SegmentType) isIntermediate() bool {
	switch t {
	case SegmentIntermediateTextRegion, SegmentIntermediateHalftoneRegion,
		SegmentIntermediateGenericRegion, SegmentIntermediateRefinementRegion:
		return true
	}
	return false
}

// SegmentFlags is the segment header flags byte.
type SegmentFlags uint8

const (
	segmentFlagTypeMask              = 0x3f
	segmentFlagPageAssociationSize   = 0x40
	segmentFlagDeferredNonRetainMask = 0x80
)

// Type returns the 6-bit segment type.
func (f SegmentFlags) Type() SegmentType { return SegmentType(f & segmentFlagTypeMask) }

// HasLongPageAssociation indicates whether the page association field is 4 bytes instead of 1.
func (f SegmentFlags) HasLongPageAssociation() bool {
	return f&segmentFlagPageAssociationSize != 0
}

// DeferredNonRetain reports the deferred non-retain bit.
func (f SegmentFlags) DeferredNonRetain() bool {
	return f&segmentFlagDeferredNonRetainMask != 0
}

// Reference is one referred-to segment with its retention flag. A reference
// whose Retain is false is the referent's last use.
type Reference struct {
	Number uint32
	Retain bool
}

// unknownDataLength marks an immediate generic region whose length is found
// by scanning its data.
const unknownDataLength = 0xffffffff

// Segment is a parsed segment header plus its data. Segments are owned by a
// Document; references between them are resolved through the document's
// number index.
type Segment struct {
	Number          uint32
	Flags           SegmentFlags
	Retain          bool
	Refs            []Reference
	PageAssociation uint32
	DataLength      uint32
	Data            []byte
}

// Type returns the segment type.
func (s *Segment) Type() SegmentType { return s.Flags.Type() }

func (s *Segment) String() string {
	return fmt.Sprintf("segment %d (%s)", s.Number, s.Type())
}

// segmentNumberSize returns the width of the referred-to segment numbers of a
// segment numbered number (T.88 7.2.5).
func segmentNumberSize(number uint32) int {
	if number > 65536 {
		return 4
	}
	if number > 256 {
		return 2
	}
	return 1
}

// parseSegmentHeader reads a segment header (T.88 7.2). The data length is
// returned as stored; resolving an unknown length is up to the caller.
func parseSegmentHeader(stream *BitStream) (*Segment, error) {
	seg := &Segment{}
	var err error
	if seg.Number, err = stream.ReadUint32(); err != nil {
		return nil, err
	}
	flags, err := stream.ReadByte()
	if err != nil {
		return nil, err
	}
	seg.Flags = SegmentFlags(flags)
	if !seg.Type().known() {
		return nil, errorf(ErrMalformedHeader, "segment %d has reserved type %d", seg.Number, seg.Type())
	}

	count, retention, err := readReferredToCount(stream)
	if err != nil {
		return nil, err
	}
	if count > stream.BytesLeft() {
		return nil, errorf(ErrDataTruncated, "segment %d refers to %d segments", seg.Number, count)
	}
	seg.Retain = retention(0)
	seg.Refs = make([]Reference, count)
	size := segmentNumberSize(seg.Number)
	for i := range seg.Refs {
		var ref uint32
		switch size {
		case 1:
			b, err := stream.ReadByte()
			if err != nil {
				return nil, err
			}
			ref = uint32(b)
		case 2:
			v, err := stream.ReadUint16()
			if err != nil {
				return nil, err
			}
			ref = uint32(v)
		default:
			if ref, err = stream.ReadUint32(); err != nil {
				return nil, err
			}
		}
		seg.Refs[i] = Reference{Number: ref, Retain: retention(uint32(i) + 1)}
	}

	if seg.Flags.HasLongPageAssociation() {
		seg.PageAssociation, err = stream.ReadUint32()
	} else {
		var b byte
		b, err = stream.ReadByte()
		seg.PageAssociation = uint32(b)
	}
	if err != nil {
		return nil, err
	}
	if seg.DataLength, err = stream.ReadUint32(); err != nil {
		return nil, err
	}
	if seg.DataLength == unknownDataLength && seg.Type() != SegmentImmediateGenericRegion {
		return nil, errorf(ErrMalformedHeader, "%v has unknown data length", seg)
	}
	return seg, nil
}

// readReferredToCount reads the referred-to segment count and retention
// flags (T.88 7.2.4). retention(0) is the segment's own flag, retention(i)
// the flag of its i-th reference.
func readReferredToCount(stream *BitStream) (uint32, func(uint32) bool, error) {
	first, err := stream.ReadByte()
	if err != nil {
		return 0, nil, err
	}
	count := uint32(first >> 5)
	switch count {
	case 5, 6:
		return 0, nil, errorf(ErrMalformedHeader, "referred-to segment count %d", count)
	case 7:
	default:
		bits := first & 0x1f
		return count, func(i uint32) bool { return i < 5 && bits>>i&1 != 0 }, nil
	}

	// Long form: 29-bit count then one retention bit per segment.
	rest, err := stream.ReadNBits(24)
	if err != nil {
		return 0, nil, err
	}
	count = (uint32(first)<<24 | rest) & 0x1fffffff
	n := (count + 8) / 8
	if n > stream.BytesLeft() {
		return 0, nil, errorf(ErrDataTruncated, "%d retention bytes", n)
	}
	bits := stream.Pointer()[:n]
	stream.AddOffset(n)
	return count, func(i uint32) bool { return bits[i/8]>>(i%8)&1 != 0 }, nil
}

var (
	arithEndMarker = []byte{0xff, 0xac}
	mmrEndMarker   = []byte{0x00, 0x00}
)

// scanGenericRegionLength finds the data length of an immediate generic region
// stored with an unknown length (T.88 7.2.7): the data ends with an end
// marker, chosen by the MMR bit of the region flags, and a 4-byte row count.
func scanGenericRegionLength(data []byte) (uint32, error) {
	const headerSize = regionInfoSize + 2
	if len(data) < headerSize+4 {
		return 0, errorf(ErrDataTruncated, "generic region of unknown length is %d bytes", len(data))
	}
	marker := arithEndMarker
	if data[regionInfoSize]&1 != 0 {
		marker = mmrEndMarker
	}
	idx := bytes.Index(data[headerSize:len(data)-4], marker)
	if idx < 0 {
		return 0, errorf(ErrDataTruncated, "no end marker in generic region of unknown length")
	}
	return uint32(headerSize + idx + len(marker) + 4), nil
}
