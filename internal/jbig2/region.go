package jbig2

import "math"

// regionInfoSize is the size of the region segment information field.
const regionInfoSize = 17

// RegionInfo is the region segment information field (T.88 7.4.1).
type RegionInfo struct {
	Width  uint32
	Height uint32
	X      uint32
	Y      uint32
	Op     ComposeOp
}

// parseRegionInfo reads the region segment information field. Colour
// extension regions are not supported.
func parseRegionInfo(stream *BitStream) (RegionInfo, error) {
	var ri RegionInfo
	var err error
	if ri.Width, err = stream.ReadUint32(); err != nil {
		return ri, err
	}
	if ri.Height, err = stream.ReadUint32(); err != nil {
		return ri, err
	}
	if ri.X, err = stream.ReadUint32(); err != nil {
		return ri, err
	}
	if ri.Y, err = stream.ReadUint32(); err != nil {
		return ri, err
	}
	flags, err := stream.ReadByte()
	if err != nil {
		return ri, err
	}
	if flags&0xf0 != 0 {
		return ri, errorf(ErrMalformedHeader, "region flags 0x%02x", flags)
	}
	if flags&0x07 > uint8(ComposeReplace) {
		return ri, errorf(ErrMalformedHeader, "region combination operator %d", flags&0x07)
	}
	if flags&0x08 != 0 {
		return ri, errorf(ErrUnsupported, "colour extension region")
	}
	ri.Op = ComposeOp(flags & 0x07)
	// A height of 0xFFFFFFFF is resolved later from the row count of a
	// generic region of unknown length.
	if ri.Width > math.MaxInt32 || ri.X > math.MaxInt32 || ri.Y > math.MaxInt32 ||
		(ri.Height > math.MaxInt32 && ri.Height != unknownHeight) {
		return ri, errorf(ErrValueOutOfRange, "region %dx%d at (%d, %d)", ri.Width, ri.Height, ri.X, ri.Y)
	}
	return ri, nil
}

// RegionBitmap is the result of an intermediate region segment: the decoded
// bitmap and where it belongs on the page.
type RegionBitmap struct {
	Info  RegionInfo
	Image *Image
}
