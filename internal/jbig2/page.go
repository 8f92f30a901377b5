package jbig2

import "math"

// unknownHeight is the page height of a striped page whose final height is
// set by its end of stripe segments.
const unknownHeight = ^uint32(0)

// pageInfoSize is the size of a page information segment.
const pageInfoSize = 19

// PageInfo is the page information segment (T.88 7.4.8).
type PageInfo struct {
	Width         uint32
	Height        uint32
	ResolutionX   uint32
	ResolutionY   uint32
	Lossless      bool
	DefaultPixel  bool
	DefaultOp     ComposeOp
	OpOverride    bool
	Striped       bool
	MaxStripeSize uint16
}

func parsePageInfo(data []byte) (*PageInfo, error) {
	if len(data) != pageInfoSize {
		return nil, errorf(ErrMalformedHeader, "page information segment of %d bytes", len(data))
	}
	stream := NewBitStream(data)
	info := &PageInfo{}
	info.Width, _ = stream.ReadUint32()
	info.Height, _ = stream.ReadUint32()
	info.ResolutionX, _ = stream.ReadUint32()
	info.ResolutionY, _ = stream.ReadUint32()
	flags, _ := stream.ReadByte()
	striping, _ := stream.ReadUint16()

	info.Lossless = flags&0x01 != 0
	info.DefaultPixel = flags&0x04 != 0
	info.DefaultOp = ComposeOp(flags >> 3 & 0x03)
	info.OpOverride = flags&0x40 != 0
	if flags&0x80 != 0 {
		return nil, errorf(ErrUnsupported, "page with colour extension segments")
	}
	info.Striped = striping&0x8000 != 0
	info.MaxStripeSize = striping & 0x7fff

	if info.Height == unknownHeight && !info.Striped {
		return nil, errorf(ErrMalformedHeader, "page of unknown height is not striped")
	}
	if info.Width > math.MaxInt32 || (info.Height > math.MaxInt32 && info.Height != unknownHeight) {
		return nil, errorf(ErrValueOutOfRange, "page size %dx%d", info.Width, info.Height)
	}
	return info, nil
}

// initialHeight is the height the page buffer starts with.
func (p *PageInfo) initialHeight() uint32 {
	if p.Height == unknownHeight {
		return uint32(p.MaxStripeSize)
	}
	return p.Height
}

// Page is the page buffer being decoded. A page of unknown height grows as
// regions and end of stripe segments arrive.
type Page struct {
	Info  *PageInfo
	Image *Image

	// stripeEnd is one past the last end of stripe row, or 0.
	stripeEnd uint32
}

func newPage(info *PageInfo) (*Page, error) {
	img, err := newRegionImage(info.Width, info.initialHeight())
	if err != nil {
		return nil, err
	}
	img.Fill(info.DefaultPixel)
	return &Page{Info: info, Image: img}, nil
}

func (p *Page) growable() bool { return p.Info.Height == unknownHeight }

// grow extends a page of unknown height to at least h rows.
func (p *Page) grow(h uint64) error {
	if !p.growable() || h <= uint64(p.Image.Height()) {
		return nil
	}
	if h > math.MaxInt32 {
		return errorf(ErrValueOutOfRange, "page height %d", h)
	}
	return p.Image.Expand(int32(h), p.Info.DefaultPixel)
}

// compose draws a region bitmap at (x, y) with the region's own operator.
func (p *Page) compose(img *Image, x, y uint32, op ComposeOp) error {
	if err := p.grow(uint64(y) + uint64(img.Height())); err != nil {
		return err
	}
	img.ComposeTo(p.Image, int64(x), int64(y), op)
	return nil
}

// endStripe records an end of stripe segment whose last row is y.
func (p *Page) endStripe(y uint32) error {
	if y >= math.MaxInt32 {
		return errorf(ErrValueOutOfRange, "end of stripe at row %d", y)
	}
	if y+1 < p.stripeEnd {
		return errorf(ErrMalformedHeader, "end of stripe at row %d after row %d", y, p.stripeEnd-1)
	}
	if p.growable() && p.Info.MaxStripeSize != 0 && y+1-p.stripeEnd > uint32(p.Info.MaxStripeSize) {
		return errorf(ErrMalformedHeader, "stripe ending at row %d exceeds %d rows", y, p.Info.MaxStripeSize)
	}
	if err := p.grow(uint64(y) + 1); err != nil {
		return err
	}
	p.stripeEnd = y + 1
	return nil
}

// finish fixes the final height of a page of unknown height at the end of
// its last stripe.
func (p *Page) finish() {
	if p.growable() && p.stripeEnd != 0 {
		p.Image.truncate(int32(p.stripeEnd))
	}
}
