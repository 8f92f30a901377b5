package jbig2

import (
	"math"
	"math/bits"
)

// Corner selects the symbol corner placed at the decoded instance position.
type Corner uint8

const (
	CornerBottomLeft Corner = iota
	CornerTopLeft
	CornerBottomRight
	CornerTopRight
)

func (c Corner) right() bool  { return c == CornerTopRight || c == CornerBottomRight }
func (c Corner) bottom() bool { return c == CornerBottomLeft || c == CornerBottomRight }

// trdIntDecoders bundles the arithmetic integer decoders of a text region. A
// symbol dictionary shares one bundle between its refinement/aggregate
// bitmaps so the contexts carry over from symbol to symbol.
type trdIntDecoders struct {
	iadt  *ArithIntDecoder
	iafs  *ArithIntDecoder
	iads  *ArithIntDecoder
	iait  *ArithIntDecoder
	iari  *ArithIntDecoder
	iardw *ArithIntDecoder
	iardh *ArithIntDecoder
	iardx *ArithIntDecoder
	iardy *ArithIntDecoder
	iaid  *ArithIaidDecoder
}

func newTRDIntDecoders(symCodeLen uint8) *trdIntDecoders {
	return &trdIntDecoders{
		iadt:  NewArithIntDecoder(),
		iafs:  NewArithIntDecoder(),
		iads:  NewArithIntDecoder(),
		iait:  NewArithIntDecoder(),
		iari:  NewArithIntDecoder(),
		iardw: NewArithIntDecoder(),
		iardh: NewArithIntDecoder(),
		iardx: NewArithIntDecoder(),
		iardy: NewArithIntDecoder(),
		iaid:  NewArithIaidDecoder(symCodeLen),
	}
}

// ceilLog2 returns the number of bits needed to code values below n.
func ceilLog2(n uint32) uint8 {
	if n <= 1 {
		return 0
	}
	return uint8(bits.Len32(n - 1))
}

// TRDProc stores the configuration for a text region decoder (T.88 6.4).
type TRDProc struct {
	SBHUFF         bool
	SBREFINE       bool
	SBW            uint32
	SBH            uint32
	SBNumInstances uint32
	SBStrips       uint32
	SBSymCodeLen   uint8
	SBSyms         []*Image
	SBSymCodes     *HuffmanTable
	SBDefPixel     bool
	SBCombOp       ComposeOp
	Transposed     bool
	RefCorner      Corner
	SBDSOffset     int8
	SBHuffFS       *HuffmanTable
	SBHuffDS       *HuffmanTable
	SBHuffDT       *HuffmanTable
	SBHuffRDW      *HuffmanTable
	SBHuffRDH      *HuffmanTable
	SBHuffRDX      *HuffmanTable
	SBHuffRDY      *HuffmanTable
	SBHuffRSize    *HuffmanTable
	SBRTemplate    uint8
	SBRAt          [4]int32
}

// NewRefinementContexts allocates the refinement contexts for SBRTemplate.
func (p *TRDProc) NewRefinementContexts() []ArithContext {
	grrd := GRRDProc{GRTemplate: p.SBRTemplate}
	return grrd.NewContexts()
}

// textRegionSource yields the coded fields of a text region, in stream order.
type textRegionSource interface {
	stripDeltaT() (int32, error)
	firstS() (int32, error)
	deltaS() (int32, bool, error)
	instanceT() (int32, error)
	symbolID() (uint32, error)
	// instanceBitmap returns the symbol bitmap, refined when the stream says so.
	instanceBitmap(sym *Image) (*Image, error)
}

type arithTextSource struct {
	p        *TRDProc
	dec      *ArithDecoder
	ids      *trdIntDecoders
	contexts []ArithContext
}

func (s *arithTextSource) stripDeltaT() (int32, error) { return s.ids.iadt.DecodeNonOOB(s.dec) }
func (s *arithTextSource) firstS() (int32, error)      { return s.ids.iafs.DecodeNonOOB(s.dec) }
func (s *arithTextSource) deltaS() (int32, bool, error) {
	return s.ids.iads.Decode(s.dec)
}

func (s *arithTextSource) instanceT() (int32, error) {
	if s.p.SBStrips == 1 {
		return 0, nil
	}
	return s.ids.iait.DecodeNonOOB(s.dec)
}

func (s *arithTextSource) symbolID() (uint32, error) { return s.ids.iaid.Decode(s.dec), nil }

func (s *arithTextSource) instanceBitmap(sym *Image) (*Image, error) {
	if !s.p.SBREFINE {
		return sym, nil
	}
	ri, err := s.ids.iari.DecodeNonOOB(s.dec)
	if err != nil {
		return nil, err
	}
	if ri == 0 {
		return sym, nil
	}
	var d [4]int32
	for i, iad := range []*ArithIntDecoder{s.ids.iardw, s.ids.iardh, s.ids.iardx, s.ids.iardy} {
		if d[i], err = iad.DecodeNonOOB(s.dec); err != nil {
			return nil, err
		}
	}
	grrd, err := s.p.refinementProc(sym, d[0], d[1], d[2], d[3])
	if err != nil {
		return nil, err
	}
	return grrd.Decode(s.dec, s.contexts)
}

// refinementProc sets up the refinement of sym by the decoded deltas
// (T.88 Table 12).
func (p *TRDProc) refinementProc(sym *Image, rdw, rdh, rdx, rdy int32) (*GRRDProc, error) {
	w := int64(sym.Width()) + int64(rdw)
	h := int64(sym.Height()) + int64(rdh)
	if w < 0 || h < 0 || w > math.MaxInt32 || h > math.MaxInt32 {
		return nil, errorf(ErrValueOutOfRange, "refined symbol size %dx%d", w, h)
	}
	dx := int64(rdw>>1) + int64(rdx)
	dy := int64(rdh>>1) + int64(rdy)
	if dx < math.MinInt32 || dx > math.MaxInt32 || dy < math.MinInt32 || dy > math.MaxInt32 {
		return nil, errorf(ErrValueOutOfRange, "refinement offset (%d, %d)", dx, dy)
	}
	return &GRRDProc{
		GRW:         uint32(w),
		GRH:         uint32(h),
		GRTemplate:  p.SBRTemplate,
		Reference:   sym,
		ReferenceDX: int32(dx),
		ReferenceDY: int32(dy),
		GRAt:        p.SBRAt,
	}, nil
}

type huffmanTextSource struct {
	p  *TRDProc
	hd *HuffmanDecoder
}

func (s *huffmanTextSource) stripDeltaT() (int32, error) { return s.hd.DecodeNonOOB(s.p.SBHuffDT) }
func (s *huffmanTextSource) firstS() (int32, error)      { return s.hd.DecodeNonOOB(s.p.SBHuffFS) }
func (s *huffmanTextSource) deltaS() (int32, bool, error) {
	return s.hd.Decode(s.p.SBHuffDS)
}

func (s *huffmanTextSource) instanceT() (int32, error) {
	if s.p.SBStrips == 1 {
		return 0, nil
	}
	v, err := s.hd.Stream().ReadNBits(uint32(bits.TrailingZeros32(s.p.SBStrips)))
	return int32(v), err
}

func (s *huffmanTextSource) symbolID() (uint32, error) {
	v, err := s.hd.DecodeNonOOB(s.p.SBSymCodes)
	return uint32(v), err
}

func (s *huffmanTextSource) instanceBitmap(sym *Image) (*Image, error) { return sym, nil }

// DecodeArith decodes the region with the arithmetic decoder. ids may be a
// bundle shared with an enclosing symbol dictionary, or nil for a fresh one.
// contexts are the refinement contexts and may be nil when SBREFINE is off.
func (p *TRDProc) DecodeArith(dec *ArithDecoder, contexts []ArithContext, ids *trdIntDecoders) (*Image, error) {
	if ids == nil {
		ids = newTRDIntDecoders(p.SBSymCodeLen)
	}
	if p.SBREFINE && contexts == nil {
		contexts = p.NewRefinementContexts()
	}
	return p.decode(&arithTextSource{p: p, dec: dec, ids: ids, contexts: contexts})
}

// DecodeHuffman decodes the region from Huffman-coded data. SBSymCodes and
// the SBHuff tables must be set.
func (p *TRDProc) DecodeHuffman(stream *BitStream) (*Image, error) {
	if p.SBREFINE {
		return nil, errorf(ErrUnsupported, "huffman text region with refinement")
	}
	if p.SBSymCodes == nil || p.SBHuffFS == nil || p.SBHuffDS == nil || p.SBHuffDT == nil {
		return nil, errorf(ErrMalformedHeader, "missing huffman tables for text region")
	}
	return p.decode(&huffmanTextSource{p: p, hd: NewHuffmanDecoder(stream)})
}

func (p *TRDProc) decode(src textRegionSource) (*Image, error) {
	if p.SBStrips == 0 || p.SBStrips&(p.SBStrips-1) != 0 || p.SBStrips > 8 {
		return nil, errorf(ErrMalformedHeader, "%d strips", p.SBStrips)
	}
	img, err := newRegionImage(p.SBW, p.SBH)
	if err != nil {
		return nil, err
	}
	img.Fill(p.SBDefPixel)

	dt, err := src.stripDeltaT()
	if err != nil {
		return nil, err
	}
	stripT := -int64(dt) * int64(p.SBStrips)
	var firstS int64
	for n := uint32(0); n < p.SBNumInstances; {
		dt, err := src.stripDeltaT()
		if err != nil {
			return nil, err
		}
		stripT += int64(dt) * int64(p.SBStrips)

		// Every strip ends with an OOB delta S, including the last one.
		var curS int64
		for first := true; ; first = false {
			if first {
				dfs, err := src.firstS()
				if err != nil {
					return nil, err
				}
				firstS += int64(dfs)
				curS = firstS
			} else {
				ids, ok, err := src.deltaS()
				if err != nil {
					return nil, err
				}
				if !ok || n >= p.SBNumInstances {
					break
				}
				curS += int64(ids) + int64(p.SBDSOffset)
			}

			curT, err := src.instanceT()
			if err != nil {
				return nil, err
			}
			t := stripT + int64(curT)

			id, err := src.symbolID()
			if err != nil {
				return nil, err
			}
			if id >= uint32(len(p.SBSyms)) {
				return nil, errorf(ErrValueOutOfRange, "symbol id %d of %d", id, len(p.SBSyms))
			}
			sym, err := src.instanceBitmap(p.SBSyms[id])
			if err != nil {
				return nil, err
			}
			curS = p.place(img, sym, curS, t)
			n++
		}
	}
	return img, nil
}

// place composites sym with its reference corner at (s, t), or (t, s) when
// transposed, and returns CURS advanced past the symbol.
func (p *TRDProc) place(img, sym *Image, s, t int64) int64 {
	w, h := int64(sym.Width()), int64(sym.Height())
	extent := w
	if p.Transposed {
		extent = h
	}
	// The leading edge is at CURS when the corner is on the side S grows from.
	trailing := p.RefCorner.right()
	if p.Transposed {
		trailing = p.RefCorner.bottom()
	}
	if trailing {
		s += extent - 1
	}

	x, y := s, t
	if p.Transposed {
		x, y = t, s
	}
	if p.RefCorner.right() {
		x -= w - 1
	}
	if p.RefCorner.bottom() {
		y -= h - 1
	}
	sym.ComposeTo(img, x, y, p.SBCombOp)

	if !trailing {
		s += extent - 1
	}
	return s
}

// ParseSymbolIDTable reads the run-length coded symbol ID Huffman table of a
// Huffman text region (T.88 7.4.3.1.7) and aligns the stream to a byte.
func ParseSymbolIDTable(stream *BitStream, numSyms uint32) (*HuffmanTable, error) {
	var runLengths [35]uint8
	for i := range runLengths {
		v, err := stream.ReadNBits(4)
		if err != nil {
			return nil, err
		}
		runLengths[i] = uint8(v)
	}
	runTable, err := newHuffmanTableFromLengths(runLengths[:])
	if err != nil {
		return nil, err
	}
	hd := NewHuffmanDecoder(stream)

	lengths := make([]uint8, 0, min(numSyms, 1<<16))
	for uint32(len(lengths)) < numSyms {
		code, err := hd.DecodeNonOOB(runTable)
		if err != nil {
			return nil, err
		}
		var (
			value  uint8
			repeat uint32
			extra  uint32
		)
		switch {
		case code < 32:
			value, repeat = uint8(code), 1
		case code == 32:
			if len(lengths) == 0 {
				return nil, errorf(ErrMalformedHeader, "symbol id length repeat without previous length")
			}
			value = lengths[len(lengths)-1]
			extra, err = stream.ReadNBits(2)
			repeat = 3 + extra
		case code == 33:
			extra, err = stream.ReadNBits(3)
			repeat = 3 + extra
		default:
			extra, err = stream.ReadNBits(7)
			repeat = 11 + extra
		}
		if err != nil {
			return nil, err
		}
		if uint64(len(lengths))+uint64(repeat) > uint64(numSyms) {
			return nil, errorf(ErrMalformedHeader, "symbol id lengths overrun %d symbols", numSyms)
		}
		for ; repeat > 0; repeat-- {
			lengths = append(lengths, value)
		}
	}
	stream.AlignByte()
	return newHuffmanTableFromLengths(lengths)
}
