package jbig2

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
)

// Decoder limits on dictionary sizes.
const (
	maxExportSymbols = 65535
	maxNewSymbols    = 65535
	maxPatternIndex  = 65535
)

// segmentResult holds what a dispatched segment produced. Which field is set
// depends on the segment type.
type segmentResult struct {
	done     bool
	symbols  *SymbolDict
	patterns *PatternDict
	table    *HuffmanTable
	region   *RegionBitmap
}

// Context decodes one page of a Document. Segments associated with the page
// or with no page are dispatched in stream order; dictionaries and tables of
// other pages are decoded only when referred to. A Context is used once.
type Context struct {
	doc        *Document
	pageNumber uint32
	page       *Page
	results    []segmentResult
	logger     *slog.Logger
}

// NewContext prepares the decode of the page numbered pageNumber.
func NewContext(doc *Document, pageNumber uint32, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{
		doc:        doc,
		pageNumber: pageNumber,
		results:    make([]segmentResult, len(doc.segments)),
		logger:     logger,
	}
}

// Decode dispatches the page's segments up to its end of page segment and
// returns the page bitmap.
func (c *Context) Decode() (*Image, error) {
	for i, seg := range c.doc.segments {
		if seg.PageAssociation != 0 && seg.PageAssociation != c.pageNumber {
			continue
		}
		if c.results[i].done {
			continue
		}
		end, err := c.dispatch(i)
		if err != nil {
			return nil, err
		}
		if end {
			break
		}
	}
	if c.page == nil {
		return nil, errorf(ErrSegmentGraphInvalid, "page %d has no page information", c.pageNumber)
	}
	c.page.finish()
	return c.page.Image, nil
}

// dispatch decodes segment i and reports whether it ends the page.
func (c *Context) dispatch(i int) (bool, error) {
	seg := c.doc.segments[i]
	c.logger.Debug("decoding segment",
		slog.Uint64("number", uint64(seg.Number)),
		slog.String("type", seg.Type().String()),
		slog.Uint64("page", uint64(seg.PageAssociation)),
		slog.Int("length", len(seg.Data)))

	res := &c.results[i]
	res.done = true
	end := false
	var err error
	switch seg.Type() {
	case SegmentSymbolDict:
		res.symbols, err = c.parseSymbolDict(seg)
	case SegmentPatternDict:
		res.patterns, err = c.parsePatternDict(seg)
	case SegmentTables:
		res.table, err = ParseHuffmanTable(NewBitStream(seg.Data))
	case SegmentIntermediateTextRegion, SegmentImmediateTextRegion, SegmentImmediateLosslessTextRegion:
		res.region, err = c.decodeRegion(seg, c.parseTextRegion)
	case SegmentIntermediateHalftoneRegion, SegmentImmediateHalftoneRegion, SegmentImmediateLosslessHalftoneRegion:
		res.region, err = c.decodeRegion(seg, c.parseHalftoneRegion)
	case SegmentIntermediateGenericRegion, SegmentImmediateGenericRegion, SegmentImmediateLosslessGenericRegion:
		res.region, err = c.decodeRegion(seg, c.parseGenericRegion)
	case SegmentIntermediateRefinementRegion, SegmentImmediateRefinementRegion, SegmentImmediateLosslessRefinementRegion:
		res.region, err = c.parseRefinementRegion(seg)
	case SegmentPageInfo:
		err = c.parsePageInfo(seg)
	case SegmentEndOfStripe:
		err = c.parseEndOfStripe(seg)
	case SegmentEndOfPage:
		err = c.checkEmpty(seg)
		end = true
	case SegmentEndOfFile:
		err = c.checkEmpty(seg)
		end = true
	case SegmentProfiles:
		c.logger.Debug("ignoring profiles segment", slog.Uint64("number", uint64(seg.Number)))
	case SegmentColorPalette:
		err = errorf(ErrUnsupported, "color palette")
	case SegmentExtension:
		err = c.parseExtension(seg)
	default:
		err = errorf(ErrMalformedHeader, "reserved segment type %d", seg.Type())
	}
	if err != nil {
		return false, fmt.Errorf("%v: %w", seg, err)
	}
	return end, nil
}

// referent returns the result of the segment ref points at, decoding a
// dictionary or table of another page on demand.
func (c *Context) referent(ref Reference) (*Segment, *segmentResult, error) {
	i, ok := c.doc.byNumber[ref.Number]
	if !ok {
		return nil, nil, errorf(ErrSegmentGraphInvalid, "missing segment %d", ref.Number)
	}
	seg := c.doc.segments[i]
	if !c.results[i].done {
		switch seg.Type() {
		case SegmentSymbolDict, SegmentPatternDict, SegmentTables:
			if _, err := c.dispatch(i); err != nil {
				return nil, nil, err
			}
		default:
			return nil, nil, errorf(ErrSegmentGraphInvalid, "%v was not decoded", seg)
		}
	}
	return seg, &c.results[i], nil
}

// inputs gathers the symbols and custom Huffman tables referred to by seg,
// in reference order.
func (c *Context) inputs(seg *Segment) ([]*Image, *tableSelector, error) {
	var symbols []*Image
	tables := &tableSelector{}
	for _, ref := range seg.Refs {
		target, res, err := c.referent(ref)
		if err != nil {
			return nil, nil, err
		}
		switch target.Type() {
		case SegmentSymbolDict:
			symbols = append(symbols, res.symbols.Symbols()...)
		case SegmentTables:
			tables.custom = append(tables.custom, res.table)
		}
	}
	if uint64(len(symbols)) > math.MaxUint32 {
		return nil, nil, errorf(ErrValueOutOfRange, "%d input symbols", len(symbols))
	}
	return symbols, tables, nil
}

// tableSelector resolves Huffman table selectors. Custom tables are taken
// from the referred-to tables segments in order.
type tableSelector struct {
	custom []*HuffmanTable
	next   int
}

// pick returns standard table standard[selector], or the next custom table
// when selector equals custom. Other selectors are invalid.
func (s *tableSelector) pick(name string, selector, custom uint16, standard ...int) (*HuffmanTable, error) {
	if selector == custom {
		if s.next >= len(s.custom) {
			return nil, errorf(ErrSegmentGraphInvalid, "no custom table for %s", name)
		}
		s.next++
		return s.custom[s.next-1], nil
	}
	if int(selector) >= len(standard) {
		return nil, errorf(ErrMalformedHeader, "%s table selector %d", name, selector)
	}
	return StandardHuffmanTable(standard[selector])
}

// tolerate accepts a format violation of Power JBIG2 output, or fails.
func (c *Context) tolerate(seg *Segment, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if !c.doc.compat {
		return errorf(ErrMalformedHeader, "%s", msg)
	}
	c.logger.Warn("tolerating malformed segment",
		slog.Uint64("number", uint64(seg.Number)),
		slog.String("problem", msg))
	return nil
}

func readAT(stream *BitStream, at []int32) error {
	for i := range at {
		v, err := stream.ReadInt8()
		if err != nil {
			return err
		}
		at[i] = int32(v)
	}
	return nil
}

func arithDecoder(data []byte) (*ArithDecoder, error) {
	return NewArithDecoder(NewBitStream(data))
}

func (c *Context) parseSymbolDict(seg *Segment) (*SymbolDict, error) {
	stream := NewBitStream(seg.Data)
	flags, err := stream.ReadUint16()
	if err != nil {
		return nil, err
	}
	p := &SDDProc{
		SDHUFF:      flags&0x0001 != 0,
		SDREFAGG:    flags&0x0002 != 0,
		SDTemplate:  uint8(flags >> 10 & 0x03),
		SDRTemplate: uint8(flags >> 12 & 0x01),
	}
	if flags&0x0300 != 0 {
		return nil, errorf(ErrUnsupported, "bitmap coding context reuse")
	}
	if flags&0xe000 != 0 {
		return nil, errorf(ErrMalformedHeader, "symbol dictionary flags 0x%04x", flags)
	}
	// Table selectors must be zero when unused.
	if (!p.SDHUFF && flags&0x00fc != 0) || (p.SDHUFF && !p.SDREFAGG && flags&0x0080 != 0) {
		if err := c.tolerate(seg, "unused huffman table selectors in flags 0x%04x", flags); err != nil {
			return nil, err
		}
		if !p.SDHUFF {
			flags &^= 0x00fc
		}
	}

	if !p.SDHUFF {
		n := 2
		if p.SDTemplate == 0 {
			n = 8
		}
		if err := readAT(stream, p.SDAt[:n]); err != nil {
			return nil, err
		}
	}
	if p.SDREFAGG && p.SDRTemplate == 0 {
		if err := readAT(stream, p.SDRAt[:]); err != nil {
			return nil, err
		}
	}
	if p.SDNumExSyms, err = stream.ReadUint32(); err != nil {
		return nil, err
	}
	if p.SDNumNewSyms, err = stream.ReadUint32(); err != nil {
		return nil, err
	}
	if p.SDNumExSyms > maxExportSymbols || p.SDNumNewSyms > maxNewSymbols {
		return nil, errorf(ErrValueOutOfRange, "%d exported, %d new symbols", p.SDNumExSyms, p.SDNumNewSyms)
	}

	var tables *tableSelector
	if p.SDInSyms, tables, err = c.inputs(seg); err != nil {
		return nil, err
	}
	if p.SDHUFF {
		if p.SDHuffDH, err = tables.pick("DH", flags>>2&0x03, 3, 4, 5); err != nil {
			return nil, err
		}
		if p.SDHuffDW, err = tables.pick("DW", flags>>4&0x03, 3, 2, 3); err != nil {
			return nil, err
		}
		if p.SDHuffBMSize, err = tables.pick("BMSIZE", flags>>6&0x01, 1, 1); err != nil {
			return nil, err
		}
		if p.SDREFAGG {
			if p.SDHuffAggInst, err = tables.pick("AGGINST", flags>>7&0x01, 1, 1); err != nil {
				return nil, err
			}
		}
		return p.DecodeHuffman(NewBitStream(stream.Pointer()))
	}

	dec, err := arithDecoder(stream.Pointer())
	if err != nil {
		return nil, err
	}
	gb, gr := p.NewContexts()
	return p.DecodeArith(dec, gb, gr)
}

func (c *Context) parsePatternDict(seg *Segment) (*PatternDict, error) {
	stream := NewBitStream(seg.Data)
	flags, err := stream.ReadByte()
	if err != nil {
		return nil, err
	}
	if flags&0xf8 != 0 {
		return nil, errorf(ErrMalformedHeader, "pattern dictionary flags 0x%02x", flags)
	}
	p := &PDDProc{HDMMR: flags&0x01 != 0, HDTemplate: flags >> 1 & 0x03}
	if p.HDPW, err = stream.ReadByte(); err != nil {
		return nil, err
	}
	if p.HDPH, err = stream.ReadByte(); err != nil {
		return nil, err
	}
	if p.GrayMax, err = stream.ReadUint32(); err != nil {
		return nil, err
	}
	if p.GrayMax > maxPatternIndex {
		return nil, errorf(ErrValueOutOfRange, "gray maximum %d", p.GrayMax)
	}
	if p.HDMMR {
		return p.DecodeMMR(stream.Pointer())
	}
	dec, err := arithDecoder(stream.Pointer())
	if err != nil {
		return nil, err
	}
	return p.DecodeArith(dec, p.NewContexts())
}

// regionDecoder decodes the bitmap of a region segment whose region
// information was read from stream.
type regionDecoder func(seg *Segment, stream *BitStream, ri *RegionInfo) (*Image, error)

// decodeRegion reads the region information of seg, decodes its bitmap and
// either keeps it for a refinement or draws it on the page.
func (c *Context) decodeRegion(seg *Segment, decode regionDecoder) (*RegionBitmap, error) {
	if c.page == nil {
		return nil, errorf(ErrSegmentGraphInvalid, "region before page information")
	}
	stream := NewBitStream(seg.Data)
	ri, err := parseRegionInfo(stream)
	if err != nil {
		return nil, err
	}
	img, err := decode(seg, stream, &ri)
	if err != nil {
		return nil, err
	}
	region := &RegionBitmap{Info: ri, Image: img}
	if seg.Type().isIntermediate() {
		return region, nil
	}
	return nil, c.page.compose(img, ri.X, ri.Y, ri.Op)
}

func knownHeight(ri *RegionInfo) error {
	if ri.Height == unknownHeight {
		return errorf(ErrValueOutOfRange, "region of unknown height")
	}
	return nil
}

func (c *Context) parseTextRegion(seg *Segment, stream *BitStream, ri *RegionInfo) (*Image, error) {
	if err := knownHeight(ri); err != nil {
		return nil, err
	}
	flags, err := stream.ReadUint16()
	if err != nil {
		return nil, err
	}
	dsOffset := int8(flags >> 10 & 0x1f)
	if dsOffset >= 16 {
		dsOffset -= 32
	}
	p := &TRDProc{
		SBHUFF:      flags&0x0001 != 0,
		SBREFINE:    flags&0x0002 != 0,
		SBW:         ri.Width,
		SBH:         ri.Height,
		SBStrips:    1 << (flags >> 2 & 0x03),
		RefCorner:   Corner(flags >> 4 & 0x03),
		Transposed:  flags&0x0040 != 0,
		SBCombOp:    ComposeOp(flags >> 7 & 0x03),
		SBDefPixel:  flags&0x0200 != 0,
		SBDSOffset:  dsOffset,
		SBRTemplate: uint8(flags >> 15),
	}

	var huffFlags uint16
	if p.SBHUFF {
		if huffFlags, err = stream.ReadUint16(); err != nil {
			return nil, err
		}
		if huffFlags&0x8000 != 0 {
			return nil, errorf(ErrMalformedHeader, "text region huffman flags 0x%04x", huffFlags)
		}
	}
	if p.SBREFINE && p.SBRTemplate == 0 {
		if err := readAT(stream, p.SBRAt[:]); err != nil {
			return nil, err
		}
	}
	if p.SBNumInstances, err = stream.ReadUint32(); err != nil {
		return nil, err
	}
	if uint64(p.SBNumInstances) > uint64(len(seg.Data))*32 {
		return nil, errorf(ErrValueOutOfRange, "%d symbol instances in %d bytes", p.SBNumInstances, len(seg.Data))
	}

	var tables *tableSelector
	if p.SBSyms, tables, err = c.inputs(seg); err != nil {
		return nil, err
	}
	numSyms := uint32(len(p.SBSyms))

	if !p.SBHUFF {
		p.SBSymCodeLen = ceilLog2(numSyms)
		dec, err := arithDecoder(stream.Pointer())
		if err != nil {
			return nil, err
		}
		return p.DecodeArith(dec, nil, nil)
	}

	selectors := []struct {
		name     string
		table    **HuffmanTable
		shift    uint16
		custom   uint16
		standard []int
	}{
		{"FS", &p.SBHuffFS, 0, 3, []int{6, 7}},
		{"DS", &p.SBHuffDS, 2, 3, []int{8, 9, 10}},
		{"DT", &p.SBHuffDT, 4, 3, []int{11, 12, 13}},
		{"RDW", &p.SBHuffRDW, 6, 3, []int{14, 15}},
		{"RDH", &p.SBHuffRDH, 8, 3, []int{14, 15}},
		{"RDX", &p.SBHuffRDX, 10, 3, []int{14, 15}},
		{"RDY", &p.SBHuffRDY, 12, 3, []int{14, 15}},
		{"RSIZE", &p.SBHuffRSize, 14, 1, []int{1}},
	}
	for _, sel := range selectors {
		mask := uint16(0x03)
		if sel.custom == 1 {
			mask = 0x01
		}
		if *sel.table, err = tables.pick(sel.name, huffFlags>>sel.shift&mask, sel.custom, sel.standard...); err != nil {
			return nil, err
		}
	}
	if p.SBSymCodes, err = ParseSymbolIDTable(stream, numSyms); err != nil {
		return nil, err
	}
	return p.DecodeHuffman(stream)
}

func (c *Context) parseHalftoneRegion(seg *Segment, stream *BitStream, ri *RegionInfo) (*Image, error) {
	if err := knownHeight(ri); err != nil {
		return nil, err
	}
	flags, err := stream.ReadByte()
	if err != nil {
		return nil, err
	}
	p := &HTRDProc{
		HBW:         ri.Width,
		HBH:         ri.Height,
		HMMR:        flags&0x01 != 0,
		HTemplate:   flags >> 1 & 0x03,
		HEnableSkip: flags&0x08 != 0,
		HCombOp:     ComposeOp(flags >> 4 & 0x07),
		HDefPixel:   flags&0x80 != 0,
	}
	if p.HCombOp > ComposeReplace {
		return nil, errorf(ErrMalformedHeader, "halftone combination operator %d", p.HCombOp)
	}
	if p.HGW, err = stream.ReadUint32(); err != nil {
		return nil, err
	}
	if p.HGH, err = stream.ReadUint32(); err != nil {
		return nil, err
	}
	if p.HGX, err = stream.ReadInt32(); err != nil {
		return nil, err
	}
	if p.HGY, err = stream.ReadInt32(); err != nil {
		return nil, err
	}
	if p.HRX, err = stream.ReadUint16(); err != nil {
		return nil, err
	}
	if p.HRY, err = stream.ReadUint16(); err != nil {
		return nil, err
	}

	if len(seg.Refs) != 1 {
		return nil, errorf(ErrSegmentGraphInvalid, "halftone region refers to %d segments", len(seg.Refs))
	}
	target, res, err := c.referent(seg.Refs[0])
	if err != nil {
		return nil, err
	}
	if res.patterns == nil || res.patterns.NumPatterns() == 0 {
		return nil, errorf(ErrSegmentGraphInvalid, "%v is not a pattern dictionary", target)
	}
	p.HPats = res.patterns.Patterns
	p.HNumPats = res.patterns.NumPatterns()
	p.HPW = uint8(p.HPats[0].Width())
	p.HPH = uint8(p.HPats[0].Height())

	if p.HMMR {
		return p.DecodeMMR(stream.Pointer())
	}
	dec, err := arithDecoder(stream.Pointer())
	if err != nil {
		return nil, err
	}
	return p.DecodeArith(dec, p.NewContexts())
}

func (c *Context) parseGenericRegion(seg *Segment, stream *BitStream, ri *RegionInfo) (*Image, error) {
	flags, err := stream.ReadByte()
	if err != nil {
		return nil, err
	}
	if flags&0xe0 != 0 {
		return nil, errorf(ErrMalformedHeader, "generic region flags 0x%02x", flags)
	}
	p := &GRDProc{
		MMR:         flags&0x01 != 0,
		GBTemplate:  flags >> 1 & 0x03,
		TPGDON:      flags&0x08 != 0,
		ExtTemplate: flags&0x10 != 0,
		GBW:         ri.Width,
	}
	if p.ExtTemplate {
		return nil, errorf(ErrUnsupported, "extended generic template")
	}
	if !p.MMR {
		n := 2
		if p.GBTemplate == 0 {
			n = 8
		}
		if err := readAT(stream, p.GBAt[:n]); err != nil {
			return nil, err
		}
	}

	data := stream.Pointer()
	if seg.DataLength == unknownDataLength {
		// The data ends with the row count of the region.
		if len(data) < 4 {
			return nil, errorf(ErrDataTruncated, "generic region without row count")
		}
		rows := NewBitStream(data[len(data)-4:])
		count, _ := rows.ReadUint32()
		data = data[:len(data)-4]
		if ri.Height != unknownHeight && count > ri.Height {
			return nil, errorf(ErrMalformedHeader, "row count %d exceeds region height %d", count, ri.Height)
		}
		ri.Height = count
	}
	if err := knownHeight(ri); err != nil {
		return nil, err
	}
	p.GBH = ri.Height

	if p.MMR {
		return p.DecodeMMR(data)
	}
	dec, err := arithDecoder(data)
	if err != nil {
		return nil, err
	}
	return p.DecodeArith(dec, p.NewContexts())
}

// parseRefinementRegion refines either the intermediate region seg refers
// to or, without a reference, the page area under the region.
func (c *Context) parseRefinementRegion(seg *Segment) (*RegionBitmap, error) {
	if c.page == nil {
		return nil, errorf(ErrSegmentGraphInvalid, "region before page information")
	}
	stream := NewBitStream(seg.Data)
	ri, err := parseRegionInfo(stream)
	if err != nil {
		return nil, err
	}
	if err := knownHeight(&ri); err != nil {
		return nil, err
	}
	flags, err := stream.ReadByte()
	if err != nil {
		return nil, err
	}
	if flags&0xfc != 0 {
		return nil, errorf(ErrMalformedHeader, "refinement region flags 0x%02x", flags)
	}
	p := &GRRDProc{
		GRW:        ri.Width,
		GRH:        ri.Height,
		GRTemplate: flags & 0x01,
		TPGRON:     flags&0x02 != 0,
	}
	if p.GRTemplate == 0 {
		if err := readAT(stream, p.GRAt[:]); err != nil {
			return nil, err
		}
	}

	onPage := len(seg.Refs) == 0
	if onPage {
		if err := c.page.grow(uint64(ri.Y) + uint64(ri.Height)); err != nil {
			return nil, err
		}
		p.Reference = c.page.Image.View(int32(ri.X), int32(ri.Y), int32(ri.Width), int32(ri.Height))
	} else {
		target, res, err := c.referent(seg.Refs[0])
		if err != nil {
			return nil, err
		}
		if res.region == nil {
			return nil, errorf(ErrSegmentGraphInvalid, "%v is not an intermediate region", target)
		}
		p.Reference = res.region.Image
	}

	dec, err := arithDecoder(stream.Pointer())
	if err != nil {
		return nil, err
	}
	img, err := p.Decode(dec, p.NewContexts())
	if err != nil {
		return nil, err
	}
	if seg.Type().isIntermediate() {
		return &RegionBitmap{Info: ri, Image: img}, nil
	}
	if onPage {
		return nil, c.page.compose(img, ri.X, ri.Y, ComposeReplace)
	}
	return nil, c.page.compose(img, ri.X, ri.Y, ri.Op)
}

func (c *Context) parsePageInfo(seg *Segment) error {
	if c.page != nil {
		return errorf(ErrMalformedHeader, "second page information for page %d", c.pageNumber)
	}
	info, err := parsePageInfo(seg.Data)
	if err != nil {
		return err
	}
	if c.page, err = newPage(info); err != nil {
		return err
	}
	c.logger.Debug("page information",
		slog.Uint64("page", uint64(c.pageNumber)),
		slog.Uint64("width", uint64(info.Width)),
		slog.Uint64("height", uint64(info.Height)),
		slog.Bool("striped", info.Striped))
	return nil
}

func (c *Context) parseEndOfStripe(seg *Segment) error {
	if c.page == nil {
		return errorf(ErrSegmentGraphInvalid, "end of stripe before page information")
	}
	if len(seg.Data) != 4 {
		return errorf(ErrMalformedHeader, "end of stripe segment of %d bytes", len(seg.Data))
	}
	y, _ := NewBitStream(seg.Data).ReadUint32()
	return c.page.endStripe(y)
}

func (c *Context) checkEmpty(seg *Segment) error {
	if len(seg.Data) != 0 {
		return errorf(ErrMalformedHeader, "%d bytes of data", len(seg.Data))
	}
	return nil
}

func (c *Context) parseExtension(seg *Segment) error {
	comments, err := parseExtension(seg.Data)
	if errors.Is(err, errUnknownExtension) {
		c.logger.Warn("skipping unknown extension", slog.Uint64("number", uint64(seg.Number)))
		return nil
	}
	if err != nil {
		return err
	}
	for _, comment := range comments {
		c.logger.Debug("comment", slog.String("key", comment.Key), slog.String("value", comment.Value))
	}
	return nil
}
