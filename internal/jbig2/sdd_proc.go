package jbig2

import "math"

// SDDProc holds the parameters of the symbol dictionary decoding procedure
// (T.88 6.5). SDInSyms are the symbols exported by the referred-to
// dictionaries.
type SDDProc struct {
	SDHUFF        bool
	SDREFAGG      bool
	SDInSyms      []*Image
	SDNumNewSyms  uint32
	SDNumExSyms   uint32
	SDHuffDH      *HuffmanTable
	SDHuffDW      *HuffmanTable
	SDHuffBMSize  *HuffmanTable
	SDHuffAggInst *HuffmanTable
	SDTemplate    uint8
	SDAt          [8]int32
	SDRTemplate   uint8
	SDRAt         [4]int32
}

func (p *SDDProc) numSyms() uint64 { return uint64(len(p.SDInSyms)) + uint64(p.SDNumNewSyms) }

// NewContexts allocates the generic and refinement context arrays.
func (p *SDDProc) NewContexts() (gb, gr []ArithContext) {
	grd := GRDProc{GBTemplate: p.SDTemplate}
	grrd := GRRDProc{GRTemplate: p.SDRTemplate}
	return grd.NewContexts(), grrd.NewContexts()
}

// heightClass tracks HCHEIGHT and SYMWIDTH while a dictionary is decoded.
type heightClass struct {
	height int64
	width  int64
}

func (hc *heightClass) addHeight(dh int32) error {
	hc.height += int64(dh)
	hc.width = 0
	if hc.height < 0 || hc.height > math.MaxInt32 {
		return errorf(ErrValueOutOfRange, "height class height %d", hc.height)
	}
	return nil
}

func (hc *heightClass) addWidth(dw int32) error {
	hc.width += int64(dw)
	if hc.width < 0 || hc.width > math.MaxInt32 {
		return errorf(ErrValueOutOfRange, "symbol width %d", hc.width)
	}
	return nil
}

// DecodeArith decodes the dictionary with the arithmetic decoder.
func (p *SDDProc) DecodeArith(dec *ArithDecoder, gbContexts, grContexts []ArithContext) (*SymbolDict, error) {
	if p.numSyms() > math.MaxUint32 {
		return nil, errorf(ErrValueOutOfRange, "%d symbols", p.numSyms())
	}
	var (
		iadh = NewArithIntDecoder()
		iadw = NewArithIntDecoder()
		iaai = NewArithIntDecoder()
		iaex = NewArithIntDecoder()
		ids  = newTRDIntDecoders(ceilLog2(uint32(p.numSyms())))
	)

	// known holds SDInSyms followed by the new symbols decoded so far.
	nIn := len(p.SDInSyms)
	known := append(make([]*Image, 0, nIn), p.SDInSyms...)
	var hc heightClass
	for uint32(len(known)-nIn) < p.SDNumNewSyms {
		dh, err := iadh.DecodeNonOOB(dec)
		if err != nil {
			return nil, err
		}
		if err := hc.addHeight(dh); err != nil {
			return nil, err
		}
		for {
			dw, ok, err := iadw.Decode(dec)
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			if uint32(len(known)-nIn) >= p.SDNumNewSyms {
				return nil, errorf(ErrMalformedHeader, "more than %d new symbols", p.SDNumNewSyms)
			}
			if err := hc.addWidth(dw); err != nil {
				return nil, err
			}
			sym, err := p.decodeSymbolArith(dec, gbContexts, grContexts, iaai, ids, hc, known)
			if err != nil {
				return nil, err
			}
			known = append(known, sym)
		}
	}

	return p.export(known[nIn:], func() (int32, error) { return iaex.DecodeNonOOB(dec) })
}

func (p *SDDProc) decodeSymbolArith(dec *ArithDecoder, gbContexts, grContexts []ArithContext, iaai *ArithIntDecoder, ids *trdIntDecoders, hc heightClass, known []*Image) (*Image, error) {
	w, h := uint32(hc.width), uint32(hc.height)
	if !p.SDREFAGG {
		grd := &GRDProc{GBW: w, GBH: h, GBTemplate: p.SDTemplate, GBAt: p.SDAt}
		return grd.DecodeArith(dec, gbContexts)
	}

	n, err := iaai.DecodeNonOOB(dec)
	if err != nil {
		return nil, err
	}
	switch {
	case n < 1:
		return nil, errorf(ErrValueOutOfRange, "%d aggregate symbol instances", n)
	case n == 1:
		id := ids.iaid.Decode(dec)
		rdx, err := ids.iardx.DecodeNonOOB(dec)
		if err != nil {
			return nil, err
		}
		rdy, err := ids.iardy.DecodeNonOOB(dec)
		if err != nil {
			return nil, err
		}
		if id >= uint32(len(known)) {
			return nil, errorf(ErrValueOutOfRange, "refinement symbol id %d of %d", id, len(known))
		}
		grrd := &GRRDProc{
			GRW:         w,
			GRH:         h,
			GRTemplate:  p.SDRTemplate,
			Reference:   known[id],
			ReferenceDX: rdx,
			ReferenceDY: rdy,
			GRAt:        p.SDRAt,
		}
		return grrd.Decode(dec, grContexts)
	default:
		trd := &TRDProc{
			SBREFINE:       true,
			SBW:            w,
			SBH:            h,
			SBNumInstances: uint32(n),
			SBStrips:       1,
			SBSymCodeLen:   ids.iaid.len,
			SBSyms:         known,
			SBCombOp:       ComposeOR,
			RefCorner:      CornerTopLeft,
			SBRTemplate:    p.SDRTemplate,
			SBRAt:          p.SDRAt,
		}
		return trd.DecodeArith(dec, grContexts, ids)
	}
}

// DecodeHuffman decodes a Huffman-coded dictionary. Each height class ends
// with a collective bitmap, stored raw or MMR-coded, that is sliced into the
// class's symbols.
func (p *SDDProc) DecodeHuffman(stream *BitStream) (*SymbolDict, error) {
	if p.SDREFAGG {
		return nil, errorf(ErrUnsupported, "huffman symbol dictionary with refinement/aggregate coding")
	}
	if p.SDHuffDH == nil || p.SDHuffDW == nil || p.SDHuffBMSize == nil {
		return nil, errorf(ErrMalformedHeader, "missing huffman tables for symbol dictionary")
	}
	if p.numSyms() > math.MaxUint32 {
		return nil, errorf(ErrValueOutOfRange, "%d symbols", p.numSyms())
	}
	hd := NewHuffmanDecoder(stream)

	var newSyms []*Image
	var hc heightClass
	for uint32(len(newSyms)) < p.SDNumNewSyms {
		dh, err := hd.DecodeNonOOB(p.SDHuffDH)
		if err != nil {
			return nil, err
		}
		if err := hc.addHeight(dh); err != nil {
			return nil, err
		}
		var widths []uint32
		var totWidth int64
		for {
			dw, ok, err := hd.Decode(p.SDHuffDW)
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			if uint32(len(newSyms)+len(widths)) >= p.SDNumNewSyms {
				return nil, errorf(ErrMalformedHeader, "more than %d new symbols", p.SDNumNewSyms)
			}
			if err := hc.addWidth(dw); err != nil {
				return nil, err
			}
			totWidth += hc.width
			if totWidth > math.MaxInt32 {
				return nil, errorf(ErrValueOutOfRange, "height class width %d", totWidth)
			}
			widths = append(widths, uint32(hc.width))
		}

		collective, err := p.collectiveBitmap(hd, uint32(totWidth), uint32(hc.height))
		if err != nil {
			return nil, err
		}
		var x int32
		for _, w := range widths {
			newSyms = append(newSyms, collective.View(x, 0, int32(w), int32(hc.height)))
			x += int32(w)
		}
	}

	table := mustStandardTable(1)
	return p.export(newSyms, func() (int32, error) { return hd.DecodeNonOOB(table) })
}

// collectiveBitmap reads BMSIZE and the height class collective bitmap
// (T.88 6.5.9).
func (p *SDDProc) collectiveBitmap(hd *HuffmanDecoder, w, h uint32) (*Image, error) {
	bmSize, err := hd.DecodeNonOOB(p.SDHuffBMSize)
	if err != nil {
		return nil, err
	}
	if bmSize < 0 {
		return nil, errorf(ErrValueOutOfRange, "collective bitmap size %d", bmSize)
	}
	stream := hd.Stream()
	stream.AlignByte()

	if bmSize != 0 {
		if uint32(bmSize) > stream.BytesLeft() {
			return nil, errorf(ErrDataTruncated, "collective bitmap of %d bytes", bmSize)
		}
		grd := &GRDProc{MMR: true, GBW: w, GBH: h}
		img, err := grd.DecodeMMR(stream.Pointer()[:bmSize])
		if err != nil {
			return nil, err
		}
		stream.AddOffset(uint32(bmSize))
		return img, nil
	}

	img, err := newRegionImage(w, h)
	if err != nil {
		return nil, err
	}
	size := uint64((w+7)/8) * uint64(h)
	if size > uint64(stream.BytesLeft()) {
		return nil, errorf(ErrDataTruncated, "raw collective bitmap of %d bytes", size)
	}
	img.setPacked(stream.Pointer()[:size])
	stream.AddOffset(uint32(size))
	return img, nil
}

// export decodes the export run lengths (T.88 6.5.10) and collects the
// exported symbols from SDInSyms followed by newSyms.
func (p *SDDProc) export(newSyms []*Image, nextRun func() (int32, error)) (*SymbolDict, error) {
	total := p.numSyms()
	exported := make([]*Image, 0, min(uint64(p.SDNumExSyms), total))
	var index uint64
	for flag := false; index < total; flag = !flag {
		run, err := nextRun()
		if err != nil {
			return nil, err
		}
		if run < 0 || index+uint64(run) > total {
			return nil, errorf(ErrExportCountMismatch, "export run %d at %d of %d symbols", run, index, total)
		}
		if flag {
			for i := index; i < index+uint64(run); i++ {
				if i < uint64(len(p.SDInSyms)) {
					exported = append(exported, p.SDInSyms[i])
				} else {
					exported = append(exported, newSyms[i-uint64(len(p.SDInSyms))])
				}
			}
		}
		index += uint64(run)
	}
	if uint64(len(exported)) != uint64(p.SDNumExSyms) {
		return nil, errorf(ErrExportCountMismatch, "exported %d symbols, header declares %d", len(exported), p.SDNumExSyms)
	}
	return &SymbolDict{symbols: exported}, nil
}
