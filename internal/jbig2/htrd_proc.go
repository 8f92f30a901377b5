package jbig2

// HTRDProc stores halftone region decoding parameters (T.88 6.6).
type HTRDProc struct {
	HBW         uint32
	HBH         uint32
	HMMR        bool
	HTemplate   uint8
	HNumPats    uint32
	HPats       []*Image
	HDefPixel   bool
	HCombOp     ComposeOp
	HEnableSkip bool
	HGW         uint32
	HGH         uint32
	HGX         int32
	HGY         int32
	HRX         uint16
	HRY         uint16
	HPW         uint8
	HPH         uint8
}

// gridPosition returns the region coordinates of grid cell (mg, ng).
func (p *HTRDProc) gridPosition(mg, ng uint32) (x, y int64) {
	x = (int64(p.HGX) + int64(mg)*int64(p.HRY) + int64(ng)*int64(p.HRX)) >> 8
	y = (int64(p.HGY) + int64(mg)*int64(p.HRX) - int64(ng)*int64(p.HRY)) >> 8
	return x, y
}

// bitsPerPixel returns ceil(log2(HNumPats)).
func (p *HTRDProc) bitsPerPixel() uint8 { return ceilLog2(p.HNumPats) }

func (p *HTRDProc) gsidProc() (*GSIDProc, error) {
	gsid := &GSIDProc{
		GSMMR:      p.HMMR,
		GSBPP:      p.bitsPerPixel(),
		GSW:        p.HGW,
		GSH:        p.HGH,
		GSTemplate: p.HTemplate,
		GSUseSkip:  p.HEnableSkip,
	}
	if err := gsid.checkSize(); err != nil {
		return nil, err
	}
	if p.HEnableSkip {
		skip, err := newRegionImage(p.HGW, p.HGH)
		if err != nil {
			return nil, err
		}
		for mg := uint32(0); mg < p.HGH; mg++ {
			for ng := uint32(0); ng < p.HGW; ng++ {
				x, y := p.gridPosition(mg, ng)
				if x+int64(p.HPW) <= 0 || x >= int64(p.HBW) || y+int64(p.HPH) <= 0 || y >= int64(p.HBH) {
					skip.SetPixel(int32(ng), int32(mg), 1)
				}
			}
		}
		gsid.GSKip = skip
	}
	return gsid, nil
}

// NewContexts allocates the context array for the gray-scale planes.
func (p *HTRDProc) NewContexts() []ArithContext {
	gsid := GSIDProc{GSTemplate: p.HTemplate}
	return gsid.NewContexts()
}

// DecodeArith decodes the gray-scale grid with the arithmetic decoder and
// renders the region.
func (p *HTRDProc) DecodeArith(dec *ArithDecoder, contexts []ArithContext) (*Image, error) {
	gsid, err := p.gsidProc()
	if err != nil {
		return nil, err
	}
	gray, err := gsid.DecodeArith(dec, contexts)
	if err != nil {
		return nil, err
	}
	return p.render(gray)
}

// DecodeMMR decodes the gray-scale grid from T.6 data and renders the region.
func (p *HTRDProc) DecodeMMR(data []byte) (*Image, error) {
	gsid, err := p.gsidProc()
	if err != nil {
		return nil, err
	}
	gray, err := gsid.DecodeMMR(data)
	if err != nil {
		return nil, err
	}
	return p.render(gray)
}

// render fills the region with HDefPixel and composites the pattern selected
// by each gray value at its grid position.
func (p *HTRDProc) render(gray []uint32) (*Image, error) {
	if uint32(len(p.HPats)) < p.HNumPats {
		return nil, errorf(ErrMalformedHeader, "%d patterns for %d gray levels", len(p.HPats), p.HNumPats)
	}
	img, err := newRegionImage(p.HBW, p.HBH)
	if err != nil {
		return nil, err
	}
	img.Fill(p.HDefPixel)

	for mg := uint32(0); mg < p.HGH; mg++ {
		for ng := uint32(0); ng < p.HGW; ng++ {
			value := gray[int(mg)*int(p.HGW)+int(ng)]
			if value >= p.HNumPats {
				return nil, errorf(ErrValueOutOfRange, "gray value %d with %d patterns", value, p.HNumPats)
			}
			x, y := p.gridPosition(mg, ng)
			p.HPats[value].ComposeTo(img, x, y, p.HCombOp)
		}
	}
	return img, nil
}
