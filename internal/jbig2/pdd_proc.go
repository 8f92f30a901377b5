package jbig2

// PDDProc holds the parameters of the pattern dictionary decoding procedure
// (T.88 6.7).
type PDDProc struct {
	HDMMR      bool
	HDPW       uint8
	HDPH       uint8
	GrayMax    uint32
	HDTemplate uint8
}

func (p *PDDProc) grdProc() (*GRDProc, error) {
	if p.HDPW == 0 || p.HDPH == 0 {
		return nil, errorf(ErrMalformedHeader, "pattern size %dx%d", p.HDPW, p.HDPH)
	}
	width := (uint64(p.GrayMax) + 1) * uint64(p.HDPW)
	if width > uint64(maxImagePixels) {
		return nil, errorf(ErrValueOutOfRange, "pattern dictionary width %d", width)
	}
	return &GRDProc{
		MMR:        p.HDMMR,
		GBW:        uint32(width),
		GBH:        uint32(p.HDPH),
		GBTemplate: p.HDTemplate,
		GBAt:       [8]int32{-int32(p.HDPW), 0, -3, -1, 2, -2, -2, -2},
	}, nil
}

// NewContexts allocates the context array for the collective bitmap.
func (p *PDDProc) NewContexts() []ArithContext {
	grd := GRDProc{GBTemplate: p.HDTemplate}
	return grd.NewContexts()
}

// DecodeArith decodes the collective bitmap with the arithmetic decoder.
func (p *PDDProc) DecodeArith(dec *ArithDecoder, contexts []ArithContext) (*PatternDict, error) {
	grd, err := p.grdProc()
	if err != nil {
		return nil, err
	}
	collective, err := grd.DecodeArith(dec, contexts)
	if err != nil {
		return nil, err
	}
	return p.slice(collective), nil
}

// DecodeMMR decodes the collective bitmap from T.6 data.
func (p *PDDProc) DecodeMMR(data []byte) (*PatternDict, error) {
	grd, err := p.grdProc()
	if err != nil {
		return nil, err
	}
	collective, err := grd.DecodeMMR(data)
	if err != nil {
		return nil, err
	}
	return p.slice(collective), nil
}

func (p *PDDProc) slice(collective *Image) *PatternDict {
	return newPatternDict(collective, p.GrayMax+1, int32(p.HDPW), int32(p.HDPH))
}
