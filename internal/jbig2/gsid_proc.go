package jbig2

const maxGrayCells = uint64(maxImagePixels / 32)

// GSIDProc decodes a gray-scale image as a stack of GSBPP bit planes
// (T.88 Annex C.5). Values are returned row-major, GSW per row.
type GSIDProc struct {
	GSMMR      bool
	GSUseSkip  bool
	GSKip      *Image
	GSBPP      uint8
	GSW        uint32
	GSH        uint32
	GSTemplate uint8
}

func (p *GSIDProc) grdProc() *GRDProc {
	grd := &GRDProc{
		MMR:        p.GSMMR,
		GBW:        p.GSW,
		GBH:        p.GSH,
		GBTemplate: p.GSTemplate,
		UseSkip:    p.GSUseSkip,
		Skip:       p.GSKip,
	}
	grd.GBAt = [8]int32{2, -1, -3, -1, 2, -2, -2, -2}
	if p.GSTemplate <= 1 {
		grd.GBAt[0] = 3
	}
	return grd
}

// NewContexts allocates the context array shared by all planes.
func (p *GSIDProc) NewContexts() []ArithContext {
	return p.grdProc().NewContexts()
}

func (p *GSIDProc) checkSize() error {
	if p.GSBPP > 32 {
		return errorf(ErrValueOutOfRange, "%d bits per gray value", p.GSBPP)
	}
	if uint64(p.GSW)*uint64(p.GSH) > maxGrayCells {
		return errorf(ErrValueOutOfRange, "gray-scale grid %dx%d", p.GSW, p.GSH)
	}
	return nil
}

// DecodeArith decodes the planes most significant first, sharing contexts.
func (p *GSIDProc) DecodeArith(dec *ArithDecoder, contexts []ArithContext) ([]uint32, error) {
	if err := p.checkSize(); err != nil {
		return nil, err
	}
	grd := p.grdProc()
	values := make([]uint32, int(p.GSW)*int(p.GSH))
	var prev *Image
	for j := int(p.GSBPP) - 1; j >= 0; j-- {
		plane, err := grd.DecodeArith(dec, contexts)
		if err != nil {
			return nil, err
		}
		if prev != nil {
			prev.ComposeTo(plane, 0, 0, ComposeXOR)
		}
		p.accumulate(values, plane, j)
		prev = plane
	}
	return values, nil
}

// DecodeMMR decodes a single-plane gray-scale image from T.6 data.
func (p *GSIDProc) DecodeMMR(data []byte) ([]uint32, error) {
	if err := p.checkSize(); err != nil {
		return nil, err
	}
	values := make([]uint32, int(p.GSW)*int(p.GSH))
	switch p.GSBPP {
	case 0:
		return values, nil
	case 1:
	default:
		return nil, errorf(ErrUnsupported, "mmr gray-scale image with %d planes", p.GSBPP)
	}
	plane, err := p.grdProc().DecodeMMR(data)
	if err != nil {
		return nil, err
	}
	p.accumulate(values, plane, 0)
	return values, nil
}

func (p *GSIDProc) accumulate(values []uint32, plane *Image, bit int) {
	w := int(p.GSW)
	for y := 0; y < int(p.GSH); y++ {
		for x := 0; x < w; x++ {
			values[y*w+x] |= uint32(plane.GetPixel(int32(x), int32(y))) << uint(bit)
		}
	}
}
