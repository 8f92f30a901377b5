package jbig2

// GRRDProc holds parameters for generic refinement region decoding (T.88 6.3).
// GRAt[0:2] is the adaptive pixel in the region being decoded, GRAt[2:4] the
// one in the reference bitmap.
type GRRDProc struct {
	GRW         uint32
	GRH         uint32
	GRTemplate  uint8
	Reference   *Image
	ReferenceDX int32
	ReferenceDY int32
	TPGRON      bool
	GRAt        [4]int32
}

// grrdSLTPContexts code the SLTP bit: the context with only the centre
// reference pixel set.
var grrdSLTPContexts = [2]uint32{0x100, 0x080}

func (p *GRRDProc) contextBits() uint {
	if p.GRTemplate == 0 {
		return 13
	}
	return 10
}

// NewContexts allocates a zeroed context array sized for the template.
func (p *GRRDProc) NewContexts() []ArithContext {
	return newArithContexts(p.contextBits())
}

// context gathers the refinement neighbourhood of (x, y) in img and of the
// corresponding reference pixel.
func (p *GRRDProc) context(img *Image, x, y int32) uint32 {
	ref := p.Reference
	rx, ry := x-p.ReferenceDX, y-p.ReferenceDY
	var ctx uint32
	cur := func(dx, dy int32) {
		ctx = ctx<<1 | uint32(img.GetPixel(x+dx, y+dy))
	}
	refPx := func(dx, dy int32) {
		ctx = ctx<<1 | uint32(ref.GetPixel(rx+dx, ry+dy))
	}

	if p.GRTemplate == 0 {
		for dy := int32(-1); dy <= 1; dy++ {
			for dx := int32(-1); dx <= 1; dx++ {
				if dx == -1 && dy == -1 {
					refPx(p.GRAt[2], p.GRAt[3])
				} else {
					refPx(dx, dy)
				}
			}
		}
		cur(p.GRAt[0], p.GRAt[1])
		cur(0, -1)
		cur(1, -1)
		cur(-1, 0)
		return ctx
	}

	for dy := int32(-1); dy <= 1; dy++ {
		for dx := int32(-1); dx <= 1; dx++ {
			if (dy == -1 && dx != 0) || (dy == 1 && dx == -1) {
				continue
			}
			refPx(dx, dy)
		}
	}
	cur(-1, -1)
	cur(0, -1)
	cur(1, -1)
	cur(-1, 0)
	return ctx
}

// typicalValue reports whether the 3x3 reference neighbourhood of (x, y) is
// uniform, and its value.
func (p *GRRDProc) typicalValue(x, y int32) (int, bool) {
	rx, ry := x-p.ReferenceDX, y-p.ReferenceDY
	v := p.Reference.GetPixel(rx, ry)
	for dy := int32(-1); dy <= 1; dy++ {
		for dx := int32(-1); dx <= 1; dx++ {
			if p.Reference.GetPixel(rx+dx, ry+dy) != v {
				return 0, false
			}
		}
	}
	return v, true
}

// Decode runs the refinement procedure. contexts must hold at least
// 1<<13 (template 0) or 1<<10 (template 1) entries.
func (p *GRRDProc) Decode(dec *ArithDecoder, contexts []ArithContext) (*Image, error) {
	if p.Reference == nil {
		return nil, errorf(ErrMalformedHeader, "refinement without reference bitmap")
	}
	if p.GRTemplate > 1 {
		return nil, errorf(ErrMalformedHeader, "refinement template %d", p.GRTemplate)
	}
	if p.GRTemplate == 0 {
		if err := checkATPixel(p.GRAt[0], p.GRAt[1]); err != nil {
			return nil, err
		}
	}
	if len(contexts) < 1<<p.contextBits() {
		return nil, errorf(ErrValueOutOfRange, "%d refinement contexts for template %d", len(contexts), p.GRTemplate)
	}
	img, err := newRegionImage(p.GRW, p.GRH)
	if err != nil {
		return nil, err
	}

	ltp := 0
	for y := int32(0); y < int32(p.GRH); y++ {
		if p.TPGRON {
			ltp ^= dec.DecodeBit(&contexts[grrdSLTPContexts[p.GRTemplate]])
		}
		for x := int32(0); x < int32(p.GRW); x++ {
			if ltp != 0 {
				if v, ok := p.typicalValue(x, y); ok {
					img.SetPixel(x, y, v)
					continue
				}
			}
			if dec.DecodeBit(&contexts[p.context(img, x, y)]) != 0 {
				img.SetPixel(x, y, 1)
			}
		}
	}
	return img, nil
}
