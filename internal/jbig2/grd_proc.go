package jbig2

import (
	"errors"
	"math"

	"github.com/pagebits/jbig2/internal/fax"
)

// GRDProc holds the parameters of the generic region decoding procedure
// (T.88 6.2).
type GRDProc struct {
	MMR         bool
	GBW         uint32
	GBH         uint32
	GBTemplate  uint8
	TPGDON      bool
	ExtTemplate bool
	UseSkip     bool
	Skip        *Image
	GBAt        [8]int32
}

// sltpContexts are the contexts coding the SLTP bit for templates 0-3.
var sltpContexts = [4]uint32{0x9b25, 0x0795, 0x00e5, 0x0195}

// contextBits returns the number of context bits of the template.
func (p *GRDProc) contextBits() uint {
	switch p.GBTemplate {
	case 0:
		return 16
	case 1:
		return 13
	default:
		return 10
	}
}

// NewContexts allocates a zeroed context array sized for the template.
func (p *GRDProc) NewContexts() []ArithContext {
	return newArithContexts(p.contextBits())
}

func (p *GRDProc) atPixels() int {
	if p.GBTemplate == 0 {
		return 4
	}
	return 1
}

func (p *GRDProc) checkAdaptiveTemplate() error {
	for i := 0; i < p.atPixels(); i++ {
		if err := checkATPixel(p.GBAt[2*i], p.GBAt[2*i+1]); err != nil {
			return err
		}
	}
	return nil
}

// checkATPixel rejects adaptive pixels at or after the pixel being decoded.
func checkATPixel(x, y int32) error {
	if y > 0 || (y == 0 && x >= 0) {
		return errorf(ErrInvalidAdaptiveTemplate, "(%d, %d)", x, y)
	}
	return nil
}

// context gathers the template neighbourhood of (x, y), most significant
// bit first in the order of T.88 figures 3-6.
func (p *GRDProc) context(img *Image, x, y int32) uint32 {
	var ctx uint32
	px := func(dx, dy int32) {
		ctx = ctx<<1 | uint32(img.GetPixel(x+dx, y+dy))
	}
	at := p.GBAt
	switch p.GBTemplate {
	case 0:
		for i := 0; i < 4; i++ {
			px(at[2*i], at[2*i+1])
		}
		for dx := int32(-1); dx <= 1; dx++ {
			px(dx, -2)
		}
		for dx := int32(-2); dx <= 2; dx++ {
			px(dx, -1)
		}
		for dx := int32(-4); dx <= -1; dx++ {
			px(dx, 0)
		}
	case 1:
		px(at[0], at[1])
		for dx := int32(-1); dx <= 2; dx++ {
			px(dx, -2)
		}
		for dx := int32(-2); dx <= 2; dx++ {
			px(dx, -1)
		}
		for dx := int32(-3); dx <= -1; dx++ {
			px(dx, 0)
		}
	case 2:
		px(at[0], at[1])
		for dx := int32(-1); dx <= 1; dx++ {
			px(dx, -2)
		}
		for dx := int32(-2); dx <= 1; dx++ {
			px(dx, -1)
		}
		for dx := int32(-2); dx <= -1; dx++ {
			px(dx, 0)
		}
	default:
		px(at[0], at[1])
		for dx := int32(-3); dx <= 1; dx++ {
			px(dx, -1)
		}
		for dx := int32(-4); dx <= -1; dx++ {
			px(dx, 0)
		}
	}
	return ctx
}

// DecodeArith decodes the region with the arithmetic decoder using the given
// contexts, which callers may share between procedure invocations.
func (p *GRDProc) DecodeArith(dec *ArithDecoder, contexts []ArithContext) (*Image, error) {
	if p.GBTemplate > 3 {
		return nil, errorf(ErrMalformedHeader, "generic template %d", p.GBTemplate)
	}
	if p.ExtTemplate {
		return nil, errorf(ErrUnsupported, "extended generic template")
	}
	if err := p.checkAdaptiveTemplate(); err != nil {
		return nil, err
	}
	if len(contexts) < 1<<p.contextBits() {
		return nil, errorf(ErrValueOutOfRange, "%d generic contexts for template %d", len(contexts), p.GBTemplate)
	}
	img, err := newRegionImage(p.GBW, p.GBH)
	if err != nil {
		return nil, err
	}

	skip := p.Skip
	if !p.UseSkip {
		skip = nil
	}
	ltp := 0
	for y := int32(0); y < int32(p.GBH); y++ {
		if p.TPGDON {
			ltp ^= dec.DecodeBit(&contexts[sltpContexts[p.GBTemplate]])
			if ltp != 0 {
				img.CopyLine(y, y-1)
				continue
			}
		}
		for x := int32(0); x < int32(p.GBW); x++ {
			if skip != nil && skip.GetPixel(x, y) != 0 {
				continue
			}
			if dec.DecodeBit(&contexts[p.context(img, x, y)]) != 0 {
				img.SetPixel(x, y, 1)
			}
		}
	}
	return img, nil
}

// DecodeMMR decodes the region from T.6 coded data.
func (p *GRDProc) DecodeMMR(data []byte) (*Image, error) {
	img, err := newRegionImage(p.GBW, p.GBH)
	if err != nil {
		return nil, err
	}
	packed, err := fax.DecodeG4(data, int(p.GBW), int(p.GBH))
	if err != nil {
		if errors.Is(err, fax.ErrShortImage) {
			return nil, errorf(ErrDataTruncated, "%v", err)
		}
		return nil, errorf(ErrDecodeFailure, "%v", err)
	}
	if len(packed) != fax.RowBytes(int(p.GBW))*int(p.GBH) {
		return nil, errorf(ErrDecodeFailure, "mmr data decoded to %d bytes", len(packed))
	}
	img.setPacked(packed)
	return img, nil
}

// newRegionImage allocates a bitmap for region dimensions read from the
// stream.
func newRegionImage(w, h uint32) (*Image, error) {
	if w > math.MaxInt32 || h > math.MaxInt32 {
		return nil, errorf(ErrValueOutOfRange, "region size %dx%d", w, h)
	}
	return NewImage(int32(w), int32(h))
}

// setPacked loads rows of ceil(width/8) bytes into an owned image.
func (img *Image) setPacked(packed []byte) {
	rowBytes := (img.width + 7) / 8
	if rowBytes == 0 || img.view {
		return
	}
	var mask byte = 0xff
	if r := img.width % 8; r != 0 {
		mask = 0xff << (8 - r)
	}
	for y := 0; y < img.height; y++ {
		row := img.data[y*img.stride : y*img.stride+rowBytes]
		copy(row, packed[y*rowBytes:(y+1)*rowBytes])
		row[rowBytes-1] &= mask
	}
}
