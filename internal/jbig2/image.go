package jbig2

const (
	maxImagePixels = int(^uint32(0)>>1) - 31
	maxImageBytes  = maxImagePixels / 8
)

// ComposeOp is a region combination operator. The values match the two- and
// three-bit operator fields of the format.
type ComposeOp int

const (
	ComposeOR ComposeOp = iota
	ComposeAND
	ComposeXOR
	ComposeXNOR
	ComposeReplace
)

// String names the operator.
func (op ComposeOp) String() string {
	switch op {
	case ComposeOR:
		return "or"
	case ComposeAND:
		return "and"
	case ComposeXOR:
		return "xor"
	case ComposeXNOR:
		return "xnor"
	case ComposeReplace:
		return "replace"
	}
	return "invalid"
}

// Image is a packed 1-bit bitmap, 1 = black, rows MSB first and 32-bit
// aligned. An Image created by View shares its parent's storage.
type Image struct {
	width  int
	height int
	stride int
	data   []byte
	x0, y0 int
	view   bool
}

// NewImage allocates a zeroed w x h bitmap. Zero-sized images are valid and
// hold no storage.
func NewImage(w, h int32) (*Image, error) {
	if w < 0 || h < 0 {
		return nil, errorf(ErrValueOutOfRange, "image size %dx%d", w, h)
	}
	img := &Image{width: int(w), height: int(h)}
	if w == 0 || h == 0 {
		return img, nil
	}
	stridePixels := alignTo32(int(w))
	if int(h) > maxImagePixels/stridePixels {
		return nil, errorf(ErrValueOutOfRange, "image size %dx%d", w, h)
	}
	img.stride = stridePixels / 8
	img.data = make([]byte, img.stride*img.height)
	return img, nil
}

// Width returns the image width in pixels.
func (img *Image) Width() int { return img.width }

// Height returns the image height in pixels.
func (img *Image) Height() int { return img.height }

// GetPixel returns the bit at (x, y); coordinates outside the image read 0.
func (img *Image) GetPixel(x, y int32) int {
	if x < 0 || int(x) >= img.width || y < 0 || int(y) >= img.height {
		return 0
	}
	bx := img.x0 + int(x)
	return int(img.data[(img.y0+int(y))*img.stride+bx>>3]>>(7-bx&7)) & 1
}

// SetPixel writes the bit at (x, y); writes outside the image are dropped.
func (img *Image) SetPixel(x, y int32, v int) {
	if x < 0 || int(x) >= img.width || y < 0 || int(y) >= img.height {
		return
	}
	bx := img.x0 + int(x)
	idx := (img.y0+int(y))*img.stride + bx>>3
	mask := byte(1 << (7 - bx&7))
	if v != 0 {
		img.data[idx] |= mask
	} else {
		img.data[idx] &^= mask
	}
}

// CopyLine copies row srcY into row dstY, zero-filling when srcY is outside
// the image.
func (img *Image) CopyLine(dstY, srcY int32) {
	for x := int32(0); x < int32(img.width); x++ {
		img.SetPixel(x, dstY, img.GetPixel(x, srcY))
	}
}

// Fill sets every pixel to v.
func (img *Image) Fill(v bool) {
	if !img.view {
		value := byte(0)
		if v {
			value = 0xff
		}
		for i := range img.data {
			img.data[i] = value
		}
		return
	}
	bit := 0
	if v {
		bit = 1
	}
	for y := int32(0); y < int32(img.height); y++ {
		for x := int32(0); x < int32(img.width); x++ {
			img.SetPixel(x, y, bit)
		}
	}
}

// ComposeTo combines this image into dst with its top-left corner at (x, y),
// clipped to dst.
func (img *Image) ComposeTo(dst *Image, x, y int64, op ComposeOp) {
	xs0, ys0 := int64(0), int64(0)
	if x < 0 {
		xs0 = -x
	}
	if y < 0 {
		ys0 = -y
	}
	xs1 := min(int64(img.width), int64(dst.width)-x)
	ys1 := min(int64(img.height), int64(dst.height)-y)
	for sy := ys0; sy < ys1; sy++ {
		for sx := xs0; sx < xs1; sx++ {
			dx, dy := int32(x+sx), int32(y+sy)
			src := img.GetPixel(int32(sx), int32(sy))
			dst.SetPixel(dx, dy, applyCompose(op, dst.GetPixel(dx, dy), src))
		}
	}
}

// View returns a zero-copy w x h window at (x, y), clipped to the image. The
// view must not outlive its parent.
func (img *Image) View(x, y, w, h int32) *Image {
	if x < 0 {
		w += x
		x = 0
	}
	if y < 0 {
		h += y
		y = 0
	}
	w = max(0, min(w, int32(img.width)-x))
	h = max(0, min(h, int32(img.height)-y))
	return &Image{
		width:  int(w),
		height: int(h),
		stride: img.stride,
		data:   img.data,
		x0:     img.x0 + int(x),
		y0:     img.y0 + int(y),
		view:   true,
	}
}

// Clone returns an owned copy of the image.
func (img *Image) Clone() *Image {
	out, _ := NewImage(int32(img.width), int32(img.height))
	img.ComposeTo(out, 0, 0, ComposeReplace)
	return out
}

// Expand grows an owned image to height h, filling new rows with v.
func (img *Image) Expand(h int32, v bool) error {
	if img.view {
		return errorf(ErrValueOutOfRange, "cannot expand an image view")
	}
	if int(h) <= img.height {
		return nil
	}
	if img.data == nil {
		grown, err := NewImage(int32(img.width), h)
		if err != nil {
			return err
		}
		*img = *grown
		img.Fill(v)
		return nil
	}
	if int(h) > maxImageBytes/img.stride {
		return errorf(ErrValueOutOfRange, "page height %d", h)
	}
	old := len(img.data)
	grown := make([]byte, img.stride*int(h))
	copy(grown, img.data)
	if v {
		for i := old; i < len(grown); i++ {
			grown[i] = 0xff
		}
	}
	img.data = grown
	img.height = int(h)
	return nil
}

// Packed returns the bitmap as rows of ceil(width/8) bytes, MSB first,
// padding bits zero.
func (img *Image) Packed() []byte {
	rowBytes := (img.width + 7) / 8
	out := make([]byte, rowBytes*img.height)
	for y := 0; y < img.height; y++ {
		for x := 0; x < img.width; x++ {
			if img.GetPixel(int32(x), int32(y)) != 0 {
				out[y*rowBytes+x/8] |= 1 << (7 - x&7)
			}
		}
	}
	return out
}

func applyCompose(op ComposeOp, dst, src int) int {
	switch op {
	case ComposeOR:
		return dst | src
	case ComposeAND:
		return dst & src
	case ComposeXOR:
		return dst ^ src
	case ComposeXNOR:
		return 1 - (dst ^ src)
	default:
		return src
	}
}

func alignTo32(v int) int {
	return (v + 31) / 32 * 32
}

// truncate shrinks an owned image to height h.
func (img *Image) truncate(h int32) {
	if img.view || h < 0 || int(h) >= img.height {
		return
	}
	img.height = int(h)
	img.data = img.data[:img.stride*img.height]
}
