package jbig2

import (
	"image"
	"image/color"

	"github.com/pagebits/jbig2/internal/jbig2"
)

// Image is a decoded bi-level page. It implements image.Image with black
// for set pixels.
type Image struct {
	width  int
	height int
	// data holds rows of (width+7)/8 bytes, MSB first, 1 = black.
	data []byte
}

func newImage(img *jbig2.Image) *Image {
	return &Image{width: img.Width(), height: img.Height(), data: img.Packed()}
}

// Width returns the image width in pixels.
func (img *Image) Width() int { return img.width }

// Height returns the image height in pixels.
func (img *Image) Height() int { return img.height }

// Stride returns the number of bytes per row of Data.
func (img *Image) Stride() int { return (img.width + 7) / 8 }

// Data returns the packed rows, MSB first, 1 = black.
func (img *Image) Data() []byte { return img.data }

// Black reports whether the pixel at (x, y) is set. Pixels outside the image
// are white.
func (img *Image) Black(x, y int) bool {
	if x < 0 || y < 0 || x >= img.width || y >= img.height {
		return false
	}
	return img.data[y*img.Stride()+x/8]>>(7-x%8)&1 != 0
}

func (img *Image) ColorModel() color.Model { return color.GrayModel }

func (img *Image) Bounds() image.Rectangle { return image.Rect(0, 0, img.width, img.height) }

func (img *Image) At(x, y int) color.Color {
	if img.Black(x, y) {
		return color.Gray{Y: 0}
	}
	return color.Gray{Y: 0xff}
}

// ToGray converts the image to 8-bit grayscale, black on white.
func (img *Image) ToGray() *image.Gray {
	gray := image.NewGray(img.Bounds())
	stride := img.Stride()
	for y := 0; y < img.height; y++ {
		row := img.data[y*stride : (y+1)*stride]
		out := gray.Pix[y*gray.Stride : y*gray.Stride+img.width]
		for x := range out {
			if row[x/8]>>(7-x%8)&1 != 0 {
				out[x] = 0
			} else {
				out[x] = 0xff
			}
		}
	}
	return gray
}
