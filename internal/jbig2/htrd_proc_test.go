package jbig2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeGray is the inverse of GSIDProc.DecodeArith: plane j carries bit j of
// each value XOR bit j+1. Values of skipped cells must be 0.
func encodeGray(e *mqEncoder, ctx []ArithContext, p *GSIDProc, values []uint32) {
	grd := p.grdProc()
	w := int32(p.GSW)
	for j := int(p.GSBPP) - 1; j >= 0; j-- {
		plane, _ := NewImage(w, int32(p.GSH))
		for i, v := range values {
			bit := (v >> uint(j)) & 1
			if j+1 < int(p.GSBPP) {
				bit ^= (v >> uint(j+1)) & 1
			}
			plane.SetPixel(int32(i)%w, int32(i)/w, int(bit))
		}
		encodeGeneric(e, ctx, grd, plane)
	}
}

func TestGrayScaleRoundTrip(t *testing.T) {
	values := make([]uint32, 7*5)
	for i := range values {
		values[i] = uint32(i*5+i/3) % 8
	}
	for template := uint8(0); template < 4; template++ {
		p := &GSIDProc{GSBPP: 3, GSW: 7, GSH: 5, GSTemplate: template}
		enc := newMQEncoder()
		encodeGray(enc, p.NewContexts(), p, values)

		dec, err := NewArithDecoder(NewBitStream(enc.bytes()))
		require.NoError(t, err)
		got, err := p.DecodeArith(dec, p.NewContexts())
		require.NoError(t, err)
		assert.Equal(t, values, got, "template %d", template)
	}
}

func TestGrayScaleAdaptivePixels(t *testing.T) {
	assert.Equal(t, [8]int32{3, -1, -3, -1, 2, -2, -2, -2}, (&GSIDProc{GSTemplate: 1}).grdProc().GBAt)
	assert.Equal(t, int32(2), (&GSIDProc{GSTemplate: 2}).grdProc().GBAt[0])
}

func TestGrayScaleGridTooLarge(t *testing.T) {
	dec, err := NewArithDecoder(NewBitStream([]byte{0, 0}))
	require.NoError(t, err)
	p := &GSIDProc{GSBPP: 1, GSW: 1 << 20, GSH: 1 << 20}
	_, err = p.DecodeArith(dec, nil)
	assert.ErrorIs(t, err, ErrValueOutOfRange)
	_, err = p.DecodeMMR(nil)
	assert.ErrorIs(t, err, ErrValueOutOfRange)
}

func TestGrayScaleMMRMultiPlaneUnsupported(t *testing.T) {
	p := &GSIDProc{GSMMR: true, GSBPP: 2, GSW: 8, GSH: 2}
	_, err := p.DecodeMMR([]byte{0xc0})
	assert.ErrorIs(t, err, ErrUnsupported)

	p.GSBPP = 1
	got, err := p.DecodeMMR([]byte{0xc0})
	require.NoError(t, err)
	assert.Equal(t, make([]uint32, 16), got)
}

func halftonePatterns(t *testing.T) []*Image {
	return []*Image{
		imageFromRows(t, "00", "00"),
		imageFromRows(t, "11", "00"),
		imageFromRows(t, "01", "01"),
		imageFromRows(t, "11", "11"),
	}
}

func decodeHalftone(t *testing.T, p *HTRDProc, values []uint32) (*Image, error) {
	t.Helper()
	gsid, err := p.gsidProc()
	require.NoError(t, err)
	enc := newMQEncoder()
	encodeGray(enc, gsid.NewContexts(), gsid, values)

	dec, err := NewArithDecoder(NewBitStream(enc.bytes()))
	require.NoError(t, err)
	return p.DecodeArith(dec, p.NewContexts())
}

func TestHalftoneRegionTiling(t *testing.T) {
	p := &HTRDProc{
		HBW: 4, HBH: 4, HNumPats: 4, HPats: halftonePatterns(t), HCombOp: ComposeOR,
		HGW: 2, HGH: 2, HRX: 2 << 8, HPW: 2, HPH: 2,
	}
	img, err := decodeHalftone(t, p, []uint32{0, 1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"0011",
		"0000",
		"0111",
		"0111",
	}, imageRows(img))
}

func TestHalftoneRegionSkip(t *testing.T) {
	p := &HTRDProc{
		HBW: 4, HBH: 2, HNumPats: 4, HPats: halftonePatterns(t), HCombOp: ComposeOR,
		HEnableSkip: true, HGW: 3, HGH: 1, HRX: 2 << 8, HPW: 2, HPH: 2,
	}
	gsid, err := p.gsidProc()
	require.NoError(t, err)
	assert.Equal(t, []string{"001"}, imageRows(gsid.GSKip))

	img, err := decodeHalftone(t, p, []uint32{3, 2, 0})
	require.NoError(t, err)
	assert.Equal(t, []string{"1101", "1101"}, imageRows(img))
}

func TestHalftoneRegionDefaultPixelAndReplace(t *testing.T) {
	p := &HTRDProc{
		HBW: 3, HBH: 2, HNumPats: 4, HPats: halftonePatterns(t), HCombOp: ComposeReplace,
		HDefPixel: true, HGW: 1, HGH: 1, HPW: 2, HPH: 2,
	}
	img, err := decodeHalftone(t, p, []uint32{2})
	require.NoError(t, err)
	assert.Equal(t, []string{"011", "011"}, imageRows(img))
}

func TestHalftoneRegionGrayOutOfRange(t *testing.T) {
	p := &HTRDProc{
		HBW: 4, HBH: 2, HNumPats: 3, HPats: halftonePatterns(t)[:3], HCombOp: ComposeOR,
		HGW: 1, HGH: 1, HPW: 2, HPH: 2,
	}
	_, err := decodeHalftone(t, p, []uint32{3})
	assert.ErrorIs(t, err, ErrValueOutOfRange)
}

func TestHalftoneRegionSinglePattern(t *testing.T) {
	p := &HTRDProc{
		HBW: 4, HBH: 2, HNumPats: 1, HPats: halftonePatterns(t)[3:], HCombOp: ComposeOR,
		HGW: 2, HGH: 1, HRX: 2 << 8, HPW: 2, HPH: 2,
	}
	assert.Equal(t, uint8(0), p.bitsPerPixel())
	dec, err := NewArithDecoder(NewBitStream([]byte{0, 0}))
	require.NoError(t, err)
	img, err := p.DecodeArith(dec, p.NewContexts())
	require.NoError(t, err)
	assert.Equal(t, []string{"1111", "1111"}, imageRows(img))
}

func TestHalftoneRegionMMRMultiPlane(t *testing.T) {
	p := &HTRDProc{HMMR: true, HBW: 4, HBH: 4, HNumPats: 4, HPats: halftonePatterns(t), HGW: 8, HGH: 2, HPW: 2, HPH: 2}
	_, err := p.DecodeMMR([]byte{0xc0})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestHalftoneGridPosition(t *testing.T) {
	p := &HTRDProc{HGX: -256, HRX: 256, HRY: 256}
	x, y := p.gridPosition(1, 2)
	assert.Equal(t, int64(2), x)
	assert.Equal(t, int64(-1), y)

	assert.Equal(t, uint8(2), (&HTRDProc{HNumPats: 4}).bitsPerPixel())
	assert.Equal(t, uint8(3), (&HTRDProc{HNumPats: 5}).bitsPerPixel())
}
