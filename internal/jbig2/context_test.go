package jbig2

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func atBytes(at []int32) []byte {
	b := make([]byte, len(at))
	for i, v := range at {
		b[i] = byte(int8(v))
	}
	return b
}

func genericRegionData(img *Image, x, y uint32, op byte) []byte {
	w, h := uint32(img.Width()), uint32(img.Height())
	p := &GRDProc{GBW: w, GBH: h, GBAt: nominalGBAt}
	data := regionInfoData(w, h, x, y, op)
	data = append(data, 0x00)
	data = append(data, atBytes(nominalGBAt[:])...)
	return append(data, encodeGenericRegion(p, img)...)
}

func pageInfoSegment(number, page, w, h uint32) testSegment {
	return testSegment{number: number, typ: SegmentPageInfo, page: page, data: pageInfoData(w, h, 0, 0)}
}

func genericSegment(number, page uint32, typ SegmentType, img *Image, x, y uint32) testSegment {
	return testSegment{number: number, typ: typ, page: page, data: genericRegionData(img, x, y, 0)}
}

func endOfPage(number, page uint32) testSegment {
	return testSegment{number: number, typ: SegmentEndOfPage, page: page}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDecoder(t *testing.T, opts DecoderOptions) *Decoder {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	dec, err := NewDecoder(opts)
	require.NoError(t, err)
	return dec
}

func decodeSinglePage(t *testing.T, opts DecoderOptions) *Image {
	t.Helper()
	dec := newTestDecoder(t, opts)
	require.Equal(t, 1, dec.PageCount())
	img, err := dec.DecodePage(0)
	require.NoError(t, err)
	return img
}

func TestDecodeGenericPage(t *testing.T) {
	region := imageFromRows(t, "10110010", "01001101")
	segs := []testSegment{
		pageInfoSegment(0, 1, 8, 4),
		genericSegment(1, 1, SegmentImmediateGenericRegion, region, 0, 1),
		endOfPage(2, 1),
		{number: 3, typ: SegmentEndOfFile},
	}
	want := []string{"00000000", "10110010", "01001101", "00000000"}

	for name, data := range map[string][]byte{
		"sequential":    sequentialFile(1, segs...),
		"random access": randomAccessFile(1, segs...),
		"embedded":      embeddedStream(segs...),
	} {
		t.Run(name, func(t *testing.T) {
			img := decodeSinglePage(t, DecoderOptions{SrcData: data})
			assert.Equal(t, want, imageRows(img))
		})
	}
}

func TestDecodeRegionDeclaredOperator(t *testing.T) {
	// A black page whose default operator is OR, without the override bit.
	page := testSegment{number: 0, typ: SegmentPageInfo, page: 1, data: pageInfoData(4, 1, 0x04, 0)}
	region := testSegment{
		number: 1, typ: SegmentImmediateGenericRegion, page: 1,
		data: genericRegionData(imageFromRows(t, "00"), 1, 0, byte(ComposeReplace)),
	}
	img := decodeSinglePage(t, DecoderOptions{SrcData: sequentialFile(1, page, region, endOfPage(2, 1), testSegment{number: 3, typ: SegmentEndOfFile})})
	assert.Equal(t, []string{"1001"}, imageRows(img))
}

func TestDecodeGenericRegionUnknownLength(t *testing.T) {
	region := imageFromRows(t, "11110000", "00001111")
	data := genericRegionData(region, 0, 0, 0)
	binary.BigEndian.PutUint32(data[4:], unknownHeight)
	data = binary.BigEndian.AppendUint32(data, 2)

	img := decodeSinglePage(t, DecoderOptions{SrcData: sequentialFile(1,
		pageInfoSegment(0, 1, 8, 3),
		testSegment{number: 1, typ: SegmentImmediateGenericRegion, page: 1, data: data, unknownLength: true},
		endOfPage(2, 1),
	)})
	assert.Equal(t, []string{"11110000", "00001111", "00000000"}, imageRows(img))
}

func symbolDictData(flags uint16, at []int32, numEx, numNew uint32, coded []byte) []byte {
	data := binary.BigEndian.AppendUint16(nil, flags)
	data = append(data, atBytes(at)...)
	data = binary.BigEndian.AppendUint32(data, numEx)
	data = binary.BigEndian.AppendUint32(data, numNew)
	return append(data, coded...)
}

// arithDictSegment holds the symbols "11/01", "101/010" and "1/0/1".
func arithDictSegment(t *testing.T, number uint32, flags uint16) testSegment {
	p := &SDDProc{SDNumNewSyms: 3, SDNumExSyms: 3, SDAt: nominalGBAt}
	coded := encodeGenericDict(t, p).exportRuns(0, 3)
	return testSegment{number: number, typ: SegmentSymbolDict, data: symbolDictData(flags, nominalGBAt[:], 3, 3, coded)}
}

func arithTextSegment(t *testing.T, number uint32, refs []uint32, numSyms uint32) testSegment {
	p := &TRDProc{SBW: 8, SBH: 3, SBStrips: 1, SBCombOp: ComposeOR, RefCorner: CornerTopLeft}
	enc := newMQEncoder()
	encodeTextRegion(t, enc, newTRDIntEncoders(ceilLog2(numSyms)), nil, p, 0, []textStrip{
		{dt: 0, instances: []textInstance{{s: 0, id: 2}, {s: 1, id: 0}, {s: 2, id: 1}}},
	})
	data := regionInfoData(8, 3, 0, 0, 0)
	data = binary.BigEndian.AppendUint16(data, uint16(CornerTopLeft)<<4)
	data = binary.BigEndian.AppendUint32(data, 3)
	data = append(data, enc.bytes()...)
	return testSegment{number: number, typ: SegmentImmediateTextRegion, refs: refs, page: 1, data: data}
}

var arithTextRows = []string{
	"11101010",
	"00100100",
	"10000000",
}

func TestDecodeSymbolDictionaryAndText(t *testing.T) {
	globals := embeddedStream(arithDictSegment(t, 0, 0))
	page := embeddedStream(
		pageInfoSegment(1, 1, 8, 3),
		arithTextSegment(t, 2, []uint32{0}, 3),
		endOfPage(3, 1),
	)
	img := decodeSinglePage(t, DecoderOptions{GlobalData: globals, SrcData: page})
	assert.Equal(t, arithTextRows, imageRows(img))
}

func TestDecodeSymbolDictionaryFlagsPowerJBIG2(t *testing.T) {
	// DH selector set on an arithmetic dictionary.
	segs := []testSegment{
		arithDictSegment(t, 1, 0x0004),
		pageInfoSegment(2, 1, 8, 3),
		arithTextSegment(t, 3, []uint32{1}, 3),
		endOfPage(4, 1),
	}
	dec := newTestDecoder(t, DecoderOptions{SrcData: sequentialFile(1, segs...)})
	_, err := dec.DecodePage(0)
	assert.ErrorIs(t, err, ErrMalformedHeader)

	img := decodeSinglePage(t, DecoderOptions{SrcData: sequentialFile(1, append([]testSegment{powerJBIG2Comment(0)}, segs...)...)})
	assert.Equal(t, arithTextRows, imageRows(img))
}

func TestDecodeHuffmanSymbolDictionaryAndText(t *testing.T) {
	var dict bitWriter
	dict.writeBytes(symbolDictData(0x0001, nil, 2, 2, nil)...)
	encodeHuffman(t, &dict, mustStandardTable(4), 2)
	encodeHuffman(t, &dict, mustStandardTable(2), 2)
	encodeHuffman(t, &dict, mustStandardTable(2), 1)
	encodeHuffmanOOB(t, &dict, mustStandardTable(2))
	encodeHuffman(t, &dict, mustStandardTable(1), 0)
	dict.writeBytes(0b11101000, 0b01010000)
	encodeHuffman(t, &dict, mustStandardTable(1), 0)
	encodeHuffman(t, &dict, mustStandardTable(1), 2)

	var text bitWriter
	text.writeBytes(regionInfoData(6, 2, 0, 0, 0)...)
	text.writeBytes(0x00, 0x11, 0x00, 0x00, 0, 0, 0, 2)
	// Symbol ID table: run codes 0 and 1 are "0" and "1", then two
	// lengths of 1.
	for i := 0; i < 35; i++ {
		if i < 2 {
			text.writeBits(1, 4)
		} else {
			text.writeBits(0, 4)
		}
	}
	text.writeBits(0b11, 2)
	text.align()
	codes, err := newHuffmanTableFromLengths([]uint8{1, 1})
	require.NoError(t, err)
	encodeHuffman(t, &text, mustStandardTable(11), 1)
	encodeHuffman(t, &text, mustStandardTable(11), 1)
	encodeHuffman(t, &text, mustStandardTable(6), 0)
	encodeHuffman(t, &text, codes, 1)
	encodeHuffman(t, &text, mustStandardTable(8), 1)
	encodeHuffman(t, &text, codes, 0)
	encodeHuffmanOOB(t, &text, mustStandardTable(8))

	img := decodeSinglePage(t, DecoderOptions{SrcData: sequentialFile(1,
		testSegment{number: 0, typ: SegmentSymbolDict, page: 1, data: dict.bytes()},
		pageInfoSegment(1, 1, 6, 2),
		testSegment{number: 2, typ: SegmentImmediateTextRegion, refs: []uint32{0}, page: 1, data: text.bytes()},
		endOfPage(3, 1),
	)})
	assert.Equal(t, []string{"101110", "010010"}, imageRows(img))
}

func TestDecodePatternAndHalftone(t *testing.T) {
	pdd := &PDDProc{HDPW: 2, HDPH: 2, GrayMax: 3}
	grd, err := pdd.grdProc()
	require.NoError(t, err)
	enc := newMQEncoder()
	encodeGeneric(enc, pdd.NewContexts(), grd, imageFromRows(t, "00110111", "00000111"))
	patterns := append([]byte{0x00, 2, 2, 0, 0, 0, 3}, enc.bytes()...)

	htrd := &HTRDProc{
		HBW: 4, HBH: 4, HNumPats: 4, HPats: halftonePatterns(t), HCombOp: ComposeOR,
		HGW: 2, HGH: 2, HRX: 2 << 8, HPW: 2, HPH: 2,
	}
	gsid, err := htrd.gsidProc()
	require.NoError(t, err)
	enc = newMQEncoder()
	encodeGray(enc, gsid.NewContexts(), gsid, []uint32{0, 1, 2, 3})
	halftone := append(regionInfoData(4, 4, 0, 0, 0), 0x00)
	halftone = binary.BigEndian.AppendUint32(halftone, 2)
	halftone = binary.BigEndian.AppendUint32(halftone, 2)
	halftone = binary.BigEndian.AppendUint32(halftone, 0)
	halftone = binary.BigEndian.AppendUint32(halftone, 0)
	halftone = binary.BigEndian.AppendUint16(halftone, 2<<8)
	halftone = binary.BigEndian.AppendUint16(halftone, 0)
	halftone = append(halftone, enc.bytes()...)

	img := decodeSinglePage(t, DecoderOptions{SrcData: sequentialFile(1,
		pageInfoSegment(0, 1, 4, 4),
		testSegment{number: 1, typ: SegmentPatternDict, page: 1, data: patterns},
		testSegment{number: 2, typ: SegmentImmediateHalftoneRegion, refs: []uint32{1}, page: 1, data: halftone},
		endOfPage(3, 1),
	)})
	assert.Equal(t, []string{"0011", "0000", "0111", "0111"}, imageRows(img))
}

func refinementData(t *testing.T, reference, target *Image) []byte {
	w, h := uint32(target.Width()), uint32(target.Height())
	p := &GRRDProc{GRW: w, GRH: h, Reference: reference, GRAt: nominalGRAt}
	enc := newMQEncoder()
	encodeRefinement(enc, p.NewContexts(), p, target)
	data := append(regionInfoData(w, h, 0, 0, 0), 0x00)
	data = append(data, atBytes(nominalGRAt[:])...)
	return append(data, enc.bytes()...)
}

func TestDecodeRefinementOfIntermediateRegion(t *testing.T) {
	reference := imageFromRows(t, "1010", "0101")
	target := imageFromRows(t, "0110", "1001")
	img := decodeSinglePage(t, DecoderOptions{SrcData: sequentialFile(1,
		pageInfoSegment(0, 1, 4, 2),
		genericSegment(1, 1, SegmentIntermediateGenericRegion, reference, 0, 0),
		testSegment{number: 2, typ: SegmentImmediateRefinementRegion, refs: []uint32{1}, page: 1, data: refinementData(t, reference, target)},
		endOfPage(3, 1),
	)})
	assert.Equal(t, imageRows(target), imageRows(img))
}

func TestDecodePageRefinement(t *testing.T) {
	reference := imageFromRows(t, "1010", "0101")
	target := imageFromRows(t, "0110", "1001")
	img := decodeSinglePage(t, DecoderOptions{SrcData: sequentialFile(1,
		pageInfoSegment(0, 1, 4, 2),
		genericSegment(1, 1, SegmentImmediateGenericRegion, reference, 0, 0),
		testSegment{number: 2, typ: SegmentImmediateRefinementRegion, page: 1, data: refinementData(t, reference, target)},
		endOfPage(3, 1),
	)})
	// The refined area replaces the page content.
	assert.Equal(t, imageRows(target), imageRows(img))
}

func endOfStripe(number, page, y uint32) testSegment {
	return testSegment{number: number, typ: SegmentEndOfStripe, page: page, data: binary.BigEndian.AppendUint32(nil, y)}
}

func TestDecodeStripedPage(t *testing.T) {
	img := decodeSinglePage(t, DecoderOptions{SrcData: sequentialFile(1,
		testSegment{number: 0, typ: SegmentPageInfo, page: 1, data: pageInfoData(8, unknownHeight, 0, 0x8000|50)},
		endOfStripe(1, 1, 49),
		genericSegment(2, 1, SegmentImmediateGenericRegion, imageFromRows(t, "11000011"), 0, 60),
		endOfStripe(3, 1, 99),
		endOfPage(4, 1),
	)})
	assert.Equal(t, 100, img.Height())
	assert.Equal(t, []string{"11000011"}, imageRows(img.View(0, 60, 8, 1)))
	assert.Equal(t, []string{"00000000"}, imageRows(img.View(0, 99, 8, 1)))
}

func TestDecodeMultiplePages(t *testing.T) {
	dec := newTestDecoder(t, DecoderOptions{SrcData: sequentialFile(2,
		pageInfoSegment(0, 1, 4, 1),
		genericSegment(1, 1, SegmentImmediateGenericRegion, imageFromRows(t, "1000"), 0, 0),
		endOfPage(2, 1),
		pageInfoSegment(3, 2, 4, 1),
		genericSegment(4, 2, SegmentImmediateGenericRegion, imageFromRows(t, "0001"), 0, 0),
		endOfPage(5, 2),
		testSegment{number: 6, typ: SegmentEndOfFile},
	)})
	require.Equal(t, 2, dec.PageCount())

	second, err := dec.DecodePage(1)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001"}, imageRows(second))
	first, err := dec.DecodePage(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"1000"}, imageRows(first))

	_, err = dec.DecodePage(2)
	assert.ErrorIs(t, err, ErrValueOutOfRange)
}

func TestDecodeDictionaryOfAnotherPage(t *testing.T) {
	// Power JBIG2 output may share a dictionary across pages.
	dict := arithDictSegment(t, 1, 0)
	dict.page = 2
	img := decodeSinglePage(t, DecoderOptions{SrcData: sequentialFile(1,
		powerJBIG2Comment(0),
		dict,
		pageInfoSegment(2, 1, 8, 3),
		arithTextSegment(t, 3, []uint32{1}, 3),
		endOfPage(4, 1),
	)})
	assert.Equal(t, arithTextRows, imageRows(img))
}

func TestDecodeExtensions(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	comment := extensionData(extensionSingleByteComment, append([]byte("Title\x00scan\x00"), 0)...)
	dec := newTestDecoder(t, DecoderOptions{Logger: logger, SrcData: sequentialFile(1,
		testSegment{number: 0, typ: SegmentExtension, data: comment},
		testSegment{number: 1, typ: SegmentExtension, data: extensionData(0x10000000)},
		testSegment{number: 2, typ: SegmentProfiles, data: []byte{0, 0, 0, 0}},
		pageInfoSegment(3, 1, 2, 2),
		endOfPage(4, 1),
	)})
	assert.Equal(t, []Comment{{"Title", "scan"}}, dec.Comments())

	img, err := dec.DecodePage(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"00", "00"}, imageRows(img))
	assert.Contains(t, logs.String(), "skipping unknown extension")
	assert.Contains(t, logs.String(), "key=Title")
}

func TestDecodeErrors(t *testing.T) {
	region := imageFromRows(t, "1")
	unknownHeightRegion := genericRegionData(region, 0, 0, 0)
	binary.BigEndian.PutUint32(unknownHeightRegion[4:], unknownHeight)

	tests := []struct {
		name string
		segs []testSegment
		want error
	}{
		{"region before page information", []testSegment{
			genericSegment(0, 1, SegmentImmediateGenericRegion, region, 0, 0),
			pageInfoSegment(1, 1, 1, 1),
		}, ErrSegmentGraphInvalid},
		{"second page information", []testSegment{
			pageInfoSegment(0, 1, 1, 1),
			pageInfoSegment(1, 1, 1, 1),
		}, ErrMalformedHeader},
		{"color palette", []testSegment{
			pageInfoSegment(0, 1, 1, 1),
			{number: 1, typ: SegmentColorPalette, page: 1},
		}, ErrUnsupported},
		{"necessary extension", []testSegment{
			{number: 0, typ: SegmentExtension, data: extensionData(0x80000010)},
			pageInfoSegment(1, 1, 1, 1),
		}, ErrUnsupported},
		{"end of page with data", []testSegment{
			pageInfoSegment(0, 1, 1, 1),
			{number: 1, typ: SegmentEndOfPage, page: 1, data: []byte{0}},
		}, ErrMalformedHeader},
		{"short end of stripe", []testSegment{
			pageInfoSegment(0, 1, 1, 1),
			{number: 1, typ: SegmentEndOfStripe, page: 1, data: []byte{0, 0}},
		}, ErrMalformedHeader},
		{"region of unknown height", []testSegment{
			pageInfoSegment(0, 1, 1, 1),
			{number: 1, typ: SegmentImmediateGenericRegion, page: 1, data: unknownHeightRegion},
		}, ErrValueOutOfRange},
		{"missing custom table", []testSegment{
			pageInfoSegment(0, 1, 1, 1),
			{number: 1, typ: SegmentSymbolDict, page: 1, data: symbolDictData(0x0001|3<<2, nil, 0, 0, nil)},
		}, ErrSegmentGraphInvalid},
		{"page information too short", []testSegment{
			{number: 0, typ: SegmentPageInfo, page: 1, data: make([]byte, 10)},
		}, ErrMalformedHeader},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec, err := NewDecoder(DecoderOptions{SrcData: sequentialFile(1, tt.segs...), Logger: discardLogger()})
			if err == nil {
				_, err = dec.DecodePage(0)
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewDecoderEmptyData(t *testing.T) {
	_, err := NewDecoder(DecoderOptions{})
	assert.ErrorIs(t, err, ErrDataTruncated)
}

func TestTableSelector(t *testing.T) {
	custom, err := ParseHuffmanTable(NewBitStream(customTableData()))
	require.NoError(t, err)
	s := &tableSelector{custom: []*HuffmanTable{custom}}

	got, err := s.pick("DS", 3, 3, 8, 9, 10)
	require.NoError(t, err)
	assert.Same(t, custom, got)

	_, err = s.pick("DT", 3, 3, 11, 12, 13)
	assert.ErrorIs(t, err, ErrSegmentGraphInvalid)

	got, err = s.pick("DH", 1, 3, 4, 5)
	require.NoError(t, err)
	assert.Equal(t, mustStandardTable(5).Codes(), got.Codes())

	_, err = s.pick("DH", 2, 3, 4, 5)
	assert.ErrorIs(t, err, ErrMalformedHeader)
}
