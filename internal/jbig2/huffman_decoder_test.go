package jbig2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bitWriter packs values MSB first, the inverse of BitStream.
type bitWriter struct {
	buf   []byte
	nbits uint
}

func (w *bitWriter) writeBits(v uint64, n uint) {
	for i := int(n) - 1; i >= 0; i-- {
		if w.nbits%8 == 0 {
			w.buf = append(w.buf, 0)
		}
		if v>>uint(i)&1 != 0 {
			w.buf[len(w.buf)-1] |= 1 << (7 - w.nbits%8)
		}
		w.nbits++
	}
}

func (w *bitWriter) writeBytes(b ...byte) {
	w.align()
	w.buf = append(w.buf, b...)
	w.nbits += 8 * uint(len(b))
}

func (w *bitWriter) align() {
	if r := w.nbits % 8; r != 0 {
		w.nbits += 8 - r
	}
}

func (w *bitWriter) bytes() []byte { return w.buf }

// encodeHuffman writes v with table, the inverse of HuffmanDecoder.Decode.
func encodeHuffman(t *testing.T, w *bitWriter, table *HuffmanTable, v int64) {
	t.Helper()
	for _, line := range table.codes {
		if line.PrefixLength == 0 || line.IsOOB {
			continue
		}
		var extra int64
		switch {
		case line.IsLowerRange:
			if v > int64(line.RangeLow) {
				continue
			}
			extra = int64(line.RangeLow) - v
		case line.RangeLength == 32:
			if v < int64(line.RangeLow) {
				continue
			}
			extra = v - int64(line.RangeLow)
		default:
			if v < int64(line.RangeLow) || v >= int64(line.RangeLow)+int64(1)<<line.RangeLength {
				continue
			}
			extra = v - int64(line.RangeLow)
		}
		w.writeBits(uint64(line.Code), uint(line.PrefixLength))
		w.writeBits(uint64(extra), uint(line.RangeLength))
		return
	}
	t.Fatalf("value %d not codable", v)
}

func encodeHuffmanOOB(t *testing.T, w *bitWriter, table *HuffmanTable) {
	t.Helper()
	for _, line := range table.codes {
		if line.IsOOB {
			w.writeBits(uint64(line.Code), uint(line.PrefixLength))
			return
		}
	}
	t.Fatal("table has no OOB line")
}

func TestStandardTableB1Codewords(t *testing.T) {
	table, err := StandardHuffmanTable(1)
	require.NoError(t, err)

	var w bitWriter
	w.writeBits(0b0, 1)
	w.writeBits(9, 4) // 9
	w.writeBits(0b10, 2)
	w.writeBits(4, 8) // 20
	w.writeBits(0b111, 3)
	w.writeBits(1, 32) // 65809

	dec := NewHuffmanDecoder(NewBitStream(w.bytes()))
	for _, want := range []int32{9, 20, 65809} {
		got, err := dec.DecodeNonOOB(table)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestStandardTableB2OOB(t *testing.T) {
	table, err := StandardHuffmanTable(2)
	require.NoError(t, err)
	assert.True(t, table.HasOOB())

	dec := NewHuffmanDecoder(NewBitStream([]byte{0b11111100}))
	_, ok, err := dec.Decode(table)
	require.NoError(t, err)
	assert.False(t, ok)

	dec = NewHuffmanDecoder(NewBitStream([]byte{0b11111100}))
	_, err = dec.DecodeNonOOB(table)
	assert.ErrorIs(t, err, ErrUnexpectedOOB)
}

func TestStandardTablesRoundTrip(t *testing.T) {
	for idx := 1; idx <= 15; idx++ {
		table, err := StandardHuffmanTable(idx)
		require.NoError(t, err)

		var w bitWriter
		var want []int32
		for _, line := range table.codes {
			if line.PrefixLength == 0 || line.IsOOB {
				continue
			}
			v := line.RangeLow
			if line.RangeLength > 0 && !line.IsLowerRange && line.RangeLength < 32 {
				v = line.RangeLow + int32(1)<<line.RangeLength - 1
			}
			encodeHuffman(t, &w, table, int64(v))
			want = append(want, v)
		}
		if table.HasOOB() {
			encodeHuffmanOOB(t, &w, table)
		}

		dec := NewHuffmanDecoder(NewBitStream(w.bytes()))
		for _, v := range want {
			got, err := dec.DecodeNonOOB(table)
			require.NoError(t, err, "table B.%d", idx)
			assert.Equal(t, v, got, "table B.%d", idx)
		}
		if table.HasOOB() {
			_, ok, err := dec.Decode(table)
			require.NoError(t, err)
			assert.False(t, ok, "table B.%d", idx)
		}
	}
}

func TestStandardTableInvalidIndex(t *testing.T) {
	_, err := StandardHuffmanTable(0)
	assert.ErrorIs(t, err, ErrValueOutOfRange)
	_, err = StandardHuffmanTable(16)
	assert.ErrorIs(t, err, ErrValueOutOfRange)
}

// customTableData encodes a table over [0, 10) with an OOB line:
// 0..7 -> "0"+3 bits, 8..9 -> "10"+1 bit, OOB -> "110",
// lower -> "1110"+32 bits, upper -> "1111"+32 bits.
func customTableData() []byte {
	var w bitWriter
	w.writeBytes(0x01|2<<1|3<<4, 0, 0, 0, 0, 0, 0, 0, 10)
	w.writeBits(1, 3)
	w.writeBits(3, 4)
	w.writeBits(2, 3)
	w.writeBits(1, 4)
	w.writeBits(4, 3)
	w.writeBits(4, 3)
	w.writeBits(3, 3)
	return w.bytes()
}

func TestParseHuffmanTable(t *testing.T) {
	table, err := ParseHuffmanTable(NewBitStream(customTableData()))
	require.NoError(t, err)
	require.Len(t, table.Codes(), 5)
	assert.True(t, table.HasOOB())

	var w bitWriter
	w.writeBits(0b0, 1)
	w.writeBits(5, 3)
	w.writeBits(0b10, 2)
	w.writeBits(1, 1)
	w.writeBits(0b1111, 4)
	w.writeBits(2, 32)
	w.writeBits(0b1110, 4)
	w.writeBits(3, 32)
	w.writeBits(0b110, 3)

	dec := NewHuffmanDecoder(NewBitStream(w.bytes()))
	for _, want := range []int32{5, 9, 12, -4} {
		got, err := dec.DecodeNonOOB(table)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, ok, err := dec.Decode(table)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseHuffmanTableErrors(t *testing.T) {
	_, err := ParseHuffmanTable(NewBitStream([]byte{0x00, 0, 0, 0, 5, 0, 0, 0, 5}))
	assert.ErrorIs(t, err, ErrMalformedHeader)

	_, err = ParseHuffmanTable(NewBitStream([]byte{0x00, 0, 0, 0}))
	assert.ErrorIs(t, err, ErrDataTruncated)
}

func TestHuffmanInvalidCode(t *testing.T) {
	table, err := newHuffmanTableFromLengths([]uint8{1})
	require.NoError(t, err)
	dec := NewHuffmanDecoder(NewBitStream([]byte{0xff, 0xff, 0xff, 0xff, 0xff}))
	_, _, err = dec.Decode(table)
	assert.ErrorIs(t, err, ErrInvalidHuffmanCode)
}
