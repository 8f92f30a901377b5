package jbig2

import "math"

// HuffmanCode is one line of a Huffman table (T.88 B.2). A zero PrefixLength
// marks a line that is never coded.
type HuffmanCode struct {
	PrefixLength uint8
	RangeLength  uint8
	RangeLow     int32
	IsLowerRange bool
	IsOOB        bool
	Code         uint32
}

// HuffmanTable is a canonical prefix code table, either one of the standard
// tables B.1-B.15 or one defined by a tables segment.
type HuffmanTable struct {
	codes  []HuffmanCode
	hasOOB bool
}

type tableLine struct {
	preflen  uint8
	rangeLen uint8
	rangeLow int32
}

// StandardHuffmanTable returns standard table B.idx, idx in 1..15.
func StandardHuffmanTable(idx int) (*HuffmanTable, error) {
	if idx <= 0 || idx >= len(builtinHuffmanTables) {
		return nil, errorf(ErrValueOutOfRange, "standard huffman table %d", idx)
	}
	def := builtinHuffmanTables[idx]
	lower := len(def.lines) - 2
	if def.htoob {
		lower--
	}
	ht := &HuffmanTable{hasOOB: def.htoob, codes: make([]HuffmanCode, len(def.lines))}
	for i, line := range def.lines {
		ht.codes[i] = HuffmanCode{
			PrefixLength: line.preflen,
			RangeLength:  line.rangeLen,
			RangeLow:     line.rangeLow,
			IsLowerRange: i == lower,
			IsOOB:        def.htoob && i == len(def.lines)-1,
		}
	}
	if err := assignHuffmanCodes(ht.codes); err != nil {
		return nil, err
	}
	return ht, nil
}

// mustStandardTable is for table indices fixed at compile time.
func mustStandardTable(idx int) *HuffmanTable {
	ht, err := StandardHuffmanTable(idx)
	if err != nil {
		panic(err)
	}
	return ht
}

// ParseHuffmanTable decodes the data of a tables segment (T.88 B.2).
func ParseHuffmanTable(stream *BitStream) (*HuffmanTable, error) {
	flag, err := stream.ReadByte()
	if err != nil {
		return nil, err
	}
	if flag&0x80 != 0 {
		return nil, errorf(ErrMalformedHeader, "tables segment flags 0x%02x", flag)
	}
	ht := &HuffmanTable{hasOOB: flag&0x01 != 0}
	htps := uint32((flag>>1)&0x07) + 1
	htrs := uint32((flag>>4)&0x07) + 1
	low, err := stream.ReadInt32()
	if err != nil {
		return nil, err
	}
	high, err := stream.ReadInt32()
	if err != nil {
		return nil, err
	}
	if low >= high {
		return nil, errorf(ErrMalformedHeader, "huffman table range [%d, %d)", low, high)
	}

	curLow := int64(low)
	for curLow < int64(high) {
		preflen, err := stream.ReadNBits(htps)
		if err != nil {
			return nil, err
		}
		rangeLen, err := stream.ReadNBits(htrs)
		if err != nil {
			return nil, err
		}
		if rangeLen >= 32 {
			return nil, errorf(ErrMalformedHeader, "huffman range length %d", rangeLen)
		}
		ht.codes = append(ht.codes, HuffmanCode{
			PrefixLength: uint8(preflen),
			RangeLength:  uint8(rangeLen),
			RangeLow:     int32(curLow),
		})
		curLow += int64(1) << rangeLen
	}

	preflen, err := stream.ReadNBits(htps)
	if err != nil {
		return nil, err
	}
	if low == math.MinInt32 {
		return nil, errorf(ErrMalformedHeader, "huffman lower range below int32")
	}
	ht.codes = append(ht.codes, HuffmanCode{PrefixLength: uint8(preflen), RangeLength: 32, RangeLow: low - 1, IsLowerRange: true})

	preflen, err = stream.ReadNBits(htps)
	if err != nil {
		return nil, err
	}
	ht.codes = append(ht.codes, HuffmanCode{PrefixLength: uint8(preflen), RangeLength: 32, RangeLow: high})

	if ht.hasOOB {
		preflen, err = stream.ReadNBits(htps)
		if err != nil {
			return nil, err
		}
		ht.codes = append(ht.codes, HuffmanCode{PrefixLength: uint8(preflen), IsOOB: true})
	}

	if err := assignHuffmanCodes(ht.codes); err != nil {
		return nil, err
	}
	return ht, nil
}

// newHuffmanTableFromLengths builds a table mapping line i to the value i,
// as used for text region symbol ID codes.
func newHuffmanTableFromLengths(lengths []uint8) (*HuffmanTable, error) {
	ht := &HuffmanTable{codes: make([]HuffmanCode, len(lengths))}
	for i, l := range lengths {
		ht.codes[i] = HuffmanCode{PrefixLength: l, RangeLow: int32(i)}
	}
	if err := assignHuffmanCodes(ht.codes); err != nil {
		return nil, err
	}
	return ht, nil
}

// Codes exposes the table lines with their assigned codes.
func (ht *HuffmanTable) Codes() []HuffmanCode { return ht.codes }

// HasOOB reports whether the table can code the out-of-band value.
func (ht *HuffmanTable) HasOOB() bool { return ht.hasOOB }

// assignHuffmanCodes assigns canonical prefix codes (T.88 B.3).
func assignHuffmanCodes(codes []HuffmanCode) error {
	maxLen := uint8(0)
	for _, c := range codes {
		maxLen = max(maxLen, c.PrefixLength)
	}
	if maxLen > 32 {
		return errorf(ErrMalformedHeader, "huffman prefix length %d", maxLen)
	}
	if maxLen == 0 {
		return nil
	}

	lenCounts := make([]uint64, maxLen+1)
	for _, c := range codes {
		lenCounts[c.PrefixLength]++
	}
	lenCounts[0] = 0

	firstCode := uint64(0)
	for curLen := uint8(1); curLen <= maxLen; curLen++ {
		firstCode = (firstCode + lenCounts[curLen-1]) << 1
		cur := firstCode
		for i := range codes {
			if codes[i].PrefixLength != curLen {
				continue
			}
			if cur >= uint64(1)<<curLen {
				return errorf(ErrMalformedHeader, "huffman code space exhausted at length %d", curLen)
			}
			codes[i].Code = uint32(cur)
			cur++
		}
	}
	return nil
}

var (
	tableLine1  = []tableLine{{1, 4, 0}, {2, 8, 16}, {3, 16, 272}, {0, 32, -1}, {3, 32, 65808}}
	tableLine2  = []tableLine{{1, 0, 0}, {2, 0, 1}, {3, 0, 2}, {4, 3, 3}, {5, 6, 11}, {0, 32, -1}, {6, 32, 75}, {6, 0, 0}}
	tableLine3  = []tableLine{{8, 8, -256}, {1, 0, 0}, {2, 0, 1}, {3, 0, 2}, {4, 3, 3}, {5, 6, 11}, {8, 32, -257}, {7, 32, 75}, {6, 0, 0}}
	tableLine4  = []tableLine{{1, 0, 1}, {2, 0, 2}, {3, 0, 3}, {4, 3, 4}, {5, 6, 12}, {0, 32, -1}, {5, 32, 76}}
	tableLine5  = []tableLine{{7, 8, -255}, {1, 0, 1}, {2, 0, 2}, {3, 0, 3}, {4, 3, 4}, {5, 6, 12}, {7, 32, -256}, {6, 32, 76}}
	tableLine6  = []tableLine{{5, 10, -2048}, {4, 9, -1024}, {4, 8, -512}, {4, 7, -256}, {5, 6, -128}, {5, 5, -64}, {4, 5, -32}, {2, 7, 0}, {3, 7, 128}, {3, 8, 256}, {4, 9, 512}, {4, 10, 1024}, {6, 32, -2049}, {6, 32, 2048}}
	tableLine7  = []tableLine{{4, 9, -1024}, {3, 8, -512}, {4, 7, -256}, {5, 6, -128}, {5, 5, -64}, {4, 5, -32}, {4, 5, 0}, {5, 5, 32}, {5, 6, 64}, {4, 7, 128}, {3, 8, 256}, {3, 9, 512}, {3, 10, 1024}, {5, 32, -1025}, {5, 32, 2048}}
	tableLine8  = []tableLine{{8, 3, -15}, {9, 1, -7}, {8, 1, -5}, {9, 0, -3}, {7, 0, -2}, {4, 0, -1}, {2, 1, 0}, {5, 0, 2}, {6, 0, 3}, {3, 4, 4}, {6, 1, 20}, {4, 4, 22}, {4, 5, 38}, {5, 6, 70}, {5, 7, 134}, {6, 7, 262}, {7, 8, 390}, {6, 10, 646}, {9, 32, -16}, {9, 32, 1670}, {2, 0, 0}}
	tableLine9  = []tableLine{{8, 4, -31}, {9, 2, -15}, {8, 2, -11}, {9, 1, -7}, {7, 1, -5}, {4, 1, -3}, {3, 1, -1}, {3, 1, 1}, {5, 1, 3}, {6, 1, 5}, {3, 5, 7}, {6, 2, 39}, {4, 5, 43}, {4, 6, 75}, {5, 7, 139}, {5, 8, 267}, {6, 8, 523}, {7, 9, 779}, {6, 11, 1291}, {9, 32, -32}, {9, 32, 3339}, {2, 0, 0}}
	tableLine10 = []tableLine{{7, 4, -21}, {8, 0, -5}, {7, 0, -4}, {5, 0, -3}, {2, 2, -2}, {5, 0, 2}, {6, 0, 3}, {7, 0, 4}, {8, 0, 5}, {2, 6, 6}, {5, 5, 70}, {6, 5, 102}, {6, 6, 134}, {6, 7, 198}, {6, 8, 326}, {6, 9, 582}, {6, 10, 1094}, {7, 11, 2118}, {8, 32, -22}, {8, 32, 4166}, {2, 0, 0}}
	tableLine11 = []tableLine{{1, 0, 1}, {2, 1, 2}, {4, 0, 4}, {4, 1, 5}, {5, 1, 7}, {5, 2, 9}, {6, 2, 13}, {7, 2, 17}, {7, 3, 21}, {7, 4, 29}, {7, 5, 45}, {7, 6, 77}, {0, 32, 0}, {7, 32, 141}}
	tableLine12 = []tableLine{{1, 0, 1}, {2, 0, 2}, {3, 1, 3}, {5, 0, 5}, {5, 1, 6}, {6, 1, 8}, {7, 0, 10}, {7, 1, 11}, {7, 2, 13}, {7, 3, 17}, {7, 4, 25}, {8, 5, 41}, {0, 32, 0}, {8, 32, 73}}
	tableLine13 = []tableLine{{1, 0, 1}, {3, 0, 2}, {4, 0, 3}, {5, 0, 4}, {4, 1, 5}, {3, 3, 7}, {6, 1, 15}, {6, 2, 17}, {6, 3, 21}, {6, 4, 29}, {6, 5, 45}, {7, 6, 77}, {0, 32, 0}, {7, 32, 141}}
	tableLine14 = []tableLine{{3, 0, -2}, {3, 0, -1}, {1, 0, 0}, {3, 0, 1}, {3, 0, 2}, {0, 32, -3}, {0, 32, 3}}
	tableLine15 = []tableLine{{7, 4, -24}, {6, 2, -8}, {5, 1, -4}, {4, 0, -2}, {3, 0, -1}, {1, 0, 0}, {3, 0, 1}, {4, 0, 2}, {5, 1, 3}, {6, 2, 5}, {7, 4, 9}, {7, 32, -25}, {7, 32, 25}}
)

var builtinHuffmanTables = [...]struct {
	htoob bool
	lines []tableLine
}{
	{},
	{false, tableLine1},
	{true, tableLine2},
	{true, tableLine3},
	{false, tableLine4},
	{false, tableLine5},
	{false, tableLine6},
	{false, tableLine7},
	{true, tableLine8},
	{true, tableLine9},
	{true, tableLine10},
	{false, tableLine11},
	{false, tableLine12},
	{false, tableLine13},
	{false, tableLine14},
	{false, tableLine15},
}
