package jbig2

import "math"

// HuffmanDecoder reads table-coded integers from a bit stream.
type HuffmanDecoder struct {
	stream *BitStream
}

// NewHuffmanDecoder constructs a Huffman decoder bound to the provided stream.
func NewHuffmanDecoder(stream *BitStream) *HuffmanDecoder {
	return &HuffmanDecoder{stream: stream}
}

// Decode reads one value coded with table. ok is false when the out-of-band
// line was read.
func (hd *HuffmanDecoder) Decode(table *HuffmanTable) (value int32, ok bool, err error) {
	var code uint32
	for bits := uint8(1); bits <= 32; bits++ {
		bit, err := hd.stream.Read1Bit()
		if err != nil {
			return 0, false, err
		}
		code = (code << 1) | bit

		for i := range table.codes {
			line := &table.codes[i]
			if line.PrefixLength != bits || line.Code != code {
				continue
			}
			if line.IsOOB {
				return 0, false, nil
			}
			var extra uint32
			if line.RangeLength > 0 {
				extra, err = hd.stream.ReadNBits(uint32(line.RangeLength))
				if err != nil {
					return 0, false, err
				}
			}
			v := int64(line.RangeLow) + int64(extra)
			if line.IsLowerRange {
				v = int64(line.RangeLow) - int64(extra)
			}
			if v < math.MinInt32 || v > math.MaxInt32 {
				return 0, false, errorf(ErrValueOutOfRange, "huffman value %d", v)
			}
			return int32(v), true, nil
		}
	}
	return 0, false, ErrInvalidHuffmanCode
}

// DecodeNonOOB decodes a value where OOB is not permitted.
func (hd *HuffmanDecoder) DecodeNonOOB(table *HuffmanTable) (int32, error) {
	v, ok, err := hd.Decode(table)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrUnexpectedOOB
	}
	return v, nil
}

// Stream exposes the underlying bit stream.
func (hd *HuffmanDecoder) Stream() *BitStream { return hd.stream }
