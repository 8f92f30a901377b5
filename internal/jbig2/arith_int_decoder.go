package jbig2

import "math"

type arithIntDecodeDatum struct {
	needBits int
	base     int64
}

var arithIntDecodeData = [...]arithIntDecodeDatum{
	{2, 0},
	{4, 4},
	{6, 20},
	{8, 84},
	{12, 340},
	{32, 4436},
}

// ArithIntDecoder implements the integer decoding procedure of T.88 Annex A.2
// (IADH, IADW, IAEX, IADT, ...). Each instance owns its 512 contexts.
type ArithIntDecoder struct {
	ctx []ArithContext
}

// NewArithIntDecoder constructs a decoder with fresh contexts.
func NewArithIntDecoder() *ArithIntDecoder {
	return &ArithIntDecoder{ctx: make([]ArithContext, 512)}
}

// Decode returns the decoded value, or ok == false for OOB.
func (dec *ArithIntDecoder) Decode(arith *ArithDecoder) (value int32, ok bool, err error) {
	prev := 1
	decodeBit := func() int {
		bit := arith.DecodeBit(&dec.ctx[prev&0x1FF])
		if prev < 256 {
			prev = (prev << 1) | bit
		} else {
			prev = (((prev << 1) | bit) & 0x1FF) | 0x100
		}
		return bit
	}

	s := decodeBit()
	depth := 0
	for depth < len(arithIntDecodeData)-1 && decodeBit() == 1 {
		depth++
	}

	var v int64
	for i := 0; i < arithIntDecodeData[depth].needBits; i++ {
		v = (v << 1) | int64(decodeBit())
	}
	v += arithIntDecodeData[depth].base

	switch {
	case s == 1 && v == 0:
		return 0, false, nil
	case s == 1:
		v = -v
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, false, errorf(ErrValueOutOfRange, "integer %d", v)
	}
	return int32(v), true, nil
}

// DecodeNonOOB decodes a value where OOB is not permitted.
func (dec *ArithIntDecoder) DecodeNonOOB(arith *ArithDecoder) (int32, error) {
	v, ok, err := dec.Decode(arith)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrUnexpectedOOB
	}
	return v, nil
}

// ArithIaidDecoder implements the IAID procedure of T.88 Annex A.3.
type ArithIaidDecoder struct {
	ctx []ArithContext
	len uint8
}

// NewArithIaidDecoder builds a decoder for codewords of symCodeLen bits.
func NewArithIaidDecoder(symCodeLen uint8) *ArithIaidDecoder {
	return &ArithIaidDecoder{
		ctx: make([]ArithContext, 1<<symCodeLen),
		len: symCodeLen,
	}
}

// Decode reads one symbol ID in [0, 2^len).
func (dec *ArithIaidDecoder) Decode(arith *ArithDecoder) uint32 {
	prev := uint32(1)
	for i := uint8(0); i < dec.len; i++ {
		bit := arith.DecodeBit(&dec.ctx[prev])
		prev = (prev << 1) | uint32(bit)
	}
	return prev - (1 << dec.len)
}
