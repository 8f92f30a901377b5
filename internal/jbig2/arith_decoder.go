package jbig2

const defaultAValue = 0x8000

// arithQe is one row of the Qe probability estimation table (T.88 Table E.1).
type arithQe struct {
	qe      uint16
	nmps    uint8
	nlps    uint8
	switchM bool
}

var arithQeTable = [...]arithQe{
	{0x5601, 1, 1, true}, {0x3401, 2, 6, false}, {0x1801, 3, 9, false},
	{0x0AC1, 4, 12, false}, {0x0521, 5, 29, false}, {0x0221, 38, 33, false},
	{0x5601, 7, 6, true}, {0x5401, 8, 14, false}, {0x4801, 9, 14, false},
	{0x3801, 10, 14, false}, {0x3001, 11, 17, false}, {0x2401, 12, 18, false},
	{0x1C01, 13, 20, false}, {0x1601, 29, 21, false}, {0x5601, 15, 14, true},
	{0x5401, 16, 14, false}, {0x5101, 17, 15, false}, {0x4801, 18, 16, false},
	{0x3801, 19, 17, false}, {0x3401, 20, 18, false}, {0x3001, 21, 19, false},
	{0x2801, 22, 19, false}, {0x2401, 23, 20, false}, {0x2201, 24, 21, false},
	{0x1C01, 25, 22, false}, {0x1801, 26, 23, false}, {0x1601, 27, 24, false},
	{0x1401, 28, 25, false}, {0x1201, 29, 26, false}, {0x1101, 30, 27, false},
	{0x0AC1, 31, 28, false}, {0x09C1, 32, 29, false}, {0x08A1, 33, 30, false},
	{0x0521, 34, 31, false}, {0x0441, 35, 32, false}, {0x02A1, 36, 33, false},
	{0x0221, 37, 34, false}, {0x0141, 38, 35, false}, {0x0111, 39, 36, false},
	{0x0085, 40, 37, false}, {0x0049, 41, 38, false}, {0x0025, 42, 39, false},
	{0x0015, 43, 40, false}, {0x0009, 44, 41, false}, {0x0005, 45, 42, false},
	{0x0001, 45, 43, false}, {0x5601, 46, 46, false},
}

// ArithContext is the adaptive probability state of one context index.
// The zero value is the initial state.
type ArithContext struct {
	mps bool
	i   uint8
}

// Index returns the current state index.
func (ctx *ArithContext) Index() uint8 { return ctx.i }

// MPS returns the most probable symbol for the context.
func (ctx *ArithContext) MPS() int {
	if ctx.mps {
		return 1
	}
	return 0
}

func (ctx *ArithContext) takeMPS(qe arithQe) int {
	ctx.i = qe.nmps
	return ctx.MPS()
}

func (ctx *ArithContext) takeLPS(qe arithQe) int {
	d := 1 - ctx.MPS()
	if qe.switchM {
		ctx.mps = !ctx.mps
	}
	ctx.i = qe.nlps
	return d
}

// newArithContexts allocates a context array for a template of the given
// number of context bits.
func newArithContexts(bits uint) []ArithContext {
	return make([]ArithContext, 1<<bits)
}

// ArithDecoder is the MQ binary arithmetic decoder of T.88 Annex E. Past the
// end of its input it behaves as if fed an endless run of 0xFF bytes.
type ArithDecoder struct {
	stream *BitStream
	c      uint32
	a      uint32
	ct     uint32
}

// NewArithDecoder runs INITDEC at the stream's current byte.
func NewArithDecoder(stream *BitStream) (*ArithDecoder, error) {
	if stream.BytesLeft() < 2 {
		return nil, ErrDataTooShort
	}
	dec := &ArithDecoder{stream: stream}
	dec.c = uint32(stream.CurByteArith()) << 16
	dec.byteIn()
	dec.c <<= 7
	dec.ct -= 7
	dec.a = defaultAValue
	return dec, nil
}

// DecodeBit decodes one binary decision in ctx.
func (dec *ArithDecoder) DecodeBit(ctx *ArithContext) int {
	qe := arithQeTable[ctx.i]
	dec.a -= uint32(qe.qe)
	if dec.c>>16 < uint32(qe.qe) {
		var d int
		if dec.a < uint32(qe.qe) {
			d = ctx.takeMPS(qe)
		} else {
			d = ctx.takeLPS(qe)
		}
		dec.a = uint32(qe.qe)
		dec.renormalize()
		return d
	}

	dec.c -= uint32(qe.qe) << 16
	if dec.a&defaultAValue != 0 {
		return ctx.MPS()
	}
	var d int
	if dec.a < uint32(qe.qe) {
		d = ctx.takeLPS(qe)
	} else {
		d = ctx.takeMPS(qe)
	}
	dec.renormalize()
	return d
}

func (dec *ArithDecoder) byteIn() {
	if dec.stream.CurByteArith() == 0xFF {
		if dec.stream.NextByteArith() > 0x8F {
			dec.c += 0xFF00
			dec.ct = 8
			return
		}
		dec.stream.IncByte()
		dec.c += uint32(dec.stream.CurByteArith()) << 9
		dec.ct = 7
		return
	}
	dec.stream.IncByte()
	dec.c += uint32(dec.stream.CurByteArith()) << 8
	dec.ct = 8
}

func (dec *ArithDecoder) renormalize() {
	for {
		if dec.ct == 0 {
			dec.byteIn()
		}
		dec.a <<= 1
		dec.c <<= 1
		dec.ct--
		if dec.a&defaultAValue != 0 {
			return
		}
	}
}
