package jbig2

// mqEncoder is the MQ encoder of T.88 Annex E, used to build test streams for
// the decoders in this package.
type mqEncoder struct {
	buf []byte // buf[0] is a scratch byte absorbing the first carry
	a   uint32
	c   uint32
	ct  uint32
}

func newMQEncoder() *mqEncoder {
	return &mqEncoder{buf: []byte{0}, a: 0x8000, ct: 12}
}

func (e *mqEncoder) encodeBit(ctx *ArithContext, bit int) {
	qe := arithQeTable[ctx.i]
	q := uint32(qe.qe)
	e.a -= q
	if bit == ctx.MPS() {
		if e.a&0x8000 != 0 {
			e.c += q
			return
		}
		if e.a < q {
			e.a = q
		} else {
			e.c += q
		}
		ctx.i = qe.nmps
		e.renormalize()
		return
	}

	if e.a < q {
		e.c += q
	} else {
		e.a = q
	}
	if qe.switchM {
		ctx.mps = !ctx.mps
	}
	ctx.i = qe.nlps
	e.renormalize()
}

func (e *mqEncoder) renormalize() {
	for {
		e.a <<= 1
		e.c <<= 1
		e.ct--
		if e.ct == 0 {
			e.byteOut()
		}
		if e.a&0x8000 != 0 {
			return
		}
	}
}

func (e *mqEncoder) byteOut() {
	last := len(e.buf) - 1
	if e.buf[last] != 0xff && e.c&0x8000000 != 0 {
		e.buf[last]++
		e.c &= 0x7ffffff
	}
	if e.buf[len(e.buf)-1] == 0xff {
		e.buf = append(e.buf, byte(e.c>>20))
		e.c &= 0xfffff
		e.ct = 7
		return
	}
	e.buf = append(e.buf, byte(e.c>>19))
	e.c &= 0x7ffff
	e.ct = 8
}

// bytes flushes the encoder and returns the coded data terminated by the
// 0xFF 0xAC marker.
func (e *mqEncoder) bytes() []byte {
	tempc := e.c + e.a
	e.c |= 0xffff
	if e.c >= tempc {
		e.c -= 0x8000
	}
	e.c <<= e.ct
	e.byteOut()
	e.c <<= e.ct
	e.byteOut()

	out := append([]byte(nil), e.buf[1:]...)
	if out[len(out)-1] == 0xff {
		out = out[:len(out)-1]
	}
	return append(out, 0xff, 0xac)
}

// encodeInt is the inverse of ArithIntDecoder.Decode.
func encodeInt(e *mqEncoder, ctx []ArithContext, v int32) {
	prev := 1
	put := func(bit int) {
		e.encodeBit(&ctx[prev&0x1ff], bit)
		if prev < 256 {
			prev = (prev << 1) | bit
		} else {
			prev = (((prev << 1) | bit) & 0x1ff) | 0x100
		}
	}

	magnitude := int64(v)
	sign := 0
	if magnitude < 0 {
		sign = 1
		magnitude = -magnitude
	}
	depth := 0
	for depth < len(arithIntDecodeData)-1 && magnitude >= arithIntDecodeData[depth+1].base {
		depth++
	}

	put(sign)
	for i := 0; i < depth; i++ {
		put(1)
	}
	if depth < len(arithIntDecodeData)-1 {
		put(0)
	}
	rest := magnitude - arithIntDecodeData[depth].base
	for i := arithIntDecodeData[depth].needBits - 1; i >= 0; i-- {
		put(int(rest>>uint(i)) & 1)
	}
}

// encodeOOB writes the out-of-band value: a negative zero.
func encodeOOB(e *mqEncoder, ctx []ArithContext) {
	prev := 1
	for _, bit := range []int{1, 0, 0, 0} {
		e.encodeBit(&ctx[prev], bit)
		prev = (prev << 1) | bit
	}
}

// encodeIAID is the inverse of ArithIaidDecoder.Decode.
func encodeIAID(e *mqEncoder, ctx []ArithContext, codeLen uint8, id uint32) {
	prev := uint32(1)
	for i := int(codeLen) - 1; i >= 0; i-- {
		bit := int(id>>uint(i)) & 1
		e.encodeBit(&ctx[prev], bit)
		prev = (prev << 1) | uint32(bit)
	}
}
