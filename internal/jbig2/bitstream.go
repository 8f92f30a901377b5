package jbig2

const maxSpanSize = 256 * 1024 * 1024

// BitStream is an MSB-first reader over a segment's data. Multi-byte values
// are big-endian. Reads past the end fail with ErrDataTruncated, except for
// the arithmetic decoder accessors which synthesize 0xFF.
type BitStream struct {
	buf    []byte
	byteIx uint32
	bitIx  uint32
}

// NewBitStream constructs a bit stream over data. Inputs above 256 MB are
// rejected by presenting an empty buffer.
func NewBitStream(data []byte) *BitStream {
	if len(data) > maxSpanSize {
		data = nil
	}
	return &BitStream{buf: data}
}

// ReadNBits reads count bits (at most 32) as an unsigned integer.
func (bs *BitStream) ReadNBits(count uint32) (uint32, error) {
	if count > 32 {
		return 0, errorf(ErrValueOutOfRange, "bit count %d", count)
	}
	if uint64(bs.BitPos())+uint64(count) > uint64(bs.lengthInBits()) {
		return 0, errorf(ErrDataTruncated, "reading %d bits at bit %d", count, bs.BitPos())
	}
	var result uint32
	for i := uint32(0); i < count; i++ {
		result = (result << 1) | uint32((bs.buf[bs.byteIx]>>(7-bs.bitIx))&0x01)
		bs.advanceBit()
	}
	return result, nil
}

// Read1Bit returns the next single bit.
func (bs *BitStream) Read1Bit() (uint32, error) {
	if !bs.InBounds() {
		return 0, errorf(ErrDataTruncated, "reading bit at byte %d", bs.byteIx)
	}
	value := uint32((bs.buf[bs.byteIx] >> (7 - bs.bitIx)) & 0x01)
	bs.advanceBit()
	return value, nil
}

// Read1BitBool returns the next single bit as a boolean.
func (bs *BitStream) Read1BitBool() (bool, error) {
	bit, err := bs.Read1Bit()
	return bit != 0, err
}

// ReadByte returns the next byte. The stream must be byte aligned.
func (bs *BitStream) ReadByte() (byte, error) {
	if !bs.InBounds() {
		return 0, errorf(ErrDataTruncated, "reading byte at %d", bs.byteIx)
	}
	value := bs.buf[bs.byteIx]
	bs.byteIx++
	return value, nil
}

// ReadInt8 reads a signed byte, used for adaptive template offsets.
func (bs *BitStream) ReadInt8() (int8, error) {
	b, err := bs.ReadByte()
	return int8(b), err
}

// ReadUint32 reads a big-endian 32-bit value.
func (bs *BitStream) ReadUint32() (uint32, error) {
	if bs.BytesLeft() < 4 {
		return 0, errorf(ErrDataTruncated, "reading uint32 at %d", bs.byteIx)
	}
	v := uint32(bs.buf[bs.byteIx])<<24 |
		uint32(bs.buf[bs.byteIx+1])<<16 |
		uint32(bs.buf[bs.byteIx+2])<<8 |
		uint32(bs.buf[bs.byteIx+3])
	bs.byteIx += 4
	return v, nil
}

// ReadInt32 reads a big-endian two's complement 32-bit value.
func (bs *BitStream) ReadInt32() (int32, error) {
	v, err := bs.ReadUint32()
	return int32(v), err
}

// ReadUint16 reads a big-endian 16-bit value.
func (bs *BitStream) ReadUint16() (uint16, error) {
	if bs.BytesLeft() < 2 {
		return 0, errorf(ErrDataTruncated, "reading uint16 at %d", bs.byteIx)
	}
	v := uint16(bs.buf[bs.byteIx])<<8 | uint16(bs.buf[bs.byteIx+1])
	bs.byteIx += 2
	return v, nil
}

// AlignByte advances the stream to the next byte boundary.
func (bs *BitStream) AlignByte() {
	if bs.bitIx != 0 {
		bs.bitIx = 0
		bs.AddOffset(1)
	}
}

// CurByteArith returns the current byte, or 0xFF when out of bounds.
func (bs *BitStream) CurByteArith() uint8 {
	if bs.InBounds() {
		return bs.buf[bs.byteIx]
	}
	return 0xFF
}

// NextByteArith returns the byte after the current one, or 0xFF if none.
func (bs *BitStream) NextByteArith() uint8 {
	next := uint64(bs.byteIx) + 1
	if next < uint64(len(bs.buf)) {
		return bs.buf[next]
	}
	return 0xFF
}

// IncByte advances one byte.
func (bs *BitStream) IncByte() { bs.AddOffset(1) }

// Offset returns the current byte index.
func (bs *BitStream) Offset() uint32 { return bs.byteIx }

// SetOffset moves the stream to a byte offset, clamped to the buffer size.
func (bs *BitStream) SetOffset(offset uint32) {
	if offset > uint32(len(bs.buf)) {
		offset = uint32(len(bs.buf))
	}
	bs.byteIx = offset
	bs.bitIx = 0
}

// AddOffset advances the byte index, clamped to the buffer size.
func (bs *BitStream) AddOffset(delta uint32) {
	next := uint64(bs.byteIx) + uint64(delta)
	if next > uint64(len(bs.buf)) {
		next = uint64(len(bs.buf))
	}
	bs.byteIx = uint32(next)
}

// BitPos returns the absolute bit position from the start of the stream.
func (bs *BitStream) BitPos() uint32 { return (bs.byteIx << 3) + bs.bitIx }

// SetBitPos positions the stream at a bit offset.
func (bs *BitStream) SetBitPos(bitPos uint32) {
	bs.byteIx = bitPos >> 3
	bs.bitIx = bitPos & 7
}

// Pointer returns the unread bytes starting at the current byte.
func (bs *BitStream) Pointer() []byte {
	if int(bs.byteIx) >= len(bs.buf) {
		return nil
	}
	return bs.buf[bs.byteIx:]
}

// BytesLeft returns the number of unread bytes.
func (bs *BitStream) BytesLeft() uint32 {
	if int(bs.byteIx) >= len(bs.buf) {
		return 0
	}
	return uint32(len(bs.buf) - int(bs.byteIx))
}

// InBounds reports whether the current byte index is within the buffer.
func (bs *BitStream) InBounds() bool { return bs.byteIx < uint32(len(bs.buf)) }

func (bs *BitStream) lengthInBits() uint32 { return uint32(len(bs.buf)) * 8 }

func (bs *BitStream) advanceBit() {
	if bs.bitIx == 7 {
		bs.byteIx++
		bs.bitIx = 0
	} else {
		bs.bitIx++
	}
}
