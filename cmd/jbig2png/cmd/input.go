package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// maxInputSize bounds the size of decompressed input.
var maxInputSize int64 = 1 << 30

var errInputTooLarge = errors.New("decompressed input exceeds size limit")

// loadInput reads the file at path, or stdin for "-", and unwraps zlib or
// zstd compression.
func loadInput(path string, stdin io.Reader) ([]byte, error) {
	var data []byte
	var err error
	if path == "-" && stdin != nil {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return unwrap(data)
}

// isZlib checks the zlib header: deflate method and a valid FCHECK.
func isZlib(data []byte) bool {
	return len(data) >= 2 && data[0]&0x0f == 8 && data[0]>>4 <= 7 &&
		(uint16(data[0])<<8|uint16(data[1]))%31 == 0
}

// unwrap returns data decompressed if it is a zlib or zstd stream, and data
// unchanged otherwise.
func unwrap(data []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, zstdMagic):
		dec, err := zstd.NewReader(bytes.NewReader(data), zstd.WithDecoderMaxMemory(uint64(maxInputSize)))
		if err != nil {
			return nil, fmt.Errorf("zstd input: %w", limitError(err))
		}
		defer dec.Close()
		return readLimited("zstd", dec)
	case isZlib(data):
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("zlib input: %w", err)
		}
		defer r.Close()
		return readLimited("zlib", r)
	}
	return data, nil
}

// readLimited inflates at most maxInputSize bytes from r.
func readLimited(format string, r io.Reader) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, maxInputSize+1))
	if err != nil {
		return nil, fmt.Errorf("%s input: %w", format, limitError(err))
	}
	if int64(len(out)) > maxInputSize {
		return nil, fmt.Errorf("%s input: %w", format, errInputTooLarge)
	}
	return out, nil
}

// limitError reports the zstd decoder's own size checks as errInputTooLarge.
func limitError(err error) error {
	if errors.Is(err, zstd.ErrDecoderSizeExceeded) || errors.Is(err, zstd.ErrWindowSizeExceeded) {
		return errInputTooLarge
	}
	return err
}
