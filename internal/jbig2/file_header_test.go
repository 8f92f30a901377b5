package jbig2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileHeader(flags byte, pages ...byte) []byte {
	data := append([]byte{}, jbig2FileSignature...)
	data = append(data, flags)
	return append(data, pages...)
}

func TestParseFileHeader(t *testing.T) {
	payload := []byte{0xaa, 0xbb, 0xcc}
	data := append(fileHeader(0x01, 0x00, 0x00, 0x00, 0x03), payload...)

	header, rest, err := parseFileHeader(data)
	require.NoError(t, err)
	assert.Equal(t, OrganizationSequential, header.Organization)
	assert.True(t, header.PagesKnown)
	assert.Equal(t, uint32(3), header.NumPages)
	assert.Equal(t, payload, rest)
}

func TestParseFileHeaderUnknownPageCount(t *testing.T) {
	header, rest, err := parseFileHeader(append(fileHeader(0x02), 0x11))
	require.NoError(t, err)
	assert.Equal(t, OrganizationRandomAccess, header.Organization)
	assert.False(t, header.PagesKnown)
	assert.Equal(t, []byte{0x11}, rest)
}

func TestParseFileHeaderErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"no signature", []byte{0x00, 0x01, 0x02, 0x03}, ErrMalformedHeader},
		{"reserved flags", fileHeader(0x13), ErrMalformedHeader},
		{"no flags", fileHeader(0x01)[:8], ErrDataTruncated},
		{"missing page count", fileHeader(0x01, 0x00, 0x00), ErrDataTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseFileHeader(tt.data)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
