package cache

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// Blob layout: 8-byte magic + 4-byte LE uint32 uncompressed size + payload.
// Payloads lz4 cannot shrink are stored raw under a different magic.
var (
	lz4Magic = []byte("fillz4\x00\x00")
	rawMagic = []byte("fillraw\x00")
)

const headerSize = 12

// Compress encodes s as a cache blob.
func Compress(s string) ([]byte, error) {
	src := []byte(s)
	dst := make([]byte, headerSize+lz4.CompressBlockBound(len(src)))

	n, err := lz4.CompressBlock(src, dst[headerSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("lz4: compress failed: %w", err)
	}

	if n == 0 || n >= len(src) {
		out := make([]byte, headerSize+len(src))
		copy(out, rawMagic)
		binary.LittleEndian.PutUint32(out[8:12], uint32(len(src)))
		copy(out[headerSize:], src)
		return out, nil
	}

	copy(dst, lz4Magic)
	binary.LittleEndian.PutUint32(dst[8:12], uint32(len(src)))
	return dst[:headerSize+n], nil
}

// Decompress decodes a blob produced by Compress.
func Decompress(data []byte) (string, error) {
	if len(data) < headerSize {
		return "", fmt.Errorf("lz4: data too short (%d bytes)", len(data))
	}

	size := binary.LittleEndian.Uint32(data[8:12])
	payload := data[headerSize:]

	switch {
	case bytes.Equal(data[:8], rawMagic):
		if uint32(len(payload)) != size {
			return "", fmt.Errorf("lz4: raw size mismatch (%d != %d)", len(payload), size)
		}
		return string(payload), nil
	case bytes.Equal(data[:8], lz4Magic):
		dst := make([]byte, size)
		n, err := lz4.UncompressBlock(payload, dst)
		if err != nil {
			return "", fmt.Errorf("lz4: decompress failed: %w", err)
		}
		return string(dst[:n]), nil
	}
	return "", fmt.Errorf("lz4: invalid header magic")
}
