package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the payload block codec.
type Compression uint8

const (
	// CompressionNone stores blocks as-is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses zstd (better ratio).
	CompressionZSTD Compression = 2
)

var compressionNames = [...]string{"none", "lz4", "zstd"}

func (c Compression) String() string {
	if int(c) < len(compressionNames) {
		return compressionNames[c]
	}
	return fmt.Sprintf("compression(%d)", c)
}

// ParseCompression maps "none", "lz4" or "zstd" to a Compression.
func ParseCompression(s string) (Compression, error) {
	for i, name := range compressionNames {
		if name == s {
			return Compression(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCompression, s)
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Block format: [uncompressed uint32][compressed uint32][data].
// A compressed size of 0 marks a block stored raw.
const blockHeaderSize = 8

var (
	errShortBlock   = errors.New("block extends beyond data")
	errSizeMismatch = errors.New("decompressed size mismatch")
)

// appendBlock compresses data and appends the framed block to dst.
// Blocks that do not shrink below 90% are stored raw.
func appendBlock(dst, data []byte, c Compression) ([]byte, error) {
	var compressed []byte
	switch c {
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		compressed = buf[:n]
	case CompressionZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	}

	var hdr [blockHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(len(data)))
	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		dst = append(dst, hdr[:]...)
		return append(dst, data...), nil
	}
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(compressed)))
	dst = append(dst, hdr[:]...)
	return append(dst, compressed...), nil
}

// readBlock decodes the block at the start of data and returns it with the
// number of bytes consumed.
func readBlock(data []byte, c Compression) ([]byte, int, error) {
	if len(data) < blockHeaderSize {
		return nil, 0, errShortBlock
	}
	rawSize := int(binary.LittleEndian.Uint32(data[0:]))
	packedSize := int(binary.LittleEndian.Uint32(data[4:]))

	if packedSize == 0 {
		if len(data) < blockHeaderSize+rawSize {
			return nil, 0, errShortBlock
		}
		return data[blockHeaderSize : blockHeaderSize+rawSize], blockHeaderSize + rawSize, nil
	}
	if len(data) < blockHeaderSize+packedSize {
		return nil, 0, errShortBlock
	}
	packed := data[blockHeaderSize : blockHeaderSize+packedSize]
	out := make([]byte, rawSize)

	switch c {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(packed, out)
		if err != nil {
			return nil, 0, err
		}
		if n != rawSize {
			return nil, 0, errSizeMismatch
		}
	case CompressionZSTD:
		dec := getZstdDecoder()
		decoded, err := dec.DecodeAll(packed, out[:0])
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, 0, err
		}
		if len(decoded) != rawSize {
			return nil, 0, errSizeMismatch
		}
		out = decoded
	default:
		return nil, 0, fmt.Errorf("%w: compressed block in %s snapshot", ErrCorrupt, c)
	}
	return out, blockHeaderSize + packedSize, nil
}

// compressAll splits data into blockSize blocks.
func compressAll(data []byte, c Compression, blockSize int) ([]byte, error) {
	out := make([]byte, 0, len(data)/2+blockHeaderSize)
	for len(data) > 0 {
		n := min(blockSize, len(data))
		var err error
		if out, err = appendBlock(out, data[:n], c); err != nil {
			return nil, err
		}
		data = data[n:]
	}
	return out, nil
}

// decompressAll reverses compressAll; sizeHint preallocates the result.
func decompressAll(data []byte, c Compression, sizeHint int) ([]byte, error) {
	out := make([]byte, 0, sizeHint)
	for len(data) > 0 {
		block, n, err := readBlock(data, c)
		if err != nil {
			return nil, err
		}
		out = append(out, block...)
		data = data[n:]
	}
	return out, nil
}
