package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"time"

	"github.com/brainsharer/annostore/annotation"
	"github.com/brainsharer/annostore/codec"
	"github.com/brainsharer/annostore/property"
)

const (
	// Magic identifies snapshot files (ASCII: "ANNS").
	Magic = 0x414E4E53
	// FormatVersion is the current file format version.
	FormatVersion = 1

	headerSize = 16
)

var (
	ErrInvalidMagic       = errors.New("invalid snapshot magic")
	ErrInvalidVersion     = errors.New("unsupported snapshot version")
	ErrChecksumMismatch   = errors.New("snapshot checksum mismatch")
	ErrCorrupt            = errors.New("corrupt snapshot")
	ErrUnknownCodec       = errors.New("unknown manifest codec")
	ErrUnknownCompression = errors.New("unknown compression")
	ErrSchemaMismatch     = errors.New("snapshot schema does not match store")
	ErrNoSnapshot         = errors.New("no snapshot committed")
)

// Header is the fixed 16-byte prefix of a snapshot file.
//
//	[0:4]   Magic
//	[4:6]   FormatVersion
//	[6]     Compression
//	[7]     length of the codec name
//	[8:12]  length of the encoded manifest
//	[12:16] CRC32 (IEEE) of everything after the header
type Header struct {
	Magic       uint32
	Version     uint16
	Compression Compression
	CodecLen    uint8
	ManifestLen uint32
	Checksum    uint32
}

func (h Header) put(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:], h.Version)
	buf[6] = byte(h.Compression)
	buf[7] = h.CodecLen
	binary.LittleEndian.PutUint32(buf[8:], h.ManifestLen)
	binary.LittleEndian.PutUint32(buf[12:], h.Checksum)
}

func readHeader(buf []byte) (Header, error) {
	if len(buf) < headerSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrCorrupt, len(buf))
	}
	h := Header{
		Magic:       binary.LittleEndian.Uint32(buf[0:]),
		Version:     binary.LittleEndian.Uint16(buf[4:]),
		Compression: Compression(buf[6]),
		CodecLen:    buf[7],
		ManifestLen: binary.LittleEndian.Uint32(buf[8:]),
		Checksum:    binary.LittleEndian.Uint32(buf[12:]),
	}
	if h.Magic != Magic {
		return h, ErrInvalidMagic
	}
	if h.Version != FormatVersion {
		return h, fmt.Errorf("%w: %d", ErrInvalidVersion, h.Version)
	}
	if h.Compression > CompressionZSTD {
		return h, fmt.Errorf("%w: %d", ErrUnknownCompression, h.Compression)
	}
	return h, nil
}

// PropertyInfo records one property of the snapshotted layer.
type PropertyInfo struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Manifest describes a snapshot's content.
type Manifest struct {
	Version       int            `json:"version"`
	CreatedAt     time.Time      `json:"created_at"`
	Rank          int            `json:"rank"`
	Relationships []string       `json:"relationships,omitempty"`
	Properties    []PropertyInfo `json:"properties,omitempty"`
	Count         int            `json:"count"`
	TypeCounts    map[string]int `json:"type_counts,omitempty"`
	Compression   string         `json:"compression"`
	PayloadSize   int            `json:"payload_size"`
	PayloadCRC    uint32         `json:"payload_crc"`
}

func newManifest(schema annotation.Schema) *Manifest {
	m := &Manifest{
		Version:       FormatVersion,
		Rank:          schema.Rank,
		Relationships: schema.Relationships,
		TypeCounts:    make(map[string]int),
	}
	for _, p := range schema.Properties {
		m.Properties = append(m.Properties, PropertyInfo{ID: p.ID, Type: p.Type.String()})
	}
	return m
}

// Compatible reports whether records from this snapshot fit schema.
func (m *Manifest) Compatible(schema annotation.Schema) error {
	if m.Rank != schema.Rank {
		return fmt.Errorf("%w: rank %d, store rank %d", ErrSchemaMismatch, m.Rank, schema.Rank)
	}
	if len(m.Relationships) != len(schema.Relationships) {
		return fmt.Errorf("%w: %d relationships, store has %d", ErrSchemaMismatch, len(m.Relationships), len(schema.Relationships))
	}
	for _, p := range m.Properties {
		i := property.Index(schema.Properties, p.ID)
		if i < 0 {
			return fmt.Errorf("%w: property %q not in store", ErrSchemaMismatch, p.ID)
		}
		if got := schema.Properties[i].Type.String(); got != p.Type {
			return fmt.Errorf("%w: property %q is %s, store has %s", ErrSchemaMismatch, p.ID, p.Type, got)
		}
	}
	return nil
}

// Snapshot is a decoded snapshot file.
type Snapshot struct {
	Manifest *Manifest
	// State is the store's JSON array as produced by Store.ToJSON.
	State []byte
}

func encodeFile(m *Manifest, state []byte, c codec.Codec, comp Compression, blockSize int) ([]byte, error) {
	m.Compression = comp.String()
	m.PayloadSize = len(state)
	m.PayloadCRC = crc32.ChecksumIEEE(state)

	manifest, err := c.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	name := c.Name()
	if len(name) > 255 {
		return nil, fmt.Errorf("codec name too long: %q", name)
	}
	payload, err := compressAll(state, comp, blockSize)
	if err != nil {
		return nil, fmt.Errorf("compress payload: %w", err)
	}

	buf := make([]byte, headerSize, headerSize+len(name)+len(manifest)+len(payload))
	buf = append(buf, name...)
	buf = append(buf, manifest...)
	buf = append(buf, payload...)

	Header{
		Magic:       Magic,
		Version:     FormatVersion,
		Compression: comp,
		CodecLen:    uint8(len(name)),
		ManifestLen: uint32(len(manifest)),
		Checksum:    crc32.ChecksumIEEE(buf[headerSize:]),
	}.put(buf)
	return buf, nil
}

// Decode parses and verifies a snapshot file.
func Decode(data []byte) (*Snapshot, error) {
	h, err := readHeader(data)
	if err != nil {
		return nil, err
	}
	body := data[headerSize:]
	if crc32.ChecksumIEEE(body) != h.Checksum {
		return nil, ErrChecksumMismatch
	}
	if len(body) < int(h.CodecLen)+int(h.ManifestLen) {
		return nil, fmt.Errorf("%w: truncated manifest", ErrCorrupt)
	}

	name := string(body[:h.CodecLen])
	c, ok := codec.ByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
	body = body[h.CodecLen:]

	var m Manifest
	if err := c.Unmarshal(body[:h.ManifestLen], &m); err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", ErrCorrupt, err)
	}

	state, err := decompressAll(body[h.ManifestLen:], h.Compression, m.PayloadSize)
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrCorrupt, err)
	}
	if len(state) != m.PayloadSize || crc32.ChecksumIEEE(state) != m.PayloadCRC {
		return nil, ErrChecksumMismatch
	}
	return &Snapshot{Manifest: &m, State: state}, nil
}
