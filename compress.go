// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
)

const (
	// DefaultCompressionLevel is used when the caller passes a negative
	// level.
	DefaultCompressionLevel = 6

	// DefaultCompressionRatio is the keep threshold of PackIfBeneficial:
	// the packed form is kept only when it is at most this fraction of the
	// original.
	DefaultCompressionRatio = 0.9
)

// deflate compresses raw with a zlib envelope at the given level.
func deflate(raw []byte, level int) ([]byte, error) {
	if level < 0 {
		level = DefaultCompressionLevel
	}
	if level > zlib.BestCompression {
		level = zlib.BestCompression
	}
	var out bytes.Buffer
	zw, err := zlib.NewWriterLevel(&out, level)
	if err != nil {
		return nil, wrapKind(KindCompressionError, err, "deflate init")
	}
	if _, err := zw.Write(raw); err != nil {
		return nil, wrapKind(KindCompressionError, err, "deflate write")
	}
	if err := zw.Close(); err != nil {
		return nil, wrapKind(KindCompressionError, err, "deflate close")
	}
	return out.Bytes(), nil
}

// inflate decompresses a zlib stream, expecting exactly want bytes.
// Trailing padding past the stream end is ignored.
func inflate(packed []byte, want int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(packed))
	if err != nil {
		return nil, wrapKind(KindCompressionError, err, "inflate init")
	}
	defer zr.Close()
	out := make([]byte, want)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, wrapKind(KindCompressionError, err, "inflate short stream")
	}
	return out, nil
}

// Pack compresses the payload in place, stores the original DWORD count in
// the unpack size and sets the PACKED option. Level below zero falls back
// to the default level.
func (c *Chunk) Pack(level int) error {
	if c.mode == chunkModeWriting {
		c.CloseChunk()
	}
	if c.Packed() {
		return errKind(KindInvalidState, "chunk already packed")
	}
	packed, err := deflate(dwordsToBytes(c.buf.data[:c.dataSize]), level)
	if err != nil {
		return err
	}
	c.unpackSize = c.dataSize
	c.buf.data = bytesToDwords(packed)
	c.dataSize = len(c.buf.data)
	c.options |= ChunkOptionPacked
	return nil
}

// PackIfBeneficial compresses the payload and keeps the packed form only
// when it is at most minRatio of the original size. A non-positive
// ratio falls back to the default threshold.
func (c *Chunk) PackIfBeneficial(level int, minRatio float64) error {
	if c.mode == chunkModeWriting {
		c.CloseChunk()
	}
	if c.Packed() {
		return errKind(KindInvalidState, "chunk already packed")
	}
	if minRatio <= 0 {
		minRatio = DefaultCompressionRatio
	}
	original := c.dataSize * 4
	packed, err := deflate(dwordsToBytes(c.buf.data[:c.dataSize]), level)
	if err != nil {
		return err
	}
	if float64(len(packed)) > float64(original)*minRatio {
		return nil
	}
	c.unpackSize = c.dataSize
	c.buf.data = bytesToDwords(packed)
	c.dataSize = len(c.buf.data)
	c.options |= ChunkOptionPacked
	return nil
}

// Unpack restores the original payload and clears the PACKED option.
func (c *Chunk) Unpack() error {
	if !c.Packed() {
		return nil
	}
	raw, err := inflate(dwordsToBytes(c.buf.data[:c.dataSize]), c.unpackSize*4)
	if err != nil {
		return err
	}
	c.buf.data = bytesToDwords(raw)
	c.dataSize = c.unpackSize
	c.unpackSize = 0
	c.options &^= ChunkOptionPacked
	return nil
}

// adlerBase is the Adler-32 modulus.
const adlerBase = 65521

// adlerUpdate rolls an Adler-32 state over data. The stdlib implementation
// cannot resume from an arbitrary seed, which compute-CRC-with-initial
// requires.
func adlerUpdate(adler uint32, data []byte) uint32 {
	s1 := adler & 0xFFFF
	s2 := adler >> 16
	for _, b := range data {
		s1 = (s1 + uint32(b)) % adlerBase
		s2 = (s2 + s1) % adlerBase
	}
	return s2<<16 | s1
}

// CRC computes the Adler-32 of the current payload, seeded with initial.
// Zero is promoted to the canonical Adler seed of 1.
func (c *Chunk) CRC(initial uint32) uint32 {
	if initial == 0 {
		initial = 1
	}
	return adlerUpdate(initial, dwordsToBytes(c.buf.data[:c.dataSize]))
}
