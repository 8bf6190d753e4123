// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

import (
	"hash/adler32"
	"reflect"
	"testing"
)

// fillChunk writes the given DWORDs and commits the chunk.
func fillChunk(t *testing.T, payload []uint32) *Chunk {
	t.Helper()
	c := NewChunk(ClassObject)
	c.StartWrite()
	for _, d := range payload {
		if err := c.WriteDword(d); err != nil {
			t.Fatalf("WriteDword failed, reason: %v", err)
		}
	}
	c.CloseChunk()
	return c
}

// lcg is a tiny deterministic generator for incompressible payloads.
func lcg(seed uint32, n int) []uint32 {
	out := make([]uint32, n)
	state := seed
	for i := range out {
		state = state*1664525 + 1013904223
		out[i] = state
	}
	return out
}

func TestPackUnpackAllLevels(t *testing.T) {
	payload := lcg(7, 64)
	for level := 0; level <= 9; level++ {
		c := fillChunk(t, payload)
		if err := c.Pack(level); err != nil {
			t.Fatalf("Pack(%d) failed, reason: %v", level, err)
		}
		if !c.Packed() {
			t.Fatalf("PACKED not set at level %d", level)
		}
		if got, want := c.UnpackSize(), len(payload); got != want {
			t.Errorf("unpack size assertion failed, got %v, want %v", got, want)
		}
		if err := c.Unpack(); err != nil {
			t.Fatalf("Unpack after Pack(%d) failed, reason: %v", level, err)
		}
		if c.Packed() {
			t.Error("PACKED still set after Unpack")
		}
		if !reflect.DeepEqual(c.buf.data[:c.DataSize()], payload) {
			t.Errorf("payload mismatch after round trip at level %d", level)
		}
	}
}

func TestPackNegativeLevelFallsBack(t *testing.T) {
	c := fillChunk(t, make([]uint32, 256))
	if err := c.Pack(-1); err != nil {
		t.Fatalf("Pack(-1) failed, reason: %v", err)
	}
	if !c.Packed() {
		t.Error("PACKED not set with fallback level")
	}
}

func TestPackIfBeneficialKeepsCompressible(t *testing.T) {

	// 1024 zero DWORDs deflate to a fraction of their size.
	c := fillChunk(t, make([]uint32, 1024))
	if err := c.PackIfBeneficial(6, 0.9); err != nil {
		t.Fatalf("PackIfBeneficial failed, reason: %v", err)
	}
	if !c.Packed() {
		t.Fatal("PACKED not set on compressible payload")
	}
	if c.DataSize() >= 1024 {
		t.Errorf("packed size did not shrink, got %v DWORDs", c.DataSize())
	}
	if err := c.Unpack(); err != nil {
		t.Fatalf("Unpack failed, reason: %v", err)
	}
	if c.DataSize() != 1024 {
		t.Fatalf("recovered size assertion failed, got %v", c.DataSize())
	}
	for i, d := range c.buf.data[:1024] {
		if d != 0 {
			t.Fatalf("recovered DWORD %d is %v, want 0", i, d)
		}
	}
}

func TestPackIfBeneficialLeavesIncompressible(t *testing.T) {
	payload := lcg(99, 256)
	c := fillChunk(t, payload)
	if err := c.PackIfBeneficial(6, 0.1); err != nil {
		t.Fatalf("PackIfBeneficial failed, reason: %v", err)
	}
	if c.Packed() {
		t.Error("PACKED set on incompressible payload")
	}
	if !reflect.DeepEqual(c.buf.data[:c.DataSize()], payload) {
		t.Error("payload mutated by rejected compression")
	}
}

func TestCRCMatchesAdler32(t *testing.T) {
	payload := lcg(3, 32)
	c := fillChunk(t, payload)
	want := adler32.Checksum(dwordsToBytes(payload))
	if got := c.CRC(0); got != want {
		t.Errorf("CRC assertion failed, got %#x, want %#x", got, want)
	}
	if got := c.CRC(1); got != want {
		t.Errorf("seeded CRC assertion failed, got %#x, want %#x", got, want)
	}
}
