// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFileHeaderRoundTrip(t *testing.T) {
	h := FileHeader{
		CkVersion:        CKVersion,
		FileVersion:      7,
		FileWriteMode:    FileWriteModeCompressData | FileWriteModeIncludeReferences,
		ManagerCount:     2,
		ObjectCount:      5,
		MaxIDSaved:       5,
		Hdr1CRC:          0xCAFEBABE,
		Hdr1PackedSize:   10,
		Hdr1UnpackedSize: 40,
		DataPackedSize:   100,
		DataUnpackedSize: 400,
	}
	parsed, err := ParseFileHeader(h.Marshal())
	if err != nil {
		t.Fatalf("ParseFileHeader failed, reason: %v", err)
	}
	if diff := cmp.Diff(h, parsed); diff != "" {
		t.Errorf("header round trip mismatch (-want +got):\n%s", diff)
	}
	if !parsed.Compressed() {
		t.Error("Compressed assertion failed")
	}
}

func TestFileHeaderRejectsBadInput(t *testing.T) {
	if _, err := ParseFileHeader([]byte("short")); !errors.Is(err, ErrFileTooSmall) {
		t.Errorf("expected FileTooSmall, got %v", err)
	}

	good := (&FileHeader{FileVersion: 7}).Marshal()
	bad := append([]byte(nil), good...)
	bad[0] = 'X'
	if _, err := ParseFileHeader(bad); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected InvalidSignature, got %v", err)
	}

	old := (&FileHeader{FileVersion: 1}).Marshal()
	if _, err := ParseFileHeader(old); !errors.Is(err, ErrFileVersion) {
		t.Errorf("expected FileVersion error, got %v", err)
	}
	future := (&FileHeader{FileVersion: 10}).Marshal()
	if _, err := ParseFileHeader(future); !errors.Is(err, ErrFileVersion) {
		t.Errorf("expected FileVersion error, got %v", err)
	}
}

func TestHeader1RoundTrip(t *testing.T) {
	h1 := &Header1{
		Descriptors: []ObjectDescriptor{
			{FileIndex: 1, ClassID: ClassMesh, Name: "floor", ChunkOffset: 0, ChunkSize: 12},
			{FileIndex: 2, ClassID: ClassCamera, Name: "", ChunkOffset: 12, ChunkSize: 30},
		},
		PluginDeps: []PluginDep{
			{Category: 1, Plugins: []PluginGUIDVersion{
				{GUID: NewGUID(0x11, 0x22), Version: 5},
				{GUID: NewGUID(0x33, 0x44), Version: 2},
			}},
		},
		IncludedFiles: []string{"textures/wall.bmp", "sounds/door.wav"},
	}
	dwords, err := h1.encode()
	if err != nil {
		t.Fatalf("encode failed, reason: %v", err)
	}
	decoded, err := decodeHeader1(dwords, nil)
	if err != nil {
		t.Fatalf("decodeHeader1 failed, reason: %v", err)
	}
	if diff := cmp.Diff(h1, decoded); diff != "" {
		t.Errorf("Header1 round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestHeader1MetadataOnlyVariant(t *testing.T) {

	// Counts non-zero, bodies absent: decoding keeps whatever is present.
	c := NewChunk(0)
	c.StartWrite()
	_ = c.WriteDword(3) // plugin categories declared
	_ = c.WriteDword(2) // included files declared
	_ = c.WriteDword(0) // empty descriptor table
	c.CloseChunk()

	decoded, err := decodeHeader1(c.buf.data[:c.DataSize()], nil)
	if err != nil {
		t.Fatalf("decodeHeader1 failed, reason: %v", err)
	}
	if len(decoded.Descriptors) != 0 || len(decoded.PluginDeps) != 0 ||
		len(decoded.IncludedFiles) != 0 {
		t.Errorf("metadata-only variant assertion failed, got %+v", decoded)
	}
}
