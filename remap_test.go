// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

import (
	"errors"
	"testing"
)

func TestRemapScalarsArraysAndSequences(t *testing.T) {
	c := NewChunk(ClassObject)
	c.StartWrite()
	_ = c.WriteObjectID(1)
	_ = c.WriteObjectIDArray([]ID{2, 3})
	_ = c.StartObjectIDSequence(2)
	_ = c.WriteObjectIDInSequence(1)
	_ = c.WriteObjectIDInSequence(9)
	c.CloseChunk()

	table := map[ID]ID{1: 101, 2: 102, 3: 103}
	if err := c.RemapObjectIDs(table); err != nil {
		t.Fatalf("RemapObjectIDs failed, reason: %v", err)
	}

	c.StartRead()
	if id, _ := c.ReadObjectID(); id != 101 {
		t.Errorf("scalar remap assertion failed, got %v", id)
	}
	ids, _ := c.ReadObjectIDArray()
	if ids[0] != 102 || ids[1] != 103 {
		t.Errorf("array remap assertion failed, got %v", ids)
	}
	n, _ := c.ReadObjectIDSequence()
	if n != 2 {
		t.Fatalf("sequence count assertion failed, got %v", n)
	}
	if id, _ := c.ReadObjectID(); id != 101 {
		t.Errorf("sequence remap assertion failed, got %v", id)
	}

	// 9 is outside the table domain and must stay untouched.
	if id, _ := c.ReadObjectID(); id != 9 {
		t.Errorf("identity outside domain assertion failed, got %v", id)
	}
}

func TestRemapPreservesReferenceBit(t *testing.T) {
	c := NewChunk(ClassObject)
	c.StartWrite()
	_ = c.WriteObjectID(2 | IDReferenceBit)
	c.CloseChunk()
	if err := c.RemapObjectIDs(map[ID]ID{2: 55}); err != nil {
		t.Fatalf("RemapObjectIDs failed, reason: %v", err)
	}
	c.StartRead()
	id, _ := c.ReadObjectID()
	if id != 55|IDReferenceBit {
		t.Errorf("reference bit assertion failed, got %#x", uint32(id))
	}
}

func TestRemapRecursesSubChunks(t *testing.T) {
	sub := NewChunk(ClassMesh)
	sub.StartWrite()
	_ = sub.WriteObjectID(4)
	sub.CloseChunk()

	c := NewChunk(ClassObject)
	c.StartWrite()
	_ = c.WriteSubChunk(sub)
	c.CloseChunk()

	if err := c.RemapObjectIDs(map[ID]ID{4: 44}); err != nil {
		t.Fatalf("RemapObjectIDs failed, reason: %v", err)
	}
	sub.StartRead()
	if id, _ := sub.ReadObjectID(); id != 44 {
		t.Errorf("sub-chunk remap assertion failed, got %v", id)
	}
}

func TestRemapRejectsLegacyChunks(t *testing.T) {
	c := NewChunk(ClassObject)
	c.StartWrite()
	_ = c.WriteObjectID(1)
	c.CloseChunk()
	c.ChunkVersion = 3
	if err := c.RemapObjectIDs(map[ID]ID{1: 2}); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("expected UnsupportedVersion, got %v", err)
	}
}

// Remap commutes with decoding: rewriting IDs in the serialized form then
// decoding equals decoding then mapping the decoded IDs.
func TestRemapDecodeCommutation(t *testing.T) {
	build := func() *Chunk {
		c := NewChunk(ClassGroup)
		c.StartWrite()
		_ = c.WriteIdentifier(groupSaveData)
		_ = c.WriteObjectIDArray([]ID{10, 20, 30})
		c.CloseChunk()
		return c
	}
	table := map[ID]ID{10: 1, 20: 2, 30: 3}

	remapped := build()
	if err := remapped.RemapObjectIDs(table); err != nil {
		t.Fatalf("RemapObjectIDs failed, reason: %v", err)
	}
	remapped.StartRead()
	if err := remapped.SeekIdentifier(groupSaveData); err != nil {
		t.Fatalf("SeekIdentifier failed, reason: %v", err)
	}
	got, _ := remapped.ReadObjectIDArray()

	plain := build()
	plain.StartRead()
	if err := plain.SeekIdentifier(groupSaveData); err != nil {
		t.Fatalf("SeekIdentifier failed, reason: %v", err)
	}
	decoded, _ := plain.ReadObjectIDArray()
	for i := range decoded {
		decoded[i] = table[decoded[i]]
	}

	for i := range got {
		if got[i] != decoded[i] {
			t.Errorf("commutation assertion failed at %d, got %v, want %v", i, got[i], decoded[i])
		}
	}
}

func TestIDRemapTables(t *testing.T) {
	m := NewIDRemap()
	m.Record(1, 77)
	m.Record(2, 78)
	if id, ok := m.ToRuntime(2); !ok || id != 78 {
		t.Errorf("ToRuntime assertion failed, got %v %v", id, ok)
	}
	if id, ok := m.ToFile(77); !ok || id != 1 {
		t.Errorf("ToFile assertion failed, got %v %v", id, ok)
	}
	if _, ok := m.ToRuntime(9); ok {
		t.Error("unexpected hit outside the domain")
	}
	if m.Len() != 2 {
		t.Errorf("Len assertion failed, got %v", m.Len())
	}
}
