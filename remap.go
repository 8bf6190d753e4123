// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

// IDRemap holds the two monotone partial functions tying runtime IDs to
// file indices within one load or save. When serializing, runtime IDs are
// written as their file indices; when loading, file indices are rewritten
// in place to the newly assigned runtime IDs.
type IDRemap struct {
	fileToRuntime map[ID]ID
	runtimeToFile map[ID]ID
}

// NewIDRemap creates an empty remap.
func NewIDRemap() *IDRemap {
	return &IDRemap{
		fileToRuntime: make(map[ID]ID),
		runtimeToFile: make(map[ID]ID),
	}
}

// Record registers one (file index, runtime ID) pair in both directions.
func (m *IDRemap) Record(fileIndex, runtime ID) {
	m.fileToRuntime[fileIndex] = runtime
	m.runtimeToFile[runtime] = fileIndex
}

// ToRuntime resolves a file index.
func (m *IDRemap) ToRuntime(fileIndex ID) (ID, bool) {
	id, ok := m.fileToRuntime[fileIndex]
	return id, ok
}

// ToFile resolves a runtime ID.
func (m *IDRemap) ToFile(runtime ID) (ID, bool) {
	id, ok := m.runtimeToFile[runtime]
	return id, ok
}

// FileToRuntime exposes the forward table for chunk rewriting.
func (m *IDRemap) FileToRuntime() map[ID]ID {
	return m.fileToRuntime
}

// RuntimeToFile exposes the reverse table for chunk rewriting.
func (m *IDRemap) RuntimeToFile() map[ID]ID {
	return m.runtimeToFile
}

// Len returns the number of recorded pairs.
func (m *IDRemap) Len() int {
	return len(m.fileToRuntime)
}

// RemapObjectIDs rewrites every recorded object ID in the payload through
// the table, leaving IDs outside the table domain untouched, and recurses
// into sub-chunks. The reference bit travels with the identifier. Chunks
// older than envelope version 4 carry magic-marker tables instead of offset
// lists and are rejected.
func (c *Chunk) RemapObjectIDs(table map[ID]ID) error {
	if c.ChunkVersion < ChunkVersionMin {
		return ErrLegacyChunk
	}
	if c.Packed() {
		return errKind(KindInvalidState, "remap on a packed chunk, unpack first")
	}
	rewrite := func(pos int) error {
		if pos >= c.dataSize {
			return errKind(KindOutOfBounds, "ID position %d out of payload %d", pos, c.dataSize)
		}
		old := ID(c.buf.data[pos])
		ref := old & IDReferenceBit
		mapped, ok := table[old&^IDReferenceBit]
		if !ok || mapped == old&^IDReferenceBit {
			return nil
		}
		c.buf.data[pos] = uint32(mapped | ref)
		return nil
	}
	for _, entry := range c.ids {
		if entry >= 0 {
			if err := rewrite(int(entry)); err != nil {
				return err
			}
			continue
		}
		// Sequence header: the count DWORD at the negated position is
		// followed by that many object IDs.
		at := int(-entry)
		if at >= c.dataSize {
			return errKind(KindOutOfBounds, "sequence header %d out of payload %d", at, c.dataSize)
		}
		count := int(c.buf.data[at])
		if at+1+count > c.dataSize {
			return errKind(KindOutOfBounds, "sequence of %d IDs at %d out of payload %d",
				count, at, c.dataSize)
		}
		for i := 0; i < count; i++ {
			if err := rewrite(at + 1 + i); err != nil {
				return err
			}
		}
	}
	for _, sub := range c.subChunks {
		if err := sub.RemapObjectIDs(table); err != nil {
			return err
		}
	}
	return nil
}

// RemapManagerInts rewrites every recorded manager-tagged value through the
// manager's own table. Sequence headers are handled like object sequences.
func (c *Chunk) RemapManagerInts(table map[int32]int32) error {
	if c.Packed() {
		return errKind(KindInvalidState, "remap on a packed chunk, unpack first")
	}
	for _, entry := range c.managers {
		if entry >= 0 {
			pos := int(entry)
			if pos >= c.dataSize {
				return errKind(KindOutOfBounds, "manager position %d out of payload %d", pos, c.dataSize)
			}
			if mapped, ok := table[int32(c.buf.data[pos])]; ok {
				c.buf.data[pos] = uint32(mapped)
			}
			continue
		}
		at := int(-entry)
		if at >= c.dataSize {
			return errKind(KindOutOfBounds, "manager sequence header %d out of payload %d", at, c.dataSize)
		}
		count := int(c.buf.data[at])
		if at+1+count > c.dataSize {
			return errKind(KindOutOfBounds, "manager sequence of %d at %d out of payload %d",
				count, at, c.dataSize)
		}
		for i := 0; i < count; i++ {
			if mapped, ok := table[int32(c.buf.data[at+1+i])]; ok {
				c.buf.data[at+1+i] = uint32(mapped)
			}
		}
	}
	return nil
}
