// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

// ChunkOptions is the chunk option flag set. The bits map one-to-one onto
// the on-disk envelope flags.
type ChunkOptions uint32

const (
	// ChunkOptionPacked marks the payload as deflate-compressed.
	ChunkOptionPacked ChunkOptions = 0x01

	// ChunkOptionChn marks that sub-chunks follow the payload.
	ChunkOptionChn ChunkOptions = 0x02

	// ChunkOptionIds marks that the object-ID position list is present.
	ChunkOptionIds ChunkOptions = 0x04

	// ChunkOptionMan marks that the manager position list is present.
	ChunkOptionMan ChunkOptions = 0x08

	// ChunkOptionFile marks a chunk authored as part of a file context.
	ChunkOptionFile ChunkOptions = 0x10
)

// Chunk envelope versions. Version 4 introduced offset based ID tables;
// anything older used magic-marker scans and is rejected.
const (
	ChunkVersionMin     = 4
	ChunkVersionCurrent = 7
)

// chunkMode tracks the codec state machine: Empty -> Writing -> Closed ->
// Reading. Reads in Writing and writes in Reading are contract violations.
type chunkMode uint8

const (
	chunkModeEmpty chunkMode = iota
	chunkModeWriting
	chunkModeClosed
	chunkModeReading
)

// envelopeSize is the DWORD count of the serialized chunk envelope:
// chunk version, data version, class id, option flags, data size, unpack
// size.
const envelopeSize = 6

// Chunk is the atomic serialization unit: a typed read/write cursor over a
// DWORD-aligned payload with identifier based random access, object-ID
// tracking for remapping, manager sequences, nested sub-chunks and optional
// payload compression.
type Chunk struct {
	// ClassID is the class this chunk encodes.
	ClassID ClassID

	// ChunkVersion is the format revision of the chunk envelope.
	ChunkVersion uint32

	// DataVersion is the class-specific payload revision.
	DataVersion uint32

	options  ChunkOptions
	buf      dwordBuffer
	cursor   int
	dataSize int

	// unpackSize is the original DWORD count before compression, valid
	// only while ChunkOptionPacked is set.
	unpackSize int

	// Identifier markers form a forward linked list in the payload: each
	// marker is {identifier, position of next marker} and the chain starts
	// at the first written marker. prevIdentPos is the writer-side position
	// of the most recent marker, patched when the next one lands.
	prevIdentPos  int
	firstIdentPos int
	identCount    int

	// ids holds the payload positions of every object ID written into the
	// buffer; negative entries mark a sequence header whose count DWORD
	// sits at the negated position. managers is the parallel structure for
	// manager-tagged DWORDs.
	ids      []int32
	managers []int32

	subChunks  []*Chunk
	subCursor  int
	mode       chunkMode
	fromFile   bool
	identKnown bool
}

// NewChunk creates an empty chunk for the given class.
func NewChunk(classID ClassID) *Chunk {
	return &Chunk{
		ClassID:      classID,
		ChunkVersion: ChunkVersionCurrent,
	}
}

// Options returns the current option flags.
func (c *Chunk) Options() ChunkOptions {
	opts := c.options & ChunkOptionPacked
	if len(c.ids) > 0 {
		opts |= ChunkOptionIds
	}
	if len(c.managers) > 0 {
		opts |= ChunkOptionMan
	}
	if len(c.subChunks) > 0 {
		opts |= ChunkOptionChn
	}
	if c.fromFile {
		opts |= ChunkOptionFile
	}
	return opts
}

// Packed reports whether the payload is currently compressed.
func (c *Chunk) Packed() bool {
	return c.options&ChunkOptionPacked != 0
}

// DataSize returns the committed payload size in DWORDs.
func (c *Chunk) DataSize() int {
	return c.dataSize
}

// UnpackSize returns the pre-compression DWORD count, meaningful only while
// the chunk is packed.
func (c *Chunk) UnpackSize() int {
	return c.unpackSize
}

// Cursor returns the current read/write position in DWORDs.
func (c *Chunk) Cursor() int {
	return c.cursor
}

// SubChunks returns the attached sub-chunks.
func (c *Chunk) SubChunks() []*Chunk {
	return c.subChunks
}

// IDPositions returns the recorded object-ID position list. Negative
// entries flag a sequence header at the negated position.
func (c *Chunk) IDPositions() []int32 {
	return c.ids
}

// Clone deep-copies the chunk, sub-chunks included.
func (c *Chunk) Clone() *Chunk {
	dup := &Chunk{
		ClassID:       c.ClassID,
		ChunkVersion:  c.ChunkVersion,
		DataVersion:   c.DataVersion,
		options:       c.options,
		cursor:        c.cursor,
		dataSize:      c.dataSize,
		unpackSize:    c.unpackSize,
		prevIdentPos:  c.prevIdentPos,
		firstIdentPos: c.firstIdentPos,
		identCount:    c.identCount,
		mode:          c.mode,
		fromFile:      c.fromFile,
		identKnown:    c.identKnown,
	}
	dup.buf.data = append([]uint32(nil), c.buf.data...)
	dup.ids = append([]int32(nil), c.ids...)
	dup.managers = append([]int32(nil), c.managers...)
	for _, sub := range c.subChunks {
		dup.subChunks = append(dup.subChunks, sub.Clone())
	}
	return dup
}

// StartWrite empties the chunk and enters writing mode.
func (c *Chunk) StartWrite() {
	c.buf.reset()
	c.cursor = 0
	c.dataSize = 0
	c.unpackSize = 0
	c.options &^= ChunkOptionPacked
	c.prevIdentPos = 0
	c.firstIdentPos = 0
	c.identCount = 0
	c.identKnown = true
	c.ids = c.ids[:0]
	c.managers = c.managers[:0]
	c.subChunks = c.subChunks[:0]
	c.subCursor = 0
	c.ChunkVersion = ChunkVersionCurrent
	c.mode = chunkModeWriting
}

// CloseChunk commits the written payload: data size becomes the cursor
// position and the chunk leaves writing mode.
func (c *Chunk) CloseChunk() {
	if c.mode == chunkModeWriting {
		c.dataSize = c.cursor
		c.buf.truncate(c.dataSize)
	}
	c.mode = chunkModeClosed
}

// UpdateDataSize is an alias of CloseChunk kept for symmetry with the other
// bindings of the format.
func (c *Chunk) UpdateDataSize() {
	c.CloseChunk()
}

// StartRead commits any pending write and rewinds the cursor for reading.
func (c *Chunk) StartRead() {
	if c.mode == chunkModeWriting {
		c.CloseChunk()
	}
	c.cursor = 0
	c.subCursor = 0
	c.mode = chunkModeReading
}

// remaining returns how many DWORDs are left to read.
func (c *Chunk) remaining() int {
	return c.dataSize - c.cursor
}

// Skip advances the cursor by k DWORDs. Out-of-bounds skips fail without
// moving the cursor.
func (c *Chunk) Skip(k int) error {
	if k < 0 {
		return errKind(KindInvalidArgument, "negative skip of %d DWORDs", k)
	}
	switch c.mode {
	case chunkModeWriting:
		c.writeAt(k)
		return nil
	case chunkModeReading:
		if c.cursor+k > c.dataSize {
			return errKind(KindOutOfBounds, "skip of %d DWORDs past end of %d", k, c.dataSize)
		}
		c.cursor += k
		return nil
	}
	return errKind(KindInvalidState, "skip outside read or write mode")
}

// writeAt grows the buffer so n DWORDs fit at the cursor and advances the
// cursor, returning the write position.
func (c *Chunk) writeAt(n int) int {
	at := c.cursor
	if need := at + n - c.buf.len(); need > 0 {
		c.buf.extend(need)
	}
	c.cursor += n
	if c.cursor > c.dataSize {
		c.dataSize = c.cursor
	}
	return at
}

// checkWrite validates that the chunk accepts writes.
func (c *Chunk) checkWrite() error {
	if c.mode != chunkModeWriting {
		return errKind(KindInvalidState, "write on a chunk not in writing mode")
	}
	return nil
}

// checkRead validates that n DWORDs can be consumed.
func (c *Chunk) checkRead(n int) error {
	if c.mode != chunkModeReading {
		return errKind(KindInvalidState, "read on a chunk not in reading mode")
	}
	if c.Packed() {
		return errKind(KindInvalidState, "read on a packed chunk, unpack first")
	}
	if c.cursor+n > c.dataSize {
		return errKind(KindEndOfBuffer, "read of %d DWORDs at %d past end of %d",
			n, c.cursor, c.dataSize)
	}
	return nil
}

// serializedSize returns the DWORD count of the chunk's on-disk form,
// envelope and tails included.
func (c *Chunk) serializedSize() int {
	size := envelopeSize + c.dataSize
	if len(c.ids) > 0 {
		size += 1 + len(c.ids)
	}
	if len(c.managers) > 0 {
		size += 1 + len(c.managers)
	}
	if len(c.subChunks) > 0 {
		size++
		for _, sub := range c.subChunks {
			size += sub.serializedSize()
		}
	}
	return size
}

// appendTo appends the chunk's serialized form to out and returns the
// extended slice. The layout is the envelope, the payload, then the
// optional ID list, manager list and sub-chunks gated by the option flags.
func (c *Chunk) appendTo(out []uint32) []uint32 {
	opts := c.Options()
	out = append(out, c.ChunkVersion, c.DataVersion, uint32(c.ClassID),
		uint32(opts), uint32(c.dataSize), uint32(c.unpackSize))
	out = append(out, c.buf.data[:c.dataSize]...)
	if opts&ChunkOptionIds != 0 {
		out = append(out, uint32(len(c.ids)))
		for _, e := range c.ids {
			out = append(out, uint32(e))
		}
	}
	if opts&ChunkOptionMan != 0 {
		out = append(out, uint32(len(c.managers)))
		for _, e := range c.managers {
			out = append(out, uint32(e))
		}
	}
	if opts&ChunkOptionChn != 0 {
		out = append(out, uint32(len(c.subChunks)))
		for _, sub := range c.subChunks {
			out = sub.appendTo(out)
		}
	}
	return out
}

// parseChunk decodes one serialized chunk from data and returns it together
// with the number of DWORDs consumed.
func parseChunk(data []uint32) (*Chunk, int, error) {
	if len(data) < envelopeSize {
		return nil, 0, errKind(KindEndOfBuffer, "truncated chunk envelope")
	}
	c := &Chunk{
		ChunkVersion: data[0],
		DataVersion:  data[1],
		ClassID:      ClassID(data[2]),
	}
	opts := ChunkOptions(data[3])
	size := int(data[4])
	c.unpackSize = int(data[5])
	if c.ChunkVersion < ChunkVersionMin {
		return nil, 0, ErrLegacyChunk
	}
	if c.ChunkVersion > ChunkVersionCurrent {
		return nil, 0, errKind(KindUnsupportedVersion,
			"chunk envelope version %d newer than %d", c.ChunkVersion, ChunkVersionCurrent)
	}
	pos := envelopeSize
	if len(data) < pos+size {
		return nil, 0, errKind(KindEndOfBuffer, "truncated chunk payload")
	}
	c.buf.data = append([]uint32(nil), data[pos:pos+size]...)
	c.dataSize = size
	pos += size
	c.options = opts & ChunkOptionPacked
	c.fromFile = opts&ChunkOptionFile != 0

	readList := func() ([]int32, error) {
		if pos >= len(data) {
			return nil, errKind(KindEndOfBuffer, "truncated chunk position list")
		}
		n := int(data[pos])
		pos++
		if pos+n > len(data) {
			return nil, errKind(KindEndOfBuffer, "truncated chunk position list")
		}
		list := make([]int32, n)
		for i := 0; i < n; i++ {
			list[i] = int32(data[pos+i])
		}
		pos += n
		return list, nil
	}

	var err error
	if opts&ChunkOptionIds != 0 {
		if c.ids, err = readList(); err != nil {
			return nil, 0, err
		}
	}
	if opts&ChunkOptionMan != 0 {
		if c.managers, err = readList(); err != nil {
			return nil, 0, err
		}
	}
	if opts&ChunkOptionChn != 0 {
		if pos >= len(data) {
			return nil, 0, errKind(KindEndOfBuffer, "truncated sub-chunk count")
		}
		count := int(data[pos])
		pos++
		for i := 0; i < count; i++ {
			sub, used, err := parseChunk(data[pos:])
			if err != nil {
				return nil, 0, err
			}
			c.subChunks = append(c.subChunks, sub)
			pos += used
		}
	}
	c.mode = chunkModeClosed
	// Parsed chunks assume the identifier chain starts at position zero,
	// which every class codec guarantees by emitting an identifier first.
	c.identKnown = false
	return c, pos, nil
}
