// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

import "math"

// ReadDword reads a raw DWORD.
func (c *Chunk) ReadDword() (uint32, error) {
	if err := c.checkRead(1); err != nil {
		return 0, err
	}
	v := c.buf.data[c.cursor]
	c.cursor++
	return v, nil
}

// ReadByte returns the low byte of the next DWORD.
func (c *Chunk) ReadByte() (byte, error) {
	v, err := c.ReadDword()
	return byte(v), err
}

// ReadWord returns the low word of the next DWORD.
func (c *Chunk) ReadWord() (uint16, error) {
	v, err := c.ReadDword()
	return uint16(v), err
}

// ReadInt reads a signed 32-bit integer.
func (c *Chunk) ReadInt() (int32, error) {
	v, err := c.ReadDword()
	return int32(v), err
}

// ReadFloat reads a 32-bit float.
func (c *Chunk) ReadFloat() (float32, error) {
	v, err := c.ReadDword()
	return math.Float32frombits(v), err
}

// ReadGUID reads the two GUID words in (d1, d2) order.
func (c *Chunk) ReadGUID() (CKGUID, error) {
	d1, err := c.ReadDword()
	if err != nil {
		return CKGUID{}, err
	}
	d2, err := c.ReadDword()
	if err != nil {
		return CKGUID{}, err
	}
	return CKGUID{D1: d1, D2: d2}, nil
}

// ReadString reads a length prefixed string, allocating from the supplied
// arena. A zero length prefix decodes as the empty string.
func (c *Chunk) ReadString(a *Arena) (string, error) {
	byteLen, err := c.ReadDword()
	if err != nil {
		return "", err
	}
	if byteLen == 0 {
		return "", nil
	}
	n := dwordCount(int(byteLen))
	if err := c.checkRead(n); err != nil {
		return "", err
	}
	raw := copyDwordsToBytes(c.buf.data, c.cursor, int(byteLen))
	c.cursor += n
	// Strip the terminator written by the producing side.
	if raw[len(raw)-1] == 0 {
		raw = raw[:len(raw)-1]
	}
	if a != nil {
		return a.InternString(string(raw)), nil
	}
	return string(raw), nil
}

// ReadBuffer reads a length prefixed byte buffer.
func (c *Chunk) ReadBuffer(a *Arena) ([]byte, error) {
	byteLen, err := c.ReadDword()
	if err != nil {
		return nil, err
	}
	return c.ReadBufferNoSize(a, int(byteLen))
}

// ReadBufferNoSize reads byteLen bytes whose length the caller knows
// out-of-band.
func (c *Chunk) ReadBufferNoSize(a *Arena, byteLen int) ([]byte, error) {
	if byteLen < 0 {
		return nil, errKind(KindInvalidArgument, "negative buffer length %d", byteLen)
	}
	if byteLen == 0 {
		return nil, nil
	}
	n := dwordCount(byteLen)
	if err := c.checkRead(n); err != nil {
		return nil, err
	}
	var out []byte
	if a != nil {
		out = a.Bytes(byteLen)
	} else {
		out = make([]byte, byteLen)
	}
	copy(out, copyDwordsToBytes(c.buf.data, c.cursor, byteLen))
	c.cursor += n
	return out, nil
}

// ReadObjectID reads a raw object ID.
func (c *Chunk) ReadObjectID() (ID, error) {
	v, err := c.ReadDword()
	return ID(v), err
}

// ReadObjectIDArray reads a count prefixed ID array.
func (c *Chunk) ReadObjectIDArray() ([]ID, error) {
	count, err := c.ReadDword()
	if err != nil {
		return nil, err
	}
	if err := c.checkRead(int(count)); err != nil {
		return nil, err
	}
	out := make([]ID, count)
	for i := range out {
		out[i] = ID(c.buf.data[c.cursor+i])
	}
	c.cursor += int(count)
	return out, nil
}

// ReadObjectIDSequence reads a sequence header and returns the element
// count; the elements follow as raw IDs.
func (c *Chunk) ReadObjectIDSequence() (int, error) {
	count, err := c.ReadDword()
	return int(count), err
}

// ReadDwordArray reads a count prefixed DWORD array.
func (c *Chunk) ReadDwordArray() ([]uint32, error) {
	count, err := c.ReadDword()
	if err != nil {
		return nil, err
	}
	if err := c.checkRead(int(count)); err != nil {
		return nil, err
	}
	out := make([]uint32, count)
	copy(out, c.buf.data[c.cursor:c.cursor+int(count)])
	c.cursor += int(count)
	return out, nil
}

// ReadIntArray reads a count prefixed int array.
func (c *Chunk) ReadIntArray() ([]int32, error) {
	raw, err := c.ReadDwordArray()
	if err != nil {
		return nil, err
	}
	out := make([]int32, len(raw))
	for i, v := range raw {
		out[i] = int32(v)
	}
	return out, nil
}

// ReadFloatArray reads a count prefixed float array.
func (c *Chunk) ReadFloatArray() ([]float32, error) {
	raw, err := c.ReadDwordArray()
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = math.Float32frombits(v)
	}
	return out, nil
}

// ReadVector2 reads the two components.
func (c *Chunk) ReadVector2() (Vector2, error) {
	var v Vector2
	var err error
	if v.X, err = c.ReadFloat(); err != nil {
		return v, err
	}
	v.Y, err = c.ReadFloat()
	return v, err
}

// ReadVector3 reads the three components.
func (c *Chunk) ReadVector3() (Vector3, error) {
	var v Vector3
	var err error
	if v.X, err = c.ReadFloat(); err != nil {
		return v, err
	}
	if v.Y, err = c.ReadFloat(); err != nil {
		return v, err
	}
	v.Z, err = c.ReadFloat()
	return v, err
}

// ReadVector4 reads the four components.
func (c *Chunk) ReadVector4() (Vector4, error) {
	var v Vector4
	var err error
	if v.X, err = c.ReadFloat(); err != nil {
		return v, err
	}
	if v.Y, err = c.ReadFloat(); err != nil {
		return v, err
	}
	if v.Z, err = c.ReadFloat(); err != nil {
		return v, err
	}
	v.W, err = c.ReadFloat()
	return v, err
}

// ReadQuaternion reads (x, y, z, w).
func (c *Chunk) ReadQuaternion() (Quaternion, error) {
	v, err := c.ReadVector4()
	return Quaternion{X: v.X, Y: v.Y, Z: v.Z, W: v.W}, err
}

// ReadColor reads (r, g, b, a).
func (c *Chunk) ReadColor() (Color, error) {
	v, err := c.ReadVector4()
	return Color{R: v.X, G: v.Y, B: v.Z, A: v.W}, err
}

// ReadMatrix reads the sixteen floats row-major.
func (c *Chunk) ReadMatrix() (Matrix, error) {
	var m Matrix
	for i := range m {
		f, err := c.ReadFloat()
		if err != nil {
			return m, err
		}
		m[i] = f
	}
	return m, nil
}

// ReadSubChunk reads a sub-chunk reference from the payload and returns the
// attached child.
func (c *Chunk) ReadSubChunk() (*Chunk, error) {
	idx, err := c.ReadDword()
	if err != nil {
		return nil, err
	}
	if int(idx) >= len(c.subChunks) {
		return nil, errKind(KindOutOfBounds, "sub-chunk index %d out of %d", idx, len(c.subChunks))
	}
	return c.subChunks[int(idx)], nil
}

// ReadManagerSequence reads a manager sequence header and returns the
// manager GUID and element count.
func (c *Chunk) ReadManagerSequence() (CKGUID, int, error) {
	g, err := c.ReadGUID()
	if err != nil {
		return CKGUID{}, 0, err
	}
	count, err := c.ReadDword()
	return g, int(count), err
}

// ReadManagerInt reads a manager-tagged value.
func (c *Chunk) ReadManagerInt() (CKGUID, int32, error) {
	g, err := c.ReadGUID()
	if err != nil {
		return CKGUID{}, 0, err
	}
	v, err := c.ReadInt()
	return g, v, err
}

// SeekIdentifier walks the identifier chain and positions the cursor
// immediately past the matching marker. The walk visits each distinct
// marker once, so the cost is independent of how blocks interleave. A chunk
// that never wrote the identifier fails with NotFound.
func (c *Chunk) SeekIdentifier(id uint32) error {
	if c.mode != chunkModeReading {
		return errKind(KindInvalidState, "identifier seek outside reading mode")
	}
	if c.identKnown && c.identCount == 0 {
		return errKind(KindNotFound, "identifier 0x%08X not present", id)
	}
	pos := 0
	if c.identKnown {
		pos = c.firstIdentPos
	}
	for {
		if pos+2 > c.dataSize {
			return errKind(KindNotFound, "identifier 0x%08X not present", id)
		}
		if c.buf.data[pos] == id {
			c.cursor = pos + 2
			return nil
		}
		next := int(c.buf.data[pos+1])
		if next <= pos || next+2 > c.dataSize {
			return errKind(KindNotFound, "identifier 0x%08X not present", id)
		}
		pos = next
	}
}

// ReadRemainder captures everything from the cursor to the end of the
// payload. Class codecs use it to preserve raw tails verbatim.
func (c *Chunk) ReadRemainder() ([]uint32, error) {
	if c.mode != chunkModeReading {
		return nil, errKind(KindInvalidState, "read on a chunk not in reading mode")
	}
	n := c.remaining()
	if n <= 0 {
		return nil, nil
	}
	out := make([]uint32, n)
	copy(out, c.buf.data[c.cursor:c.dataSize])
	c.cursor = c.dataSize
	return out, nil
}

// WriteRemainder appends a previously captured raw tail.
func (c *Chunk) WriteRemainder(tail []uint32) error {
	if err := c.checkWrite(); err != nil {
		return err
	}
	if len(tail) == 0 {
		return nil
	}
	at := c.writeAt(len(tail))
	copy(c.buf.data[at:], tail)
	return nil
}
