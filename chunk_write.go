// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

import "math"

// Primitive writers each consume exactly one DWORD of buffer, padding the
// unused high bytes with zero.

// WriteByte writes one byte into a full DWORD.
func (c *Chunk) WriteByte(v byte) error {
	return c.WriteDword(uint32(v))
}

// WriteWord writes one 16-bit word into a full DWORD.
func (c *Chunk) WriteWord(v uint16) error {
	return c.WriteDword(uint32(v))
}

// WriteInt writes a signed 32-bit integer.
func (c *Chunk) WriteInt(v int32) error {
	return c.WriteDword(uint32(v))
}

// WriteDword writes a raw DWORD.
func (c *Chunk) WriteDword(v uint32) error {
	if err := c.checkWrite(); err != nil {
		return err
	}
	at := c.writeAt(1)
	c.buf.data[at] = v
	return nil
}

// WriteFloat writes a 32-bit float.
func (c *Chunk) WriteFloat(v float32) error {
	return c.WriteDword(math.Float32bits(v))
}

// WriteGUID writes the two GUID words in (d1, d2) order.
func (c *Chunk) WriteGUID(g CKGUID) error {
	if err := c.WriteDword(g.D1); err != nil {
		return err
	}
	return c.WriteDword(g.D2)
}

// WriteString writes a DWORD byte-length prefix (terminator included) then
// the NUL terminated bytes padded to a DWORD boundary. The empty string
// encodes as length zero.
func (c *Chunk) WriteString(s string) error {
	if err := c.checkWrite(); err != nil {
		return err
	}
	if s == "" {
		return c.WriteDword(0)
	}
	byteLen := len(s) + 1
	if err := c.WriteDword(uint32(byteLen)); err != nil {
		return err
	}
	at := c.writeAt(dwordCount(byteLen))
	raw := make([]byte, byteLen)
	copy(raw, s)
	copyBytesToDwords(c.buf.data, at, raw)
	return nil
}

// WriteBuffer writes a DWORD byte-length prefix then the padded bytes.
func (c *Chunk) WriteBuffer(b []byte) error {
	if err := c.WriteDword(uint32(len(b))); err != nil {
		return err
	}
	return c.WriteBufferNoSize(b)
}

// WriteBufferNoSize writes the padded bytes without a length prefix; the
// reader needs the length out-of-band.
func (c *Chunk) WriteBufferNoSize(b []byte) error {
	if err := c.checkWrite(); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	at := c.writeAt(dwordCount(len(b)))
	copyBytesToDwords(c.buf.data, at, b)
	return nil
}

// WriteObjectID writes the raw ID and records the buffer offset so the
// remap pass can rewrite it later.
func (c *Chunk) WriteObjectID(id ID) error {
	if err := c.checkWrite(); err != nil {
		return err
	}
	c.ids = append(c.ids, int32(c.cursor))
	at := c.writeAt(1)
	c.buf.data[at] = uint32(id)
	return nil
}

// WriteObjectIDArray writes a count prefix followed by the IDs, recording
// every element position for remapping.
func (c *Chunk) WriteObjectIDArray(ids []ID) error {
	if err := c.WriteDword(uint32(len(ids))); err != nil {
		return err
	}
	for _, id := range ids {
		if err := c.WriteObjectID(id); err != nil {
			return err
		}
	}
	return nil
}

// StartObjectIDSequence writes the element count and flags the position as
// a sequence header: the count DWORD is followed by count object IDs that
// the remap pass rewrites as a block.
func (c *Chunk) StartObjectIDSequence(count int) error {
	if err := c.checkWrite(); err != nil {
		return err
	}
	c.ids = append(c.ids, int32(-c.cursor))
	at := c.writeAt(1)
	c.buf.data[at] = uint32(count)
	return nil
}

// WriteObjectIDInSequence writes one ID of a running sequence. The position
// is covered by the sequence header, so it is not recorded individually.
func (c *Chunk) WriteObjectIDInSequence(id ID) error {
	return c.WriteDword(uint32(id))
}

// WriteDwordArray writes a count prefix followed by the raw DWORDs.
func (c *Chunk) WriteDwordArray(vals []uint32) error {
	if err := c.WriteDword(uint32(len(vals))); err != nil {
		return err
	}
	if err := c.checkWrite(); err != nil {
		return err
	}
	at := c.writeAt(len(vals))
	copy(c.buf.data[at:], vals)
	return nil
}

// WriteIntArray writes a count prefix followed by the values.
func (c *Chunk) WriteIntArray(vals []int32) error {
	if err := c.WriteDword(uint32(len(vals))); err != nil {
		return err
	}
	for _, v := range vals {
		if err := c.WriteInt(v); err != nil {
			return err
		}
	}
	return nil
}

// WriteFloatArray writes a count prefix followed by the values.
func (c *Chunk) WriteFloatArray(vals []float32) error {
	if err := c.WriteDword(uint32(len(vals))); err != nil {
		return err
	}
	for _, v := range vals {
		if err := c.WriteFloat(v); err != nil {
			return err
		}
	}
	return nil
}

// WriteVector2 writes the two components.
func (c *Chunk) WriteVector2(v Vector2) error {
	if err := c.WriteFloat(v.X); err != nil {
		return err
	}
	return c.WriteFloat(v.Y)
}

// WriteVector3 writes the three components.
func (c *Chunk) WriteVector3(v Vector3) error {
	if err := c.WriteFloat(v.X); err != nil {
		return err
	}
	if err := c.WriteFloat(v.Y); err != nil {
		return err
	}
	return c.WriteFloat(v.Z)
}

// WriteVector4 writes the four components.
func (c *Chunk) WriteVector4(v Vector4) error {
	if err := c.WriteFloat(v.X); err != nil {
		return err
	}
	if err := c.WriteFloat(v.Y); err != nil {
		return err
	}
	if err := c.WriteFloat(v.Z); err != nil {
		return err
	}
	return c.WriteFloat(v.W)
}

// WriteQuaternion writes (x, y, z, w).
func (c *Chunk) WriteQuaternion(q Quaternion) error {
	return c.WriteVector4(Vector4{X: q.X, Y: q.Y, Z: q.Z, W: q.W})
}

// WriteColor writes (r, g, b, a).
func (c *Chunk) WriteColor(col Color) error {
	return c.WriteVector4(Vector4{X: col.R, Y: col.G, Z: col.B, W: col.A})
}

// WriteMatrix writes the sixteen floats row-major.
func (c *Chunk) WriteMatrix(m Matrix) error {
	for _, f := range m {
		if err := c.WriteFloat(f); err != nil {
			return err
		}
	}
	return nil
}

// WriteIdentifier writes an intra-chunk marker enabling random access to
// the block that follows. Markers chain forward: the previous marker's link
// DWORD is patched to the new marker's position.
func (c *Chunk) WriteIdentifier(id uint32) error {
	if err := c.checkWrite(); err != nil {
		return err
	}
	pos := c.cursor
	at := c.writeAt(2)
	c.buf.data[at] = id
	c.buf.data[at+1] = 0
	if c.identCount > 0 {
		c.buf.data[c.prevIdentPos+1] = uint32(pos)
	} else {
		c.firstIdentPos = pos
	}
	c.prevIdentPos = pos
	c.identCount++
	return nil
}

// WriteSubChunk serializes the child as an attached sub-chunk and writes
// its index into the payload so the reading side can fetch it in place.
func (c *Chunk) WriteSubChunk(sub *Chunk) error {
	if err := c.checkWrite(); err != nil {
		return err
	}
	if sub == nil {
		return errKind(KindInvalidArgument, "nil sub-chunk")
	}
	if sub.mode == chunkModeWriting {
		sub.CloseChunk()
	}
	if err := c.WriteDword(uint32(len(c.subChunks))); err != nil {
		return err
	}
	c.subChunks = append(c.subChunks, sub)
	return nil
}

// StartManagerSequence writes the manager GUID then the element count and
// flags the count position as a manager sequence header.
func (c *Chunk) StartManagerSequence(g CKGUID, count int) error {
	if err := c.WriteGUID(g); err != nil {
		return err
	}
	c.managers = append(c.managers, int32(-c.cursor))
	at := c.writeAt(1)
	c.buf.data[at] = uint32(count)
	return nil
}

// WriteManagerInt writes a manager-tagged value: the manager GUID followed
// by the value, whose position is recorded for manager remap passes.
func (c *Chunk) WriteManagerInt(g CKGUID, v int32) error {
	if err := c.WriteGUID(g); err != nil {
		return err
	}
	c.managers = append(c.managers, int32(c.cursor))
	at := c.writeAt(1)
	c.buf.data[at] = uint32(v)
	return nil
}
