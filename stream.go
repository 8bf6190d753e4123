// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zlib"
)

// StreamReader decodes a composition file one object at a time, for files
// too large to hold decoded in RAM. Cross references stay as IDs: the full
// graph is never materialized, so FinishLoading does not run.
type StreamReader struct {
	Header        FileHeader
	Descriptors   []ObjectDescriptor
	PluginDeps    []PluginDep
	IncludedFiles []string

	f       *os.File
	body    io.Reader
	classes *ClassRegistry
	remap   *IDRemap

	next    int
	pos     int
	scratch []byte
}

// NewStreamReader opens path and reads the header and Header1 region.
// Runtime IDs 1..N are pre-assigned to the descriptors so chunk remapping
// works without materializing the graph.
func NewStreamReader(path string, classes *ClassRegistry) (*StreamReader, error) {
	if classes == nil {
		classes = Classes
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapKind(KindIoError, err, "open %s", path)
	}
	r := &StreamReader{f: f, classes: classes, remap: NewIDRemap()}
	if err := r.readHead(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func (r *StreamReader) readHead() error {
	br := bufio.NewReader(r.f)
	head := make([]byte, FileHeaderSize)
	if _, err := io.ReadFull(br, head); err != nil {
		return wrapKind(KindIoError, err, "read file header")
	}
	hdr, err := ParseFileHeader(head)
	if err != nil {
		return err
	}
	r.Header = hdr

	region := make([]byte, hdr.Hdr1PackedSize)
	if _, err := io.ReadFull(br, region); err != nil {
		return wrapKind(KindIoError, err, "read Header1 region")
	}
	raw := region
	if hdr.Compressed() && hdr.Hdr1PackedSize != hdr.Hdr1UnpackedSize {
		if raw, err = inflate(region, int(hdr.Hdr1UnpackedSize)); err != nil {
			return err
		}
	}
	if len(raw) > 0 {
		if crc := adlerUpdate(1, raw); crc != hdr.Hdr1CRC {
			return ErrHeaderCRC
		}
		h1, err := decodeHeader1(bytesToDwords(raw), nil)
		if err != nil {
			return err
		}
		r.Descriptors = h1.Descriptors
		r.PluginDeps = h1.PluginDeps
		r.IncludedFiles = h1.IncludedFiles
	}

	for i, d := range r.Descriptors {
		r.remap.Record(d.FileIndex&^IDReferenceBit, ID(i+1))
	}

	// The remaining stream is the data section; wrap it for inflation when
	// the file is compressed.
	r.body = br
	if hdr.Compressed() && hdr.DataPackedSize != hdr.DataUnpackedSize {
		zr, err := zlib.NewReader(io.LimitReader(br, int64(hdr.DataPackedSize)))
		if err != nil {
			return wrapKind(KindCompressionError, err, "open data section")
		}
		r.body = zr
	}
	return nil
}

// readDwords pulls n DWORDs off the data section, reusing one scratch
// buffer across calls.
func (r *StreamReader) readDwords(n int) ([]uint32, error) {
	if cap(r.scratch) < n*4 {
		r.scratch = make([]byte, n*4)
	}
	buf := r.scratch[:n*4]
	if _, err := io.ReadFull(r.body, buf); err != nil {
		return nil, wrapKind(KindIoError, err, "read %d DWORDs from data section", n)
	}
	r.pos += n
	return bytesToDwords(buf), nil
}

// skipManagerChunks consumes the manager region in front of the first
// object chunk.
func (r *StreamReader) skipManagerChunks() error {
	if r.pos > 0 || len(r.Descriptors) == 0 {
		return nil
	}
	managerEnd := int(r.Descriptors[0].ChunkOffset)
	if managerEnd == 0 {
		return nil
	}
	_, err := r.readDwords(managerEnd)
	return err
}

// ReadNextObject yields the next fully decoded object. The supplied arena
// is reset first, so the previously returned object dies with each call.
// io.EOF style end is signaled with a NotFound error once every descriptor
// was consumed.
func (r *StreamReader) ReadNextObject(a *Arena) (*Object, error) {
	if r.next >= len(r.Descriptors) {
		return nil, errKind(KindNotFound, "all %d objects consumed", len(r.Descriptors))
	}
	if err := r.skipManagerChunks(); err != nil {
		return nil, err
	}
	if a != nil {
		a.Reset()
	}

	d := r.Descriptors[r.next]
	if int(d.ChunkOffset) != r.pos {
		// Descriptors are laid out in stream order by the save pipeline;
		// anything else needs the random-access loader.
		return nil, errKind(KindInvalidFormat,
			"descriptor %d points at %d, stream is at %d", r.next, d.ChunkOffset, r.pos)
	}
	data, err := r.readDwords(int(d.ChunkSize))
	if err != nil {
		return nil, err
	}
	chunk, used, err := parseChunk(data)
	if err != nil {
		return nil, err
	}
	if used != int(d.ChunkSize) {
		return nil, errKind(KindInvalidFormat,
			"chunk of object %d decodes to %d DWORDs, descriptor declares %d",
			d.FileIndex, used, d.ChunkSize)
	}
	if err := chunk.Unpack(); err != nil {
		return nil, err
	}
	if err := chunk.RemapObjectIDs(r.remap.FileToRuntime()); err != nil {
		return nil, err
	}

	o := NewObject(d.ClassID, d.Name, a)
	o.ID = ID(r.next + 1)
	o.FileIndex = d.FileIndex
	o.Chunk = chunk
	if err := DeserializeObject(o, r.classes, a); err != nil {
		return nil, err
	}
	r.next++
	return o, nil
}

// Close releases the underlying file.
func (r *StreamReader) Close() error {
	if c, ok := r.body.(io.Closer); ok {
		_ = c.Close()
	}
	return r.f.Close()
}

// StreamWriter emits a composition file incrementally: chunks stream to a
// temp file as objects arrive, the header and Header1 are assembled at
// Close. The resulting bytes are identical to a non-streaming save of the
// same object set.
type StreamWriter struct {
	session *Session
	flags   SaveFlags

	path    string
	tmp     *os.File
	tmpPath string

	remap       *IDRemap
	reserved    []*Object
	written     int
	offset      int
	data        []byte
	descriptors []ObjectDescriptor
	closed      bool
}

// NewStreamWriter creates a writer targeting path. Reserve must run before
// the first WriteObject so forward references remap correctly.
func NewStreamWriter(path string, session *Session, flags SaveFlags) (*StreamWriter, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".nmo-stream-*")
	if err != nil {
		return nil, wrapKind(KindIoError, err, "create temp file for %s", path)
	}
	return &StreamWriter{
		session: session,
		flags:   flags,
		path:    path,
		tmp:     tmp,
		tmpPath: tmp.Name(),
		remap:   NewIDRemap(),
	}, nil
}

// Reserve assigns file indices to the full object set up front, in the
// same class-grouped order the non-streaming save uses. WriteObject calls
// must then follow that order; Reserved exposes it.
func (w *StreamWriter) Reserve(objects []*Object) []*Object {
	w.reserved = assignFileIndices(objects, w.remap)
	return w.reserved
}

// Reserved returns the reserved objects in write order.
func (w *StreamWriter) Reserved() []*Object {
	return w.reserved
}

// WriteObject serializes, remaps and flushes one reserved object.
func (w *StreamWriter) WriteObject(o *Object) error {
	if w.closed {
		return errKind(KindInvalidState, "writer already closed")
	}
	if w.written >= len(w.reserved) || w.reserved[w.written] != o {
		return errKind(KindInvalidState,
			"objects must be written in the reserved order")
	}
	c, err := SerializeObject(o, w.session.ctx.classes, w.session.arena)
	if err != nil {
		return err
	}
	if c == o.Chunk {
		c = c.Clone()
	}
	c.fromFile = true
	if err := c.RemapObjectIDs(w.remap.RuntimeToFile()); err != nil {
		return err
	}
	if w.flags&SaveCompress != 0 {
		if err := c.PackIfBeneficial(w.session.ctx.compressionLevel(),
			w.session.ctx.compressionRatio()); err != nil {
			return err
		}
	}
	dwords := c.appendTo(nil)
	w.descriptors = append(w.descriptors, ObjectDescriptor{
		FileIndex:   o.FileIndex,
		ClassID:     o.ClassID,
		Name:        o.Name,
		ChunkOffset: uint32(w.offset),
		ChunkSize:   uint32(len(dwords)),
	})
	chunkBytes := dwordsToBytes(dwords)
	if w.flags&SaveCompress != 0 {
		// Compressed files deflate the whole data section at Close; buffer
		// the raw bytes until then.
		w.data = append(w.data, chunkBytes...)
	} else {
		if _, err := w.tmp.Write(chunkBytes); err != nil {
			w.abort()
			return wrapKind(KindIoError, err, "write chunk to %s", w.tmpPath)
		}
	}
	w.offset += len(dwords)
	w.written++
	return nil
}

func (w *StreamWriter) abort() {
	w.closed = true
	w.tmp.Close()
	os.Remove(w.tmpPath)
}

// Close assembles the header and Header1, completes the temp file and
// renames it into place. Closing with unwritten reserved objects fails and
// removes the temp file.
func (w *StreamWriter) Close() error {
	if w.closed {
		return errKind(KindInvalidState, "writer already closed")
	}
	if w.written != len(w.reserved) {
		w.abort()
		return errKind(KindInvalidState,
			"%d of %d reserved objects written", w.written, len(w.reserved))
	}

	h1 := &Header1{
		Descriptors:   w.descriptors,
		PluginDeps:    w.session.pluginDeps,
		IncludedFiles: w.session.includedFiles,
	}
	h1Dwords, err := h1.encode()
	if err != nil {
		w.abort()
		return err
	}
	h1Bytes := dwordsToBytes(h1Dwords)

	hdr := FileHeader{
		CkVersion:        CKVersion,
		FileVersion:      MaxFileVersion - 2,
		ObjectCount:      uint32(len(w.descriptors)),
		MaxIDSaved:       uint32(len(w.descriptors)),
		Hdr1CRC:          adlerUpdate(1, h1Bytes),
		Hdr1UnpackedSize: uint32(len(h1Bytes)),
		DataUnpackedSize: uint32(w.offset * 4),
	}

	packedH1 := h1Bytes
	var packedData []byte
	if w.flags&SaveCompress != 0 {
		hdr.FileWriteMode |= FileWriteModeCompressData
		level := w.session.ctx.compressionLevel()
		if packedH1, err = deflate(h1Bytes, level); err != nil {
			w.abort()
			return err
		}
		if packedData, err = deflate(w.data, level); err != nil {
			w.abort()
			return err
		}
	}
	hdr.Hdr1PackedSize = uint32(len(packedH1))
	if w.flags&SaveCompress != 0 {
		hdr.DataPackedSize = uint32(len(packedData))
	} else {
		hdr.DataPackedSize = hdr.DataUnpackedSize
	}

	// The data section was streamed first; prepend header and Header1 by
	// writing the final file and copying the chunk stream back.
	final, err := os.CreateTemp(filepath.Dir(w.path), ".nmo-stream-final-*")
	if err != nil {
		w.abort()
		return wrapKind(KindIoError, err, "create final temp for %s", w.path)
	}
	finalPath := final.Name()
	fail := func(err error) error {
		final.Close()
		os.Remove(finalPath)
		w.abort()
		return err
	}
	if _, err := final.Write(hdr.Marshal()); err != nil {
		return fail(wrapKind(KindIoError, err, "write header"))
	}
	if _, err := final.Write(packedH1); err != nil {
		return fail(wrapKind(KindIoError, err, "write Header1"))
	}
	if w.flags&SaveCompress != 0 {
		if _, err := final.Write(packedData); err != nil {
			return fail(wrapKind(KindIoError, err, "write data section"))
		}
	} else {
		if _, err := w.tmp.Seek(0, io.SeekStart); err != nil {
			return fail(wrapKind(KindIoError, err, "rewind chunk stream"))
		}
		if _, err := io.Copy(final, w.tmp); err != nil {
			return fail(wrapKind(KindIoError, err, "copy chunk stream"))
		}
	}
	if err := final.Close(); err != nil {
		return fail(wrapKind(KindIoError, err, "close %s", finalPath))
	}
	w.tmp.Close()
	os.Remove(w.tmpPath)
	w.closed = true
	if err := os.Rename(finalPath, w.path); err != nil {
		os.Remove(finalPath)
		return wrapKind(KindIoError, err, "rename into %s", w.path)
	}
	return nil
}
