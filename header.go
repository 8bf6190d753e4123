// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

import (
	"bytes"
	"encoding/binary"
)

// FileHeader is the fixed little-endian prefix of every composition file,
// following the 8-byte signature.
type FileHeader struct {
	// CkVersion is the toolkit version that produced the file.
	CkVersion uint32 `json:"ck_version"`

	// FileVersion is the format revision, in the 2..9 range.
	FileVersion uint32 `json:"file_version"`

	// FileWriteMode carries the write-mode flag set, including
	// FileWriteModeCompressData.
	FileWriteMode uint32 `json:"file_write_mode"`

	// ManagerCount is the number of manager chunks leading the data
	// section.
	ManagerCount uint32 `json:"manager_count"`

	// ObjectCount is the number of object descriptors and chunks.
	ObjectCount uint32 `json:"object_count"`

	// MaxIDSaved is the largest file index stored in the file.
	MaxIDSaved uint32 `json:"max_id_saved"`

	// Hdr1CRC is the Adler-32 of the decompressed Header1 region.
	Hdr1CRC uint32 `json:"hdr1_crc"`

	// Hdr1PackedSize and Hdr1UnpackedSize frame the Header1 region in
	// bytes. They are equal when the region is stored verbatim.
	Hdr1PackedSize   uint32 `json:"hdr1_packed_size"`
	Hdr1UnpackedSize uint32 `json:"hdr1_unpacked_size"`

	// DataPackedSize and DataUnpackedSize frame the data section in bytes.
	DataPackedSize   uint32 `json:"data_packed_size"`
	DataUnpackedSize uint32 `json:"data_unpacked_size"`
}

// Compressed reports whether the Header1 region and data section are
// deflate-compressed.
func (h *FileHeader) Compressed() bool {
	return h.FileWriteMode&FileWriteModeCompressData != 0
}

// ParseFileHeader validates the signature and decodes the fixed header.
func ParseFileHeader(data []byte) (FileHeader, error) {
	var h FileHeader
	if len(data) < FileHeaderSize {
		return h, ErrFileTooSmall
	}
	if !bytes.Equal(data[:SignatureSize], []byte(Signature)) {
		return h, ErrInvalidSignature
	}
	fields := []*uint32{
		&h.CkVersion, &h.FileVersion, &h.FileWriteMode,
		&h.ManagerCount, &h.ObjectCount, &h.MaxIDSaved,
		&h.Hdr1CRC, &h.Hdr1PackedSize, &h.Hdr1UnpackedSize,
		&h.DataPackedSize, &h.DataUnpackedSize,
	}
	for i, f := range fields {
		*f = binary.LittleEndian.Uint32(data[SignatureSize+i*4:])
	}
	if h.FileVersion < MinFileVersion || h.FileVersion > MaxFileVersion {
		return h, ErrFileVersion
	}
	return h, nil
}

// Marshal renders the header back to its fixed byte form.
func (h *FileHeader) Marshal() []byte {
	out := make([]byte, FileHeaderSize)
	copy(out, Signature)
	fields := []uint32{
		h.CkVersion, h.FileVersion, h.FileWriteMode,
		h.ManagerCount, h.ObjectCount, h.MaxIDSaved,
		h.Hdr1CRC, h.Hdr1PackedSize, h.Hdr1UnpackedSize,
		h.DataPackedSize, h.DataUnpackedSize,
	}
	for i, f := range fields {
		binary.LittleEndian.PutUint32(out[SignatureSize+i*4:], f)
	}
	return out
}

// ObjectDescriptor is one entry of the Header1 descriptor table, locating
// an object's chunk inside the data section. Offsets and sizes are in
// DWORDs.
type ObjectDescriptor struct {
	FileIndex   ID      `json:"file_index"`
	ClassID     ClassID `json:"class_id"`
	Name        string  `json:"name,omitempty"`
	ChunkOffset uint32  `json:"chunk_offset"`
	ChunkSize   uint32  `json:"chunk_size"`
}

// PluginGUIDVersion is one required plugin inside a dependency category.
type PluginGUIDVersion struct {
	GUID    CKGUID `json:"guid"`
	Version uint32 `json:"version"`
}

// PluginDep is one plugin-dependency category declared by the file.
type PluginDep struct {
	Category uint32              `json:"category"`
	Plugins  []PluginGUIDVersion `json:"plugins"`
}

// Header1 is the decoded form of the compressed Header1 region: the object
// descriptor table, the plugin-dependency list and the included-file
// references.
type Header1 struct {
	Descriptors   []ObjectDescriptor
	PluginDeps    []PluginDep
	IncludedFiles []string
}

// encode renders Header1 into its DWORD region:
// [pluginCategoryCount, includedFileCount, descriptorTableSize,
// descriptors..., pluginDeps..., includedFiles...].
func (h *Header1) encode() ([]uint32, error) {
	table := NewChunk(0)
	table.StartWrite()
	for _, d := range h.Descriptors {
		if err := table.WriteDword(uint32(d.FileIndex)); err != nil {
			return nil, err
		}
		if err := table.WriteDword(uint32(d.ClassID)); err != nil {
			return nil, err
		}
		if err := table.WriteString(d.Name); err != nil {
			return nil, err
		}
		if err := table.WriteDword(d.ChunkOffset); err != nil {
			return nil, err
		}
		if err := table.WriteDword(d.ChunkSize); err != nil {
			return nil, err
		}
	}
	table.CloseChunk()

	c := NewChunk(0)
	c.StartWrite()
	if err := c.WriteDword(uint32(len(h.PluginDeps))); err != nil {
		return nil, err
	}
	if err := c.WriteDword(uint32(len(h.IncludedFiles))); err != nil {
		return nil, err
	}
	if err := c.WriteDword(uint32(table.DataSize())); err != nil {
		return nil, err
	}
	if err := c.WriteRemainder(table.buf.data[:table.DataSize()]); err != nil {
		return nil, err
	}
	for _, dep := range h.PluginDeps {
		if err := c.WriteDword(dep.Category); err != nil {
			return nil, err
		}
		if err := c.WriteDword(uint32(len(dep.Plugins))); err != nil {
			return nil, err
		}
		for _, p := range dep.Plugins {
			if err := c.WriteGUID(p.GUID); err != nil {
				return nil, err
			}
			if err := c.WriteDword(p.Version); err != nil {
				return nil, err
			}
		}
	}
	for _, name := range h.IncludedFiles {
		if err := c.WriteString(name); err != nil {
			return nil, err
		}
	}
	c.CloseChunk()
	return c.buf.data[:c.DataSize()], nil
}

// decodeHeader1 parses the decompressed Header1 region. Metadata-only
// variants, where the declared counts are non-zero but the bodies are
// absent, decode to whatever the region actually holds.
func decodeHeader1(data []uint32, a *Arena) (*Header1, error) {
	c := &Chunk{ChunkVersion: ChunkVersionCurrent}
	c.buf.data = data
	c.dataSize = len(data)
	c.mode = chunkModeClosed
	c.StartRead()

	h := &Header1{}
	pluginCategories, err := c.ReadDword()
	if err != nil {
		return nil, err
	}
	includedFiles, err := c.ReadDword()
	if err != nil {
		return nil, err
	}
	tableSize, err := c.ReadDword()
	if err != nil {
		return nil, err
	}
	tableEnd := c.Cursor() + int(tableSize)
	if tableEnd > c.DataSize() {
		return nil, errKind(KindInvalidFormat, "descriptor table of %d DWORDs overruns Header1", tableSize)
	}
	for c.Cursor() < tableEnd {
		var d ObjectDescriptor
		fi, err := c.ReadDword()
		if err != nil {
			return nil, err
		}
		cid, err := c.ReadDword()
		if err != nil {
			return nil, err
		}
		name, err := c.ReadString(a)
		if err != nil {
			return nil, err
		}
		off, err := c.ReadDword()
		if err != nil {
			return nil, err
		}
		size, err := c.ReadDword()
		if err != nil {
			return nil, err
		}
		d.FileIndex = ID(fi)
		d.ClassID = ClassID(cid)
		d.Name = name
		d.ChunkOffset = off
		d.ChunkSize = size
		h.Descriptors = append(h.Descriptors, d)
	}

	for i := uint32(0); i < pluginCategories; i++ {
		if c.remaining() == 0 {
			// Metadata-only variant: counts without bodies.
			return h, nil
		}
		var dep PluginDep
		if dep.Category, err = c.ReadDword(); err != nil {
			return nil, err
		}
		count, err := c.ReadDword()
		if err != nil {
			return nil, err
		}
		for j := uint32(0); j < count; j++ {
			var p PluginGUIDVersion
			if p.GUID, err = c.ReadGUID(); err != nil {
				return nil, err
			}
			if p.Version, err = c.ReadDword(); err != nil {
				return nil, err
			}
			dep.Plugins = append(dep.Plugins, p)
		}
		h.PluginDeps = append(h.PluginDeps, dep)
	}

	for i := uint32(0); i < includedFiles; i++ {
		if c.remaining() == 0 {
			return h, nil
		}
		name, err := c.ReadString(a)
		if err != nil {
			return nil, err
		}
		h.IncludedFiles = append(h.IncludedFiles, name)
	}
	return h, nil
}
