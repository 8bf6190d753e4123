// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// Save pipeline phase names.
var savePhases = [...]string{
	1: "assign file indices",
	2: "serialize objects",
	3: "remap chunk IDs",
	4: "manager save hooks",
	5: "compress chunks",
	6: "build Header1",
	7: "concatenate data section",
	8: "write file",
}

func savePhaseErr(phase int, err error) error {
	return errors.Wrapf(err, "save phase %d (%s)", phase, savePhases[phase])
}

// SaveFile writes the session repository to path. On any failure the
// target file is either absent or unchanged: everything goes through a
// temp file renamed into place last.
func (s *Session) SaveFile(path string, flags SaveFlags) error {
	return s.SaveFileContext(context.Background(), path, flags)
}

// SaveFileContext is SaveFile with a cancellation token, checked between
// pipeline phases.
func (s *Session) SaveFileContext(ctx context.Context, path string, flags SaveFlags) error {
	out, err := s.saveBytes(ctx, s.repo.GetAll(), flags)
	if err != nil {
		return err
	}
	return atomicWriteFile(path, out)
}

// SaveBytes renders the session repository to an in-memory file image.
func (s *Session) SaveBytes(ctx context.Context, flags SaveFlags) ([]byte, error) {
	return s.saveBytes(ctx, s.repo.GetAll(), flags)
}

// assignFileIndices orders the objects class-grouped then by insertion and
// hands out 1-based file indices, so two runs over the same repository
// produce identical output bytes.
func assignFileIndices(objects []*Object, remap *IDRemap) []*Object {
	ordered := make([]*Object, len(objects))
	copy(ordered, objects)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ClassID < ordered[j].ClassID
	})
	for i, o := range ordered {
		fileIndex := ID(i + 1)
		o.FileIndex = fileIndex
		remap.Record(fileIndex, o.ID)
	}
	return ordered
}

func (s *Session) saveBytes(ctx context.Context, objects []*Object, flags SaveFlags) ([]byte, error) {
	compress := flags&SaveCompress != 0

	// Phase 1: stable file index assignment.
	if err := checkSaveCancel(ctx, 1); err != nil {
		return nil, err
	}
	remap := NewIDRemap()
	ordered := assignFileIndices(objects, remap)

	// Phase 2: run every class serializer into a fresh chunk.
	if err := checkSaveCancel(ctx, 2); err != nil {
		return nil, err
	}
	chunks := make([]*Chunk, len(ordered))
	for i, o := range ordered {
		c, err := SerializeObject(o, s.ctx.classes, s.arena)
		if err != nil {
			return nil, savePhaseErr(2, errors.Wrapf(err, "object %d (%s)", o.ID, o.Name))
		}
		if c == o.Chunk {
			// Objects round-tripping their retained chunk get a copy, so
			// the remap below never touches the live runtime chunk.
			c = c.Clone()
		}
		c.fromFile = true
		chunks[i] = c
		o.Chunk = c
	}

	// Phase 3: rewrite runtime IDs as file indices.
	if err := checkSaveCancel(ctx, 3); err != nil {
		return nil, err
	}
	for i, c := range chunks {
		if err := c.RemapObjectIDs(remap.RuntimeToFile()); err != nil {
			return nil, savePhaseErr(3, errors.Wrapf(err, "object %d", ordered[i].ID))
		}
	}

	// Phase 4: collect manager chunks.
	if err := checkSaveCancel(ctx, 4); err != nil {
		return nil, err
	}
	var managerChunks []*Chunk
	for _, m := range s.ctx.managers {
		mc, err := m.SaveData(s, s.arena)
		if err != nil {
			if m.Fatal() {
				return nil, savePhaseErr(4, err)
			}
			s.recordHookFailure(m, "save_data", err)
			continue
		}
		if mc != nil {
			managerChunks = append(managerChunks, mc)
		}
	}

	// Phase 5: per-chunk beneficial compression.
	if err := checkSaveCancel(ctx, 5); err != nil {
		return nil, err
	}
	if compress {
		level, ratio := s.ctx.compressionLevel(), s.ctx.compressionRatio()
		for _, c := range chunks {
			if err := c.PackIfBeneficial(level, ratio); err != nil {
				return nil, savePhaseErr(5, err)
			}
		}
	}

	// Phase 7 runs before 6 in the byte stream sense: chunk offsets feed
	// the descriptor table, so the data section is laid out first.
	if err := checkSaveCancel(ctx, 7); err != nil {
		return nil, err
	}
	var data []uint32
	offset := 0
	for _, mc := range managerChunks {
		data = mc.appendTo(data)
		offset = len(data)
	}
	descriptors := make([]ObjectDescriptor, len(ordered))
	for i, o := range ordered {
		size := chunks[i].serializedSize()
		descriptors[i] = ObjectDescriptor{
			FileIndex:   o.FileIndex,
			ClassID:     o.ClassID,
			Name:        o.Name,
			ChunkOffset: uint32(offset),
			ChunkSize:   uint32(size),
		}
		data = chunks[i].appendTo(data)
		offset = len(data)
	}
	dataBytes := dwordsToBytes(data)

	// Phase 6: Header1 with descriptors, plugin deps and included files.
	if err := checkSaveCancel(ctx, 6); err != nil {
		return nil, err
	}
	h1 := &Header1{
		Descriptors:   descriptors,
		PluginDeps:    s.pluginDeps,
		IncludedFiles: s.includedFiles,
	}
	h1Dwords, err := h1.encode()
	if err != nil {
		return nil, savePhaseErr(6, err)
	}
	h1Bytes := dwordsToBytes(h1Dwords)
	crc := adlerUpdate(1, h1Bytes)

	hdr := FileHeader{
		CkVersion:        CKVersion,
		FileVersion:      MaxFileVersion - 2,
		ManagerCount:     uint32(len(managerChunks)),
		ObjectCount:      uint32(len(ordered)),
		MaxIDSaved:       uint32(len(ordered)),
		Hdr1CRC:          crc,
		Hdr1UnpackedSize: uint32(len(h1Bytes)),
		DataUnpackedSize: uint32(len(dataBytes)),
	}

	packedH1, packedData := h1Bytes, dataBytes
	if compress {
		hdr.FileWriteMode |= FileWriteModeCompressData
		level := s.ctx.compressionLevel()
		if packedH1, err = deflate(h1Bytes, level); err != nil {
			return nil, savePhaseErr(6, err)
		}
		if packedData, err = deflate(dataBytes, level); err != nil {
			return nil, savePhaseErr(7, err)
		}
	}
	hdr.Hdr1PackedSize = uint32(len(packedH1))
	hdr.DataPackedSize = uint32(len(packedData))

	// Phase 8: assemble the image.
	if err := checkSaveCancel(ctx, 8); err != nil {
		return nil, err
	}
	out := make([]byte, 0, FileHeaderSize+len(packedH1)+len(packedData))
	out = append(out, hdr.Marshal()...)
	out = append(out, packedH1...)
	out = append(out, packedData...)
	return out, nil
}

func checkSaveCancel(ctx context.Context, phase int) error {
	if ctx == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "cancelled before save phase %d (%s)", phase, savePhases[phase])
	}
	return nil
}

// atomicWriteFile writes through a temp file renamed into place, so a
// failed save leaves the target absent or untouched.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".nmo-save-*")
	if err != nil {
		return wrapKind(KindIoError, err, "create temp file in %s", dir)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return wrapKind(KindIoError, err, "write %s", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return wrapKind(KindIoError, err, "close %s", tmpPath)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return wrapKind(KindIoError, err, "rename into %s", path)
	}
	return nil
}
