// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

import (
	"context"
	"sort"

	"github.com/pkg/errors"
)

// Load pipeline phase names, used to annotate failures.
var loadPhases = [...]string{
	1:  "open input",
	2:  "parse file header",
	3:  "decompress Header1",
	4:  "parse Header1",
	5:  "start load session",
	6:  "check plugin dependencies",
	7:  "manager pre-load hooks",
	8:  "decompress data section",
	9:  "parse manager chunks",
	10: "create object shells",
	11: "parse object chunks",
	12: "build ID remap",
	13: "remap chunk IDs",
	14: "deserialize objects",
	15: "finish loading",
}

// loadState carries the staging structures of one load run. Nothing
// touches the session repository until the whole pipeline succeeded, so a
// failed load leaves the repository exactly as it was.
type loadState struct {
	file    *File
	flags   LoadFlags
	data    []uint32
	staging *Repository
	objects []*Object
	remap   *IDRemap
}

// LoadFile loads a composition file into the session repository.
func (s *Session) LoadFile(path string, flags LoadFlags) error {
	return s.LoadFileContext(context.Background(), path, flags)
}

// LoadFileContext is LoadFile with a cancellation token, checked between
// pipeline phases.
func (s *Session) LoadFileContext(ctx context.Context, path string, flags LoadFlags) error {
	f, err := New(path, &Options{Logger: nil})
	if err != nil {
		return errors.Wrapf(err, "load phase 1 (%s)", loadPhases[1])
	}
	defer f.Close()
	return s.loadParsedFile(ctx, f, flags, false)
}

// LoadBytes loads a composition file held in memory.
func (s *Session) LoadBytes(ctx context.Context, data []byte, flags LoadFlags) error {
	f, err := NewBytes(data, &Options{})
	if err != nil {
		return errors.Wrapf(err, "load phase 1 (%s)", loadPhases[1])
	}
	return s.loadParsedFile(ctx, f, flags, false)
}

// LoadParsedFile runs the pipeline over an already opened File, skipping
// the header phases when the caller parsed it beforehand.
func (s *Session) LoadParsedFile(ctx context.Context, f *File, flags LoadFlags) error {
	return s.loadParsedFile(ctx, f, flags, f.dataSection != nil)
}

func phaseErr(phase int, err error) error {
	return errors.Wrapf(err, "load phase %d (%s)", phase, loadPhases[phase])
}

func checkCancel(ctx context.Context, phase int) error {
	if ctx == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "cancelled before load phase %d (%s)", phase, loadPhases[phase])
	}
	return nil
}

func (s *Session) loadParsedFile(ctx context.Context, f *File, flags LoadFlags, parsed bool) error {
	// Phases 2..4: header, Header1 decompression, Header1 tables.
	if !parsed {
		if err := checkCancel(ctx, 2); err != nil {
			return err
		}
		if err := f.parse(s.arena); err != nil {
			return phaseErr(2, err)
		}
	}

	// Phase 5: session bookkeeping for this load.
	if err := checkCancel(ctx, 5); err != nil {
		return err
	}
	st := &loadState{
		file:    f,
		flags:   flags,
		staging: NewRepository(s.ctx.classes),
		remap:   NewIDRemap(),
	}
	s.maxSavedID = ID(f.Header.MaxIDSaved)
	s.pluginDeps = f.PluginDeps
	s.includedFiles = f.IncludedFiles
	s.hookDiags = s.hookDiags[:0]

	// Phase 6: classify plugin dependencies against the host registry.
	if err := checkCancel(ctx, 6); err != nil {
		return err
	}
	s.diags = checkPluginDeps(f.PluginDeps, s.ctx.plugins)
	strict := s.ctx.opts.StrictPlugins || flags&LoadCheckDependencies != 0
	for _, d := range s.diags {
		if d.Status == PluginStatusOK {
			continue
		}
		s.logger.Warnf("plugin dependency %s version %d: %s",
			d.RequiredGUID, d.RequiredVersion, d.Status)
		if strict {
			return phaseErr(6, errKind(KindNotFound,
				"plugin %s required at version %d is %s",
				d.RequiredGUID, d.RequiredVersion, d.Status))
		}
	}

	// Phase 7: manager pre-load hooks, in registration order.
	if err := checkCancel(ctx, 7); err != nil {
		return err
	}
	for _, m := range s.ctx.managers {
		if err := m.PreLoad(s); err != nil {
			if m.Fatal() {
				return phaseErr(7, err)
			}
			s.recordHookFailure(m, "pre_load", err)
		}
	}

	// Phase 8: decompress the data section.
	if err := checkCancel(ctx, 8); err != nil {
		return err
	}
	data, err := f.DataSection()
	if err != nil {
		return phaseErr(8, err)
	}
	st.data = data

	// Phase 9: manager chunks lead the data section.
	if err := checkCancel(ctx, 9); err != nil {
		return err
	}
	pos := 0
	for i := uint32(0); i < f.Header.ManagerCount; i++ {
		mc, used, err := parseChunk(data[pos:])
		if err != nil {
			return phaseErr(9, err)
		}
		pos += used
		if err := mc.Unpack(); err != nil {
			return phaseErr(9, err)
		}
		if err := s.dispatchManagerChunk(mc); err != nil {
			return phaseErr(9, err)
		}
	}

	// Phase 10: create shells and register their file indices.
	if err := checkCancel(ctx, 10); err != nil {
		return err
	}
	kept := make([]ObjectDescriptor, 0, len(f.Descriptors))
	for _, d := range f.Descriptors {
		if flags&LoadOnlyBehaviors != 0 &&
			!s.ctx.classes.IsDerivedFrom(d.ClassID, ClassBehavior) {
			continue
		}
		if flags&LoadCheckDuplicates != 0 && d.Name != "" {
			if dup := s.repo.FindByName(d.Name, ClassInvalid); dup != nil {
				return phaseErr(10, errKind(KindInvalidState,
					"object name %q already present in the repository", d.Name))
			}
		}
		o := NewObject(d.ClassID, d.Name, s.arena)
		o.ID = s.repo.ReserveID()
		o.FileIndex = d.FileIndex
		if flags&LoadAsDynamicObject != 0 {
			o.Flags |= ObjectFlagDynamic
		}
		if d.FileIndex.IsReference() {
			o.Flags |= ObjectFlagReference
		}
		if err := st.staging.Add(o); err != nil {
			return phaseErr(10, err)
		}
		st.objects = append(st.objects, o)
		st.remap.Record(d.FileIndex&^IDReferenceBit, o.ID)
		kept = append(kept, d)
	}

	// Phase 11: split the data section into per-object chunks.
	if err := checkCancel(ctx, 11); err != nil {
		return err
	}
	for i, d := range kept {
		off, size := int(d.ChunkOffset), int(d.ChunkSize)
		if off+size > len(data) {
			return phaseErr(11, errKind(KindOutOfBounds,
				"chunk of object %d spans [%d, %d) outside data section of %d DWORDs",
				d.FileIndex, off, off+size, len(data)))
		}
		chunk, used, err := parseChunk(data[off : off+size])
		if err != nil {
			return phaseErr(11, err)
		}
		if used != size {
			return phaseErr(11, errKind(KindInvalidFormat,
				"chunk of object %d decodes to %d DWORDs, descriptor declares %d",
				d.FileIndex, used, size))
		}
		if err := chunk.Unpack(); err != nil {
			return phaseErr(11, err)
		}
		st.objects[i].Chunk = chunk
	}

	// Phase 12 built the remap incrementally in phase 10; phase 13 applies
	// it to every chunk, sub-chunks included.
	if err := checkCancel(ctx, 13); err != nil {
		return err
	}
	for _, o := range st.objects {
		if err := o.Chunk.RemapObjectIDs(st.remap.FileToRuntime()); err != nil {
			return phaseErr(13, err)
		}
	}

	// Phase 14: deserialize in class-hierarchy topological order so
	// inherited fallbacks resolve parents before children.
	if err := checkCancel(ctx, 14); err != nil {
		return err
	}
	order := make([]*Object, len(st.objects))
	copy(order, st.objects)
	sort.SliceStable(order, func(i, j int) bool {
		return s.ctx.classes.DerivationLevel(order[i].ClassID) <
			s.ctx.classes.DerivationLevel(order[j].ClassID)
	})
	for _, o := range order {
		if err := DeserializeObject(o, s.ctx.classes, s.arena); err != nil {
			return phaseErr(14, errors.Wrapf(err, "object %d (%s)", o.FileIndex, o.Name))
		}
		if flags&LoadValidate != 0 {
			if d := s.ctx.classes.FindByClassIDInherited(o.ClassID); d != nil && d.Validate != nil {
				if err := d.Validate(o.State); err != nil {
					return phaseErr(14, errors.Wrapf(err, "object %d (%s)", o.FileIndex, o.Name))
				}
			}
		}
		if s.ctx.opts.DropRawChunks {
			o.Chunk = nil
		}
	}

	// Phase 15: resolve cross references, then manager post-load hooks. A
	// half-resolved graph is never committed.
	if err := checkCancel(ctx, 15); err != nil {
		return err
	}
	for _, o := range order {
		if err := FinishLoadingObject(o, s.ctx.classes, s.arena, st.staging); err != nil {
			if flags&LoadOnlyBehaviors != 0 && KindOf(err) == KindNotFound {
				s.logger.Warnf("skipping unresolved reference: %v", err)
				continue
			}
			return phaseErr(15, errors.Wrapf(err, "object %d (%s)", o.FileIndex, o.Name))
		}
	}
	for _, m := range s.ctx.managers {
		if err := m.PostLoad(s); err != nil {
			if m.Fatal() {
				return phaseErr(15, err)
			}
			s.recordHookFailure(m, "post_load", err)
		}
	}

	// Commit: the pipeline succeeded, move the staged objects into the
	// session repository.
	if flags&LoadSkipIndexBuild != 0 {
		s.repo.SetIndex(nil)
	}
	for _, o := range st.objects {
		if err := s.repo.Add(o); err != nil {
			return phaseErr(15, err)
		}
	}
	s.remap = st.remap
	return nil
}

// dispatchManagerChunk routes a manager chunk to the registered manager
// carrying its GUID. Unknown managers are skipped with a debug note; their
// data is unreachable without the owning plugin anyway.
func (s *Session) dispatchManagerChunk(mc *Chunk) error {
	mc.StartRead()
	guid, err := mc.ReadGUID()
	if err != nil {
		return err
	}
	mc.StartRead()
	for _, m := range s.ctx.managers {
		if m.GUID() == guid {
			if err := m.LoadData(mc, s); err != nil {
				if m.Fatal() {
					return err
				}
				s.recordHookFailure(m, "load_data", err)
			}
			return nil
		}
	}
	s.logger.Debugf("no manager registered for chunk %s", guid)
	return nil
}

func (s *Session) recordHookFailure(m Manager, hook string, err error) {
	s.logger.Warnf("manager %s %s hook failed: %v", m.Name(), hook, err)
	s.hookDiags = append(s.hookDiags, HookDiagnostic{
		Manager: m.Name(),
		Hook:    hook,
		Err:     err.Error(),
	})
}
