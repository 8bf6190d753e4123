// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	ctx, err := NewContext(&Options{})
	if err != nil {
		t.Fatalf("NewContext failed, reason: %v", err)
	}
	t.Cleanup(ctx.Release)
	return ctx
}

// Scenario: a file with no managers and no objects reloads empty and
// re-emits byte-identical output.
func TestEmptyFileRoundTrip(t *testing.T) {
	ctx := newTestContext(t)
	s := NewSession(ctx)
	defer s.Close()

	out, err := s.SaveBytes(context.Background(), SaveDefault)
	if err != nil {
		t.Fatalf("SaveBytes failed, reason: %v", err)
	}

	s2 := NewSession(ctx)
	defer s2.Close()
	if err := s2.LoadBytes(context.Background(), out, 0); err != nil {
		t.Fatalf("LoadBytes failed, reason: %v", err)
	}
	if got := s2.GetObjectRepository().Count(); got != 0 {
		t.Fatalf("repository count assertion failed, got %v, want 0", got)
	}

	again, err := s2.SaveBytes(context.Background(), SaveDefault)
	if err != nil {
		t.Fatalf("resave failed, reason: %v", err)
	}
	if !bytes.Equal(out, again) {
		t.Error("resaved empty file is not byte identical")
	}
}

// Scenario: a single object whose chunk carries the hidden marker and one
// int; the reloaded object has the hidden flag set and its chunk still
// parses the int as 42.
func TestSingleObjectHiddenFlag(t *testing.T) {
	ctx := newTestContext(t)
	s := NewSession(ctx)
	defer s.Close()

	o := NewObject(ClassObject, "lonely", s.Arena())
	c := NewChunk(ClassObject)
	c.DataVersion = 7
	c.StartWrite()
	if err := c.WriteIdentifier(objectSaveHidden); err != nil {
		t.Fatalf("WriteIdentifier failed, reason: %v", err)
	}
	if err := c.WriteInt(42); err != nil {
		t.Fatalf("WriteInt failed, reason: %v", err)
	}
	c.CloseChunk()
	o.Chunk = c
	if err := s.GetObjectRepository().Add(o); err != nil {
		t.Fatalf("Add failed, reason: %v", err)
	}

	out, err := s.SaveBytes(context.Background(), SaveDefault)
	if err != nil {
		t.Fatalf("SaveBytes failed, reason: %v", err)
	}

	s2 := NewSession(ctx)
	defer s2.Close()
	if err := s2.LoadBytes(context.Background(), out, 0); err != nil {
		t.Fatalf("LoadBytes failed, reason: %v", err)
	}
	repo := s2.GetObjectRepository()
	if repo.Count() != 1 {
		t.Fatalf("repository count assertion failed, got %v", repo.Count())
	}
	loaded := repo.GetAll()[0]
	if !loaded.Hidden() {
		t.Error("hidden flag assertion failed")
	}
	if loaded.Name != "lonely" {
		t.Errorf("name assertion failed, got %q", loaded.Name)
	}

	loaded.Chunk.StartRead()
	if err := loaded.Chunk.SeekIdentifier(objectSaveHidden); err != nil {
		t.Fatalf("SeekIdentifier failed, reason: %v", err)
	}
	got, err := loaded.Chunk.ReadInt()
	if err != nil {
		t.Fatalf("ReadInt failed, reason: %v", err)
	}
	if got != 42 {
		t.Errorf("int assertion failed, got %v, want 42", got)
	}
}

// Scenario: cross references travel as file indices on disk and as runtime
// IDs in memory.
func TestCrossReferenceRemapping(t *testing.T) {
	ctx := newTestContext(t)
	s := NewSession(ctx)
	defer s.Close()
	repo := s.GetObjectRepository()

	a := NewObject(ClassObject, "A", s.Arena())
	a.ID = 77
	b := NewObject(ClassObject, "B", s.Arena())
	b.ID = 78
	if err := repo.Add(a); err != nil {
		t.Fatalf("Add failed, reason: %v", err)
	}
	if err := repo.Add(b); err != nil {
		t.Fatalf("Add failed, reason: %v", err)
	}

	bc := NewChunk(ClassObject)
	bc.StartWrite()
	bc.CloseChunk()
	b.Chunk = bc

	c := NewChunk(ClassObject)
	c.StartWrite()
	_ = c.WriteIdentifier(objectSaveFlags)
	_ = c.WriteDword(0)
	if err := c.WriteObjectID(b.ID); err != nil {
		t.Fatalf("WriteObjectID failed, reason: %v", err)
	}
	c.CloseChunk()
	a.Chunk = c

	out, err := s.SaveBytes(context.Background(), SaveDefault)
	if err != nil {
		t.Fatalf("SaveBytes failed, reason: %v", err)
	}

	// On disk A's chunk holds B's file index 2, not runtime 78.
	f, err := NewBytes(out, nil)
	if err != nil {
		t.Fatalf("NewBytes failed, reason: %v", err)
	}
	if err := f.Parse(); err != nil {
		t.Fatalf("Parse failed, reason: %v", err)
	}
	data, err := f.DataSection()
	if err != nil {
		t.Fatalf("DataSection failed, reason: %v", err)
	}
	var onDisk *Chunk
	for _, d := range f.Descriptors {
		if d.Name == "A" {
			onDisk, _, err = parseChunk(data[d.ChunkOffset : d.ChunkOffset+d.ChunkSize])
			if err != nil {
				t.Fatalf("parseChunk failed, reason: %v", err)
			}
		}
	}
	if onDisk == nil {
		t.Fatal("descriptor for A not found")
	}
	onDisk.StartRead()
	if err := onDisk.SeekIdentifier(objectSaveFlags); err != nil {
		t.Fatalf("SeekIdentifier failed, reason: %v", err)
	}
	if _, err := onDisk.ReadDword(); err != nil {
		t.Fatalf("ReadDword failed, reason: %v", err)
	}
	id, err := onDisk.ReadObjectID()
	if err != nil {
		t.Fatalf("ReadObjectID failed, reason: %v", err)
	}
	if id != 2 {
		t.Errorf("on-disk reference assertion failed, got %v, want 2", id)
	}

	// After reload the reference is B's new runtime ID.
	s2 := NewSession(ctx)
	defer s2.Close()
	if err := s2.LoadBytes(context.Background(), out, 0); err != nil {
		t.Fatalf("LoadBytes failed, reason: %v", err)
	}
	repo2 := s2.GetObjectRepository()
	loadedA := repo2.FindByName("A", ClassInvalid)
	loadedB := repo2.FindByName("B", ClassInvalid)
	if loadedA == nil || loadedB == nil {
		t.Fatal("loaded objects not found")
	}
	loadedA.Chunk.StartRead()
	_ = loadedA.Chunk.SeekIdentifier(objectSaveFlags)
	_, _ = loadedA.Chunk.ReadDword()
	ref, err := loadedA.Chunk.ReadObjectID()
	if err != nil {
		t.Fatalf("ReadObjectID failed, reason: %v", err)
	}
	if ref != loadedB.ID {
		t.Errorf("runtime reference assertion failed, got %v, want %v", ref, loadedB.ID)
	}
	if ref == 2 && loadedB.ID != 2 {
		t.Error("reference still holds the file index")
	}
}

// buildScene populates a session with a small cross-referenced graph of
// typed objects.
func buildScene(t *testing.T, s *Session) {
	t.Helper()
	repo := s.GetObjectRepository()

	tex := NewObject(ClassTexture, "wall", s.Arena())
	mat := NewObject(ClassMaterial, "brick", s.Arena())
	mesh := NewObject(ClassMesh, "cube", s.Arena())
	ent := NewObject(Class3dEntity, "root", s.Arena())
	grp := NewObject(ClassGroup, "props", s.Arena())
	for _, o := range []*Object{tex, mat, mesh, ent, grp} {
		if err := repo.Add(o); err != nil {
			t.Fatalf("Add failed, reason: %v", err)
		}
	}

	tex.State = &TextureState{
		Width: 4, Height: 4, BitsPerPixel: 32, MipmapCount: 1, SlotCount: 1,
		Pixels: []byte{1, 2, 3, 4, 5, 6, 7, 8},
	}
	mat.State = &MaterialState{
		Diffuse:   Color{1, 0, 0, 1},
		Ambient:   Color{0.2, 0.2, 0.2, 1},
		Power:     8,
		TextureID: tex.ID,
	}
	mesh.State = &MeshState{
		HasFlags2: true,
		MeshFlags: 0x3,
		Vertices: []Vector3{
			{0, 0, 0}, {1, 0, 0}, {0, 1, 0},
		},
		Faces:       []Face{{A: 0, B: 1, C: 2, Material: 0}},
		MaterialIDs: []ID{mat.ID},
	}
	es := &Entity3dState{HasMatrix: true, WorldMatrix: IdentityMatrix()}
	ent.State = es
	grp.State = &GroupState{MemberIDs: []ID{mesh.ID, ent.ID}}
}

// The decoded graph is a fixpoint of save then load: saving the reloaded
// repository reproduces the first save byte for byte.
func TestSaveLoadSaveFixpoint(t *testing.T) {
	ctx := newTestContext(t)
	s := NewSession(ctx)
	defer s.Close()
	buildScene(t, s)

	first, err := s.SaveBytes(context.Background(), SaveDefault)
	if err != nil {
		t.Fatalf("first save failed, reason: %v", err)
	}

	s2 := NewSession(ctx)
	defer s2.Close()
	if err := s2.LoadBytes(context.Background(), first, 0); err != nil {
		t.Fatalf("load failed, reason: %v", err)
	}
	if got := s2.GetObjectRepository().Count(); got != 5 {
		t.Fatalf("repository count assertion failed, got %v", got)
	}

	second, err := s2.SaveBytes(context.Background(), SaveDefault)
	if err != nil {
		t.Fatalf("second save failed, reason: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("save-load-save is not byte stable")
	}
}

// The same graph survives a compressed round trip with all cross
// references intact.
func TestCompressedRoundTripResolvesReferences(t *testing.T) {
	ctx := newTestContext(t)
	s := NewSession(ctx)
	defer s.Close()
	buildScene(t, s)

	out, err := s.SaveBytes(context.Background(), SaveCompress)
	if err != nil {
		t.Fatalf("SaveBytes failed, reason: %v", err)
	}

	s2 := NewSession(ctx)
	defer s2.Close()
	if err := s2.LoadBytes(context.Background(), out, LoadValidate); err != nil {
		t.Fatalf("LoadBytes failed, reason: %v", err)
	}
	repo := s2.GetObjectRepository()

	mat := repo.FindByName("brick", ClassMaterial)
	if mat == nil {
		t.Fatal("material not found")
	}
	ms := mat.State.(*MaterialState)
	if ms.Texture == nil || ms.Texture.Name != "wall" {
		t.Errorf("texture reference assertion failed, got %v", ms.Texture)
	}

	grp := repo.FindByName("props", ClassGroup)
	gs := grp.State.(*GroupState)
	if len(gs.Members) != 2 {
		t.Fatalf("group member assertion failed, got %v", len(gs.Members))
	}
	if gs.CommonClass != ClassBeObject {
		t.Errorf("common class assertion failed, got %v", gs.CommonClass)
	}

	mesh := repo.FindByName("cube", ClassMesh)
	mst := mesh.State.(*MeshState)
	if len(mst.Materials) != 1 || mst.Materials[0] != mat {
		t.Errorf("mesh material reference assertion failed, got %v", mst.Materials)
	}
	if want := (Vector3{1, 0, 0}); mst.Vertices[1] != want {
		t.Errorf("vertex assertion failed, got %v", mst.Vertices[1])
	}
}

// Per-class codecs reproduce the decoded form exactly.
func TestClassStateRoundTrip(t *testing.T) {
	ctx := newTestContext(t)
	s := NewSession(ctx)
	defer s.Close()

	want := &BeObjectState{
		HasDatas: true,
		Priority: -3,
		BeFlags:  0x10,
		Attributes: []AttributeEntry{
			{Type: 0, ParamID: 9},
			{Type: 2, ParamID: 11},
		},
		HasSingleActivity: true,
		InitiallyActive:   1,
		ScriptIDs:         []ID{4, 5},
	}
	o := NewObject(ClassBeObject, "actor", s.Arena())
	o.ID = 1
	o.State = want

	c, err := SerializeObject(o, Classes, s.Arena())
	if err != nil {
		t.Fatalf("SerializeObject failed, reason: %v", err)
	}
	back := NewObject(ClassBeObject, "actor", s.Arena())
	back.ID = 1
	back.Chunk = c.Clone()
	if err := DeserializeObject(back, Classes, s.Arena()); err != nil {
		t.Fatalf("DeserializeObject failed, reason: %v", err)
	}
	got := back.State.(*BeObjectState)

	opts := cmp.Options{
		cmp.Comparer(func(a, b *Object) bool { return a == b }),
	}
	want.OwnerID = 1 // assigned during deserialization
	if diff := cmp.Diff(want, got, opts); diff != "" {
		t.Errorf("state round trip mismatch (-want +got):\n%s", diff)
	}
}

// Unknown trailing data survives decode and re-encode verbatim.
func TestRawTailPreserved(t *testing.T) {
	ctx := newTestContext(t)
	s := NewSession(ctx)
	defer s.Close()

	c := NewChunk(ClassObject)
	c.DataVersion = 7
	c.StartWrite()
	_ = c.WriteIdentifier(objectSaveFlags)
	_ = c.WriteDword(0x5)
	_ = c.WriteDword(0xAAAA) // field from a newer class revision
	_ = c.WriteDword(0xBBBB)
	c.CloseChunk()
	original := append([]uint32(nil), c.buf.data[:c.DataSize()]...)

	o := NewObject(ClassObject, "x", s.Arena())
	o.ID = 1
	o.Chunk = c
	if err := DeserializeObject(o, Classes, s.Arena()); err != nil {
		t.Fatalf("DeserializeObject failed, reason: %v", err)
	}
	st := o.State.(*ObjectState)
	if len(st.RawTail) != 2 {
		t.Fatalf("raw tail assertion failed, got %v", st.RawTail)
	}

	out, err := SerializeObject(o, Classes, s.Arena())
	if err != nil {
		t.Fatalf("SerializeObject failed, reason: %v", err)
	}
	if !cmp.Equal(original, out.buf.data[:out.DataSize()]) {
		t.Errorf("re-encode mismatch, got %v, want %v",
			out.buf.data[:out.DataSize()], original)
	}
}

// Manager chunks round trip through the data section and dispatch to the
// registered manager on load.
func TestAttributeManagerRoundTrip(t *testing.T) {
	ctx, err := NewContext(&Options{})
	if err != nil {
		t.Fatalf("NewContext failed, reason: %v", err)
	}
	defer ctx.Release()
	am := NewAttributeManager()
	am.RegisterType("Physics")
	am.RegisterType("Sound Volume")
	ctx.RegisterManager(am)

	s := NewSession(ctx)
	defer s.Close()
	out, err := s.SaveBytes(context.Background(), SaveDefault)
	if err != nil {
		t.Fatalf("SaveBytes failed, reason: %v", err)
	}

	ctx2, err := NewContext(&Options{})
	if err != nil {
		t.Fatalf("NewContext failed, reason: %v", err)
	}
	defer ctx2.Release()
	am2 := NewAttributeManager()
	ctx2.RegisterManager(am2)
	s2 := NewSession(ctx2)
	defer s2.Close()
	if err := s2.LoadBytes(context.Background(), out, 0); err != nil {
		t.Fatalf("LoadBytes failed, reason: %v", err)
	}
	want := []string{"Physics", "Sound Volume"}
	if diff := cmp.Diff(want, am2.Types); diff != "" {
		t.Errorf("attribute types mismatch (-want +got):\n%s", diff)
	}
}
