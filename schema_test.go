// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

import (
	"errors"
	"testing"
)

func TestRegistryHierarchyQueries(t *testing.T) {

	tests := []struct {
		child  ClassID
		parent ClassID
		want   bool
	}{
		{ClassObject, ClassObject, true},
		{ClassMesh, ClassMesh, true},
		{ClassMesh, ClassBeObject, true},
		{ClassMesh, ClassObject, true},
		{ClassTargetCamera, Class3dEntity, true},
		{ClassTargetLight, ClassLight, true},
		{ClassBeObject, ClassMesh, false},
		{ClassCamera, ClassLight, false},
	}

	for _, tt := range tests {
		if got := Classes.IsDerivedFrom(tt.child, tt.parent); got != tt.want {
			t.Errorf("IsDerivedFrom(%d, %d) assertion failed, got %v, want %v",
				tt.child, tt.parent, got, tt.want)
		}
	}
}

func TestRegistryDerivationLevelOrdering(t *testing.T) {
	pairs := [][2]ClassID{
		{ClassSceneObject, ClassObject},
		{ClassBeObject, ClassSceneObject},
		{ClassMesh, ClassBeObject},
		{ClassTargetCamera, ClassCamera},
		{ClassCamera, Class3dEntity},
	}
	for _, p := range pairs {
		child, parent := Classes.DerivationLevel(p[0]), Classes.DerivationLevel(p[1])
		if child <= parent {
			t.Errorf("derivation level of %d (%d) not deeper than %d (%d)",
				p[0], child, p[1], parent)
		}
	}
	if got := Classes.DerivationLevel(ClassObject); got != 0 {
		t.Errorf("root derivation level assertion failed, got %v", got)
	}
}

func TestRegistryCommonAncestor(t *testing.T) {

	tests := []struct {
		a, b ClassID
		want ClassID
	}{
		{ClassCamera, ClassLight, Class3dEntity},
		{ClassMesh, ClassTexture, ClassBeObject},
		{ClassCamera, ClassCamera, ClassCamera},
		{ClassTargetCamera, ClassCamera, ClassCamera},
		{ClassParameter, ClassMesh, ClassObject},
	}

	for _, tt := range tests {
		if got := Classes.CommonAncestor(tt.a, tt.b); got != tt.want {
			t.Errorf("CommonAncestor(%d, %d) assertion failed, got %v, want %v",
				tt.a, tt.b, got, tt.want)
		}
	}
}

func TestRegistryInheritedLookup(t *testing.T) {

	// CK3dObject is a hierarchy placeholder: its codec comes from
	// CK3dEntity.
	d := Classes.FindByClassIDInherited(Class3dObject)
	if d == nil || d.ClassID != Class3dEntity {
		t.Fatalf("inherited lookup assertion failed, got %v", d)
	}
	if got := Classes.FindByClassID(Class3dObject); got == nil || got.Name != "CK3dObject" {
		t.Errorf("exact lookup assertion failed, got %v", got)
	}
	if got := Classes.FindByName("CKMesh"); got == nil || got.ClassID != ClassMesh {
		t.Errorf("name lookup assertion failed, got %v", got)
	}
}

func TestRegistryFindByGUID(t *testing.T) {
	mesh := Classes.FindByClassID(ClassMesh)
	if mesh.GUID.IsZero() {
		t.Fatal("CKMesh carries no type GUID")
	}
	if got := Classes.FindByGUID(mesh.GUID); got != mesh {
		t.Errorf("GUID lookup assertion failed, got %v", got)
	}
	if got := Classes.FindByGUID(NewGUID(0xDEAD, 0xBEEF)); got != nil {
		t.Errorf("unknown GUID lookup assertion failed, got %v", got)
	}
}

func TestObjectIndexByGUID(t *testing.T) {
	repo := NewRepository(nil)
	repo.SetIndex(NewObjectIndex(IndexGUID, Classes))
	o := NewObject(ClassMesh, "m", nil)
	if err := repo.Add(o); err != nil {
		t.Fatalf("Add failed, reason: %v", err)
	}
	g := Classes.FindByClassID(ClassMesh).GUID
	if got := repo.Index().ByGUID(g); len(got) != 1 || got[0] != o {
		t.Errorf("GUID index assertion failed, got %v", got)
	}
}

func TestRegistryUsesBeObjectDeserializer(t *testing.T) {
	for _, id := range []ClassID{ClassBeObject, ClassMesh, ClassGroup, ClassTargetCamera} {
		if !Classes.UsesBeObjectDeserializer(id) {
			t.Errorf("UsesBeObjectDeserializer(%d) assertion failed, want true", id)
		}
	}
	for _, id := range []ClassID{ClassObject, ClassParameter, ClassSceneObject} {
		if Classes.UsesBeObjectDeserializer(id) {
			t.Errorf("UsesBeObjectDeserializer(%d) assertion failed, want false", id)
		}
	}
}

func TestRegistryVersionGates(t *testing.T) {
	d := &ClassDescriptor{Name: "X", ClassID: 900, Since: 3, Removed: 7}
	if d.IsCompatible(2) {
		t.Error("version below since accepted")
	}
	if !d.IsCompatible(3) || !d.IsCompatible(6) {
		t.Error("version inside window rejected")
	}
	if d.IsCompatible(7) {
		t.Error("removed version accepted")
	}
	alive := &ClassDescriptor{Name: "Y", ClassID: 901}
	if !alive.IsCompatible(9) {
		t.Error("open ended window rejected")
	}
}

func TestRegistryCheckDetectsCycles(t *testing.T) {
	reg := NewClassRegistry()
	if err := reg.Register(&ClassDescriptor{Name: "CKObject", ClassID: ClassObject, ParentID: ClassInvalid}); err != nil {
		t.Fatalf("Register failed, reason: %v", err)
	}
	if err := reg.Register(&ClassDescriptor{Name: "A", ClassID: 100, ParentID: 101}); err != nil {
		t.Fatalf("Register failed, reason: %v", err)
	}
	if err := reg.Register(&ClassDescriptor{Name: "B", ClassID: 101, ParentID: 100}); err != nil {
		t.Fatalf("Register failed, reason: %v", err)
	}
	if err := reg.Check(); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("expected ValidationFailed for hierarchy cycle, got %v", err)
	}
}

func TestRegistryCheckDetectsStructCycles(t *testing.T) {
	reg := NewClassRegistry()
	_ = reg.Register(&ClassDescriptor{Name: "CKObject", ClassID: ClassObject, ParentID: ClassInvalid})
	_ = reg.Register(&ClassDescriptor{
		Name: "Outer", ClassID: 200, ParentID: ClassObject,
		Fields: []FieldDescriptor{{Name: "inner", Type: "Inner"}},
	})
	_ = reg.Register(&ClassDescriptor{
		Name: "Inner", ClassID: 201, ParentID: ClassObject,
		Fields: []FieldDescriptor{{Name: "outer", Type: "Outer"}},
	})
	if err := reg.Check(); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("expected ValidationFailed for struct cycle, got %v", err)
	}
}

func TestRegistryCheckDetectsBadOffsets(t *testing.T) {
	reg := NewClassRegistry()
	_ = reg.Register(&ClassDescriptor{Name: "CKObject", ClassID: ClassObject, ParentID: ClassInvalid})
	_ = reg.Register(&ClassDescriptor{
		Name: "Bad", ClassID: 300, ParentID: ClassObject, StructSize: 4,
		Fields: []FieldDescriptor{{Name: "f", Type: FieldDword, Offset: 4}},
	})
	if err := reg.Check(); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("expected ValidationFailed for field offset, got %v", err)
	}
}

func TestRegistryConflictsRejected(t *testing.T) {
	reg := NewClassRegistry()
	_ = reg.Register(&ClassDescriptor{Name: "A", ClassID: 1, GUID: NewGUID(1, 1)})
	if err := reg.Register(&ClassDescriptor{Name: "B", ClassID: 1}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected InvalidState for class id conflict, got %v", err)
	}
	if err := reg.Register(&ClassDescriptor{Name: "A", ClassID: 2}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected InvalidState for name conflict, got %v", err)
	}
	if err := reg.Register(&ClassDescriptor{Name: "C", ClassID: 3, GUID: NewGUID(1, 1)}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected InvalidState for GUID conflict, got %v", err)
	}
}

func TestBuiltinRegistryConsistent(t *testing.T) {
	if err := Classes.Check(); err != nil {
		t.Fatalf("built-in registry check failed, reason: %v", err)
	}
}
