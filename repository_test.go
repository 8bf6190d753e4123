// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

import (
	"errors"
	"testing"
)

func TestRepositoryAddRemove(t *testing.T) {
	repo := NewRepository(nil)
	o := NewObject(ClassMesh, "floor", nil)
	if err := repo.Add(o); err != nil {
		t.Fatalf("Add failed, reason: %v", err)
	}
	if o.ID == IDNone {
		t.Fatal("fresh ID not allocated")
	}
	if got := repo.FindByID(o.ID); got != o {
		t.Errorf("FindByID after add assertion failed, got %v", got)
	}
	if err := repo.Remove(o.ID); err != nil {
		t.Fatalf("Remove failed, reason: %v", err)
	}
	if got := repo.FindByID(o.ID); got != nil {
		t.Errorf("FindByID after remove assertion failed, got %v", got)
	}
	if err := repo.Remove(o.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected NotFound on double remove, got %v", err)
	}
}

func TestRepositoryDuplicateID(t *testing.T) {
	repo := NewRepository(nil)
	a := NewObject(ClassMesh, "a", nil)
	a.ID = 5
	if err := repo.Add(a); err != nil {
		t.Fatalf("Add failed, reason: %v", err)
	}
	b := NewObject(ClassMesh, "b", nil)
	b.ID = 5
	if err := repo.Add(b); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected InvalidState on duplicate ID, got %v", err)
	}

	// The allocator skips past explicitly used IDs.
	c := NewObject(ClassMesh, "c", nil)
	if err := repo.Add(c); err != nil {
		t.Fatalf("Add failed, reason: %v", err)
	}
	if c.ID <= 5 {
		t.Errorf("allocator handed out %v, already in use", c.ID)
	}
}

func TestRepositoryFindByNameAndClass(t *testing.T) {
	repo := NewRepository(nil)
	mesh := NewObject(ClassMesh, "Thing", nil)
	cam := NewObject(ClassCamera, "Thing", nil)
	light := NewObject(ClassTargetLight, "Spot", nil)
	for _, o := range []*Object{mesh, cam, light} {
		if err := repo.Add(o); err != nil {
			t.Fatalf("Add failed, reason: %v", err)
		}
	}

	if got := repo.FindByName("Thing", ClassCamera); got != cam {
		t.Errorf("class filtered name lookup failed, got %v", got)
	}
	if got := repo.FindByName("thing", ClassInvalid); got != nil {
		t.Errorf("exact lookup should be case sensitive, got %v", got)
	}
	if got := repo.FindByNameFold("THING", ClassMesh); got != mesh {
		t.Errorf("case folded lookup failed, got %v", got)
	}

	// Derived lookup: a target light is a light.
	lights := repo.FindByClass(ClassLight, true)
	if len(lights) != 1 || lights[0] != light {
		t.Errorf("derived class lookup assertion failed, got %v", lights)
	}
	if got := repo.FindByClass(ClassLight, false); len(got) != 0 {
		t.Errorf("exact class lookup assertion failed, got %v", got)
	}
}

func TestRepositoryIndexMaintenance(t *testing.T) {
	repo := NewRepository(nil)
	idx := NewObjectIndex(IndexName|IndexNameFold|IndexClass, Classes)
	repo.SetIndex(idx)

	o := NewObject(ClassTexture, "Wall", nil)
	if err := repo.Add(o); err != nil {
		t.Fatalf("Add failed, reason: %v", err)
	}
	if got := idx.ByName("Wall"); len(got) != 1 || got[0] != o {
		t.Errorf("name index assertion failed, got %v", got)
	}
	if got := idx.ByNameFold("wall"); len(got) != 1 {
		t.Errorf("folded index assertion failed, got %v", got)
	}
	if got := idx.ByClass(ClassTexture); len(got) != 1 {
		t.Errorf("class index assertion failed, got %v", got)
	}

	if err := repo.Remove(o.ID); err != nil {
		t.Fatalf("Remove failed, reason: %v", err)
	}
	if got := idx.ByName("Wall"); len(got) != 0 {
		t.Errorf("name index not maintained on remove, got %v", got)
	}
	if got := idx.ByClass(ClassTexture); len(got) != 0 {
		t.Errorf("class index not maintained on remove, got %v", got)
	}
}

func TestRepositoryIndexRebuildOnAttach(t *testing.T) {
	repo := NewRepository(nil)
	o := NewObject(ClassMesh, "late", nil)
	if err := repo.Add(o); err != nil {
		t.Fatalf("Add failed, reason: %v", err)
	}
	idx := NewObjectIndex(IndexName, Classes)
	repo.SetIndex(idx)
	if got := idx.ByName("late"); len(got) != 1 {
		t.Errorf("index rebuild on attach failed, got %v", got)
	}
}

func TestRepositoryClearKeepsAllocatorMonotone(t *testing.T) {
	repo := NewRepository(nil)
	o := NewObject(ClassMesh, "", nil)
	_ = repo.Add(o)
	first := o.ID
	repo.Clear()
	if repo.Count() != 0 {
		t.Fatalf("count after clear assertion failed, got %v", repo.Count())
	}
	p := NewObject(ClassMesh, "", nil)
	_ = repo.Add(p)
	if p.ID <= first {
		t.Errorf("allocator went backwards after clear, got %v after %v", p.ID, first)
	}
}
