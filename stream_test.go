// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestStreamWriterMatchesSave(t *testing.T) {
	ctx := newTestContext(t)
	s := NewSession(ctx)
	defer s.Close()
	buildScene(t, s)

	want, err := s.SaveBytes(context.Background(), SaveDefault)
	if err != nil {
		t.Fatalf("SaveBytes failed, reason: %v", err)
	}

	path := filepath.Join(t.TempDir(), "scene.nmo")
	w, err := NewStreamWriter(path, s, SaveDefault)
	if err != nil {
		t.Fatalf("NewStreamWriter failed, reason: %v", err)
	}
	for _, o := range w.Reserve(s.GetObjectRepository().GetAll()) {
		if err := w.WriteObject(o); err != nil {
			t.Fatalf("WriteObject failed, reason: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed, reason: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed, reason: %v", err)
	}
	if !bytes.Equal(want, got) {
		t.Errorf("streamed bytes differ from SaveBytes, %d vs %d bytes", len(got), len(want))
	}
}

func TestStreamWriterEnforcesOrder(t *testing.T) {
	ctx := newTestContext(t)
	s := NewSession(ctx)
	defer s.Close()
	buildScene(t, s)

	path := filepath.Join(t.TempDir(), "scene.nmo")
	w, err := NewStreamWriter(path, s, SaveDefault)
	if err != nil {
		t.Fatalf("NewStreamWriter failed, reason: %v", err)
	}
	order := w.Reserve(s.GetObjectRepository().GetAll())
	if err := w.WriteObject(order[1]); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected InvalidState for out-of-order write, got %v", err)
	}
	if err := w.Close(); err == nil {
		t.Error("expected Close to fail with unwritten objects")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("aborted writer left the target behind, stat err %v", err)
	}
}

func TestStreamReaderMatchesLoader(t *testing.T) {
	ctx := newTestContext(t)
	s := NewSession(ctx)
	defer s.Close()
	buildScene(t, s)

	path := filepath.Join(t.TempDir(), "scene.nmo")
	if err := s.SaveFile(path, SaveDefault); err != nil {
		t.Fatalf("SaveFile failed, reason: %v", err)
	}

	loader := NewSession(ctx)
	defer loader.Close()
	if err := loader.LoadFile(path, 0); err != nil {
		t.Fatalf("LoadFile failed, reason: %v", err)
	}
	want := loader.GetObjectRepository().GetAll()

	r, err := NewStreamReader(path, Classes)
	if err != nil {
		t.Fatalf("NewStreamReader failed, reason: %v", err)
	}
	defer r.Close()
	if len(r.Descriptors) != len(want) {
		t.Fatalf("descriptor count assertion failed, got %v, want %v",
			len(r.Descriptors), len(want))
	}

	for i := range want {
		arena := NewArena(0)
		o, err := r.ReadNextObject(arena)
		if err != nil {
			t.Fatalf("ReadNextObject(%d) failed, reason: %v", i, err)
		}
		if o.Name != want[i].Name || o.ClassID != want[i].ClassID {
			t.Errorf("object %d assertion failed, got %s/%d, want %s/%d",
				i, o.Name, o.ClassID, want[i].Name, want[i].ClassID)
		}
		if o.State == nil {
			t.Errorf("object %d state not decoded", i)
		}
	}
	if _, err := r.ReadNextObject(nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected NotFound past the last object, got %v", err)
	}
}

func TestStreamReaderCompressed(t *testing.T) {
	ctx := newTestContext(t)
	s := NewSession(ctx)
	defer s.Close()
	buildScene(t, s)

	path := filepath.Join(t.TempDir(), "scene.nmo")
	if err := s.SaveFile(path, SaveCompress); err != nil {
		t.Fatalf("SaveFile failed, reason: %v", err)
	}

	r, err := NewStreamReader(path, Classes)
	if err != nil {
		t.Fatalf("NewStreamReader failed, reason: %v", err)
	}
	defer r.Close()

	count := 0
	arena := NewArena(0)
	for {
		o, err := r.ReadNextObject(arena)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				break
			}
			t.Fatalf("ReadNextObject failed, reason: %v", err)
		}
		if o.State == nil {
			t.Error("state not decoded from compressed stream")
		}
		count++
	}
	if count != 5 {
		t.Errorf("object count assertion failed, got %v", count)
	}
}
