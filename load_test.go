// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// saveWithDeps produces a file image declaring three plugin dependencies.
func saveWithDeps(t *testing.T, ctx *Context) []byte {
	t.Helper()
	s := NewSession(ctx)
	defer s.Close()
	s.pluginDeps = []PluginDep{
		{Category: 1, Plugins: []PluginGUIDVersion{
			{GUID: NewGUID(0xAA, 0x01), Version: 3},
			{GUID: NewGUID(0xBB, 0x02), Version: 5},
			{GUID: NewGUID(0xCC, 0x03), Version: 1},
		}},
	}
	out, err := s.SaveBytes(context.Background(), SaveDefault)
	if err != nil {
		t.Fatalf("SaveBytes failed, reason: %v", err)
	}
	return out
}

func TestPluginDependencyDiagnostics(t *testing.T) {
	ctx := newTestContext(t)
	ctx.Plugins().Register(PluginInfo{GUID: NewGUID(0xAA, 0x01), Version: 4, Name: "physics"})
	ctx.Plugins().Register(PluginInfo{GUID: NewGUID(0xBB, 0x02), Version: 2, Name: "particles"})
	out := saveWithDeps(t, ctx)

	s := NewSession(ctx)
	defer s.Close()
	if err := s.LoadBytes(context.Background(), out, 0); err != nil {
		t.Fatalf("missing plugins must not be fatal outside strict mode, got %v", err)
	}
	diags := s.GetPluginDiagnostics()
	if len(diags) != 3 {
		t.Fatalf("diagnostic count assertion failed, got %v", len(diags))
	}
	want := map[CKGUID]PluginStatus{
		NewGUID(0xAA, 0x01): PluginStatusOK,
		NewGUID(0xBB, 0x02): PluginStatusVersionTooOld,
		NewGUID(0xCC, 0x03): PluginStatusMissing,
	}
	for _, d := range diags {
		if d.Status != want[d.RequiredGUID] {
			t.Errorf("status of %s assertion failed, got %v, want %v",
				d.RequiredGUID, d.Status, want[d.RequiredGUID])
		}
	}
	if diags[0].ResolvedName != "physics" || diags[0].ResolvedVersion != 4 {
		t.Errorf("resolution assertion failed, got %+v", diags[0])
	}
}

func TestStrictModeFailsOnMissingPlugin(t *testing.T) {
	ctx := newTestContext(t)
	out := saveWithDeps(t, ctx)

	s := NewSession(ctx)
	defer s.Close()
	err := s.LoadBytes(context.Background(), out, LoadCheckDependencies)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected NotFound in strict mode, got %v", err)
	}
	if !strings.Contains(err.Error(), "phase 6") {
		t.Errorf("error does not name the failing phase: %v", err)
	}
}

func TestLoadFailureLeavesRepositoryUntouched(t *testing.T) {
	ctx := newTestContext(t)
	s := NewSession(ctx)
	defer s.Close()
	keep := NewObject(ClassObject, "keep", s.Arena())
	kc := NewChunk(ClassObject)
	kc.StartWrite()
	kc.CloseChunk()
	keep.Chunk = kc
	if err := s.GetObjectRepository().Add(keep); err != nil {
		t.Fatalf("Add failed, reason: %v", err)
	}

	// A syntactically valid file whose chunk region is truncated.
	donor := NewSession(ctx)
	defer donor.Close()
	o := NewObject(ClassObject, "bomb", donor.Arena())
	oc := NewChunk(ClassObject)
	oc.StartWrite()
	_ = oc.WriteDword(1)
	oc.CloseChunk()
	o.Chunk = oc
	_ = donor.GetObjectRepository().Add(o)
	out, err := donor.SaveBytes(context.Background(), SaveDefault)
	if err != nil {
		t.Fatalf("SaveBytes failed, reason: %v", err)
	}
	out = out[:len(out)-4] // truncate the data section

	if err := s.LoadBytes(context.Background(), out, 0); err == nil {
		t.Fatal("expected the truncated file to fail")
	}
	repo := s.GetObjectRepository()
	if repo.Count() != 1 || repo.FindByName("keep", ClassInvalid) == nil {
		t.Errorf("repository mutated by failed load, count %v", repo.Count())
	}
}

func TestLoadCancellation(t *testing.T) {
	ctx := newTestContext(t)
	donor := NewSession(ctx)
	defer donor.Close()
	out, err := donor.SaveBytes(context.Background(), SaveDefault)
	if err != nil {
		t.Fatalf("SaveBytes failed, reason: %v", err)
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewSession(ctx)
	defer s.Close()
	err = s.LoadBytes(cancelled, out, 0)
	if err == nil || !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLoadPhaseAnnotation(t *testing.T) {
	ctx := newTestContext(t)

	// Valid header, Header1 CRC corrupted.
	s := NewSession(ctx)
	defer s.Close()
	donor := NewSession(ctx)
	defer donor.Close()
	out, err := donor.SaveBytes(context.Background(), SaveDefault)
	if err != nil {
		t.Fatalf("SaveBytes failed, reason: %v", err)
	}
	out[SignatureSize+6*4] ^= 0xFF // hdr1_crc field
	err = s.LoadBytes(context.Background(), out, 0)
	if !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected InvalidFormat for CRC mismatch, got %v", err)
	}
	if !strings.Contains(err.Error(), "phase 2") {
		t.Errorf("error does not name the failing phase: %v", err)
	}
}

type failingManager struct {
	BaseManager
	fatal bool
}

func (m *failingManager) Fatal() bool { return m.fatal }

func (m *failingManager) PreLoad(s *Session) error {
	return errKind(KindInvalidState, "manager broke")
}

func TestManagerHookFailurePolicy(t *testing.T) {
	build := func(fatal bool) (*Context, []byte) {
		ctx, err := NewContext(&Options{})
		if err != nil {
			t.Fatalf("NewContext failed, reason: %v", err)
		}
		t.Cleanup(ctx.Release)
		donor := NewSession(ctx)
		defer donor.Close()
		out, err := donor.SaveBytes(context.Background(), SaveDefault)
		if err != nil {
			t.Fatalf("SaveBytes failed, reason: %v", err)
		}
		ctx.RegisterManager(&failingManager{
			BaseManager: BaseManager{ManagerGUID: NewGUID(9, 9), ManagerName: "flaky"},
			fatal:       fatal,
		})
		return ctx, out
	}

	ctx, out := build(false)
	s := NewSession(ctx)
	defer s.Close()
	if err := s.LoadBytes(context.Background(), out, 0); err != nil {
		t.Fatalf("non-fatal hook failure aborted the pipeline: %v", err)
	}
	hooks := s.GetHookDiagnostics()
	if len(hooks) != 1 || hooks[0].Manager != "flaky" || hooks[0].Hook != "pre_load" {
		t.Errorf("hook diagnostic assertion failed, got %+v", hooks)
	}

	ctx2, out2 := build(true)
	s2 := NewSession(ctx2)
	defer s2.Close()
	if err := s2.LoadBytes(context.Background(), out2, 0); err == nil {
		t.Error("fatal hook failure did not abort the pipeline")
	}
}

func TestLoadCheckDuplicates(t *testing.T) {
	ctx := newTestContext(t)
	donor := NewSession(ctx)
	defer donor.Close()
	o := NewObject(ClassObject, "twin", donor.Arena())
	oc := NewChunk(ClassObject)
	oc.StartWrite()
	oc.CloseChunk()
	o.Chunk = oc
	_ = donor.GetObjectRepository().Add(o)
	out, err := donor.SaveBytes(context.Background(), SaveDefault)
	if err != nil {
		t.Fatalf("SaveBytes failed, reason: %v", err)
	}

	s := NewSession(ctx)
	defer s.Close()
	if err := s.LoadBytes(context.Background(), out, 0); err != nil {
		t.Fatalf("first load failed, reason: %v", err)
	}
	err = s.LoadBytes(context.Background(), out, LoadCheckDuplicates)
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected InvalidState for duplicate name, got %v", err)
	}
}
