// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

// ObjectFlags carries visibility and reference bits of an object.
type ObjectFlags uint32

const (
	// ObjectFlagVisible marks the object as visible in the scene.
	ObjectFlagVisible ObjectFlags = 0x00000001

	// ObjectFlagHidden marks the object as explicitly hidden.
	ObjectFlagHidden ObjectFlags = 0x00000002

	// ObjectFlagHierarchicalHide hides the object and its whole subtree.
	ObjectFlagHierarchicalHide ObjectFlags = 0x00000004

	// ObjectFlagReference marks a stub standing in for an object saved in
	// another file.
	ObjectFlagReference ObjectFlags = 0x00000008

	// ObjectFlagDynamic marks an object created at run time rather than
	// authored.
	ObjectFlagDynamic ObjectFlags = 0x00000010
)

// State is the per-class decoded payload of an object. Each class codec
// materializes its own state type; ancestors are reachable through struct
// embedding.
type State interface {
	// StateClassID reports the class the state was decoded for.
	StateClassID() ClassID
}

// Object is the in-memory runtime representation of one entity in the
// composition graph. Objects are created by the load pipeline or by the
// user, live as long as their arena, and are never freed individually.
type Object struct {
	// ID is the runtime identifier, unique within one repository.
	ID ID `json:"id"`

	// ClassID tags the object's class.
	ClassID ClassID `json:"class_id"`

	// Name is the optional arena-interned object name.
	Name string `json:"name,omitempty"`

	// Flags carries visibility and reference bits.
	Flags ObjectFlags `json:"flags"`

	// ParentID and ChildrenIDs express the scene hierarchy as identifiers;
	// FinishLoading resolves them against the repository, keeping the
	// ownership graph acyclic.
	ParentID    ID   `json:"parent_id,omitempty"`
	ChildrenIDs []ID `json:"children_ids,omitempty"`

	// Chunk carries the serialized form, kept for byte-exact round trips.
	// It may be dropped after FinishLoading when fidelity is not needed.
	Chunk *Chunk `json:"-"`

	// State is the typed per-class decoded payload.
	State State `json:"-"`

	// FileIndex is the object's index in the source file; defaults to the
	// runtime ID for objects that never came from a file.
	FileIndex ID `json:"file_index"`

	arena *Arena
}

// NewObject creates an object bound to the given arena. The runtime ID is
// assigned when the object enters a repository.
func NewObject(classID ClassID, name string, a *Arena) *Object {
	o := &Object{
		ClassID: classID,
		Flags:   ObjectFlagVisible,
		arena:   a,
	}
	if a != nil {
		o.Name = a.InternString(name)
	} else {
		o.Name = name
	}
	return o
}

// Arena returns the arena the object and its tail allocations belong to.
func (o *Object) Arena() *Arena {
	return o.arena
}

// Hidden reports whether the hidden flag is set.
func (o *Object) Hidden() bool {
	return o.Flags&ObjectFlagHidden != 0
}

// IsReference reports whether the object is a reference stub.
func (o *Object) IsReference() bool {
	return o.Flags&ObjectFlagReference != 0
}
