// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

import "sort"

// Class identifiers of the built-in hierarchy, rooted at ClassObject.
const (
	ClassObject             ClassID = 1
	ClassParameterIn        ClassID = 2
	ClassParameterOut       ClassID = 3
	ClassParameterOperation ClassID = 4
	ClassState              ClassID = 5
	ClassBehaviorLink       ClassID = 6
	ClassBehavior           ClassID = 8
	ClassBehaviorIO         ClassID = 9
	ClassScene              ClassID = 10
	ClassSceneObject        ClassID = 11
	ClassBeObject           ClassID = 19
	ClassLevel              ClassID = 21
	ClassPlace              ClassID = 22
	ClassGroup              ClassID = 23
	ClassMaterial           ClassID = 30
	ClassTexture            ClassID = 31
	ClassMesh               ClassID = 32
	Class3dEntity           ClassID = 33
	ClassLight              ClassID = 34
	ClassTargetLight        ClassID = 35
	ClassCharacter          ClassID = 36
	ClassCamera             ClassID = 37
	ClassTargetCamera       ClassID = 38
	Class3dObject           ClassID = 41
	ClassParameterLocal     ClassID = 45
	ClassParameter          ClassID = 46
	ClassRenderObject       ClassID = 47
	ClassDataArray          ClassID = 52
)

// FieldType names the primitive or struct type of a schema field.
type FieldType string

// Primitive field types. Anything else refers to another descriptor by
// name, forming the struct composition graph the consistency check walks.
const (
	FieldDword  FieldType = "dword"
	FieldInt    FieldType = "int"
	FieldFloat  FieldType = "float"
	FieldString FieldType = "string"
	FieldGUID   FieldType = "guid"
	FieldID     FieldType = "object_id"
	FieldVector FieldType = "vector3"
	FieldMatrix FieldType = "matrix"
	FieldBuffer FieldType = "buffer"
)

// FieldDescriptor describes one serialized field of a class, with the file
// version window in which it exists.
type FieldDescriptor struct {
	Name string

	// Offset is the field's DWORD offset inside the declared struct size.
	Offset uint32

	// Type is a primitive tag or the name of another descriptor.
	Type FieldType

	// Since and Removed gate the field per file version:
	// since <= version < removed.
	Since   uint32
	Removed uint32
}

// ReadFunc decodes class state from a chunk in reading mode.
type ReadFunc func(c *Chunk, a *Arena, st State) error

// WriteFunc encodes class state into a chunk in writing mode.
type WriteFunc func(st State, c *Chunk, a *Arena) error

// FinishFunc resolves cross references after the whole graph is loaded and
// remapped.
type FinishFunc func(st State, a *Arena, repo *Repository) error

// ValidateFunc performs class specific post-decode validation.
type ValidateFunc func(st State) error

// ClassDescriptor is the schema registry entry for one class: identity,
// inheritance link, field metadata and the codec vtable.
type ClassDescriptor struct {
	Name     string
	ClassID  ClassID
	ParentID ClassID
	GUID     CKGUID

	// StructSize is the declared serialized size in DWORDs used to bound
	// field offsets; zero skips the bound check (variable sized classes).
	StructSize uint32

	// Since and Removed gate the class per file version.
	Since   uint32
	Removed uint32

	Fields []FieldDescriptor

	NewState      func() State
	Read          ReadFunc
	Write         WriteFunc
	FinishLoading FinishFunc
	Validate      ValidateFunc
}

// ClassRegistry maps type descriptors by name, class id and GUID, and
// answers inheritance queries. It is read-only after initialization;
// concurrent reads are safe.
type ClassRegistry struct {
	byName  map[string]*ClassDescriptor
	byID    map[ClassID]*ClassDescriptor
	byGUID  map[CKGUID]*ClassDescriptor
	checked bool
}

// NewClassRegistry creates an empty registry.
func NewClassRegistry() *ClassRegistry {
	return &ClassRegistry{
		byName: make(map[string]*ClassDescriptor),
		byID:   make(map[ClassID]*ClassDescriptor),
		byGUID: make(map[CKGUID]*ClassDescriptor),
	}
}

// Register adds a descriptor. Conflicting class-id or GUID mappings fail
// with InvalidState.
func (r *ClassRegistry) Register(d *ClassDescriptor) error {
	if d == nil || d.Name == "" || d.ClassID == ClassInvalid {
		return errKind(KindInvalidArgument, "incomplete class descriptor")
	}
	if _, dup := r.byID[d.ClassID]; dup {
		return errKind(KindInvalidState, "class id %d registered twice", d.ClassID)
	}
	if _, dup := r.byName[d.Name]; dup {
		return errKind(KindInvalidState, "class %q registered twice", d.Name)
	}
	if !d.GUID.IsZero() {
		if _, dup := r.byGUID[d.GUID]; dup {
			return errKind(KindInvalidState, "class GUID %s registered twice", d.GUID)
		}
		r.byGUID[d.GUID] = d
	}
	r.byName[d.Name] = d
	r.byID[d.ClassID] = d
	r.checked = false
	return nil
}

// mustRegister is the init-time variant; registration conflicts in the
// built-in tables are programming errors.
func (r *ClassRegistry) mustRegister(d *ClassDescriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// FindByName returns the descriptor registered under name, or nil.
func (r *ClassRegistry) FindByName(name string) *ClassDescriptor {
	return r.byName[name]
}

// FindByClassID returns the descriptor for exactly the class id, or nil.
func (r *ClassRegistry) FindByClassID(id ClassID) *ClassDescriptor {
	return r.byID[id]
}

// FindByClassIDInherited walks the parent chain until a descriptor with a
// codec is found. Hierarchy placeholders without a Read function delegate
// to their nearest ancestor's codec.
func (r *ClassRegistry) FindByClassIDInherited(id ClassID) *ClassDescriptor {
	for d := r.byID[id]; d != nil; d = r.parentOf(d) {
		if d.Read != nil {
			return d
		}
	}
	return nil
}

// FindByGUID returns the descriptor carrying the type GUID, or nil.
func (r *ClassRegistry) FindByGUID(g CKGUID) *ClassDescriptor {
	return r.byGUID[g]
}

// parentOf returns the parent descriptor, or nil at the root.
func (r *ClassRegistry) parentOf(d *ClassDescriptor) *ClassDescriptor {
	if d == nil || d.ClassID == ClassObject || d.ParentID == ClassInvalid {
		return nil
	}
	return r.byID[d.ParentID]
}

// IsDerivedFrom reports whether child is parent or one of its descendants.
func (r *ClassRegistry) IsDerivedFrom(child, parent ClassID) bool {
	if child == parent {
		return true
	}
	for d := r.byID[child]; d != nil; d = r.parentOf(d) {
		if d.ClassID == parent {
			return true
		}
	}
	return false
}

// DerivationLevel returns the depth of the class under the root; the root
// itself is level zero. Unregistered classes return -1.
func (r *ClassRegistry) DerivationLevel(id ClassID) int {
	d := r.byID[id]
	if d == nil {
		return -1
	}
	level := 0
	for p := r.parentOf(d); p != nil; p = r.parentOf(p) {
		level++
	}
	return level
}

// CommonAncestor returns the deepest class both ids derive from, or
// ClassInvalid when they share no ancestor.
func (r *ClassRegistry) CommonAncestor(a, b ClassID) ClassID {
	for d := r.byID[a]; d != nil; d = r.parentOf(d) {
		if r.IsDerivedFrom(b, d.ClassID) {
			return d.ClassID
		}
	}
	return ClassInvalid
}

// UsesBeObjectDeserializer reports whether the class state begins with the
// CKBeObject block, true for CKBeObject and all its descendants.
func (r *ClassRegistry) UsesBeObjectDeserializer(id ClassID) bool {
	return r.IsDerivedFrom(id, ClassBeObject)
}

// IsCompatible reports whether the descriptor exists at the given file
// version: since <= version < removed (zero removed means still alive).
func (d *ClassDescriptor) IsCompatible(fileVersion uint32) bool {
	if fileVersion < d.Since {
		return false
	}
	return d.Removed == 0 || fileVersion < d.Removed
}

// TopologicalOrder returns all descriptors parents-first, so a class is
// always visited after every ancestor. Siblings keep class-id order for
// deterministic output.
func (r *ClassRegistry) TopologicalOrder() []*ClassDescriptor {
	all := make([]*ClassDescriptor, 0, len(r.byID))
	for _, d := range r.byID {
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool {
		li, lj := r.DerivationLevel(all[i].ClassID), r.DerivationLevel(all[j].ClassID)
		if li != lj {
			return li < lj
		}
		return all[i].ClassID < all[j].ClassID
	})
	return all
}

// Check validates registry consistency before first use: no cycles in the
// class hierarchy or struct composition, resolvable type references, field
// offsets within declared struct bounds.
func (r *ClassRegistry) Check() error {
	// Hierarchy cycles.
	for id, d := range r.byID {
		seen := map[ClassID]bool{id: true}
		for p := r.parentOf(d); p != nil; p = r.parentOf(p) {
			if seen[p.ClassID] {
				return errKind(KindValidationFailed, "class hierarchy cycle through %d", p.ClassID)
			}
			seen[p.ClassID] = true
		}
		if d.ClassID != ClassObject && d.ParentID != ClassInvalid {
			if r.byID[d.ParentID] == nil {
				return errKind(KindValidationFailed,
					"class %q parent %d is not registered", d.Name, d.ParentID)
			}
		}
	}

	// Field references and offsets; struct composition cycles via the
	// type-reference graph.
	primitives := map[FieldType]bool{
		FieldDword: true, FieldInt: true, FieldFloat: true,
		FieldString: true, FieldGUID: true, FieldID: true,
		FieldVector: true, FieldMatrix: true, FieldBuffer: true,
	}
	var visit func(d *ClassDescriptor, stack map[string]bool) error
	visit = func(d *ClassDescriptor, stack map[string]bool) error {
		if stack[d.Name] {
			return errKind(KindValidationFailed, "struct composition cycle through %q", d.Name)
		}
		stack[d.Name] = true
		defer delete(stack, d.Name)
		for _, f := range d.Fields {
			if d.StructSize != 0 && f.Offset >= d.StructSize {
				return errKind(KindValidationFailed,
					"field %s.%s offset %d outside struct size %d",
					d.Name, f.Name, f.Offset, d.StructSize)
			}
			if primitives[f.Type] {
				continue
			}
			ref := r.byName[string(f.Type)]
			if ref == nil {
				return errKind(KindValidationFailed,
					"field %s.%s references unknown type %q", d.Name, f.Name, f.Type)
			}
			if err := visit(ref, stack); err != nil {
				return err
			}
		}
		return nil
	}
	for _, d := range r.byID {
		if err := visit(d, map[string]bool{}); err != nil {
			return err
		}
	}
	r.checked = true
	return nil
}

// Checked reports whether Check has passed since the last registration.
func (r *ClassRegistry) Checked() bool {
	return r.checked
}

// Classes is the built-in registry populated at package init by the class
// codec files.
var Classes = NewClassRegistry()
