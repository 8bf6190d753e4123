// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

import "strings"

// IndexFlags selects which secondary indexes an ObjectIndex maintains.
type IndexFlags uint32

const (
	// IndexName maintains an exact name index.
	IndexName IndexFlags = 1 << iota

	// IndexNameFold maintains a case-folded name index.
	IndexNameFold

	// IndexClass maintains a class-id index.
	IndexClass

	// IndexGUID maintains a type-GUID index resolved through the class
	// registry.
	IndexGUID
)

// ObjectIndex is an optional secondary index attached to a repository. The
// repository notifies it incrementally on add and remove with whatever
// subset of its flags is active.
type ObjectIndex struct {
	flags   IndexFlags
	byName  map[string][]*Object
	byFold  map[string][]*Object
	byClass map[ClassID][]*Object
	byGUID  map[CKGUID][]*Object
	classes *ClassRegistry
}

// NewObjectIndex creates an index maintaining the selected secondary maps.
// The class registry is needed only for the GUID index and may be nil
// otherwise.
func NewObjectIndex(flags IndexFlags, classes *ClassRegistry) *ObjectIndex {
	idx := &ObjectIndex{flags: flags, classes: classes}
	if flags&IndexName != 0 {
		idx.byName = make(map[string][]*Object)
	}
	if flags&IndexNameFold != 0 {
		idx.byFold = make(map[string][]*Object)
	}
	if flags&IndexClass != 0 {
		idx.byClass = make(map[ClassID][]*Object)
	}
	if flags&IndexGUID != 0 {
		idx.byGUID = make(map[CKGUID][]*Object)
	}
	return idx
}

// Flags returns the active flag set.
func (idx *ObjectIndex) Flags() IndexFlags {
	return idx.flags
}

func (idx *ObjectIndex) add(o *Object) {
	if idx.byName != nil && o.Name != "" {
		idx.byName[o.Name] = append(idx.byName[o.Name], o)
	}
	if idx.byFold != nil && o.Name != "" {
		key := strings.ToLower(o.Name)
		idx.byFold[key] = append(idx.byFold[key], o)
	}
	if idx.byClass != nil {
		idx.byClass[o.ClassID] = append(idx.byClass[o.ClassID], o)
	}
	if idx.byGUID != nil && idx.classes != nil {
		if d := idx.classes.FindByClassID(o.ClassID); d != nil && !d.GUID.IsZero() {
			idx.byGUID[d.GUID] = append(idx.byGUID[d.GUID], o)
		}
	}
}

func removeFrom(list []*Object, o *Object) []*Object {
	for i, el := range list {
		if el == o {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func (idx *ObjectIndex) remove(o *Object) {
	if idx.byName != nil && o.Name != "" {
		idx.byName[o.Name] = removeFrom(idx.byName[o.Name], o)
	}
	if idx.byFold != nil && o.Name != "" {
		key := strings.ToLower(o.Name)
		idx.byFold[key] = removeFrom(idx.byFold[key], o)
	}
	if idx.byClass != nil {
		idx.byClass[o.ClassID] = removeFrom(idx.byClass[o.ClassID], o)
	}
	if idx.byGUID != nil && idx.classes != nil {
		if d := idx.classes.FindByClassID(o.ClassID); d != nil && !d.GUID.IsZero() {
			idx.byGUID[d.GUID] = removeFrom(idx.byGUID[d.GUID], o)
		}
	}
}

// ByName returns the exact-name matches.
func (idx *ObjectIndex) ByName(name string) []*Object {
	return idx.byName[name]
}

// ByNameFold returns the case-folded matches.
func (idx *ObjectIndex) ByNameFold(name string) []*Object {
	return idx.byFold[strings.ToLower(name)]
}

// ByClass returns the objects of exactly the given class.
func (idx *ObjectIndex) ByClass(id ClassID) []*Object {
	return idx.byClass[id]
}

// ByGUID returns the objects whose class carries the given type GUID.
func (idx *ObjectIndex) ByGUID(g CKGUID) []*Object {
	return idx.byGUID[g]
}

// Repository owns a set of objects: an insertion-ordered primary ID map,
// an optional secondary index, and a monotone runtime-ID allocator that
// skips zero. Every object is reachable by exactly one primary entry.
type Repository struct {
	byID    map[ID]*Object
	ordered []*Object
	index   *ObjectIndex
	nextID  ID
	classes *ClassRegistry
}

// NewRepository creates an empty repository resolving classes through the
// given registry (nil falls back to the built-in registry).
func NewRepository(classes *ClassRegistry) *Repository {
	if classes == nil {
		classes = Classes
	}
	return &Repository{
		byID:    make(map[ID]*Object),
		nextID:  1,
		classes: classes,
	}
}

// ReserveID hands out the next runtime ID.
func (r *Repository) ReserveID() ID {
	id := r.nextID
	r.nextID++
	return id
}

// Add inserts an object. An object with IDNone gets a fresh runtime ID;
// adding a duplicate ID fails with InvalidState.
func (r *Repository) Add(o *Object) error {
	if o == nil {
		return errKind(KindInvalidArgument, "nil object")
	}
	if o.ID == IDNone {
		o.ID = r.ReserveID()
	} else if o.ID == IDInvalid {
		return errKind(KindInvalidArgument, "invalid object ID")
	}
	if _, dup := r.byID[o.ID]; dup {
		return errKind(KindInvalidState, "duplicate object ID %d", o.ID)
	}
	if o.ID >= r.nextID {
		r.nextID = o.ID + 1
	}
	if o.FileIndex == IDNone {
		o.FileIndex = o.ID
	}
	r.byID[o.ID] = o
	r.ordered = append(r.ordered, o)
	if r.index != nil {
		r.index.add(o)
	}
	return nil
}

// Remove deletes the object with the given ID. Dangling references held by
// other objects are the caller's responsibility; removal never cascades.
func (r *Repository) Remove(id ID) error {
	o, ok := r.byID[id]
	if !ok {
		return errKind(KindNotFound, "object %d not in repository", id)
	}
	delete(r.byID, id)
	r.ordered = removeFrom(r.ordered, o)
	if r.index != nil {
		r.index.remove(o)
	}
	return nil
}

// FindByID returns the object with the given runtime ID, or nil.
func (r *Repository) FindByID(id ID) *Object {
	return r.byID[id]
}

// FindByName returns the first object with the given exact name, optionally
// restricted to a class and its descendants (ClassInvalid matches all).
func (r *Repository) FindByName(name string, classID ClassID) *Object {
	if r.index != nil && r.index.byName != nil {
		for _, o := range r.index.ByName(name) {
			if classID == ClassInvalid || r.classes.IsDerivedFrom(o.ClassID, classID) {
				return o
			}
		}
		return nil
	}
	for _, o := range r.ordered {
		if o.Name != name {
			continue
		}
		if classID == ClassInvalid || r.classes.IsDerivedFrom(o.ClassID, classID) {
			return o
		}
	}
	return nil
}

// FindByNameFold is FindByName with case folding.
func (r *Repository) FindByNameFold(name string, classID ClassID) *Object {
	if r.index != nil && r.index.byFold != nil {
		for _, o := range r.index.ByNameFold(name) {
			if classID == ClassInvalid || r.classes.IsDerivedFrom(o.ClassID, classID) {
				return o
			}
		}
		return nil
	}
	for _, o := range r.ordered {
		if !strings.EqualFold(o.Name, name) {
			continue
		}
		if classID == ClassInvalid || r.classes.IsDerivedFrom(o.ClassID, classID) {
			return o
		}
	}
	return nil
}

// FindByClass returns the objects of the class, including descendants when
// derived is set.
func (r *Repository) FindByClass(classID ClassID, derived bool) []*Object {
	if !derived && r.index != nil && r.index.byClass != nil {
		return append([]*Object(nil), r.index.ByClass(classID)...)
	}
	var out []*Object
	for _, o := range r.ordered {
		if o.ClassID == classID || (derived && r.classes.IsDerivedFrom(o.ClassID, classID)) {
			out = append(out, o)
		}
	}
	return out
}

// GetAll returns all objects in insertion order.
func (r *Repository) GetAll() []*Object {
	return append([]*Object(nil), r.ordered...)
}

// Count returns the number of objects.
func (r *Repository) Count() int {
	return len(r.ordered)
}

// Clear removes every object, keeping the ID allocator monotone so stale
// identifiers never resurrect.
func (r *Repository) Clear() {
	r.byID = make(map[ID]*Object)
	r.ordered = r.ordered[:0]
	if r.index != nil {
		r.index = NewObjectIndex(r.index.flags, r.classes)
	}
}

// SetIndex attaches a secondary index, rebuilding it from the current
// contents. Passing nil detaches.
func (r *Repository) SetIndex(idx *ObjectIndex) {
	r.index = idx
	if idx == nil {
		return
	}
	for _, o := range r.ordered {
		idx.add(o)
	}
}

// Index returns the attached secondary index, or nil.
func (r *Repository) Index() *ObjectIndex {
	return r.index
}
