// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

// objectStater is implemented by every class state through embedding of
// ObjectState, giving codecs and pipelines access to the root block.
type objectStater interface {
	objectState() *ObjectState
}

// objectStateOf extracts the root state block, or nil for foreign states.
func objectStateOf(st State) *ObjectState {
	if s, ok := st.(objectStater); ok {
		return s.objectState()
	}
	return nil
}

// readParent delegates to the codec of the parent class discovered through
// the registry, so ancestor blocks always decode before the class's own.
func readParent(reg *ClassRegistry, classID ClassID, c *Chunk, a *Arena, st State) error {
	d := reg.FindByClassID(classID)
	if d == nil {
		return nil
	}
	if p := reg.FindByClassIDInherited(d.ParentID); p != nil {
		return p.Read(c, a, st)
	}
	return nil
}

// writeParent mirrors readParent on the encoding side.
func writeParent(reg *ClassRegistry, classID ClassID, st State, c *Chunk, a *Arena) error {
	d := reg.FindByClassID(classID)
	if d == nil {
		return nil
	}
	if p := reg.FindByClassIDInherited(d.ParentID); p != nil {
		return p.Write(st, c, a)
	}
	return nil
}

// finishParent delegates post-load resolution to the parent codec.
func finishParent(reg *ClassRegistry, classID ClassID, st State, a *Arena, repo *Repository) error {
	d := reg.FindByClassID(classID)
	if d == nil {
		return nil
	}
	if p := reg.FindByClassIDInherited(d.ParentID); p != nil && p.FinishLoading != nil {
		return p.FinishLoading(st, a, repo)
	}
	return nil
}

// DeserializeObject decodes the object's chunk into a fresh per-class
// state through the schema registry, capturing any unknown trailing DWORDs
// as the raw tail.
func DeserializeObject(o *Object, reg *ClassRegistry, a *Arena) error {
	if o.Chunk == nil {
		return errKind(KindInvalidArgument, "object %d has no chunk attached", o.ID)
	}
	d := reg.FindByClassIDInherited(o.ClassID)
	if d == nil {
		return errKind(KindNotFound, "no codec registered for class %d", o.ClassID)
	}
	c := o.Chunk
	if err := c.Unpack(); err != nil {
		return err
	}
	c.StartRead()
	st := d.NewState()
	if err := d.Read(c, a, st); err != nil {
		return err
	}
	if os := objectStateOf(st); os != nil {
		tail, err := c.ReadRemainder()
		if err != nil {
			return err
		}
		os.RawTail = tail
		os.OwnerID = o.ID
		if os.Hidden {
			o.Flags |= ObjectFlagHidden
		}
		o.Flags |= ObjectFlags(os.ObjFlags) & ObjectFlagHierarchicalHide
	}
	o.State = st
	return nil
}

// SerializeObject encodes the object's state into a fresh chunk through
// the schema registry, re-emitting the preserved raw tail verbatim.
func SerializeObject(o *Object, reg *ClassRegistry, a *Arena) (*Chunk, error) {
	if o.State == nil {
		// Objects that were never decoded round-trip their original chunk.
		if o.Chunk != nil {
			return o.Chunk, nil
		}
		return nil, errKind(KindInvalidArgument, "object %d has neither state nor chunk", o.ID)
	}
	d := reg.FindByClassIDInherited(o.ClassID)
	if d == nil {
		return nil, errKind(KindNotFound, "no codec registered for class %d", o.ClassID)
	}
	c := NewChunk(o.ClassID)
	c.DataVersion = classDataVersion
	c.StartWrite()
	if os := objectStateOf(o.State); os != nil {
		os.Hidden = o.Hidden()
	}
	if err := d.Write(o.State, c, a); err != nil {
		return nil, wrapKind(KindChunkWriteFailed, err, "class %d serializer", o.ClassID)
	}
	if os := objectStateOf(o.State); os != nil {
		if err := c.WriteRemainder(os.RawTail); err != nil {
			return nil, err
		}
	}
	c.CloseChunk()
	return c, nil
}

// FinishLoadingObject resolves the object's recorded references against the
// repository once the whole graph is materialized and remapped.
func FinishLoadingObject(o *Object, reg *ClassRegistry, a *Arena, repo *Repository) error {
	if o.State == nil {
		return nil
	}
	d := reg.FindByClassIDInherited(o.ClassID)
	if d == nil || d.FinishLoading == nil {
		return nil
	}
	return d.FinishLoading(o.State, a, repo)
}

// classDataVersion is the payload revision stamped by the built-in codecs.
const classDataVersion = 7

// Hierarchy placeholders: classes that exist in the tree but serialize
// entirely through an ancestor codec.
func init() {
	placeholders := []struct {
		name   string
		id     ClassID
		parent ClassID
	}{
		{"CKParameterIn", ClassParameterIn, ClassObject},
		{"CKParameterOperation", ClassParameterOperation, ClassObject},
		{"CKState", ClassState, ClassObject},
		{"CKBehaviorLink", ClassBehaviorLink, ClassObject},
		{"CKBehaviorIO", ClassBehaviorIO, ClassObject},
		{"CKScene", ClassScene, ClassBeObject},
		{"CKLevel", ClassLevel, ClassBeObject},
		{"CKPlace", ClassPlace, Class3dEntity},
		{"CKCharacter", ClassCharacter, Class3dEntity},
		{"CK3dObject", Class3dObject, Class3dEntity},
		{"CKRenderObject", ClassRenderObject, ClassBeObject},
	}
	for _, p := range placeholders {
		Classes.mustRegister(&ClassDescriptor{
			Name:     p.name,
			ClassID:  p.id,
			ParentID: p.parent,
		})
	}
}
