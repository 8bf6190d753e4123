// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

// CK3dEntity chunk identifiers.
const (
	entitySaveMatrix   = 0x00000070
	entitySaveParent   = 0x00000071
	entitySaveFlags    = 0x00000072
	entitySaveChildren = 0x00000073
)

// Entity3dState is the spatial block shared by every 3D class: world
// transform and hierarchy links. Hierarchy is expressed as IDs during
// deserialization; FinishLoading resolves them through the repository so
// back-pointers stay non-owning.
type Entity3dState struct {
	BeObjectState

	WorldMatrix Matrix
	HasMatrix   bool

	ParentID ID
	Parent   *Object

	ChildIDs []ID

	EntityFlags uint32
	HasEntFlags bool
}

// StateClassID reports the class the state was decoded for.
func (s *Entity3dState) StateClassID() ClassID {
	return Class3dEntity
}

func (s *Entity3dState) entity3dState() *Entity3dState {
	return s
}

type entity3dStater interface {
	entity3dState() *Entity3dState
}

func readEntity3dState(c *Chunk, a *Arena, st State) error {
	if err := readParent(Classes, Class3dEntity, c, a, st); err != nil {
		return err
	}
	es, ok := st.(entity3dStater)
	if !ok {
		return errKind(KindInvalidArgument, "state does not embed the 3D entity block")
	}
	s := es.entity3dState()

	if err := c.SeekIdentifier(entitySaveMatrix); err == nil {
		m, err := c.ReadMatrix()
		if err != nil {
			return err
		}
		s.WorldMatrix = m
		s.HasMatrix = true
	} else {
		s.WorldMatrix = IdentityMatrix()
	}

	if err := c.SeekIdentifier(entitySaveParent); err == nil {
		id, err := c.ReadObjectID()
		if err != nil {
			return err
		}
		s.ParentID = id
	}

	if err := c.SeekIdentifier(entitySaveChildren); err == nil {
		ids, err := c.ReadObjectIDArray()
		if err != nil {
			return err
		}
		s.ChildIDs = ids
	}

	if err := c.SeekIdentifier(entitySaveFlags); err == nil {
		flags, err := c.ReadDword()
		if err != nil {
			return err
		}
		s.EntityFlags = flags
		s.HasEntFlags = true
	}
	return nil
}

func writeEntity3dState(st State, c *Chunk, a *Arena) error {
	if err := writeParent(Classes, Class3dEntity, st, c, a); err != nil {
		return err
	}
	es, ok := st.(entity3dStater)
	if !ok {
		return errKind(KindInvalidArgument, "state does not embed the 3D entity block")
	}
	s := es.entity3dState()

	if s.HasMatrix {
		if err := c.WriteIdentifier(entitySaveMatrix); err != nil {
			return err
		}
		if err := c.WriteMatrix(s.WorldMatrix); err != nil {
			return err
		}
	}
	if s.ParentID != IDNone {
		if err := c.WriteIdentifier(entitySaveParent); err != nil {
			return err
		}
		if err := c.WriteObjectID(s.ParentID); err != nil {
			return err
		}
	}
	if len(s.ChildIDs) > 0 {
		if err := c.WriteIdentifier(entitySaveChildren); err != nil {
			return err
		}
		if err := c.WriteObjectIDArray(s.ChildIDs); err != nil {
			return err
		}
	}
	if s.HasEntFlags {
		if err := c.WriteIdentifier(entitySaveFlags); err != nil {
			return err
		}
		if err := c.WriteDword(s.EntityFlags); err != nil {
			return err
		}
	}
	return nil
}

// finishEntity3dState resolves the parent link and establishes the
// bidirectional hierarchy on the runtime objects.
func finishEntity3dState(st State, a *Arena, repo *Repository) error {
	if err := finishParent(Classes, Class3dEntity, st, a, repo); err != nil {
		return err
	}
	es, ok := st.(entity3dStater)
	if !ok {
		return nil
	}
	s := es.entity3dState()
	self := repo.FindByID(s.OwnerID)
	if s.ParentID.Valid() {
		parent := repo.FindByID(s.ParentID &^ IDReferenceBit)
		if parent == nil {
			return errKind(KindNotFound, "entity %d parent %d unresolved", s.OwnerID, s.ParentID)
		}
		s.Parent = parent
		if self != nil {
			self.ParentID = parent.ID
			parent.ChildrenIDs = append(parent.ChildrenIDs, self.ID)
		}
	}
	return nil
}

func init() {
	Classes.mustRegister(&ClassDescriptor{
		Name:          "CK3dEntity",
		GUID:          NewGUID(0x64a3571c, 0x52d90b28),
		ClassID:       Class3dEntity,
		ParentID:      ClassRenderObject,
		NewState:      func() State { return &Entity3dState{} },
		Read:          readEntity3dState,
		Write:         writeEntity3dState,
		FinishLoading: finishEntity3dState,
	})
}
