// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

// CKBehavior chunk identifiers.
const (
	behaviorSaveBase         = 0x000000D0
	behaviorSaveSubBehaviors = 0x000000D1
	behaviorSaveIOs          = 0x000000D2
	behaviorSaveSubChunk     = 0x000000D3
)

// Behavior types.
const (
	BehaviorTypeBase     = 0
	BehaviorTypeScript   = 1
	BehaviorTypeGraph    = 2
	BehaviorTypeFunction = 4
)

// BehaviorState is the decoded CKBehavior payload. The graph internals the
// library does not schematize stay in the raw tail and, for prototypes, in
// a nested sub-chunk.
type BehaviorState struct {
	SceneObjectState

	BehaviorType  uint32
	BehaviorFlags uint32
	Prototype     CKGUID

	OwnerObjectID ID
	OwnerObject   *Object

	SubBehaviorIDs []ID
	SubBehaviors   []*Object

	InputIDs  []ID
	OutputIDs []ID

	// Graph holds the unschematized behavior-graph block as a nested
	// chunk, preserved for round trips.
	Graph *Chunk
}

// StateClassID reports the class the state was decoded for.
func (s *BehaviorState) StateClassID() ClassID {
	return ClassBehavior
}

func readBehaviorState(c *Chunk, a *Arena, st State) error {
	if err := readParent(Classes, ClassBehavior, c, a, st); err != nil {
		return err
	}
	s, ok := st.(*BehaviorState)
	if !ok {
		return errKind(KindInvalidArgument, "state is not a behavior state")
	}
	if err := c.SeekIdentifier(behaviorSaveBase); err == nil {
		var err error
		if s.BehaviorType, err = c.ReadDword(); err != nil {
			return err
		}
		if s.BehaviorFlags, err = c.ReadDword(); err != nil {
			return err
		}
		if s.Prototype, err = c.ReadGUID(); err != nil {
			return err
		}
		if s.OwnerObjectID, err = c.ReadObjectID(); err != nil {
			return err
		}
	}
	if err := c.SeekIdentifier(behaviorSaveSubBehaviors); err == nil {
		ids, err := c.ReadObjectIDArray()
		if err != nil {
			return err
		}
		s.SubBehaviorIDs = ids
	}
	if err := c.SeekIdentifier(behaviorSaveIOs); err == nil {
		in, err := c.ReadObjectIDArray()
		if err != nil {
			return err
		}
		out, err := c.ReadObjectIDArray()
		if err != nil {
			return err
		}
		s.InputIDs, s.OutputIDs = in, out
	}
	if err := c.SeekIdentifier(behaviorSaveSubChunk); err == nil {
		sub, err := c.ReadSubChunk()
		if err != nil {
			return err
		}
		s.Graph = sub
	}
	return nil
}

func writeBehaviorState(st State, c *Chunk, a *Arena) error {
	if err := writeParent(Classes, ClassBehavior, st, c, a); err != nil {
		return err
	}
	s, ok := st.(*BehaviorState)
	if !ok {
		return errKind(KindInvalidArgument, "state is not a behavior state")
	}
	if err := c.WriteIdentifier(behaviorSaveBase); err != nil {
		return err
	}
	if err := c.WriteDword(s.BehaviorType); err != nil {
		return err
	}
	if err := c.WriteDword(s.BehaviorFlags); err != nil {
		return err
	}
	if err := c.WriteGUID(s.Prototype); err != nil {
		return err
	}
	if err := c.WriteObjectID(s.OwnerObjectID); err != nil {
		return err
	}
	if len(s.SubBehaviorIDs) > 0 {
		if err := c.WriteIdentifier(behaviorSaveSubBehaviors); err != nil {
			return err
		}
		if err := c.WriteObjectIDArray(s.SubBehaviorIDs); err != nil {
			return err
		}
	}
	if len(s.InputIDs) > 0 || len(s.OutputIDs) > 0 {
		if err := c.WriteIdentifier(behaviorSaveIOs); err != nil {
			return err
		}
		if err := c.WriteObjectIDArray(s.InputIDs); err != nil {
			return err
		}
		if err := c.WriteObjectIDArray(s.OutputIDs); err != nil {
			return err
		}
	}
	if s.Graph != nil {
		if err := c.WriteIdentifier(behaviorSaveSubChunk); err != nil {
			return err
		}
		if err := c.WriteSubChunk(s.Graph); err != nil {
			return err
		}
	}
	return nil
}

func finishBehaviorState(st State, a *Arena, repo *Repository) error {
	if err := finishParent(Classes, ClassBehavior, st, a, repo); err != nil {
		return err
	}
	s, ok := st.(*BehaviorState)
	if !ok {
		return nil
	}
	if s.OwnerObjectID.Valid() {
		owner := repo.FindByID(s.OwnerObjectID &^ IDReferenceBit)
		if owner == nil {
			return errKind(KindNotFound, "behavior %d owner %d unresolved", s.OwnerID, s.OwnerObjectID)
		}
		s.OwnerObject = owner
	}
	s.SubBehaviors = s.SubBehaviors[:0]
	for _, id := range s.SubBehaviorIDs {
		if !id.Valid() {
			continue
		}
		sub := repo.FindByID(id &^ IDReferenceBit)
		if sub == nil {
			return errKind(KindNotFound, "behavior %d sub-behavior %d unresolved", s.OwnerID, id)
		}
		s.SubBehaviors = append(s.SubBehaviors, sub)
	}
	return nil
}

func init() {
	Classes.mustRegister(&ClassDescriptor{
		Name:          "CKBehavior",
		GUID:          NewGUID(0x7e0f3c91, 0x6b5ad2c8),
		ClassID:       ClassBehavior,
		ParentID:      ClassSceneObject,
		NewState:      func() State { return &BehaviorState{} },
		Read:          readBehaviorState,
		Write:         writeBehaviorState,
		FinishLoading: finishBehaviorState,
	})
}
