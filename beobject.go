// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

// CKBeObject chunk identifiers. Writers emit present blocks in this order;
// readers probe each one independently and leave absent blocks at their
// defaults.
const (
	beObjectSaveScripts        = 0x00000010
	beObjectSaveDatas          = 0x00000020
	beObjectSaveAttributes     = 0x00000030
	beObjectSaveNewAttributes  = 0x00000040
	beObjectSaveSingleActivity = 0x00000050
)

// AttributeEntry ties an attribute type, allocated by the attribute
// manager, to the parameter object holding its value.
type AttributeEntry struct {
	Type    int32
	ParamID ID
}

// BeObjectState is the behavioral-object block: scripts, priority data,
// attributes and activity.
type BeObjectState struct {
	SceneObjectState

	ScriptIDs []ID
	Scripts   []*Object

	HasDatas bool
	Priority int32
	BeFlags  uint32

	Attributes []AttributeEntry

	// NewAttributes carries the extended attribute block verbatim; the
	// library round-trips it without interpreting the layout.
	NewAttributes []uint32

	HasSingleActivity bool
	InitiallyActive   uint32
}

// StateClassID reports the class the state was decoded for.
func (s *BeObjectState) StateClassID() ClassID {
	return ClassBeObject
}

func (s *BeObjectState) beObjectState() *BeObjectState {
	return s
}

type beObjectStater interface {
	beObjectState() *BeObjectState
}

func readBeObjectState(c *Chunk, a *Arena, st State) error {
	if err := readParent(Classes, ClassBeObject, c, a, st); err != nil {
		return err
	}
	bs, ok := st.(beObjectStater)
	if !ok {
		return errKind(KindInvalidArgument, "state does not embed the behavioral block")
	}
	s := bs.beObjectState()

	if err := c.SeekIdentifier(beObjectSaveScripts); err == nil {
		ids, err := c.ReadObjectIDArray()
		if err != nil {
			return err
		}
		s.ScriptIDs = ids
	}

	if err := c.SeekIdentifier(beObjectSaveDatas); err == nil {
		prio, err := c.ReadInt()
		if err != nil {
			return err
		}
		flags, err := c.ReadDword()
		if err != nil {
			return err
		}
		s.HasDatas = true
		s.Priority = prio
		s.BeFlags = flags
	}

	if err := c.SeekIdentifier(beObjectSaveAttributes); err == nil {
		if err := readAttributeBlock(c, s); err != nil {
			return err
		}
	}

	if err := c.SeekIdentifier(beObjectSaveNewAttributes); err == nil {
		raw, err := c.ReadDwordArray()
		if err != nil {
			return err
		}
		s.NewAttributes = raw
	}

	if err := c.SeekIdentifier(beObjectSaveSingleActivity); err == nil {
		active, err := c.ReadDword()
		if err != nil {
			return err
		}
		s.HasSingleActivity = true
		s.InitiallyActive = active
	}
	return nil
}

// readAttributeBlock decodes the attribute-manager sequence followed by the
// parameter ID sequence.
func readAttributeBlock(c *Chunk, s *BeObjectState) error {
	guid, count, err := c.ReadManagerSequence()
	if err != nil {
		return err
	}
	if guid != AttributeManagerGUID {
		return errKind(KindInvalidFormat, "attribute block tagged %s", guid)
	}
	entries := make([]AttributeEntry, count)
	for i := range entries {
		t, err := c.ReadInt()
		if err != nil {
			return err
		}
		entries[i].Type = t
	}
	n, err := c.ReadObjectIDSequence()
	if err != nil {
		return err
	}
	if n != count {
		return errKind(KindInvalidFormat, "attribute parameter count %d does not match %d", n, count)
	}
	for i := range entries {
		id, err := c.ReadObjectID()
		if err != nil {
			return err
		}
		entries[i].ParamID = id
	}
	s.Attributes = entries
	return nil
}

func writeBeObjectState(st State, c *Chunk, a *Arena) error {
	if err := writeParent(Classes, ClassBeObject, st, c, a); err != nil {
		return err
	}
	bs, ok := st.(beObjectStater)
	if !ok {
		return errKind(KindInvalidArgument, "state does not embed the behavioral block")
	}
	s := bs.beObjectState()

	if len(s.ScriptIDs) > 0 {
		if err := c.WriteIdentifier(beObjectSaveScripts); err != nil {
			return err
		}
		if err := c.WriteObjectIDArray(s.ScriptIDs); err != nil {
			return err
		}
	}

	if s.HasDatas {
		if err := c.WriteIdentifier(beObjectSaveDatas); err != nil {
			return err
		}
		if err := c.WriteInt(s.Priority); err != nil {
			return err
		}
		if err := c.WriteDword(s.BeFlags); err != nil {
			return err
		}
	}

	if len(s.Attributes) > 0 {
		if err := c.WriteIdentifier(beObjectSaveAttributes); err != nil {
			return err
		}
		if err := c.StartManagerSequence(AttributeManagerGUID, len(s.Attributes)); err != nil {
			return err
		}
		for _, e := range s.Attributes {
			if err := c.WriteInt(e.Type); err != nil {
				return err
			}
		}
		if err := c.StartObjectIDSequence(len(s.Attributes)); err != nil {
			return err
		}
		for _, e := range s.Attributes {
			if err := c.WriteObjectIDInSequence(e.ParamID); err != nil {
				return err
			}
		}
	}

	if len(s.NewAttributes) > 0 {
		if err := c.WriteIdentifier(beObjectSaveNewAttributes); err != nil {
			return err
		}
		if err := c.WriteDwordArray(s.NewAttributes); err != nil {
			return err
		}
	}

	if s.HasSingleActivity {
		if err := c.WriteIdentifier(beObjectSaveSingleActivity); err != nil {
			return err
		}
		if err := c.WriteDword(s.InitiallyActive); err != nil {
			return err
		}
	}
	return nil
}

func finishBeObjectState(st State, a *Arena, repo *Repository) error {
	bs, ok := st.(beObjectStater)
	if !ok {
		return nil
	}
	s := bs.beObjectState()
	s.Scripts = s.Scripts[:0]
	for _, id := range s.ScriptIDs {
		if !id.Valid() {
			continue
		}
		script := repo.FindByID(id &^ IDReferenceBit)
		if script == nil {
			return errKind(KindNotFound, "script %d of object %d unresolved", id, s.OwnerID)
		}
		s.Scripts = append(s.Scripts, script)
	}
	return nil
}

func init() {
	Classes.mustRegister(&ClassDescriptor{
		Name:          "CKBeObject",
		GUID:          NewGUID(0x2f0e2e55, 0x3c8f1a40),
		ClassID:       ClassBeObject,
		ParentID:      ClassSceneObject,
		NewState:      func() State { return &BeObjectState{} },
		Read:          readBeObjectState,
		Write:         writeBeObjectState,
		FinishLoading: finishBeObjectState,
	})
}
