// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

// CKLight chunk identifiers.
const (
	lightSaveData   = 0x000000C0
	lightSaveTarget = 0x000000C8
)

// Light types.
const (
	LightPoint       = 1
	LightSpot        = 2
	LightDirectional = 3
)

// LightState is the decoded CKLight payload.
type LightState struct {
	Entity3dState

	LightType    uint32
	Color        Color
	ConstantAtt  float32
	LinearAtt    float32
	QuadraticAtt float32
	Range        float32
	HotSpot      float32
	FallOff      float32
}

// StateClassID reports the class the state was decoded for.
func (s *LightState) StateClassID() ClassID {
	return ClassLight
}

func (s *LightState) lightState() *LightState {
	return s
}

type lightStater interface {
	lightState() *LightState
}

func readLightState(c *Chunk, a *Arena, st State) error {
	if err := readParent(Classes, ClassLight, c, a, st); err != nil {
		return err
	}
	ls, ok := st.(lightStater)
	if !ok {
		return errKind(KindInvalidArgument, "state does not embed the light block")
	}
	s := ls.lightState()
	if err := c.SeekIdentifier(lightSaveData); err == nil {
		var err error
		if s.LightType, err = c.ReadDword(); err != nil {
			return err
		}
		if s.Color, err = c.ReadColor(); err != nil {
			return err
		}
		if s.ConstantAtt, err = c.ReadFloat(); err != nil {
			return err
		}
		if s.LinearAtt, err = c.ReadFloat(); err != nil {
			return err
		}
		if s.QuadraticAtt, err = c.ReadFloat(); err != nil {
			return err
		}
		if s.Range, err = c.ReadFloat(); err != nil {
			return err
		}
		if s.HotSpot, err = c.ReadFloat(); err != nil {
			return err
		}
		if s.FallOff, err = c.ReadFloat(); err != nil {
			return err
		}
	}
	return nil
}

func writeLightState(st State, c *Chunk, a *Arena) error {
	if err := writeParent(Classes, ClassLight, st, c, a); err != nil {
		return err
	}
	ls, ok := st.(lightStater)
	if !ok {
		return errKind(KindInvalidArgument, "state does not embed the light block")
	}
	s := ls.lightState()
	if err := c.WriteIdentifier(lightSaveData); err != nil {
		return err
	}
	if err := c.WriteDword(s.LightType); err != nil {
		return err
	}
	if err := c.WriteColor(s.Color); err != nil {
		return err
	}
	for _, f := range []float32{s.ConstantAtt, s.LinearAtt, s.QuadraticAtt,
		s.Range, s.HotSpot, s.FallOff} {
		if err := c.WriteFloat(f); err != nil {
			return err
		}
	}
	return nil
}

// TargetLightState adds the spot target.
type TargetLightState struct {
	LightState

	TargetID ID
	Target   *Object
}

// StateClassID reports the class the state was decoded for.
func (s *TargetLightState) StateClassID() ClassID {
	return ClassTargetLight
}

func readTargetLightState(c *Chunk, a *Arena, st State) error {
	if err := readParent(Classes, ClassTargetLight, c, a, st); err != nil {
		return err
	}
	s, ok := st.(*TargetLightState)
	if !ok {
		return errKind(KindInvalidArgument, "state is not a target light state")
	}
	if err := c.SeekIdentifier(lightSaveTarget); err == nil {
		id, err := c.ReadObjectID()
		if err != nil {
			return err
		}
		s.TargetID = id
	}
	return nil
}

func writeTargetLightState(st State, c *Chunk, a *Arena) error {
	if err := writeParent(Classes, ClassTargetLight, st, c, a); err != nil {
		return err
	}
	s, ok := st.(*TargetLightState)
	if !ok {
		return errKind(KindInvalidArgument, "state is not a target light state")
	}
	if s.TargetID != IDNone {
		if err := c.WriteIdentifier(lightSaveTarget); err != nil {
			return err
		}
		if err := c.WriteObjectID(s.TargetID); err != nil {
			return err
		}
	}
	return nil
}

func finishTargetLightState(st State, a *Arena, repo *Repository) error {
	if err := finishParent(Classes, ClassTargetLight, st, a, repo); err != nil {
		return err
	}
	s, ok := st.(*TargetLightState)
	if !ok {
		return nil
	}
	if s.TargetID.Valid() {
		target := repo.FindByID(s.TargetID &^ IDReferenceBit)
		if target == nil {
			return errKind(KindNotFound, "light %d target %d unresolved", s.OwnerID, s.TargetID)
		}
		s.Target = target
	}
	return nil
}

func init() {
	Classes.mustRegister(&ClassDescriptor{
		Name:          "CKLight",
		GUID:          NewGUID(0x4cf213b7, 0x11a860ed),
		ClassID:       ClassLight,
		ParentID:      Class3dEntity,
		NewState:      func() State { return &LightState{} },
		Read:          readLightState,
		Write:         writeLightState,
		FinishLoading: finishEntity3dState,
	})
	Classes.mustRegister(&ClassDescriptor{
		Name:          "CKTargetLight",
		GUID:          NewGUID(0x6d94e2a1, 0x2cb07f56),
		ClassID:       ClassTargetLight,
		ParentID:      ClassLight,
		NewState:      func() State { return &TargetLightState{} },
		Read:          readTargetLightState,
		Write:         writeTargetLightState,
		FinishLoading: finishTargetLightState,
	})
}
