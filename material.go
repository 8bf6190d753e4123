// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

// CKMaterial chunk identifiers.
const (
	materialSaveColors  = 0x00000080
	materialSaveModes   = 0x00000081
	materialSaveTexture = 0x00000082
)

// MaterialState is the decoded CKMaterial payload.
type MaterialState struct {
	BeObjectState

	Diffuse  Color
	Ambient  Color
	Specular Color
	Emissive Color
	Power    float32

	HasModes   bool
	FillMode   uint32
	ShadeMode  uint32
	BlendModes uint32
	TwoSided   uint32

	TextureID ID
	Texture   *Object
}

// StateClassID reports the class the state was decoded for.
func (s *MaterialState) StateClassID() ClassID {
	return ClassMaterial
}

func readMaterialState(c *Chunk, a *Arena, st State) error {
	if err := readParent(Classes, ClassMaterial, c, a, st); err != nil {
		return err
	}
	s, ok := st.(*MaterialState)
	if !ok {
		return errKind(KindInvalidArgument, "state is not a material state")
	}
	if err := c.SeekIdentifier(materialSaveColors); err == nil {
		var err error
		if s.Diffuse, err = c.ReadColor(); err != nil {
			return err
		}
		if s.Ambient, err = c.ReadColor(); err != nil {
			return err
		}
		if s.Specular, err = c.ReadColor(); err != nil {
			return err
		}
		if s.Emissive, err = c.ReadColor(); err != nil {
			return err
		}
		if s.Power, err = c.ReadFloat(); err != nil {
			return err
		}
	}
	if err := c.SeekIdentifier(materialSaveModes); err == nil {
		var err error
		if s.FillMode, err = c.ReadDword(); err != nil {
			return err
		}
		if s.ShadeMode, err = c.ReadDword(); err != nil {
			return err
		}
		if s.BlendModes, err = c.ReadDword(); err != nil {
			return err
		}
		if s.TwoSided, err = c.ReadDword(); err != nil {
			return err
		}
		s.HasModes = true
	}
	if err := c.SeekIdentifier(materialSaveTexture); err == nil {
		id, err := c.ReadObjectID()
		if err != nil {
			return err
		}
		s.TextureID = id
	}
	return nil
}

func writeMaterialState(st State, c *Chunk, a *Arena) error {
	if err := writeParent(Classes, ClassMaterial, st, c, a); err != nil {
		return err
	}
	s, ok := st.(*MaterialState)
	if !ok {
		return errKind(KindInvalidArgument, "state is not a material state")
	}
	if err := c.WriteIdentifier(materialSaveColors); err != nil {
		return err
	}
	for _, col := range []Color{s.Diffuse, s.Ambient, s.Specular, s.Emissive} {
		if err := c.WriteColor(col); err != nil {
			return err
		}
	}
	if err := c.WriteFloat(s.Power); err != nil {
		return err
	}
	if s.HasModes {
		if err := c.WriteIdentifier(materialSaveModes); err != nil {
			return err
		}
		for _, m := range []uint32{s.FillMode, s.ShadeMode, s.BlendModes, s.TwoSided} {
			if err := c.WriteDword(m); err != nil {
				return err
			}
		}
	}
	if s.TextureID != IDNone {
		if err := c.WriteIdentifier(materialSaveTexture); err != nil {
			return err
		}
		if err := c.WriteObjectID(s.TextureID); err != nil {
			return err
		}
	}
	return nil
}

func finishMaterialState(st State, a *Arena, repo *Repository) error {
	if err := finishParent(Classes, ClassMaterial, st, a, repo); err != nil {
		return err
	}
	s, ok := st.(*MaterialState)
	if !ok {
		return nil
	}
	if s.TextureID.Valid() {
		tex := repo.FindByID(s.TextureID &^ IDReferenceBit)
		if tex == nil {
			return errKind(KindNotFound, "material %d texture %d unresolved", s.OwnerID, s.TextureID)
		}
		s.Texture = tex
	}
	return nil
}

func init() {
	Classes.mustRegister(&ClassDescriptor{
		Name:          "CKMaterial",
		GUID:          NewGUID(0x1aa93f8b, 0x64cc70d3),
		ClassID:       ClassMaterial,
		ParentID:      ClassBeObject,
		NewState:      func() State { return &MaterialState{} },
		Read:          readMaterialState,
		Write:         writeMaterialState,
		FinishLoading: finishMaterialState,
	})
}
