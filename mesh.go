// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

// CKMesh chunk identifiers.
const (
	meshSaveFlags     = 0x000000A0
	meshSaveVertices  = 0x000000A1
	meshSaveFaces     = 0x000000A2
	meshSaveMaterials = 0x000000A3
	meshSaveUVs       = 0x000000A4
)

// Face is one mesh triangle with its material channel index. On the wire a
// face packs into two DWORDs: (b<<16 | a) and (mat<<16 | c).
type Face struct {
	A, B, C  uint16
	Material uint16
}

// MeshState is the schematized prefix of the CKMesh payload; channel data
// beyond it stays in the raw tail.
type MeshState struct {
	BeObjectState

	MeshFlags uint32
	HasFlags2 bool

	Vertices []Vector3
	UVs      []Vector2
	Faces    []Face

	MaterialIDs []ID
	Materials   []*Object
}

// StateClassID reports the class the state was decoded for.
func (s *MeshState) StateClassID() ClassID {
	return ClassMesh
}

func readMeshState(c *Chunk, a *Arena, st State) error {
	if err := readParent(Classes, ClassMesh, c, a, st); err != nil {
		return err
	}
	s, ok := st.(*MeshState)
	if !ok {
		return errKind(KindInvalidArgument, "state is not a mesh state")
	}
	if err := c.SeekIdentifier(meshSaveFlags); err == nil {
		flags, err := c.ReadDword()
		if err != nil {
			return err
		}
		s.MeshFlags = flags
		s.HasFlags2 = true
	}
	if err := c.SeekIdentifier(meshSaveVertices); err == nil {
		count, err := c.ReadDword()
		if err != nil {
			return err
		}
		verts := make([]Vector3, count)
		for i := range verts {
			if verts[i], err = c.ReadVector3(); err != nil {
				return err
			}
		}
		s.Vertices = verts
	}
	if err := c.SeekIdentifier(meshSaveUVs); err == nil {
		count, err := c.ReadDword()
		if err != nil {
			return err
		}
		uvs := make([]Vector2, count)
		for i := range uvs {
			if uvs[i], err = c.ReadVector2(); err != nil {
				return err
			}
		}
		s.UVs = uvs
	}
	if err := c.SeekIdentifier(meshSaveFaces); err == nil {
		count, err := c.ReadDword()
		if err != nil {
			return err
		}
		faces := make([]Face, count)
		for i := range faces {
			lo, err := c.ReadDword()
			if err != nil {
				return err
			}
			hi, err := c.ReadDword()
			if err != nil {
				return err
			}
			faces[i] = Face{
				A:        uint16(lo),
				B:        uint16(lo >> 16),
				C:        uint16(hi),
				Material: uint16(hi >> 16),
			}
		}
		s.Faces = faces
	}
	if err := c.SeekIdentifier(meshSaveMaterials); err == nil {
		ids, err := c.ReadObjectIDArray()
		if err != nil {
			return err
		}
		s.MaterialIDs = ids
	}
	return nil
}

func writeMeshState(st State, c *Chunk, a *Arena) error {
	if err := writeParent(Classes, ClassMesh, st, c, a); err != nil {
		return err
	}
	s, ok := st.(*MeshState)
	if !ok {
		return errKind(KindInvalidArgument, "state is not a mesh state")
	}
	if s.HasFlags2 {
		if err := c.WriteIdentifier(meshSaveFlags); err != nil {
			return err
		}
		if err := c.WriteDword(s.MeshFlags); err != nil {
			return err
		}
	}
	if len(s.Vertices) > 0 {
		if err := c.WriteIdentifier(meshSaveVertices); err != nil {
			return err
		}
		if err := c.WriteDword(uint32(len(s.Vertices))); err != nil {
			return err
		}
		for _, v := range s.Vertices {
			if err := c.WriteVector3(v); err != nil {
				return err
			}
		}
	}
	if len(s.UVs) > 0 {
		if err := c.WriteIdentifier(meshSaveUVs); err != nil {
			return err
		}
		if err := c.WriteDword(uint32(len(s.UVs))); err != nil {
			return err
		}
		for _, v := range s.UVs {
			if err := c.WriteVector2(v); err != nil {
				return err
			}
		}
	}
	if len(s.Faces) > 0 {
		if err := c.WriteIdentifier(meshSaveFaces); err != nil {
			return err
		}
		if err := c.WriteDword(uint32(len(s.Faces))); err != nil {
			return err
		}
		for _, f := range s.Faces {
			if err := c.WriteDword(uint32(f.B)<<16 | uint32(f.A)); err != nil {
				return err
			}
			if err := c.WriteDword(uint32(f.Material)<<16 | uint32(f.C)); err != nil {
				return err
			}
		}
	}
	if len(s.MaterialIDs) > 0 {
		if err := c.WriteIdentifier(meshSaveMaterials); err != nil {
			return err
		}
		if err := c.WriteObjectIDArray(s.MaterialIDs); err != nil {
			return err
		}
	}
	return nil
}

func finishMeshState(st State, a *Arena, repo *Repository) error {
	if err := finishParent(Classes, ClassMesh, st, a, repo); err != nil {
		return err
	}
	s, ok := st.(*MeshState)
	if !ok {
		return nil
	}
	s.Materials = s.Materials[:0]
	for _, id := range s.MaterialIDs {
		if !id.Valid() {
			s.Materials = append(s.Materials, nil)
			continue
		}
		mat := repo.FindByID(id &^ IDReferenceBit)
		if mat == nil {
			return errKind(KindNotFound, "mesh %d material %d unresolved", s.OwnerID, id)
		}
		s.Materials = append(s.Materials, mat)
	}
	return nil
}

// validateMeshState rejects faces indexing past the vertex pool.
func validateMeshState(st State) error {
	s, ok := st.(*MeshState)
	if !ok {
		return nil
	}
	for _, f := range s.Faces {
		if int(f.A) >= len(s.Vertices) || int(f.B) >= len(s.Vertices) ||
			int(f.C) >= len(s.Vertices) {
			return errKind(KindValidationFailed,
				"mesh face (%d,%d,%d) outside %d vertices", f.A, f.B, f.C, len(s.Vertices))
		}
	}
	return nil
}

func init() {
	Classes.mustRegister(&ClassDescriptor{
		Name:          "CKMesh",
		GUID:          NewGUID(0x43bb0e6f, 0x29d417a5),
		ClassID:       ClassMesh,
		ParentID:      ClassBeObject,
		NewState:      func() State { return &MeshState{} },
		Read:          readMeshState,
		Write:         writeMeshState,
		FinishLoading: finishMeshState,
		Validate:      validateMeshState,
	})
}
