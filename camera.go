// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

// CKCamera chunk identifiers.
const (
	cameraSaveParams = 0x000000B0
	cameraSaveTarget = 0x000000B8
)

// Camera projection types.
const (
	ProjectionPerspective  = 1
	ProjectionOrthographic = 2
)

// CameraState is the decoded CKCamera payload.
type CameraState struct {
	Entity3dState

	Fov            float32
	FrontPlane     float32
	BackPlane      float32
	ProjectionType uint32
	OrthoZoom      float32
}

// StateClassID reports the class the state was decoded for.
func (s *CameraState) StateClassID() ClassID {
	return ClassCamera
}

func (s *CameraState) cameraState() *CameraState {
	return s
}

type cameraStater interface {
	cameraState() *CameraState
}

func readCameraState(c *Chunk, a *Arena, st State) error {
	if err := readParent(Classes, ClassCamera, c, a, st); err != nil {
		return err
	}
	cs, ok := st.(cameraStater)
	if !ok {
		return errKind(KindInvalidArgument, "state does not embed the camera block")
	}
	s := cs.cameraState()
	if err := c.SeekIdentifier(cameraSaveParams); err == nil {
		var err error
		if s.Fov, err = c.ReadFloat(); err != nil {
			return err
		}
		if s.FrontPlane, err = c.ReadFloat(); err != nil {
			return err
		}
		if s.BackPlane, err = c.ReadFloat(); err != nil {
			return err
		}
		if s.ProjectionType, err = c.ReadDword(); err != nil {
			return err
		}
		if s.OrthoZoom, err = c.ReadFloat(); err != nil {
			return err
		}
	}
	return nil
}

func writeCameraState(st State, c *Chunk, a *Arena) error {
	if err := writeParent(Classes, ClassCamera, st, c, a); err != nil {
		return err
	}
	cs, ok := st.(cameraStater)
	if !ok {
		return errKind(KindInvalidArgument, "state does not embed the camera block")
	}
	s := cs.cameraState()
	if err := c.WriteIdentifier(cameraSaveParams); err != nil {
		return err
	}
	if err := c.WriteFloat(s.Fov); err != nil {
		return err
	}
	if err := c.WriteFloat(s.FrontPlane); err != nil {
		return err
	}
	if err := c.WriteFloat(s.BackPlane); err != nil {
		return err
	}
	if err := c.WriteDword(s.ProjectionType); err != nil {
		return err
	}
	return c.WriteFloat(s.OrthoZoom)
}

// validateCameraState rejects degenerate clip planes.
func validateCameraState(st State) error {
	cs, ok := st.(cameraStater)
	if !ok {
		return nil
	}
	s := cs.cameraState()
	if s.BackPlane != 0 && s.BackPlane <= s.FrontPlane {
		return errKind(KindValidationFailed,
			"camera back plane %f behind front plane %f", s.BackPlane, s.FrontPlane)
	}
	return nil
}

// TargetCameraState adds the look-at target.
type TargetCameraState struct {
	CameraState

	TargetID ID
	Target   *Object
}

// StateClassID reports the class the state was decoded for.
func (s *TargetCameraState) StateClassID() ClassID {
	return ClassTargetCamera
}

func readTargetCameraState(c *Chunk, a *Arena, st State) error {
	if err := readParent(Classes, ClassTargetCamera, c, a, st); err != nil {
		return err
	}
	s, ok := st.(*TargetCameraState)
	if !ok {
		return errKind(KindInvalidArgument, "state is not a target camera state")
	}
	if err := c.SeekIdentifier(cameraSaveTarget); err == nil {
		id, err := c.ReadObjectID()
		if err != nil {
			return err
		}
		s.TargetID = id
	}
	return nil
}

func writeTargetCameraState(st State, c *Chunk, a *Arena) error {
	if err := writeParent(Classes, ClassTargetCamera, st, c, a); err != nil {
		return err
	}
	s, ok := st.(*TargetCameraState)
	if !ok {
		return errKind(KindInvalidArgument, "state is not a target camera state")
	}
	if s.TargetID != IDNone {
		if err := c.WriteIdentifier(cameraSaveTarget); err != nil {
			return err
		}
		if err := c.WriteObjectID(s.TargetID); err != nil {
			return err
		}
	}
	return nil
}

func finishTargetCameraState(st State, a *Arena, repo *Repository) error {
	if err := finishParent(Classes, ClassTargetCamera, st, a, repo); err != nil {
		return err
	}
	s, ok := st.(*TargetCameraState)
	if !ok {
		return nil
	}
	if s.TargetID.Valid() {
		target := repo.FindByID(s.TargetID &^ IDReferenceBit)
		if target == nil {
			return errKind(KindNotFound, "camera %d target %d unresolved", s.OwnerID, s.TargetID)
		}
		s.Target = target
	}
	return nil
}

func init() {
	Classes.mustRegister(&ClassDescriptor{
		Name:          "CKCamera",
		GUID:          NewGUID(0x56aa71d9, 0x308be4cf),
		ClassID:       ClassCamera,
		ParentID:      Class3dEntity,
		NewState:      func() State { return &CameraState{} },
		Read:          readCameraState,
		Write:         writeCameraState,
		FinishLoading: finishEntity3dState,
		Validate:      validateCameraState,
	})
	Classes.mustRegister(&ClassDescriptor{
		Name:          "CKTargetCamera",
		GUID:          NewGUID(0x21d5f08e, 0x5e7ca943),
		ClassID:       ClassTargetCamera,
		ParentID:      ClassCamera,
		NewState:      func() State { return &TargetCameraState{} },
		Read:          readTargetCameraState,
		Write:         writeTargetCameraState,
		FinishLoading: finishTargetCameraState,
		Validate:      validateCameraState,
	})
}
