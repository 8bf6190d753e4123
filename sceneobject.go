// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

// sceneObjectSaveScenes heads the list of scenes the object is active in.
const sceneObjectSaveScenes = 0x00000004

// SceneObjectState adds scene membership on top of the object block.
type SceneObjectState struct {
	ObjectState

	// SceneIDs are the scenes the object is active in; resolved pointers
	// are not kept because scenes own the activation state.
	SceneIDs []ID
}

// StateClassID reports the class the state was decoded for.
func (s *SceneObjectState) StateClassID() ClassID {
	return ClassSceneObject
}

func readSceneObjectState(c *Chunk, a *Arena, st State) error {
	if err := readParent(Classes, ClassSceneObject, c, a, st); err != nil {
		return err
	}
	s, ok := st.(interface{ sceneObjectState() *SceneObjectState })
	if !ok {
		return errKind(KindInvalidArgument, "state does not embed the scene object block")
	}
	if err := c.SeekIdentifier(sceneObjectSaveScenes); err == nil {
		ids, err := c.ReadObjectIDArray()
		if err != nil {
			return err
		}
		s.sceneObjectState().SceneIDs = ids
	}
	return nil
}

func writeSceneObjectState(st State, c *Chunk, a *Arena) error {
	if err := writeParent(Classes, ClassSceneObject, st, c, a); err != nil {
		return err
	}
	s, ok := st.(interface{ sceneObjectState() *SceneObjectState })
	if !ok {
		return errKind(KindInvalidArgument, "state does not embed the scene object block")
	}
	so := s.sceneObjectState()
	if len(so.SceneIDs) > 0 {
		if err := c.WriteIdentifier(sceneObjectSaveScenes); err != nil {
			return err
		}
		if err := c.WriteObjectIDArray(so.SceneIDs); err != nil {
			return err
		}
	}
	return nil
}

func (s *SceneObjectState) sceneObjectState() *SceneObjectState {
	return s
}

func init() {
	Classes.mustRegister(&ClassDescriptor{
		Name:     "CKSceneObject",
		ClassID:  ClassSceneObject,
		ParentID: ClassObject,
		NewState: func() State { return &SceneObjectState{} },
		Read:     readSceneObjectState,
		Write:    writeSceneObjectState,
	})
}
