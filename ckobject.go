// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

// CKObject chunk identifiers.
const (
	// objectSaveHidden is a bare marker: its presence alone records that
	// the object was hidden when saved.
	objectSaveHidden = 0x00000001

	// objectSaveFlags heads a one-DWORD block with the object flag bits.
	objectSaveFlags = 0x00000002
)

// ObjectState is the decoded root block shared by every class through
// embedding: visibility, the raw flag DWORD and the preserved raw tail.
type ObjectState struct {
	Hidden   bool
	HasFlags bool
	ObjFlags uint32

	// RawTail preserves unknown trailing DWORDs verbatim for forward
	// compatibility with class revisions this library does not know.
	RawTail []uint32

	// OwnerID is the runtime ID of the object the state was decoded for,
	// set by the pipeline before FinishLoading runs. Not serialized.
	OwnerID ID
}

// StateClassID reports the class the state was decoded for.
func (s *ObjectState) StateClassID() ClassID {
	return ClassObject
}

func (s *ObjectState) objectState() *ObjectState {
	return s
}

func readObjectState(c *Chunk, a *Arena, st State) error {
	s := objectStateOf(st)
	if s == nil {
		return errKind(KindInvalidArgument, "state does not embed the object block")
	}
	if err := c.SeekIdentifier(objectSaveHidden); err == nil {
		s.Hidden = true
	}
	if err := c.SeekIdentifier(objectSaveFlags); err == nil {
		flags, err := c.ReadDword()
		if err != nil {
			return err
		}
		s.HasFlags = true
		s.ObjFlags = flags
	}
	return nil
}

func writeObjectState(st State, c *Chunk, a *Arena) error {
	s := objectStateOf(st)
	if s == nil {
		return errKind(KindInvalidArgument, "state does not embed the object block")
	}
	if s.Hidden {
		if err := c.WriteIdentifier(objectSaveHidden); err != nil {
			return err
		}
	}
	if s.HasFlags {
		if err := c.WriteIdentifier(objectSaveFlags); err != nil {
			return err
		}
		if err := c.WriteDword(s.ObjFlags); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	Classes.mustRegister(&ClassDescriptor{
		Name:     "CKObject",
		ClassID:  ClassObject,
		ParentID: ClassInvalid,
		NewState: func() State { return &ObjectState{} },
		Read:     readObjectState,
		Write:    writeObjectState,
	})
}
