// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

// CKParameter chunk identifiers.
const parameterSaveValue = 0x000000E0

// ParameterState is the decoded CKParameter payload: the parameter type
// GUID and its value bytes, kept opaque.
type ParameterState struct {
	ObjectState

	TypeGUID CKGUID
	Value    []byte
}

// StateClassID reports the class the state was decoded for.
func (s *ParameterState) StateClassID() ClassID {
	return ClassParameter
}

func (s *ParameterState) parameterState() *ParameterState {
	return s
}

type parameterStater interface {
	parameterState() *ParameterState
}

func readParameterState(c *Chunk, a *Arena, st State) error {
	if err := readParent(Classes, ClassParameter, c, a, st); err != nil {
		return err
	}
	ps, ok := st.(parameterStater)
	if !ok {
		return errKind(KindInvalidArgument, "state does not embed the parameter block")
	}
	s := ps.parameterState()
	if err := c.SeekIdentifier(parameterSaveValue); err == nil {
		guid, err := c.ReadGUID()
		if err != nil {
			return err
		}
		value, err := c.ReadBuffer(a)
		if err != nil {
			return err
		}
		s.TypeGUID = guid
		s.Value = value
	}
	return nil
}

func writeParameterState(st State, c *Chunk, a *Arena) error {
	if err := writeParent(Classes, ClassParameter, st, c, a); err != nil {
		return err
	}
	ps, ok := st.(parameterStater)
	if !ok {
		return errKind(KindInvalidArgument, "state does not embed the parameter block")
	}
	s := ps.parameterState()
	if err := c.WriteIdentifier(parameterSaveValue); err != nil {
		return err
	}
	if err := c.WriteGUID(s.TypeGUID); err != nil {
		return err
	}
	return c.WriteBuffer(s.Value)
}

// ParameterLocalState is the local-parameter variant; the payload layout is
// shared with CKParameter.
type ParameterLocalState struct {
	ParameterState
}

// StateClassID reports the class the state was decoded for.
func (s *ParameterLocalState) StateClassID() ClassID {
	return ClassParameterLocal
}

// ParameterOutState is the output-parameter variant.
type ParameterOutState struct {
	ParameterState
}

// StateClassID reports the class the state was decoded for.
func (s *ParameterOutState) StateClassID() ClassID {
	return ClassParameterOut
}

func init() {
	Classes.mustRegister(&ClassDescriptor{
		Name:     "CKParameter",
		GUID:     NewGUID(0x19cd06a4, 0x73e8b5f2),
		ClassID:  ClassParameter,
		ParentID: ClassObject,
		NewState: func() State { return &ParameterState{} },
		Read:     readParameterState,
		Write:    writeParameterState,
	})
	Classes.mustRegister(&ClassDescriptor{
		Name:     "CKParameterLocal",
		ClassID:  ClassParameterLocal,
		ParentID: ClassParameter,
		NewState: func() State { return &ParameterLocalState{} },
		Read:     readParameterState,
		Write:    writeParameterState,
	})
	Classes.mustRegister(&ClassDescriptor{
		Name:     "CKParameterOut",
		ClassID:  ClassParameterOut,
		ParentID: ClassParameter,
		NewState: func() State { return &ParameterOutState{} },
		Read:     readParameterState,
		Write:    writeParameterState,
	})
}
