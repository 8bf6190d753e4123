// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

// groupSaveData heads the member ID list.
const groupSaveData = 0x00000060

// GroupState is the decoded CKGroup payload: a flat membership list.
type GroupState struct {
	BeObjectState

	MemberIDs []ID
	Members   []*Object

	// CommonClass is the deepest class every member derives from, computed
	// after the graph is resolved.
	CommonClass ClassID
}

// StateClassID reports the class the state was decoded for.
func (s *GroupState) StateClassID() ClassID {
	return ClassGroup
}

func readGroupState(c *Chunk, a *Arena, st State) error {
	if err := readParent(Classes, ClassGroup, c, a, st); err != nil {
		return err
	}
	s, ok := st.(*GroupState)
	if !ok {
		return errKind(KindInvalidArgument, "state is not a group state")
	}
	if err := c.SeekIdentifier(groupSaveData); err == nil {
		ids, err := c.ReadObjectIDArray()
		if err != nil {
			return err
		}
		s.MemberIDs = ids
	}
	return nil
}

func writeGroupState(st State, c *Chunk, a *Arena) error {
	if err := writeParent(Classes, ClassGroup, st, c, a); err != nil {
		return err
	}
	s, ok := st.(*GroupState)
	if !ok {
		return errKind(KindInvalidArgument, "state is not a group state")
	}
	if len(s.MemberIDs) > 0 {
		if err := c.WriteIdentifier(groupSaveData); err != nil {
			return err
		}
		if err := c.WriteObjectIDArray(s.MemberIDs); err != nil {
			return err
		}
	}
	return nil
}

func finishGroupState(st State, a *Arena, repo *Repository) error {
	if err := finishParent(Classes, ClassGroup, st, a, repo); err != nil {
		return err
	}
	s, ok := st.(*GroupState)
	if !ok {
		return nil
	}
	s.Members = s.Members[:0]
	s.CommonClass = ClassInvalid
	for _, id := range s.MemberIDs {
		if !id.Valid() {
			continue
		}
		member := repo.FindByID(id &^ IDReferenceBit)
		if member == nil {
			return errKind(KindNotFound, "group %d member %d unresolved", s.OwnerID, id)
		}
		s.Members = append(s.Members, member)
		if s.CommonClass == ClassInvalid {
			s.CommonClass = member.ClassID
		} else {
			s.CommonClass = Classes.CommonAncestor(s.CommonClass, member.ClassID)
		}
	}
	return nil
}

func init() {
	Classes.mustRegister(&ClassDescriptor{
		Name:          "CKGroup",
		GUID:          NewGUID(0x5f2d1b8a, 0x0a6e44c1),
		ClassID:       ClassGroup,
		ParentID:      ClassBeObject,
		NewState:      func() State { return &GroupState{} },
		Read:          readGroupState,
		Write:         writeGroupState,
		FinishLoading: finishGroupState,
	})
}
