// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

// CKDataArray chunk identifiers.
const (
	dataArraySaveLayout = 0x000000F0
	dataArraySaveRows   = 0x000000F1
)

// Data array column types.
const (
	ColumnInt = iota
	ColumnFloat
	ColumnString
	ColumnObject
	ColumnParameter
)

// DataArrayColumn describes one column of a CKDataArray.
type DataArrayColumn struct {
	Name string
	Type uint32
}

// DataArrayState is the decoded CKDataArray payload. Cell values stay the
// raw DWORDs of the rows block, whatever the column type; string and
// object cells are neither decoded nor remapped.
type DataArrayState struct {
	BeObjectState

	Columns []DataArrayColumn

	// Rows is row-major: len(Columns) DWORDs per row.
	Rows [][]uint32
}

// StateClassID reports the class the state was decoded for.
func (s *DataArrayState) StateClassID() ClassID {
	return ClassDataArray
}

func readDataArrayState(c *Chunk, a *Arena, st State) error {
	if err := readParent(Classes, ClassDataArray, c, a, st); err != nil {
		return err
	}
	s, ok := st.(*DataArrayState)
	if !ok {
		return errKind(KindInvalidArgument, "state is not a data array state")
	}
	if err := c.SeekIdentifier(dataArraySaveLayout); err == nil {
		count, err := c.ReadDword()
		if err != nil {
			return err
		}
		cols := make([]DataArrayColumn, count)
		for i := range cols {
			name, err := c.ReadString(a)
			if err != nil {
				return err
			}
			typ, err := c.ReadDword()
			if err != nil {
				return err
			}
			cols[i] = DataArrayColumn{Name: name, Type: typ}
		}
		s.Columns = cols
	}
	if err := c.SeekIdentifier(dataArraySaveRows); err == nil {
		rowCount, err := c.ReadDword()
		if err != nil {
			return err
		}
		width := len(s.Columns)
		rows := make([][]uint32, rowCount)
		for i := range rows {
			row := make([]uint32, width)
			for j := 0; j < width; j++ {
				if row[j], err = c.ReadDword(); err != nil {
					return err
				}
			}
			rows[i] = row
		}
		s.Rows = rows
	}
	return nil
}

func writeDataArrayState(st State, c *Chunk, a *Arena) error {
	if err := writeParent(Classes, ClassDataArray, st, c, a); err != nil {
		return err
	}
	s, ok := st.(*DataArrayState)
	if !ok {
		return errKind(KindInvalidArgument, "state is not a data array state")
	}
	if len(s.Columns) > 0 {
		if err := c.WriteIdentifier(dataArraySaveLayout); err != nil {
			return err
		}
		if err := c.WriteDword(uint32(len(s.Columns))); err != nil {
			return err
		}
		for _, col := range s.Columns {
			if err := c.WriteString(col.Name); err != nil {
				return err
			}
			if err := c.WriteDword(col.Type); err != nil {
				return err
			}
		}
	}
	if len(s.Rows) > 0 {
		if err := c.WriteIdentifier(dataArraySaveRows); err != nil {
			return err
		}
		if err := c.WriteDword(uint32(len(s.Rows))); err != nil {
			return err
		}
		for _, row := range s.Rows {
			for _, cell := range row {
				if err := c.WriteDword(cell); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// validateDataArrayState rejects ragged rows.
func validateDataArrayState(st State) error {
	s, ok := st.(*DataArrayState)
	if !ok {
		return nil
	}
	for i, row := range s.Rows {
		if len(row) != len(s.Columns) {
			return errKind(KindValidationFailed,
				"data array row %d has %d cells for %d columns", i, len(row), len(s.Columns))
		}
	}
	return nil
}

func init() {
	Classes.mustRegister(&ClassDescriptor{
		Name:     "CKDataArray",
		GUID:     NewGUID(0x3e5c88d0, 0x4d2f196e),
		ClassID:  ClassDataArray,
		ParentID: ClassBeObject,
		NewState: func() State { return &DataArrayState{} },
		Read:     readDataArrayState,
		Write:    writeDataArrayState,
		Validate: validateDataArrayState,
	})
}
