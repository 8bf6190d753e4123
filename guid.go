// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

import "fmt"

// CKGUID is an ordered pair of two DWORDs used to tag types, managers and
// parameter kinds. Equality is pairwise.
type CKGUID struct {
	D1 uint32 `json:"d1"`
	D2 uint32 `json:"d2"`
}

// NewGUID builds a GUID from its two words.
func NewGUID(d1, d2 uint32) CKGUID {
	return CKGUID{D1: d1, D2: d2}
}

// IsZero reports whether both words are zero.
func (g CKGUID) IsZero() bool {
	return g.D1 == 0 && g.D2 == 0
}

// String renders the GUID the way the authoring tool prints it.
func (g CKGUID) String() string {
	return fmt.Sprintf("{0x%08X,0x%08X}", g.D1, g.D2)
}

// Well known manager GUIDs.
var (
	// ObjectManagerGUID identifies the object manager sequence block.
	ObjectManagerGUID = NewGUID(0x7cbb3b91, 0x4d660fca)

	// AttributeManagerGUID identifies the attribute manager data block.
	AttributeManagerGUID = NewGUID(0x3d242466, 0x00000000)

	// MessageManagerGUID identifies the message manager data block.
	MessageManagerGUID = NewGUID(0x466a0fac, 0x2686c0b4)

	// TimeManagerGUID identifies the time manager data block.
	TimeManagerGUID = NewGUID(0x89ce7b32, 0x3e6f0a14)
)

// Well known parameter type GUIDs, used by parameter chunks and the schema
// registry GUID index.
var (
	ParameterTypeInt    = NewGUID(0x5a5716fd, 0x42d45691)
	ParameterTypeFloat  = NewGUID(0x7a0177e6, 0x27b06bd2)
	ParameterTypeBool   = NewGUID(0x20a7f59c, 0x76c83d10)
	ParameterTypeString = NewGUID(0x1e72371c, 0x2b1f62e9)
	ParameterTypeVector = NewGUID(0x4e40afa1, 0x1ad16c84)
	ParameterTypeMatrix = NewGUID(0x37c16a5d, 0x624e09ab)
	ParameterTypeColor  = NewGUID(0x5c3f92a4, 0x780e1f30)
)
