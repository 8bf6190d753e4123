// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package nmo reads and writes Virtools NMO/CMO composition files: a
// DWORD-granular, chunked binary container storing a cross-referenced graph
// of scene objects together with per-class-versioned typed data. Files parse
// into an in-memory object graph that can be queried, mutated, and
// re-emitted byte-compatibly.
package nmo

// File signature and identifiers.
const (

	// Every composition file begins with the 8-byte signature "Nemo Fi\0".
	// Nemo was the internal name of the product that became Virtools Dev.
	Signature = "Nemo Fi\x00"

	// SignatureSize is the byte length of the signature prefix.
	SignatureSize = 8

	// FileHeaderSize is the byte length of the fixed file header, the
	// signature plus eleven little-endian DWORD fields.
	FileHeaderSize = SignatureSize + 11*4

	// MinFileVersion and MaxFileVersion bound the supported range of the
	// file version field. Files outside the range are rejected.
	MinFileVersion = 2
	MaxFileVersion = 9

	// CKVersion is the toolkit version stamped into the header master
	// version field on save.
	CKVersion = 0x05000000
)

// File write mode flags, stored in the header file_write_mode field.
const (

	// FileWriteModeIncludeReferences saves objects referenced by the saved
	// set even when they were not explicitly listed.
	FileWriteModeIncludeReferences = 0x00000001

	// FileWriteModeExcludeReferences saves only the listed objects and
	// stores bare reference stubs for everything else.
	FileWriteModeExcludeReferences = 0x00000002

	// FileWriteModeCompressData compresses the Header1 region and the data
	// section with a deflate codec.
	FileWriteModeCompressData = 0x00000008
)

// Object identifier space. Runtime IDs and file indices share the type but
// never the numeric space within one session.
const (

	// IDNone marks the absence of an object.
	IDNone = ID(0)

	// IDInvalid is the reserved invalid identifier.
	IDInvalid = ID(0xFFFFFFFF)

	// IDReferenceBit flags an identifier as a reference to an external
	// object rather than one contained in the file.
	IDReferenceBit = ID(0x00800000)
)

// ID identifies an object, either at runtime (repository scope) or inside a
// saved file (file-index scope).
type ID uint32

// IsReference reports whether the reference bit is set.
func (id ID) IsReference() bool {
	return id&IDReferenceBit != 0
}

// Valid reports whether the identifier denotes an actual object.
func (id ID) Valid() bool {
	return id != IDNone && id != IDInvalid
}

// ClassID places an object in the inheritance tree rooted at ClassObject.
type ClassID uint32

// ClassInvalid is the reserved invalid class identifier.
const ClassInvalid = ClassID(0xFFFFFFFF)

// Load flags accepted by Session.LoadFile.
type LoadFlags uint32

const (
	// LoadValidate runs schema validation on every decoded object.
	LoadValidate LoadFlags = 1 << iota

	// LoadDoDialog is accepted for API compatibility; the library never
	// opens dialogs and the flag is ignored.
	LoadDoDialog

	// LoadAutomaticMode suppresses all interactive resolution and picks
	// defaults.
	LoadAutomaticMode

	// LoadCheckDuplicates rejects objects whose name collides with an
	// object already present in the repository.
	LoadCheckDuplicates

	// LoadAsDynamicObject marks every created object as dynamic.
	LoadAsDynamicObject

	// LoadOnlyBehaviors materializes behavior-derived classes only.
	LoadOnlyBehaviors

	// LoadCheckDependencies makes unresolved plugin dependencies fatal.
	LoadCheckDependencies

	// LoadSkipIndexBuild detaches the repository's secondary index before
	// the loaded objects are added, so they are not indexed.
	LoadSkipIndexBuild
)

// Save flags accepted by Session.SaveFile.
type SaveFlags uint32

const (
	// SaveDefault writes the data section uncompressed.
	SaveDefault SaveFlags = 0

	// SaveCompress compresses chunks, the Header1 region and the data
	// section.
	SaveCompress SaveFlags = 1 << iota
)
