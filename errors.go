// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

import (
	"errors"
	"fmt"
)

// ErrorKind tags an Error with its failure category. The tag set is stable
// and shared with the other language bindings of the format.
type ErrorKind int

// Error kinds.
const (
	KindInvalidArgument ErrorKind = iota + 1
	KindNoMemory
	KindEndOfBuffer
	KindNotFound
	KindOutOfBounds
	KindInvalidState
	KindInvalidFormat
	KindUnsupportedVersion
	KindValidationFailed
	KindChunkWriteFailed
	KindIoError
	KindCompressionError
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindNoMemory:
		return "NoMemory"
	case KindEndOfBuffer:
		return "EndOfBuffer"
	case KindNotFound:
		return "NotFound"
	case KindOutOfBounds:
		return "OutOfBounds"
	case KindInvalidState:
		return "InvalidState"
	case KindInvalidFormat:
		return "InvalidFormat"
	case KindUnsupportedVersion:
		return "UnsupportedVersion"
	case KindValidationFailed:
		return "ValidationFailed"
	case KindChunkWriteFailed:
		return "ChunkWriteFailed"
	case KindIoError:
		return "IoError"
	case KindCompressionError:
		return "CompressionError"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is a kind-tagged error with an optional cause chain.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

// Error renders the kind, message and cause chain.
func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches against the kind sentinels so errors.Is works across wraps.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
	}
	return false
}

// errKind builds a bare kind error.
func errKind(kind ErrorKind, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, a...)}
}

// wrapKind attaches a cause to a kind error.
func wrapKind(kind ErrorKind, err error, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, a...), Err: err}
}

// KindOf extracts the kind of err, walking the cause chain. Returns 0 when
// no kind-tagged error is found.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Kind sentinels, comparable with errors.Is.
var (
	ErrInvalidArgument    = &Error{Kind: KindInvalidArgument}
	ErrNoMemory           = &Error{Kind: KindNoMemory}
	ErrEndOfBuffer        = &Error{Kind: KindEndOfBuffer}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrOutOfBounds        = &Error{Kind: KindOutOfBounds}
	ErrInvalidState       = &Error{Kind: KindInvalidState}
	ErrInvalidFormat      = &Error{Kind: KindInvalidFormat}
	ErrUnsupportedVersion = &Error{Kind: KindUnsupportedVersion}
	ErrValidationFailed   = &Error{Kind: KindValidationFailed}
	ErrChunkWriteFailed   = &Error{Kind: KindChunkWriteFailed}
	ErrIoError            = &Error{Kind: KindIoError}
	ErrCompressionError   = &Error{Kind: KindCompressionError}
)

// Format level errors.
var (

	// ErrInvalidSignature is returned when the file does not begin with
	// "Nemo Fi\0".
	ErrInvalidSignature = errKind(KindInvalidFormat, "file signature mismatch, not a composition file")

	// ErrFileTooSmall is returned when the input is smaller than the fixed
	// header.
	ErrFileTooSmall = errKind(KindInvalidFormat, "file smaller than the fixed header")

	// ErrFileVersion is returned when the header file version falls outside
	// the supported 2..9 range.
	ErrFileVersion = errKind(KindUnsupportedVersion, "file version out of the supported range")

	// ErrHeaderCRC is returned when the Adler-32 of the decompressed
	// Header1 region does not match the header field.
	ErrHeaderCRC = errKind(KindInvalidFormat, "Header1 CRC mismatch")

	// ErrLegacyChunk is returned for chunks older than envelope version 4,
	// which used magic-marker ID tables instead of offset lists.
	ErrLegacyChunk = errKind(KindUnsupportedVersion, "chunk version older than 4 is not supported")
)
