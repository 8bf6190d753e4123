// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

// Math value types serialized by the chunk codec. Layouts follow the wire
// format: consecutive little-endian 32-bit floats, matrices row-major.

// Vector2 is a two component vector.
type Vector2 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Vector3 is a three component vector.
type Vector3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Vector4 is a four component vector.
type Vector4 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
	W float32 `json:"w"`
}

// Quaternion is a rotation stored as (x, y, z, w).
type Quaternion struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
	W float32 `json:"w"`
}

// Color is an RGBA color with float components.
type Color struct {
	R float32 `json:"r"`
	G float32 `json:"g"`
	B float32 `json:"b"`
	A float32 `json:"a"`
}

// Matrix is a 4x4 row-major transform.
type Matrix [16]float32

// IdentityMatrix returns the identity transform.
func IdentityMatrix() Matrix {
	return Matrix{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}
