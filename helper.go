// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

import "encoding/binary"

// dwordCount returns the number of DWORDs needed to hold n bytes.
func dwordCount(n int) int {
	return (n + 3) / 4
}

// dwordsToBytes renders a DWORD slice as little-endian bytes.
func dwordsToBytes(dwords []uint32) []byte {
	out := make([]byte, len(dwords)*4)
	for i, d := range dwords {
		binary.LittleEndian.PutUint32(out[i*4:], d)
	}
	return out
}

// bytesToDwords packs little-endian bytes into DWORDs, zero padding the
// trailing partial word.
func bytesToDwords(b []byte) []uint32 {
	n := dwordCount(len(b))
	out := make([]uint32, n)
	for i := 0; i < n; i++ {
		var w [4]byte
		copy(w[:], b[i*4:])
		out[i] = binary.LittleEndian.Uint32(w[:])
	}
	return out
}

// copyBytesToDwords writes b into dst starting at DWORD index at, zero
// padding the final partial word. dst must already be large enough.
func copyBytesToDwords(dst []uint32, at int, b []byte) {
	n := dwordCount(len(b))
	for i := 0; i < n; i++ {
		var w [4]byte
		copy(w[:], b[i*4:])
		dst[at+i] = binary.LittleEndian.Uint32(w[:])
	}
}

// copyDwordsToBytes extracts n bytes from src starting at DWORD index at.
func copyDwordsToBytes(src []uint32, at, n int) []byte {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		d := src[at+i/4]
		out[i] = byte(d >> (8 * uint(i%4)))
	}
	return out
}

// Max returns the larger of x or y.
func Max(x, y uint32) uint32 {
	if x < y {
		return y
	}
	return x
}

// Min returns the smaller of x or y.
func Min(x, y uint32) uint32 {
	if x > y {
		return y
	}
	return x
}
