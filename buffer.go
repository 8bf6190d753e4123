// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

// dwordBuffer is the growable DWORD sequence backing a chunk payload.
type dwordBuffer struct {
	data []uint32
}

// ensureCapacity grows the buffer so that at least extra more DWORDs fit
// past length. Growth doubles the capacity.
func (b *dwordBuffer) ensureCapacity(extra int) {
	need := len(b.data) + extra
	if need <= cap(b.data) {
		return
	}
	newCap := cap(b.data) * 2
	if newCap < need {
		newCap = need
	}
	if newCap < 16 {
		newCap = 16
	}
	grown := make([]uint32, len(b.data), newCap)
	copy(grown, b.data)
	b.data = grown
}

// extend appends n zero DWORDs and returns the index of the first.
func (b *dwordBuffer) extend(n int) int {
	b.ensureCapacity(n)
	at := len(b.data)
	b.data = b.data[:at+n]
	return at
}

// len returns the DWORD count.
func (b *dwordBuffer) len() int {
	return len(b.data)
}

// truncate drops everything past n DWORDs.
func (b *dwordBuffer) truncate(n int) {
	if n < len(b.data) {
		b.data = b.data[:n]
	}
}

// reset empties the buffer keeping the backing store.
func (b *dwordBuffer) reset() {
	b.data = b.data[:0]
}
