// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

// Arena is a bump allocator with a single release point. Objects decoded
// during a load, their interned names and tail-allocated slices all come
// from the session arena and die together when it is reset.
type Arena struct {
	blocks    [][]byte
	cur       []byte
	used      int
	blockSize int
	total     int
}

// defaultArenaBlock is the size of freshly chained arena blocks.
const defaultArenaBlock = 64 << 10

// NewArena creates an arena. blockSize <= 0 picks the default block size.
func NewArena(blockSize int) *Arena {
	if blockSize <= 0 {
		blockSize = defaultArenaBlock
	}
	a := &Arena{blockSize: blockSize}
	a.cur = make([]byte, blockSize)
	a.blocks = append(a.blocks, a.cur)
	return a
}

// Bytes allocates n bytes inside the arena. Allocations larger than the
// block size get a dedicated block.
func (a *Arena) Bytes(n int) []byte {
	if n < 0 {
		return nil
	}
	if n > len(a.cur)-a.used {
		size := a.blockSize
		if n > size {
			size = n
		}
		block := make([]byte, size)
		// Keep the dedicated oversized block behind the current one so the
		// remaining space of cur is not wasted.
		if n > a.blockSize {
			a.blocks = append(a.blocks, block)
			a.total += n
			return block[:n]
		}
		a.blocks = append(a.blocks, block)
		a.cur = block
		a.used = 0
	}
	b := a.cur[a.used : a.used+n : a.used+n]
	a.used += n
	a.total += n
	return b
}

// Dwords allocates n DWORDs.
func (a *Arena) Dwords(n int) []uint32 {
	if n <= 0 {
		return nil
	}
	// Chunk payloads outlive individual reads, so they get their own
	// backing store rather than slicing the byte blocks.
	a.total += n * 4
	return make([]uint32, n)
}

// InternString copies s into the arena and returns the interned copy.
func (a *Arena) InternString(s string) string {
	if s == "" {
		return ""
	}
	b := a.Bytes(len(s))
	copy(b, s)
	return string(b)
}

// Used returns the number of bytes handed out since the last reset.
func (a *Arena) Used() int {
	return a.total
}

// Reset invalidates all outstanding allocations atomically. The first block
// is kept so short-lived sessions do not thrash the heap.
func (a *Arena) Reset() {
	a.blocks = a.blocks[:1]
	a.cur = a.blocks[0]
	a.used = 0
	a.total = 0
}
