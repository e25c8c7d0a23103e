package vkg

import (
	"fmt"
)

type Allocation struct {
	Offset uint64
	Size   uint64
}

func (a *Allocation) String() string {
	return fmt.Sprintf("[%d %d]", a.Offset, a.Size)
}

// End is the first byte past the allocation
func (a *Allocation) End() uint64 {
	return a.Offset + a.Size
}

// LinearAllocator hands out first fit ranges of a fixed size block, allocations
// are kept sorted by offset.
type LinearAllocator struct {
	Size   uint64
	allocs []*Allocation
}

func makeAlignUp(a uint64, align uint64) uint64 {
	if align <= 1 {
		return a
	}
	m := a % align
	if m == 0 {
		return a
	}
	a = (a - m) + align
	return a
}

func (p *LinearAllocator) Free(fa *Allocation) {
	for i, a := range p.allocs {
		if a == fa {
			p.allocs = append(p.allocs[:i], p.allocs[i+1:]...)
			return
		}
	}
}

// Allocate returns nil when no gap is large enough
func (p *LinearAllocator) Allocate(size uint64, align uint64) *Allocation {
	if size == 0 || size > p.Size {
		logger.Debugf("can't allocate %d from a block of %d", size, p.Size)
		return nil
	}

	var low uint64
	for i, c := range p.allocs {
		if c.Offset >= low && c.Offset-low >= size {
			na := &Allocation{Offset: low, Size: size}
			p.allocs = append(p.allocs[:i], append([]*Allocation{na}, p.allocs[i:]...)...)
			return na
		}
		low = makeAlignUp(c.End(), align)
	}

	if low <= p.Size && p.Size-low >= size {
		na := &Allocation{Offset: low, Size: size}
		p.allocs = append(p.allocs, na)
		return na
	}
	logger.Debugf("no gap of %d in %s", size, p)
	return nil
}

// Used is the sum of the live allocation sizes
func (p *LinearAllocator) Used() uint64 {
	var n uint64
	for _, a := range p.allocs {
		n += a.Size
	}
	return n
}

func (p *LinearAllocator) String() string {
	return fmt.Sprintf("%v", p.allocs)
}
