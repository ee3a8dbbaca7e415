// Package mem implements the page-granular allocator shared by the kernel
// for thread stacks and application heap data: a bitmap over a fixed
// region of RAM, carved into P fixed-size pages of S bytes, searched
// top-down or bottom-up per caller hint.
package mem

import (
	"errors"
	"unsafe"

	"zero/internal/bitset"
)

// ErrOutOfMemory is returned when no contiguous run of free pages satisfies
// a request.
var ErrOutOfMemory = errors.New("mem: out of memory")

// Strategy selects the direction the allocator searches for a free run.
// Neither strategy guarantees placement; it is a hint used to segregate
// stack allocations from data buffers to reduce fragmentation.
type Strategy int

const (
	// BottomUp scans page indices ascending.
	BottomUp Strategy = iota
	// TopDown scans page indices descending.
	TopDown
)

const wordBits = 64

// Allocator owns a bitmap of one bit per page over a contiguous byte
// region. A page is free or used; there is no per-owner tracking. The
// kernel's allocation wrappers do not call Forbid around these calls;
// Allocator serializes its own mutations via mu, since the host simulator
// runs threads as real goroutines.
type Allocator struct {
	mu       chan struct{} // 1-buffered channel used as a non-reentrant lock
	region   []byte
	pageSize uintptr
	numPages int
	used     []uint64
	freeN    int
}

// New creates an allocator over region, carved into pages of pageSize
// bytes. Any trailing bytes that don't fill a whole page are unusable.
func New(region []byte, pageSize uintptr) *Allocator {
	if pageSize == 0 {
		panic("mem: pageSize must be non-zero")
	}
	numPages := int(uintptr(len(region)) / pageSize)
	a := &Allocator{
		mu:       make(chan struct{}, 1),
		region:   region,
		pageSize: pageSize,
		numPages: numPages,
		used:     make([]uint64, (numPages+wordBits-1)/wordBits),
		freeN:    numPages,
	}
	a.mu <- struct{}{}
	return a
}

// PageSize returns the fixed page size in bytes.
func (a *Allocator) PageSize() uintptr { return a.pageSize }

// NumPages returns the total number of pages managed.
func (a *Allocator) NumPages() int { return a.numPages }

// FreePages returns the number of currently unused pages.
func (a *Allocator) FreePages() int {
	a.lock()
	defer a.unlock()
	return a.freeN
}

func (a *Allocator) lock()   { <-a.mu }
func (a *Allocator) unlock() { a.mu <- struct{}{} }

func (a *Allocator) pagesFor(n uintptr) int {
	return int((n + a.pageSize - 1) / a.pageSize)
}

func (a *Allocator) pageUsed(i int) bool {
	return bitset.Test(a.used[i/wordBits], i%wordBits)
}

func (a *Allocator) setPage(i int, used bool) {
	w, b := i/wordBits, i%wordBits
	if used {
		a.used[w] |= bitset.OneHot[uint64](b)
	} else {
		a.used[w] &^= bitset.OneHot[uint64](b)
	}
}

// Allocate finds the smallest run of contiguous free pages whose byte
// total is >= n, marks them used, and returns the base address and the
// rounded-up size.
func (a *Allocator) Allocate(n uintptr, strategy Strategy) (unsafe.Pointer, uintptr, error) {
	if n == 0 {
		n = 1
	}
	need := a.pagesFor(n)

	a.lock()
	defer a.unlock()

	start, ok := a.findRun(need, strategy)
	if !ok {
		return nil, 0, ErrOutOfMemory
	}
	for i := start; i < start+need; i++ {
		a.setPage(i, true)
	}
	a.freeN -= need

	ptr := unsafe.Pointer(&a.region[start*int(a.pageSize)])
	return ptr, uintptr(need) * a.pageSize, nil
}

// findRun scans for the first (in the strategy's direction) run of need
// contiguous free pages. Both directions restart the candidate run on any
// used page encountered.
func (a *Allocator) findRun(need int, strategy Strategy) (int, bool) {
	if need <= 0 || need > a.numPages {
		return 0, false
	}
	switch strategy {
	case BottomUp:
		run := 0
		for i := 0; i < a.numPages; i++ {
			if a.pageUsed(i) {
				run = 0
				continue
			}
			run++
			if run == need {
				return i - need + 1, true
			}
		}
	case TopDown:
		run := 0
		for i := a.numPages - 1; i >= 0; i-- {
			if a.pageUsed(i) {
				run = 0
				continue
			}
			run++
			if run == need {
				return i, true
			}
		}
	}
	return 0, false
}

// Free marks the page range covering [ptr, ptr+n) free. Behaviour is
// undefined if the range was not previously returned by Allocate.
func (a *Allocator) Free(ptr unsafe.Pointer, n uintptr) {
	if ptr == nil || n == 0 {
		return
	}
	start := a.indexOf(ptr)
	pages := a.pagesFor(n)

	a.lock()
	defer a.unlock()

	for i := start; i < start+pages; i++ {
		if a.pageUsed(i) {
			a.freeN++
		}
		a.setPage(i, false)
	}
}

// Reallocate finds a new range of newN bytes, copies min(oldN, newN)
// bytes from the old range, and frees the old range. In-place extension
// is not attempted; a fresh run is always used.
func (a *Allocator) Reallocate(ptr unsafe.Pointer, oldN, newN uintptr, strategy Strategy) (unsafe.Pointer, uintptr, error) {
	newPtr, actual, err := a.Allocate(newN, strategy)
	if err != nil {
		return nil, 0, err
	}
	if ptr != nil {
		toCopy := oldN
		if newN < toCopy {
			toCopy = newN
		}
		if toCopy > 0 {
			oldSlice := unsafe.Slice((*byte)(ptr), toCopy)
			newSlice := unsafe.Slice((*byte)(newPtr), toCopy)
			copy(newSlice, oldSlice)
		}
		a.Free(ptr, oldN)
	}
	return newPtr, actual, nil
}

func (a *Allocator) indexOf(ptr unsafe.Pointer) int {
	base := uintptr(unsafe.Pointer(&a.region[0]))
	off := uintptr(ptr) - base
	return int(off / a.pageSize)
}

// Bytes returns a byte slice view of the memory range starting at ptr with
// length n, backed by the allocator's own region. This is how the kernel
// hands a fabricated stack region to the platform layer without a second
// copy of the underlying storage.
func (a *Allocator) Bytes(ptr unsafe.Pointer, n uintptr) []byte {
	return unsafe.Slice((*byte)(ptr), n)
}
