package guest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

// PageSize is the mapping granularity of a Space.
const PageSize = 4096

// DefaultBase is where the bump allocator starts handing out memory.
// The first pages stay unmapped so small bogus pointers fault.
const DefaultBase = 0x10000

// ErrFault is wrapped by every error caused by touching unmapped memory.
var ErrFault = errors.New("guest: fault")

// FaultError reports the first address that could not be accessed.
type FaultError struct {
	Addr  uint64
	Write bool
}

// Error implements the error interface.
func (e *FaultError) Error() string {
	op := "read"
	if e.Write {
		op = "write"
	}
	return fmt.Sprintf("guest: fault: %s at %#x", op, e.Addr)
}

// Is makes errors.Is(err, ErrFault) match.
func (e *FaultError) Is(target error) bool {
	return target == ErrFault
}

// Space is a sparse guest address space with a symbolic shadow.
//
// Thread-safety: all methods are safe for concurrent use.
type Space struct {
	mu       sync.RWMutex
	pages    map[uint64][]byte
	symbolic map[uint64]string // byte address -> label
	brk      uint64
}

// NewSpace creates an empty address space.
func NewSpace() *Space {
	return &Space{
		pages:    make(map[uint64][]byte),
		symbolic: make(map[uint64]string),
		brk:      DefaultBase,
	}
}

// Map makes [addr, addr+n) accessible. Mapping page 0 is refused.
func (s *Space) Map(addr, n uint64) error {
	if n == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapLocked(addr, n)
}

func (s *Space) mapLocked(addr, n uint64) error {
	first := addr / PageSize
	last := (addr + n - 1) / PageSize
	if first == 0 {
		return fmt.Errorf("guest: refusing to map the zero page")
	}
	for p := first; p <= last; p++ {
		if _, ok := s.pages[p]; !ok {
			s.pages[p] = make([]byte, PageSize)
		}
	}
	return nil
}

// Alloc maps n bytes of fresh zeroed memory and returns its address.
// Allocations are 16-byte aligned and separated by an unmapped guard page,
// so running off the end of a buffer faults instead of corrupting a neighbour.
func (s *Space) Alloc(n uint64) uint64 {
	if n == 0 {
		n = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	addr := (s.brk + 15) &^ 15
	_ = s.mapLocked(addr, n)
	end := addr + n
	s.brk = (end+PageSize-1)/PageSize*PageSize + PageSize
	return addr
}

// Read copies n bytes starting at addr.
func (s *Space) Read(addr, n uint64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkLocked(addr, n, false); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	_ = s.readLocked(addr, out)
	return out, nil
}

func (s *Space) readLocked(addr uint64, out []byte) error {
	for i := range out {
		a := addr + uint64(i)
		page, ok := s.pages[a/PageSize]
		if !ok {
			return &FaultError{Addr: a}
		}
		out[i] = page[a%PageSize]
	}
	return nil
}

// Write stores p at addr. Written bytes become concrete.
func (s *Space) Write(addr uint64, p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(addr, uint64(len(p)), true); err != nil {
		return err
	}
	for i, b := range p {
		a := addr + uint64(i)
		s.pages[a/PageSize][a%PageSize] = b
		delete(s.symbolic, a)
	}
	return nil
}

// checkLocked walks [addr, addr+n) a page at a time and reports the first
// unmapped address. A range that wraps past the top of the address space
// reaches page 0, which is never mapped.
func (s *Space) checkLocked(addr, n uint64, write bool) error {
	for n > 0 {
		if _, ok := s.pages[addr/PageSize]; !ok {
			return &FaultError{Addr: addr, Write: write}
		}
		step := PageSize - addr%PageSize
		if step >= n {
			return nil
		}
		addr += step
		n -= step
	}
	return nil
}

// Move copies n bytes from src to dst together with their symbolic labels,
// the way a byte copy inside the guest propagates symbolic data.
// Overlapping ranges behave like memmove.
func (s *Space) Move(dst, src, n uint64) error {
	if n == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(src, n, false); err != nil {
		return err
	}
	if err := s.checkLocked(dst, n, true); err != nil {
		return err
	}

	buf := make([]byte, n)
	_ = s.readLocked(src, buf)
	labels := make(map[uint64]string)
	for i := uint64(0); i < n; i++ {
		if l, ok := s.symbolic[src+i]; ok {
			labels[i] = l
		}
	}
	for i := uint64(0); i < n; i++ {
		a := dst + i
		s.pages[a/PageSize][a%PageSize] = buf[i]
		if l, ok := labels[i]; ok {
			s.symbolic[a] = l
		} else {
			delete(s.symbolic, a)
		}
	}
	return nil
}

// Byte reads a single byte.
func (s *Space) Byte(addr uint64) (byte, error) {
	var b [1]byte
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readLocked(addr, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// Unit reads one little-endian character unit of the given width (1, 2 or 4).
func (s *Space) Unit(addr uint64, width int) (uint32, error) {
	var b [4]byte
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readLocked(addr, b[:width]); err != nil {
		return 0, err
	}
	switch width {
	case 1:
		return uint32(b[0]), nil
	case 2:
		return uint32(binary.LittleEndian.Uint16(b[:2])), nil
	default:
		return binary.LittleEndian.Uint32(b[:4]), nil
	}
}

// PutUnit writes one little-endian character unit.
func (s *Space) PutUnit(addr uint64, width int, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return s.Write(addr, b[:width])
}

// Fill writes count units of value v starting at addr. Nothing is written
// unless the whole range is mapped.
func (s *Space) Fill(addr uint64, width int, v uint32, count uint64) error {
	var unit [4]byte
	binary.LittleEndian.PutUint32(unit[:], v)
	w := uint64(width)
	n := count * w
	if w != 0 && n/w != count {
		n = math.MaxUint64
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(addr, n, true); err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		a := addr + i
		s.pages[a/PageSize][a%PageSize] = unit[i%w]
		delete(s.symbolic, a)
	}
	return nil
}

// Uint reads a little-endian unsigned integer of size 1, 2, 4 or 8 bytes.
func (s *Space) Uint(addr uint64, size int) (uint64, error) {
	b, err := s.Read(addr, uint64(size))
	if err != nil {
		return 0, err
	}
	var full [8]byte
	copy(full[:], b)
	return binary.LittleEndian.Uint64(full[:]), nil
}

// PutUint writes a little-endian unsigned integer of size 1, 2, 4 or 8 bytes.
func (s *Space) PutUint(addr uint64, size int, v uint64) error {
	var full [8]byte
	binary.LittleEndian.PutUint64(full[:], v)
	return s.Write(addr, full[:size])
}

// MakeSymbolic labels [addr, addr+n) as symbolic. The concrete bytes are
// kept (concolic marking).
func (s *Space) MakeSymbolic(addr, n uint64, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(addr, n, false); err != nil {
		return fmt.Errorf("make symbolic %q: %w", label, err)
	}
	for i := uint64(0); i < n; i++ {
		s.symbolic[addr+i] = label
	}
	return nil
}

// IsSymbolic reports whether any byte of [addr, addr+n) is symbolic.
// Unmapped memory is never symbolic.
func (s *Space) IsSymbolic(addr, n uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n > uint64(len(s.symbolic)) {
		for a := range s.symbolic {
			if a-addr < n {
				return true
			}
		}
		return false
	}
	for i := uint64(0); i < n; i++ {
		if _, ok := s.symbolic[addr+i]; ok {
			return true
		}
	}
	return false
}

// Labels returns the distinct symbolic labels, sorted.
func (s *Space) Labels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	for _, l := range s.symbolic {
		seen[l] = true
	}
	labels := make([]string, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// Clone returns a deep copy, including the shadow and the allocator position.
func (s *Space) Clone() *Space {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := &Space{
		pages:    make(map[uint64][]byte, len(s.pages)),
		symbolic: make(map[uint64]string, len(s.symbolic)),
		brk:      s.brk,
	}
	for k, p := range s.pages {
		c.pages[k] = append([]byte(nil), p...)
	}
	for k, l := range s.symbolic {
		c.symbolic[k] = l
	}
	return c
}
