// region.go - Named spans of the physical address space

/*
License: GPLv3 or later
*/

package main

import (
	"encoding/binary"
	"fmt"
)

// RegionKind selects how a region backs its accesses.
type RegionKind int

const (
	RegionRAM RegionKind = iota
	RegionROM
	RegionMMIO
)

func (k RegionKind) String() string {
	switch k {
	case RegionRAM:
		return "RAM"
	case RegionROM:
		return "ROM"
	case RegionMMIO:
		return "MMIO"
	}
	return fmt.Sprintf("RegionKind(%d)", int(k))
}

// Region is a fixed span [Base, Base+Size) with one backing behaviour.
//
// RAM and ROM regions own their bytes. MMIO regions own none: every access is
// forwarded to the bound handler. ROM content is written once through Seed
// during boot and is read-only from the CPU side for the rest of the run.
type Region struct {
	Name string
	Base uint32
	Size uint32
	Kind RegionKind

	data    []byte
	release func() error

	mmio *MMIOBinding

	// Set when the region is mapped into an address space.
	order binary.ByteOrder
	diag  *Diagnostics

	seeded    bool
	committed bool
}

func checkRegionSpan(name string, base, size uint32) error {
	if size == 0 {
		return fmt.Errorf("region %q: zero size", name)
	}
	if uint64(base)+uint64(size) > 1<<32 {
		return fmt.Errorf("region %q: [0x%08X+0x%X] runs past the end of the address space", name, base, size)
	}
	return nil
}

// NewRAMRegion allocates a zeroed read/write region.
func NewRAMRegion(name string, base, size uint32) (*Region, error) {
	if err := checkRegionSpan(name, base, size); err != nil {
		return nil, err
	}
	data, release, err := allocBacking(size)
	if err != nil {
		return nil, fmt.Errorf("region %q: %w", name, err)
	}
	return &Region{
		Name:    name,
		Base:    base,
		Size:    size,
		Kind:    RegionRAM,
		data:    data,
		release: release,
		order:   binary.BigEndian,
	}, nil
}

// NewROMRegion allocates a zeroed region that only Seed can fill.
func NewROMRegion(name string, base, size uint32) (*Region, error) {
	if err := checkRegionSpan(name, base, size); err != nil {
		return nil, err
	}
	return &Region{
		Name:  name,
		Base:  base,
		Size:  size,
		Kind:  RegionROM,
		data:  make([]byte, size),
		order: binary.BigEndian,
	}, nil
}

// NewMMIORegion binds handler to the span for the region's whole lifetime.
// periphery is the byte order the device expects values in.
func NewMMIORegion(name string, base, size uint32, handler MMIOHandler, periphery binary.ByteOrder) (*Region, error) {
	if err := checkRegionSpan(name, base, size); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, fmt.Errorf("region %q: nil MMIO handler", name)
	}
	if periphery == nil {
		periphery = binary.BigEndian
	}
	return &Region{
		Name:  name,
		Base:  base,
		Size:  size,
		Kind:  RegionMMIO,
		mmio:  &MMIOBinding{handler: handler, order: periphery},
		order: binary.BigEndian,
	}, nil
}

// End is one past the last address of the region.
func (r *Region) End() uint64 {
	return uint64(r.Base) + uint64(r.Size)
}

// Contains reports whether addr falls inside the region.
func (r *Region) Contains(addr uint32) bool {
	return addr >= r.Base && uint64(addr) < r.End()
}

// Handler returns the bound MMIO handler, or nil for storage regions.
func (r *Region) Handler() MMIOHandler {
	if r.mmio == nil {
		return nil
	}
	return r.mmio.handler
}

func (r *Region) checkBounds(offset uint32, size AccessSize) error {
	if !size.Valid() {
		return ErrBadAccessSize
	}
	if uint64(offset)+uint64(size) > uint64(r.Size) {
		return &OutOfBoundsError{Region: r.Name, Offset: offset, Size: size, Limit: r.Size}
	}
	return nil
}

// Read returns size bytes at offset, decoded in the CPU byte order for
// storage regions and dispatched to the handler for MMIO.
func (r *Region) Read(offset uint32, size AccessSize) (uint64, error) {
	if err := r.checkBounds(offset, size); err != nil {
		return 0, err
	}
	if r.Kind == RegionMMIO {
		return r.mmio.read(r, offset, size), nil
	}
	return loadValue(r.order, r.data[offset:], size), nil
}

// Write stores size bytes at offset. ROM rejects every write on this path.
func (r *Region) Write(offset uint32, size AccessSize, value uint64) error {
	if err := r.checkBounds(offset, size); err != nil {
		return err
	}
	switch r.Kind {
	case RegionMMIO:
		r.mmio.write(r, offset, size, value)
		return nil
	case RegionROM:
		return &ReadOnlyViolationError{Region: r.Name, Offset: offset, Size: size}
	}
	storeValue(r.order, r.data[offset:], size, value)
	return nil
}

// Seed copies image to the start of a ROM region. It is the boot-seed path
// and may run once, before Commit.
func (r *Region) Seed(image []byte) error {
	if r.Kind != RegionROM {
		return fmt.Errorf("region %q: seed on %s region", r.Name, r.Kind)
	}
	if r.committed || r.seeded {
		return fmt.Errorf("region %q: boot seed already done", r.Name)
	}
	if uint64(len(image)) > uint64(r.Size) {
		return fmt.Errorf("region %q: seed of %d bytes exceeds size 0x%X", r.Name, len(image), r.Size)
	}
	copy(r.data, image)
	r.seeded = true
	return nil
}

// Commit closes the boot-seed phase.
func (r *Region) Commit() {
	r.committed = true
}

// Committed reports whether the boot-seed phase is over.
func (r *Region) Committed() bool {
	return r.committed
}

// Peek copies stored bytes without going through a handler. MMIO regions
// have no storage and read as zero.
func (r *Region) Peek(offset uint32, buf []byte) int {
	if offset >= r.Size {
		return 0
	}
	n := min(len(buf), int(r.Size-offset))
	if r.data == nil {
		clear(buf[:n])
		return n
	}
	return copy(buf[:n], r.data[offset:])
}

// Close releases the region's backing store. The MMIO handler is not
// closed; its device belongs to whoever built the machine.
func (r *Region) Close() error {
	var err error
	if r.release != nil {
		err = r.release()
		r.release = nil
	}
	r.data = nil
	return err
}

func loadValue(order binary.ByteOrder, b []byte, size AccessSize) uint64 {
	switch size {
	case AccessByte:
		return uint64(b[0])
	case AccessHalf:
		return uint64(order.Uint16(b))
	case AccessWord:
		return uint64(order.Uint32(b))
	}
	return order.Uint64(b)
}

func storeValue(order binary.ByteOrder, b []byte, size AccessSize, value uint64) {
	switch size {
	case AccessByte:
		b[0] = uint8(value)
	case AccessHalf:
		order.PutUint16(b, uint16(value))
	case AccessWord:
		order.PutUint32(b, uint32(value))
	default:
		order.PutUint64(b, value)
	}
}
