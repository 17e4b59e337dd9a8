// address_space.go - Physical address space for the Starlet machine

/*
License: GPLv3 or later
*/

/*
address_space.go - Address Space

The address space owns every region of one machine and routes each CPU access
to exactly one of them. It replaces a flat memory block with page-keyed I/O
hooks: the Starlet map is sparse (24MB at 0, 64MB at 0x10000000, 8KB at the
top of memory), so regions are kept sorted by base and found with a binary
search plus a one-entry cache of the last region hit.

Core rules:

    Regions never overlap. Map rejects a region that intersects one already
    present and leaves the map unchanged.
    An access must sit wholly inside one region. Accesses that start in a
    region and run past its end are unmapped; they are never split across
    neighbours.
    The map is static once sealed. Map after Seal panics, mirroring how the
    bus refuses late I/O mappings once execution has started.
    Access widths are 1, 2, 4 and 8 bytes.

Policies decide what a failed access does. Degrade returns the fill value
(or drops the write) and records a diagnostic; Abort returns the typed error
and latches it as the machine fault. Unknown MMIO offsets are not failures:
they always degrade inside the dispatch layer.

There is no locking. One CPU component issues accesses synchronously and
nothing else mutates the regions while it runs.
*/

package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

// AccessSize is the width of a bus access in bytes.
type AccessSize uint8

const (
	AccessByte   AccessSize = 1
	AccessHalf   AccessSize = 2
	AccessWord   AccessSize = 4
	AccessDouble AccessSize = 8
)

// Valid reports whether the width is one the bus supports.
func (s AccessSize) Valid() bool {
	switch s {
	case AccessByte, AccessHalf, AccessWord, AccessDouble:
		return true
	}
	return false
}

// AccessDirection distinguishes reads from writes.
type AccessDirection int

const (
	AccessRead AccessDirection = iota
	AccessWrite
)

func (d AccessDirection) String() string {
	if d == AccessWrite {
		return "write"
	}
	return "read"
}

// Policy controls what a failed access does to the machine.
type Policy int

const (
	// PolicyDegrade returns a fill value or drops the write and records a diagnostic.
	PolicyDegrade Policy = iota
	// PolicyAbort returns the error and latches it as the machine fault.
	PolicyAbort
)

func (p Policy) String() string {
	if p == PolicyAbort {
		return "abort"
	}
	return "degrade"
}

// ParsePolicy accepts degrade/ignore and abort/strict.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "degrade", "ignore":
		return PolicyDegrade, nil
	case "abort", "strict":
		return PolicyAbort, nil
	}
	return PolicyDegrade, fmt.Errorf("unknown policy %q (want degrade or abort)", s)
}

// BusConfig is fixed when the address space is built.
type BusConfig struct {
	// CPUOrder is the byte order storage is decoded in for CPU accesses.
	CPUOrder binary.ByteOrder

	Unmapped     Policy
	UnmappedFill uint64
	ROMWrites    Policy
	Bounds       Policy
}

// DefaultBusConfig matches the Starlet machine: a big-endian core and bus
// faults on unmapped accesses. ROM writes are dropped.
func DefaultBusConfig() BusConfig {
	return BusConfig{
		CPUOrder:  binary.BigEndian,
		Unmapped:  PolicyAbort,
		ROMWrites: PolicyDegrade,
		Bounds:    PolicyDegrade,
	}
}

// AddressSpace is the set of regions owned by one machine instance.
type AddressSpace struct {
	cfg  BusConfig
	diag *Diagnostics

	regions []*Region
	last    *Region

	sealed atomic.Bool
	fault  error
}

// NewAddressSpace creates an empty address space.
func NewAddressSpace(cfg BusConfig, diag *Diagnostics) *AddressSpace {
	if cfg.CPUOrder == nil {
		cfg.CPUOrder = binary.BigEndian
	}
	return &AddressSpace{cfg: cfg, diag: diag}
}

// Config returns the bus configuration.
func (as *AddressSpace) Config() BusConfig {
	return as.cfg
}

// Diagnostics returns the sink runtime conditions are recorded in.
func (as *AddressSpace) Diagnostics() *Diagnostics {
	return as.diag
}

// Map adds r to the address space and takes ownership of it.
func (as *AddressSpace) Map(r *Region) error {
	if r == nil {
		return errors.New("map: nil region")
	}
	if as.sealed.Load() {
		panic(fmt.Sprintf("Map called after the address space was sealed (region %q at $%08X)", r.Name, r.Base))
	}
	if err := checkRegionSpan(r.Name, r.Base, r.Size); err != nil {
		return err
	}
	for _, existing := range as.regions {
		if existing == r || existing.Name == r.Name {
			return fmt.Errorf("map: region %q already mapped", r.Name)
		}
	}

	// First region whose base is above the new one.
	idx := sort.Search(len(as.regions), func(i int) bool {
		return as.regions[i].Base > r.Base
	})
	if idx > 0 {
		if prev := as.regions[idx-1]; prev.End() > uint64(r.Base) {
			return overlapError(r, prev)
		}
	}
	if idx < len(as.regions) {
		if next := as.regions[idx]; uint64(next.Base) < r.End() {
			return overlapError(r, next)
		}
	}

	r.order = as.cfg.CPUOrder
	r.diag = as.diag

	as.regions = append(as.regions, nil)
	copy(as.regions[idx+1:], as.regions[idx:])
	as.regions[idx] = r
	return nil
}

func overlapError(r, existing *Region) *OverlapError {
	return &OverlapError{
		Region:   r.Name,
		Base:     r.Base,
		Size:     r.Size,
		Existing: existing.Name,
		ExBase:   existing.Base,
		ExSize:   existing.Size,
	}
}

// Seal freezes the region map. Called once the machine is fully composed.
func (as *AddressSpace) Seal() {
	as.sealed.CompareAndSwap(false, true)
}

// Sealed reports whether the region map is frozen.
func (as *AddressSpace) Sealed() bool {
	return as.sealed.Load()
}

// Regions returns the mapped regions in address order.
func (as *AddressSpace) Regions() []*Region {
	return append([]*Region(nil), as.regions...)
}

// Region returns the region with the given name, or nil.
func (as *AddressSpace) Region(name string) *Region {
	for _, r := range as.regions {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// Resolve finds the region holding the whole access and the offset into it.
func (as *AddressSpace) Resolve(addr uint32, size AccessSize, dir AccessDirection) (*Region, uint32, error) {
	if !size.Valid() {
		return nil, 0, ErrBadAccessSize
	}
	end := uint64(addr) + uint64(size)

	r := as.last
	if r == nil || !r.Contains(addr) {
		r = as.find(addr)
		if r == nil {
			return nil, 0, &UnmappedAccessError{Addr: addr, Size: size, Dir: dir}
		}
		as.last = r
	}
	if end > r.End() {
		return nil, 0, &UnmappedAccessError{Addr: addr, Size: size, Dir: dir, Region: r.Name}
	}
	return r, addr - r.Base, nil
}

func (as *AddressSpace) find(addr uint32) *Region {
	idx := sort.Search(len(as.regions), func(i int) bool {
		return as.regions[i].Base > addr
	}) - 1
	if idx < 0 {
		return nil
	}
	if r := as.regions[idx]; r.Contains(addr) {
		return r
	}
	return nil
}

// Fault returns the first error latched under an abort policy.
func (as *AddressSpace) Fault() error {
	return as.fault
}

// ClearFault drops the latched fault.
func (as *AddressSpace) ClearFault() {
	as.fault = nil
}

func (as *AddressSpace) raise(policy Policy, d Diagnostic, err error) error {
	as.diag.Record(d)
	if policy != PolicyAbort {
		return nil
	}
	if as.fault == nil {
		as.fault = err
	}
	return err
}

// Read performs a CPU-side read.
func (as *AddressSpace) Read(addr uint32, size AccessSize) (uint64, error) {
	r, off, err := as.Resolve(addr, size, AccessRead)
	if err != nil {
		return as.failedRead(addr, size, err)
	}
	v, err := r.Read(off, size)
	if err != nil {
		return as.failedRead(addr, size, err)
	}
	return v, nil
}

func (as *AddressSpace) failedRead(addr uint32, size AccessSize, err error) (uint64, error) {
	if errors.Is(err, ErrBadAccessSize) {
		return 0, err
	}
	var oob *OutOfBoundsError
	if errors.As(err, &oob) {
		d := Diagnostic{Kind: DiagOutOfBounds, Region: oob.Region, Addr: addr, Offset: oob.Offset, Size: size, Dir: AccessRead}
		return 0, as.raise(as.cfg.Bounds, d, err)
	}
	d := Diagnostic{Kind: DiagUnmappedAccess, Addr: addr, Size: size, Dir: AccessRead}
	if rerr := as.raise(as.cfg.Unmapped, d, err); rerr != nil {
		return 0, rerr
	}
	return as.cfg.UnmappedFill & sizeMask(size), nil
}

// Write performs a CPU-side write.
func (as *AddressSpace) Write(addr uint32, size AccessSize, value uint64) error {
	r, off, err := as.Resolve(addr, size, AccessWrite)
	if err != nil {
		if errors.Is(err, ErrBadAccessSize) {
			return err
		}
		d := Diagnostic{Kind: DiagUnmappedAccess, Addr: addr, Size: size, Dir: AccessWrite, Value: value & sizeMask(size)}
		return as.raise(as.cfg.Unmapped, d, err)
	}

	err = r.Write(off, size, value)
	var (
		ro  *ReadOnlyViolationError
		oob *OutOfBoundsError
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ro):
		d := Diagnostic{Kind: DiagReadOnlyWrite, Region: r.Name, Addr: addr, Offset: off, Size: size, Dir: AccessWrite, Value: value & sizeMask(size)}
		return as.raise(as.cfg.ROMWrites, d, err)
	case errors.As(err, &oob):
		d := Diagnostic{Kind: DiagOutOfBounds, Region: r.Name, Addr: addr, Offset: off, Size: size, Dir: AccessWrite, Value: value & sizeMask(size)}
		return as.raise(as.cfg.Bounds, d, err)
	}
	return err
}

// Read8 and friends are fixed-width accessors for executors and tests.
// Errors are latched in Fault under an abort policy and the value is then
// zero; the core checks the latch after every instruction.

func (as *AddressSpace) Read8(addr uint32) uint8 {
	v, _ := as.Read(addr, AccessByte)
	return uint8(v)
}

func (as *AddressSpace) Read16(addr uint32) uint16 {
	v, _ := as.Read(addr, AccessHalf)
	return uint16(v)
}

func (as *AddressSpace) Read32(addr uint32) uint32 {
	v, _ := as.Read(addr, AccessWord)
	return uint32(v)
}

func (as *AddressSpace) Read64(addr uint32) uint64 {
	v, _ := as.Read(addr, AccessDouble)
	return v
}

func (as *AddressSpace) Write8(addr uint32, value uint8) {
	_ = as.Write(addr, AccessByte, uint64(value))
}

func (as *AddressSpace) Write16(addr uint32, value uint16) {
	_ = as.Write(addr, AccessHalf, uint64(value))
}

func (as *AddressSpace) Write32(addr uint32, value uint32) {
	_ = as.Write(addr, AccessWord, uint64(value))
}

func (as *AddressSpace) Write64(addr uint32, value uint64) {
	_ = as.Write(addr, AccessDouble, value)
}

// Peek copies n bytes starting at addr straight from region storage, for
// the monitor. It never calls device handlers; unmapped and MMIO bytes read
// as zero. The second result reports whether every byte was mapped.
func (as *AddressSpace) Peek(addr uint32, n int) ([]byte, bool) {
	buf := make([]byte, n)
	mapped := true
	for i := 0; i < n; {
		a := addr + uint32(i)
		if uint64(addr)+uint64(i) > 0xFFFFFFFF {
			mapped = false
			break
		}
		r := as.find(a)
		if r == nil {
			mapped = false
			i++
			continue
		}
		i += r.Peek(a-r.Base, buf[i:])
	}
	return buf, mapped
}

// Close releases the backing store of every region.
func (as *AddressSpace) Close() error {
	var errs []error
	for _, r := range as.regions {
		if err := r.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name, err))
		}
	}
	as.last = nil
	return errors.Join(errs...)
}
