// errors.go - Error values returned by machine construction and bus access

package main

import (
	"errors"
	"fmt"
)

var (
	// ErrFileNotFound is the resolver's distinct "no such file" outcome.
	ErrFileNotFound = errors.New("file not found")

	// ErrBadAccessSize rejects access widths other than 1, 2, 4 or 8 bytes.
	ErrBadAccessSize = errors.New("unsupported access size")

	// ErrMachineHalted is returned when starting a CPU that has already stopped.
	ErrMachineHalted = errors.New("machine halted")
)

// OverlapError reports a region whose span intersects one already mapped.
type OverlapError struct {
	Region   string
	Base     uint32
	Size     uint32
	Existing string
	ExBase   uint32
	ExSize   uint32
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("region %q [0x%08X+0x%X] overlaps %q [0x%08X+0x%X]",
		e.Region, e.Base, e.Size, e.Existing, e.ExBase, e.ExSize)
}

// UnmappedAccessError reports an access not wholly contained in one region.
// Region is set when the access starts inside a region and runs past its end.
type UnmappedAccessError struct {
	Addr   uint32
	Size   AccessSize
	Dir    AccessDirection
	Region string
}

func (e *UnmappedAccessError) Error() string {
	if e.Region != "" {
		return fmt.Sprintf("unmapped %s of %d bytes at 0x%08X: straddles end of %q", e.Dir, e.Size, e.Addr, e.Region)
	}
	return fmt.Sprintf("unmapped %s of %d bytes at 0x%08X", e.Dir, e.Size, e.Addr)
}

// OutOfBoundsError reports an access outside a region's own span.
type OutOfBoundsError struct {
	Region string
	Offset uint32
	Size   AccessSize
	Limit  uint32
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("%s: access of %d bytes at offset 0x%X outside region size 0x%X", e.Region, e.Size, e.Offset, e.Limit)
}

// ReadOnlyViolationError reports a CPU-side write to committed ROM.
type ReadOnlyViolationError struct {
	Region string
	Offset uint32
	Size   AccessSize
}

func (e *ReadOnlyViolationError) Error() string {
	return fmt.Sprintf("%s: write of %d bytes at offset 0x%X to read-only region", e.Region, e.Size, e.Offset)
}

// ImageNotFoundError reports a boot image the resolver could not locate.
type ImageNotFoundError struct {
	Name string
	Err  error
}

func (e *ImageNotFoundError) Error() string {
	return fmt.Sprintf("couldn't find ROM '%s'", e.Name)
}

func (e *ImageNotFoundError) Unwrap() error { return e.Err }

// ImageTooLargeError reports a boot image that does not fit the ROM region.
type ImageTooLargeError struct {
	Name  string
	Size  int64
	Limit uint32
}

func (e *ImageTooLargeError) Error() string {
	if e.Size < 0 {
		return fmt.Sprintf("ROM '%s' exceeds %d bytes", e.Name, e.Limit)
	}
	return fmt.Sprintf("ROM '%s' is %d bytes, limit is %d", e.Name, e.Size, e.Limit)
}

// CPUConfigError reports an invalid CPU component configuration.
type CPUConfigError struct {
	Field  string
	Value  string
	Reason string
}

func (e *CPUConfigError) Error() string {
	return fmt.Sprintf("cpu: invalid %s %q: %s", e.Field, e.Value, e.Reason)
}
