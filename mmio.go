// mmio.go - Memory-mapped I/O dispatch

/*
License: GPLv3 or later
*/

/*
mmio.go - MMIO Dispatch Framework

Every MMIO region carries exactly one MMIOBinding for its lifetime. The
binding references a device through the MMIOHandler capability; the device
itself is owned by the machine that built it.

Values cross the binding in the device's periphery byte order. The address
space decodes CPU accesses in the CPU byte order, so when the two differ the
binding byte-swaps the value at the access width before calling the handler
and again on the way back. Handlers therefore see one canonical order no
matter how the host or the CPU is configured.

Handlers answer "handled" for offsets they implement. Anything else degrades:
reads return zero, writes are dropped, and the access is recorded as an
unimplemented-register diagnostic. The guest never faults on a register the
model does not know.
*/

package main

import (
	"encoding/binary"
	"math/bits"
)

// MMIOHandler is the read/write capability bound to one MMIO region.
// Offsets are relative to the region base. The bool result reports whether
// the device implements the register at offset.
type MMIOHandler interface {
	ReadMMIO(offset uint32, size AccessSize) (uint64, bool)
	WriteMMIO(offset uint32, size AccessSize, value uint64) bool
}

// RegisterNamer is implemented by handlers that can name their registers
// for diagnostics and the monitor.
type RegisterNamer interface {
	RegisterName(offset uint32) string
}

// MMIOBinding ties a region to its handler and periphery byte order.
type MMIOBinding struct {
	handler MMIOHandler
	order   binary.ByteOrder
}

func sameByteOrder(a, b binary.ByteOrder) bool {
	return a.String() == b.String()
}

// swapBytes reverses the low size bytes of v.
func swapBytes(v uint64, size AccessSize) uint64 {
	switch size {
	case AccessByte:
		return v & 0xFF
	case AccessHalf:
		return uint64(bits.ReverseBytes16(uint16(v)))
	case AccessWord:
		return uint64(bits.ReverseBytes32(uint32(v)))
	}
	return bits.ReverseBytes64(v)
}

func sizeMask(size AccessSize) uint64 {
	if size >= AccessDouble {
		return ^uint64(0)
	}
	return 1<<(8*uint(size)) - 1
}

func (b *MMIOBinding) convert(r *Region, v uint64, size AccessSize) uint64 {
	v &= sizeMask(size)
	if sameByteOrder(r.order, b.order) {
		return v
	}
	return swapBytes(v, size)
}

func (b *MMIOBinding) read(r *Region, offset uint32, size AccessSize) uint64 {
	v, ok := b.handler.ReadMMIO(offset, size)
	if !ok {
		r.diag.Record(Diagnostic{
			Kind:   DiagUnimplementedMMIO,
			Region: b.regionLabel(r, offset),
			Addr:   r.Base + offset,
			Offset: offset,
			Size:   size,
			Dir:    AccessRead,
		})
		return 0
	}
	return b.convert(r, v, size)
}

func (b *MMIOBinding) write(r *Region, offset uint32, size AccessSize, value uint64) {
	dv := b.convert(r, value, size)
	if b.handler.WriteMMIO(offset, size, dv) {
		return
	}
	r.diag.Record(Diagnostic{
		Kind:   DiagUnimplementedMMIO,
		Region: b.regionLabel(r, offset),
		Addr:   r.Base + offset,
		Offset: offset,
		Size:   size,
		Dir:    AccessWrite,
		Value:  value & sizeMask(size),
	})
}

// regionLabel is "nand" or "nand.NAND_CMD" when the handler names the register.
func (b *MMIOBinding) regionLabel(r *Region, offset uint32) string {
	if namer, ok := b.handler.(RegisterNamer); ok {
		if name := namer.RegisterName(offset); name != "" {
			return r.Name + "." + name
		}
	}
	return r.Name
}

// WordRegisters is a device whose registers are all 32 bits wide and
// word aligned. WordAdapter turns it into an MMIOHandler.
type WordRegisters interface {
	ReadReg(offset uint32) (uint32, bool)
	WriteReg(offset uint32, value uint32) bool
}

// WordAdapter narrows and widens arbitrary accesses onto 32-bit registers.
// Byte lanes are numbered big-endian within a register. Partial writes merge
// into the last value written to the register rather than a fresh read, so a
// device read with side effects (clear-on-read, FIFO pop) is never triggered
// by a narrow store.
type WordAdapter struct {
	regs   WordRegisters
	shadow map[uint32]uint32
}

func NewWordAdapter(regs WordRegisters) *WordAdapter {
	return &WordAdapter{regs: regs, shadow: make(map[uint32]uint32)}
}

func (a *WordAdapter) ReadMMIO(offset uint32, size AccessSize) (uint64, bool) {
	if offset&3 == 0 && size == AccessWord {
		v, ok := a.regs.ReadReg(offset)
		return uint64(v), ok
	}

	var (
		value   uint64
		cached  uint32
		haveReg bool
		regAddr uint32
	)
	for i := uint32(0); i < uint32(size); i++ {
		addr := offset + i
		if !haveReg || addr&^3 != regAddr {
			regAddr = addr &^ 3
			v, ok := a.regs.ReadReg(regAddr)
			if !ok {
				return 0, false
			}
			cached, haveReg = v, true
		}
		lane := addr & 3
		value = value<<8 | uint64(uint8(cached>>(8*(3-lane))))
	}
	return value, true
}

func (a *WordAdapter) WriteMMIO(offset uint32, size AccessSize, value uint64) bool {
	if offset&3 == 0 && size == AccessWord {
		if !a.regs.WriteReg(offset, uint32(value)) {
			return false
		}
		a.shadow[offset] = uint32(value)
		return true
	}

	// Merge bytes per register, most significant byte first.
	merged := make(map[uint32]uint32, 2)
	var order []uint32
	for i := uint32(0); i < uint32(size); i++ {
		addr := offset + i
		regAddr := addr &^ 3
		cur, ok := merged[regAddr]
		if !ok {
			cur = a.shadow[regAddr]
			order = append(order, regAddr)
		}
		shift := 8 * (3 - (addr & 3))
		b := uint32(uint8(value >> (8 * (uint32(size) - 1 - i))))
		cur = cur&^(0xFF<<shift) | b<<shift
		merged[regAddr] = cur
	}

	handled := true
	for _, regAddr := range order {
		v := merged[regAddr]
		if !a.regs.WriteReg(regAddr, v) {
			handled = false
			continue
		}
		a.shadow[regAddr] = v
	}
	return handled
}

// RegisterName forwards to the wrapped device when it names registers.
func (a *WordAdapter) RegisterName(offset uint32) string {
	if namer, ok := a.regs.(RegisterNamer); ok {
		return namer.RegisterName(offset)
	}
	return ""
}
