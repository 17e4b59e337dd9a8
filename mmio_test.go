package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"testing"
)

func TestMMIO_UnimplementedOffsetsDegradeUnderEveryPolicy(t *testing.T) {
	as := newTestSpace(t, abortAll())
	mustMap(t, as, mustMMIO(t, "nand", NAND_BASE, MMIO_WINDOW_SIZE, NewStubDevice("nand"), binary.BigEndian))

	for _, size := range []AccessSize{AccessByte, AccessHalf, AccessWord, AccessDouble} {
		v, err := as.Read(NAND_BASE+NAND_REG_CMD, size)
		if err != nil || v != 0 {
			t.Fatalf("Read size %d = 0x%X, %v; want 0, nil", size, v, err)
		}
		if err := as.Write(NAND_BASE+NAND_REG_CMD, size, 0x12); err != nil {
			t.Fatalf("Write size %d: %v", size, err)
		}
	}
	if as.Fault() != nil {
		t.Fatalf("unimplemented register latched a fault: %v", as.Fault())
	}

	diag := as.Diagnostics()
	if n := diag.Count(DiagUnimplementedMMIO, "nand"); n != 8 {
		t.Fatalf("unimplemented diagnostics = %d, want 8", n)
	}
	recent := diag.Recent()
	last := recent[len(recent)-1]
	if last.Region != "nand.NAND_CMD" || last.Dir != AccessWrite || last.Value != 0x12 {
		t.Fatalf("last diagnostic = %s", last)
	}
}

func TestMMIO_RegisterNamesInDiagnostics(t *testing.T) {
	as := newTestSpace(t, DefaultBusConfig())
	mustMap(t, as, mustMMIO(t, "hollywood", HOLLYWOOD_BASE, HOLLYWOOD_SIZE, NewStubDevice("hollywood"), binary.BigEndian))

	as.Read32(HOLLYWOOD_BASE + HW_REG_VERSION)
	as.Read32(HOLLYWOOD_BASE + 0x1F0)

	recent := as.Diagnostics().Recent()
	if len(recent) != 2 {
		t.Fatalf("got %d diagnostics, want 2", len(recent))
	}
	if recent[0].Region != "hollywood.VERSION" {
		t.Fatalf("named register label = %q", recent[0].Region)
	}
	if recent[1].Region != "hollywood" || recent[1].Offset != 0x1F0 {
		t.Fatalf("unnamed register diagnostic = %s", recent[1])
	}
}

func TestMMIO_EndianRoundTrip(t *testing.T) {
	orders := []binary.ByteOrder{binary.BigEndian, binary.LittleEndian}
	values := map[AccessSize]uint64{
		AccessByte:   0xA5,
		AccessHalf:   0x1234,
		AccessWord:   0x11223344,
		AccessDouble: 0x0102030405060708,
	}

	for _, cpu := range orders {
		for _, periph := range orders {
			for size, v := range values {
				name := fmt.Sprintf("cpu=%s/dev=%s/size=%d", cpu, periph, size)
				t.Run(name, func(t *testing.T) {
					cfg := DefaultBusConfig()
					cfg.CPUOrder = cpu
					as := newTestSpace(t, cfg)
					dev := newTestDevice(0x10)
					mustMap(t, as, mustMMIO(t, "dev", 0x0D800000, 0x100, dev, periph))

					if err := as.Write(0x0D800010, size, v); err != nil {
						t.Fatalf("Write: %v", err)
					}
					got, err := as.Read(0x0D800010, size)
					if err != nil {
						t.Fatalf("Read: %v", err)
					}
					if got != v {
						t.Fatalf("round trip = 0x%X, want 0x%X", got, v)
					}

					want := v
					if cpu.String() != periph.String() {
						want = swapBytes(v, size)
					}
					if dev.regs[0x10] != want {
						t.Fatalf("device saw 0x%X, want 0x%X", dev.regs[0x10], want)
					}
				})
			}
		}
	}
}

func TestMMIO_SwapBytes(t *testing.T) {
	tests := []struct {
		v    uint64
		size AccessSize
		want uint64
	}{
		{0xAB, AccessByte, 0xAB},
		{0x1234, AccessHalf, 0x3412},
		{0x11223344, AccessWord, 0x44332211},
		{0x0102030405060708, AccessDouble, 0x0807060504030201},
	}
	for _, tt := range tests {
		if got := swapBytes(tt.v, tt.size); got != tt.want {
			t.Fatalf("swapBytes(0x%X, %d) = 0x%X, want 0x%X", tt.v, tt.size, got, tt.want)
		}
	}
}

// wordRegs is a WordRegisters device with a fixed register set.
type wordRegs struct {
	regs   map[uint32]uint32
	writes []uint32
}

func (w *wordRegs) ReadReg(offset uint32) (uint32, bool) {
	v, ok := w.regs[offset]
	return v, ok
}

func (w *wordRegs) WriteReg(offset uint32, value uint32) bool {
	if _, ok := w.regs[offset]; !ok {
		return false
	}
	w.regs[offset] = value
	w.writes = append(w.writes, offset)
	return true
}

func TestWordAdapter_NarrowReads(t *testing.T) {
	regs := &wordRegs{regs: map[uint32]uint32{0: 0x11223344, 4: 0x55667788}}
	a := NewWordAdapter(regs)

	tests := []struct {
		offset uint32
		size   AccessSize
		want   uint64
	}{
		{0, AccessWord, 0x11223344},
		{1, AccessByte, 0x22},
		{3, AccessByte, 0x44},
		{2, AccessHalf, 0x3344},
		{2, AccessWord, 0x33445566},
		{0, AccessDouble, 0x1122334455667788},
	}
	for _, tt := range tests {
		got, ok := a.ReadMMIO(tt.offset, tt.size)
		if !ok || got != tt.want {
			t.Fatalf("ReadMMIO(%d, %d) = 0x%X, %v; want 0x%X", tt.offset, tt.size, got, ok, tt.want)
		}
	}

	if _, ok := a.ReadMMIO(6, AccessWord); ok {
		t.Fatal("read spanning an unknown register reported handled")
	}
}

func TestWordAdapter_NarrowWritesMerge(t *testing.T) {
	regs := &wordRegs{regs: map[uint32]uint32{0: 0, 4: 0}}
	a := NewWordAdapter(regs)

	if !a.WriteMMIO(0, AccessWord, 0x11223344) {
		t.Fatal("word write unhandled")
	}
	if !a.WriteMMIO(3, AccessByte, 0xAA) {
		t.Fatal("byte write unhandled")
	}
	if regs.regs[0] != 0x112233AA {
		t.Fatalf("after byte write reg0 = 0x%08X, want 0x112233AA", regs.regs[0])
	}
	if !a.WriteMMIO(2, AccessWord, 0xBBCCDDEE) {
		t.Fatal("straddling write unhandled")
	}
	if regs.regs[0] != 0x1122BBCC || regs.regs[4] != 0xDDEE0000 {
		t.Fatalf("after straddling write regs = 0x%08X 0x%08X", regs.regs[0], regs.regs[4])
	}
	if a.WriteMMIO(8, AccessByte, 1) {
		t.Fatal("write to unknown register reported handled")
	}
}

func TestStubDevice_ImplementsNothing(t *testing.T) {
	for _, e := range starletMemoryMap {
		if e.kind != RegionMMIO {
			continue
		}
		d := NewStubDevice(e.name)
		if _, ok := d.ReadMMIO(0, AccessWord); ok {
			t.Fatalf("%s: stub read reported handled", e.name)
		}
		if d.WriteMMIO(0, AccessWord, 0) {
			t.Fatalf("%s: stub write reported handled", e.name)
		}
		if ioDevices[e.name] == nil {
			t.Fatalf("%s: no register table", e.name)
		}
	}
}

func TestMMIO_NilHandlerRejected(t *testing.T) {
	_, err := NewMMIORegion("x", 0, 0x10, nil, nil)
	if err == nil || errors.Is(err, ErrBadAccessSize) {
		t.Fatalf("NewMMIORegion(nil handler) = %v", err)
	}
}
