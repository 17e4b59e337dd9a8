package main

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
)

// fakeBus serves words from a map and counts reads.
type fakeBus struct {
	words map[uint32]uint32
	reads int
	err   error
}

func (b *fakeBus) Read(addr uint32, size AccessSize) (uint64, error) {
	b.reads++
	if b.err != nil {
		return 0, b.err
	}
	return uint64(b.words[addr]), nil
}

func (b *fakeBus) Write(addr uint32, size AccessSize, value uint64) error {
	if b.words == nil {
		b.words = map[uint32]uint32{}
	}
	b.words[addr] = uint32(value)
	return nil
}

// countingExecutor steps the PC by 4 and halts after limit instructions.
type countingExecutor struct {
	limit int
	seen  []uint32
	err   error
	next  func(pc uint32) uint32
}

func (e *countingExecutor) Execute(core *ARM926Core, pc, insn uint32) (uint32, error) {
	e.seen = append(e.seen, insn)
	if len(e.seen) >= e.limit {
		if e.err != nil {
			return 0, e.err
		}
		return 0, ErrCPUHalt
	}
	if e.next != nil {
		return e.next(pc), nil
	}
	return pc + 4, nil
}

func TestCPUConfig_Validate(t *testing.T) {
	tests := []struct {
		model CPUModel
		ok    bool
	}{
		{"arm926", true},
		{"ARM926", true},
		{"", false},
		{"arm11", false},
		{"m68k", false},
	}
	for _, tt := range tests {
		cfg := DefaultCPUConfig()
		cfg.Model = tt.model
		err := cfg.Validate()
		if tt.ok {
			if err != nil {
				t.Fatalf("Validate(%q): %v", tt.model, err)
			}
			continue
		}
		var cfgErr *CPUConfigError
		if !errors.As(err, &cfgErr) || cfgErr.Field != "model" {
			t.Fatalf("Validate(%q) = %v, want *CPUConfigError on model", tt.model, err)
		}
	}
}

func TestCPUConfig_VectorsAndOrder(t *testing.T) {
	cfg := DefaultCPUConfig()
	if cfg.ResetVector() != 0xFFFF0000 {
		t.Fatalf("high vector = 0x%08X", cfg.ResetVector())
	}
	if cfg.ByteOrder() != binary.BigEndian {
		t.Fatal("default byte order is not big-endian")
	}

	cfg.HighVectors = false
	cfg.BigEndianConfig = false
	if cfg.ResetVector() != 0 {
		t.Fatalf("low vector = 0x%08X", cfg.ResetVector())
	}
	if cfg.ByteOrder() != binary.LittleEndian {
		t.Fatal("cfgend=0 byte order is not little-endian")
	}
}

func TestARM926Core_RequiresBus(t *testing.T) {
	if _, err := NewARM926Core(DefaultCPUConfig(), nil); err == nil {
		t.Fatal("core without a bus accepted")
	}
	bad := DefaultCPUConfig()
	bad.Model = "x86"
	if _, err := NewARM926Core(bad, &fakeBus{}); err == nil {
		t.Fatal("core with a bad model accepted")
	}
}

func TestARM926Core_ResetFetchParks(t *testing.T) {
	bus := &fakeBus{words: map[uint32]uint32{HIGH_VECTOR_BASE: 0xEA000000}}
	c, err := NewARM926Core(DefaultCPUConfig(), bus)
	if err != nil {
		t.Fatal(err)
	}
	if c.PC() != HIGH_VECTOR_BASE || c.CPSR() != CPSR_RESET {
		t.Fatalf("after reset PC=0x%08X CPSR=0x%X", c.PC(), c.CPSR())
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !c.Halted() || c.Steps() != 1 || bus.reads != 1 {
		t.Fatalf("halted=%v steps=%d reads=%d", c.Halted(), c.Steps(), bus.reads)
	}
	log := c.FetchLog()
	if len(log) != 1 || log[0] != (Fetch{PC: HIGH_VECTOR_BASE, Insn: 0xEA000000}) {
		t.Fatalf("fetch log = %+v", log)
	}

	if err := c.Start(context.Background()); !errors.Is(err, ErrMachineHalted) {
		t.Fatalf("second Start = %v, want ErrMachineHalted", err)
	}

	c.Reset()
	if c.Halted() || len(c.FetchLog()) != 0 || c.Err() != nil {
		t.Fatal("Reset left the core halted or with history")
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start after reset: %v", err)
	}
}

func TestARM926Core_ExecutorRunsUntilHalt(t *testing.T) {
	bus := &fakeBus{words: map[uint32]uint32{
		HIGH_VECTOR_BASE:     1,
		HIGH_VECTOR_BASE + 4: 2,
		HIGH_VECTOR_BASE + 8: 3,
	}}
	c, _ := NewARM926Core(DefaultCPUConfig(), bus)
	exec := &countingExecutor{limit: 3}
	c.SetExecutor(exec)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(exec.seen) != 3 || exec.seen[2] != 3 {
		t.Fatalf("executed %v", exec.seen)
	}
	if c.Steps() != 3 || !c.Halted() || c.Err() != nil {
		t.Fatalf("steps=%d halted=%v err=%v", c.Steps(), c.Halted(), c.Err())
	}
}

func TestARM926Core_ExecutorError(t *testing.T) {
	bus := &fakeBus{}
	c, _ := NewARM926Core(DefaultCPUConfig(), bus)
	undefined := errors.New("undefined instruction")
	c.SetExecutor(&countingExecutor{limit: 1, err: undefined})

	err := c.Start(context.Background())
	if !errors.Is(err, undefined) {
		t.Fatalf("Start = %v, want wrapped executor error", err)
	}
	if !errors.Is(c.Err(), undefined) || !c.Halted() {
		t.Fatalf("Err()=%v halted=%v", c.Err(), c.Halted())
	}
}

func TestARM926Core_FetchError(t *testing.T) {
	busErr := &UnmappedAccessError{Addr: HIGH_VECTOR_BASE, Size: AccessWord}
	c, _ := NewARM926Core(DefaultCPUConfig(), &fakeBus{err: busErr})

	err := c.Start(context.Background())
	var unmapped *UnmappedAccessError
	if !errors.As(err, &unmapped) {
		t.Fatalf("Start = %v, want wrapped *UnmappedAccessError", err)
	}
	if len(c.FetchLog()) != 0 {
		t.Fatal("failed fetch recorded")
	}
}

func TestARM926Core_UnalignedPC(t *testing.T) {
	c, _ := NewARM926Core(DefaultCPUConfig(), &fakeBus{})
	c.SetExecutor(&countingExecutor{limit: 10, next: func(pc uint32) uint32 { return pc + 2 }})
	if err := c.Start(context.Background()); err == nil {
		t.Fatal("unaligned PC did not abort")
	}
	if c.Steps() != 1 {
		t.Fatalf("steps = %d, want 1", c.Steps())
	}
}

func TestARM926Core_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c, _ := NewARM926Core(DefaultCPUConfig(), &fakeBus{})
	c.SetExecutor(&countingExecutor{limit: 1 << 30, next: func(pc uint32) uint32 {
		cancel()
		return pc
	}})

	if err := c.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Start = %v, want context.Canceled", err)
	}
	if c.Halted() {
		t.Fatal("cancelled core marked halted")
	}
}

func TestARM926Core_FetchLogIsBounded(t *testing.T) {
	c, _ := NewARM926Core(DefaultCPUConfig(), &fakeBus{})
	c.SetExecutor(&countingExecutor{limit: FETCH_LOG_SIZE + 5})
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	log := c.FetchLog()
	if len(log) != FETCH_LOG_SIZE {
		t.Fatalf("fetch log holds %d entries, want %d", len(log), FETCH_LOG_SIZE)
	}
	if want := uint32(HIGH_VECTOR_BASE + 4*5); log[0].PC != want {
		t.Fatalf("oldest retained PC = 0x%08X, want 0x%08X", log[0].PC, want)
	}
}

// storingExecutor writes through the bus's fixed-width accessor each step.
type storingExecutor struct {
	addr  uint32
	steps int
}

func (e *storingExecutor) Execute(core *ARM926Core, pc, insn uint32) (uint32, error) {
	e.steps++
	if e.steps > 8 {
		return 0, ErrCPUHalt
	}
	core.Bus().(*AddressSpace).Write32(e.addr, 0xCAFEF00D)
	return pc + 4, nil
}

func TestARM926Core_StopsOnLatchedBusFault(t *testing.T) {
	as := newTestSpace(t, abortAll())
	mustMap(t, as, mustRAM(t, "vectors", HIGH_VECTOR_BASE, 0x10000))
	c, err := NewARM926Core(DefaultCPUConfig(), as)
	if err != nil {
		t.Fatal(err)
	}
	exec := &storingExecutor{addr: 0x20000000}
	c.SetExecutor(exec)

	err = c.Start(context.Background())
	var unmapped *UnmappedAccessError
	if !errors.As(err, &unmapped) || unmapped.Addr != 0x20000000 {
		t.Fatalf("Start = %v, want wrapped *UnmappedAccessError", err)
	}
	if exec.steps != 1 || c.Steps() != 1 {
		t.Fatalf("executed %d instructions (%d steps) after the fault", exec.steps, c.Steps())
	}
	if !c.Halted() || !errors.As(c.Err(), &unmapped) {
		t.Fatalf("halted=%v err=%v", c.Halted(), c.Err())
	}
}

func TestARM926Core_DegradedAccessKeepsRunning(t *testing.T) {
	as := newTestSpace(t, degradeAll())
	mustMap(t, as, mustRAM(t, "vectors", HIGH_VECTOR_BASE, 0x10000))
	c, _ := NewARM926Core(DefaultCPUConfig(), as)
	exec := &storingExecutor{addr: 0x20000000}
	c.SetExecutor(exec)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if exec.steps != 9 || as.Fault() != nil {
		t.Fatalf("steps=%d fault=%v", exec.steps, as.Fault())
	}
}
