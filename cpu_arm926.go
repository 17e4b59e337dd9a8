// cpu_arm926.go - ARM926EJ-S processor component boundary

/*
License: GPLv3 or later
*/

/*
cpu_arm926.go - CPU Component

The instruction set itself lives outside this repository. This file defines
the boundary the machine talks to: a validated configuration handed over once
at construction, a reset that places the PC on the configured vector, and a
run loop that fetches words through the address space and hands each one to
an Executor.

With no Executor attached the core performs the reset fetch and parks. That
is enough to prove the composed machine is ready: the first instruction is
reachable, ROM holds the image and the fetch went through the same path every
later access will use.
*/

package main

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// CPUModel names an instruction-set variant.
type CPUModel string

const (
	CPU_ARM926 CPUModel = "arm926"

	DEFAULT_CPU_MODEL = CPU_ARM926
)

// Reset vector locations selected by the high-vectors flag.
const (
	LOW_VECTOR_BASE  = 0x00000000
	HIGH_VECTOR_BASE = 0xFFFF0000
)

// CPSR on reset: supervisor mode, IRQ and FIQ masked.
const CPSR_RESET = 0xD3

const FETCH_LOG_SIZE = 16

// CPUConfig is handed to the CPU component once, at construction.
type CPUConfig struct {
	Model CPUModel
	// BigEndianConfig is the cfgend input: data accesses are big-endian.
	BigEndianConfig bool
	// HighVectors is the reset-hivecs input: exceptions vector to 0xFFFF0000.
	HighVectors bool
}

// DefaultCPUConfig is the Starlet configuration: big-endian, high vectors.
func DefaultCPUConfig() CPUConfig {
	return CPUConfig{
		Model:           DEFAULT_CPU_MODEL,
		BigEndianConfig: true,
		HighVectors:     true,
	}
}

// Validate rejects models this machine cannot host.
func (c CPUConfig) Validate() error {
	switch CPUModel(strings.ToLower(string(c.Model))) {
	case CPU_ARM926:
		return nil
	case "":
		return &CPUConfigError{Field: "model", Value: "", Reason: "no CPU model given"}
	}
	return &CPUConfigError{Field: "model", Value: string(c.Model), Reason: "only arm926 is supported"}
}

// ByteOrder is the order data accesses are decoded in.
func (c CPUConfig) ByteOrder() binary.ByteOrder {
	if c.BigEndianConfig {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// ResetVector is where the first instruction is fetched from.
func (c CPUConfig) ResetVector() uint32 {
	if c.HighVectors {
		return HIGH_VECTOR_BASE
	}
	return LOW_VECTOR_BASE
}

// CPUBus is what the core needs from the address space.
type CPUBus interface {
	Read(addr uint32, size AccessSize) (uint64, error)
	Write(addr uint32, size AccessSize, value uint64) error
}

// faultLatch is implemented by buses that record an abort-policy fault
// instead of returning it, as the fixed-width accessors do.
type faultLatch interface {
	Fault() error
}

// ErrCPUHalt is returned by an Executor to stop the core cleanly.
var ErrCPUHalt = errors.New("cpu halted")

// Executor runs one fetched instruction and returns the next PC.
type Executor interface {
	Execute(core *ARM926Core, pc uint32, insn uint32) (uint32, error)
}

// Fetch records one instruction fetch.
type Fetch struct {
	PC   uint32
	Insn uint32
}

// ARM926Core is the Starlet processor component.
type ARM926Core struct {
	cfg  CPUConfig
	bus  CPUBus
	exec Executor

	pc     uint32
	cpsr   uint32
	halted bool
	err    error

	fetches []Fetch
	steps   uint64
}

// NewARM926Core validates cfg and attaches the core to bus.
func NewARM926Core(cfg CPUConfig, bus CPUBus) (*ARM926Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if bus == nil {
		return nil, errors.New("cpu: no bus")
	}
	c := &ARM926Core{cfg: cfg, bus: bus}
	c.Reset()
	return c, nil
}

func (c *ARM926Core) Config() CPUConfig { return c.cfg }

// SetExecutor attaches the instruction interpreter.
func (c *ARM926Core) SetExecutor(e Executor) {
	c.exec = e
}

// Bus returns the bus the core fetches through, for executors.
func (c *ARM926Core) Bus() CPUBus {
	return c.bus
}

// Reset puts the core back on its reset vector.
func (c *ARM926Core) Reset() {
	c.pc = c.cfg.ResetVector()
	c.cpsr = CPSR_RESET
	c.halted = false
	c.err = nil
	c.fetches = c.fetches[:0]
	c.steps = 0
}

// restore places a freshly reset core at a saved PC and CPSR.
func (c *ARM926Core) restore(pc, cpsr uint32) {
	c.Reset()
	c.pc = pc
	c.cpsr = cpsr
}

func (c *ARM926Core) PC() uint32    { return c.pc }
func (c *ARM926Core) CPSR() uint32  { return c.cpsr }
func (c *ARM926Core) Halted() bool  { return c.halted }
func (c *ARM926Core) Steps() uint64 { return c.steps }
func (c *ARM926Core) Err() error    { return c.err }
func (c *ARM926Core) FetchLog() []Fetch {
	return append([]Fetch(nil), c.fetches...)
}

func (c *ARM926Core) recordFetch(pc, insn uint32) {
	if len(c.fetches) == FETCH_LOG_SIZE {
		copy(c.fetches, c.fetches[1:])
		c.fetches = c.fetches[:FETCH_LOG_SIZE-1]
	}
	c.fetches = append(c.fetches, Fetch{PC: pc, Insn: insn})
}

func (c *ARM926Core) stop(err error) error {
	c.halted = true
	c.err = err
	return err
}

// Start runs the fetch loop until the executor halts, a fetch fails, the
// bus latches a fault or ctx is cancelled. Without an executor it stops
// after the first fetch.
func (c *ARM926Core) Start(ctx context.Context) error {
	if c.halted {
		return ErrMachineHalted
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		pc := c.pc
		if pc&3 != 0 {
			return c.stop(fmt.Errorf("prefetch abort: unaligned PC 0x%08X", pc))
		}
		v, err := c.bus.Read(pc, AccessWord)
		if err != nil {
			return c.stop(fmt.Errorf("prefetch abort at 0x%08X: %w", pc, err))
		}
		insn := uint32(v)
		c.recordFetch(pc, insn)
		c.steps++

		if c.exec == nil {
			c.halted = true
			return nil
		}
		next, err := c.exec.Execute(c, pc, insn)
		if errors.Is(err, ErrCPUHalt) {
			c.halted = true
			return nil
		}
		if err != nil {
			return c.stop(fmt.Errorf("execute at 0x%08X: %w", pc, err))
		}
		if fl, ok := c.bus.(faultLatch); ok {
			if err := fl.Fault(); err != nil {
				return c.stop(fmt.Errorf("bus fault at 0x%08X: %w", pc, err))
			}
		}
		c.pc = next
	}
}
