// machine.go - Starlet machine composition

/*
License: GPLv3 or later
*/

/*
machine.go - Machine Composer

NewMachine builds one complete, isolated Starlet instance in a fixed order:

 1. the CPU component, from a validated CPUConfig
 2. every region of the static memory map (RAM, ROM, peripheral windows)
 3. the boot image, copied into ROM through the seed path
 4. ROM commit and address space seal
 5. CPU reset onto its vector

Nothing is shared between instances. Any fatal error releases what was
already built and is returned wrapped, so callers can still reach the typed
error with errors.As.
*/

package main

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

// MachineConfig is everything needed to build one instance.
type MachineConfig struct {
	// BootImage names the ROM image; empty leaves ROM blank.
	BootImage string
	// SearchPath is where relative image names are looked up.
	SearchPath []string

	CPU CPUConfig
	Bus BusConfig

	// DeviceScripts maps a peripheral window name to a Lua script path.
	DeviceScripts map[string]string

	// Log receives boot messages and diagnostics. Nil means stderr.
	Log io.Writer
	// Quiet suppresses the printed diagnostics; they are still recorded.
	Quiet bool
}

// DefaultMachineConfig is the stock Starlet configuration.
func DefaultMachineConfig() MachineConfig {
	return MachineConfig{
		CPU: DefaultCPUConfig(),
		Bus: DefaultBusConfig(),
	}
}

// Validate checks the configuration before anything is built.
func (c MachineConfig) Validate() error {
	if err := c.CPU.Validate(); err != nil {
		return err
	}
	for name := range c.DeviceScripts {
		e, ok := lookupMemoryMap(name)
		if !ok {
			return fmt.Errorf("device script for unknown window %q", name)
		}
		if e.kind != RegionMMIO {
			return fmt.Errorf("device script for %q: not a peripheral window", name)
		}
	}
	return nil
}

func lookupMemoryMap(name string) (memoryMapEntry, bool) {
	for _, e := range starletMemoryMap {
		if e.name == name {
			return e, true
		}
	}
	return memoryMapEntry{}, false
}

// Machine is one composed Starlet instance.
type Machine struct {
	cfg     MachineConfig
	log     io.Writer
	diag    *Diagnostics
	bus     *AddressSpace
	cpu     *ARM926Core
	devices map[string]MMIOHandler

	romLoaded int
}

// NewMachine composes a machine. resolver may be nil, in which case the
// configured search path is used.
func NewMachine(cfg MachineConfig, resolver FileResolver) (_ *Machine, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("machine config: %w", err)
	}
	if resolver == nil {
		resolver = SearchPathResolver{Dirs: cfg.SearchPath}
	}

	log := cfg.Log
	if log == nil {
		log = os.Stderr
	}
	diag := NewDiagnostics(log, 0)
	diag.SetSilent(cfg.Quiet)

	busCfg := cfg.Bus
	busCfg.CPUOrder = cfg.CPU.ByteOrder()

	m := &Machine{
		cfg:     cfg,
		log:     log,
		diag:    diag,
		bus:     NewAddressSpace(busCfg, diag),
		devices: make(map[string]MMIOHandler),
	}
	defer func() {
		if err != nil {
			m.Close()
		}
	}()

	m.cpu, err = NewARM926Core(cfg.CPU, m.bus)
	if err != nil {
		return nil, fmt.Errorf("cpu: %w", err)
	}

	for _, e := range starletMemoryMap {
		r, err := m.buildRegion(e)
		if err != nil {
			return nil, fmt.Errorf("region %s: %w", e.name, err)
		}
		if err := m.bus.Map(r); err != nil {
			r.Close()
			return nil, fmt.Errorf("region %s: %w", e.name, err)
		}
	}

	rom := m.bus.Region("rom")
	if cfg.BootImage == "" {
		fmt.Fprintf(log, "starlet: no boot image configured, ROM left blank\n")
	} else {
		n, err := LoadBootImage(resolver, cfg.BootImage, rom)
		if err != nil {
			return nil, err
		}
		m.romLoaded = n
		fmt.Fprintf(log, "starlet: loaded %s (%d bytes) at $%08X\n", cfg.BootImage, n, rom.Base)
	}
	rom.Commit()

	m.bus.Seal()
	m.cpu.Reset()
	return m, nil
}

func (m *Machine) buildRegion(e memoryMapEntry) (*Region, error) {
	switch e.kind {
	case RegionRAM:
		return NewRAMRegion(e.name, e.base, e.size)
	case RegionROM:
		return NewROMRegion(e.name, e.base, e.size)
	case RegionMMIO:
		h, err := m.buildDevice(e)
		if err != nil {
			return nil, err
		}
		m.devices[e.name] = h
		// Every Starlet peripheral is big-endian on the bus side.
		return NewMMIORegion(e.name, e.base, e.size, h, binary.BigEndian)
	}
	return nil, fmt.Errorf("unknown region kind %d", e.kind)
}

func (m *Machine) buildDevice(e memoryMapEntry) (MMIOHandler, error) {
	path, ok := m.cfg.DeviceScripts[e.name]
	if !ok {
		return NewStubDevice(e.name), nil
	}
	d, err := LoadScriptDevice(e.name, e.base, path)
	if err != nil {
		return nil, err
	}
	d.SetLogOutput(m.log)
	fmt.Fprintf(m.log, "starlet: %s bound to script %s\n", e.name, path)
	return d, nil
}

// BuildAndStart composes a machine and hands control to its CPU. The
// machine is returned even when the CPU stops with an error so the caller
// can inspect it.
func BuildAndStart(ctx context.Context, cfg MachineConfig, resolver FileResolver) (*Machine, error) {
	m, err := NewMachine(cfg, resolver)
	if err != nil {
		return nil, err
	}
	if err := m.Start(ctx); err != nil {
		return m, err
	}
	return m, nil
}

// Start runs the CPU until it halts or ctx is cancelled.
func (m *Machine) Start(ctx context.Context) error {
	if err := m.cpu.Start(ctx); err != nil {
		return fmt.Errorf("cpu: %w", err)
	}
	return nil
}

// Reset puts the CPU back on its reset vector and clears a latched bus
// fault. Memory is left as is.
func (m *Machine) Reset() {
	m.bus.ClearFault()
	m.cpu.Reset()
}

func (m *Machine) Config() MachineConfig     { return m.cfg }
func (m *Machine) Bus() *AddressSpace        { return m.bus }
func (m *Machine) CPU() *ARM926Core          { return m.cpu }
func (m *Machine) Diagnostics() *Diagnostics { return m.diag }
func (m *Machine) BootImageSize() int        { return m.romLoaded }

// Device returns the handler bound to a peripheral window.
func (m *Machine) Device(name string) MMIOHandler {
	return m.devices[name]
}

// DeviceNames lists the peripheral windows with a bound handler.
func (m *Machine) DeviceNames() []string {
	names := make([]string, 0, len(m.devices))
	for name := range m.devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases RAM backing and any device resources.
func (m *Machine) Close() error {
	var errs []error
	if m.bus != nil {
		errs = append(errs, m.bus.Close())
	}
	for _, name := range m.DeviceNames() {
		if c, ok := m.devices[name].(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	m.devices = map[string]MMIOHandler{}
	return errors.Join(errs...)
}
