// debug_snapshot.go - Machine RAM and CPU state snapshots for the monitor

package main

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	snapshotMagic   = "STMS"
	snapshotVersion = 1
)

// SnapshotRegion describes one RAM region stored in a snapshot.
type SnapshotRegion struct {
	Name string
	Base uint32
	Size uint32
}

// MachineSnapshot is the header of a snapshot file. The region contents
// follow it as a single gzip stream, in header order. ROM and device state
// are not stored: ROM is fixed for the run and stubs have none.
type MachineSnapshot struct {
	CPUModel string
	PC       uint32
	CPSR     uint32
	Regions  []SnapshotRegion
}

// snapshotRegions returns the RAM regions of as in address order.
func snapshotRegions(as *AddressSpace) []*Region {
	var out []*Region
	for _, r := range as.Regions() {
		if r.Kind == RegionRAM {
			out = append(out, r)
		}
	}
	return out
}

// SaveSnapshot writes the CPU state and every RAM region of m to path.
func SaveSnapshot(m *Machine, path string) error {
	var buf bytes.Buffer
	cpu := m.CPU()
	regions := snapshotRegions(m.Bus())

	// Magic
	buf.WriteString(snapshotMagic)

	// Version
	binary.Write(&buf, binary.LittleEndian, uint32(snapshotVersion))

	// CPU model and state
	model := []byte(cpu.Config().Model)
	buf.WriteByte(byte(len(model)))
	buf.Write(model)
	binary.Write(&buf, binary.LittleEndian, cpu.PC())
	binary.Write(&buf, binary.LittleEndian, cpu.CPSR())

	// Region table
	binary.Write(&buf, binary.LittleEndian, uint32(len(regions)))
	for _, r := range regions {
		buf.WriteByte(byte(len(r.Name)))
		buf.WriteString(r.Name)
		binary.Write(&buf, binary.LittleEndian, r.Base)
		binary.Write(&buf, binary.LittleEndian, r.Size)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return err
	}

	gz := gzip.NewWriter(f)
	for _, r := range regions {
		if _, err := gz.Write(r.data); err != nil {
			f.Close()
			return fmt.Errorf("compressing %s: %w", r.Name, err)
		}
	}
	if err := gz.Close(); err != nil {
		f.Close()
		return fmt.Errorf("closing gzip: %w", err)
	}
	return f.Close()
}

func readSnapshotHeader(r *bufio.Reader) (*MachineSnapshot, error) {
	// Magic
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("reading magic: %w", err)
	}
	if string(magic) != snapshotMagic {
		return nil, fmt.Errorf("invalid snapshot magic: %q", string(magic))
	}

	// Version
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("reading version: %w", err)
	}
	if version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version: %d", version)
	}

	snap := &MachineSnapshot{}

	// CPU model and state
	modelLen, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("reading CPU model length: %w", err)
	}
	model := make([]byte, modelLen)
	if _, err := io.ReadFull(r, model); err != nil {
		return nil, fmt.Errorf("reading CPU model: %w", err)
	}
	snap.CPUModel = string(model)
	if err := binary.Read(r, binary.LittleEndian, &snap.PC); err != nil {
		return nil, fmt.Errorf("reading PC: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &snap.CPSR); err != nil {
		return nil, fmt.Errorf("reading CPSR: %w", err)
	}

	// Region table
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("reading region count: %w", err)
	}
	if count > uint32(len(starletMemoryMap)) {
		return nil, fmt.Errorf("snapshot lists %d regions", count)
	}
	for i := uint32(0); i < count; i++ {
		nameLen, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("reading region name length: %w", err)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, fmt.Errorf("reading region name: %w", err)
		}
		var base, size uint32
		if err := binary.Read(r, binary.LittleEndian, &base); err != nil {
			return nil, fmt.Errorf("reading region base: %w", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, fmt.Errorf("reading region size: %w", err)
		}
		snap.Regions = append(snap.Regions, SnapshotRegion{Name: string(name), Base: base, Size: size})
	}
	return snap, nil
}

// LoadSnapshot restores a snapshot taken from a machine with the same RAM
// layout. Memory is only touched once the whole file has been decoded.
func LoadSnapshot(m *Machine, path string) (*MachineSnapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	snap, err := readSnapshotHeader(br)
	if err != nil {
		return nil, err
	}

	cpu := m.CPU()
	if !strings.EqualFold(snap.CPUModel, string(cpu.Config().Model)) {
		return nil, fmt.Errorf("snapshot is for CPU %q", snap.CPUModel)
	}
	regions := snapshotRegions(m.Bus())
	if len(regions) != len(snap.Regions) {
		return nil, fmt.Errorf("snapshot has %d RAM regions, machine has %d", len(snap.Regions), len(regions))
	}
	for i, r := range regions {
		s := snap.Regions[i]
		if s.Name != r.Name || s.Base != r.Base || s.Size != r.Size {
			return nil, fmt.Errorf("snapshot region %s [0x%08X+0x%X] does not match %s", s.Name, s.Base, s.Size, r.Name)
		}
	}

	gz, err := gzip.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("opening gzip reader: %w", err)
	}
	defer gz.Close()

	mem := make([][]byte, len(regions))
	for i, r := range regions {
		mem[i] = make([]byte, r.Size)
		if _, err := io.ReadFull(gz, mem[i]); err != nil {
			return nil, fmt.Errorf("decompressing %s: %w", r.Name, err)
		}
	}

	for i, r := range regions {
		copy(r.data, mem[i])
	}
	cpu.restore(snap.PC, snap.CPSR)
	return snap, nil
}
