// debug_commands.go - Command parser and handlers for Machine Monitor

/*
License: GPLv3 or later
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"
)

// MonitorCommand is a parsed command with name and arguments.
type MonitorCommand struct {
	Name string
	Args []string
}

// ParseCommand splits a raw input line into a command name and arguments.
func ParseCommand(input string) MonitorCommand {
	input = strings.TrimSpace(input)
	if input == "" {
		return MonitorCommand{}
	}
	parts := strings.Fields(input)
	return MonitorCommand{
		Name: strings.ToLower(parts[0]),
		Args: parts[1:],
	}
}

// ParseAddress parses a monitor address in various formats:
// $hex, 0xhex, bare hex, #decimal
func ParseAddress(s string) (uint64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	if strings.HasPrefix(s, "#") {
		v, err := strconv.ParseUint(s[1:], 10, 64)
		return v, err == nil
	}
	if strings.HasPrefix(s, "$") {
		v, err := strconv.ParseUint(s[1:], 16, 64)
		return v, err == nil
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 64)
		return v, err == nil
	}

	v, err := strconv.ParseUint(s, 16, 64)
	return v, err == nil
}

// EvalAddress evaluates a simple expression: <term> [+|- <term>]*
// Each term is a CPU register name (pc, cpsr) or a numeric address. The
// result must fit the 32-bit physical address space.
func EvalAddress(expr string, cpu *ARM926Core) (uint32, bool) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0, false
	}

	type token struct {
		text string
		op   byte // 0 for first term, '+' or '-'
	}

	var tokens []token
	current := strings.Builder{}
	currentOp := byte(0)

	for i := 0; i < len(expr); i++ {
		ch := expr[i]
		if (ch == '+' || ch == '-') && i > 0 {
			if t := strings.TrimSpace(current.String()); t != "" {
				tokens = append(tokens, token{text: t, op: currentOp})
			}
			currentOp = ch
			current.Reset()
		} else {
			current.WriteByte(ch)
		}
	}
	if t := strings.TrimSpace(current.String()); t != "" {
		tokens = append(tokens, token{text: t, op: currentOp})
	}
	if len(tokens) == 0 {
		return 0, false
	}

	var result uint64
	for _, tok := range tokens {
		val, ok := cpuRegister(cpu, tok.text)
		if !ok {
			val, ok = ParseAddress(tok.text)
		}
		if !ok {
			return 0, false
		}
		switch tok.op {
		case 0, '+':
			result += val
		case '-':
			result -= val
		}
	}
	if result > 0xFFFFFFFF {
		return 0, false
	}
	return uint32(result), true
}

func cpuRegister(cpu *ARM926Core, name string) (uint64, bool) {
	if cpu == nil {
		return 0, false
	}
	switch strings.ToUpper(name) {
	case "PC":
		return uint64(cpu.PC()), true
	case "CPSR":
		return uint64(cpu.CPSR()), true
	}
	return 0, false
}

// ExecuteCommand dispatches a parsed command to the appropriate handler.
// Returns true if the monitor should exit.
func (m *MachineMonitor) ExecuteCommand(input string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd := ParseCommand(input)
	if cmd.Name == "" {
		return false
	}

	if len(m.history) == 0 || m.history[len(m.history)-1] != input {
		m.history = append(m.history, input)
	}
	m.historyIdx = len(m.history)

	switch cmd.Name {
	case "r":
		return m.cmdRegisters(cmd)
	case "m":
		return m.cmdMemoryDump(cmd)
	case "rb", "rh", "rw", "rd":
		return m.cmdRead(cmd)
	case "wb", "wh", "ww", "wd":
		return m.cmdWriteValue(cmd)
	case "w":
		return m.cmdWrite(cmd)
	case "f":
		return m.cmdFill(cmd)
	case "h":
		return m.cmdHunt(cmd)
	case "c":
		return m.cmdCompare(cmd)
	case "save":
		return m.cmdSaveMemory(cmd)
	case "ss":
		return m.cmdSaveSnapshot(cmd)
	case "sl":
		return m.cmdLoadSnapshot(cmd)
	case "map":
		return m.cmdMap(cmd)
	case "io":
		return m.cmdIOView(cmd)
	case "irq":
		return m.cmdIRQ(cmd)
	case "diag":
		return m.cmdDiagnostics(cmd)
	case "cfg":
		return m.cmdConfig(cmd)
	case "g":
		return m.cmdGo(cmd)
	case "reset":
		return m.cmdReset(cmd)
	case "x", "q", "quit":
		return m.cmdExit(cmd)
	case "?", "help":
		return m.cmdHelp(cmd)
	}
	m.appendOutput(fmt.Sprintf("Unknown command: %s", cmd.Name), colorRed)
	return false
}

func (m *MachineMonitor) showRegisters() {
	cpu := m.machine.CPU()
	state := "RUNNABLE"
	if cpu.Halted() {
		state = "PARKED"
	}
	m.appendOutput(fmt.Sprintf("PC=$%08X  CPSR=$%08X  %s  steps=%d", cpu.PC(), cpu.CPSR(), state, cpu.Steps()), colorWhite)
	if err := cpu.Err(); err != nil {
		m.appendOutput(fmt.Sprintf("Stopped: %v", err), colorRed)
	}
	for _, f := range cpu.FetchLog() {
		m.appendOutput(fmt.Sprintf("  fetch $%08X: %08X", f.PC, f.Insn), colorDim)
	}
}

func (m *MachineMonitor) cmdRegisters(_ MonitorCommand) bool {
	m.showRegisters()
	return false
}

func (m *MachineMonitor) cmdMemoryDump(cmd MonitorCommand) bool {
	cpu := m.machine.CPU()
	addr := cpu.PC()
	lines := 8

	if len(cmd.Args) >= 1 {
		v, ok := EvalAddress(cmd.Args[0], cpu)
		if !ok {
			m.appendOutput(fmt.Sprintf("Invalid address: %s", cmd.Args[0]), colorRed)
			return false
		}
		addr = v
	}
	if len(cmd.Args) >= 2 {
		if v, ok := ParseAddress(cmd.Args[1]); ok && v > 0 && v <= 4096 {
			lines = int(v)
		}
	}

	for i := 0; i < lines; i++ {
		data, _ := m.machine.Bus().Peek(addr, 16)

		var hexParts []string
		var asciiParts []byte
		for _, b := range data {
			hexParts = append(hexParts, fmt.Sprintf("%02X", b))
			if b >= 0x20 && b < 0x7F {
				asciiParts = append(asciiParts, b)
			} else {
				asciiParts = append(asciiParts, '.')
			}
		}

		hexStr := strings.Join(hexParts[:8], " ") + "  " + strings.Join(hexParts[8:], " ")
		m.appendOutput(fmt.Sprintf("%08X: %s  %s", addr, hexStr, string(asciiParts)), colorWhite)
		if addr > 0xFFFFFFFF-16 {
			break
		}
		addr += 16
	}
	return false
}

func accessSizeFor(name string) AccessSize {
	switch name[len(name)-1] {
	case 'b':
		return AccessByte
	case 'h':
		return AccessHalf
	case 'w':
		return AccessWord
	}
	return AccessDouble
}

func formatSized(v uint64, size AccessSize) string {
	return fmt.Sprintf("$%0*X", int(size)*2, v)
}

// cmdRead reads through the CPU-facing path: device handlers run and
// policies apply.
func (m *MachineMonitor) cmdRead(cmd MonitorCommand) bool {
	if len(cmd.Args) < 1 {
		m.appendOutput(fmt.Sprintf("Usage: %s <addr>", cmd.Name), colorRed)
		return false
	}
	addr, ok := EvalAddress(cmd.Args[0], m.machine.CPU())
	if !ok {
		m.appendOutput(fmt.Sprintf("Invalid address: %s", cmd.Args[0]), colorRed)
		return false
	}
	size := accessSizeFor(cmd.Name)
	v, err := m.machine.Bus().Read(addr, size)
	if err != nil {
		m.appendOutput(fmt.Sprintf("Error: %v", err), colorRed)
		return false
	}
	m.appendOutput(fmt.Sprintf("$%08X = %s", addr, formatSized(v, size)), colorGreen)
	return false
}

func (m *MachineMonitor) cmdWriteValue(cmd MonitorCommand) bool {
	if len(cmd.Args) < 2 {
		m.appendOutput(fmt.Sprintf("Usage: %s <addr> <value>", cmd.Name), colorRed)
		return false
	}
	addr, ok1 := EvalAddress(cmd.Args[0], m.machine.CPU())
	val, ok2 := ParseAddress(cmd.Args[1])
	if !ok1 || !ok2 {
		m.appendOutput("Invalid argument", colorRed)
		return false
	}
	size := accessSizeFor(cmd.Name)
	if val&^sizeMask(size) != 0 {
		m.appendOutput(fmt.Sprintf("Value does not fit %d byte(s)", size), colorRed)
		return false
	}
	if err := m.machine.Bus().Write(addr, size, val); err != nil {
		m.appendOutput(fmt.Sprintf("Error: %v", err), colorRed)
		return false
	}
	m.appendOutput(fmt.Sprintf("$%08X <- %s", addr, formatSized(val, size)), colorCyan)
	return false
}

func (m *MachineMonitor) cmdWrite(cmd MonitorCommand) bool {
	if len(cmd.Args) < 2 {
		m.appendOutput("Usage: w <addr> <bytes..>", colorRed)
		return false
	}

	addr, ok := EvalAddress(cmd.Args[0], m.machine.CPU())
	if !ok {
		m.appendOutput(fmt.Sprintf("Invalid address: %s", cmd.Args[0]), colorRed)
		return false
	}

	var data []byte
	for _, arg := range cmd.Args[1:] {
		v, ok := ParseAddress(arg)
		if !ok || v > 0xFF {
			m.appendOutput(fmt.Sprintf("Invalid byte: %s", arg), colorRed)
			return false
		}
		data = append(data, byte(v))
	}

	n, err := m.writeBytes(addr, data)
	if err != nil {
		m.appendOutput(fmt.Sprintf("Error after %d byte(s): %v", n, err), colorRed)
		return false
	}
	m.appendOutput(fmt.Sprintf("Wrote %d byte(s) at $%08X", len(data), addr), colorCyan)
	return false
}

func (m *MachineMonitor) writeBytes(addr uint32, data []byte) (int, error) {
	bus := m.machine.Bus()
	for i, b := range data {
		if uint64(addr)+uint64(i) > 0xFFFFFFFF {
			return i, errors.New("end of address space")
		}
		if err := bus.Write(addr+uint32(i), AccessByte, uint64(b)); err != nil {
			return i, err
		}
	}
	return len(data), nil
}

// parseRange reads <start> <end> from args, inclusive, capped at limit bytes.
func (m *MachineMonitor) parseRange(args []string, limit uint64) (uint32, int, bool) {
	cpu := m.machine.CPU()
	start, ok1 := EvalAddress(args[0], cpu)
	end, ok2 := EvalAddress(args[1], cpu)
	if !ok1 || !ok2 {
		m.appendOutput("Invalid address", colorRed)
		return 0, 0, false
	}
	if end < start {
		m.appendOutput("End must be >= start", colorRed)
		return 0, 0, false
	}
	size := uint64(end) - uint64(start) + 1
	if size > limit {
		m.appendOutput(fmt.Sprintf("Range too large (max %d bytes)", limit), colorRed)
		return 0, 0, false
	}
	return start, int(size), true
}

func (m *MachineMonitor) cmdFill(cmd MonitorCommand) bool {
	if len(cmd.Args) < 3 {
		m.appendOutput("Usage: f <start> <end> <byte>", colorRed)
		return false
	}
	start, size, ok := m.parseRange(cmd.Args, 0x100000)
	if !ok {
		return false
	}
	val, ok := ParseAddress(cmd.Args[2])
	if !ok || val > 0xFF {
		m.appendOutput(fmt.Sprintf("Invalid byte: %s", cmd.Args[2]), colorRed)
		return false
	}

	data := make([]byte, size)
	for i := range data {
		data[i] = byte(val)
	}
	if n, err := m.writeBytes(start, data); err != nil {
		m.appendOutput(fmt.Sprintf("Error after %d byte(s): %v", n, err), colorRed)
		return false
	}
	m.appendOutput(fmt.Sprintf("Filled $%08X-$%08X with $%02X", start, start+uint32(size-1), byte(val)), colorCyan)
	return false
}

func (m *MachineMonitor) cmdHunt(cmd MonitorCommand) bool {
	if len(cmd.Args) < 3 {
		m.appendOutput("Usage: h <start> <end> <bytes..>", colorRed)
		return false
	}
	start, size, ok := m.parseRange(cmd.Args, 0x10000000)
	if !ok {
		return false
	}

	var pattern []byte
	for _, arg := range cmd.Args[2:] {
		v, ok := ParseAddress(arg)
		if !ok || v > 0xFF {
			m.appendOutput(fmt.Sprintf("Invalid byte: %s", arg), colorRed)
			return false
		}
		pattern = append(pattern, byte(v))
	}
	if len(pattern) > size {
		m.appendOutput("Not found", colorDim)
		return false
	}

	data, _ := m.machine.Bus().Peek(start, size)
	found := 0
	for i := 0; i+len(pattern) <= len(data); i++ {
		if string(data[i:i+len(pattern)]) != string(pattern) {
			continue
		}
		m.appendOutput(fmt.Sprintf("Found at $%08X", start+uint32(i)), colorCyan)
		found++
		if found >= 256 {
			m.appendOutput("... (truncated)", colorDim)
			break
		}
	}
	if found == 0 {
		m.appendOutput("Not found", colorDim)
	}
	return false
}

func (m *MachineMonitor) cmdCompare(cmd MonitorCommand) bool {
	if len(cmd.Args) < 3 {
		m.appendOutput("Usage: c <start> <end> <dest>", colorRed)
		return false
	}
	start, size, ok := m.parseRange(cmd.Args, 0x10000000)
	if !ok {
		return false
	}
	dest, ok := EvalAddress(cmd.Args[2], m.machine.CPU())
	if !ok {
		m.appendOutput("Invalid argument", colorRed)
		return false
	}

	data1, _ := m.machine.Bus().Peek(start, size)
	data2, _ := m.machine.Bus().Peek(dest, size)
	diffs := 0
	for i := range data1 {
		if data1[i] != data2[i] {
			m.appendOutput(fmt.Sprintf("$%08X: %02X != %02X (at $%08X)", start+uint32(i), data1[i], data2[i], dest+uint32(i)), colorYellow)
			diffs++
			if diffs >= 256 {
				m.appendOutput("... (truncated)", colorDim)
				break
			}
		}
	}
	if diffs == 0 {
		m.appendOutput("Identical", colorGreen)
	}
	return false
}

func (m *MachineMonitor) cmdSaveMemory(cmd MonitorCommand) bool {
	if len(cmd.Args) < 3 {
		m.appendOutput("Usage: save <start> <end> <filename>", colorRed)
		return false
	}
	start, size, ok := m.parseRange(cmd.Args, 64*1024*1024)
	if !ok {
		return false
	}

	data, _ := m.machine.Bus().Peek(start, size)
	if err := os.WriteFile(cmd.Args[2], data, 0644); err != nil {
		m.appendOutput(fmt.Sprintf("Error: %s", err), colorRed)
		return false
	}
	m.appendOutput(fmt.Sprintf("Saved %d bytes ($%08X-$%08X) to %s", size, start, start+uint32(size-1), cmd.Args[2]), colorCyan)
	return false
}

func (m *MachineMonitor) cmdSaveSnapshot(cmd MonitorCommand) bool {
	if len(cmd.Args) < 1 {
		m.appendOutput("Usage: ss <filename>", colorRed)
		return false
	}
	if err := SaveSnapshot(m.machine, cmd.Args[0]); err != nil {
		m.appendOutput(fmt.Sprintf("Error: %v", err), colorRed)
		return false
	}
	m.appendOutput(fmt.Sprintf("Snapshot saved to %s", cmd.Args[0]), colorCyan)
	return false
}

func (m *MachineMonitor) cmdLoadSnapshot(cmd MonitorCommand) bool {
	if len(cmd.Args) < 1 {
		m.appendOutput("Usage: sl <filename>", colorRed)
		return false
	}
	snap, err := LoadSnapshot(m.machine, cmd.Args[0])
	if err != nil {
		m.appendOutput(fmt.Sprintf("Error: %v", err), colorRed)
		return false
	}
	m.appendOutput(fmt.Sprintf("Snapshot loaded from %s (%d regions)", cmd.Args[0], len(snap.Regions)), colorCyan)
	m.showRegisters()
	return false
}

func (m *MachineMonitor) cmdMap(_ MonitorCommand) bool {
	m.appendOutput("Start     End       Size      Kind  Name", colorCyan)
	for _, r := range m.machine.Bus().Regions() {
		extra := ""
		if r.Kind == RegionROM && r.Committed() {
			extra = " (committed)"
		}
		m.appendOutput(fmt.Sprintf("$%08X $%08X $%08X %-5s %s%s", r.Base, uint32(r.End()-1), r.Size, r.Kind, r.Name, extra), colorWhite)
	}
	return false
}

func (m *MachineMonitor) cmdIOView(cmd MonitorCommand) bool {
	bus := m.machine.Bus()
	if len(cmd.Args) == 0 {
		m.appendOutput("Available I/O devices:", colorCyan)
		for _, name := range listIODevices(bus) {
			m.appendOutput(fmt.Sprintf("  %s", name), colorWhite)
		}
		return false
	}

	arg := strings.ToLower(cmd.Args[0])
	if arg == "all" {
		for _, name := range listIODevices(bus) {
			for _, line := range formatIOView(bus, name) {
				m.appendOutput(line, colorCyan)
			}
		}
		return false
	}

	for _, line := range formatIOView(bus, arg) {
		m.appendOutput(line, colorCyan)
	}
	return false
}

func (m *MachineMonitor) cmdIRQ(_ MonitorCommand) bool {
	for _, line := range IRQLines() {
		m.appendOutput(fmt.Sprintf("  %2d  %-13s mask $%08X", int(line), line, line.Mask()), colorWhite)
	}
	return false
}

func (m *MachineMonitor) cmdDiagnostics(cmd MonitorCommand) bool {
	diag := m.machine.Diagnostics()
	recent := diag.Recent()
	if len(cmd.Args) >= 1 {
		if n, err := strconv.Atoi(cmd.Args[0]); err == nil && n >= 0 && n < len(recent) {
			recent = recent[len(recent)-n:]
		}
	}
	m.appendOutput(fmt.Sprintf("%d diagnostic(s) recorded", diag.Total()), colorCyan)
	for _, d := range recent {
		m.appendOutput("  "+d.String(), colorYellow)
	}
	if err := m.machine.Bus().Fault(); err != nil {
		m.appendOutput(fmt.Sprintf("Fault: %v", err), colorRed)
	}
	return false
}

var configDumper = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

func (m *MachineMonitor) cmdConfig(_ MonitorCommand) bool {
	cfg := m.machine.Config()
	cfg.Log = nil
	for _, line := range strings.Split(strings.TrimRight(configDumper.Sdump(cfg), "\n"), "\n") {
		m.appendOutput(line, colorWhite)
	}
	return false
}

// cmdGo runs the CPU from its current PC until it parks or stops.
func (m *MachineMonitor) cmdGo(_ MonitorCommand) bool {
	if err := m.machine.Start(context.Background()); err != nil {
		if errors.Is(err, ErrMachineHalted) {
			m.appendOutput("CPU is parked; use reset first", colorRed)
			return false
		}
		m.appendOutput(fmt.Sprintf("Error: %v", err), colorRed)
	}
	m.showRegisters()
	return false
}

func (m *MachineMonitor) cmdReset(_ MonitorCommand) bool {
	m.machine.Reset()
	m.appendOutput(fmt.Sprintf("Reset to $%08X", m.machine.CPU().PC()), colorCyan)
	return false
}

func (m *MachineMonitor) cmdExit(_ MonitorCommand) bool {
	m.state = MonitorInactive
	return true
}

func (m *MachineMonitor) cmdHelp(_ MonitorCommand) bool {
	helpLines := []string{
		"Machine Monitor Commands:",
		"  r                  Show CPU state and recent fetches",
		"  m [addr] [count]   Memory dump (hex+ASCII, storage only)",
		"  rb/rh/rw/rd <addr>         Read 1/2/4/8 bytes through the bus",
		"  wb/wh/ww/wd <addr> <val>   Write 1/2/4/8 bytes through the bus",
		"  w <addr> <bytes..>         Write bytes",
		"  f <start> <end> <byte>     Fill memory",
		"  h <start> <end> <bytes..>  Hunt/search",
		"  c <start> <end> <dest>     Compare memory",
		"  save <s> <e> <file>        Save memory to file",
		"  ss <file>          Save a RAM and CPU snapshot",
		"  sl <file>          Load a snapshot",
		"  map                Show the memory map",
		"  io [device|all]    I/O register viewer",
		"  irq                Show the interrupt line table",
		"  diag [count]       Show recent diagnostics",
		"  cfg                Dump the machine configuration",
		"  g                  Run the CPU",
		"  reset              Reset the CPU onto its vector",
		"  x                  Exit monitor",
		"",
		"Addresses: $hex, 0xhex, bare hex, #decimal, expr+expr, pc",
	}
	for _, line := range helpLines {
		m.appendOutput(line, colorCyan)
	}
	return false
}
