// debug_monitor.go - Machine Monitor core (scrollback, history, activate/deactivate)

/*
License: GPLv3 or later
*/

/*
debug_monitor.go - Machine Monitor

The monitor is a line-oriented inspector for one composed machine. It reads
memory through the address space, decodes peripheral windows with their
register tables and shows the diagnostics log. Commands that touch memory
go through the same CPU-facing path the core uses, so policies and
diagnostics apply to them exactly as they would to firmware; the hex dump
and search commands use Peek and never reach a device handler.

Output is kept in a scrollback buffer and, when a writer is attached,
printed as it is produced. Colors are rendered as 24-bit ANSI escapes only
when the writer is a terminal.
*/

package main

import (
	"fmt"
	"io"
	"sync"
)

// MonitorState represents whether the monitor is active.
type MonitorState int

const (
	MonitorInactive MonitorState = iota
	MonitorActive
)

// OutputLine holds styled text for the monitor scrollback buffer.
type OutputLine struct {
	Text  string
	Color uint32 // RGBA packed
}

// MachineMonitor is the interactive inspector for one machine.
type MachineMonitor struct {
	mu    sync.Mutex
	state MonitorState

	machine *Machine

	out   io.Writer
	color bool

	outputLines []OutputLine
	maxOutput   int

	history    []string
	historyIdx int
}

// NewMachineMonitor creates a monitor for m. out may be nil, in which case
// output is only kept in the scrollback buffer.
func NewMachineMonitor(m *Machine, out io.Writer) *MachineMonitor {
	return &MachineMonitor{
		state:     MonitorInactive,
		machine:   m,
		out:       out,
		maxOutput: 500,
	}
}

// SetOutput redirects printed output. color enables ANSI escapes.
func (m *MachineMonitor) SetOutput(out io.Writer, color bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.out = out
	m.color = color
}

func (m *MachineMonitor) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == MonitorActive
}

// Activate enters the monitor and shows the CPU state.
func (m *MachineMonitor) Activate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == MonitorActive {
		return
	}
	m.state = MonitorActive
	m.historyIdx = len(m.history)

	m.appendOutput(fmt.Sprintf("%s MONITOR - Type ? for help", MACHINE_DESCRIPTION), colorCyan)
	m.showRegisters()
}

// Deactivate leaves the monitor.
func (m *MachineMonitor) Deactivate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = MonitorInactive
}

// Output returns a copy of the scrollback buffer.
func (m *MachineMonitor) Output() []OutputLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]OutputLine(nil), m.outputLines...)
}

// ClearOutput empties the scrollback buffer.
func (m *MachineMonitor) ClearOutput() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outputLines = nil
}

// History returns the command history, oldest first.
func (m *MachineMonitor) History() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.history...)
}

// appendOutput adds a line to the scrollback buffer and prints it.
func (m *MachineMonitor) appendOutput(text string, color uint32) {
	m.outputLines = append(m.outputLines, OutputLine{Text: text, Color: color})
	if len(m.outputLines) > m.maxOutput {
		m.outputLines = m.outputLines[len(m.outputLines)-m.maxOutput:]
	}
	if m.out == nil {
		return
	}
	if m.color {
		fmt.Fprintf(m.out, "%s%s\033[0m\n", ansiColor(color), text)
		return
	}
	fmt.Fprintln(m.out, text)
}

// ansiColor turns a packed RGBA color into a 24-bit foreground escape.
func ansiColor(rgba uint32) string {
	return fmt.Sprintf("\033[38;2;%d;%d;%dm", byte(rgba>>24), byte(rgba>>16), byte(rgba>>8))
}

// Color constants (RGBA packed as 0xRRGGBBAA)
const (
	colorWhite  = 0xFFFFFFFF
	colorCyan   = 0x64C8FFFF
	colorYellow = 0xFFFF55FF
	colorRed    = 0xFF5555FF
	colorGreen  = 0x55FF55FF
	colorDim    = 0x5555FFFF
)
