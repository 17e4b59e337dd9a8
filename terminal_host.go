// terminal_host.go - Console host for the Machine Monitor

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const MONITOR_PROMPT = "starlet> "

// TerminalHost connects a MachineMonitor to a console. On a terminal it
// switches stdin to raw mode and uses x/term's line editor, which gives
// history and cursor keys; otherwise it reads plain lines, which is what
// scripted input and pipes need.
type TerminalHost struct {
	mon *MachineMonitor
	in  *os.File
	out io.Writer
}

// NewTerminalHost creates a host that reads commands from in.
func NewTerminalHost(mon *MachineMonitor, in *os.File, out io.Writer) *TerminalHost {
	return &TerminalHost{mon: mon, in: in, out: out}
}

// Run reads commands until the monitor exits or input ends.
func (h *TerminalHost) Run() error {
	fd := int(h.in.Fd())
	if !term.IsTerminal(fd) {
		return h.runLines(h.in)
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "terminal_host: failed to set raw mode: %v\n", err)
		return h.runLines(h.in)
	}
	defer term.Restore(fd, oldState)

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{h.in, h.out}, MONITOR_PROMPT)
	if w, rows, err := term.GetSize(fd); err == nil {
		t.SetSize(w, rows)
	}

	// term.Terminal translates \n to \r\n for the raw console.
	h.mon.SetOutput(t, true)
	defer h.mon.SetOutput(h.out, false)

	h.mon.Activate()
	defer h.mon.Deactivate()
	for {
		line, err := t.ReadLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if h.mon.ExecuteCommand(line) {
			return nil
		}
	}
}

// runLines drives the monitor from line-oriented input.
func (h *TerminalHost) runLines(r io.Reader) error {
	h.mon.SetOutput(h.out, false)
	h.mon.Activate()
	defer h.mon.Deactivate()

	scanner := bufio.NewScanner(r)
	for {
		fmt.Fprint(h.out, MONITOR_PROMPT)
		if !scanner.Scan() {
			fmt.Fprintln(h.out)
			return scanner.Err()
		}
		if h.mon.ExecuteCommand(strings.TrimRight(scanner.Text(), "\r")) {
			return nil
		}
	}
}
