// diagnostics.go - Recoverable runtime conditions reported by the bus

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// DiagnosticKind classifies a recoverable runtime condition.
type DiagnosticKind int

const (
	DiagUnimplementedMMIO DiagnosticKind = iota
	DiagUnmappedAccess
	DiagReadOnlyWrite
	DiagOutOfBounds
)

func (k DiagnosticKind) String() string {
	switch k {
	case DiagUnimplementedMMIO:
		return "unimplemented"
	case DiagUnmappedAccess:
		return "unmapped"
	case DiagReadOnlyWrite:
		return "read-only"
	case DiagOutOfBounds:
		return "out-of-bounds"
	}
	return fmt.Sprintf("diag(%d)", int(k))
}

// Diagnostic is one recorded condition.
type Diagnostic struct {
	Kind   DiagnosticKind
	Region string
	Addr   uint32
	Offset uint32
	Size   AccessSize
	Dir    AccessDirection
	Value  uint64
}

func (d Diagnostic) String() string {
	if d.Region == "" {
		return fmt.Sprintf("%s %s at 0x%08X (size %d)", d.Kind, d.Dir, d.Addr, d.Size)
	}
	if d.Dir == AccessWrite {
		return fmt.Sprintf("%s %s %s+0x%03X (size %d, value 0x%X)", d.Kind, d.Dir, d.Region, d.Offset, d.Size, d.Value)
	}
	return fmt.Sprintf("%s %s %s+0x%03X (size %d)", d.Kind, d.Dir, d.Region, d.Offset, d.Size)
}

type diagKey struct {
	kind   DiagnosticKind
	region string
	offset uint32
	dir    AccessDirection
}

// Diagnostics counts conditions, keeps the most recent ones and prints each
// distinct (kind, region, offset, direction) once. Unmapped accesses have no
// region and are keyed by their 64 KiB page.
type Diagnostics struct {
	out    io.Writer
	ring   []Diagnostic
	next   int
	full   bool
	total  uint64
	seen   map[diagKey]uint64
	silent bool
}

const DEFAULT_DIAG_RING = 64

// Unmapped accesses are reported once per page, not per address.
const DIAG_UNMAPPED_PAGE_MASK = 0xFFFF0000

// NewDiagnostics writes first occurrences to out (stderr when nil).
func NewDiagnostics(out io.Writer, ringSize int) *Diagnostics {
	if out == nil {
		out = os.Stderr
	}
	if ringSize <= 0 {
		ringSize = DEFAULT_DIAG_RING
	}
	return &Diagnostics{
		out:  out,
		ring: make([]Diagnostic, ringSize),
		seen: make(map[diagKey]uint64),
	}
}

// SetSilent stops printing; conditions are still counted and kept.
func (d *Diagnostics) SetSilent(silent bool) {
	d.silent = silent
}

// Record stores a condition. A nil receiver discards it.
func (d *Diagnostics) Record(diag Diagnostic) {
	if d == nil {
		return
	}
	d.total++
	d.ring[d.next] = diag
	d.next = (d.next + 1) % len(d.ring)
	if d.next == 0 {
		d.full = true
	}

	key := diagKey{diag.Kind, diag.Region, diag.Offset, diag.Dir}
	if diag.Region == "" {
		key.offset = diag.Addr & DIAG_UNMAPPED_PAGE_MASK
	}
	d.seen[key]++
	if d.seen[key] == 1 && !d.silent {
		fmt.Fprintf(d.out, "starlet: %s\n", diag)
	}
}

// Total returns how many conditions were recorded.
func (d *Diagnostics) Total() uint64 {
	if d == nil {
		return 0
	}
	return d.total
}

// Count returns how often a given kind was recorded for a region. A device
// name also counts its named registers ("nand" covers "nand.NAND_CMD").
func (d *Diagnostics) Count(kind DiagnosticKind, region string) uint64 {
	if d == nil {
		return 0
	}
	var n uint64
	for k, c := range d.seen {
		if k.kind == kind && (k.region == region || strings.HasPrefix(k.region, region+".")) {
			n += c
		}
	}
	return n
}

// Recent returns the retained conditions, oldest first.
func (d *Diagnostics) Recent() []Diagnostic {
	if d == nil {
		return nil
	}
	if !d.full {
		return append([]Diagnostic(nil), d.ring[:d.next]...)
	}
	out := make([]Diagnostic, 0, len(d.ring))
	out = append(out, d.ring[d.next:]...)
	return append(out, d.ring[:d.next]...)
}
