package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestDiagnostics_PrintsFirstOccurrenceOnly(t *testing.T) {
	var out bytes.Buffer
	d := NewDiagnostics(&out, 8)

	read := Diagnostic{Kind: DiagUnimplementedMMIO, Region: "aes", Offset: 0x10, Size: AccessWord, Dir: AccessRead}
	for i := 0; i < 3; i++ {
		d.Record(read)
	}
	write := read
	write.Dir = AccessWrite
	write.Value = 0x55
	d.Record(write)

	if d.Total() != 4 {
		t.Fatalf("Total() = %d, want 4", d.Total())
	}
	if n := strings.Count(out.String(), "\n"); n != 2 {
		t.Fatalf("printed %d lines, want 2:\n%s", n, out.String())
	}
	if !strings.Contains(out.String(), "aes+0x010") || !strings.Contains(out.String(), "value 0x55") {
		t.Fatalf("output:\n%s", out.String())
	}
	if d.Count(DiagUnimplementedMMIO, "aes") != 4 {
		t.Fatalf("Count(aes) = %d", d.Count(DiagUnimplementedMMIO, "aes"))
	}
	if d.Count(DiagUnmappedAccess, "aes") != 0 {
		t.Fatal("Count mixed kinds")
	}
}

func TestDiagnostics_CountCoversNamedRegisters(t *testing.T) {
	d := NewDiagnostics(&bytes.Buffer{}, 0)
	d.Record(Diagnostic{Kind: DiagUnimplementedMMIO, Region: "nand.NAND_CMD"})
	d.Record(Diagnostic{Kind: DiagUnimplementedMMIO, Region: "nand", Offset: 0x100})
	d.Record(Diagnostic{Kind: DiagUnimplementedMMIO, Region: "nandx"})

	if n := d.Count(DiagUnimplementedMMIO, "nand"); n != 2 {
		t.Fatalf("Count(nand) = %d, want 2", n)
	}
	if n := d.Count(DiagUnimplementedMMIO, "nand.NAND_CMD"); n != 1 {
		t.Fatalf("Count(nand.NAND_CMD) = %d, want 1", n)
	}
}

func TestDiagnostics_RingKeepsMostRecent(t *testing.T) {
	d := NewDiagnostics(&bytes.Buffer{}, 4)
	for i := uint32(0); i < 10; i++ {
		d.Record(Diagnostic{Kind: DiagUnmappedAccess, Addr: i})
	}
	recent := d.Recent()
	if len(recent) != 4 {
		t.Fatalf("Recent() has %d entries, want 4", len(recent))
	}
	for i, diag := range recent {
		if diag.Addr != uint32(6+i) {
			t.Fatalf("Recent()[%d].Addr = %d, want %d", i, diag.Addr, 6+i)
		}
	}
}

func TestDiagnostics_UnmappedSweepStaysBounded(t *testing.T) {
	var out bytes.Buffer
	d := NewDiagnostics(&out, 0)
	const n = 200000
	for i := uint32(0); i < n; i++ {
		d.Record(Diagnostic{Kind: DiagUnmappedAccess, Addr: 0x20000000 + 4*i, Size: AccessWord, Dir: AccessRead})
	}
	// 800000 bytes span 13 pages of 64 KiB.
	if len(d.seen) != 13 {
		t.Fatalf("seen holds %d keys, want 13", len(d.seen))
	}
	if lines := strings.Count(out.String(), "\n"); lines != 13 {
		t.Fatalf("printed %d lines, want 13", lines)
	}
	if d.Total() != n || d.Count(DiagUnmappedAccess, "") != n {
		t.Fatalf("Total=%d Count=%d, want %d", d.Total(), d.Count(DiagUnmappedAccess, ""), n)
	}
}

func TestDiagnostics_SilentStillCounts(t *testing.T) {
	var out bytes.Buffer
	d := NewDiagnostics(&out, 0)
	d.SetSilent(true)
	d.Record(Diagnostic{Kind: DiagReadOnlyWrite, Region: "rom", Dir: AccessWrite})
	if out.Len() != 0 {
		t.Fatalf("silent diagnostics printed %q", out.String())
	}
	if d.Total() != 1 || len(d.Recent()) != 1 {
		t.Fatal("silent diagnostics not recorded")
	}
}

func TestDiagnostics_NilReceiver(t *testing.T) {
	var d *Diagnostics
	d.Record(Diagnostic{})
	if d.Total() != 0 || d.Count(DiagUnmappedAccess, "") != 0 || d.Recent() != nil {
		t.Fatal("nil Diagnostics not inert")
	}
}

func TestDiagnosticKind_String(t *testing.T) {
	tests := map[DiagnosticKind]string{
		DiagUnimplementedMMIO: "unimplemented",
		DiagUnmappedAccess:    "unmapped",
		DiagReadOnlyWrite:     "read-only",
		DiagOutOfBounds:       "out-of-bounds",
		DiagnosticKind(42):    "diag(42)",
	}
	for k, want := range tests {
		if k.String() != want {
			t.Fatalf("String() = %q, want %q", k.String(), want)
		}
	}
}
