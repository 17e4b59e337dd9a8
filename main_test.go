package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRun_ExitCodes(t *testing.T) {
	rom := filepath.Join(t.TempDir(), "boot0.bin")
	if err := os.WriteFile(rom, []byte{0xEA, 0, 0, 0}, 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"help", []string{"-h"}, 0},
		{"features", []string{"-features"}, 0},
		{"bad flag", []string{"-nope"}, 1},
		{"missing rom", []string{"-quiet", filepath.Join(t.TempDir(), "missing.bin")}, 1},
		{"boot", []string{"-quiet", rom}, 0},
		{"instances", []string{"-quiet", "-instances", "2", rom}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := run(tt.args); got != tt.want {
				t.Fatalf("run(%v) = %d, want %d", tt.args, got, tt.want)
			}
		})
	}
}

func TestPrintFeatures(t *testing.T) {
	var out bytes.Buffer
	printFeatures(&out)
	text := out.String()
	for _, want := range []string{MACHINE_NAME + " " + Version, MACHINE_DESCRIPTION, "CPU:        arm926", "Compiled features:", "devices:lua"} {
		if !strings.Contains(text, want) {
			t.Fatalf("features output missing %q:\n%s", want, text)
		}
	}
}
