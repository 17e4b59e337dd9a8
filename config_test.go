package main

import (
	"bytes"
	"errors"
	"flag"
	"strings"
	"testing"
)

func TestParseCommandLine_Defaults(t *testing.T) {
	opts, err := parseCommandLine(nil, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parseCommandLine: %v", err)
	}
	cfg := opts.machine
	if cfg.BootImage != "" || opts.instances != 1 || opts.monitor || opts.features {
		t.Fatalf("unexpected defaults: %+v", opts)
	}
	if !cfg.CPU.BigEndianConfig || !cfg.CPU.HighVectors || cfg.CPU.Model != CPU_ARM926 {
		t.Fatalf("CPU defaults = %+v", cfg.CPU)
	}
	if cfg.Bus.Unmapped != PolicyAbort || cfg.Bus.ROMWrites != PolicyDegrade || cfg.Bus.Bounds != PolicyDegrade {
		t.Fatalf("policy defaults = %v/%v/%v", cfg.Bus.Unmapped, cfg.Bus.ROMWrites, cfg.Bus.Bounds)
	}
}

func TestParseCommandLine_Flags(t *testing.T) {
	args := []string{
		"-L", "/roms", "-L", "/more",
		"-unmapped", "degrade", "-unmapped-fill", "0xFFFFFFFF",
		"-rom-writes", "abort", "-bounds", "strict",
		"-le", "-lowvecs", "-quiet",
		"-device", "hollywood=hw.lua", "-device", "nand=nand.lua",
		"-instances", "4",
		"boot0.bin",
	}
	opts, err := parseCommandLine(args, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parseCommandLine: %v", err)
	}
	cfg := opts.machine
	if cfg.BootImage != "boot0.bin" {
		t.Errorf("BootImage = %q", cfg.BootImage)
	}
	if len(cfg.SearchPath) != 2 || cfg.SearchPath[1] != "/more" {
		t.Errorf("SearchPath = %v", cfg.SearchPath)
	}
	if cfg.Bus.Unmapped != PolicyDegrade || cfg.Bus.UnmappedFill != 0xFFFFFFFF {
		t.Errorf("unmapped = %v fill 0x%X", cfg.Bus.Unmapped, cfg.Bus.UnmappedFill)
	}
	if cfg.Bus.ROMWrites != PolicyAbort || cfg.Bus.Bounds != PolicyAbort {
		t.Errorf("rom-writes/bounds = %v/%v", cfg.Bus.ROMWrites, cfg.Bus.Bounds)
	}
	if cfg.CPU.BigEndianConfig || cfg.CPU.HighVectors || !cfg.Quiet {
		t.Errorf("cpu = %+v quiet = %v", cfg.CPU, cfg.Quiet)
	}
	if cfg.DeviceScripts["hollywood"] != "hw.lua" || cfg.DeviceScripts["nand"] != "nand.lua" {
		t.Errorf("DeviceScripts = %v", cfg.DeviceScripts)
	}
	if opts.instances != 4 {
		t.Errorf("instances = %d", opts.instances)
	}
}

func TestParseCommandLine_RomFlag(t *testing.T) {
	opts, err := parseCommandLine([]string{"-rom", "boot0.bin", "-monitor"}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parseCommandLine: %v", err)
	}
	if opts.machine.BootImage != "boot0.bin" || !opts.monitor {
		t.Fatalf("opts = %+v", opts)
	}
}

func TestParseCommandLine_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"rom twice", []string{"-rom", "a.bin", "b.bin"}, "ROM given twice"},
		{"extra args", []string{"a.bin", "b.bin"}, "unexpected arguments: b.bin"},
		{"bad policy", []string{"-unmapped", "panic"}, "-unmapped"},
		{"bad fill", []string{"-unmapped-fill", "lots"}, "-unmapped-fill"},
		{"zero instances", []string{"-instances", "0"}, "at least 1"},
		{"monitor with instances", []string{"-instances", "2", "-monitor"}, "single instance"},
		{"bad device flag", []string{"-device", "hollywood"}, "name=script.lua"},
		{"unknown device", []string{"-device", "gpu=gpu.lua"}, "unknown window"},
		{"unknown flag", []string{"-fast"}, "not defined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseCommandLine(tt.args, &bytes.Buffer{})
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestParseCommandLine_Help(t *testing.T) {
	var out bytes.Buffer
	_, err := parseCommandLine([]string{"-h"}, &out)
	if !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("error = %v, want flag.ErrHelp", err)
	}
	if !strings.Contains(out.String(), "Usage: ./starlet") || !strings.Contains(out.String(), "-unmapped") {
		t.Fatalf("usage output:\n%s", out.String())
	}
}
