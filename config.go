// config.go - Command line configuration

package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// cliOptions is the parsed command line.
type cliOptions struct {
	machine   MachineConfig
	instances int
	monitor   bool
	features  bool
}

// stringList collects a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// deviceScripts collects repeatable -device name=script.lua flags.
type deviceScripts map[string]string

func (d deviceScripts) String() string {
	var parts []string
	for name, path := range d {
		parts = append(parts, name+"="+path)
	}
	return strings.Join(parts, ",")
}

func (d deviceScripts) Set(v string) error {
	name, path, ok := strings.Cut(v, "=")
	if !ok || name == "" || path == "" {
		return fmt.Errorf("expected name=script.lua, got %q", v)
	}
	d[name] = path
	return nil
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "Usage: ./starlet [-rom boot0.bin] [-L dir] [-monitor] [flags] [rom]")
	fs.SetOutput(w)
	fs.PrintDefaults()
	fs.SetOutput(io.Discard)
}

// parseCommandLine turns args (without the program name) into options.
// flag.ErrHelp is returned after usage has been printed to stdout.
func parseCommandLine(args []string, stdout io.Writer) (*cliOptions, error) {
	var (
		rom          string
		searchPath   stringList
		unmapped     string
		unmappedFill string
		romWrites    string
		bounds       string
		littleEndian bool
		lowVectors   bool
		quiet        bool
		scripts      = deviceScripts{}
	)

	opts := &cliOptions{machine: DefaultMachineConfig()}

	flagSet := flag.NewFlagSet("starlet", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVar(&rom, "rom", "", "Boot ROM image name (looked up in the search path)")
	flagSet.Var(&searchPath, "L", "Add a directory to the ROM search path (repeatable)")
	flagSet.StringVar(&unmapped, "unmapped", "abort", "Unmapped access policy: degrade|abort")
	flagSet.StringVar(&unmappedFill, "unmapped-fill", "0", "Value returned by degraded unmapped reads (hex or decimal)")
	flagSet.StringVar(&romWrites, "rom-writes", "ignore", "ROM write policy: ignore|abort")
	flagSet.StringVar(&bounds, "bounds", "degrade", "Out of bounds access policy: degrade|abort")
	flagSet.BoolVar(&littleEndian, "le", false, "Little-endian data accesses (clears cfgend)")
	flagSet.BoolVar(&lowVectors, "lowvecs", false, "Reset to 0x00000000 instead of 0xFFFF0000")
	flagSet.Var(scripts, "device", "Bind a Lua script to a peripheral window: name=script.lua (repeatable)")
	flagSet.IntVar(&opts.instances, "instances", 1, "Number of independent machine instances")
	flagSet.BoolVar(&opts.monitor, "monitor", false, "Enter the machine monitor after reset")
	flagSet.BoolVar(&opts.features, "features", false, "Print version and machine description, then exit")
	flagSet.BoolVar(&quiet, "quiet", false, "Do not print runtime diagnostics")

	flagSet.Usage = func() {
		printUsage(stdout, flagSet)
	}

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			flagSet.Usage()
		}
		return nil, err
	}

	switch flagSet.NArg() {
	case 0:
	case 1:
		if rom != "" {
			return nil, fmt.Errorf("ROM given twice: -rom %s and %s", rom, flagSet.Arg(0))
		}
		rom = flagSet.Arg(0)
	default:
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(flagSet.Args()[1:], " "))
	}

	cfg := &opts.machine
	cfg.BootImage = rom
	cfg.SearchPath = searchPath
	cfg.Quiet = quiet
	cfg.CPU.BigEndianConfig = !littleEndian
	cfg.CPU.HighVectors = !lowVectors
	if len(scripts) > 0 {
		cfg.DeviceScripts = scripts
	}

	var err error
	if cfg.Bus.Unmapped, err = ParsePolicy(unmapped); err != nil {
		return nil, fmt.Errorf("-unmapped: %w", err)
	}
	if cfg.Bus.ROMWrites, err = ParsePolicy(romWrites); err != nil {
		return nil, fmt.Errorf("-rom-writes: %w", err)
	}
	if cfg.Bus.Bounds, err = ParsePolicy(bounds); err != nil {
		return nil, fmt.Errorf("-bounds: %w", err)
	}
	if cfg.Bus.UnmappedFill, err = parseUint64Flag(unmappedFill); err != nil {
		return nil, fmt.Errorf("-unmapped-fill: %w", err)
	}

	if opts.instances < 1 {
		return nil, fmt.Errorf("-instances must be at least 1, got %d", opts.instances)
	}
	if opts.instances > 1 && opts.monitor {
		return nil, fmt.Errorf("-monitor needs a single instance")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func parseUint64Flag(value string) (uint64, error) {
	parsed, err := strconv.ParseUint(value, 0, 64)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}
