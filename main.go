// main.go - Main entry point for the Starlet machine

/*
License: GPLv3 or later
*/

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
)

func boilerPlate() {
	banner := []string{
		"  ____  _____  _    ____  _     _____ _____",
		" / ___||_   _|/ \\  |  _ \\| |   | ____|_   _|",
		" \\___ \\  | | / _ \\ | |_) | |   |  _|   | |",
		"  ___) | | |/ ___ \\|  _ <| |___| |___  | |",
		" |____/  |_/_/   \\_\\_| \\_\\_____|_____| |_|",
	}
	fmt.Println()
	for i, line := range banner {
		fmt.Printf("\033[38;2;255;%d;147m%s\033[0m\n", 20+i*50, line)
	}
	fmt.Printf("\n%s %s\n", MACHINE_DESCRIPTION, Version)
	fmt.Println("License: GPLv3 or later")
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseCommandLine(args, os.Stdout)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Run with -h for usage.")
		return 1
	}
	if opts.features {
		printFeatures(os.Stdout)
		return 0
	}

	boilerPlate()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if opts.instances > 1 {
		opts.machine.Log = os.Stderr
		err := RunInstances(ctx, opts.instances, opts.machine, nil, func(id int, m *Machine) error {
			reportReset(id, m)
			return nil
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	m, err := BuildAndStart(ctx, opts.machine, nil)
	if m == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer m.Close()

	status := 0
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		status = 1
	} else {
		reportReset(0, m)
	}

	if opts.monitor {
		mon := NewMachineMonitor(m, os.Stdout)
		if err := NewTerminalHost(mon, os.Stdin, os.Stdout).Run(); err != nil {
			fmt.Fprintf(os.Stderr, "monitor: %v\n", err)
			return 1
		}
	}
	return status
}

func reportReset(id int, m *Machine) {
	fetches := m.CPU().FetchLog()
	if len(fetches) == 0 {
		fmt.Printf("instance %d: no instruction fetched\n", id)
		return
	}
	f := fetches[0]
	fmt.Printf("instance %d: reset fetch $%08X = $%08X, %d diagnostic(s)\n", id, f.PC, f.Insn, m.Diagnostics().Total())
}
