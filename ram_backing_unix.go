//go:build linux || darwin || freebsd || netbsd || openbsd

package main

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Regions at or above this size come from an anonymous private mapping so
// untouched pages of MEM1/MEM2 never get committed.
const MMAP_THRESHOLD = 1 << 20

func init() {
	compiledFeatures = append(compiledFeatures, "ram:mmap")
}

func allocBacking(size uint32) ([]byte, func() error, error) {
	if size < MMAP_THRESHOLD {
		return make([]byte, size), nil, nil
	}
	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, fmt.Errorf("mmap %d bytes: %w", size, err)
	}
	return data, func() error { return unix.Munmap(data) }, nil
}
