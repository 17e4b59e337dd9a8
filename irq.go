// irq.go - Interrupt line numbering for the Starlet interrupt controller

package main

import (
	"fmt"
	"strings"
)

// IRQLine is an input line number on the Hollywood interrupt controller.
// The numbering is fixed at build time; numbers not listed are reserved.
type IRQLine int

const (
	IRQ_TIMER        IRQLine = 0
	IRQ_NAND         IRQLine = 1
	IRQ_AES          IRQLine = 2
	IRQ_SHA          IRQLine = 3
	IRQ_EHCI         IRQLine = 4
	IRQ_OHCI0        IRQLine = 5
	IRQ_OHCI1        IRQLine = 6
	IRQ_SDHC         IRQLine = 7
	IRQ_WIFI         IRQLine = 8
	IRQ_GPIO_PPC     IRQLine = 10
	IRQ_GPIO_ARM     IRQLine = 11
	IRQ_RESET_BUTTON IRQLine = 17
	IRQ_DI           IRQLine = 18
	IRQ_IPC_PPC      IRQLine = 30
	IRQ_IPC_ARM      IRQLine = 31

	IRQ_LINE_COUNT = 32
)

var irqNames = map[IRQLine]string{
	IRQ_TIMER:        "timer",
	IRQ_NAND:         "nand",
	IRQ_AES:          "aes",
	IRQ_SHA:          "sha",
	IRQ_EHCI:         "ehci",
	IRQ_OHCI0:        "ohci0",
	IRQ_OHCI1:        "ohci1",
	IRQ_SDHC:         "sdhc",
	IRQ_WIFI:         "wifi",
	IRQ_GPIO_PPC:     "gpio-ppc",
	IRQ_GPIO_ARM:     "gpio-arm",
	IRQ_RESET_BUTTON: "reset-button",
	IRQ_DI:           "di",
	IRQ_IPC_PPC:      "ipc-ppc",
	IRQ_IPC_ARM:      "ipc-arm",
}

func (l IRQLine) String() string {
	if name, ok := irqNames[l]; ok {
		return name
	}
	return fmt.Sprintf("reserved(%d)", int(l))
}

// Assigned reports whether the line has a named source.
func (l IRQLine) Assigned() bool {
	_, ok := irqNames[l]
	return ok
}

// Mask returns the line's bit in the controller's flag and mask registers.
func (l IRQLine) Mask() uint32 {
	if l < 0 || l >= IRQ_LINE_COUNT {
		return 0
	}
	return 1 << uint(l)
}

// IRQLines returns every assigned line in numeric order.
func IRQLines() []IRQLine {
	lines := make([]IRQLine, 0, len(irqNames))
	for l := IRQLine(0); l < IRQ_LINE_COUNT; l++ {
		if l.Assigned() {
			lines = append(lines, l)
		}
	}
	return lines
}

// LookupIRQ finds a line by source name, case-insensitively.
func LookupIRQ(name string) (IRQLine, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for l, n := range irqNames {
		if n == name {
			return l, true
		}
	}
	return 0, false
}
