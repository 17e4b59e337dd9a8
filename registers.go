// registers.go - Physical memory map and register offsets for the Starlet SoC

/*
License: GPLv3 or later
*/

/*
registers.go - Master Physical Memory Map

This file is the single reference for every region the Starlet machine places
in its 32-bit physical address space. The addresses and sizes are part of the
machine's bit-exact contract; the composer in machine.go builds the address
space from starletMemoryMap and nothing else.

MEMORY MAP OVERVIEW
===================

Address Range            Size        Region              Kind
---------------------------------------------------------------------------
0x00000000-0x017FFFFF    24MB        MEM1                RAM
0x0D010000-0x0D0101FF    512B        NAND controller     MMIO
0x0D020000-0x0D0201FF    512B        AES engine          MMIO
0x0D030000-0x0D0301FF    512B        SHA-1 engine        MMIO
0x0D040000-0x0D0401FF    512B        USB EHCI            MMIO
0x0D050000-0x0D0501FF    512B        USB OHCI0           MMIO
0x0D060000-0x0D0601FF    512B        USB OHCI1           MMIO
0x0D070000-0x0D0701FF    512B        SD host             MMIO
0x0D400000-0x0D41FFFF    128KB       SRAM                RAM
0x0D800000-0x0D80021F    544B        Hollywood control   MMIO
0x0D8B4200-0x0D8B42CF    208B        Memory controller   MMIO
0x10000000-0x13FFFFFF    64MB        MEM2                RAM
0xFFFF0000-0xFFFF1FFF    8KB         Boot ROM            ROM

Everything else is unmapped. Every MMIO window is big-endian at the periphery.

REGISTER NAMES
==============

The *_REG_* offsets below are relative to their window base. They only name
registers for diagnostics and the monitor's io view; no device implements
their semantics.
*/

package main

// Machine identity
const (
	MACHINE_NAME        = "starlet"
	MACHINE_DESCRIPTION = "Starlet (Wii I/O Processor) (ARM926EJ-S)"
)

// RAM and ROM regions
const (
	MEM1_ADDR = 0x00000000
	MEM1_SIZE = 0x01800000

	MEM2_ADDR = 0x10000000
	MEM2_SIZE = 0x04000000

	SRAM_ADDR = 0x0D400000
	SRAM_SIZE = 0x00020000

	ROM_ADDR = 0xFFFF0000
	ROM_SIZE = 0x00002000
)

// MMIO windows
const (
	MMIO_WINDOW_SIZE = 0x200

	NAND_BASE  = 0x0D010000
	AES_BASE   = 0x0D020000
	SHA_BASE   = 0x0D030000
	EHCI_BASE  = 0x0D040000
	OHCI0_BASE = 0x0D050000
	OHCI1_BASE = 0x0D060000
	SDHC_BASE  = 0x0D070000

	HOLLYWOOD_BASE = 0x0D800000
	HOLLYWOOD_SIZE = 0x220

	MEMCTRL_BASE = 0x0D8B4200
	MEMCTRL_SIZE = 0xD0
)

// NAND controller
const (
	NAND_REG_CMD   = 0x00
	NAND_REG_CONF  = 0x04
	NAND_REG_ADDR0 = 0x08
	NAND_REG_ADDR1 = 0x0C
	NAND_REG_DATA  = 0x10
	NAND_REG_ECC   = 0x14
	NAND_REG_UNK   = 0x18
)

// AES engine
const (
	AES_REG_CMD  = 0x00
	AES_REG_SRC  = 0x04
	AES_REG_DEST = 0x08
	AES_REG_KEY  = 0x0C
	AES_REG_IV   = 0x10
)

// SHA-1 engine
const (
	SHA_REG_CMD = 0x00
	SHA_REG_SRC = 0x04
	SHA_REG_H0  = 0x08
	SHA_REG_H1  = 0x0C
	SHA_REG_H2  = 0x10
	SHA_REG_H3  = 0x14
	SHA_REG_H4  = 0x18
)

// Hollywood control block (IPC, timer, interrupt flags, GPIO, resets)
const (
	HW_REG_IPC_PPCMSG  = 0x000
	HW_REG_IPC_PPCCTRL = 0x004
	HW_REG_IPC_ARMMSG  = 0x008
	HW_REG_IPC_ARMCTRL = 0x00C
	HW_REG_TIMER       = 0x010
	HW_REG_ALARM       = 0x014
	HW_REG_PPCIRQFLAG  = 0x030
	HW_REG_PPCIRQMASK  = 0x034
	HW_REG_ARMIRQFLAG  = 0x038
	HW_REG_ARMIRQMASK  = 0x03C
	HW_REG_MEMMIRR     = 0x060
	HW_REG_AHBPROT     = 0x064
	HW_REG_GPIOB_OUT   = 0x0C0
	HW_REG_GPIOB_DIR   = 0x0C4
	HW_REG_GPIOB_IN    = 0x0C8
	HW_REG_GPIO_OUT    = 0x0E0
	HW_REG_GPIO_DIR    = 0x0E4
	HW_REG_GPIO_IN     = 0x0E8
	HW_REG_RESETS      = 0x194
	HW_REG_VERSION     = 0x214
)

// memoryMapEntry is one row of the static physical memory map.
type memoryMapEntry struct {
	name string
	base uint32
	size uint32
	kind RegionKind
}

// starletMemoryMap lists every region of the machine in address order.
var starletMemoryMap = []memoryMapEntry{
	{"mem1", MEM1_ADDR, MEM1_SIZE, RegionRAM},
	{"nand", NAND_BASE, MMIO_WINDOW_SIZE, RegionMMIO},
	{"aes", AES_BASE, MMIO_WINDOW_SIZE, RegionMMIO},
	{"sha", SHA_BASE, MMIO_WINDOW_SIZE, RegionMMIO},
	{"ehci", EHCI_BASE, MMIO_WINDOW_SIZE, RegionMMIO},
	{"ohci0", OHCI0_BASE, MMIO_WINDOW_SIZE, RegionMMIO},
	{"ohci1", OHCI1_BASE, MMIO_WINDOW_SIZE, RegionMMIO},
	{"sdhc", SDHC_BASE, MMIO_WINDOW_SIZE, RegionMMIO},
	{"sram", SRAM_ADDR, SRAM_SIZE, RegionRAM},
	{"hollywood", HOLLYWOOD_BASE, HOLLYWOOD_SIZE, RegionMMIO},
	{"memctrl", MEMCTRL_BASE, MEMCTRL_SIZE, RegionMMIO},
	{"mem2", MEM2_ADDR, MEM2_SIZE, RegionRAM},
	{"rom", ROM_ADDR, ROM_SIZE, RegionROM},
}
