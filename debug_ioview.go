// debug_ioview.go - I/O register tables and the monitor's register viewer

package main

import (
	"fmt"
	"sort"
)

// IORegisterDesc describes a single I/O register for display.
type IORegisterDesc struct {
	Name   string
	Offset uint32 // relative to the window base
	Width  int    // 1, 2, or 4 bytes
	Access string // "RW", "RO", "WO"
}

// IODeviceDesc describes a group of I/O registers for a device window.
type IODeviceDesc struct {
	Name      string
	Registers []IORegisterDesc
}

// Lookup returns the register covering offset.
func (d *IODeviceDesc) Lookup(offset uint32) (IORegisterDesc, bool) {
	if d == nil {
		return IORegisterDesc{}, false
	}
	for _, reg := range d.Registers {
		if offset >= reg.Offset && offset < reg.Offset+uint32(reg.Width) {
			return reg, true
		}
	}
	return IORegisterDesc{}, false
}

// ioDevices is keyed by region name.
var ioDevices = map[string]*IODeviceDesc{
	"nand": {
		Name: "NAND controller",
		Registers: []IORegisterDesc{
			{"NAND_CMD", NAND_REG_CMD, 4, "RW"},
			{"NAND_CONF", NAND_REG_CONF, 4, "RW"},
			{"NAND_ADDR0", NAND_REG_ADDR0, 4, "RW"},
			{"NAND_ADDR1", NAND_REG_ADDR1, 4, "RW"},
			{"NAND_DATA", NAND_REG_DATA, 4, "RW"},
			{"NAND_ECC", NAND_REG_ECC, 4, "RW"},
			{"NAND_UNK", NAND_REG_UNK, 4, "RW"},
		},
	},
	"aes": {
		Name: "AES engine",
		Registers: []IORegisterDesc{
			{"AES_CMD", AES_REG_CMD, 4, "RW"},
			{"AES_SRC", AES_REG_SRC, 4, "RW"},
			{"AES_DEST", AES_REG_DEST, 4, "RW"},
			{"AES_KEY", AES_REG_KEY, 4, "WO"},
			{"AES_IV", AES_REG_IV, 4, "WO"},
		},
	},
	"sha": {
		Name: "SHA-1 engine",
		Registers: []IORegisterDesc{
			{"SHA_CMD", SHA_REG_CMD, 4, "RW"},
			{"SHA_SRC", SHA_REG_SRC, 4, "RW"},
			{"SHA_H0", SHA_REG_H0, 4, "RW"},
			{"SHA_H1", SHA_REG_H1, 4, "RW"},
			{"SHA_H2", SHA_REG_H2, 4, "RW"},
			{"SHA_H3", SHA_REG_H3, 4, "RW"},
			{"SHA_H4", SHA_REG_H4, 4, "RW"},
		},
	},
	"ehci":  {Name: "USB EHCI"},
	"ohci0": {Name: "USB OHCI0"},
	"ohci1": {Name: "USB OHCI1"},
	"sdhc":  {Name: "SD host"},
	"hollywood": {
		Name: "Hollywood control",
		Registers: []IORegisterDesc{
			{"IPC_PPCMSG", HW_REG_IPC_PPCMSG, 4, "RW"},
			{"IPC_PPCCTRL", HW_REG_IPC_PPCCTRL, 4, "RW"},
			{"IPC_ARMMSG", HW_REG_IPC_ARMMSG, 4, "RW"},
			{"IPC_ARMCTRL", HW_REG_IPC_ARMCTRL, 4, "RW"},
			{"TIMER", HW_REG_TIMER, 4, "RW"},
			{"ALARM", HW_REG_ALARM, 4, "RW"},
			{"PPCIRQFLAG", HW_REG_PPCIRQFLAG, 4, "RW"},
			{"PPCIRQMASK", HW_REG_PPCIRQMASK, 4, "RW"},
			{"ARMIRQFLAG", HW_REG_ARMIRQFLAG, 4, "RW"},
			{"ARMIRQMASK", HW_REG_ARMIRQMASK, 4, "RW"},
			{"MEMMIRR", HW_REG_MEMMIRR, 4, "RW"},
			{"AHBPROT", HW_REG_AHBPROT, 4, "RW"},
			{"GPIOB_OUT", HW_REG_GPIOB_OUT, 4, "RW"},
			{"GPIOB_DIR", HW_REG_GPIOB_DIR, 4, "RW"},
			{"GPIOB_IN", HW_REG_GPIOB_IN, 4, "RO"},
			{"GPIO_OUT", HW_REG_GPIO_OUT, 4, "RW"},
			{"GPIO_DIR", HW_REG_GPIO_DIR, 4, "RW"},
			{"GPIO_IN", HW_REG_GPIO_IN, 4, "RO"},
			{"RESETS", HW_REG_RESETS, 4, "RW"},
			{"VERSION", HW_REG_VERSION, 4, "RO"},
		},
	},
	"memctrl": {Name: "Memory controller"},
}

// formatIOView renders the register view for a device window. Registers
// are read straight from the handler so the diagnostics log is untouched;
// registers the model does not implement show as "--".
func formatIOView(as *AddressSpace, regionName string) []string {
	r := as.Region(regionName)
	if r == nil || r.Kind != RegionMMIO {
		return []string{fmt.Sprintf("Unknown device: %s", regionName)}
	}
	dev := ioDevices[regionName]

	var lines []string
	if dev == nil {
		lines = append(lines, fmt.Sprintf("--- %s ($%08X) ---", regionName, r.Base))
		lines = append(lines, "  (no register table)")
		return lines
	}
	lines = append(lines, fmt.Sprintf("--- %s Registers ($%08X) ---", dev.Name, r.Base))
	if len(dev.Registers) == 0 {
		lines = append(lines, "  (no register table)")
		return lines
	}

	h := r.Handler()
	for _, reg := range dev.Registers {
		addr := r.Base + reg.Offset
		v, ok := h.ReadMMIO(reg.Offset, AccessSize(reg.Width))
		if !ok {
			lines = append(lines, fmt.Sprintf("  %-12s ($%08X) = --         %s", reg.Name, addr, reg.Access))
			continue
		}
		switch reg.Width {
		case 1:
			lines = append(lines, fmt.Sprintf("  %-12s ($%08X) = $%02X        %s", reg.Name, addr, v, reg.Access))
		case 2:
			lines = append(lines, fmt.Sprintf("  %-12s ($%08X) = $%04X      %s", reg.Name, addr, v, reg.Access))
		default:
			lines = append(lines, fmt.Sprintf("  %-12s ($%08X) = $%08X  %s", reg.Name, addr, v, reg.Access))
		}
	}

	return lines
}

// listIODevices returns the names of all MMIO windows in the address space.
func listIODevices(as *AddressSpace) []string {
	var names []string
	for _, r := range as.Regions() {
		if r.Kind == RegionMMIO {
			names = append(names, r.Name)
		}
	}
	sort.Strings(names)
	return names
}
