// mmio_devices.go - Device stubs for the Starlet peripheral windows

package main

// StubDevice is the placeholder handler for a peripheral whose registers are
// not modelled. It implements nothing, so every access takes the dispatch
// layer's zero/no-op path, and it names registers from the window's table so
// the diagnostics say which register firmware was probing.
type StubDevice struct {
	name string
	desc *IODeviceDesc
}

// NewStubDevice builds a stub for the window with the given region name.
func NewStubDevice(name string) *StubDevice {
	return &StubDevice{name: name, desc: ioDevices[name]}
}

func (d *StubDevice) Name() string { return d.name }

func (d *StubDevice) ReadMMIO(offset uint32, size AccessSize) (uint64, bool) {
	return 0, false
}

func (d *StubDevice) WriteMMIO(offset uint32, size AccessSize, value uint64) bool {
	return false
}

func (d *StubDevice) RegisterName(offset uint32) string {
	if reg, ok := d.desc.Lookup(offset); ok {
		return reg.Name
	}
	return ""
}
