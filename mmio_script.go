// mmio_script.go - Lua-scripted MMIO handlers

/*
mmio_script.go - Scripted Devices

A ScriptDevice lets a Lua script stand in for a peripheral window while its
real model does not exist. The script defines any of these globals:

    read(offset, size)          -> number, or nil when not implemented
    write(offset, size, value)  -> false when not implemented
    read32(offset)              -> number, or nil
    write32(offset, value)      -> false when not implemented

read/write see every access at its own width, except 8-byte accesses which
arrive as two 4-byte calls (high word first) because Lua numbers cannot hold
every 64-bit value. When only read32/write32 are defined, narrow and wide
accesses are folded onto 32-bit registers by a WordAdapter. Anything the
script leaves unanswered degrades like any other unimplemented register.

The script also sees DEVICE (the window name), BASE (its physical base) and
log(message). One Lua state per device; the state is only touched from the
machine's CPU goroutine.
*/

package main

import (
	"fmt"
	"io"
	"os"

	lua "github.com/yuin/gopher-lua"
)

func init() {
	compiledFeatures = append(compiledFeatures, "devices:lua")
}

// ScriptDevice is an MMIOHandler backed by a Lua state.
type ScriptDevice struct {
	name string
	L    *lua.LState
	log  io.Writer

	read    *lua.LFunction
	write   *lua.LFunction
	read32  *lua.LFunction
	write32 *lua.LFunction

	words *WordAdapter
	errs  int
}

// LoadScriptDevice runs the script at path for the window name at base.
func LoadScriptDevice(name string, base uint32, path string) (*ScriptDevice, error) {
	d := newScriptDevice(name, base)
	if err := d.L.DoFile(path); err != nil {
		d.L.Close()
		return nil, fmt.Errorf("device %s: loading %s: %w", name, path, err)
	}
	return d.bind()
}

// NewScriptDeviceString runs script source held in memory.
func NewScriptDeviceString(name string, base uint32, src string) (*ScriptDevice, error) {
	d := newScriptDevice(name, base)
	if err := d.L.DoString(src); err != nil {
		d.L.Close()
		return nil, fmt.Errorf("device %s: %w", name, err)
	}
	return d.bind()
}

func newScriptDevice(name string, base uint32) *ScriptDevice {
	d := &ScriptDevice{
		name: name,
		L:    lua.NewState(),
		log:  os.Stderr,
	}
	d.L.SetGlobal("DEVICE", lua.LString(name))
	d.L.SetGlobal("BASE", lua.LNumber(base))
	d.L.SetGlobal("log", d.L.NewFunction(func(L *lua.LState) int {
		fmt.Fprintf(d.log, "starlet: %s: %s\n", d.name, L.CheckString(1))
		return 0
	}))
	return d
}

func (d *ScriptDevice) bind() (*ScriptDevice, error) {
	d.read = d.function("read")
	d.write = d.function("write")
	d.read32 = d.function("read32")
	d.write32 = d.function("write32")
	if d.read == nil && d.write == nil && d.read32 == nil && d.write32 == nil {
		d.L.Close()
		return nil, fmt.Errorf("device %s: script defines none of read, write, read32, write32", d.name)
	}
	if d.read32 != nil || d.write32 != nil {
		d.words = NewWordAdapter(scriptWords{d})
	}
	return d, nil
}

func (d *ScriptDevice) function(name string) *lua.LFunction {
	if fn, ok := d.L.GetGlobal(name).(*lua.LFunction); ok {
		return fn
	}
	return nil
}

// SetLogOutput redirects log() and script error reports.
func (d *ScriptDevice) SetLogOutput(w io.Writer) {
	d.log = w
}

// Errors returns how many script calls raised a Lua error.
func (d *ScriptDevice) Errors() int {
	return d.errs
}

// call invokes fn and returns its first result. A Lua error is reported and
// treated as "not implemented" so a broken script never faults the guest.
func (d *ScriptDevice) call(fn *lua.LFunction, args ...lua.LValue) (lua.LValue, bool) {
	if err := d.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...); err != nil {
		d.errs++
		fmt.Fprintf(d.log, "starlet: %s: script error: %v\n", d.name, err)
		return lua.LNil, false
	}
	ret := d.L.Get(-1)
	d.L.Pop(1)
	return ret, true
}

func (d *ScriptDevice) callRead(fn *lua.LFunction, args ...lua.LValue) (uint64, bool) {
	ret, ok := d.call(fn, args...)
	if !ok {
		return 0, false
	}
	n, ok := ret.(lua.LNumber)
	if !ok {
		return 0, false
	}
	return uint64(int64(n)), true
}

func (d *ScriptDevice) callWrite(fn *lua.LFunction, args ...lua.LValue) bool {
	ret, ok := d.call(fn, args...)
	if !ok {
		return false
	}
	return ret != lua.LFalse
}

func (d *ScriptDevice) ReadMMIO(offset uint32, size AccessSize) (uint64, bool) {
	if d.read == nil {
		if d.words != nil {
			return d.words.ReadMMIO(offset, size)
		}
		return 0, false
	}
	if size == AccessDouble {
		hi, ok := d.callRead(d.read, lua.LNumber(offset), lua.LNumber(AccessWord))
		if !ok {
			return 0, false
		}
		lo, ok := d.callRead(d.read, lua.LNumber(offset+4), lua.LNumber(AccessWord))
		if !ok {
			return 0, false
		}
		return uint64(uint32(hi))<<32 | uint64(uint32(lo)), true
	}
	v, ok := d.callRead(d.read, lua.LNumber(offset), lua.LNumber(size))
	return v & sizeMask(size), ok
}

func (d *ScriptDevice) WriteMMIO(offset uint32, size AccessSize, value uint64) bool {
	if d.write == nil {
		if d.words != nil {
			return d.words.WriteMMIO(offset, size, value)
		}
		return false
	}
	if size == AccessDouble {
		hi := d.callWrite(d.write, lua.LNumber(offset), lua.LNumber(AccessWord), lua.LNumber(uint32(value>>32)))
		lo := d.callWrite(d.write, lua.LNumber(offset+4), lua.LNumber(AccessWord), lua.LNumber(uint32(value)))
		return hi && lo
	}
	return d.callWrite(d.write, lua.LNumber(offset), lua.LNumber(size), lua.LNumber(value))
}

// RegisterName names registers from the window's table, if it has one.
func (d *ScriptDevice) RegisterName(offset uint32) string {
	if reg, ok := ioDevices[d.name].Lookup(offset); ok {
		return reg.Name
	}
	return ""
}

// Close releases the Lua state.
func (d *ScriptDevice) Close() error {
	d.L.Close()
	return nil
}

// scriptWords exposes read32/write32 as WordRegisters.
type scriptWords struct{ d *ScriptDevice }

func (w scriptWords) ReadReg(offset uint32) (uint32, bool) {
	if w.d.read32 == nil {
		return 0, false
	}
	v, ok := w.d.callRead(w.d.read32, lua.LNumber(offset))
	return uint32(v), ok
}

func (w scriptWords) WriteReg(offset uint32, value uint32) bool {
	if w.d.write32 == nil {
		return false
	}
	return w.d.callWrite(w.d.write32, lua.LNumber(offset), lua.LNumber(value))
}
