package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const registerFileScript = `
local regs = { [0x214] = 0x00000011 }

function read32(offset)
	return regs[offset]
end

function write32(offset, value)
	if offset >= 0x200 then
		return false
	end
	regs[offset] = value
	return true
end
`

func mustScriptDevice(t *testing.T, name string, base uint32, src string) *ScriptDevice {
	t.Helper()
	d, err := NewScriptDeviceString(name, base, src)
	if err != nil {
		t.Fatalf("NewScriptDeviceString: %v", err)
	}
	d.SetLogOutput(&bytes.Buffer{})
	t.Cleanup(func() { d.Close() })
	return d
}

func TestScriptDevice_WordRegisters(t *testing.T) {
	d := mustScriptDevice(t, "hollywood", HOLLYWOOD_BASE, registerFileScript)
	as := newTestSpace(t, DefaultBusConfig())
	mustMap(t, as, mustMMIO(t, "hollywood", HOLLYWOOD_BASE, HOLLYWOOD_SIZE, d, binary.BigEndian))

	if v := as.Read32(HOLLYWOOD_BASE + HW_REG_VERSION); v != 0x11 {
		t.Fatalf("VERSION = 0x%08X, want 0x11", v)
	}

	as.Write32(HOLLYWOOD_BASE+HW_REG_TIMER, 0xDEADBEEF)
	if v := as.Read32(HOLLYWOOD_BASE + HW_REG_TIMER); v != 0xDEADBEEF {
		t.Fatalf("TIMER = 0x%08X, want 0xDEADBEEF", v)
	}
	if v := as.Read8(HOLLYWOOD_BASE + HW_REG_TIMER + 1); v != 0xAD {
		t.Fatalf("TIMER byte 1 = 0x%02X, want 0xAD", v)
	}
	if n := as.Diagnostics().Total(); n != 0 {
		t.Fatalf("implemented registers produced %d diagnostics", n)
	}

	// Unset registers and refused writes degrade like a stub.
	as.Read32(HOLLYWOOD_BASE + HW_REG_ALARM)
	as.Write32(HOLLYWOOD_BASE+HW_REG_VERSION, 1)
	if n := as.Diagnostics().Count(DiagUnimplementedMMIO, "hollywood"); n != 2 {
		t.Fatalf("unimplemented diagnostics = %d, want 2", n)
	}
}

func TestScriptDevice_ReadWriteSeeEveryWidth(t *testing.T) {
	d := mustScriptDevice(t, "aes", AES_BASE, `
seen = {}
function read(offset, size)
	return offset * 16 + size
end
function write(offset, size, value)
	seen[#seen + 1] = offset .. "/" .. size .. "/" .. value
end
`)

	tests := []struct {
		offset uint32
		size   AccessSize
		want   uint64
	}{
		{0x10, AccessByte, 0x01},
		{0x10, AccessHalf, 0x102},
		{0x10, AccessWord, 0x104},
		{0x10, AccessDouble, 0x00000104_00000144},
	}
	for _, tt := range tests {
		v, ok := d.ReadMMIO(tt.offset, tt.size)
		if !ok || v != tt.want {
			t.Fatalf("ReadMMIO(0x%X, %d) = 0x%X, %v; want 0x%X", tt.offset, tt.size, v, ok, tt.want)
		}
	}

	if !d.WriteMMIO(0x20, AccessDouble, 0x11111111_22222222) {
		t.Fatal("write reported unhandled")
	}
	if err := d.L.DoString(`result = table.concat(seen, ",")`); err != nil {
		t.Fatal(err)
	}
	if got := d.L.GetGlobal("result").String(); got != "32/4/286331153,36/4/572662306" {
		t.Fatalf("write calls = %q", got)
	}
}

func TestScriptDevice_Globals(t *testing.T) {
	d := mustScriptDevice(t, "sha", SHA_BASE, `
function read(offset, size)
	if DEVICE ~= "sha" then return nil end
	return BASE
end
`)
	v, ok := d.ReadMMIO(0, AccessWord)
	if !ok || v != SHA_BASE {
		t.Fatalf("read = 0x%X, %v; want BASE 0x%X", v, ok, SHA_BASE)
	}
}

func TestScriptDevice_ErrorsDegrade(t *testing.T) {
	var log bytes.Buffer
	d := mustScriptDevice(t, "nand", NAND_BASE, `
function read(offset, size)
	error("boom")
end
function write(offset, size, value)
	log("write " .. value)
	return false
end
`)
	d.SetLogOutput(&log)

	if _, ok := d.ReadMMIO(0, AccessWord); ok {
		t.Fatal("failing read reported handled")
	}
	if d.Errors() != 1 {
		t.Fatalf("Errors() = %d, want 1", d.Errors())
	}
	if d.WriteMMIO(0, AccessWord, 7) {
		t.Fatal("write returning false reported handled")
	}
	out := log.String()
	if !strings.Contains(out, "script error") || !strings.Contains(out, "nand: write 7") {
		t.Fatalf("log output:\n%s", out)
	}
	if name := d.RegisterName(NAND_REG_CMD); name != "NAND_CMD" {
		t.Fatalf("RegisterName = %q", name)
	}
}

func TestScriptDevice_RequiresHandlers(t *testing.T) {
	if _, err := NewScriptDeviceString("sdhc", SDHC_BASE, `x = 1`); err == nil {
		t.Fatal("script without handlers accepted")
	}
	if _, err := NewScriptDeviceString("sdhc", SDHC_BASE, `function read(`); err == nil {
		t.Fatal("script with syntax error accepted")
	}
}

func TestScriptDevice_LoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hollywood.lua")
	if err := os.WriteFile(path, []byte(registerFileScript), 0644); err != nil {
		t.Fatal(err)
	}
	d, err := LoadScriptDevice("hollywood", HOLLYWOOD_BASE, path)
	if err != nil {
		t.Fatalf("LoadScriptDevice: %v", err)
	}
	defer d.Close()

	if v, ok := d.ReadMMIO(HW_REG_VERSION, AccessWord); !ok || v != 0x11 {
		t.Fatalf("VERSION = 0x%X, %v", v, ok)
	}
	if _, err := LoadScriptDevice("hollywood", HOLLYWOOD_BASE, filepath.Join(t.TempDir(), "missing.lua")); err == nil {
		t.Fatal("missing script accepted")
	}
}
