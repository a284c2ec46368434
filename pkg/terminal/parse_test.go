package terminal

import (
	"testing"

	"github.com/nullicist-aakash/debugger/pkg/proc"
)

func TestParseAddress(t *testing.T) {
	addr, err := parseAddress("0x401000")
	if err != nil || addr != proc.VirtAddr(0x401000) {
		t.Fatalf("got %v, %v", addr, err)
	}

	for _, bad := range []string{"401000", "0x", "0xzz", "0x1234 trailing", ""} {
		if _, err := parseAddress(bad); err == nil {
			t.Errorf("%q must not parse", bad)
		}
	}
}

func TestParseVector(t *testing.T) {
	data, err := parseVector("[0xff,0x00,0x2a]")
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 3 || data[0] != 0xff || data[1] != 0x00 || data[2] != 0x2a {
		t.Fatalf("got % x", data)
	}

	for _, bad := range []string{"0xff,0x00", "[0xff", "[0x100]", "[0xff,]", "[junk]"} {
		if _, err := parseVector(bad); err == nil {
			t.Errorf("%q must not parse", bad)
		}
	}
}

func TestParseRegisterValue(t *testing.T) {
	rsi, _ := proc.RegInfoByName("rsi")
	v, err := parseRegisterValue(rsi, "0xcafecafe")
	if err != nil || v.(uint64) != 0xcafecafe {
		t.Fatalf("rsi: %v, %v", v, err)
	}

	fsw, _ := proc.RegInfoByName("fsw")
	v, err = parseRegisterValue(fsw, "0x3800")
	if err != nil || v.(uint16) != 0x3800 {
		t.Fatalf("fsw: %v, %v", v, err)
	}
	// a value wider than the register must not parse
	if _, err := parseRegisterValue(fsw, "0x10000"); err == nil {
		t.Error("overflowing fsw must fail")
	}

	xmm0, _ := proc.RegInfoByName("xmm0")
	v, err = parseRegisterValue(xmm0, "[0x01,0x02,0x03,0x04,0x05,0x06,0x07,0x08,0x09,0x0a,0x0b,0x0c,0x0d,0x0e,0x0f,0x10]")
	if err != nil {
		t.Fatal(err)
	}
	if b, ok := v.(proc.Byte128); !ok || b[0] != 1 || b[15] != 0x10 {
		t.Fatalf("xmm0: %v", v)
	}
	if _, err := parseRegisterValue(xmm0, "[0x01]"); err == nil {
		t.Error("short vector must fail")
	}

	st0, _ := proc.RegInfoByName("st0")
	v, err = parseRegisterValue(st0, "42.42")
	if err != nil || v.(float64) != 42.42 {
		t.Fatalf("st0: %v, %v", v, err)
	}
}

func TestFormatValue(t *testing.T) {
	if got := formatValue(uint64(0xcafecafe)); got != "0x00000000cafecafe" {
		t.Errorf("uint64: %s", got)
	}
	if got := formatValue(uint8(7)); got != "0x07" {
		t.Errorf("uint8: %s", got)
	}
	if got := formatValue(42.42); got != "42.42" {
		t.Errorf("float: %s", got)
	}
	if got := formatValue(proc.Byte64{1}); got != "[0x01,0x00,0x00,0x00,0x00,0x00,0x00,0x00]" {
		t.Errorf("vector: %s", got)
	}
}
