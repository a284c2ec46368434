package terminal

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nullicist-aakash/debugger/pkg/proc"
)

// The parsers below all require the whole input to parse; trailing junk is
// an error, not a shorter number.

// parseAddress parses a hexadecimal address prefixed with 0x.
func parseAddress(s string) (proc.VirtAddr, error) {
	if !strings.HasPrefix(s, "0x") {
		return 0, fmt.Errorf("expected address in hexadecimal format, prefixed with 0x")
	}
	v, err := strconv.ParseUint(s[2:], 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address format %q", s)
	}
	return proc.VirtAddr(v), nil
}

// parseID parses a stoppoint id.
func parseID(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("expected stoppoint id, got %q", s)
	}
	return int32(v), nil
}

// parseSize parses a decimal count.
func parseSize(s string) (uint, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid count %q", s)
	}
	return uint(v), nil
}

// parseHex parses a hexadecimal integer, with or without the 0x prefix,
// into width bits.
func parseHex(s string, width int) (uint64, error) {
	s = strings.TrimPrefix(s, "0x")
	v, err := strconv.ParseUint(s, 16, width)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	return v, nil
}

// parseVector parses a byte vector of the form [0xff,0x00,...].
func parseVector(s string) ([]byte, error) {
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("invalid vector format %q", s)
	}
	body := s[1 : len(s)-1]
	if body == "" {
		return nil, nil
	}
	parts := strings.Split(body, ",")
	out := make([]byte, len(parts))
	for i, part := range parts {
		b, err := parseHex(strings.TrimSpace(part), 8)
		if err != nil {
			return nil, fmt.Errorf("invalid vector format %q", s)
		}
		out[i] = byte(b)
	}
	return out, nil
}

// parseRegisterValue parses text into a value matching the register's
// format and width.
func parseRegisterValue(info proc.RegInfo, text string) (proc.Value, error) {
	switch info.Format {
	case proc.FormatUint:
		v, err := parseHex(text, int(info.Size)*8)
		if err != nil {
			return nil, err
		}
		switch info.Size {
		case 1:
			return uint8(v), nil
		case 2:
			return uint16(v), nil
		case 4:
			return uint32(v), nil
		case 8:
			return v, nil
		}
	case proc.FormatDouble, proc.FormatLongDouble:
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q", text)
		}
		return v, nil
	case proc.FormatVector:
		data, err := parseVector(text)
		if err != nil {
			return nil, err
		}
		if uint(len(data)) != info.Size {
			return nil, fmt.Errorf("expected %d bytes, got %d", info.Size, len(data))
		}
		if info.Size == 8 {
			var v proc.Byte64
			copy(v[:], data)
			return v, nil
		}
		var v proc.Byte128
		copy(v[:], data)
		return v, nil
	}
	return nil, fmt.Errorf("invalid format")
}

// formatValue renders a register value the way the catalog declares it:
// integers in zero-padded hex, floats plainly, vectors byte by byte.
func formatValue(v proc.Value) string {
	switch x := v.(type) {
	case uint8:
		return fmt.Sprintf("0x%02x", x)
	case uint16:
		return fmt.Sprintf("0x%04x", x)
	case uint32:
		return fmt.Sprintf("0x%08x", x)
	case uint64:
		return fmt.Sprintf("0x%016x", x)
	case float32, float64:
		return fmt.Sprintf("%v", x)
	case proc.Byte64:
		return formatBytes(x[:])
	case proc.Byte128:
		return formatBytes(x[:])
	}
	return fmt.Sprintf("%v", v)
}

func formatBytes(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("0x%02x", b)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
