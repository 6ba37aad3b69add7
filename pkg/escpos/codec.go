package escpos

import "fmt"

// ToBytes converts a command string to a transport-ready byte slice,
// one byte per code point. Strings containing code points above 255
// cannot be carried losslessly and are rejected rather than truncated.
func ToBytes(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i, r := range s {
		if r > 0xFF {
			return nil, fmt.Errorf("escpos: code point U+%04X at index %d exceeds one byte", r, i)
		}
		out = append(out, byte(r))
	}
	return out, nil
}

// FromBytes is the exact inverse of ToBytes:
// FromBytes(ToBytes(s)) == s for every valid s.
func FromBytes(b []byte) string {
	runes := make([]rune, len(b))
	for i, v := range b {
		runes[i] = rune(v)
	}
	return string(runes)
}
