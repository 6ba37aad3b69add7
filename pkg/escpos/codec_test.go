package escpos

import (
	"bytes"
	"testing"
)

func TestCodecRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"plain ascii", "Hello, world"},
		{"control bytes", string([]byte{0x1B, '@', 0x1D, 'V', 66, 0})},
		{"high bytes", string([]rune{0x00, 0x7F, 0x80, 0xFF})},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := ToBytes(tt.in)
			if err != nil {
				t.Fatalf("ToBytes() error: %v", err)
			}
			if got := FromBytes(b); got != tt.in {
				t.Errorf("FromBytes(ToBytes(s)) = %q; want %q", got, tt.in)
			}
		})
	}
}

func TestToBytesRejectsWideRunes(t *testing.T) {
	if _, err := ToBytes("receipt €"); err == nil {
		t.Error("ToBytes() accepted a rune above 0xFF; want error, not truncation")
	}
}

func TestFromBytesValues(t *testing.T) {
	in := []byte{0x00, 0x41, 0x80, 0xFF}
	out, err := ToBytes(FromBytes(in))
	if err != nil {
		t.Fatalf("ToBytes() error: %v", err)
	}
	if !bytes.Equal(out, in) {
		t.Errorf("ToBytes(FromBytes(b)) = %v; want %v", out, in)
	}
}

// Scenario: a test print travels through the codec unchanged and the
// byte count matches the command string's rune count.
func TestTestPrintThroughCodec(t *testing.T) {
	job, err := TestPrint(fixedClock)
	if err != nil {
		t.Fatalf("TestPrint() error: %v", err)
	}

	payload, err := ToBytes(job)
	if err != nil {
		t.Fatalf("ToBytes() error: %v", err)
	}

	runeCount := len([]rune(job))
	if len(payload) != runeCount {
		t.Errorf("payload length = %d; want %d (one byte per code point)", len(payload), runeCount)
	}
	if FromBytes(payload) != job {
		t.Error("decode did not reconstruct the original command string")
	}
}
