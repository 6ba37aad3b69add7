// Package escpos builds ESC/POS control sequences for thermal receipt
// printers. The builder is an immutable value: every call returns a new
// builder with the fragment appended, so partially built jobs can be
// shared and compared safely.
package escpos

import (
	"encoding/binary"
	"fmt"
)

// Control bytes used by the ESC/POS protocol.
const (
	esc = 0x1B
	gs  = 0x1D
	lf  = 0x0A
)

// Alignment selects horizontal alignment for subsequent text.
type Alignment byte

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
)

// FontSize selects the character magnification mode.
type FontSize byte

const (
	FontNormal FontSize = iota
	FontDoubleWidth
	FontDoubleHeight
)

// QR code limits. Data length is encoded as a little-endian two-byte
// count, so anything longer cannot be represented on the wire.
const MaxQRDataLen = 65535

// Builder accumulates ESC/POS command fragments. The zero value is an
// empty builder ready for use.
type Builder struct {
	frags []string
	err   error
}

// NewBuilder returns an empty builder.
func NewBuilder() Builder {
	return Builder{}
}

// append returns a copy of b with the fragment added. Once an error has
// been recorded every later call is a no-op, so Build reports the first
// failure in the chain.
func (b Builder) append(frag string) Builder {
	if b.err != nil {
		return b
	}
	frags := make([]string, len(b.frags), len(b.frags)+1)
	copy(frags, b.frags)
	return Builder{frags: append(frags, frag)}
}

func (b Builder) fail(err error) Builder {
	if b.err != nil {
		return b
	}
	return Builder{frags: b.frags, err: err}
}

// byteString turns raw command bytes into a fragment string with one
// code point per byte. Plain string([]byte) would reinterpret bytes
// >= 0x80 as broken UTF-8 and the codec round trip would lose them.
func byteString(bs ...byte) string {
	rs := make([]rune, len(bs))
	for i, c := range bs {
		rs[i] = rune(c)
	}
	return string(rs)
}

// Init resets the printer to its power-on state (ESC @).
func (b Builder) Init() Builder {
	return b.append(byteString(esc, '@'))
}

// Align sets horizontal alignment (ESC a n).
func (b Builder) Align(a Alignment) Builder {
	switch a {
	case AlignLeft, AlignCenter, AlignRight:
		return b.append(byteString(esc, 'a', byte(a)))
	default:
		return b.fail(fmt.Errorf("escpos: invalid alignment %d", a))
	}
}

// Bold toggles emphasized mode (ESC E n).
func (b Builder) Bold(on bool) Builder {
	n := byte(0)
	if on {
		n = 1
	}
	return b.append(byteString(esc, 'E', n))
}

// Underline toggles underline mode (ESC - n).
func (b Builder) Underline(on bool) Builder {
	n := byte(0)
	if on {
		n = 1
	}
	return b.append(byteString(esc, '-', n))
}

// FontSize sets character magnification (GS ! n).
func (b Builder) FontSize(size FontSize) Builder {
	var n byte
	switch size {
	case FontNormal:
		n = 0x00
	case FontDoubleWidth:
		n = 0x20
	case FontDoubleHeight:
		n = 0x01
	default:
		return b.fail(fmt.Errorf("escpos: invalid font size %d", size))
	}
	return b.append(byteString(gs, '!', n))
}

// Text appends literal content. Content must be single-byte encodable;
// the codec rejects anything else at transport time.
func (b Builder) Text(content string) Builder {
	return b.append(content)
}

// LineFeed appends n line feeds. n defaults to nothing here on purpose:
// callers state how many lines they want, and a non-positive count is a
// programming error, not a silent no-op.
func (b Builder) LineFeed(n int) Builder {
	if n < 1 {
		return b.fail(fmt.Errorf("escpos: line feed count must be >= 1, got %d", n))
	}
	frag := make([]byte, n)
	for i := range frag {
		frag[i] = lf
	}
	return b.append(byteString(frag...))
}

// QRCode appends a printer-native QR code (GS ( k function group).
// size is the module size in dots (1-16), ec the error correction level
// (0-3, mapping to L/M/Q/H). Data longer than MaxQRDataLen is a caller
// precondition violation.
func (b Builder) QRCode(data string, size, ec int) Builder {
	if data == "" {
		return b.fail(fmt.Errorf("escpos: QR data cannot be empty"))
	}
	// The data rides in the fragment as-is, one code point per wire
	// byte, so the stored-symbol count is the code point count.
	n := 0
	for range data {
		n++
	}
	if n > MaxQRDataLen {
		return b.fail(fmt.Errorf("escpos: QR data too long (%d bytes)", n))
	}
	if size < 1 || size > 16 {
		return b.fail(fmt.Errorf("escpos: QR module size %d out of range 1-16", size))
	}
	if ec < 0 || ec > 3 {
		return b.fail(fmt.Errorf("escpos: QR correction level %d out of range 0-3", ec))
	}

	// Model 2 selection, module size, error correction.
	model := []byte{gs, '(', 'k', 0x04, 0x00, 0x31, 0x41, 0x32, 0x00}
	moduleSize := []byte{gs, '(', 'k', 0x03, 0x00, 0x31, 0x43, byte(size)}
	correction := []byte{gs, '(', 'k', 0x03, 0x00, 0x31, 0x45, byte(0x30 + ec)}

	// Store data: pL/pH is the data count plus 3, little endian.
	var count [2]byte
	binary.LittleEndian.PutUint16(count[:], uint16(n+3))
	store := byteString(gs, '(', 'k', count[0], count[1], 0x31, 0x50, 0x30) + data

	// Print the stored symbol.
	print := []byte{gs, '(', 'k', 0x03, 0x00, 0x31, 0x51, 0x30}

	seq := byteString(model...) + byteString(moduleSize...) + byteString(correction...) + store + byteString(print...)
	return b.append(seq)
}

// CutPaper performs a partial cut with feed (GS V 66 0).
func (b Builder) CutPaper() Builder {
	return b.append(byteString(gs, 'V', 66, 0))
}

// Raw appends a pre-built fragment verbatim. Used by the raster QR
// fallback; general callers should prefer the typed methods.
func (b Builder) Raw(frag string) Builder {
	return b.append(frag)
}

// Build returns the concatenation of all fragments in call order, or
// the first error recorded in the chain. No capability validation
// happens here: the builder does not know which printer will receive
// the sequence.
func (b Builder) Build() (string, error) {
	if b.err != nil {
		return "", b.err
	}
	total := 0
	for _, f := range b.frags {
		total += len(f)
	}
	out := make([]byte, 0, total)
	for _, f := range b.frags {
		out = append(out, f...)
	}
	return string(out), nil
}
