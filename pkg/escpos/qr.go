package escpos

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// RasterQRCode renders data as a QR bitmap and appends it as a GS v 0
// raster image. Fallback for printers whose firmware lacks the native
// GS ( k symbol commands; output is wider on the wire but prints on
// anything that handles raster graphics.
func (b Builder) RasterQRCode(data string, scale int) Builder {
	if data == "" {
		return b.fail(fmt.Errorf("escpos: QR data cannot be empty"))
	}
	if scale < 1 || scale > 8 {
		return b.fail(fmt.Errorf("escpos: QR scale %d out of range 1-8", scale))
	}

	code, err := qrcode.New(data, qrcode.Medium)
	if err != nil {
		return b.fail(fmt.Errorf("escpos: encode QR: %w", err))
	}

	bitmap := code.Bitmap()
	modules := len(bitmap)
	widthPx := modules * scale
	widthBytes := (widthPx + 7) / 8
	heightPx := modules * scale

	if widthBytes > 0xFFFF || heightPx > 0xFFFF {
		return b.fail(fmt.Errorf("escpos: QR raster %dx%d exceeds printable size", widthPx, heightPx))
	}

	// GS v 0 m xL xH yL yH, then row-major bit data, MSB first.
	raster := make([]byte, 0, 8+widthBytes*heightPx)
	raster = append(raster, gs, 'v', '0', 0x00,
		byte(widthBytes&0xFF), byte(widthBytes>>8),
		byte(heightPx&0xFF), byte(heightPx>>8))

	for my := 0; my < modules; my++ {
		row := make([]byte, widthBytes)
		for mx := 0; mx < modules; mx++ {
			if !bitmap[my][mx] {
				continue
			}
			for s := 0; s < scale; s++ {
				px := mx*scale + s
				row[px/8] |= 0x80 >> uint(px%8)
			}
		}
		for s := 0; s < scale; s++ {
			raster = append(raster, row...)
		}
	}

	return b.Raw(byteString(raster...))
}
