package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

// SerialTransport writes command sequences to rfcomm serial devices.
// A paired Bluetooth SPP printer shows up as /dev/rfcommN; the mapping
// from printer id to device path comes from configuration.
type SerialTransport struct {
	mu      sync.Mutex
	devices map[string]string // printer id -> device path
	baud    int
}

// NewSerialTransport creates a transport over the given id-to-device
// mapping.
func NewSerialTransport(devices map[string]string, baudRate int) *SerialTransport {
	if baudRate == 0 {
		baudRate = 9600
	}
	if devices == nil {
		devices = make(map[string]string)
	}
	return &SerialTransport{devices: devices, baud: baudRate}
}

// Bind associates a printer id with a device path after pairing.
func (t *SerialTransport) Bind(printerID, devicePath string) {
	t.mu.Lock()
	t.devices[printerID] = devicePath
	t.mu.Unlock()
}

// Send opens the device, writes the full payload and closes. Opening
// per job keeps the port free between prints, the way a phone holds a
// Bluetooth socket only while printing.
func (t *SerialTransport) Send(ctx context.Context, printerID string, data []byte) error {
	t.mu.Lock()
	path, ok := t.devices[printerID]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("printer %s: %w", printerID, ErrNotConnected)
	}

	mode := &serial.Mode{
		BaudRate: t.baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return fmt.Errorf("open port %s: %w", path, err)
	}
	defer port.Close()

	written := 0
	for written < len(data) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := port.Write(data[written:])
		if err != nil {
			return fmt.Errorf("write to %s after %d bytes: %w", path, written, err)
		}
		written += n
	}

	if err := port.Drain(); err != nil {
		return fmt.Errorf("drain %s: %w", path, err)
	}

	log.Debug().
		Str("printer_id", printerID).
		Str("device", path).
		Int("bytes", written).
		Msg("Print payload sent")
	return nil
}
