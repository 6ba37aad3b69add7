// Package transport delivers built command sequences to a physical
// printer. The core treats transmission as opaque: bytes in, error out.
package transport

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

// ErrNotConnected is returned when no device path is known for the
// requested printer.
var ErrNotConnected = errors.New("printer not connected")

// Transport sends a raw byte sequence to the printer identified by id.
type Transport interface {
	Send(ctx context.Context, printerID string, data []byte) error
}

// Discard is a transport that logs and drops everything. Used for dry
// runs and in environments with no paired device.
type Discard struct{}

// Send drops the payload.
func (Discard) Send(_ context.Context, printerID string, data []byte) error {
	log.Debug().
		Str("printer_id", printerID).
		Int("bytes", len(data)).
		Msg("Discard transport dropped print payload")
	return nil
}
