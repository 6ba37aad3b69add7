package models

import (
	"fmt"
	"time"
)

// PaperSize represents supported thermal paper widths
type PaperSize string

const (
	Paper58mm PaperSize = "58mm"
	Paper80mm PaperSize = "80mm"
)

// Print density and speed bounds shared by validation and the cloud API.
const (
	PrintLevelMin = 1
	PrintLevelMax = 15
)

// PrinterSettings holds the configurable properties of a printer
type PrinterSettings struct {
	PaperSize    PaperSize `json:"paperSize"`
	PrintDensity int       `json:"printDensity"`
	PrintSpeed   int       `json:"printSpeed"`
	AutoCut      bool      `json:"autoCut"`
}

// Validate checks settings against protocol limits. Violations are
// rejected before persistence, never clamped.
func (s PrinterSettings) Validate() error {
	switch s.PaperSize {
	case Paper58mm, Paper80mm:
	default:
		return fmt.Errorf("invalid paper size %q", s.PaperSize)
	}
	if s.PrintDensity < PrintLevelMin || s.PrintDensity > PrintLevelMax {
		return fmt.Errorf("print density %d out of range %d-%d", s.PrintDensity, PrintLevelMin, PrintLevelMax)
	}
	if s.PrintSpeed < PrintLevelMin || s.PrintSpeed > PrintLevelMax {
		return fmt.Errorf("print speed %d out of range %d-%d", s.PrintSpeed, PrintLevelMin, PrintLevelMax)
	}
	return nil
}

// DefaultSettings returns the factory defaults applied when a printer
// is first paired.
func DefaultSettings() PrinterSettings {
	return PrinterSettings{
		PaperSize:    Paper58mm,
		PrintDensity: 8,
		PrintSpeed:   8,
		AutoCut:      true,
	}
}

// PrinterConfig represents a known printer as understood locally.
// ID is the Bluetooth device identifier (MAC) and is stable.
type PrinterConfig struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	DeviceName    string          `json:"deviceName"`
	IsConnected   bool            `json:"isConnected"`
	LastConnected *time.Time      `json:"lastConnected,omitempty"`
	IsActive      bool            `json:"isActive"`
	Settings      PrinterSettings `json:"settings"`
}

// PrinterUpdate carries a partial update to a printer. Nil fields are
// left untouched by the registry merge.
type PrinterUpdate struct {
	Name         *string    `json:"name,omitempty"`
	PaperSize    *PaperSize `json:"paperSize,omitempty"`
	PrintDensity *int       `json:"printDensity,omitempty"`
	PrintSpeed   *int       `json:"printSpeed,omitempty"`
	AutoCut      *bool      `json:"autoCut,omitempty"`
}

// SavedPrinters is the aggregate root owned by the registry: all known
// printers in insertion order plus the active selection. ActivePrinterID
// is either empty or matches exactly one member's ID. Version is a
// monotonic counter bumped on every persisted write; writers check it
// to detect lost updates.
type SavedPrinters struct {
	Printers        []PrinterConfig `json:"printers"`
	ActivePrinterID string          `json:"activePrinterId,omitempty"`
	Version         int64           `json:"version"`
}

// Clone returns a deep copy so registry snapshots cannot alias the
// in-memory mirror.
func (s SavedPrinters) Clone() SavedPrinters {
	out := SavedPrinters{
		ActivePrinterID: s.ActivePrinterID,
		Version:         s.Version,
	}
	out.Printers = make([]PrinterConfig, len(s.Printers))
	for i, p := range s.Printers {
		if p.LastConnected != nil {
			t := *p.LastConnected
			p.LastConnected = &t
		}
		out.Printers[i] = p
	}
	return out
}

// Find returns the printer with the given id, or nil. The value
// receiver keeps Find callable on freshly returned snapshots; the
// result still points into the receiver's backing array.
func (s SavedPrinters) Find(id string) *PrinterConfig {
	for i := range s.Printers {
		if s.Printers[i].ID == id {
			return &s.Printers[i]
		}
	}
	return nil
}
