// Package registry owns the SavedPrinters aggregate: durable CRUD over
// the set of known printers and the single-active-printer selection.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/laundrypos/printer-server/internal/models"
	"github.com/laundrypos/printer-server/internal/storage"
)

// Expected failure modes. Callers branch on these; none is fatal.
var (
	ErrPrinterNotFound = errors.New("printer not found")
	ErrDuplicateID     = errors.New("printer id already registered")
	ErrVersionConflict = errors.New("registry version conflict")
	// ErrDanglingActive means activePrinterId references no member.
	// The invariants make this unreachable; seeing it is a bug, not a
	// normal empty result.
	ErrDanglingActive = errors.New("active printer id references no printer")
)

// Registry keeps an in-memory mirror of the persisted aggregate. Every
// mutation persists first and only then updates the mirror, so readers
// never observe state that was not actually written.
type Registry struct {
	kv  storage.KV
	now func() time.Time

	mu    sync.Mutex
	state models.SavedPrinters
}

// New creates a registry over the given store. Call Load before use.
func New(kv storage.KV) *Registry {
	return &Registry{kv: kv, now: time.Now}
}

// WithClock overrides the connection timestamp source. Test hook.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Load reads the persisted aggregate. An absent key yields the empty
// aggregate, never an error.
func (r *Registry) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.kv.Get(ctx, storage.KeySavedPrinters)
	if errors.Is(err, storage.ErrNotFound) {
		r.state = models.SavedPrinters{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("load saved printers: %w", err)
	}

	var state models.SavedPrinters
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("decode saved printers: %w: %v", storage.ErrInvalidData, err)
	}
	r.state = state

	log.Debug().
		Int("printers", len(state.Printers)).
		Str("active_printer_id", state.ActivePrinterID).
		Msg("Printer registry loaded")
	return nil
}

// Snapshot returns a deep copy of the current aggregate.
func (r *Registry) Snapshot() models.SavedPrinters {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Clone()
}

// persist writes next to storage and, only on success, replaces the
// mirror. The stored version is re-read first so a concurrent writer
// surfaces as ErrVersionConflict instead of a silent lost update.
func (r *Registry) persist(ctx context.Context, next models.SavedPrinters) error {
	stored, err := r.kv.Get(ctx, storage.KeySavedPrinters)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("read current version: %w", err)
	}
	if stored != nil {
		var cur models.SavedPrinters
		if err := json.Unmarshal(stored, &cur); err != nil {
			// A corrupt blob must surface, not get overwritten with the
			// version check silently skipped.
			return fmt.Errorf("decode stored aggregate: %w: %v", storage.ErrInvalidData, err)
		}
		if cur.Version != r.state.Version {
			return ErrVersionConflict
		}
	}

	next.Version = r.state.Version + 1
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode saved printers: %w", err)
	}
	if err := r.kv.Set(ctx, storage.KeySavedPrinters, data); err != nil {
		return fmt.Errorf("write saved printers: %w", err)
	}

	r.state = next
	return nil
}

// AddPrinter appends a new printer. The id must not already exist; a
// duplicate is a conflict the caller resolves with UpdatePrinter.
func (r *Registry) AddPrinter(ctx context.Context, cfg models.PrinterConfig) error {
	if cfg.ID == "" {
		return fmt.Errorf("printer id is required")
	}
	if err := cfg.Settings.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Find(cfg.ID) != nil {
		return ErrDuplicateID
	}

	// Activation is a separate, explicit step.
	cfg.IsActive = false

	next := r.state.Clone()
	next.Printers = append(next.Printers, cfg)
	if err := r.persist(ctx, next); err != nil {
		return err
	}

	log.Info().Str("printer_id", cfg.ID).Str("name", cfg.Name).Msg("Printer added")
	return nil
}

// UpdatePrinter merges the non-nil fields of upd into the printer. A
// merge that changes nothing succeeds without touching storage.
func (r *Registry) UpdatePrinter(ctx context.Context, id string, upd models.PrinterUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Find(id) == nil {
		return ErrPrinterNotFound
	}

	next := r.state.Clone()
	p := next.Find(id)

	changed := false
	if upd.Name != nil && *upd.Name != p.Name {
		p.Name = *upd.Name
		changed = true
	}
	if upd.PaperSize != nil && *upd.PaperSize != p.Settings.PaperSize {
		p.Settings.PaperSize = *upd.PaperSize
		changed = true
	}
	if upd.PrintDensity != nil && *upd.PrintDensity != p.Settings.PrintDensity {
		p.Settings.PrintDensity = *upd.PrintDensity
		changed = true
	}
	if upd.PrintSpeed != nil && *upd.PrintSpeed != p.Settings.PrintSpeed {
		p.Settings.PrintSpeed = *upd.PrintSpeed
		changed = true
	}
	if upd.AutoCut != nil && *upd.AutoCut != p.Settings.AutoCut {
		p.Settings.AutoCut = *upd.AutoCut
		changed = true
	}

	if !changed {
		return nil
	}
	if err := p.Settings.Validate(); err != nil {
		return err
	}
	if err := r.persist(ctx, next); err != nil {
		return err
	}

	log.Info().Str("printer_id", id).Msg("Printer updated")
	return nil
}

// DeletePrinter removes the printer. If it was active the selection is
// cleared; no other printer is auto-promoted.
func (r *Registry) DeletePrinter(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Find(id) == nil {
		return ErrPrinterNotFound
	}

	next := r.state.Clone()
	printers := next.Printers[:0]
	for _, p := range next.Printers {
		if p.ID != id {
			printers = append(printers, p)
		}
	}
	next.Printers = printers
	if next.ActivePrinterID == id {
		next.ActivePrinterID = ""
	}

	if err := r.persist(ctx, next); err != nil {
		return err
	}

	log.Info().Str("printer_id", id).Msg("Printer deleted")
	return nil
}

// SetActivePrinter marks id as the active printer and clears the flag
// on every other printer in the same write.
func (r *Registry) SetActivePrinter(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Find(id) == nil {
		return ErrPrinterNotFound
	}

	next := r.state.Clone()
	next.ActivePrinterID = id
	for i := range next.Printers {
		next.Printers[i].IsActive = next.Printers[i].ID == id
	}

	if err := r.persist(ctx, next); err != nil {
		return err
	}

	log.Info().Str("printer_id", id).Msg("Active printer set")
	return nil
}

// UpdateConnectionStatus records live connection state. LastConnected
// is stamped only on the transition to connected; it tracks the last
// successful connection, not last activity.
func (r *Registry) UpdateConnectionStatus(ctx context.Context, id string, isConnected bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.state.Find(id)
	if cur == nil {
		return ErrPrinterNotFound
	}

	next := r.state.Clone()
	p := next.Find(id)
	wasConnected := p.IsConnected
	p.IsConnected = isConnected
	if isConnected && !wasConnected {
		t := r.now()
		p.LastConnected = &t
	}

	if err := r.persist(ctx, next); err != nil {
		return err
	}

	log.Debug().
		Str("printer_id", id).
		Bool("is_connected", isConnected).
		Msg("Printer connection status updated")
	return nil
}

// GetActivePrinter returns the active printer, or (nil, nil) when no
// selection is set. A dangling selection is reported as
// ErrDanglingActive.
func (r *Registry) GetActivePrinter() (*models.PrinterConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.ActivePrinterID == "" {
		return nil, nil
	}
	p := r.state.Find(r.state.ActivePrinterID)
	if p == nil {
		return nil, ErrDanglingActive
	}
	cp := *p
	if cp.LastConnected != nil {
		t := *cp.LastConnected
		cp.LastConnected = &t
	}
	return &cp, nil
}

// ReplaceAll overwrites the whole aggregate. Used by the sync pull
// path, where the server is authoritative.
func (r *Registry) ReplaceAll(ctx context.Context, printers []models.PrinterConfig, activeID string) error {
	// The server being authoritative does not exempt its payload from
	// the settings bounds; a malformed record fails the whole replace.
	for _, p := range printers {
		if err := p.Settings.Validate(); err != nil {
			return fmt.Errorf("printer %s: %w", p.ID, err)
		}
	}
	if activeID != "" {
		found := false
		for _, p := range printers {
			if p.ID == activeID {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("active printer id %q not in replacement set", activeID)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := models.SavedPrinters{
		Printers:        printers,
		ActivePrinterID: activeID,
		Version:         r.state.Version,
	}
	for i := range next.Printers {
		next.Printers[i].IsActive = next.Printers[i].ID == activeID && activeID != ""
	}

	if err := r.persist(ctx, next); err != nil {
		return err
	}

	log.Info().Int("printers", len(printers)).Msg("Printer registry replaced from server")
	return nil
}

// ClearAll resets to the empty aggregate. Irreversible.
func (r *Registry) ClearAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := models.SavedPrinters{Version: r.state.Version}
	if err := r.persist(ctx, next); err != nil {
		return err
	}

	log.Warn().Msg("Printer registry cleared")
	return nil
}
