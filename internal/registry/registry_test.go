package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/laundrypos/printer-server/internal/models"
	"github.com/laundrypos/printer-server/internal/storage"
)

func newTestRegistry(t *testing.T) (*Registry, *storage.MemoryKV) {
	t.Helper()
	kv := storage.NewMemoryKV()
	r := New(kv)
	if err := r.Load(context.Background()); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	return r, kv
}

func testPrinter(id, name string) models.PrinterConfig {
	return models.PrinterConfig{
		ID:         id,
		Name:       name,
		DeviceName: "MTP-" + id,
		Settings:   models.DefaultSettings(),
	}
}

func TestAddAndActivate(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	if err := r.AddPrinter(ctx, testPrinter("AA:BB", "Front Desk")); err != nil {
		t.Fatalf("AddPrinter() error: %v", err)
	}

	// Adding never activates, even if the caller set the flag.
	p := testPrinter("CC:DD", "Back Room")
	p.IsActive = true
	if err := r.AddPrinter(ctx, p); err != nil {
		t.Fatalf("AddPrinter() error: %v", err)
	}
	state := r.Snapshot()
	if state.ActivePrinterID != "" {
		t.Errorf("ActivePrinterID = %q after add; want empty", state.ActivePrinterID)
	}
	if state.Find("CC:DD").IsActive {
		t.Error("added printer carried IsActive through")
	}

	if err := r.SetActivePrinter(ctx, "AA:BB"); err != nil {
		t.Fatalf("SetActivePrinter() error: %v", err)
	}
	if err := r.SetActivePrinter(ctx, "CC:DD"); err != nil {
		t.Fatalf("SetActivePrinter() error: %v", err)
	}

	state = r.Snapshot()
	if state.ActivePrinterID != "CC:DD" {
		t.Errorf("ActivePrinterID = %q; want CC:DD", state.ActivePrinterID)
	}
	active := 0
	for _, p := range state.Printers {
		if p.IsActive {
			active++
		}
	}
	if active != 1 {
		t.Errorf("printers with IsActive = %d; want exactly 1", active)
	}

	got, err := r.GetActivePrinter()
	if err != nil {
		t.Fatalf("GetActivePrinter() error: %v", err)
	}
	if got == nil || got.ID != "CC:DD" {
		t.Errorf("GetActivePrinter() = %+v; want CC:DD", got)
	}
}

func TestSetActivePrinterIdempotent(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	if err := r.AddPrinter(ctx, testPrinter("AA:BB", "Front Desk")); err != nil {
		t.Fatalf("AddPrinter() error: %v", err)
	}
	if err := r.SetActivePrinter(ctx, "AA:BB"); err != nil {
		t.Fatalf("SetActivePrinter() error: %v", err)
	}
	if err := r.SetActivePrinter(ctx, "AA:BB"); err != nil {
		t.Fatalf("repeat SetActivePrinter() error: %v", err)
	}
	if got := r.Snapshot().ActivePrinterID; got != "AA:BB" {
		t.Errorf("ActivePrinterID = %q; want AA:BB", got)
	}
}

func TestAddDuplicateID(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	if err := r.AddPrinter(ctx, testPrinter("AA:BB", "First")); err != nil {
		t.Fatalf("AddPrinter() error: %v", err)
	}
	err := r.AddPrinter(ctx, testPrinter("AA:BB", "Second"))
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("duplicate add error = %v; want ErrDuplicateID", err)
	}
	if got := len(r.Snapshot().Printers); got != 1 {
		t.Errorf("printer count = %d after rejected add; want 1", got)
	}
}

func TestAddRejectsInvalidSettings(t *testing.T) {
	r, _ := newTestRegistry(t)

	p := testPrinter("AA:BB", "Bad")
	p.Settings.PrintDensity = 20
	if err := r.AddPrinter(context.Background(), p); err == nil {
		t.Fatal("out-of-range density accepted")
	}
	if got := len(r.Snapshot().Printers); got != 0 {
		t.Errorf("printer count = %d after rejected add; want 0", got)
	}
}

func TestUpdatePrinter(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	if err := r.AddPrinter(ctx, testPrinter("AA:BB", "Front Desk")); err != nil {
		t.Fatalf("AddPrinter() error: %v", err)
	}
	before := r.Snapshot().Version

	name := "Counter"
	size := models.Paper80mm
	err := r.UpdatePrinter(ctx, "AA:BB", models.PrinterUpdate{Name: &name, PaperSize: &size})
	if err != nil {
		t.Fatalf("UpdatePrinter() error: %v", err)
	}
	state := r.Snapshot()
	p := state.Find("AA:BB")
	if p.Name != "Counter" || p.Settings.PaperSize != models.Paper80mm {
		t.Errorf("update not applied: %+v", p)
	}
	if state.Version != before+1 {
		t.Errorf("version = %d; want %d", state.Version, before+1)
	}

	// A merge that changes nothing succeeds without a new version.
	same := "Counter"
	if err := r.UpdatePrinter(ctx, "AA:BB", models.PrinterUpdate{Name: &same}); err != nil {
		t.Fatalf("no-op UpdatePrinter() error: %v", err)
	}
	if got := r.Snapshot().Version; got != before+1 {
		t.Errorf("no-op update bumped version to %d", got)
	}

	if err := r.UpdatePrinter(ctx, "ZZ:ZZ", models.PrinterUpdate{Name: &name}); !errors.Is(err, ErrPrinterNotFound) {
		t.Errorf("unknown id error = %v; want ErrPrinterNotFound", err)
	}

	bad := 0
	if err := r.UpdatePrinter(ctx, "AA:BB", models.PrinterUpdate{PrintSpeed: &bad}); err == nil {
		t.Error("out-of-range speed accepted")
	}
}

func TestDeleteActivePrinterClearsSelection(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	if err := r.AddPrinter(ctx, testPrinter("AA:BB", "Front Desk")); err != nil {
		t.Fatalf("AddPrinter() error: %v", err)
	}
	if err := r.AddPrinter(ctx, testPrinter("CC:DD", "Back Room")); err != nil {
		t.Fatalf("AddPrinter() error: %v", err)
	}
	if err := r.SetActivePrinter(ctx, "AA:BB"); err != nil {
		t.Fatalf("SetActivePrinter() error: %v", err)
	}

	if err := r.DeletePrinter(ctx, "AA:BB"); err != nil {
		t.Fatalf("DeletePrinter() error: %v", err)
	}
	state := r.Snapshot()
	if state.ActivePrinterID != "" {
		t.Errorf("ActivePrinterID = %q after deleting active; want empty", state.ActivePrinterID)
	}
	// No auto-promotion of the survivor.
	if state.Find("CC:DD").IsActive {
		t.Error("surviving printer was auto-activated")
	}

	p, err := r.GetActivePrinter()
	if err != nil || p != nil {
		t.Errorf("GetActivePrinter() = %v, %v; want nil, nil", p, err)
	}
}

func TestConnectionStatusStampsOnTransition(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	t0 := time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)
	now := t0
	r.WithClock(func() time.Time { return now })

	if err := r.AddPrinter(ctx, testPrinter("AA:BB", "Front Desk")); err != nil {
		t.Fatalf("AddPrinter() error: %v", err)
	}
	if err := r.UpdateConnectionStatus(ctx, "AA:BB", true); err != nil {
		t.Fatalf("UpdateConnectionStatus() error: %v", err)
	}
	p := r.Snapshot().Find("AA:BB")
	if p.LastConnected == nil || !p.LastConnected.Equal(t0) {
		t.Fatalf("LastConnected = %v; want %v", p.LastConnected, t0)
	}

	// Still connected: no re-stamp.
	now = t0.Add(time.Hour)
	if err := r.UpdateConnectionStatus(ctx, "AA:BB", true); err != nil {
		t.Fatalf("UpdateConnectionStatus() error: %v", err)
	}
	p = r.Snapshot().Find("AA:BB")
	if !p.LastConnected.Equal(t0) {
		t.Errorf("LastConnected re-stamped to %v while already connected", p.LastConnected)
	}

	// Disconnect keeps the last successful connection time.
	if err := r.UpdateConnectionStatus(ctx, "AA:BB", false); err != nil {
		t.Fatalf("UpdateConnectionStatus() error: %v", err)
	}
	p = r.Snapshot().Find("AA:BB")
	if p.IsConnected {
		t.Error("IsConnected still true after disconnect")
	}
	if !p.LastConnected.Equal(t0) {
		t.Errorf("LastConnected changed on disconnect: %v", p.LastConnected)
	}

	// Reconnect stamps the new time.
	now = t0.Add(2 * time.Hour)
	if err := r.UpdateConnectionStatus(ctx, "AA:BB", true); err != nil {
		t.Fatalf("UpdateConnectionStatus() error: %v", err)
	}
	p = r.Snapshot().Find("AA:BB")
	if !p.LastConnected.Equal(t0.Add(2 * time.Hour)) {
		t.Errorf("LastConnected = %v after reconnect; want %v", p.LastConnected, t0.Add(2*time.Hour))
	}
}

func TestPersistFailureLeavesMirrorUntouched(t *testing.T) {
	r, kv := newTestRegistry(t)
	ctx := context.Background()

	if err := r.AddPrinter(ctx, testPrinter("AA:BB", "Front Desk")); err != nil {
		t.Fatalf("AddPrinter() error: %v", err)
	}
	before := r.Snapshot()

	kv.FailSet = errors.New("disk full")
	if err := r.AddPrinter(ctx, testPrinter("CC:DD", "Back Room")); err == nil {
		t.Fatal("AddPrinter() succeeded despite write failure")
	}
	if err := r.SetActivePrinter(ctx, "AA:BB"); err == nil {
		t.Fatal("SetActivePrinter() succeeded despite write failure")
	}

	after := r.Snapshot()
	if len(after.Printers) != len(before.Printers) ||
		after.ActivePrinterID != before.ActivePrinterID ||
		after.Version != before.Version {
		t.Errorf("mirror changed after failed write: before=%+v after=%+v", before, after)
	}

	// Recovery: once the store works again the same mutation lands.
	kv.FailSet = nil
	if err := r.AddPrinter(ctx, testPrinter("CC:DD", "Back Room")); err != nil {
		t.Fatalf("AddPrinter() after recovery error: %v", err)
	}
}

func TestVersionConflict(t *testing.T) {
	kv := storage.NewMemoryKV()
	ctx := context.Background()

	a := New(kv)
	if err := a.Load(ctx); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	b := New(kv)
	if err := b.Load(ctx); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if err := a.AddPrinter(ctx, testPrinter("AA:BB", "Front Desk")); err != nil {
		t.Fatalf("AddPrinter() error: %v", err)
	}

	// b still holds version 0 and must not silently clobber a's write.
	err := b.AddPrinter(ctx, testPrinter("CC:DD", "Back Room"))
	if !errors.Is(err, ErrVersionConflict) {
		t.Errorf("stale write error = %v; want ErrVersionConflict", err)
	}

	// After reloading, b's write goes through.
	if err := b.Load(ctx); err != nil {
		t.Fatalf("reload error: %v", err)
	}
	if err := b.AddPrinter(ctx, testPrinter("CC:DD", "Back Room")); err != nil {
		t.Fatalf("AddPrinter() after reload error: %v", err)
	}
}

func TestReplaceAll(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	if err := r.AddPrinter(ctx, testPrinter("AA:BB", "Old")); err != nil {
		t.Fatalf("AddPrinter() error: %v", err)
	}

	incoming := []models.PrinterConfig{
		testPrinter("CC:DD", "Server One"),
		testPrinter("EE:FF", "Server Two"),
	}
	if err := r.ReplaceAll(ctx, incoming, "EE:FF"); err != nil {
		t.Fatalf("ReplaceAll() error: %v", err)
	}

	state := r.Snapshot()
	if len(state.Printers) != 2 || state.Find("AA:BB") != nil {
		t.Errorf("local-only printer survived replace: %+v", state.Printers)
	}
	if state.ActivePrinterID != "EE:FF" || !state.Find("EE:FF").IsActive {
		t.Errorf("active selection not applied: %+v", state)
	}

	err := r.ReplaceAll(ctx, incoming, "ZZ:ZZ")
	if err == nil {
		t.Error("dangling active id accepted by ReplaceAll")
	}
}

func TestReplaceAllRejectsInvalidSettings(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	if err := r.AddPrinter(ctx, testPrinter("AA:BB", "Keep Me")); err != nil {
		t.Fatalf("AddPrinter() error: %v", err)
	}
	before := r.Snapshot()

	bad := testPrinter("CC:DD", "From Server")
	bad.Settings.PrintDensity = 99
	bad.Settings.PrintSpeed = 0
	bad.Settings.PaperSize = "112mm"

	if err := r.ReplaceAll(ctx, []models.PrinterConfig{bad}, ""); err == nil {
		t.Fatal("ReplaceAll() accepted out-of-range settings")
	}

	after := r.Snapshot()
	if after.Version != before.Version || after.Find("CC:DD") != nil || after.Find("AA:BB") == nil {
		t.Errorf("failed replace touched local state: before=%+v after=%+v", before, after)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	kv := storage.NewMemoryKV()
	ctx := context.Background()

	a := New(kv)
	if err := a.Load(ctx); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if err := a.AddPrinter(ctx, testPrinter("AA:BB", "Front Desk")); err != nil {
		t.Fatalf("AddPrinter() error: %v", err)
	}
	if err := a.SetActivePrinter(ctx, "AA:BB"); err != nil {
		t.Fatalf("SetActivePrinter() error: %v", err)
	}

	b := New(kv)
	if err := b.Load(ctx); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	got := b.Snapshot()
	want := a.Snapshot()
	if got.ActivePrinterID != want.ActivePrinterID || got.Version != want.Version || len(got.Printers) != len(want.Printers) {
		t.Errorf("reloaded state = %+v; want %+v", got, want)
	}
}

func TestPersistRejectsCorruptStore(t *testing.T) {
	r, kv := newTestRegistry(t)
	ctx := context.Background()

	if err := r.AddPrinter(ctx, testPrinter("AA:BB", "Front Desk")); err != nil {
		t.Fatalf("AddPrinter() error: %v", err)
	}

	// Someone else corrupted the blob underneath us: the next write
	// must fail loudly rather than overwrite it unexamined.
	if err := kv.Set(ctx, storage.KeySavedPrinters, []byte("{broken")); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	err := r.AddPrinter(ctx, testPrinter("CC:DD", "Back Room"))
	if !errors.Is(err, storage.ErrInvalidData) {
		t.Errorf("write over corrupt blob error = %v; want ErrInvalidData", err)
	}
	if got := len(r.Snapshot().Printers); got != 1 {
		t.Errorf("mirror changed after rejected write: %d printers", got)
	}
}

func TestLoadCorruptBlob(t *testing.T) {
	kv := storage.NewMemoryKV()
	ctx := context.Background()
	if err := kv.Set(ctx, storage.KeySavedPrinters, []byte("{not json")); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	r := New(kv)
	if err := r.Load(ctx); !errors.Is(err, storage.ErrInvalidData) {
		t.Errorf("Load() error = %v; want ErrInvalidData", err)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	if err := r.AddPrinter(ctx, testPrinter("AA:BB", "Front Desk")); err != nil {
		t.Fatalf("AddPrinter() error: %v", err)
	}

	snap := r.Snapshot()
	snap.Printers[0].Name = "Mutated"
	snap.ActivePrinterID = "AA:BB"

	state := r.Snapshot()
	if state.Printers[0].Name != "Front Desk" || state.ActivePrinterID != "" {
		t.Error("mutating a snapshot leaked into the registry")
	}
}

func TestClearAll(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	if err := r.AddPrinter(ctx, testPrinter("AA:BB", "Front Desk")); err != nil {
		t.Fatalf("AddPrinter() error: %v", err)
	}
	if err := r.SetActivePrinter(ctx, "AA:BB"); err != nil {
		t.Fatalf("SetActivePrinter() error: %v", err)
	}
	if err := r.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll() error: %v", err)
	}

	state := r.Snapshot()
	if len(state.Printers) != 0 || state.ActivePrinterID != "" {
		t.Errorf("state after clear = %+v; want empty", state)
	}
	if state.Version == 0 {
		t.Error("clear did not bump the version")
	}
}
