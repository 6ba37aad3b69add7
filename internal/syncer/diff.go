package syncer

import (
	"fmt"

	"github.com/laundrypos/printer-server/internal/models"
)

// Candidate field names, as reported in changed-field lists and
// conflict details.
const (
	FieldName         = "name"
	FieldPaperSize    = "settings.paperSize"
	FieldPrintDensity = "settings.printDensity"
	FieldPrintSpeed   = "settings.printSpeed"
	FieldAutoCut      = "settings.autoCut"
	FieldIsConnected  = "isConnected"
)

// DiffResult describes what push must send for one printer. Update
// carries only the fields that changed locally, so untouched
// server-side fields are never overwritten.
type DiffResult struct {
	Changed           []string
	Update            *models.UpdatePrinterRequest
	ConnectionChanged bool
	Conflicts         []models.SyncConflictDetail
}

// fieldView is one candidate field projected from base, local and
// remote state.
type fieldView struct {
	name   string
	base   string
	local  string
	remote string
	apply  func(*models.UpdatePrinterRequest)
}

// Diff computes the field-level difference between the last-synced
// snapshot (base), the current local state and the current remote
// state. A field both sides changed, to different values, is a
// conflict; conflicted printers are reported, not pushed.
func Diff(base, local models.PrinterConfig, remote models.PrinterAPI) DiffResult {
	name := local.Name
	paper := local.Settings.PaperSize
	density := local.Settings.PrintDensity
	speed := local.Settings.PrintSpeed
	autoCut := local.Settings.AutoCut

	fields := []fieldView{
		{
			name: FieldName, base: base.Name, local: local.Name, remote: remote.Name,
			apply: func(u *models.UpdatePrinterRequest) { u.Name = &name },
		},
		{
			name: FieldPaperSize, base: string(base.Settings.PaperSize),
			local: string(local.Settings.PaperSize), remote: string(remote.PaperSize),
			apply: func(u *models.UpdatePrinterRequest) { u.PaperSize = &paper },
		},
		{
			name: FieldPrintDensity, base: fmt.Sprint(base.Settings.PrintDensity),
			local: fmt.Sprint(local.Settings.PrintDensity), remote: fmt.Sprint(remote.PrintDensity),
			apply: func(u *models.UpdatePrinterRequest) { u.PrintDensity = &density },
		},
		{
			name: FieldPrintSpeed, base: fmt.Sprint(base.Settings.PrintSpeed),
			local: fmt.Sprint(local.Settings.PrintSpeed), remote: fmt.Sprint(remote.PrintSpeed),
			apply: func(u *models.UpdatePrinterRequest) { u.PrintSpeed = &speed },
		},
		{
			name: FieldAutoCut, base: fmt.Sprint(base.Settings.AutoCut),
			local: fmt.Sprint(local.Settings.AutoCut), remote: fmt.Sprint(remote.AutoCut),
			apply: func(u *models.UpdatePrinterRequest) { u.AutoCut = &autoCut },
		},
	}

	var result DiffResult
	update := &models.UpdatePrinterRequest{}
	sendUpdate := false

	for _, f := range fields {
		localChanged := f.local != f.base
		remoteChanged := f.remote != f.base

		switch {
		case localChanged && remoteChanged && f.local != f.remote:
			result.Conflicts = append(result.Conflicts, models.SyncConflictDetail{
				Field:       f.name,
				LocalValue:  f.local,
				RemoteValue: f.remote,
			})
		case localChanged && f.local != f.remote:
			result.Changed = append(result.Changed, f.name)
			f.apply(update)
			sendUpdate = true
		}
	}

	if sendUpdate {
		result.Update = update
	}

	// Connection state travels through its own endpoint; it is a
	// liveness report, not a configured property, so it can never
	// conflict.
	if local.IsConnected != base.IsConnected && local.IsConnected != remote.IsConnected {
		result.Changed = append(result.Changed, FieldIsConnected)
		result.ConnectionChanged = true
	}

	return result
}
