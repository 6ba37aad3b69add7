package models

import "time"

// SyncStatus represents the per-printer reconciliation state
type SyncStatus string

const (
	SyncPending  SyncStatus = "pending"
	SyncSynced   SyncStatus = "synced"
	SyncConflict SyncStatus = "conflict"
	SyncError    SyncStatus = "error"
)

// Resolution is the caller-chosen conflict resolution policy. The sync
// engine detects and reports conflicts; it never picks a resolution.
type Resolution string

const (
	ResolveLocal  Resolution = "local"
	ResolveServer Resolution = "server"
	ResolveManual Resolution = "manual"
)

// SyncRecord is the per-printer reconciliation record, derived at sync
// time from the registry snapshot, the last-synced snapshot and the
// remote snapshot. It is never persisted.
type SyncRecord struct {
	PrinterID     string        `json:"printerId"`
	Local         PrinterConfig `json:"local"`
	Remote        *PrinterAPI   `json:"remote,omitempty"`
	Status        SyncStatus    `json:"status"`
	ChangedFields []string      `json:"changedFields,omitempty"`
}

// SyncConflictDetail reports one field both sides changed since the last
// synced snapshot. Resolution stays empty until the caller decides.
type SyncConflictDetail struct {
	PrinterID   string     `json:"printerId"`
	Field       string     `json:"field"`
	LocalValue  string     `json:"localValue"`
	RemoteValue string     `json:"remoteValue"`
	Resolution  Resolution `json:"resolution,omitempty"`
}

// SyncErrorDetail reports a failed remote operation for one printer.
type SyncErrorDetail struct {
	PrinterID string `json:"printerId"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// SyncResult is the outcome of a push or pull batch. Synced is true iff
// there were zero conflicts and zero errors; false means at least one
// printer is still out of sync, not that nothing happened.
type SyncResult struct {
	BatchID    string               `json:"batchId"`
	Synced     bool                 `json:"synced"`
	Records    []SyncRecord         `json:"records,omitempty"`
	Conflicts  []SyncConflictDetail `json:"conflicts,omitempty"`
	Errors     []SyncErrorDetail    `json:"errors,omitempty"`
	FinishedAt time.Time            `json:"finishedAt"`
}

// LastSyncedSnapshots maps printer id to the local state known to match
// the server after the last successful push. This is the only sync
// metadata that gets persisted; everything else is recomputed.
type LastSyncedSnapshots map[string]PrinterConfig
