// Package syncer reconciles the local printer registry against the
// merchant backend. Pull overwrites local state from the server; push
// propagates local edits per printer with field-level diffs. Conflicts
// are detected and reported, never resolved here.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/laundrypos/printer-server/internal/models"
	"github.com/laundrypos/printer-server/internal/registry"
	"github.com/laundrypos/printer-server/internal/storage"
)

// ErrSyncInFlight is returned when a sync is requested while another
// one is still running. At most one reconciliation runs at a time.
var ErrSyncInFlight = errors.New("sync already in progress")

// RemoteAPI is the subset of the cloud client the engine consumes.
type RemoteAPI interface {
	MerchantID() string
	ListPrinters(ctx context.Context) (*models.ListPrintersResponse, error)
	CreatePrinter(ctx context.Context, req models.CreatePrinterRequest) (*models.PrinterAPI, error)
	UpdatePrinter(ctx context.Context, id string, req models.UpdatePrinterRequest) (*models.PrinterAPI, error)
	UpdateConnection(ctx context.Context, id string, req models.UpdateConnectionRequest) error
}

// Syncer coordinates the registry, the remote API and the persisted
// last-synced snapshots. All other sync metadata is derived on demand.
type Syncer struct {
	registry *registry.Registry
	remote   RemoteAPI
	kv       storage.KV
	now      func() time.Time

	mu      sync.Mutex
	syncing bool
}

// New creates a sync engine.
func New(reg *registry.Registry, remote RemoteAPI, kv storage.KV) *Syncer {
	return &Syncer{
		registry: reg,
		remote:   remote,
		kv:       kv,
		now:      time.Now,
	}
}

// WithClock overrides the result timestamp source. Test hook.
func (s *Syncer) WithClock(now func() time.Time) *Syncer {
	s.now = now
	return s
}

// IsSyncing reports whether a reconciliation is currently running.
func (s *Syncer) IsSyncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncing
}

func (s *Syncer) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.syncing {
		return ErrSyncInFlight
	}
	s.syncing = true
	return nil
}

func (s *Syncer) end() {
	s.mu.Lock()
	s.syncing = false
	s.mu.Unlock()
}

func (s *Syncer) loadSnapshots(ctx context.Context) (models.LastSyncedSnapshots, error) {
	data, err := s.kv.Get(ctx, storage.KeySyncSnapshots)
	if errors.Is(err, storage.ErrNotFound) {
		return models.LastSyncedSnapshots{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load sync snapshots: %w", err)
	}
	var snaps models.LastSyncedSnapshots
	if err := json.Unmarshal(data, &snaps); err != nil {
		return nil, fmt.Errorf("decode sync snapshots: %w", err)
	}
	return snaps, nil
}

func (s *Syncer) saveSnapshots(ctx context.Context, snaps models.LastSyncedSnapshots) error {
	data, err := json.Marshal(snaps)
	if err != nil {
		return fmt.Errorf("encode sync snapshots: %w", err)
	}
	if err := s.kv.Set(ctx, storage.KeySyncSnapshots, data); err != nil {
		return fmt.Errorf("write sync snapshots: %w", err)
	}
	return nil
}

// Pull fetches the authoritative server state and replaces the local
// aggregate wholesale. No merge, no conflict detection: a successful
// pull means the server wins.
func (s *Syncer) Pull(ctx context.Context) (*models.SyncResult, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()

	result := &models.SyncResult{BatchID: uuid.New().String()}

	remote, err := s.remote.ListPrinters(ctx)
	if err != nil {
		result.Errors = append(result.Errors, toErrorDetail("", err))
		result.FinishedAt = s.now()
		return result, nil
	}

	printers := make([]models.PrinterConfig, 0, len(remote.Printers))
	snaps := models.LastSyncedSnapshots{}
	for _, rp := range remote.Printers {
		local := rp.ToLocal()
		printers = append(printers, local)
		snaps[local.ID] = local
	}

	activeID := ""
	if remote.ActivePrinter != nil {
		activeID = remote.ActivePrinter.DeviceID
	}

	if err := s.registry.ReplaceAll(ctx, printers, activeID); err != nil {
		result.Errors = append(result.Errors, models.SyncErrorDetail{
			Code:    "STORAGE_ERROR",
			Message: err.Error(),
		})
		result.FinishedAt = s.now()
		return result, nil
	}

	if err := s.saveSnapshots(ctx, snaps); err != nil {
		log.Warn().Err(err).Msg("Failed to persist sync snapshots after pull")
	}

	for _, p := range printers {
		result.Records = append(result.Records, models.SyncRecord{
			PrinterID: p.ID,
			Local:     p,
			Status:    models.SyncSynced,
		})
	}
	result.Synced = true
	result.FinishedAt = s.now()

	log.Info().
		Str("batch_id", result.BatchID).
		Int("printers", len(printers)).
		Msg("Pull sync completed")
	return result, nil
}

// Push reconciles every local printer against the server. A failure on
// one printer never aborts the rest of the batch.
func (s *Syncer) Push(ctx context.Context) (*models.SyncResult, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()

	result := &models.SyncResult{BatchID: uuid.New().String()}
	local := s.registry.Snapshot()

	remote, err := s.remote.ListPrinters(ctx)
	if err != nil {
		result.Errors = append(result.Errors, toErrorDetail("", err))
		result.FinishedAt = s.now()
		return result, nil
	}

	remoteByDevice := make(map[string]models.PrinterAPI, len(remote.Printers))
	for _, rp := range remote.Printers {
		remoteByDevice[rp.DeviceID] = rp
	}

	snaps, err := s.loadSnapshots(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Sync snapshots unreadable, falling back to remote baselines")
		snaps = models.LastSyncedSnapshots{}
	}

	for _, p := range local.Printers {
		record := s.pushOne(ctx, p, remoteByDevice, snaps, result)
		result.Records = append(result.Records, record)
	}

	if err := s.saveSnapshots(ctx, snaps); err != nil {
		log.Warn().Err(err).Msg("Failed to persist sync snapshots after push")
	}

	result.Synced = len(result.Conflicts) == 0 && len(result.Errors) == 0
	result.FinishedAt = s.now()

	log.Info().
		Str("batch_id", result.BatchID).
		Bool("synced", result.Synced).
		Int("conflicts", len(result.Conflicts)).
		Int("errors", len(result.Errors)).
		Msg("Push sync completed")
	return result, nil
}

// pushOne reconciles a single printer. snaps is updated in place with
// the new last-synced state on success.
func (s *Syncer) pushOne(
	ctx context.Context,
	p models.PrinterConfig,
	remoteByDevice map[string]models.PrinterAPI,
	snaps models.LastSyncedSnapshots,
	result *models.SyncResult,
) models.SyncRecord {
	record := models.SyncRecord{
		PrinterID: p.ID,
		Local:     p,
		Status:    models.SyncPending,
	}

	rp, exists := remoteByDevice[p.ID]
	if !exists {
		created, err := s.remote.CreatePrinter(ctx, models.CreatePrinterRequest{
			Name:           p.Name,
			DeviceName:     p.DeviceName,
			DeviceID:       p.ID,
			DeviceType:     "thermal",
			ConnectionType: "bluetooth",
			PaperSize:      p.Settings.PaperSize,
			PrintDensity:   p.Settings.PrintDensity,
			PrintSpeed:     p.Settings.PrintSpeed,
			AutoCut:        p.Settings.AutoCut,
			IsActive:       p.IsActive,
		})
		if err != nil {
			record.Status = models.SyncError
			result.Errors = append(result.Errors, toErrorDetail(p.ID, wrapCode(err, models.ErrCodeCreateFailed)))
			return record
		}
		record.Remote = created
		record.Status = models.SyncSynced
		snaps[p.ID] = p
		return record
	}
	record.Remote = &rp

	base, hasBase := snaps[p.ID]
	if !hasBase {
		// First reconciliation of this printer on this terminal: the
		// server copy is the only known common ancestor.
		base = rp.ToLocal()
	}

	diff := Diff(base, p, rp)
	record.ChangedFields = diff.Changed

	for _, c := range diff.Conflicts {
		c.PrinterID = p.ID
		result.Conflicts = append(result.Conflicts, c)
	}
	if len(diff.Conflicts) > 0 {
		record.Status = models.SyncConflict
		return record
	}
	if len(diff.Changed) == 0 {
		record.Status = models.SyncSynced
		snaps[p.ID] = p
		return record
	}

	failed := false

	if diff.Update != nil {
		if _, err := s.remote.UpdatePrinter(ctx, rp.ID, *diff.Update); err != nil {
			failed = true
			result.Errors = append(result.Errors, toErrorDetail(p.ID, wrapCode(err, models.ErrCodeUpdateFailed)))
		}
	}

	if diff.ConnectionChanged {
		req := models.UpdateConnectionRequest{IsConnected: p.IsConnected}
		if p.IsConnected {
			req.LastConnectedAt = p.LastConnected
		}
		if err := s.remote.UpdateConnection(ctx, rp.ID, req); err != nil {
			failed = true
			result.Errors = append(result.Errors, toErrorDetail(p.ID, wrapCode(err, models.ErrCodeConnUpdate)))
		}
	}

	if failed {
		record.Status = models.SyncError
		return record
	}

	record.Status = models.SyncSynced
	snaps[p.ID] = p
	return record
}

// toErrorDetail flattens any error into the reportable shape. An empty
// printer id marks a batch-level failure.
func toErrorDetail(printerID string, err error) models.SyncErrorDetail {
	var apiErr *models.APIError
	if errors.As(err, &apiErr) {
		return models.SyncErrorDetail{PrinterID: printerID, Code: apiErr.Code, Message: apiErr.Message}
	}
	return models.SyncErrorDetail{PrinterID: printerID, Code: models.ErrCodeNetwork, Message: err.Error()}
}

// wrapCode substitutes a generic network code with the operation's own
// code while keeping backend-provided codes intact.
func wrapCode(err error, code string) error {
	var apiErr *models.APIError
	if errors.As(err, &apiErr) && apiErr.Code == models.ErrCodeNetwork {
		return &models.APIError{Code: code, Message: apiErr.Message}
	}
	return err
}
