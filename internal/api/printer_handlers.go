package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/laundrypos/printer-server/internal/events"
	"github.com/laundrypos/printer-server/internal/models"
	"github.com/laundrypos/printer-server/internal/registry"
)

// HandleHealth reports liveness.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"name":    s.config.Server.Name,
		"version": s.config.Server.Version,
	})
}

// HandleLogin exchanges the operator password for a token pair.
func (s *Server) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	if !s.auth.VerifyPassword(req.Password) {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials")
		return
	}

	accessToken, refreshToken, err := s.auth.GenerateTokenPair()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "TOKEN_ERROR", "failed to generate tokens")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"expires_in":    int(s.config.JWT.AccessTokenTTL.Seconds()),
		"token_type":    "Bearer",
	})
}

// HandleListPrinters lists the saved printer aggregate.
func (s *Server) HandleListPrinters(w http.ResponseWriter, r *http.Request) {
	snapshot := s.registry.Snapshot()
	s.respondJSON(w, http.StatusOK, snapshot)
}

// HandleAddPrinter registers a newly paired printer.
func (s *Server) HandleAddPrinter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID         string `json:"id" validate:"required"`
		Name       string `json:"name" validate:"required"`
		DeviceName string `json:"deviceName"`
		Settings   *struct {
			PaperSize    models.PaperSize `json:"paperSize" validate:"oneof=58mm 80mm"`
			PrintDensity int              `json:"printDensity" validate:"range=1:15"`
			PrintSpeed   int              `json:"printSpeed" validate:"range=1:15"`
			AutoCut      bool             `json:"autoCut"`
		} `json:"settings" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	cfg := models.PrinterConfig{
		ID:         req.ID,
		Name:       req.Name,
		DeviceName: req.DeviceName,
		Settings:   models.DefaultSettings(),
	}
	if req.Settings != nil {
		cfg.Settings = models.PrinterSettings{
			PaperSize:    req.Settings.PaperSize,
			PrintDensity: req.Settings.PrintDensity,
			PrintSpeed:   req.Settings.PrintSpeed,
			AutoCut:      req.Settings.AutoCut,
		}
	}

	if err := s.registry.AddPrinter(r.Context(), cfg); err != nil {
		switch {
		case errors.Is(err, registry.ErrDuplicateID):
			s.respondError(w, http.StatusConflict, "DUPLICATE_ID", "printer already registered")
		case errors.Is(err, registry.ErrVersionConflict):
			s.respondError(w, http.StatusConflict, "VERSION_CONFLICT", err.Error())
		default:
			s.respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", err.Error())
		}
		return
	}

	s.emit(events.SubjectPrinterAdded, cfg.ID, cfg)
	s.respondJSON(w, http.StatusCreated, cfg)
}

// HandleGetPrinter returns one printer.
func (s *Server) HandleGetPrinter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snapshot := s.registry.Snapshot()
	p := snapshot.Find(id)
	if p == nil {
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "printer not found")
		return
	}
	s.respondJSON(w, http.StatusOK, p)
}

// HandleGetActivePrinter returns the active printer, if any.
func (s *Server) HandleGetActivePrinter(w http.ResponseWriter, r *http.Request) {
	p, err := s.registry.GetActivePrinter()
	if err != nil {
		// Dangling active id: this state should be unreachable.
		log.Error().Err(err).Msg("Registry consistency error")
		s.respondError(w, http.StatusInternalServerError, "INCONSISTENT_STATE", err.Error())
		return
	}
	if p == nil {
		s.respondError(w, http.StatusNotFound, "NO_ACTIVE_PRINTER", "no active printer set")
		return
	}
	s.respondJSON(w, http.StatusOK, p)
}

// HandleUpdatePrinter merges a partial update into a printer.
func (s *Server) HandleUpdatePrinter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Name         *string           `json:"name,omitempty"`
		PaperSize    *models.PaperSize `json:"paperSize,omitempty" validate:"oneof=58mm 80mm"`
		PrintDensity *int              `json:"printDensity,omitempty" validate:"range=1:15"`
		PrintSpeed   *int              `json:"printSpeed,omitempty" validate:"range=1:15"`
		AutoCut      *bool             `json:"autoCut,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	upd := models.PrinterUpdate{
		Name:         req.Name,
		PaperSize:    req.PaperSize,
		PrintDensity: req.PrintDensity,
		PrintSpeed:   req.PrintSpeed,
		AutoCut:      req.AutoCut,
	}

	if err := s.registry.UpdatePrinter(r.Context(), id, upd); err != nil {
		switch {
		case errors.Is(err, registry.ErrPrinterNotFound):
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "printer not found")
		case errors.Is(err, registry.ErrVersionConflict):
			s.respondError(w, http.StatusConflict, "VERSION_CONFLICT", err.Error())
		default:
			s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		}
		return
	}

	p := s.registry.Snapshot().Find(id)
	s.emit(events.SubjectPrinterUpdated, id, p)
	s.respondJSON(w, http.StatusOK, p)
}

// HandleDeletePrinter removes a printer. Deleting the active printer
// clears the selection without promoting another one.
func (s *Server) HandleDeletePrinter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.registry.DeletePrinter(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, registry.ErrPrinterNotFound):
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "printer not found")
		case errors.Is(err, registry.ErrVersionConflict):
			s.respondError(w, http.StatusConflict, "VERSION_CONFLICT", err.Error())
		default:
			s.respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", err.Error())
		}
		return
	}

	if s.cloud != nil && s.cloud.MerchantID() != "" {
		if err := s.cloud.DeletePrinter(r.Context(), id); err != nil {
			log.Warn().Err(err).Str("printer_id", id).Msg("Remote delete failed, record remains on the server")
		}
	}

	s.emit(events.SubjectPrinterDeleted, id, nil)
	s.respondJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// HandleActivatePrinter makes a printer the default print target. The
// remote backend is notified best effort; local activation is the
// source of truth until the next sync.
func (s *Server) HandleActivatePrinter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.registry.SetActivePrinter(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, registry.ErrPrinterNotFound):
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "printer not found")
		case errors.Is(err, registry.ErrVersionConflict):
			s.respondError(w, http.StatusConflict, "VERSION_CONFLICT", err.Error())
		default:
			s.respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", err.Error())
		}
		return
	}

	if s.cloud != nil && s.cloud.MerchantID() != "" {
		if err := s.cloud.ActivatePrinter(r.Context(), id); err != nil {
			log.Warn().Err(err).Str("printer_id", id).Msg("Remote activation failed, will reconcile on next sync")
		}
	}

	s.emit(events.SubjectPrinterActivated, id, nil)
	s.respondJSON(w, http.StatusOK, map[string]string{"activePrinterId": id})
}

// HandleUpdateConnection records live connection state.
func (s *Server) HandleUpdateConnection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		IsConnected bool `json:"isConnected"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	if err := s.registry.UpdateConnectionStatus(r.Context(), id, req.IsConnected); err != nil {
		switch {
		case errors.Is(err, registry.ErrPrinterNotFound):
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "printer not found")
		case errors.Is(err, registry.ErrVersionConflict):
			s.respondError(w, http.StatusConflict, "VERSION_CONFLICT", err.Error())
		default:
			s.respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", err.Error())
		}
		return
	}

	p := s.registry.Snapshot().Find(id)
	s.emit(events.SubjectPrinterConnection, id, p)
	s.respondJSON(w, http.StatusOK, p)
}

// HandleClearPrinters wipes the registry. Irreversible.
func (s *Server) HandleClearPrinters(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.ClearAll(r.Context()); err != nil {
		s.respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}
