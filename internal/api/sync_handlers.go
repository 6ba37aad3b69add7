package api

import (
	"errors"
	"net/http"

	"github.com/laundrypos/printer-server/internal/events"
	"github.com/laundrypos/printer-server/internal/models"
	"github.com/laundrypos/printer-server/internal/syncer"
)

// HandleSyncPush pushes local changes to the merchant backend.
func (s *Server) HandleSyncPush(w http.ResponseWriter, r *http.Request) {
	result, err := s.syncer.Push(r.Context())
	if err != nil {
		if errors.Is(err, syncer.ErrSyncInFlight) {
			s.respondError(w, http.StatusConflict, models.ErrCodeSyncInFlight, "a sync is already running")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "SYNC_ERROR", err.Error())
		return
	}

	s.emit(events.SubjectSyncResult, "", result)
	s.respondJSON(w, http.StatusOK, result)
}

// HandleSyncPull replaces local state with the server's view.
func (s *Server) HandleSyncPull(w http.ResponseWriter, r *http.Request) {
	result, err := s.syncer.Pull(r.Context())
	if err != nil {
		if errors.Is(err, syncer.ErrSyncInFlight) {
			s.respondError(w, http.StatusConflict, models.ErrCodeSyncInFlight, "a sync is already running")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "SYNC_ERROR", err.Error())
		return
	}

	s.emit(events.SubjectSyncResult, "", result)
	s.respondJSON(w, http.StatusOK, result)
}

// HandleSyncStatus reports whether a sync is currently running.
func (s *Server) HandleSyncStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]bool{
		"isSyncing": s.syncer.IsSyncing(),
	})
}
