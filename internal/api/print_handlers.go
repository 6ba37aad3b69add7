package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/laundrypos/printer-server/pkg/escpos"
)

// HandlePrintTest sends the test page to the active printer.
func (s *Server) HandlePrintTest(w http.ResponseWriter, r *http.Request) {
	job, err := escpos.TestPrint(s.clock)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "BUILD_ERROR", err.Error())
		return
	}
	s.dispatch(w, r, job)
}

// HandlePrintReceipt builds and sends an order receipt.
func (s *Server) HandlePrintReceipt(w http.ResponseWriter, r *http.Request) {
	var data escpos.ReceiptData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	job, err := escpos.Receipt(data, s.clock)
	if err != nil {
		// A malformed job must fail loudly, never print corrupted.
		s.respondError(w, http.StatusBadRequest, "BUILD_ERROR", err.Error())
		return
	}
	s.dispatch(w, r, job)
}

// dispatch encodes a built job and sends it to the active printer.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, job string) {
	active, err := s.registry.GetActivePrinter()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "INCONSISTENT_STATE", err.Error())
		return
	}
	if active == nil {
		s.respondError(w, http.StatusConflict, "NO_ACTIVE_PRINTER", "no active printer set")
		return
	}

	payload, err := escpos.ToBytes(job)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "ENCODE_ERROR", err.Error())
		return
	}

	if err := s.transport.Send(r.Context(), active.ID, payload); err != nil {
		log.Warn().Err(err).Str("printer_id", active.ID).Msg("Print transmission failed")
		s.respondError(w, http.StatusBadGateway, "TRANSPORT_ERROR", err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"printerId": active.ID,
		"bytes":     len(payload),
	})
}
