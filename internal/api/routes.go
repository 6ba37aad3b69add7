package api

import (
	"github.com/go-chi/chi/v5"
)

// setupAPIRoutes sets up API v1 routes
func (s *Server) setupAPIRoutes(r chi.Router) {
	// Health check
	r.Get("/health", s.HandleHealth)

	// Auth routes (public)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.HandleLogin)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		// Printers
		r.Route("/printers", func(r chi.Router) {
			r.Get("/", s.HandleListPrinters)
			r.Post("/", s.HandleAddPrinter)
			r.Delete("/", s.HandleClearPrinters)
			r.Get("/active", s.HandleGetActivePrinter)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetPrinter)
				r.Put("/", s.HandleUpdatePrinter)
				r.Delete("/", s.HandleDeletePrinter)
				r.Put("/activate", s.HandleActivatePrinter)
				r.Put("/connection", s.HandleUpdateConnection)
			})
		})

		// Sync
		r.Route("/sync", func(r chi.Router) {
			r.Post("/push", s.HandleSyncPush)
			r.Post("/pull", s.HandleSyncPull)
			r.Get("/status", s.HandleSyncStatus)
		})

		// Printing
		r.Route("/print", func(r chi.Router) {
			r.Post("/test", s.HandlePrintTest)
			r.Post("/receipt", s.HandlePrintReceipt)
		})
	})
}
