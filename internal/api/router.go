package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/events", s.handleWebSocket)

		r.Route("/submodels", func(r chi.Router) {
			r.Get("/", s.handleListSubmodels)
			r.Post("/", s.handleCreateSubmodel)

			r.Route("/{submodelID}", func(r chi.Router) {
				r.Get("/", s.handleGetSubmodel)
				r.Put("/", s.handleUpdateSubmodel)
				r.Delete("/", s.handleDeleteSubmodel)
				r.Get("/$metadata", s.handleGetSubmodelMetadata)
				r.Get("/$value", s.handleGetSubmodelValue)

				r.Route("/submodel-elements", func(r chi.Router) {
					r.Get("/", s.handleListElements)
					r.Post("/", s.handleCreateElement)
					r.Patch("/", s.handlePatchElements)

					r.Route("/{idShortPath}", func(r chi.Router) {
						r.Get("/", s.handleGetElement)
						r.Post("/", s.handleCreateNestedElement)
						r.Put("/", s.handleUpdateElement)
						r.Delete("/", s.handleDeleteElement)
						r.Get("/$value", s.handleGetElementValue)
						r.Patch("/$value", s.handleSetElementValue)
						r.Get("/attachment", s.handleGetAttachment)
						r.Put("/attachment", s.handlePutAttachment)
						r.Delete("/attachment", s.handleDeleteAttachment)
						r.Get("/history", s.requireHistory(s.handleElementHistory))
					})
				})
			})
		})

		r.Route("/shells", func(r chi.Router) {
			r.Use(s.requireShells)
			r.Get("/", s.handleListShells)
			r.Post("/", s.handleCreateShell)

			r.Route("/{shellID}", func(r chi.Router) {
				r.Get("/", s.handleGetShell)
				r.Delete("/", s.handleDeleteShell)
				r.Get("/submodel-refs", s.handleListSubmodelRefs)
				r.Post("/submodel-refs", s.handleAddSubmodelRef)
				r.Delete("/submodel-refs/{submodelID}", s.handleRemoveSubmodelRef)
			})
		})
	})

	return r
}
