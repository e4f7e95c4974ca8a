package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/engine"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/wire"
)

// NewRouter registers every route of the service and wraps them with the
// logging and recovery middleware.
func NewRouter(svc *engine.Service, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(Recovery(log), Logging(log))

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	th := NewTreeHandler(svc, log)
	r.Get("/v1/trees", th.ListTrees)
	r.Put("/v1/trees/{treeID}", th.PutTree)
	r.Get("/v1/trees/{treeID}/nodes/{nodeID}/shared-references", th.SharedReferences)

	sh := NewSessionHandler(svc, log)
	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", sh.CreateSession)
		r.Get("/ws", wire.NewHandler(svc, log.Named("wire")).ServeHTTP)
		r.Delete("/{id}", sh.CloseSession)
		r.Get("/{id}/render", sh.Render)
		r.Get("/{id}/values", sh.GetValues)
		r.Get("/{id}/activity", sh.Activity)
		r.Post("/{id}/values", sh.SetValues)
		r.Post("/{id}/repeaters/{repeaterID}/instances", sh.AddInstance)
		r.Delete("/{id}/repeaters/{repeaterID}/instances/{index}", sh.RemoveInstance)
	})
	return r
}
