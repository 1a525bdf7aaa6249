package http

import (
	"net/http"
	"time"

	"github.com/Tanner-Eischen/Socrates-sub000/internal/security"
	httpmw "github.com/Tanner-Eischen/Socrates-sub000/internal/transport/http/middleware"
	"github.com/Tanner-Eischen/Socrates-sub000/internal/transport/ws"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler, verifier security.Verifier, wsServer *ws.Server, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)

	// WS endpoint authenticates inside the handshake
	r.Get("/ws", wsServer.HandleWS)

	r.Group(func(pr chi.Router) {
		pr.Use(httpmw.AuthMiddleware(verifier))
		pr.Use(middlewareChi.Timeout(30 * time.Second))

		pr.Route("/sessions", func(sr chi.Router) {
			sr.Post("/", h.CreateSession)
			sr.Get("/", h.ListSessions)

			sr.Route("/{id}", func(rr chi.Router) {
				rr.Get("/", h.GetSession)
				rr.Post("/status", h.UpdateStatus)
				rr.Post("/cancel", h.CancelSession)
				rr.Get("/participants", h.GetParticipants)
				rr.Get("/messages", h.GetMessages)
			})
		})

		pr.Get("/stats", h.GetStats)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	return r
}
