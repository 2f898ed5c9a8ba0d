package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", h.CreateJob)
		r.Get("/", h.ListJobs)
		r.Get("/{id}", h.GetJob)
		r.Delete("/{id}", h.DeleteJob)
	})

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/stage1", h.Stage1Webhook)
		r.Post("/stage2", h.Stage2Webhook)
		// webhook validators ping these before registering
		r.Get("/stage1", h.WebhookProbe)
		r.Get("/stage2", h.WebhookProbe)
		r.Head("/stage1", h.WebhookProbe)
		r.Head("/stage2", h.WebhookProbe)
		r.Options("/stage1", h.WebhookProbe)
		r.Options("/stage2", h.WebhookProbe)
	})

	r.Get("/export/{id}", h.Export)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return r
}
