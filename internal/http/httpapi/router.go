package httpapi

import (
	"net/http"

	"storybook/internal/http/handlers"
	mw "storybook/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *handlers.App, lookup mw.CountryLookup) http.Handler {
	r := chi.NewRouter()

	r.Use(
		mw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		mw.Geo(lookup),
		mw.Logger(app.Logger),
		mw.CORS(app.Cfg.AllowedOrigins),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/health", app.HealthSystem)
	r.Get("/v1/health/report", app.HealthReport)

	r.Route("/v1/jobs", func(r chi.Router) {
		r.Get("/", app.JobsList)
		r.With(app.Limiter.Middleware).Post("/{type}", app.JobCreate)
		r.Get("/{id}", app.JobStatus)
		r.Delete("/{id}", app.JobCancel)
		r.Get("/{id}/export", app.JobExport)
	})

	r.Route("/v1/worker", func(r chi.Router) {
		r.Post("/process", app.WorkerProcess)
		r.Post("/process/{id}", app.WorkerProcessByID)
		r.Get("/status", app.WorkerStatus)
		r.Post("/cleanup", app.WorkerCleanup)
	})

	// Generated assets are served straight from the file store.
	if base := app.Store.BasePath(); base != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(base)))
		r.Get("/static/*", fs.ServeHTTP)
	}

	return r
}
