package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"storybook/internal/infra"
	"storybook/internal/jobs"
	"storybook/internal/middleware"
	"storybook/internal/storage"

	"github.com/rs/zerolog"
)

// App carries the wired services every handler needs.
type App struct {
	Cfg     *infra.Config
	JobsCfg *jobs.Config
	Manager *jobs.Manager
	Worker  *jobs.Worker
	Monitor *jobs.Monitor
	Store   *storage.FileStore
	Limiter *middleware.RateLimiter
	Logger  zerolog.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, slug, message string) {
	a.json(w, code, map[string]any{
		"error":   slug,
		"message": message,
	})
}

// currentUserID extracts the caller identity set by the fronting gateway.
// An empty value is allowed for worker and health endpoints.
func (a *App) currentUserID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-ID"))
}

// workerAuthorized gates the worker control endpoints. Outside production an
// unset secret leaves the endpoints open for local development.
func (a *App) workerAuthorized(r *http.Request) bool {
	secret := a.Cfg.WorkerSecret
	if secret == "" {
		return a.Cfg.AppEnv != "production"
	}
	got := r.Header.Get("X-Worker-Secret")
	return subtle.ConstantTimeCompare([]byte(got), []byte(secret)) == 1
}
