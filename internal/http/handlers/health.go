package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	if !a.Manager.Healthy(r.Context()) {
		a.json(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthSystem reports the queue verdict with alerts and recommendations.
func (a *App) HealthSystem(w http.ResponseWriter, r *http.Request) {
	health, err := a.Monitor.GetSystemHealth(r.Context())
	if err != nil {
		a.error(w, http.StatusServiceUnavailable, "store_unavailable", "job store unavailable")
		return
	}
	a.json(w, http.StatusOK, health)
}

// HealthReport returns the full dashboard payload: health, statistics,
// per-type breakdown, performance and stuck jobs.
func (a *App) HealthReport(w http.ResponseWriter, r *http.Request) {
	if !a.workerAuthorized(r) {
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid worker secret")
		return
	}
	report, err := a.Monitor.GenerateHealthReport(r.Context())
	if err != nil {
		a.error(w, http.StatusServiceUnavailable, "store_unavailable", "job store unavailable")
		return
	}
	a.json(w, http.StatusOK, report)
}
