package handlers

import "net/http"

// Health reports liveness only; dependencies are not probed.
func (a *App) Health(w http.ResponseWriter, _ *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok", "service": "processing-requests"})
}
