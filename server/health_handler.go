package server

import (
	"context"
	"net/http"
	"time"

	"beatmarket/core/apperr"
	"beatmarket/logger"
	"beatmarket/storage"
)

const healthTimeout = 3 * time.Second

// HealthHandler reports liveness and pings the database and object store.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	checks := map[string]string{"database": "OK", "storage": "OK"}
	healthy := true
	if h.pingDB != nil {
		if err := h.pingDB(ctx); err != nil {
			logger.Error("[Health] database ping failed", logger.ErrorField(err))
			checks["database"] = "UNAVAILABLE"
			healthy = false
		}
	}
	if err := h.store.Ping(ctx); err != nil {
		logger.Error("[Health] storage ping failed", logger.ErrorField(err))
		checks["storage"] = "UNAVAILABLE"
		healthy = false
	}

	body := map[string]interface{}{
		"status":  "OK",
		"message": "Server is running",
		"backend": h.cfg.DBBackend,
		"storage": h.store.Location(),
		"checks":  checks,
	}
	status := http.StatusOK
	if !healthy {
		body["status"] = "DEGRADED"
		body["message"] = "One or more dependencies are unavailable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, body)
}

// StorageConfigHandler tells clients where files go and what is accepted.
func (h *APIHandler) StorageConfigHandler(w http.ResponseWriter, r *http.Request) {
	loc := h.store.Location()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"config": map[string]interface{}{
			"backend":      loc.Backend,
			"bucket":       loc.Bucket,
			"endpoint":     loc.Endpoint,
			"region":       loc.Region,
			"maxFileSize":  storage.FormatSize(h.cfg.AudioMaxBytes),
			"maxImageSize": storage.FormatSize(h.cfg.ImageMaxBytes),
			"allowedTypes": []string{"image/*", "audio/*"},
		},
	})
}

func (h *APIHandler) StorageTestHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		writeError(w, "[StorageTest]", apperr.Storage("Storage connection failed", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Storage connection successful",
		"bucket":  h.store.Location().Bucket,
	})
}
