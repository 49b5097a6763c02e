// Package handlers provides the HTTP handlers of the status API: dataset
// access, per-substance lookup and health checks.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tripsit/erowid-doses/data"
	"github.com/tripsit/erowid-doses/logging"
)

// RespondWithJSON writes a JSON response.
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	w.Write(data)
}

// formatUptimeHuman formats duration into a human-readable string.
func formatUptimeHuman(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string

	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))

	return strings.Join(parts, " ")
}

// ServeDoses returns the complete extraction document.
func ServeDoses(dataContainer *data.DataContainer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := dataContainer.GetResult()
		if len(result.Substances) == 0 {
			http.Error(w, "No dose data available yet", http.StatusServiceUnavailable)
			return
		}
		RespondWithJSON(w, http.StatusOK, result)
	}
}

// FindSubstanceDoses returns the dose data of one substance, looked up by id
// or display name.
func FindSubstanceDoses(dataContainer *data.DataContainer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "substance")
		if key == "" || len(key) > 100 {
			logging.Warn("Unusual user input", "substance", key)
			http.Error(w, "Invalid substance name", http.StatusBadRequest)
			return
		}

		result := dataContainer.GetResult()
		substance := result.FindSubstance(key)
		if substance == nil {
			http.Error(w, "Substance not found", http.StatusNotFound)
			return
		}
		RespondWithJSON(w, http.StatusOK, substance)
	}
}

// HealthData represents the health check response.
type HealthData struct {
	Status         string `json:"status"`
	Uptime         string `json:"uptime"`
	MemoryUsage    int    `json:"memory_usage_mb"`
	LastUpdate     string `json:"last_update"`
	IsUpdating     bool   `json:"is_updating"`
	SubstanceCount int    `json:"substance_count"`
	LastRunPartial bool   `json:"last_run_partial"`
}

// HealthCheck reports service health. Status degrades when no crawl has
// published data yet, or when the published data has gone stale.
func HealthCheck(dataContainer *data.DataContainer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		result := dataContainer.GetResult()
		lastUpdate := dataContainer.GetLastUpdated()

		status := "healthy"
		code := http.StatusOK
		switch {
		case len(result.Substances) == 0:
			status = "starting"
			code = http.StatusServiceUnavailable
		case time.Since(lastUpdate) > 49*time.Hour:
			status = "stale"
		}

		health := HealthData{
			Status:         status,
			Uptime:         formatUptimeHuman(time.Since(dataContainer.GetServerStartTime())),
			MemoryUsage:    int(m.Alloc / 1024 / 1024),
			LastUpdate:     lastUpdate.Format(time.RFC3339),
			IsUpdating:     dataContainer.IsUpdating(),
			SubstanceCount: len(result.Substances),
			LastRunPartial: result.Run.Partial,
		}

		RespondWithJSON(w, code, health)
	}
}
