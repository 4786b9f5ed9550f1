package server

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/foliolabs/folio/internal/database"
	"github.com/foliolabs/folio/internal/reliability"
)

// SystemHandlers serves health and operational status endpoints
type SystemHandlers struct {
	databases map[string]*database.DB
	backups   *reliability.BackupService // nil when backups are not configured
	dataDir   string
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandlers creates a new system handler set
func NewSystemHandlers(
	databases map[string]*database.DB,
	backups *reliability.BackupService,
	dataDir string,
	log zerolog.Logger,
) *SystemHandlers {
	return &SystemHandlers{
		databases: databases,
		backups:   backups,
		dataDir:   dataDir,
		startTime: time.Now(),
		log:       log.With().Str("handler", "system").Logger(),
	}
}

// RegisterRoutes registers system routes on the router
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HandleHealth)
	r.Route("/system", func(r chi.Router) {
		r.Get("/status", h.HandleSystemStatus)
		r.Get("/backups", h.HandleListBackups)
		r.Post("/backup", h.HandleTriggerBackup)
	})
}

// HandleHealth reports database health
// GET /api/health
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	overall := "ok"
	databases := make(map[string]string, len(h.databases))

	for name, db := range h.databases {
		if err := db.HealthCheck(ctx); err != nil {
			h.log.Error().Err(err).Str("database", name).Msg("Health check failed")
			databases[name] = err.Error()
			overall = "degraded"
			status = http.StatusServiceUnavailable
		} else {
			databases[name] = "ok"
		}
	}

	writeJSON(w, status, map[string]interface{}{
		"status":    overall,
		"databases": databases,
	})
}

// HandleSystemStatus reports process and host statistics
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPct, memPct := h.systemStats()

	dbSizes := make(map[string]float64, len(h.databases))
	for name, db := range h.databases {
		dbSizes[name] = fileSizeMB(db.Path())
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"cpu_percent":    cpuPct,
		"memory_percent": memPct,
		"goroutines":     runtime.NumGoroutine(),
		"data_dir":       h.dataDir,
		"database_mb":    dbSizes,
	})
}

// HandleListBackups lists stored backups
// GET /api/system/backups
func (h *SystemHandlers) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		writeError(w, http.StatusServiceUnavailable, "backups not configured")
		return
	}

	backups, err := h.backups.ListBackups(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"backups": backups})
}

// HandleTriggerBackup runs a backup immediately
// POST /api/system/backup
func (h *SystemHandlers) HandleTriggerBackup(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		writeError(w, http.StatusServiceUnavailable, "backups not configured")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	if err := h.backups.CreateAndUploadBackup(ctx); err != nil {
		h.log.Error().Err(err).Msg("Manual backup failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

// systemStats returns CPU and RAM usage percentages.
// The 100ms CPU sample keeps the endpoint responsive for status pollers.
func (h *SystemHandlers) systemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// fileSizeMB returns a file's size in MB, including its WAL sidecar
func fileSizeMB(path string) float64 {
	var total int64
	for _, p := range []string{path, path + "-wal"} {
		if info, err := os.Stat(filepath.Clean(p)); err == nil {
			total += info.Size()
		}
	}
	return float64(total) / 1024 / 1024
}
