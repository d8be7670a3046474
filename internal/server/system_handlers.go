package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/meridian/internal/database"
)

// jobRunner is the slice of the scheduler the system endpoints need.
type jobRunner interface {
	JobNames() []string
	LastRun(name string) time.Time
	RunNow(name string) error
}

// budgetSource reports the market data provider's remaining request budget.
type budgetSource interface {
	GetRemainingRequests() int
}

// SystemHandlers serves monitoring and operations endpoints: process and
// host stats, database health, scheduled job status and manual triggers.
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	startupTime time.Time
	databases   []*database.DB
	jobs        jobRunner
	budget      budgetSource
}

// NewSystemHandlers creates the system handlers. budget may be nil when no
// market data provider is configured.
func NewSystemHandlers(log zerolog.Logger, dataDir string, databases []*database.DB, jobs jobRunner, budget budgetSource) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		dataDir:     dataDir,
		startupTime: time.Now(),
		databases:   databases,
		jobs:        jobs,
		budget:      budget,
	}
}

// RegisterRoutes mounts the system routes.
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/system", func(r chi.Router) {
		r.Get("/status", h.HandleSystemStatus)
		r.Get("/database/stats", h.HandleDatabaseStats)
		r.Get("/disk", h.HandleDiskUsage)
		r.Get("/jobs", h.HandleJobsStatus)
		r.Post("/jobs/{name}", h.HandleTriggerJob)
		r.Get("/api-budget", h.HandleAPIBudget)
	})
}

// HandleSystemStatus reports process uptime, host CPU and memory, and a
// quick health check of every database.
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	dbChecks := make(map[string]string, len(h.databases))
	for _, db := range h.databases {
		if err := db.QuickCheck(r.Context()); err != nil {
			dbChecks[db.Name()] = err.Error()
			status = "degraded"
			continue
		}
		dbChecks[db.Name()] = "ok"
	}

	data := map[string]interface{}{
		"status":         status,
		"uptime_seconds": int64(time.Since(h.startupTime).Seconds()),
		"databases":      dbChecks,
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		data["cpu_percent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		data["memory"] = map[string]interface{}{
			"total_bytes": vm.Total,
			"used_bytes":  vm.Used,
			"percent":     vm.UsedPercent,
		}
	}

	writeJSON(w, http.StatusOK, envelope(data))
}

// HandleDatabaseStats reports file size, WAL size and page statistics for
// every database.
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	stats := make([]map[string]interface{}, 0, len(h.databases))
	for _, db := range h.databases {
		dbStats, err := db.GetStats()
		if err != nil {
			h.log.Error().Err(err).Str("database", db.Name()).Msg("Failed to collect database stats")
			http.Error(w, "Failed to collect database stats", http.StatusInternalServerError)
			return
		}
		stats = append(stats, map[string]interface{}{
			"name":           db.Name(),
			"path":           db.Path(),
			"size_bytes":     dbStats.SizeBytes,
			"wal_size_bytes": dbStats.WALSizeBytes,
			"page_count":     dbStats.PageCount,
			"page_size":      dbStats.PageSize,
			"freelist_count": dbStats.FreelistCount,
		})
	}

	writeJSON(w, http.StatusOK, envelope(map[string]interface{}{"databases": stats}))
}

// HandleDiskUsage reports disk usage for the data directory's filesystem.
func (h *SystemHandlers) HandleDiskUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := disk.Usage(h.dataDir)
	if err != nil {
		h.log.Error().Err(err).Str("path", h.dataDir).Msg("Failed to read disk usage")
		http.Error(w, "Failed to read disk usage", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"path":        h.dataDir,
		"total_bytes": usage.Total,
		"used_bytes":  usage.Used,
		"free_bytes":  usage.Free,
		"percent":     usage.UsedPercent,
	}))
}

// HandleJobsStatus lists scheduled jobs with their last run times.
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	jobs := make([]map[string]interface{}, 0)
	for _, name := range h.jobs.JobNames() {
		entry := map[string]interface{}{"name": name}
		if last := h.jobs.LastRun(name); !last.IsZero() {
			entry["last_run"] = last.UTC().Format(time.RFC3339)
		}
		jobs = append(jobs, entry)
	}

	writeJSON(w, http.StatusOK, envelope(map[string]interface{}{"jobs": jobs}))
}

// HandleTriggerJob runs a scheduled job immediately.
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := h.jobs.RunNow(name); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	h.log.Info().Str("job", name).Msg("Job triggered manually")
	writeJSON(w, http.StatusOK, envelope(map[string]interface{}{"triggered": name}))
}

// HandleAPIBudget reports the market data provider's remaining daily
// request budget.
func (h *SystemHandlers) HandleAPIBudget(w http.ResponseWriter, r *http.Request) {
	if h.budget == nil {
		http.Error(w, "No market data provider configured", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"remaining_requests": h.budget.GetRemainingRequests(),
	}))
}

// envelope wraps response data with metadata.
func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
