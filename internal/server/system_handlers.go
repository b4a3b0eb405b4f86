package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/reachplan/optimizer/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHandlers serves system monitoring endpoints.
type SystemHandlers struct {
	log       zerolog.Logger
	dataDir   string
	inputsDB  *database.DB
	resultsDB *database.DB
	startedAt time.Time
}

// NewSystemHandlers creates system monitoring handlers.
func NewSystemHandlers(log zerolog.Logger, dataDir string, inputsDB, resultsDB *database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("component", "system_handlers").Logger(),
		dataDir:   dataDir,
		inputsDB:  inputsDB,
		resultsDB: resultsDB,
		startedAt: time.Now(),
	}
}

// SystemStatusResponse is the system status payload.
type SystemStatusResponse struct {
	CPUPercent    float64 `json:"cpu_percent"`
	RAMPercent    float64 `json:"ram_percent"`
	Goroutines    int     `json:"goroutines"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	GoVersion     string  `json:"go_version"`
}

// DatabaseStatsResponse reports per-database statistics.
type DatabaseStatsResponse struct {
	Databases []DatabaseStat `json:"databases"`
}

// DatabaseStat is one database's statistics.
type DatabaseStat struct {
	Name    string  `json:"name"`
	SizeMB  float64 `json:"size_mb"`
	Healthy bool    `json:"healthy"`
}

// DiskUsageResponse reports data directory disk usage.
type DiskUsageResponse struct {
	DataDirMB float64 `json:"data_dir_mb"`
	LogsDirMB float64 `json:"logs_dir_mb"`
	TotalMB   float64 `json:"total_mb"`
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPct, ramPct := h.getSystemStats()

	response := SystemStatusResponse{
		CPUPercent:    cpuPct,
		RAMPercent:    ramPct,
		Goroutines:    runtime.NumGoroutine(),
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
		GoVersion:     runtime.Version(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode system status")
	}
}

// HandleDatabaseStats handles GET /api/system/databases
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	response := DatabaseStatsResponse{}
	for _, db := range []*database.DB{h.inputsDB, h.resultsDB} {
		stat := DatabaseStat{Name: db.Name()}
		if info, err := os.Stat(db.Path()); err == nil {
			stat.SizeMB = float64(info.Size()) / 1024 / 1024
		}
		stat.Healthy = db.HealthCheck(r.Context()) == nil
		response.Databases = append(response.Databases, stat)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode database stats")
	}
}

// HandleDiskUsage handles GET /api/system/disk
func (h *SystemHandlers) HandleDiskUsage(w http.ResponseWriter, r *http.Request) {
	dataSize := h.getDirSize(h.dataDir)
	logsSize := h.getDirSize(filepath.Join(h.dataDir, "logs"))

	response := DiskUsageResponse{
		DataDirMB: dataSize,
		LogsDirMB: logsSize,
		TotalMB:   dataSize + logsSize,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode disk usage")
	}
}

// getDirSize calculates total size of a directory in MB
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})
	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}

// getSystemStats calculates CPU and RAM usage percentages. A short sampling
// interval keeps the endpoint responsive for status pollers.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
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
