package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fleetwatch/internal/config"
	"fleetwatch/internal/model"
	"fleetwatch/internal/service"
	"fleetwatch/internal/stats"
	"fleetwatch/internal/storage"
)

type Server struct {
	cfg     *config.Manager
	svc     *service.Service
	stats   *stats.Store
	recent  *stats.Recent
	logger  *slog.Logger
	version string
}

type statusResponse struct {
	Status     string       `json:"status"`
	Time       string       `json:"time"`
	Version    string       `json:"version"`
	ConfigPath string       `json:"config_path"`
	Storage    string       `json:"storage"`
	Ingest     ingestStatus `json:"ingest"`
	Risk       riskStatus   `json:"risk"`
}

type ingestStatus struct {
	Kafka     bool `json:"kafka"`
	TCPStream bool `json:"tcp_stream"`
	FileTail  bool `json:"file_tail"`
}

type riskStatus struct {
	DefaultWindow int     `json:"default_window"`
	MaxWindow     int     `json:"max_window"`
	Decay         float64 `json:"decay"`
	LowMax        float64 `json:"low_max"`
	MediumMax     float64 `json:"medium_max"`
	HighMax       float64 `json:"high_max"`
}

type latestResponse struct {
	AssetID         string                `json:"asset_id"`
	WindowRequested int                   `json:"window_requested"`
	WindowUsed      int                   `json:"window_used"`
	Count           int                   `json:"count"`
	Readings        []model.Reading       `json:"readings"`
	Risk            *model.RiskAssessment `json:"risk"`
}

func Start(ctx context.Context, cfg *config.Manager, svc *service.Service, statsStore *stats.Store, recent *stats.Recent, logger *slog.Logger, version string) *http.Server {
	if cfg == nil {
		return nil
	}
	current := cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	server := &Server{
		cfg:     cfg,
		svc:     svc,
		stats:   statsStore,
		recent:  recent,
		logger:  logger,
		version: version,
	}
	httpServer := &http.Server{Addr: current.Addr, Handler: server.Handler()}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

// Handler exposes the mux without binding a listener, for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/telemetry", s.handleTelemetry)
	mux.HandleFunc("/telemetry/latest", s.handleLatest)
	mux.HandleFunc("/telemetry/recent", s.handleRecent)
	mux.HandleFunc("/assets", s.handleAssets)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/config/risk", s.handleRiskConfig)
	mux.HandleFunc("/admin/reset", s.handleReset)
	return mux
}

func NewServer(cfg *config.Manager, svc *service.Service, statsStore *stats.Store, recent *stats.Recent, logger *slog.Logger, version string) *Server {
	return &Server{cfg: cfg, svc: svc, stats: statsStore, recent: recent, logger: logger, version: version}
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	var sample model.ReadingSample
	if err := json.Unmarshal(body, &sample); err != nil {
		writeError(w, http.StatusBadRequest, "decode sample: "+err.Error())
		return
	}
	reading, err := s.svc.Ingest(r.Context(), sample)
	if err != nil {
		if errors.Is(err, model.ErrInvalidArgument) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if s.logger != nil {
			s.logger.Error("telemetry insert failed", "asset_id", sample.AssetID, "err", err)
		}
		writeError(w, http.StatusInternalServerError, "db_insert_failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":          reading.ID,
		"recorded_at": reading.RecordedAt.Format(time.RFC3339Nano),
	})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	assetID := strings.TrimSpace(r.URL.Query().Get("asset_id"))
	if assetID == "" {
		writeError(w, http.StatusBadRequest, "asset_id is required")
		return
	}
	limit := s.svc.Engine().Config().DefaultWindow
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	result, err := s.svc.Latest(r.Context(), assetID, limit)
	if err != nil && !errors.Is(err, model.ErrInsufficientData) {
		if errors.Is(err, model.ErrInvalidArgument) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if s.logger != nil {
			s.logger.Error("latest readings failed", "asset_id", assetID, "err", err)
		}
		writeError(w, http.StatusInternalServerError, "db_read_failed")
		return
	}
	// Empty window is "no data yet", not a fault: risk stays null.
	writeJSON(w, http.StatusOK, latestResponse{
		AssetID:         result.AssetID,
		WindowRequested: result.WindowRequested,
		WindowUsed:      len(result.Readings),
		Count:           len(result.Readings),
		Readings:        result.Readings,
		Risk:            result.Assessment,
	})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	var list []model.Reading
	if s.recent != nil {
		list = s.recent.List(limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"readings": list,
		"count":    len(list),
	})
}

func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	counts, err := s.svc.ListAssets(r.Context())
	if err != nil {
		if s.logger != nil {
			s.logger.Error("list assets failed", "err", err)
		}
		writeError(w, http.StatusInternalServerError, "db_read_failed")
		return
	}
	type assetEntry struct {
		storage.AssetCount
		Stats *model.AssetStats `json:"stats,omitempty"`
	}
	out := make([]assetEntry, 0, len(counts))
	for _, ac := range counts {
		entry := assetEntry{AssetCount: ac}
		if s.stats != nil {
			if st, ok := s.stats.Get(ac.AssetID); ok {
				entry.Stats = &st
			}
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"assets": out,
		"count":  len(out),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := s.svc.Ping(ctx); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "degraded",
			"db":     "unreachable",
			"ts":     ts,
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"db":     "ok",
		"ts":     ts,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.cfg.Get()
	rc := s.svc.Engine().Config()
	resp := statusResponse{
		Status:     "ok",
		Time:       time.Now().UTC().Format(time.RFC3339Nano),
		Version:    s.version,
		ConfigPath: s.cfg.Path(),
		Storage:    cfg.Storage.Driver,
		Ingest: ingestStatus{
			Kafka:     cfg.Ingest.Kafka.Enabled,
			TCPStream: cfg.Ingest.TCPStream.Enabled,
			FileTail:  cfg.Ingest.FileTail.Enabled,
		},
		Risk: riskStatus{
			DefaultWindow: rc.DefaultWindow,
			MaxWindow:     rc.MaxWindow,
			Decay:         rc.Decay,
			LowMax:        rc.Thresholds.LowMax,
			MediumMax:     rc.Thresholds.MediumMax,
			HighMax:       rc.Thresholds.HighMax,
		},
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRiskConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"risk": s.svc.Engine().Config(),
		})
	case http.MethodPost:
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, "read body: "+err.Error())
			return
		}
		var rc config.RiskConfig
		if err := json.Unmarshal(body, &rc); err != nil {
			writeError(w, http.StatusBadRequest, "decode risk config: "+err.Error())
			return
		}
		if err := config.ValidateRisk(rc); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		current := s.cfg.Get()
		next := *current
		next.Risk = rc
		if err := s.cfg.Update(&next); err != nil {
			writeError(w, http.StatusInternalServerError, "persist config: "+err.Error())
			return
		}
		if err := s.svc.UpdatePolicy(rc); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, _ := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	var req struct {
		AssetID string `json:"asset_id"`
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "decode request: "+err.Error())
			return
		}
	}
	removed, err := s.svc.Reset(r.Context(), req.AssetID)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("reset failed", "asset_id", req.AssetID, "err", err)
		}
		writeError(w, http.StatusInternalServerError, "db_delete_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"removed": removed,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
