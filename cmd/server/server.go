package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"liquidity-watch/internal/config"
	"liquidity-watch/internal/domain"
	"liquidity-watch/internal/feed"
	"liquidity-watch/internal/observability"
	"liquidity-watch/internal/webhook"
)

// Limits for GET /reports.
const (
	defaultReportsLimit = 20
	maxReportsLimit     = 500
)

// statsSource is the part of the processor the status endpoint reads.
type statsSource interface {
	webhook.BatchProcessor
	Stats() webhook.Stats
}

// Server wires the HTTP surface of the service.
type Server struct {
	settings *config.Settings
	proc     statsSource
	consumer *feed.Consumer
	stores   stores
	logger   *zap.Logger
	started  time.Time
}

func newServer(settings *config.Settings, proc statsSource, logger *zap.Logger) *Server {
	return &Server{
		settings: settings,
		proc:     proc,
		logger:   logger,
		started:  time.Now(),
	}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	hook := webhook.NewHandler(s.proc, s.settings.HandlerConfig(), s.logger.Named("webhook"))
	for _, path := range s.settings.WebhookPaths() {
		mux.Handle(path, hook)
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/status", s.handleStatus)
	if s.stores.reports != nil {
		mux.HandleFunc("/reports", s.handleReports)
	}
	if s.stores.assessments != nil {
		mux.HandleFunc("/assessments", s.handleAssessments)
	}
	mux.Handle("/metrics", observability.Handler())

	return mux
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status          string        `json:"status"`
	Uptime          string        `json:"uptime"`
	Started         time.Time     `json:"started"`
	MinLiquidityUSD float64       `json:"min_liquidity_usd"`
	LockRatio       float64       `json:"lock_ratio"`
	SupplyBasis     string        `json:"supply_basis"`
	FeedEnabled     bool          `json:"feed_enabled"`
	FeedConnected   bool          `json:"feed_connected"`
	Processing      webhook.Stats `json:"processing"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status:          "running",
		Uptime:          time.Since(s.started).Round(time.Second).String(),
		Started:         s.started,
		MinLiquidityUSD: s.settings.Pool.MinLiquidityUSD,
		LockRatio:       s.settings.Lock.Ratio,
		SupplyBasis:     s.settings.Lock.Basis,
		FeedEnabled:     s.consumer != nil,
		Processing:      s.proc.Stats(),
	}
	if s.consumer != nil {
		resp.FeedConnected = s.consumer.Connected()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ReportsResponse is the JSON response for the /reports endpoint.
type ReportsResponse struct {
	Count   int                  `json:"count"`
	Reports []*domain.PoolReport `json:"reports"`
}

// handleReports lists the newest reports, or those of one transaction when
// ?signature= is given.
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", webhook.KindMethodNotAllowed)
		return
	}

	var (
		reports []*domain.PoolReport
		err     error
	)
	if sig := r.URL.Query().Get("signature"); sig != "" {
		reports, err = s.stores.reports.GetBySignature(r.Context(), sig)
	} else {
		limit := defaultReportsLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit <= 0 || limit > maxReportsLimit {
				writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxReportsLimit), webhook.KindMalformedRequest)
				return
			}
		}
		reports, err = s.stores.reports.GetRecent(r.Context(), limit)
	}
	if err != nil {
		s.logger.Error("reading reports", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "reading reports failed", webhook.KindFault)
		return
	}
	if reports == nil {
		reports = []*domain.PoolReport{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ReportsResponse{Count: len(reports), Reports: reports})
}

// AssessmentsResponse is the JSON response for the /assessments endpoint.
type AssessmentsResponse struct {
	Mint        string                     `json:"mint"`
	Count       int                        `json:"count"`
	Assessments []*domain.AssessmentRecord `json:"assessments"`
}

// handleAssessments returns the lock history of ?mint=, oldest first.
func (s *Server) handleAssessments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", webhook.KindMethodNotAllowed)
		return
	}

	mint := r.URL.Query().Get("mint")
	if err := config.ValidateAddress(mint); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), webhook.KindMalformedRequest)
		return
	}

	records, err := s.stores.assessments.GetByMint(r.Context(), mint)
	if err != nil {
		s.logger.Error("reading assessments", zap.Error(err), zap.String("mint", mint))
		writeError(w, http.StatusInternalServerError, "reading assessments failed", webhook.KindFault)
		return
	}
	if records == nil {
		records = []*domain.AssessmentRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AssessmentsResponse{Mint: mint, Count: len(records), Assessments: records})
}

func writeError(w http.ResponseWriter, status int, msg, kind string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(webhook.ErrorResponse{Error: msg, Kind: kind})
}
