package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"liquidity-watch/internal/domain"
	"liquidity-watch/internal/observability"
)

// DefaultMaxBodyBytes bounds the request body.
const DefaultMaxBodyBytes = 10 << 20

// Error kinds reported in JSON error bodies.
const (
	KindMalformedRequest = "malformed_request"
	KindFault            = "fault"
	KindMethodNotAllowed = "method_not_allowed"
	KindUnauthorized     = "unauthorized"
)

// BatchProcessor processes a decoded batch.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, batch []domain.Notification) (BatchResult, error)
}

// HandlerConfig configures Handler.
type HandlerConfig struct {
	// AuthToken, when set, must equal the Authorization header.
	AuthToken    string
	MaxBodyBytes int64
}

// Handler serves the webhook endpoint.
type Handler struct {
	processor BatchProcessor
	config    HandlerConfig
	logger    *zap.Logger
}

// NewHandler creates a webhook handler.
func NewHandler(p BatchProcessor, config HandlerConfig, logger *zap.Logger) *Handler {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{processor: p, config: config, logger: logger}
}

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// OKResponse is the JSON body of a processed batch.
type OKResponse struct {
	Status    string `json:"status"`
	Received  int    `json:"received"`
	Pools     int    `json:"pools"`
	Evaluated int    `json:"evaluated"`
	Locked    int    `json:"locked"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	code := h.serve(w, r)
	observability.RecordWebhookRequest(strconv.Itoa(code))
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request) int {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		return writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed", Kind: KindMethodNotAllowed})
	}

	if h.config.AuthToken != "" {
		got := r.Header.Get("Authorization")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.config.AuthToken)) != 1 {
			h.logger.Warn("rejected webhook with bad authorization", zap.String("remote", r.RemoteAddr))
			return writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Kind: KindUnauthorized})
		}
	}

	batch, err := h.decode(w, r)
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		h.logger.Warn("malformed webhook payload", zap.Error(err))
		return writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: KindMalformedRequest})
	}

	h.logger.Info("received notifications", zap.Int("count", len(batch)))

	res, err := h.process(r.Context(), batch)
	if err != nil {
		return writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Kind: KindFault})
	}

	return writeJSON(w, http.StatusOK, OKResponse{
		Status:    "ok",
		Received:  res.Received,
		Pools:     res.Pools,
		Evaluated: res.Evaluated,
		Locked:    res.Locked,
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) ([]domain.Notification, error) {
	body := http.MaxBytesReader(w, r.Body, h.config.MaxBodyBytes)
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, malformed(err)
	}

	batch, err := domain.DecodeNotifications(data)
	if err != nil {
		return nil, malformed(err)
	}
	return batch, nil
}

// malformed tags cause with ErrMalformedRequest, keeping both in the chain.
func malformed(cause error) error {
	return fmt.Errorf("%w: %w", ErrMalformedRequest, cause)
}

// process guards against panics from any BatchProcessor implementation.
func (h *Handler) process(ctx context.Context, batch []domain.Notification) (res BatchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(ErrFault, "panic: %v", r)
			h.logger.Error("webhook processing panicked", zap.Any("panic", r))
		}
	}()

	res, err = h.processor.ProcessBatch(ctx, batch)
	if err != nil && !errors.Is(err, ErrFault) {
		err = fmt.Errorf("%w: %w", ErrFault, err)
	}
	return res, err
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) int {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
	return status
}
