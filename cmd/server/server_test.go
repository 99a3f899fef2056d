package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"liquidity-watch/internal/classifier"
	"liquidity-watch/internal/config"
	"liquidity-watch/internal/liquidity"
	"liquidity-watch/internal/oracle"
	"liquidity-watch/internal/solana/stub"
	"liquidity-watch/internal/storage"
	"liquidity-watch/internal/storage/memory"
	"liquidity-watch/internal/webhook"
)

const testLPMint = "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"

func testServer(t *testing.T, sinks ...webhook.Sink) *Server {
	t.Helper()

	var s config.Settings
	s.Server.WebhookPath = "/helius-webhook"
	s.Pool.MinLiquidityUSD = liquidity.DefaultMinLiquidityUSD
	s.Lock.Ratio = oracle.DefaultLockRatio

	orc := oracle.New(stub.NewLedgerClient(), oracle.DefaultSettings(), nil)
	t.Cleanup(orc.Close)

	proc := webhook.NewProcessor(
		classifier.New(classifier.Config{USDCMint: config.DefaultUSDCMint, WSOLMint: config.DefaultWSOLMint}),
		liquidity.NewEstimator(24, s.Pool.MinLiquidityUSD),
		orc,
		sinks,
		nil,
	)
	return newServer(&s, proc, zap.NewNop())
}

// storedServer records reports into bounded memory stores served by the
// read endpoints.
func storedServer(t *testing.T, capacity int) *Server {
	t.Helper()

	st := stores{
		reports:     memory.NewBoundedPoolReportStore(capacity),
		assessments: memory.NewBoundedAssessmentStore(capacity),
	}
	srv := testServer(t, storage.NewRecorder("memory", st.reports, st.assessments))
	srv.stores = st
	return srv
}

func createPoolBody(sig string, usdc, wsol float64) string {
	b, _ := json.Marshal([]map[string]any{{
		"signature": sig,
		"slot":      100,
		"type":      "CREATE_POOL",
		"tokenTransfers": []map[string]any{
			{"mint": config.DefaultUSDCMint, "tokenAmount": usdc, "fromUserAccount": "creator"},
			{"mint": config.DefaultWSOLMint, "tokenAmount": wsol, "fromUserAccount": "creator"},
			{"mint": testLPMint, "tokenAmount": 1000, "fromUserAccount": "creator"},
		},
	}})
	return string(b)
}

func TestRoutes_Health(t *testing.T) {
	mux := testServer(t).routes()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRoutes_WebhookAndAlias(t *testing.T) {
	mux := testServer(t).routes()

	for _, path := range []string{"/helius-webhook", "/helis-webhook"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`[{"signature":"x","type":"SWAP"}]`))
		mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, path)
		var resp webhook.OKResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, 1, resp.Received)
	}
}

func TestRoutes_Status(t *testing.T) {
	srv := testServer(t)
	mux := srv.routes()

	req := httptest.NewRequest(http.MethodPost, "/helius-webhook", strings.NewReader(`[]`))
	mux.ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "running", resp.Status)
	assert.Equal(t, uint64(1), resp.Processing.Batches)
	assert.False(t, resp.FeedEnabled)
	assert.Equal(t, 2000.0, resp.MinLiquidityUSD)
}

func TestRoutes_ReportsAfterWebhook(t *testing.T) {
	mux := storedServer(t, 10).routes()

	for _, sig := range []string{"sigA", "sigB"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/helius-webhook", strings.NewReader(createPoolBody(sig, 1500, 25))))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ReportsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, 2100.0, resp.Reports[0].LiquidityUSD)
	assert.Equal(t, []string{testLPMint}, resp.Reports[0].Candidates)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports?signature=sigA", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "sigA", resp.Reports[0].Signature)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assessments?mint="+testLPMint, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var hist AssessmentsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&hist))
	assert.Equal(t, 2, hist.Count)
}

func TestRoutes_ReportsBounded(t *testing.T) {
	mux := storedServer(t, 2).routes()

	for _, sig := range []string{"sig1", "sig2", "sig3"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/helius-webhook", strings.NewReader(createPoolBody(sig, 100, 1))))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ReportsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Count)
	for _, r := range resp.Reports {
		assert.NotEqual(t, "sig1", r.Signature)
	}
}

func TestRoutes_ReportsRejectsBadInput(t *testing.T) {
	mux := storedServer(t, 10).routes()

	tests := []struct {
		name   string
		method string
		target string
		want   int
	}{
		{"non-numeric limit", http.MethodGet, "/reports?limit=ten", http.StatusBadRequest},
		{"zero limit", http.MethodGet, "/reports?limit=0", http.StatusBadRequest},
		{"limit too large", http.MethodGet, "/reports?limit=501", http.StatusBadRequest},
		{"post to reports", http.MethodPost, "/reports", http.StatusMethodNotAllowed},
		{"bad mint", http.MethodGet, "/assessments?mint=xyz", http.StatusBadRequest},
		{"missing mint", http.MethodGet, "/assessments", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))
			assert.Equal(t, tt.want, rec.Code)

			var resp webhook.ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.NotEmpty(t, resp.Kind)
		})
	}
}

func TestRoutes_ReadEndpointsAbsentWithoutStores(t *testing.T) {
	mux := testServer(t).routes()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
