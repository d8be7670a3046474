package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/meridian/internal/modules/analytics"
	"github.com/aristath/meridian/internal/modules/portfolio"
	"github.com/aristath/meridian/internal/modules/risk"
)

type fakeService struct {
	metrics risk.RiskMetrics
	err     error
}

func (f *fakeService) PortfolioRisk(portfolioID string) (risk.RiskMetrics, error) {
	if f.err != nil {
		return risk.RiskMetrics{}, f.err
	}
	return f.metrics, nil
}

type fakeSnapshots struct {
	snap portfolio.RiskSnapshot
	err  error
}

func (f *fakeSnapshots) LatestRisk(portfolioID string) (portfolio.RiskSnapshot, error) {
	if f.err != nil {
		return portfolio.RiskSnapshot{}, f.err
	}
	return f.snap, nil
}

func newTestRouter(svc riskService, snapshots snapshotSource) *chi.Mux {
	calc := risk.NewCalculator(risk.Config{}, zerolog.Nop())
	h := NewHandler(calc, svc, snapshots, zerolog.Nop())

	r := chi.NewRouter()
	r.Route("/api", h.RegisterRoutes)
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Contains(t, envelope, "data")
	require.Contains(t, envelope, "metadata")

	metadata := envelope["metadata"].(map[string]interface{})
	assert.NotEmpty(t, metadata["timestamp"])

	return envelope["data"].(map[string]interface{})
}

func TestHandleCalculateVaRHistorical(t *testing.T) {
	router := newTestRouter(&fakeService{}, &fakeSnapshots{})

	returns := make([]float64, 100)
	for i := range returns {
		returns[i] = 0.001 * float64(i%10-5)
	}

	rec := doRequest(t, router, http.MethodPost, "/api/risk/var", map[string]interface{}{
		"returns": returns,
		"method":  "historical",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	assert.Equal(t, 0.95, data["confidence"])

	varResult := data["var"].(map[string]interface{})
	assert.Equal(t, "historical", varResult["method"])
	assert.GreaterOrEqual(t, varResult["var_95_daily"].(float64), 0.0)
}

func TestHandleCalculateVaRDefaultsToHistorical(t *testing.T) {
	router := newTestRouter(&fakeService{}, &fakeSnapshots{})

	rec := doRequest(t, router, http.MethodPost, "/api/risk/var", map[string]interface{}{
		"returns": []float64{0.01, -0.02, 0.005, -0.01},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	varResult := data["var"].(map[string]interface{})
	assert.Equal(t, "historical", varResult["method"])
}

func TestHandleCalculateVaRWithExplicitConfidence(t *testing.T) {
	router := newTestRouter(&fakeService{}, &fakeSnapshots{})

	rec := doRequest(t, router, http.MethodPost, "/api/risk/var", map[string]interface{}{
		"returns":    []float64{0.01, -0.02, 0.005, -0.01, 0.003},
		"method":     "historical",
		"confidence": 0.99,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	assert.Equal(t, 0.99, data["requested_confidence"])
	assert.GreaterOrEqual(t, data["var_at_confidence"].(float64), 0.0)
}

func TestHandleCalculateVaRRejectsUnknownMethod(t *testing.T) {
	router := newTestRouter(&fakeService{}, &fakeSnapshots{})

	rec := doRequest(t, router, http.MethodPost, "/api/risk/var", map[string]interface{}{
		"returns": []float64{0.01, -0.02},
		"method":  "quantum",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCalculateVaRRejectsEmptyReturns(t *testing.T) {
	router := newTestRouter(&fakeService{}, &fakeSnapshots{})

	rec := doRequest(t, router, http.MethodPost, "/api/risk/var", map[string]interface{}{
		"returns": []float64{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCalculateVaRRejectsBadBody(t *testing.T) {
	router := newTestRouter(&fakeService{}, &fakeSnapshots{})

	req := httptest.NewRequest(http.MethodPost, "/api/risk/var", bytes.NewBufferString("not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetPortfolioRisk(t *testing.T) {
	beta := 1.2
	svc := &fakeService{metrics: risk.RiskMetrics{
		VaR:            risk.VaRResult{Method: risk.MethodMonteCarlo, VaR95Daily: 0.021},
		SharpeRatio:    1.4,
		Volatility:     0.18,
		Beta:           &beta,
		StressTests:    map[string]float64{risk.ScenarioFlashCrash: -10000},
		PortfolioValue: 100000,
	}}
	router := newTestRouter(svc, &fakeSnapshots{})

	rec := doRequest(t, router, http.MethodGet, "/api/risk/portfolio/p1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	assert.Equal(t, 1.4, data["sharpe_ratio"])
	assert.Equal(t, 1.2, data["beta"])
	assert.Equal(t, 100000.0, data["portfolio_value"])
}

func TestHandleGetPortfolioRiskNotFound(t *testing.T) {
	svc := &fakeService{err: fmt.Errorf("portfolio p1: %w", portfolio.ErrNotFound)}
	router := newTestRouter(svc, &fakeSnapshots{})

	rec := doRequest(t, router, http.MethodGet, "/api/risk/portfolio/p1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetPortfolioRiskInsufficientHistory(t *testing.T) {
	svc := &fakeService{err: fmt.Errorf("portfolio p1: %w", analytics.ErrInsufficientHistory)}
	router := newTestRouter(svc, &fakeSnapshots{})

	rec := doRequest(t, router, http.MethodGet, "/api/risk/portfolio/p1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleGetPortfolioRiskInternalError(t *testing.T) {
	svc := &fakeService{err: errors.New("db down")}
	router := newTestRouter(svc, &fakeSnapshots{})

	rec := doRequest(t, router, http.MethodGet, "/api/risk/portfolio/p1", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleGetRiskSnapshot(t *testing.T) {
	snapshots := &fakeSnapshots{snap: portfolio.RiskSnapshot{
		ID:          "snap-1",
		PortfolioID: "p1",
		VaR95Daily:  0.021,
		SharpeRatio: 1.1,
	}}
	router := newTestRouter(&fakeService{}, snapshots)

	rec := doRequest(t, router, http.MethodGet, "/api/risk/portfolio/p1/snapshot", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	assert.Equal(t, "snap-1", data["id"])
	assert.Equal(t, 0.021, data["var_95_daily"])
}

func TestHandleGetRiskSnapshotNotFound(t *testing.T) {
	snapshots := &fakeSnapshots{err: fmt.Errorf("risk snapshot for p1: %w", portfolio.ErrNotFound)}
	router := newTestRouter(&fakeService{}, snapshots)

	rec := doRequest(t, router, http.MethodGet, "/api/risk/portfolio/p1/snapshot", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
