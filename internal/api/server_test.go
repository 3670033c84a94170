package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetwatch/internal/config"
	"fleetwatch/internal/model"
	"fleetwatch/internal/risk"
	"fleetwatch/internal/service"
	"fleetwatch/internal/stats"
	"fleetwatch/internal/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fleetwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  driver: memory\n"), 0o644))
	mgr, err := config.NewManager(path)
	require.NoError(t, err)

	eng, err := risk.NewEngine(mgr.Get().Risk)
	require.NoError(t, err)
	statsStore := stats.NewStore(100)
	recent := stats.NewRecent(100)
	svc := service.New(eng, storage.NewMemory(), statsStore, recent, nil)
	srv := NewServer(mgr, svc, statsStore, recent, nil, "test")
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestTelemetryIngestAndLatest(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/telemetry", model.ReadingSample{
		AssetID: "asset-1", TemperatureC: 20, VibrationRMS: 0.1, PressurePSI: 30,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		ID         int64  `json:"id"`
		RecordedAt string `json:"recorded_at"`
	}
	decodeBody(t, resp, &created)
	assert.NotZero(t, created.ID)
	assert.NotEmpty(t, created.RecordedAt)

	resp = postJSON(t, ts.URL+"/telemetry", model.ReadingSample{
		AssetID: "asset-1", TemperatureC: 95, VibrationRMS: 2.5, PressurePSI: 30,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(ts.URL + "/telemetry/latest?asset_id=asset-1&limit=5")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var latest latestResponse
	decodeBody(t, resp, &latest)
	require.Len(t, latest.Readings, 2)
	assert.Equal(t, 95.0, latest.Readings[0].TemperatureC, "newest first")
	require.NotNil(t, latest.Risk)
	assert.GreaterOrEqual(t, latest.Risk.RiskLevel.Rank(), model.RiskMedium.Rank())
	assert.Equal(t, 2, latest.WindowUsed)
}

func TestTelemetryRejectsEmptyAsset(t *testing.T) {
	ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/telemetry", model.ReadingSample{AssetID: "  "})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLatestUnknownAssetRendersNullRisk(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/telemetry/latest?asset_id=unknown-asset")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var latest latestResponse
	decodeBody(t, resp, &latest)
	assert.Empty(t, latest.Readings)
	assert.Nil(t, latest.Risk)
	assert.Zero(t, latest.Count)
}

func TestLatestInvalidLimit(t *testing.T) {
	ts := newTestServer(t)
	for _, q := range []string{"asset_id=asset-1&limit=0", "asset_id=asset-1&limit=-2", "asset_id=asset-1&limit=abc", "limit=5"} {
		resp, err := http.Get(ts.URL + "/telemetry/latest?" + q)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	var health map[string]any
	decodeBody(t, resp, &health)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "ok", health["db"])
}

func TestAdminReset(t *testing.T) {
	ts := newTestServer(t)
	for i := 0; i < 3; i++ {
		resp := postJSON(t, ts.URL+"/telemetry", model.ReadingSample{
			AssetID: "asset-1", TemperatureC: 70, VibrationRMS: 1, PressurePSI: 45,
		})
		resp.Body.Close()
	}
	resp := postJSON(t, ts.URL+"/admin/reset", map[string]string{"asset_id": "asset-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]any
	decodeBody(t, resp, &out)
	assert.Equal(t, float64(3), out["removed"])

	resp, err := http.Get(ts.URL + "/telemetry/latest?asset_id=asset-1")
	require.NoError(t, err)
	var latest latestResponse
	decodeBody(t, resp, &latest)
	assert.Empty(t, latest.Readings)
	assert.Nil(t, latest.Risk)
}

func TestRiskConfigUpdate(t *testing.T) {
	ts := newTestServer(t)

	bad := config.DefaultRiskConfig()
	bad.Thresholds.MediumMax = bad.Thresholds.LowMax
	resp := postJSON(t, ts.URL+"/config/risk", bad)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	good := config.DefaultRiskConfig()
	good.Decay = 1.0
	resp = postJSON(t, ts.URL+"/config/risk", good)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err := http.Get(ts.URL + "/config/risk")
	require.NoError(t, err)
	var got struct {
		Risk config.RiskConfig `json:"risk"`
	}
	decodeBody(t, resp, &got)
	assert.Equal(t, 1.0, got.Risk.Decay)
}

func TestRecentAndAssets(t *testing.T) {
	ts := newTestServer(t)
	for _, asset := range []string{"asset-1", "asset-1", "asset-2"} {
		resp := postJSON(t, ts.URL+"/telemetry", model.ReadingSample{
			AssetID: asset, TemperatureC: 70, VibrationRMS: 1, PressurePSI: 45,
		})
		resp.Body.Close()
	}

	resp, err := http.Get(ts.URL + "/telemetry/recent?limit=2")
	require.NoError(t, err)
	var recent struct {
		Readings []model.Reading `json:"readings"`
		Count    int             `json:"count"`
	}
	decodeBody(t, resp, &recent)
	assert.Equal(t, 2, recent.Count)

	resp, err = http.Get(ts.URL + "/assets")
	require.NoError(t, err)
	var assets struct {
		Count int `json:"count"`
	}
	decodeBody(t, resp, &assets)
	assert.Equal(t, 2, assets.Count)
}
