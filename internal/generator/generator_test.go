package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetwatch/internal/config"
	"fleetwatch/internal/model"
)

func TestMakeSampleRanges(t *testing.T) {
	g := New(config.GeneratorConfig{AssetID: "asset-1", Interval: time.Second, Window: 5}, nil)
	for i := 0; i < 100; i++ {
		sample := g.makeSample()
		assert.Equal(t, "asset-1", sample.AssetID)
		assert.GreaterOrEqual(t, sample.TemperatureC, 70.0)
		assert.LessOrEqual(t, sample.TemperatureC, 150.0)
		assert.GreaterOrEqual(t, sample.VibrationRMS, 1.0)
		assert.LessOrEqual(t, sample.VibrationRMS, 5.0)
		assert.GreaterOrEqual(t, sample.PressurePSI, 20.0)
		assert.LessOrEqual(t, sample.PressurePSI, 70.0)
	}
}

func TestRunPostsAndFetches(t *testing.T) {
	var posted model.ReadingSample
	mux := http.NewServeMux()
	mux.HandleFunc("/telemetry", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 1, "recorded_at": time.Now().UTC().Format(time.RFC3339Nano)})
	})
	mux.HandleFunc("/telemetry/latest", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "asset-1", r.URL.Query().Get("asset_id"))
		require.Equal(t, "5", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(latestResponse{AssetID: "asset-1", WindowUsed: 1})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	g := New(config.GeneratorConfig{
		APIBase:  ts.URL,
		AssetID:  "asset-1",
		Interval: 10 * time.Millisecond,
		Window:   5,
		Count:    1,
	}, nil)
	require.NoError(t, g.Run(context.Background()))
	assert.Equal(t, "asset-1", posted.AssetID)
	assert.NotZero(t, posted.TemperatureC)
}
