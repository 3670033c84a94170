package generator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/go-resty/resty/v2"

	"fleetwatch/internal/config"
	"fleetwatch/internal/model"
)

// Generator synthesizes random readings for one asset, submits them, and
// reads back the window plus its assessment. The value ranges straddle
// the default policy's nominal bands so generated fleets drift between
// LOW and CRITICAL.
type Generator struct {
	cfg    config.GeneratorConfig
	client *resty.Client
	logger *slog.Logger
}

type insertedResponse struct {
	ID         int64  `json:"id"`
	RecordedAt string `json:"recorded_at"`
}

type latestResponse struct {
	AssetID    string                `json:"asset_id"`
	WindowUsed int                   `json:"window_used"`
	Readings   []model.Reading       `json:"readings"`
	Risk       *model.RiskAssessment `json:"risk"`
}

func New(cfg config.GeneratorConfig, logger *slog.Logger) *Generator {
	client := resty.New().
		SetBaseURL(cfg.APIBase).
		SetTimeout(3*time.Second).
		SetHeader("Content-Type", "application/json")
	return &Generator{cfg: cfg, client: client, logger: logger}
}

func (g *Generator) makeSample() model.ReadingSample {
	return model.ReadingSample{
		AssetID:      g.cfg.AssetID,
		TemperatureC: round1(70 + rand.Float64()*80), // 70..150
		VibrationRMS: round2(1 + rand.Float64()*4),   // 1..5
		PressurePSI:  round1(20 + rand.Float64()*50), // 20..70
	}
}

// Run emits one sample per interval until the context is cancelled or,
// with a positive count, that many samples were sent.
func (g *Generator) Run(ctx context.Context) error {
	if g.logger != nil {
		g.logger.Info("generator starting",
			"api_base", g.cfg.APIBase,
			"asset_id", g.cfg.AssetID,
			"interval", g.cfg.Interval,
			"window", g.cfg.Window,
		)
	}
	ticker := time.NewTicker(g.cfg.Interval)
	defer ticker.Stop()
	sent := 0
	for {
		g.iterate(ctx)
		sent++
		if g.cfg.Count > 0 && sent >= g.cfg.Count {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (g *Generator) iterate(ctx context.Context) {
	sample := g.makeSample()

	var inserted insertedResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(sample).
		SetResult(&inserted).
		Post("/telemetry")
	if err != nil {
		if g.logger != nil {
			g.logger.Warn("telemetry post failed", "err", err)
		}
		return
	}
	if resp.StatusCode() != 201 {
		if g.logger != nil {
			g.logger.Warn("telemetry post rejected", "status", resp.StatusCode(), "body", resp.String())
		}
		return
	}
	if g.logger != nil {
		g.logger.Info("telemetry posted",
			"id", inserted.ID,
			"recorded_at", inserted.RecordedAt,
			"temp", sample.TemperatureC,
			"vib", sample.VibrationRMS,
			"psi", sample.PressurePSI,
		)
	}

	var latest latestResponse
	resp, err = g.client.R().
		SetContext(ctx).
		SetQueryParam("asset_id", g.cfg.AssetID).
		SetQueryParam("limit", fmt.Sprint(g.cfg.Window)).
		SetResult(&latest).
		Get("/telemetry/latest")
	if err != nil {
		if g.logger != nil {
			g.logger.Warn("latest fetch failed", "err", err)
		}
		return
	}
	if resp.StatusCode() != 200 {
		if g.logger != nil {
			g.logger.Warn("latest fetch rejected", "status", resp.StatusCode(), "body", resp.String())
		}
		return
	}
	if g.logger != nil {
		attrs := []any{"window_used", latest.WindowUsed}
		if len(latest.Readings) > 0 {
			attrs = append(attrs, "latest_id", latest.Readings[0].ID)
		}
		if latest.Risk != nil {
			attrs = append(attrs, "risk_score", latest.Risk.RiskScore, "risk_level", latest.Risk.RiskLevel)
		}
		g.logger.Info("latest window", attrs...)
	}
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
