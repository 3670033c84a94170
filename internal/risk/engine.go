package risk

import (
	"fmt"

	"fleetwatch/internal/config"
	"fleetwatch/internal/model"
)

// Engine scores a window of readings against an immutable policy. It
// holds no per-asset state; identical window and policy always produce
// the identical assessment, so concurrent calls need no locking.
type Engine struct {
	cfg config.RiskConfig
}

// NewEngine validates the policy before accepting it. A bad policy is
// rejected here, never patched up.
func NewEngine(rc config.RiskConfig) (*Engine, error) {
	if err := config.ValidateRisk(rc); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidConfig, err)
	}
	return &Engine{cfg: rc}, nil
}

func (e *Engine) Config() config.RiskConfig {
	return e.cfg
}

// ComputeRisk aggregates per-channel deviations over a newest-first
// window into one score and maps it to a level. The window length is the
// caller's choice; the engine scores whatever it is given.
func (e *Engine) ComputeRisk(window []model.Reading) (model.RiskAssessment, error) {
	if len(window) == 0 {
		return model.RiskAssessment{}, fmt.Errorf("%w: empty window", model.ErrInsufficientData)
	}

	var tempSum, vibSum, pressSum, weightSum float64
	weight := 1.0
	for _, r := range window {
		tempSum += weight * deviation(r.TemperatureC, e.cfg.Channels.Temperature)
		vibSum += weight * deviation(r.VibrationRMS, e.cfg.Channels.Vibration)
		pressSum += weight * deviation(r.PressurePSI, e.cfg.Channels.Pressure)
		weightSum += weight
		weight *= e.cfg.Decay
	}

	channels := model.ChannelScores{
		Temperature: tempSum / weightSum,
		Vibration:   vibSum / weightSum,
		Pressure:    pressSum / weightSum,
	}
	score := e.cfg.Weights.Temperature*channels.Temperature +
		e.cfg.Weights.Vibration*channels.Vibration +
		e.cfg.Weights.Pressure*channels.Pressure

	return model.RiskAssessment{
		AssetID:    window[0].AssetID,
		RiskScore:  score,
		RiskLevel:  classify(score, e.cfg.Thresholds),
		WindowUsed: len(window),
		Channels:   channels,
	}, nil
}

// deviation is 0 inside the nominal band and grows linearly toward 1 at
// the critical bound, clamped there. Bounds ordering is guaranteed by
// config validation, so the divisors are never zero.
func deviation(value float64, ch config.ChannelBounds) float64 {
	switch {
	case value < ch.NominalMin:
		return clamp01((ch.NominalMin - value) / (ch.NominalMin - ch.CriticalMin))
	case value > ch.NominalMax:
		return clamp01((value - ch.NominalMax) / (ch.CriticalMax - ch.NominalMax))
	default:
		return 0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// classify maps a score to a level with boundaries inclusive on the
// lower level: a score exactly at low_max is still LOW.
func classify(score float64, t config.ThresholdsConfig) model.RiskLevel {
	switch {
	case score <= t.LowMax:
		return model.RiskLow
	case score <= t.MediumMax:
		return model.RiskMedium
	case score <= t.HighMax:
		return model.RiskHigh
	default:
		return model.RiskCritical
	}
}
