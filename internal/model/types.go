package model

import "time"

type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Rank orders levels so callers can compare severity without string
// comparison. Unknown levels rank below LOW.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	}
	return 0
}

// ReadingSample is a client-supplied reading before the store assigns
// id and recorded_at.
type ReadingSample struct {
	AssetID      string  `json:"asset_id"`
	TemperatureC float64 `json:"temperature_c"`
	VibrationRMS float64 `json:"vibration_rms"`
	PressurePSI  float64 `json:"pressure_psi"`
}

type Reading struct {
	ID           int64     `json:"id"`
	AssetID      string    `json:"asset_id"`
	TemperatureC float64   `json:"temperature_c"`
	VibrationRMS float64   `json:"vibration_rms"`
	PressurePSI  float64   `json:"pressure_psi"`
	RecordedAt   time.Time `json:"recorded_at"`
}

func (r Reading) Sample() ReadingSample {
	return ReadingSample{
		AssetID:      r.AssetID,
		TemperatureC: r.TemperatureC,
		VibrationRMS: r.VibrationRMS,
		PressurePSI:  r.PressurePSI,
	}
}

// ChannelScores are the aggregated per-channel deviations over a window,
// each in [0, 1].
type ChannelScores struct {
	Temperature float64 `json:"temperature"`
	Vibration   float64 `json:"vibration"`
	Pressure    float64 `json:"pressure"`
}

// RiskAssessment is derived per request and never persisted.
type RiskAssessment struct {
	AssetID    string        `json:"asset_id"`
	RiskScore  float64       `json:"risk_score"`
	RiskLevel  RiskLevel     `json:"risk_level"`
	WindowUsed int           `json:"window_used"`
	Channels   ChannelScores `json:"channels"`
}

// AssetStats summarizes ingestion for one asset. It carries no risk data.
type AssetStats struct {
	AssetID    string        `json:"asset_id"`
	Accepted   int64         `json:"accepted"`
	LastSample ReadingSample `json:"last_sample"`
	LastSeen   time.Time     `json:"last_seen"`
}
