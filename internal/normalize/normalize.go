package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"fleetwatch/internal/model"
)

// SampleFields are raw, string-typed values extracted from an ingest
// line or message before validation. Timestamps are deliberately absent:
// recorded_at is assigned by the store at write time.
type SampleFields struct {
	AssetID      string
	TemperatureC string
	VibrationRMS string
	PressurePSI  string
	Extras       map[string]string
	Raw          string
}

// Normalize validates and coerces raw fields into a ReadingSample.
// Violations return ErrInvalidArgument naming the offending field.
func Normalize(fields SampleFields) (model.ReadingSample, error) {
	asset := strings.TrimSpace(fields.AssetID)
	if asset == "" {
		return model.ReadingSample{}, fmt.Errorf("%w: empty asset id", model.ErrInvalidArgument)
	}
	temp, err := parseChannel("temperature_c", fields.TemperatureC)
	if err != nil {
		return model.ReadingSample{}, err
	}
	vib, err := parseChannel("vibration_rms", fields.VibrationRMS)
	if err != nil {
		return model.ReadingSample{}, err
	}
	press, err := parseChannel("pressure_psi", fields.PressurePSI)
	if err != nil {
		return model.ReadingSample{}, err
	}
	return model.ReadingSample{
		AssetID:      asset,
		TemperatureC: temp,
		VibrationRMS: vib,
		PressurePSI:  press,
	}, nil
}

// Check applies the same validation to an already-typed sample, for
// callers that decode JSON directly (the HTTP ingestion path).
func Check(sample model.ReadingSample) (model.ReadingSample, error) {
	asset := strings.TrimSpace(sample.AssetID)
	if asset == "" {
		return model.ReadingSample{}, fmt.Errorf("%w: empty asset id", model.ErrInvalidArgument)
	}
	for name, v := range map[string]float64{
		"temperature_c": sample.TemperatureC,
		"vibration_rms": sample.VibrationRMS,
		"pressure_psi":  sample.PressurePSI,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return model.ReadingSample{}, fmt.Errorf("%w: %s is not finite", model.ErrInvalidArgument, name)
		}
	}
	sample.AssetID = asset
	return sample, nil
}

func parseChannel(name, value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("%w: missing %s", model.ErrInvalidArgument, name)
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not numeric", model.ErrInvalidArgument, name, value)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s=%q is not finite", model.ErrInvalidArgument, name, value)
	}
	return f, nil
}
