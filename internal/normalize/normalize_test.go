package normalize

import (
	"errors"
	"math"
	"testing"

	"fleetwatch/internal/model"
)

func TestNormalizeValidFields(t *testing.T) {
	sample, err := Normalize(SampleFields{
		AssetID:      " aircraft-C130-017 ",
		TemperatureC: "88.5",
		VibrationRMS: "2.1",
		PressurePSI:  "42",
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if sample.AssetID != "aircraft-C130-017" {
		t.Fatalf("asset id: %q", sample.AssetID)
	}
	if sample.TemperatureC != 88.5 || sample.VibrationRMS != 2.1 || sample.PressurePSI != 42 {
		t.Fatalf("values mismatch: %+v", sample)
	}
}

func TestNormalizeRejectsEmptyAsset(t *testing.T) {
	_, err := Normalize(SampleFields{AssetID: "  ", TemperatureC: "1", VibrationRMS: "1", PressurePSI: "1"})
	if !errors.Is(err, model.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestNormalizeRejectsNonNumeric(t *testing.T) {
	_, err := Normalize(SampleFields{AssetID: "a", TemperatureC: "hot", VibrationRMS: "1", PressurePSI: "1"})
	if !errors.Is(err, model.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	_, err = Normalize(SampleFields{AssetID: "a", TemperatureC: "1", VibrationRMS: "", PressurePSI: "1"})
	if !errors.Is(err, model.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for missing field, got %v", err)
	}
	_, err = Normalize(SampleFields{AssetID: "a", TemperatureC: "1", VibrationRMS: "1", PressurePSI: "NaN"})
	if !errors.Is(err, model.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for NaN, got %v", err)
	}
}

func TestCheckRejectsNonFinite(t *testing.T) {
	_, err := Check(model.ReadingSample{AssetID: "a", TemperatureC: math.Inf(1), VibrationRMS: 1, PressurePSI: 1})
	if !errors.Is(err, model.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	sample, err := Check(model.ReadingSample{AssetID: " a ", TemperatureC: 1, VibrationRMS: 1, PressurePSI: 1})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if sample.AssetID != "a" {
		t.Fatalf("asset id not trimmed: %q", sample.AssetID)
	}
}
