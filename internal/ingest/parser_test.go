package ingest

import (
	"testing"
	"time"

	"fleetwatch/internal/model"
)

func TestParsePlainText(t *testing.T) {
	p := NewParser()
	line := "asset-1 temp=92.5 vib=2.8 psi=33"
	fields, err := p.ParseLine(line)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if fields.AssetID != "asset-1" {
		t.Fatalf("asset id: %s", fields.AssetID)
	}
	if fields.TemperatureC != "92.5" || fields.VibrationRMS != "2.8" || fields.PressurePSI != "33" {
		t.Fatalf("channel fields: %+v", fields)
	}
}

func TestParseCSV(t *testing.T) {
	p := NewParser()
	if fields, _ := p.ParseLine("asset_id,temperature_c,vibration_rms,pressure_psi"); fields != nil {
		t.Fatalf("expected header to return nil")
	}
	fields, err := p.ParseLine("aircraft-C130-017,95.0,2.5,30.0")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if fields.AssetID != "aircraft-C130-017" || fields.TemperatureC != "95.0" {
		t.Fatalf("csv parse mismatch: %+v", fields)
	}
}

func TestParseCSVPositional(t *testing.T) {
	p := NewParser()
	fields, err := p.ParseLine("asset-7,81.2,1.4,48")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if fields.AssetID != "asset-7" || fields.PressurePSI != "48" {
		t.Fatalf("positional csv mismatch: %+v", fields)
	}
}

func TestParseJSON(t *testing.T) {
	p := NewParser()
	line := `{"asset":"asset-1","temperature":95,"vibration":2.5,"pressure":30}`
	fields, err := p.ParseLine(line)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if fields.AssetID != "asset-1" || fields.TemperatureC != "95" {
		t.Fatalf("json parse mismatch: %+v", fields)
	}
}

func TestParseBlankLine(t *testing.T) {
	p := NewParser()
	fields, err := p.ParseLine("   ")
	if err != nil || fields != nil {
		t.Fatalf("blank line should yield nil, nil; got %+v, %v", fields, err)
	}
}

func TestDedupeCache(t *testing.T) {
	d := NewDedupeCache()
	sample := model.ReadingSample{AssetID: "asset-1", TemperatureC: 90, VibrationRMS: 2, PressurePSI: 40}
	key := HashSample(sample)
	now := time.Now().UTC()
	if d.Seen(key, now, time.Second) {
		t.Fatalf("first sighting should not be a duplicate")
	}
	if !d.Seen(key, now.Add(500*time.Millisecond), time.Second) {
		t.Fatalf("second sighting inside ttl should be a duplicate")
	}
	if d.Seen(key, now.Add(3*time.Second), time.Second) {
		t.Fatalf("sighting after ttl should not be a duplicate")
	}
}
