package ingest

import (
	"encoding/csv"
	"regexp"
	"strings"

	"fleetwatch/internal/normalize"
)

var reKV = regexp.MustCompile(`(?i)([a-zA-Z_]+)=([^\s]+)`)

// Parser turns one ingest line into raw sample fields. Supported shapes:
// a JSON object, a CSV record (header-aware), or whitespace-separated
// key=value pairs with a leading asset token.
type Parser struct {
	csv *CSVParser
}

func NewParser() *Parser {
	return &Parser{csv: NewCSVParser()}
}

func (p *Parser) ParseLine(line string) (*normalize.SampleFields, error) {
	trim := strings.TrimSpace(line)
	if trim == "" {
		return nil, nil
	}
	if looksLikeJSON(trim) {
		if fields, err := parseJSON(trim); err == nil {
			fields.Raw = line
			return fields, nil
		}
	}
	if strings.Contains(trim, ",") {
		fields, err := p.csv.Parse(trim)
		if err == nil {
			if fields == nil {
				return nil, nil
			}
			fields.Raw = line
			return fields, nil
		}
	}
	fields := parsePlain(trim)
	fields.Raw = line
	return fields, nil
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func parsePlain(line string) *normalize.SampleFields {
	fields := &normalize.SampleFields{Extras: map[string]string{}}
	kv := map[string]string{}
	for _, match := range reKV.FindAllStringSubmatch(line, -1) {
		key := strings.ToLower(match[1])
		kv[key] = match[2]
	}
	fields.AssetID = firstNonEmpty(kv, "asset_id", "asset", "assetid", "device", "unit")
	fields.TemperatureC = firstNonEmpty(kv, "temperature_c", "temperature", "temp_c", "temp")
	fields.VibrationRMS = firstNonEmpty(kv, "vibration_rms", "vibration", "vib_rms", "vib")
	fields.PressurePSI = firstNonEmpty(kv, "pressure_psi", "pressure", "psi", "press")
	for k, v := range kv {
		fields.Extras[k] = v
	}
	if fields.AssetID == "" {
		tokens := strings.Fields(line)
		if len(tokens) > 0 && !strings.Contains(tokens[0], "=") {
			fields.AssetID = tokens[0]
		}
	}
	return fields
}

func firstNonEmpty(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(m[k]); v != "" {
			return v
		}
	}
	return ""
}

type CSVParser struct {
	header []string
}

func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

func (p *CSVParser) Parse(line string) (*normalize.SampleFields, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.TrimLeadingSpace = true
	record, err := r.Read()
	if err != nil {
		return nil, err
	}
	if len(record) == 0 {
		return nil, nil
	}
	if p.header == nil && looksLikeHeader(record) {
		p.header = normalizeHeader(record)
		return nil, nil
	}
	fields := &normalize.SampleFields{Extras: map[string]string{}}
	if p.header != nil {
		for i, name := range p.header {
			if i >= len(record) {
				break
			}
			assignField(fields, name, record[i])
		}
	} else {
		// Positional fallback: asset_id, temperature_c, vibration_rms, pressure_psi.
		if len(record) >= 1 {
			fields.AssetID = record[0]
		}
		if len(record) >= 2 {
			fields.TemperatureC = record[1]
		}
		if len(record) >= 3 {
			fields.VibrationRMS = record[2]
		}
		if len(record) >= 4 {
			fields.PressurePSI = record[3]
		}
	}
	return fields, nil
}

func looksLikeHeader(record []string) bool {
	for _, v := range record {
		v = strings.ToLower(strings.TrimSpace(v))
		switch v {
		case "asset_id", "asset", "temperature_c", "temperature", "vibration_rms", "vibration", "pressure_psi", "pressure":
			return true
		}
	}
	return false
}

func normalizeHeader(record []string) []string {
	out := make([]string, len(record))
	for i, v := range record {
		out[i] = strings.ToLower(strings.TrimSpace(v))
	}
	return out
}

func assignField(fields *normalize.SampleFields, name string, value string) {
	name = strings.ToLower(strings.TrimSpace(name))
	value = strings.TrimSpace(value)
	switch name {
	case "asset_id", "asset", "assetid", "device", "unit":
		fields.AssetID = value
	case "temperature_c", "temperature", "temp_c", "temp":
		fields.TemperatureC = value
	case "vibration_rms", "vibration", "vib_rms", "vib":
		fields.VibrationRMS = value
	case "pressure_psi", "pressure", "psi", "press":
		fields.PressurePSI = value
	default:
		if fields.Extras != nil {
			fields.Extras[name] = value
		}
	}
}
