package ingest

import (
	"encoding/json"
	"fmt"
	"strings"

	"fleetwatch/internal/normalize"
)

func parseJSON(line string) (*normalize.SampleFields, error) {
	return ParseJSONBytes([]byte(line))
}

func ParseJSONBytes(data []byte) (*normalize.SampleFields, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	return ParseJSONMap(obj), nil
}

func ParseJSONMap(obj map[string]interface{}) *normalize.SampleFields {
	fields := &normalize.SampleFields{Extras: map[string]string{}}
	for key, val := range obj {
		fields.Extras[strings.ToLower(key)] = fmt.Sprint(val)
	}
	fields.AssetID = firstNonEmpty(fields.Extras, "asset_id", "asset", "assetid", "device", "unit")
	fields.TemperatureC = firstNonEmpty(fields.Extras, "temperature_c", "temperature", "temp_c", "temp")
	fields.VibrationRMS = firstNonEmpty(fields.Extras, "vibration_rms", "vibration", "vib_rms", "vib")
	fields.PressurePSI = firstNonEmpty(fields.Extras, "pressure_psi", "pressure", "psi", "press")
	return fields
}
