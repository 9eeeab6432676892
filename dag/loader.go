package dag

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Format is the encoding of a serialized draft.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// LoadDraft decodes a draft. Unknown fields are rejected so that a typo in
// depends_on or condition cannot silently drop a dependency.
func LoadDraft(data []byte, format Format) (*Draft, error) {
	var d Draft
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&d); err != nil {
			return nil, fmt.Errorf("dag: parsing draft: %w", err)
		}
	case FormatYAML, "":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&d); err != nil {
			return nil, fmt.Errorf("dag: parsing draft: %w", err)
		}
	default:
		return nil, fmt.Errorf("dag: unknown draft format %q", format)
	}
	normalizeParameters(&d)
	return &d, nil
}

// LoadDraftFile reads a draft from path. The format follows the extension;
// anything other than .json is read as YAML.
func LoadDraftFile(path string) (*Draft, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	format := FormatYAML
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = FormatJSON
	}
	d, err := LoadDraft(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// normalizeParameters converts YAML integers to float64 so parameters have
// the same shape whichever format they were written in.
func normalizeParameters(d *Draft) {
	for i := range d.Nodes {
		if p := d.Nodes[i].Parameters; p != nil {
			d.Nodes[i].Parameters = normalizeValue(p).(map[string]any)
		}
	}
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	case map[string]any:
		for k, item := range val {
			val[k] = normalizeValue(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = normalizeValue(item)
		}
		return val
	default:
		return v
	}
}
