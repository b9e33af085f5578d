// Package healthcare implements the assistant's domain tools: patient
// info, medical history, symptom assessment, medications, appointments,
// provider lookup, and medical reference. Each tool satisfies tool.Tool
// and returns structured results the model folds into its answer.
//
// Tools that talk to the external record provider degrade to locally
// cached JSON under the data directory whenever the provider faults, so
// a network problem never fails a user-facing operation.
package healthcare

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/medifox/go-medifox/pkg/records"
	"github.com/medifox/go-medifox/pkg/tool"
)

// Deps carries the shared dependencies injected into every tool.
type Deps struct {
	// DataDir is the root of the local data cache.
	DataDir string

	// Records is the external record-provider client. Nil means
	// local-only operation.
	Records *records.Client
}

// RegisterAll registers the full tool set on a registry, in the order
// the model sees them.
func RegisterAll(reg *tool.Registry, deps Deps) error {
	providers, err := NewProviderLookupTool(deps.DataDir)
	if err != nil {
		return fmt.Errorf("healthcare: init provider lookup: %w", err)
	}
	reference, err := NewReferenceTool(deps.DataDir)
	if err != nil {
		return fmt.Errorf("healthcare: init medical reference: %w", err)
	}

	reg.Register(NewPatientInfoTool(deps))
	reg.Register(NewMedicalHistoryTool(deps.DataDir))
	reg.Register(NewSymptomAssessmentTool(deps.DataDir))
	reg.Register(NewMedicationTool(deps.DataDir))
	reg.Register(NewAppointmentTool(deps))
	reg.Register(providers)
	reg.Register(reference)
	return nil
}

// nowISO is the timestamp format used across local records.
func nowISO() string {
	return time.Now().Format(time.RFC3339)
}

// loadJSON reads a JSON object file. Missing files return ok=false.
func loadJSON(path string) (map[string]interface{}, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// saveJSON writes a JSON file atomically via temp-and-rename.
func saveJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// stringArg reads a string argument, tolerating absence.
func stringArg(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

// objectArg reads a nested object argument.
func objectArg(args map[string]interface{}, key string) map[string]interface{} {
	m, _ := args[key].(map[string]interface{})
	return m
}

// stringListArg reads an array-of-strings argument, coercing items.
func stringListArg(args map[string]interface{}, key string) []string {
	raw, _ := args[key].([]interface{})
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		switch t := item.(type) {
		case string:
			out = append(out, t)
		case map[string]interface{}:
			if name, ok := t["name"].(string); ok {
				out = append(out, name)
			}
		}
	}
	return out
}

// objectList extracts a list of objects from a loaded JSON document.
func objectList(obj map[string]interface{}, key string) []map[string]interface{} {
	raw, _ := obj[key].([]interface{})
	out := make([]map[string]interface{}, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

// toIfaceList converts typed object slices back to the generic form
// stored in JSON documents.
func toIfaceList(items []map[string]interface{}) []interface{} {
	out := make([]interface{}, len(items))
	for i, m := range items {
		out[i] = m
	}
	return out
}
