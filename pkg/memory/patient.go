package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PatientData reads the locally cached patient records under a data
// directory. It is the fallback source healthcare tools use when the
// external record provider is unreachable, and the source of the
// patient context summary prepended to new sessions.
//
// Layout under dir:
//
//	patients/<id>.json
//	medical_records/<id>_history.json
//	appointments/<id>_appointments.json
//	medications/<id>_medications.json
type PatientData struct {
	dir string
}

// NewPatientData creates a reader over the given data directory.
func NewPatientData(dir string) *PatientData {
	return &PatientData{dir: dir}
}

// Info returns the basic patient record, or an empty map if absent.
func (p *PatientData) Info(patientID string) map[string]interface{} {
	return p.readObject(filepath.Join("patients", patientID+".json"))
}

// History returns the patient's medical history record.
func (p *PatientData) History(patientID string) map[string]interface{} {
	return p.readObject(filepath.Join("medical_records", patientID+"_history.json"))
}

// Appointments returns the patient's appointment list.
func (p *PatientData) Appointments(patientID string) []map[string]interface{} {
	obj := p.readObject(filepath.Join("appointments", patientID+"_appointments.json"))
	return listField(obj, "appointments")
}

// Medications returns the patient's medication list.
func (p *PatientData) Medications(patientID string) []map[string]interface{} {
	obj := p.readObject(filepath.Join("medications", patientID+"_medications.json"))
	return listField(obj, "medications")
}

// Context aggregates everything known about a patient.
func (p *PatientData) Context(patientID string) map[string]interface{} {
	return map[string]interface{}{
		"patient_id":      patientID,
		"info":            p.Info(patientID),
		"medical_history": p.History(patientID),
		"appointments":    p.Appointments(patientID),
		"medications":     p.Medications(patientID),
	}
}

// Summarize produces the human-readable patient summary the agent
// prepends as a system message.
func (p *PatientData) Summarize(patientID string) string {
	info := p.Info(patientID)
	if len(info) == 0 {
		return fmt.Sprintf("No information found for patient ID: %s", patientID)
	}

	var parts []string

	name := stringField(info, "name", "Unknown")
	age := stringField(info, "age", "Unknown")
	gender := stringField(info, "gender", "Unknown")
	parts = append(parts, fmt.Sprintf("Patient: %s, %s year old %s", name, age, gender))

	history := p.History(patientID)
	if conditions := nameList(history["conditions"]); len(conditions) > 0 {
		parts = append(parts, "Conditions: "+strings.Join(conditions, ", "))
	}
	if allergies := nameList(history["allergies"]); len(allergies) > 0 {
		parts = append(parts, "Allergies: "+strings.Join(allergies, ", "))
	}

	if meds := p.Medications(patientID); len(meds) > 0 {
		names := make([]string, 0, len(meds))
		for _, m := range meds {
			names = append(names, stringField(m, "name", "Unknown"))
		}
		parts = append(parts, "Current medications: "+strings.Join(names, ", "))
	}

	for _, appt := range p.Appointments(patientID) {
		if appt["status"] != "scheduled" {
			continue
		}
		provider := stringField(appt, "provider", "Unknown provider")
		date := stringField(appt, "datetime", "Unknown date")
		parts = append(parts, fmt.Sprintf("Next appointment: %s with %s", date, provider))
		break
	}

	return strings.Join(parts, "\n")
}

// readObject loads a JSON object file relative to the data dir. Any
// failure reads as empty.
func (p *PatientData) readObject(rel string) map[string]interface{} {
	data, err := os.ReadFile(filepath.Join(p.dir, rel))
	if err != nil {
		return map[string]interface{}{}
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return map[string]interface{}{}
	}
	return obj
}

func listField(obj map[string]interface{}, key string) []map[string]interface{} {
	raw, ok := obj[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

func stringField(obj map[string]interface{}, key, fallback string) string {
	switch v := obj[key].(type) {
	case string:
		return v
	case float64:
		// JSON numbers decode as float64; ages are whole numbers.
		return fmt.Sprintf("%.0f", v)
	case nil:
		return fallback
	default:
		return fmt.Sprintf("%v", v)
	}
}

// nameList extracts names from a list whose entries are either plain
// strings or objects with a "name" field.
func nameList(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		switch t := item.(type) {
		case string:
			out = append(out, t)
		case map[string]interface{}:
			out = append(out, stringField(t, "name", "Unknown"))
		}
	}
	return out
}
