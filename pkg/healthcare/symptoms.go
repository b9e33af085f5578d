package healthcare

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/medifox/go-medifox/pkg/inference"
	"github.com/medifox/go-medifox/pkg/tool"
)

// condition is one possible diagnosis for a symptom category.
type condition struct {
	Name     string
	Severity string // low, medium, high
	Flags    []string
}

// symptomConditions maps normalized symptom categories to possible
// conditions. A real deployment would back this with a medical
// knowledge graph; the table covers the triage cases the assistant is
// scoped to.
var symptomConditions = map[string][]condition{
	"headache": {
		{"Tension Headache", "low", nil},
		{"Migraine", "medium", nil},
		{"Dehydration", "low", nil},
		{"High Blood Pressure", "medium", []string{"check_bp"}},
		{"Meningitis", "high", []string{"urgent", "fever", "stiff_neck"}},
	},
	"chest_pain": {
		{"Angina", "medium", []string{"check_cardiac"}},
		{"Heart Attack", "high", []string{"urgent", "emergency"}},
		{"Acid Reflux", "low", nil},
		{"Muscle Strain", "low", nil},
		{"Pulmonary Embolism", "high", []string{"urgent", "emergency"}},
	},
	"fever": {
		{"Common Cold", "low", nil},
		{"Flu", "medium", nil},
		{"COVID-19", "medium", []string{"isolate", "test"}},
		{"Infection", "medium", nil},
		{"Sepsis", "high", []string{"urgent", "emergency"}},
	},
	"shortness_of_breath": {
		{"Asthma", "medium", nil},
		{"Anxiety", "low", nil},
		{"COPD", "medium", []string{"chronic"}},
		{"Heart Failure", "high", []string{"urgent"}},
		{"Pulmonary Embolism", "high", []string{"urgent", "emergency"}},
	},
	"abdominal_pain": {
		{"Indigestion", "low", nil},
		{"Gas", "low", nil},
		{"Appendicitis", "high", []string{"urgent", "right_side"}},
		{"Gallstones", "medium", []string{"right_upper"}},
		{"Ulcer", "medium", nil},
	},
}

// symptomVariants maps free-text phrasings to symptom categories.
var symptomVariants = map[string][]string{
	"headache":            {"headache", "head pain", "head ache", "migraine"},
	"chest_pain":          {"chest pain", "chest discomfort", "chest tightness", "heart pain"},
	"fever":               {"fever", "high temperature", "feeling hot", "chills and fever"},
	"shortness_of_breath": {"shortness of breath", "can't breathe", "hard to breathe", "breathing difficulty"},
	"abdominal_pain":      {"abdominal pain", "stomach pain", "belly pain", "stomach ache"},
}

// SymptomAssessmentTool maps reported symptoms to possible conditions
// and flags situations needing immediate care.
type SymptomAssessmentTool struct {
	dataDir string
}

// NewSymptomAssessmentTool creates the symptom assessment tool.
func NewSymptomAssessmentTool(dataDir string) *SymptomAssessmentTool {
	return &SymptomAssessmentTool{dataDir: filepath.Join(dataDir, "symptom_records")}
}

func (t *SymptomAssessmentTool) Name() string { return "assess_symptoms" }

func (t *SymptomAssessmentTool) Description() string {
	return "Analyze reported symptoms, suggest possible diagnoses, and determine if immediate care is needed"
}

func (t *SymptomAssessmentTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"patient_id": map[string]interface{}{
				"type":        "string",
				"description": "The unique identifier for the patient",
			},
			"symptoms": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "List of symptoms the patient is experiencing",
			},
			"duration": map[string]interface{}{
				"type":        "string",
				"description": "How long the patient has been experiencing the symptoms",
			},
			"severity": map[string]interface{}{
				"type":        "number",
				"description": "Patient-reported severity from 1-10",
			},
			"action": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"assess", "record", "both"},
				"description": "Whether to assess symptoms, record them, or both",
			},
		},
		"required": []string{"patient_id", "symptoms"},
	}
}

func (t *SymptomAssessmentTool) Run(ctx context.Context, args map[string]interface{}, convCtx []inference.Message) (tool.Result, error) {
	patientID := stringArg(args, "patient_id")
	if patientID == "" {
		return tool.Err("No patient ID provided"), nil
	}
	symptoms := stringListArg(args, "symptoms")
	if len(symptoms) == 0 {
		return tool.Err("No symptoms provided for assessment"), nil
	}

	duration := stringArg(args, "duration")
	if duration == "" {
		duration = "unknown"
	}
	severity, _ := args["severity"].(float64)
	action := stringArg(args, "action")
	if action == "" {
		action = "both"
	}

	normalized := normalizeSymptoms(symptoms)

	var possible []condition
	var emergencyFlags []string
	maxSeverity := "low"
	seen := map[string]bool{}

	for _, symptom := range normalized {
		for _, c := range symptomConditions[symptom] {
			if !seen[c.Name] {
				seen[c.Name] = true
				possible = append(possible, c)
			}
			for _, f := range c.Flags {
				if f == "urgent" || f == "emergency" {
					emergencyFlags = append(emergencyFlags, fmt.Sprintf("%s - %s", c.Name, symptom))
					break
				}
			}
			if c.Severity == "high" {
				maxSeverity = "high"
			} else if c.Severity == "medium" && maxSeverity == "low" {
				maxSeverity = "medium"
			}
		}
	}

	severityRank := map[string]int{"high": 0, "medium": 1, "low": 2}
	sort.SliceStable(possible, func(i, j int) bool {
		return severityRank[possible[i].Severity] < severityRank[possible[j].Severity]
	})

	needsImmediateCare := maxSeverity == "high" || len(emergencyFlags) > 0

	var recommendations []string
	switch {
	case needsImmediateCare:
		recommendations = append(recommendations, "Seek immediate medical attention")
	case maxSeverity == "medium":
		recommendations = append(recommendations, "Schedule appointment with healthcare provider soon")
	default:
		recommendations = append(recommendations,
			"Monitor symptoms",
			"Use over-the-counter remedies as appropriate")
	}

	conditions := make([]map[string]interface{}, len(possible))
	for i, c := range possible {
		flags := c.Flags
		if flags == nil {
			flags = []string{}
		}
		conditions[i] = map[string]interface{}{
			"condition": c.Name,
			"severity":  c.Severity,
			"flags":     flags,
		}
	}
	if emergencyFlags == nil {
		emergencyFlags = []string{}
	}

	assessment := tool.Result{
		"patient_id":           patientID,
		"symptoms":             symptoms,
		"normalized_symptoms":  normalized,
		"duration":             duration,
		"reported_severity":    severity,
		"timestamp":            nowISO(),
		"possible_conditions":  conditions,
		"max_severity":         maxSeverity,
		"emergency_flags":      emergencyFlags,
		"needs_immediate_care": needsImmediateCare,
		"recommendations":      recommendations,
	}

	if action == "record" || action == "both" {
		path := filepath.Join(t.dataDir,
			fmt.Sprintf("%s_%s.json", patientID, time.Now().Format("20060102_150405")))
		if err := saveJSON(path, map[string]interface{}(assessment)); err != nil {
			return nil, fmt.Errorf("save assessment: %w", err)
		}
	}

	return assessment, nil
}

// normalizeSymptoms maps free-text symptom reports onto the known
// categories.
func normalizeSymptoms(symptoms []string) []string {
	var normalized []string
	seen := map[string]bool{}
	for _, s := range symptoms {
		s = strings.ToLower(s)
		for category, variants := range symptomVariants {
			for _, v := range variants {
				if strings.Contains(s, v) && !seen[category] {
					seen[category] = true
					normalized = append(normalized, category)
				}
			}
		}
	}
	if normalized == nil {
		normalized = []string{}
	}
	return normalized
}

var _ tool.Tool = (*SymptomAssessmentTool)(nil)
