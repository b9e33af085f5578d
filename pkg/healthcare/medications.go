package healthcare

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/medifox/go-medifox/pkg/inference"
	"github.com/medifox/go-medifox/pkg/tool"
)

// drugInteractions lists known interacting agents per drug. A real
// deployment would query a drug-interaction database.
var drugInteractions = map[string][]string{
	"warfarin":      {"aspirin", "ibuprofen", "naproxen", "clopidogrel", "fluconazole"},
	"simvastatin":   {"clarithromycin", "itraconazole", "ketoconazole", "grapefruit juice"},
	"lisinopril":    {"spironolactone", "potassium supplements", "lithium"},
	"metformin":     {"contrast agents", "alcohol"},
	"levothyroxine": {"calcium", "iron", "antacids"},
}

// MedicationTool tracks prescriptions, flags drug interactions, and
// builds daily dosing schedules from the local medication records.
type MedicationTool struct {
	dataDir string
}

// NewMedicationTool creates the medication management tool.
func NewMedicationTool(dataDir string) *MedicationTool {
	return &MedicationTool{dataDir: filepath.Join(dataDir, "medications")}
}

func (t *MedicationTool) Name() string { return "manage_medications" }

func (t *MedicationTool) Description() string {
	return "Track prescriptions, medication schedules, and provide dosage and interaction information"
}

func (t *MedicationTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"patient_id": map[string]interface{}{
				"type":        "string",
				"description": "The unique identifier for the patient",
			},
			"action": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"get", "add", "update", "remove", "check_interactions", "generate_schedule"},
				"description": "The action to perform on medications",
			},
			"medication": map[string]interface{}{
				"type":        "object",
				"description": "For add/update: Object with medication details including name, dosage, frequency, etc.",
			},
			"medication_id": map[string]interface{}{
				"type":        "string",
				"description": "For update/remove: ID of the medication to update or remove",
			},
			"medications": map[string]interface{}{
				"type":        "array",
				"description": "For check_interactions: List of medication names to check for interactions",
			},
		},
		"required": []string{"patient_id", "action"},
	}
}

func (t *MedicationTool) Run(ctx context.Context, args map[string]interface{}, convCtx []inference.Message) (tool.Result, error) {
	patientID := stringArg(args, "patient_id")
	if patientID == "" {
		return tool.Err("No patient ID provided"), nil
	}
	action := stringArg(args, "action")
	if action == "" {
		action = "get"
	}

	path := filepath.Join(t.dataDir, patientID+"_medications.json")

	switch action {
	case "get":
		return t.get(path), nil
	case "add":
		return t.add(path, patientID, objectArg(args, "medication"))
	case "update":
		return t.update(path, stringArg(args, "medication_id"), objectArg(args, "medication"))
	case "remove":
		return t.remove(path, stringArg(args, "medication_id"))
	case "check_interactions":
		return t.checkInteractions(path, args), nil
	case "generate_schedule":
		return t.generateSchedule(path), nil
	}
	return tool.Err("Invalid action"), nil
}

func (t *MedicationTool) get(path string) tool.Result {
	data, ok := loadJSON(path)
	if !ok {
		return tool.Result{
			"found":       false,
			"message":     "No medications found for this patient.",
			"medications": []interface{}{},
		}
	}

	meds := objectList(data, "medications")
	now := time.Now()
	for _, med := range meds {
		endRaw, _ := med["end_date"].(string)
		if endRaw == "" {
			continue
		}
		end, err := time.Parse(time.RFC3339, endRaw)
		if err != nil {
			continue
		}
		// Within 7 days of running out means a refill is due.
		if end.Sub(now) <= 7*24*time.Hour {
			med["needs_refill"] = true
			med["days_until_refill"] = int(end.Sub(now).Hours() / 24)
		} else {
			med["needs_refill"] = false
		}
	}

	return tool.Result{"found": true, "medications": meds}
}

func (t *MedicationTool) add(path, patientID string, medication map[string]interface{}) (tool.Result, error) {
	name, _ := medication["name"].(string)
	if name == "" {
		return tool.Err("Valid medication details required"), nil
	}

	data, ok := loadJSON(path)
	if !ok {
		data = map[string]interface{}{
			"patient_id":  patientID,
			"medications": []interface{}{},
			"created_at":  nowISO(),
		}
	}

	meds := objectList(data, "medications")
	medID := fmt.Sprintf("med_%d_%s", len(meds)+1, strings.ReplaceAll(strings.ToLower(name), " ", "_"))
	medication["id"] = medID
	medication["added_on"] = nowISO()

	meds = append(meds, medication)
	data["medications"] = toIfaceList(meds)
	data["updated_at"] = nowISO()

	if err := saveJSON(path, data); err != nil {
		return nil, fmt.Errorf("save medications: %w", err)
	}

	return tool.Result{
		"success":      true,
		"message":      "Medication added",
		"medication":   medication,
		"interactions": interactionsForNew(name, meds),
	}, nil
}

func (t *MedicationTool) update(path, medicationID string, updated map[string]interface{}) (tool.Result, error) {
	if medicationID == "" || len(updated) == 0 {
		return tool.Err("Medication ID and updated details are required"), nil
	}
	data, ok := loadJSON(path)
	if !ok {
		return tool.Err("No medications found for this patient"), nil
	}

	meds := objectList(data, "medications")
	for _, med := range meds {
		if med["id"] != medicationID {
			continue
		}
		for k, v := range updated {
			med[k] = v
		}
		med["last_updated"] = nowISO()
		data["medications"] = toIfaceList(meds)
		data["updated_at"] = nowISO()
		if err := saveJSON(path, data); err != nil {
			return nil, fmt.Errorf("save medications: %w", err)
		}
		return tool.Result{"success": true, "message": "Medication updated", "medication": med}, nil
	}
	return tool.Err("Medication not found"), nil
}

func (t *MedicationTool) remove(path, medicationID string) (tool.Result, error) {
	if medicationID == "" {
		return tool.Err("Medication ID is required"), nil
	}
	data, ok := loadJSON(path)
	if !ok {
		return tool.Err("No medications found for this patient"), nil
	}

	meds := objectList(data, "medications")
	for i, med := range meds {
		if med["id"] != medicationID {
			continue
		}
		meds = append(meds[:i], meds[i+1:]...)
		data["medications"] = toIfaceList(meds)
		data["updated_at"] = nowISO()
		if err := saveJSON(path, data); err != nil {
			return nil, fmt.Errorf("save medications: %w", err)
		}
		return tool.Result{"success": true, "message": "Medication removed", "removed": med}, nil
	}
	return tool.Err("Medication not found"), nil
}

func (t *MedicationTool) checkInteractions(path string, args map[string]interface{}) tool.Result {
	names := stringListArg(args, "medications")
	if len(names) == 0 {
		data, ok := loadJSON(path)
		if !ok {
			return tool.Err("No medications provided or found for this patient")
		}
		for _, med := range objectList(data, "medications") {
			if name, _ := med["name"].(string); name != "" {
				names = append(names, name)
			}
		}
	}

	for i, n := range names {
		names[i] = strings.ToLower(n)
	}

	interactions := []string{}
	for i, med1 := range names {
		for _, med2 := range names[i+1:] {
			if containsDrug(drugInteractions[med1], med2) {
				interactions = append(interactions, fmt.Sprintf("%s interacts with %s", med1, med2))
			} else if containsDrug(drugInteractions[med2], med1) {
				interactions = append(interactions, fmt.Sprintf("%s interacts with %s", med2, med1))
			}
		}
	}

	return tool.Result{
		"interactions_found":  len(interactions) > 0,
		"interactions":        interactions,
		"medications_checked": names,
	}
}

func (t *MedicationTool) generateSchedule(path string) tool.Result {
	data, ok := loadJSON(path)
	if !ok {
		return tool.Err("No medications found for this patient")
	}
	meds := objectList(data, "medications")

	schedule := map[string][]string{
		"morning":   {},
		"afternoon": {},
		"evening":   {},
		"bedtime":   {},
		"as_needed": {},
	}

	for _, med := range meds {
		freq, _ := med["frequency"].(string)
		if freq == "" {
			continue
		}
		freq = strings.ToLower(freq)
		name, _ := med["name"].(string)
		dosage, _ := med["dosage"].(string)
		instructions, _ := med["instructions"].(string)
		entry := strings.TrimSpace(fmt.Sprintf("%s %s %s", name, dosage, instructions))

		if strings.Contains(freq, "morning") || strings.Contains(freq, "breakfast") || strings.Contains(freq, "am") {
			schedule["morning"] = append(schedule["morning"], entry)
		}
		if strings.Contains(freq, "afternoon") || strings.Contains(freq, "lunch") || strings.Contains(freq, "noon") {
			schedule["afternoon"] = append(schedule["afternoon"], entry)
		}
		if strings.Contains(freq, "evening") || strings.Contains(freq, "dinner") || strings.Contains(freq, "pm") {
			schedule["evening"] = append(schedule["evening"], entry)
		}
		if strings.Contains(freq, "bedtime") || strings.Contains(freq, "night") {
			schedule["bedtime"] = append(schedule["bedtime"], entry)
		}
		if strings.Contains(freq, "as needed") || strings.Contains(freq, "prn") {
			schedule["as_needed"] = append(schedule["as_needed"], entry)
		}
	}

	return tool.Result{
		"daily_schedule":   schedule,
		"medication_count": len(meds),
	}
}

// interactionsForNew flags interactions between a newly added drug and
// the patient's current list.
func interactionsForNew(newMed string, current []map[string]interface{}) []string {
	interactions := []string{}
	newLower := strings.ToLower(newMed)
	for _, med := range current {
		name, _ := med["name"].(string)
		nameLower := strings.ToLower(name)
		if nameLower == newLower {
			continue
		}
		if containsDrug(drugInteractions[newLower], nameLower) {
			interactions = append(interactions, fmt.Sprintf("%s interacts with %s", newMed, name))
		}
		if containsDrug(drugInteractions[nameLower], newLower) {
			interactions = append(interactions, fmt.Sprintf("%s interacts with %s", name, newMed))
		}
	}
	return interactions
}

func containsDrug(list []string, drug string) bool {
	for _, d := range list {
		if d == drug {
			return true
		}
	}
	return false
}

var _ tool.Tool = (*MedicationTool)(nil)
