package healthcare

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/medifox/go-medifox/pkg/inference"
	"github.com/medifox/go-medifox/pkg/tool"
)

var historyCategories = []string{
	"conditions", "surgeries", "allergies",
	"medications", "immunizations", "family_history",
}

// MedicalHistoryTool reads and writes the locally stored medical
// history document for a patient.
type MedicalHistoryTool struct {
	dataDir string
}

// NewMedicalHistoryTool creates the medical history tool.
func NewMedicalHistoryTool(dataDir string) *MedicalHistoryTool {
	return &MedicalHistoryTool{dataDir: filepath.Join(dataDir, "medical_records")}
}

func (t *MedicalHistoryTool) Name() string { return "manage_medical_history" }

func (t *MedicalHistoryTool) Description() string {
	return "Access or update patient medical history including past conditions, surgeries, allergies, and chronic conditions"
}

func (t *MedicalHistoryTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"patient_id": map[string]interface{}{
				"type":        "string",
				"description": "The unique identifier for the patient",
			},
			"action": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"get", "update", "add_record"},
				"description": "Whether to get existing history, update a category, or add a single record",
			},
			"category": map[string]interface{}{
				"type":        "string",
				"enum":        historyCategories,
				"description": "The category of medical history to update or add to",
			},
			"records": map[string]interface{}{
				"type":        "array",
				"description": "For update action: array of records to replace the entire category",
			},
			"record": map[string]interface{}{
				"type":        "object",
				"description": "For add_record action: single record to add to a category",
			},
		},
		"required": []string{"patient_id", "action"},
	}
}

func (t *MedicalHistoryTool) Run(ctx context.Context, args map[string]interface{}, convCtx []inference.Message) (tool.Result, error) {
	patientID := stringArg(args, "patient_id")
	if patientID == "" {
		return tool.Err("No patient ID provided"), nil
	}
	action := stringArg(args, "action")
	if action == "" {
		action = "get"
	}

	path := filepath.Join(t.dataDir, patientID+"_history.json")

	switch action {
	case "get":
		data, ok := loadJSON(path)
		if !ok {
			return tool.Result{
				"found":      false,
				"message":    "No medical history found for this patient.",
				"categories": historyCategories,
			}, nil
		}
		return tool.Result{"found": true, "data": data}, nil

	case "update":
		category := stringArg(args, "category")
		if category == "" {
			return tool.Err("No category specified for update"), nil
		}
		data := t.loadOrInit(path, patientID)
		updated, _ := args["records"].([]interface{})
		data[category] = updated
		data["updated_at"] = nowISO()
		if err := saveJSON(path, data); err != nil {
			return nil, fmt.Errorf("save history: %w", err)
		}
		return tool.Result{
			"success": true,
			"message": fmt.Sprintf("Medical history %s updated", category),
			"data":    data[category],
		}, nil

	case "add_record":
		category := stringArg(args, "category")
		record := objectArg(args, "record")
		if category == "" || len(record) == 0 {
			return tool.Err("Category and record are required for add_record"), nil
		}
		data := t.loadOrInit(path, patientID)
		record["recorded_at"] = nowISO()

		existing, _ := data[category].([]interface{})
		data[category] = append(existing, record)
		data["updated_at"] = nowISO()
		if err := saveJSON(path, data); err != nil {
			return nil, fmt.Errorf("save history: %w", err)
		}
		return tool.Result{
			"success": true,
			"message": fmt.Sprintf("Record added to %s", category),
			"data":    record,
		}, nil
	}

	return tool.Err("Invalid action. Use 'get', 'update', or 'add_record'."), nil
}

func (t *MedicalHistoryTool) loadOrInit(path, patientID string) map[string]interface{} {
	if data, ok := loadJSON(path); ok {
		return data
	}
	data := map[string]interface{}{
		"patient_id": patientID,
		"created_at": nowISO(),
	}
	for _, c := range historyCategories {
		data[c] = []interface{}{}
	}
	return data
}

var _ tool.Tool = (*MedicalHistoryTool)(nil)
