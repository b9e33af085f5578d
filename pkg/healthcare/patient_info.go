package healthcare

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/medifox/go-medifox/internal/log"
	"github.com/medifox/go-medifox/pkg/inference"
	"github.com/medifox/go-medifox/pkg/records"
	"github.com/medifox/go-medifox/pkg/tool"
)

// PatientInfoTool gets or updates patient demographic information,
// preferring the external record provider and falling back to the
// local cache.
type PatientInfoTool struct {
	dataDir string
	records *records.Client
}

// NewPatientInfoTool creates the patient info tool.
func NewPatientInfoTool(deps Deps) *PatientInfoTool {
	return &PatientInfoTool{
		dataDir: filepath.Join(deps.DataDir, "patients"),
		records: deps.Records,
	}
}

func (t *PatientInfoTool) Name() string { return "get_patient_info" }

func (t *PatientInfoTool) Description() string {
	return "Get or update patient personal and demographic information"
}

func (t *PatientInfoTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"patient_id": map[string]interface{}{
				"type":        "string",
				"description": "The unique identifier for the patient",
			},
			"mobile_number": map[string]interface{}{
				"type":        "string",
				"description": "Patient's mobile number to search by if ID is not known",
			},
			"action": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"get", "update"},
				"description": "Whether to get existing info or update with new info",
			},
			"fields": map[string]interface{}{
				"type":        "object",
				"description": "For update action: fields to update and their new values",
			},
		},
		"required": []string{"action"},
		"anyOf": []interface{}{
			map[string]interface{}{"required": []string{"patient_id"}},
			map[string]interface{}{"required": []string{"mobile_number"}},
		},
	}
}

func (t *PatientInfoTool) Run(ctx context.Context, args map[string]interface{}, convCtx []inference.Message) (tool.Result, error) {
	patientID := stringArg(args, "patient_id")
	mobile := stringArg(args, "mobile_number")
	action := stringArg(args, "action")
	if action == "" {
		action = "get"
	}

	if patientID == "" && mobile == "" {
		return tool.Err("No patient ID or mobile number provided"), nil
	}

	switch action {
	case "get":
		return t.get(ctx, patientID, mobile), nil
	case "update":
		return t.update(ctx, patientID, mobile, objectArg(args, "fields")), nil
	}
	return tool.Err("Invalid action. Use 'get' or 'update'."), nil
}

func (t *PatientInfoTool) get(ctx context.Context, patientID, mobile string) tool.Result {
	if t.records != nil {
		if data, ok := t.fetchRemote(ctx, patientID, mobile); ok {
			return tool.Result{
				"found":  true,
				"data":   data,
				"source": "eka_care",
			}
		}
	}

	key := patientID
	if key == "" {
		key = mobile
	}
	if data, ok := loadJSON(t.localPath(key)); ok {
		required := []string{"name", "age", "gender", "contact_number", "address"}
		var missing []string
		for _, f := range required {
			if data[f] == nil || data[f] == "" {
				missing = append(missing, f)
			}
		}
		return tool.Result{
			"found":          true,
			"data":           data,
			"missing_fields": missing,
			"complete":       len(missing) == 0,
			"source":         "local_storage",
		}
	}

	return tool.Result{
		"found":   false,
		"message": "Patient not found. Please collect basic information.",
		"required_fields": []string{
			"name", "age", "gender", "contact_number",
			"address", "emergency_contact", "blood_type",
		},
	}
}

func (t *PatientInfoTool) update(ctx context.Context, patientID, mobile string, fields map[string]interface{}) tool.Result {
	if len(fields) == 0 {
		return tool.Err("No fields provided for update")
	}

	if t.records != nil {
		if result, ok := t.updateRemote(ctx, patientID, mobile, fields); ok {
			return result
		}
	}

	// Local fallback: create or merge the cached record.
	key := patientID
	if key == "" {
		key = mobile
	}
	data, ok := loadJSON(t.localPath(key))
	if !ok {
		data = map[string]interface{}{"id": key, "created_at": nowISO()}
	}
	for k, v := range fields {
		data[k] = v
	}
	data["updated_at"] = nowISO()

	if err := saveJSON(t.localPath(key), data); err != nil {
		return tool.Err(fmt.Sprintf("Failed to save patient record: %v", err))
	}

	result := tool.Result{
		"success": true,
		"message": "Patient information updated in local storage",
		"data":    data,
	}
	if t.records != nil {
		result["message"] = "Patient information updated in local storage (Eka Care update failed)"
	}
	return result
}

// fetchRemote pulls a patient from the record provider and maps it to
// the internal shape.
func (t *PatientInfoTool) fetchRemote(ctx context.Context, patientID, mobile string) (map[string]interface{}, bool) {
	var resp map[string]interface{}
	var err error
	if patientID != "" {
		resp, err = t.records.GetPatientByID(ctx, patientID)
	} else {
		resp, err = t.records.SearchPatientByMobile(ctx, mobile)
	}
	if err != nil {
		log.Warn("record provider lookup failed, using local cache", "error", err)
		return nil, false
	}

	data := resp["data"]
	if data == nil {
		return nil, false
	}
	// Mobile search returns a list; take the first match.
	if list, ok := data.([]interface{}); ok {
		if len(list) == 0 {
			return nil, false
		}
		data = list[0]
	}
	obj, ok := data.(map[string]interface{})
	if !ok {
		return nil, false
	}
	return mapProviderPatient(obj), true
}

// updateRemote creates or updates the patient with the provider and
// refreshes the local cache on success.
func (t *PatientInfoTool) updateRemote(ctx context.Context, patientID, mobile string, fields map[string]interface{}) (tool.Result, bool) {
	payload := mapInternalPatient(fields)

	var resp map[string]interface{}
	var err error
	if patientID != "" {
		payload["id"] = patientID
		resp, err = t.records.UpdatePatient(ctx, patientID, payload)
	} else {
		resp, err = t.records.AddPatient(ctx, payload)
	}
	if err != nil {
		log.Warn("record provider update failed, using local cache", "error", err)
		return nil, false
	}

	obj, ok := resp["data"].(map[string]interface{})
	if !ok {
		return nil, false
	}
	updated := mapProviderPatient(obj)

	if id, _ := updated["id"].(string); id != "" {
		if err := saveJSON(t.localPath(id), updated); err != nil {
			log.Warn("failed to refresh local patient cache", "error", err)
		}
	}

	return tool.Result{
		"success": true,
		"message": "Patient information updated in Eka Care",
		"data":    updated,
	}, true
}

func (t *PatientInfoTool) localPath(key string) string {
	return filepath.Join(t.dataDir, key+".json")
}

// mapProviderPatient converts the provider's patient shape to ours.
func mapProviderPatient(p map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"id":                p["id"],
		"name":              p["name"],
		"age":               p["age"],
		"gender":            p["gender"],
		"contact_number":    p["mobile"],
		"address":           p["address"],
		"emergency_contact": p["emergency_contact"],
		"blood_type":        p["blood_group"],
		"allergies":         p["allergies"],
		"updated_at":        nowISO(),
	}
}

// mapInternalPatient converts our patient fields to the provider's
// shape.
func mapInternalPatient(fields map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{
		"name":        fields["name"],
		"gender":      fields["gender"],
		"mobile":      fields["contact_number"],
		"age":         fields["age"],
		"blood_group": fields["blood_type"],
	}
	if addr, ok := fields["address"]; ok {
		if s, isStr := addr.(string); isStr {
			out["address"] = map[string]interface{}{"full_address": s}
		} else {
			out["address"] = addr
		}
	}
	if ec, ok := fields["emergency_contact"]; ok {
		out["emergency_contact"] = ec
	}
	return out
}

var _ tool.Tool = (*PatientInfoTool)(nil)
