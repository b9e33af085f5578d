package healthcare

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/medifox/go-medifox/internal/log"
	"github.com/medifox/go-medifox/pkg/inference"
	"github.com/medifox/go-medifox/pkg/records"
	"github.com/medifox/go-medifox/pkg/tool"
)

// AppointmentTool schedules, reschedules, and cancels appointments
// through the record provider, mirroring every change into the local
// cache and operating purely locally when the provider is down.
type AppointmentTool struct {
	dataDir string
	records *records.Client
}

// NewAppointmentTool creates the appointment tool.
func NewAppointmentTool(deps Deps) *AppointmentTool {
	return &AppointmentTool{
		dataDir: filepath.Join(deps.DataDir, "appointments"),
		records: deps.Records,
	}
}

func (t *AppointmentTool) Name() string { return "manage_appointments" }

func (t *AppointmentTool) Description() string {
	return "Schedule, reschedule, or cancel healthcare appointments"
}

func (t *AppointmentTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"patient_id": map[string]interface{}{
				"type":        "string",
				"description": "ID of the patient",
			},
			"action": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"get", "schedule", "reschedule", "cancel"},
				"description": "Action to perform: get appointments, schedule, reschedule, or cancel",
			},
			"doctor_id": map[string]interface{}{
				"type":        "string",
				"description": "ID of the doctor (for getting available slots)",
			},
			"date": map[string]interface{}{
				"type":        "string",
				"description": "Date in YYYY-MM-DD format (for getting available slots)",
			},
			"appointment_id": map[string]interface{}{
				"type":        "string",
				"description": "ID of appointment for reschedule/cancel operations",
			},
			"details": map[string]interface{}{
				"type":        "object",
				"description": "Appointment details for scheduling or rescheduling: doctor_id, slot_id, date, time, datetime, reason, notes",
			},
			"date_range": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"start": map[string]interface{}{"type": "string", "description": "Start date (ISO format)"},
					"end":   map[string]interface{}{"type": "string", "description": "End date (ISO format)"},
				},
				"description": "Optional date range for filtering appointments",
			},
			"reason": map[string]interface{}{
				"type":        "string",
				"description": "Reason for cancellation",
			},
		},
		"required": []string{"patient_id", "action"},
	}
}

func (t *AppointmentTool) Run(ctx context.Context, args map[string]interface{}, convCtx []inference.Message) (tool.Result, error) {
	patientID := stringArg(args, "patient_id")
	if patientID == "" {
		return tool.Err("No patient ID provided"), nil
	}
	action := stringArg(args, "action")
	if action == "" {
		action = "get"
	}

	path := filepath.Join(t.dataDir, patientID+"_appointments.json")

	switch action {
	case "get":
		return t.get(ctx, path, args), nil
	case "schedule":
		return t.schedule(ctx, path, patientID, objectArg(args, "details"))
	case "reschedule":
		return t.reschedule(ctx, path, stringArg(args, "appointment_id"), objectArg(args, "details"))
	case "cancel":
		reason := stringArg(args, "reason")
		if reason == "" {
			reason = "No reason provided"
		}
		return t.cancel(ctx, path, stringArg(args, "appointment_id"), reason)
	}
	return tool.Err("Invalid action"), nil
}

func (t *AppointmentTool) get(ctx context.Context, path string, args map[string]interface{}) tool.Result {
	// With a doctor and date the provider's slot listing is the answer.
	doctorID := stringArg(args, "doctor_id")
	if t.records != nil && doctorID != "" {
		date := stringArg(args, "date")
		if date == "" {
			date = time.Now().Format("2006-01-02")
		}
		resp, err := t.records.GetAppointmentSlots(ctx, doctorID, date)
		if err == nil {
			if slots, ok := resp["data"].([]interface{}); ok {
				appointments := make([]map[string]interface{}, 0, len(slots))
				for _, s := range slots {
					if m, isObj := s.(map[string]interface{}); isObj {
						appointments = append(appointments, mapProviderSlot(m))
					}
				}
				return tool.Result{
					"found":        len(appointments) > 0,
					"appointments": appointments,
					"source":       "eka_care",
					"date":         date,
					"doctor_id":    doctorID,
				}
			}
		} else {
			log.Warn("slot lookup failed, using local cache", "error", err)
		}
	}

	data, ok := loadJSON(path)
	if !ok {
		return tool.Result{
			"found":        false,
			"message":      "No appointments found for this patient",
			"appointments": []interface{}{},
		}
	}
	appointments := objectList(data, "appointments")

	if dr := objectArg(args, "date_range"); dr != nil {
		start := parseTimeOr(stringArg(dr, "start"), time.Time{})
		end := parseTimeOr(stringArg(dr, "end"), time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC))

		filtered := []map[string]interface{}{}
		for _, appt := range appointments {
			when := parseTimeOr(stringArg(appt, "datetime"), time.Time{})
			if !when.Before(start) && !when.After(end) {
				filtered = append(filtered, appt)
			}
		}
		return tool.Result{
			"found":        len(filtered) > 0,
			"appointments": filtered,
			"filtered":     true,
			"source":       "local_storage",
			"total_count":  len(appointments),
		}
	}

	sort.SliceStable(appointments, func(i, j int) bool {
		return stringArg(appointments[i], "datetime") < stringArg(appointments[j], "datetime")
	})
	now := time.Now()
	for _, appt := range appointments {
		when := parseTimeOr(stringArg(appt, "datetime"), time.Time{})
		upcoming := when.After(now)
		appt["is_upcoming"] = upcoming
		if upcoming {
			appt["days_away"] = int(when.Sub(now).Hours() / 24)
		}
	}

	return tool.Result{
		"found":        true,
		"appointments": appointments,
		"source":       "local_storage",
	}
}

func (t *AppointmentTool) schedule(ctx context.Context, path, patientID string, details map[string]interface{}) (tool.Result, error) {
	if len(details) == 0 {
		return tool.Err("Appointment details must include datetime and doctor_id"), nil
	}
	slotID := stringArg(details, "slot_id")
	doctorID := stringArg(details, "doctor_id")
	date := stringArg(details, "date")
	timeOfDay := stringArg(details, "time")
	if slotID == "" && (doctorID == "" || date == "" || timeOfDay == "") {
		return tool.Err("Appointment requires either a slot_id or doctor_id, date, and time"), nil
	}

	if t.records != nil {
		payload := map[string]interface{}{"patient_id": patientID}
		if slotID != "" {
			payload["slot_id"] = slotID
		} else {
			payload["doctor_id"] = doctorID
			payload["appointment_date"] = date
			payload["appointment_time"] = timeOfDay
		}
		if r, ok := details["reason"]; ok {
			payload["reason"] = r
		}
		if n, ok := details["notes"]; ok {
			payload["notes"] = n
		}

		resp, err := t.records.BookAppointment(ctx, payload)
		if err == nil {
			if obj, isObj := resp["data"].(map[string]interface{}); isObj {
				appt := mapProviderAppointment(obj)
				t.appendLocal(path, patientID, appt)
				return tool.Result{
					"success":     true,
					"message":     "Appointment scheduled with Eka Care",
					"appointment": appt,
					"source":      "eka_care",
				}, nil
			}
		}
		log.Warn("provider booking failed, scheduling locally", "error", err)
	}

	data, ok := loadJSON(path)
	if !ok {
		data = map[string]interface{}{
			"patient_id":   patientID,
			"appointments": []interface{}{},
			"created_at":   nowISO(),
		}
	}
	appointments := objectList(data, "appointments")

	appt := map[string]interface{}{
		"id":         fmt.Sprintf("appt_%d_%s", len(appointments)+1, time.Now().Format("20060102150405")),
		"status":     "scheduled",
		"created_at": nowISO(),
	}
	for k, v := range details {
		appt[k] = v
	}

	appointments = append(appointments, appt)
	data["appointments"] = toIfaceList(appointments)
	data["updated_at"] = nowISO()
	if err := saveJSON(path, data); err != nil {
		return nil, fmt.Errorf("save appointments: %w", err)
	}

	result := tool.Result{
		"success":     true,
		"message":     "Appointment scheduled locally",
		"appointment": appt,
		"source":      "local_storage",
	}
	if t.records != nil {
		result["message"] = "Appointment scheduled locally (Eka Care booking failed)"
	}
	return result, nil
}

func (t *AppointmentTool) reschedule(ctx context.Context, path, appointmentID string, details map[string]interface{}) (tool.Result, error) {
	if appointmentID == "" || len(details) == 0 {
		return tool.Err("Appointment ID and new details are required"), nil
	}

	if t.records != nil {
		payload := map[string]interface{}{}
		if slotID := stringArg(details, "slot_id"); slotID != "" {
			payload["slot_id"] = slotID
		} else {
			payload["doctor_id"] = details["doctor_id"]
			payload["appointment_date"] = details["date"]
			payload["appointment_time"] = details["time"]
		}
		resp, err := t.records.RescheduleAppointment(ctx, appointmentID, payload)
		if err == nil {
			if obj, isObj := resp["data"].(map[string]interface{}); isObj {
				appt := mapProviderAppointment(obj)
				t.updateLocal(path, appointmentID, func(local map[string]interface{}) {
					prev := local["datetime"]
					for k, v := range appt {
						if k != "id" {
							local[k] = v
						}
					}
					local["status"] = "rescheduled"
					local["previous_datetime"] = prev
					local["rescheduled_at"] = nowISO()
				})
				return tool.Result{
					"success":     true,
					"message":     "Appointment rescheduled with Eka Care",
					"appointment": appt,
					"source":      "eka_care",
				}, nil
			}
		}
		log.Warn("provider reschedule failed, updating locally", "error", err)
	}

	var updated map[string]interface{}
	found := t.updateLocal(path, appointmentID, func(local map[string]interface{}) {
		prev := local["datetime"]
		for k, v := range details {
			local[k] = v
		}
		local["status"] = "rescheduled"
		local["previous_datetime"] = prev
		local["rescheduled_at"] = nowISO()
		updated = local
	})
	if !found {
		return tool.Err("Appointment not found in local storage"), nil
	}
	return tool.Result{
		"success":     true,
		"message":     "Appointment rescheduled locally",
		"appointment": updated,
		"source":      "local_storage",
	}, nil
}

func (t *AppointmentTool) cancel(ctx context.Context, path, appointmentID, reason string) (tool.Result, error) {
	if appointmentID == "" {
		return tool.Err("Appointment ID is required"), nil
	}

	if t.records != nil {
		resp, err := t.records.CancelAppointment(ctx, appointmentID, reason)
		if err == nil {
			if obj, isObj := resp["data"].(map[string]interface{}); isObj {
				appt := mapProviderAppointment(obj)
				t.updateLocal(path, appointmentID, func(local map[string]interface{}) {
					local["status"] = "cancelled"
					local["cancellation_reason"] = reason
					local["cancelled_at"] = nowISO()
				})
				return tool.Result{
					"success":     true,
					"message":     "Appointment cancelled in Eka Care",
					"appointment": appt,
					"source":      "eka_care",
				}, nil
			}
		}
		log.Warn("provider cancellation failed, cancelling locally", "error", err)
	}

	var cancelled map[string]interface{}
	found := t.updateLocal(path, appointmentID, func(local map[string]interface{}) {
		local["status"] = "cancelled"
		local["cancellation_reason"] = reason
		local["cancelled_at"] = nowISO()
		cancelled = local
	})
	if !found {
		return tool.Err("Appointment not found in local storage"), nil
	}
	return tool.Result{
		"success":     true,
		"message":     "Appointment cancelled locally",
		"appointment": cancelled,
		"source":      "local_storage",
	}, nil
}

// appendLocal adds an appointment to the patient's local cache file.
func (t *AppointmentTool) appendLocal(path, patientID string, appt map[string]interface{}) {
	data, ok := loadJSON(path)
	if !ok {
		data = map[string]interface{}{
			"patient_id":   patientID,
			"appointments": []interface{}{},
			"created_at":   nowISO(),
		}
	}
	appointments := objectList(data, "appointments")
	appointments = append(appointments, appt)
	data["appointments"] = toIfaceList(appointments)
	data["updated_at"] = nowISO()
	if err := saveJSON(path, data); err != nil {
		log.Warn("failed to update local appointment cache", "error", err)
	}
}

// updateLocal applies fn to the matching appointment in the cache.
// Returns false when no appointment matched.
func (t *AppointmentTool) updateLocal(path, appointmentID string, fn func(map[string]interface{})) bool {
	data, ok := loadJSON(path)
	if !ok {
		return false
	}
	appointments := objectList(data, "appointments")
	for _, appt := range appointments {
		if appt["id"] == appointmentID || appt["eka_id"] == appointmentID {
			fn(appt)
			data["appointments"] = toIfaceList(appointments)
			data["updated_at"] = nowISO()
			if err := saveJSON(path, data); err != nil {
				log.Warn("failed to update local appointment cache", "error", err)
			}
			return true
		}
	}
	return false
}

func parseTimeOr(s string, fallback time.Time) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return fallback
}

// mapProviderSlot converts a provider slot to the internal shape.
func mapProviderSlot(slot map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"id":        slot["id"],
		"eka_id":    slot["id"],
		"slot_id":   slot["slot_id"],
		"doctor_id": slot["doctor_id"],
		"date":      slot["date"],
		"time":      slot["time"],
		"datetime":  fmt.Sprintf("%vT%v", slot["date"], slot["time"]),
		"provider": map[string]interface{}{
			"id":        slot["doctor_id"],
			"name":      slot["doctor_name"],
			"specialty": slot["specialty"],
		},
		"status": "available",
		"source": "eka_care",
	}
}

// mapProviderAppointment converts a provider appointment to the
// internal shape.
func mapProviderAppointment(appt map[string]interface{}) map[string]interface{} {
	status := appt["status"]
	if status == nil {
		status = "scheduled"
	}
	return map[string]interface{}{
		"id":         appt["id"],
		"eka_id":     appt["id"],
		"patient_id": appt["patient_id"],
		"doctor_id":  appt["doctor_id"],
		"date":       appt["date"],
		"time":       appt["time"],
		"datetime":   fmt.Sprintf("%vT%v", appt["date"], appt["time"]),
		"provider": map[string]interface{}{
			"id":        appt["doctor_id"],
			"name":      appt["doctor_name"],
			"specialty": appt["specialty"],
		},
		"reason": appt["reason"],
		"notes":  appt["notes"],
		"status": status,
		"source": "eka_care",
	}
}

var _ tool.Tool = (*AppointmentTool)(nil)
