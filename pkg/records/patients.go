package records

import (
	"context"
	"fmt"
	"net/url"
)

// AddPatient registers a new patient in the provider directory.
func (c *Client) AddPatient(ctx context.Context, patient map[string]interface{}) (map[string]interface{}, error) {
	return c.Request(ctx, "POST", "patients", patient, nil)
}

// SearchPatientByMobile looks a patient up by mobile number.
func (c *Client) SearchPatientByMobile(ctx context.Context, mobile string) (map[string]interface{}, error) {
	return c.Request(ctx, "GET", "patients/search", nil, url.Values{"mobile": {mobile}})
}

// GetPatientByID fetches a patient record.
func (c *Client) GetPatientByID(ctx context.Context, patientID string) (map[string]interface{}, error) {
	return c.Request(ctx, "GET", "patients/"+patientID, nil, nil)
}

// UpdatePatient updates an existing patient record.
func (c *Client) UpdatePatient(ctx context.Context, patientID string, patient map[string]interface{}) (map[string]interface{}, error) {
	return c.Request(ctx, "PUT", "patients/"+patientID, patient, nil)
}

// GetAppointmentSlots lists open slots for a doctor on a date.
func (c *Client) GetAppointmentSlots(ctx context.Context, doctorID, date string) (map[string]interface{}, error) {
	return c.Request(ctx, "GET", "appointments/slots", nil, url.Values{
		"doctor_id": {doctorID},
		"date":      {date},
	})
}

// BookAppointment books an appointment slot.
func (c *Client) BookAppointment(ctx context.Context, appointment map[string]interface{}) (map[string]interface{}, error) {
	return c.Request(ctx, "POST", "appointments", appointment, nil)
}

// RescheduleAppointment moves an existing appointment. The reschedule
// payload carries either a slot_id or doctor_id plus date and time.
func (c *Client) RescheduleAppointment(ctx context.Context, appointmentID string, reschedule map[string]interface{}) (map[string]interface{}, error) {
	if appointmentID == "" {
		return nil, fmt.Errorf("records: appointment_id is required for rescheduling")
	}
	return c.Request(ctx, "PUT", "appointments/"+appointmentID, reschedule, nil)
}

// GetAppointmentDetails fetches one appointment.
func (c *Client) GetAppointmentDetails(ctx context.Context, appointmentID string) (map[string]interface{}, error) {
	return c.Request(ctx, "GET", "appointments/"+appointmentID, nil, nil)
}

// CancelAppointment cancels an appointment with a reason.
func (c *Client) CancelAppointment(ctx context.Context, appointmentID, reason string) (map[string]interface{}, error) {
	return c.Request(ctx, "DELETE", "appointments/"+appointmentID, map[string]interface{}{
		"cancellation_reason": reason,
	}, nil)
}
