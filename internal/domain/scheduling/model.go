package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Appointment statuses. New bookings always enter at StatusPending and only
// the appointment's doctor moves them along.
const (
	StatusPending   = "pending_confirmation"
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Consultation modes.
const (
	ModeInClinic  = "in_clinic"
	ModeVideoCall = "video_call"
	ModeAudioCall = "audio_call"
)

// Appointment maps to the appointment table.
type Appointment struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	StartsAt  time.Time `db:"starts_at" json:"starts_at"`
	Reason    string    `db:"reason" json:"reason"`
	Status    string    `db:"status" json:"status"`
	Mode      string    `db:"mode" json:"mode"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Upcoming reports whether the appointment is in the future and not yet
// concluded. The assistant uses this view when assembling patient context.
func (a *Appointment) Upcoming(now time.Time) bool {
	return a.StartsAt.After(now) && (a.Status == StatusPending || a.Status == StatusScheduled)
}
