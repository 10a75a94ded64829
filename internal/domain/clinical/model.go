package clinical

import (
	"time"

	"github.com/google/uuid"
)

// MedicalRecord maps to the medical_record table. Records are an append-only
// history: once written they are never updated or deleted.
type MedicalRecord struct {
	ID           uuid.UUID `db:"id" json:"id"`
	PatientID    uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID     uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Symptoms     *string   `db:"symptoms" json:"symptoms,omitempty"`
	Diagnosis    *string   `db:"diagnosis" json:"diagnosis,omitempty"`
	Prescription *string   `db:"prescription" json:"prescription,omitempty"`
	Dose         *string   `db:"dose" json:"dose,omitempty"`
	RecordDate   time.Time `db:"record_date" json:"record_date"`
	ReportFile   *string   `db:"report_file" json:"report_file,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// PatientCondition maps to the patient_condition table. A condition is active
// while end_date is NULL; closing it sets end_date exactly once.
type PatientCondition struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	ConditionName string     `db:"condition_name" json:"condition_name"`
	StartDate     time.Time  `db:"start_date" json:"start_date"`
	EndDate       *time.Time `db:"end_date" json:"end_date,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// Active reports whether the condition is still ongoing.
func (c *PatientCondition) Active() bool { return c.EndDate == nil }
