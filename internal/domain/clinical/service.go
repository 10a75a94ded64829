package clinical

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyClosed = errors.New("condition is already closed")
)

type Service struct {
	records    MedicalRecordRepository
	conditions ConditionRepository
}

func NewService(records MedicalRecordRepository, conditions ConditionRepository) *Service {
	return &Service{records: records, conditions: conditions}
}

// -- Medical records --

type RecordInput struct {
	PatientID    uuid.UUID `json:"patient_id"`
	Symptoms     *string   `json:"symptoms,omitempty"`
	Diagnosis    *string   `json:"diagnosis,omitempty"`
	Prescription *string   `json:"prescription,omitempty"`
	Dose         *string   `json:"dose,omitempty"`
	ReportFile   *string   `json:"report_file,omitempty"`
}

// CreateRecord writes a new entry into the patient's history on behalf of the
// given doctor. At least one clinical field must be present.
func (s *Service) CreateRecord(ctx context.Context, doctorID uuid.UUID, in RecordInput) (*MedicalRecord, error) {
	if in.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if doctorID == uuid.Nil {
		return nil, fmt.Errorf("doctor_id is required")
	}
	if empty(in.Symptoms) && empty(in.Diagnosis) && empty(in.Prescription) && in.ReportFile == nil {
		return nil, fmt.Errorf("record needs at least one of symptoms, diagnosis, prescription or a report file")
	}

	rec := &MedicalRecord{
		PatientID:    in.PatientID,
		DoctorID:     doctorID,
		Symptoms:     in.Symptoms,
		Diagnosis:    in.Diagnosis,
		Prescription: in.Prescription,
		Dose:         in.Dose,
		ReportFile:   in.ReportFile,
	}
	if err := s.records.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func empty(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func (s *Service) GetRecord(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	return s.records.GetByID(ctx, id)
}

func (s *Service) GetRecordByReportFile(ctx context.Context, fileID string) (*MedicalRecord, error) {
	return s.records.GetByReportFile(ctx, fileID)
}

func (s *Service) ListPatientRecords(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	return s.records.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListDoctorRecords(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	return s.records.ListByDoctor(ctx, doctorID, limit, offset)
}

// -- Conditions --

type ConditionInput struct {
	PatientID     uuid.UUID  `json:"patient_id"`
	ConditionName string     `json:"condition_name"`
	StartDate     *time.Time `json:"start_date,omitempty"`
}

func (s *Service) AddCondition(ctx context.Context, in ConditionInput) (*PatientCondition, error) {
	if in.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if strings.TrimSpace(in.ConditionName) == "" {
		return nil, fmt.Errorf("condition_name is required")
	}

	c := &PatientCondition{
		PatientID:     in.PatientID,
		ConditionName: strings.TrimSpace(in.ConditionName),
	}
	if in.StartDate != nil {
		c.StartDate = *in.StartDate
	}
	if err := s.conditions.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// CloseCondition sets the end date exactly once. Closing an already closed
// condition fails rather than silently moving its end date.
func (s *Service) CloseCondition(ctx context.Context, id uuid.UUID, endDate *time.Time) (*PatientCondition, error) {
	c, err := s.conditions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.EndDate != nil {
		return nil, ErrAlreadyClosed
	}

	end := time.Now().UTC().Truncate(24 * time.Hour)
	if endDate != nil {
		end = *endDate
	}
	if end.Before(c.StartDate) {
		return nil, fmt.Errorf("end_date cannot be before start_date")
	}
	c.EndDate = &end
	if err := s.conditions.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) ActiveConditionsForPatient(ctx context.Context, patientID uuid.UUID) ([]*PatientCondition, error) {
	return s.conditions.ListActiveByPatient(ctx, patientID)
}

func (s *Service) ActiveConditions(ctx context.Context, limit, offset int) ([]*PatientCondition, int, error) {
	return s.conditions.ListActive(ctx, limit, offset)
}
