package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("appointment not found")
	ErrNotYourPatient = errors.New("appointment belongs to a different doctor")
)

var validModes = map[string]bool{
	ModeInClinic: true, ModeVideoCall: true, ModeAudioCall: true,
}

// legalTransitions defines the doctor-driven status workflow. Completed and
// cancelled are terminal.
var legalTransitions = map[string]map[string]bool{
	StatusPending:   {StatusScheduled: true, StatusCancelled: true},
	StatusScheduled: {StatusCompleted: true, StatusCancelled: true},
}

type Service struct {
	appointments AppointmentRepository
}

func NewService(appointments AppointmentRepository) *Service {
	return &Service{appointments: appointments}
}

type BookingInput struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	StartsAt time.Time `json:"starts_at"`
	Reason   string    `json:"reason"`
	Mode     string    `json:"mode"`
}

// Book creates an appointment for the patient. It always enters the workflow
// at pending_confirmation; the doctor confirms or declines it afterwards.
func (s *Service) Book(ctx context.Context, patientID uuid.UUID, in BookingInput) (*Appointment, error) {
	if patientID == uuid.Nil || in.DoctorID == uuid.Nil {
		return nil, fmt.Errorf("patient_id and doctor_id are required")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return nil, fmt.Errorf("reason is required")
	}
	if in.StartsAt.IsZero() {
		return nil, fmt.Errorf("starts_at is required")
	}
	if !in.StartsAt.After(time.Now()) {
		return nil, fmt.Errorf("starts_at must be in the future")
	}
	if in.Mode == "" {
		in.Mode = ModeInClinic
	}
	if !validModes[in.Mode] {
		return nil, fmt.Errorf("invalid mode: %s", in.Mode)
	}

	a := &Appointment{
		PatientID: patientID,
		DoctorID:  in.DoctorID,
		StartsAt:  in.StartsAt,
		Reason:    strings.TrimSpace(in.Reason),
		Status:    StatusPending,
		Mode:      in.Mode,
	}
	if err := s.appointments.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// UpdateStatus moves an appointment through the workflow. Only the doctor the
// appointment was booked with may do this, and only along legal transitions.
func (s *Service) UpdateStatus(ctx context.Context, doctorID, id uuid.UUID, newStatus string) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.DoctorID != doctorID {
		return nil, ErrNotYourPatient
	}
	if !legalTransitions[a.Status][newStatus] {
		return nil, fmt.Errorf("cannot move appointment from %s to %s", a.Status, newStatus)
	}

	a.Status = newStatus
	if err := s.appointments.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) PatientAppointments(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) DoctorAppointments(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.ListByDoctor(ctx, doctorID, limit, offset)
}

// UpcomingForPatient returns the patient's future pending or scheduled
// appointments, earliest first.
func (s *Service) UpcomingForPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	return s.appointments.ListUpcomingByPatient(ctx, patientID, time.Now().UTC())
}
