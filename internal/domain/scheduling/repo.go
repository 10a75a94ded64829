package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	// ListUpcomingByPatient returns future appointments still pending or
	// scheduled, earliest first.
	ListUpcomingByPatient(ctx context.Context, patientID uuid.UUID, now time.Time) ([]*Appointment, error)
}
