package clinical

import (
	"context"

	"github.com/google/uuid"
)

type MedicalRecordRepository interface {
	Create(ctx context.Context, r *MedicalRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error)
	GetByReportFile(ctx context.Context, fileID string) (*MedicalRecord, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error)
}

type ConditionRepository interface {
	Create(ctx context.Context, c *PatientCondition) error
	GetByID(ctx context.Context, id uuid.UUID) (*PatientCondition, error)
	Update(ctx context.Context, c *PatientCondition) error
	ListActiveByPatient(ctx context.Context, patientID uuid.UUID) ([]*PatientCondition, error)
	ListActive(ctx context.Context, limit, offset int) ([]*PatientCondition, int, error)
}
