package identity

import (
	"context"

	"github.com/google/uuid"
)

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByEmail(ctx context.Context, email string) (*Patient, error)
	GetByAadhaar(ctx context.Context, aadhaar string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
}

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetByEmail(ctx context.Context, email string) (*Doctor, error)
	GetByRegistrationNo(ctx context.Context, regNo string) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	List(ctx context.Context, limit, offset int) ([]*Doctor, int, error)
}
