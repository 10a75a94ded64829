package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayushcare/portal/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const patientCols = `id, name, email, aadhaar_number, password_hash, date_of_birth,
	profile_picture, blood_group, height_cm, weight_kg, allergies, chronic_diseases,
	onboarding_complete, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.AadhaarNumber, &p.PasswordHash, &p.DateOfBirth,
		&p.ProfilePicture, &p.BloodGroup, &p.HeightCm, &p.WeightKg, &p.Allergies, &p.ChronicDiseases,
		&p.OnboardingComplete, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient (id, name, email, aadhaar_number, password_hash, date_of_birth)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		p.ID, p.Name, p.Email, p.AadhaarNumber, p.PasswordHash, p.DateOfBirth)
	return err
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *patientRepoPG) GetByEmail(ctx context.Context, email string) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE email = $1`, email))
}

func (r *patientRepoPG) GetByAadhaar(ctx context.Context, aadhaar string) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE aadhaar_number = $1`, aadhaar))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET name=$2, date_of_birth=$3, profile_picture=$4, blood_group=$5,
			height_cm=$6, weight_kg=$7, allergies=$8, chronic_diseases=$9,
			onboarding_complete=$10, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.DateOfBirth, p.ProfilePicture, p.BloodGroup,
		p.HeightCm, p.WeightKg, p.Allergies, p.ChronicDiseases,
		p.OnboardingComplete)
	return err
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+patientCols+` FROM patient ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, nil
}

// =========== Doctor Repository ===========

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository {
	return &doctorRepoPG{pool: pool}
}

func (r *doctorRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const doctorCols = `id, name, specialty, email, registration_no, password_hash, gender,
	date_of_birth, phone, experience_years, affiliation, clinic_address, consultation_hours,
	languages_spoken, consultation_modes, qualifications, profile_picture, created_at, updated_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.Name, &d.Specialty, &d.Email, &d.RegistrationNo, &d.PasswordHash, &d.Gender,
		&d.DateOfBirth, &d.Phone, &d.ExperienceYears, &d.Affiliation, &d.ClinicAddress, &d.ConsultationHours,
		&d.LanguagesSpoken, &d.ConsultationModes, &d.Qualifications, &d.ProfilePicture, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &d, err
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor (id, name, specialty, email, registration_no, password_hash)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		d.ID, d.Name, d.Specialty, d.Email, d.RegistrationNo, d.PasswordHash)
	return err
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctor WHERE id = $1`, id))
}

func (r *doctorRepoPG) GetByEmail(ctx context.Context, email string) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctor WHERE email = $1`, email))
}

func (r *doctorRepoPG) GetByRegistrationNo(ctx context.Context, regNo string) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctor WHERE registration_no = $1`, regNo))
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctor SET name=$2, specialty=$3, registration_no=$4, gender=$5, date_of_birth=$6,
			phone=$7, experience_years=$8, affiliation=$9, clinic_address=$10,
			consultation_hours=$11, languages_spoken=$12, consultation_modes=$13,
			qualifications=$14, profile_picture=$15, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.Name, d.Specialty, d.RegistrationNo, d.Gender, d.DateOfBirth,
		d.Phone, d.ExperienceYears, d.Affiliation, d.ClinicAddress,
		d.ConsultationHours, d.LanguagesSpoken, d.ConsultationModes,
		d.Qualifications, d.ProfilePicture)
	return err
}

func (r *doctorRepoPG) List(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctor`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+doctorCols+` FROM doctor ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, nil
}
