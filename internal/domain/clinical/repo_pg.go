package clinical

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

// =========== Medical Record Repository ===========

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRecordRepoPG(pool *pgxpool.Pool) MedicalRecordRepository {
	return &recordRepoPG{pool: pool}
}

func (r *recordRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const recordCols = `id, patient_id, doctor_id, symptoms, diagnosis, prescription, dose,
	record_date, report_file, created_at`

func scanRecord(row pgx.Row) (*MedicalRecord, error) {
	var m MedicalRecord
	err := row.Scan(&m.ID, &m.PatientID, &m.DoctorID, &m.Symptoms, &m.Diagnosis, &m.Prescription, &m.Dose,
		&m.RecordDate, &m.ReportFile, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &m, err
}

func (r *recordRepoPG) Create(ctx context.Context, m *MedicalRecord) error {
	m.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_record (id, patient_id, doctor_id, symptoms, diagnosis, prescription, dose, report_file)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING record_date, created_at`,
		m.ID, m.PatientID, m.DoctorID, m.Symptoms, m.Diagnosis, m.Prescription, m.Dose, m.ReportFile).
		Scan(&m.RecordDate, &m.CreatedAt)
}

func (r *recordRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	return scanRecord(r.conn(ctx).QueryRow(ctx, `SELECT `+recordCols+` FROM medical_record WHERE id = $1`, id))
}

func (r *recordRepoPG) GetByReportFile(ctx context.Context, fileID string) (*MedicalRecord, error) {
	return scanRecord(r.conn(ctx).QueryRow(ctx, `SELECT `+recordCols+` FROM medical_record WHERE report_file = $1`, fileID))
}

func (r *recordRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	return r.list(ctx, `patient_id`, patientID, limit, offset)
}

func (r *recordRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	return r.list(ctx, `doctor_id`, doctorID, limit, offset)
}

func (r *recordRepoPG) list(ctx context.Context, col string, id uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM medical_record WHERE `+col+` = $1`, id).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+recordCols+` FROM medical_record WHERE `+col+` = $1 ORDER BY record_date DESC, created_at DESC LIMIT $2 OFFSET $3`,
		id, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*MedicalRecord
	for rows.Next() {
		m, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, nil
}

// =========== Condition Repository ===========

type conditionRepoPG struct{ pool *pgxpool.Pool }

func NewConditionRepoPG(pool *pgxpool.Pool) ConditionRepository {
	return &conditionRepoPG{pool: pool}
}

func (r *conditionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const conditionCols = `id, patient_id, condition_name, start_date, end_date, created_at`

func scanCondition(row pgx.Row) (*PatientCondition, error) {
	var c PatientCondition
	err := row.Scan(&c.ID, &c.PatientID, &c.ConditionName, &c.StartDate, &c.EndDate, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &c, err
}

func (r *conditionRepoPG) Create(ctx context.Context, c *PatientCondition) error {
	c.ID = uuid.New()
	var start interface{}
	if !c.StartDate.IsZero() {
		start = c.StartDate
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_condition (id, patient_id, condition_name, start_date)
		VALUES ($1,$2,$3,COALESCE($4, CURRENT_DATE))
		RETURNING start_date, created_at`,
		c.ID, c.PatientID, c.ConditionName, start).
		Scan(&c.StartDate, &c.CreatedAt)
}

func (r *conditionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*PatientCondition, error) {
	return scanCondition(r.conn(ctx).QueryRow(ctx, `SELECT `+conditionCols+` FROM patient_condition WHERE id = $1`, id))
}

func (r *conditionRepoPG) Update(ctx context.Context, c *PatientCondition) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient_condition SET condition_name=$2, end_date=$3 WHERE id = $1`,
		c.ID, c.ConditionName, c.EndDate)
	return err
}

func (r *conditionRepoPG) ListActiveByPatient(ctx context.Context, patientID uuid.UUID) ([]*PatientCondition, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+conditionCols+` FROM patient_condition WHERE patient_id = $1 AND end_date IS NULL ORDER BY start_date DESC`,
		patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*PatientCondition
	for rows.Next() {
		c, err := scanCondition(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, nil
}

func (r *conditionRepoPG) ListActive(ctx context.Context, limit, offset int) ([]*PatientCondition, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient_condition WHERE end_date IS NULL`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+conditionCols+` FROM patient_condition WHERE end_date IS NULL ORDER BY start_date DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*PatientCondition
	for rows.Next() {
		c, err := scanCondition(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, nil
}
