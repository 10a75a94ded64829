package clinical

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

// ── Mock Repositories ──

type mockRecordRepo struct {
	data map[uuid.UUID]*MedicalRecord
}

func newMockRecordRepo() *mockRecordRepo {
	return &mockRecordRepo{data: make(map[uuid.UUID]*MedicalRecord)}
}

func (m *mockRecordRepo) Create(_ context.Context, r *MedicalRecord) error {
	r.ID = uuid.New()
	if r.RecordDate.IsZero() {
		r.RecordDate = time.Now().UTC().Truncate(24 * time.Hour)
	}
	r.CreatedAt = time.Now()
	m.data[r.ID] = r
	return nil
}
func (m *mockRecordRepo) GetByID(_ context.Context, id uuid.UUID) (*MedicalRecord, error) {
	if r, ok := m.data[id]; ok {
		return r, nil
	}
	return nil, ErrNotFound
}
func (m *mockRecordRepo) GetByReportFile(_ context.Context, fileID string) (*MedicalRecord, error) {
	for _, r := range m.data {
		if r.ReportFile != nil && *r.ReportFile == fileID {
			return r, nil
		}
	}
	return nil, ErrNotFound
}
func (m *mockRecordRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	var out []*MedicalRecord
	for _, r := range m.data {
		if r.PatientID == patientID {
			out = append(out, r)
		}
	}
	return out, len(out), nil
}
func (m *mockRecordRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	var out []*MedicalRecord
	for _, r := range m.data {
		if r.DoctorID == doctorID {
			out = append(out, r)
		}
	}
	return out, len(out), nil
}

type mockConditionRepo struct {
	data map[uuid.UUID]*PatientCondition
}

func newMockConditionRepo() *mockConditionRepo {
	return &mockConditionRepo{data: make(map[uuid.UUID]*PatientCondition)}
}

func (m *mockConditionRepo) Create(_ context.Context, c *PatientCondition) error {
	c.ID = uuid.New()
	if c.StartDate.IsZero() {
		c.StartDate = time.Now().UTC().Truncate(24 * time.Hour)
	}
	c.CreatedAt = time.Now()
	m.data[c.ID] = c
	return nil
}
func (m *mockConditionRepo) GetByID(_ context.Context, id uuid.UUID) (*PatientCondition, error) {
	if c, ok := m.data[id]; ok {
		return c, nil
	}
	return nil, ErrNotFound
}
func (m *mockConditionRepo) Update(_ context.Context, c *PatientCondition) error {
	if _, ok := m.data[c.ID]; !ok {
		return ErrNotFound
	}
	m.data[c.ID] = c
	return nil
}
func (m *mockConditionRepo) ListActiveByPatient(_ context.Context, patientID uuid.UUID) ([]*PatientCondition, error) {
	var out []*PatientCondition
	for _, c := range m.data {
		if c.PatientID == patientID && c.EndDate == nil {
			out = append(out, c)
		}
	}
	return out, nil
}
func (m *mockConditionRepo) ListActive(_ context.Context, limit, offset int) ([]*PatientCondition, int, error) {
	var out []*PatientCondition
	for _, c := range m.data {
		if c.EndDate == nil {
			out = append(out, c)
		}
	}
	return out, len(out), nil
}

func newTestService() *Service {
	return NewService(newMockRecordRepo(), newMockConditionRepo())
}

// ── Records ──

func TestCreateRecord(t *testing.T) {
	svc := newTestService()
	doctorID, patientID := uuid.New(), uuid.New()

	sym := "fever, headache"
	rec, err := svc.CreateRecord(context.Background(), doctorID, RecordInput{
		PatientID: patientID,
		Symptoms:  &sym,
	})
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if rec.ID == uuid.Nil || rec.DoctorID != doctorID || rec.PatientID != patientID {
		t.Errorf("record not filled in: %+v", rec)
	}
	if rec.RecordDate.IsZero() {
		t.Error("record date must default to today")
	}
}

func TestCreateRecord_RequiresClinicalContent(t *testing.T) {
	svc := newTestService()

	blank := "   "
	_, err := svc.CreateRecord(context.Background(), uuid.New(), RecordInput{
		PatientID: uuid.New(),
		Symptoms:  &blank,
	})
	if err == nil {
		t.Fatal("record with only whitespace content accepted")
	}
}

func TestCreateRecord_RequiresPatient(t *testing.T) {
	svc := newTestService()

	d := "flu"
	_, err := svc.CreateRecord(context.Background(), uuid.New(), RecordInput{Diagnosis: &d})
	if err == nil {
		t.Fatal("record without patient accepted")
	}
}

func TestListRecords_ScopedToOwner(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	docA, docB, patient := uuid.New(), uuid.New(), uuid.New()

	d := "flu"
	svc.CreateRecord(ctx, docA, RecordInput{PatientID: patient, Diagnosis: &d})
	svc.CreateRecord(ctx, docB, RecordInput{PatientID: patient, Diagnosis: &d})

	items, total, err := svc.ListDoctorRecords(ctx, docA, 20, 0)
	if err != nil {
		t.Fatalf("ListDoctorRecords: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("doctor A sees %d records, want 1", total)
	}

	_, total, err = svc.ListPatientRecords(ctx, patient, 20, 0)
	if err != nil {
		t.Fatalf("ListPatientRecords: %v", err)
	}
	if total != 2 {
		t.Fatalf("patient sees %d records, want 2", total)
	}
}

// ── Conditions ──

func TestAddCondition(t *testing.T) {
	svc := newTestService()

	cond, err := svc.AddCondition(context.Background(), ConditionInput{
		PatientID:     uuid.New(),
		ConditionName: "  hypertension  ",
	})
	if err != nil {
		t.Fatalf("AddCondition: %v", err)
	}
	if cond.ConditionName != "hypertension" {
		t.Errorf("name = %q, want trimmed", cond.ConditionName)
	}
	if !cond.Active() {
		t.Error("new condition must be active")
	}
}

func TestCloseCondition_Once(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	cond, _ := svc.AddCondition(ctx, ConditionInput{PatientID: uuid.New(), ConditionName: "flu"})

	closed, err := svc.CloseCondition(ctx, cond.ID, nil)
	if err != nil {
		t.Fatalf("CloseCondition: %v", err)
	}
	if closed.EndDate == nil {
		t.Fatal("end date not set")
	}

	if _, err := svc.CloseCondition(ctx, cond.ID, nil); !errors.Is(err, ErrAlreadyClosed) {
		t.Fatalf("second close err = %v, want ErrAlreadyClosed", err)
	}
}

func TestCloseCondition_EndBeforeStart(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cond, _ := svc.AddCondition(ctx, ConditionInput{
		PatientID: uuid.New(), ConditionName: "flu", StartDate: &start,
	})

	before := start.AddDate(0, 0, -3)
	if _, err := svc.CloseCondition(ctx, cond.ID, &before); err == nil {
		t.Fatal("end date before start date accepted")
	}
}

func TestActiveConditions_ExcludeClosed(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	patient := uuid.New()

	a, _ := svc.AddCondition(ctx, ConditionInput{PatientID: patient, ConditionName: "asthma"})
	svc.AddCondition(ctx, ConditionInput{PatientID: patient, ConditionName: "flu"})
	svc.CloseCondition(ctx, a.ID, nil)

	items, err := svc.ActiveConditionsForPatient(ctx, patient)
	if err != nil {
		t.Fatalf("ActiveConditionsForPatient: %v", err)
	}
	if len(items) != 1 || items[0].ConditionName != "flu" {
		t.Fatalf("active = %+v, want only flu", items)
	}
}
