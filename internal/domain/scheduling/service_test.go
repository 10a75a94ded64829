package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

// ── Mock Repository ──

type mockAppointmentRepo struct {
	data map[uuid.UUID]*Appointment
}

func newMockAppointmentRepo() *mockAppointmentRepo {
	return &mockAppointmentRepo{data: make(map[uuid.UUID]*Appointment)}
}

func (m *mockAppointmentRepo) Create(_ context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	m.data[a.ID] = a
	return nil
}
func (m *mockAppointmentRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	if a, ok := m.data[id]; ok {
		return a, nil
	}
	return nil, ErrNotFound
}
func (m *mockAppointmentRepo) Update(_ context.Context, a *Appointment) error {
	if _, ok := m.data[a.ID]; !ok {
		return ErrNotFound
	}
	a.UpdatedAt = time.Now()
	m.data[a.ID] = a
	return nil
}
func (m *mockAppointmentRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var out []*Appointment
	for _, a := range m.data {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	return out, len(out), nil
}
func (m *mockAppointmentRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var out []*Appointment
	for _, a := range m.data {
		if a.DoctorID == doctorID {
			out = append(out, a)
		}
	}
	return out, len(out), nil
}
func (m *mockAppointmentRepo) ListUpcomingByPatient(_ context.Context, patientID uuid.UUID, now time.Time) ([]*Appointment, error) {
	var out []*Appointment
	for _, a := range m.data {
		if a.PatientID == patientID && a.Upcoming(now) {
			out = append(out, a)
		}
	}
	return out, nil
}

func newTestService() *Service {
	return NewService(newMockAppointmentRepo())
}

func book(t *testing.T, svc *Service, patientID, doctorID uuid.UUID) *Appointment {
	t.Helper()
	a, err := svc.Book(context.Background(), patientID, BookingInput{
		DoctorID: doctorID,
		StartsAt: time.Now().Add(48 * time.Hour),
		Reason:   "checkup",
		Mode:     ModeInClinic,
	})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	return a
}

// ── Booking ──

func TestBook_EntersPending(t *testing.T) {
	svc := newTestService()
	a := book(t, svc, uuid.New(), uuid.New())

	if a.Status != StatusPending {
		t.Fatalf("status = %q, want %q", a.Status, StatusPending)
	}
}

func TestBook_RejectsPastDatetime(t *testing.T) {
	svc := newTestService()
	_, err := svc.Book(context.Background(), uuid.New(), BookingInput{
		DoctorID: uuid.New(),
		StartsAt: time.Now().Add(-time.Hour),
		Reason:   "checkup",
	})
	if err == nil {
		t.Fatal("past booking accepted")
	}
}

func TestBook_DefaultsModeAndRejectsUnknown(t *testing.T) {
	svc := newTestService()

	a, err := svc.Book(context.Background(), uuid.New(), BookingInput{
		DoctorID: uuid.New(),
		StartsAt: time.Now().Add(time.Hour),
		Reason:   "checkup",
	})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if a.Mode != ModeInClinic {
		t.Errorf("mode = %q, want default in_clinic", a.Mode)
	}

	_, err = svc.Book(context.Background(), uuid.New(), BookingInput{
		DoctorID: uuid.New(),
		StartsAt: time.Now().Add(time.Hour),
		Reason:   "checkup",
		Mode:     "telepathy",
	})
	if err == nil {
		t.Fatal("unknown mode accepted")
	}
}

// ── Status workflow ──

func TestUpdateStatus_LegalTransitions(t *testing.T) {
	svc := newTestService()
	doctorID := uuid.New()
	ctx := context.Background()

	a := book(t, svc, uuid.New(), doctorID)

	a, err := svc.UpdateStatus(ctx, doctorID, a.ID, StatusScheduled)
	if err != nil {
		t.Fatalf("pending->scheduled: %v", err)
	}
	a, err = svc.UpdateStatus(ctx, doctorID, a.ID, StatusCompleted)
	if err != nil {
		t.Fatalf("scheduled->completed: %v", err)
	}
	if a.Status != StatusCompleted {
		t.Fatalf("status = %q", a.Status)
	}
}

func TestUpdateStatus_IllegalTransitions(t *testing.T) {
	svc := newTestService()
	doctorID := uuid.New()
	ctx := context.Background()

	// pending cannot jump straight to completed.
	a := book(t, svc, uuid.New(), doctorID)
	if _, err := svc.UpdateStatus(ctx, doctorID, a.ID, StatusCompleted); err == nil {
		t.Fatal("pending->completed accepted")
	}

	// terminal states stay terminal.
	a = book(t, svc, uuid.New(), doctorID)
	svc.UpdateStatus(ctx, doctorID, a.ID, StatusCancelled)
	if _, err := svc.UpdateStatus(ctx, doctorID, a.ID, StatusScheduled); err == nil {
		t.Fatal("cancelled->scheduled accepted")
	}
}

func TestUpdateStatus_DoctorOwnership(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	a := book(t, svc, uuid.New(), uuid.New())

	_, err := svc.UpdateStatus(ctx, uuid.New(), a.ID, StatusScheduled)
	if !errors.Is(err, ErrNotYourPatient) {
		t.Fatalf("err = %v, want ErrNotYourPatient", err)
	}
}

// ── Upcoming view ──

func TestUpcomingForPatient(t *testing.T) {
	svc := newTestService()
	patientID, doctorID := uuid.New(), uuid.New()
	ctx := context.Background()

	pending := book(t, svc, patientID, doctorID)
	scheduled := book(t, svc, patientID, doctorID)
	svc.UpdateStatus(ctx, doctorID, scheduled.ID, StatusScheduled)
	cancelled := book(t, svc, patientID, doctorID)
	svc.UpdateStatus(ctx, doctorID, cancelled.ID, StatusCancelled)

	items, err := svc.UpcomingForPatient(ctx, patientID)
	if err != nil {
		t.Fatalf("UpcomingForPatient: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("upcoming = %d, want 2 (pending+scheduled)", len(items))
	}
	for _, a := range items {
		if a.ID != pending.ID && a.ID != scheduled.ID {
			t.Fatalf("unexpected appointment in upcoming list: %+v", a)
		}
	}
}
