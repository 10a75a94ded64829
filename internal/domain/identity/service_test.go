package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ── Mock Repositories ──

type mockPatientRepo struct {
	data map[uuid.UUID]*Patient
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{data: make(map[uuid.UUID]*Patient)}
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	m.data[p.ID] = p
	return nil
}
func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	if p, ok := m.data[id]; ok {
		return p, nil
	}
	return nil, ErrNotFound
}
func (m *mockPatientRepo) GetByEmail(_ context.Context, email string) (*Patient, error) {
	for _, p := range m.data {
		if p.Email == email {
			return p, nil
		}
	}
	return nil, ErrNotFound
}
func (m *mockPatientRepo) GetByAadhaar(_ context.Context, aadhaar string) (*Patient, error) {
	for _, p := range m.data {
		if p.AadhaarNumber == aadhaar {
			return p, nil
		}
	}
	return nil, ErrNotFound
}
func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.data[p.ID]; !ok {
		return ErrNotFound
	}
	m.data[p.ID] = p
	return nil
}
func (m *mockPatientRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	var out []*Patient
	for _, p := range m.data {
		out = append(out, p)
	}
	return out, len(out), nil
}

type mockDoctorRepo struct {
	data map[uuid.UUID]*Doctor
}

func newMockDoctorRepo() *mockDoctorRepo {
	return &mockDoctorRepo{data: make(map[uuid.UUID]*Doctor)}
}

func (m *mockDoctorRepo) Create(_ context.Context, d *Doctor) error {
	d.ID = uuid.New()
	m.data[d.ID] = d
	return nil
}
func (m *mockDoctorRepo) GetByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	if d, ok := m.data[id]; ok {
		return d, nil
	}
	return nil, ErrNotFound
}
func (m *mockDoctorRepo) GetByEmail(_ context.Context, email string) (*Doctor, error) {
	for _, d := range m.data {
		if d.Email == email {
			return d, nil
		}
	}
	return nil, ErrNotFound
}
func (m *mockDoctorRepo) GetByRegistrationNo(_ context.Context, regNo string) (*Doctor, error) {
	for _, d := range m.data {
		if d.RegistrationNo == regNo {
			return d, nil
		}
	}
	return nil, ErrNotFound
}
func (m *mockDoctorRepo) Update(_ context.Context, d *Doctor) error {
	if _, ok := m.data[d.ID]; !ok {
		return ErrNotFound
	}
	m.data[d.ID] = d
	return nil
}
func (m *mockDoctorRepo) List(_ context.Context, limit, offset int) ([]*Doctor, int, error) {
	var out []*Doctor
	for _, d := range m.data {
		out = append(out, d)
	}
	return out, len(out), nil
}

func newTestService() (*Service, *mockPatientRepo, *mockDoctorRepo) {
	patients := newMockPatientRepo()
	doctors := newMockDoctorRepo()
	return NewService(patients, doctors, nil), patients, doctors
}

// ── Signup ──

func TestSignupPatient(t *testing.T) {
	svc, _, _ := newTestService()

	p, err := svc.SignupPatient(context.Background(), SignupPatientInput{
		Name:          "Asha Rao",
		Email:         "Asha@Example.com",
		AadhaarNumber: "123456789012",
		Password:      "s3cretpass",
	})
	if err != nil {
		t.Fatalf("SignupPatient: %v", err)
	}
	if p.ID == uuid.Nil {
		t.Error("expected generated id")
	}
	if p.Email != "asha@example.com" {
		t.Errorf("email not normalized: %q", p.Email)
	}
	if p.PasswordHash == "s3cretpass" || p.PasswordHash == "" {
		t.Error("password must be stored hashed")
	}
	if bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte("s3cretpass")) != nil {
		t.Error("stored hash does not verify the original password")
	}
	if p.OnboardingComplete {
		t.Error("new patient must start with onboarding incomplete")
	}
}

func TestSignupPatient_DuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	in := SignupPatientInput{Name: "A", Email: "a@b.c", AadhaarNumber: "123456789012", Password: "password1"}
	if _, err := svc.SignupPatient(ctx, in); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	in.AadhaarNumber = "999999999999"
	if _, err := svc.SignupPatient(ctx, in); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}
}

func TestSignupPatient_DuplicateAadhaar(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	in := SignupPatientInput{Name: "A", Email: "a@b.c", AadhaarNumber: "123456789012", Password: "password1"}
	if _, err := svc.SignupPatient(ctx, in); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	in.Email = "other@b.c"
	if _, err := svc.SignupPatient(ctx, in); !errors.Is(err, ErrIdentifierTaken) {
		t.Fatalf("err = %v, want ErrIdentifierTaken", err)
	}
}

func TestSignupPatient_InvalidAadhaar(t *testing.T) {
	svc, _, _ := newTestService()

	for _, bad := range []string{"12345", "12345678901a", "1234567890123"} {
		_, err := svc.SignupPatient(context.Background(), SignupPatientInput{
			Name: "A", Email: "a@b.c", AadhaarNumber: bad, Password: "password1",
		})
		if err == nil {
			t.Errorf("aadhaar %q accepted, want error", bad)
		}
	}
}

func TestSignupDoctor_DefaultsSpecialty(t *testing.T) {
	svc, _, _ := newTestService()

	d, err := svc.SignupDoctor(context.Background(), SignupDoctorInput{
		Name: "Dr Rao", Email: "dr@example.com", RegistrationNo: "MH-2001", Password: "password1",
	})
	if err != nil {
		t.Fatalf("SignupDoctor: %v", err)
	}
	if d.Specialty != "General" {
		t.Errorf("specialty = %q, want General", d.Specialty)
	}
}

func TestSignupDoctor_DuplicateRegistrationNo(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	in := SignupDoctorInput{Name: "A", Email: "a@b.c", RegistrationNo: "MH-1", Password: "password1"}
	if _, err := svc.SignupDoctor(ctx, in); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	in.Email = "other@b.c"
	if _, err := svc.SignupDoctor(ctx, in); !errors.Is(err, ErrIdentifierTaken) {
		t.Fatalf("err = %v, want ErrIdentifierTaken", err)
	}
}

// ── Login ──

func TestPasswordLogin(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	p, err := svc.SignupPatient(ctx, SignupPatientInput{
		Name: "A", Email: "a@b.c", AadhaarNumber: "123456789012", Password: "password1",
	})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	id, onboarded, err := svc.PasswordLogin(ctx, "patient", "a@b.c", "password1")
	if err != nil {
		t.Fatalf("PasswordLogin: %v", err)
	}
	if id != p.ID {
		t.Errorf("id = %v, want %v", id, p.ID)
	}
	if onboarded {
		t.Error("onboarding should be incomplete")
	}

	if _, _, err := svc.PasswordLogin(ctx, "patient", "a@b.c", "wrongpass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password err = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := svc.PasswordLogin(ctx, "patient", "nobody@b.c", "password1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLookupByIdentifier(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	p, _ := svc.SignupPatient(ctx, SignupPatientInput{
		Name: "A", Email: "a@b.c", AadhaarNumber: "123456789012", Password: "password1",
	})
	d, _ := svc.SignupDoctor(ctx, SignupDoctorInput{
		Name: "Dr", Email: "d@b.c", RegistrationNo: "MH-1", Password: "password1",
	})

	id, _, err := svc.LookupByIdentifier(ctx, "patient", "123456789012")
	if err != nil || id != p.ID {
		t.Fatalf("patient lookup = (%v, %v), want %v", id, err, p.ID)
	}
	id, _, err = svc.LookupByIdentifier(ctx, "doctor", "MH-1")
	if err != nil || id != d.ID {
		t.Fatalf("doctor lookup = (%v, %v), want %v", id, err, d.ID)
	}
	if _, _, err := svc.LookupByIdentifier(ctx, "patient", "000000000000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown lookup err = %v, want ErrNotFound", err)
	}
}

func TestGenerateOTP(t *testing.T) {
	for i := 0; i < 20; i++ {
		code, err := GenerateOTP()
		if err != nil {
			t.Fatalf("GenerateOTP: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("code %q is not 6 digits", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("code %q has non-digit", code)
			}
		}
	}
}

// ── Onboarding ──

func TestCompleteOnboarding(t *testing.T) {
	svc, patients, _ := newTestService()
	ctx := context.Background()

	p, _ := svc.SignupPatient(ctx, SignupPatientInput{
		Name: "A", Email: "a@b.c", AadhaarNumber: "123456789012", Password: "password1",
	})

	bg, h, w := "B+", 172, 68
	allergies, chronic := "pollen", "asthma"
	out, err := svc.CompleteOnboarding(ctx, p.ID, OnboardingData{
		BloodGroup: &bg, HeightCm: &h, WeightKg: &w,
		Allergies: &allergies, ChronicDiseases: &chronic,
	})
	if err != nil {
		t.Fatalf("CompleteOnboarding: %v", err)
	}
	if !out.OnboardingComplete {
		t.Error("completion flag not set")
	}

	stored := patients.data[p.ID]
	if stored.BloodGroup == nil || *stored.BloodGroup != "B+" {
		t.Error("blood group not persisted")
	}
	if stored.HeightCm == nil || *stored.HeightCm != 172 {
		t.Error("height not persisted")
	}
	if stored.Allergies == nil || *stored.Allergies != "pollen" {
		t.Error("allergies not persisted")
	}
}

// ── Profile ──

func TestUpdateDoctorProfile_RegistrationNoConflict(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	a, _ := svc.SignupDoctor(ctx, SignupDoctorInput{Name: "A", Email: "a@b.c", RegistrationNo: "MH-1", Password: "password1"})
	_, _ = svc.SignupDoctor(ctx, SignupDoctorInput{Name: "B", Email: "b@b.c", RegistrationNo: "MH-2", Password: "password1"})

	_, err := svc.UpdateDoctorProfile(ctx, a.ID, DoctorProfileInput{RegistrationNo: "MH-2"})
	if !errors.Is(err, ErrIdentifierTaken) {
		t.Fatalf("err = %v, want ErrIdentifierTaken", err)
	}
}

func TestFindPatientByAadhaar(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	p, _ := svc.SignupPatient(ctx, SignupPatientInput{
		Name: "A", Email: "a@b.c", AadhaarNumber: "123456789012", Password: "password1",
	})

	got, err := svc.FindPatientByAadhaar(ctx, "123456789012")
	if err != nil || got.ID != p.ID {
		t.Fatalf("FindPatientByAadhaar = (%v, %v)", got, err)
	}
	if _, err := svc.FindPatientByAadhaar(ctx, "12"); err == nil {
		t.Fatal("malformed aadhaar accepted")
	}
}
