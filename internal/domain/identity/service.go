package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrIdentifierTaken    = errors.New("an account with this identifier already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

var aadhaarRe = regexp.MustCompile(`^[0-9]{12}$`)

// TxRunner executes fn inside a database transaction carried on the context.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// NoTx runs fn without a transaction. For tests and single-statement callers.
func NoTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

type Service struct {
	patients PatientRepository
	doctors  DoctorRepository
	runTx    TxRunner
}

func NewService(patients PatientRepository, doctors DoctorRepository, runTx TxRunner) *Service {
	if runTx == nil {
		runTx = NoTx
	}
	return &Service{patients: patients, doctors: doctors, runTx: runTx}
}

// -- Signup --

type SignupPatientInput struct {
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	AadhaarNumber string     `json:"aadhaar_number"`
	Password      string     `json:"password"`
	DateOfBirth   *time.Time `json:"date_of_birth,omitempty"`
}

func (s *Service) SignupPatient(ctx context.Context, in SignupPatientInput) (*Patient, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if in.Name == "" || in.Email == "" || in.AadhaarNumber == "" || in.Password == "" {
		return nil, fmt.Errorf("name, email, aadhaar_number and password are required")
	}
	if !aadhaarRe.MatchString(in.AadhaarNumber) {
		return nil, fmt.Errorf("aadhaar_number must be exactly 12 digits")
	}
	if len(in.Password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}

	if _, err := s.patients.GetByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if _, err := s.patients.GetByAadhaar(ctx, in.AadhaarNumber); err == nil {
		return nil, ErrIdentifierTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	p := &Patient{
		Name:          in.Name,
		Email:         in.Email,
		AadhaarNumber: in.AadhaarNumber,
		PasswordHash:  string(hash),
		DateOfBirth:   in.DateOfBirth,
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

type SignupDoctorInput struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	RegistrationNo string `json:"registration_no"`
	Password       string `json:"password"`
	Specialty      string `json:"specialty"`
}

func (s *Service) SignupDoctor(ctx context.Context, in SignupDoctorInput) (*Doctor, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if in.Name == "" || in.Email == "" || in.RegistrationNo == "" || in.Password == "" {
		return nil, fmt.Errorf("name, email, registration_no and password are required")
	}
	if len(in.Password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}
	if in.Specialty == "" {
		in.Specialty = "General"
	}

	if _, err := s.doctors.GetByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if _, err := s.doctors.GetByRegistrationNo(ctx, in.RegistrationNo); err == nil {
		return nil, ErrIdentifierTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	d := &Doctor{
		Name:           in.Name,
		Email:          in.Email,
		RegistrationNo: in.RegistrationNo,
		PasswordHash:   string(hash),
		Specialty:      in.Specialty,
	}
	if err := s.doctors.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// -- Login --

// PasswordLogin verifies email+password for the given role and returns the
// user id. The second result reports whether patient onboarding is complete;
// it is always true for doctors.
func (s *Service) PasswordLogin(ctx context.Context, role, email, password string) (uuid.UUID, bool, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	switch role {
	case "patient":
		p, err := s.patients.GetByEmail(ctx, email)
		if err != nil {
			return uuid.Nil, false, ErrInvalidCredentials
		}
		if bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)) != nil {
			return uuid.Nil, false, ErrInvalidCredentials
		}
		return p.ID, p.OnboardingComplete, nil
	case "doctor":
		d, err := s.doctors.GetByEmail(ctx, email)
		if err != nil {
			return uuid.Nil, false, ErrInvalidCredentials
		}
		if bcrypt.CompareHashAndPassword([]byte(d.PasswordHash), []byte(password)) != nil {
			return uuid.Nil, false, ErrInvalidCredentials
		}
		return d.ID, true, nil
	default:
		return uuid.Nil, false, fmt.Errorf("invalid role: %s", role)
	}
}

// LookupByIdentifier resolves a patient by aadhaar number or a doctor by
// registration number. The OTP flow identifies users this way.
func (s *Service) LookupByIdentifier(ctx context.Context, role, identifier string) (uuid.UUID, bool, error) {
	switch role {
	case "patient":
		p, err := s.patients.GetByAadhaar(ctx, identifier)
		if err != nil {
			return uuid.Nil, false, err
		}
		return p.ID, p.OnboardingComplete, nil
	case "doctor":
		d, err := s.doctors.GetByRegistrationNo(ctx, identifier)
		if err != nil {
			return uuid.Nil, false, err
		}
		return d.ID, true, nil
	default:
		return uuid.Nil, false, fmt.Errorf("invalid role: %s", role)
	}
}

// GenerateOTP returns a random 6-digit one-time code.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// -- Profile --

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

type PatientProfileInput struct {
	Name            string     `json:"name"`
	DateOfBirth     *time.Time `json:"date_of_birth,omitempty"`
	BloodGroup      *string    `json:"blood_group,omitempty"`
	HeightCm        *int       `json:"height_cm,omitempty"`
	WeightKg        *int       `json:"weight_kg,omitempty"`
	Allergies       *string    `json:"allergies,omitempty"`
	ChronicDiseases *string    `json:"chronic_diseases,omitempty"`
}

func (s *Service) UpdatePatientProfile(ctx context.Context, id uuid.UUID, in PatientProfileInput) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != "" {
		p.Name = in.Name
	}
	p.DateOfBirth = in.DateOfBirth
	p.BloodGroup = in.BloodGroup
	p.HeightCm = in.HeightCm
	p.WeightKg = in.WeightKg
	p.Allergies = in.Allergies
	p.ChronicDiseases = in.ChronicDiseases
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

type DoctorProfileInput struct {
	Name              string     `json:"name"`
	Specialty         string     `json:"specialty"`
	RegistrationNo    string     `json:"registration_no"`
	Gender            *string    `json:"gender,omitempty"`
	DateOfBirth       *time.Time `json:"date_of_birth,omitempty"`
	Phone             *string    `json:"phone,omitempty"`
	ExperienceYears   *int       `json:"experience_years,omitempty"`
	Affiliation       *string    `json:"affiliation,omitempty"`
	ClinicAddress     *string    `json:"clinic_address,omitempty"`
	ConsultationHours *string    `json:"consultation_hours,omitempty"`
	LanguagesSpoken   *string    `json:"languages_spoken,omitempty"`
	ConsultationModes *string    `json:"consultation_modes,omitempty"`
	Qualifications    *string    `json:"qualifications,omitempty"`
}

func (s *Service) UpdateDoctorProfile(ctx context.Context, id uuid.UUID, in DoctorProfileInput) (*Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != "" {
		d.Name = in.Name
	}
	if in.Specialty != "" {
		d.Specialty = in.Specialty
	}
	if in.RegistrationNo != "" && in.RegistrationNo != d.RegistrationNo {
		if _, err := s.doctors.GetByRegistrationNo(ctx, in.RegistrationNo); err == nil {
			return nil, ErrIdentifierTaken
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		d.RegistrationNo = in.RegistrationNo
	}
	d.Gender = in.Gender
	d.DateOfBirth = in.DateOfBirth
	d.Phone = in.Phone
	d.ExperienceYears = in.ExperienceYears
	d.Affiliation = in.Affiliation
	d.ClinicAddress = in.ClinicAddress
	d.ConsultationHours = in.ConsultationHours
	d.LanguagesSpoken = in.LanguagesSpoken
	d.ConsultationModes = in.ConsultationModes
	d.Qualifications = in.Qualifications
	if err := s.doctors.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// SetPatientPicture records the stored file id of the patient's profile
// picture.
func (s *Service) SetPatientPicture(ctx context.Context, id uuid.UUID, fileID string) error {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return err
	}
	p.ProfilePicture = &fileID
	return s.patients.Update(ctx, p)
}

func (s *Service) SetDoctorPicture(ctx context.Context, id uuid.UUID, fileID string) error {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return err
	}
	d.ProfilePicture = &fileID
	return s.doctors.Update(ctx, d)
}

// -- Onboarding --

// CompleteOnboarding merges the staged step 1 data with the step 2 payload and
// persists everything, including the completion flag, in one transaction.
func (s *Service) CompleteOnboarding(ctx context.Context, id uuid.UUID, data OnboardingData) (*Patient, error) {
	var out *Patient
	err := s.runTx(ctx, func(ctx context.Context) error {
		p, err := s.patients.GetByID(ctx, id)
		if err != nil {
			return err
		}
		p.BloodGroup = data.BloodGroup
		p.HeightCm = data.HeightCm
		p.WeightKg = data.WeightKg
		p.Allergies = data.Allergies
		p.ChronicDiseases = data.ChronicDiseases
		p.OnboardingComplete = true
		if err := s.patients.Update(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// -- Lookup for doctors --

func (s *Service) FindPatientByAadhaar(ctx context.Context, aadhaar string) (*Patient, error) {
	if !aadhaarRe.MatchString(aadhaar) {
		return nil, fmt.Errorf("aadhaar_number must be exactly 12 digits")
	}
	return s.patients.GetByAadhaar(ctx, aadhaar)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

func (s *Service) ListDoctors(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, limit, offset)
}
