package identity

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table. PasswordHash never leaves the server.
type Patient struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	Name               string     `db:"name" json:"name"`
	Email              string     `db:"email" json:"email"`
	AadhaarNumber      string     `db:"aadhaar_number" json:"aadhaar_number"`
	PasswordHash       string     `db:"password_hash" json:"-"`
	DateOfBirth        *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	ProfilePicture     *string    `db:"profile_picture" json:"profile_picture,omitempty"`
	BloodGroup         *string    `db:"blood_group" json:"blood_group,omitempty"`
	HeightCm           *int       `db:"height_cm" json:"height_cm,omitempty"`
	WeightKg           *int       `db:"weight_kg" json:"weight_kg,omitempty"`
	Allergies          *string    `db:"allergies" json:"allergies,omitempty"`
	ChronicDiseases    *string    `db:"chronic_diseases" json:"chronic_diseases,omitempty"`
	OnboardingComplete bool       `db:"onboarding_complete" json:"onboarding_complete"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// Doctor maps to the doctor table.
type Doctor struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	Name              string     `db:"name" json:"name"`
	Specialty         string     `db:"specialty" json:"specialty"`
	Email             string     `db:"email" json:"email"`
	RegistrationNo    string     `db:"registration_no" json:"registration_no"`
	PasswordHash      string     `db:"password_hash" json:"-"`
	Gender            *string    `db:"gender" json:"gender,omitempty"`
	DateOfBirth       *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Phone             *string    `db:"phone" json:"phone,omitempty"`
	ExperienceYears   *int       `db:"experience_years" json:"experience_years,omitempty"`
	Affiliation       *string    `db:"affiliation" json:"affiliation,omitempty"`
	ClinicAddress     *string    `db:"clinic_address" json:"clinic_address,omitempty"`
	ConsultationHours *string    `db:"consultation_hours" json:"consultation_hours,omitempty"`
	LanguagesSpoken   *string    `db:"languages_spoken" json:"languages_spoken,omitempty"`
	ConsultationModes *string    `db:"consultation_modes" json:"consultation_modes,omitempty"`
	Qualifications    *string    `db:"qualifications" json:"qualifications,omitempty"`
	ProfilePicture    *string    `db:"profile_picture" json:"profile_picture,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// OnboardingData is the payload collected by the two-step patient onboarding
// wizard. Step 1 is staged in the session store; step 2 merges both steps and
// persists them in a single transaction.
type OnboardingData struct {
	BloodGroup      *string `json:"blood_group,omitempty"`
	HeightCm        *int    `json:"height_cm,omitempty"`
	WeightKg        *int    `json:"weight_kg,omitempty"`
	Allergies       *string `json:"allergies,omitempty"`
	ChronicDiseases *string `json:"chronic_diseases,omitempty"`
}
