package identity

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ayushcare/portal/internal/platform/filestore"
	"github.com/ayushcare/portal/internal/platform/session"
	"github.com/ayushcare/portal/pkg/pagination"
)

const (
	otpTTL        = 5 * time.Minute
	onboardingTTL = 30 * time.Minute
)

type Handler struct {
	svc      *Service
	sessions *session.Manager
	files    filestore.Store
	log      zerolog.Logger
}

func NewHandler(svc *Service, sessions *session.Manager, files filestore.Store, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, sessions: sessions, files: files, log: log}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/auth/signup", h.Signup)
	api.POST("/auth/send-otp", h.SendOTP)
	api.POST("/auth/login", h.OTPLogin)
	api.POST("/auth/password-login", h.PasswordLogin)
	api.POST("/auth/logout", h.Logout)

	patient := api.Group("/patient", session.RequireRole(session.RolePatient))
	patient.GET("/profile", h.GetPatientProfile)
	patient.PUT("/profile", h.UpdatePatientProfile)
	patient.POST("/profile/picture", h.UploadPatientPicture)
	patient.POST("/onboarding/1", h.OnboardingStep1)
	patient.POST("/onboarding/2", h.OnboardingStep2)

	doctor := api.Group("/doctor", session.RequireRole(session.RoleDoctor))
	doctor.GET("/profile", h.GetDoctorProfile)
	doctor.PUT("/profile", h.UpdateDoctorProfile)
	doctor.POST("/profile/picture", h.UploadDoctorPicture)
	doctor.GET("/patients", h.ListPatients)
	doctor.GET("/patients/search", h.SearchPatient)

	api.GET("/doctors", h.ListDoctors, session.RequireAuth())
	api.GET("/files/pictures/:id", h.DownloadPicture, session.RequireAuth())
}

// -- Auth --

type signupRequest struct {
	SignupRole string `json:"signup_role"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	// Identifier is the aadhaar number for patients, the registration number
	// for doctors.
	Identifier  string     `json:"identifier"`
	Password    string     `json:"password"`
	Specialty   string     `json:"specialty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
}

func (h *Handler) Signup(c echo.Context) error {
	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	switch req.SignupRole {
	case session.RolePatient:
		p, err := h.svc.SignupPatient(ctx, SignupPatientInput{
			Name:          req.Name,
			Email:         req.Email,
			AadhaarNumber: req.Identifier,
			Password:      req.Password,
			DateOfBirth:   req.DateOfBirth,
		})
		if err != nil {
			return signupError(err)
		}
		return c.JSON(http.StatusCreated, p)
	case session.RoleDoctor:
		d, err := h.svc.SignupDoctor(ctx, SignupDoctorInput{
			Name:           req.Name,
			Email:          req.Email,
			RegistrationNo: req.Identifier,
			Password:       req.Password,
			Specialty:      req.Specialty,
		})
		if err != nil {
			return signupError(err)
		}
		return c.JSON(http.StatusCreated, d)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "invalid role specified")
	}
}

func signupError(err error) error {
	if errors.Is(err, ErrEmailTaken) || errors.Is(err, ErrIdentifierTaken) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

type sendOTPRequest struct {
	Identifier string `json:"identifier"`
	Role       string `json:"role"`
}

func (h *Handler) SendOTP(c echo.Context) error {
	var req sendOTPRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	if _, _, err := h.svc.LookupByIdentifier(ctx, req.Role, req.Identifier); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user with this identifier not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	// The OTP is bound to the caller's session; verification must happen from
	// the same browser session that requested it.
	sid := session.SessionIDFromContext(ctx)
	if sid == "" {
		var err error
		sid, err = h.sessions.IssueAnonymous(c)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	code, err := GenerateOTP()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	store := h.sessions.Store()
	if err := store.Set(ctx, sid+":otp", code, otpTTL); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := store.Set(ctx, sid+":otp_user", req.Identifier, otpTTL); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	// Mock OTP delivery: no SMS gateway is wired, so the code goes back in the
	// response and into the log.
	h.log.Info().Str("identifier", req.Identifier).Str("otp", code).Msg("mock otp generated")
	return c.JSON(http.StatusOK, map[string]string{
		"message":  "A mock OTP has been generated.",
		"mock_otp": code,
	})
}

type otpLoginRequest struct {
	Identifier string `json:"identifier"`
	OTP        string `json:"otp"`
	Role       string `json:"role"`
}

func (h *Handler) OTPLogin(c echo.Context) error {
	var req otpLoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	sid := session.SessionIDFromContext(ctx)
	store := h.sessions.Store()

	code, err := store.Get(ctx, sid+":otp")
	if err != nil || code == "" || code != req.OTP {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid OTP, please try again")
	}
	boundTo, err := store.Get(ctx, sid+":otp_user")
	if err != nil || boundTo != req.Identifier {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid OTP, please try again")
	}

	userID, onboarded, err := h.svc.LookupByIdentifier(ctx, req.Role, req.Identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user with this identifier not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	// The one-time code is spent regardless of what happens next.
	_ = store.DeletePrefix(ctx, sid+":")

	if _, err := h.sessions.Issue(c, userID.String(), req.Role); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":             "login successful",
		"user_id":             userID,
		"role":                req.Role,
		"onboarding_complete": onboarded,
		"redirect":            redirectFor(req.Role, onboarded),
	})
}

// redirectFor tells the frontend where to land after login.
func redirectFor(role string, onboarded bool) string {
	if role == session.RoleDoctor {
		return "/doctor/dashboard"
	}
	if !onboarded {
		return "/patient/onboarding"
	}
	return "/patient/dashboard"
}

type passwordLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *Handler) PasswordLogin(c echo.Context) error {
	var req passwordLoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	userID, onboarded, err := h.svc.PasswordLogin(ctx, req.Role, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if _, err := h.sessions.Issue(c, userID.String(), req.Role); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":             "login successful",
		"user_id":             userID,
		"role":                req.Role,
		"onboarding_complete": onboarded,
		"redirect":            redirectFor(req.Role, onboarded),
	})
}

func (h *Handler) Logout(c echo.Context) error {
	if err := h.sessions.Clear(c); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "you have been logged out"})
}

// -- Patient profile --

func (h *Handler) currentUserID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(session.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return id, nil
}

func (h *Handler) GetPatientProfile(c echo.Context) error {
	id, err := h.currentUserID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePatientProfile(c echo.Context) error {
	id, err := h.currentUserID(c)
	if err != nil {
		return err
	}
	var in PatientProfileInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.UpdatePatientProfile(c.Request().Context(), id, in)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UploadPatientPicture(c echo.Context) error {
	id, err := h.currentUserID(c)
	if err != nil {
		return err
	}
	info, err := h.savePicture(c)
	if err != nil {
		return err
	}
	if err := h.svc.SetPatientPicture(c.Request().Context(), id, info.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, info)
}

// -- Onboarding --

func (h *Handler) OnboardingStep1(c echo.Context) error {
	if _, err := h.currentUserID(c); err != nil {
		return err
	}
	var step1 struct {
		BloodGroup *string `json:"blood_group,omitempty"`
		HeightCm   *int    `json:"height_cm,omitempty"`
		WeightKg   *int    `json:"weight_kg,omitempty"`
	}
	if err := c.Bind(&step1); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	staged, err := json.Marshal(step1)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	sid := session.SessionIDFromContext(ctx)
	if err := h.sessions.Store().Set(ctx, sid+":onboarding", string(staged), onboardingTTL); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "step 1 saved", "next_step": 2})
}

func (h *Handler) OnboardingStep2(c echo.Context) error {
	id, err := h.currentUserID(c)
	if err != nil {
		return err
	}
	var step2 struct {
		Allergies       *string `json:"allergies,omitempty"`
		ChronicDiseases *string `json:"chronic_diseases,omitempty"`
	}
	if err := c.Bind(&step2); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	sid := session.SessionIDFromContext(ctx)
	store := h.sessions.Store()

	// Step 1 data may be absent when the wizard is replayed out of order;
	// those fields then stay empty rather than failing the completion.
	var data OnboardingData
	if staged, err := store.Get(ctx, sid+":onboarding"); err == nil {
		if err := json.Unmarshal([]byte(staged), &data); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	data.Allergies = step2.Allergies
	data.ChronicDiseases = step2.ChronicDiseases

	p, err := h.svc.CompleteOnboarding(ctx, id, data)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	_ = store.Delete(ctx, sid+":onboarding")

	return c.JSON(http.StatusOK, p)
}

// -- Doctor profile --

func (h *Handler) GetDoctorProfile(c echo.Context) error {
	id, err := h.currentUserID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "doctor not found")
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) UpdateDoctorProfile(c echo.Context) error {
	id, err := h.currentUserID(c)
	if err != nil {
		return err
	}
	var in DoctorProfileInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.UpdateDoctorProfile(c.Request().Context(), id, in)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "doctor not found")
		case errors.Is(err, ErrIdentifierTaken):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) UploadDoctorPicture(c echo.Context) error {
	id, err := h.currentUserID(c)
	if err != nil {
		return err
	}
	info, err := h.savePicture(c)
	if err != nil {
		return err
	}
	if err := h.svc.SetDoctorPicture(c.Request().Context(), id, info.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, info)
}

func (h *Handler) savePicture(c echo.Context) (*filestore.FileInfo, error) {
	file, err := c.FormFile("profile_picture")
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "profile_picture file is required")
	}
	src, err := file.Open()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to open uploaded file")
	}
	defer src.Close()

	info, err := h.files.Save(c.Request().Context(), filestore.CategoryPicture,
		file.Filename, file.Header.Get("Content-Type"), src)
	if err != nil {
		switch {
		case errors.Is(err, filestore.ErrInvalidContentType):
			return nil, echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
		case errors.Is(err, filestore.ErrFileTooLarge):
			return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
		default:
			return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return info, nil
}

func (h *Handler) DownloadPicture(c echo.Context) error {
	rc, err := h.files.Open(c.Request().Context(), filestore.CategoryPicture, c.Param("id"))
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "picture not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	defer rc.Close()
	return c.Stream(http.StatusOK, "application/octet-stream", rc)
}

// -- Doctor views of patients --

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPatients(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// ListDoctors backs the booking form's doctor picker. Any signed-in user can
// browse the directory.
func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDoctors(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) SearchPatient(c echo.Context) error {
	aadhaar := c.QueryParam("aadhaar")
	if aadhaar == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "aadhaar query parameter is required")
	}
	p, err := h.svc.FindPatientByAadhaar(c.Request().Context(), aadhaar)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "no patient with this aadhaar number")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}
