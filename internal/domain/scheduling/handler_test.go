package scheduling

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ayushcare/portal/internal/platform/session"
)

func newTestApp(t *testing.T) (*echo.Echo, *session.Manager) {
	t.Helper()
	mgr := session.NewManager([]byte("0123456789abcdef0123456789abcdef"), time.Hour, false, session.NewMemoryStore())
	h := NewHandler(newTestService())

	e := echo.New()
	e.Use(mgr.Middleware())
	h.RegisterRoutes(e.Group("/api"))
	return e, mgr
}

func authCookie(t *testing.T, mgr *session.Manager, userID uuid.UUID, role string) *http.Cookie {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	if _, err := mgr.Issue(e.NewContext(req, rec), userID.String(), role); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == session.CookieName {
			return ck
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func doJSON(t *testing.T, e *echo.Echo, method, path string, body interface{}, ck *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if ck != nil {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestBookEndpoint_EntersPendingConfirmation(t *testing.T) {
	e, mgr := newTestApp(t)
	patientID, doctorID := uuid.New(), uuid.New()
	ck := authCookie(t, mgr, patientID, session.RolePatient)

	rec := doJSON(t, e, http.MethodPost, "/api/patient/appointments", echo.Map{
		"doctor_id": doctorID,
		"starts_at": time.Now().Add(72 * time.Hour).Format(time.RFC3339),
		"reason":    "knee pain",
		"mode":      ModeVideoCall,
	}, ck)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}

	var a Appointment
	if err := json.Unmarshal(rec.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a.Status != StatusPending {
		t.Fatalf("status = %q, want %q", a.Status, StatusPending)
	}
	if a.PatientID != patientID {
		t.Fatalf("patient_id = %s", a.PatientID)
	}
}

func TestBookEndpoint_DoctorRoleRejected(t *testing.T) {
	e, mgr := newTestApp(t)
	ck := authCookie(t, mgr, uuid.New(), session.RoleDoctor)

	rec := doJSON(t, e, http.MethodPost, "/api/patient/appointments", echo.Map{
		"doctor_id": uuid.New(),
		"starts_at": time.Now().Add(time.Hour).Format(time.RFC3339),
		"reason":    "checkup",
	}, ck)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestUpdateStatusEndpoint_TransitionRules(t *testing.T) {
	e, mgr := newTestApp(t)
	patientID, doctorID := uuid.New(), uuid.New()
	patientCk := authCookie(t, mgr, patientID, session.RolePatient)
	doctorCk := authCookie(t, mgr, doctorID, session.RoleDoctor)

	rec := doJSON(t, e, http.MethodPost, "/api/patient/appointments", echo.Map{
		"doctor_id": doctorID,
		"starts_at": time.Now().Add(72 * time.Hour).Format(time.RFC3339),
		"reason":    "follow-up",
	}, patientCk)
	var a Appointment
	if err := json.Unmarshal(rec.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	path := "/api/doctor/appointments/" + a.ID.String() + "/status"

	// Patients cannot drive the workflow.
	rec = doJSON(t, e, http.MethodPut, path, echo.Map{"status": StatusScheduled}, patientCk)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("patient update status = %d", rec.Code)
	}

	// pending -> completed skips confirmation and is rejected.
	rec = doJSON(t, e, http.MethodPut, path, echo.Map{"status": StatusCompleted}, doctorCk)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("illegal transition status = %d", rec.Code)
	}

	rec = doJSON(t, e, http.MethodPut, path, echo.Map{"status": StatusScheduled}, doctorCk)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm status = %d body = %s", rec.Code, rec.Body.String())
	}

	// Another doctor cannot touch this appointment.
	otherCk := authCookie(t, mgr, uuid.New(), session.RoleDoctor)
	rec = doJSON(t, e, http.MethodPut, path, echo.Map{"status": StatusCancelled}, otherCk)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign doctor status = %d", rec.Code)
	}

	rec = doJSON(t, e, http.MethodPut, path, echo.Map{"status": StatusCompleted}, doctorCk)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete status = %d", rec.Code)
	}
}

func TestUpdateStatusEndpoint_UnknownAppointment(t *testing.T) {
	e, mgr := newTestApp(t)
	ck := authCookie(t, mgr, uuid.New(), session.RoleDoctor)

	rec := doJSON(t, e, http.MethodPut, "/api/doctor/appointments/"+uuid.NewString()+"/status",
		echo.Map{"status": StatusScheduled}, ck)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestListAppointments_ScopedToCaller(t *testing.T) {
	e, mgr := newTestApp(t)
	patientID, doctorID := uuid.New(), uuid.New()
	patientCk := authCookie(t, mgr, patientID, session.RolePatient)

	doJSON(t, e, http.MethodPost, "/api/patient/appointments", echo.Map{
		"doctor_id": doctorID,
		"starts_at": time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		"reason":    "checkup",
	}, patientCk)

	rec := doJSON(t, e, http.MethodGet, "/api/patient/appointments", nil, patientCk)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var page struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("total = %d, want 1", page.Total)
	}

	otherCk := authCookie(t, mgr, uuid.New(), session.RolePatient)
	rec = doJSON(t, e, http.MethodGet, "/api/patient/appointments", nil, otherCk)
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 0 {
		t.Fatalf("foreign patient total = %d, want 0", page.Total)
	}
}
