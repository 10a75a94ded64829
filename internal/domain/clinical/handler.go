package clinical

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ayushcare/portal/internal/platform/filestore"
	"github.com/ayushcare/portal/internal/platform/session"
	"github.com/ayushcare/portal/pkg/pagination"
)

type Handler struct {
	svc   *Service
	files filestore.Store
}

func NewHandler(svc *Service, files filestore.Store) *Handler {
	return &Handler{svc: svc, files: files}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	doctor := api.Group("/doctor", session.RequireRole(session.RoleDoctor))
	doctor.POST("/records", h.CreateRecord)
	doctor.GET("/records", h.ListOwnRecords)
	doctor.GET("/patients/:id/records", h.ListRecordsForPatient)
	doctor.POST("/conditions", h.AddCondition)
	doctor.POST("/conditions/:id/close", h.CloseCondition)
	doctor.GET("/conditions/active", h.ListActiveConditions)

	patient := api.Group("/patient", session.RequireRole(session.RolePatient))
	patient.GET("/records", h.ListMyRecords)
	patient.GET("/conditions", h.ListMyConditions)

	api.GET("/files/reports/:id", h.DownloadReport, session.RequireAuth())
}

func currentUserID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(session.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return id, nil
}

// CreateRecord accepts multipart form data so the clinical fields and an
// optional report file arrive in one request.
func (h *Handler) CreateRecord(c echo.Context) error {
	doctorID, err := currentUserID(c)
	if err != nil {
		return err
	}

	patientID, err := uuid.Parse(c.FormValue("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}

	in := RecordInput{
		PatientID:    patientID,
		Symptoms:     formPtr(c, "symptoms"),
		Diagnosis:    formPtr(c, "diagnosis"),
		Prescription: formPtr(c, "prescription"),
		Dose:         formPtr(c, "dose"),
	}

	// The report upload happens before the insert; on insert failure the
	// stored file is removed again.
	if file, err := c.FormFile("report_file"); err == nil {
		src, err := file.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to open uploaded file")
		}
		defer src.Close()

		info, err := h.files.Save(c.Request().Context(), filestore.CategoryReport,
			file.Filename, file.Header.Get("Content-Type"), src)
		if err != nil {
			switch {
			case errors.Is(err, filestore.ErrInvalidContentType):
				return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
			case errors.Is(err, filestore.ErrFileTooLarge):
				return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
			default:
				return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
			}
		}
		in.ReportFile = &info.ID
	}

	rec, err := h.svc.CreateRecord(c.Request().Context(), doctorID, in)
	if err != nil {
		if in.ReportFile != nil {
			_ = h.files.Delete(c.Request().Context(), filestore.CategoryReport, *in.ReportFile)
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, rec)
}

func formPtr(c echo.Context, name string) *string {
	v := c.FormValue(name)
	if v == "" {
		return nil
	}
	return &v
}

func (h *Handler) ListOwnRecords(c echo.Context) error {
	doctorID, err := currentUserID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDoctorRecords(c.Request().Context(), doctorID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListRecordsForPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPatientRecords(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListMyRecords(c echo.Context) error {
	patientID, err := currentUserID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPatientRecords(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// -- Conditions --

func (h *Handler) AddCondition(c echo.Context) error {
	var in ConditionInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cond, err := h.svc.AddCondition(c.Request().Context(), in)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, cond)
}

func (h *Handler) CloseCondition(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		EndDate *time.Time `json:"end_date,omitempty"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	cond, err := h.svc.CloseCondition(c.Request().Context(), id, body.EndDate)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "condition not found")
		case errors.Is(err, ErrAlreadyClosed):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusOK, cond)
}

func (h *Handler) ListActiveConditions(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ActiveConditions(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListMyConditions(c echo.Context) error {
	patientID, err := currentUserID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ActiveConditionsForPatient(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*PatientCondition{}
	}
	return c.JSON(http.StatusOK, items)
}

// DownloadReport streams a report file. Doctors can fetch any report; a
// patient only the reports attached to their own records.
func (h *Handler) DownloadReport(c echo.Context) error {
	ctx := c.Request().Context()
	fileID := c.Param("id")

	if session.RoleFromContext(ctx) == session.RolePatient {
		rec, err := h.svc.GetRecordByReportFile(ctx, fileID)
		if err != nil {
			return echo.NewHTTPError(http.StatusNotFound, "report not found")
		}
		owner, err := currentUserID(c)
		if err != nil {
			return err
		}
		if rec.PatientID != owner {
			return echo.NewHTTPError(http.StatusForbidden, "not your report")
		}
	}

	rc, err := h.files.Open(ctx, filestore.CategoryReport, fileID)
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "report not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	defer rc.Close()
	return c.Stream(http.StatusOK, "application/octet-stream", rc)
}
