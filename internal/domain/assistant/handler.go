package assistant

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ayushcare/portal/internal/platform/genai"
	"github.com/ayushcare/portal/internal/platform/session"
)

// chatPointerTTL bounds how long the active-session pointer survives in the
// session store.
const chatPointerTTL = 24 * time.Hour

type Handler struct {
	svc      *Service
	sessions *session.Manager
	log      zerolog.Logger
}

func NewHandler(svc *Service, sessions *session.Manager, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, sessions: sessions, log: log}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	chat := api.Group("/chat", session.RequireRole(session.RolePatient))
	chat.POST("", h.Chat)
	chat.POST("/new", h.NewSession)
	chat.GET("/sessions", h.ListSessions)
	chat.GET("/sessions/:id", h.LoadSession)

	// The diet advisor needs no patient context, so it stays open to
	// unauthenticated callers.
	api.POST("/diet-advice", h.DietAdvice)
	api.POST("/analyze-ingredients", h.AnalyzeIngredients, session.RequireRole(session.RolePatient))
}

func currentUserID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(session.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return id, nil
}

func (h *Handler) pointerKey(c echo.Context) string {
	return session.SessionIDFromContext(c.Request().Context()) + ":chat_session"
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Reply     string    `json:"reply"`
	SessionID uuid.UUID `json:"session_id"`
	Title     string    `json:"title"`
}

func (h *Handler) Chat(c echo.Context) error {
	patientID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message cannot be empty")
	}

	ctx := c.Request().Context()

	// Explicit session id wins; otherwise fall back to the pointer staged in
	// the session store.
	var explicit *uuid.UUID
	if req.SessionID != "" {
		id, err := uuid.Parse(req.SessionID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid session_id")
		}
		explicit = &id
	} else if v, err := h.sessions.Store().Get(ctx, h.pointerKey(c)); err == nil {
		if id, err := uuid.Parse(v); err == nil {
			explicit = &id
		}
	}

	res, err := h.svc.Chat(ctx, patientID, explicit, req.Message)
	if err != nil {
		return h.chatError(err)
	}
	if res.Reply == UnavailableReply {
		h.log.Warn().Stringer("session_id", res.Session.ID).Msg("chat reply unavailable, model call failed")
	}

	if err := h.sessions.Store().Set(ctx, h.pointerKey(c), res.Session.ID.String(), chatPointerTTL); err != nil {
		h.log.Warn().Err(err).Msg("failed to stage chat session pointer")
	}

	return c.JSON(http.StatusOK, chatResponse{
		Reply:     res.Reply,
		SessionID: res.Session.ID,
		Title:     res.Session.Title,
	})
}

func (h *Handler) chatError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "chat session not found")
	case errors.Is(err, ErrNotYourSession):
		return echo.NewHTTPError(http.StatusForbidden, "chat session belongs to another patient")
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

func (h *Handler) NewSession(c echo.Context) error {
	patientID, err := currentUserID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	sess, err := h.svc.NewSession(ctx, patientID)
	if err != nil {
		return err
	}
	if err := h.sessions.Store().Set(ctx, h.pointerKey(c), sess.ID.String(), chatPointerTTL); err != nil {
		h.log.Warn().Err(err).Msg("failed to stage chat session pointer")
	}
	return c.JSON(http.StatusCreated, sess)
}

func (h *Handler) ListSessions(c echo.Context) error {
	patientID, err := currentUserID(c)
	if err != nil {
		return err
	}
	sessions, err := h.svc.Sessions(c.Request().Context(), patientID)
	if err != nil {
		return err
	}
	if sessions == nil {
		sessions = []*ChatSession{}
	}
	return c.JSON(http.StatusOK, sessions)
}

func (h *Handler) LoadSession(c echo.Context) error {
	patientID, err := currentUserID(c)
	if err != nil {
		return err
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}
	ctx := c.Request().Context()

	sess, msgs, err := h.svc.SessionMessages(ctx, patientID, sessionID)
	if err != nil {
		return h.chatError(err)
	}
	if msgs == nil {
		msgs = []*ChatMessage{}
	}

	// Loading a session makes it the active one for follow-up messages.
	if err := h.sessions.Store().Set(ctx, h.pointerKey(c), sess.ID.String(), chatPointerTTL); err != nil {
		h.log.Warn().Err(err).Msg("failed to stage chat session pointer")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"session":  sess,
		"messages": msgs,
	})
}

type dietRequest struct {
	Disease  string `json:"disease"`
	Medicine string `json:"medicine"`
	Language string `json:"language"`
}

func (h *Handler) DietAdvice(c echo.Context) error {
	var req dietRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	advice, err := h.svc.DietAdviceFor(c.Request().Context(), req.Disease, req.Medicine, req.Language)
	if err != nil {
		return h.modelError(err)
	}
	return c.JSON(http.StatusOK, advice)
}

func (h *Handler) AnalyzeIngredients(c echo.Context) error {
	patientID, err := currentUserID(c)
	if err != nil {
		return err
	}

	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "no image file provided")
	}
	contentType := file.Header.Get("Content-Type")
	if contentType != "image/png" && contentType != "image/jpeg" {
		return echo.NewHTTPError(http.StatusBadRequest, "image must be PNG or JPEG")
	}

	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to open uploaded file")
	}
	defer src.Close()

	image, err := io.ReadAll(io.LimitReader(src, 16<<20))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read uploaded file")
	}
	if len(image) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "empty image file")
	}

	report, err := h.svc.AnalyzeLabel(c.Request().Context(), patientID, image, contentType)
	if err != nil {
		return h.modelError(err)
	}
	return c.JSON(http.StatusOK, report)
}

// modelError translates generative-model failures for the structured
// endpoints, where there is no graceful fallback reply.
func (h *Handler) modelError(err error) error {
	switch {
	case errors.Is(err, genai.ErrUpstreamAuth):
		h.log.Error().Err(err).Msg("model credentials rejected")
		return echo.NewHTTPError(http.StatusBadGateway, "AI service rejected the request")
	case errors.Is(err, genai.ErrMalformed):
		h.log.Error().Err(err).Msg("model returned malformed payload")
		return echo.NewHTTPError(http.StatusBadGateway, "AI service returned an unusable response")
	case errors.Is(err, genai.ErrUnavailable):
		h.log.Warn().Err(err).Msg("model unavailable")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "AI service is currently unavailable")
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
