package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ayushcare/portal/internal/domain/clinical"
	"github.com/ayushcare/portal/internal/domain/identity"
	"github.com/ayushcare/portal/internal/domain/scheduling"
	"github.com/ayushcare/portal/internal/platform/genai"
)

var (
	ErrNotFound       = errors.New("assistant: not found")
	ErrNotYourSession = errors.New("assistant: chat session belongs to another patient")
)

// UnavailableReply is returned verbatim to the patient when the language
// model cannot be reached. The user message is still persisted so the
// conversation survives a retry.
const UnavailableReply = "Sorry, AI service is currently unavailable."

const (
	historyLimit    = 10
	contextRecords  = 50
	dietDefaultLang = "en"
)

// Directory resolves people referenced from chat context.
type Directory interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*identity.Doctor, error)
}

// History supplies the clinical side of the patient context.
type History interface {
	ListPatientRecords(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*clinical.MedicalRecord, int, error)
	ActiveConditionsForPatient(ctx context.Context, patientID uuid.UUID) ([]*clinical.PatientCondition, error)
}

// Schedule supplies upcoming appointments for the patient context.
type Schedule interface {
	UpcomingForPatient(ctx context.Context, patientID uuid.UUID) ([]*scheduling.Appointment, error)
}

type Service struct {
	sessions SessionRepository
	messages MessageRepository
	ai       genai.Client

	directory Directory
	history   History
	schedule  Schedule
}

func NewService(sessions SessionRepository, messages MessageRepository, ai genai.Client,
	directory Directory, history History, schedule Schedule) *Service {
	return &Service{
		sessions:  sessions,
		messages:  messages,
		ai:        ai,
		directory: directory,
		history:   history,
		schedule:  schedule,
	}
}

// NewSession opens a fresh chat session for the patient.
func (s *Service) NewSession(ctx context.Context, patientID uuid.UUID) (*ChatSession, error) {
	sess := &ChatSession{PatientID: patientID, Title: DefaultTitle}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Sessions lists the patient's chat sessions, newest first.
func (s *Service) Sessions(ctx context.Context, patientID uuid.UUID) ([]*ChatSession, error) {
	return s.sessions.ListByPatient(ctx, patientID)
}

// SessionMessages returns a session and its full transcript, enforcing
// ownership.
func (s *Service) SessionMessages(ctx context.Context, patientID, sessionID uuid.UUID) (*ChatSession, []*ChatMessage, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if sess.PatientID != patientID {
		return nil, nil, ErrNotYourSession
	}
	msgs, err := s.messages.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return sess, msgs, nil
}

// resolveSession picks the session a new message belongs to: the explicit one
// when given, otherwise the patient's most recent session, otherwise a fresh
// one.
func (s *Service) resolveSession(ctx context.Context, patientID uuid.UUID, explicit *uuid.UUID) (*ChatSession, error) {
	if explicit != nil {
		sess, err := s.sessions.GetByID(ctx, *explicit)
		if err != nil {
			return nil, err
		}
		if sess.PatientID != patientID {
			return nil, ErrNotYourSession
		}
		return sess, nil
	}
	sess, err := s.sessions.GetLatestByPatient(ctx, patientID)
	if errors.Is(err, ErrNotFound) {
		return s.NewSession(ctx, patientID)
	}
	return sess, err
}

// ChatResult carries the assistant's answer plus the session it landed in, so
// callers can pin follow-up messages to the same session.
type ChatResult struct {
	Session *ChatSession
	Reply   string
}

// Chat runs one exchange: persist the patient's message, assemble the prompt
// from chat history, medical data and upcoming appointments, ask the model,
// persist its reply. A model failure yields UnavailableReply without a
// persisted reply.
func (s *Service) Chat(ctx context.Context, patientID uuid.UUID, sessionID *uuid.UUID, text string) (*ChatResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("message must not be empty")
	}

	sess, err := s.resolveSession(ctx, patientID, sessionID)
	if err != nil {
		return nil, err
	}

	prior, err := s.messages.ListRecentBySession(ctx, sess.ID, historyLimit)
	if err != nil {
		return nil, err
	}

	userMsg := &ChatMessage{SessionID: sess.ID, PatientID: patientID, Sender: SenderUser, Message: text}
	if err := s.messages.Create(ctx, userMsg); err != nil {
		return nil, err
	}

	patientCtx, err := s.patientContext(ctx, patientID)
	if err != nil {
		return nil, err
	}

	reply, err := s.ai.Generate(ctx, chatPrompt(formatHistory(prior), patientCtx, text))
	if err != nil {
		return &ChatResult{Session: sess, Reply: UnavailableReply}, nil
	}

	aiMsg := &ChatMessage{SessionID: sess.ID, PatientID: patientID, Sender: SenderAI, Message: reply}
	if err := s.messages.Create(ctx, aiMsg); err != nil {
		return nil, err
	}

	// First exchange in a fresh session earns it a title. Best effort.
	if sess.Title == DefaultTitle && len(prior) <= 1 {
		if title := s.summarizeTitle(ctx, text); title != "" {
			sess.Title = title
			if err := s.sessions.Update(ctx, sess); err != nil {
				sess.Title = DefaultTitle
			}
		}
	}

	return &ChatResult{Session: sess, Reply: reply}, nil
}

func (s *Service) summarizeTitle(ctx context.Context, firstMessage string) string {
	prompt := fmt.Sprintf("Summarize the following user query into a short chat title (max 5 words): %q", firstMessage)
	title, err := s.ai.Generate(ctx, prompt)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.ReplaceAll(title, `"`, ""))
}

func formatHistory(msgs []*ChatMessage) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, strings.ToUpper(m.Sender)+": "+m.Message)
	}
	return strings.Join(lines, "\n")
}

// patientContext renders the patient's medical data and upcoming
// appointments as the plain-text block the chat prompt embeds.
func (s *Service) patientContext(ctx context.Context, patientID uuid.UUID) (string, error) {
	patient, err := s.directory.GetPatient(ctx, patientID)
	if err != nil {
		return "", err
	}
	conditions, err := s.history.ActiveConditionsForPatient(ctx, patientID)
	if err != nil {
		return "", err
	}
	records, _, err := s.history.ListPatientRecords(ctx, patientID, contextRecords, 0)
	if err != nil {
		return "", err
	}
	upcoming, err := s.schedule.UpcomingForPatient(ctx, patientID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	dob := "N/A"
	if patient.DateOfBirth != nil {
		dob = patient.DateOfBirth.Format("2006-01-02")
	}
	fmt.Fprintf(&b, "Patient Name: %s, DOB: %s\n", patient.Name, dob)

	b.WriteString("Active Conditions:\n")
	if len(conditions) == 0 {
		b.WriteString("- No active conditions recorded.\n")
	}
	for _, c := range conditions {
		fmt.Fprintf(&b, "- %s (since %s)\n", c.ConditionName, c.StartDate.Format("2006-01-02"))
	}

	b.WriteString("\nPast Medical Records:\n")
	if len(records) == 0 {
		b.WriteString("- No past medical records found.\n")
	}
	doctorNames := map[uuid.UUID]string{}
	for _, r := range records {
		name, ok := doctorNames[r.DoctorID]
		if !ok {
			name = "Unknown Doctor"
			if doc, err := s.directory.GetDoctor(ctx, r.DoctorID); err == nil {
				name = doc.Name
			}
			doctorNames[r.DoctorID] = name
		}
		fmt.Fprintf(&b, "- Date: %s, Doctor: %s, Symptoms: %s, Diagnosis: %s\n",
			r.RecordDate.Format("2006-01-02"), name, orNA(r.Symptoms), orNA(r.Diagnosis))
	}

	b.WriteString("\nUpcoming Appointments:\n")
	if len(upcoming) == 0 {
		b.WriteString("- No upcoming appointments scheduled.\n")
	}
	for _, a := range upcoming {
		name := "Unknown Doctor"
		if doc, err := s.directory.GetDoctor(ctx, a.DoctorID); err == nil {
			name = doc.Name
		}
		fmt.Fprintf(&b, "- With Dr. %s on %s, Mode: %s, Status: %s\n",
			name, a.StartsAt.Format("2006-01-02 at 03:04 PM"), a.Mode, a.Status)
	}

	return b.String(), nil
}

func orNA(s *string) string {
	if s == nil || *s == "" {
		return "N/A"
	}
	return *s
}

func chatPrompt(history, patientData, question string) string {
	return fmt.Sprintf(`You are a helpful medical AI assistant for 'AyushCare'.
Your knowledge is strictly limited to the patient data (including upcoming appointments) AND the PAST CHAT HISTORY provided below.
Use the Past Chat History to understand the context. Use the Upcoming Appointments section to answer appointment-related questions.

You must differentiate between two types of questions:
1. Factual History Questions: (e.g., "Who was my last doctor?", "When is my next appointment?") Answer directly from the data/past chat. DO NOT add warnings.
2. Medical Advice Questions: (e.g., "I have a headache")

Your task:
- Answer Factual History Questions directly.
- For Medical Advice Questions about symptoms in the 'Safe Medicine List', check active conditions. If no conflict, suggest the medicine AND start the response with [ADVICE] and end with "Lekin, ... doctor se zaroor poochein."
- For other advice questions, give a general safe response, start with [ADVICE] and end with the doctor warning.

--- SAFE MEDICINE LIST START ---
- Headache (Sar Dard): Paracetamol
- Common Cold (Sardi/Zukam): Cetirizine
- Acidity (Gas): Antacid Gel
- General Body Pain: Paracetamol
--- SAFE MEDICINE LIST END ---

--- PAST CHAT HISTORY START ---
%s
--- PAST CHAT HISTORY END ---

--- PATIENT'S MEDICAL DATA & APPOINTMENTS START ---
%s
--- PATIENT'S MEDICAL DATA & APPOINTMENTS END ---

PATIENT'S CURRENT QUESTION: %q

ASSISTANT'S RESPONSE (in Hinglish):`, history, patientData, question)
}

// DietAdviceFor asks the model for foods to avoid and recommend, structured
// as JSON in the requested language.
func (s *Service) DietAdviceFor(ctx context.Context, disease, medicine, language string) (*DietAdvice, error) {
	disease = strings.TrimSpace(disease)
	if disease == "" {
		return nil, fmt.Errorf("disease must not be empty")
	}
	if language == "" {
		language = dietDefaultLang
	}
	med := strings.TrimSpace(medicine)
	if med == "" {
		med = "None"
	}
	prompt := fmt.Sprintf(`You are an expert dietician. Your response MUST be in the %s language.
Generate a list of foods to 'avoid' and 'recommend' based on the user's query.
Structure your response ONLY as a single, valid JSON object with "avoid" and "recommend" keys, which are arrays of strings.

User Query:
- Disease: %s
- Optional Medicine: %s`, language, disease, med)

	raw, err := s.ai.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	var advice DietAdvice
	if err := json.Unmarshal([]byte(stripFences(raw)), &advice); err != nil {
		return nil, fmt.Errorf("%w: %v", genai.ErrMalformed, err)
	}
	return &advice, nil
}

// LabelReport bundles the model's verdict with the patient it was produced
// for.
type LabelReport struct {
	Analysis    *LabelAnalysis `json:"health_analysis"`
	PatientName string         `json:"patient_name"`
}

// AnalyzeLabel sends a photo of a product label to the vision model along
// with the patient's health profile and returns the structured verdict.
func (s *Service) AnalyzeLabel(ctx context.Context, patientID uuid.UUID, image []byte, mimeType string) (*LabelReport, error) {
	patient, err := s.directory.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	conditions, err := s.history.ActiveConditionsForPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	profile := struct {
		Conditions []string `json:"conditions"`
		Allergies  []string `json:"allergies"`
	}{Conditions: []string{}, Allergies: []string{}}
	for _, c := range conditions {
		profile.Conditions = append(profile.Conditions, c.ConditionName)
	}
	if patient.Allergies != nil && *patient.Allergies != "" {
		for _, a := range strings.Split(*patient.Allergies, ",") {
			profile.Allergies = append(profile.Allergies, strings.TrimSpace(a))
		}
	}
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`You are an expert AI Nutritionist for AyushCare.
- User Health Profile: %s
- The attached image is a photo of a product package.
TASK:
1. Locate the ingredients list in the image.
2. Compare each ingredient against the user's health profile.
3. Provide a final verdict: "Safe", "Eat in Moderation", or "Not Recommended".
4. Write a concise reason.
5. List the specific ingredients you identified as risky.
6. Suggest 1-2 safer alternative product types if the product is not "Safe".
7. You MUST output your response ONLY as a single, valid JSON object with keys: "status", "reason", "risky_ingredients", "suggestions".`, profileJSON)

	raw, err := s.ai.GenerateVision(ctx, prompt, image, mimeType)
	if err != nil {
		return nil, err
	}
	var analysis LabelAnalysis
	if err := json.Unmarshal([]byte(stripFences(raw)), &analysis); err != nil {
		return nil, fmt.Errorf("%w: %v", genai.ErrMalformed, err)
	}
	return &LabelReport{Analysis: &analysis, PatientName: patient.Name}, nil
}

// stripFences removes markdown code fences models sometimes wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
