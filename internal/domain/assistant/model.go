package assistant

import (
	"time"

	"github.com/google/uuid"
)

// DefaultTitle is the placeholder a session carries until the first exchange
// earns it a real one.
const DefaultTitle = "New Chat"

// Message senders.
const (
	SenderUser = "user"
	SenderAI   = "ai"
)

// ChatSession maps to the chat_session table.
type ChatSession struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	Title     string    `db:"title" json:"title"`
	StartedAt time.Time `db:"started_at" json:"started_at"`
}

// ChatMessage maps to the chat_message table.
type ChatMessage struct {
	ID        uuid.UUID `db:"id" json:"id"`
	SessionID uuid.UUID `db:"session_id" json:"session_id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	Sender    string    `db:"sender" json:"sender"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// DietAdvice is the structured answer of the diet advisor.
type DietAdvice struct {
	Avoid     []string `json:"avoid"`
	Recommend []string `json:"recommend"`
}

// LabelAnalysis is the structured verdict of the food label scanner.
type LabelAnalysis struct {
	Status           string   `json:"status"`
	Reason           string   `json:"reason"`
	RiskyIngredients []string `json:"risky_ingredients"`
	Suggestions      []string `json:"suggestions"`
}
