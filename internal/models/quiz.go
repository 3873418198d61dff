package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Quiz struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	Title         string          `json:"title"`
	Algorithm     string          `json:"algorithm"`
	ConfigJSON    json.RawMessage `json:"config"`
	QuestionsJSON json.RawMessage `json:"questions"`
	QuestionCount int             `json:"question_count"`
	IsFavorite    bool            `json:"is_favorite"`
	CreatedAt     time.Time       `json:"created_at"`
}

type QuizAttempt struct {
	ID               uuid.UUID       `json:"id"`
	QuizID           uuid.UUID       `json:"quiz_id"`
	UserID           uuid.UUID       `json:"user_id"`
	AnswersJSON      json.RawMessage `json:"answers"`
	ScorePercent     *float64        `json:"score_percent"`
	CorrectCount     *int            `json:"correct_count"`
	StartedAt        time.Time       `json:"started_at"`
	CompletedAt      *time.Time      `json:"completed_at"`
	TimeTakenSeconds *int            `json:"time_taken_seconds"`
}

type QuizQuestion struct {
	Question     string   `json:"question"`
	Type         string   `json:"type"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation"`
	Hint         string   `json:"hint"`
	Difficulty   string   `json:"difficulty"`
	Topic        string   `json:"topic"`
}

// QuizAnswer is one stored answer of an attempt.
type QuizAnswer struct {
	QuestionIndex int `json:"question_index"`
	AnswerIndex   int `json:"answer_index"`
	Confidence    int `json:"confidence,omitempty"`
	TimeSpent     int `json:"time_spent,omitempty"`
}

type SaveProgressRequest struct {
	QuestionIndex int `json:"question_index"`
	AnswerIndex   int `json:"answer_index"`
	Confidence    int `json:"confidence"`
	TimeSpent     int `json:"time_spent"`
}

type SubmitAttemptRequest struct {
	TimeTakenSeconds int        `json:"time_taken_seconds"`
	SessionID        *uuid.UUID `json:"session_id"`
}

// QuestionResult reports how one graded question was rescheduled.
type QuestionResult struct {
	QuestionIndex int       `json:"question_index"`
	Correct       bool      `json:"correct"`
	Mastery       float64   `json:"mastery"`
	DueAt         time.Time `json:"due_at"`
}
