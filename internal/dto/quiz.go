package dto

import (
	"time"

	"github.com/noah-isme/coursevault-api/internal/models"
)

// QuizAnswer is one learner answer keyed by question index.
type QuizAnswer struct {
	Index  int    `json:"index" validate:"min=0"`
	Answer string `json:"answer"`
}

// SubmitQuizRequest carries the learner's answers.
type SubmitQuizRequest struct {
	Answers []QuizAnswer `json:"answers" validate:"dive"`
}

// AnswerMap folds the answers into index -> chosen option. Later duplicates win.
func (r SubmitQuizRequest) AnswerMap() map[int]string {
	out := make(map[int]string, len(r.Answers))
	for _, a := range r.Answers {
		out[a.Index] = a.Answer
	}
	return out
}

// QuizStartResponse is returned when a quiz attempt begins.
type QuizStartResponse struct {
	AttemptID    string                      `json:"attempt_id"`
	CourseID     string                      `json:"course_id"`
	Questions    []models.PublicQuizQuestion `json:"questions"`
	PassingScore int                         `json:"passing_score"`
	Attempts     int64                       `json:"previous_attempts"`
	ExpiresAt    time.Time                   `json:"expires_at"`
}

// QuizSubmitResponse is the gate verdict plus the certificate on a pass.
type QuizSubmitResponse struct {
	Result      models.QuizResult   `json:"result"`
	Attempt     int64               `json:"attempt"`
	Message     string              `json:"message"`
	Certificate *models.Certificate `json:"certificate,omitempty"`
	Created     bool                `json:"created"`
}
