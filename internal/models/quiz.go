package models

import "time"

// QuizQuestion is one item of a generated question set.
type QuizQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
}

// PublicQuizQuestion is a question as shown to the learner, without the answer.
type PublicQuizQuestion struct {
	Index    int      `json:"index"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// QuizResult is the Eligibility Gate verdict.
type QuizResult struct {
	Passed       bool `json:"passed"`
	Score        int  `json:"score"`
	Total        int  `json:"total"`
	PassingScore int  `json:"passing_score"`
}

// QuizSession holds the exact question set served for one attempt.
type QuizSession struct {
	AttemptID string         `json:"attempt_id"`
	UserID    string         `json:"user_id"`
	CourseID  string         `json:"course_id"`
	Questions []QuizQuestion `json:"questions"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Public strips correct answers from the session's questions.
func (s *QuizSession) Public() []PublicQuizQuestion {
	out := make([]PublicQuizQuestion, 0, len(s.Questions))
	for i, q := range s.Questions {
		out = append(out, PublicQuizQuestion{Index: i, Question: q.Question, Options: append([]string(nil), q.Options...)})
	}
	return out
}
