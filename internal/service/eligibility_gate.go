package service

import (
	"strings"

	"github.com/noah-isme/coursevault-api/internal/models"
)

// DefaultPassingScore is the fixed number of correct answers required to pass.
// It does not scale with the number of questions.
const DefaultPassingScore = 6

// EligibilityGate scores a quiz attempt against a fixed threshold.
type EligibilityGate struct {
	passingScore int
}

// NewEligibilityGate builds a gate. Thresholds below one are raised to one so
// an empty answer set can never pass.
func NewEligibilityGate(passingScore int) *EligibilityGate {
	if passingScore < 1 {
		passingScore = 1
	}
	return &EligibilityGate{passingScore: passingScore}
}

// PassingScore returns the configured threshold.
func (g *EligibilityGate) PassingScore() int {
	return g.passingScore
}

// Evaluate counts exact (trimmed) matches between the chosen and correct
// answers. Missing answers are wrong and indexes outside the question set are
// ignored.
func (g *EligibilityGate) Evaluate(questions []models.QuizQuestion, answers map[int]string) models.QuizResult {
	score := 0
	for i, q := range questions {
		chosen, ok := answers[i]
		if !ok {
			continue
		}
		if strings.TrimSpace(chosen) == strings.TrimSpace(q.CorrectAnswer) && strings.TrimSpace(chosen) != "" {
			score++
		}
	}
	return models.QuizResult{
		Passed:       score >= g.passingScore,
		Score:        score,
		Total:        len(questions),
		PassingScore: g.passingScore,
	}
}
