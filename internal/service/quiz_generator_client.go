package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/coursevault-api/internal/models"
	appErrors "github.com/noah-isme/coursevault-api/pkg/errors"
)

const maxGeneratorResponseBytes = 1 << 20

// QuizGeneratorConfig points the client at the external question generator.
type QuizGeneratorConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// QuizGeneratorClient asks the external text-generation service for a
// question set. The response is treated as untrusted input.
type QuizGeneratorClient struct {
	client *http.Client
	cfg    QuizGeneratorConfig
	logger *zap.Logger
}

type generatorLesson struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type generatorRequest struct {
	CourseID    string            `json:"courseId"`
	CourseTitle string            `json:"courseTitle"`
	Level       string            `json:"level,omitempty"`
	Lessons     []generatorLesson `json:"lessons"`
	Count       int               `json:"count"`
}

type generatorQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}

type generatorResponse struct {
	Questions []generatorQuestion `json:"questions"`
}

// NewQuizGeneratorClient builds a client with a bounded timeout.
func NewQuizGeneratorClient(cfg QuizGeneratorConfig, logger *zap.Logger) *QuizGeneratorClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuizGeneratorClient{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		logger: logger,
	}
}

// Generate returns up to count well-formed questions for the course.
func (c *QuizGeneratorClient) Generate(ctx context.Context, course *models.Course, lessons []models.CourseLesson, count int) ([]models.QuizQuestion, error) {
	if strings.TrimSpace(c.cfg.URL) == "" {
		return nil, appErrors.Clone(appErrors.ErrQuizGenerator, "quiz generator is not configured")
	}
	if course == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course is required")
	}

	payload := generatorRequest{
		CourseID:    course.ID,
		CourseTitle: course.Title,
		Level:       course.Level,
		Lessons:     make([]generatorLesson, 0, len(lessons)),
		Count:       count,
	}
	for _, lesson := range lessons {
		payload.Lessons = append(payload.Lessons, generatorLesson{Title: lesson.Title, Content: lesson.Content})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode quiz request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrQuizGenerator.Code, appErrors.ErrQuizGenerator.Status, appErrors.ErrQuizGenerator.Message)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("quiz generator request failed", zap.String("course_id", course.ID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrQuizGenerator.Code, appErrors.ErrQuizGenerator.Status, appErrors.ErrQuizGenerator.Message)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxGeneratorResponseBytes))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrQuizGenerator.Code, appErrors.ErrQuizGenerator.Status, appErrors.ErrQuizGenerator.Message)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("quiz generator returned non-OK status",
			zap.String("course_id", course.ID),
			zap.Int("status", resp.StatusCode),
			zap.Duration("duration", time.Since(start)),
		)
		return nil, appErrors.Wrap(fmt.Errorf("generator status %d", resp.StatusCode), appErrors.ErrQuizGenerator.Code, appErrors.ErrQuizGenerator.Status, appErrors.ErrQuizGenerator.Message)
	}

	questions, err := decodeQuestions(raw)
	if err != nil {
		c.logger.Error("quiz generator returned malformed payload", zap.String("course_id", course.ID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrQuizGenerator.Code, appErrors.ErrQuizGenerator.Status, appErrors.ErrQuizGenerator.Message)
	}

	valid := sanitizeQuestions(questions)
	if dropped := len(questions) - len(valid); dropped > 0 {
		c.logger.Warn("dropped malformed quiz questions", zap.String("course_id", course.ID), zap.Int("dropped", dropped))
	}
	if len(valid) == 0 {
		return nil, appErrors.Clone(appErrors.ErrQuizGenerator, "")
	}
	if count > 0 && len(valid) > count {
		valid = valid[:count]
	}
	return valid, nil
}

// decodeQuestions accepts either {"questions": [...]} or a bare array.
func decodeQuestions(raw []byte) ([]generatorQuestion, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []generatorQuestion
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var wrapped generatorResponse
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Questions, nil
}

// sanitizeQuestions keeps questions with text, at least two options and a
// correct answer that is one of the options.
func sanitizeQuestions(in []generatorQuestion) []models.QuizQuestion {
	out := make([]models.QuizQuestion, 0, len(in))
	for _, q := range in {
		text := strings.TrimSpace(q.Question)
		answer := strings.TrimSpace(q.CorrectAnswer)
		options := make([]string, 0, len(q.Options))
		found := false
		for _, opt := range q.Options {
			opt = strings.TrimSpace(opt)
			if opt == "" {
				continue
			}
			if opt == answer {
				found = true
			}
			options = append(options, opt)
		}
		if text == "" || answer == "" || len(options) < 2 || !found {
			continue
		}
		out = append(out, models.QuizQuestion{Question: text, Options: options, CorrectAnswer: answer})
	}
	return out
}
