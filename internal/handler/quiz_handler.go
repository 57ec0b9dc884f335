package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coursevault-api/internal/dto"
	"github.com/noah-isme/coursevault-api/internal/models"
	appErrors "github.com/noah-isme/coursevault-api/pkg/errors"
	"github.com/noah-isme/coursevault-api/pkg/response"
)

type quizService interface {
	StartQuiz(ctx context.Context, courseID string, actor *models.JWTClaims) (*dto.QuizStartResponse, error)
	SubmitQuiz(ctx context.Context, courseID, attemptID string, req dto.SubmitQuizRequest, actor *models.JWTClaims) (*dto.QuizSubmitResponse, error)
}

// QuizHandler exposes the certification quiz.
type QuizHandler struct {
	service quizService
}

// NewQuizHandler constructs the handler.
func NewQuizHandler(service quizService) *QuizHandler {
	return &QuizHandler{service: service}
}

// Start godoc
// @Summary Start a certification quiz
// @Description Generates a question set for the course. Correct answers are never returned.
// @Tags Quiz
// @Produce json
// @Security BearerAuth
// @Param courseId path string true "Course ID"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /courses/{courseId}/quiz [post]
func (h *QuizHandler) Start(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	started, err := h.service.StartQuiz(c.Request.Context(), c.Param("courseId"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, started)
}

// Submit godoc
// @Summary Submit quiz answers
// @Description A failing score is a normal result; the learner may start a new attempt.
// @Tags Quiz
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param courseId path string true "Course ID"
// @Param attemptId path string true "Attempt ID"
// @Param payload body dto.SubmitQuizRequest true "Answers"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{courseId}/quiz/{attemptId}/submit [post]
func (h *QuizHandler) Submit(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.SubmitQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid quiz answers"))
		return
	}
	result, err := h.service.SubmitQuiz(c.Request.Context(), c.Param("courseId"), c.Param("attemptId"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
