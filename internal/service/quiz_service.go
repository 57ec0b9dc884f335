package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/coursevault-api/internal/dto"
	"github.com/noah-isme/coursevault-api/internal/models"
	"github.com/noah-isme/coursevault-api/internal/repository"
	appErrors "github.com/noah-isme/coursevault-api/pkg/errors"
)

const (
	defaultQuestionCount = 10
	defaultSessionTTL    = 2 * time.Hour
)

type quizQuestionSource interface {
	Generate(ctx context.Context, course *models.Course, lessons []models.CourseLesson, count int) ([]models.QuizQuestion, error)
}

type quizSessionStore interface {
	Save(ctx context.Context, session *models.QuizSession, ttl time.Duration) error
	Take(ctx context.Context, attemptID string) (*models.QuizSession, error)
	IncrementAttempts(ctx context.Context, userID, courseID string) (int64, error)
	Attempts(ctx context.Context, userID, courseID string) (int64, error)
}

type quizCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ListLessons(ctx context.Context, courseID string) ([]models.CourseLesson, error)
}

type quizCertificateIssuer interface {
	Issue(ctx context.Context, in IssueCertificateInput) (*models.Certificate, bool, error)
	GetForLearner(ctx context.Context, courseID string, actor *models.JWTClaims) (*models.Certificate, error)
}

// QuizServiceConfig sizes quiz attempts.
type QuizServiceConfig struct {
	QuestionCount int
	SessionTTL    time.Duration
}

// QuizService runs the quiz-gated issuance path: serve a question set, score
// the answers against exactly that set, and issue on a pass.
type QuizService struct {
	courses      quizCourseReader
	users        userReader
	questions    quizQuestionSource
	sessions     quizSessionStore
	gate         *EligibilityGate
	certificates quizCertificateIssuer
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	config       QuizServiceConfig
	now          func() time.Time
}

// NewQuizService wires the quiz flow. users and metrics may be nil.
func NewQuizService(
	courses quizCourseReader,
	users userReader,
	questions quizQuestionSource,
	sessions quizSessionStore,
	gate *EligibilityGate,
	certificates quizCertificateIssuer,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	config QuizServiceConfig,
) *QuizService {
	if gate == nil {
		gate = NewEligibilityGate(DefaultPassingScore)
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.QuestionCount <= 0 {
		config.QuestionCount = defaultQuestionCount
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = defaultSessionTTL
	}
	return &QuizService{
		courses:      courses,
		users:        users,
		questions:    questions,
		sessions:     sessions,
		gate:         gate,
		certificates: certificates,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		config:       config,
		now:          time.Now,
	}
}

// StartQuiz generates a question set for the course and parks it under a new
// attempt id. Answers never leave the server.
func (s *QuizService) StartQuiz(ctx context.Context, courseID string, actor *models.JWTClaims) (*dto.QuizStartResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	if _, err := s.certificates.GetForLearner(ctx, course.ID, actor); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "certificate already issued for this course")
	} else if appErrors.FromError(err).Code != appErrors.ErrCertificateNotFound.Code {
		return nil, err
	}

	lessons, err := s.courses.ListLessons(ctx, course.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course lessons")
	}

	questions, err := s.questions.Generate(ctx, course, lessons, s.config.QuestionCount)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	session := &models.QuizSession{
		AttemptID: uuid.NewString(),
		UserID:    actor.UserID,
		CourseID:  course.ID,
		Questions: questions,
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.SessionTTL),
	}
	if err := s.sessions.Save(ctx, session, s.config.SessionTTL); err != nil {
		return nil, sessionStoreError(err, "failed to store quiz attempt")
	}

	previous, err := s.sessions.Attempts(ctx, actor.UserID, course.ID)
	if err != nil {
		s.logger.Warn("failed to read quiz attempt counter", zap.String("course_id", course.ID), zap.Error(err))
	}

	return &dto.QuizStartResponse{
		AttemptID:    session.AttemptID,
		CourseID:     course.ID,
		Questions:    session.Public(),
		PassingScore: s.gate.PassingScore(),
		Attempts:     previous,
		ExpiresAt:    session.ExpiresAt,
	}, nil
}

// SubmitQuiz scores an attempt. A failing score is a normal result the learner
// may retry; a passing one issues the certificate (idempotently).
func (s *QuizService) SubmitQuiz(ctx context.Context, courseID, attemptID string, req dto.SubmitQuizRequest, actor *models.JWTClaims) (*dto.QuizSubmitResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quiz submission")
	}

	session, err := s.sessions.Take(ctx, strings.TrimSpace(attemptID))
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			s.metrics.RecordSessionLookup(false)
			return nil, appErrors.Clone(appErrors.ErrQuizSessionNotFound, "")
		}
		return nil, sessionStoreError(err, "failed to load quiz attempt")
	}
	s.metrics.RecordSessionLookup(true)
	if session.UserID != actor.UserID || session.CourseID != courseID {
		s.putBack(ctx, session)
		return nil, appErrors.Clone(appErrors.ErrQuizSessionNotFound, "")
	}

	result := s.gate.Evaluate(session.Questions, req.AnswerMap())
	if !result.Passed {
		resp := s.finishAttempt(ctx, actor.UserID, courseID, result)
		resp.Message = fmt.Sprintf("You answered %d of %d correctly; %d are needed to pass. You may retry the quiz.", result.Score, result.Total, result.PassingScore)
		return resp, nil
	}

	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		s.putBack(ctx, session)
		return nil, err
	}

	score, total := result.Score, result.Total
	cert, created, err := s.certificates.Issue(ctx, IssueCertificateInput{
		UserID:         actor.UserID,
		CourseID:       course.ID,
		StudentName:    s.studentName(ctx, actor),
		CourseName:     course.Title,
		CourseLevel:    course.Level,
		CourseCategory: course.Category,
		Method:         models.CreationMethodQuiz,
		QuizScore:      &score,
		QuizTotal:      &total,
	})
	if err != nil {
		// A pass that could not be recorded stays submittable.
		s.putBack(ctx, session)
		return nil, err
	}

	resp := s.finishAttempt(ctx, actor.UserID, courseID, result)
	resp.Certificate = cert
	resp.Created = created
	resp.Message = "Congratulations, you passed. Your certificate is ready."
	if !created {
		resp.Message = "You passed. A certificate for this course was already issued."
	}
	return resp, nil
}

// finishAttempt counts a scored attempt once its outcome is final.
func (s *QuizService) finishAttempt(ctx context.Context, userID, courseID string, result models.QuizResult) *dto.QuizSubmitResponse {
	s.metrics.RecordQuizAttempt(result.Passed)
	attempt, err := s.sessions.IncrementAttempts(ctx, userID, courseID)
	if err != nil {
		s.logger.Warn("failed to count quiz attempt", zap.String("course_id", courseID), zap.Error(err))
	}
	return &dto.QuizSubmitResponse{Result: result, Attempt: attempt}
}

// putBack returns a taken session to the store for its remaining lifetime.
// It runs detached from the request so an abandoned call cannot lose the attempt.
func (s *QuizService) putBack(ctx context.Context, session *models.QuizSession) {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return
	}
	if err := s.sessions.Save(context.WithoutCancel(ctx), session, ttl); err != nil {
		s.logger.Warn("failed to restore quiz attempt", zap.String("attempt_id", session.AttemptID), zap.Error(err))
	}
}

func (s *QuizService) loadCourse(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, strings.TrimSpace(courseID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.Published {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	return course, nil
}

// studentName prefers the account record and falls back to the token claims.
func (s *QuizService) studentName(ctx context.Context, actor *models.JWTClaims) string {
	if s.users != nil {
		user, err := s.users.FindByID(ctx, actor.UserID)
		if err == nil && strings.TrimSpace(user.FullName) != "" {
			return user.FullName
		}
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to load learner name", zap.String("user_id", actor.UserID), zap.Error(err))
		}
	}
	return actor.FullName
}

func sessionStoreError(err error, message string) error {
	if errors.Is(err, repository.ErrSessionStoreUnavailable) {
		return appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "quiz sessions are unavailable")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
