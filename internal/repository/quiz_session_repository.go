package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/coursevault-api/internal/models"
	appErrors "github.com/noah-isme/coursevault-api/pkg/errors"
)

// ErrSessionStoreUnavailable is returned when no Redis client is configured.
var ErrSessionStoreUnavailable = errors.New("quiz session store unavailable")

const (
	quizSessionPrefix  = "quiz:session:"
	quizAttemptsPrefix = "quiz:attempts:"
	attemptCounterTTL  = 90 * 24 * time.Hour
)

// QuizSessionRepository keeps served question sets in Redis so the gate
// scores against exactly what the learner saw.
type QuizSessionRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQuizSessionRepository constructs a session store.
func NewQuizSessionRepository(client *redis.Client, logger *zap.Logger) *QuizSessionRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuizSessionRepository{client: client, logger: logger}
}

// Save stores the session under its attempt id with the given TTL.
func (r *QuizSessionRepository) Save(ctx context.Context, session *models.QuizSession, ttl time.Duration) error {
	if r.client == nil {
		return ErrSessionStoreUnavailable
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal quiz session %s: %w", session.AttemptID, err)
	}

	key := quizSessionPrefix + session.AttemptID
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Take atomically reads and deletes a session, so one attempt is scored once.
func (r *QuizSessionRepository) Take(ctx context.Context, attemptID string) (*models.QuizSession, error) {
	if r.client == nil {
		return nil, ErrSessionStoreUnavailable
	}

	key := quizSessionPrefix + attemptID
	raw, err := r.client.GetDel(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis getdel %s: %w", key, err)
	}

	var session models.QuizSession
	if err := json.Unmarshal(raw, &session); err != nil {
		r.logger.Warn("discarding corrupt quiz session", zap.String("attempt_id", attemptID), zap.Error(err))
		return nil, fmt.Errorf("unmarshal quiz session %s: %w", attemptID, err)
	}
	return &session, nil
}

// IncrementAttempts counts a submitted attempt for reporting. Retries are not capped.
func (r *QuizSessionRepository) IncrementAttempts(ctx context.Context, userID, courseID string) (int64, error) {
	if r.client == nil {
		return 0, ErrSessionStoreUnavailable
	}

	key := attemptsKey(userID, courseID)
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, attemptCounterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}
	return incr.Val(), nil
}

// Attempts returns the number of attempts counted so far.
func (r *QuizSessionRepository) Attempts(ctx context.Context, userID, courseID string) (int64, error) {
	if r.client == nil {
		return 0, ErrSessionStoreUnavailable
	}

	key := attemptsKey(userID, courseID)
	n, err := r.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis get %s: %w", key, err)
	}
	return n, nil
}

// Ping reports whether Redis is reachable.
func (r *QuizSessionRepository) Ping(ctx context.Context) error {
	if r.client == nil {
		return ErrSessionStoreUnavailable
	}
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying Redis connection if present.
func (r *QuizSessionRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

func attemptsKey(userID, courseID string) string {
	return quizAttemptsPrefix + userID + ":" + courseID
}
