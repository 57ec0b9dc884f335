package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coursevault-api/internal/models"
)

// CourseRepository reads storefront courses and their lessons.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository creates a course reader.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID returns a course by identifier.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, title, summary, category, level, published, created_at, updated_at FROM courses WHERE id = $1 LIMIT 1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find course by id: %w", err)
	}
	return &course, nil
}

// ListLessons returns the lessons of a course in order.
func (r *CourseRepository) ListLessons(ctx context.Context, courseID string) ([]models.CourseLesson, error) {
	const query = `SELECT id, course_id, position, title, content FROM course_lessons WHERE course_id = $1 ORDER BY position`
	var lessons []models.CourseLesson
	if err := r.db.SelectContext(ctx, &lessons, query, courseID); err != nil {
		return nil, fmt.Errorf("list course lessons: %w", err)
	}
	return lessons, nil
}
