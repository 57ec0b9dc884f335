package models

import "time"

// Course is the storefront course row. Certificates snapshot its title and
// level at issuance and never read it again.
type Course struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Summary   string    `db:"summary" json:"summary"`
	Category  string    `db:"category" json:"category"`
	Level     string    `db:"level" json:"level"`
	Published bool      `db:"published" json:"published"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CourseLesson is one lesson of a course, used as quiz generation context.
type CourseLesson struct {
	ID       string `db:"id" json:"id"`
	CourseID string `db:"course_id" json:"course_id"`
	Position int    `db:"position" json:"position"`
	Title    string `db:"title" json:"title"`
	Content  string `db:"content" json:"content"`
}
