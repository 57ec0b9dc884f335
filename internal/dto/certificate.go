package dto

import "github.com/noah-isme/coursevault-api/internal/models"

// IssueCertificateRequest is the admin manual issuance form. Display fields
// default to the live learner and course records when left blank.
type IssueCertificateRequest struct {
	UserID      string `json:"user_id" validate:"required,max=64"`
	CourseID    string `json:"course_id" validate:"required,max=64"`
	StudentName string `json:"student_name" validate:"omitempty,max=120"`
	CourseName  string `json:"course_name" validate:"omitempty,max=200"`
	CourseLevel string `json:"course_level" validate:"omitempty,max=60"`
}

// ChangeCertificateStatusRequest carries an optional reason for revoke/restore.
type ChangeCertificateStatusRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// CertificateFilter captures admin listing query parameters.
type CertificateFilter struct {
	Status         string `form:"status" validate:"omitempty,oneof=valid revoked"`
	CreationMethod string `form:"creation_method" validate:"omitempty,oneof=quiz manual"`
	CourseID       string `form:"course_id"`
	UserID         string `form:"user_id"`
	Search         string `form:"search"`
	Page           int    `form:"page"`
	PageSize       int    `form:"page_size"`
}

// IssueCertificateResponse reports whether the record was newly created.
type IssueCertificateResponse struct {
	Certificate *models.Certificate `json:"certificate"`
	Created     bool                `json:"created"`
}
