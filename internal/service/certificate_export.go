package service

import (
	"bytes"
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/coursevault-api/internal/dto"
	"github.com/noah-isme/coursevault-api/internal/models"
	appErrors "github.com/noah-isme/coursevault-api/pkg/errors"
	"github.com/noah-isme/coursevault-api/pkg/export"
)

const (
	exportPageSize = 100
	maxExportRows  = 10000
)

var registerHeaders = []string{
	"certificate_code", "user_id", "course_id", "student_name", "course_name", "course_level",
	"status", "creation_method", "quiz_score", "issue_date", "revoked_at", "revoke_reason",
}

// ExportRegister renders every certificate matching filter as CSV, ignoring
// the filter's paging. Output stops at maxExportRows.
func (s *CertificateService) ExportRegister(ctx context.Context, filter dto.CertificateFilter, actor *models.JWTClaims) ([]byte, error) {
	reg := export.Register{Headers: registerHeaders}
	filter.PageSize = exportPageSize
	for page := 1; ; page++ {
		filter.Page = page
		certs, pagination, err := s.List(ctx, filter, actor)
		if err != nil {
			return nil, err
		}
		for i := range certs {
			reg.Rows = append(reg.Rows, registerRow(&certs[i]))
		}
		if len(reg.Rows) >= maxExportRows {
			s.logger.Warn("certificate export truncated",
				zap.Int("total", pagination.TotalCount),
				zap.Int("limit", maxExportRows),
			)
			reg.Rows = reg.Rows[:maxExportRows]
			break
		}
		if len(certs) < exportPageSize || page*exportPageSize >= pagination.TotalCount {
			break
		}
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, reg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export certificates")
	}
	return buf.Bytes(), nil
}

func registerRow(c *models.Certificate) []string {
	score := ""
	if c.QuizScore != nil && c.QuizTotal != nil {
		score = strconv.Itoa(*c.QuizScore) + "/" + strconv.Itoa(*c.QuizTotal)
	}
	revokedAt := ""
	if c.RevokedAt != nil {
		revokedAt = c.RevokedAt.UTC().Format(time.RFC3339)
	}
	reason := ""
	if c.RevokeReason != nil {
		reason = *c.RevokeReason
	}
	return []string{
		c.Code, c.UserID, c.CourseID, c.StudentName, c.CourseName, c.CourseLevel,
		string(c.Status), string(c.CreationMethod), score,
		c.IssuedAt.UTC().Format(time.RFC3339), revokedAt, reason,
	}
}
