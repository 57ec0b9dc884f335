package service

import (
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coursevault-api/internal/dto"
	"github.com/noah-isme/coursevault-api/internal/models"
	"github.com/noah-isme/coursevault-api/internal/repository"
	appErrors "github.com/noah-isme/coursevault-api/pkg/errors"
)

func TestExportRegister(t *testing.T) {
	ctx := context.Background()
	ledger := repository.NewMemoryCertificateRepository()
	svc := newCertificateService(ledger, nil, nil)

	kept, _, err := svc.Issue(ctx, quizInput("u1"))
	require.NoError(t, err)
	hostile := quizInput("u2")
	hostile.StudentName = "=HYPERLINK(\"http://x\")"
	_, _, err = svc.Issue(ctx, hostile)
	require.NoError(t, err)
	revoked, _, err := svc.Issue(ctx, quizInput("u3"))
	require.NoError(t, err)
	_, err = svc.Revoke(ctx, revoked.Code, dto.ChangeCertificateStatusRequest{Reason: "refund"}, adminClaims)
	require.NoError(t, err)

	body, err := svc.ExportRegister(ctx, dto.CertificateFilter{}, adminClaims)
	require.NoError(t, err)
	records, err := csv.NewReader(strings.NewReader(string(body))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, registerHeaders, records[0])

	byCode := make(map[string][]string)
	for _, rec := range records[1:] {
		byCode[rec[0]] = rec
	}
	assert.Equal(t, "valid", byCode[kept.Code][6])
	assert.Equal(t, "refund", byCode[revoked.Code][11])
	assert.NotEmpty(t, byCode[revoked.Code][10])

	found := false
	for _, rec := range records[1:] {
		if rec[1] == "u2" {
			found = true
			assert.True(t, strings.HasPrefix(rec[3], "'="), rec[3])
		}
	}
	assert.True(t, found)

	body, err = svc.ExportRegister(ctx, dto.CertificateFilter{Status: string(models.CertificateStatusRevoked)}, adminClaims)
	require.NoError(t, err)
	records, err = csv.NewReader(strings.NewReader(string(body))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, revoked.Code, records[1][0])
}

func TestExportRegisterRequiresAdmin(t *testing.T) {
	svc := newCertificateService(repository.NewMemoryCertificateRepository(), nil, nil)
	_, err := svc.ExportRegister(context.Background(), dto.CertificateFilter{}, &models.JWTClaims{UserID: "u1", Role: models.RoleLearner})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
