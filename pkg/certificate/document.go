package certificate

import (
	"net/url"
	"strings"
	"time"

	"github.com/noah-isme/coursevault-api/internal/models"
)

const verifyPath = "/verify-certificate"

// Signatory is the fixed name and title printed in the footer.
type Signatory struct {
	Name  string
	Title string
}

// Document is everything a renderer may read. Both the PDF and the HTML
// preview are built from the same value so they cannot disagree on content.
type Document struct {
	Code            string
	StudentName     string
	CourseName      string
	CourseLevel     string
	IssuerName      string
	IssuedAt        time.Time
	Status          models.CertificateStatus
	Manual          bool
	VerificationURL string
	Signatory       Signatory
}

// NewDocument snapshots a certificate for rendering against the serving host.
func NewDocument(cert *models.Certificate, host, issuer string, signatory Signatory) Document {
	return Document{
		Code:            cert.Code,
		StudentName:     cert.StudentName,
		CourseName:      cert.CourseName,
		CourseLevel:     cert.CourseLevel,
		IssuerName:      issuer,
		IssuedAt:        cert.IssuedAt.UTC(),
		Status:          cert.Status,
		Manual:          cert.CreationMethod == models.CreationMethodManual,
		VerificationURL: VerificationURL(host, cert.Code),
		Signatory:       signatory,
	}
}

// VerificationURL builds https://<host>/verify-certificate?code=<code>. A
// scheme or trailing slash on host is dropped.
func VerificationURL(host, code string) string {
	host = strings.TrimSpace(host)
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimRight(host, "/")
	return "https://" + host + verifyPath + "?code=" + url.QueryEscape(code)
}

// IssuedOn is the display form of the issue date shared by every renderer.
func (d Document) IssuedOn() string {
	return d.IssuedAt.UTC().Format("January 2, 2006")
}

// Validate rejects documents that cannot produce a meaningful certificate.
func (d Document) Validate() error {
	switch {
	case strings.TrimSpace(d.Code) == "":
		return ErrInvalidDocument
	case strings.TrimSpace(d.StudentName) == "":
		return ErrInvalidDocument
	case strings.TrimSpace(d.CourseName) == "":
		return ErrInvalidDocument
	case d.IssuedAt.IsZero():
		return ErrInvalidDocument
	}
	return nil
}
