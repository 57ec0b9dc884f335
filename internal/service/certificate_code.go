package service

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/coursevault-api/internal/models"
)

// codeAlphabet has 32 symbols and leaves out I, O, 0 and 1.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	DefaultCodePrefix   = "CV"
	codeEntropyLen      = 8
	courseTokenLen      = 4
	manualCodeSegment   = "MAN"
	fallbackCourseToken = "GEN"
)

// uuid v4 fixes the version bits in byte 6 and the variant bits in byte 8.
var entropyBytes = [codeEntropyLen]int{0, 1, 2, 3, 4, 5, 10, 11}

// EntropySource yields the random tail of a certificate code.
type EntropySource func() string

// CodeGenerator builds PREFIX-COURSE-ENTROPY codes, with a MAN segment after
// the prefix for administrator-issued certificates.
type CodeGenerator struct {
	prefix  string
	entropy EntropySource
}

// codePattern accepts any prefix. Codes issued under an earlier prefix stay verifiable.
var codePattern = regexp.MustCompile(`^[A-Z0-9]{1,8}-(?:` + manualCodeSegment + `-)?[A-Z0-9]{1,4}-[` + codeAlphabet + `]{8}$`)

// NewCodeGenerator creates a generator. A nil source draws from uuid v4.
func NewCodeGenerator(prefix string, entropy EntropySource) *CodeGenerator {
	prefix = sanitizeSegment(prefix, 8)
	if prefix == "" {
		prefix = DefaultCodePrefix
	}
	if entropy == nil {
		entropy = uuidEntropy
	}
	return &CodeGenerator{prefix: prefix, entropy: entropy}
}

// Generate returns a candidate code. Uniqueness is not guaranteed here; the
// ledger rejects collisions and the caller draws again.
func (g *CodeGenerator) Generate(courseToken string, method models.CreationMethod) string {
	tail := sanitizeEntropy(g.entropy())
	parts := []string{g.prefix}
	if method == models.CreationMethodManual {
		parts = append(parts, manualCodeSegment)
	}
	parts = append(parts, courseToken, tail)
	return strings.Join(parts, "-")
}

// Looks reports whether code is syntactically a certificate code.
func Looks(code string) bool {
	return codePattern.MatchString(code)
}

// CourseToken derives the short course segment from the category, falling
// back to the course id.
func CourseToken(category, courseID string) string {
	if token := sanitizeSegment(category, courseTokenLen); token != "" {
		return token
	}
	if token := sanitizeSegment(courseID, courseTokenLen); token != "" {
		return token
	}
	return fallbackCourseToken
}

// IsManual reports whether a code was issued by an administrator.
func IsManual(code string) bool {
	parts := strings.Split(code, "-")
	return len(parts) == 4 && parts[1] == manualCodeSegment
}

// NormalizeCode trims and upper-cases user-supplied codes.
func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func uuidEntropy() string {
	id := uuid.New()
	var out [codeEntropyLen]byte
	for i, pos := range entropyBytes {
		out[i] = codeAlphabet[id[pos]&31]
	}
	return string(out[:])
}

func sanitizeSegment(raw string, limit int) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(raw) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if limit > 0 && b.Len() == limit {
				break
			}
		}
	}
	return b.String()
}

func sanitizeEntropy(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(raw) {
		if strings.ContainsRune(codeAlphabet, r) {
			b.WriteRune(r)
			if b.Len() == codeEntropyLen {
				return b.String()
			}
		}
	}
	for b.Len() < codeEntropyLen {
		b.WriteByte(codeAlphabet[0])
	}
	return b.String()
}
