package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/coursevault-api/internal/models"
)

func TestCodeGeneratorFormats(t *testing.T) {
	gen := NewCodeGenerator("", sequenceEntropy("abcdefgh"))

	quiz := gen.Generate("DATA", models.CreationMethodQuiz)
	assert.Equal(t, "CV-DATA-ABCDEFGH", quiz)
	assert.True(t, Looks(quiz))
	assert.False(t, IsManual(quiz))

	manual := gen.Generate("DATA", models.CreationMethodManual)
	assert.Equal(t, "CV-MAN-DATA-ABCDEFGH", manual)
	assert.True(t, Looks(manual))
	assert.True(t, IsManual(manual))
}

func TestCodeGeneratorDefaultEntropy(t *testing.T) {
	gen := NewCodeGenerator("cv", nil)
	seen := make(map[string]struct{})
	for i := 0; i < 500; i++ {
		code := gen.Generate("C1", models.CreationMethodQuiz)
		assert.True(t, Looks(code), code)
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 490)
}

func TestCodeGeneratorScrubsEntropy(t *testing.T) {
	gen := NewCodeGenerator("Vault Academy!", sequenceEntropy("o0i1-ab"))

	code := gen.Generate("X", models.CreationMethodQuiz)
	assert.Equal(t, "VAULTACA-X-ABAAAAAA", code)
	assert.True(t, Looks(code))
}

func TestCourseToken(t *testing.T) {
	assert.Equal(t, "DATA", CourseToken("Data Science", "c1"))
	assert.Equal(t, "C1", CourseToken("", "c1"))
	assert.Equal(t, "WEB", CourseToken(" web ", "c1"))
	assert.Equal(t, "GEN", CourseToken("", "--"))
}

func TestLooksRejectsMalformedCodes(t *testing.T) {
	for _, code := range []string{
		"",
		"CV-DATA",
		"cv-data-abcdefgh",
		"CV-DATA-ABCDEFG",
		"CV-DATA-ABCDEFGHJ",
		"CV-DATA-ABCDEFG0",
		"CV-TOOLONG-ABCDEFGH",
		"CV-MAN-DATA-EXTRA-ABCDEFGH",
	} {
		assert.False(t, Looks(code), code)
	}
	assert.True(t, Looks("OLD-DATA-ABCDEFGH"))
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "CV-DATA-ABCDEFGH", NormalizeCode("  cv-data-abcdefgh\t"))
}
