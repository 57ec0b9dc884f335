package certificate

import (
	"bytes"
	"compress/zlib"
	"image/png"
	"io"
	"regexp"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomediumitalic"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/noah-isme/coursevault-api/internal/models"
)

func sampleCertificate(code string) *models.Certificate {
	return &models.Certificate{
		Code:           code,
		UserID:         "u1",
		CourseID:       "c1",
		StudentName:    "Jane Doe",
		CourseName:     "Intro to X",
		CourseLevel:    "Beginner",
		IssuedAt:       time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC),
		Status:         models.CertificateStatusValid,
		CreationMethod: models.CreationMethodQuiz,
	}
}

func sampleDocument(code string) Document {
	return NewDocument(sampleCertificate(code), "learn.example.com", "CourseVault Academy", Signatory{Name: "Dr. Amelia Hart", Title: "Director of Learning"})
}

func TestVerificationURL(t *testing.T) {
	assert.Equal(t, "https://learn.example.com/verify-certificate?code=CV-INTR-7KQ2M9XA", VerificationURL("learn.example.com", "CV-INTR-7KQ2M9XA"))
	assert.Equal(t, "https://learn.example.com/verify-certificate?code=CV-INTR-7KQ2M9XA", VerificationURL("https://learn.example.com/", "CV-INTR-7KQ2M9XA"))
}

func TestNewDocumentSnapshotsCertificate(t *testing.T) {
	cert := sampleCertificate("CV-MAN-INTR-7KQ2M9XA")
	cert.CreationMethod = models.CreationMethodManual

	doc := NewDocument(cert, "learn.example.com", "CourseVault Academy", Signatory{Name: "A", Title: "B"})

	assert.True(t, doc.Manual)
	assert.Equal(t, "Jane Doe", doc.StudentName)
	assert.Equal(t, "March 14, 2024", doc.IssuedOn())
	assert.Equal(t, "https://learn.example.com/verify-certificate?code=CV-MAN-INTR-7KQ2M9XA", doc.VerificationURL)
}

func TestEncodeQR(t *testing.T) {
	raw, err := EncodeQR("https://learn.example.com/verify-certificate?code=CV-INTR-7KQ2M9XA", QRPixels)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, QRPixels, img.Bounds().Dx())
	assert.Equal(t, QRPixels, img.Bounds().Dy())

	// IHDR: bit depth at byte 24, colour type at byte 25.
	require.Greater(t, len(raw), 25)
	assert.Equal(t, "IHDR", string(raw[12:16]))
	assert.Equal(t, byte(8), raw[24], "gofpdf only embeds 8-bit PNGs")
	assert.Equal(t, byte(0), raw[25])
}

func TestPDFRendererEmbedsQR(t *testing.T) {
	renderer, err := NewPDFRenderer(nil)
	require.NoError(t, err)

	out, err := renderer.Render(sampleDocument("CV-INTR-7KQ2M9XA"))
	require.NoError(t, err)

	objects := parsePDFObjects(t, out)
	images := 0
	for _, obj := range objects {
		if strings.Contains(obj.dict, "/Subtype /Image") {
			images++
			assert.Contains(t, obj.dict, "/Width 256")
			assert.Contains(t, obj.dict, "/BitsPerComponent 8")
		}
	}
	assert.Equal(t, 1, images)
}

func TestPDFRendererFirstRenderMatchesLater(t *testing.T) {
	fonts := &FontSet{
		Heading: bytes.Clone(gobold.TTF),
		Body:    bytes.Clone(goregular.TTF),
		Script:  bytes.Clone(gomediumitalic.TTF),
	}
	pristine := *fonts
	pristine.Heading = bytes.Clone(fonts.Heading)
	pristine.Body = bytes.Clone(fonts.Body)
	pristine.Script = bytes.Clone(fonts.Script)

	renderer, err := NewPDFRenderer(fonts)
	require.NoError(t, err)

	doc := sampleDocument("CV-INTR-7KQ2M9XA")
	first, err := renderer.Render(doc)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := renderer.Render(doc)
		require.NoError(t, err)
		require.Equal(t, first, again, "render %d", i+2)
	}

	assert.Equal(t, pristine.Heading, fonts.Heading)
	assert.Equal(t, pristine.Body, fonts.Body)
	assert.Equal(t, pristine.Script, fonts.Script)
}

func TestPDFRendererCodeChangesOnlyCodeTextAndQR(t *testing.T) {
	renderer, err := NewPDFRenderer(nil)
	require.NoError(t, err)

	const codeA, codeB = "CV-INTR-7KQ2M9XA", "CV-INTR-P4WD8HNC"
	first, err := renderer.Render(sampleDocument(codeA))
	require.NoError(t, err)
	second, err := renderer.Render(sampleDocument(codeB))
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	a, b := parsePDFObjects(t, first), parsePDFObjects(t, second)
	require.Equal(t, objectNumbers(a), objectNumbers(b))

	imageDiffs, textDiffs := 0, 0
	for num, objA := range a {
		objB := b[num]
		if objA.dict == objB.dict && bytes.Equal(objA.stream, objB.stream) {
			continue
		}
		if strings.Contains(objA.dict, "/Subtype /Image") {
			imageDiffs++
			continue
		}

		require.Equal(t, objA.dict, objB.dict, "object %s", num)
		linesA := strings.Split(string(objA.stream), "\n")
		linesB := strings.Split(string(objB.stream), "\n")
		require.Len(t, linesB, len(linesA), "object %s", num)
		for i := range linesA {
			if linesA[i] == linesB[i] {
				continue
			}
			textDiffs++
			assert.Contains(t, linesA[i], "("+codeA+")", "object %s line %d", num, i)
			assert.Equal(t, strings.Replace(linesA[i], codeA, codeB, 1), linesB[i])
		}
	}
	assert.Equal(t, 1, imageDiffs, "only the QR image may differ")
	assert.Equal(t, 1, textDiffs, "only the code line may differ")
}

func TestPDFRendererIsDeterministic(t *testing.T) {
	renderer, err := NewPDFRenderer(nil)
	require.NoError(t, err)

	first, err := renderer.Render(sampleDocument("CV-INTR-7KQ2M9XA"))
	require.NoError(t, err)
	second, err := renderer.Render(sampleDocument("CV-INTR-7KQ2M9XA"))
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(first, []byte("%PDF-")))
	assert.Equal(t, first, second)

	other, err := renderer.Render(sampleDocument("CV-INTR-P4WD8HNC"))
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestPDFRendererRejectsIncompleteDocument(t *testing.T) {
	renderer, err := NewPDFRenderer(nil)
	require.NoError(t, err)

	doc := sampleDocument("CV-INTR-7KQ2M9XA")
	doc.StudentName = " "

	_, err = renderer.Render(doc)
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestFontSetCheckRejectsCorruptFace(t *testing.T) {
	fonts, err := DefaultFonts()
	require.NoError(t, err)

	broken := *fonts
	broken.Script = []byte("not a font")

	_, err = NewPDFRenderer(&broken)
	assert.Error(t, err)
}

func TestHTMLRendererMatchesPDFFields(t *testing.T) {
	renderer, err := NewHTMLRenderer()
	require.NoError(t, err)

	doc := sampleDocument("CV-INTR-7KQ2M9XA")
	out, err := renderer.Render(doc)
	require.NoError(t, err)

	page := string(out)
	for _, want := range []string{
		doc.Code,
		doc.StudentName,
		doc.CourseName,
		doc.IssuedOn(),
		doc.Signatory.Name,
		doc.Signatory.Title,
		doc.VerificationURL,
		"data:image/png;base64,",
	} {
		assert.Contains(t, page, want)
	}
	assert.Contains(t, page, `class="badge valid"`)
}

func TestHTMLRendererRevokedTreatment(t *testing.T) {
	renderer, err := NewHTMLRenderer()
	require.NoError(t, err)

	doc := sampleDocument("CV-INTR-7KQ2M9XA")
	doc.Status = models.CertificateStatusRevoked

	out, err := renderer.Render(doc)
	require.NoError(t, err)

	page := string(out)
	assert.Contains(t, page, `class="badge revoked"`)
	assert.Contains(t, page, "Jane Doe")
	assert.NotContains(t, page, "<img")
}

func TestHTMLRendererNotFound(t *testing.T) {
	renderer, err := NewHTMLRenderer()
	require.NoError(t, err)

	out, err := renderer.RenderNotFound("CV-NOPE-<b>")
	require.NoError(t, err)

	page := string(out)
	assert.Contains(t, page, "Certificate not found")
	assert.True(t, strings.Contains(page, "CV-NOPE-&lt;b&gt;"))
}

type pdfObject struct {
	dict   string
	stream []byte
}

var (
	pdfObjectPattern = regexp.MustCompile(`(?s)(\d+) 0 obj\n(.*?)endobj`)
	pdfLengthPattern = regexp.MustCompile(`/Length1? \d+`)
)

// parsePDFObjects splits a PDF into its numbered objects. Stream lengths are
// dropped from the dictionaries and Flate streams are inflated.
func parsePDFObjects(t *testing.T, raw []byte) map[string]pdfObject {
	t.Helper()
	out := make(map[string]pdfObject)
	for _, m := range pdfObjectPattern.FindAllSubmatch(raw, -1) {
		body := m[2]
		obj := pdfObject{dict: string(body)}
		if start := bytes.Index(body, []byte("\nstream\n")); start >= 0 {
			end := bytes.LastIndex(body, []byte("\nendstream"))
			require.Greater(t, end, start)
			obj.dict = string(body[:start])
			obj.stream = body[start+len("\nstream\n") : end]
			if strings.Contains(obj.dict, "/FlateDecode") {
				zr, err := zlib.NewReader(bytes.NewReader(obj.stream))
				require.NoError(t, err)
				obj.stream, err = io.ReadAll(zr)
				require.NoError(t, err)
			}
		}
		obj.dict = pdfLengthPattern.ReplaceAllString(obj.dict, "/Length")
		out[string(m[1])] = obj
	}
	require.NotEmpty(t, out)
	return out
}

func objectNumbers(objects map[string]pdfObject) []string {
	nums := make([]string, 0, len(objects))
	for num := range objects {
		nums = append(nums, num)
	}
	sort.Strings(nums)
	return nums
}
