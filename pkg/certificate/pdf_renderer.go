package certificate

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Page geometry in points, A4 landscape.
const (
	PageWidth  = 841.89
	PageHeight = 595.28

	marginOuter = 24.0
	marginInner = 34.0
	footerX     = 84.0
	qrSide      = 112.0
	qrImageName = "verification-qr"
)

var (
	colorInk    = [3]int{33, 37, 41}
	colorAccent = [3]int{23, 76, 121}
	colorMuted  = [3]int{108, 117, 125}
)

// PDFRenderer lays a Document out on a fixed landscape page. Every position
// is absolute, so the same Document always yields the same bytes.
type PDFRenderer struct {
	fonts *FontSet
}

// NewPDFRenderer builds a renderer. A nil font set selects DefaultFonts.
func NewPDFRenderer(fonts *FontSet) (*PDFRenderer, error) {
	if fonts == nil {
		var err error
		fonts, err = DefaultFonts()
		if err != nil {
			return nil, err
		}
	}
	if err := fonts.Check(); err != nil {
		return nil, err
	}
	return &PDFRenderer{fonts: fonts}, nil
}

// ContentType of Render output.
func (r *PDFRenderer) ContentType() string {
	return "application/pdf"
}

// Render produces the PDF bytes. Any font, QR or layout failure aborts the
// whole document.
func (r *PDFRenderer) Render(doc Document) ([]byte, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	qrPNG, err := EncodeQR(doc.VerificationURL, QRPixels)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("L", "pt", "A4", "")
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(doc.IssuedAt)
	pdf.SetModificationDate(doc.IssuedAt)
	pdf.SetTitle("Certificate of Completion", true)
	pdf.SetSubject(doc.CourseName, true)
	pdf.SetAuthor(doc.IssuerName, true)
	pdf.SetCreator(doc.IssuerName, true)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)

	// gofpdf rewrites the font bytes it is handed, so each document gets its own copy.
	pdf.AddUTF8FontFromBytes(FamilyHeading, "", bytes.Clone(r.fonts.Heading))
	pdf.AddUTF8FontFromBytes(FamilyBody, "", bytes.Clone(r.fonts.Body))
	pdf.AddUTF8FontFromBytes(FamilyScript, "", bytes.Clone(r.fonts.Script))
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("register fonts: %w", err)
	}

	pdf.AddPage()

	drawFrame(pdf)
	drawBody(pdf, doc)

	pdf.RegisterImageOptionsReader(qrImageName, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(qrPNG))
	pdf.ImageOptions(qrImageName, (PageWidth-qrSide)/2, 352, qrSide, qrSide, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	setText(pdf, FamilyBody, 8, colorMuted)
	centerText(pdf, 478, "Scan to verify")

	drawFooter(pdf, doc)

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("layout certificate: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func drawFrame(pdf *gofpdf.Fpdf) {
	pdf.SetDrawColor(colorAccent[0], colorAccent[1], colorAccent[2])
	pdf.SetLineWidth(3)
	pdf.Rect(marginOuter, marginOuter, PageWidth-2*marginOuter, PageHeight-2*marginOuter, "D")
	pdf.SetLineWidth(0.75)
	pdf.Rect(marginInner, marginInner, PageWidth-2*marginInner, PageHeight-2*marginInner, "D")
}

func drawBody(pdf *gofpdf.Fpdf, doc Document) {
	setText(pdf, FamilyHeading, 14, colorAccent)
	centerText(pdf, 92, strings.ToUpper(doc.IssuerName))

	setText(pdf, FamilyHeading, 34, colorInk)
	centerText(pdf, 148, "CERTIFICATE OF COMPLETION")

	setText(pdf, FamilyBody, 14, colorMuted)
	centerText(pdf, 190, "This certifies that")

	setText(pdf, FamilyHeading, 30, colorInk)
	nameWidth := centerText(pdf, 236, doc.StudentName)
	ruleWidth := nameWidth + 60
	if ruleWidth < 280 {
		ruleWidth = 280
	}
	pdf.SetDrawColor(colorMuted[0], colorMuted[1], colorMuted[2])
	pdf.SetLineWidth(0.5)
	pdf.Line((PageWidth-ruleWidth)/2, 248, (PageWidth+ruleWidth)/2, 248)

	setText(pdf, FamilyBody, 14, colorMuted)
	centerText(pdf, 274, "has successfully completed the course")

	setText(pdf, FamilyHeading, 22, colorAccent)
	centerText(pdf, 308, doc.CourseName)

	if doc.CourseLevel != "" {
		setText(pdf, FamilyBody, 12, colorMuted)
		centerText(pdf, 330, "Level: "+doc.CourseLevel)
	}
}

func drawFooter(pdf *gofpdf.Fpdf, doc Document) {
	setText(pdf, FamilyHeading, 9, colorMuted)
	pdf.Text(footerX, 500, "ISSUED")
	setText(pdf, FamilyBody, 12, colorInk)
	pdf.Text(footerX, 516, doc.IssuedOn())

	setText(pdf, FamilyHeading, 9, colorMuted)
	pdf.Text(footerX, 536, "CERTIFICATE CODE")
	setText(pdf, FamilyCode, 11, colorInk)
	pdf.Text(footerX, 552, doc.Code)

	right := PageWidth - footerX

	setText(pdf, FamilyScript, 20, colorInk)
	rightText(pdf, right, 516, doc.Signatory.Name)

	pdf.SetDrawColor(colorInk[0], colorInk[1], colorInk[2])
	pdf.SetLineWidth(0.75)
	pdf.Line(right-200, 526, right, 526)

	setText(pdf, FamilyBody, 10, colorMuted)
	rightText(pdf, right, 542, doc.Signatory.Title)
}

func setText(pdf *gofpdf.Fpdf, family string, size float64, rgb [3]int) {
	pdf.SetFont(family, "", size)
	pdf.SetTextColor(rgb[0], rgb[1], rgb[2])
}

// centerText draws s on the baseline y centred on the page and returns its width.
func centerText(pdf *gofpdf.Fpdf, y float64, s string) float64 {
	w := pdf.GetStringWidth(s)
	pdf.Text((PageWidth-w)/2, y, s)
	return w
}

func rightText(pdf *gofpdf.Fpdf, right, y float64, s string) {
	pdf.Text(right-pdf.GetStringWidth(s), y, s)
}
