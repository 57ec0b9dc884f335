package certificate

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"

	"github.com/noah-isme/coursevault-api/internal/models"
)

const previewTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{if .Found}}Certificate {{.Doc.Code}}{{else}}Certificate not found{{end}}</title>
<style>
body{margin:0;background:#f1f3f5;font-family:Georgia,serif;color:#212529}
.sheet{max-width:960px;margin:32px auto;background:#fff;border:6px double #174c79;padding:48px;text-align:center}
.issuer{letter-spacing:.2em;color:#174c79;font-weight:bold}
h1{font-size:2.2em;margin:.4em 0}
.name{font-size:2em;font-weight:bold;border-bottom:1px solid #6c757d;display:inline-block;padding:0 24px}
.course{font-size:1.5em;color:#174c79;font-weight:bold}
.muted{color:#6c757d}
.badge{display:inline-block;padding:4px 12px;border-radius:4px;font-family:sans-serif;font-size:.85em}
.badge.valid{background:#d3f9d8;color:#2b8a3e}
.badge.revoked{background:#ffe3e3;color:#c92a2a}
.footer{display:flex;justify-content:space-between;align-items:flex-end;margin-top:40px;text-align:left}
.code{font-family:monospace;font-size:1.1em}
.signature{text-align:right}
.signature .sig{font-style:italic;font-size:1.4em}
.signature .title{border-top:1px solid #212529;padding-top:4px;min-width:220px}
</style>
</head>
<body>
{{if .Found}}<main class="sheet" data-certificate-code="{{.Doc.Code}}" data-status="{{.Doc.Status}}">
<div class="issuer">{{.Doc.IssuerName}}</div>
<h1>Certificate of Completion</h1>
{{if .Revoked}}<p><span class="badge revoked">Revoked</span></p>
<p class="muted">This certificate was issued to the learner below but has since been revoked. It no longer attests completion.</p>
{{else}}<p><span class="badge valid">Valid</span></p>
{{end}}<p class="muted">This certifies that</p>
<div class="name">{{.Doc.StudentName}}</div>
<p class="muted">has {{if .Revoked}}been recorded for{{else}}successfully completed{{end}} the course</p>
<div class="course">{{.Doc.CourseName}}</div>
{{if .Doc.CourseLevel}}<p class="muted">Level: {{.Doc.CourseLevel}}</p>{{end}}
{{if not .Revoked}}<p><img src="{{.QR}}" width="128" height="128" alt="Verification QR code"><br><a class="muted" href="{{.Doc.VerificationURL}}">{{.Doc.VerificationURL}}</a></p>{{end}}
<div class="footer">
<div><div class="muted">Issued</div><div>{{.Doc.IssuedOn}}</div><div class="muted">Certificate code</div><div class="code">{{.Doc.Code}}</div></div>
<div class="signature"><div class="sig">{{.Doc.Signatory.Name}}</div><div class="title">{{.Doc.Signatory.Title}}</div></div>
</div>
</main>{{else}}<main class="sheet">
<h1>Certificate not found</h1>
<p class="muted">No certificate matches <span class="code">{{.Code}}</span>. Check the code spelling and try again.</p>
</main>{{end}}
</body>
</html>
`

type previewView struct {
	Found   bool
	Revoked bool
	Code    string
	Doc     Document
	QR      template.URL
}

// HTMLRenderer produces the on-screen preview. It reads the same Document as
// the PDF renderer and embeds the same verification URL in its QR.
type HTMLRenderer struct {
	tmpl *template.Template
}

// NewHTMLRenderer parses the preview template.
func NewHTMLRenderer() (*HTMLRenderer, error) {
	tmpl, err := template.New("certificate-preview").Parse(previewTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse preview template: %w", err)
	}
	return &HTMLRenderer{tmpl: tmpl}, nil
}

// ContentType of Render output.
func (r *HTMLRenderer) ContentType() string {
	return "text/html; charset=utf-8"
}

// Render produces the preview page for a found certificate.
func (r *HTMLRenderer) Render(doc Document) ([]byte, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	view := previewView{
		Found:   true,
		Revoked: doc.Status == models.CertificateStatusRevoked,
		Code:    doc.Code,
		Doc:     doc,
	}
	if !view.Revoked {
		qrPNG, err := EncodeQR(doc.VerificationURL, QRPixels)
		if err != nil {
			return nil, err
		}
		view.QR = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(qrPNG))
	}
	return r.execute(view)
}

// RenderNotFound produces the page shown for unknown codes.
func (r *HTMLRenderer) RenderNotFound(code string) ([]byte, error) {
	return r.execute(previewView{Code: code})
}

func (r *HTMLRenderer) execute(view previewView) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render preview: %w", err)
	}
	return buf.Bytes(), nil
}
