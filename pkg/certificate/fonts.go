package certificate

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomediumitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
)

// Font families registered on every PDF.
const (
	FamilyHeading = "cvheading"
	FamilyBody    = "cvbody"
	FamilyScript  = "cvscript"

	// FamilyCode is the built-in Courier face. It is never embedded, so two
	// certificates that differ only in code share every font stream.
	FamilyCode = "courier"
)

// ErrInvalidDocument is returned when a document lacks required fields.
var ErrInvalidDocument = errors.New("certificate document incomplete")

// FontSet holds the raw TrueType faces. The script face is reserved for the
// signature line.
type FontSet struct {
	Heading []byte
	Body    []byte
	Script  []byte
}

var (
	defaultFontsOnce sync.Once
	defaultFonts     *FontSet
	defaultFontsErr  error
)

// DefaultFonts returns the embedded Go font faces, parsed and checked once per process.
func DefaultFonts() (*FontSet, error) {
	defaultFontsOnce.Do(func() {
		fs := &FontSet{
			Heading: gobold.TTF,
			Body:    goregular.TTF,
			Script:  gomediumitalic.TTF,
		}
		if err := fs.Check(); err != nil {
			defaultFontsErr = err
			return
		}
		defaultFonts = fs
	})
	return defaultFonts, defaultFontsErr
}

// Check parses every face so a corrupt font fails before any drawing starts.
func (fs *FontSet) Check() error {
	if fs == nil {
		return errors.New("font set is nil")
	}
	faces := []struct {
		name string
		data []byte
	}{
		{FamilyHeading, fs.Heading},
		{FamilyBody, fs.Body},
		{FamilyScript, fs.Script},
	}
	for _, face := range faces {
		if len(face.data) == 0 {
			return fmt.Errorf("font %s: empty", face.name)
		}
		if _, err := sfnt.Parse(face.data); err != nil {
			return fmt.Errorf("font %s: %w", face.name, err)
		}
	}
	return nil
}
