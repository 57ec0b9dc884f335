package certificate

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"golang.org/x/image/draw"
)

// QRPixels is the fixed raster size of the verification QR.
const QRPixels = 256

// EncodeQR renders content as an 8-bit grayscale PNG QR code with high error
// correction. barcode.Scale yields a 16-bit gray model, which gofpdf cannot embed.
func EncodeQR(content string, pixels int) ([]byte, error) {
	if pixels <= 0 {
		pixels = QRPixels
	}

	code, err := qr.Encode(content, qr.H, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	scaled, err := barcode.Scale(code, pixels, pixels)
	if err != nil {
		return nil, fmt.Errorf("scale qr: %w", err)
	}

	gray := image.NewGray(scaled.Bounds())
	draw.Draw(gray, gray.Bounds(), scaled, scaled.Bounds().Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return nil, fmt.Errorf("png encode qr: %w", err)
	}
	return buf.Bytes(), nil
}
