package ocr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// maxEnhancedSide bounds enhanced images; larger scans gain nothing for OCR
const maxEnhancedSide = 2000

// PrepareOptions controls how an upload is normalized before it reaches an
// engine.
type PrepareOptions struct {
	// RasterizePDF renders the first page of a PDF to PNG for engines that
	// only read images
	RasterizePDF bool
	// Enhance runs images through grayscale, contrast and sharpening
	Enhance bool
}

// Prepare normalizes the MIME type and converts the upload into something the
// engine can read. HEIC/HEIF is always converted to PNG.
// Returns the final data and the MIME type to submit it with.
func Prepare(data []byte, contentType string, opts PrepareOptions) ([]byte, string, error) {
	mimeType := normalizeMimeType(contentType)

	if mimeType == "application/pdf" {
		if !opts.RasterizePDF {
			return data, mimeType, nil
		}
		img, err := pdfToImage(data)
		if err != nil {
			return nil, "", fmt.Errorf("converting PDF to image: %w", err)
		}
		return encodePNG(img, opts.Enhance)
	}

	isHEIC := isHEICFormat(data) || isHEICMimeType(mimeType)
	if !isHEIC && !opts.Enhance {
		return data, mimeType, nil
	}

	img, err := decodeImage(data, mimeType)
	if err != nil {
		return nil, "", fmt.Errorf("converting image to PNG: %w", err)
	}
	return encodePNG(img, opts.Enhance)
}

// Enhance prepares a scan for OCR: grayscale for contrast, a contrast boost,
// sharpening to make text edges crisp, then brightness and gamma adjustment.
func Enhance(src image.Image) image.Image {
	img := imaging.Grayscale(src)
	img = imaging.AdjustContrast(img, 30)
	img = imaging.Sharpen(img, 1.5)
	img = imaging.AdjustBrightness(img, 10)
	img = imaging.AdjustGamma(img, 1.2)

	b := img.Bounds()
	if b.Dx() > maxEnhancedSide || b.Dy() > maxEnhancedSide {
		img = imaging.Fit(img, maxEnhancedSide, maxEnhancedSide, imaging.Lanczos)
	}
	return img
}

func normalizeMimeType(contentType string) string {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" {
		mimeType = "image/jpeg" // default
	}
	return mimeType
}

// pdfToImage renders the first page of a PDF
func pdfToImage(pdfData []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

// decodeImage decodes HEIC/HEIF with the pure Go decoder and everything else
// with the standard image package
func decodeImage(imageData []byte, mimeType string) (image.Image, error) {
	if isHEICFormat(imageData) || isHEICMimeType(mimeType) {
		img, err := heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		if strings.Contains(err.Error(), "unknown format") || strings.Contains(err.Error(), "unsupported") {
			return nil, fmt.Errorf("%w. Supported formats: JPEG, PNG, GIF, HEIC, HEIF, PDF. Error: %v", ErrUnsupportedFormat, err)
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

func encodePNG(img image.Image, enhance bool) ([]byte, string, error) {
	if enhance {
		img = Enhance(img)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), "image/png", nil
}

// isHEICFormat checks for an ftyp box with a HEIC-related brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	if string(data[4:8]) == "ftyp" {
		brand := string(data[8:12])
		if brand == "heic" || brand == "heif" || brand == "mif1" || brand == "msf1" {
			return true
		}
	}
	return false
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format
func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return mimeType == "image/heic" || mimeType == "image/heif" ||
		strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}
