package port

import "context"

// OCRResult is the text recognised in an image.
type OCRResult struct {
	Text       string
	Confidence float64 // 0..1
	Language   string
}

// OCREngine performs a single OCR pass over an image.
type OCREngine interface {
	Recognize(ctx context.Context, image []byte, mimeType string) (*OCRResult, error)
}
