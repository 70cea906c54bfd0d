package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"caseguard/internal/domain"
)

func (e *Extractor) extractImage(ctx context.Context, data []byte, mimeType string) (*domain.ExtractionResult, error) {
	if e.ocr == nil {
		return nil, &domain.ExtractionError{Method: domain.ExtractionOCR, Err: domain.ErrOCRUnavailable}
	}

	normalized, normalizedMIME, err := normalizeImage(data, mimeType)
	if err != nil {
		return nil, &domain.ExtractionError{Method: domain.ExtractionOCR, Err: err}
	}

	out, err := e.ocr.Recognize(ctx, normalized, normalizedMIME)
	if err != nil {
		return nil, &domain.ExtractionError{Method: domain.ExtractionOCR, Err: err}
	}

	one := 1
	return &domain.ExtractionResult{
		Text:       out.Text,
		Method:     domain.ExtractionOCR,
		PageCount:  &one,
		Confidence: out.Confidence,
		Language:   out.Language,
	}, nil
}

// normalizeImage passes PNG and JPEG through and re-encodes every other
// decodable format as PNG.
func normalizeImage(data []byte, mimeType string) ([]byte, string, error) {
	if mimeType == domain.MIMETypePNG || mimeType == domain.MIMETypeJPEG {
		return data, mimeType, nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decoding %s image: %w", mimeType, err)
	}
	switch format {
	case "png":
		return data, domain.MIMETypePNG, nil
	case "jpeg":
		return data, domain.MIMETypeJPEG, nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", fmt.Errorf("re-encoding %s image as png: %w", format, err)
	}
	return buf.Bytes(), domain.MIMETypePNG, nil
}
