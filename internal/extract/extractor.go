// Package extract turns uploaded case documents into plain text.
package extract

import (
	"context"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"

	"caseguard/internal/domain"
	"caseguard/internal/port"
)

// Input is a document buffer with its declared type. Data is read-only.
type Input struct {
	Data     []byte
	MIMEType string
	FileName string
}

// Extractor routes a document to the PDF, OCR, Word or plain-text strategy.
type Extractor struct {
	ocr        port.OCREngine
	maxPages   int
	maxWordXML int64
}

// Option customises an Extractor.
type Option func(*Extractor)

// WithMaxPages overrides the PDF page cap.
func WithMaxPages(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxPages = n
		}
	}
}

// WithMaxWordXMLBytes overrides the cap on the decompressed size of a Word
// document body.
func WithMaxWordXMLBytes(n int64) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxWordXML = n
		}
	}
}

// NewExtractor creates an Extractor. ocr may be nil, in which case image
// documents fail with an ExtractionError.
func NewExtractor(ocr port.OCREngine, opts ...Option) *Extractor {
	e := &Extractor{ocr: ocr, maxPages: DefaultMaxPDFPages, maxWordXML: DefaultMaxWordXMLBytes}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the text of in. It never returns a nil result with a nil error.
func (e *Extractor) Extract(ctx context.Context, in Input) (*domain.ExtractionResult, error) {
	mimeType := resolveMIME(in.Data, in.MIMEType)
	method := Route(mimeType, in.FileName)

	log.Debug().
		Str("file_name", in.FileName).
		Str("mime_type", mimeType).
		Str("method", string(method)).
		Int("bytes", len(in.Data)).
		Msg("extract.Extract: routing document")

	res, err := e.extract(ctx, method, mimeType, in)
	if err != nil {
		return nil, err
	}
	res.Text = stripControl(res.Text)
	return res, nil
}

func (e *Extractor) extract(ctx context.Context, method domain.ExtractionMethod, mimeType string, in Input) (*domain.ExtractionResult, error) {
	switch method {
	case domain.ExtractionPDF:
		return extractPDF(in.Data, e.maxPages)
	case domain.ExtractionOCR:
		return e.extractImage(ctx, in.Data, imageMIME(mimeType, in.FileName))
	case domain.ExtractionWord:
		return extractWord(in.Data, e.maxWordXML)
	default:
		return extractText(in.Data), nil
	}
}

// Route picks the extraction strategy for a MIME type, falling back to the
// file extension when the MIME type is not one the extractor recognises.
func Route(mimeType, fileName string) domain.ExtractionMethod {
	switch mt := baseMIME(mimeType); {
	case mt == domain.MIMETypePDF:
		return domain.ExtractionPDF
	case strings.HasPrefix(mt, "image/"):
		return domain.ExtractionOCR
	case mt == domain.MIMETypeDOCX, mt == domain.MIMETypeMSWord:
		return domain.ExtractionWord
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
	switch {
	case ext == "pdf":
		return domain.ExtractionPDF
	case ext == "docx", ext == "doc":
		return domain.ExtractionWord
	}
	if _, ok := domain.ImageExtensions[ext]; ok {
		return domain.ExtractionOCR
	}
	return domain.ExtractionText
}

// resolveMIME sniffs the buffer when the declared type carries no information.
func resolveMIME(data []byte, declared string) string {
	mt := baseMIME(declared)
	if mt != "" && mt != domain.MIMETypeOctetStr {
		return mt
	}
	if len(data) == 0 {
		return mt
	}
	detected := baseMIME(mimetype.Detect(data).String())
	if detected == domain.MIMETypeOctetStr {
		return mt
	}
	return detected
}

func baseMIME(mimeType string) string {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		return mt
	}
	return strings.ToLower(mimeType)
}

func imageMIME(mimeType, fileName string) string {
	if strings.HasPrefix(mimeType, "image/") {
		return mimeType
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
	if mt, ok := domain.ImageExtensions[ext]; ok {
		return mt
	}
	return mimeType
}
