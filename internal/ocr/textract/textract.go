// Package textract implements OCR over Amazon Textract's synchronous
// DetectDocumentText API.
package textract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"caseguard/internal/config"
	"caseguard/internal/port"
)

// DetectDocumentTextAPI is the slice of the Textract client the engine uses.
type DetectDocumentTextAPI interface {
	DetectDocumentText(ctx context.Context, params *textract.DetectDocumentTextInput, optFns ...func(*textract.Options)) (*textract.DetectDocumentTextOutput, error)
}

// Engine recognises printed text line by line.
type Engine struct {
	api DetectDocumentTextAPI
}

// NewEngine builds an Engine from the default AWS credential chain.
func NewEngine(ctx context.Context, cfg *config.OCRConfig) (*Engine, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return NewEngineWithAPI(textract.NewFromConfig(awsCfg)), nil
}

// NewEngineWithAPI wraps an existing client. Used by tests.
func NewEngineWithAPI(api DetectDocumentTextAPI) *Engine {
	return &Engine{api: api}
}

// Recognize runs one OCR pass. Textract accepts PNG and JPEG bytes directly.
func (e *Engine) Recognize(ctx context.Context, image []byte, mimeType string) (*port.OCRResult, error) {
	if len(image) == 0 {
		return nil, errors.New("textract: empty image")
	}

	out, err := e.api.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: &types.Document{Bytes: image},
	})
	if err != nil {
		return nil, fmt.Errorf("textract detect (%s): %w", mimeType, err)
	}

	var lines []string
	var total float64
	for _, b := range out.Blocks {
		if b.BlockType != types.BlockTypeLine {
			continue
		}
		text := aws.ToString(b.Text)
		if text == "" {
			continue
		}
		lines = append(lines, text)
		total += float64(aws.ToFloat32(b.Confidence))
	}

	result := &port.OCRResult{Text: strings.Join(lines, "\n")}
	if len(lines) > 0 {
		result.Confidence = total / float64(len(lines)) / 100
		result.Language = "en"
	}
	return result, nil
}
