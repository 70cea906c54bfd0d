package textract_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ocr "caseguard/internal/ocr/textract"
)

type fakeTextract struct {
	out   *textract.DetectDocumentTextOutput
	err   error
	input *textract.DetectDocumentTextInput
}

func (f *fakeTextract) DetectDocumentText(_ context.Context, params *textract.DetectDocumentTextInput, _ ...func(*textract.Options)) (*textract.DetectDocumentTextOutput, error) {
	f.input = params
	return f.out, f.err
}

func TestRecognize_JoinsLines(t *testing.T) {
	fake := &fakeTextract{out: &textract.DetectDocumentTextOutput{
		Blocks: []types.Block{
			{BlockType: types.BlockTypePage},
			{BlockType: types.BlockTypeLine, Text: aws.String("Name: Jane Roe"), Confidence: aws.Float32(90)},
			{BlockType: types.BlockTypeWord, Text: aws.String("Jane"), Confidence: aws.Float32(10)},
			{BlockType: types.BlockTypeLine, Text: aws.String("SSN 123-45-6789"), Confidence: aws.Float32(80)},
		},
	}}
	engine := ocr.NewEngineWithAPI(fake)

	res, err := engine.Recognize(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "image/png")

	require.NoError(t, err)
	assert.Equal(t, "Name: Jane Roe\nSSN 123-45-6789", res.Text)
	assert.InDelta(t, 0.85, res.Confidence, 1e-9)
	assert.Equal(t, "en", res.Language)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, fake.input.Document.Bytes)
}

func TestRecognize_NoText(t *testing.T) {
	engine := ocr.NewEngineWithAPI(&fakeTextract{out: &textract.DetectDocumentTextOutput{}})

	res, err := engine.Recognize(context.Background(), []byte("img"), "image/png")

	require.NoError(t, err)
	assert.Empty(t, res.Text)
	assert.Zero(t, res.Confidence)
	assert.Empty(t, res.Language)
}

func TestRecognize_Errors(t *testing.T) {
	engine := ocr.NewEngineWithAPI(&fakeTextract{err: errors.New("UnsupportedDocumentException")})

	_, err := engine.Recognize(context.Background(), []byte("img"), "image/png")
	assert.ErrorContains(t, err, "UnsupportedDocumentException")

	_, err = engine.Recognize(context.Background(), nil, "image/png")
	assert.ErrorContains(t, err, "empty image")
}
