package port

import (
	"context"
	"encoding/json"
)

// GenerateRequest is a single schema-constrained generation call.
type GenerateRequest struct {
	System     string
	Prompt     string
	SchemaName string
	Schema     json.RawMessage // JSON Schema the response must satisfy
	MaxTokens  int
}

// GenerateResponse carries the raw JSON document produced by the model.
type GenerateResponse struct {
	Content    json.RawMessage
	Model      string
	StopReason string
}

// TextGenerator abstracts an external text-generation model.
type TextGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}
