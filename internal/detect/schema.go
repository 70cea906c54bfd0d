package detect

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"caseguard/internal/domain"
)

// EntitySchemaName is the name providers attach to the forced output schema.
const EntitySchemaName = "pii_entities"

// EntitySchema is the strict JSON Schema the model response must satisfy.
var EntitySchema = buildEntitySchema()

type modelEntity struct {
	Type       string  `json:"type" validate:"required,piitype"`
	Value      string  `json:"value" validate:"required"`
	Start      int     `json:"start" validate:"gte=0"`
	End        int     `json:"end" validate:"gtfield=Start"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

type modelResponse struct {
	Entities []modelEntity `json:"entities" validate:"required,dive"`
}

func buildEntitySchema() json.RawMessage {
	types := make([]string, 0, len(domain.KnownPIITypes))
	for _, t := range domain.KnownPIITypes {
		types = append(types, string(t))
	}
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"entities": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"type":       map[string]interface{}{"type": "string", "enum": types},
						"value":      map[string]interface{}{"type": "string"},
						"start":      map[string]interface{}{"type": "integer"},
						"end":        map[string]interface{}{"type": "integer"},
						"confidence": map[string]interface{}{"type": "number"},
					},
					"required":             []string{"type", "value", "start", "end", "confidence"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"entities"},
		"additionalProperties": false,
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("detect: marshaling entity schema: %v", err))
	}
	return raw
}

func newResponseValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("piitype", func(fl validator.FieldLevel) bool {
		return domain.PIIType(fl.Field().String()).IsKnown()
	})
	return v
}

// decodeResponse strictly decodes and validates a model response body.
func decodeResponse(v *validator.Validate, content []byte) (*modelResponse, error) {
	content = bytes.TrimSpace(content)
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrModelDecode)
	}

	dec := json.NewDecoder(bytes.NewReader(content))
	dec.DisallowUnknownFields()
	var resp modelResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelDecode, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after response object", ErrModelDecode)
	}
	if err := v.Struct(&resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelSchema, err)
	}
	return &resp, nil
}
