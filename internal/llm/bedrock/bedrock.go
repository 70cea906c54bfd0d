// Package bedrock implements port.TextGenerator on the Bedrock Converse API,
// forcing schema-shaped output through a single tool.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"caseguard/internal/config"
	"caseguard/internal/llm"
	"caseguard/internal/port"
)

const defaultModel = "anthropic.claude-3-5-sonnet-20240620-v1:0"

// ConverseAPI is the subset of the Bedrock runtime client the generator uses.
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Generator implements port.TextGenerator using Bedrock Converse.
type Generator struct {
	api   ConverseAPI
	model string
}

// NewGenerator creates a Bedrock-backed generator, loading AWS credentials
// from the default chain for cfg.Region.
func NewGenerator(ctx context.Context, cfg *config.ProviderConfig) (*Generator, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRetryMaxAttempts(cfg.MaxRetries+1),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewGeneratorWithAPI(bedrockruntime.NewFromConfig(awsCfg), cfg.DefaultModel), nil
}

// NewGeneratorWithAPI creates a generator over an existing Converse client.
func NewGeneratorWithAPI(api ConverseAPI, model string) *Generator {
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	return &Generator{api: api, model: model}
}

func (g *Generator) Generate(ctx context.Context, in port.GenerateRequest) (*port.GenerateResponse, error) {
	var schema map[string]interface{}
	if err := json.Unmarshal(in.Schema, &schema); err != nil {
		return nil, fmt.Errorf("decoding tool schema: %w", err)
	}

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(g.model),
		System: []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{Value: in.System},
		},
		Messages: []brtypes.Message{
			{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: in.Prompt},
				},
			},
		},
		ToolConfig: &brtypes.ToolConfiguration{
			Tools: []brtypes.Tool{
				&brtypes.ToolMemberToolSpec{Value: brtypes.ToolSpecification{
					Name:        aws.String(in.SchemaName),
					Description: aws.String("Record the structured result."),
					InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
				}},
			},
			ToolChoice: &brtypes.ToolChoiceMemberTool{Value: brtypes.SpecificToolChoice{Name: aws.String(in.SchemaName)}},
		},
	}
	if in.MaxTokens > 0 {
		input.InferenceConfig = &brtypes.InferenceConfiguration{MaxTokens: aws.Int32(int32(in.MaxTokens))}
	}

	out, err := g.api.Converse(ctx, input)
	if err != nil {
		var throttled *brtypes.ThrottlingException
		if errors.As(err, &throttled) {
			return nil, llm.NewRateLimitError("bedrock", err, 0)
		}
		return nil, fmt.Errorf("calling bedrock converse: %w", err)
	}

	if out.StopReason == brtypes.StopReasonMaxTokens {
		return nil, fmt.Errorf("output truncated (stop_reason: max_tokens): response exceeded output token limit")
	}

	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return nil, fmt.Errorf("empty response from bedrock: no message output")
	}
	for _, block := range msg.Value.Content {
		toolUse, ok := block.(*brtypes.ContentBlockMemberToolUse)
		if !ok || aws.ToString(toolUse.Value.Name) != in.SchemaName || toolUse.Value.Input == nil {
			continue
		}
		raw, err := toolUse.Value.Input.MarshalSmithyDocument()
		if err != nil {
			return nil, fmt.Errorf("encoding tool input: %w", err)
		}
		return &port.GenerateResponse{
			Content:    raw,
			Model:      g.model,
			StopReason: string(out.StopReason),
		}, nil
	}
	return nil, fmt.Errorf("empty response from bedrock: no %s tool_use block", in.SchemaName)
}
