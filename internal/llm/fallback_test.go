package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"caseguard/internal/llm"
	"caseguard/internal/port"
	"caseguard/mocks"
)

var testRequest = port.GenerateRequest{
	System:     "find pii",
	Prompt:     "Jane Doe",
	SchemaName: "pii_entities",
	Schema:     json.RawMessage(`{"type":"object"}`),
	MaxTokens:  1024,
}

func generated(model string) *port.GenerateResponse {
	return &port.GenerateResponse{Content: json.RawMessage(`{"entities":[]}`), Model: model}
}

func TestFallbackGenerator_FirstSucceeds(t *testing.T) {
	g1 := new(mocks.MockTextGenerator)
	g2 := new(mocks.MockTextGenerator)
	g1.On("Generate", mock.Anything, testRequest).Return(generated("claude"), nil)

	fg := llm.NewFallbackGenerator([]port.TextGenerator{g1, g2}, []string{"claude", "openai"})

	result, err := fg.Generate(context.Background(), testRequest)

	assert.NoError(t, err)
	assert.Equal(t, "claude", result.Model)
	g2.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestFallbackGenerator_FirstFails_SecondSucceeds(t *testing.T) {
	g1 := new(mocks.MockTextGenerator)
	g2 := new(mocks.MockTextGenerator)
	g1.On("Generate", mock.Anything, testRequest).Return(nil, errors.New("generic error"))
	g2.On("Generate", mock.Anything, testRequest).Return(generated("openai"), nil)

	fg := llm.NewFallbackGenerator([]port.TextGenerator{g1, g2}, []string{"claude", "openai"})

	result, err := fg.Generate(context.Background(), testRequest)

	assert.NoError(t, err)
	assert.Equal(t, "openai", result.Model)
}

func TestFallbackGenerator_TwoRateLimited_ThirdSucceeds(t *testing.T) {
	g1 := new(mocks.MockTextGenerator)
	g2 := new(mocks.MockTextGenerator)
	g3 := new(mocks.MockTextGenerator)
	g1.On("Generate", mock.Anything, testRequest).Return(nil, llm.NewRateLimitError("claude", errors.New("429"), 60))
	g2.On("Generate", mock.Anything, testRequest).Return(nil, llm.NewRateLimitError("openai", errors.New("429"), 30))
	g3.On("Generate", mock.Anything, testRequest).Return(generated("gemini"), nil)

	fg := llm.NewFallbackGenerator([]port.TextGenerator{g1, g2, g3}, []string{"claude", "openai", "gemini"})

	result, err := fg.Generate(context.Background(), testRequest)

	assert.NoError(t, err)
	assert.Equal(t, "gemini", result.Model)
}

func TestFallbackGenerator_AllRateLimited(t *testing.T) {
	g1 := new(mocks.MockTextGenerator)
	g2 := new(mocks.MockTextGenerator)
	g1.On("Generate", mock.Anything, testRequest).Return(nil, llm.NewRateLimitError("claude", errors.New("429"), 60))
	g2.On("Generate", mock.Anything, testRequest).Return(nil, llm.NewRateLimitError("openai", errors.New("429"), 30))

	fg := llm.NewFallbackGenerator([]port.TextGenerator{g1, g2}, []string{"claude", "openai"})

	result, err := fg.Generate(context.Background(), testRequest)

	assert.Nil(t, result)
	var rlErr *llm.RateLimitError
	require.ErrorAs(t, err, &rlErr)
	assert.Equal(t, "all", rlErr.Provider)
	assert.InDelta(t, 30, rlErr.RetryAfter.Seconds(), 2)
}

func TestFallbackGenerator_AllFail_NonRateLimit(t *testing.T) {
	g1 := new(mocks.MockTextGenerator)
	g2 := new(mocks.MockTextGenerator)
	g1.On("Generate", mock.Anything, testRequest).Return(nil, errors.New("error 1"))
	g2.On("Generate", mock.Anything, testRequest).Return(nil, errors.New("error 2"))

	fg := llm.NewFallbackGenerator([]port.TextGenerator{g1, g2}, []string{"claude", "openai"})

	result, err := fg.Generate(context.Background(), testRequest)

	assert.Nil(t, result)
	assert.ErrorContains(t, err, "all providers failed")
	var rlErr *llm.RateLimitError
	assert.False(t, errors.As(err, &rlErr))
}

func TestFallbackGenerator_SkipsOpenCircuit(t *testing.T) {
	g1 := new(mocks.MockTextGenerator)
	g2 := new(mocks.MockTextGenerator)
	g1.On("Generate", mock.Anything, testRequest).Return(nil, llm.NewRateLimitError("claude", errors.New("429"), 60)).Once()
	g2.On("Generate", mock.Anything, testRequest).Return(generated("openai"), nil)

	fg := llm.NewFallbackGenerator([]port.TextGenerator{g1, g2}, []string{"claude", "openai"})

	_, err := fg.Generate(context.Background(), testRequest)
	require.NoError(t, err)
	result, err := fg.Generate(context.Background(), testRequest)
	require.NoError(t, err)

	assert.Equal(t, "openai", result.Model)
	g1.AssertNumberOfCalls(t, "Generate", 1)
}

func TestFallbackGenerator_CircuitAutoCloses(t *testing.T) {
	g1 := new(mocks.MockTextGenerator)
	g2 := new(mocks.MockTextGenerator)
	g1.On("Generate", mock.Anything, testRequest).Return(nil, llm.NewRateLimitError("claude", errors.New("429"), 1)).Once()
	g2.On("Generate", mock.Anything, testRequest).Return(generated("openai"), nil).Once()

	fg := llm.NewFallbackGenerator([]port.TextGenerator{g1, g2}, []string{"claude", "openai"})

	result, err := fg.Generate(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, "openai", result.Model)

	time.Sleep(1100 * time.Millisecond)

	g1.On("Generate", mock.Anything, testRequest).Return(generated("claude"), nil).Once()
	result, err = fg.Generate(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, "claude", result.Model)
}

func TestFallbackGenerator_StopsWhenContextDone(t *testing.T) {
	g1 := new(mocks.MockTextGenerator)
	g2 := new(mocks.MockTextGenerator)
	ctx, cancel := context.WithCancel(context.Background())
	g1.On("Generate", mock.Anything, testRequest).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, context.Canceled)

	fg := llm.NewFallbackGenerator([]port.TextGenerator{g1, g2}, []string{"claude", "openai"})

	_, err := fg.Generate(ctx, testRequest)

	assert.ErrorIs(t, err, context.Canceled)
	g2.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestFallbackGenerator_ConcurrentSafety(t *testing.T) {
	g1 := new(mocks.MockTextGenerator)
	g2 := new(mocks.MockTextGenerator)
	g1.On("Generate", mock.Anything, testRequest).Return(nil, llm.NewRateLimitError("claude", errors.New("429"), 5)).Maybe()
	g2.On("Generate", mock.Anything, testRequest).Return(generated("openai"), nil).Maybe()

	fg := llm.NewFallbackGenerator([]port.TextGenerator{g1, g2}, []string{"claude", "openai"})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := fg.Generate(context.Background(), testRequest)
			assert.NoError(t, err)
			assert.NotNil(t, result)
		}()
	}
	wg.Wait()
}

func TestParseRetryAfterHeader(t *testing.T) {
	assert.Equal(t, 0, llm.ParseRetryAfterHeader(""))
	assert.Equal(t, 0, llm.ParseRetryAfterHeader("Wed, 21 Oct 2015 07:28:00 GMT"))
	assert.Equal(t, 12, llm.ParseRetryAfterHeader("12"))
}

func TestNewRateLimitError_DefaultRetry(t *testing.T) {
	err := llm.NewRateLimitError("claude", errors.New("429"), 0)
	assert.Equal(t, 60*time.Second, err.RetryAfter)
	assert.Contains(t, err.Error(), "claude rate limited")
}
