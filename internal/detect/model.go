package detect

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"caseguard/internal/domain"
	"caseguard/internal/port"
)

// Model detector failure classes. A failed detection is reported on
// ModelOutcome.Err and never aborts the pipeline.
var (
	ErrModelDisabled  = errors.New("model detector not configured")
	ErrModelTimeout   = errors.New("model call timed out")
	ErrModelTransport = errors.New("model call failed")
	ErrModelDecode    = errors.New("model response is not valid JSON")
	ErrModelSchema    = errors.New("model response violates entity schema")
)

const (
	DefaultCharLimit = 4000
	DefaultTimeout   = 30 * time.Second
	defaultMaxTokens = 4096
)

const systemInstruction = `You are a PII detection engine for legal case documents.
Identify personally identifiable information in the user's text, focusing on
people's names and postal addresses and any other PII categories listed in the
schema. For every finding report the PII type, the exact value as it appears,
the zero-based character offset where it starts, the exclusive end offset and
a confidence between 0 and 1. Report each occurrence separately. If there is
no PII, return an empty entities array. Respond only through the provided schema.`

// ModelOutcome is the result of one model detection: either entities (Err nil)
// or a failure reason with no entities.
type ModelOutcome struct {
	Entities []domain.PIIEntity
	Err      error
}

// OK reports whether the model call succeeded.
func (o ModelOutcome) OK() bool { return o.Err == nil }

func okOutcome(entities []domain.PIIEntity) ModelOutcome { return ModelOutcome{Entities: entities} }
func errOutcome(err error) ModelOutcome               { return ModelOutcome{Err: err} }

// FailureReason returns a short label for a failed outcome's error.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrModelDisabled):
		return "disabled"
	case errors.Is(err, ErrModelTimeout):
		return "timeout"
	case errors.Is(err, ErrModelDecode):
		return "decode"
	case errors.Is(err, ErrModelSchema):
		return "schema"
	default:
		return "transport"
	}
}

// ModelDetectorConfig bounds the cost of a model detection.
type ModelDetectorConfig struct {
	CharLimit int
	Timeout   time.Duration
	MaxTokens int
	// Model names the configured model; it keys the cache and is recorded on
	// entity origins when the provider does not echo one.
	Model    string
	CacheTTL time.Duration
}

// ModelDetector asks an external text generator for PII the pattern rules
// cannot find, such as names and addresses.
type ModelDetector struct {
	gen      port.TextGenerator
	cache    port.DetectionCache
	cfg      ModelDetectorConfig
	validate *validator.Validate
}

// NewModelDetector creates a ModelDetector. gen may be nil to disable model
// detection; cache may be nil to disable caching.
func NewModelDetector(gen port.TextGenerator, cache port.DetectionCache, cfg ModelDetectorConfig) *ModelDetector {
	if cfg.CharLimit <= 0 {
		cfg.CharLimit = DefaultCharLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	return &ModelDetector{gen: gen, cache: cache, cfg: cfg, validate: newResponseValidator()}
}

// Detect runs one bounded model call over the first CharLimit characters of
// text. Offsets in the result are byte offsets into text; entities whose
// reported span falls outside the analysed prefix are dropped.
func (d *ModelDetector) Detect(ctx context.Context, text string) ModelOutcome {
	if d.gen == nil {
		return errOutcome(ErrModelDisabled)
	}
	prefix := Truncate(text, d.cfg.CharLimit)
	if prefix == "" {
		return okOutcome(nil)
	}

	key := d.cacheKey(prefix)
	if content, ok := d.cached(ctx, key); ok {
		if entities, err := d.toEntities(content, prefix, d.cfg.Model); err == nil {
			return okOutcome(entities)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	resp, err := d.gen.Generate(callCtx, port.GenerateRequest{
		System:     systemInstruction,
		Prompt:     "Find all PII in the following text:\n\n" + prefix,
		SchemaName: EntitySchemaName,
		Schema:     EntitySchema,
		MaxTokens:  d.cfg.MaxTokens,
	})
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %v", ErrModelTimeout, d.cfg.Timeout, err)
		} else {
			err = fmt.Errorf("%w: %v", ErrModelTransport, err)
		}
		log.Warn().Err(err).Str("reason", FailureReason(err)).Msg("detect.ModelDetector: model call failed, continuing without model entities")
		return errOutcome(err)
	}

	model := resp.Model
	if model == "" {
		model = d.cfg.Model
	}
	entities, err := d.toEntities(resp.Content, prefix, model)
	if err != nil {
		log.Warn().Err(err).Str("reason", FailureReason(err)).Str("model", model).Msg("detect.ModelDetector: rejecting model response")
		return errOutcome(err)
	}

	d.store(ctx, key, resp.Content)
	return okOutcome(entities)
}

func (d *ModelDetector) toEntities(content []byte, prefix, model string) ([]domain.PIIEntity, error) {
	resp, err := decodeResponse(d.validate, content)
	if err != nil {
		return nil, err
	}

	offsets := byteOffsets(prefix)
	runes := len(offsets) - 1
	entities := make([]domain.PIIEntity, 0, len(resp.Entities))
	dropped := 0
	for _, e := range resp.Entities {
		if e.Start >= runes || e.End > runes {
			dropped++
			continue
		}
		entities = append(entities, domain.PIIEntity{
			Type:       domain.PIIType(e.Type),
			Value:      e.Value,
			Start:      offsets[e.Start],
			End:        offsets[e.End],
			Confidence: e.Confidence,
			Origin:     domain.ModelOrigin{RawConfidence: e.Confidence, Model: model},
		})
	}
	if dropped > 0 {
		log.Debug().Int("dropped", dropped).Msg("detect.ModelDetector: dropped out-of-range entities")
	}
	return entities, nil
}

func (d *ModelDetector) cacheKey(prefix string) string {
	sum := sha256.Sum256([]byte(d.cfg.Model + "\x00" + prefix))
	return "pii:model:" + hex.EncodeToString(sum[:])
}

func (d *ModelDetector) cached(ctx context.Context, key string) ([]byte, bool) {
	if d.cache == nil {
		return nil, false
	}
	content, found, err := d.cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msg("detect.ModelDetector: cache read failed")
		return nil, false
	}
	return content, found
}

func (d *ModelDetector) store(ctx context.Context, key string, content []byte) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Set(ctx, key, content, d.cfg.CacheTTL); err != nil {
		log.Warn().Err(err).Msg("detect.ModelDetector: cache write failed")
	}
}

// Truncate returns at most limit runes from the start of text.
func Truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	n := 0
	for i := range text {
		if n == limit {
			return text[:i]
		}
		n++
	}
	return text
}

// byteOffsets maps each rune index of s to its byte offset, with a final
// entry for len(s).
func byteOffsets(s string) []int {
	offsets := make([]int, 0, len(s)+1)
	for i := range s {
		offsets = append(offsets, i)
	}
	return append(offsets, len(s))
}
