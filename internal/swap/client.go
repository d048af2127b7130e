// Package swap sends a source face and a target scene to a Gemini image model
// and returns the composited result as a data URL.
package swap

import (
	"context"
	"time"

	"github.com/fpang/kimixchange/internal/auth"
	"github.com/fpang/kimixchange/internal/media"
	"github.com/fpang/kimixchange/internal/metrics"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// payloadMIMEType is declared for both inputs and the result regardless of
// the uploaded format; the model sniffs the actual bytes.
const payloadMIMEType = "image/png"

// Generator is the subset of genai.Models the client needs.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client performs face swaps. It holds no per-request state and is safe for
// concurrent use.
type Client struct {
	gen     Generator
	model   string
	limiter *rate.Limiter
	sink    *metrics.Sink
}

// Option configures a Client.
type Option func(*Client)

// WithModel overrides the model ID.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithRateLimit caps outgoing requests to perMinute. Zero or less disables the limit.
func WithRateLimit(perMinute int) Option {
	return func(c *Client) {
		if perMinute <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
}

// WithMetrics sends swap latency and outcome metrics to sink.
func WithMetrics(sink *metrics.Sink) Option {
	return func(c *Client) {
		if sink != nil {
			c.sink = sink
		}
	}
}

// NewClient creates a Client around gen. A nil gen produces a client whose
// every Swap fails with ErrMissingAPIKey.
func NewClient(gen Generator, opts ...Option) *Client {
	c := &Client{
		gen:   gen,
		model: ModelFromEnv(),
		sink:  metrics.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewGeminiClient builds a Client backed by the Gemini API. An empty apiKey is
// not an error here: the failure is deferred to the first Swap.
func NewGeminiClient(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		log.Warn().Msg("No Gemini API key configured; swap requests will fail")
		return NewClient(nil, opts...), nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return NewClient(client.Models, opts...), nil
}

// Model reports the model ID requests are sent to.
func (c *Client) Model() string {
	return c.model
}

// Swap sends one request with the source face, the target scene and the
// instruction, and returns the first inline image of the first candidate.
// Nothing is retried.
func (c *Client) Swap(ctx context.Context, sourcePayload, targetPayload string, cfg Config) (string, error) {
	start := time.Now()
	result, err := c.swap(ctx, sourcePayload, targetPayload, cfg)
	elapsed := time.Since(start)

	outcome := "success"
	switch e := err.(type) {
	case nil:
	case *GenerationError:
		outcome = "no_result"
	case *TransportError:
		outcome = e.Kind
	default:
		outcome = "error"
	}

	c.sink.New().
		Dimension("Model", c.model).
		Dimension("Outcome", outcome).
		Duration("SwapLatencyMs", elapsed).
		Count("SwapCount").
		Property("quality", string(cfg.Quality)).
		Property("enhance", cfg.Enhance).
		Flush()

	evt := log.Info()
	if err != nil {
		evt = log.Error().Err(err)
	}
	evt.Str("model", c.model).
		Str("outcome", outcome).
		Str("quality", string(cfg.Quality)).
		Bool("enhance", cfg.Enhance).
		Float64("blend_strength", cfg.BlendStrength).
		Dur("duration", elapsed).
		Int("result_chars", len(result)).
		Msg("Face swap finished")

	return result, err
}

func (c *Client) swap(ctx context.Context, sourcePayload, targetPayload string, cfg Config) (string, error) {
	if c.gen == nil {
		return "", &TransportError{Kind: auth.ErrTypeNoKey.String(), Err: ErrMissingAPIKey}
	}

	_, sourceData, err := media.DecodeDataURL(sourcePayload)
	if err != nil {
		return "", &GenerationError{Message: "invalid source image payload", Err: err}
	}
	_, targetData, err := media.DecodeDataURL(targetPayload)
	if err != nil {
		return "", &GenerationError{Message: "invalid target image payload", Err: err}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", &TransportError{Kind: auth.ErrTypeQuotaExceeded.String(), Err: err}
		}
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(sourceData, payloadMIMEType),
			genai.NewPartFromBytes(targetData, payloadMIMEType),
			genai.NewPartFromText(BuildPrompt(cfg)),
		}, genai.RoleUser),
	}
	genCfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}

	log.Debug().
		Str("model", c.model).
		Int("source_bytes", len(sourceData)).
		Int("target_bytes", len(targetData)).
		Msg("Sending face swap request to Gemini")

	resp, err := c.gen.GenerateContent(ctx, c.model, contents, genCfg)
	if err != nil {
		return "", &TransportError{Kind: auth.ClassifyError(err).Type.String(), Err: err}
	}

	data, ok := firstInlineImage(resp)
	if !ok {
		return "", &GenerationError{Message: NoResultMessage}
	}
	return media.EncodeDataURL(payloadMIMEType, data), nil
}

// firstInlineImage scans candidate 0 for the first part carrying inline data.
func firstInlineImage(resp *genai.GenerateContentResponse) ([]byte, bool) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil, false
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		log.Warn().Str("finish_reason", string(cand.FinishReason)).Msg("Gemini returned a candidate with no content")
		return nil, false
	}
	for _, part := range cand.Content.Parts {
		if part == nil {
			continue
		}
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData.Data, true
		}
		if part.Text != "" {
			log.Debug().Str("text", part.Text).Msg("Gemini text part alongside image request")
		}
	}
	return nil, false
}
