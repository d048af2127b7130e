package cli

import (
	"context"

	"github.com/fpang/kimixchange/internal/auth"
	"github.com/fpang/kimixchange/internal/metrics"
	"github.com/fpang/kimixchange/internal/swap"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// InitSwapClient resolves the API key and builds a swap client. A missing
// key is only a warning: the client is returned and every swap will fail.
// With validate set, the key is probed first and failures exit.
func InitSwapClient(ctx context.Context, validate bool, opts ...swap.Option) *swap.Client {
	apiKey, err := auth.GetAPIKey()
	if err != nil {
		log.Warn().Err(err).Msg("No Gemini API key found; swap requests will fail")
		if validate {
			HandleValidationError(err)
		}
		return swap.NewClient(nil, opts...)
	}

	if validate {
		ValidateKey(ctx, apiKey)
	}

	client, err := swap.NewGeminiClient(ctx, apiKey, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Gemini client")
	}
	log.Info().Str("model", client.Model()).Msg("connection successful - Gemini client initialized")
	return client
}

// ValidateKey probes apiKey with a minimal request and exits on failure.
func ValidateKey(ctx context.Context, apiKey string) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Gemini client for validation")
	}
	if err := auth.ValidateAPIKey(ctx, client.Models, metrics.Discard()); err != nil {
		HandleValidationError(err)
	}
	log.Info().Msg("API key validation complete - ready for operations")
}
