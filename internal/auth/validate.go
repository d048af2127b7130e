package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fpang/kimixchange/internal/assets"
	"github.com/fpang/kimixchange/internal/metrics"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// validationModel is a cheap text model used for the key probe.
const validationModel = "gemini-2.5-flash-lite"

// ValidationError represents a categorised failure talking to Gemini:
// either while validating the key or during a generation call.
type ValidationError struct {
	Type    ValidationErrorType
	Message string
	Err     error
}

// ValidationErrorType categorizes failures.
type ValidationErrorType int

const (
	// ErrTypeNoKey indicates no API key was found.
	ErrTypeNoKey ValidationErrorType = iota
	// ErrTypeInvalidKey indicates the API key is invalid or revoked.
	ErrTypeInvalidKey
	// ErrTypeNetworkError indicates a network connectivity issue or a 5xx.
	ErrTypeNetworkError
	// ErrTypeQuotaExceeded indicates the API quota has been exceeded.
	ErrTypeQuotaExceeded
	// ErrTypeUnknown indicates an unknown error occurred.
	ErrTypeUnknown
)

// String returns the metric label for the type.
func (t ValidationErrorType) String() string {
	switch t {
	case ErrTypeNoKey:
		return "no_key"
	case ErrTypeInvalidKey:
		return "invalid"
	case ErrTypeNetworkError:
		return "network_error"
	case ErrTypeQuotaExceeded:
		return "quota"
	default:
		return "unknown"
	}
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Generator is the subset of genai.Models used for the key probe.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ValidateAPIKey verifies the API key with a minimal generation call.
// It returns nil if the key is valid, or a *ValidationError describing the failure.
func ValidateAPIKey(ctx context.Context, gen Generator, sink *metrics.Sink) error {
	log.Debug().Str("model", validationModel).Msg("Validating API key with Gemini API")

	start := time.Now()
	resp, err := gen.GenerateContent(ctx, validationModel, genai.Text(assets.ValidationPrompt), nil)
	elapsed := time.Since(start)

	result := "success"
	var valErr *ValidationError
	switch {
	case err != nil:
		valErr = ClassifyError(err)
		result = valErr.Type.String()
	case resp == nil || len(resp.Candidates) == 0:
		valErr = &ValidationError{Type: ErrTypeUnknown, Message: "API returned empty response"}
		result = "empty_response"
	}

	sink.New().
		Dimension("Result", result).
		Duration("ApiKeyValidationMs", elapsed).
		Count("ApiKeyValidationResult").
		Flush()

	log.Debug().Str("result", result).Dur("duration", elapsed).Msg("API key validation result")
	if valErr != nil {
		return valErr
	}

	log.Info().Msg("API key validated successfully")
	return nil
}

// ClassifyError analyzes an error returned by the Gemini API and returns a
// ValidationError with the appropriate type. The original error is kept
// as the wrapped cause so its message can still be surfaced verbatim.
func ClassifyError(err error) *ValidationError {
	if err == nil {
		return nil
	}

	var existing *ValidationError
	if errors.As(err, &existing) {
		return existing
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyAPIError(apiErr, err)
	}

	errLower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errLower, "api key not valid") ||
		strings.Contains(errLower, "invalid api key") ||
		strings.Contains(errLower, "api_key_invalid") ||
		strings.Contains(errLower, "permission denied"):
		return &ValidationError{Type: ErrTypeInvalidKey, Message: "API key is invalid or has been revoked", Err: err}

	case strings.Contains(errLower, "quota") ||
		strings.Contains(errLower, "resource exhausted") ||
		strings.Contains(errLower, "rate limit"):
		return &ValidationError{Type: ErrTypeQuotaExceeded, Message: "API quota exceeded or rate limited", Err: err}

	case errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(errLower, "connection") ||
		strings.Contains(errLower, "network") ||
		strings.Contains(errLower, "timeout") ||
		strings.Contains(errLower, "dial") ||
		strings.Contains(errLower, "no such host") ||
		strings.Contains(errLower, "unreachable"):
		return &ValidationError{Type: ErrTypeNetworkError, Message: "Network error - check your internet connection", Err: err}

	default:
		return &ValidationError{Type: ErrTypeUnknown, Message: "Gemini request failed", Err: err}
	}
}

func classifyAPIError(apiErr genai.APIError, cause error) *ValidationError {
	switch apiErr.Code {
	case 400:
		return &ValidationError{Type: ErrTypeInvalidKey, Message: "Bad request - API key may be malformed", Err: cause}
	case 401, 403:
		return &ValidationError{Type: ErrTypeInvalidKey, Message: "API key is invalid, expired, or lacks permissions", Err: cause}
	case 429:
		return &ValidationError{Type: ErrTypeQuotaExceeded, Message: "API rate limit exceeded - try again later", Err: cause}
	case 500, 502, 503, 504:
		return &ValidationError{Type: ErrTypeNetworkError, Message: "Gemini API server error - try again later", Err: cause}
	default:
		return &ValidationError{Type: ErrTypeUnknown, Message: apiErr.Message, Err: cause}
	}
}
