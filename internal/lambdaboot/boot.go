// Package lambdaboot provides the Lambda cold-start bootstrap: AWS config,
// the history backend, the Gemini key from SSM, and startup logging.
package lambdaboot

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/kimixchange/internal/history"
	"github.com/fpang/kimixchange/internal/logging"
)

// DefaultAPIKeyParam is the SSM parameter holding the Gemini key.
const DefaultAPIKeyParam = "/kimixchange/prod/gemini-api-key"

// AWSClients holds the core AWS SDK clients used by the Lambda.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// SSMAPI is the subset of *ssm.Client used here.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// InitAWS loads the default AWS config and returns it along with common clients.
func InitAWS(ctx context.Context) AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// HistoryConfig resolves the history backend for a Lambda. When
// KIMIXCHANGE_HISTORY_BACKEND is unset, DynamoDB wins over S3, and memory is
// the fallback since the Lambda filesystem does not persist.
func HistoryConfig(cfg aws.Config) history.BackendConfig {
	bc := history.ConfigFromEnv()
	bc.AWS = &cfg
	if os.Getenv("KIMIXCHANGE_HISTORY_BACKEND") == "" {
		switch {
		case bc.Table != "":
			bc.Kind = history.KindDynamoDB
		case bc.Bucket != "":
			bc.Kind = history.KindS3
		default:
			bc.Kind = history.KindMemory
			log.Warn().Msg("No history table or bucket configured; history will not survive container recycling")
		}
	}
	return bc
}

// InitHistory opens the history backend. Fatals on misconfiguration.
func InitHistory(ctx context.Context, bc history.BackendConfig) history.Backend {
	backend, err := history.Open(ctx, bc)
	if err != nil {
		log.Fatal().Err(err).Str("kind", bc.Kind).Msg("Failed to open history backend")
	}
	return backend
}

// LoadGeminiKey fetches the Gemini API key from SSM Parameter Store if not
// already set via GEMINI_API_KEY. A failure only warns: swaps will then fail
// at call time rather than the Lambda failing to start.
func LoadGeminiKey(ctx context.Context, ssmClient SSMAPI) string {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key
	}
	paramName := logging.EnvOrDefault("KIMIXCHANGE_SSM_API_KEY_PARAM", DefaultAPIKeyParam)
	ssmStart := time.Now()
	result, err := ssmClient.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &paramName,
		WithDecryption: aws.Bool(true),
	})
	if err != nil || result.Parameter == nil || result.Parameter.Value == nil {
		log.Warn().Err(err).Str("param", paramName).Msg("Gemini API key not available from SSM; swaps will fail")
		return ""
	}
	key := *result.Parameter.Value
	os.Setenv("GEMINI_API_KEY", key)
	log.Debug().Str("param", paramName).Dur("elapsed", time.Since(ssmStart)).Msg("Gemini API key loaded from SSM")
	return key
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
