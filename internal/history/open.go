package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/fpang/kimixchange/internal/logging"
)

// Backend kinds accepted by Open.
const (
	KindFile     = "file"
	KindMemory   = "memory"
	KindS3       = "s3"
	KindDynamoDB = "dynamodb"
)

// BackendConfig selects and configures a Backend.
type BackendConfig struct {
	Kind   string
	Dir    string // file
	Bucket string // s3
	Prefix string // s3
	Table  string // dynamodb

	// AWS is used for s3 and dynamodb. The default credential chain is
	// loaded when nil.
	AWS *aws.Config
}

// ConfigFromEnv reads KIMIXCHANGE_HISTORY_* variables. The file backend
// under ~/.kimixchange is the default.
func ConfigFromEnv() BackendConfig {
	dir := os.Getenv("KIMIXCHANGE_HISTORY_DIR")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".kimixchange")
		} else {
			dir = ".kimixchange"
		}
	}
	return BackendConfig{
		Kind:   strings.ToLower(logging.EnvOrDefault("KIMIXCHANGE_HISTORY_BACKEND", KindFile)),
		Dir:    dir,
		Bucket: os.Getenv("KIMIXCHANGE_HISTORY_BUCKET"),
		Prefix: logging.EnvOrDefault("KIMIXCHANGE_HISTORY_PREFIX", "history"),
		Table:  os.Getenv("KIMIXCHANGE_HISTORY_TABLE"),
	}
}

// Open builds the Backend described by cfg.
func Open(ctx context.Context, cfg BackendConfig) (Backend, error) {
	switch cfg.Kind {
	case KindFile, "":
		return NewFileBackend(cfg.Dir)
	case KindMemory:
		return NewMemoryBackend(), nil
	case KindS3:
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("s3 history backend requires a bucket (KIMIXCHANGE_HISTORY_BUCKET)")
		}
		awsCfg, err := awsConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewS3Backend(s3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Prefix), nil
	case KindDynamoDB:
		if cfg.Table == "" {
			return nil, fmt.Errorf("dynamodb history backend requires a table (KIMIXCHANGE_HISTORY_TABLE)")
		}
		awsCfg, err := awsConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewDynamoBackend(dynamodb.NewFromConfig(awsCfg), cfg.Table)
	default:
		return nil, fmt.Errorf("unknown history backend %q (want file, memory, s3 or dynamodb)", cfg.Kind)
	}
}

func awsConfig(ctx context.Context, cfg BackendConfig) (aws.Config, error) {
	if cfg.AWS != nil {
		return *cfg.AWS, nil
	}
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	return awsCfg, nil
}
