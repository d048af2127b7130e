package lambdaboot

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/fpang/kimixchange/internal/history"
)

type fakeSSM struct {
	value string
	err   error
	asked string
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.asked = *in.Name
	if f.err != nil {
		return nil, f.err
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: aws.String(f.value)}}, nil
}

func TestLoadGeminiKey_EnvWins(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-env")
	f := &fakeSSM{value: "from-ssm"}
	if got := LoadGeminiKey(context.Background(), f); got != "from-env" {
		t.Errorf("LoadGeminiKey() = %q, want from-env", got)
	}
	if f.asked != "" {
		t.Errorf("SSM should not be queried when the env var is set")
	}
}

func TestLoadGeminiKey_FromSSM(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("KIMIXCHANGE_SSM_API_KEY_PARAM", "/custom/key")
	f := &fakeSSM{value: "from-ssm"}

	if got := LoadGeminiKey(context.Background(), f); got != "from-ssm" {
		t.Errorf("LoadGeminiKey() = %q, want from-ssm", got)
	}
	if f.asked != "/custom/key" {
		t.Errorf("asked for %q, want /custom/key", f.asked)
	}
}

func TestLoadGeminiKey_FailureIsNotFatal(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("KIMIXCHANGE_SSM_API_KEY_PARAM", "")
	f := &fakeSSM{err: errors.New("AccessDenied")}

	if got := LoadGeminiKey(context.Background(), f); got != "" {
		t.Errorf("LoadGeminiKey() = %q, want empty", got)
	}
	if f.asked != DefaultAPIKeyParam {
		t.Errorf("asked for %q, want %q", f.asked, DefaultAPIKeyParam)
	}
}

func TestHistoryConfig(t *testing.T) {
	tests := []struct {
		name                   string
		backend, table, bucket string
		want                   string
	}{
		{"table wins", "", "swaps", "bucket", history.KindDynamoDB},
		{"bucket", "", "", "bucket", history.KindS3},
		{"nothing", "", "", "", history.KindMemory},
		{"explicit", "s3", "swaps", "bucket", history.KindS3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("KIMIXCHANGE_HISTORY_BACKEND", tt.backend)
			t.Setenv("KIMIXCHANGE_HISTORY_TABLE", tt.table)
			t.Setenv("KIMIXCHANGE_HISTORY_BUCKET", tt.bucket)

			bc := HistoryConfig(aws.Config{Region: "us-east-1"})
			if bc.Kind != tt.want {
				t.Errorf("Kind = %q, want %q", bc.Kind, tt.want)
			}
			if bc.AWS == nil || bc.AWS.Region != "us-east-1" {
				t.Errorf("AWS config not carried through")
			}
		})
	}
}
