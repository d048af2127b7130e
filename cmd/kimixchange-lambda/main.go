// Package main provides the Lambda entry point for the KimiXchange API.
//
// It serves the stateless routes of the web API behind API Gateway: a
// one-shot swap and read access to the shared history. The interactive
// workflow routes are not registered since a Lambda keeps no session.
//
// Endpoints:
//
//	GET  /api/health                    health check
//	POST /api/swap                      multipart source + target, returns the result
//	GET  /api/history                   history summaries, newest first
//	GET  /api/history/{id}              one full record
//	GET  /api/history/{id}/image        decoded image bytes (?kind=source|target|result)
//	GET  /api/history/{id}/thumbnail    JPEG thumbnail (?kind=...&size=...)
package main

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/kimixchange/internal/history"
	"github.com/fpang/kimixchange/internal/lambdaboot"
	"github.com/fpang/kimixchange/internal/logging"
	"github.com/fpang/kimixchange/internal/metrics"
	"github.com/fpang/kimixchange/internal/swap"
	"github.com/fpang/kimixchange/internal/webapi"
)

var (
	api                *webapi.Server
	sink               *metrics.Sink
	originVerifySecret string
)

func init() {
	initStart := time.Now()
	logging.Init()
	ctx := context.Background()

	clients := lambdaboot.InitAWS(ctx)
	apiKey := lambdaboot.LoadGeminiKey(ctx, clients.SSM)

	histCfg := lambdaboot.HistoryConfig(clients.Config)
	store := history.NewStore(lambdaboot.InitHistory(ctx, histCfg), history.WithSharedBackend())

	sink = metrics.Stdout()
	rpm, _ := strconv.Atoi(os.Getenv("KIMIXCHANGE_SWAP_RPM"))
	swapClient, err := swap.NewGeminiClient(ctx, apiKey,
		swap.WithModel(swap.ModelFromEnv()),
		swap.WithRateLimit(rpm),
		swap.WithMetrics(sink),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	api = webapi.New(webapi.Config{
		Swapper: swapClient,
		Store:   store,
		Model:   swapClient.Model(),
	})

	originVerifySecret = os.Getenv("ORIGIN_VERIFY_SECRET")

	startup := lambdaboot.StartupLog("kimixchange-lambda", initStart).
		CommitHash(commitHash).
		Config("buildTime", buildTime).
		Config("model", swapClient.Model()).
		Config("historyBackend", histCfg.Kind).
		Feature("geminiKey", apiKey != "").
		Feature("originVerify", originVerifySecret != "").
		Feature("rateLimit", rpm > 0)
	switch histCfg.Kind {
	case history.KindDynamoDB:
		startup = startup.DynamoTable("history", histCfg.Table)
	case history.KindS3:
		startup = startup.S3Bucket("history", histCfg.Bucket)
	}
	startup.SSMParam("geminiKey", logging.EnvOrDefault("KIMIXCHANGE_SSM_API_KEY_PARAM", lambdaboot.DefaultAPIKeyParam)).Log()

	if originVerifySecret == "" {
		log.Warn().Msg("ORIGIN_VERIFY_SECRET not set; origin verification disabled")
	}
}

func main() {
	mux := http.NewServeMux()
	api.Register(mux)

	handler := webapi.Chain(mux,
		webapi.WithMetrics(sink),
		webapi.WithOriginVerify(originVerifySecret),
		webapi.WithGzip,
	)

	adapter := httpadapter.NewV2(handler)
	lambda.Start(adapter.ProxyWithContext)
}
