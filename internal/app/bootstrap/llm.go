package bootstrap

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/wolfman30/realty-voice-platform/internal/config"
	"github.com/wolfman30/realty-voice-platform/internal/llm"
	"github.com/wolfman30/realty-voice-platform/internal/reports"
	"github.com/wolfman30/realty-voice-platform/pkg/logging"
)

// LLM is the model the runner drives. Client is nil when no provider is
// configured; Close releases provider connections.
type LLM struct {
	Client llm.Client
	Model  string
	Close  func()
}

// BuildLLM wires Bedrock (when a model id and AWS config are present) and
// Gemini (when an API key is present). With both, Gemini backs Bedrock up.
func BuildLLM(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (LLM, error) {
	if logger == nil {
		logger = logging.Default()
	}
	out := LLM{Close: func() {}}

	var bedrock llm.Client
	if model := strings.TrimSpace(cfg.BedrockModelID); model != "" && awsCfg != nil {
		bedrock = llm.NewBedrockClient(bedrockruntime.NewFromConfig(*awsCfg), model)
		out.Model = model
	}

	var gemini llm.Client
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		gc, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return out, err
		}
		gemini = gc
		out.Close = func() { _ = gc.Close() }
	}

	switch {
	case bedrock != nil && gemini != nil:
		out.Client = llm.NewFallbackClient(bedrock, gemini, logger)
	case bedrock != nil:
		out.Client = bedrock
	case gemini != nil:
		out.Client = gemini
		out.Model = cfg.GeminiModelID
	default:
		logger.Info("no llm provider configured; using scripted agent and keyword judge")
		return out, nil
	}
	logger.Info("llm configured", "model", out.Model, "bedrock", bedrock != nil, "gemini", gemini != nil)
	return out, nil
}

// BuildReportPublisher returns an S3 publisher, disabled when no bucket is set.
func BuildReportPublisher(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) *reports.Publisher {
	if awsCfg == nil || strings.TrimSpace(cfg.ReportsBucket) == "" {
		return reports.NewPublisher(nil, "", "", logger)
	}
	client := s3.NewFromConfig(*awsCfg, func(o *s3.Options) {
		if cfg.AWSEndpointOverride != "" {
			o.UsePathStyle = true
		}
	})
	return reports.NewPublisher(client, cfg.ReportsBucket, cfg.ReportsPrefix, logger)
}
