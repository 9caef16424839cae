package mainconfig

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/joho/godotenv"

	appconfig "github.com/wolfman30/realty-voice-platform/internal/config"
	"github.com/wolfman30/realty-voice-platform/pkg/logging"
)

// Load reads .env files (when present) and then the environment. Variables
// already set in the environment win over .env values.
func Load(files ...string) *appconfig.Config {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
	return appconfig.Load()
}

// LoadAWSConfig centralizes AWS SDK initialization so both binaries share the
// same LocalStack/production wiring. It returns nil when the process has no
// AWS work to do.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*aws.Config, error) {
	if strings.TrimSpace(cfg.BedrockModelID) == "" && strings.TrimSpace(cfg.ReportsBucket) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, err
	}
	if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(endpoint)
		logger.Info("aws endpoint override", "endpoint", endpoint)
	}
	return &awsCfg, nil
}
