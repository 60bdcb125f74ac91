package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"

	appconfig "github.com/khaledamrr/ServiceProjectUpdated/internal/config"
)

// LoadAWSConfig resolves the SDK configuration for the given region and
// optional endpoint override (localstack, dynamodb-local).
func LoadAWSConfig(ctx context.Context, cfg appconfig.AWSConfig) (sdkaws.Config, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1" // default fallback
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(cfg.Endpoint))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return awsCfg, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return awsCfg, nil
}
