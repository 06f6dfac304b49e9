package mainconfig

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/wolfman30/careconnect-platform/internal/app/bootstrap"
	appconfig "github.com/wolfman30/careconnect-platform/internal/config"
)

// Clients holds the AWS clients the API needs. A field is nil when nothing
// in the configuration selects that service.
type Clients struct {
	SQS *sqs.Client
	SES *sesv2.Client
}

// NewClients loads the SDK config only when the submission queue or SES
// email is selected, then builds just those clients.
func NewClients(ctx context.Context, cfg *appconfig.Config) (Clients, error) {
	wantSQS := strings.EqualFold(strings.TrimSpace(cfg.SubmitMode), bootstrap.SubmitModeSQS)
	wantSES := strings.EqualFold(strings.TrimSpace(cfg.EmailProvider), "ses")
	if !wantSQS && !wantSES {
		return Clients{}, nil
	}

	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return Clients{}, err
	}

	var clients Clients
	if wantSQS {
		clients.SQS = sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			o.BaseEndpoint = endpointFor(cfg.SQSEndpoint, cfg.AWSEndpointOverride)
		})
	}
	if wantSES {
		clients.SES = sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
			o.BaseEndpoint = endpointFor(cfg.SESEndpoint, cfg.AWSEndpointOverride)
		})
	}
	return clients, nil
}

// LoadAWSConfig resolves region and credentials. Static keys win over the
// default chain when both are set.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	return config.LoadDefaultConfig(ctx, loaders...)
}

// endpointFor prefers the per-service endpoint, then the shared LocalStack
// override. Nil keeps the SDK's regional endpoint.
func endpointFor(service, shared string) *string {
	if v := strings.TrimSpace(service); v != "" {
		return aws.String(v)
	}
	if v := strings.TrimSpace(shared); v != "" {
		return aws.String(v)
	}
	return nil
}
