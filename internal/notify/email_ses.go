package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends emails via AWS SES.
type SESSender struct {
	client    sesAPI
	from      string
	replyTo   string
	configSet string
	logger    *logging.Logger
}

// SESConfig holds configuration for AWS SES. ConfigurationSet routes
// delivery events for CareConnect mail to its own event destination.
type SESConfig struct {
	FromEmail        string
	FromName         string
	ReplyTo          string
	ConfigurationSet string
}

// NewSESSender creates a new AWS SES email sender.
func NewSESSender(client *sesv2.Client, cfg SESConfig, logger *logging.Logger) *SESSender {
	if client == nil {
		return nil
	}
	return newSESSender(client, cfg, logger)
}

func newSESSender(client sesAPI, cfg SESConfig, logger *logging.Logger) *SESSender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	return &SESSender{
		client:    client,
		from:      formatAddress(cfg.FromName, cfg.FromEmail),
		replyTo:   strings.TrimSpace(cfg.ReplyTo),
		configSet: strings.TrimSpace(cfg.ConfigurationSet),
		logger:    logger,
	}
}

// Send sends an email via AWS SES.
func (s *SESSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil {
		return fmt.Errorf("notify: SES client not configured")
	}
	if err := msg.validate(); err != nil {
		return err
	}

	output, err := s.client.SendEmail(ctx, s.input(msg))
	if err != nil {
		s.logger.Error("SES send failed", "error", err, "to", msg.To, "category", msg.Category)
		return fmt.Errorf("notify: SES send failed: %w", err)
	}

	s.logger.Info("email sent via SES",
		"to", msg.To,
		"category", msg.Category,
		"reference", msg.Reference,
		"message_id", aws.ToString(output.MessageId),
	)
	return nil
}

func (s *SESSender) input(msg EmailMessage) *sesv2.SendEmailInput {
	body := &types.Body{}
	if msg.Body != "" {
		body.Text = utf8Content(msg.Body)
	}
	if msg.HTML != "" {
		body.Html = utf8Content(msg.HTML)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{formatAddress(msg.ToName, msg.To)},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: utf8Content(msg.Subject),
				Body:    body,
				Headers: sesHeaders(msg),
			},
		},
		EmailTags: sesTags(msg),
	}
	if s.replyTo != "" {
		input.ReplyToAddresses = []string{s.replyTo}
	}
	if s.configSet != "" {
		input.ConfigurationSetName = aws.String(s.configSet)
	}
	return input
}

func sesHeaders(msg EmailMessage) []types.MessageHeader {
	var headers []types.MessageHeader
	if msg.Category != "" {
		headers = append(headers, types.MessageHeader{Name: aws.String("X-CareConnect-Category"), Value: aws.String(msg.Category)})
	}
	if msg.Reference != "" {
		headers = append(headers, types.MessageHeader{Name: aws.String("X-CareConnect-Reference"), Value: aws.String(msg.Reference)})
	}
	return headers
}

// sesTags always carries the app tag. SES only accepts letters, digits,
// underscores and dashes in tag values.
func sesTags(msg EmailMessage) []types.MessageTag {
	tags := []types.MessageTag{{Name: aws.String("app"), Value: aws.String("careconnect")}}
	if v := tagValue(msg.Category); v != "" {
		tags = append(tags, types.MessageTag{Name: aws.String("category"), Value: aws.String(v)})
	}
	if v := tagValue(msg.Reference); v != "" {
		tags = append(tags, types.MessageTag{Name: aws.String("reference"), Value: aws.String(v)})
	}
	return tags
}

func tagValue(v string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return -1
		}
	}, v)
}

func utf8Content(data string) *types.Content {
	return &types.Content{Data: aws.String(data), Charset: aws.String("UTF-8")}
}

var _ EmailSender = (*SESSender)(nil)
