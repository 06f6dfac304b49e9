package bootstrap

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/careconnect-platform/internal/config"
	"github.com/wolfman30/careconnect-platform/internal/notify"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

// BuildEmailSender picks the configured provider and falls back to the stub
// when its credentials are missing.
func BuildEmailSender(cfg *appconfig.Config, ses *sesv2.Client, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.EmailProvider)) {
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
			ReplyTo:   cfg.EmailReplyTo,
		}, logger)
		if sender != nil {
			return sender
		}
		logger.Warn("sendgrid selected without api key, using stub email sender")
	case "ses":
		sender := notify.NewSESSender(ses, notify.SESConfig{
			FromEmail:        cfg.EmailFrom,
			FromName:         cfg.EmailFromName,
			ReplyTo:          cfg.EmailReplyTo,
			ConfigurationSet: cfg.SESConfigurationSet,
		}, logger)
		if sender != nil {
			return sender
		}
		logger.Warn("ses selected without aws client, using stub email sender")
	}
	return notify.NewStubEmailSender(logger)
}
