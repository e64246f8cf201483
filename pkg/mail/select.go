package mail

import (
	"go.uber.org/zap"

	"github.com/edumarket/tutorhub-api/pkg/config"
)

// FromConfig picks the concrete sender once at startup: provider API
// when a key is present, SMTP relay when a host is, the failing nop
// sender otherwise.
func FromConfig(cfg config.MailConfig, logger *zap.Logger) Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch {
	case cfg.APIKey != "" && cfg.APIBaseURL != "":
		logger.Info("mail transport selected", zap.String("transport", "api"))
		return NewAPISender(cfg.APIBaseURL, cfg.APIKey, cfg.FromAddress, cfg.FromName, cfg.APITimeout)
	case cfg.SMTPHost != "":
		logger.Info("mail transport selected", zap.String("transport", "smtp"))
		return NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.FromAddress, cfg.FromName)
	default:
		logger.Warn("no mail transport configured, notifications will stay queued")
		return NewNopSender(logger)
	}
}
