package mail

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// NopSender is installed when no transport is configured. It fails
// every send so queued notifications stay pending instead of being
// silently dropped.
type NopSender struct {
	logger *zap.Logger
}

// NewNopSender constructs the unconfigured-transport sentinel.
func NewNopSender(logger *zap.Logger) *NopSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NopSender{logger: logger}
}

// Name identifies the transport in logs and outbox records.
func (s *NopSender) Name() string { return "nop" }

// Send logs a warning and reports failure.
func (s *NopSender) Send(ctx context.Context, msg Message) error {
	s.logger.Warn("no mail transport configured, message not delivered",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return fmt.Errorf("no mail transport configured")
}
