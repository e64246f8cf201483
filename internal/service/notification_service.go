package service

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/edumarket/tutorhub-api/internal/models"
	"github.com/edumarket/tutorhub-api/pkg/config"
	"github.com/edumarket/tutorhub-api/pkg/jobs"
	"github.com/edumarket/tutorhub-api/pkg/mail"
)

type notificationOutbox interface {
	ClaimDue(ctx context.Context, now time.Time, limit int, reclaimAfter time.Duration) ([]models.Notification, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id string, attempts int, maxAttempts int, sendErr string, nextAttemptAt time.Time) error
}

const approvalHTML = `<p>Hi {{.FullName}},</p>
<p>Good news: your tutor application has been approved. Your account is ready.</p>
{{if .Password}}<p>Sign in with this email address and the temporary password <strong>{{.Password}}</strong>, then change it after your first login.</p>
{{else}}<p>Sign in with your existing account to get started.</p>{{end}}
<p>Welcome aboard!</p>`

const rejectionHTML = `<p>Hi {{.FullName}},</p>
<p>Thank you for applying to become a tutor. After review we are unable to accept your application at this time.</p>
<p>You are welcome to apply again in the future.</p>`

// NotificationService renders outcome emails and drives the outbox
// dispatcher. Rows land in the outbox transactionally with the status
// flip; this service only has to get them delivered eventually.
type NotificationService struct {
	outbox notificationOutbox
	sender mail.Sender
	cfg    config.NotificationsConfig
	logger *zap.Logger

	approvalTmpl  *template.Template
	rejectionTmpl *template.Template

	queue   *jobs.Queue
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	metrics *MetricsService
}

// WithMetrics attaches delivery counters.
func (s *NotificationService) WithMetrics(m *MetricsService) *NotificationService {
	s.metrics = m
	return s
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(outbox notificationOutbox, sender mail.Sender, cfg config.NotificationsConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 30 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	s := &NotificationService{
		outbox:        outbox,
		sender:        sender,
		cfg:           cfg,
		logger:        logger,
		approvalTmpl:  template.Must(template.New("approval").Parse(approvalHTML)),
		rejectionTmpl: template.Must(template.New("rejection").Parse(rejectionHTML)),
	}
	s.queue = jobs.NewQueue("notifications", s.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Render produces subject and bodies for one notification.
func (s *NotificationService) Render(kind models.NotificationKind, payload models.NotificationPayload) (subject, htmlBody, textBody string, err error) {
	var tmpl *template.Template
	switch kind {
	case models.NotificationApproval:
		subject = "Your tutor application has been approved"
		tmpl = s.approvalTmpl
	case models.NotificationRejection:
		subject = "An update on your tutor application"
		tmpl = s.rejectionTmpl
	default:
		return "", "", "", fmt.Errorf("unknown notification kind %q", kind)
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, payload); err != nil {
		return "", "", "", fmt.Errorf("render %s email: %w", kind, err)
	}
	htmlBody = b.String()

	textBody = fmt.Sprintf("Hi %s,\n\n", payload.FullName)
	if kind == models.NotificationApproval {
		textBody += "Your tutor application has been approved.\n"
		if payload.Password != "" {
			textBody += fmt.Sprintf("Sign in with this email and the temporary password %s, then change it.\n", payload.Password)
		}
	} else {
		textBody += "After review we are unable to accept your application at this time.\n"
	}
	return subject, htmlBody, textBody, nil
}

// Start launches the dispatcher: a worker pool for delivery plus a
// poll loop that claims due outbox rows.
func (s *NotificationService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.queue.Start(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.pollOnce(ctx)
			}
		}
	}()
	s.logger.Info("notification dispatcher started",
		zap.Int("workers", s.cfg.Workers),
		zap.Duration("poll_interval", s.cfg.PollInterval))
}

// Stop halts the poll loop and waits for in-flight deliveries.
func (s *NotificationService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.queue.Stop()
}

func (s *NotificationService) pollOnce(ctx context.Context) {
	due, err := s.outbox.ClaimDue(ctx, time.Now().UTC(), s.cfg.Workers*4, s.cfg.RetryDelay)
	if err != nil {
		s.logger.Error("outbox claim failed", zap.Error(err))
		return
	}
	for _, n := range due {
		if err := s.queue.Enqueue(jobs.Job{ID: n.ID, Type: string(n.Kind), Payload: n}); err != nil {
			s.logger.Warn("enqueue notification failed", zap.String("id", n.ID), zap.Error(err))
		}
	}
}

// deliver sends one claimed notification and settles its outbox row.
// Send failures are absorbed into MarkFailed so the queue never
// re-enqueues on its own; the outbox schedule is the single retry
// authority.
func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(models.Notification)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	var payload models.NotificationPayload
	if len(n.Payload) > 0 {
		if err := json.Unmarshal(n.Payload, &payload); err != nil {
			s.logger.Error("notification payload corrupt", zap.String("id", n.ID), zap.Error(err))
			return s.outbox.MarkFailed(ctx, n.ID, s.cfg.MaxAttempts, s.cfg.MaxAttempts, "corrupt payload: "+err.Error(), time.Now().UTC())
		}
	}

	subject, htmlBody, textBody, err := s.Render(n.Kind, payload)
	if err != nil {
		return s.outbox.MarkFailed(ctx, n.ID, s.cfg.MaxAttempts, s.cfg.MaxAttempts, err.Error(), time.Now().UTC())
	}

	sendErr := s.sender.Send(ctx, mail.Message{
		To:       n.Recipient,
		ToName:   payload.FullName,
		Subject:  subject,
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
	if sendErr != nil {
		s.metrics.RecordNotification("failed")
		s.logger.Warn("notification send failed",
			zap.String("id", n.ID),
			zap.String("transport", s.sender.Name()),
			zap.Int("attempts", n.Attempts),
			zap.Error(sendErr))
		backoff := s.cfg.RetryDelay * time.Duration(n.Attempts)
		return s.outbox.MarkFailed(ctx, n.ID, n.Attempts, s.cfg.MaxAttempts, sendErr.Error(), time.Now().UTC().Add(backoff))
	}

	s.metrics.RecordNotification("sent")
	s.logger.Info("notification delivered",
		zap.String("id", n.ID),
		zap.String("kind", string(n.Kind)),
		zap.String("transport", s.sender.Name()))
	return s.outbox.MarkSent(ctx, n.ID, time.Now().UTC())
}
