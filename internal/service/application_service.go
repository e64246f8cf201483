package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edumarket/tutorhub-api/internal/dto"
	"github.com/edumarket/tutorhub-api/internal/models"
	"github.com/edumarket/tutorhub-api/pkg/config"
	appErrors "github.com/edumarket/tutorhub-api/pkg/errors"
	"github.com/edumarket/tutorhub-api/pkg/export"
	"github.com/edumarket/tutorhub-api/pkg/storage"
)

type applicationRepository interface {
	Submit(ctx context.Context, app *models.TutorApplication, docs []models.ApplicationDocument) (string, error)
	FindByID(ctx context.Context, id string) (*models.TutorApplication, error)
	ListPending(ctx context.Context) ([]models.PendingApplication, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.TutorApplication, int, error)
	FindDocument(ctx context.Context, applicationID string, kind models.DocumentKind, position int) (*models.ApplicationDocument, error)
	Resolve(ctx context.Context, id string, status models.ApplicationStatus, resolvedAt time.Time, notification *models.Notification) (int64, error)
}

type identityProvisioner interface {
	Provision(ctx context.Context, app *models.TutorApplication) (*ProvisionResult, error)
}

type tutorDirectory interface {
	Create(ctx context.Context, profile *models.TutorProfile) error
}

// ApplicationService orchestrates the tutor application lifecycle:
// public submission, the admin review queue, one-shot approval and
// rejection, document access and exports.
type ApplicationService struct {
	repo      applicationRepository
	provision identityProvisioner
	tutors    tutorDirectory
	store     *storage.LocalStorage
	signer    *storage.SignedURLSigner
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	cfg       config.DocumentsConfig
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
}

// WithMetrics attaches lifecycle counters.
func (s *ApplicationService) WithMetrics(m *MetricsService) *ApplicationService {
	s.metrics = m
	return s
}

// NewApplicationService constructs an ApplicationService.
func NewApplicationService(
	repo applicationRepository,
	provision identityProvisioner,
	tutors tutorDirectory,
	store *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	cfg config.DocumentsConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *ApplicationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicationService{
		repo:      repo,
		provision: provision,
		tutors:    tutors,
		store:     store,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		cfg:       cfg,
		validator: validate,
		logger:    logger,
	}
}

// Submit stores a new pending application. Document payloads arrive as
// data URIs, are decoded and written to object storage, and only their
// metadata goes to the database.
func (s *ApplicationService) Submit(ctx context.Context, req dto.SubmitApplicationRequest) (*dto.SubmitApplicationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}

	appID := uuid.NewString()
	var docs []models.ApplicationDocument
	addDoc := func(upload *dto.DocumentUpload, kind models.DocumentKind, position int) error {
		if upload == nil {
			return nil
		}
		doc, err := s.storeUpload(appID, kind, position, upload)
		if err != nil {
			return err
		}
		docs = append(docs, *doc)
		return nil
	}

	if err := addDoc(req.Resume, models.DocumentResume, 0); err != nil {
		return nil, err
	}
	if err := addDoc(req.IDProof, models.DocumentIDProof, 0); err != nil {
		return nil, err
	}
	for i := range req.Certifications {
		if err := addDoc(&req.Certifications[i], models.DocumentCertification, i); err != nil {
			return nil, err
		}
	}

	app := &models.TutorApplication{
		ID:         appID,
		FullName:   strings.TrimSpace(req.FullName),
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:      req.Phone,
		Subjects:   strings.TrimSpace(req.Subjects),
		Bio:        req.Bio,
		HourlyRate: req.HourlyRate,
		Mode:       req.Mode,
	}

	id, err := s.repo.Submit(ctx, app, docs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store application")
	}

	s.metrics.RecordSubmission()
	s.logger.Info("application submitted",
		zap.String("application_id", id),
		zap.Int("documents", len(docs)))
	return &dto.SubmitApplicationResponse{ID: id, Status: models.ApplicationPending}, nil
}

// storeUpload decodes one data URI, enforces size and MIME policy and
// writes the payload to object storage.
func (s *ApplicationService) storeUpload(appID string, kind models.DocumentKind, position int, upload *dto.DocumentUpload) (*models.ApplicationDocument, error) {
	mimeType, data, err := decodeDataURI(upload.DataURI)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("invalid %s document", kind))
	}
	if s.cfg.MaxFileSizeBytes > 0 && int64(len(data)) > s.cfg.MaxFileSizeBytes {
		return nil, appErrors.New(appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("%s document exceeds the size limit", kind))
	}
	if len(s.cfg.AllowedMIMEs) > 0 && !contains(s.cfg.AllowedMIMEs, mimeType) {
		return nil, appErrors.New(appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("unsupported document type %s", mimeType))
	}

	key := fmt.Sprintf("applications/%s/%s-%d", appID, kind, position)
	if _, err := s.store.Save(key, data); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document")
	}

	return &models.ApplicationDocument{
		Kind:      kind,
		Position:  position,
		ObjectKey: key,
		FileName:  upload.FileName,
		MimeType:  mimeType,
		SizeBytes: int64(len(data)),
	}, nil
}

// ListPending returns the admin review queue with signed download
// links for every document.
func (s *ApplicationService) ListPending(ctx context.Context) ([]dto.PendingApplicationResponse, error) {
	pending, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending applications")
	}

	result := make([]dto.PendingApplicationResponse, 0, len(pending))
	for _, p := range pending {
		entry := dto.PendingApplicationResponse{TutorApplication: p.TutorApplication}
		for _, doc := range p.Documents {
			token, _, err := s.signer.Generate(doc.ID, doc.ObjectKey)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign document link")
			}
			entry.Documents = append(entry.Documents, dto.DocumentLinkResponse{
				ApplicationDocument: doc,
				DownloadURL:         "/api/v1/documents?token=" + token,
			})
		}
		result = append(result, entry)
	}
	return result, nil
}

// Approve resolves a pending application: the tutor account is
// provisioned first, then the status flip and the approval email land
// in one transaction, and finally the directory profile is created.
func (s *ApplicationService) Approve(ctx context.Context, id string) (*dto.ResolveApplicationResponse, error) {
	app, err := s.loadPending(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := s.provision.Provision(ctx, app)
	if err != nil {
		return nil, err
	}

	payload := models.NotificationPayload{FullName: app.FullName}
	if result.Created {
		payload.Password = result.Password
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode notification")
	}

	now := time.Now().UTC()
	modified, err := s.repo.Resolve(ctx, id, models.ApplicationApproved, now, &models.Notification{
		Kind:      models.NotificationApproval,
		Recipient: app.Email,
		Payload:   raw,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve application")
	}
	if modified == 0 {
		return nil, s.resolveConflict(ctx, id)
	}

	profile := &models.TutorProfile{
		UserID:     result.UserID,
		FullName:   app.FullName,
		Subjects:   app.Subjects,
		Bio:        app.Bio,
		HourlyRate: app.HourlyRate,
	}
	if app.Mode != nil {
		profile.Mode = models.TutoringMode(*app.Mode)
	}
	if err := s.tutors.Create(ctx, profile); err != nil {
		// The approval already committed; a duplicate or failed
		// profile insert must not undo it.
		s.logger.Error("directory profile creation failed",
			zap.String("application_id", id),
			zap.Error(err))
	}

	s.metrics.RecordResolution("approved")
	s.logger.Info("application approved",
		zap.String("application_id", id),
		zap.String("user_id", result.UserID),
		zap.Bool("account_created", result.Created))
	return &dto.ResolveApplicationResponse{ID: id, Status: models.ApplicationApproved}, nil
}

// Reject resolves a pending application negatively and queues the
// rejection email in the same transaction.
func (s *ApplicationService) Reject(ctx context.Context, id string) (*dto.ResolveApplicationResponse, error) {
	app, err := s.loadPending(ctx, id)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(models.NotificationPayload{FullName: app.FullName})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode notification")
	}

	modified, err := s.repo.Resolve(ctx, id, models.ApplicationRejected, time.Now().UTC(), &models.Notification{
		Kind:      models.NotificationRejection,
		Recipient: app.Email,
		Payload:   raw,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject application")
	}
	if modified == 0 {
		return nil, s.resolveConflict(ctx, id)
	}

	s.metrics.RecordResolution("rejected")
	s.logger.Info("application rejected", zap.String("application_id", id))
	return &dto.ResolveApplicationResponse{ID: id, Status: models.ApplicationRejected}, nil
}

func (s *ApplicationService) loadPending(ctx context.Context, id string) (*models.TutorApplication, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if app.Status != models.ApplicationPending {
		return nil, appErrors.Clone(appErrors.ErrAlreadyResolved, fmt.Sprintf("application already %s", app.Status))
	}
	return app, nil
}

// resolveConflict classifies a zero-row resolve: the row either
// disappeared or a concurrent admin got there first.
func (s *ApplicationService) resolveConflict(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err == sql.ErrNoRows {
		return appErrors.Clone(appErrors.ErrNotFound, "application not found")
	}
	return appErrors.Clone(appErrors.ErrAlreadyResolved, "application already resolved")
}

// FetchDocument opens one stored document for streaming together with
// its metadata. An absent slot, including an out-of-range
// certification index, is NotFound.
func (s *ApplicationService) FetchDocument(ctx context.Context, appID string, kind models.DocumentKind, position int) (*models.ApplicationDocument, io.ReadCloser, error) {
	doc, err := s.repo.FindDocument(ctx, appID, kind, position)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	f, err := s.store.Open(doc.ObjectKey)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "document content missing")
	}
	return doc, f, nil
}

// OpenSigned validates a signed token and opens the underlying object
// for streaming.
func (s *ApplicationService) OpenSigned(token string) (io.ReadCloser, error) {
	_, objectKey, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download link")
	}
	f, err := s.store.Open(objectKey)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	return f, nil
}

// Export renders the application list as CSV or PDF.
func (s *ApplicationService) Export(ctx context.Context, filter models.ApplicationFilter, format string) (filename, contentType string, payload []byte, err error) {
	filter.PageSize = 100
	var apps []models.TutorApplication
	for page := 1; ; page++ {
		filter.Page = page
		batch, _, err := s.repo.List(ctx, filter)
		if err != nil {
			return "", "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
		}
		apps = append(apps, batch...)
		if len(batch) < filter.PageSize {
			break
		}
	}

	data := export.Dataset{
		Headers: []string{"ID", "Name", "Email", "Subjects", "Status", "Submitted"},
	}
	for _, app := range apps {
		data.Rows = append(data.Rows, []string{
			app.ID,
			app.FullName,
			app.Email,
			app.Subjects,
			string(app.Status),
			app.CreatedAt.Format(time.RFC3339),
		})
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	switch strings.ToLower(format) {
	case "", "csv":
		payload, err = s.csv.Render(data)
		if err != nil {
			return "", "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return "applications-" + stamp + ".csv", "text/csv", payload, nil
	case "pdf":
		payload, err = s.pdf.Render(data, "Tutor Applications")
		if err != nil {
			return "", "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return "applications-" + stamp + ".pdf", "application/pdf", payload, nil
	default:
		return "", "", nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format "+format)
	}
}

// decodeDataURI splits a data:<mime>;base64,<payload> URI into its
// MIME type and raw bytes.
func decodeDataURI(uri string) (string, []byte, error) {
	if !strings.HasPrefix(uri, "data:") {
		return "", nil, fmt.Errorf("not a data URI")
	}
	meta, encoded, found := strings.Cut(uri[len("data:"):], ",")
	if !found {
		return "", nil, fmt.Errorf("malformed data URI")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return "", nil, fmt.Errorf("only base64 data URIs are accepted")
	}
	mimeType := strings.TrimSuffix(meta, ";base64")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("decode data URI: %w", err)
	}
	return mimeType, data, nil
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}
