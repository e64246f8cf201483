package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edumarket/tutorhub-api/internal/dto"
	"github.com/edumarket/tutorhub-api/internal/models"
	"github.com/edumarket/tutorhub-api/pkg/config"
	appErrors "github.com/edumarket/tutorhub-api/pkg/errors"
	"github.com/edumarket/tutorhub-api/pkg/storage"
)

type mockApplicationRepo struct {
	items         map[string]*models.TutorApplication
	docs          map[string][]models.ApplicationDocument
	notifications []models.Notification
	resolveCount  int64
}

func (m *mockApplicationRepo) Submit(ctx context.Context, app *models.TutorApplication, docs []models.ApplicationDocument) (string, error) {
	if m.items == nil {
		m.items = make(map[string]*models.TutorApplication)
		m.docs = make(map[string][]models.ApplicationDocument)
	}
	app.Status = models.ApplicationPending
	cp := *app
	m.items[app.ID] = &cp
	for i := range docs {
		docs[i].ID = app.ID + "-doc-" + string(rune('a'+i))
	}
	m.docs[app.ID] = docs
	return app.ID, nil
}

func (m *mockApplicationRepo) FindByID(ctx context.Context, id string) (*models.TutorApplication, error) {
	if app, ok := m.items[id]; ok {
		cp := *app
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockApplicationRepo) ListPending(ctx context.Context) ([]models.PendingApplication, error) {
	var result []models.PendingApplication
	for _, app := range m.items {
		if app.Status == models.ApplicationPending {
			result = append(result, models.PendingApplication{TutorApplication: *app, Documents: m.docs[app.ID]})
		}
	}
	return result, nil
}

func (m *mockApplicationRepo) List(ctx context.Context, filter models.ApplicationFilter) ([]models.TutorApplication, int, error) {
	var result []models.TutorApplication
	for _, app := range m.items {
		result = append(result, *app)
	}
	return result, len(result), nil
}

func (m *mockApplicationRepo) FindDocument(ctx context.Context, applicationID string, kind models.DocumentKind, position int) (*models.ApplicationDocument, error) {
	for _, doc := range m.docs[applicationID] {
		if doc.Kind == kind && doc.Position == position {
			cp := doc
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockApplicationRepo) Resolve(ctx context.Context, id string, status models.ApplicationStatus, resolvedAt time.Time, notification *models.Notification) (int64, error) {
	app, ok := m.items[id]
	if !ok || app.Status != models.ApplicationPending {
		return 0, nil
	}
	app.Status = status
	if notification != nil {
		m.notifications = append(m.notifications, *notification)
	}
	m.resolveCount++
	return 1, nil
}

type mockProvisioner struct {
	result *ProvisionResult
	err    error
	calls  int
}

func (m *mockProvisioner) Provision(ctx context.Context, app *models.TutorApplication) (*ProvisionResult, error) {
	m.calls++
	return m.result, m.err
}

type mockTutorDirectory struct {
	created []models.TutorProfile
}

func (m *mockTutorDirectory) Create(ctx context.Context, profile *models.TutorProfile) error {
	m.created = append(m.created, *profile)
	return nil
}

func newTestApplicationService(t *testing.T, repo *mockApplicationRepo, prov *mockProvisioner, dir *mockTutorDirectory) *ApplicationService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", 30*time.Minute)
	cfg := config.DocumentsConfig{
		MaxFileSizeBytes: 1 << 20,
		AllowedMIMEs:     []string{"application/pdf", "image/png"},
	}
	return NewApplicationService(repo, prov, dir, store, signer, cfg, validator.New(), zap.NewNop())
}

func pdfDataURI(content string) string {
	return "data:application/pdf;base64," + base64.StdEncoding.EncodeToString([]byte(content))
}

func TestApplicationServiceSubmit(t *testing.T) {
	repo := &mockApplicationRepo{}
	svc := newTestApplicationService(t, repo, &mockProvisioner{}, &mockTutorDirectory{})

	resp, err := svc.Submit(context.Background(), dto.SubmitApplicationRequest{
		FullName: "Aisha Khan",
		Email:    "Aisha@Example.com",
		Subjects: "math,physics",
		Resume:   &dto.DocumentUpload{FileName: "resume.pdf", DataURI: pdfDataURI("resume bytes")},
		Certifications: []dto.DocumentUpload{
			{FileName: "cert.pdf", DataURI: pdfDataURI("cert bytes")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationPending, resp.Status)

	stored := repo.items[resp.ID]
	require.NotNil(t, stored)
	assert.Equal(t, "aisha@example.com", stored.Email)

	docs := repo.docs[resp.ID]
	require.Len(t, docs, 2)
	assert.Equal(t, models.DocumentResume, docs[0].Kind)
	assert.Equal(t, "application/pdf", docs[0].MimeType)
	assert.NotContains(t, docs[0].ObjectKey, "data:")
}

func TestApplicationServiceSubmitRejectsBadDocuments(t *testing.T) {
	svc := newTestApplicationService(t, &mockApplicationRepo{}, &mockProvisioner{}, &mockTutorDirectory{})

	_, err := svc.Submit(context.Background(), dto.SubmitApplicationRequest{
		FullName: "Aisha Khan",
		Email:    "aisha@example.com",
		Subjects: "math",
		Resume:   &dto.DocumentUpload{FileName: "resume.exe", DataURI: "data:application/x-msdownload;base64,AAAA"},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	_, err = svc.Submit(context.Background(), dto.SubmitApplicationRequest{
		FullName: "Aisha Khan",
		Email:    "aisha@example.com",
		Subjects: "math",
		Resume:   &dto.DocumentUpload{FileName: "resume.pdf", DataURI: "not a data uri"},
	})
	require.Error(t, err)
}

func TestApplicationServiceApprove(t *testing.T) {
	repo := &mockApplicationRepo{
		items: map[string]*models.TutorApplication{
			"a1": {ID: "a1", FullName: "Aisha Khan", Email: "aisha@example.com", Subjects: "math", Status: models.ApplicationPending},
		},
		docs: map[string][]models.ApplicationDocument{},
	}
	prov := &mockProvisioner{result: &ProvisionResult{UserID: "u1", Created: true, Password: "temp-pass"}}
	dir := &mockTutorDirectory{}
	svc := newTestApplicationService(t, repo, prov, dir)

	resp, err := svc.Approve(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationApproved, resp.Status)
	assert.Equal(t, 1, prov.calls)

	require.Len(t, repo.notifications, 1)
	n := repo.notifications[0]
	assert.Equal(t, models.NotificationApproval, n.Kind)
	assert.Equal(t, "aisha@example.com", n.Recipient)
	assert.Contains(t, string(n.Payload), "temp-pass")

	require.Len(t, dir.created, 1)
	assert.Equal(t, "u1", dir.created[0].UserID)
}

func TestApplicationServiceApproveExistingAccountOmitsPassword(t *testing.T) {
	repo := &mockApplicationRepo{
		items: map[string]*models.TutorApplication{
			"a1": {ID: "a1", FullName: "Aisha Khan", Email: "aisha@example.com", Subjects: "math", Status: models.ApplicationPending},
		},
		docs: map[string][]models.ApplicationDocument{},
	}
	prov := &mockProvisioner{result: &ProvisionResult{UserID: "u1", Created: false}}
	svc := newTestApplicationService(t, repo, prov, &mockTutorDirectory{})

	_, err := svc.Approve(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, repo.notifications, 1)
	assert.NotContains(t, string(repo.notifications[0].Payload), "password")
}

func TestApplicationServiceApproveTerminalConflicts(t *testing.T) {
	repo := &mockApplicationRepo{
		items: map[string]*models.TutorApplication{
			"a1": {ID: "a1", Email: "aisha@example.com", Status: models.ApplicationRejected},
		},
		docs: map[string][]models.ApplicationDocument{},
	}
	svc := newTestApplicationService(t, repo, &mockProvisioner{}, &mockTutorDirectory{})

	_, err := svc.Approve(context.Background(), "a1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrAlreadyResolved.Code, appErr.Code)
	assert.Equal(t, 409, appErr.Status)
}

func TestApplicationServiceApproveMissing(t *testing.T) {
	svc := newTestApplicationService(t, &mockApplicationRepo{}, &mockProvisioner{}, &mockTutorDirectory{})

	_, err := svc.Approve(context.Background(), "nope")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestApplicationServiceReject(t *testing.T) {
	repo := &mockApplicationRepo{
		items: map[string]*models.TutorApplication{
			"a1": {ID: "a1", FullName: "Aisha Khan", Email: "aisha@example.com", Status: models.ApplicationPending},
		},
		docs: map[string][]models.ApplicationDocument{},
	}
	prov := &mockProvisioner{}
	svc := newTestApplicationService(t, repo, prov, &mockTutorDirectory{})

	resp, err := svc.Reject(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationRejected, resp.Status)
	assert.Zero(t, prov.calls)
	require.Len(t, repo.notifications, 1)
	assert.Equal(t, models.NotificationRejection, repo.notifications[0].Kind)
}

func TestApplicationServiceDocumentFetchAndSignedOpen(t *testing.T) {
	repo := &mockApplicationRepo{}
	svc := newTestApplicationService(t, repo, &mockProvisioner{}, &mockTutorDirectory{})

	resp, err := svc.Submit(context.Background(), dto.SubmitApplicationRequest{
		FullName: "Aisha Khan",
		Email:    "aisha@example.com",
		Subjects: "math",
		Resume:   &dto.DocumentUpload{FileName: "resume.pdf", DataURI: pdfDataURI("resume bytes")},
	})
	require.NoError(t, err)

	doc, rc, err := svc.FetchDocument(context.Background(), resp.ID, models.DocumentResume, 0)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "resume.pdf", doc.FileName)

	buf := make([]byte, 64)
	n, _ := rc.Read(buf)
	assert.Equal(t, "resume bytes", string(buf[:n]))

	_, _, err = svc.FetchDocument(context.Background(), resp.ID, models.DocumentCertification, 3)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	pending, err := svc.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NotEmpty(t, pending[0].Documents)
	link := pending[0].Documents[0].DownloadURL
	assert.Contains(t, link, "/api/v1/documents?token=")

	token := strings.TrimPrefix(link, "/api/v1/documents?token=")
	signed, err := svc.OpenSigned(token)
	require.NoError(t, err)
	defer signed.Close()

	n, _ = signed.Read(buf)
	assert.Equal(t, "resume bytes", string(buf[:n]))
}

func TestApplicationServiceExportCSV(t *testing.T) {
	repo := &mockApplicationRepo{
		items: map[string]*models.TutorApplication{
			"a1": {ID: "a1", FullName: "Aisha Khan", Email: "aisha@example.com", Subjects: "math", Status: models.ApplicationPending, CreatedAt: time.Now()},
		},
		docs: map[string][]models.ApplicationDocument{},
	}
	svc := newTestApplicationService(t, repo, &mockProvisioner{}, &mockTutorDirectory{})

	filename, contentType, payload, err := svc.Export(context.Background(), models.ApplicationFilter{}, "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.True(t, strings.HasSuffix(filename, ".csv"))
	assert.Contains(t, string(payload), "aisha@example.com")

	_, _, _, err = svc.Export(context.Background(), models.ApplicationFilter{}, "xlsx")
	require.Error(t, err)
}
