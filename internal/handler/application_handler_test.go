package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edumarket/tutorhub-api/internal/dto"
	"github.com/edumarket/tutorhub-api/internal/models"
	appErrors "github.com/edumarket/tutorhub-api/pkg/errors"
)

type applicationServiceMock struct {
	submitResp  *dto.SubmitApplicationResponse
	submitErr   error
	pendingResp []dto.PendingApplicationResponse
	pendingErr  error
	resolveResp *dto.ResolveApplicationResponse
	resolveErr  error
	fetchDoc    *models.ApplicationDocument
	fetchErr    error

	submitCalled  bool
	approveCalled bool
	rejectCalled  bool
	lastResolveID string
	lastKind      models.DocumentKind
	lastPosition  int
}

func (m *applicationServiceMock) Submit(ctx context.Context, req dto.SubmitApplicationRequest) (*dto.SubmitApplicationResponse, error) {
	m.submitCalled = true
	return m.submitResp, m.submitErr
}

func (m *applicationServiceMock) ListPending(ctx context.Context) ([]dto.PendingApplicationResponse, error) {
	return m.pendingResp, m.pendingErr
}

func (m *applicationServiceMock) Approve(ctx context.Context, id string) (*dto.ResolveApplicationResponse, error) {
	m.approveCalled = true
	m.lastResolveID = id
	return m.resolveResp, m.resolveErr
}

func (m *applicationServiceMock) Reject(ctx context.Context, id string) (*dto.ResolveApplicationResponse, error) {
	m.rejectCalled = true
	m.lastResolveID = id
	return m.resolveResp, m.resolveErr
}

func (m *applicationServiceMock) FetchDocument(ctx context.Context, appID string, kind models.DocumentKind, position int) (*models.ApplicationDocument, io.ReadCloser, error) {
	m.lastKind = kind
	m.lastPosition = position
	if m.fetchErr != nil {
		return nil, nil, m.fetchErr
	}
	return m.fetchDoc, io.NopCloser(bytes.NewBufferString("doc bytes")), nil
}

func (m *applicationServiceMock) OpenSigned(token string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewBufferString("doc bytes")), nil
}

func (m *applicationServiceMock) Export(ctx context.Context, filter models.ApplicationFilter, format string) (string, string, []byte, error) {
	return "applications.csv", "text/csv", []byte("id,name\n"), nil
}

func TestApplicationHandlerSubmit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &applicationServiceMock{
		submitResp: &dto.SubmitApplicationResponse{ID: "app-1", Status: models.ApplicationPending},
	}
	handler := NewApplicationHandler(mockSvc)

	payload, _ := json.Marshal(dto.SubmitApplicationRequest{
		FullName: "Nadia Rahma",
		Email:    "nadia@example.com",
		Subjects: "Mathematics",
	})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/applications", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Submit(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockSvc.submitCalled)
}

func TestApplicationHandlerSubmitInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewApplicationHandler(&applicationServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/applications", bytes.NewBufferString(`{"name":"x"`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Submit(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApplicationHandlerApproveConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &applicationServiceMock{
		resolveErr: appErrors.Clone(appErrors.ErrAlreadyResolved, "application already approved"),
	}
	handler := NewApplicationHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPatch, "/applications/app-1/approve", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "app-1"}}

	handler.Approve(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.True(t, mockSvc.approveCalled)
	assert.Equal(t, "app-1", mockSvc.lastResolveID)
}

func TestApplicationHandlerRejectMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &applicationServiceMock{
		resolveErr: appErrors.Clone(appErrors.ErrNotFound, "application not found"),
	}
	handler := NewApplicationHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPatch, "/applications/nope/reject", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "nope"}}

	handler.Reject(c)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.True(t, mockSvc.rejectCalled)
}

func TestApplicationHandlerDocumentKindWhitelist(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &applicationServiceMock{
		fetchDoc: &models.ApplicationDocument{FileName: "cert-2.pdf", MimeType: "application/pdf"},
	}
	handler := NewApplicationHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/applications/app-1/documents/passport", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "app-1"}, {Key: "docType", Value: "passport"}}

	handler.Document(c)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	req, _ = http.NewRequest(http.MethodGet, "/applications/app-1/documents/certification/2", nil)
	c.Request = req
	c.Params = gin.Params{
		{Key: "id", Value: "app-1"},
		{Key: "docType", Value: "certification"},
		{Key: "index", Value: "2"},
	}

	handler.Document(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.DocumentCertification, mockSvc.lastKind)
	assert.Equal(t, 2, mockSvc.lastPosition)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "cert-2.pdf")
	assert.Equal(t, "doc bytes", w.Body.String())
}

func TestApplicationHandlerDocumentLegacyTokens(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &applicationServiceMock{
		fetchDoc: &models.ApplicationDocument{FileName: "doc.pdf", MimeType: "application/pdf"},
	}
	handler := NewApplicationHandler(mockSvc)

	aliases := map[string]models.DocumentKind{
		"idProof":        models.DocumentIDProof,
		"certifications": models.DocumentCertification,
	}
	for token, want := range aliases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		req, _ := http.NewRequest(http.MethodGet, "/applications/app-1/documents/"+token, nil)
		c.Request = req
		c.Params = gin.Params{{Key: "id", Value: "app-1"}, {Key: "docType", Value: token}}

		handler.Document(c)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, want, mockSvc.lastKind)
	}
}

func TestApplicationHandlerDownloadMissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewApplicationHandler(&applicationServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/documents", nil)
	c.Request = req

	handler.Download(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApplicationHandlerExport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewApplicationHandler(&applicationServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/applications/export?format=csv", nil)
	c.Request = req

	handler.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "applications.csv")
}
