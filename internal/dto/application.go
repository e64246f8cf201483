package dto

import "github.com/edumarket/tutorhub-api/internal/models"

// DocumentUpload is one data-URI encoded document in a submission.
// The payload is decoded server-side and written to object storage;
// the data URI never reaches the database.
type DocumentUpload struct {
	FileName string `json:"file_name" validate:"required"`
	DataURI  string `json:"data" validate:"required"`
}

// SubmitApplicationRequest is the public submission payload.
type SubmitApplicationRequest struct {
	FullName       string           `json:"name" validate:"required,max=200"`
	Email          string           `json:"email" validate:"required,email"`
	Phone          *string          `json:"phone" validate:"omitempty,max=50"`
	Subjects       string           `json:"subjects" validate:"required,max=500"`
	Bio            *string          `json:"bio" validate:"omitempty,max=2000"`
	HourlyRate     *float64         `json:"hourly_rate" validate:"omitempty,gte=0"`
	Mode           *string          `json:"mode" validate:"omitempty,oneof=online in_person hybrid"`
	Resume         *DocumentUpload  `json:"resume"`
	IDProof        *DocumentUpload  `json:"id_proof"`
	Certifications []DocumentUpload `json:"certifications" validate:"omitempty,max=10"`
}

// SubmitApplicationResponse returns the generated application id.
type SubmitApplicationResponse struct {
	ID     string                   `json:"id"`
	Status models.ApplicationStatus `json:"status"`
}

// ResolveApplicationResponse reports the outcome of approve/reject.
type ResolveApplicationResponse struct {
	ID     string                   `json:"id"`
	Status models.ApplicationStatus `json:"status"`
}

// DocumentLinkResponse enriches document metadata with a signed URL.
type DocumentLinkResponse struct {
	models.ApplicationDocument
	DownloadURL string `json:"download_url"`
}

// PendingApplicationResponse is one review queue entry with signed
// links to its documents.
type PendingApplicationResponse struct {
	models.TutorApplication
	Documents []DocumentLinkResponse `json:"documents"`
}
