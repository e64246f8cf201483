package models

import "time"

// ApplicationStatus is the lifecycle state of a tutor application.
// Transitions are one-directional: pending becomes approved or
// rejected exactly once, both terminal.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// DocumentKind identifies which slot of the submission a stored
// document belongs to.
type DocumentKind string

const (
	DocumentResume        DocumentKind = "resume"
	DocumentIDProof       DocumentKind = "id_proof"
	DocumentCertification DocumentKind = "certification"
)

// TutorApplication is one prospective tutor's submission awaiting review.
type TutorApplication struct {
	ID         string            `db:"id" json:"id"`
	FullName   string            `db:"full_name" json:"full_name"`
	Email      string            `db:"email" json:"email"`
	Phone      *string           `db:"phone" json:"phone,omitempty"`
	Subjects   string            `db:"subjects" json:"subjects"`
	Bio        *string           `db:"bio" json:"bio,omitempty"`
	HourlyRate *float64          `db:"hourly_rate" json:"hourly_rate,omitempty"`
	Mode       *string           `db:"mode" json:"mode,omitempty"`
	Status     ApplicationStatus `db:"status" json:"status"`
	CreatedAt  time.Time         `db:"created_at" json:"created_at"`
	ApprovedAt *time.Time        `db:"approved_at" json:"approved_at,omitempty"`
	RejectedAt *time.Time        `db:"rejected_at" json:"rejected_at,omitempty"`
}

// ApplicationDocument is the metadata row for one stored document.
// The payload itself lives in object storage under ObjectKey; list
// responses carry this struct and never the bytes.
type ApplicationDocument struct {
	ID            string       `db:"id" json:"id"`
	ApplicationID string       `db:"application_id" json:"application_id"`
	Kind          DocumentKind `db:"kind" json:"kind"`
	Position      int          `db:"position" json:"position"`
	ObjectKey     string       `db:"object_key" json:"-"`
	FileName      string       `db:"file_name" json:"file_name"`
	MimeType      string       `db:"mime_type" json:"mime_type"`
	SizeBytes     int64        `db:"size_bytes" json:"size_bytes"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
}

// PendingApplication bundles an application with its document metadata
// for the admin review queue.
type PendingApplication struct {
	TutorApplication
	Documents []ApplicationDocument `json:"documents"`
}

// ApplicationFilter narrows admin listing and export queries.
type ApplicationFilter struct {
	Status    ApplicationStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
