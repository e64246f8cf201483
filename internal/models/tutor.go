package models

import "time"

// TutoringMode describes how a tutor delivers sessions.
type TutoringMode string

const (
	ModeOnline   TutoringMode = "online"
	ModeInPerson TutoringMode = "in_person"
	ModeHybrid   TutoringMode = "hybrid"
)

// TutorProfile is the public directory entry created when an
// application is approved. It back-references the provisioned user by
// id without a storage-level foreign key.
type TutorProfile struct {
	ID         string       `db:"id" json:"id"`
	UserID     string       `db:"user_id" json:"user_id"`
	FullName   string       `db:"full_name" json:"full_name"`
	Subjects   string       `db:"subjects" json:"subjects"`
	Bio        *string      `db:"bio" json:"bio,omitempty"`
	HourlyRate *float64     `db:"hourly_rate" json:"hourly_rate,omitempty"`
	Rating     float64      `db:"rating" json:"rating"`
	Mode       TutoringMode `db:"mode" json:"mode"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time    `db:"updated_at" json:"updated_at"`
}

// TutorFilter captures query parameters of the public directory.
type TutorFilter struct {
	Subject   string
	MinRating *float64
	Mode      TutoringMode
	Page      int
	PageSize  int
}
