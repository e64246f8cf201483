package dto

// CreateSessionRequest is the payload for booking a tutoring session.
type CreateSessionRequest struct {
	TutorID         string `json:"tutor_id" validate:"required"`
	Subject         string `json:"subject" validate:"required,max=200"`
	ScheduledDate   string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime       string `json:"time" validate:"required"`
	DurationMinutes int    `json:"duration" validate:"required,gt=0,lte=480"`
}

// UpdateSessionStatusRequest moves a session request through its lifecycle.
type UpdateSessionStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=accepted rejected completed"`
}
