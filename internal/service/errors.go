package service

import "github.com/noah-isme/gema-quest-api/internal/apperror"

// Domain failures returned by the services. Each carries an apperror kind so
// transports can render it without knowing the service.
var (
	ErrProfileNotFound     = apperror.NotFound("profile not found")
	ErrChallengeNotFound   = apperror.NotFound("challenge not found")
	ErrSubmissionNotFound  = apperror.NotFound("submission not found")
	ErrAlreadyReviewed     = apperror.Conflict("submission already reviewed")
	ErrAlreadyCredited     = apperror.Conflict("submission already credited")
	ErrDuplicateSubmission = apperror.Conflict("challenge already submitted")
	ErrAnswerSetMismatch   = apperror.Validation("answers must cover every challenge item exactly once")
	ErrFeedbackRequired    = apperror.Validation("feedback is required")
	ErrInvalidDecision     = apperror.Validation("decision must be approved or rejected")
	ErrInvalidAmount       = apperror.Validation("credit amounts must be positive")
	ErrInvalidRole         = apperror.Validation("unknown role")
	ErrInvalidContent      = apperror.Validation("invalid challenge content")
	ErrInvalidPeriod       = apperror.Validation("period must be one of all, week, month, year")
)
