package models

import (
	"time"

	"gorm.io/datatypes"
)

// SubmissionStatus is the review state of a submission.
type SubmissionStatus string

const (
	// SubmissionStatusPending indicates the submission awaits review.
	SubmissionStatusPending SubmissionStatus = "pending"
	// SubmissionStatusApproved indicates the submission was accepted and rewarded.
	SubmissionStatusApproved SubmissionStatus = "approved"
	// SubmissionStatusRejected indicates the submission was declined.
	SubmissionStatusRejected SubmissionStatus = "rejected"
)

// IsTerminal reports whether no further transition is allowed.
func (s SubmissionStatus) IsTerminal() bool {
	return s == SubmissionStatusApproved || s == SubmissionStatusRejected
}

// Answer is a student's response to one challenge item. IsCorrect is nil until a reviewer marks it.
type Answer struct {
	ItemID         string `json:"item_id"`
	SelectedOption string `json:"selected_option"`
	IsCorrect      *bool  `json:"is_correct"`
}

// Submission represents one student's attempt at a challenge.
type Submission struct {
	ID           uint                         `gorm:"primaryKey" json:"id"`
	ChallengeID  uint                         `gorm:"not null;uniqueIndex:idx_submissions_challenge_user" json:"challenge_id"`
	UserID       uint                         `gorm:"not null;uniqueIndex:idx_submissions_challenge_user;index" json:"user_id"`
	Answers      datatypes.JSONType[[]Answer] `gorm:"column:answers_json;not null" json:"answers_json"`
	Status       SubmissionStatus             `gorm:"size:16;not null;default:pending;index" json:"status"`
	FeedbackText *string                      `gorm:"type:text" json:"feedback_text"`
	ReviewedBy   *uint                        `json:"reviewed_by"`
	SubmittedAt  time.Time                    `gorm:"not null;index" json:"submitted_at"`
	ReviewedAt   *time.Time                   `json:"reviewed_at"`
	Challenge    Challenge                    `gorm:"foreignKey:ChallengeID" json:"challenge"`
	Student      Profile                      `gorm:"foreignKey:UserID" json:"student"`
	Reviewer     *Profile                     `gorm:"foreignKey:ReviewedBy" json:"reviewer,omitempty"`
}

// IsReviewed reports whether the submission reached a terminal state.
func (s Submission) IsReviewed() bool {
	return s.Status.IsTerminal()
}
