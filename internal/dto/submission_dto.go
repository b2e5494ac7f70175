package dto

import (
	"time"

	"github.com/noah-isme/gema-quest-api/internal/models"
)

// AnswerRequest is a student's answer to one challenge item.
type AnswerRequest struct {
	ItemID         string `json:"item_id" validate:"required,max=64"`
	SelectedOption string `json:"selected_option" validate:"required,max=255"`
}

// SubmissionCreateRequest submits answers to a challenge.
type SubmissionCreateRequest struct {
	ChallengeID uint            `json:"challenge_id" validate:"required,gt=0"`
	Answers     []AnswerRequest `json:"answers" validate:"required,min=1,dive"`
}

// AnswerCorrection marks one answer right or wrong during review.
type AnswerCorrection struct {
	ItemID    string `json:"item_id" validate:"required"`
	IsCorrect *bool  `json:"is_correct" validate:"required"`
}

// SubmissionReviewRequest approves or rejects a pending submission.
type SubmissionReviewRequest struct {
	Decision         string             `json:"decision" validate:"required,oneof=approved rejected"`
	Feedback         string             `json:"feedback_text" validate:"max=5000"`
	CorrectedAnswers []AnswerCorrection `json:"corrected_answers" validate:"omitempty,dive"`
}

// SubmissionListRequest filters the caller's own submissions.
type SubmissionListRequest struct {
	Period string `query:"period" validate:"omitempty,oneof=all week month year"`
}

// ReviewHistoryRequest filters reviewed submissions.
type ReviewHistoryRequest struct {
	StudentID uint `query:"student_id"`
	Limit     int  `query:"limit" validate:"omitempty,gte=1,lte=200"`
}

// AnswerResponse is one stored answer.
type AnswerResponse struct {
	ItemID         string `json:"item_id"`
	SelectedOption string `json:"selected_option"`
	IsCorrect      *bool  `json:"is_correct"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID           uint             `json:"id"`
	ChallengeID  uint             `json:"challenge_id"`
	UserID       uint             `json:"user_id"`
	Answers      []AnswerResponse `json:"answers_json"`
	Status       string           `json:"status"`
	FeedbackText *string          `json:"feedback_text"`
	ReviewedBy   *uint            `json:"reviewed_by"`
	SubmittedAt  time.Time        `json:"submitted_at"`
	ReviewedAt   *time.Time       `json:"reviewed_at"`
	Challenge    *ChallengeLite   `json:"challenge,omitempty"`
	Student      *ProfileLite     `json:"student,omitempty"`
	Reviewer     *ProfileLite     `json:"reviewer,omitempty"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	stored := model.Answers.Data()
	answers := make([]AnswerResponse, 0, len(stored))
	for _, answer := range stored {
		answers = append(answers, AnswerResponse{
			ItemID:         answer.ItemID,
			SelectedOption: answer.SelectedOption,
			IsCorrect:      answer.IsCorrect,
		})
	}

	response := SubmissionResponse{
		ID:           model.ID,
		ChallengeID:  model.ChallengeID,
		UserID:       model.UserID,
		Answers:      answers,
		Status:       string(model.Status),
		FeedbackText: model.FeedbackText,
		ReviewedBy:   model.ReviewedBy,
		SubmittedAt:  model.SubmittedAt,
		ReviewedAt:   model.ReviewedAt,
	}

	if model.Challenge.ID != 0 {
		challenge := NewChallengeLite(model.Challenge)
		response.Challenge = &challenge
	}
	if model.Student.ID != 0 {
		student := NewProfileLite(model.Student)
		response.Student = &student
	}
	if model.Reviewer != nil && model.Reviewer.ID != 0 {
		reviewer := NewProfileLite(*model.Reviewer)
		response.Reviewer = &reviewer
	}

	return response
}

// NewSubmissionResponseSlice converts a list of submission models into DTOs.
func NewSubmissionResponseSlice(items []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewSubmissionResponse(item))
	}
	return responses
}
