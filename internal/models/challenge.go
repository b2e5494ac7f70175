package models

import (
	"time"

	"gorm.io/datatypes"
)

// ChallengeType discriminates the shape of a challenge's content.
type ChallengeType string

// ChallengeTypeFillBlanks is a fill-in-the-blanks exercise.
const ChallengeTypeFillBlanks ChallengeType = "fill_blanks_prepositions"

// ChallengeStatus tracks the publication state of a challenge.
type ChallengeStatus string

const (
	ChallengeStatusDraft     ChallengeStatus = "draft"
	ChallengeStatusPublished ChallengeStatus = "published"
	ChallengeStatusArchived  ChallengeStatus = "archived"
)

// AnswerKind describes how an item is answered.
type AnswerKind string

const (
	AnswerKindMultipleChoice AnswerKind = "multiple_choice"
	AnswerKindTextInput      AnswerKind = "text_input"
)

// ChallengeItem is a single blank to fill.
type ChallengeItem struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	Options    []string   `json:"options"`
	AnswerType AnswerKind `json:"answer_type,omitempty"`
}

// Kind returns the item's answer kind; items without one are multiple choice.
func (i ChallengeItem) Kind() AnswerKind {
	if i.AnswerType == "" {
		return AnswerKindMultipleChoice
	}
	return i.AnswerType
}

// HasOption reports whether value is one of the fixed options.
func (i ChallengeItem) HasOption(value string) bool {
	for _, option := range i.Options {
		if option == value {
			return true
		}
	}
	return false
}

// ChallengeContent is the fill-in-the-blanks content stored in content_json.
type ChallengeContent struct {
	Instructions string          `json:"instructions"`
	Items        []ChallengeItem `json:"items"`
}

// Challenge is a teacher-authored exercise with rewards and a publish date.
type Challenge struct {
	ID           uint                                 `gorm:"primaryKey" json:"id"`
	Title        string                               `gorm:"size:255;not null" json:"title"`
	Description  string                               `gorm:"type:text;not null" json:"description"`
	Type         ChallengeType                        `gorm:"size:64;not null" json:"type"`
	Content      datatypes.JSONType[ChallengeContent] `gorm:"column:content_json;not null" json:"content_json"`
	PointsReward int64                                `gorm:"not null" json:"points_reward"`
	CoinReward   int64                                `gorm:"not null" json:"coin_reward"`
	PublishDate  string                               `gorm:"size:10;not null;index" json:"publish_date"`
	Status       ChallengeStatus                      `gorm:"size:16;not null;default:draft;index" json:"status"`
	CreatedBy    uint                                 `gorm:"not null;index" json:"created_by"`
	CreatedAt    time.Time                            `json:"created_at"`
	UpdatedAt    time.Time                            `json:"updated_at"`
}

// Items returns the ordered item list from the challenge content.
func (c Challenge) Items() []ChallengeItem {
	return c.Content.Data().Items
}

// IsSubmittable reports whether students can see and answer the challenge on the given civic date.
// Dates use the YYYY-MM-DD layout so lexical order matches calendar order.
func (c Challenge) IsSubmittable(today string) bool {
	return c.Status == ChallengeStatusPublished && c.PublishDate <= today
}
