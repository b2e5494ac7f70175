package models

import (
	"time"

	"gorm.io/datatypes"
)

// Audited actions.
const (
	ActivityChallengeCreated   = "challenge.created"
	ActivityChallengeUpdated   = "challenge.updated"
	ActivitySubmissionCreated  = "submission.created"
	ActivitySubmissionReviewed = "submission.reviewed"
	ActivityProfileRoleChanged = "profile.role_changed"
	ActivityLedgerReconciled   = "ledger.reconciled"
)

// ActivityLog captures auditable events on challenges, submissions and profiles.
type ActivityLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	ActorID    uint              `gorm:"not null;index" json:"actor_id"`
	ActorRole  string            `gorm:"size:32;not null" json:"actor_role"`
	Action     string            `gorm:"size:64;not null;index" json:"action"`
	EntityType string            `gorm:"size:64;not null" json:"entity_type"`
	EntityID   *uint             `json:"entity_id"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time         `json:"created_at"`
}
