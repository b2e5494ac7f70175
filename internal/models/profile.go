package models

import (
	"strings"
	"time"
)

// Role is the closed set of roles a profile can hold.
type Role string

const (
	// RoleStudent submits answers and earns rewards.
	RoleStudent Role = "student"
	// RoleTeacher authors challenges and reviews submissions to them.
	RoleTeacher Role = "teacher"
	// RoleUnderboss is a head-teacher tier that may edit and review any challenge.
	RoleUnderboss Role = "underboss"
	// RoleAdmin has every capability.
	RoleAdmin Role = "admin"
)

// ParseRole normalises the raw value and reports whether it names a known role.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	return role, role.Valid()
}

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleUnderboss, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsStaff reports whether the role can author and review challenges.
func (r Role) IsStaff() bool {
	switch r {
	case RoleTeacher, RoleUnderboss, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsElevated reports whether the role bypasses challenge ownership checks.
func (r Role) IsElevated() bool {
	switch r {
	case RoleUnderboss, RoleAdmin:
		return true
	default:
		return false
	}
}

// Profile is the domain identity behind an authenticated principal.
type Profile struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AuthSubject string    `gorm:"size:255;uniqueIndex;not null" json:"-"`
	Role        Role      `gorm:"size:32;not null;default:student" json:"role"`
	FullName    string    `gorm:"size:255" json:"full_name"`
	CoinsTotal  int64     `gorm:"not null;default:0" json:"coins_total"`
	PointsTotal int64     `gorm:"not null;default:0" json:"points_total"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
