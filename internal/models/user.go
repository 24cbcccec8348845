package models

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	RoleElderly   UserRole = "elderly"
	RoleCaregiver UserRole = "caregiver"
	RoleFamily    UserRole = "family"
)

// User is the read-only profile owned by the account service.
type User struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Role     UserRole  `json:"role"`
	Email    string    `json:"email,omitempty"`
	Timezone string    `json:"timezone,omitempty"`
}

// Location resolves the user's timezone, falling back to def.
func (u User) Location(def *time.Location) *time.Location {
	if u.Timezone == "" {
		return def
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return def
	}
	return loc
}

type RelationshipStatus string

const (
	RelationshipPending  RelationshipStatus = "pending"
	RelationshipAccepted RelationshipStatus = "accepted"
	RelationshipRejected RelationshipStatus = "rejected"
)

// CareRelationship links an elderly user to a caregiver or family member.
type CareRelationship struct {
	ID               uuid.UUID          `json:"id"`
	ElderlyID        uuid.UUID          `json:"elderly_id"`
	CaregiverID      uuid.UUID          `json:"caregiver_id"`
	RelationshipType UserRole           `json:"relationship_type"`
	Status           RelationshipStatus `json:"status"`
	CaregiverName    string             `json:"caregiver_name"`
	CaregiverEmail   string             `json:"caregiver_email"`
}
