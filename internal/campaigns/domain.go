// Package campaigns dispatches bulk WhatsApp campaigns one recipient per
// campaign per tick, at randomized intervals, within business hours.
package campaigns

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status of a campaign.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusAwaiting  Status = "awaiting"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// RecipientStatus of a single queued message.
type RecipientStatus string

const (
	RecipientPending RecipientStatus = "pending"
	RecipientSent    RecipientStatus = "sent"
	RecipientFailed  RecipientStatus = "failed"
)

var (
	ErrCampaignNotFound    = errors.New("campaign not found")
	ErrNoPendingRecipients = errors.New("no pending recipients")
	ErrInvalidTransition   = errors.New("invalid campaign transition")
)

// Campaign is a bulk-messaging job.
type Campaign struct {
	ID                 uuid.UUID     `json:"id"`
	Name               string        `json:"name"`
	Status             Status        `json:"status"`
	MinIntervalSeconds int           `json:"minIntervalSeconds"`
	MaxIntervalSeconds int           `json:"maxIntervalSeconds"`
	BusinessHours      BusinessHours `json:"businessHours"`
	NextSendAt         *time.Time    `json:"nextSendAt"`
	PlannedCount       int           `json:"plannedCount"`
	CompletedCount     int           `json:"completedCount"`
	FailedCount        int           `json:"failedCount"`
	StartedAt          *time.Time    `json:"startedAt"`
	FinishedAt         *time.Time    `json:"finishedAt"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

// Recipient is one queued message of a campaign.
type Recipient struct {
	ID                  uuid.UUID
	CampaignID          uuid.UUID
	ClientID            *uuid.UUID
	Phone               string
	PersonalizedMessage string
	Status              RecipientStatus
	SentAt              *time.Time
	LastError           *string
	CreatedAt           time.Time
}
