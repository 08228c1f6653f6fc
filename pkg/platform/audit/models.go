package audit

import (
	"time"

	"github.com/google/uuid"

	"badguys/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose so sinks can
// apply different retention and routing.
type EventCategory string

const (
	// CategoryCompliance covers moderation decisions and account lifecycle.
	CategoryCompliance EventCategory = "compliance"
	// CategorySecurity covers authentication failures, revocations and settings changes.
	CategorySecurity EventCategory = "security"
	// CategoryOperations covers routine activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from services after a successful mutation. It is
// transport-agnostic so the memory and Kafka sinks share one shape.
type Event struct {
	ID        uuid.UUID     `json:"id"`
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	Action    string        `json:"action"`
	// UserID is the account affected, when the event concerns one.
	UserID domain.UserID `json:"user_id"`
	// ActorID is the account that performed the action.
	ActorID domain.UserID `json:"actor_id"`
	// Subject identifies the resource acted on (profile id, setting key).
	Subject   string `json:"subject,omitempty"`
	Decision  string `json:"decision,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	// ClientFamily is the parsed browser or tool family of the caller, e.g. "Firefox".
	ClientFamily string `json:"client_family,omitempty"`
}

type AuditEvent string

const (
	// Profile events
	EventProfileCreated         AuditEvent = "profile_created"
	EventProfileStatusChanged   AuditEvent = "profile_status_changed"
	EventProfileDeleted         AuditEvent = "profile_deleted"
	EventProfileReported        AuditEvent = "profile_reported"
	EventProfileReanalyzed      AuditEvent = "profile_reanalyzed"
	EventProfileLivenessChanged AuditEvent = "profile_liveness_changed"

	// Account events
	EventAccountCreated AuditEvent = "account_created"
	EventAccountDeleted AuditEvent = "account_deleted"
	EventSignedIn       AuditEvent = "signed_in"
	EventSignInFailed   AuditEvent = "sign_in_failed"
	EventSignedOut      AuditEvent = "signed_out"

	// Settings events
	EventSettingUpdated AuditEvent = "setting_updated"

	// Rate limit events
	EventRateLimitExceeded AuditEvent = "rate_limit_exceeded"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventProfileStatusChanged: CategoryCompliance,
	EventProfileDeleted:       CategoryCompliance,
	EventAccountCreated:       CategoryCompliance,
	EventAccountDeleted:       CategoryCompliance,

	EventSignInFailed:      CategorySecurity,
	EventSignedOut:         CategorySecurity,
	EventSettingUpdated:    CategorySecurity,
	EventRateLimitExceeded: CategorySecurity,

	EventProfileCreated:         CategoryOperations,
	EventProfileReported:        CategoryOperations,
	EventProfileReanalyzed:      CategoryOperations,
	EventProfileLivenessChanged: CategoryOperations,
	EventSignedIn:               CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// NewEvent builds an event for action with its category filled in.
func NewEvent(action AuditEvent, actor domain.UserID, subject string) Event {
	return Event{
		Category: action.Category(),
		Action:   string(action),
		ActorID:  actor,
		Subject:  subject,
	}
}
