package comms

import (
	"github.com/volatiletech/null/v8"

	"github.com/gachaupg/shuletrack/core/resource"
)

// Notification types
const (
	TypeInfo      = "info"
	TypeAlert     = "alert"
	TypeDelay     = "delay"
	TypeEmergency = "emergency"
)

// Recipient groups
const (
	RecipientsAll     = "all"
	RecipientsParents = "parents"
	RecipientsStaff   = "staff"
	RecipientsDrivers = "drivers"
)

var (
	NotificationTypes = []string{TypeInfo, TypeAlert, TypeDelay, TypeEmergency}
	RecipientGroups   = []string{RecipientsAll, RecipientsParents, RecipientsStaff, RecipientsDrivers}

	NotificationDescriptor = resource.Descriptor{
		Name:     "notifications",
		Label:    "notification",
		Endpoint: "notifications",
		Scoped:   true,
		Columns:  []string{"ID", "Title", "Type", "Recipients", "Is Read", "Sent At"},
	}
	// contact messages come from the public site, they belong to no school
	ContactDescriptor = resource.Descriptor{
		Name:     "contact-messages",
		Label:    "contact message",
		Endpoint: "contact-messages",
		Columns:  []string{"ID", "Name", "Email", "Subject", "Created At"},
	}
)

type Notification struct {
	resource.Base
	School     int       `json:"school,omitempty"`
	Title      string    `json:"title" validate:"required,notblank,max=120"`
	Message    string    `json:"message" validate:"required,notblank"`
	Type       string    `json:"type" validate:"required,oneof=info alert delay emergency"`
	Recipients string    `json:"recipients" validate:"required,oneof=all parents staff drivers"`
	IsRead     bool      `json:"is_read"`
	SentAt     null.Time `json:"sent_at"`
}

// IsUrgent reports whether the notification must be pushed immediately.
func (n Notification) IsUrgent() bool {
	return n.Type == TypeEmergency || n.Type == TypeDelay
}

type ContactMessage struct {
	resource.Base
	Name      string    `json:"name" validate:"required,notblank"`
	Email     string    `json:"email" validate:"required,email"`
	Phone     string    `json:"phone,omitempty" validate:"omitempty,phone"`
	Subject   string    `json:"subject" validate:"required,notblank"`
	Message   string    `json:"message" validate:"required,notblank"`
	CreatedAt null.Time `json:"created_at"`
}
