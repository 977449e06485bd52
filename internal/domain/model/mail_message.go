package model

import (
	"time"
)

const (
	MailStatusQueued    = "Queued"
	MailStatusDelivered = "Delivered"
	MailStatusRequeued  = "Requeued" // Delivery failed, pushed back for another attempt
	MailStatusDropped   = "Dropped"  // Attempts exhausted
)

// MailMessage is a notification queued for delivery.
type MailMessage struct {
	ID         string    `json:"id"`
	To         string    `json:"to"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	Attempts   int       `json:"attempts"`
	LastError  *string   `json:"last_error,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
