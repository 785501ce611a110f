package domain

import (
	"encoding/json"
	"errors"
)

var (
	ErrInvalidSignature = errors.New("payment: invalid webhook signature")
	ErrInvalidPayload   = errors.New("payment: invalid webhook payload")
	ErrInvalidEvent     = errors.New("payment: invalid event")
	ErrEventIgnored     = errors.New("payment: event ignored")
)

// Wire-level event types consumed from the payment provider. Unknown types
// are accepted and ignored.
const (
	EventTypeCheckoutSessionCompleted = "checkout.session.completed"
	EventTypeSubscriptionCreated      = "customer.subscription.created"
	EventTypeSubscriptionUpdated      = "customer.subscription.updated"
	EventTypeSubscriptionDeleted      = "customer.subscription.deleted"
	EventTypeScheduleCreated          = "subscription_schedule.created"
	EventTypeInvoicePaymentSucceeded  = "invoice.payment_succeeded"
	EventTypeInvoicePaymentFailed     = "invoice.payment_failed"
)

type Envelope struct {
	ID      string       `json:"id"`
	Type    string       `json:"type"`
	Created int64        `json:"created"`
	Data    EnvelopeData `json:"data"`
}

type EnvelopeData struct {
	Object json.RawMessage `json:"object"`
}

type CheckoutSessionPayload struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	Subscription      string            `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	AmountTotal       int64             `json:"amount_total"`
	Currency          string            `json:"currency"`
	Metadata          map[string]string `json:"metadata"`
}

type PlanPayload struct {
	Tier     string `json:"tier"`
	Interval string `json:"interval"`
	Seats    int    `json:"seats"`
}

type SubscriptionPayload struct {
	ID                 string            `json:"id"`
	Customer           string            `json:"customer"`
	Status             string            `json:"status"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	Plan               PlanPayload       `json:"plan"`
	Metadata           map[string]string `json:"metadata"`
}

type InvoicePayload struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	AmountPaid   int64  `json:"amount_paid"`
	AmountDue    int64  `json:"amount_due"`
	Currency     string `json:"currency"`
}

type SchedulePhase struct {
	Tier      string `json:"tier"`
	StartDate int64  `json:"start_date"`
}

type SchedulePayload struct {
	ID           string          `json:"id"`
	Subscription string          `json:"subscription"`
	Phases       []SchedulePhase `json:"phases"`
}
