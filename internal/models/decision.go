package models

import (
	"fmt"
	"time"
)

// DecisionStatus is the review state of a line item.
type DecisionStatus string

const (
	// StatusPending means the line item has been scored but not yet reviewed.
	StatusPending DecisionStatus = "pending"
	// StatusApproved means a reviewer confirmed a catalog entry for the line item.
	StatusApproved DecisionStatus = "approved"
	// StatusRejected means a reviewer rejected the proposed match (or marked
	// the line item as having no match at all).
	StatusRejected DecisionStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s DecisionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// MatchDecision is the single durable decision record for one line item.
// At most one decision exists per (tenant, line item); later decisions
// replace the earlier one in place.
type MatchDecision struct {
	TenantID   string         `json:"tenant_id" db:"tenant_id"`
	LineItemID string         `json:"line_item_id" db:"line_item_id"`
	EntryID    *string        `json:"entry_id" db:"entry_id"` // nil means "explicitly no match"
	Status     DecisionStatus `json:"status" db:"status"`
	Reviewer   string         `json:"reviewer,omitempty" db:"reviewer"`
	ReviewedAt *time.Time     `json:"reviewed_at,omitempty" db:"reviewed_at"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
}

// DecisionInput is the input for recording a decision on a line item.
type DecisionInput struct {
	LineItemID string         `json:"line_item_id"`
	Status     DecisionStatus `json:"status"`
	EntryID    string         `json:"entry_id,omitempty"`
	// QueryText is the raw line item text; required when the decision should
	// feed the training corpus (approve, or reject-with-no-match).
	QueryText string `json:"query_text,omitempty"`
	Reviewer  string `json:"reviewer,omitempty"`
}

// Validate checks the decision input fields.
func (d *DecisionInput) Validate() error {
	if d.LineItemID == "" {
		return fmt.Errorf("line_item_id cannot be empty")
	}
	if !d.Status.Valid() {
		return fmt.Errorf("invalid status %q", d.Status)
	}
	if d.Status == StatusApproved && d.EntryID == "" {
		return fmt.Errorf("approved decision requires entry_id")
	}
	return nil
}
