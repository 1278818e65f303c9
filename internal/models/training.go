package models

import "time"

// TrainingLabel is the quality label on a training record.
type TrainingLabel string

const (
	// LabelPositive records that a reviewer confirmed the entry for the text.
	LabelPositive TrainingLabel = "positive"
	// LabelNegative records that a reviewer explicitly rejected the entry
	// (or any entry) for the text.
	LabelNegative TrainingLabel = "negative"
)

// TrainingRecord is a tenant-scoped historical review outcome. It is created
// only by confirmed human decisions and is read-only input to scoring.
type TrainingRecord struct {
	ID             string        `json:"id" db:"id"`
	TenantID       string        `json:"tenant_id" db:"tenant_id"`
	NormalizedText string        `json:"normalized_text" db:"normalized_text"`
	EntryID        string        `json:"entry_id" db:"entry_id"`
	Label          TrainingLabel `json:"label" db:"label"`
	Reviewer       string        `json:"reviewer,omitempty" db:"reviewer"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}
