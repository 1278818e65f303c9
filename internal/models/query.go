package models

import "fmt"

// MatchQuery represents a match request against one tenant's catalog.
type MatchQuery struct {
	Query     string  `json:"query"`
	Limit     int     `json:"limit,omitempty"`
	Threshold float64 `json:"threshold"`
}

// Validate ensures the match query has valid fields and sets defaults.
// The threshold is caller-supplied; there is deliberately no canonical
// default beyond 0 (accept everything).
func (q *MatchQuery) Validate() error {
	if q.Limit == 0 {
		q.Limit = 10
	}
	if q.Limit < 1 {
		return fmt.Errorf("limit must be >= 1, got %d", q.Limit)
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Threshold < 0 || q.Threshold > 1 {
		return fmt.Errorf("threshold must be in [0,1], got %g", q.Threshold)
	}
	return nil
}
