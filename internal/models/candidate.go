package models

// Signal is a tagged optional component score. Absent means the component
// produced no opinion for this candidate; it is never treated as zero by
// the ranker.
type Signal struct {
	Score   float64 `json:"score"`
	Present bool    `json:"present"`
}

// SignalOf returns a present signal with the given score.
func SignalOf(score float64) Signal {
	return Signal{Score: score, Present: true}
}

// AbsentSignal returns an absent signal.
func AbsentSignal() Signal {
	return Signal{}
}

// ComponentScores holds the per-signal scores for one candidate.
type ComponentScores struct {
	Lexical  Signal `json:"lexical"`
	Fuzzy    Signal `json:"fuzzy"`
	Alias    Signal `json:"alias"`
	Semantic Signal `json:"semantic"`
}

// MatchCandidate is a transient (query, entry) pairing produced during one
// matching invocation. It is never persisted.
type MatchCandidate struct {
	Entry      *CatalogEntry
	Scores     ComponentScores
	Adjustment float64
	FinalScore float64
}

// MatchResult is one ranked hit returned to the caller.
type MatchResult struct {
	EntryID    string          `json:"entry_id"`
	Name       string          `json:"name"`
	SKU        string          `json:"sku,omitempty"`
	Scores     ComponentScores `json:"component_scores"`
	Adjustment float64         `json:"learned_adjustment"`
	FinalScore float64         `json:"final_score"`
	Rank       int             `json:"rank"`
}

// MatchResponse is the response for a match request.
type MatchResponse struct {
	Results   []*MatchResult `json:"results"`
	Total     int            `json:"total"`
	QueryTime int64          `json:"query_time_ms"`
	Query     string         `json:"query"`
	// SemanticDegraded indicates the embedding provider was unavailable and
	// ranking fell back to lexical and alias signals only.
	SemanticDegraded bool `json:"semantic_degraded,omitempty"`
}
