// Package match runs the hybrid matching pipeline: normalization, parallel
// signal computation, learned adjustment, and ranking.
package match

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/procurehub/linematch/internal/alias"
	"github.com/procurehub/linematch/internal/catalog"
	"github.com/procurehub/linematch/internal/learned"
	"github.com/procurehub/linematch/internal/lexical"
	"github.com/procurehub/linematch/internal/models"
	"github.com/procurehub/linematch/internal/normalize"
	"github.com/procurehub/linematch/internal/semantic"
)

// ErrInvalidInput marks synchronous rejection of malformed identifiers or
// out-of-range parameters. It is never used for signal-unavailable
// conditions, which degrade instead of failing.
var ErrInvalidInput = errors.New("invalid input")

// Options holds tunables for the matching pipeline.
type Options struct {
	// TopKCandidates bounds the shortlist size fed into full scoring.
	TopKCandidates int
	// EmbedTimeout bounds the blocking call to the embedding provider.
	EmbedTimeout time.Duration
	Weights      Weights
}

// Engine orchestrates one matching invocation. Scoring is stateless and
// side-effect free; nothing is persisted until a decision is recorded.
type Engine struct {
	catalog    *catalog.Service
	aliases    *alias.Resolver
	adjuster   *learned.Adjuster
	embedder   semantic.Embedder
	normalizer *normalize.Normalizer
	ranker     *Ranker
	opts       Options
	logger     *zap.Logger
}

// NewEngine creates a matching engine. embedder may be nil when no
// embedding provider is configured; the semantic signal is then always
// absent.
func NewEngine(
	cat *catalog.Service,
	aliases *alias.Resolver,
	adjuster *learned.Adjuster,
	embedder semantic.Embedder,
	normalizer *normalize.Normalizer,
	opts Options,
	logger *zap.Logger,
) *Engine {
	if opts.TopKCandidates <= 0 {
		opts.TopKCandidates = 100
	}
	if opts.EmbedTimeout <= 0 {
		opts.EmbedTimeout = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		catalog:    cat,
		aliases:    aliases,
		adjuster:   adjuster,
		embedder:   embedder,
		normalizer: normalizer,
		ranker:     NewRanker(opts.Weights),
		opts:       opts,
		logger:     logger,
	}
}

// Match scores query text against the tenant's catalog and returns ranked
// candidates above the caller-supplied threshold. An empty or unmatchable
// query returns an empty result, not an error.
func (e *Engine) Match(ctx context.Context, tenant string, query *models.MatchQuery) (*models.MatchResponse, error) {
	startTime := time.Now()
	if tenant == "" {
		return nil, fmt.Errorf("%w: tenant cannot be empty", ErrInvalidInput)
	}
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	response := &models.MatchResponse{
		Results: []*models.MatchResult{},
		Query:   query.Query,
	}

	normalized := e.normalizer.Normalize(query.Query)
	if normalized == "" {
		response.QueryTime = time.Since(startTime).Milliseconds()
		return response, nil
	}

	var (
		aliasEntryID string
		aliasSignal  models.Signal
		queryEmb     []float32
		shortlist    []string
		errChan      = make(chan error, 2)
		wg           sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		id, sig, err := e.aliases.Resolve(ctx, tenant, normalized)
		if err != nil {
			errChan <- err
			return
		}
		aliasEntryID, aliasSignal = id, sig
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		ids, err := e.catalog.Shortlist(ctx, tenant, normalized, e.opts.TopKCandidates)
		if err != nil {
			errChan <- fmt.Errorf("shortlist failed: %w", err)
			return
		}
		shortlist = ids
	}()

	if e.embedder != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			embCtx, cancel := context.WithTimeout(ctx, e.opts.EmbedTimeout)
			defer cancel()
			emb, err := e.embedder.Embed(embCtx, normalized)
			if err != nil {
				// Signal-unavailable, not an error: logged once per request.
				e.logger.Warn("embedding unavailable, degrading to lexical signals",
					zap.String("tenant", tenant), zap.Error(err))
				return
			}
			queryEmb = emb
		}()
	}

	wg.Wait()
	close(errChan)
	for err := range errChan {
		if err != nil {
			return nil, err
		}
	}
	response.SemanticDegraded = e.embedder != nil && queryEmb == nil

	entries, err := e.candidateEntries(ctx, tenant, shortlist, aliasEntryID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		response.QueryTime = time.Since(startTime).Milliseconds()
		return response, nil
	}

	history, err := e.adjuster.History(ctx, tenant)
	if err != nil {
		return nil, err
	}

	candidates := make([]*models.MatchCandidate, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := &models.MatchCandidate{Entry: entry}
		c.Scores.Lexical = models.SignalOf(lexical.TrigramSimilarity(normalized, entry.NormalizedName))
		c.Scores.Fuzzy = models.SignalOf(lexical.FuzzyScore(normalized, entry.NormalizedName))
		if aliasSignal.Present && aliasEntryID == entry.ID {
			c.Scores.Alias = aliasSignal
		}
		if queryEmb != nil && len(entry.Embedding) == len(queryEmb) && len(entry.Embedding) > 0 {
			c.Scores.Semantic = models.SignalOf(semantic.Score(queryEmb, entry.Embedding))
		}
		c.Adjustment = e.adjuster.Adjust(normalized, entry.ID, history)
		candidates = append(candidates, c)
	}

	ranked := e.ranker.Rank(candidates, query.Threshold, query.Limit)
	for i, c := range ranked {
		response.Results = append(response.Results, &models.MatchResult{
			EntryID:    c.Entry.ID,
			Name:       c.Entry.Name,
			SKU:        c.Entry.SKU,
			Scores:     c.Scores,
			Adjustment: c.Adjustment,
			FinalScore: c.FinalScore,
			Rank:       i + 1,
		})
	}
	response.Total = len(response.Results)
	response.QueryTime = time.Since(startTime).Milliseconds()
	return response, nil
}

// candidateEntries loads the entries to score. When the shortlist is empty
// the whole tenant catalog is scored so trigram-only matches that the
// keyword index missed are not lost. The alias target, when any, is always
// scored even if the shortlist missed it.
func (e *Engine) candidateEntries(ctx context.Context, tenant string, shortlist []string, aliasEntryID string) ([]*models.CatalogEntry, error) {
	all, err := e.catalog.Entries(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	if len(shortlist) == 0 {
		return all, nil
	}
	wanted := make(map[string]bool, len(shortlist)+1)
	for _, id := range shortlist {
		wanted[id] = true
	}
	if aliasEntryID != "" {
		wanted[aliasEntryID] = true
	}
	entries := make([]*models.CatalogEntry, 0, len(shortlist))
	for _, entry := range all {
		if wanted[entry.ID] {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// Normalize exposes the engine's normalizer so callers (the ledger) record
// training text in exactly the form scoring will compare against.
func (e *Engine) Normalize(raw string) string {
	return e.normalizer.Normalize(raw)
}
