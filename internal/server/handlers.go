package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/procurehub/linematch/internal/ledger"
	"github.com/procurehub/linematch/internal/match"
	"github.com/procurehub/linematch/internal/models"
	"github.com/procurehub/linematch/internal/storage"
	"github.com/procurehub/linematch/pkg/utils"
)

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	var query models.MatchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("match request",
		zap.String("tenant", tenant),
		zap.String("query", utils.Truncate(query.Query, 120)),
		zap.Int("limit", query.Limit))

	response, err := s.engine.Match(r.Context(), tenant, &query)
	if err != nil {
		if errors.Is(err, match.ErrInvalidInput) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("match failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleRecordDecision(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	var input models.DecisionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("decision request",
		zap.String("tenant", tenant),
		zap.String("line_item", input.LineItemID),
		zap.String("status", string(input.Status)))

	decision, err := s.ledger.RecordDecision(r.Context(), tenant, &input)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidInput) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("decision recording failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, decision)
}

func (s *Server) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	lineItemID := chi.URLParam(r, "lineItemID")
	decision, err := s.ledger.Decision(r.Context(), tenant, lineItemID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "decision not found")
			return
		}
		if errors.Is(err, ledger.ErrInvalidInput) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("decision lookup failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, decision)
}

type catalogPutRequest struct {
	Entries []*models.CatalogEntryInput `json:"entries"`
}

func (s *Server) handlePutCatalog(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	var req catalogPutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Entries) == 0 {
		s.respondError(w, http.StatusBadRequest, "entries is required")
		return
	}
	n, err := s.catalog.PutEntries(r.Context(), tenant, req.Entries)
	if err != nil {
		s.logger.Error("catalog upsert failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{"indexed": n})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenants, err := s.storage.ListTenants(ctx)
	if err != nil {
		s.logger.Error("status: list tenants failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	perTenant := make(map[string]interface{}, len(tenants))
	for _, tenant := range tenants {
		entries, err := s.storage.CountEntries(ctx, tenant)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		decisions, err := s.storage.CountDecisions(ctx, tenant)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		training, err := s.storage.CountTrainingRecords(ctx, tenant)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		perTenant[tenant] = map[string]int64{
			"catalog_entries":  entries,
			"decisions":        decisions,
			"training_records": training,
		}
	}

	resp := map[string]interface{}{
		"tenants": perTenant,
		"config": map[string]interface{}{
			"top_k_candidates":     s.config.Matching.TopKCandidates,
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"database_path":        s.config.Storage.DatabasePath,
		},
	}
	if diskBytes, err := storage.DiskUsageBytes(s.config.Storage.DatabasePath); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
