package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wardenhq/sitewarden/internal/application/posture"
	"github.com/wardenhq/sitewarden/internal/application/scanner"
	sharedErrors "github.com/wardenhq/sitewarden/internal/shared/errors"
)

const maxBodyBytes = 1 << 20 // 1MB

type scanRequest struct {
	CompanyID string `json:"companyId"`
	AgentID   string `json:"agentId"`
}

type ingestResponse struct {
	Success bool `json:"success"`
	*posture.IngestResult
	Message string `json:"message,omitempty"`
}

type scanResponse struct {
	Success bool             `json:"success"`
	Result  *scanner.Outcome `json:"result"`
}

// handleIngest is the passive gateway. A repeated session answers 200 with
// the original scanId instead of 201; both are successes to the embed script.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var sub posture.PassiveSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if sub.UserAgent == "" {
		sub.UserAgent = r.UserAgent()
	}

	res, err := s.cfg.Aggregator.IngestPassive(r.Context(), sub)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}

	if res.Duplicate {
		writeJSON(w, http.StatusOK, ingestResponse{Success: true, IngestResult: res, Message: "session already ingested"})
		return
	}
	writeJSON(w, http.StatusCreated, ingestResponse{Success: true, IngestResult: res})
}

// handleScan is the active gateway: visit the agent's site now and ingest the
// findings.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if req.CompanyID == "" || req.AgentID == "" {
		s.writeError(w, r, http.StatusBadRequest, errors.New("companyId and agentId are required"))
		return
	}
	if err := s.authorize(r, req.CompanyID); err != nil {
		s.writeMappedError(w, r, err)
		return
	}

	outcome, err := s.cfg.Scanner.Scan(r.Context(), req.CompanyID, req.AgentID)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scanResponse{Success: true, Result: outcome})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	companyID, agentID, ok := s.tenantParams(w, r)
	if !ok {
		return
	}

	view, err := s.cfg.Aggregator.View(r.Context(), companyID, agentID)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	companyID, agentID, ok := s.tenantParams(w, r)
	if !ok {
		return
	}

	if err := s.cfg.Aggregator.Reset(r.Context(), companyID, agentID); err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// tenantParams extracts and authorizes the companyId/agentId query pair.
func (s *Server) tenantParams(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	companyID := r.URL.Query().Get("companyId")
	agentID := r.URL.Query().Get("agentId")
	if companyID == "" || agentID == "" {
		s.writeError(w, r, http.StatusBadRequest, errors.New("companyId and agentId are required"))
		return "", "", false
	}
	if err := s.authorize(r, companyID); err != nil {
		s.writeMappedError(w, r, err)
		return "", "", false
	}
	return companyID, agentID, true
}

// writeMappedError translates the error taxonomy to HTTP statuses: validation
// 400, authorization 403, unknown tenant or missing report 404, automation
// and storage failures 500.
func (s *Server) writeMappedError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case sharedErrors.IsValidation(err):
		s.writeError(w, r, http.StatusBadRequest, err)
	case errors.Is(err, sharedErrors.ErrUnauthorized):
		s.writeError(w, r, http.StatusForbidden, err)
	case errors.Is(err, sharedErrors.ErrCompanyNotFound),
		errors.Is(err, sharedErrors.ErrAgentNotFound),
		errors.Is(err, sharedErrors.ErrReportNotFound):
		s.writeError(w, r, http.StatusNotFound, err)
	default:
		s.writeError(w, r, http.StatusInternalServerError, err)
	}
}
