package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/repo"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/workflow"
)

type verifyRequest struct {
	Notes string `json:"notes"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := r.URL.Query().Get(":id")
	res, err := s.workflow.VerifyPayment(r.Context(), id, p.Actor, req.Notes)
	if err != nil {
		s.writeWorkflowError(w, workflow.ActionVerifyPayment, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := r.URL.Query().Get(":id")
	res, err := s.workflow.RejectPayment(r.Context(), id, p.Actor, req.Reason)
	if err != nil {
		s.writeWorkflowError(w, workflow.ActionRejectPayment, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleForceActivate(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := r.URL.Query().Get(":id")
	res, err := s.workflow.ForceActivateUpgrade(r.Context(), id, p.Actor, req.Reason)
	if err != nil {
		s.writeWorkflowError(w, workflow.ActionForceActivateUpgrade, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleActivateUpgrade(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	shopID := r.URL.Query().Get(":id")
	sub, err := s.workflow.ActivatePendingUpgrade(r.Context(), shopID, p.Actor)
	if err != nil {
		s.writeWorkflowError(w, workflow.ActionActivatePendingUpgrade, err)
		return
	}
	if sub == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"activated": false, "message": "no pending upgrade"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"activated": true, "subscription": sub})
}

func (s *Server) handlePendingVerifications(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		http.Error(w, "reports unavailable", http.StatusServiceUnavailable)
		return
	}
	limit, offset, err := parsePaging(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := s.contextWithTimeout(r)
	defer cancel()

	items, err := s.reports.PendingVerifications(ctx, limit, offset)
	if err != nil {
		s.logger.Error("list pending verifications", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list pending verifications")
		return
	}
	if items == nil {
		items = []repo.PendingVerification{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items, "limit": limit, "offset": offset})
}

func (s *Server) handlePendingUpgrades(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		http.Error(w, "reports unavailable", http.StatusServiceUnavailable)
		return
	}
	limit, offset, err := parsePaging(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := s.contextWithTimeout(r)
	defer cancel()

	items, err := s.reports.PendingUpgrades(ctx, limit, offset)
	if err != nil {
		s.logger.Error("list pending upgrades", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list pending upgrades")
		return
	}
	if items == nil {
		items = []repo.PendingUpgradeView{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items, "limit": limit, "offset": offset})
}

// handleStats reports totals since the start of the given day (default today).
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		http.Error(w, "stats unavailable", http.StatusServiceUnavailable)
		return
	}
	now := time.Now().In(s.cfg.Location)
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.cfg.Location)
	if v := strings.TrimSpace(r.URL.Query().Get("since")); v != "" {
		day, err := time.ParseInLocation("2006-01-02", v, s.cfg.Location)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be YYYY-MM-DD")
			return
		}
		since = day
	}
	ctx, cancel := s.contextWithTimeout(r)
	defer cancel()

	stats, err := s.stats.Stats(ctx, since)
	if err != nil {
		s.logger.Error("load verification stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "history unavailable", http.StatusServiceUnavailable)
		return
	}
	limit, offset, err := parsePaging(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	filter := repo.AuditFilter{
		Category: workflow.CategoryPaymentVerification,
		Action:   q.Get("action"),
		ShopID:   q.Get("shop_id"),
		TargetID: q.Get("target_id"),
		Limit:    limit,
		Offset:   offset,
	}
	ctx, cancel := s.contextWithTimeout(r)
	defer cancel()

	entries, err := s.history.List(ctx, filter)
	if err != nil {
		s.logger.Error("list verification history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	if entries == nil {
		entries = []repo.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": entries, "limit": limit, "offset": offset})
}
