package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/workflow"
)

// handleSubmitPayment accepts a tenant payment claim as multipart form data
// with an optional "proof" file.
func (s *Server) handleSubmitPayment(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	shopID := r.URL.Query().Get(":shop_id")
	if p.Actor.Type != workflow.ActorAdmin && p.ShopID != shopID {
		writeError(w, http.StatusForbidden, "forbidden: shop mismatch")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	req := workflow.SubmitRequest{
		InvoiceID:        r.URL.Query().Get(":id"),
		ShopID:           shopID,
		ReceiptReference: strings.TrimSpace(r.FormValue("receipt_reference")),
		SenderPhone:      strings.TrimSpace(r.FormValue("sender_phone")),
		SenderName:       strings.TrimSpace(r.FormValue("sender_name")),
		Method:           strings.TrimSpace(r.FormValue("method")),
	}
	file, header, err := r.FormFile("proof")
	switch {
	case err == nil:
		defer file.Close()
		data, readErr := io.ReadAll(file)
		if readErr != nil {
			writeError(w, http.StatusBadRequest, "failed to read proof")
			return
		}
		req.Proof = data
		req.ProofName = header.Filename
	case !errors.Is(err, http.ErrMissingFile):
		writeError(w, http.StatusBadRequest, "invalid proof file")
		return
	}

	actor := p.Actor
	if actor.Type == "" {
		actor.Type = workflow.ActorShop
	}
	res, err := s.workflow.SubmitPayment(r.Context(), req, actor)
	if err != nil {
		s.writeWorkflowError(w, workflow.ActionSubmitPayment, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}
