package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/pay"
)

const maxCallbackBody = 64 << 10

// handleCallback authenticates a payment gateway notification by its
// X-Signature header and applies it.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	cb, err := pay.ParseCallback(body, r.Header.Get("X-Signature"), s.cfg.CallbackSecret)
	if errors.Is(err, pay.ErrBadSignature) {
		s.logger.Warn("payment callback rejected: bad signature", "remote", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.workflow.HandleCallback(r.Context(), cb)
	if err != nil {
		s.writeWorkflowError(w, "payment_callback", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
