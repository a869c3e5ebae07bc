package http

import (
	"errors"
	"net/http"

	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/workflow"
)

// writeWorkflowError maps the workflow error taxonomy onto HTTP statuses.
func (s *Server) writeWorkflowError(w http.ResponseWriter, op string, err error) {
	var (
		notFound   *workflow.NotFoundError
		validation *workflow.ValidationError
		state      *workflow.InvalidStateError
	)
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Error())
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &state):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":          state.Error(),
			"current_status": state.Current,
		})
	default:
		s.logger.Error("verification request failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
