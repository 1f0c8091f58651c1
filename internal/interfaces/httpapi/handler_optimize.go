package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	sonic "github.com/bytedance/sonic"

	"github.com/dugouthq/lineup-api/internal/usecase"
)

// autoAssignRequest is the optional body of an auto-assign call. Pinned
// slots are keyed player id -> slot index -> label and win over whatever
// the optimizer answers for those slots.
type autoAssignRequest struct {
	FixedAssignments map[string]map[int]string `json:"fixed_assignments"`
}

type autoAssignResponse struct {
	Lineup   lineupDTO `json:"lineup"`
	Warnings []string  `json:"warnings,omitempty"`
}

// AutoAssignLineup asks the optimizer for a full-roster assignment and
// finalizes the reconciled result. One optimizer attempt per request.
func (h *Handler) AutoAssignLineup(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.AutoAssignLineup")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	// An empty body means no pinned assignments.
	var req autoAssignRequest
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}

	gameID := strings.TrimSpace(r.PathValue("gameID"))
	result, err := h.optimizeService.AutoAssign(ctx, principal, gameID, req.FixedAssignments)
	if err != nil {
		h.logger.WarnContext(ctx, "auto assign failed", "game_id", gameID, "user_id", principal.UserID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, autoAssignResponse{
		Lineup:   lineupToDTO(result.Lineup),
		Warnings: result.Warnings,
	})
}
