package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"

	"github.com/dugouthq/lineup-api/internal/domain/lineup"
	"github.com/dugouthq/lineup-api/internal/usecase"
)

type lineupEntryRequest struct {
	PlayerID     string         `json:"player_id" validate:"required"`
	Assignments  map[int]string `json:"assignments"`
	BattingOrder *int           `json:"batting_order" validate:"omitempty,min=1"`
}

type lineupSaveRequest struct {
	Entries []lineupEntryRequest `json:"entries" validate:"required,min=1,dive"`
}

type lineupEntryDTO struct {
	PlayerID     string         `json:"player_id"`
	Assignments  map[int]string `json:"assignments"`
	BattingOrder *int           `json:"batting_order,omitempty"`
}

type lineupDTO struct {
	ID          string           `json:"id"`
	GameID      string           `json:"game_id"`
	TeamID      string           `json:"team_id"`
	Entries     []lineupEntryDTO `json:"entries"`
	FinalizedAt *time.Time       `json:"finalized_at,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func lineupToDTO(item lineup.Lineup) lineupDTO {
	entries := make([]lineupEntryDTO, 0, len(item.Entries))
	for _, entry := range item.Entries {
		entries = append(entries, lineupEntryDTO{
			PlayerID:     entry.PlayerID,
			Assignments:  entry.Assignments,
			BattingOrder: entry.BattingOrder,
		})
	}

	return lineupDTO{
		ID:          item.ID,
		GameID:      item.GameID,
		TeamID:      item.TeamID,
		Entries:     entries,
		FinalizedAt: item.FinalizedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

func (h *Handler) SaveLineup(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SaveLineup")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	gameID := strings.TrimSpace(r.PathValue("gameID"))
	var req lineupSaveRequest
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	entries := make([]usecase.LineupEntryInput, 0, len(req.Entries))
	for _, entry := range req.Entries {
		entries = append(entries, usecase.LineupEntryInput{
			PlayerID:     entry.PlayerID,
			Assignments:  entry.Assignments,
			BattingOrder: entry.BattingOrder,
		})
	}

	item, err := h.lineupService.Finalize(ctx, usecase.FinalizeLineupInput{
		Principal: principal,
		GameID:    gameID,
		Entries:   entries,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "save lineup failed", "game_id", gameID, "user_id", principal.UserID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, lineupToDTO(item))
}

func (h *Handler) ExportLineup(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ExportLineup")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	gameID := strings.TrimSpace(r.PathValue("gameID"))
	export, err := h.lineupService.Export(ctx, principal, gameID)
	if err != nil {
		h.logger.WarnContext(ctx, "export lineup failed", "game_id", gameID, "user_id", principal.UserID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, export)
}

func (h *Handler) GetPlayerStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetPlayerStats")
	defer span.End()

	playerID := strings.TrimSpace(r.PathValue("playerID"))
	stats, err := h.statsService.PlayerStats(ctx, playerID)
	if err != nil {
		h.logger.WarnContext(ctx, "get player stats failed", "player_id", playerID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, stats)
}
